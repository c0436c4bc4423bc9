package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/skillsenselab/workshopkit/checklist"
	"github.com/skillsenselab/workshopkit/errors"
	"github.com/skillsenselab/workshopkit/extraction"
	"github.com/skillsenselab/workshopkit/logger"
	"github.com/skillsenselab/workshopkit/observability"
	"github.com/skillsenselab/workshopkit/storage"
	"github.com/skillsenselab/workshopkit/transcription"
)

// StageTimeouts bounds each remote pipeline stage. A stage that exceeds
// its timeout transitions the segment to failed with a retryable error
// instead of stalling forever.
type StageTimeouts struct {
	Store      time.Duration `mapstructure:"store" json:"store"`
	Transcribe time.Duration `mapstructure:"transcribe" json:"transcribe"`
	Extract    time.Duration `mapstructure:"extract" json:"extract"`
}

// ApplyDefaults fills in zero-valued timeouts.
func (t *StageTimeouts) ApplyDefaults() {
	if t.Store == 0 {
		t.Store = 30 * time.Second
	}
	if t.Transcribe == 0 {
		t.Transcribe = 3 * time.Minute
	}
	if t.Extract == 0 {
		t.Extract = 2 * time.Minute
	}
}

// Job is one segment's trip through the pipeline.
type Job struct {
	SessionID  string
	AnswerID   string
	Definition *checklist.Definition
	Record     *SegmentRecord
}

// Worker drives exactly one segment through store → transcribe → extract,
// independent of other segments' progress. Workers never touch each
// other's records; stage failures stop the pipeline for this segment only.
type Worker struct {
	storage     storage.Storage
	transcriber transcription.Provider
	extractor   extraction.Extractor
	answers     AnswerStore
	aggregator  *checklist.Aggregator
	timeouts    StageTimeouts

	// sync runs a record mutation under the record owner's lock, keeping
	// reads from the API surface race-free.
	sync    func(fn func())
	events  EventSink
	log     *logger.Logger
	metrics *observability.PipelineMetrics
}

// WorkerDeps collects the collaborators a Worker needs.
type WorkerDeps struct {
	Storage     storage.Storage
	Transcriber transcription.Provider
	Extractor   extraction.Extractor
	Answers     AnswerStore
	Aggregator  *checklist.Aggregator
	Timeouts    StageTimeouts
	Sync        func(fn func())
	Events      EventSink
	Logger      *logger.Logger
	Metrics     *observability.PipelineMetrics
}

// NewWorker creates a pipeline worker from its dependencies.
func NewWorker(deps WorkerDeps) *Worker {
	deps.Timeouts.ApplyDefaults()
	if deps.Sync == nil {
		deps.Sync = func(fn func()) { fn() }
	}
	if deps.Events == nil {
		deps.Events = func(Event) {}
	}
	return &Worker{
		storage:     deps.Storage,
		transcriber: deps.Transcriber,
		extractor:   deps.Extractor,
		answers:     deps.Answers,
		aggregator:  deps.Aggregator,
		timeouts:    deps.Timeouts,
		sync:        deps.Sync,
		events:      deps.Events,
		log:         deps.Logger.WithComponent("worker"),
		metrics:     deps.Metrics,
	}
}

// Process runs the pipeline from wherever the record left off: stages
// that already succeeded are skipped, so retrying a failed segment
// re-runs only the failed stage and what follows it.
func (w *Worker) Process(ctx context.Context, job Job) {
	rec := job.Record

	if rec.RawAudioRef == "" {
		if !w.runStore(ctx, job) {
			return
		}
	}
	if rec.TranscriptText == "" {
		if !w.runTranscribe(ctx, job) {
			return
		}
	}
	if !w.runExtract(ctx, job) {
		return
	}

	w.setStage(job, StatusDone, nil)
	w.metrics.RecordSegmentProcessed(ctx)
}

// runStore uploads the raw audio and records the storage key.
func (w *Worker) runStore(ctx context.Context, job Job) bool {
	rec := job.Record
	w.setStage(job, StatusStoring, nil)

	sctx, span := observability.StartSpan(ctx, observability.SpanSegmentStore)
	defer span.End()
	observability.SetSpanAttribute(sctx, observability.AttrSegmentIndex, rec.Index)

	sctx, cancel := context.WithTimeout(sctx, w.timeouts.Store)
	defer cancel()

	start := time.Now()
	key := storage.SegmentKey(job.SessionID, rec.Index)
	err := w.storage.Upload(sctx, key, bytes.NewReader(rec.Audio))
	w.metrics.RecordStageDuration(ctx, "store", time.Since(start))

	if err != nil {
		observability.SetSpanError(sctx, err)
		w.fail(ctx, job, "store", errors.StoreFailed(rec.Index, err))
		return false
	}

	w.sync(func() {
		rec.RawAudioRef = key
	})
	w.logStage(job, "store", time.Since(start))
	return true
}

// runTranscribe converts the stored audio to text and appends it to the
// answer's cumulative transcript with a read-modify-write.
func (w *Worker) runTranscribe(ctx context.Context, job Job) bool {
	rec := job.Record
	w.setStage(job, StatusTranscribing, nil)

	sctx, span := observability.StartSpan(ctx, observability.SpanSegmentTranscribe)
	defer span.End()
	observability.SetSpanAttribute(sctx, observability.AttrSegmentIndex, rec.Index)

	sctx, cancel := context.WithTimeout(sctx, w.timeouts.Transcribe)
	defer cancel()

	audio := rec.Audio
	if len(audio) == 0 {
		// Retried after the in-memory audio was released; fetch from storage.
		data, err := w.downloadAudio(sctx, rec.RawAudioRef)
		if err != nil {
			w.fail(ctx, job, "transcribe", errors.TranscriptionFailed(rec.Index, err))
			return false
		}
		audio = data
	}

	start := time.Now()
	resp, err := w.transcriber.Transcribe(sctx, transcription.Request{
		Audio:    audio,
		Filename: fmt.Sprintf("%04d.wav", rec.Index),
	})
	w.metrics.RecordStageDuration(ctx, "transcribe", time.Since(start))

	if err != nil {
		observability.SetSpanError(sctx, err)
		w.fail(ctx, job, "transcribe", errors.TranscriptionFailed(rec.Index, err))
		return false
	}

	if _, err := w.answers.AppendTranscript(ctx, job.AnswerID, resp.Text); err != nil {
		w.fail(ctx, job, "transcribe", errors.TranscriptionFailed(rec.Index, err))
		return false
	}

	w.sync(func() {
		rec.TranscriptText = resp.Text
		// The audio is persisted and transcribed; no need to hold it.
		rec.Audio = nil
	})
	w.logStage(job, "transcribe", time.Since(start))
	return true
}

// runExtract reasons over the full cumulative transcript available now,
// not just this segment's text, and publishes the merge. Failure here is
// non-fatal to the transcript: it is already appended and persisted.
func (w *Worker) runExtract(ctx context.Context, job Job) bool {
	rec := job.Record
	w.setStage(job, StatusExtracting, nil)

	sctx, span := observability.StartSpan(ctx, observability.SpanSegmentExtract)
	defer span.End()
	observability.SetSpanAttribute(sctx, observability.AttrSegmentIndex, rec.Index)

	ans, err := w.answers.Get(ctx, job.AnswerID)
	if err != nil {
		w.fail(ctx, job, "extract", errors.ExtractionFailed(err))
		return false
	}

	ectx, cancel := context.WithTimeout(sctx, w.timeouts.Extract)
	defer cancel()

	start := time.Now()
	res, err := w.extractor.Extract(ectx, ans.Transcript, job.Definition)
	w.metrics.RecordStageDuration(ctx, "extract", time.Since(start))

	if err != nil {
		observability.SetSpanError(sctx, err)
		w.fail(ctx, job, "extract", errors.ExtractionFailed(err))
		return false
	}

	index := rec.Index
	snap, err := w.aggregator.Publish(ctx, job.AnswerID, job.Definition, res, &index)
	if err != nil {
		observability.SetSpanError(sctx, err)
		w.fail(ctx, job, "extract", errors.ExtractionFailed(err))
		return false
	}

	w.events(snapshotEvent(job.AnswerID, snap))
	w.logStage(job, "extract", time.Since(start))
	return true
}

// logStage records how long a completed stage took.
func (w *Worker) logStage(job Job, stage string, elapsed time.Duration) {
	fields := logger.DurationFields(stage, elapsed)
	fields[logger.FieldAnswerID] = job.AnswerID
	fields[logger.FieldSegment] = job.Record.Index
	w.log.Debug("stage complete", fields)
}

func (w *Worker) downloadAudio(ctx context.Context, key string) ([]byte, error) {
	rc, err := w.storage.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// setStage records a stage transition and emits the status event the
// controller renders fine-grained progress from.
func (w *Worker) setStage(job Job, status PipelineStatus, stageErr *errors.AppError) {
	w.sync(func() {
		job.Record.Status = status
		job.Record.Err = stageErr
	})
	w.events(segmentEvent(job.AnswerID, job.Record.Index, status, errOrNil(stageErr)))

	fields := logger.Fields(
		logger.FieldAnswerID, job.AnswerID,
		logger.FieldSegment, job.Record.Index,
		logger.FieldStage, string(status),
	)
	if stageErr != nil {
		w.log.Error("segment stage failed", logger.MergeWithError(fields, stageErr))
		return
	}
	w.log.Debug("segment stage", fields)
}

func (w *Worker) fail(ctx context.Context, job Job, stage string, err *errors.AppError) {
	w.setStage(job, StatusFailed, err)
	w.metrics.RecordSegmentFailed(ctx, stage)
}

func errOrNil(err *errors.AppError) error {
	if err == nil {
		return nil
	}
	return err
}

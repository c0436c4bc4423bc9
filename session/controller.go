package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skillsenselab/workshopkit/capture"
	"github.com/skillsenselab/workshopkit/checklist"
	"github.com/skillsenselab/workshopkit/errors"
	"github.com/skillsenselab/workshopkit/logger"
)

// State is the controller's facilitator-visible state.
type State string

// Controller states. Draining means recording has stopped but in-flight
// segment workers have not all resolved yet.
const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateDraining  State = "draining"
)

// ControllerDeps collects the collaborators a Controller needs.
type ControllerDeps struct {
	// Source produces the capture source for each recording.
	Source func() capture.Source
	// Capture is the segmenter configuration; the segment duration is
	// fixed for the session once the first recording starts.
	Capture capture.Config
	// Definition is the checklist the question seeks to fill.
	Definition *checklist.Definition
	// Respondent is attached to the answer on creation.
	Respondent string

	Answers   AnswerStore
	Snapshots checklist.Store
	Worker    *Worker
	Events    EventSink
	Logger    *logger.Logger
}

// Controller is the state machine behind one question view. It owns the
// segmenter, serializes first-answer creation, dispatches one worker per
// segment, and gates navigation while segments are in flight.
type Controller struct {
	sessionID  string
	definition *checklist.Definition
	respondent string
	source     func() capture.Source
	captureCfg capture.Config
	answers    AnswerStore
	snapshots  checklist.Store
	worker     *Worker
	events     EventSink
	log        *logger.Logger

	mu        sync.Mutex
	state     State
	started   bool // a recording has begun; segment duration is frozen
	answerID  string
	segments  map[int]*SegmentRecord
	segmenter *capture.Segmenter

	// inflight counts workers (segments and retries) that have not
	// resolved; producing is true while the segmenter can still emit
	// segments. Both live under mu so a retry landing mid-drain is
	// counted before the drain can settle.
	inflight  int
	producing bool
}

// NewController creates an idle controller for one question.
func NewController(deps ControllerDeps) (*Controller, error) {
	deps.Capture.ApplyDefaults()
	if err := deps.Capture.Validate(); err != nil {
		return nil, err
	}
	if err := deps.Definition.Validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		sessionID:  uuid.NewString(),
		definition: deps.Definition,
		respondent: deps.Respondent,
		source:     deps.Source,
		captureCfg: deps.Capture,
		answers:    deps.Answers,
		snapshots:  deps.Snapshots,
		events:     deps.Events,
		log:        deps.Logger.WithComponent("controller"),
		state:      StateIdle,
		segments:   make(map[int]*SegmentRecord),
	}
	if c.events == nil {
		c.events = func(Event) {}
	}

	// The worker mutates segment records this controller also serves
	// reads from, so its record mutations run under this controller's
	// lock.
	w := *deps.Worker
	w.sync = func(fn func()) {
		c.mu.Lock()
		defer c.mu.Unlock()
		fn()
	}
	c.worker = &w
	return c, nil
}

// SessionID returns the controller's session identifier, which keys the
// stored segment audio.
func (c *Controller) SessionID() string { return c.sessionID }

// State returns the current controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// AnswerID returns the answer this session feeds, or "" before the first
// segment (the answer is created lazily).
func (c *Controller) AnswerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answerID
}

// SetSegmentDuration changes the target segment duration. Rejected once
// any recording has started: the duration is fixed for the session.
func (c *Controller) SetSegmentDuration(d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return errors.InvalidState("change segment duration", string(c.state))
	}
	cfg := c.captureCfg
	cfg.SegmentDuration = d
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.captureCfg = cfg
	return nil
}

// StartRecording moves idle → recording. Fails with DeviceUnavailable
// when the capture source cannot be opened, leaving the state idle.
func (c *Controller) StartRecording(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return errors.InvalidState("start recording", string(c.state))
	}

	seg := capture.NewSegmenter(c.source(), c.captureCfg, c.log)
	ch, err := seg.Start(ctx)
	if err != nil {
		return err
	}

	c.segmenter = seg
	c.started = true
	c.producing = true
	c.setStateLocked(StateRecording)

	go c.dispatch(ch)
	return nil
}

// StopRecording moves recording → draining. Segment production stops;
// already-dispatched network calls are not cancelled. The controller
// returns to idle on its own once every in-flight worker has reached
// done or failed.
func (c *Controller) StopRecording(_ context.Context) error {
	c.mu.Lock()
	if c.state != StateRecording {
		c.mu.Unlock()
		return errors.InvalidState("stop recording", string(c.state))
	}
	c.setStateLocked(StateDraining)
	seg := c.segmenter
	c.mu.Unlock()

	// Flushes the final partial segment and closes the segment channel;
	// the dispatch loop finishes the drain.
	seg.Stop()
	return nil
}

// dispatch consumes materialized segments, creating the answer lazily
// before the first worker starts so concurrently starting workers cannot
// race on answer creation.
func (c *Controller) dispatch(ch <-chan capture.Segment) {
	ctx := context.Background()

	for seg := range ch {
		answerID, err := c.ensureAnswer(ctx)
		if err != nil {
			c.log.Error("creating answer", logger.ErrorFields("dispatch", err))
			continue
		}

		c.mu.Lock()
		rec := &SegmentRecord{
			Index:    seg.Index,
			Duration: seg.Duration,
			Status:   StatusQueued,
			Audio:    seg.Audio,
		}
		c.segments[seg.Index] = rec
		c.inflight++
		c.mu.Unlock()
		c.events(segmentEvent(answerID, rec.Index, StatusQueued, nil))

		go func(rec *SegmentRecord) {
			defer c.workerDone(ctx)
			c.worker.Process(ctx, Job{
				SessionID:  c.sessionID,
				AnswerID:   answerID,
				Definition: c.definition,
				Record:     rec,
			})
		}(rec)
	}

	// No more segments will be produced. If every worker has already
	// resolved, settle now; otherwise the last workerDone settles.
	c.mu.Lock()
	c.producing = false
	settled := c.inflight == 0
	c.mu.Unlock()
	if settled {
		c.finishDrain(ctx)
	}
}

// workerDone retires one worker. The last one out, with segment
// production over and the session not yet back to idle, completes the
// drain.
func (c *Controller) workerDone(ctx context.Context) {
	c.mu.Lock()
	c.inflight--
	settled := c.inflight == 0 && !c.producing && c.state != StateIdle
	c.mu.Unlock()
	if settled {
		c.finishDrain(ctx)
	}
}

func (c *Controller) finishDrain(ctx context.Context) {
	c.mu.Lock()
	c.segmenter = nil
	c.setStateLocked(StateIdle)
	answerID := c.answerID
	c.mu.Unlock()

	if answerID == "" {
		return
	}

	// Final refresh: the displayed snapshot must reflect every segment
	// that succeeded, even if some failed.
	snap, err := c.snapshots.Latest(ctx, answerID)
	if err != nil {
		c.log.Error("reading latest snapshot after drain", logger.ErrorFields("drain", err))
		return
	}
	if snap != nil {
		c.events(snapshotEvent(answerID, snap))
	}
}

// ensureAnswer creates the answer on first use. Creation is serialized
// here so at most one answer exists per session no matter how many
// workers start concurrently.
func (c *Controller) ensureAnswer(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.answerID != "" {
		return c.answerID, nil
	}

	a := NewAnswer(c.definition.QuestionID, c.respondent)
	if err := c.answers.Create(ctx, a); err != nil {
		return "", err
	}
	c.answerID = a.ID
	c.log.Info("answer created", logger.Fields(
		logger.FieldAnswerID, a.ID,
		"question_id", c.definition.QuestionID,
	))
	return a.ID, nil
}

// Analyze runs a manual extraction pass over the full cumulative
// transcript, outside any segment. Allowed only from idle; the result
// feeds the aggregator as one more merge with a nil source segment.
// Carried-forward obtained entries are never reverted by this pass.
func (c *Controller) Analyze(ctx context.Context) (*checklist.Snapshot, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil, errors.InvalidState("analyze", string(c.state))
	}
	answerID := c.answerID
	c.mu.Unlock()

	if answerID == "" {
		return nil, errors.NotFound("answer", "none created for this session")
	}

	ans, err := c.answers.Get(ctx, answerID)
	if err != nil {
		return nil, err
	}

	res, err := c.worker.extractor.Extract(ctx, ans.Transcript, c.definition)
	if err != nil {
		return nil, errors.ExtractionFailed(err)
	}

	snap, err := c.worker.aggregator.Publish(ctx, answerID, c.definition, res, nil)
	if err != nil {
		return nil, err
	}
	c.events(snapshotEvent(answerID, snap))
	return snap, nil
}

// RetrySegment re-runs a failed segment's pipeline from its failed stage.
// Stages that already succeeded are not repeated.
func (c *Controller) RetrySegment(ctx context.Context, index int) error {
	c.mu.Lock()
	rec, ok := c.segments[index]
	if !ok {
		c.mu.Unlock()
		return errors.NotFound("segment", "")
	}
	if rec.Status != StatusFailed {
		c.mu.Unlock()
		return errors.InvalidState("retry segment", string(rec.Status))
	}
	rec.Status = StatusQueued
	rec.Err = nil
	answerID := c.answerID
	c.inflight++
	c.mu.Unlock()

	c.events(segmentEvent(answerID, index, StatusQueued, nil))
	go func() {
		defer c.workerDone(ctx)
		c.worker.Process(ctx, Job{
			SessionID:  c.sessionID,
			AnswerID:   answerID,
			Definition: c.definition,
			Record:     rec,
		})
	}()
	return nil
}

// Segments returns copies of all segment records in index order.
func (c *Controller) Segments() []SegmentRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SegmentRecord, 0, len(c.segments))
	for _, rec := range c.segments {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Snapshot returns the latest checklist snapshot, or nil when none
// exists yet.
func (c *Controller) Snapshot(ctx context.Context) (*checklist.Snapshot, error) {
	c.mu.Lock()
	answerID := c.answerID
	c.mu.Unlock()
	if answerID == "" {
		return nil, nil
	}
	return c.snapshots.Latest(ctx, answerID)
}

// Progress is the derived live view the facilitator sees.
type Progress struct {
	State           State           `json:"state"`
	AnswerID        string          `json:"answer_id,omitempty"`
	Segments        []SegmentRecord `json:"segments"`
	SnapshotVersion int             `json:"snapshot_version"`
	CanProceed      bool            `json:"can_proceed"`
}

// Progress computes the current live view: controller state, per-segment
// statuses, and whether the question is complete enough to leave. The
// best available snapshot is always used, even while segments are
// mid-flight or failed.
func (c *Controller) Progress(ctx context.Context) (*Progress, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	p := &Progress{
		State:      c.State(),
		AnswerID:   c.AnswerID(),
		Segments:   c.Segments(),
		CanProceed: c.canProceed(snap),
	}
	if snap != nil {
		p.SnapshotVersion = snap.Version
	}
	return p, nil
}

// CanNavigate reports whether the facilitator may move to the next
// question right now. Navigation is blocked while recording or draining,
// and while blocking checklist entries are still missing.
func (c *Controller) CanNavigate(ctx context.Context) (bool, error) {
	if st := c.State(); st != StateIdle {
		return false, nil
	}
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	return c.canProceed(snap), nil
}

func (c *Controller) canProceed(snap *checklist.Snapshot) bool {
	if c.State() != StateIdle {
		return false
	}
	return snap.CanProceed()
}

func (c *Controller) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	c.log.Info("session state changed", logger.Fields(
		logger.FieldStatus, string(s),
		logger.FieldAnswerID, c.answerID,
	))
	c.events(stateEvent(c.answerID, s))
}

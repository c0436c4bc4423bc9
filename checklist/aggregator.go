package checklist

import (
	"context"
	"sync"
	"time"

	"github.com/skillsenselab/workshopkit/errors"
	"github.com/skillsenselab/workshopkit/logger"
	"github.com/skillsenselab/workshopkit/observability"
	"github.com/skillsenselab/workshopkit/resilience"
)

// Aggregator merges per-segment extraction results into the authoritative
// cumulative snapshot for an answer and publishes the result to the Store.
//
// Publishes for the same answer are serialized by a per-answer lock; the
// store-level compare-and-swap remains as the safety net against writers
// in other processes sharing the same store.
type Aggregator struct {
	store   Store
	log     *logger.Logger
	metrics *observability.PipelineMetrics

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewAggregator creates an aggregator publishing to the given store.
// metrics may be nil.
func NewAggregator(store Store, log *logger.Logger, metrics *observability.PipelineMetrics) *Aggregator {
	return &Aggregator{
		store:   store,
		log:     log.WithComponent("aggregator"),
		metrics: metrics,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (a *Aggregator) answerLock(answerID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.locks[answerID]
	if !ok {
		l = &sync.Mutex{}
		a.locks[answerID] = l
	}
	return l
}

// Release drops the per-answer publish lock once the answer's session
// is closed, so the lock map does not grow with every answer ever
// opened. Publishing again after Release recreates the lock.
func (a *Aggregator) Release(answerID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.locks, answerID)
}

// Publish runs one read-merge-write cycle: reads the latest snapshot,
// merges the extraction result against the definition, and appends the new
// snapshot with a compare-and-swap on the version it was based on. A lost
// race is retried once with a fresh read; a second conflict surfaces to
// the caller as a transient error.
//
// sourceSegment is the index of the segment whose extraction produced the
// result, or nil for a manual analyze pass over the full transcript.
func (a *Aggregator) Publish(ctx context.Context, answerID string, def *Definition, res ExtractionResult, sourceSegment *int) (*Snapshot, error) {
	cfg := resilience.RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: 10 * time.Millisecond,
		RetryIf: func(err error) bool {
			return errors.HasCode(err, errors.ErrCodeMergeConflict)
		},
		OnRetry: func(attempt int, err error, _ time.Duration) {
			a.metrics.RecordMergeConflict(ctx)
			a.log.Warn("snapshot publish lost a race, re-reading",
				logger.Fields(logger.FieldAnswerID, answerID, "attempt", attempt))
		},
	}

	snap, err := resilience.Retry(ctx, cfg, func() (*Snapshot, error) {
		return a.publishOnce(ctx, answerID, def, res, sourceSegment)
	})
	if err != nil {
		return nil, err
	}

	a.metrics.RecordSnapshotPublished(ctx)
	a.log.Info("snapshot published", logger.Fields(
		logger.FieldAnswerID, answerID,
		logger.FieldVersion, snap.Version,
		"obtained", len(snap.Obtained),
		"missing", len(snap.Missing),
	))
	return snap, nil
}

func (a *Aggregator) publishOnce(ctx context.Context, answerID string, def *Definition, res ExtractionResult, sourceSegment *int) (*Snapshot, error) {
	l := a.answerLock(answerID)
	l.Lock()
	defer l.Unlock()

	prior, err := a.store.Latest(ctx, answerID)
	if err != nil {
		return nil, err
	}

	next := Merge(def, prior, res, sourceSegment)

	expected := 0
	if prior != nil {
		expected = prior.Version
	}
	version, err := a.store.Append(ctx, answerID, next, expected)
	if err != nil {
		return nil, err
	}
	next.Version = version
	return &next, nil
}

// Merge produces the next snapshot from the prior one and a fresh
// extraction result. It is pure: no I/O, no clock beyond CreatedAt.
//
// Entries obtained in the prior snapshot are carried forward unchanged;
// a later segment never un-captures information. Entries still missing
// move to obtained when the result reports them satisfied. Findings are
// appended to the cumulative list without deduplication; downstream
// consumers are expected to tolerate repeats.
func Merge(def *Definition, prior *Snapshot, res ExtractionResult, sourceSegment *int) Snapshot {
	satisfied := make(map[string]float64, len(res.Satisfied))
	for _, s := range res.Satisfied {
		satisfied[s.EntryID] = s.Confidence
	}

	var carried map[string]bool
	next := Snapshot{CreatedAt: time.Now().UTC()}
	if prior != nil {
		carried = prior.ObtainedIDs()
		next.Obtained = append(next.Obtained, prior.Obtained...)
		next.Findings = append(next.Findings, prior.Findings...)
	}

	for _, entry := range def.Entries {
		if carried[entry.ID] {
			continue
		}
		if conf, ok := satisfied[entry.ID]; ok {
			next.Obtained = append(next.Obtained, ObtainedEntry{
				EntryID:            entry.ID,
				SourceSegmentIndex: sourceSegment,
				Confidence:         conf,
			})
			continue
		}
		next.Missing = append(next.Missing, MissingEntry{
			EntryID:    entry.ID,
			Importance: entry.Importance,
		})
	}

	for _, f := range res.Findings {
		f.SourceSegmentIndex = sourceSegment
		next.Findings = append(next.Findings, f)
	}

	if prior != nil {
		next.Version = prior.Version + 1
	} else {
		next.Version = 1
	}
	return next
}

package session

import (
	"time"

	"github.com/skillsenselab/workshopkit/errors"
)

// PipelineStatus is the per-segment pipeline state.
type PipelineStatus string

// Pipeline states, in stage order.
const (
	StatusQueued       PipelineStatus = "queued"
	StatusStoring      PipelineStatus = "storing"
	StatusTranscribing PipelineStatus = "transcribing"
	StatusExtracting   PipelineStatus = "extracting"
	StatusDone         PipelineStatus = "done"
	StatusFailed       PipelineStatus = "failed"
)

// SegmentRecord tracks one captured segment through the pipeline. Records
// are created when the segmenter closes a window, mutated only by their
// owning worker, and never deleted; failed segments are retained for
// audit and manual retry.
type SegmentRecord struct {
	// Index is the 0-based capture-order key.
	Index int `json:"index"`
	// Duration is the captured duration of the segment.
	Duration time.Duration `json:"duration"`
	// RawAudioRef is the storage key, set once stage 1 succeeds.
	RawAudioRef string `json:"raw_audio_ref,omitempty"`
	// TranscriptText is set once stage 2 succeeds.
	TranscriptText string `json:"transcript_text,omitempty"`
	// Status is the current pipeline state.
	Status PipelineStatus `json:"status"`
	// Err describes the failed stage, when Status is failed.
	Err *errors.AppError `json:"error,omitempty"`

	// Audio holds the WAV bytes until stage 1 and 2 complete, so a failed
	// stage can be retried without re-capturing.
	Audio []byte `json:"-"`
}

// Clone returns a copy safe to hand outside the controller lock.
func (r *SegmentRecord) Clone() SegmentRecord {
	cp := *r
	cp.Audio = nil
	return cp
}

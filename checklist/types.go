package checklist

import (
	"time"

	"github.com/skillsenselab/workshopkit/validation"
)

// Importance ranks how much a checklist entry matters for completing
// a question.
type Importance string

// Importance levels, highest first.
const (
	ImportanceCritical   Importance = "critical"
	ImportanceImportant  Importance = "important"
	ImportanceNiceToHave Importance = "nice_to_have"
)

// Blocking reports whether a missing entry of this importance should
// block navigation to the next question.
func (i Importance) Blocking() bool {
	return i == ImportanceCritical || i == ImportanceImportant
}

// Entry is one item of information a question seeks to collect.
type Entry struct {
	ID               string     `json:"id" validate:"required"`
	Description      string     `json:"description" validate:"required"`
	Importance       Importance `json:"importance" validate:"required,oneof=critical important nice_to_have"`
	FollowUpQuestion string     `json:"follow_up_question,omitempty"`
}

// Definition is the target schema for a question: an ordered set of
// entries. Immutable once generated unless the facilitator explicitly
// regenerates it, which produces a new definition version.
type Definition struct {
	QuestionID string  `json:"question_id" validate:"required"`
	Version    int     `json:"version" validate:"min=1"`
	Entries    []Entry `json:"entries" validate:"required,min=1,dive"`
}

// Validate checks the definition against its struct tags.
func (d *Definition) Validate() error {
	return validation.Validate(d)
}

// Entry returns the entry with the given id, or nil.
func (d *Definition) Entry(id string) *Entry {
	for i := range d.Entries {
		if d.Entries[i].ID == id {
			return &d.Entries[i]
		}
	}
	return nil
}

// ObtainedEntry records that a definition entry has been satisfied.
// SourceSegmentIndex is nil for manual analyze passes, which reason over
// the full transcript rather than a single segment.
type ObtainedEntry struct {
	EntryID            string  `json:"entry_id"`
	SourceSegmentIndex *int    `json:"source_segment_index"`
	Confidence         float64 `json:"confidence"`
}

// MissingEntry records a definition entry not yet satisfied.
type MissingEntry struct {
	EntryID    string     `json:"entry_id"`
	Importance Importance `json:"importance"`
}

// Finding is an unscheduled piece of information the extraction surfaced
// that no definition entry asked for.
type Finding struct {
	Topic              string `json:"topic"`
	Detail             string `json:"detail"`
	SourceSegmentIndex *int   `json:"source_segment_index"`
}

// Snapshot is one cumulative merge result. Snapshots are append-only and
// versioned; the current state of a question is always the highest version.
type Snapshot struct {
	Version   int             `json:"version"`
	Obtained  []ObtainedEntry `json:"obtained"`
	Missing   []MissingEntry  `json:"missing"`
	Findings  []Finding       `json:"findings"`
	CreatedAt time.Time       `json:"created_at"`
}

// CanProceed reports whether the question is answerable enough to navigate
// away from: true when no missing entry has blocking importance.
// Nice-to-have gaps never block progression.
func (s *Snapshot) CanProceed() bool {
	if s == nil {
		return false
	}
	for _, m := range s.Missing {
		if m.Importance.Blocking() {
			return false
		}
	}
	return true
}

// ObtainedIDs returns the set of obtained entry ids.
func (s *Snapshot) ObtainedIDs() map[string]bool {
	ids := make(map[string]bool, len(s.Obtained))
	for _, o := range s.Obtained {
		ids[o.EntryID] = true
	}
	return ids
}

// SatisfiedEntry is one definition entry the extraction reports as
// satisfied by the transcript, with the model's confidence.
type SatisfiedEntry struct {
	EntryID    string  `json:"entry_id"`
	Confidence float64 `json:"confidence"`
}

// ExtractionResult is the outcome of one extraction pass over the
// cumulative transcript.
type ExtractionResult struct {
	Satisfied []SatisfiedEntry `json:"satisfied"`
	Findings  []Finding        `json:"findings"`
}

package session

import (
	"github.com/skillsenselab/workshopkit/checklist"
)

// EventType identifies what a status event describes.
type EventType string

// Event types consumed by the presentation layer.
const (
	EventSegmentStatus EventType = "segment_status"
	EventSnapshot      EventType = "snapshot"
	EventSessionState  EventType = "session_state"
)

// Event is one status update published by the pipeline. Workers publish
// segment stage transitions and snapshot versions; the controller
// publishes session state changes. The presentation layer subscribes and
// recomputes derived state rather than sharing mutable objects.
type Event struct {
	Type     EventType `json:"type"`
	AnswerID string    `json:"answer_id,omitempty"`

	// Segment fields, set for segment_status events.
	SegmentIndex *int           `json:"segment_index,omitempty"`
	Stage        PipelineStatus `json:"stage,omitempty"`
	Error        string         `json:"error,omitempty"`

	// Snapshot, set for snapshot events.
	Snapshot *checklist.Snapshot `json:"snapshot,omitempty"`

	// State, set for session_state events.
	State State `json:"state,omitempty"`
}

// EventSink receives pipeline events. Implementations must not block;
// slow consumers are the sink's problem, not the pipeline's.
type EventSink func(Event)

func segmentEvent(answerID string, index int, stage PipelineStatus, err error) Event {
	e := Event{
		Type:         EventSegmentStatus,
		AnswerID:     answerID,
		SegmentIndex: &index,
		Stage:        stage,
	}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

func snapshotEvent(answerID string, snap *checklist.Snapshot) Event {
	return Event{Type: EventSnapshot, AnswerID: answerID, Snapshot: snap}
}

func stateEvent(answerID string, state State) Event {
	return Event{Type: EventSessionState, AnswerID: answerID, State: state}
}

package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skillsenselab/workshopkit/errors"
)

// AnswerStatus is the coarse status of a question's response.
type AnswerStatus string

// Answer statuses.
const (
	AnswerPending    AnswerStatus = "pending"
	AnswerInProgress AnswerStatus = "in_progress"
	AnswerCompleted  AnswerStatus = "completed"
)

// Answer is one question's response state: the concatenated transcript,
// respondent metadata, and coarse status.
type Answer struct {
	ID         string       `json:"id"`
	QuestionID string       `json:"question_id"`
	Respondent string       `json:"respondent,omitempty"`
	Transcript string       `json:"transcript"`
	Status     AnswerStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// NewAnswer creates a pending answer for a question.
func NewAnswer(questionID, respondent string) *Answer {
	now := time.Now().UTC()
	return &Answer{
		ID:         uuid.NewString(),
		QuestionID: questionID,
		Respondent: respondent,
		Status:     AnswerPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// AnswerStore persists answers. AppendTranscript must be a
// read-modify-write against the latest persisted value so two workers
// finishing transcription near-simultaneously cannot overwrite each
// other's text.
type AnswerStore interface {
	Create(ctx context.Context, a *Answer) error
	Get(ctx context.Context, id string) (*Answer, error)
	// AppendTranscript appends text to the answer's transcript and
	// returns the updated answer.
	AppendTranscript(ctx context.Context, id, text string) (*Answer, error)
	SetStatus(ctx context.Context, id string, status AnswerStatus) error
}

// MemoryAnswerStore is the reference in-memory AnswerStore. The
// relational CRUD store behind the workshop forms lives outside this
// module; this implementation covers single-process deployments and
// tests.
type MemoryAnswerStore struct {
	mu      sync.RWMutex
	answers map[string]*Answer
}

// NewMemoryAnswerStore creates an empty in-memory answer store.
func NewMemoryAnswerStore() *MemoryAnswerStore {
	return &MemoryAnswerStore{answers: make(map[string]*Answer)}
}

// Create stores a new answer.
func (s *MemoryAnswerStore) Create(_ context.Context, a *Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.answers[a.ID]; ok {
		return errors.AlreadyExists("answer")
	}
	cp := *a
	s.answers[a.ID] = &cp
	return nil
}

// Get returns a copy of the answer.
func (s *MemoryAnswerStore) Get(_ context.Context, id string) (*Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.answers[id]
	if !ok {
		return nil, errors.NotFound("answer", id)
	}
	cp := *a
	return &cp, nil
}

// AppendTranscript appends text under the store lock, so concurrent
// appends interleave instead of overwriting.
func (s *MemoryAnswerStore) AppendTranscript(_ context.Context, id, text string) (*Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.answers[id]
	if !ok {
		return nil, errors.NotFound("answer", id)
	}

	text = strings.TrimSpace(text)
	if text != "" {
		if a.Transcript != "" {
			a.Transcript += "\n"
		}
		a.Transcript += text
	}
	if a.Status == AnswerPending {
		a.Status = AnswerInProgress
	}
	a.UpdatedAt = time.Now().UTC()

	cp := *a
	return &cp, nil
}

// SetStatus updates the answer's coarse status.
func (s *MemoryAnswerStore) SetStatus(_ context.Context, id string, status AnswerStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.answers[id]
	if !ok {
		return errors.NotFound("answer", id)
	}
	a.Status = status
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// compile-time check
var _ AnswerStore = (*MemoryAnswerStore)(nil)

package session

import (
	"context"
	"sort"
	"sync"

	"github.com/skillsenselab/workshopkit/capture"
	"github.com/skillsenselab/workshopkit/checklist"
	"github.com/skillsenselab/workshopkit/errors"
	"github.com/skillsenselab/workshopkit/logger"
)

// ManagerDeps collects the shared collaborators every controller the
// manager opens will use. The checklist definition and respondent vary
// per answer and arrive at Open time.
type ManagerDeps struct {
	Source    func() capture.Source
	Capture   capture.Config
	Answers   AnswerStore
	Snapshots checklist.Store
	Worker    *Worker
	Events    EventSink
	Logger    *logger.Logger
}

// Manager opens and tracks one Controller per answer so the HTTP
// surface can address sessions by answer ID.
type Manager struct {
	deps ManagerDeps
	log  *logger.Logger

	mu          sync.RWMutex
	controllers map[string]*Controller
}

// NewManager creates an empty manager.
func NewManager(deps ManagerDeps) *Manager {
	return &Manager{
		deps:        deps,
		log:         deps.Logger.WithComponent("manager"),
		controllers: make(map[string]*Controller),
	}
}

// Open creates the answer and its controller. The returned controller
// is idle and ready for StartRecording.
func (m *Manager) Open(ctx context.Context, def *checklist.Definition, respondent string) (*Controller, error) {
	c, err := NewController(ControllerDeps{
		Source:     m.deps.Source,
		Capture:    m.deps.Capture,
		Definition: def,
		Respondent: respondent,
		Answers:    m.deps.Answers,
		Snapshots:  m.deps.Snapshots,
		Worker:     m.deps.Worker,
		Events:     m.deps.Events,
		Logger:     m.deps.Logger,
	})
	if err != nil {
		return nil, err
	}

	answerID, err := c.ensureAnswer(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.controllers[answerID] = c
	m.mu.Unlock()

	m.log.Info("answer session opened", logger.Fields(
		logger.FieldAnswerID, answerID,
		"question_id", def.QuestionID,
	))
	return c, nil
}

// Get returns the controller for an answer.
func (m *Manager) Get(answerID string) (*Controller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.controllers[answerID]
	if !ok {
		return nil, errors.NotFound("answer", answerID)
	}
	return c, nil
}

// AnswerIDs returns the IDs of all open answer sessions, sorted.
func (m *Manager) AnswerIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.controllers))
	for id := range m.controllers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close ends an answer session: the answer is marked completed and the
// session's controller and aggregator lock are released. Rejected while
// the controller is still recording or draining.
func (m *Manager) Close(ctx context.Context, answerID string) error {
	m.mu.Lock()
	c, ok := m.controllers[answerID]
	if !ok {
		m.mu.Unlock()
		return errors.NotFound("answer", answerID)
	}
	if st := c.State(); st != StateIdle {
		m.mu.Unlock()
		return errors.InvalidState("close answer session", string(st))
	}
	delete(m.controllers, answerID)
	m.mu.Unlock()

	if err := m.deps.Answers.SetStatus(ctx, answerID, AnswerCompleted); err != nil {
		return err
	}
	m.deps.Worker.aggregator.Release(answerID)
	m.log.Info("answer session closed", logger.Fields(logger.FieldAnswerID, answerID))
	return nil
}

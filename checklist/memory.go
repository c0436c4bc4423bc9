package checklist

import (
	"context"
	"sync"

	"github.com/skillsenselab/workshopkit/errors"
)

// MemoryStore is an in-memory Store for tests and single-process
// deployments. Snapshot logs are kept per answer and never truncated.
type MemoryStore struct {
	mu   sync.RWMutex
	logs map[string][]Snapshot
}

// NewMemoryStore creates an empty in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{logs: make(map[string][]Snapshot)}
}

// Append writes a new snapshot if expectedVersion still matches the log head.
func (s *MemoryStore) Append(_ context.Context, answerID string, snap Snapshot, expectedVersion int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logs[answerID]
	if len(log) != expectedVersion {
		return 0, errors.MergeConflict(answerID, expectedVersion)
	}

	snap.Version = expectedVersion + 1
	s.logs[answerID] = append(log, snap)
	return snap.Version, nil
}

// Latest returns the highest-version snapshot, or nil when none exists.
func (s *MemoryStore) Latest(_ context.Context, answerID string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.logs[answerID]
	if len(log) == 0 {
		return nil, nil
	}
	snap := log[len(log)-1]
	return &snap, nil
}

// History returns all snapshots in version order.
func (s *MemoryStore) History(_ context.Context, answerID string) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.logs[answerID]
	out := make([]Snapshot, len(log))
	copy(out, log)
	return out, nil
}

// compile-time check
var _ Store = (*MemoryStore)(nil)

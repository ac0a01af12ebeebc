package runstore

import (
	"context"
	"sync"
)

// MemoryStore implements ports.RunStore in process memory.
// A pending run is forgotten when the process exits.
type MemoryStore struct {
	mu       sync.Mutex
	runID    string
	failures int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Pending(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID, nil
}

func (s *MemoryStore) SavePending(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runID = runID
	s.failures = 0
	return nil
}

func (s *MemoryStore) ClearPending(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runID = ""
	s.failures = 0
	return nil
}

func (s *MemoryStore) RecordFailure(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures++
	return s.failures, nil
}

package store

import (
	"sync"
)

// MemoryStore keeps the latest snapshot in memory. Used in tests and
// when running without a checkpoint database.
type MemoryStore struct {
	mu   sync.Mutex
	snap *Snapshot
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// SaveSnapshot replaces the stored snapshot with deep copies
func (s *MemoryStore) SaveSnapshot(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := &Snapshot{TakenAt: snap.TakenAt}
	for _, node := range snap.Nodes {
		copied.Nodes = append(copied.Nodes, node.Clone())
	}
	for _, task := range snap.Tasks {
		copied.Tasks = append(copied.Tasks, task.Clone())
	}
	s.snap = copied
	return nil
}

// LoadSnapshot returns copies of the stored snapshot, or ErrNoSnapshot
func (s *MemoryStore) LoadSnapshot() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap == nil {
		return nil, ErrNoSnapshot
	}

	copied := &Snapshot{TakenAt: s.snap.TakenAt}
	for _, node := range s.snap.Nodes {
		copied.Nodes = append(copied.Nodes, node.Clone())
	}
	for _, task := range s.snap.Tasks {
		copied.Tasks = append(copied.Tasks, task.Clone())
	}
	return copied, nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}

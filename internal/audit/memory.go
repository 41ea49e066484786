package audit

import (
	"context"
	"sync"
)

var _ Store = (*MemStore)(nil)

// MemStore keeps entries in memory. Used by tests and database-less
// development runs.
type MemStore struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Append(ctx context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *entry)
	return nil
}

// Entries returns a copy of everything appended so far.
func (s *MemStore) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

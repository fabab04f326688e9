// Package ledger tracks, per conversation thread, the most recently proposed
// content of every file the assistant has changed.
package ledger

import (
	"context"
	"errors"
	"maps"
	"sync"
)

// ErrInvalidThread is returned for an empty thread id.
var ErrInvalidThread = errors.New("thread id is required")

// Store is the active changes ledger. SetActiveChanges replaces the whole
// per-thread map; GetActiveChanges returns an empty map for unknown threads.
type Store interface {
	SetActiveChanges(ctx context.Context, threadID string, changes map[string]string) error
	GetActiveChanges(ctx context.Context, threadID string) (map[string]string, error)
	ClearActiveChanges(ctx context.Context, threadID string) error
}

// MemoryStore keeps ledgers in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string]map[string]string
}

// NewMemoryStore creates an empty in-memory ledger
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[string]map[string]string)}
}

func (s *MemoryStore) SetActiveChanges(_ context.Context, threadID string, changes map[string]string) error {
	if threadID == "" {
		return ErrInvalidThread
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(changes) == 0 {
		delete(s.threads, threadID)
		return nil
	}
	s.threads[threadID] = maps.Clone(changes)
	return nil
}

func (s *MemoryStore) GetActiveChanges(_ context.Context, threadID string) (map[string]string, error) {
	if threadID == "" {
		return nil, ErrInvalidThread
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.threads[threadID]))
	maps.Copy(out, s.threads[threadID])
	return out, nil
}

func (s *MemoryStore) ClearActiveChanges(_ context.Context, threadID string) error {
	if threadID == "" {
		return ErrInvalidThread
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, threadID)
	return nil
}

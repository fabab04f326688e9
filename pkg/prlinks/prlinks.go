// Package prlinks records which conversation turn produced which pull
// request, so a turn is never published twice.
package prlinks

import (
	"context"
	"errors"
	"maps"
	"sync"
)

var (
	// ErrInvalidThread is returned for an empty thread id.
	ErrInvalidThread = errors.New("thread id is required")
	// ErrInvalidTurn is returned for an empty turn id.
	ErrInvalidTurn = errors.New("turn id is required")
)

// Registry maps (thread, turn) to a pull request URL
type Registry interface {
	SetLink(ctx context.Context, threadID, turnID, url string) error
	GetLink(ctx context.Context, threadID, turnID string) (string, bool, error)
	Links(ctx context.Context, threadID string) (map[string]string, error)
	ClearThread(ctx context.Context, threadID string) error
}

func validate(threadID, turnID string) error {
	if threadID == "" {
		return ErrInvalidThread
	}
	if turnID == "" {
		return ErrInvalidTurn
	}
	return nil
}

// MemoryRegistry keeps links in process memory
type MemoryRegistry struct {
	mu      sync.RWMutex
	threads map[string]map[string]string
}

// NewMemoryRegistry creates an empty registry
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{threads: make(map[string]map[string]string)}
}

func (r *MemoryRegistry) SetLink(_ context.Context, threadID, turnID, url string) error {
	if err := validate(threadID, turnID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	links, ok := r.threads[threadID]
	if !ok {
		links = make(map[string]string)
		r.threads[threadID] = links
	}
	links[turnID] = url
	return nil
}

func (r *MemoryRegistry) GetLink(_ context.Context, threadID, turnID string) (string, bool, error) {
	if err := validate(threadID, turnID); err != nil {
		return "", false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	url, ok := r.threads[threadID][turnID]
	return url, ok, nil
}

func (r *MemoryRegistry) Links(_ context.Context, threadID string) (map[string]string, error) {
	if threadID == "" {
		return nil, ErrInvalidThread
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.threads[threadID]))
	maps.Copy(out, r.threads[threadID])
	return out, nil
}

func (r *MemoryRegistry) ClearThread(_ context.Context, threadID string) error {
	if threadID == "" {
		return ErrInvalidThread
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.threads, threadID)
	return nil
}

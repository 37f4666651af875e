package checkpoint

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/suviet/agent/types"
)

// MemoryStore is an in-memory Store. Data is lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*Snapshot
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[string]*Snapshot)}
}

// Load implements Store.
func (s *MemoryStore) Load(ctx context.Context, threadID string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.threads[threadID]
	if !ok {
		return nil, ErrNotFound
	}
	return copySnapshot(snap), nil
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, threadID string, snap *Snapshot) error {
	stored := copySnapshot(snap)
	stored.ThreadID = threadID
	stored.UpdatedAt = time.Now()

	s.mu.Lock()
	s.threads[threadID] = stored
	s.mu.Unlock()
	return nil
}

// ListThreads implements Store.
func (s *MemoryStore) ListThreads(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.threads))
	for id := range s.threads {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, threadID string) error {
	s.mu.Lock()
	delete(s.threads, threadID)
	s.mu.Unlock()
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

func copySnapshot(snap *Snapshot) *Snapshot {
	out := &Snapshot{
		ThreadID:  snap.ThreadID,
		Messages:  make([]types.Message, len(snap.Messages)),
		UpdatedAt: snap.UpdatedAt,
	}
	copy(out.Messages, snap.Messages)
	return out
}

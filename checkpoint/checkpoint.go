// Package checkpoint persists conversation state keyed by thread id,
// enabling resumable multi-turn sessions. The orchestrator calls it at
// turn boundaries only.
//
// Supported backends:
//   - Memory: development and tests (default)
//   - Redis: distributed deployments
//   - Postgres / SQLite (GORM): durable single-store deployments
package checkpoint

import (
	"context"
	"errors"
	"time"

	"github.com/suviet/agent/types"
)

// ErrNotFound is returned by Load for unknown threads.
var ErrNotFound = errors.New("thread not found")

// Snapshot is the persisted slice of conversation state. Turn-scoped
// fields (evidence, verdicts, eval history) are deliberately absent.
type Snapshot struct {
	ThreadID  string          `json:"thread_id"`
	Messages  []types.Message `json:"messages"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Store is the checkpoint persistence contract.
type Store interface {
	// Load returns the snapshot for threadID, or ErrNotFound.
	Load(ctx context.Context, threadID string) (*Snapshot, error)

	// Save persists the snapshot for threadID, replacing any previous one.
	Save(ctx context.Context, threadID string, snap *Snapshot) error

	// ListThreads returns all known thread ids.
	ListThreads(ctx context.Context) ([]string, error)

	// Delete removes a thread. Deleting an unknown thread is not an error.
	Delete(ctx context.Context, threadID string) error

	// Close releases backend resources.
	Close() error
}

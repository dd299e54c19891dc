package store

import (
	"context"
	"database/sql"

	"github.com/phrazzld/manifold-api/internal/domain"
)

// JobHistoryStore defines the interface for the durable extraction ledger.
// One entry is appended per successfully enqueued job; entries are never
// deleted by this subsystem.
// Version: 1.0
type JobHistoryStore interface {
	// Create appends a new ledger entry.
	Create(ctx context.Context, entry *domain.JobHistoryEntry) error

	// GetByQueueJobID retrieves the entry linked to a transient queue job.
	// Returns ErrJobHistoryNotFound if no entry references the id.
	GetByQueueJobID(ctx context.Context, queueJobID string) (*domain.JobHistoryEntry, error)

	// ListHistory returns entries ordered newest first. When manifestID is
	// non-nil only that manifest's entries are returned. The limit is
	// clamped to [1,200]; callers passing 0 get the default of 50.
	ListHistory(ctx context.Context, manifestID *int64, limit int) ([]*domain.JobHistoryEntry, error)

	// RequestCancel records a cooperative cancellation request against the
	// entry for the given queue job. The consumer observes the flag; the
	// entry's status is not changed.
	RequestCancel(ctx context.Context, queueJobID, reason string) error

	// MarkCanceled sets the entry's status to canceled. Used when the
	// transient job was removed from the queue before a consumer saw it.
	MarkCanceled(ctx context.Context, queueJobID, reason string) error

	// WithTx returns a new JobHistoryStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) JobHistoryStore
}

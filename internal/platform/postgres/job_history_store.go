package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/manifold-api/internal/domain"
	"github.com/phrazzld/manifold-api/internal/platform/logger"
	"github.com/phrazzld/manifold-api/internal/store"
)

// jobHistoryColumns is the full ledger projection, shared by all reads.
const jobHistoryColumns = `
	id, manifest_id, status, llm_model_id, prompt_id, queue_job_id,
	progress, ocr_cost, llm_cost, currency, error, attempt_count,
	cancel_requested, cancel_reason, started_at, completed_at, created_at
`

// ledgerHistoryLimit bounds one page of ledger reads.
const (
	minHistoryLimit = 1
	maxHistoryLimit = 200
)

// PostgresJobHistoryStore implements the store.JobHistoryStore interface
// using PostgreSQL.
type PostgresJobHistoryStore struct {
	db store.DBTX
}

// NewPostgresJobHistoryStore creates a new PostgresJobHistoryStore.
func NewPostgresJobHistoryStore(db store.DBTX) *PostgresJobHistoryStore {
	return &PostgresJobHistoryStore{db: db}
}

// WithTx returns a new JobHistoryStore that uses the provided transaction.
func (s *PostgresJobHistoryStore) WithTx(tx *sql.Tx) store.JobHistoryStore {
	return &PostgresJobHistoryStore{db: tx}
}

// Create implements store.JobHistoryStore. A zero entry ID is assigned
// here; CreatedAt defaults to now.
func (s *PostgresJobHistoryStore) Create(ctx context.Context, entry *domain.JobHistoryEntry) error {
	log := logger.FromContext(ctx)

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO job_history (` + jobHistoryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.ManifestID,
		entry.Status,
		entry.LLMModelID,
		entry.PromptID,
		entry.QueueJobID,
		entry.Progress,
		entry.OCRCost,
		entry.LLMCost,
		entry.Currency,
		entry.Error,
		entry.AttemptCount,
		entry.CancelRequested,
		entry.CancelReason,
		entry.StartedAt,
		entry.CompletedAt,
		entry.CreatedAt,
	)
	if err != nil {
		mapped := MapError(err)
		log.Error("failed to append job history entry",
			"error", mapped,
			"manifest_id", entry.ManifestID)
		return fmt.Errorf("failed to append job history entry: %w", mapped)
	}

	log.Debug("job history entry appended",
		"entry_id", entry.ID,
		"manifest_id", entry.ManifestID,
		"status", entry.Status)
	return nil
}

// GetByQueueJobID implements store.JobHistoryStore.
func (s *PostgresJobHistoryStore) GetByQueueJobID(ctx context.Context, queueJobID string) (*domain.JobHistoryEntry, error) {
	query := `
		SELECT ` + jobHistoryColumns + `
		FROM job_history
		WHERE queue_job_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	entry, err := scanJobHistoryEntry(s.db.QueryRowContext(ctx, query, queueJobID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrJobHistoryNotFound
		}
		return nil, fmt.Errorf("failed to load job history entry: %w", MapError(err))
	}
	return entry, nil
}

// ListHistory implements store.JobHistoryStore.
func (s *PostgresJobHistoryStore) ListHistory(ctx context.Context, manifestID *int64, limit int) ([]*domain.JobHistoryEntry, error) {
	if limit < minHistoryLimit {
		limit = minHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	var (
		rows *sql.Rows
		err  error
	)
	if manifestID != nil {
		query := `
			SELECT ` + jobHistoryColumns + `
			FROM job_history
			WHERE manifest_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		`
		rows, err = s.db.QueryContext(ctx, query, *manifestID, limit)
	} else {
		query := `
			SELECT ` + jobHistoryColumns + `
			FROM job_history
			ORDER BY created_at DESC
			LIMIT $1
		`
		rows, err = s.db.QueryContext(ctx, query, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list job history: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var entries []*domain.JobHistoryEntry
	for rows.Next() {
		entry, err := scanJobHistoryEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job history row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate job history rows: %w", err)
	}
	return entries, nil
}

// RequestCancel implements store.JobHistoryStore.
func (s *PostgresJobHistoryStore) RequestCancel(ctx context.Context, queueJobID, reason string) error {
	query := `
		UPDATE job_history
		SET cancel_requested = TRUE, cancel_reason = $2
		WHERE queue_job_id = $1
	`

	result, err := s.db.ExecContext(ctx, query, queueJobID, reason)
	if err != nil {
		return fmt.Errorf("failed to record cancellation request: %w", MapError(err))
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return store.ErrJobHistoryNotFound
	}
	return nil
}

// MarkCanceled implements store.JobHistoryStore.
func (s *PostgresJobHistoryStore) MarkCanceled(ctx context.Context, queueJobID, reason string) error {
	query := `
		UPDATE job_history
		SET status = $2, cancel_requested = TRUE, cancel_reason = $3, completed_at = $4
		WHERE queue_job_id = $1
	`

	result, err := s.db.ExecContext(ctx, query,
		queueJobID,
		domain.JobHistoryStatusCanceled,
		reason,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark job history entry canceled: %w", MapError(err))
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return store.ErrJobHistoryNotFound
	}
	return nil
}

// scanJobHistoryEntry reads one row of the full ledger projection.
func scanJobHistoryEntry(row rowScanner) (*domain.JobHistoryEntry, error) {
	var entry domain.JobHistoryEntry
	err := row.Scan(
		&entry.ID,
		&entry.ManifestID,
		&entry.Status,
		&entry.LLMModelID,
		&entry.PromptID,
		&entry.QueueJobID,
		&entry.Progress,
		&entry.OCRCost,
		&entry.LLMCost,
		&entry.Currency,
		&entry.Error,
		&entry.AttemptCount,
		&entry.CancelRequested,
		&entry.CancelReason,
		&entry.StartedAt,
		&entry.CompletedAt,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

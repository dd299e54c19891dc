package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobHistoryStatus represents the durable status of a recorded extraction
// attempt. Unlike the live queue state, history status is written by this
// subsystem and by the queue consumers and survives queue retention.
type JobHistoryStatus string

// Possible job history status values
const (
	JobHistoryStatusQueued     JobHistoryStatus = "queued"
	JobHistoryStatusProcessing JobHistoryStatus = "processing"
	JobHistoryStatusCompleted  JobHistoryStatus = "completed"
	JobHistoryStatusFailed     JobHistoryStatus = "failed"
	JobHistoryStatusCanceled   JobHistoryStatus = "canceled"
)

// JobHistoryEntry is the durable ledger record of one extraction attempt.
// Exactly one entry is appended per successfully enqueued job; the entry
// outlives the transient queue job, which is pruned by retention policy.
// The queue remains authoritative for live progress while the job exists.
type JobHistoryEntry struct {
	// ID is the ledger row's unique identifier
	ID uuid.UUID

	// ManifestID is the extraction target
	ManifestID int64

	// Status is the durable status of the attempt
	Status JobHistoryStatus

	// LLMModelID is the model the job was enqueued with, if resolved
	LLMModelID *string

	// PromptID is the prompt the job was enqueued with, if any
	PromptID *int64

	// QueueJobID links back to the transient queue job; nil once unknown
	QueueJobID *string

	// Progress is the last observed progress, 0-100
	Progress int

	// OCRCost is the text-extraction cost attributed to the attempt
	OCRCost *float64

	// LLMCost is the language-model cost attributed to the attempt
	LLMCost *float64

	// Currency is the ISO currency code for the cost fields
	Currency string

	// Error holds the failure message for failed attempts
	Error string

	// AttemptCount is the number of delivery attempts the queue has made
	AttemptCount int

	// CancelRequested records that cancellation was requested while the
	// job was active; consumers observe it cooperatively
	CancelRequested bool

	// CancelReason is the caller-supplied cancellation reason, if any
	CancelReason string

	// StartedAt is when a consumer first picked the job up
	StartedAt *time.Time

	// CompletedAt is when the job reached a terminal state
	CompletedAt *time.Time

	// CreatedAt is when the entry was appended at enqueue time
	CreatedAt time.Time
}

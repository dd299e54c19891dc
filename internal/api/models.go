package api

import (
	"encoding/json"
	"time"

	"github.com/phrazzld/manifold-api/internal/domain"
	"github.com/phrazzld/manifold-api/internal/queue"
	"github.com/phrazzld/manifold-api/internal/service"
)

// Common request/response structures

// ExtractRequest is the payload for single-manifest extraction.
type ExtractRequest struct {
	LLMModelID *string `json:"llmModelId" validate:"omitempty,min=1"`
	PromptID   *int64  `json:"promptId"   validate:"omitempty,gt=0"`
}

// BulkExtractRequest is the payload for multi-manifest extraction.
type BulkExtractRequest struct {
	ManifestIDs []int64 `json:"manifestIds" validate:"required,min=1,dive,gt=0"`
	LLMModelID  *string `json:"llmModelId"  validate:"omitempty,min=1"`
	PromptID    *int64  `json:"promptId"    validate:"omitempty,gt=0"`
}

// FilteredExtractRequest is the payload for group-filtered extraction.
type FilteredExtractRequest struct {
	Statuses          []string `json:"statuses"`
	Search            string   `json:"search"`
	IncludeCompleted  bool     `json:"includeCompleted"`
	IncludeProcessing bool     `json:"includeProcessing"`
	LLMModelID        *string  `json:"llmModelId"      validate:"omitempty,min=1"`
	PromptID          *int64   `json:"promptId"        validate:"omitempty,gt=0"`
	TextExtractorID   *string  `json:"textExtractorId" validate:"omitempty,min=1"`
}

// ReExtractFieldRequest is the payload for field-level re-extraction.
type ReExtractFieldRequest struct {
	FieldName         string  `json:"fieldName"         validate:"required,min=1"`
	LLMModelID        *string `json:"llmModelId"        validate:"omitempty,min=1"`
	PromptID          *int64  `json:"promptId"          validate:"omitempty,gt=0"`
	CustomPrompt      *string `json:"customPrompt"      validate:"omitempty,min=1"`
	PreviewOnly       bool    `json:"previewOnly"`
	IncludeOCRContext *bool   `json:"includeOcrContext"`
}

// ReExtractRequest is the payload for full manifest re-extraction, with an
// optional field scope.
type ReExtractRequest struct {
	FieldName  string  `json:"fieldName"  validate:"omitempty,min=1"`
	LLMModelID *string `json:"llmModelId" validate:"omitempty,min=1"`
	PromptID   *int64  `json:"promptId"   validate:"omitempty,gt=0"`
}

// RefreshOCRRequest is the payload for re-running text recognition.
type RefreshOCRRequest struct {
	TextExtractorID *string `json:"textExtractorId" validate:"omitempty,min=1"`
}

// CancelJobRequest is the payload for job cancellation.
type CancelJobRequest struct {
	Reason string `json:"reason"`
}

// WarmupRequest is the payload for cache warmup. When ManifestIDs is set
// those manifests are warmed; otherwise the most recent Limit manifests.
type WarmupRequest struct {
	ManifestIDs []int64 `json:"manifestIds" validate:"omitempty,dive,gt=0"`
	Limit       int     `json:"limit"       validate:"omitempty,gte=0,lte=1000"`
}

// ExtractResponse is the response for single-job extraction endpoints.
type ExtractResponse struct {
	JobID string `json:"jobId"`
}

// BatchJobResponse pairs one job with its target manifest.
type BatchJobResponse struct {
	JobID      string `json:"jobId"`
	ManifestID int64  `json:"manifestId"`
}

// BatchExtractResponse is the response for bulk and filtered extraction.
type BatchExtractResponse struct {
	JobID         string             `json:"jobId"`
	JobIDs        []string           `json:"jobIds"`
	Jobs          []BatchJobResponse `json:"jobs"`
	ManifestCount int                `json:"manifestCount"`
}

// ReExtractFieldResponse is the response for field-level re-extraction.
type ReExtractFieldResponse struct {
	JobID      string                     `json:"jobId,omitempty"`
	FieldName  string                     `json:"fieldName"`
	OCRPreview *service.OCRContextPreview `json:"ocrPreview,omitempty"`
}

// JobResponse is the snapshot of one transient queue job.
type JobResponse struct {
	JobID      string          `json:"jobId"`
	ManifestID int64           `json:"manifestId"`
	Type       string          `json:"type"`
	State      string          `json:"state"`
	Progress   int             `json:"progress"`
	Data       json.RawMessage `json:"data,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Attempts   int             `json:"attempts"`
}

// JobListResponse is one page of jobs.
type JobListResponse struct {
	Items  []JobResponse `json:"items"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
	Total  int           `json:"total"`
}

// StatsResponse reports aggregate per-state job counts.
type StatsResponse struct {
	Active    int  `json:"active"`
	Waiting   int  `json:"waiting"`
	Delayed   int  `json:"delayed"`
	Paused    int  `json:"paused"`
	Completed int  `json:"completed"`
	Failed    int  `json:"failed"`
	IsPaused  bool `json:"isPaused"`
}

// CancelJobResponse reports the outcome of a cancellation request.
type CancelJobResponse struct {
	Canceled         bool   `json:"canceled"`
	RemovedFromQueue bool   `json:"removedFromQueue"`
	State            string `json:"state"`
}

// PausedResponse reports the queue-wide pause flag.
type PausedResponse struct {
	Paused bool `json:"paused"`
}

// HistoryEntryResponse is one durable ledger entry.
type HistoryEntryResponse struct {
	ID              string     `json:"id"`
	ManifestID      int64      `json:"manifestId"`
	Status          string     `json:"status"`
	LLMModelID      *string    `json:"llmModelId,omitempty"`
	PromptID        *int64     `json:"promptId,omitempty"`
	QueueJobID      *string    `json:"queueJobId,omitempty"`
	Progress        int        `json:"progress"`
	OCRCost         *float64   `json:"ocrCost,omitempty"`
	LLMCost         *float64   `json:"llmCost,omitempty"`
	Currency        string     `json:"currency,omitempty"`
	Error           string     `json:"error,omitempty"`
	AttemptCount    int        `json:"attemptCount"`
	CancelRequested bool       `json:"cancelRequested"`
	CancelReason    string     `json:"cancelReason,omitempty"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// HistoryResponse is one page of ledger entries, newest first.
type HistoryResponse struct {
	Items []HistoryEntryResponse `json:"items"`
}

// WarmupResponse reports how many cache entries were written.
type WarmupResponse struct {
	Warmed int `json:"warmed"`
}

// jobToResponse converts a queue.JobInfo to its response shape.
func jobToResponse(job *queue.JobInfo) JobResponse {
	return JobResponse{
		JobID:      job.JobID,
		ManifestID: job.ManifestID,
		Type:       job.Type,
		State:      string(job.State),
		Progress:   job.Progress,
		Data:       job.Data,
		Result:     job.Result,
		Attempts:   job.Attempts,
	}
}

// historyEntryToResponse converts a ledger entry to its response shape.
func historyEntryToResponse(entry *domain.JobHistoryEntry) HistoryEntryResponse {
	return HistoryEntryResponse{
		ID:              entry.ID.String(),
		ManifestID:      entry.ManifestID,
		Status:          string(entry.Status),
		LLMModelID:      entry.LLMModelID,
		PromptID:        entry.PromptID,
		QueueJobID:      entry.QueueJobID,
		Progress:        entry.Progress,
		OCRCost:         entry.OCRCost,
		LLMCost:         entry.LLMCost,
		Currency:        entry.Currency,
		Error:           entry.Error,
		AttemptCount:    entry.AttemptCount,
		CancelRequested: entry.CancelRequested,
		CancelReason:    entry.CancelReason,
		StartedAt:       entry.StartedAt,
		CompletedAt:     entry.CompletedAt,
		CreatedAt:       entry.CreatedAt,
	}
}

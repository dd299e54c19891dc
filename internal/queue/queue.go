// Package queue defines the work queue port: the abstraction boundary
// through which extraction and OCR-refresh jobs are enqueued, looked up,
// and canceled. All orchestration code depends only on the interfaces in
// this package; concrete backends live in internal/platform/redisq and in
// the in-memory implementation used for tests.
package queue

import (
	"context"
	"encoding/json"
)

// Job type names carried on every queued job.
const (
	// JobTypeExtraction processes a manifest through the LLM extraction
	// pipeline.
	JobTypeExtraction = "process_manifest"

	// JobTypeOCRRefresh re-runs text recognition for a manifest.
	JobTypeOCRRefresh = "refresh_ocr"
)

// JobState is the closed set of live queue states exposed to callers.
type JobState string

// Possible job states
const (
	JobStateWaiting   JobState = "waiting"
	JobStateActive    JobState = "active"
	JobStateDelayed   JobState = "delayed"
	JobStatePaused    JobState = "paused"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
)

// Terminal reports whether a job in this state will never run again.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// ExtractionJobRequest carries the parameters for one extraction job.
// Optional fields are nil when not supplied; the port does not resolve
// defaults — that is the orchestrator's responsibility.
type ExtractionJobRequest struct {
	ManifestID         int64
	LLMModelID         *string
	PromptID           *int64
	FieldName          *string
	CustomPrompt       *string
	TextContextSnippet *string
}

// OCRRefreshJobRequest carries the parameters for one OCR-refresh job.
type OCRRefreshJobRequest struct {
	ManifestID      int64
	TextExtractorID *string
}

// CancelResult reports the outcome of a cancellation request.
// Canceled means the request was accepted, not that work has stopped:
// jobs still waiting are removed outright (RemovedFromQueue=true), while
// active jobs only get a cooperative signal the consumer must observe.
type CancelResult struct {
	Canceled         bool
	RemovedFromQueue bool
	State            string
}

// JobInfo is a point-in-time snapshot of a transient queue job.
type JobInfo struct {
	JobID      string
	ManifestID int64
	Type       string
	State      JobState
	Progress   int
	Data       json.RawMessage
	Result     json.RawMessage
	Attempts   int
}

// Stats holds aggregate per-state job counts plus the queue-wide pause flag.
type Stats struct {
	Active    int
	Waiting   int
	Delayed   int
	Paused    int
	Completed int
	Failed    int
	IsPaused  bool
}

// ListFilters narrows and paginates job listings.
type ListFilters struct {
	// Status accepts caller-facing synonyms (queued/pending for waiting,
	// processing/running for active); empty means all states.
	Status string

	// ProjectID restricts to jobs whose manifest belongs to the project.
	ProjectID *int64

	// Limit is clamped to [1,200]. The default of 25 for an omitted
	// parameter is applied at the API boundary.
	Limit int

	// Offset is clamped to >= 0.
	Offset int
}

// ListResult is one page of jobs. Total is the full matching count when no
// project filter is applied; with a project filter it is only the returned
// item count (see the listing service documentation).
type ListResult struct {
	Items  []*JobInfo
	Limit  int
	Offset int
	Total  int
}

// JobQueue is the work queue port. Enqueue calls are safe to issue once
// per logical unit of work; the port does not deduplicate.
// Version: 1.0
type JobQueue interface {
	// EnqueueExtractionJob schedules one extraction job and returns the
	// queue-issued job id. Exactly one ledger entry is appended per
	// successful enqueue.
	EnqueueExtractionJob(ctx context.Context, req ExtractionJobRequest) (string, error)

	// EnqueueOCRRefreshJob schedules one OCR-refresh job and returns the
	// queue-issued job id.
	EnqueueOCRRefreshJob(ctx context.Context, req OCRRefreshJobRequest) (string, error)

	// RequestCancelJob attempts to stop a job that has not reached a
	// terminal state. Cancelling an already-terminal job is idempotent:
	// the terminal state is reported and no error is returned.
	RequestCancelJob(ctx context.Context, userID int64, jobID string, reason string) (*CancelResult, error)
}

// JobReader provides read access to transient queue jobs and aggregates.
// Version: 1.0
type JobReader interface {
	// GetJob returns a snapshot of the job with the given id.
	// Returns ErrJobNotFound if the queue no longer knows the id.
	GetJob(ctx context.Context, jobID string) (*JobInfo, error)

	// ListJobs returns one page of jobs matching the filters.
	ListJobs(ctx context.Context, filters ListFilters) (*ListResult, error)

	// GetStats returns aggregate per-state counts and the pause flag.
	GetStats(ctx context.Context) (*Stats, error)
}

// QueueController toggles queue-wide processing.
// Version: 1.0
type QueueController interface {
	// Pause stops consumers from picking up new jobs.
	Pause(ctx context.Context) (bool, error)

	// Resume re-enables processing. Returns the resulting paused flag.
	Resume(ctx context.Context) (bool, error)
}

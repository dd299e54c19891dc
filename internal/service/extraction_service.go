package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/manifold-api/internal/async"
	"github.com/phrazzld/manifold-api/internal/domain"
	"github.com/phrazzld/manifold-api/internal/queue"
	"github.com/phrazzld/manifold-api/internal/store"
)

// ExtractOptions carries the optional parameters for single extraction.
type ExtractOptions struct {
	LLMModelID *string
	PromptID   *int64
}

// BulkExtractOptions carries the parameters for bulk extraction.
type BulkExtractOptions struct {
	ManifestIDs []int64
	LLMModelID  *string
	PromptID    *int64
}

// FilteredExtractOptions carries the parameters for group-filtered
// extraction.
type FilteredExtractOptions struct {
	Filters         store.ExtractionFilters
	Behavior        store.ExtractionBehavior
	LLMModelID      *string
	PromptID        *int64
	TextExtractorID *string
}

// RefreshOCROptions carries the parameters for re-running text
// recognition. An explicit extractor wins over the manifest's pinned one.
type RefreshOCROptions struct {
	TextExtractorID *string
}

// ReExtractFieldOptions carries the parameters for field-level
// re-extraction. IncludeOCRContext defaults to true when nil.
type ReExtractFieldOptions struct {
	FieldName         string
	LLMModelID        *string
	PromptID          *int64
	CustomPrompt      *string
	PreviewOnly       bool
	IncludeOCRContext *bool
}

// ExtractResult is the response for single-manifest extraction.
type ExtractResult struct {
	JobID string
}

// BatchJob pairs one enqueued job with its target manifest.
type BatchJob struct {
	JobID      string
	ManifestID int64
}

// BatchExtractResult is the response shape shared by bulk and filtered
// extraction. JobID is a synthesized batch identifier for display and
// grouping only; it is not a queue entity and carries no uniqueness
// guarantee across rapid repeated calls within the same millisecond.
type BatchExtractResult struct {
	JobID         string
	JobIDs        []string
	Jobs          []BatchJob
	ManifestCount int
}

// ReExtractFieldResult is the response for field-level re-extraction.
// JobID is empty when only a preview was requested.
type ReExtractFieldResult struct {
	JobID      string
	FieldName  string
	OCRPreview *OCRContextPreview
}

// ExtractionService translates extraction requests into work queue calls,
// resolving the effective model id and fanning bulk requests out into one
// job per manifest.
// Version: 1.0
type ExtractionService interface {
	// ExtractSingle enqueues one extraction job for a manifest.
	ExtractSingle(ctx context.Context, userID, manifestID int64, opts ExtractOptions) (*ExtractResult, error)

	// ExtractBulk enqueues one extraction job per target manifest, in the
	// order the manifests were resolved.
	ExtractBulk(ctx context.Context, userID int64, opts BulkExtractOptions) (*BatchExtractResult, error)

	// ExtractFiltered selects a group's manifests by filter and enqueues
	// one job per match, optionally pinning a text extractor first.
	ExtractFiltered(ctx context.Context, userID, groupID int64, opts FilteredExtractOptions) (*BatchExtractResult, error)

	// ReExtract enqueues one extraction job scoped to a single field.
	ReExtract(ctx context.Context, userID, manifestID int64, opts ReExtractFieldOptions) (*ExtractResult, error)

	// ReExtractField builds a field-scoped OCR context preview and, unless
	// PreviewOnly is set, enqueues one extraction job carrying it.
	ReExtractField(ctx context.Context, userID, manifestID int64, opts ReExtractFieldOptions) (*ReExtractFieldResult, error)

	// RefreshOCR enqueues a job that re-runs text recognition for a
	// manifest.
	RefreshOCR(ctx context.Context, userID, manifestID int64, opts RefreshOCROptions) (*ExtractResult, error)
}

// ExtractionServiceError wraps errors from the extraction service with
// context.
type ExtractionServiceError struct {
	// Operation is the operation that failed (e.g., "extract_bulk")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ExtractionServiceError.
func (e *ExtractionServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("extraction service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ExtractionServiceError) Unwrap() error {
	return e.Err
}

// newExtractionServiceError wraps an error with operation context. Known
// sentinel errors pass through unwrapped so callers can match them.
func newExtractionServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrOCRResultRequired) ||
		errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, queue.ErrJobNotFound) ||
		errors.Is(err, queue.ErrQueueProcessing) {
		return err
	}
	return &ExtractionServiceError{Operation: operation, Message: message, Err: err}
}

// extractionServiceImpl implements the ExtractionService interface
type extractionServiceImpl struct {
	manifests store.ManifestStore
	jobQueue  queue.JobQueue
	logger    *slog.Logger
}

// NewExtractionService creates an ExtractionService with the given
// collaborators.
func NewExtractionService(manifests store.ManifestStore, jobQueue queue.JobQueue, logger *slog.Logger) ExtractionService {
	return &extractionServiceImpl{
		manifests: manifests,
		jobQueue:  jobQueue,
		logger:    logger,
	}
}

// ExtractSingle implements ExtractionService.
func (s *extractionServiceImpl) ExtractSingle(ctx context.Context, userID, manifestID int64, opts ExtractOptions) (*ExtractResult, error) {
	manifest, err := s.manifests.FindOne(ctx, userID, manifestID)
	if err != nil {
		return nil, newExtractionServiceError("extract_single", "failed to load manifest", err)
	}

	jobID, err := s.jobQueue.EnqueueExtractionJob(ctx, queue.ExtractionJobRequest{
		ManifestID: manifestID,
		LLMModelID: resolveModelID(opts.LLMModelID, manifest.ProjectLLMModelID),
		PromptID:   opts.PromptID,
	})
	if err != nil {
		return nil, newExtractionServiceError("extract_single", "failed to enqueue job", err)
	}

	return &ExtractResult{JobID: jobID}, nil
}

// ExtractBulk implements ExtractionService. All target manifests share one
// resolved model id, taken from the first loaded manifest's project when
// no explicit model is given. The fan-out is all-or-nothing: the first
// enqueue failure fails the whole call.
func (s *extractionServiceImpl) ExtractBulk(ctx context.Context, userID int64, opts BulkExtractOptions) (*BatchExtractResult, error) {
	manifests, err := s.manifests.FindManyByIDs(ctx, userID, opts.ManifestIDs)
	if err != nil {
		return nil, newExtractionServiceError("extract_bulk", "failed to load manifests", err)
	}

	var projectDefault *string
	if len(manifests) > 0 {
		projectDefault = manifests[0].ProjectLLMModelID
	}
	modelID := resolveModelID(opts.LLMModelID, projectDefault)

	return s.fanOut(ctx, "extract_bulk", manifests, modelID, opts.PromptID)
}

// ExtractFiltered implements ExtractionService. When a text extractor
// override is supplied it is applied to every matched manifest before any
// job is enqueued, so consumers observe the override.
func (s *extractionServiceImpl) ExtractFiltered(ctx context.Context, userID, groupID int64, opts FilteredExtractOptions) (*BatchExtractResult, error) {
	group, err := s.manifests.GetGroup(ctx, userID, groupID)
	if err != nil {
		return nil, newExtractionServiceError("extract_filtered", "failed to load group", err)
	}
	modelID := resolveModelID(opts.LLMModelID, group.ProjectLLMModelID)

	manifests, err := s.manifests.FindForFilteredExtraction(ctx, userID, groupID, opts.Filters, opts.Behavior)
	if err != nil {
		return nil, newExtractionServiceError("extract_filtered", "failed to select manifests", err)
	}

	if opts.TextExtractorID != nil {
		ids := make([]int64, len(manifests))
		for i, manifest := range manifests {
			ids[i] = manifest.ID
		}
		if err := s.manifests.SetTextExtractor(ctx, userID, groupID, ids, *opts.TextExtractorID); err != nil {
			return nil, newExtractionServiceError("extract_filtered", "failed to set text extractor", err)
		}
	}

	return s.fanOut(ctx, "extract_filtered", manifests, modelID, opts.PromptID)
}

// fanOut enqueues one extraction job per manifest with unordered concurrent
// dispatch, relying on the queue's own backpressure instead of a caller-side
// cap. Every enqueue is attempted even when one fails; the first recorded
// failure then fails the whole call. Results stay aligned with the manifest
// order.
func (s *extractionServiceImpl) fanOut(ctx context.Context, operation string, manifests []*domain.Manifest, modelID *string, promptID *int64) (*BatchExtractResult, error) {
	results := async.Map(ctx, manifests, len(manifests),
		func(ctx context.Context, manifest *domain.Manifest, _ int) (string, error) {
			return s.jobQueue.EnqueueExtractionJob(ctx, queue.ExtractionJobRequest{
				ManifestID: manifest.ID,
				LLMModelID: modelID,
				PromptID:   promptID,
			})
		})

	jobIDs := make([]string, len(manifests))
	jobs := make([]BatchJob, len(manifests))
	for i, result := range results {
		if result.Err != nil {
			return nil, newExtractionServiceError(operation, "failed to enqueue job", result.Err)
		}
		jobIDs[i] = result.Value
		jobs[i] = BatchJob{JobID: result.Value, ManifestID: manifests[i].ID}
	}

	batchID := newBatchID(len(jobIDs))
	s.logger.Info("enqueued extraction batch",
		"batch_id", batchID,
		"manifest_count", len(manifests))

	return &BatchExtractResult{
		JobID:         batchID,
		JobIDs:        jobIDs,
		Jobs:          jobs,
		ManifestCount: len(manifests),
	}, nil
}

// ReExtract implements ExtractionService.
func (s *extractionServiceImpl) ReExtract(ctx context.Context, userID, manifestID int64, opts ReExtractFieldOptions) (*ExtractResult, error) {
	if _, err := s.manifests.FindOne(ctx, userID, manifestID); err != nil {
		return nil, newExtractionServiceError("re_extract", "failed to load manifest", err)
	}

	req := queue.ExtractionJobRequest{
		ManifestID: manifestID,
		LLMModelID: opts.LLMModelID,
		PromptID:   opts.PromptID,
	}
	if opts.FieldName != "" {
		fieldName := opts.FieldName
		req.FieldName = &fieldName
	}

	jobID, err := s.jobQueue.EnqueueExtractionJob(ctx, req)
	if err != nil {
		return nil, newExtractionServiceError("re_extract", "failed to enqueue job", err)
	}
	return &ExtractResult{JobID: jobID}, nil
}

// ReExtractField implements ExtractionService. A persisted recognition
// result is a precondition: without one the preview cannot be built and
// nothing is enqueued.
func (s *extractionServiceImpl) ReExtractField(ctx context.Context, userID, manifestID int64, opts ReExtractFieldOptions) (*ReExtractFieldResult, error) {
	manifest, err := s.manifests.FindOne(ctx, userID, manifestID)
	if err != nil {
		return nil, newExtractionServiceError("re_extract_field", "failed to load manifest", err)
	}

	if !manifest.HasOCRResult() {
		return nil, ErrOCRResultRequired
	}

	preview := BuildOCRContextPreview(manifest, opts.FieldName)

	if opts.PreviewOnly {
		return &ReExtractFieldResult{FieldName: opts.FieldName, OCRPreview: preview}, nil
	}

	includeContext := opts.IncludeOCRContext == nil || *opts.IncludeOCRContext
	fieldName := opts.FieldName
	req := queue.ExtractionJobRequest{
		ManifestID:   manifestID,
		LLMModelID:   opts.LLMModelID,
		PromptID:     opts.PromptID,
		FieldName:    &fieldName,
		CustomPrompt: opts.CustomPrompt,
	}
	if includeContext && preview != nil {
		snippet := preview.Snippet
		req.TextContextSnippet = &snippet
	}

	jobID, err := s.jobQueue.EnqueueExtractionJob(ctx, req)
	if err != nil {
		return nil, newExtractionServiceError("re_extract_field", "failed to enqueue job", err)
	}

	return &ReExtractFieldResult{JobID: jobID, FieldName: opts.FieldName, OCRPreview: preview}, nil
}

// RefreshOCR implements ExtractionService.
func (s *extractionServiceImpl) RefreshOCR(ctx context.Context, userID, manifestID int64, opts RefreshOCROptions) (*ExtractResult, error) {
	manifest, err := s.manifests.FindOne(ctx, userID, manifestID)
	if err != nil {
		return nil, newExtractionServiceError("refresh_ocr", "failed to load manifest", err)
	}

	extractorID := opts.TextExtractorID
	if extractorID == nil {
		extractorID = manifest.TextExtractorID
	}

	jobID, err := s.jobQueue.EnqueueOCRRefreshJob(ctx, queue.OCRRefreshJobRequest{
		ManifestID:      manifestID,
		TextExtractorID: extractorID,
	})
	if err != nil {
		return nil, newExtractionServiceError("refresh_ocr", "failed to enqueue job", err)
	}
	return &ExtractResult{JobID: jobID}, nil
}

// resolveModelID applies the model fallback rule: the explicit value wins,
// then the project default, otherwise the model stays unset and the
// consumer picks its own default.
func resolveModelID(explicit, projectDefault *string) *string {
	if explicit != nil {
		return explicit
	}
	return projectDefault
}

// newBatchID synthesizes a grouping identifier for a fan-out. Opaque to
// callers; not unique across calls within the same millisecond.
func newBatchID(count int) string {
	return fmt.Sprintf("batch_%d_%d", time.Now().UnixMilli(), count)
}

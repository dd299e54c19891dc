package service

import (
	"context"
	"log/slog"

	"github.com/phrazzld/manifold-api/internal/domain"
	"github.com/phrazzld/manifold-api/internal/queue"
	"github.com/phrazzld/manifold-api/internal/store"
)

// JobsService provides the read side of the queue: job lookup, listing,
// aggregate stats, queue pause/resume, and the durable history ledger.
// Version: 1.0
type JobsService interface {
	// GetJob returns a snapshot of a transient queue job.
	GetJob(ctx context.Context, jobID string) (*queue.JobInfo, error)

	// ListJobs returns one page of jobs matching the filters.
	ListJobs(ctx context.Context, filters queue.ListFilters) (*queue.ListResult, error)

	// GetStats returns aggregate per-state counts and the pause flag.
	GetStats(ctx context.Context) (*queue.Stats, error)

	// PauseQueue stops queue-wide processing; returns the paused flag.
	PauseQueue(ctx context.Context) (bool, error)

	// ResumeQueue re-enables processing; returns the paused flag.
	ResumeQueue(ctx context.Context) (bool, error)

	// GetHistory returns ledger entries, newest first. A nil manifestID
	// returns entries for all manifests. The limit is clamped to [1,200];
	// an explicit 0 clamps to 1. The default page size of 50 for an
	// omitted parameter is applied at the API boundary.
	GetHistory(ctx context.Context, manifestID *int64, limit int) ([]*domain.JobHistoryEntry, error)
}

// jobsServiceImpl implements the JobsService interface
type jobsServiceImpl struct {
	reader     queue.JobReader
	controller queue.QueueController
	history    store.JobHistoryStore
	logger     *slog.Logger
}

// NewJobsService creates a JobsService over the given queue reader,
// controller and ledger.
func NewJobsService(
	reader queue.JobReader,
	controller queue.QueueController,
	history store.JobHistoryStore,
	logger *slog.Logger,
) JobsService {
	return &jobsServiceImpl{
		reader:     reader,
		controller: controller,
		history:    history,
		logger:     logger,
	}
}

// GetJob implements JobsService.
func (s *jobsServiceImpl) GetJob(ctx context.Context, jobID string) (*queue.JobInfo, error) {
	return s.reader.GetJob(ctx, jobID)
}

// ListJobs implements JobsService.
func (s *jobsServiceImpl) ListJobs(ctx context.Context, filters queue.ListFilters) (*queue.ListResult, error) {
	return s.reader.ListJobs(ctx, filters)
}

// GetStats implements JobsService.
func (s *jobsServiceImpl) GetStats(ctx context.Context) (*queue.Stats, error) {
	return s.reader.GetStats(ctx)
}

// PauseQueue implements JobsService.
func (s *jobsServiceImpl) PauseQueue(ctx context.Context) (bool, error) {
	paused, err := s.controller.Pause(ctx)
	if err != nil {
		return false, err
	}
	s.logger.Info("extraction queue paused")
	return paused, nil
}

// ResumeQueue implements JobsService.
func (s *jobsServiceImpl) ResumeQueue(ctx context.Context) (bool, error) {
	paused, err := s.controller.Resume(ctx)
	if err != nil {
		return false, err
	}
	s.logger.Info("extraction queue resumed")
	return paused, nil
}

// GetHistory implements JobsService.
func (s *jobsServiceImpl) GetHistory(ctx context.Context, manifestID *int64, limit int) ([]*domain.JobHistoryEntry, error) {
	return s.history.ListHistory(ctx, manifestID, queue.NormalizeLimit(limit))
}

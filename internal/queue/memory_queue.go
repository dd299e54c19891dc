package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// MemoryJobQueue is a deterministic in-memory implementation of the work
// queue port. It backs unit tests and local runs without a Redis instance;
// the contract matches the durable adapter exactly.
type MemoryJobQueue struct {
	mu       sync.Mutex
	nextID   int
	jobs     map[string]*JobInfo
	cancels  map[string]string
	projects map[int64]int64
	paused   bool

	// EnqueueErr, when set, makes every enqueue call fail with the given
	// error. Used to exercise failure paths.
	EnqueueErr error

	// FailManifestID, when nonzero, makes enqueues targeting that manifest
	// fail while others proceed. Used to exercise partial-failure paths.
	FailManifestID int64

	// ExtractionRequests records every extraction enqueue in call order.
	ExtractionRequests []ExtractionJobRequest

	// OCRRefreshRequests records every OCR-refresh enqueue in call order.
	OCRRefreshRequests []OCRRefreshJobRequest
}

// NewMemoryJobQueue creates an empty in-memory queue.
func NewMemoryJobQueue() *MemoryJobQueue {
	return &MemoryJobQueue{
		jobs:     make(map[string]*JobInfo),
		cancels:  make(map[string]string),
		projects: make(map[int64]int64),
	}
}

// EnqueueExtractionJob implements JobQueue.
func (q *MemoryJobQueue) EnqueueExtractionJob(ctx context.Context, req ExtractionJobRequest) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.EnqueueErr != nil {
		return "", NewProcessingError("enqueue extraction job", q.EnqueueErr)
	}
	if q.FailManifestID != 0 && req.ManifestID == q.FailManifestID {
		return "", NewProcessingError("enqueue extraction job",
			fmt.Errorf("manifest %d rejected", req.ManifestID))
	}

	q.ExtractionRequests = append(q.ExtractionRequests, req)
	data, err := json.Marshal(req)
	if err != nil {
		return "", NewProcessingError("marshal extraction payload", err)
	}
	return q.add(JobTypeExtraction, req.ManifestID, data), nil
}

// EnqueueOCRRefreshJob implements JobQueue.
func (q *MemoryJobQueue) EnqueueOCRRefreshJob(ctx context.Context, req OCRRefreshJobRequest) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.EnqueueErr != nil {
		return "", NewProcessingError("enqueue OCR refresh job", q.EnqueueErr)
	}
	if q.FailManifestID != 0 && req.ManifestID == q.FailManifestID {
		return "", NewProcessingError("enqueue OCR refresh job",
			fmt.Errorf("manifest %d rejected", req.ManifestID))
	}

	q.OCRRefreshRequests = append(q.OCRRefreshRequests, req)
	data, err := json.Marshal(req)
	if err != nil {
		return "", NewProcessingError("marshal OCR refresh payload", err)
	}
	return q.add(JobTypeOCRRefresh, req.ManifestID, data), nil
}

// add assumes q.mu is held.
func (q *MemoryJobQueue) add(jobType string, manifestID int64, data json.RawMessage) string {
	q.nextID++
	id := strconv.Itoa(q.nextID)
	q.jobs[id] = &JobInfo{
		JobID:      id,
		ManifestID: manifestID,
		Type:       jobType,
		State:      JobStateWaiting,
		Data:       data,
	}
	return id
}

// RequestCancelJob implements JobQueue. Terminal jobs report their state
// without error; waiting jobs are removed outright; active jobs get a
// cancellation signal recorded for cooperative observation.
func (q *MemoryJobQueue) RequestCancelJob(ctx context.Context, userID int64, jobID string, reason string) (*CancelResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	state := job.State
	if state.Terminal() {
		return &CancelResult{Canceled: false, RemovedFromQueue: false, State: string(state)}, nil
	}

	if state == JobStateWaiting || state == JobStateDelayed || state == JobStatePaused {
		delete(q.jobs, jobID)
		return &CancelResult{Canceled: true, RemovedFromQueue: true, State: string(state)}, nil
	}

	q.cancels[jobID] = reason
	return &CancelResult{Canceled: true, RemovedFromQueue: false, State: string(state)}, nil
}

// GetJob implements JobReader.
func (q *MemoryJobQueue) GetJob(ctx context.Context, jobID string) (*JobInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	snapshot := *job
	return &snapshot, nil
}

// ListJobs implements JobReader. As in the durable adapter, the page
// window is applied before the project filter, and with a project filter
// Total reflects only the returned items.
func (q *MemoryJobQueue) ListJobs(ctx context.Context, filters ListFilters) (*ListResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	limit := NormalizeLimit(filters.Limit)
	offset := NormalizeOffset(filters.Offset)
	states := ResolveStates(filters.Status)

	var matched []*JobInfo
	for _, job := range q.jobs {
		for _, s := range states {
			if job.State == s {
				snapshot := *job
				matched = append(matched, &snapshot)
				break
			}
		}
	}
	sortJobsByID(matched)

	total := len(matched)
	if offset > len(matched) {
		matched = nil
	} else {
		matched = matched[offset:]
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}

	if filters.ProjectID != nil {
		filtered := make([]*JobInfo, 0, len(matched))
		for _, job := range matched {
			if project, ok := q.projects[job.ManifestID]; ok && project == *filters.ProjectID {
				filtered = append(filtered, job)
			}
		}
		matched = filtered
		total = len(filtered)
	}

	return &ListResult{Items: matched, Limit: limit, Offset: offset, Total: total}, nil
}

// GetStats implements JobReader.
func (q *MemoryJobQueue) GetStats(ctx context.Context) (*Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := &Stats{IsPaused: q.paused}
	for _, job := range q.jobs {
		switch job.State {
		case JobStateActive:
			stats.Active++
		case JobStateWaiting:
			stats.Waiting++
		case JobStateDelayed:
			stats.Delayed++
		case JobStatePaused:
			stats.Paused++
		case JobStateCompleted:
			stats.Completed++
		case JobStateFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

// Pause implements QueueController.
func (q *MemoryJobQueue) Pause(ctx context.Context) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = true
	return q.paused, nil
}

// Resume implements QueueController.
func (q *MemoryJobQueue) Resume(ctx context.Context) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = false
	return q.paused, nil
}

// SetState forces a job into the given state. Test helper.
func (q *MemoryJobQueue) SetState(jobID string, state JobState) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job, ok := q.jobs[jobID]; ok {
		job.State = state
	}
}

// SetProgress sets a job's progress. Test helper.
func (q *MemoryJobQueue) SetProgress(jobID string, progress int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job, ok := q.jobs[jobID]; ok {
		job.Progress = progress
	}
}

// SetProject registers a manifest's owning project for project-scoped
// listing. Test helper mirroring the adapter's manifest join.
func (q *MemoryJobQueue) SetProject(manifestID, projectID int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.projects[manifestID] = projectID
}

// CancelSignal returns the recorded cancellation reason for a job and
// whether a signal exists. Test helper mirroring the consumer-facing check.
func (q *MemoryJobQueue) CancelSignal(jobID string) (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	reason, ok := q.cancels[jobID]
	return reason, ok
}

// sortJobsByID orders jobs by their numeric id ascending so listings are
// deterministic.
func sortJobsByID(jobs []*JobInfo) {
	sort.Slice(jobs, func(i, j int) bool {
		return lessJobID(jobs[i].JobID, jobs[j].JobID)
	})
}

func lessJobID(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return strings.Compare(a, b) < 0
}

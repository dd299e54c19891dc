package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/phrazzld/manifold-api/internal/api/shared"
	"github.com/phrazzld/manifold-api/internal/domain"
	"github.com/phrazzld/manifold-api/internal/queue"
	"github.com/phrazzld/manifold-api/internal/service"
)

// Page size defaults applied when the query parameter is absent. An
// explicit value, even zero, goes through the normal clamping rules.
const (
	defaultJobsPageSize    = 25
	defaultHistoryPageSize = 50
)

// JobsHandler handles job inspection and queue control HTTP requests.
type JobsHandler struct {
	jobs     service.JobsService
	jobQueue queue.JobQueue
}

// NewJobsHandler creates a new JobsHandler.
func NewJobsHandler(jobs service.JobsService, jobQueue queue.JobQueue) *JobsHandler {
	return &JobsHandler{jobs: jobs, jobQueue: jobQueue}
}

// GetJob handles GET /api/jobs/{id} requests.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	if jobID == "" {
		HandleAPIError(w, r, domain.ErrValidation, "Job id is required")
		return
	}

	job, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, jobToResponse(job))
}

// ListJobs handles GET /api/jobs requests. Supported query parameters:
// status (accepts synonyms), projectId, limit, offset.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	filters := queue.ListFilters{
		Status:    r.URL.Query().Get("status"),
		ProjectID: queryInt64Ptr(r, "projectId"),
		Limit:     queryInt(r, "limit", defaultJobsPageSize),
		Offset:    queryInt(r, "offset", 0),
	}

	result, err := h.jobs.ListJobs(r.Context(), filters)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	items := make([]JobResponse, len(result.Items))
	for i, job := range result.Items {
		items[i] = jobToResponse(job)
	}
	shared.RespondWithJSON(w, r, http.StatusOK, JobListResponse{
		Items:  items,
		Limit:  result.Limit,
		Offset: result.Offset,
		Total:  result.Total,
	})
}

// GetStats handles GET /api/jobs/stats requests.
func (h *JobsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.jobs.GetStats(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, StatsResponse{
		Active:    stats.Active,
		Waiting:   stats.Waiting,
		Delayed:   stats.Delayed,
		Paused:    stats.Paused,
		Completed: stats.Completed,
		Failed:    stats.Failed,
		IsPaused:  stats.IsPaused,
	})
}

// CancelJob handles POST /api/queue/jobs/{id}/cancel requests.
func (h *JobsHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User identity required")
		return
	}

	jobID := chi.URLParam(r, "id")
	if jobID == "" {
		HandleAPIError(w, r, domain.ErrValidation, "Job id is required")
		return
	}

	var req CancelJobRequest
	if r.ContentLength > 0 {
		if err := shared.DecodeJSON(r, &req); err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
			return
		}
	}

	result, err := h.jobQueue.RequestCancelJob(r.Context(), userID, jobID, req.Reason)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, CancelJobResponse{
		Canceled:         result.Canceled,
		RemovedFromQueue: result.RemovedFromQueue,
		State:            result.State,
	})
}

// PauseQueue handles POST /api/queue/pause requests.
func (h *JobsHandler) PauseQueue(w http.ResponseWriter, r *http.Request) {
	paused, err := h.jobs.PauseQueue(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, PausedResponse{Paused: paused})
}

// ResumeQueue handles POST /api/queue/resume requests.
func (h *JobsHandler) ResumeQueue(w http.ResponseWriter, r *http.Request) {
	paused, err := h.jobs.ResumeQueue(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, PausedResponse{Paused: paused})
}

// GetHistory handles GET /api/queue/history requests. Supported query
// parameters: manifestId, limit.
func (h *JobsHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.jobs.GetHistory(r.Context(),
		queryInt64Ptr(r, "manifestId"),
		queryInt(r, "limit", defaultHistoryPageSize))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	items := make([]HistoryEntryResponse, len(entries))
	for i, entry := range entries {
		items[i] = historyEntryToResponse(entry)
	}
	shared.RespondWithJSON(w, r, http.StatusOK, HistoryResponse{Items: items})
}

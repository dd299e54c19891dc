package redisq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/phrazzld/manifold-api/internal/queue"
)

// GetJob implements queue.JobReader.
func (q *RedisJobQueue) GetJob(ctx context.Context, jobID string) (*queue.JobInfo, error) {
	fields, err := q.rdb.HGetAll(ctx, jobKey(jobID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, queue.NewProcessingError("get job", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", queue.ErrJobNotFound, jobID)
	}
	return jobInfoFromFields(jobID, fields), nil
}

// ListJobs implements queue.JobReader. The page window is applied against
// the queue before the project filter, so a project-filtered page may come
// back shorter than the limit; in that mode Total reflects only the
// returned items (known limitation of the upstream behavior).
func (q *RedisJobQueue) ListJobs(ctx context.Context, filters queue.ListFilters) (*queue.ListResult, error) {
	limit := queue.NormalizeLimit(filters.Limit)
	offset := queue.NormalizeOffset(filters.Offset)
	states := queue.ResolveStates(filters.Status)

	ids, err := q.collectJobIDs(ctx, states)
	if err != nil {
		return nil, err
	}

	page := ids
	if offset >= len(page) {
		page = nil
	} else {
		page = page[offset:]
	}
	if len(page) > limit {
		page = page[:limit]
	}

	items := make([]*queue.JobInfo, 0, len(page))
	for _, id := range page {
		fields, err := q.rdb.HGetAll(ctx, jobKey(id)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, queue.NewProcessingError("load job page", err)
		}
		if len(fields) == 0 {
			// Pruned between the index read and the hash read; skip.
			continue
		}
		items = append(items, jobInfoFromFields(id, fields))
	}

	if filters.ProjectID != nil {
		items, err = q.filterByProject(ctx, items, *filters.ProjectID)
		if err != nil {
			return nil, err
		}
	}

	total := len(items)
	if filters.ProjectID == nil {
		total = len(ids)
	}

	return &queue.ListResult{Items: items, Limit: limit, Offset: offset, Total: total}, nil
}

// collectJobIDs gathers job ids across the given states, each state's set
// ordered oldest first, states in the canonical reporting order.
func (q *RedisJobQueue) collectJobIDs(ctx context.Context, states []queue.JobState) ([]string, error) {
	var ids []string
	for _, state := range states {
		stateIDs, err := q.rdb.ZRange(ctx, stateKey(string(state)), 0, -1).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, queue.NewProcessingError("list jobs", err)
		}
		ids = append(ids, stateIDs...)
	}
	return ids, nil
}

// filterByProject keeps only jobs whose manifest resolves to the given
// project through the group relation. Jobs whose manifest has no project
// are excluded.
func (q *RedisJobQueue) filterByProject(ctx context.Context, items []*queue.JobInfo, projectID int64) ([]*queue.JobInfo, error) {
	if len(items) == 0 {
		return items, nil
	}

	manifestIDs := make([]int64, 0, len(items))
	for _, item := range items {
		if item.ManifestID != 0 {
			manifestIDs = append(manifestIDs, item.ManifestID)
		}
	}
	if len(manifestIDs) == 0 {
		return nil, nil
	}

	projects, err := q.manifests.ProjectIDsForManifests(ctx, manifestIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve projects for job listing: %w", err)
	}

	filtered := make([]*queue.JobInfo, 0, len(items))
	for _, item := range items {
		if item.ManifestID == 0 {
			continue
		}
		if project, ok := projects[item.ManifestID]; ok && project == projectID {
			filtered = append(filtered, item)
		}
	}
	return filtered, nil
}

// GetStats implements queue.JobReader.
func (q *RedisJobQueue) GetStats(ctx context.Context) (*queue.Stats, error) {
	stats := &queue.Stats{}
	targets := map[queue.JobState]*int{
		queue.JobStateActive:    &stats.Active,
		queue.JobStateWaiting:   &stats.Waiting,
		queue.JobStateDelayed:   &stats.Delayed,
		queue.JobStatePaused:    &stats.Paused,
		queue.JobStateCompleted: &stats.Completed,
		queue.JobStateFailed:    &stats.Failed,
	}
	for state, target := range targets {
		count, err := q.rdb.ZCard(ctx, stateKey(string(state))).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, queue.NewProcessingError("count jobs", err)
		}
		*target = int(count)
	}

	paused, err := q.isPaused(ctx)
	if err != nil {
		return nil, err
	}
	stats.IsPaused = paused
	return stats, nil
}

// Pause implements queue.QueueController.
func (q *RedisJobQueue) Pause(ctx context.Context) (bool, error) {
	if err := q.rdb.Set(ctx, pausedKey, "1", 0).Err(); err != nil {
		return false, queue.NewProcessingError("pause queue", err)
	}
	return q.isPaused(ctx)
}

// Resume implements queue.QueueController.
func (q *RedisJobQueue) Resume(ctx context.Context) (bool, error) {
	if err := q.rdb.Del(ctx, pausedKey).Err(); err != nil {
		return false, queue.NewProcessingError("resume queue", err)
	}
	return q.isPaused(ctx)
}

func (q *RedisJobQueue) isPaused(ctx context.Context) (bool, error) {
	exists, err := q.rdb.Exists(ctx, pausedKey).Result()
	if err != nil {
		return false, queue.NewProcessingError("read pause flag", err)
	}
	return exists > 0, nil
}

// jobInfoFromFields builds a JobInfo snapshot from a job hash. Progress
// values that fail to parse are coerced to 0 rather than erroring; some
// consumers report structured progress this subsystem does not interpret.
func jobInfoFromFields(jobID string, fields map[string]string) *queue.JobInfo {
	info := &queue.JobInfo{
		JobID:    jobID,
		Type:     fields["type"],
		State:    normalizeState(fields["state"]),
		Progress: coerceProgress(fields["progress"]),
	}
	if manifestID, err := strconv.ParseInt(fields["manifest_id"], 10, 64); err == nil {
		info.ManifestID = manifestID
	}
	if attempts, err := strconv.Atoi(fields["attempts_made"]); err == nil {
		info.Attempts = attempts
	}
	if data := fields["data"]; data != "" {
		info.Data = json.RawMessage(data)
	}
	if ret := fields["returnvalue"]; ret != "" {
		info.Result = json.RawMessage(ret)
	}
	return info
}

// normalizeState maps a stored state onto the closed caller-facing set.
// Unknown values degrade to waiting rather than leaking backend vocabulary.
func normalizeState(raw string) queue.JobState {
	switch queue.JobState(raw) {
	case queue.JobStateActive, queue.JobStateWaiting, queue.JobStateDelayed,
		queue.JobStatePaused, queue.JobStateCompleted, queue.JobStateFailed:
		return queue.JobState(raw)
	default:
		return queue.JobStateWaiting
	}
}

// coerceProgress parses a stored progress value, coercing anything
// non-numeric to 0.
func coerceProgress(raw string) int {
	progress, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}

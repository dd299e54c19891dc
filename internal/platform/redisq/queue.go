package redisq

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/phrazzld/manifold-api/internal/config"
	"github.com/phrazzld/manifold-api/internal/domain"
	"github.com/phrazzld/manifold-api/internal/queue"
	"github.com/phrazzld/manifold-api/internal/store"
)

// RedisJobQueue implements queue.JobQueue, queue.JobReader and
// queue.QueueController against a Redis instance. On every successful
// enqueue it synchronously appends one ledger entry through the
// JobHistoryStore; the queue stays authoritative for live state.
type RedisJobQueue struct {
	rdb       redis.Cmdable
	history   store.JobHistoryStore
	manifests store.ManifestStore
	cfg       config.QueueConfig
	logger    *slog.Logger
}

// NewRedisJobQueue creates a queue adapter with the given backend and
// collaborators.
func NewRedisJobQueue(
	rdb redis.Cmdable,
	history store.JobHistoryStore,
	manifests store.ManifestStore,
	cfg config.QueueConfig,
	logger *slog.Logger,
) *RedisJobQueue {
	return &RedisJobQueue{
		rdb:       rdb,
		history:   history,
		manifests: manifests,
		cfg:       cfg,
		logger:    logger,
	}
}

// EnqueueExtractionJob implements queue.JobQueue.
func (q *RedisJobQueue) EnqueueExtractionJob(ctx context.Context, req queue.ExtractionJobRequest) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", queue.NewProcessingError("marshal extraction payload", err)
	}

	jobID, err := q.submit(ctx, queue.JobTypeExtraction, req.ManifestID, data)
	if err != nil {
		q.logger.Error("failed to queue extraction job",
			"manifest_id", req.ManifestID,
			"error", err)
		return "", err
	}

	q.appendLedgerEntry(ctx, jobID, req.ManifestID, req.LLMModelID, req.PromptID)

	if req.FieldName != nil {
		q.logger.Info("queued extraction job",
			"job_id", jobID,
			"manifest_id", req.ManifestID,
			"field_name", *req.FieldName)
	} else {
		q.logger.Info("queued extraction job",
			"job_id", jobID,
			"manifest_id", req.ManifestID)
	}
	return jobID, nil
}

// EnqueueOCRRefreshJob implements queue.JobQueue.
func (q *RedisJobQueue) EnqueueOCRRefreshJob(ctx context.Context, req queue.OCRRefreshJobRequest) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", queue.NewProcessingError("marshal OCR refresh payload", err)
	}

	jobID, err := q.submit(ctx, queue.JobTypeOCRRefresh, req.ManifestID, data)
	if err != nil {
		q.logger.Error("failed to queue OCR refresh job",
			"manifest_id", req.ManifestID,
			"error", err)
		return "", err
	}

	q.appendLedgerEntry(ctx, jobID, req.ManifestID, nil, nil)

	q.logger.Info("queued OCR refresh job",
		"job_id", jobID,
		"manifest_id", req.ManifestID)
	return jobID, nil
}

// submit allocates a job id, writes the job hash and waiting-set entry in
// one pipeline, and opportunistically prunes terminal sets to the
// configured retention bounds.
func (q *RedisJobQueue) submit(ctx context.Context, jobType string, manifestID int64, data []byte) (string, error) {
	id, err := q.rdb.Incr(ctx, idCounterKey).Result()
	if err != nil {
		return "", queue.NewProcessingError("allocate job id", err)
	}
	jobID := strconv.FormatInt(id, 10)

	now := time.Now().UTC()
	pipe := q.rdb.TxPipeline()
	pipe.HSet(ctx, jobKey(jobID), map[string]interface{}{
		"type":            jobType,
		"manifest_id":     manifestID,
		"data":            string(data),
		"state":           string(queue.JobStateWaiting),
		"progress":        0,
		"attempts_made":   0,
		"max_attempts":    q.cfg.MaxAttempts,
		"backoff_type":    "exponential",
		"backoff_base_ms": q.cfg.BackoffBase.Milliseconds(),
		"created_at":      now.UnixMilli(),
	})
	pipe.ZAdd(ctx, stateKey(string(queue.JobStateWaiting)), redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: jobID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return "", queue.NewProcessingError("submit job", err)
	}

	q.pruneTerminal(ctx, string(queue.JobStateCompleted), q.cfg.KeepCompleted)
	q.pruneTerminal(ctx, string(queue.JobStateFailed), q.cfg.KeepFailed)

	return jobID, nil
}

// appendLedgerEntry records the enqueue in the durable history ledger.
// The queue already accepted the job, so a ledger failure is a recoverable
// inconsistency: it is logged and the enqueue still reports success.
func (q *RedisJobQueue) appendLedgerEntry(ctx context.Context, jobID string, manifestID int64, llmModelID *string, promptID *int64) {
	entry := &domain.JobHistoryEntry{
		ManifestID: manifestID,
		Status:     domain.JobHistoryStatusQueued,
		LLMModelID: llmModelID,
		PromptID:   promptID,
		QueueJobID: &jobID,
	}
	if err := q.history.Create(ctx, entry); err != nil {
		q.logger.Error("failed to append job history entry after enqueue",
			"job_id", jobID,
			"manifest_id", manifestID,
			"error", err)
	}
}

// pruneTerminal trims a terminal state set to the retention bound, deleting
// the oldest jobs' hashes along with their set entries. Failures only cost
// retention, so they are logged and ignored.
func (q *RedisJobQueue) pruneTerminal(ctx context.Context, state string, keep int) {
	key := stateKey(state)
	count, err := q.rdb.ZCard(ctx, key).Result()
	if err != nil || count <= int64(keep) {
		return
	}

	excess := count - int64(keep)
	ids, err := q.rdb.ZRange(ctx, key, 0, excess-1).Result()
	if err != nil {
		q.logger.Warn("failed to read jobs for retention pruning",
			"state", state,
			"error", err)
		return
	}

	pipe := q.rdb.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, jobKey(id))
		pipe.ZRem(ctx, key, id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		q.logger.Warn("failed to prune jobs past retention bound",
			"state", state,
			"count", len(ids),
			"error", err)
	}
}

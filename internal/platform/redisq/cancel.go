package redisq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/manifold-api/internal/domain"
	"github.com/phrazzld/manifold-api/internal/queue"
	"github.com/phrazzld/manifold-api/internal/store"
)

// cancelSignalTTL bounds how long an unobserved cancellation signal lives.
// A job that has not been picked up again within this window is terminal
// and the signal is moot.
const cancelSignalTTL = 24 * time.Hour

// RequestCancelJob implements queue.JobQueue. Jobs still waiting are
// removed outright; active jobs get a cooperative signal recorded for the
// consumer. Cancelling a job already in a terminal state reports that
// state and never errors, so repeated cancel calls are idempotent.
func (q *RedisJobQueue) RequestCancelJob(ctx context.Context, userID int64, jobID string, reason string) (*queue.CancelResult, error) {
	entry, err := q.history.GetByQueueJobID(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", queue.ErrJobNotFound, jobID)
		}
		return nil, queue.NewProcessingError("look up job for cancel", err)
	}

	// Visibility check: the user must be able to see the target manifest.
	if _, err := q.manifests.FindOne(ctx, userID, entry.ManifestID); err != nil {
		return nil, err
	}

	if terminalState, ok := ledgerTerminalState(entry.Status); ok {
		return &queue.CancelResult{Canceled: false, RemovedFromQueue: false, State: terminalState}, nil
	}

	if err := q.history.RequestCancel(ctx, jobID, reason); err != nil {
		q.logger.Error("failed to record cancel request in ledger",
			"job_id", jobID,
			"error", err)
	}

	fields, err := q.rdb.HGetAll(ctx, jobKey(jobID)).Result()
	if err != nil {
		return nil, queue.NewProcessingError("read job state for cancel", err)
	}
	if len(fields) == 0 {
		// The transient job is gone (finished and pruned between ledger
		// read and now). Report the ledger's view without erroring.
		return &queue.CancelResult{
			Canceled:         false,
			RemovedFromQueue: false,
			State:            string(entry.Status),
		}, nil
	}

	state := normalizeState(fields["state"])
	if state.Terminal() {
		return &queue.CancelResult{Canceled: false, RemovedFromQueue: false, State: string(state)}, nil
	}

	if state == queue.JobStateWaiting || state == queue.JobStateDelayed || state == queue.JobStatePaused {
		pipe := q.rdb.TxPipeline()
		pipe.ZRem(ctx, stateKey(string(state)), jobID)
		pipe.Del(ctx, jobKey(jobID))
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, queue.NewProcessingError("remove job from queue", err)
		}

		if err := q.history.MarkCanceled(ctx, jobID, reason); err != nil {
			q.logger.Error("failed to mark ledger entry canceled",
				"job_id", jobID,
				"error", err)
		}

		q.logger.Info("canceled queued extraction job", "job_id", jobID)
		return &queue.CancelResult{Canceled: true, RemovedFromQueue: true, State: string(state)}, nil
	}

	// Active: record the signal for the consumer to observe cooperatively.
	if err := q.rdb.Set(ctx, cancelKey(jobID), reason, cancelSignalTTL).Err(); err != nil {
		return nil, queue.NewProcessingError("record cancel signal", err)
	}

	q.logger.Info("cancel requested for extraction job",
		"job_id", jobID,
		"state", string(state))
	return &queue.CancelResult{Canceled: true, RemovedFromQueue: false, State: string(state)}, nil
}

// ledgerTerminalState maps a terminal ledger status to the state string
// reported to callers. Non-terminal statuses return ok=false.
func ledgerTerminalState(status domain.JobHistoryStatus) (string, bool) {
	switch status {
	case domain.JobHistoryStatusCompleted:
		return string(queue.JobStateCompleted), true
	case domain.JobHistoryStatusFailed:
		return string(queue.JobStateFailed), true
	case domain.JobHistoryStatusCanceled:
		return string(domain.JobHistoryStatusCanceled), true
	default:
		return "", false
	}
}

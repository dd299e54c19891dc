package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/manifold-api/internal/domain"
	"github.com/phrazzld/manifold-api/internal/queue"
	"github.com/phrazzld/manifold-api/internal/store"
)

// fakeHistoryStore records ListHistory calls so tests can assert on the
// limits the service passes down.
type fakeHistoryStore struct {
	entries    []*domain.JobHistoryEntry
	lastLimit  int
	lastFilter *int64
}

func (f *fakeHistoryStore) Create(ctx context.Context, entry *domain.JobHistoryEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeHistoryStore) GetByQueueJobID(ctx context.Context, queueJobID string) (*domain.JobHistoryEntry, error) {
	for _, entry := range f.entries {
		if entry.QueueJobID != nil && *entry.QueueJobID == queueJobID {
			return entry, nil
		}
	}
	return nil, store.ErrJobHistoryNotFound
}

func (f *fakeHistoryStore) ListHistory(ctx context.Context, manifestID *int64, limit int) ([]*domain.JobHistoryEntry, error) {
	f.lastFilter = manifestID
	f.lastLimit = limit
	if len(f.entries) > limit {
		return f.entries[:limit], nil
	}
	return f.entries, nil
}

func (f *fakeHistoryStore) RequestCancel(ctx context.Context, queueJobID, reason string) error {
	return nil
}

func (f *fakeHistoryStore) MarkCanceled(ctx context.Context, queueJobID, reason string) error {
	return nil
}

func (f *fakeHistoryStore) WithTx(tx *sql.Tx) store.JobHistoryStore { return f }

func newJobsFixture() (*queue.MemoryJobQueue, *fakeHistoryStore, JobsService) {
	jobQueue := queue.NewMemoryJobQueue()
	history := &fakeHistoryStore{}
	svc := NewJobsService(jobQueue, jobQueue, history, testLogger())
	return jobQueue, history, svc
}

func TestJobsServiceGetJob(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	jobQueue, _, svc := newJobsFixture()

	jobID, err := jobQueue.EnqueueExtractionJob(ctx, queue.ExtractionJobRequest{ManifestID: 4})
	require.NoError(t, err)

	job, err := svc.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, jobID, job.JobID)
	assert.Equal(t, int64(4), job.ManifestID)

	_, err = svc.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, queue.ErrJobNotFound)
}

func TestJobsServiceListJobs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	jobQueue, _, svc := newJobsFixture()

	for i := int64(1); i <= 3; i++ {
		_, err := jobQueue.EnqueueExtractionJob(ctx, queue.ExtractionJobRequest{ManifestID: i})
		require.NoError(t, err)
	}

	result, err := svc.ListJobs(ctx, queue.ListFilters{Status: "waiting", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	assert.Len(t, result.Items, 2)
}

func TestJobsServicePauseResume(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, _, svc := newJobsFixture()

	paused, err := svc.PauseQueue(ctx)
	require.NoError(t, err)
	assert.True(t, paused)

	stats, err := svc.GetStats(ctx)
	require.NoError(t, err)
	assert.True(t, stats.IsPaused)

	paused, err = svc.ResumeQueue(ctx)
	require.NoError(t, err)
	assert.False(t, paused)
}

func TestJobsServiceGetHistory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("explicit zero limit clamps to one", func(t *testing.T) {
		t.Parallel()
		_, history, svc := newJobsFixture()

		_, err := svc.GetHistory(ctx, nil, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, history.lastLimit)
		assert.Nil(t, history.lastFilter)
	})

	t.Run("oversized limit clamps to the maximum", func(t *testing.T) {
		t.Parallel()
		_, history, svc := newJobsFixture()

		_, err := svc.GetHistory(ctx, nil, 10000)
		require.NoError(t, err)
		assert.Equal(t, 200, history.lastLimit)
	})

	t.Run("explicit limit and manifest filter pass through", func(t *testing.T) {
		t.Parallel()
		_, history, svc := newJobsFixture()

		manifestID := int64(12)
		_, err := svc.GetHistory(ctx, &manifestID, 5)
		require.NoError(t, err)
		assert.Equal(t, 5, history.lastLimit)
		require.NotNil(t, history.lastFilter)
		assert.Equal(t, manifestID, *history.lastFilter)
	})
}

package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/manifold-api/internal/domain"
	"github.com/phrazzld/manifold-api/internal/queue"
	"github.com/phrazzld/manifold-api/internal/store"
)

const testUserID = int64(100)

var batchIDPattern = regexp.MustCompile(`^batch_\d+_\d+$`)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }

// newExtractionFixture builds a store with one project (owner testUserID,
// default model "project-default"), one group, and the given manifests.
func newExtractionFixture(manifests ...domain.Manifest) (*store.MemoryManifestStore, *queue.MemoryJobQueue, ExtractionService) {
	manifestStore := store.NewMemoryManifestStore()
	manifestStore.AddProject(1, testUserID, strPtr("project-default"))
	manifestStore.AddGroup(domain.Group{ID: 1, ProjectID: 1, Name: "inbox"})
	for _, manifest := range manifests {
		manifestStore.AddManifest(manifest)
	}
	jobQueue := queue.NewMemoryJobQueue()
	svc := NewExtractionService(manifestStore, jobQueue, testLogger())
	return manifestStore, jobQueue, svc
}

func TestExtractSingle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("enqueues one job with the explicit model", func(t *testing.T) {
		t.Parallel()
		_, jobQueue, svc := newExtractionFixture(domain.Manifest{ID: 1, GroupID: 1})

		result, err := svc.ExtractSingle(ctx, testUserID, 1, ExtractOptions{
			LLMModelID: strPtr("explicit-model"),
		})
		require.NoError(t, err)
		assert.NotEmpty(t, result.JobID)

		require.Len(t, jobQueue.ExtractionRequests, 1)
		req := jobQueue.ExtractionRequests[0]
		assert.Equal(t, int64(1), req.ManifestID)
		require.NotNil(t, req.LLMModelID)
		assert.Equal(t, "explicit-model", *req.LLMModelID)
	})

	t.Run("falls back to the project default model", func(t *testing.T) {
		t.Parallel()
		_, jobQueue, svc := newExtractionFixture(domain.Manifest{ID: 1, GroupID: 1})

		_, err := svc.ExtractSingle(ctx, testUserID, 1, ExtractOptions{})
		require.NoError(t, err)

		require.Len(t, jobQueue.ExtractionRequests, 1)
		require.NotNil(t, jobQueue.ExtractionRequests[0].LLMModelID)
		assert.Equal(t, "project-default", *jobQueue.ExtractionRequests[0].LLMModelID)
	})

	t.Run("invisible manifest is not found", func(t *testing.T) {
		t.Parallel()
		_, jobQueue, svc := newExtractionFixture(domain.Manifest{ID: 1, GroupID: 1})

		_, err := svc.ExtractSingle(ctx, testUserID+1, 1, ExtractOptions{})
		assert.ErrorIs(t, err, store.ErrManifestNotFound)
		assert.Empty(t, jobQueue.ExtractionRequests)
	})
}

func TestExtractBulk(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("fans out one job per manifest", func(t *testing.T) {
		t.Parallel()
		_, jobQueue, svc := newExtractionFixture(
			domain.Manifest{ID: 1, GroupID: 1},
			domain.Manifest{ID: 2, GroupID: 1},
			domain.Manifest{ID: 3, GroupID: 1},
		)

		result, err := svc.ExtractBulk(ctx, testUserID, BulkExtractOptions{
			ManifestIDs: []int64{3, 1, 2},
		})
		require.NoError(t, err)

		assert.Equal(t, 3, result.ManifestCount)
		require.Len(t, result.JobIDs, 3)
		require.Len(t, result.Jobs, 3)
		assert.Regexp(t, batchIDPattern, result.JobID)

		// Results follow the requested manifest order even though dispatch
		// is concurrent.
		wantOrder := []int64{3, 1, 2}
		for i, job := range result.Jobs {
			assert.Equal(t, wantOrder[i], job.ManifestID)
			assert.Equal(t, result.JobIDs[i], job.JobID)
		}
		enqueued := make([]int64, 0, len(jobQueue.ExtractionRequests))
		for _, req := range jobQueue.ExtractionRequests {
			enqueued = append(enqueued, req.ManifestID)
		}
		assert.ElementsMatch(t, wantOrder, enqueued)
	})

	t.Run("two manifests yield a batch id ending in _2", func(t *testing.T) {
		t.Parallel()
		_, jobQueue, svc := newExtractionFixture(
			domain.Manifest{ID: 1, GroupID: 1},
			domain.Manifest{ID: 2, GroupID: 1},
		)

		result, err := svc.ExtractBulk(ctx, testUserID, BulkExtractOptions{
			ManifestIDs: []int64{1, 2},
		})
		require.NoError(t, err)
		assert.Regexp(t, `^batch_\d+_2$`, result.JobID)

		// All jobs share the project default model.
		for _, req := range jobQueue.ExtractionRequests {
			require.NotNil(t, req.LLMModelID)
			assert.Equal(t, "project-default", *req.LLMModelID)
		}
	})

	t.Run("enqueue failure fails the whole batch", func(t *testing.T) {
		t.Parallel()
		_, jobQueue, svc := newExtractionFixture(
			domain.Manifest{ID: 1, GroupID: 1},
			domain.Manifest{ID: 2, GroupID: 1},
		)
		jobQueue.EnqueueErr = errors.New("redis down")

		_, err := svc.ExtractBulk(ctx, testUserID, BulkExtractOptions{
			ManifestIDs: []int64{1, 2},
		})
		assert.ErrorIs(t, err, queue.ErrQueueProcessing)
	})

	t.Run("a mid-batch failure still dispatches the siblings", func(t *testing.T) {
		t.Parallel()
		_, jobQueue, svc := newExtractionFixture(
			domain.Manifest{ID: 1, GroupID: 1},
			domain.Manifest{ID: 2, GroupID: 1},
			domain.Manifest{ID: 3, GroupID: 1},
		)
		jobQueue.FailManifestID = 2

		_, err := svc.ExtractBulk(ctx, testUserID, BulkExtractOptions{
			ManifestIDs: []int64{1, 2, 3},
		})
		assert.ErrorIs(t, err, queue.ErrQueueProcessing)

		// Every enqueue is attempted; the failing manifest's error fails
		// the call but does not short-circuit its siblings.
		enqueued := make([]int64, 0, len(jobQueue.ExtractionRequests))
		for _, req := range jobQueue.ExtractionRequests {
			enqueued = append(enqueued, req.ManifestID)
		}
		assert.ElementsMatch(t, []int64{1, 3}, enqueued)
	})

	t.Run("invisible manifests are skipped, not errors", func(t *testing.T) {
		t.Parallel()
		_, _, svc := newExtractionFixture(domain.Manifest{ID: 1, GroupID: 1})

		result, err := svc.ExtractBulk(ctx, testUserID, BulkExtractOptions{
			ManifestIDs: []int64{1, 999},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, result.ManifestCount)
	})
}

func TestExtractFiltered(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("selects by filter and enqueues per match", func(t *testing.T) {
		t.Parallel()
		completed := "completed"
		_, jobQueue, svc := newExtractionFixture(
			domain.Manifest{ID: 1, GroupID: 1, FileName: "invoice-jan.pdf"},
			domain.Manifest{ID: 2, GroupID: 1, FileName: "invoice-feb.pdf", ExtractionStatus: &completed},
			domain.Manifest{ID: 3, GroupID: 1, FileName: "receipt.pdf"},
		)

		result, err := svc.ExtractFiltered(ctx, testUserID, 1, FilteredExtractOptions{
			Filters: store.ExtractionFilters{Search: "invoice"},
		})
		require.NoError(t, err)

		// Manifest 2 is excluded: completed results are skipped by default.
		assert.Equal(t, 1, result.ManifestCount)
		require.Len(t, jobQueue.ExtractionRequests, 1)
		assert.Equal(t, int64(1), jobQueue.ExtractionRequests[0].ManifestID)
	})

	t.Run("pins the text extractor before any job is enqueued", func(t *testing.T) {
		t.Parallel()
		manifestStore, jobQueue, svc := newExtractionFixture(
			domain.Manifest{ID: 1, GroupID: 1, FileName: "a.pdf"},
			domain.Manifest{ID: 2, GroupID: 1, FileName: "b.pdf"},
		)

		result, err := svc.ExtractFiltered(ctx, testUserID, 1, FilteredExtractOptions{
			TextExtractorID: strPtr("engine-v2"),
		})
		require.NoError(t, err)
		assert.Equal(t, 2, result.ManifestCount)

		require.Len(t, manifestStore.SetExtractorCalls, 1)
		call := manifestStore.SetExtractorCalls[0]
		assert.Equal(t, "engine-v2", call.TextExtractorID)
		assert.ElementsMatch(t, []int64{1, 2}, call.ManifestIDs)
		assert.Len(t, jobQueue.ExtractionRequests, 2)
	})

	t.Run("unknown group is not found", func(t *testing.T) {
		t.Parallel()
		_, _, svc := newExtractionFixture()

		_, err := svc.ExtractFiltered(ctx, testUserID, 42, FilteredExtractOptions{})
		assert.ErrorIs(t, err, store.ErrGroupNotFound)
	})
}

func TestReExtractField(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ocrManifest := func() domain.Manifest {
		return domain.Manifest{
			ID:      1,
			GroupID: 1,
			OCRResult: []byte(`{"document":{"pages":1},` +
				`"pages":[{"pageNumber":1,"text":"Invoice Total Due: $42.00","confidence":0.95}]}`),
		}
	}

	t.Run("requires a persisted OCR result", func(t *testing.T) {
		t.Parallel()
		_, jobQueue, svc := newExtractionFixture(domain.Manifest{ID: 1, GroupID: 1})

		_, err := svc.ReExtractField(ctx, testUserID, 1, ReExtractFieldOptions{FieldName: "total"})
		assert.ErrorIs(t, err, ErrOCRResultRequired)
		assert.Empty(t, jobQueue.ExtractionRequests)
	})

	t.Run("preview only never enqueues", func(t *testing.T) {
		t.Parallel()
		_, jobQueue, svc := newExtractionFixture(ocrManifest())

		result, err := svc.ReExtractField(ctx, testUserID, 1, ReExtractFieldOptions{
			FieldName:   "total",
			PreviewOnly: true,
		})
		require.NoError(t, err)
		assert.Empty(t, result.JobID)
		require.NotNil(t, result.OCRPreview)
		assert.Contains(t, result.OCRPreview.Snippet, "Total")
		assert.Empty(t, jobQueue.ExtractionRequests, "preview-only must not touch the queue")
	})

	t.Run("enqueues a field-scoped job carrying the snippet", func(t *testing.T) {
		t.Parallel()
		_, jobQueue, svc := newExtractionFixture(ocrManifest())

		result, err := svc.ReExtractField(ctx, testUserID, 1, ReExtractFieldOptions{
			FieldName: "fields.total",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, result.JobID)

		require.Len(t, jobQueue.ExtractionRequests, 1)
		req := jobQueue.ExtractionRequests[0]
		require.NotNil(t, req.FieldName)
		assert.Equal(t, "fields.total", *req.FieldName)
		require.NotNil(t, req.TextContextSnippet, "context is included by default")
		assert.Contains(t, *req.TextContextSnippet, "Total")
	})

	t.Run("context can be excluded explicitly", func(t *testing.T) {
		t.Parallel()
		_, jobQueue, svc := newExtractionFixture(ocrManifest())

		exclude := false
		_, err := svc.ReExtractField(ctx, testUserID, 1, ReExtractFieldOptions{
			FieldName:         "total",
			IncludeOCRContext: &exclude,
		})
		require.NoError(t, err)

		require.Len(t, jobQueue.ExtractionRequests, 1)
		assert.Nil(t, jobQueue.ExtractionRequests[0].TextContextSnippet)
	})
}

func TestRefreshOCR(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("explicit extractor wins over the pinned one", func(t *testing.T) {
		t.Parallel()
		_, jobQueue, svc := newExtractionFixture(
			domain.Manifest{ID: 1, GroupID: 1, TextExtractorID: strPtr("pinned-engine")},
		)

		result, err := svc.RefreshOCR(ctx, testUserID, 1, RefreshOCROptions{
			TextExtractorID: strPtr("engine-v2"),
		})
		require.NoError(t, err)
		assert.NotEmpty(t, result.JobID)

		require.Len(t, jobQueue.OCRRefreshRequests, 1)
		req := jobQueue.OCRRefreshRequests[0]
		assert.Equal(t, int64(1), req.ManifestID)
		require.NotNil(t, req.TextExtractorID)
		assert.Equal(t, "engine-v2", *req.TextExtractorID)
	})

	t.Run("falls back to the manifest's pinned extractor", func(t *testing.T) {
		t.Parallel()
		_, jobQueue, svc := newExtractionFixture(
			domain.Manifest{ID: 1, GroupID: 1, TextExtractorID: strPtr("pinned-engine")},
		)

		_, err := svc.RefreshOCR(ctx, testUserID, 1, RefreshOCROptions{})
		require.NoError(t, err)

		require.Len(t, jobQueue.OCRRefreshRequests, 1)
		require.NotNil(t, jobQueue.OCRRefreshRequests[0].TextExtractorID)
		assert.Equal(t, "pinned-engine", *jobQueue.OCRRefreshRequests[0].TextExtractorID)
	})

	t.Run("invisible manifest is not found", func(t *testing.T) {
		t.Parallel()
		_, jobQueue, svc := newExtractionFixture(domain.Manifest{ID: 1, GroupID: 1})

		_, err := svc.RefreshOCR(ctx, testUserID+1, 1, RefreshOCROptions{})
		assert.ErrorIs(t, err, store.ErrManifestNotFound)
		assert.Empty(t, jobQueue.OCRRefreshRequests)
	})
}

func TestReExtract(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, jobQueue, svc := newExtractionFixture(domain.Manifest{ID: 1, GroupID: 1})

	result, err := svc.ReExtract(ctx, testUserID, 1, ReExtractFieldOptions{
		FieldName:  "vendor",
		LLMModelID: strPtr("model-x"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.JobID)

	require.Len(t, jobQueue.ExtractionRequests, 1)
	req := jobQueue.ExtractionRequests[0]
	require.NotNil(t, req.FieldName)
	assert.Equal(t, "vendor", *req.FieldName)
}

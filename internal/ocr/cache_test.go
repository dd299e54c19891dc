package ocr

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/manifold-api/internal/domain"
	"github.com/phrazzld/manifold-api/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleOCRResult(t *testing.T, pages int) json.RawMessage {
	t.Helper()
	result := domain.OCRResult{Document: domain.OCRDocumentInfo{Pages: pages}}
	for i := 1; i <= pages; i++ {
		result.Pages = append(result.Pages, domain.OCRPage{
			PageNumber: i,
			Text:       "invoice total due",
			Confidence: 0.97,
		})
	}
	raw, err := json.Marshal(result)
	require.NoError(t, err)
	return raw
}

func manifestWithOCR(t *testing.T, id int64, pages int) domain.Manifest {
	t.Helper()
	score := 0.92
	processed := time.Date(2026, 8, 14, 10, 0, 0, 0, time.UTC)
	return domain.Manifest{
		ID:              id,
		GroupID:         1,
		FileName:        "scan.pdf",
		OCRResult:       sampleOCRResult(t, pages),
		OCRQualityScore: &score,
		OCRProcessedAt:  &processed,
		UpdatedAt:       processed,
	}
}

func TestCacheGetReadThrough(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	manifests := store.NewMemoryManifestStore()
	manifests.AddManifest(manifestWithOCR(t, 7, 3))
	cache := NewCache(NewMemoryStore(), manifests, time.Hour, testLogger())

	// Cold read hits storage and populates the cache.
	first, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, int64(7), first.ManifestID)
	assert.Equal(t, 0.92, first.QualityScore)
	assert.Equal(t, 3, first.PageCount)
	assert.Equal(t, 1, manifests.OCRResultReads)

	// Warm read is served from the cache without touching storage again.
	second, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.ManifestID, second.ManifestID)
	assert.Equal(t, 1, manifests.OCRResultReads, "second read must not reach storage")
}

func TestCacheGetMissingManifest(t *testing.T) {
	t.Parallel()
	cache := NewCache(NewMemoryStore(), store.NewMemoryManifestStore(), time.Hour, testLogger())

	cached, err := cache.Get(context.Background(), 404)
	require.NoError(t, err, "absence is not an error")
	assert.Nil(t, cached)
}

func TestCacheGetManifestWithoutResult(t *testing.T) {
	t.Parallel()
	manifests := store.NewMemoryManifestStore()
	manifests.AddManifest(domain.Manifest{ID: 9, GroupID: 1, FileName: "raw.pdf"})
	cache := NewCache(NewMemoryStore(), manifests, time.Hour, testLogger())

	cached, err := cache.Get(context.Background(), 9)
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestCacheGetDropsCorruptEntry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := NewMemoryStore()
	manifests := store.NewMemoryManifestStore()
	manifests.AddManifest(manifestWithOCR(t, 5, 2))
	cache := NewCache(kv, manifests, time.Hour, testLogger())

	require.NoError(t, kv.Set(ctx, "manifold:ocr:5", []byte("{not json"), time.Hour))

	cached, err := cache.Get(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, cached, "corrupt entries fall through to storage")
	assert.Equal(t, 2, cached.PageCount)
	assert.Equal(t, 1, manifests.OCRResultReads)
}

func TestCacheInvalidate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	manifests := store.NewMemoryManifestStore()
	manifests.AddManifest(manifestWithOCR(t, 3, 1))
	cache := NewCache(NewMemoryStore(), manifests, time.Hour, testLogger())

	_, err := cache.Get(ctx, 3)
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx, 3))

	// Next read goes back to storage.
	_, err = cache.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, manifests.OCRResultReads)
}

func TestCacheBulkWarm(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	manifests := store.NewMemoryManifestStore()
	manifests.AddManifest(manifestWithOCR(t, 1, 1))
	manifests.AddManifest(manifestWithOCR(t, 2, 2))
	manifests.AddManifest(domain.Manifest{ID: 3, GroupID: 1, FileName: "no-ocr.pdf"})
	cache := NewCache(NewMemoryStore(), manifests, time.Hour, testLogger())

	require.NoError(t, cache.BulkWarm(ctx, []int64{1, 2, 3}))

	// Warmed entries are served without a storage read.
	for _, id := range []int64{1, 2} {
		cached, err := cache.Get(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, cached)
	}
	assert.Equal(t, 0, manifests.OCRResultReads)
}

func TestCacheWarmupMostRecent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	manifests := store.NewMemoryManifestStore()
	for i := int64(1); i <= 5; i++ {
		m := manifestWithOCR(t, i, 1)
		m.UpdatedAt = time.Date(2026, 8, int(i), 0, 0, 0, 0, time.UTC)
		manifests.AddManifest(m)
	}
	cache := NewCache(NewMemoryStore(), manifests, time.Hour, testLogger())

	warmed, err := cache.WarmupMostRecent(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, warmed)

	stats, err := cache.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Size)
	assert.Equal(t, 5, stats.ManifestsWithResult)
	assert.InDelta(t, 60.0, stats.CacheHitRate, 0.001)
}

func TestCacheClearAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	manifests := store.NewMemoryManifestStore()
	manifests.AddManifest(manifestWithOCR(t, 1, 1))
	manifests.AddManifest(manifestWithOCR(t, 2, 1))
	cache := NewCache(NewMemoryStore(), manifests, time.Hour, testLogger())

	require.NoError(t, cache.BulkWarm(ctx, []int64{1, 2}))
	require.NoError(t, cache.ClearAll(ctx))

	stats, err := cache.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Size)
}

func TestCacheGetPageCount(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	manifests := store.NewMemoryManifestStore()
	manifests.AddManifest(manifestWithOCR(t, 11, 4))
	cache := NewCache(NewMemoryStore(), manifests, time.Hour, testLogger())

	count, err := cache.GetPageCount(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	count, err = cache.GetPageCount(ctx, 999)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := NewMemoryStore()

	current := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	kv.SetClock(func() time.Time { return current })

	require.NoError(t, kv.Set(ctx, "k", []byte("v"), time.Minute))
	_, ok, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	current = current.Add(2 * time.Minute)
	_, ok, err = kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "expired entries are dropped lazily")
}

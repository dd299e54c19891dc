package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/manifold-api/internal/api/middleware"
	"github.com/phrazzld/manifold-api/internal/domain"
	"github.com/phrazzld/manifold-api/internal/ocr"
	"github.com/phrazzld/manifold-api/internal/store"
)

func newCacheEnv() (*testEnv, *store.MemoryManifestStore) {
	manifests := store.NewMemoryManifestStore()
	cache := ocr.NewCache(ocr.NewMemoryStore(), manifests, time.Hour, testLogger())
	handler := NewCacheHandler(cache)

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.Identity)
		r.Get("/ocr-cache/stats", handler.GetStats)
		r.Post("/ocr-cache/warmup", handler.Warmup)
		r.Delete("/ocr-cache", handler.Clear)
	})

	return &testEnv{router: router, manifests: manifests}, manifests
}

func seedOCRManifest(manifests *store.MemoryManifestStore, id int64) {
	score := 0.9
	processed := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	manifests.AddManifest(domain.Manifest{
		ID:       id,
		GroupID:  1,
		FileName: "scan.pdf",
		OCRResult: []byte(`{"document":{"pages":1},` +
			`"pages":[{"pageNumber":1,"text":"hello","confidence":0.9}]}`),
		OCRQualityScore: &score,
		OCRProcessedAt:  &processed,
		UpdatedAt:       processed.Add(time.Duration(id) * time.Hour),
	})
}

func TestCacheWarmupEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("explicit manifest ids", func(t *testing.T) {
		t.Parallel()
		env, manifests := newCacheEnv()
		seedOCRManifest(manifests, 1)
		seedOCRManifest(manifests, 2)

		rec := env.do(t, http.MethodPost, "/api/ocr-cache/warmup", WarmupRequest{
			ManifestIDs: []int64{1, 2},
		})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 2, decodeBody[WarmupResponse](t, rec).Warmed)
	})

	t.Run("most recent with limit", func(t *testing.T) {
		t.Parallel()
		env, manifests := newCacheEnv()
		for i := int64(1); i <= 5; i++ {
			seedOCRManifest(manifests, i)
		}

		rec := env.do(t, http.MethodPost, "/api/ocr-cache/warmup", WarmupRequest{Limit: 3})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 3, decodeBody[WarmupResponse](t, rec).Warmed)
	})

	t.Run("empty body warms most recent up to the default", func(t *testing.T) {
		t.Parallel()
		env, manifests := newCacheEnv()
		seedOCRManifest(manifests, 1)

		rec := env.do(t, http.MethodPost, "/api/ocr-cache/warmup", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, decodeBody[WarmupResponse](t, rec).Warmed)
	})
}

func TestCacheStatsEndpoint(t *testing.T) {
	t.Parallel()
	env, manifests := newCacheEnv()
	for i := int64(1); i <= 4; i++ {
		seedOCRManifest(manifests, i)
	}

	rec := env.do(t, http.MethodPost, "/api/ocr-cache/warmup", WarmupRequest{ManifestIDs: []int64{1, 2}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/ocr-cache/stats", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	stats := decodeBody[ocr.Stats](t, rec)
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, 4, stats.ManifestsWithResult)
	assert.InDelta(t, 50.0, stats.CacheHitRate, 0.001)
}

func TestCacheClearEndpoint(t *testing.T) {
	t.Parallel()
	env, manifests := newCacheEnv()
	seedOCRManifest(manifests, 1)

	rec := env.do(t, http.MethodPost, "/api/ocr-cache/warmup", WarmupRequest{ManifestIDs: []int64{1}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/ocr-cache", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/ocr-cache/stats", nil)
	assert.Equal(t, 0, decodeBody[ocr.Stats](t, rec).Size)
}

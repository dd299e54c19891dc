// Package ocr provides the read-through cache that sits in front of the
// persisted text-recognition results. Storage (the manifest store) is the
// system of record; the cache is strictly derived and can be invalidated
// or dropped at any time without data loss.
package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/manifold-api/internal/async"
	"github.com/phrazzld/manifold-api/internal/domain"
	"github.com/phrazzld/manifold-api/internal/store"
)

// cachePrefix namespaces all OCR cache keys.
const cachePrefix = "manifold:ocr:"

// DefaultTTL is the cache entry lifetime used when configuration does not
// override it.
const DefaultTTL = time.Hour

// defaultWarmupLimit bounds WarmupMostRecent when the caller passes no
// explicit limit.
const defaultWarmupLimit = 100

// defaultWarmConcurrency caps concurrent cache writes during bulk warming.
const defaultWarmConcurrency = 4

// CachedResult is the cached view of one manifest's recognition result.
// There is at most one authoritative value per manifest; writes overwrite,
// they never version.
type CachedResult struct {
	ManifestID   int64           `json:"manifestId"`
	Result       json.RawMessage `json:"result"`
	QualityScore float64         `json:"qualityScore"`
	ProcessedAt  time.Time       `json:"processedAt"`
	PageCount    int             `json:"pageCount"`
}

// Stats describes the cache's current footprint. CacheHitRate is the
// cached-count / manifests-with-result ratio as a percentage: a proxy for
// hit rate, not a true hit/miss measurement.
type Stats struct {
	Size                int     `json:"size"`
	ManifestsWithResult int     `json:"manifestsWithResult"`
	CacheHitRate        float64 `json:"cacheHitRate"`
}

// KeyValueStore is the storage contract the cache runs on. The production
// implementation is Redis (internal/platform/redisq.CacheStore); tests use
// the in-memory implementation in this package.
// Version: 1.0
type KeyValueStore interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set writes value under key with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Del removes key; removing a missing key is not an error.
	Del(ctx context.Context, key string) error

	// Keys returns all keys under the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Cache is the read-through, write-through OCR result cache keyed by
// manifest id.
type Cache struct {
	kv              KeyValueStore
	manifests       store.ManifestStore
	ttl             time.Duration
	warmConcurrency int
	logger          *slog.Logger
}

// NewCache creates a cache with the given backing store and TTL. A
// non-positive TTL selects DefaultTTL.
func NewCache(kv KeyValueStore, manifests store.ManifestStore, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		kv:              kv,
		manifests:       manifests,
		ttl:             ttl,
		warmConcurrency: defaultWarmConcurrency,
		logger:          logger,
	}
}

// SetWarmConcurrency overrides the cap on concurrent cache writes during
// bulk warming. Non-positive values are ignored.
func (c *Cache) SetWarmConcurrency(limit int) {
	if limit > 0 {
		c.warmConcurrency = limit
	}
}

func cacheKey(manifestID int64) string {
	return fmt.Sprintf("%s%d", cachePrefix, manifestID)
}

// Get returns the cached result for a manifest, reading through to storage
// on a miss and populating the cache before returning. A manifest with no
// persisted result yields (nil, nil): absence is not an error.
func (c *Cache) Get(ctx context.Context, manifestID int64) (*CachedResult, error) {
	raw, ok, err := c.kv.Get(ctx, cacheKey(manifestID))
	if err != nil {
		return nil, err
	}
	if ok {
		var cached CachedResult
		if err := json.Unmarshal(raw, &cached); err == nil {
			return &cached, nil
		}
		// Corrupt entry: drop it and fall through to storage.
		_ = c.kv.Del(ctx, cacheKey(manifestID))
	}

	manifest, err := c.manifests.GetOCRResult(ctx, manifestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !manifest.HasOCRResult() {
		return nil, nil
	}

	result := buildCachedResult(manifest)
	if err := c.Set(ctx, manifestID, result); err != nil {
		// The caller still gets the storage value; losing the cache write
		// only costs the next read.
		c.logger.Warn("failed to populate OCR cache on read-through",
			"manifest_id", manifestID,
			"error", err)
	}
	return result, nil
}

// Set writes a cache entry unconditionally, independent of storage state.
// Used to keep cache and storage in sync after an external write.
func (c *Cache) Set(ctx context.Context, manifestID int64, result *CachedResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal cached OCR result: %w", err)
	}
	return c.kv.Set(ctx, cacheKey(manifestID), payload, c.ttl)
}

// Invalidate removes the cache entry for a manifest. Storage is untouched.
func (c *Cache) Invalidate(ctx context.Context, manifestID int64) error {
	return c.kv.Del(ctx, cacheKey(manifestID))
}

// BulkWarm loads the listed manifests' persisted results in one query and
// writes all cache entries concurrently. Per-manifest failures are logged
// and never abort the batch.
func (c *Cache) BulkWarm(ctx context.Context, manifestIDs []int64) error {
	if len(manifestIDs) == 0 {
		return nil
	}

	manifests, err := c.manifests.GetOCRResults(ctx, manifestIDs)
	if err != nil {
		return fmt.Errorf("failed to load OCR results for bulk warm: %w", err)
	}

	results := async.Map(ctx, manifests, c.warmConcurrency,
		func(ctx context.Context, manifest *domain.Manifest, _ int) (struct{}, error) {
			return struct{}{}, c.Set(ctx, manifest.ID, buildCachedResult(manifest))
		})

	for i, result := range results {
		if result.Err != nil {
			c.logger.Warn("failed to warm OCR cache entry",
				"manifest_id", manifests[i].ID,
				"error", result.Err)
		}
	}
	return nil
}

// WarmupMostRecent warms the cache for the limit most recently updated
// manifests that have a persisted result, newest first, and returns how
// many were cached. A failure on one manifest is swallowed and processing
// continues with the rest.
func (c *Cache) WarmupMostRecent(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultWarmupLimit
	}

	manifests, err := c.manifests.ListRecentWithOCR(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list manifests for cache warmup: %w", err)
	}

	cached := 0
	for _, manifest := range manifests {
		if err := c.Set(ctx, manifest.ID, buildCachedResult(manifest)); err != nil {
			c.logger.Warn("failed to warm OCR cache entry",
				"manifest_id", manifest.ID,
				"error", err)
			continue
		}
		cached++
	}
	return cached, nil
}

// GetPageCount returns the page count for a manifest's recognition result,
// or 0 when no result exists anywhere.
func (c *Cache) GetPageCount(ctx context.Context, manifestID int64) (int, error) {
	cached, err := c.Get(ctx, manifestID)
	if err != nil {
		return 0, err
	}
	if cached == nil {
		return 0, nil
	}
	return cached.PageCount, nil
}

// ClearAll removes every entry under the cache prefix.
func (c *Cache) ClearAll(ctx context.Context) error {
	keys, err := c.kv.Keys(ctx, cachePrefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := c.kv.Del(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// GetStats reports the cache footprint and the hit-rate proxy.
func (c *Cache) GetStats(ctx context.Context) (*Stats, error) {
	keys, err := c.kv.Keys(ctx, cachePrefix)
	if err != nil {
		return nil, err
	}

	withResult, err := c.manifests.CountWithOCR(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{Size: len(keys), ManifestsWithResult: withResult}
	if withResult > 0 {
		stats.CacheHitRate = float64(len(keys)) / float64(withResult) * 100
	}
	return stats, nil
}

// buildCachedResult derives the cache entry for a manifest that has a
// persisted recognition result.
func buildCachedResult(manifest *domain.Manifest) *CachedResult {
	result := &CachedResult{
		ManifestID: manifest.ID,
		Result:     manifest.OCRResult,
	}
	if manifest.OCRQualityScore != nil {
		result.QualityScore = *manifest.OCRQualityScore
	}
	if manifest.OCRProcessedAt != nil {
		result.ProcessedAt = *manifest.OCRProcessedAt
	} else {
		result.ProcessedAt = time.Now().UTC()
	}

	var decoded domain.OCRResult
	if err := json.Unmarshal(manifest.OCRResult, &decoded); err == nil {
		result.PageCount = decoded.PageCount()
	}
	return result
}

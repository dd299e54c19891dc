package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/manifold-api/internal/api/shared"
	"github.com/phrazzld/manifold-api/internal/ocr"
)

// CacheHandler handles OCR cache inspection and warmup HTTP requests.
type CacheHandler struct {
	cache     *ocr.Cache
	validator *validator.Validate
}

// NewCacheHandler creates a new CacheHandler.
func NewCacheHandler(cache *ocr.Cache) *CacheHandler {
	return &CacheHandler{
		cache:     cache,
		validator: validator.New(),
	}
}

// GetStats handles GET /api/ocr-cache/stats requests.
func (h *CacheHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.cache.GetStats(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}

// Warmup handles POST /api/ocr-cache/warmup requests. An explicit
// manifest id list warms exactly those manifests; otherwise the most
// recently updated manifests are warmed up to the requested limit.
func (h *CacheHandler) Warmup(w http.ResponseWriter, r *http.Request) {
	var req WarmupRequest
	if r.ContentLength > 0 {
		if err := shared.DecodeJSON(r, &req); err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
			return
		}
		if err := h.validator.Struct(req); err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
			return
		}
	}

	if len(req.ManifestIDs) > 0 {
		if err := h.cache.BulkWarm(r.Context(), req.ManifestIDs); err != nil {
			HandleAPIError(w, r, err, "")
			return
		}
		shared.RespondWithJSON(w, r, http.StatusOK, WarmupResponse{Warmed: len(req.ManifestIDs)})
		return
	}

	warmed, err := h.cache.WarmupMostRecent(r.Context(), req.Limit)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, WarmupResponse{Warmed: warmed})
}

// Clear handles DELETE /api/ocr-cache requests.
func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.ClearAll(r.Context()); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/manifold-api/internal/api/shared"
	"github.com/phrazzld/manifold-api/internal/service"
	"github.com/phrazzld/manifold-api/internal/store"
)

// ExtractionHandler handles extraction-related HTTP requests.
type ExtractionHandler struct {
	extraction service.ExtractionService
	validator  *validator.Validate
}

// NewExtractionHandler creates a new ExtractionHandler.
func NewExtractionHandler(extraction service.ExtractionService) *ExtractionHandler {
	return &ExtractionHandler{
		extraction: extraction,
		validator:  validator.New(),
	}
}

// Extract handles POST /api/manifests/{id}/extract requests.
func (h *ExtractionHandler) Extract(w http.ResponseWriter, r *http.Request) {
	userID, manifestID, ok := requireUserAndPathID(w, r, "id")
	if !ok {
		return
	}

	var req ExtractRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	result, err := h.extraction.ExtractSingle(r.Context(), userID, manifestID, service.ExtractOptions{
		LLMModelID: req.LLMModelID,
		PromptID:   req.PromptID,
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	// 202: the job runs asynchronously.
	shared.RespondWithJSON(w, r, http.StatusAccepted, ExtractResponse{JobID: result.JobID})
}

// ExtractBulk handles POST /api/manifests/extract-bulk requests.
func (h *ExtractionHandler) ExtractBulk(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User identity required")
		return
	}

	var req BulkExtractRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	result, err := h.extraction.ExtractBulk(r.Context(), userID, service.BulkExtractOptions{
		ManifestIDs: req.ManifestIDs,
		LLMModelID:  req.LLMModelID,
		PromptID:    req.PromptID,
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, batchToResponse(result))
}

// ExtractFiltered handles POST /api/groups/{id}/extract-filtered requests.
func (h *ExtractionHandler) ExtractFiltered(w http.ResponseWriter, r *http.Request) {
	userID, groupID, ok := requireUserAndPathID(w, r, "id")
	if !ok {
		return
	}

	var req FilteredExtractRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	result, err := h.extraction.ExtractFiltered(r.Context(), userID, groupID, service.FilteredExtractOptions{
		Filters: store.ExtractionFilters{
			Statuses: req.Statuses,
			Search:   req.Search,
		},
		Behavior: store.ExtractionBehavior{
			IncludeCompleted:  req.IncludeCompleted,
			IncludeProcessing: req.IncludeProcessing,
		},
		LLMModelID:      req.LLMModelID,
		PromptID:        req.PromptID,
		TextExtractorID: req.TextExtractorID,
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, batchToResponse(result))
}

// ReExtractField handles POST /api/manifests/{id}/re-extract-field
// requests. With previewOnly set the response carries only the OCR
// context preview and no job is enqueued.
func (h *ExtractionHandler) ReExtractField(w http.ResponseWriter, r *http.Request) {
	userID, manifestID, ok := requireUserAndPathID(w, r, "id")
	if !ok {
		return
	}

	var req ReExtractFieldRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	result, err := h.extraction.ReExtractField(r.Context(), userID, manifestID, service.ReExtractFieldOptions{
		FieldName:         req.FieldName,
		LLMModelID:        req.LLMModelID,
		PromptID:          req.PromptID,
		CustomPrompt:      req.CustomPrompt,
		PreviewOnly:       req.PreviewOnly,
		IncludeOCRContext: req.IncludeOCRContext,
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	status := http.StatusAccepted
	if req.PreviewOnly {
		status = http.StatusOK
	}
	shared.RespondWithJSON(w, r, status, ReExtractFieldResponse{
		JobID:      result.JobID,
		FieldName:  result.FieldName,
		OCRPreview: result.OCRPreview,
	})
}

// ReExtract handles POST /api/manifests/{id}/re-extract requests. The
// body is optional; without one the manifest is re-extracted in full with
// the defaults the consumer resolves.
func (h *ExtractionHandler) ReExtract(w http.ResponseWriter, r *http.Request) {
	userID, manifestID, ok := requireUserAndPathID(w, r, "id")
	if !ok {
		return
	}

	var req ReExtractRequest
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

	result, err := h.extraction.ReExtract(r.Context(), userID, manifestID, service.ReExtractFieldOptions{
		FieldName:  req.FieldName,
		LLMModelID: req.LLMModelID,
		PromptID:   req.PromptID,
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, ExtractResponse{JobID: result.JobID})
}

// RefreshOCR handles POST /api/manifests/{id}/ocr/refresh-job requests.
func (h *ExtractionHandler) RefreshOCR(w http.ResponseWriter, r *http.Request) {
	userID, manifestID, ok := requireUserAndPathID(w, r, "id")
	if !ok {
		return
	}

	var req RefreshOCRRequest
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

	result, err := h.extraction.RefreshOCR(r.Context(), userID, manifestID, service.RefreshOCROptions{
		TextExtractorID: req.TextExtractorID,
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, ExtractResponse{JobID: result.JobID})
}

// batchToResponse converts a batch result to its response shape.
func batchToResponse(result *service.BatchExtractResult) BatchExtractResponse {
	jobs := make([]BatchJobResponse, len(result.Jobs))
	for i, job := range result.Jobs {
		jobs[i] = BatchJobResponse{JobID: job.JobID, ManifestID: job.ManifestID}
	}
	return BatchExtractResponse{
		JobID:         result.JobID,
		JobIDs:        result.JobIDs,
		Jobs:          jobs,
		ManifestCount: result.ManifestCount,
	}
}

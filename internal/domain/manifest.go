package domain

import (
	"encoding/json"
	"time"
)

// Manifest represents a scanned document registered for extraction.
// Manifests belong to a group, and groups belong to a project; the
// project-level fields are resolved through that relation by the store
// so callers can fall back to the project's default LLM model.
type Manifest struct {
	// ID is the manifest's unique identifier
	ID int64

	// GroupID is the identifier of the group the manifest belongs to
	GroupID int64

	// FileName is the original name of the uploaded file
	FileName string

	// ExtractionStatus is the manifest's last known extraction outcome
	// (e.g. "completed", "processing", "failed"), nil before the first run
	ExtractionStatus *string

	// TextExtractorID optionally pins the OCR engine used for this manifest
	TextExtractorID *string

	// OCRResult is the persisted recognition result, nil until OCR has run
	OCRResult json.RawMessage

	// OCRQualityScore is the recognition confidence for the stored result
	OCRQualityScore *float64

	// OCRProcessedAt records when the stored OCR result was produced
	OCRProcessedAt *time.Time

	// ProjectID is the owning project's id, resolved via the group relation
	ProjectID *int64

	// ProjectLLMModelID is the owning project's default model id, if any
	ProjectLLMModelID *string

	// CreatedAt is the timestamp when the manifest was registered
	CreatedAt time.Time

	// UpdatedAt is the timestamp when the manifest was last modified
	UpdatedAt time.Time
}

// HasOCRResult reports whether a recognition result has been persisted
// for this manifest.
func (m *Manifest) HasOCRResult() bool {
	return len(m.OCRResult) > 0
}

package service

import (
	"encoding/json"
	"strings"

	"github.com/phrazzld/manifold-api/internal/domain"
)

// Snippet window around a field-name match in the page text.
const (
	previewBefore   = 120
	previewAfter    = 180
	previewFallback = 300
)

// OCRContextPreview is a field-scoped excerpt of a manifest's recognition
// result, used to give the model targeted context for re-extraction.
type OCRContextPreview struct {
	FieldName  string  `json:"fieldName"`
	Snippet    string  `json:"snippet"`
	PageNumber int     `json:"pageNumber"`
	Confidence float64 `json:"confidence"`
}

// BuildOCRContextPreview scans the manifest's recognized pages for the
// requested field name and returns a snippet around the first match. The
// field name is matched loosely: only the last dot-separated segment is
// used, with underscores treated as spaces and case ignored. When no page
// mentions the field, the first characters of the combined page text serve
// as a fallback. Returns nil when the manifest has no usable OCR result.
func BuildOCRContextPreview(manifest *domain.Manifest, fieldName string) *OCRContextPreview {
	if !manifest.HasOCRResult() {
		return nil
	}

	var result domain.OCRResult
	if err := json.Unmarshal(manifest.OCRResult, &result); err != nil || len(result.Pages) == 0 {
		return nil
	}

	rawField := fieldName
	if idx := strings.LastIndex(fieldName, "."); idx >= 0 {
		rawField = fieldName[idx+1:]
	}
	candidates := []string{
		strings.ToLower(strings.ReplaceAll(rawField, "_", " ")),
		strings.ToLower(rawField),
	}

	for _, page := range result.Pages {
		lower := strings.ToLower(page.Text)
		for _, term := range candidates {
			matchIndex := strings.Index(lower, term)
			if matchIndex < 0 {
				continue
			}
			start := matchIndex - previewBefore
			if start < 0 {
				start = 0
			}
			end := matchIndex + previewAfter
			if end > len(page.Text) {
				end = len(page.Text)
			}
			return &OCRContextPreview{
				FieldName:  fieldName,
				Snippet:    strings.TrimSpace(page.Text[start:end]),
				PageNumber: page.PageNumber,
				Confidence: page.Confidence,
			}
		}
	}

	texts := make([]string, len(result.Pages))
	for i, page := range result.Pages {
		texts[i] = page.Text
	}
	fallback := strings.TrimSpace(strings.Join(texts, "\n"))
	if fallback == "" {
		return nil
	}
	if len(fallback) > previewFallback {
		fallback = fallback[:previewFallback]
	}

	return &OCRContextPreview{
		FieldName:  fieldName,
		Snippet:    fallback,
		PageNumber: result.Pages[0].PageNumber,
		Confidence: result.Pages[0].Confidence,
	}
}

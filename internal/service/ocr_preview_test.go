package service

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/manifold-api/internal/domain"
)

func previewManifest(t *testing.T, pages ...domain.OCRPage) *domain.Manifest {
	t.Helper()
	raw, err := json.Marshal(domain.OCRResult{
		Document: domain.OCRDocumentInfo{Pages: len(pages)},
		Pages:    pages,
	})
	require.NoError(t, err)
	return &domain.Manifest{ID: 1, GroupID: 1, OCRResult: raw}
}

func TestBuildOCRContextPreviewMatch(t *testing.T) {
	t.Parallel()

	padding := strings.Repeat("x", 500)
	text := padding + " Total Amount: $99.50 " + padding
	manifest := previewManifest(t, domain.OCRPage{PageNumber: 2, Text: text, Confidence: 0.9})

	preview := BuildOCRContextPreview(manifest, "total_amount")
	require.NotNil(t, preview)
	assert.Equal(t, "total_amount", preview.FieldName)
	assert.Equal(t, 2, preview.PageNumber)
	assert.Equal(t, 0.9, preview.Confidence)
	assert.Contains(t, preview.Snippet, "Total Amount")

	// The snippet is a window around the match, not the whole page.
	assert.LessOrEqual(t, len(preview.Snippet), previewBefore+previewAfter)
}

func TestBuildOCRContextPreviewDottedFieldName(t *testing.T) {
	t.Parallel()

	manifest := previewManifest(t, domain.OCRPage{
		PageNumber: 1,
		Text:       "Vendor Name: Acme Corp",
		Confidence: 0.88,
	})

	// Only the last dot segment is matched, underscores count as spaces.
	preview := BuildOCRContextPreview(manifest, "fields.invoice.vendor_name")
	require.NotNil(t, preview)
	assert.Contains(t, preview.Snippet, "Vendor Name")
	assert.Equal(t, "fields.invoice.vendor_name", preview.FieldName)
}

func TestBuildOCRContextPreviewWindowClampedAtStart(t *testing.T) {
	t.Parallel()

	manifest := previewManifest(t, domain.OCRPage{
		PageNumber: 1,
		Text:       "Total: $5" + strings.Repeat(" filler", 100),
		Confidence: 0.8,
	})

	preview := BuildOCRContextPreview(manifest, "total")
	require.NotNil(t, preview)
	assert.True(t, strings.HasPrefix(preview.Snippet, "Total"))
}

func TestBuildOCRContextPreviewFallback(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("lorem ipsum ", 60)
	manifest := previewManifest(t,
		domain.OCRPage{PageNumber: 1, Text: long, Confidence: 0.7},
		domain.OCRPage{PageNumber: 2, Text: long, Confidence: 0.6},
	)

	// No page mentions the field; the combined text is truncated instead.
	preview := BuildOCRContextPreview(manifest, "nonexistent_field")
	require.NotNil(t, preview)
	assert.Len(t, preview.Snippet, previewFallback)
	assert.Equal(t, 1, preview.PageNumber)
	assert.Equal(t, 0.7, preview.Confidence)
}

func TestBuildOCRContextPreviewNilCases(t *testing.T) {
	t.Parallel()

	t.Run("no OCR result", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, BuildOCRContextPreview(&domain.Manifest{ID: 1}, "total"))
	})

	t.Run("corrupt OCR payload", func(t *testing.T) {
		t.Parallel()
		manifest := &domain.Manifest{ID: 1, OCRResult: []byte("{not json")}
		assert.Nil(t, BuildOCRContextPreview(manifest, "total"))
	})

	t.Run("no pages", func(t *testing.T) {
		t.Parallel()
		manifest := previewManifest(t)
		assert.Nil(t, BuildOCRContextPreview(manifest, "total"))
	})

	t.Run("pages with only whitespace", func(t *testing.T) {
		t.Parallel()
		manifest := previewManifest(t, domain.OCRPage{PageNumber: 1, Text: "   ", Confidence: 0.5})
		assert.Nil(t, BuildOCRContextPreview(manifest, "total"))
	})
}

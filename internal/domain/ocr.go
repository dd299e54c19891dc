package domain

// OCRResult is the decoded shape of a manifest's persisted recognition
// result. Only the fields this subsystem reads are modeled; the raw JSON
// is stored alongside and passed through to consumers untouched.
type OCRResult struct {
	Document OCRDocumentInfo `json:"document"`
	Pages    []OCRPage       `json:"pages"`
}

// OCRDocumentInfo carries document-level metadata from the OCR engine.
type OCRDocumentInfo struct {
	Pages int `json:"pages"`
}

// OCRPage is a single recognized page.
type OCRPage struct {
	PageNumber int     `json:"pageNumber"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// PageCount returns the document-level page count, or 0 when the engine
// did not report one.
func (r *OCRResult) PageCount() int {
	if r == nil {
		return 0
	}
	return r.Document.Pages
}

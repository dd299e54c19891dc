package service

import "errors"

// Common service errors - sentinel errors used across service implementations.
// These represent expected conditions that callers check with errors.Is().
//
// Error handling principles:
// 1. Service methods return sentinel errors for expected error conditions
// 2. Unexpected errors are wrapped in service-specific error types
// 3. Callers use errors.Is/errors.As to check for specific error conditions
// 4. The API layer maps service errors to appropriate HTTP status codes
var (
	// ErrOCRResultRequired indicates that field-level re-extraction was
	// requested for a manifest with no persisted recognition result. The
	// caller can correct this by running extraction first.
	// API layer maps this to HTTP 400 Bad Request.
	ErrOCRResultRequired = errors.New("OCR result is required, run extraction first")
)

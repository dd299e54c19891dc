// Package logger provides structured JSON logging over log/slog with
// configurable levels, plus helpers for carrying a request-scoped logger
// through context.
package logger

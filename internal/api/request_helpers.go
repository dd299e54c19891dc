package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/phrazzld/manifold-api/internal/api/shared"
	"github.com/phrazzld/manifold-api/internal/domain"
)

// getUserIDFromContext extracts the authenticated user's id from the
// request context, placed there by the identity middleware.
func getUserIDFromContext(r *http.Request) (int64, bool) {
	userID, ok := r.Context().Value(shared.UserIDContextKey).(int64)
	if !ok || userID <= 0 {
		return 0, false
	}
	return userID, true
}

// getPathInt64 extracts a positive int64 from the named URL path parameter.
func getPathInt64(r *http.Request, paramName string) (int64, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return 0, fmt.Errorf("%w: %s is required", domain.ErrValidation, paramName)
	}

	id, err := strconv.ParseInt(pathParam, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s has invalid format", domain.ErrInvalidID, paramName)
	}
	return id, nil
}

// requireUserAndPathID extracts both the caller's id and a path id,
// writing an error response and returning ok=false if either fails.
func requireUserAndPathID(w http.ResponseWriter, r *http.Request, paramName string) (userID, pathID int64, ok bool) {
	userID, found := getUserIDFromContext(r)
	if !found {
		HandleAPIError(w, r, domain.ErrUnauthorized, "User identity required")
		return 0, 0, false
	}

	pathID, err := getPathInt64(r, paramName)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return 0, 0, false
	}
	return userID, pathID, true
}

// queryInt parses an optional integer query parameter, returning def when
// the parameter is absent. A present but malformed value also returns def;
// range handling is left to the clamping rules downstream.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return value
}

// queryInt64Ptr parses an optional int64 query parameter, nil when absent
// or malformed.
func queryInt64Ptr(r *http.Request, name string) *int64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &value
}

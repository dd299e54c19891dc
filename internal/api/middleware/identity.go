package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/phrazzld/manifold-api/internal/api/shared"
)

// userIDHeader carries the caller's identity, resolved upstream by the
// API gateway. This service trusts the header; it does not verify tokens.
const userIDHeader = "X-User-ID"

// Identity reads the upstream-resolved user id header and places it in
// the request context. Requests without a valid id are rejected before
// reaching any handler.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(userIDHeader)
		if raw == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "User identity required")
			return
		}

		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid user identity")
			return
		}

		ctx := context.WithValue(r.Context(), shared.UserIDContextKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

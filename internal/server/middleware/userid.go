package middleware

import (
	"context"
	"net/http"
	"strings"
)

// UserIDHeader carries the authenticated caller. Authentication itself
// happens upstream; this service trusts the header.
const UserIDHeader = "X-User-ID"

type userIDContextKey struct{}

// RequireUserID rejects requests without a caller id with 401 and stores the
// id in the request context.
func RequireUserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if userID == "" || len(userID) > 128 {
			reject(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid "+UserIDHeader+" header")
			return
		}
		ctx := context.WithValue(r.Context(), userIDContextKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID returns the caller id stored by RequireUserID.
func UserID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(userIDContextKey{}).(string)
	return id
}

// WithUserID is used by tests that call handlers without the middleware.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey{}, userID)
}

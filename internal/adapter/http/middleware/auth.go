// Package middleware holds the HTTP middleware of the sync server.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/bolsoapp/bolso/internal/infrastructure/auth"
)

// ContextKey is the type for context keys.
type ContextKey string

const (
	// UserIDContextKey is the context key for the authenticated user id.
	UserIDContextKey ContextKey = "user_id"
)

// Auth verifies the Bearer access token and stores the user id in the
// request context.
func Auth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := jwtManager.Verify(parts[1], auth.KindAccess)
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDContextKey, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID extracts the authenticated user id from context.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDContextKey).(string)
	return id, ok
}

package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "kycvault/pkg/domain"
	"kycvault/pkg/requestcontext"
)

// SessionValidator checks a bearer token and returns the authenticated user.
// The core trusts this identity; authentication itself lives at the boundary.
type SessionValidator interface {
	ValidateSession(tokenString string) (id.UserID, error)
}

// RequireAuth rejects requests without a valid bearer session token and
// injects the authenticated user ID into the request context.
func RequireAuth(validator SessionValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if raw == "" || raw == r.Header.Get("Authorization") {
				writeUnauthorized(w)
				return
			}

			userID, err := validator.ValidateSession(raw)
			if err != nil {
				logger.Debug("session validation failed",
					"path", r.URL.Path,
					"error", err,
				)
				writeUnauthorized(w)
				return
			}

			ctx := requestcontext.WithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized"}`))
}

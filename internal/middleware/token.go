package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
)

// TokenParam is the query parameter carrying the shared secret.
const TokenParam = "token"

// ValidToken compares a presented token with the configured secret in
// constant time.
func ValidToken(presented, expected string) bool {
	return subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) == 1
}

// RequireToken returns middleware that rejects requests whose ?token= does
// not match the shared secret with 401, before the body is read.
func RequireToken(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ValidToken(r.URL.Query().Get(TokenParam), expected) {
				slog.Warn("Rejected request with invalid token", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"detail":"Invalid token"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package server

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

const hostKeyHeader = "X-Host-Key"

// hostKeyMiddleware guards host-only routes with a bcrypt-hashed shared key.
// An empty hash leaves the routes open, which is how local demos run.
func hostKeyMiddleware(hash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if hash == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(hostKeyHeader)
			if key == "" {
				writeError(w, http.StatusUnauthorized, "host key required")
				return
			}
			if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
				writeError(w, http.StatusUnauthorized, "invalid host key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package server

import (
	"crypto/subtle"
	"net/http"
)

// RunSecretMiddleware rejects requests whose X-Run-Secret header does not
// match the configured secret. An empty secret disables the check entirely.
func RunSecretMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret != "" {
				provided := r.Header.Get("X-Run-Secret")
				if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"net/http"

	"bankledger/internal/models"
)

// RequireRole must run after Auth.
func RequireRole(role models.Kind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if p.Role != role {
				http.Error(w, string(role)+" privileges required", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

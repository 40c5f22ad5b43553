package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"bankledger/internal/session"
)

type contextKey string

const (
	principalKey contextKey = "principal"
	tokenKey     contextKey = "token"
)

type Resolver interface {
	Resolve(ctx context.Context, token string) (session.Principal, error)
}

func PrincipalFromContext(ctx context.Context) (session.Principal, bool) {
	p, ok := ctx.Value(principalKey).(session.Principal)
	return p, ok
}

// TokenFromContext returns the bearer token the request was authenticated with.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey).(string)
	return token, ok
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", errors.New("invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

func Auth(resolver Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := BearerToken(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}
			p, err := resolver.Resolve(r.Context(), token)
			if errors.Is(err, session.ErrUnauthorized) {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			if err != nil {
				http.Error(w, "unable to verify session", http.StatusInternalServerError)
				return
			}
			ctx := context.WithValue(r.Context(), principalKey, p)
			ctx = context.WithValue(ctx, tokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

package middleware

import (
	"context"
	"net/http"
	"strings"
)

const queryTokenKey contextKey = "query_token"

// QueryToken moves a credential passed as a query parameter into the request
// context and strips it from the URL, so request logging never sees it.
func QueryToken(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if !q.Has(param) {
				next.ServeHTTP(w, r)
				return
			}
			token := strings.TrimSpace(q.Get(param))
			q.Del(param)

			r = r.Clone(context.WithValue(r.Context(), queryTokenKey, token))
			r.URL.RawQuery = q.Encode()
			r.RequestURI = r.URL.RequestURI()
			next.ServeHTTP(w, r)
		})
	}
}

// QueryTokenFromContext returns the token QueryToken lifted off the URL.
func QueryTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(queryTokenKey).(string)
	return token, ok && token != ""
}

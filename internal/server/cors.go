package server

import (
	"net/http"
	"strings"
)

// DefaultCORSHeaders are the request headers the IDE client sends.
var DefaultCORSHeaders = []string{"authorization", "x-client-info", "apikey", "content-type", "accept", "x-stream"}

// CORSMiddleware sets permissive CORS headers on every response and answers
// preflight requests with 200. Authorization is enforced downstream, not by
// origin.
func CORSMiddleware(allowedHeaders []string) func(http.Handler) http.Handler {
	if len(allowedHeaders) == 0 {
		allowedHeaders = DefaultCORSHeaders
	}
	headers := strings.Join(allowedHeaders, ", ")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", "*")
			h.Set("Access-Control-Allow-Headers", headers)
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Expose-Headers", "X-Request-ID")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ok"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

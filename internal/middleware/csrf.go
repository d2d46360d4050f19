package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// EnforceCSRF requires state-changing requests to echo the session's CSRF
// token in X-CSRF-Token. Safe methods pass through.
func EnforceCSRF(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled || isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				writeUnauthorized(w, r, "Authentication required")
				return
			}
			token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
			if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(actor.CSRFToken)) != 1 {
				writeError(w, r, http.StatusForbidden, "CSRF_INVALID", "Invalid CSRF token", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/leadboard/apps/api/internal/apperr"
)

// writeError renders the same envelope as httpx.WriteError, which cannot be
// used here because httpx depends on this package for request ids.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apperr.Envelope{
		Error:     apperr.EnvelopeBody{Code: code, Message: message, Details: details},
		RequestID: RequestIDFromContext(r.Context()),
	})
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	writeError(w, r, http.StatusUnauthorized, "unauthorized", message, nil)
}

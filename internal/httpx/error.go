package httpx

import (
	"net/http"

	"github.com/leadboard/apps/api/internal/apperr"
	"github.com/leadboard/apps/api/internal/middleware"
)

type (
	ErrorEnvelope = apperr.Envelope
	ErrorBody     = apperr.EnvelopeBody
)

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	WriteJSON(w, status, ErrorEnvelope{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
		RequestID: middleware.RequestIDFromContext(r.Context()),
	})
}

// StatusFor maps an apperr kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindScope:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// WriteAppError renders err with the envelope. Errors that are not *apperr.Error
// never leak their message.
func WriteAppError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		WriteError(w, r, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
		return
	}
	var details any
	if len(appErr.Details) > 0 {
		details = appErr.Details
	}
	WriteError(w, r, StatusFor(appErr.Kind), appErr.Code, appErr.Message, details)
}

package apperr

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

type Kind string

const (
	KindValidation Kind = "validation"
	KindScope      Kind = "scope"
	KindNotFound   Kind = "not_found"
	KindForbidden  Kind = "forbidden"
	KindStorage    Kind = "storage"
	// KindPartial marks failures that happened after some writes were committed.
	KindPartial Kind = "partial"
)

// Error is the typed failure returned by pipeline stages. The HTTP and CLI
// boundaries translate it; nothing in between should inspect Message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func Scope(code, message string) *Error {
	return &Error{Kind: KindScope, Code: code, Message: message}
}

func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func Forbidden(code, message string) *Error {
	return &Error{Kind: KindForbidden, Code: code, Message: message}
}

// Storage wraps a persistence failure, passing the Postgres error fields
// through in Details when the cause carries them.
func Storage(code, message string, err error) *Error {
	return &Error{Kind: KindStorage, Code: code, Message: message, Details: storageDetails(err), Err: err}
}

func Partial(code, message string, err error) *Error {
	return &Error{Kind: KindPartial, Code: code, Message: message, Details: storageDetails(err), Err: err}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func IsKind(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}

func storageDetails(err error) map[string]any {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}
	details := map[string]any{
		"db_code":    pgErr.Code,
		"db_message": pgErr.Message,
	}
	if pgErr.Detail != "" {
		details["db_detail"] = pgErr.Detail
	}
	if pgErr.ConstraintName != "" {
		details["db_constraint"] = pgErr.ConstraintName
	}
	return details
}

// Envelope is the JSON body of every error response.
type Envelope struct {
	Error     EnvelopeBody `json:"error"`
	RequestID string       `json:"requestId"`
}

type EnvelopeBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

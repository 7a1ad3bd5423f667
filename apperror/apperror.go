package apperror

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindValidation      Kind = "VALIDATION_ERROR"
	KindNotFound        Kind = "NOT_FOUND"
	KindConflict        Kind = "CONFLICT"
	KindUpstreamStorage Kind = "UPSTREAM_STORAGE_ERROR"
	KindPersistence     Kind = "PERSISTENCE_ERROR"
)

// Error is the structured error surfaced to callers: a readable message, the
// underlying cause and optional context fields.
type Error struct {
	Kind    Kind                   `json:"code"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
	Cause   error                  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the error kind to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUpstreamStorage:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func NewValidationError(message string, field string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: message,
		Context: map[string]interface{}{"field": field},
	}
}

func NewNotFoundError(resource string, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: resource + " not found",
		Context: map[string]interface{}{"resource": resource, "id": id},
	}
}

func NewConflictError(message string, cause error) *Error {
	return &Error{Kind: KindConflict, Message: message, Cause: cause}
}

func NewUpstreamStorageError(operation string, cause error) *Error {
	return &Error{
		Kind:    KindUpstreamStorage,
		Message: "blob storage operation failed",
		Context: map[string]interface{}{"operation": operation},
		Cause:   cause,
	}
}

func NewPersistenceError(operation string, cause error) *Error {
	return &Error{
		Kind:    KindPersistence,
		Message: "database operation failed",
		Context: map[string]interface{}{"operation": operation},
		Cause:   cause,
	}
}

// As extracts an *Error from err's chain. Anything unclassified is reported
// as a persistence failure.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindPersistence, Message: "internal error", Cause: err}
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

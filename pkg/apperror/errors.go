// Package apperror defines the error taxonomy shared by the intake and
// assistant APIs. Every error reported to a caller carries a machine-readable
// kind and code plus a human-readable message; the underlying cause is kept
// for logging only and is never rendered to clients.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindResourceLimit Kind = "resource_limit"
	KindPersistence   Kind = "persistence"
	KindExternal      Kind = "external"
	KindConfiguration Kind = "configuration"
)

// Well-known codes.
const (
	CodeNoFile             = "no_file"
	CodeInvalidFileType    = "invalid_file_type"
	CodeFileTooLarge       = "file_too_large"
	CodeInvalidRequest     = "invalid_request"
	CodeStorageUnavailable = "storage_unavailable"
	CodeUpstreamFailed     = "upstream_failed"
	CodeMissingCredential  = "missing_credential"
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Validation reports bad or missing input.
func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// ResourceLimit reports an input that exceeds a configured bound.
func ResourceLimit(code, message string) *Error {
	return &Error{Kind: KindResourceLimit, Code: code, Message: message}
}

// Persistence reports that the backing storage could not be reached or
// refused the write.
func Persistence(message string, cause error) *Error {
	return &Error{Kind: KindPersistence, Code: CodeStorageUnavailable, Message: message, Cause: cause}
}

// External reports a failed call to a third-party service.
func External(message string, cause error) *Error {
	return &Error{Kind: KindExternal, Code: CodeUpstreamFailed, Message: message, Cause: cause}
}

// Configuration reports a missing or invalid runtime setting.
func Configuration(code, message string) *Error {
	return &Error{Kind: KindConfiguration, Code: code, Message: message}
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a kind to the response status used by the HTTP layer.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindResourceLimit:
		return http.StatusRequestEntityTooLarge
	case KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Body is the JSON error envelope returned to clients.
type Body struct {
	Error string `json:"error"`
	Kind  Kind   `json:"kind"`
	Code  string `json:"code"`
}

// ToBody renders err for a client. Errors outside the taxonomy become a
// generic internal error so that no internal detail leaks.
func ToBody(err error) (int, Body) {
	var ae *Error
	if errors.As(err, &ae) {
		return HTTPStatus(ae.Kind), Body{Error: ae.Message, Kind: ae.Kind, Code: ae.Code}
	}
	return http.StatusInternalServerError, Body{
		Error: "internal server error",
		Kind:  KindPersistence,
		Code:  "internal",
	}
}

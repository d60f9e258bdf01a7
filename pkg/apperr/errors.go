// Package apperr defines the error taxonomy surfaced by the memory store to
// its collaborators: the HTTP façade type-asserts *AppError rather than
// inspecting error strings. The CLI and the MCP bridge see these errors only
// as the HTTP error envelope, decoded into apiclient.Error.
package apperr

import (
	"fmt"
	"net/http"
)

// Code identifies one of the error kinds the memory store can produce.
type Code string

const (
	CodeValidation            Code = "validation_error"
	CodeInvalidCursor         Code = "invalid_cursor"
	CodeUnauthorized          Code = "unauthorized"
	CodeNotFound              Code = "not_found"
	CodeEmbeddingUnavailable  Code = "embedding_unavailable"
	CodeVectorStoreUnavailable Code = "vector_store_unavailable"
	CodeModelMismatch         Code = "model_mismatch"
	CodeInternal              Code = "internal_error"
)

// AppError is the single error type every layer above the memory store
// deals with. HTTPStatus is precomputed from Code so the façade never has to
// duplicate the code→status mapping.
type AppError struct {
	Code       Code                   `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Cause      error                  `json:"-"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithContext attaches structured context (e.g. the offending field) for logging.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates an AppError of the given kind.
func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus(code)}
}

// Newf creates an AppError with a formatted message.
func Newf(code Code, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates an AppError that preserves an underlying cause.
func Wrap(code Code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus(code), Cause: cause}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(code Code, cause error, format string, args ...interface{}) *AppError {
	return Wrap(code, fmt.Sprintf(format, args...), cause)
}

// Is reports whether err is an *AppError of the given code.
func Is(err error, code Code) bool {
	var appErr *AppError
	if as(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func as(err error, target **AppError) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok {
			*target = appErr
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func httpStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusUnprocessableEntity
	case CodeInvalidCursor:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeEmbeddingUnavailable, CodeVectorStoreUnavailable:
		return http.StatusServiceUnavailable
	case CodeModelMismatch:
		// Never surfaced over HTTP: detected only at startup, which is fatal.
		return http.StatusInternalServerError
	case CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

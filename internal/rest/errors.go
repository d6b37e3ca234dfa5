package rest

import (
	"errors"
	"net/http"
)

// HTTPError is an error with the status and message shown to the client.
// Cause is kept for logs and never serialized.
type HTTPError struct {
	Status  int
	Message string
	Cause   error
}

func (e *HTTPError) Error() string {
	if e.Cause != nil {
		return http.StatusText(e.Status) + ": " + e.Message + ": " + e.Cause.Error()
	}
	return http.StatusText(e.Status) + ": " + e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Cause
}

// AccessDenied is returned when the caller lacks the required permission.
func AccessDenied(message string) *HTTPError {
	return &HTTPError{Status: http.StatusForbidden, Message: message}
}

// BadRequest wraps cause behind a fixed client-facing message.
func BadRequest(message string, cause error) *HTTPError {
	return &HTTPError{Status: http.StatusBadRequest, Message: message, Cause: cause}
}

// IsAccessDenied reports whether err is a 403 HTTPError.
func IsAccessDenied(err error) bool {
	return hasStatus(err, http.StatusForbidden)
}

// IsBadRequest reports whether err is a 400 HTTPError.
func IsBadRequest(err error) bool {
	return hasStatus(err, http.StatusBadRequest)
}

func hasStatus(err error, status int) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.Status == status
}

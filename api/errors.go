package api

import (
	"fmt"
	"net/http"
)

// RecoverableError is an error that is explicitly marked as recoverable: the
// operation that produced it may succeed if it is simply retried later.
// Network failures and server-side (5xx) responses fall in this category.
type RecoverableError struct {
	message string
}

// Error returns the error message for a RecoverableError.
func (e RecoverableError) Error() string {
	return e.message
}

// NewRecoverableError returns a new error that is marked as being recoverable.
func NewRecoverableError(formatString string, a ...interface{}) RecoverableError {
	return RecoverableError{message: fmt.Sprintf(formatString, a...)}
}

// UnrecoverableError is an error that retrying will not fix: the request was
// rejected (4xx) or the response couldn't be decoded. The status code is zero
// when no HTTP response was involved.
type UnrecoverableError struct {
	message    string
	StatusCode int
}

// Error returns the error message for an UnrecoverableError.
func (e UnrecoverableError) Error() string {
	return e.message
}

// NewUnrecoverableError returns a new error that is marked as being unrecoverable.
func NewUnrecoverableError(formatString string, a ...interface{}) UnrecoverableError {
	return UnrecoverableError{message: fmt.Sprintf(formatString, a...)}
}

// NewStatusError returns the error corresponding to an unsuccessful HTTP
// response status: recoverable for server-side failures, unrecoverable for
// anything the client sent that the server rejected.
func NewStatusError(method, path string, statusCode int) error {
	if statusCode >= http.StatusInternalServerError {
		return NewRecoverableError("%s %s returned status %d", method, path, statusCode)
	}
	return UnrecoverableError{
		message:    fmt.Sprintf("%s %s returned status %d", method, path, statusCode),
		StatusCode: statusCode,
	}
}

// IsAuthorizationError determines whether an error indicates that the bearer
// credential was missing, expired, or insufficient. The client never attempts
// a credential refresh itself; callers decide what to do with these.
func IsAuthorizationError(err error) bool {
	unrecoverable, ok := err.(UnrecoverableError)
	if !ok {
		return false
	}
	return unrecoverable.StatusCode == http.StatusUnauthorized ||
		unrecoverable.StatusCode == http.StatusForbidden
}

// IsRecoverable determines whether an error is explicitly marked as recoverable.
func IsRecoverable(err error) bool {
	_, ok := err.(RecoverableError)
	return ok
}

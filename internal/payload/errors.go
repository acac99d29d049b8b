package payload

import (
	"errors"
	"fmt"
)

// ConnectionError represents transport-level failures: DNS, refused
// connections, and timeouts.
type ConnectionError struct {
	Message string
	Cause   error
}

func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// NewConnectionError wraps a transport failure.
func NewConnectionError(message string, cause error) *ConnectionError {
	return &ConnectionError{Message: message, Cause: cause}
}

// AuthenticationError represents bad credentials, a missing token in a login
// response, or a rejected token on a protected call.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string { return e.Message }

// NewAuthenticationError creates an authentication error.
func NewAuthenticationError(message string) *AuthenticationError {
	return &AuthenticationError{Message: message}
}

// ValidationError represents a malformed request shape, either detected
// locally or reported by the API as 400/422.
type ValidationError struct {
	Message  string
	Response string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError creates a validation error.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// APIError represents any other non-2xx response from the Payload API.
type APIError struct {
	Message    string
	StatusCode int
	Response   string
}

func (e *APIError) Error() string { return e.Message }

// NotFoundError is returned for 404 responses.
type NotFoundError struct {
	APIError
}

// RateLimitError is returned for 429 responses.
type RateLimitError struct {
	APIError
}

// IsAuthenticationError reports whether err is an AuthenticationError.
func IsAuthenticationError(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}

// IsConnectionError reports whether err is a ConnectionError.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nfErr *NotFoundError
	return errors.As(err, &nfErr)
}

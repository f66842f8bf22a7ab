package httpx

import "fmt"

// ErrorType represents the category of error that occurred.
type ErrorType int

const (
	ErrTypeAuthentication ErrorType = iota
	ErrTypeRateLimit
	ErrTypeServiceUnavailable
	ErrTypeInvalidRequest
	ErrTypeTimeout
	ErrTypeNotFound
	ErrTypeUnknown
)

// String returns a human-readable description of the error type.
func (e ErrorType) String() string {
	switch e {
	case ErrTypeAuthentication:
		return "authentication error"
	case ErrTypeRateLimit:
		return "rate limit exceeded"
	case ErrTypeServiceUnavailable:
		return "service unavailable"
	case ErrTypeInvalidRequest:
		return "invalid request"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeNotFound:
		return "not found"
	default:
		return "unknown error"
	}
}

// Error represents a remote API error with additional context. Service
// names the upstream: anthropic, openai, github.
type Error struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Retryable  bool
	Service    string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s (status: %d)", e.Service, e.Type.String(), e.Message, e.StatusCode)
}

// Is implements error equality checking for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// IsRetryable returns true if the error is retryable.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// NewAuthenticationError creates a new authentication error.
func NewAuthenticationError(service, message string) *Error {
	return &Error{
		Type:       ErrTypeAuthentication,
		Message:    message,
		StatusCode: 401,
		Retryable:  false,
		Service:    service,
	}
}

// NewRateLimitError creates a new rate limit error.
func NewRateLimitError(service, message string) *Error {
	return &Error{
		Type:       ErrTypeRateLimit,
		Message:    message,
		StatusCode: 429,
		Retryable:  true,
		Service:    service,
	}
}

// NewServiceUnavailableError creates a new service unavailable error.
func NewServiceUnavailableError(service, message string) *Error {
	return &Error{
		Type:       ErrTypeServiceUnavailable,
		Message:    message,
		StatusCode: 503,
		Retryable:  true,
		Service:    service,
	}
}

// NewInvalidRequestError creates a new invalid request error.
func NewInvalidRequestError(service, message string) *Error {
	return &Error{
		Type:       ErrTypeInvalidRequest,
		Message:    message,
		StatusCode: 400,
		Retryable:  false,
		Service:    service,
	}
}

// NewTimeoutError creates a new timeout error.
func NewTimeoutError(service, message string) *Error {
	return &Error{
		Type:       ErrTypeTimeout,
		Message:    message,
		StatusCode: 0,
		Retryable:  true,
		Service:    service,
	}
}

// NewNotFoundError creates a new not found error.
func NewNotFoundError(service, message string) *Error {
	return &Error{
		Type:       ErrTypeNotFound,
		Message:    message,
		StatusCode: 404,
		Retryable:  false,
		Service:    service,
	}
}

// FromStatusCode classifies a raw HTTP status into an Error.
func FromStatusCode(service string, statusCode int, message string) *Error {
	switch {
	case statusCode == 401 || statusCode == 403:
		return NewAuthenticationError(service, message)
	case statusCode == 404:
		return NewNotFoundError(service, message)
	case statusCode == 429:
		return NewRateLimitError(service, message)
	case statusCode >= 500:
		e := NewServiceUnavailableError(service, message)
		e.StatusCode = statusCode
		return e
	case statusCode >= 400:
		e := NewInvalidRequestError(service, message)
		e.StatusCode = statusCode
		return e
	default:
		return &Error{
			Type:       ErrTypeUnknown,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  false,
			Service:    service,
		}
	}
}

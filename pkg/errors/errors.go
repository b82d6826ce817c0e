package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the kind of failure reported by the client
type ErrorType string

const (
	ErrorTypeInvalidConfig ErrorType = "invalid_config"
	ErrorTypeUsage         ErrorType = "usage"
	ErrorTypeCookieExpired ErrorType = "cookie_expired"
	ErrorTypeRateLimit     ErrorType = "rate_limit"
	ErrorTypeSignature     ErrorType = "signature"
	ErrorTypeCaptcha       ErrorType = "captcha"
	ErrorTypeAPI           ErrorType = "api"
)

// Error is the single root error returned by every package in this module.
// Code carries the HTTP status for API-derived errors and 0 for transport
// failures or errors raised before a request was sent.
type Error struct {
	Type     ErrorType
	Message  string
	Code     int
	Response map[string]any
}

func (e *Error) Error() string {
	switch e.Type {
	case ErrorTypeAPI:
		return fmt.Sprintf("API Error %d: %s", e.Code, e.Message)
	case ErrorTypeInvalidConfig, ErrorTypeUsage:
		return fmt.Sprintf("%s: %s", e.Type, e.Message)
	default:
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
}

// Is matches two errors of the same type, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// Sentinels for errors.Is comparisons. Only the Type is compared.
var (
	ErrInvalidConfig = &Error{Type: ErrorTypeInvalidConfig}
	ErrUsage         = &Error{Type: ErrorTypeUsage}
	ErrCookieExpired = &Error{Type: ErrorTypeCookieExpired}
	ErrRateLimit     = &Error{Type: ErrorTypeRateLimit}
	ErrSignature     = &Error{Type: ErrorTypeSignature}
	ErrCaptcha       = &Error{Type: ErrorTypeCaptcha}
	ErrAPI           = &Error{Type: ErrorTypeAPI}
)

// InvalidConfig reports bad caller input that never reaches the network.
func InvalidConfig(format string, args ...any) *Error {
	return &Error{Type: ErrorTypeInvalidConfig, Message: fmt.Sprintf(format, args...)}
}

// Usage reports a call made in the wrong lifecycle state.
func Usage(format string, args ...any) *Error {
	return &Error{Type: ErrorTypeUsage, Message: fmt.Sprintf(format, args...)}
}

// API builds a generic API error.
func API(code int, message string, response map[string]any) *Error {
	return &Error{Type: ErrorTypeAPI, Code: code, Message: message, Response: response}
}

// FromStatus classifies a non-2xx HTTP status into exactly one error.
func FromStatus(code int, message string, response map[string]any) *Error {
	e := &Error{Code: code, Message: message, Response: response}
	switch code {
	case 401, 403:
		e.Type = ErrorTypeCookieExpired
	case 429:
		e.Type = ErrorTypeRateLimit
	case 461:
		e.Type = ErrorTypeSignature
	case 471:
		e.Type = ErrorTypeCaptcha
	default:
		e.Type = ErrorTypeAPI
	}
	return e
}

// As extracts an *Error from err, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// TypeOf returns the ErrorType of err or "" when err is not one of ours.
func TypeOf(err error) ErrorType {
	if e, ok := As(err); ok {
		return e.Type
	}
	return ""
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeRateLimit:
		return true
	case ErrorTypeCookieExpired, ErrorTypeSignature, ErrorTypeCaptcha,
		ErrorTypeInvalidConfig, ErrorTypeUsage:
		return false
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Transport error
		return true
	case 429: // Too Many Requests
		return true
	case 401, 403, 461, 471: // Session, signature and captcha failures need a human
		return false
	default:
		return statusCode >= 500
	}
}

// IsRetryableError combines the type and status checks for an arbitrary error.
func IsRetryableError(err error) bool {
	e, ok := As(err)
	if !ok {
		return false
	}
	if e.Type == ErrorTypeAPI {
		return IsRetryableStatusCode(e.Code)
	}
	return IsRetryable(e.Type)
}

// Package errors provides the structured error type shared by the adapter,
// dispatch, and resilience layers. Every error carries a machine code, a
// human-readable message, and a Retryable verdict derived once at
// construction time and never recomputed.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AdapterError is the unified error type for adapter and transport failures.
type AdapterError struct {
	// Code is a machine-readable error code.
	Code Code `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// HTTPStatus is the HTTP status observed or recommended (0 if none).
	HTTPStatus int `json:"httpStatus,omitempty"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Cause is the underlying error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AdapterError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AdapterError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause and returns the receiver.
func (e *AdapterError) WithCause(cause error) *AdapterError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AdapterError) WithDetail(key string, value any) *AdapterError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates an AdapterError with the retryable verdict derived from the code.
func New(code Code, message string) *AdapterError {
	return &AdapterError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// Validation creates an error for a guard rejection or invalid input.
// The rule names the violated policy.
func Validation(rule, message string) *AdapterError {
	return &AdapterError{
		Code: CodeValidation, Message: message,
		HTTPStatus: http.StatusBadRequest, Retryable: false,
		Details: map[string]any{"rule": rule},
	}
}

// ConfigInvalid creates an error for an invalid configuration.
func ConfigInvalid(message string) *AdapterError {
	return &AdapterError{
		Code: CodeConfigInvalid, Message: message,
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// EndpointNotFound creates an error for a missing manifest endpoint.
func EndpointNotFound(endpoint string) *AdapterError {
	return &AdapterError{
		Code: CodeEndpointNotFound, Message: fmt.Sprintf("endpoint %q is not declared by the service manifest", endpoint),
		HTTPStatus: http.StatusNotFound, Retryable: false,
		Details: map[string]any{"endpoint": endpoint},
	}
}

// Transport creates an error for a network-level failure.
func Transport(transport string, cause error) *AdapterError {
	return &AdapterError{
		Code: CodeTransport, Message: fmt.Sprintf("%s transport failed", transport),
		HTTPStatus: http.StatusBadGateway, Retryable: true,
		Details: map[string]any{"transport": transport}, Cause: cause,
	}
}

// Timeout creates an error for a call that exceeded its deadline.
func Timeout(operation string, cause error) *AdapterError {
	return &AdapterError{
		Code: CodeTimeout, Message: fmt.Sprintf("operation %s timed out", operation),
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"operation": operation}, Cause: cause,
	}
}

// ConnectionFailed creates an error for an unreachable remote.
func ConnectionFailed(target string, cause error) *AdapterError {
	return &AdapterError{
		Code: CodeConnectionFailed, Message: fmt.Sprintf("unable to connect to %s", target),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"target": target}, Cause: cause,
	}
}

// RateLimited creates an error for a rate-limited operation.
func RateLimited(operation string) *AdapterError {
	return &AdapterError{
		Code: CodeRateLimited, Message: "too many requests for operation " + operation,
		HTTPStatus: http.StatusTooManyRequests, Retryable: true,
		Details: map[string]any{"operation": operation},
	}
}

// CircuitOpen creates an error for a call rejected by an open circuit breaker.
func CircuitOpen(operation string) *AdapterError {
	return &AdapterError{
		Code: CodeCircuitOpen, Message: "circuit breaker is open for operation " + operation,
		HTTPStatus: http.StatusServiceUnavailable, Retryable: false,
		Details: map[string]any{"operation": operation},
	}
}

// NotFound creates an error for a missing local resource, such as an
// unknown service id.
func NotFound(resource, id string) *AdapterError {
	return &AdapterError{
		Code: CodeNotFound, Message: fmt.Sprintf("%s %q not found", resource, id),
		HTTPStatus: http.StatusNotFound, Retryable: false,
		Details: map[string]any{resource: id},
	}
}

// Remote creates an error for a non-2xx response or non-zero exit code.
// Retryability follows the HTTP classification: 5xx and 429 retry, other 4xx do not.
func Remote(message string, httpStatus int) *AdapterError {
	return &AdapterError{
		Code: CodeRemote, Message: message,
		HTTPStatus: httpStatus,
		Retryable:  httpStatus >= 500 || httpStatus == http.StatusTooManyRequests,
	}
}

// Transform creates a soft error for a failed declarative transform.
func Transform(expression string, cause error) *AdapterError {
	return &AdapterError{
		Code: CodeTransform, Message: fmt.Sprintf("transform %q failed", expression),
		Retryable: false,
		Details:   map[string]any{"expression": expression}, Cause: cause,
	}
}

// Discovery creates a soft error for a failed discovery probe.
func Discovery(serviceType string, cause error) *AdapterError {
	return &AdapterError{
		Code: CodeDiscovery, Message: fmt.Sprintf("%s not detected", serviceType),
		Retryable: false,
		Details:   map[string]any{"service_type": serviceType}, Cause: cause,
	}
}

// FromHTTPStatus classifies a non-2xx HTTP status into an AdapterError.
// Returns nil for 2xx.
func FromHTTPStatus(statusCode int, body string) *AdapterError {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &AdapterError{
			Code: CodeAuth, Message: fmt.Sprintf("HTTP %d", statusCode),
			HTTPStatus: statusCode, Retryable: false,
			Details: map[string]any{"body": body},
		}
	case statusCode == http.StatusNotFound:
		return &AdapterError{
			Code: CodeNotFound, Message: "HTTP 404",
			HTTPStatus: statusCode, Retryable: false,
			Details: map[string]any{"body": body},
		}
	case statusCode == http.StatusTooManyRequests:
		return &AdapterError{
			Code: CodeRateLimited, Message: "HTTP 429",
			HTTPStatus: statusCode, Retryable: true,
			Details: map[string]any{"body": body},
		}
	case statusCode >= 400 && statusCode < 500:
		return &AdapterError{
			Code: CodeRemote, Message: fmt.Sprintf("HTTP %d", statusCode),
			HTTPStatus: statusCode, Retryable: false,
			Details: map[string]any{"body": body},
		}
	default:
		return &AdapterError{
			Code: CodeRemote, Message: fmt.Sprintf("HTTP %d", statusCode),
			HTTPStatus: statusCode, Retryable: statusCode >= 500,
			Details: map[string]any{"body": body},
		}
	}
}

// IsRetryable reports whether err carries a retryable verdict.
// Unknown error types are treated as retryable network-level failures.
func IsRetryable(err error) bool {
	var e *AdapterError
	if errors.As(err, &e) {
		return e.Retryable
	}
	return true
}

// AsAdapterError extracts an *AdapterError from err, wrapping unknown
// errors as transport errors so callers always see the unified type.
func AsAdapterError(err error) *AdapterError {
	var e *AdapterError
	if errors.As(err, &e) {
		return e
	}
	return Transport("unknown", err)
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var e *AdapterError
	return errors.As(err, &e) && e.Code == code
}

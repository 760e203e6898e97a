package fetcher

import (
	"fmt"
)

// ErrorType represents the category of error that occurred during a fetch operation
type ErrorType string

const (
	// ErrorTypeNetwork indicates a network-level error (connection refused, DNS, timeout)
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeRateLimit indicates the request was rejected due to rate limiting (HTTP 429)
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeServer indicates a server error (HTTP 5xx)
	ErrorTypeServer ErrorType = "server"
	// ErrorTypeRequest indicates a malformed outbound request or client error (HTTP 4xx except 429)
	ErrorTypeRequest ErrorType = "request"
	// ErrorTypeDecode indicates the response body does not match the expected shape
	ErrorTypeDecode ErrorType = "decode"
	// ErrorTypeNoEndpoint indicates the required routing field was missing from the parameters
	ErrorTypeNoEndpoint ErrorType = "no_endpoint"
	// ErrorTypeUnsupportedOperation indicates the operation identifier is not recognized
	ErrorTypeUnsupportedOperation ErrorType = "unsupported_operation"
	// ErrorTypeUnhandled indicates any other non-200 status
	ErrorTypeUnhandled ErrorType = "unhandled"
)

// FetchError represents a structured error from a fetch operation
type FetchError struct {
	Type       ErrorType
	Retryable  bool
	StatusCode int
	Message    string
	Body       string
	Cause      error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// NewNetworkError creates a network error (timeout or connect failure)
func NewNetworkError(cause error) *FetchError {
	return &FetchError{
		Type:      ErrorTypeNetwork,
		Retryable: true,
		Message:   "network request failed",
		Cause:     cause,
	}
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(statusCode int, body string) *FetchError {
	return &FetchError{
		Type:       ErrorTypeRateLimit,
		Retryable:  true,
		StatusCode: statusCode,
		Message:    "rate limit exceeded",
		Body:       body,
	}
}

// NewServerError creates a server error
func NewServerError(statusCode int, body string) *FetchError {
	return &FetchError{
		Type:       ErrorTypeServer,
		Retryable:  true,
		StatusCode: statusCode,
		Message:    "server returned an error",
		Body:       body,
	}
}

// NewRequestError creates a request error
func NewRequestError(statusCode int, message string) *FetchError {
	return &FetchError{
		Type:       ErrorTypeRequest,
		Retryable:  false,
		StatusCode: statusCode,
		Message:    message,
	}
}

// NewDecodeError creates a decode error
func NewDecodeError(cause error) *FetchError {
	return &FetchError{
		Type:      ErrorTypeDecode,
		Retryable: false,
		Message:   "response body does not match the expected shape",
		Cause:     cause,
	}
}

// NewNoEndpointError reports that the reserved routing field was absent
func NewNoEndpointError() *FetchError {
	return &FetchError{
		Type:      ErrorTypeNoEndpoint,
		Retryable: false,
		Message:   "no endpoint provided: parameters are missing the \"function\" field",
	}
}

// NewUnsupportedOperationError reports an operation this client does not serve
func NewUnsupportedOperationError(op string) *FetchError {
	return &FetchError{
		Type:      ErrorTypeUnsupportedOperation,
		Retryable: false,
		Message:   fmt.Sprintf("operation %q is not supported", op),
	}
}

// NewUnhandledError creates an error for any other unexpected status
func NewUnhandledError(statusCode int, body string) *FetchError {
	return &FetchError{
		Type:       ErrorTypeUnhandled,
		Retryable:  false,
		StatusCode: statusCode,
		Message:    fmt.Sprintf("unexpected status code: %d", statusCode),
		Body:       body,
	}
}

// ClassifyHTTPError classifies a non-200 HTTP status into the appropriate FetchError
func ClassifyHTTPError(statusCode int, body string) *FetchError {
	switch {
	case statusCode == 429:
		return NewRateLimitError(statusCode, body)
	case statusCode >= 500:
		return NewServerError(statusCode, body)
	case statusCode >= 400:
		return NewRequestError(statusCode, fmt.Sprintf("client error: HTTP %d", statusCode))
	default:
		return NewUnhandledError(statusCode, body)
	}
}

package errors

import "fmt"

// ErrorType classifies failures by how the pipeline must react to them
type ErrorType string

const (
	// Transient fetch failures: retried with backoff, then degraded
	ErrorTypeNetwork   ErrorType = "network"
	ErrorTypeRateLimit ErrorType = "rate_limit"
	ErrorTypeServer    ErrorType = "server_error"

	// Permanent fetch failures: degraded immediately, no retry
	ErrorTypeNotFound ErrorType = "not_found"
	ErrorTypeAuth     ErrorType = "auth"
	ErrorTypeBadURL   ErrorType = "bad_url"

	// Decode failures: the single reference is skipped, the owning
	// document continues
	ErrorTypeDecode ErrorType = "decode"

	// Ledger says done but the artifact is missing on disk; the item
	// is treated as not done and re-run
	ErrorTypeLedger ErrorType = "ledger_consistency"

	// Fatal conditions abort the run before any work starts
	ErrorTypeFatal ErrorType = "fatal"

	ErrorTypeUnknown ErrorType = "unknown"
)

// Error represents a pipeline error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// New creates an Error with the given type and message
func New(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// Newf creates an Error with a formatted message
func Newf(errorType ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: errorType, Message: fmt.Sprintf(format, args...)}
}

// FromStatusCode maps an HTTP status code to a typed error
func FromStatusCode(code int, message string) *Error {
	var errorType ErrorType
	switch {
	case code == 401 || code == 403:
		errorType = ErrorTypeAuth
	case code == 404 || code == 410:
		errorType = ErrorTypeNotFound
	case code == 429:
		errorType = ErrorTypeRateLimit
	case code >= 500:
		errorType = ErrorTypeServer
	case code >= 400:
		errorType = ErrorTypeUnknown
	default:
		errorType = ErrorTypeUnknown
	}
	return &Error{Type: errorType, Message: message, Code: code}
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServer:
		return true
	case ErrorTypeAuth, ErrorTypeNotFound, ErrorTypeBadURL, ErrorTypeDecode, ErrorTypeLedger, ErrorTypeFatal:
		return false
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504: // Server errors
		return true
	case 401, 403, 404: // Client errors that won't change
		return false
	default:
		return statusCode >= 500 // Retry all 5xx errors
	}
}

// IsFatal reports whether the error must abort the whole run
func IsFatal(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrorTypeFatal
}

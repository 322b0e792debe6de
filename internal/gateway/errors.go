package gateway

import "fmt"

// ErrorKind classifies a gateway failure. The worker decides retry policy
// from the kind; the dispatcher maps it to a user-facing message.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindRateLimited
	KindInvalidInput
	KindServiceUnavailable
	KindNetwork
	KindAuth
)

// String returns a human-readable representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "RateLimited"
	case KindInvalidInput:
		return "InvalidInput"
	case KindServiceUnavailable:
		return "ServiceUnavailable"
	case KindNetwork:
		return "NetworkError"
	case KindAuth:
		return "AuthError"
	default:
		return "Unknown"
	}
}

// Error wraps a transport failure with classification metadata.
type Error struct {
	Kind       ErrorKind
	StatusCode int   // HTTP status code (0 for non-HTTP errors)
	Underlying error // the original error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("[%s] HTTP %d: %v", e.Kind, e.StatusCode, e.Underlying)
	}
	return fmt.Sprintf("[%s] %v", e.Kind, e.Underlying)
}

// Unwrap returns the underlying error for error chain compatibility.
func (e *Error) Unwrap() error { return e.Underlying }

// ClassifyStatus maps an HTTP status code to an ErrorKind.
func ClassifyStatus(statusCode int) ErrorKind {
	switch {
	case statusCode == 429:
		return KindRateLimited
	case statusCode == 401 || statusCode == 403:
		return KindAuth
	case statusCode >= 400 && statusCode < 500:
		return KindInvalidInput
	case statusCode >= 500 && statusCode < 600:
		return KindServiceUnavailable
	default:
		return KindUnknown
	}
}

// NewHTTPError creates a classified error for an HTTP failure.
func NewHTTPError(statusCode int, body string) *Error {
	return &Error{
		Kind:       ClassifyStatus(statusCode),
		StatusCode: statusCode,
		Underlying: fmt.Errorf("model API returned HTTP %d: %s", statusCode, body),
	}
}

// NewNetworkError creates a classified error for a transport-level failure
// where no HTTP response was received.
func NewNetworkError(err error) *Error {
	return &Error{Kind: KindNetwork, Underlying: fmt.Errorf("model API unreachable: %w", err)}
}

// KindOf extracts the ErrorKind from err, walking the unwrap chain.
// Unclassified errors report KindUnknown.
func KindOf(err error) ErrorKind {
	for err != nil {
		if ge, ok := err.(*Error); ok {
			return ge.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return KindUnknown
}

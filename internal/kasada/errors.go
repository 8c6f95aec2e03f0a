package kasada

import "errors"

var (
	// ErrTimeout is returned when the classification call exceeds its budget.
	ErrTimeout = errors.New("kasada: classification timed out")
	// ErrTransport covers DNS, connection and request cancellation failures.
	ErrTransport = errors.New("kasada: transport error")
	// ErrMalformedResponse is returned for non-JSON or schema-violating bodies.
	ErrMalformedResponse = errors.New("kasada: malformed response")
	// ErrServiceError is reported when Kasada answers with its own error field.
	ErrServiceError = errors.New("kasada: service error")
)

// ErrorKind names the failure class of err for logs and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ErrServiceError):
		return "service"
	default:
		return "transport"
	}
}

package proxy

import "fmt"

// OriginErrorKind distinguishes the two retryable origin failure modes.
type OriginErrorKind string

const (
	// OriginConnection is a dial or transport failure before or during
	// the exchange.
	OriginConnection OriginErrorKind = "connection"

	// OriginTimeout means the origin did not answer within the
	// per-attempt deadline.
	OriginTimeout OriginErrorKind = "timeout"
)

// OriginError is returned when every forwarding attempt failed. The
// origin URL never appears in the client-facing response; it lives only
// in the wrapped error for server-side logs.
type OriginError struct {
	Kind     OriginErrorKind
	Attempts int
	Err      error
}

func (e *OriginError) Error() string {
	return fmt.Sprintf("origin %s failure after %d attempts: %v", e.Kind, e.Attempts, e.Err)
}

func (e *OriginError) Unwrap() error {
	return e.Err
}

// StatusCode maps the failure kind to the client-facing status:
// 502 for connection failures, 504 for timeouts.
func (e *OriginError) StatusCode() int {
	if e.Kind == OriginTimeout {
		return 504
	}
	return 502
}

// Package gwerr defines the gateway's error-kind taxonomy: a small
// Kind enum for programmatic dispatch via errors.As, standing in for
// the original project's gateway_error_t enum. Every GatewayError
// wraps its underlying cause (if any) so callers can still
// errors.Is/errors.As through it to whatever sentinel or driver error
// actually occurred.
package gwerr

import "fmt"

// Kind classifies a GatewayError.
type Kind int

const (
	InvalidArgument Kind = iota
	OutOfMemory
	Io
	ProtocolViolation
	BufferShutdown
	DbConnect
	DbInsert
	ResourceExhausted
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid_argument"
	case OutOfMemory:
		return "out_of_memory"
	case Io:
		return "io"
	case ProtocolViolation:
		return "protocol_violation"
	case BufferShutdown:
		return "buffer_shutdown"
	case DbConnect:
		return "db_connect"
	case DbInsert:
		return "db_insert"
	case ResourceExhausted:
		return "resource_exhausted"
	default:
		return "unknown"
	}
}

// GatewayError is a structured error carrying a Kind for programmatic
// dispatch, plus an optional wrapped cause.
type GatewayError struct {
	Kind    Kind
	Message string
	Err     error
}

// New builds a GatewayError with no wrapped cause.
func New(kind Kind, message string) *GatewayError {
	return &GatewayError{Kind: kind, Message: message}
}

// Wrap builds a GatewayError around an underlying cause; Unwrap
// exposes err so errors.Is/errors.As still reach it.
func Wrap(kind Kind, message string, err error) *GatewayError {
	return &GatewayError{Kind: kind, Message: message, Err: err}
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

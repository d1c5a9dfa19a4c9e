package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// FailureKind classifies transport failures. All of them are recoverable
// from the lifecycle's point of view; only Unavailable (the BLE stack
// itself cannot be initialized) is surfaced upward as non-recoverable.
type FailureKind string

const (
	ConnectFailed   FailureKind = "connect_failed"
	Timeout         FailureKind = "timeout"
	NotConnected    FailureKind = "not_connected"
	ReadFailed      FailureKind = "read_failed"
	WriteFailed     FailureKind = "write_failed"
	SubscribeFailed FailureKind = "subscribe_failed"
	Unavailable     FailureKind = "unavailable"
)

// Error represents any transport-level problem.
type Error struct {
	Kind FailureKind
	Msg  string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Is allows errors.Is to compare transport errors by Kind
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Predefined sentinel errors for transport failures
var (
	ErrConnectFailed   = &Error{Kind: ConnectFailed}
	ErrTimeout         = &Error{Kind: Timeout}
	ErrNotConnected    = &Error{Kind: NotConnected}
	ErrReadFailed      = &Error{Kind: ReadFailed}
	ErrWriteFailed     = &Error{Kind: WriteFailed}
	ErrSubscribeFailed = &Error{Kind: SubscribeFailed}
	ErrUnavailable     = &Error{Kind: Unavailable}
)

// Errorf builds a transport error of the given kind.
func Errorf(kind FailureKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// NormalizeError maps underlying BLE stack errors to structured transport
// errors. It ensures consistent handling even if the upstream library
// changes messages slightly; the original error text is preserved.
func NormalizeError(kind FailureKind, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Errorf(Timeout, "%v", err)
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not connected"):
		return Errorf(NotConnected, "%v", err)
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return Errorf(Timeout, "%v", err)
	default:
		return Errorf(kind, "%v", err)
	}
}

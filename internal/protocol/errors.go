package protocol

import "fmt"

// DecodeFailure classifies why a raw result record could not be decoded.
type DecodeFailure string

const (
	TooShort               DecodeFailure = "too_short"
	BadStartSignature      DecodeFailure = "bad_start_signature"
	BadEndSignature        DecodeFailure = "bad_end_signature"
	InvalidTimestamp       DecodeFailure = "invalid_timestamp"
	UnknownCartridgeSeries DecodeFailure = "unknown_cartridge_series"
)

// DecodeError represents a structural problem with a result record.
// Decode errors are recoverable: the caller keeps its previous reading and
// treats the record as a transient read glitch.
type DecodeError struct {
	Failure DecodeFailure
	Msg     string
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Failure)
	}
	return fmt.Sprintf("%s: %s", e.Failure, e.Msg)
}

// Is allows errors.Is to compare DecodeError values by Failure
func (e *DecodeError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*DecodeError)
	if !ok {
		return false
	}
	return e.Failure == t.Failure
}

// Predefined sentinel errors for decode failures
var (
	ErrTooShort               = &DecodeError{Failure: TooShort}
	ErrBadStartSignature      = &DecodeError{Failure: BadStartSignature}
	ErrBadEndSignature        = &DecodeError{Failure: BadEndSignature}
	ErrInvalidTimestamp       = &DecodeError{Failure: InvalidTimestamp}
	ErrUnknownCartridgeSeries = &DecodeError{Failure: UnknownCartridgeSeries}
)

func decodeErrorf(failure DecodeFailure, format string, args ...interface{}) *DecodeError {
	return &DecodeError{Failure: failure, Msg: fmt.Sprintf(format, args...)}
}

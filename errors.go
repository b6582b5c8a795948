package asyncpool

import (
	"errors"
	"fmt"
)

// DecodeError signals malformed bytes during deserialization of a
// message, identifier, change log, or pool snapshot: truncated input, a
// bad length prefix, trailing unconsumed bytes, or a non-canonical
// encoding.
//
// A decode fault is always surfaced to the caller and never silently
// repaired. Masking one during bootstrap would let a node adopt a state
// that hashes differently from the rest of the network.
type DecodeError struct {
	// What names the structure being decoded ("message", "snapshot", ...).
	What   string
	Reason string
	// Err is the underlying codec error, if any.
	Err error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s: %s: %v", e.What, e.Reason, e.Err)
	}
	return fmt.Sprintf("decode %s: %s", e.What, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// NewDecodeError creates a DecodeError with no underlying cause.
func NewDecodeError(what, reason string) *DecodeError {
	return &DecodeError{What: what, Reason: reason}
}

// WrapDecodeError creates a DecodeError around an underlying codec error.
func WrapDecodeError(what, reason string, err error) *DecodeError {
	return &DecodeError{What: what, Reason: reason, Err: err}
}

// IsDecode checks whether an error is a DecodeError and returns it.
func IsDecode(err error) (*DecodeError, bool) {
	var d *DecodeError
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// Package types defines the data model of the asynchronous-message
// pool: slots, addresses, messages, identifiers, and change logs.
//
// These are plain Go structs with cramberry struct tags for
// deterministic binary serialization. The same encoding serves both
// cryptographic hashing (state commitments, message identity) and
// bootstrap transfer, so two semantically equal values must always
// produce byte-identical encodings.
package types

// Hash is a 32-byte BLAKE3 digest.
type Hash [32]byte

// Address is a fixed-size cryptographic account identifier.
type Address [32]byte

// Slot is a (period, thread) logical clock coordinate identifying a
// unit of block production time.
type Slot struct {
	Period uint64 `cramberry:"1"`
	Thread uint8  `cramberry:"2"`
}

// Cmp compares two slots chronologically: period first, then thread.
// It returns -1 if s is before o, 0 if equal, +1 if after.
func (s Slot) Cmp(o Slot) int {
	switch {
	case s.Period < o.Period:
		return -1
	case s.Period > o.Period:
		return 1
	case s.Thread < o.Thread:
		return -1
	case s.Thread > o.Thread:
		return 1
	default:
		return 0
	}
}

// Before reports whether s is strictly earlier than o.
func (s Slot) Before(o Slot) bool { return s.Cmp(o) < 0 }

// After reports whether s is strictly later than o.
func (s Slot) After(o Slot) bool { return s.Cmp(o) > 0 }

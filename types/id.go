package types

import "bytes"

// MessageID is the totally ordered identifier of an async message,
// derived deterministically from the message contents. It doubles as
// the pool's sort key: ascending MessageID order is descending
// execution priority, so the best message always sorts first and
// eviction always removes from the tail.
//
// The ordering is part of the consensus contract. Every node must
// reproduce it bit-for-bit: fee descending (higher fee wins), then
// emission slot ascending (older messages preferred on fee ties, so
// early messages are not starved), then emission index ascending, then
// content hash ascending. The hash is a strict total tie-break: two
// distinct messages never compare equal, even with identical fee, slot,
// and index across different senders.
type MessageID struct {
	Fee           uint64 `cramberry:"1"`
	MaxGas        uint64 `cramberry:"2"`
	EmissionSlot  Slot   `cramberry:"3"`
	EmissionIndex uint64 `cramberry:"4"`
	Hash          Hash   `cramberry:"5"`
}

// Cmp returns -1 if id has strictly higher priority than o (sorts
// first), +1 if strictly lower, and 0 only when id == o.
func (id MessageID) Cmp(o MessageID) int {
	switch {
	case id.Fee > o.Fee:
		return -1
	case id.Fee < o.Fee:
		return 1
	}
	if c := id.EmissionSlot.Cmp(o.EmissionSlot); c != 0 {
		return c
	}
	switch {
	case id.EmissionIndex < o.EmissionIndex:
		return -1
	case id.EmissionIndex > o.EmissionIndex:
		return 1
	}
	return bytes.Compare(id.Hash[:], o.Hash[:])
}

// Less reports whether id sorts before o, i.e. has higher priority.
func (id MessageID) Less(o MessageID) bool { return id.Cmp(o) < 0 }

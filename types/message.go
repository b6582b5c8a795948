package types

import (
	"bytes"
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"lukechampine.com/blake3"
)

// Trigger is a condition on a datastore key range gating a message's
// eligibility for execution: the message becomes executable when a key
// in [KeyLower, KeyUpper] on Address changes and its current value falls
// inside [FilterLower, FilterUpper]. Bounds are inclusive and compared
// lexicographically as raw bytes.
type Trigger struct {
	Address     Address `cramberry:"1"`
	KeyLower    []byte  `cramberry:"2"`
	KeyUpper    []byte  `cramberry:"3"`
	FilterLower []byte  `cramberry:"4"`
	FilterUpper []byte  `cramberry:"5"`
}

// ContainsKey reports whether key falls inside the trigger's key range.
func (tr *Trigger) ContainsKey(addr Address, key []byte) bool {
	if addr != tr.Address {
		return false
	}
	return bytes.Compare(tr.KeyLower, key) <= 0 && bytes.Compare(key, tr.KeyUpper) <= 0
}

// MatchesValue reports whether a current datastore value satisfies the
// trigger's filter range.
func (tr *Trigger) MatchesValue(value []byte) bool {
	return bytes.Compare(tr.FilterLower, value) <= 0 && bytes.Compare(value, tr.FilterUpper) <= 0
}

// AsyncMessage is one deferred smart-contract call, emitted by a
// contract during execution to be run at a later slot.
//
// A message is immutable after creation. The only field that evolves is
// the derived CanBeExecuted flag, which the pool re-derives against the
// ledger whenever the trigger's key range is touched; the message body
// itself is never mutated in place.
type AsyncMessage struct {
	// EmissionSlot and EmissionIndex identify when and in which order
	// the message was emitted; they participate in tie-break ordering.
	EmissionSlot  Slot   `cramberry:"1"`
	EmissionIndex uint64 `cramberry:"2"`

	Sender      Address `cramberry:"3"`
	Destination Address `cramberry:"4"`
	// Handler names the function to invoke on the destination contract.
	Handler string `cramberry:"5"`

	// MaxGas bounds the execution cost the caller is willing to pay for.
	MaxGas uint64 `cramberry:"6"`
	// Fee is paid to the block producer that eventually executes the
	// message, in the chain's native unit.
	Fee uint64 `cramberry:"7"`
	// Coins are transferred to the destination as part of the call.
	Coins uint64 `cramberry:"8"`

	// Parameters is the opaque payload passed to the handler.
	Parameters []byte `cramberry:"9"`

	// ValidityStart and ValidityEnd bound (inclusively) the slot range
	// during which the message may execute.
	ValidityStart Slot `cramberry:"10"`
	ValidityEnd   Slot `cramberry:"11"`

	// Trigger, when non-nil, gates eligibility on a datastore condition.
	// A nil trigger means the message is unconditionally eligible once
	// its validity window opens.
	Trigger *Trigger `cramberry:"12"`

	// CanBeExecuted caches the trigger's last evaluation. Derived state:
	// excluded from the content hash, included in snapshots.
	CanBeExecuted bool `cramberry:"13"`
}

// ContentHash returns the BLAKE3 digest of the message's canonical
// encoding, excluding the derived CanBeExecuted flag. It is the final
// tie-breaker of the pool ordering, so it must be identical on every
// node for semantically equal messages.
func (m *AsyncMessage) ContentHash() Hash {
	body := *m
	body.CanBeExecuted = false
	data, err := cramberry.Marshal(body)
	if err != nil {
		// Every message field is a fixed scalar, byte slice, or string;
		// marshaling cannot fail on a well-formed value.
		panic(fmt.Sprintf("github.com/blockberries/asyncpool: message hash encoding failed: %v", err))
	}
	return Hash(blake3.Sum256(data))
}

// ID derives the message's pool identifier.
func (m *AsyncMessage) ID() MessageID {
	return MessageID{
		Fee:           m.Fee,
		MaxGas:        m.MaxGas,
		EmissionSlot:  m.EmissionSlot,
		EmissionIndex: m.EmissionIndex,
		Hash:          m.ContentHash(),
	}
}

// ValidAt reports whether slot falls inside the message's validity
// window (inclusive on both ends).
func (m *AsyncMessage) ValidAt(slot Slot) bool {
	return !slot.Before(m.ValidityStart) && !slot.After(m.ValidityEnd)
}

// ExpiredAt reports whether the validity window has fully elapsed at
// slot, meaning the message can never execute again.
func (m *AsyncMessage) ExpiredAt(slot Slot) bool {
	return slot.After(m.ValidityEnd)
}

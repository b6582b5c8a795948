package pooltest

import (
	"encoding/binary"
	"math/rand"

	"github.com/blockberries/asyncpool/types"
)

// NewMessage builds a minimal well-formed message emitted at slot with
// the given fee and emission index. The validity window opens at the
// emission slot and spans 100 periods.
func NewMessage(fee uint64, slot types.Slot, index uint64) types.AsyncMessage {
	return types.AsyncMessage{
		EmissionSlot:  slot,
		EmissionIndex: index,
		Sender:        types.Address{0x01},
		Destination:   types.Address{0x02},
		Handler:       "receive",
		MaxGas:        1000,
		Fee:           fee,
		Parameters:    []byte{0x00},
		ValidityStart: slot,
		ValidityEnd:   types.Slot{Period: slot.Period + 100, Thread: slot.Thread},
	}
}

// NewTriggeredMessage builds a message gated on the exact datastore key
// on addr, with a filter accepting any value.
func NewTriggeredMessage(fee uint64, slot types.Slot, index uint64, addr types.Address, key []byte) types.AsyncMessage {
	m := NewMessage(fee, slot, index)
	m.Trigger = &types.Trigger{
		Address:     addr,
		KeyLower:    key,
		KeyUpper:    key,
		FilterLower: []byte{},
		FilterUpper: []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
	}
	return m
}

// RandomMessages generates n distinct messages from a fixed seed. The
// same seed always yields the same messages, so two independently
// generated batches can be compared bit-for-bit.
func RandomMessages(n int, seed int64) []types.AsyncMessage {
	rng := rand.New(rand.NewSource(seed))
	out := make([]types.AsyncMessage, n)
	for i := range out {
		slot := types.Slot{Period: uint64(rng.Intn(50)) + 1, Thread: uint8(rng.Intn(4))}
		m := NewMessage(uint64(rng.Intn(1000)), slot, uint64(i))
		m.MaxGas = uint64(rng.Intn(5000)) + 100
		m.Coins = uint64(rng.Intn(10000))
		params := make([]byte, 8)
		binary.BigEndian.PutUint64(params, rng.Uint64())
		m.Parameters = params
		out[i] = m
	}
	return out
}

package pool

import (
	"bytes"
	"fmt"

	"github.com/blockberries/asyncpool"
	"github.com/blockberries/asyncpool/types"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"lukechampine.com/blake3"
)

// Snapshot serializes the full pool contents: format version followed
// by every message in ascending key order. The bytes are canonical —
// two pools with equal contents always produce byte-identical
// snapshots — because they feed both bootstrap transfer and the chain's
// global state hash.
func (p *Pool) Snapshot() []byte {
	snap := types.PoolSnapshot{
		Version:  types.SnapshotVersion,
		Messages: p.Messages(),
	}
	data, err := cramberry.Marshal(snap)
	if err != nil {
		// Pool contents are always well-formed values; marshaling them
		// cannot fail.
		panic(fmt.Sprintf("github.com/blockberries/asyncpool: snapshot encoding failed: %v", err))
	}
	return data
}

// StateHash returns the BLAKE3 digest of the snapshot bytes, the pool's
// contribution to the global state hash.
func (p *Pool) StateHash() types.Hash {
	return types.Hash(blake3.Sum256(p.Snapshot()))
}

// RestoreSnapshot reconstructs a pool from snapshot bytes produced by
// [Pool.Snapshot], typically received from a bootstrap peer.
//
// Restore is strict. It fails with a [asyncpool.DecodeError] on any
// structural fault: undecodable or truncated bytes, an unsupported
// format version, messages out of ascending key order or duplicated,
// and input that does not re-encode to the exact bytes received
// (which rejects trailing bytes and any non-canonical encoding). A
// decode fault is never repaired silently — adopting a repaired
// snapshot would fork the node from the network.
func RestoreSnapshot(data []byte) (*Pool, error) {
	var snap types.PoolSnapshot
	if err := cramberry.Unmarshal(data, &snap); err != nil {
		return nil, asyncpool.WrapDecodeError("snapshot", "malformed bytes", err)
	}
	if snap.Version != types.SnapshotVersion {
		return nil, asyncpool.NewDecodeError("snapshot",
			fmt.Sprintf("unsupported version %d (want %d)", snap.Version, types.SnapshotVersion))
	}

	p := New()
	var prev types.MessageID
	for i := range snap.Messages {
		m := snap.Messages[i]
		id := m.ID()
		if i > 0 && !prev.Less(id) {
			return nil, asyncpool.NewDecodeError("snapshot",
				fmt.Sprintf("message %d out of ascending key order", i))
		}
		prev = id
		p.insert(id, &m)
	}

	// Canonicality check: the input must be exactly what this pool
	// re-encodes to. Anything else — trailing bytes, redundant framing,
	// non-minimal prefixes — is a format violation, not something to
	// ignore.
	if !bytes.Equal(data, p.Snapshot()) {
		return nil, asyncpool.NewDecodeError("snapshot", "non-canonical encoding or trailing bytes")
	}
	return p, nil
}

package types

// SnapshotVersion is the current pool snapshot format version. Snapshot
// bytes feed the chain's global state hash, so any change to the
// encoding, ordering, or eviction policy must bump this value.
const SnapshotVersion uint32 = 1

// PoolSnapshot is the wire form of a full pool: every pending message in
// ascending MessageID order. Produced for bootstrap transfer and state
// hashing; a node restoring one must reconstruct a byte-identical pool.
type PoolSnapshot struct {
	Version  uint32         `cramberry:"1"`
	Messages []AsyncMessage `cramberry:"2"`
}

// Package asyncpool implements the asynchronous-message pool of a
// blockchain node: a consensus-critical store of deferred smart-contract
// calls, scheduled by one execution to run at a later slot.
//
// The pool is a pure, synchronous data structure. Every operation is a
// deterministic function of (prior state, inputs): which messages are
// kept, evicted, or selected for execution must be bit-for-bit identical
// on every node, because pool snapshot bytes feed into the chain's
// global state hash. Any change to the ordering, eviction policy, or
// encoding is a consensus-breaking protocol change and must be versioned
// explicitly.
//
// The core lives in the pool subpackage with its data model in the
// types subpackage. The grpc subpackage provides the
// bootstrap snapshot transfer service, and the archive subpackage a
// persistent snapshot archive.
//
// Concurrency: pool operations are not safe to invoke concurrently on
// the same instance without external serialization. Independent
// instances (independent speculative branches) share no state and may be
// driven concurrently. Nothing in the core performs I/O or blocks, so
// there is no context or cancellation surface.
package asyncpool

import "github.com/blockberries/asyncpool/types"

// DatastoreReader is the pool's only view of the ledger. It is consumed
// solely to evaluate trigger conditions; the pool never writes to the
// datastore.
//
// Implementations must be deterministic with respect to the ledger
// version they represent: two nodes at the same ledger state must return
// identical results.
type DatastoreReader interface {
	// ReadDatastoreValue returns the value stored under key on the
	// given address, and whether such an entry exists.
	ReadDatastoreValue(addr types.Address, key []byte) ([]byte, bool)
}

// DatastoreKey identifies one datastore entry for change notifications.
// After each block the ledger reports the set of keys it wrote, and the
// pool re-evaluates only the triggers whose ranges intersect them.
type DatastoreKey struct {
	Address types.Address
	Key     []byte
}

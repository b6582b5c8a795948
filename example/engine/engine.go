// Package engine implements a miniature block-execution loop around the
// asynchronous-message pool, demonstrating the full per-block protocol:
// insert freshly emitted messages, select and run executable ones under
// a gas budget, re-derive trigger eligibility from ledger writes, and
// fork/commit/discard speculative branches.
//
// The real execution engine of a node is far larger; this example keeps
// only the pool-facing surface.
package engine

import (
	"github.com/blockberries/asyncpool"
	"github.com/blockberries/asyncpool/pool"
	"github.com/blockberries/asyncpool/types"
)

// Params are the chain-wide consensus parameters the engine threads
// into every pool call. They are configuration, not pool state.
type Params struct {
	// MaxPoolSize bounds the number of pending messages.
	MaxPoolSize int
	// MaxGasPerBlock bounds the cumulative MaxGas of the async
	// messages executed in one block.
	MaxGasPerBlock uint64
}

// LedgerWrite is one datastore mutation performed by a block.
type LedgerWrite struct {
	Address types.Address
	Key     []byte
	Value   []byte
}

// Block is the slice of a block the pool cares about: the messages its
// contract calls emitted and the datastore writes it performed.
type Block struct {
	Slot    types.Slot
	Emitted []types.AsyncMessage
	Writes  []LedgerWrite
}

// Outcome reports what one block did to the pool.
type Outcome struct {
	// Executed holds the selected messages in execution order.
	Executed []types.AsyncMessage
	// Changes is the net pool diff the block produced.
	Changes *types.Changes
	// StateHash is the pool's state hash after the block.
	StateHash types.Hash
}

// Compile-time interface check.
var _ asyncpool.DatastoreReader = (*Ledger)(nil)

// Ledger is a toy in-memory datastore standing in for the node's real
// ledger.
type Ledger struct {
	values map[types.Address]map[string][]byte
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{values: make(map[types.Address]map[string][]byte)}
}

// ReadDatastoreValue returns the value under key on addr, if present.
func (l *Ledger) ReadDatastoreValue(addr types.Address, key []byte) ([]byte, bool) {
	v, ok := l.values[addr][string(key)]
	return v, ok
}

func (l *Ledger) apply(writes []LedgerWrite) []asyncpool.DatastoreKey {
	changed := make([]asyncpool.DatastoreKey, 0, len(writes))
	for _, w := range writes {
		if l.values[w.Address] == nil {
			l.values[w.Address] = make(map[string][]byte)
		}
		l.values[w.Address][string(w.Key)] = w.Value
		changed = append(changed, asyncpool.DatastoreKey{Address: w.Address, Key: w.Key})
	}
	return changed
}

// Engine drives the pool through sequential block execution. All pool
// operations run on one goroutine, as the concurrency contract
// requires.
type Engine struct {
	params Params
	final  *pool.Pool
	ledger *Ledger
}

// New creates an engine with an empty final pool and ledger.
func New(params Params) *Engine {
	return &Engine{
		params: params,
		final:  pool.New(),
		ledger: NewLedger(),
	}
}

// FinalPool exposes the canonical pool, e.g. to hand to a bootstrap
// server.
func (e *Engine) FinalPool() *pool.Pool { return e.final }

// Ledger exposes the engine's datastore.
func (e *Engine) Ledger() *Ledger { return e.ledger }

// run executes b against a speculative branch of the final pool and
// returns the branch together with the outcome.
func (e *Engine) run(b Block) (*pool.Branch, Outcome) {
	br := pool.Fork(e.final)
	w := br.Working()

	br.Fold(w.InsertNewMessages(b.Emitted, b.Slot, e.params.MaxPoolSize))
	executed, ch := w.SelectAndRemoveExecutable(b.Slot, e.params.MaxGasPerBlock)
	br.Fold(ch)

	return br, Outcome{
		Executed:  executed,
		Changes:   br.Changes().Clone(),
		StateHash: w.StateHash(),
	}
}

// PreviewBlock executes b speculatively and discards every effect:
// the final pool and the ledger are left untouched.
func (e *Engine) PreviewBlock(b Block) Outcome {
	br, outcome := e.run(b)
	br.Discard()
	return outcome
}

// ProcessBlock executes b and makes it final: the branch overlay is
// merged into the canonical pool, the block's ledger writes land, and
// trigger eligibility is re-derived for the touched keys.
func (e *Engine) ProcessBlock(b Block) Outcome {
	br, outcome := e.run(b)
	br.Commit()

	changed := e.ledger.apply(b.Writes)
	e.final.RefreshEligibility(changed, e.ledger)

	outcome.StateHash = e.final.StateHash()
	return outcome
}

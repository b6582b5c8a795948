package pool

import "github.com/blockberries/asyncpool/types"

// Branch is a speculative execution branch over a base pool: the base
// plus an accumulated change-log overlay. Forking is copy-on-write — no
// deep copy of the base is taken — and branches are fully isolated:
// committing merges the overlay into the base, discarding drops the
// overlay with no effect on the base.
//
// The usual pattern per candidate block is: fork from the final pool,
// run pool operations on [Branch.Working], fold the emitted changes
// back with [Branch.Fold], then Commit when the block becomes final or
// Discard on rollback.
type Branch struct {
	base    *Pool
	overlay *types.Changes
}

// Fork creates a new branch over base. The branch never mutates base
// until Commit.
func Fork(base *Pool) *Branch {
	return &Branch{base: base, overlay: types.NewChanges()}
}

// Get returns the message under id as seen by the branch: the overlay
// is consulted first, falling back to the base pool.
func (b *Branch) Get(id types.MessageID) (types.AsyncMessage, bool) {
	if e, ok := b.overlay.Get(id); ok {
		if e.Op == types.OpDelete {
			return types.AsyncMessage{}, false
		}
		return *e.Message, true
	}
	return b.base.Get(id)
}

// Contains reports whether the branch sees a message under id.
func (b *Branch) Contains(id types.MessageID) bool {
	_, ok := b.Get(id)
	return ok
}

// Working materializes the branch view as an independent pool: a clone
// of the base with the overlay applied. Speculative pool operations run
// against the working pool; their resulting change logs are folded back
// into the branch with Fold.
func (b *Branch) Working() *Pool {
	w := b.base.Clone()
	w.ApplyChanges(b.overlay)
	return w
}

// Fold accumulates a change log produced against the branch's working
// view. Changes must be folded in the order they were produced.
func (b *Branch) Fold(ch *types.Changes) {
	b.overlay.Merge(ch)
}

// Changes returns the accumulated overlay.
func (b *Branch) Changes() *types.Changes {
	return b.overlay
}

// Commit merges the accumulated overlay into the base pool and resets
// the branch to an empty overlay over the updated base.
func (b *Branch) Commit() {
	b.base.ApplyChanges(b.overlay)
	b.overlay = types.NewChanges()
}

// Discard drops the accumulated overlay with no effect on the base.
func (b *Branch) Discard() {
	b.overlay = types.NewChanges()
}

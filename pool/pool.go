// Package pool implements the authoritative ordered collection of
// pending asynchronous messages for one versioned snapshot of the
// chain, together with capacity-bounded eviction, execution-eligibility
// filtering, and speculative branching.
//
// A Pool is a pure, synchronous data structure: every operation is a
// deterministic function of (prior state, inputs), performs no I/O, and
// never blocks. Operations are not safe to invoke concurrently on the
// same Pool without external serialization; independent Pools share no
// state and may be driven concurrently.
package pool

import (
	"fmt"
	"sort"

	"github.com/blockberries/asyncpool"
	"github.com/blockberries/asyncpool/types"
)

// Pool is an ordered mapping from MessageID to AsyncMessage. Keys are
// unique and iteration is in ascending key order, which by construction
// of MessageID is descending execution priority: the best message is
// always first and eviction always removes from the tail.
type Pool struct {
	// ids holds every key in ascending order.
	ids []types.MessageID
	// msgs maps each key to its message.
	msgs map[types.MessageID]*types.AsyncMessage
	// triggered indexes, per ledger address, the messages whose trigger
	// watches that address. Keeps eligibility refresh proportional to
	// the touched addresses instead of the whole pool.
	triggered map[types.Address]map[types.MessageID]struct{}
}

// New creates an empty pool.
func New() *Pool {
	return &Pool{
		msgs:      make(map[types.MessageID]*types.AsyncMessage),
		triggered: make(map[types.Address]map[types.MessageID]struct{}),
	}
}

// Len returns the number of pending messages.
func (p *Pool) Len() int { return len(p.ids) }

// Contains reports whether id is in the pool.
func (p *Pool) Contains(id types.MessageID) bool {
	_, ok := p.msgs[id]
	return ok
}

// Get returns a copy of the message stored under id.
func (p *Pool) Get(id types.MessageID) (types.AsyncMessage, bool) {
	m, ok := p.msgs[id]
	if !ok {
		return types.AsyncMessage{}, false
	}
	return *m, true
}

// Messages returns copies of all pending messages in ascending key
// order (best priority first).
func (p *Pool) Messages() []types.AsyncMessage {
	out := make([]types.AsyncMessage, len(p.ids))
	for i, id := range p.ids {
		out[i] = *p.msgs[id]
	}
	return out
}

// searchID returns the position of id in p.ids, or the position where
// it would be inserted.
func (p *Pool) searchID(id types.MessageID) int {
	return sort.Search(len(p.ids), func(i int) bool {
		return !p.ids[i].Less(id)
	})
}

// insert adds a message under id. The caller has already checked that
// id is absent.
func (p *Pool) insert(id types.MessageID, m *types.AsyncMessage) {
	i := p.searchID(id)
	p.ids = append(p.ids, types.MessageID{})
	copy(p.ids[i+1:], p.ids[i:])
	p.ids[i] = id
	p.msgs[id] = m
	if m.Trigger != nil {
		addr := m.Trigger.Address
		if p.triggered[addr] == nil {
			p.triggered[addr] = make(map[types.MessageID]struct{})
		}
		p.triggered[addr][id] = struct{}{}
	}
}

// remove deletes the message under id. The caller has already checked
// that id is present.
func (p *Pool) remove(id types.MessageID) {
	i := p.searchID(id)
	p.ids = append(p.ids[:i], p.ids[i+1:]...)
	m := p.msgs[id]
	delete(p.msgs, id)
	if m.Trigger != nil {
		addr := m.Trigger.Address
		delete(p.triggered[addr], id)
		if len(p.triggered[addr]) == 0 {
			delete(p.triggered, addr)
		}
	}
}

// ApplyChanges applies a change log to the pool in place, inserting Add
// entries and removing Delete entries.
//
// An Add for a key already present, or a Delete for an absent key,
// means the change log itself is internally inconsistent. That is a
// programming fault in the producer of the changes, not a recoverable
// runtime condition, so ApplyChanges panics rather than silently
// dropping the conflicting entry.
func (p *Pool) ApplyChanges(ch *types.Changes) {
	for _, e := range ch.Entries {
		switch e.Op {
		case types.OpAdd:
			if p.Contains(e.ID) {
				panic(fmt.Sprintf("github.com/blockberries/asyncpool: Add for already-present message %+v", e.ID))
			}
			m := *e.Message
			p.insert(e.ID, &m)
		case types.OpDelete:
			if !p.Contains(e.ID) {
				panic(fmt.Sprintf("github.com/blockberries/asyncpool: Delete for absent message %+v", e.ID))
			}
			p.remove(e.ID)
		default:
			panic(fmt.Sprintf("github.com/blockberries/asyncpool: unknown change op %v", e.Op))
		}
	}
}

// InsertNewMessages merges a batch of freshly emitted messages into the
// pool, then enforces maxPoolSize by evicting the lowest-priority
// entries until the count is within bound. Messages whose validity
// window has already fully elapsed at current are not inserted at all.
//
// Exceeding maxPoolSize is an expected, handled condition, never an
// error. Eviction is deterministic: the strictly lowest-priority
// surviving entries are removed first, and ties are impossible because
// MessageID is a strict total order.
//
// The returned change log describes the net effect of every Add and
// Delete actually applied: a fresh message evicted in the same call
// cancels out and leaves no entry. Callers fold the result into their
// running diff to track the resulting state.
func (p *Pool) InsertNewMessages(msgs []types.AsyncMessage, current types.Slot, maxPoolSize int) *types.Changes {
	changes := types.NewChanges()

	for i := range msgs {
		m := msgs[i]
		if m.ExpiredAt(current) {
			continue
		}
		id := m.ID()
		if p.Contains(id) {
			panic(fmt.Sprintf("github.com/blockberries/asyncpool: freshly emitted message collides with pending message %+v", id))
		}
		p.insert(id, &m)
		changes.PushAdd(&m)
	}

	for len(p.ids) > maxPoolSize {
		worst := p.ids[len(p.ids)-1]
		p.remove(worst)
		changes.PushDelete(worst)
	}

	return changes
}

// SelectAndRemoveExecutable scans the pool in priority order and
// returns the batch of messages the execution engine must run, in that
// exact order, together with the change log recording their removal.
//
// Messages whose validity window has not opened yet are skipped and
// kept. Messages whose window has fully elapsed are removed as expired.
// Of the remainder, a message is selected when its trigger currently
// evaluates true (or it has none) and its MaxGas fits the gas budget
// still available; messages too large for the remaining budget are
// skipped and the scan continues, so the budget is exhausted only when
// no surviving candidate fits.
func (p *Pool) SelectAndRemoveExecutable(current types.Slot, maxGasBudget uint64) ([]types.AsyncMessage, *types.Changes) {
	changes := types.NewChanges()
	var selected []types.AsyncMessage
	var removed []types.MessageID

	remaining := maxGasBudget
	for _, id := range p.ids {
		m := p.msgs[id]
		if m.ExpiredAt(current) {
			removed = append(removed, id)
			changes.PushDelete(id)
			continue
		}
		if current.Before(m.ValidityStart) {
			continue
		}
		if m.Trigger != nil && !m.CanBeExecuted {
			continue
		}
		if m.MaxGas > remaining {
			continue
		}
		remaining -= m.MaxGas
		selected = append(selected, *m)
		removed = append(removed, id)
		changes.PushDelete(id)
	}

	for _, id := range removed {
		p.remove(id)
	}
	return selected, changes
}

// RefreshEligibility re-derives CanBeExecuted for every message whose
// trigger range intersects one of the changed datastore keys, reading
// current values through reader. A message becomes eligible when any
// intersecting changed key currently holds a value inside its filter
// range, and ineligible when none does. Messages whose triggers are
// untouched keep their cached flag.
//
// It returns the number of messages whose flag changed.
func (p *Pool) RefreshEligibility(changed []asyncpool.DatastoreKey, reader asyncpool.DatastoreReader) int {
	// Collect the intersecting changed keys per watching message.
	hits := make(map[types.MessageID][]asyncpool.DatastoreKey)
	for _, ck := range changed {
		for id := range p.triggered[ck.Address] {
			if p.msgs[id].Trigger.ContainsKey(ck.Address, ck.Key) {
				hits[id] = append(hits[id], ck)
			}
		}
	}

	flipped := 0
	for id, keys := range hits {
		m := p.msgs[id]
		eligible := false
		for _, ck := range keys {
			value, ok := reader.ReadDatastoreValue(ck.Address, ck.Key)
			if ok && m.Trigger.MatchesValue(value) {
				eligible = true
				break
			}
		}
		if m.CanBeExecuted != eligible {
			// Re-derivation, not in-place mutation: the pool swaps in a
			// fresh copy with the recomputed flag.
			fresh := *m
			fresh.CanBeExecuted = eligible
			p.msgs[id] = &fresh
			flipped++
		}
	}
	return flipped
}

// Clone returns a deep copy sharing no mutable state with p, for use as
// an independent speculative branch.
func (p *Pool) Clone() *Pool {
	out := New()
	out.ids = append([]types.MessageID(nil), p.ids...)
	for id, m := range p.msgs {
		cp := *m
		out.msgs[id] = &cp
		if cp.Trigger != nil {
			addr := cp.Trigger.Address
			if out.triggered[addr] == nil {
				out.triggered[addr] = make(map[types.MessageID]struct{})
			}
			out.triggered[addr][id] = struct{}{}
		}
	}
	return out
}

// Package pooltest provides test utilities for the asynchronous-message
// pool: an in-memory ledger datastore with change tracking, message
// factories, and a reusable determinism suite.
package pooltest

import (
	"github.com/blockberries/asyncpool"
	"github.com/blockberries/asyncpool/types"
)

// Compile-time interface check.
var _ asyncpool.DatastoreReader = (*MapDatastore)(nil)

// MapDatastore is an in-memory ledger datastore. Writes are tracked so
// tests can feed the resulting changed-key set into
// Pool.RefreshEligibility, simulating the per-block notifications a
// real ledger emits.
//
// MapDatastore is not safe for concurrent use; tests drive it from one
// goroutine, like the execution pipeline drives the real ledger.
type MapDatastore struct {
	values  map[types.Address]map[string][]byte
	changed []asyncpool.DatastoreKey
}

// NewMapDatastore creates an empty datastore.
func NewMapDatastore() *MapDatastore {
	return &MapDatastore{values: make(map[types.Address]map[string][]byte)}
}

// ReadDatastoreValue returns the value under key on addr, if present.
func (d *MapDatastore) ReadDatastoreValue(addr types.Address, key []byte) ([]byte, bool) {
	v, ok := d.values[addr][string(key)]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), v...), true
}

// Write stores value under key on addr and records the key as changed.
func (d *MapDatastore) Write(addr types.Address, key, value []byte) {
	if d.values[addr] == nil {
		d.values[addr] = make(map[string][]byte)
	}
	d.values[addr][string(key)] = append([]byte(nil), value...)
	d.changed = append(d.changed, asyncpool.DatastoreKey{Address: addr, Key: append([]byte(nil), key...)})
}

// Delete removes the entry under key on addr and records the key as
// changed.
func (d *MapDatastore) Delete(addr types.Address, key []byte) {
	delete(d.values[addr], string(key))
	d.changed = append(d.changed, asyncpool.DatastoreKey{Address: addr, Key: append([]byte(nil), key...)})
}

// DrainChanged returns the keys written since the last drain and resets
// the tracking, mirroring the per-block notification boundary.
func (d *MapDatastore) DrainChanged() []asyncpool.DatastoreKey {
	out := d.changed
	d.changed = nil
	return out
}

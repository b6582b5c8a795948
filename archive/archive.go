// Package archive persists pool snapshots in SQLite, so a node can
// serve bootstrap requests for recent final slots without keeping every
// pool version in memory.
//
// The archive stores opaque snapshot bytes exactly as produced by
// pool.Snapshot, keyed by the slot at which they were taken, together
// with their state hash and message count. Snapshots are verified on
// the way out: a row whose bytes no longer match its recorded hash is
// reported as corrupt rather than served.
package archive

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/blockberries/asyncpool/pool"
	"github.com/blockberries/asyncpool/types"

	"lukechampine.com/blake3"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no snapshot is archived for a slot.
var ErrNotFound = errors.New("archive: snapshot not found")

// Entry describes one archived snapshot.
type Entry struct {
	Slot         types.Slot
	StateHash    types.Hash
	MessageCount int
	Size         int
}

// Archive is a SQLite-backed snapshot store.
type Archive struct {
	db *sql.DB
}

// Open opens (or creates) the archive database and initializes the
// schema. WAL mode keeps reads cheap while the node appends snapshots.
func Open(path string) (*Archive, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	a := &Archive{db: db}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return a, nil
}

// Close closes the database connection.
func (a *Archive) Close() error { return a.db.Close() }

func (a *Archive) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		period        INTEGER NOT NULL,
		thread        INTEGER NOT NULL,
		state_hash    BLOB    NOT NULL,
		message_count INTEGER NOT NULL,
		data          BLOB    NOT NULL,
		created_at    TEXT    NOT NULL,
		PRIMARY KEY (period, thread)
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_period ON snapshots(period);
	`
	_, err := a.db.Exec(schema)
	return err
}

// Put archives the snapshot of p taken at slot. Re-archiving the same
// slot overwrites the previous row.
func (a *Archive) Put(slot types.Slot, p *pool.Pool) error {
	data := p.Snapshot()
	hash := p.StateHash()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := a.db.Exec(
		`INSERT INTO snapshots (period, thread, state_hash, message_count, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(period, thread) DO UPDATE SET
		 state_hash = excluded.state_hash,
		 message_count = excluded.message_count,
		 data = excluded.data,
		 created_at = excluded.created_at`,
		slot.Period, slot.Thread, hash[:], p.Len(), data, now,
	)
	return err
}

// Get returns the snapshot bytes archived for slot, verifying them
// against the recorded state hash.
func (a *Archive) Get(slot types.Slot) ([]byte, types.Hash, error) {
	row := a.db.QueryRow(
		`SELECT state_hash, data FROM snapshots WHERE period = ? AND thread = ?`,
		slot.Period, slot.Thread,
	)
	var rawHash, data []byte
	if err := row.Scan(&rawHash, &data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.Hash{}, ErrNotFound
		}
		return nil, types.Hash{}, err
	}
	var hash types.Hash
	copy(hash[:], rawHash)
	if sum := types.Hash(blake3.Sum256(data)); sum != hash {
		return nil, types.Hash{}, fmt.Errorf("archive: snapshot at %+v corrupt: hash mismatch", slot)
	}
	return data, hash, nil
}

// Restore reconstructs the pool archived at slot.
func (a *Archive) Restore(slot types.Slot) (*pool.Pool, error) {
	data, _, err := a.Get(slot)
	if err != nil {
		return nil, err
	}
	return pool.RestoreSnapshot(data)
}

// Latest returns the entry for the most recent archived slot.
func (a *Archive) Latest() (Entry, error) {
	row := a.db.QueryRow(
		`SELECT period, thread, state_hash, message_count, length(data)
		 FROM snapshots ORDER BY period DESC, thread DESC LIMIT 1`,
	)
	return scanEntry(row)
}

// List returns all archived entries in ascending slot order.
func (a *Archive) List() ([]Entry, error) {
	rows, err := a.db.Query(
		`SELECT period, thread, state_hash, message_count, length(data)
		 FROM snapshots ORDER BY period ASC, thread ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes every snapshot taken strictly before slot. It returns
// the number of rows removed.
func (a *Archive) Prune(slot types.Slot) (int64, error) {
	res, err := a.db.Exec(
		`DELETE FROM snapshots WHERE period < ? OR (period = ? AND thread < ?)`,
		slot.Period, slot.Period, slot.Thread,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var e Entry
	var rawHash []byte
	if err := row.Scan(&e.Slot.Period, &e.Slot.Thread, &rawHash, &e.MessageCount, &e.Size); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	copy(e.StateHash[:], rawHash)
	return e, nil
}

// PinnedSource adapts one archived snapshot to the bootstrap server's
// SnapshotSource, so a node can serve a pinned final slot while its
// live pool keeps moving.
type PinnedSource struct {
	data  []byte
	hash  types.Hash
	count int
}

// Pin loads the snapshot archived at slot into memory as a serving
// source.
func (a *Archive) Pin(slot types.Slot) (*PinnedSource, error) {
	data, hash, err := a.Get(slot)
	if err != nil {
		return nil, err
	}
	row := a.db.QueryRow(
		`SELECT message_count FROM snapshots WHERE period = ? AND thread = ?`,
		slot.Period, slot.Thread,
	)
	var count int
	if err := row.Scan(&count); err != nil {
		return nil, err
	}
	return &PinnedSource{data: data, hash: hash, count: count}, nil
}

// Snapshot returns the pinned snapshot bytes.
func (s *PinnedSource) Snapshot() []byte { return bytes.Clone(s.data) }

// StateHash returns the pinned snapshot's state hash.
func (s *PinnedSource) StateHash() types.Hash { return s.hash }

// Len returns the pinned snapshot's message count.
func (s *PinnedSource) Len() int { return s.count }

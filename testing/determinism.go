package pooltest

import (
	"bytes"
	"testing"

	"github.com/blockberries/asyncpool/pool"
	"github.com/blockberries/asyncpool/types"
)

// RunDeterminismSuite verifies the consensus contract of the pool: two
// independently constructed pools fed the same insert sequence with the
// same capacity bound must converge to byte-identical snapshots, while
// respecting the capacity invariant after every batch.
//
// The messages are inserted in batches of batchSize, in order, on both
// pools.
func RunDeterminismSuite(t *testing.T, messages []types.AsyncMessage, maxPoolSize, batchSize int) {
	t.Helper()

	current := types.Slot{Period: 1}

	t.Run("convergence", func(t *testing.T) {
		p1 := pool.New()
		p2 := pool.New()
		for start := 0; start < len(messages); start += batchSize {
			end := min(start+batchSize, len(messages))
			batch := append([]types.AsyncMessage(nil), messages[start:end]...)
			p1.InsertNewMessages(batch, current, maxPoolSize)

			batch = append([]types.AsyncMessage(nil), messages[start:end]...)
			p2.InsertNewMessages(batch, current, maxPoolSize)

			if p1.Len() > maxPoolSize || p2.Len() > maxPoolSize {
				t.Fatalf("capacity invariant violated: %d and %d > %d", p1.Len(), p2.Len(), maxPoolSize)
			}
		}
		if !bytes.Equal(p1.Snapshot(), p2.Snapshot()) {
			t.Fatal("independently constructed pools diverged: snapshots differ")
		}
		if p1.StateHash() != p2.StateHash() {
			t.Fatal("independently constructed pools diverged: state hashes differ")
		}
	})

	t.Run("snapshot_round_trip", func(t *testing.T) {
		p := pool.New()
		p.InsertNewMessages(append([]types.AsyncMessage(nil), messages...), current, maxPoolSize)

		snap := p.Snapshot()
		restored, err := pool.RestoreSnapshot(snap)
		if err != nil {
			t.Fatalf("RestoreSnapshot: %v", err)
		}
		if !bytes.Equal(restored.Snapshot(), snap) {
			t.Fatal("restored pool re-encodes to different bytes")
		}
		if restored.Len() != p.Len() {
			t.Fatalf("restored pool has %d messages, want %d", restored.Len(), p.Len())
		}
	})

	t.Run("changes_replay", func(t *testing.T) {
		// Folding the per-batch change logs and applying the merged
		// result to a fresh pool must reproduce the original.
		p := pool.New()
		folded := types.NewChanges()
		for start := 0; start < len(messages); start += batchSize {
			end := min(start+batchSize, len(messages))
			batch := append([]types.AsyncMessage(nil), messages[start:end]...)
			folded.Merge(p.InsertNewMessages(batch, current, maxPoolSize))
		}

		replayed := pool.New()
		replayed.ApplyChanges(folded)
		if !bytes.Equal(replayed.Snapshot(), p.Snapshot()) {
			t.Fatal("replaying the folded change log diverged from the live pool")
		}
	})
}

package pool_test

import (
	"testing"

	"github.com/blockberries/asyncpool/pool"
	pooltest "github.com/blockberries/asyncpool/testing"
	"github.com/blockberries/asyncpool/types"
)

var slot1 = types.Slot{Period: 1}

func TestInsertNewMessages_EvictsLowestPriority(t *testing.T) {
	// Fees [10, 5, 20] with capacity 2: the fee-5 message must go.
	m10 := pooltest.NewMessage(10, slot1, 0)
	m5 := pooltest.NewMessage(5, slot1, 1)
	m20 := pooltest.NewMessage(20, slot1, 2)

	p := pool.New()
	changes := p.InsertNewMessages([]types.AsyncMessage{m10, m5, m20}, slot1, 2)

	if p.Len() != 2 {
		t.Fatalf("expected 2 messages after eviction, got %d", p.Len())
	}
	if !p.Contains(m20.ID()) || !p.Contains(m10.ID()) {
		t.Error("expected the fee-20 and fee-10 messages to survive")
	}
	if p.Contains(m5.ID()) {
		t.Error("expected the fee-5 message to be evicted")
	}

	// The fee-5 message was added and evicted within one batch, so the
	// net change log must not mention it at all.
	if _, ok := changes.Get(m5.ID()); ok {
		t.Error("evicted fresh insert must cancel out of the change log")
	}
	if changes.Len() != 2 {
		t.Fatalf("expected 2 net changes, got %d", changes.Len())
	}
}

func TestInsertNewMessages_EvictsPreexisting(t *testing.T) {
	old := pooltest.NewMessage(5, slot1, 0)
	p := pool.New()
	p.InsertNewMessages([]types.AsyncMessage{old}, slot1, 10)

	better1 := pooltest.NewMessage(20, slot1, 1)
	better2 := pooltest.NewMessage(10, slot1, 2)
	changes := p.InsertNewMessages([]types.AsyncMessage{better1, better2}, slot1, 2)

	if p.Contains(old.ID()) {
		t.Error("expected the pre-existing fee-5 message to be evicted")
	}
	e, ok := changes.Get(old.ID())
	if !ok || e.Op != types.OpDelete {
		t.Error("eviction of a pre-existing message must be recorded as a Delete")
	}
}

func TestInsertNewMessages_CapacityInvariant(t *testing.T) {
	p := pool.New()
	for round := 0; round < 10; round++ {
		batch := pooltest.RandomMessages(7, int64(round+1))
		p.InsertNewMessages(batch, slot1, 15)
		if p.Len() > 15 {
			t.Fatalf("round %d: pool size %d exceeds bound 15", round, p.Len())
		}
	}
}

func TestInsertNewMessages_SkipsAlreadyExpired(t *testing.T) {
	m := pooltest.NewMessage(10, slot1, 0)
	m.ValidityEnd = types.Slot{Period: 3}

	p := pool.New()
	changes := p.InsertNewMessages([]types.AsyncMessage{m}, types.Slot{Period: 4}, 10)

	if p.Len() != 0 {
		t.Error("a message already expired at insertion must not enter the pool")
	}
	if changes.Len() != 0 {
		t.Error("a skipped message must not appear in the change log")
	}
}

func TestSelect_PriorityOrderAndRemoval(t *testing.T) {
	m10 := pooltest.NewMessage(10, slot1, 0)
	m5 := pooltest.NewMessage(5, slot1, 1)
	m20 := pooltest.NewMessage(20, slot1, 2)

	p := pool.New()
	p.InsertNewMessages([]types.AsyncMessage{m10, m5, m20}, slot1, 10)

	selected, changes := p.SelectAndRemoveExecutable(slot1, 10_000)
	if len(selected) != 3 {
		t.Fatalf("expected 3 selected messages, got %d", len(selected))
	}
	wantFees := []uint64{20, 10, 5}
	for i, m := range selected {
		if m.Fee != wantFees[i] {
			t.Fatalf("selection order wrong at %d: fee %d, want %d", i, m.Fee, wantFees[i])
		}
	}
	if p.Len() != 0 {
		t.Errorf("selected messages must be removed, %d remain", p.Len())
	}
	if changes.Len() != 3 {
		t.Errorf("expected 3 Deletes in change log, got %d", changes.Len())
	}
}

func TestSelect_GasBudget(t *testing.T) {
	big := pooltest.NewMessage(20, slot1, 0)
	big.MaxGas = 5000
	small := pooltest.NewMessage(10, slot1, 1)
	small.MaxGas = 800

	p := pool.New()
	p.InsertNewMessages([]types.AsyncMessage{big, small}, slot1, 10)

	// Budget fits only the small message; the big one is skipped, the
	// scan continues past it.
	selected, _ := p.SelectAndRemoveExecutable(slot1, 1000)
	if len(selected) != 1 || selected[0].Fee != 10 {
		t.Fatalf("expected only the small message selected, got %d messages", len(selected))
	}
	if !p.Contains(big.ID()) {
		t.Error("the skipped message must stay pending")
	}
}

func TestSelect_CumulativeGas(t *testing.T) {
	var batch []types.AsyncMessage
	for i := uint64(0); i < 5; i++ {
		m := pooltest.NewMessage(100-i, slot1, i)
		m.MaxGas = 400
		batch = append(batch, m)
	}
	p := pool.New()
	p.InsertNewMessages(batch, slot1, 10)

	// 1000 gas fits two 400-gas messages, not three.
	selected, _ := p.SelectAndRemoveExecutable(slot1, 1000)
	if len(selected) != 2 {
		t.Fatalf("expected 2 selected messages under cumulative budget, got %d", len(selected))
	}
	if p.Len() != 3 {
		t.Errorf("expected 3 messages left, got %d", p.Len())
	}
}

func TestSelect_RemovesExpired(t *testing.T) {
	m := pooltest.NewMessage(10, slot1, 0)
	m.ValidityEnd = types.Slot{Period: 5}

	p := pool.New()
	p.InsertNewMessages([]types.AsyncMessage{m}, slot1, 10)

	selected, changes := p.SelectAndRemoveExecutable(types.Slot{Period: 6}, 10_000)
	if len(selected) != 0 {
		t.Error("an expired message must never be selected")
	}
	if p.Contains(m.ID()) {
		t.Error("an expired message must be removed from the pool")
	}
	e, ok := changes.Get(m.ID())
	if !ok || e.Op != types.OpDelete {
		t.Error("expiry must be recorded as a Delete in the change log")
	}
}

func TestSelect_SkipsNotYetValid(t *testing.T) {
	m := pooltest.NewMessage(10, slot1, 0)
	m.ValidityStart = types.Slot{Period: 9}
	m.ValidityEnd = types.Slot{Period: 20}

	p := pool.New()
	p.InsertNewMessages([]types.AsyncMessage{m}, slot1, 10)

	selected, changes := p.SelectAndRemoveExecutable(types.Slot{Period: 5}, 10_000)
	if len(selected) != 0 || changes.Len() != 0 {
		t.Error("a not-yet-valid message must be skipped, not selected or removed")
	}
	if !p.Contains(m.ID()) {
		t.Error("a not-yet-valid message must stay pending")
	}
}

func TestSelect_TriggeredMessageGated(t *testing.T) {
	addr := types.Address{0x07}
	key := []byte("counter")
	m := pooltest.NewTriggeredMessage(10, slot1, 0, addr, key)

	ds := pooltest.NewMapDatastore()
	p := pool.New()
	p.InsertNewMessages([]types.AsyncMessage{m}, slot1, 10)

	// Before any write to the key, the message is not selectable.
	selected, _ := p.SelectAndRemoveExecutable(slot1, 10_000)
	if len(selected) != 0 {
		t.Fatal("a triggered message must not be selectable before its trigger fires")
	}

	// A write inside the filter range flips eligibility.
	ds.Write(addr, key, []byte{0x01})
	if flipped := p.RefreshEligibility(ds.DrainChanged(), ds); flipped != 1 {
		t.Fatalf("expected 1 eligibility flip, got %d", flipped)
	}

	selected, _ = p.SelectAndRemoveExecutable(slot1, 10_000)
	if len(selected) != 1 {
		t.Fatal("the message must become selectable once its trigger evaluates true")
	}
	if !selected[0].CanBeExecuted {
		t.Error("the selected message must carry the re-derived flag")
	}
}

func TestRefreshEligibility_FilterRange(t *testing.T) {
	addr := types.Address{0x07}
	key := []byte("price")
	m := pooltest.NewMessage(10, slot1, 0)
	m.Trigger = &types.Trigger{
		Address:     addr,
		KeyLower:    key,
		KeyUpper:    key,
		FilterLower: []byte{0x10},
		FilterUpper: []byte{0x20},
	}

	ds := pooltest.NewMapDatastore()
	p := pool.New()
	p.InsertNewMessages([]types.AsyncMessage{m}, slot1, 10)

	// Value outside the filter: still ineligible.
	ds.Write(addr, key, []byte{0x30})
	p.RefreshEligibility(ds.DrainChanged(), ds)
	if got, _ := p.Get(m.ID()); got.CanBeExecuted {
		t.Fatal("a value outside the filter range must not make the message eligible")
	}

	// Value inside the filter: eligible.
	ds.Write(addr, key, []byte{0x15})
	p.RefreshEligibility(ds.DrainChanged(), ds)
	if got, _ := p.Get(m.ID()); !got.CanBeExecuted {
		t.Fatal("a value inside the filter range must make the message eligible")
	}

	// Value moves back out: eligibility is re-derived to false.
	ds.Write(addr, key, []byte{0x40})
	p.RefreshEligibility(ds.DrainChanged(), ds)
	if got, _ := p.Get(m.ID()); got.CanBeExecuted {
		t.Fatal("eligibility must be re-derived when the value leaves the filter range")
	}
}

func TestRefreshEligibility_OnlyIntersecting(t *testing.T) {
	addr := types.Address{0x07}
	other := types.Address{0x08}
	m := pooltest.NewTriggeredMessage(10, slot1, 0, addr, []byte("k"))

	ds := pooltest.NewMapDatastore()
	p := pool.New()
	p.InsertNewMessages([]types.AsyncMessage{m}, slot1, 10)

	// Writes to an unrelated address or key must not touch the flag.
	ds.Write(other, []byte("k"), []byte{0x01})
	ds.Write(addr, []byte("unrelated"), []byte{0x01})
	if flipped := p.RefreshEligibility(ds.DrainChanged(), ds); flipped != 0 {
		t.Fatalf("expected no eligibility flips, got %d", flipped)
	}
}

func TestApplyChanges_PanicsOnDuplicateAdd(t *testing.T) {
	m := pooltest.NewMessage(10, slot1, 0)
	p := pool.New()
	p.InsertNewMessages([]types.AsyncMessage{m}, slot1, 10)

	ch := types.NewChanges()
	ch.PushAdd(&m)

	defer func() {
		if recover() == nil {
			t.Fatal("expected ApplyChanges to panic on Add for a present key")
		}
	}()
	p.ApplyChanges(ch)
}

func TestApplyChanges_PanicsOnAbsentDelete(t *testing.T) {
	m := pooltest.NewMessage(10, slot1, 0)
	p := pool.New()

	ch := types.NewChanges()
	ch.PushDelete(m.ID())

	defer func() {
		if recover() == nil {
			t.Fatal("expected ApplyChanges to panic on Delete for an absent key")
		}
	}()
	p.ApplyChanges(ch)
}

func TestApplyChanges_MergeEqualsSequential(t *testing.T) {
	m1 := pooltest.NewMessage(10, slot1, 0)
	m2 := pooltest.NewMessage(20, slot1, 1)
	m3 := pooltest.NewMessage(5, slot1, 2)

	// A adds m1 and m2; B deletes m1 and adds m3 (overlapping on m1).
	a := types.NewChanges()
	a.PushAdd(&m1)
	a.PushAdd(&m2)
	b := types.NewChanges()
	b.PushDelete(m1.ID())
	b.PushAdd(&m3)

	sequential := pool.New()
	sequential.ApplyChanges(a)
	sequential.ApplyChanges(b)

	merged := a.Clone()
	merged.Merge(b)
	atOnce := pool.New()
	atOnce.ApplyChanges(merged)

	if string(sequential.Snapshot()) != string(atOnce.Snapshot()) {
		t.Fatal("applying Merge(A,B) must equal applying A then B")
	}
}

func TestClone_Isolated(t *testing.T) {
	m := pooltest.NewMessage(10, slot1, 0)
	p := pool.New()
	p.InsertNewMessages([]types.AsyncMessage{m}, slot1, 10)

	c := p.Clone()
	extra := pooltest.NewMessage(20, slot1, 1)
	c.InsertNewMessages([]types.AsyncMessage{extra}, slot1, 10)

	if p.Len() != 1 {
		t.Error("mutating a clone must not affect the original")
	}
	if c.Len() != 2 {
		t.Error("expected the clone to hold both messages")
	}

	// Trigger index must be cloned too: refreshing the clone must not
	// touch the original's eligibility flags.
	addr := types.Address{0x07}
	tm := pooltest.NewTriggeredMessage(30, slot1, 2, addr, []byte("k"))
	p.InsertNewMessages([]types.AsyncMessage{tm}, slot1, 10)
	c2 := p.Clone()

	ds := pooltest.NewMapDatastore()
	ds.Write(addr, []byte("k"), []byte{0x01})
	c2.RefreshEligibility(ds.DrainChanged(), ds)

	if got, _ := p.Get(tm.ID()); got.CanBeExecuted {
		t.Error("refreshing a clone must not affect the original pool")
	}
	if got, _ := c2.Get(tm.ID()); !got.CanBeExecuted {
		t.Error("expected the clone's flag to be re-derived")
	}
}

func TestDeterminismSuite(t *testing.T) {
	pooltest.RunDeterminismSuite(t, pooltest.RandomMessages(60, 42), 25, 7)
}

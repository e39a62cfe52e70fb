package twoq

import "testing"

// --- test doubles (same shape as in LRU tests) ---

type fakeSlot struct {
	id    int
	stamp uint64
	refs  int32
	uses  uint32
}

type mockHooks struct{ slots []fakeSlot }

func (h *mockHooks) Len() int           { return len(h.slots) }
func (h *mockHooks) ID(i int) int       { return h.slots[i].id }
func (h *mockHooks) Stamp(i int) uint64 { return h.slots[i].stamp }
func (h *mockHooks) Refs(i int) int32   { return h.slots[i].refs }
func (h *mockHooks) Uses(i int) uint32  { return h.slots[i].uses }

// --- tests ---

// An overfull A1 gives up its oldest slot even if Am has older ones.
func TestTwoQ_OverfullA1Evicted(t *testing.T) {
	t.Parallel()

	h := &mockHooks{slots: []fakeSlot{
		{id: 0, stamp: 1, uses: 5}, // Am, oldest overall
		{id: 1, stamp: 8, uses: 1},
		{id: 2, stamp: 3, uses: 1}, // oldest in A1
		{id: 3, stamp: 9, uses: 1},
	}}
	if got := New(25).New(h).Victim(); got != 2 {
		t.Fatalf("Victim: want position 2, got %d", got)
	}
}

// Within its quota A1 is left alone and Am's LRU slot goes.
func TestTwoQ_A1WithinQuotaProtected(t *testing.T) {
	t.Parallel()

	h := &mockHooks{slots: []fakeSlot{
		{id: 0, stamp: 1, uses: 1}, // A1, oldest overall
		{id: 1, stamp: 4, uses: 2},
		{id: 2, stamp: 3, uses: 3}, // oldest in Am
		{id: 3, stamp: 9, uses: 2},
	}}
	if got := New(25).New(h).Victim(); got != 2 {
		t.Fatalf("Victim: want position 2, got %d", got)
	}
}

// Never-used slots count as A1 and are taken first when A1 is overfull.
func TestTwoQ_FreeSlotsFirst(t *testing.T) {
	t.Parallel()

	h := &mockHooks{slots: []fakeSlot{
		{id: 0, stamp: 5, uses: 2},
		{id: 1},
		{id: 2},
	}}
	if got := New(25).New(h).Victim(); got != 1 {
		t.Fatalf("Victim: want position 1 (slot 1), got %d", got)
	}
}

// If one queue has nothing unreferenced, the other is used.
func TestTwoQ_FallsBackAcrossQueues(t *testing.T) {
	t.Parallel()

	h := &mockHooks{slots: []fakeSlot{
		{id: 0, stamp: 1, uses: 1, refs: 1},
		{id: 1, stamp: 2, uses: 4},
		{id: 2, stamp: 3, uses: 1, refs: 1},
	}}
	if got := New(10).New(h).Victim(); got != 1 {
		t.Fatalf("Victim: want position 1, got %d", got)
	}

	h = &mockHooks{slots: []fakeSlot{
		{id: 0, stamp: 1, uses: 3, refs: 1},
		{id: 1, stamp: 2, uses: 1},
		{id: 2, stamp: 3, uses: 2, refs: 1},
	}}
	if got := New(100).New(h).Victim(); got != 1 {
		t.Fatalf("Victim: want position 1, got %d", got)
	}

	h = &mockHooks{slots: []fakeSlot{{id: 0, refs: 1}, {id: 1, uses: 2, refs: 1}}}
	if got := New(25).New(h).Victim(); got != -1 {
		t.Fatalf("Victim: want -1, got %d", got)
	}
}

func TestTwoQ_ClampsQuota(t *testing.T) {
	t.Parallel()

	if p := New(0).(twoQPolicy); p.inPct != 1 {
		t.Fatalf("inPct: want 1, got %d", p.inPct)
	}
	if p := New(500).(twoQPolicy); p.inPct != 100 {
		t.Fatalf("inPct: want 100, got %d", p.inPct)
	}
}

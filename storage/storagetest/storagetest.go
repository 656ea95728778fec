// Package storagetest provides a conformance suite every storage.Store
// implementation runs from its own tests.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nathoo/worldcore/storage"
)

// Run exercises a store built fresh for each subtest by open.
func Run(t *testing.T, open func(t *testing.T) storage.Store) {
	t.Helper()

	t.Run("AppendGapless", func(t *testing.T) { testAppendGapless(t, open(t)) })
	t.Run("ReadEntriesPaged", func(t *testing.T) { testReadEntriesPaged(t, open(t)) })
	t.Run("WorldsIsolated", func(t *testing.T) { testWorldsIsolated(t, open(t)) })
	t.Run("Snapshots", func(t *testing.T) { testSnapshots(t, open(t)) })
	t.Run("SnapshotIDConflict", func(t *testing.T) { testSnapshotIDConflict(t, open(t)) })
	t.Run("CanceledContext", func(t *testing.T) { testCanceledContext(t, open(t)) })
}

func appendN(t *testing.T, st storage.Store, world string, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 1; i <= n; i++ {
		if err := st.AppendEntry(ctx, world, uint64(i), []byte(fmt.Sprintf("entry-%d", i))); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
}

func testAppendGapless(t *testing.T, st storage.Store) {
	ctx := context.Background()
	appendN(t, st, "w1", 3)

	if err := st.AppendEntry(ctx, "w1", 3, []byte("dup")); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("duplicate append: expected ErrConflict, got %v", err)
	}
	if err := st.AppendEntry(ctx, "w1", 5, []byte("gap")); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("gapped append: expected ErrConflict, got %v", err)
	}
	last, err := st.LastSequence(ctx, "w1")
	if err != nil {
		t.Fatalf("LastSequence: %v", err)
	}
	if last != 3 {
		t.Errorf("last = %d, want 3", last)
	}
}

func testReadEntriesPaged(t *testing.T, st storage.Store) {
	ctx := context.Background()
	appendN(t, st, "w1", 5)

	page, err := st.ReadEntries(ctx, "w1", 2, 2)
	if err != nil {
		t.Fatalf("ReadEntries: %v", err)
	}
	if len(page) != 2 || page[0].Sequence != 2 || page[1].Sequence != 3 {
		t.Fatalf("page = %+v", page)
	}
	if string(page[0].Data) != "entry-2" {
		t.Errorf("data = %q", page[0].Data)
	}

	rest, err := st.ReadEntries(ctx, "w1", 4, 0)
	if err != nil {
		t.Fatalf("ReadEntries: %v", err)
	}
	if len(rest) != 2 || rest[1].Sequence != 5 {
		t.Fatalf("rest = %+v", rest)
	}

	none, err := st.ReadEntries(ctx, "w1", 6, 10)
	if err != nil {
		t.Fatalf("ReadEntries: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no entries past the end, got %d", len(none))
	}
}

func testWorldsIsolated(t *testing.T, st storage.Store) {
	ctx := context.Background()
	appendN(t, st, "w1", 2)
	appendN(t, st, "w2", 1)

	if last, _ := st.LastSequence(ctx, "w2"); last != 1 {
		t.Errorf("w2 last = %d, want 1", last)
	}
	if last, _ := st.LastSequence(ctx, "w3"); last != 0 {
		t.Errorf("empty world last = %d, want 0", last)
	}
}

func testSnapshots(t *testing.T, st storage.Store) {
	ctx := context.Background()

	if _, err := st.LatestSnapshot(ctx, "w1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	for _, snap := range []storage.Snapshot{
		{WorldID: "w1", ID: "genesis", Sequence: 0, Data: []byte("s0")},
		{WorldID: "w1", ID: "auto-5", Sequence: 5, Time: 9, Data: []byte("s5")},
		{WorldID: "w1", ID: "cp-5", Label: "before boss", Sequence: 5, Time: 9, Data: []byte("s5b")},
		{WorldID: "w1", ID: "auto-10", Sequence: 10, Data: []byte("s10")},
	} {
		if err := st.PutSnapshot(ctx, snap); err != nil {
			t.Fatalf("PutSnapshot %s: %v", snap.ID, err)
		}
	}

	latest, err := st.LatestSnapshot(ctx, "w1")
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if latest.ID != "auto-10" || string(latest.Data) != "s10" {
		t.Errorf("latest = %s %q", latest.ID, latest.Data)
	}

	at, err := st.SnapshotAtOrBefore(ctx, "w1", 7)
	if err != nil {
		t.Fatalf("SnapshotAtOrBefore: %v", err)
	}
	if at.Sequence != 5 || at.ID != "cp-5" || at.Time != 9 {
		t.Errorf("at-or-before 7 = %+v", at)
	}

	list, err := st.ListSnapshots(ctx, "w1")
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(list) != 4 || list[0].ID != "genesis" || list[2].Label != "before boss" {
		t.Errorf("list = %+v", list)
	}
	for _, snap := range list {
		if len(snap.Data) != 0 {
			t.Errorf("ListSnapshots should omit data, %s has %d bytes", snap.ID, len(snap.Data))
		}
		if snap.CreatedAt.IsZero() {
			t.Errorf("%s has no creation time", snap.ID)
		}
	}
}

func testSnapshotIDConflict(t *testing.T, st storage.Store) {
	ctx := context.Background()
	snap := storage.Snapshot{WorldID: "w1", ID: "cp", Data: []byte("x")}
	if err := st.PutSnapshot(ctx, snap); err != nil {
		t.Fatalf("PutSnapshot: %v", err)
	}
	if err := st.PutSnapshot(ctx, snap); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
	other := snap
	other.WorldID = "w2"
	if err := st.PutSnapshot(ctx, other); err != nil {
		t.Errorf("same id in another world should be allowed: %v", err)
	}
}

func testCanceledContext(t *testing.T, st storage.Store) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := st.AppendEntry(ctx, "w1", 1, []byte("x")); err == nil {
		t.Error("expected error for canceled context")
	}
	if last, err := st.LastSequence(context.Background(), "w1"); err != nil || last != 0 {
		t.Errorf("canceled append must not persist: last=%d err=%v", last, err)
	}
}

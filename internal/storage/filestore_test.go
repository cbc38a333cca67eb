package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"licznik.app/server/internal/models"
)

var testCategories = []models.Category{"lysy", "pawel"}

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore("", testCategories)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	return s
}

func testEntry(id string, cat models.Category) *models.Entry {
	now := time.Now()
	return &models.Entry{
		ID:          id,
		Category:    cat,
		DisplayDate: now.Format(models.DisplayDateFormat),
		CreatedAt:   now,
	}
}

func TestCounterSetStartsZeroed(t *testing.T) {
	s := newTestStore(t)
	set, err := s.CounterSet(context.Background())
	if err != nil {
		t.Fatalf("CounterSet failed: %v", err)
	}
	for _, cat := range testCategories {
		if set[cat] != 0 {
			t.Errorf("counter %s = %d, want 0", cat, set[cat])
		}
	}
}

func TestAtomicAdjust(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	adj, err := s.AtomicAdjust(ctx, "lysy", 1)
	if err != nil {
		t.Fatalf("AtomicAdjust failed: %v", err)
	}
	if adj.Count != 1 || adj.Clamped {
		t.Errorf("got %+v, want count 1, not clamped", adj)
	}

	adj, err = s.AtomicAdjust(ctx, "lysy", -1)
	if err != nil {
		t.Fatalf("AtomicAdjust failed: %v", err)
	}
	if adj.Count != 0 || adj.Clamped {
		t.Errorf("got %+v, want count 0, not clamped", adj)
	}

	// Decrementing past zero floors and reports the clamp.
	adj, err = s.AtomicAdjust(ctx, "lysy", -1)
	if err != nil {
		t.Fatalf("AtomicAdjust failed: %v", err)
	}
	if adj.Count != 0 || !adj.Clamped {
		t.Errorf("got %+v, want count 0, clamped", adj)
	}
}

func TestAtomicAdjustConcurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.AtomicAdjust(ctx, "pawel", 1); err != nil {
				t.Errorf("AtomicAdjust failed: %v", err)
			}
		}()
	}
	wg.Wait()

	set, err := s.CounterSet(ctx)
	if err != nil {
		t.Fatalf("CounterSet failed: %v", err)
	}
	if set["pawel"] != n {
		t.Errorf("counter = %d after %d concurrent increments, want %d", set["pawel"], n, n)
	}
}

func TestListEntriesOrderAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.InsertEntry(ctx, testEntry(fmt.Sprintf("id-%d", i), "lysy")); err != nil {
			t.Fatalf("InsertEntry failed: %v", err)
		}
	}

	entries, err := s.ListEntries(ctx, 3)
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	for i, want := range []string{"id-4", "id-3", "id-2"} {
		if entries[i].ID != want {
			t.Errorf("entries[%d].ID = %s, want %s", i, entries[i].ID, want)
		}
	}

	entries, err = s.ListEntries(ctx, 0)
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("ListEntries(0) returned %d entries, want 0", len(entries))
	}

	entries, err = s.ListEntries(ctx, 100)
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(entries) != 5 {
		t.Errorf("ListEntries(100) returned %d entries, want all 5", len(entries))
	}
}

func TestEntryLookupAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.InsertEntry(ctx, testEntry("abc", "lysy")); err != nil {
		t.Fatalf("InsertEntry failed: %v", err)
	}

	entry, err := s.Entry(ctx, "abc")
	if err != nil {
		t.Fatalf("Entry failed: %v", err)
	}
	if entry.Category != "lysy" {
		t.Errorf("Category = %s, want lysy", entry.Category)
	}

	if _, err := s.Entry(ctx, "missing"); err != ErrNotFound {
		t.Errorf("Entry(missing) = %v, want ErrNotFound", err)
	}

	if err := s.DeleteEntry(ctx, "abc"); err != nil {
		t.Fatalf("DeleteEntry failed: %v", err)
	}
	if _, err := s.Entry(ctx, "abc"); err != ErrNotFound {
		t.Errorf("deleted entry still found: %v", err)
	}

	// Deleting an absent id is not an error.
	if err := s.DeleteEntry(ctx, "abc"); err != nil {
		t.Errorf("repeat DeleteEntry failed: %v", err)
	}
}

func TestLiveTotals(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s.InsertEntry(ctx, testEntry(fmt.Sprintf("l-%d", i), "lysy"))
	}
	s.InsertEntry(ctx, testEntry("p-0", "pawel"))

	totals, err := s.LiveTotals(ctx)
	if err != nil {
		t.Fatalf("LiveTotals failed: %v", err)
	}
	if totals["lysy"] != 3 || totals["pawel"] != 1 {
		t.Errorf("totals = %v, want lysy=3 pawel=1", totals)
	}
}

func TestSnapshotSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "licznik.json")
	ctx := context.Background()

	s, err := NewFileStore(path, testCategories)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if _, err := s.AtomicAdjust(ctx, "lysy", 1); err != nil {
		t.Fatalf("AtomicAdjust failed: %v", err)
	}
	if err := s.InsertEntry(ctx, testEntry("persisted", "lysy")); err != nil {
		t.Fatalf("InsertEntry failed: %v", err)
	}

	// Reopen from disk as a crashed-and-restarted process would.
	reopened, err := NewFileStore(path, testCategories)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}

	set, err := reopened.CounterSet(ctx)
	if err != nil {
		t.Fatalf("CounterSet failed: %v", err)
	}
	if set["lysy"] != 1 {
		t.Errorf("counter after reopen = %d, want 1", set["lysy"])
	}
	if _, err := reopened.Entry(ctx, "persisted"); err != nil {
		t.Errorf("entry lost across reopen: %v", err)
	}
}

func TestResetAndDeleteAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.AtomicAdjust(ctx, "lysy", 5)
	s.InsertEntry(ctx, testEntry("x", "lysy"))

	if err := s.ResetCounterSet(ctx); err != nil {
		t.Fatalf("ResetCounterSet failed: %v", err)
	}
	if err := s.DeleteAllEntries(ctx); err != nil {
		t.Fatalf("DeleteAllEntries failed: %v", err)
	}

	set, _ := s.CounterSet(ctx)
	if set["lysy"] != 0 {
		t.Errorf("counter after reset = %d, want 0", set["lysy"])
	}
	entries, _ := s.ListEntries(ctx, 10)
	if len(entries) != 0 {
		t.Errorf("journal not empty after DeleteAllEntries: %d entries", len(entries))
	}
}

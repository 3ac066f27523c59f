package lock_test

import (
	"testing"

	"docroom/internal/lock"
)

func TestManager_AcquireAndConflict(t *testing.T) {
	t.Parallel()

	m := lock.NewManager()
	r := lock.Range{Start: 10, End: 20}

	if !m.Acquire(r, "alice") {
		t.Fatal("first acquire should be granted")
	}

	if m.Acquire(r, "bob") {
		t.Error("acquire on a held range should be denied")
	}

	// The holder may re-acquire their own range.
	if !m.Acquire(r, "alice") {
		t.Error("owner re-acquire should be granted")
	}
}

func TestManager_DistinctRangeKeysAreIndependent(t *testing.T) {
	t.Parallel()

	m := lock.NewManager()

	if !m.Acquire(lock.Range{Start: 10, End: 20}, "alice") {
		t.Fatal("acquire failed")
	}

	// Overlapping span but a different key: granted.
	if !m.Acquire(lock.Range{Start: 15, End: 25}, "bob") {
		t.Error("distinct range key should be independent")
	}
}

func TestManager_ReleaseOnlyByOwner(t *testing.T) {
	t.Parallel()

	m := lock.NewManager()
	r := lock.Range{Start: 0, End: 5}

	if !m.Acquire(r, "alice") {
		t.Fatal("acquire failed")
	}

	if m.Release(r, "bob") {
		t.Error("non-owner release should be a no-op")
	}

	if owner, held := m.Owner(r); !held || owner != "alice" {
		t.Errorf("lock should still be held by alice, got %q held=%v", owner, held)
	}

	if !m.Release(r, "alice") {
		t.Error("owner release should succeed")
	}

	if m.Acquire(r, "bob") != true {
		t.Error("released range should be acquirable")
	}
}

func TestManager_ReleaseMissingRange(t *testing.T) {
	t.Parallel()

	m := lock.NewManager()

	if m.Release(lock.Range{Start: 1, End: 2}, "alice") {
		t.Error("releasing an unheld range should be a no-op")
	}
}

func TestManager_ReleaseAll(t *testing.T) {
	t.Parallel()

	m := lock.NewManager()

	m.Acquire(lock.Range{Start: 0, End: 5}, "alice")
	m.Acquire(lock.Range{Start: 10, End: 20}, "alice")
	m.Acquire(lock.Range{Start: 30, End: 40}, "bob")

	released := m.ReleaseAll("alice")

	if len(released) != 2 {
		t.Fatalf("expected 2 released ranges, got %d", len(released))
	}

	if released[0].Start != 0 || released[1].Start != 10 {
		t.Errorf("expected ranges ordered by start, got %+v", released)
	}

	if m.Len() != 1 {
		t.Errorf("bob's lock should survive, got %d locks", m.Len())
	}

	if owner, held := m.Owner(lock.Range{Start: 30, End: 40}); !held || owner != "bob" {
		t.Errorf("expected bob to keep his lock, got %q held=%v", owner, held)
	}
}

func TestRange_Key(t *testing.T) {
	t.Parallel()

	r := lock.Range{Start: 10, End: 20}

	if r.Key() != "10-20" {
		t.Errorf("expected key 10-20, got %q", r.Key())
	}
}

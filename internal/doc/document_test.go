package doc_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"docroom/internal/doc"
	"docroom/internal/ot"
)

func apply(t *testing.T, d *doc.Document, author string, ops ...ot.Operation) doc.HistoryEntry {
	t.Helper()

	entry, err := d.Apply(ops, author, time.Now())
	require.NoError(t, err)

	return entry
}

func TestDocument_Apply_InsertAndDelete(t *testing.T) {
	t.Parallel()

	d := doc.New(0)

	apply(t, d, "alice", ot.NewInsert(0, "hello"))
	apply(t, d, "alice", ot.NewInsert(5, " world"))
	apply(t, d, "bob", ot.NewDelete(0, 6))

	state := d.State()

	if state.Content != "world" {
		t.Errorf("expected %q, got %q", "world", state.Content)
	}

	if state.Revision != 3 {
		t.Errorf("expected revision 3, got %d", state.Revision)
	}

	if state.LastModifiedBy != "bob" {
		t.Errorf("expected last author bob, got %q", state.LastModifiedBy)
	}
}

func TestDocument_Apply_RevisionNeverSkipsOrRepeats(t *testing.T) {
	t.Parallel()

	d := doc.New(0)

	for i := 0; i < 20; i++ {
		entry := apply(t, d, "alice", ot.NewInsert(0, "x"))

		if entry.Revision != i+1 {
			t.Fatalf("edit %d: expected revision %d, got %d", i, i+1, entry.Revision)
		}
	}
}

func TestDocument_Apply_BatchRunningOffset(t *testing.T) {
	t.Parallel()

	d := doc.New(0)
	apply(t, d, "alice", ot.NewInsert(0, "abcdef"))

	// Positions inside a batch refer to the content before the batch: both
	// inserts land where the author saw them.
	apply(t, d, "alice", ot.NewInsert(2, "X"), ot.NewInsert(4, "Y"))

	if got := d.State().Content; got != "abXcdYef" {
		t.Errorf("expected %q, got %q", "abXcdYef", got)
	}
}

func TestDocument_Apply_RetainIsNoop(t *testing.T) {
	t.Parallel()

	d := doc.New(0)
	apply(t, d, "alice", ot.NewInsert(0, "hello"))

	entry := apply(t, d, "alice", ot.NewRetain(2))

	if got := d.State().Content; got != "hello" {
		t.Errorf("content changed: %q", got)
	}

	if entry.Revision != 2 {
		t.Errorf("retain batch still advances the revision: got %d", entry.Revision)
	}
}

func TestDocument_Apply_InverseRestoresContent(t *testing.T) {
	t.Parallel()

	cases := [][]ot.Operation{
		{ot.NewInsert(5, " world")},
		{ot.NewDelete(1, 3)},
		{ot.NewInsert(0, "ab"), ot.NewInsert(0, "cd")},
		{ot.NewDelete(0, 2), ot.NewInsert(0, "XY")},
		{ot.NewInsert(2, "mid"), ot.NewDelete(0, 1)},
	}

	for i, ops := range cases {
		ops := ops

		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			t.Parallel()

			d := doc.New(0)
			apply(t, d, "alice", ot.NewInsert(0, "hello"))

			before := d.State().Content
			entry := apply(t, d, "bob", ops...)

			apply(t, d, "bob", entry.InverseOps...)

			if got := d.State().Content; got != before {
				t.Errorf("expected %q after undo, got %q", before, got)
			}
		})
	}
}

func TestDocument_Transform_SameRevisionUnchanged(t *testing.T) {
	t.Parallel()

	d := doc.New(0)
	apply(t, d, "alice", ot.NewInsert(0, "hello"))

	ops := []ot.Operation{ot.NewInsert(3, "x")}

	got, err := d.Transform(ops, d.Revision())
	require.NoError(t, err)

	require.Equal(t, ops, got)
}

func TestDocument_Transform_FoldsThroughHistory(t *testing.T) {
	t.Parallel()

	d := doc.New(0)
	apply(t, d, "alice", ot.NewInsert(0, "hello"))     // revision 1
	apply(t, d, "alice", ot.NewInsert(0, "abc"))       // revision 2
	apply(t, d, "alice", ot.NewDelete(0, 1))           // revision 3

	// Issued against revision 1: shifted +3 by the insert, -1 by the delete.
	got, err := d.Transform([]ot.Operation{ot.NewInsert(2, "x")}, 1)
	require.NoError(t, err)

	if got[0].Position != 4 {
		t.Errorf("expected position 4, got %d", got[0].Position)
	}
}

func TestDocument_Transform_HistoryGap(t *testing.T) {
	t.Parallel()

	d := doc.New(3)

	for i := 0; i < 10; i++ {
		apply(t, d, "alice", ot.NewInsert(0, "x"))
	}

	// Only revisions 8..10 are retained; base 2 is unreachable.
	_, err := d.Transform([]ot.Operation{ot.NewInsert(0, "y")}, 2)

	if !errors.Is(err, doc.ErrHistoryGap) {
		t.Errorf("expected ErrHistoryGap, got %v", err)
	}
}

func TestDocument_HistoryBounded(t *testing.T) {
	t.Parallel()

	d := doc.New(5)

	for i := 0; i < 12; i++ {
		apply(t, d, "alice", ot.NewInsert(0, "x"))
	}

	entries := d.Entries()

	if len(entries) != 5 {
		t.Fatalf("expected 5 retained entries, got %d", len(entries))
	}

	if entries[0].Revision != 8 || entries[4].Revision != 12 {
		t.Errorf("expected revisions 8..12, got %d..%d", entries[0].Revision, entries[4].Revision)
	}
}

func TestDocument_History_FiltersByRevision(t *testing.T) {
	t.Parallel()

	d := doc.New(0)

	for i := 0; i < 6; i++ {
		apply(t, d, "alice", ot.NewInsert(0, "x"))
	}

	entries := d.History(4)

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	if entries[0].Revision != 5 || entries[1].Revision != 6 {
		t.Errorf("expected revisions 5,6, got %d,%d", entries[0].Revision, entries[1].Revision)
	}
}

func TestDocument_Restore_RoundTrip(t *testing.T) {
	t.Parallel()

	d := doc.New(0)
	apply(t, d, "alice", ot.NewInsert(0, "hello"))
	apply(t, d, "bob", ot.NewInsert(5, " world"))

	restored := doc.Restore(d.State(), d.Entries(), 0)

	require.Equal(t, d.State(), restored.State())
	require.Equal(t, d.Entries(), restored.Entries())

	// The restored document keeps accepting edits where the old one left off.
	entry := apply(t, restored, "carol", ot.NewDelete(0, 6))

	if entry.Revision != 3 {
		t.Errorf("expected revision 3, got %d", entry.Revision)
	}
}

func TestDocument_ConcurrentDisjointInserts_BothSurvive(t *testing.T) {
	t.Parallel()

	// Both orderings of the two concurrent inserts from the same base
	// revision: both substrings must survive either way.
	for _, firstIsTail := range []bool{true, false} {
		firstIsTail := firstIsTail

		t.Run(fmt.Sprintf("tail_first_%v", firstIsTail), func(t *testing.T) {
			t.Parallel()

			d := doc.New(0)
			apply(t, d, "seed", ot.NewInsert(0, "hello"))
			base := d.Revision()

			tail := []ot.Operation{ot.NewInsert(5, " world")}
			head := []ot.Operation{ot.NewInsert(0, "Say: ")}

			first, second := tail, head
			if !firstIsTail {
				first, second = head, tail
			}

			apply(t, d, "a", first...)

			transformed, err := d.Transform(second, base)
			require.NoError(t, err)
			apply(t, d, "b", transformed...)

			content := d.State().Content
			require.Contains(t, content, " world")
			require.Contains(t, content, "Say: ")
			require.Contains(t, content, "hello")
		})
	}
}

func TestDocument_DeleteClampedAtEnd(t *testing.T) {
	t.Parallel()

	d := doc.New(0)
	apply(t, d, "alice", ot.NewInsert(0, "hello"))

	// Deleting past the end trims to what exists.
	apply(t, d, "bob", ot.NewDelete(3, 10))

	if got := d.State().Content; got != "hel" {
		t.Errorf("expected %q, got %q", "hel", got)
	}
}

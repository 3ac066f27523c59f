// Package doc owns the authoritative document content, its revision counter,
// and the bounded history log of applied edits and their inverses.
package doc

import (
	"errors"
	"fmt"
	"time"

	"docroom/internal/ot"
)

// DefaultHistoryLimit bounds the retained history log. Clients further behind
// than the retained window must resync instead of transforming.
const DefaultHistoryLimit = 1000

// ErrHistoryGap is returned when a base revision predates the retained
// history, so the edit cannot be transformed.
var ErrHistoryGap = errors.New("base revision predates retained history")

// State is the persisted document record. Revision starts at 0 and advances
// by exactly 1 per applied edit.
type State struct {
	Content        string    `json:"content"`
	Revision       int       `json:"revision"`
	LastModifiedBy string    `json:"lastModifiedBy,omitempty"`
	LastModifiedAt time.Time `json:"lastModifiedAt"`
}

// HistoryEntry records one applied edit together with the operations that
// undo it. Revision is the document revision after the edit was applied;
// InverseOps are recorded in reverse application order so replaying them as a
// batch restores the prior content.
type HistoryEntry struct {
	Edit       ot.Edit        `json:"edit"`
	Revision   int            `json:"revision"`
	InverseOps []ot.Operation `json:"inverseOperations"`
	AppliedAt  time.Time      `json:"appliedAt"`
}

// Document is the in-memory working copy for one session. It is owned
// exclusively by the session coordinator and is not safe for concurrent use.
type Document struct {
	state   State
	history []HistoryEntry
	limit   int
}

// New creates an empty document at revision 0.
func New(historyLimit int) *Document {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}

	return &Document{limit: historyLimit}
}

// Restore rebuilds a document from a persisted state and history log.
func Restore(state State, history []HistoryEntry, historyLimit int) *Document {
	d := New(historyLimit)
	d.state = state
	d.history = append(d.history, history...)
	d.trim()

	return d
}

// State returns the current document state.
func (d *Document) State() State {
	return d.state
}

// Revision returns the current revision number.
func (d *Document) Revision() int {
	return d.state.Revision
}

// History returns the retained entries with revision > fromRevision, oldest
// first.
func (d *Document) History(fromRevision int) []HistoryEntry {
	var out []HistoryEntry

	for _, entry := range d.history {
		if entry.Revision > fromRevision {
			out = append(out, entry)
		}
	}

	return out
}

// Entries returns a copy of the full retained history, oldest first.
func (d *Document) Entries() []HistoryEntry {
	out := make([]HistoryEntry, len(d.history))
	copy(out, d.history)

	return out
}

// Transform rewrites operations issued against fromRevision so they apply
// cleanly at the current revision, by folding them through every retained
// history entry after fromRevision in revision order. Callers behind the
// retained window get ErrHistoryGap and must resync.
func (d *Document) Transform(ops []ot.Operation, fromRevision int) ([]ot.Operation, error) {
	if fromRevision >= d.state.Revision {
		return ot.CloneOps(ops), nil
	}

	// Every revision in (fromRevision, current] must still be retained.
	if len(d.history) == 0 || d.history[0].Revision > fromRevision+1 {
		return nil, ErrHistoryGap
	}

	out := ot.CloneOps(ops)

	for _, entry := range d.history {
		if entry.Revision <= fromRevision {
			continue
		}

		out = ot.TransformBatch(out, entry.Edit.Operations)
	}

	return out, nil
}

// Apply mutates the document with one edit batch, advances the revision by 1,
// and records a history entry carrying the inverse batch. Positions inside
// the batch are interpreted against the content as it stood before the batch;
// a running offset accounts for earlier operations in the same batch.
func (d *Document) Apply(ops []ot.Operation, authorID string, issuedAt time.Time) (HistoryEntry, error) {
	content := []rune(d.state.Content)
	// Inverses collected in application order, positioned against the content
	// each operation actually saw.
	forward := make([]ot.Operation, 0, len(ops))
	offset := 0

	for _, op := range ops {
		switch op.Kind {
		case ot.Insert:
			pos := clamp(op.Position+offset, 0, len(content))
			runes := []rune(op.Content)
			content = spliceInsert(content, pos, runes)
			forward = append(forward, ot.NewDelete(pos, len(runes)))
			offset += len(runes)
		case ot.Delete:
			pos := clamp(op.Position+offset, 0, len(content))

			length := op.Length
			if pos+length > len(content) {
				length = len(content) - pos
			}

			if length <= 0 {
				// The range was already consumed by an earlier delete.
				forward = append(forward, ot.NewRetain(pos))

				continue
			}

			removed := string(content[pos : pos+length])
			content = spliceDelete(content, pos, length)
			forward = append(forward, ot.NewInsert(pos, removed))
			offset -= length
		case ot.Retain:
			forward = append(forward, ot.NewRetain(op.Position))
		default:
			return HistoryEntry{}, fmt.Errorf("%w: unknown kind %q", ot.ErrInvalidOperation, op.Kind)
		}
	}

	baseRevision := d.state.Revision
	now := time.Now()

	d.state.Content = string(content)
	d.state.Revision++
	d.state.LastModifiedBy = authorID
	d.state.LastModifiedAt = now

	entry := HistoryEntry{
		Edit: ot.Edit{
			BaseRevision: baseRevision,
			Operations:   ot.CloneOps(ops),
			AuthorID:     authorID,
			IssuedAt:     issuedAt,
		},
		Revision:   d.state.Revision,
		InverseOps: reverseInverses(forward),
		AppliedAt:  now,
	}

	d.history = append(d.history, entry)
	d.trim()

	return entry, nil
}

// reverseInverses reverses the collected inverse operations and re-offsets
// their positions so the resulting batch replays correctly through Apply,
// which re-adds a running offset of its own.
func reverseInverses(forward []ot.Operation) []ot.Operation {
	out := make([]ot.Operation, 0, len(forward))
	acc := 0

	for i := len(forward) - 1; i >= 0; i-- {
		op := forward[i]
		op.Position -= acc
		out = append(out, op)

		switch op.Kind {
		case ot.Insert:
			acc += op.ContentLen()
		case ot.Delete:
			acc -= op.Length
		case ot.Retain:
		}
	}

	return out
}

// trim discards the oldest history entries beyond the retention bound.
func (d *Document) trim() {
	if len(d.history) > d.limit {
		d.history = d.history[len(d.history)-d.limit:]
	}
}

func clamp(v, low, high int) int {
	if v < low {
		return low
	}

	if v > high {
		return high
	}

	return v
}

func spliceInsert(content []rune, pos int, runes []rune) []rune {
	out := make([]rune, 0, len(content)+len(runes))
	out = append(out, content[:pos]...)
	out = append(out, runes...)
	out = append(out, content[pos:]...)

	return out
}

func spliceDelete(content []rune, pos, length int) []rune {
	out := make([]rune, 0, len(content)-length)
	out = append(out, content[:pos]...)
	out = append(out, content[pos+length:]...)

	return out
}

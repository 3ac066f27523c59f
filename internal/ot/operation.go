// Package ot contains the operation model and the position-arithmetic
// transform used to reconcile concurrent edits.
package ot

import (
	"errors"
	"fmt"
	"time"
)

// Kind identifies the effect of an operation.
type Kind string

const (
	Insert Kind = "insert"
	Delete Kind = "delete"
	Retain Kind = "retain"
)

// Common errors.
var (
	ErrInvalidOperation = errors.New("invalid operation")
	ErrInvalidEdit      = errors.New("invalid edit")
)

// Operation is one atomic edit unit. Position is a character offset into the
// document as it exists immediately before this operation is applied within
// its batch.
type Operation struct {
	Kind     Kind   `json:"kind"`
	Position int    `json:"position"`
	Content  string `json:"content,omitempty"` // insert only
	Length   int    `json:"length,omitempty"`  // delete only
}

// NewInsert creates an insert operation.
func NewInsert(position int, content string) Operation {
	return Operation{
		Kind:     Insert,
		Position: position,
		Content:  content,
	}
}

// NewDelete creates a delete operation.
func NewDelete(position, length int) Operation {
	return Operation{
		Kind:     Delete,
		Position: position,
		Length:   length,
	}
}

// NewRetain creates a retain operation. Retains never change content; they
// only preserve the shape of a batch.
func NewRetain(position int) Operation {
	return Operation{
		Kind:     Retain,
		Position: position,
	}
}

// Validate checks the operation invariants: inserts carry non-empty content,
// deletes a positive length, and positions are never negative.
func (o Operation) Validate() error {
	if o.Position < 0 {
		return fmt.Errorf("%w: negative position %d", ErrInvalidOperation, o.Position)
	}

	switch o.Kind {
	case Insert:
		if o.Content == "" {
			return fmt.Errorf("%w: insert requires content", ErrInvalidOperation)
		}
	case Delete:
		if o.Length <= 0 {
			return fmt.Errorf("%w: delete requires positive length", ErrInvalidOperation)
		}
	case Retain:
		// No payload to check.
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidOperation, o.Kind)
	}

	return nil
}

// ContentLen returns the length of the inserted content in characters.
func (o Operation) ContentLen() int {
	return len([]rune(o.Content))
}

// Edit is a batch of operations, always expressed relative to the revision
// the author had when they created it.
type Edit struct {
	BaseRevision int         `json:"baseRevision"`
	Operations   []Operation `json:"operations"`
	AuthorID     string      `json:"authorId"`
	IssuedAt     time.Time   `json:"issuedAt"`
}

// Validate checks the edit invariants and every operation it carries.
func (e Edit) Validate() error {
	if e.BaseRevision < 0 {
		return fmt.Errorf("%w: negative base revision %d", ErrInvalidEdit, e.BaseRevision)
	}

	if len(e.Operations) == 0 {
		return fmt.Errorf("%w: no operations", ErrInvalidEdit)
	}

	if e.AuthorID == "" {
		return fmt.Errorf("%w: missing author", ErrInvalidEdit)
	}

	for _, op := range e.Operations {
		if err := op.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// CloneOps returns a copy of the given operations so callers can transform
// them without mutating the original batch.
func CloneOps(ops []Operation) []Operation {
	out := make([]Operation, len(ops))
	copy(out, ops)

	return out
}

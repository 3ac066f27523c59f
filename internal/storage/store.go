// Package storage persists session records. The document snapshot and its
// history log are always written as one value so they never diverge.
package storage

import (
	"context"
	"errors"

	"docroom/internal/doc"
)

// ErrNotFound is returned when no record exists for a session id.
var ErrNotFound = errors.New("session record not found")

// Record is everything a session persists, keyed by the document id.
type Record struct {
	Document doc.State          `json:"document"`
	History  []doc.HistoryEntry `json:"history"`
}

// Store is a durable key-value store for session records. Implementations
// must be safe for concurrent use; different sessions save independently.
type Store interface {
	// Load retrieves the record for a session.
	// Returns ErrNotFound when the session has never been persisted.
	Load(ctx context.Context, sessionID string) (Record, error)

	// Save writes the record for a session, replacing any previous value.
	Save(ctx context.Context, sessionID string, rec Record) error

	// Delete removes the record for a session. Deleting a missing record is
	// not an error.
	Delete(ctx context.Context, sessionID string) error

	// Close releases the backend.
	Close() error
}

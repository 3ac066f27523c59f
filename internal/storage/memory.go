package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory implementation of Store. Useful for testing and
// development. Records are kept JSON-encoded so callers never alias the
// stored value, matching the durable backends.
type MemoryStore struct {
	mu   sync.RWMutex
	recs map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[string][]byte)}
}

// Load retrieves the record for a session.
func (m *MemoryStore) Load(_ context.Context, sessionID string) (Record, error) {
	m.mu.RLock()
	data, ok := m.recs[sessionID]
	m.mu.RUnlock()

	if !ok {
		return Record{}, ErrNotFound
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}

	return rec, nil
}

// Save writes the record for a session.
func (m *MemoryStore) Save(_ context.Context, sessionID string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	m.mu.Lock()
	m.recs[sessionID] = data
	m.mu.Unlock()

	return nil
}

// Delete removes the record for a session.
func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.recs, sessionID)
	m.mu.Unlock()

	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

var bucketSessions = []byte("sessions")

// BoltStore persists session records in an embedded bbolt database. It is the
// default durable backend: a single file, no external service.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the database file at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSessions)

		return err
	})
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("create sessions bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Load retrieves the record for a session.
func (s *BoltStore) Load(_ context.Context, sessionID string) (Record, error) {
	var data []byte

	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketSessions).Get([]byte(sessionID)); v != nil {
			data = append(data, v...)
		}

		return nil
	})
	if err != nil {
		return Record{}, fmt.Errorf("read record: %w", err)
	}

	if data == nil {
		return Record{}, ErrNotFound
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}

	return rec, nil
}

// Save writes the record for a session.
func (s *BoltStore) Save(_ context.Context, sessionID string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSessions).Put([]byte(sessionID), data)
	})
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}

	return nil
}

// Delete removes the record for a session.
func (s *BoltStore) Delete(_ context.Context, sessionID string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSessions).Delete([]byte(sessionID))
	})
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	return nil
}

// Close closes the database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Ensure BoltStore implements Store.
var _ Store = (*BoltStore)(nil)

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createSessionsTable = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	record     JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore persists session records as JSONB rows, one per session id.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to Postgres and ensures the sessions table
// exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, createSessionsTable); err != nil {
		pool.Close()

		return nil, fmt.Errorf("create sessions table: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Load retrieves the record for a session.
func (s *PostgresStore) Load(ctx context.Context, sessionID string) (Record, error) {
	var data []byte

	err := s.pool.QueryRow(ctx,
		`SELECT record FROM sessions WHERE id = $1`, sessionID,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}

	if err != nil {
		return Record{}, fmt.Errorf("read record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}

	return rec, nil
}

// Save upserts the record for a session.
func (s *PostgresStore) Save(ctx context.Context, sessionID string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO sessions (id, record, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (id) DO UPDATE SET record = EXCLUDED.record, updated_at = now()`,
		sessionID, data)
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}

	return nil
}

// Delete removes the record for a session.
func (s *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()

	return nil
}

// Ensure PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

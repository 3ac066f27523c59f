package storage_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"docroom/internal/storage"
)

// Postgres tests need a live database; set TEST_DATABASE_URL to run them.
func postgresStore(t *testing.T) *storage.PostgresStore {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	store, err := storage.NewPostgresStore(context.Background(), url)
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestPostgresStore_Contract(t *testing.T) {
	t.Parallel()

	store := postgresStore(t)

	// Start from a clean slate for the ids the contract uses.
	ctx := context.Background()
	require.NoError(t, store.Delete(ctx, "doc1"))
	require.NoError(t, store.Delete(ctx, "doc2"))

	verifyStore(t, store)
}

package pgstore_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uledger-dev/uledger/internal/store"
	"github.com/uledger-dev/uledger/internal/store/pgstore"
	"github.com/uledger-dev/uledger/internal/store/storetest"
)

// These tests need a disposable database; every table is emptied between
// cases.
func openTestStore(t *testing.T) *pgstore.Store {
	t.Helper()
	url := os.Getenv("ULEDGER_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("ULEDGER_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := pgstore.Open(ctx, url)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Flush(ctx))
	return s
}

func TestStore_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Gateway {
		return openTestStore(t)
	})
}

func TestMigrate_Idempotent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestOpen_EmptyURL(t *testing.T) {
	_, err := pgstore.Open(context.Background(), "")
	require.Error(t, err)
}

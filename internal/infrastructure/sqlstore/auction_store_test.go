package sqlstore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"live-auction/internal/domain"
	"live-auction/internal/infrastructure/storetest"
)

func newSQLiteStore(t *testing.T) *AuctionStore {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "auctions.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store := New(db, SQLite)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestAuctionStore_SQLite(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.AuctionStore {
		return newSQLiteStore(t)
	})
}

func TestAuctionStore_MigrateIsRepeatable(t *testing.T) {
	store := newSQLiteStore(t)
	require.NoError(t, store.Migrate(context.Background()))
}

func TestAuctionStore_DuplicateID(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	auction := storetest.NewTestAuction("100")

	require.NoError(t, store.CreateAuction(ctx, auction))
	require.Error(t, store.CreateAuction(ctx, auction))
}

func TestAuctionStore_AmountsKeepPrecision(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	auction := storetest.NewTestAuction("0.10")
	require.NoError(t, store.CreateAuction(ctx, auction))

	got, err := store.GetAuction(ctx, auction.ID)
	require.NoError(t, err)
	require.Equal(t, "0.1", got.CurrentBid.String())
}

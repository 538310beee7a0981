package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ivalora/gadget-rms/internal/config"
	"github.com/ivalora/gadget-rms/internal/database"
	"github.com/ivalora/gadget-rms/internal/opname"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against an embedded postgres. Downloads the server binary on first
// use, so it only runs when OPNAME_PG_INTEGRATION=1.
func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	if os.Getenv("OPNAME_PG_INTEGRATION") != "1" {
		t.Skip("set OPNAME_PG_INTEGRATION=1 to run postgres integration tests")
	}
	db, err := database.ConnectWith(config.DatabaseConfig{
		Host:     "localhost",
		Username: "postgres",
		Database: "opname_test",
	}, t.TempDir(), 54329)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.AutoMigrate(Models()...))
	return db
}

func TestGormStore_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	st := NewGormStore(db.DB)

	s := sampleSession(t, started, "A", "B", "C")
	require.NoError(t, st.Create(ctx, s))

	_, err := s.Reconcile([]opname.ScanEvent{{IMEI: "A", At: started}, {IMEI: "D", At: started}})
	require.NoError(t, err)
	_, err = s.ResolveItem(s.SnapshotItems[1].ID, string(opname.ActionSoldShopee), "", "SHP-77")
	require.NoError(t, err)
	require.NoError(t, st.Save(ctx, s))
	assert.Equal(t, int64(2), s.Version)

	got, err := st.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Counters(), got.Counters())
	require.Len(t, got.SnapshotItems, 3)
	require.Len(t, got.ScannedItems, 2)
	assert.Equal(t, "A", got.SnapshotItems[0].IMEI)
	assert.Equal(t, opname.SnapshotMatch, got.SnapshotItems[0].ScanResult)
	require.NotNil(t, got.SnapshotItems[1].SoldReferenceID)
	assert.Equal(t, "SHP-77", *got.SnapshotItems[1].SoldReferenceID)
	assert.True(t, s.SnapshotItems[0].SellingPrice.Equal(got.SnapshotItems[0].SellingPrice))
	assert.Equal(t, "D", got.ScannedItems[1].IMEI)

	list, total, err := st.List(ctx, ListFilter{Status: opname.StatusDraft})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, s.ID, list[0].ID)
}

func TestGormStore_ConflictAndLock(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	st := NewGormStore(db.DB)

	s := sampleSession(t, started)
	require.NoError(t, st.Create(ctx, s))

	stale, err := st.Get(ctx, s.ID)
	require.NoError(t, err)

	require.NoError(t, s.Complete(started.Add(time.Minute)))
	require.NoError(t, st.Save(ctx, s))
	assert.ErrorIs(t, st.Save(ctx, stale), ErrConflict)

	require.NoError(t, s.Approve("owner-1", true, started))
	require.NoError(t, st.Save(ctx, s))
	require.NoError(t, s.Lock(started))
	require.NoError(t, st.Save(ctx, s))
	assert.ErrorIs(t, st.Save(ctx, s), ErrLocked)

	_, err = st.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

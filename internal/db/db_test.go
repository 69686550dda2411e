package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/buildtall-systems/orderflow/internal/fsm"
	"github.com/buildtall-systems/orderflow/internal/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "opening test db")

	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(), "migrating test db")
	return db
}

func TestMigrateIsRepeatable(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.Migrate())
}

func TestOpen_AppliesPragmas(t *testing.T) {
	db := setupTestDB(t)

	var mode string
	require.NoError(t, db.QueryRow(`PRAGMA journal_mode;`).Scan(&mode))
	assert.Equal(t, "wal", mode)

	var timeout int
	require.NoError(t, db.QueryRow(`PRAGMA busy_timeout;`).Scan(&timeout))
	assert.Equal(t, 5000, timeout)
	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
}

func TestOpen_BadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing-dir", "orders.db"))
	assert.Error(t, err)
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	createdAt := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	saved, err := db.Save(ctx, &order.Order{CreatedAt: createdAt, State: fsm.StateSubmitted})
	require.NoError(t, err)

	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, int64(1), saved.Version)
	assert.Equal(t, fsm.StateSubmitted, saved.State)

	loaded, err := db.LoadByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, loaded.ID)
	assert.Equal(t, fsm.StateSubmitted, loaded.State)
	assert.Equal(t, int64(1), loaded.Version)
	assert.True(t, createdAt.Equal(loaded.CreatedAt), "created_at = %v, want %v", loaded.CreatedAt, createdAt)
}

func TestSaveKeepsProvidedID(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	saved, err := db.Save(ctx, &order.Order{ID: "order-a", CreatedAt: time.Now(), State: fsm.StateSubmitted})
	require.NoError(t, err)
	assert.Equal(t, "order-a", saved.ID)

	_, err = db.Save(ctx, &order.Order{ID: "order-a", CreatedAt: time.Now(), State: fsm.StateSubmitted})
	assert.ErrorIs(t, err, order.ErrConcurrentModification)
}

func TestLoadByID_NotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.LoadByID(context.Background(), "missing")
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestSave_UpdateBumpsVersion(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	o, err := db.Save(ctx, &order.Order{CreatedAt: time.Now(), State: fsm.StateSubmitted})
	require.NoError(t, err)

	o.State = fsm.StatePaid
	o, err = db.Save(ctx, o)
	require.NoError(t, err)
	assert.Equal(t, int64(2), o.Version)

	loaded, err := db.LoadByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, fsm.StatePaid, loaded.State)
	assert.Equal(t, int64(2), loaded.Version)
}

func TestSave_StaleVersionIsRejected(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	o, err := db.Save(ctx, &order.Order{CreatedAt: time.Now(), State: fsm.StateSubmitted})
	require.NoError(t, err)

	first := *o
	second := *o

	first.State = fsm.StatePaid
	_, err = db.Save(ctx, &first)
	require.NoError(t, err)

	second.State = fsm.StateCancelled
	_, err = db.Save(ctx, &second)
	assert.ErrorIs(t, err, order.ErrConcurrentModification)

	loaded, err := db.LoadByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, fsm.StatePaid, loaded.State, "losing writer must not overwrite")
}

func TestSave_UpdateMissingOrder(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.Save(context.Background(), &order.Order{ID: "ghost", Version: 3, State: fsm.StatePaid})
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestSave_RejectsInvalidState(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.Save(context.Background(), &order.Order{CreatedAt: time.Now(), State: fsm.State("SHIPPED")})
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		o, err := db.Save(ctx, &order.Order{CreatedAt: base.Add(time.Duration(i) * time.Hour), State: fsm.StateSubmitted})
		require.NoError(t, err)
		ids = append(ids, o.ID)
	}

	orders, err := db.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, ids[2], orders[0].ID)
	assert.Equal(t, ids[1], orders[1].ID)

	all, err := db.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

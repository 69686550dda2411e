package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/buildtall-systems/orderflow/internal/fsm"
	"github.com/buildtall-systems/orderflow/internal/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveAssignsIDAndVersion(t *testing.T) {
	ctx := context.Background()
	s := New()

	o, err := s.Save(ctx, &order.Order{CreatedAt: time.Now(), State: fsm.StateSubmitted})
	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, int64(1), o.Version)

	loaded, err := s.LoadByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, *o, *loaded)
}

func TestStore_LoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()

	o, err := s.Save(ctx, &order.Order{CreatedAt: time.Now(), State: fsm.StateSubmitted})
	require.NoError(t, err)

	loaded, err := s.LoadByID(ctx, o.ID)
	require.NoError(t, err)
	loaded.State = fsm.StateCancelled

	again, err := s.LoadByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, fsm.StateSubmitted, again.State)
}

func TestStore_VersionConflict(t *testing.T) {
	ctx := context.Background()
	s := New()

	o, err := s.Save(ctx, &order.Order{CreatedAt: time.Now(), State: fsm.StateSubmitted})
	require.NoError(t, err)

	a, b := *o, *o
	a.State = fsm.StatePaid
	_, err = s.Save(ctx, &a)
	require.NoError(t, err)

	b.State = fsm.StateCancelled
	_, err = s.Save(ctx, &b)
	assert.ErrorIs(t, err, order.ErrConcurrentModification)
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.LoadByID(ctx, "nope")
	assert.ErrorIs(t, err, order.ErrNotFound)

	_, err = s.Save(ctx, &order.Order{ID: "nope", Version: 1, State: fsm.StatePaid})
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestStore_List(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 3; i++ {
		o, err := s.Save(ctx, &order.Order{CreatedAt: base.Add(time.Duration(i) * time.Minute), State: fsm.StateSubmitted})
		require.NoError(t, err)
		ids = append(ids, o.ID)
	}

	got, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ids[2], got[0].ID)
	assert.Equal(t, ids[1], got[1].ID)
}

package db

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/buildtall-systems/orderflow/internal/fsm"
	"github.com/buildtall-systems/orderflow/internal/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return &DB{DB: sqlDB}, mock
}

func TestLoadByID_PropagatesDriverError(t *testing.T) {
	db, mock := setupMockDB(t)
	driverErr := errors.New("disk I/O error")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, created_at, state, version, updated_at FROM orders WHERE id = ?")).
		WithArgs("order-1").
		WillReturnError(driverErr)

	_, err := db.LoadByID(context.Background(), "order-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, driverErr)
	assert.NotErrorIs(t, err, order.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadByID_RejectsCorruptState(t *testing.T) {
	db, mock := setupMockDB(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, created_at, state, version, updated_at FROM orders")).
		WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "state", "version", "updated_at"}).
			AddRow("order-1", now, "LOST", 4, now))

	_, err := db.LoadByID(context.Background(), "order-1")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_PropagatesDriverError(t *testing.T) {
	db, mock := setupMockDB(t)
	driverErr := errors.New("database is locked")

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET state = ?")).
		WithArgs("PAID", sqlmock.AnyArg(), "order-1", int64(1)).
		WillReturnError(driverErr)

	_, err := db.Save(context.Background(), &order.Order{ID: "order-1", State: fsm.StatePaid, Version: 1})
	assert.ErrorIs(t, err, driverErr)
	assert.NotErrorIs(t, err, order.ErrConcurrentModification)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_ZeroRowsMeansConflict(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET state = ?")).
		WithArgs("PAID", sqlmock.AnyArg(), "order-1", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM orders WHERE id = ?)")).
		WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := db.Save(context.Background(), &order.Order{ID: "order-1", State: fsm.StatePaid, Version: 1})
	assert.ErrorIs(t, err, order.ErrConcurrentModification)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_InsertPropagatesDriverError(t *testing.T) {
	db, mock := setupMockDB(t)
	driverErr := errors.New("no space left on device")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).
		WillReturnError(driverErr)

	_, err := db.Save(context.Background(), &order.Order{CreatedAt: time.Now(), State: fsm.StateSubmitted})
	assert.ErrorIs(t, err, driverErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/buildtall-systems/orderflow/internal/fsm"
	"github.com/buildtall-systems/orderflow/internal/order"
	"github.com/google/uuid"
)

const orderColumns = `id, created_at, state, version, updated_at`

// LoadByID returns an order by ID.
func (db *DB) LoadByID(ctx context.Context, id string) (*order.Order, error) {
	row := db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", order.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying order: %w", err)
	}
	return o, nil
}

// Save inserts a new order (Version 0) or updates the state of an existing
// one. The update only applies when the stored version still matches, so a
// writer that rehydrated from a stale row gets ErrConcurrentModification.
func (db *DB) Save(ctx context.Context, o *order.Order) (*order.Order, error) {
	if !o.State.Valid() {
		return nil, fmt.Errorf("saving order: invalid state %q", o.State)
	}

	next := *o
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = time.Now()
	}

	if next.Version == 0 {
		return db.insertOrder(ctx, next)
	}

	result, err := db.ExecContext(ctx, `
		UPDATE orders SET state = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`, string(next.State), next.UpdatedAt.UTC(), next.ID, next.Version)
	if err != nil {
		return nil, fmt.Errorf("updating order: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		var exists bool
		err := db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = ?)`, next.ID).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("checking order: %w", err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: %s", order.ErrNotFound, next.ID)
		}
		return nil, fmt.Errorf("%w: %s changed since version %d", order.ErrConcurrentModification, next.ID, next.Version)
	}

	next.Version++
	return &next, nil
}

func (db *DB) insertOrder(ctx context.Context, o order.Order) (*order.Order, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO orders (id, created_at, state, version, updated_at)
		VALUES (?, ?, ?, 1, ?)
	`, o.ID, o.CreatedAt.UTC(), string(o.State), o.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s already exists", order.ErrConcurrentModification, o.ID)
		}
		return nil, fmt.Errorf("creating order: %w", err)
	}

	o.Version = 1
	return &o, nil
}

// List returns orders, most recent first, limited by the provided count.
func (db *DB) List(ctx context.Context, limit int) ([]order.Order, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := db.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var orders []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating orders: %w", err)
	}
	return orders, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*order.Order, error) {
	var o order.Order
	var state string
	if err := row.Scan(&o.ID, &o.CreatedAt, &state, &o.Version, &o.UpdatedAt); err != nil {
		return nil, err
	}

	st, err := fsm.ParseState(state)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", o.ID, err)
	}
	o.State = st
	return &o, nil
}

// isUniqueViolation checks if the error is a unique constraint violation.
func isUniqueViolation(err error) bool {
	// SQLite unique constraint error contains "UNIQUE constraint failed"
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Package order keeps an order's persisted state and its in-memory state
// machine in step: every transition is rehydrated from the store, applied
// against the transition table and written back before the caller returns.
package order

import (
	"context"
	"errors"
	"time"

	"github.com/buildtall-systems/orderflow/internal/fsm"
)

// ErrNotFound indicates the order does not exist.
var ErrNotFound = errors.New("order not found")

// ErrConcurrentModification indicates a save lost a race with another writer
// for the same order. The whole operation may be retried from scratch.
var ErrConcurrentModification = errors.New("order modified concurrently")

// Order is the persisted lifecycle record.
type Order struct {
	ID        string
	CreatedAt time.Time
	State     fsm.State
	// Version is the optimistic concurrency token. Zero means the order has
	// never been saved.
	Version   int64
	UpdatedAt time.Time
}

// Store is the durable record of orders.
type Store interface {
	// LoadByID returns ErrNotFound when no order has id.
	LoadByID(ctx context.Context, id string) (*Order, error)

	// Save inserts an order with Version 0, assigning an id when empty, and
	// otherwise updates it only if the stored version still equals
	// o.Version, returning ErrConcurrentModification when it does not.
	// The returned order carries the new version.
	Save(ctx context.Context, o *Order) (*Order, error)
}

// Lister is implemented by stores that can enumerate orders.
type Lister interface {
	// List returns orders most recent first.
	List(ctx context.Context, limit int) ([]Order, error)
}

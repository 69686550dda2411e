// Package memstore is an in-process order store with the same optimistic
// versioning as the SQL stores.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/buildtall-systems/orderflow/internal/order"
	"github.com/google/uuid"
)

// Store keeps orders in a map. Each record is read and written atomically.
type Store struct {
	mu     sync.RWMutex
	orders map[string]order.Order
}

// New returns an empty Store.
func New() *Store {
	return &Store{orders: make(map[string]order.Order)}
}

// LoadByID returns a copy of the stored order.
func (s *Store) LoadByID(_ context.Context, id string) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", order.ErrNotFound, id)
	}
	return &o, nil
}

// Save inserts or conditionally updates o.
func (s *Store) Save(_ context.Context, o *order.Order) (*order.Order, error) {
	if !o.State.Valid() {
		return nil, fmt.Errorf("saving order: invalid state %q", o.State)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := *o
	if next.Version == 0 {
		if next.ID == "" {
			next.ID = uuid.NewString()
		}
		if _, exists := s.orders[next.ID]; exists {
			return nil, fmt.Errorf("%w: %s already exists", order.ErrConcurrentModification, next.ID)
		}
		next.Version = 1
		s.orders[next.ID] = next
		return &next, nil
	}

	current, ok := s.orders[next.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", order.ErrNotFound, next.ID)
	}
	if current.Version != next.Version {
		return nil, fmt.Errorf("%w: %s at version %d, saving from %d", order.ErrConcurrentModification, next.ID, current.Version, next.Version)
	}

	next.CreatedAt = current.CreatedAt
	next.Version++
	s.orders[next.ID] = next
	return &next, nil
}

// List returns orders most recent first.
func (s *Store) List(_ context.Context, limit int) ([]order.Order, error) {
	s.mu.RLock()
	orders := make([]order.Order, 0, len(s.orders))
	for _, o := range s.orders {
		orders = append(orders, o)
	}
	s.mu.RUnlock()

	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

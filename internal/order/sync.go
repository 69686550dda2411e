package order

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/buildtall-systems/orderflow/internal/fsm"
)

// Synchronizer keeps a machine instance aligned with the stored order around
// one transition: rehydrate, deliver, persist.
type Synchronizer struct {
	store  Store
	table  *fsm.Table
	logger *slog.Logger
	now    func() time.Time
}

// SyncOption configures a Synchronizer.
type SyncOption func(*Synchronizer)

// WithSyncClock overrides time.Now for UpdatedAt stamps.
func WithSyncClock(now func() time.Time) SyncOption {
	return func(s *Synchronizer) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSynchronizer builds a Synchronizer over store and table.
func NewSynchronizer(store Store, table *fsm.Table, logger *slog.Logger, opts ...SyncOption) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Synchronizer{store: store, table: table, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rehydrate loads the order and returns a fresh machine reset to its stored
// state. A missing order returns ErrNotFound before any machine is built.
func (s *Synchronizer) Rehydrate(ctx context.Context, id string) (*Order, *fsm.Machine, error) {
	o, err := s.store.LoadByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	m := fsm.NewMachine(s.table, o.ID, fsm.WithMachineLogger(s.logger))
	m.ResetTo(o.State)
	return o, m, nil
}

// Deliver sends event to the rehydrated machine.
func Deliver(ctx context.Context, m *fsm.Machine, event fsm.Event, payload fsm.Payload) (fsm.State, error) {
	return m.SendEvent(ctx, event, payload)
}

// Persist writes newState for o, stamping UpdatedAt. The save is
// conditional on o.Version.
func (s *Synchronizer) Persist(ctx context.Context, o *Order, newState fsm.State) (*Order, error) {
	next := *o
	next.State = newState
	next.UpdatedAt = s.now()

	saved, err := s.store.Save(ctx, &next)
	if err != nil {
		return nil, fmt.Errorf("persisting order %s as %s: %w", o.ID, newState, err)
	}

	s.logger.InfoContext(ctx, "order state persisted",
		slog.String("order_id", saved.ID),
		slog.String("from", string(o.State)),
		slog.String("to", string(saved.State)),
		slog.Int64("version", saved.Version),
	)
	return saved, nil
}

// Apply runs the full rehydrate, deliver, persist sequence. Nothing is
// written when the event is rejected.
func (s *Synchronizer) Apply(ctx context.Context, id string, event fsm.Event, payload fsm.Payload) (*Order, error) {
	o, m, err := s.Rehydrate(ctx, id)
	if err != nil {
		return nil, err
	}

	newState, err := Deliver(ctx, m, event, payload)
	if err != nil {
		return nil, err
	}

	return s.Persist(ctx, o, newState)
}

package order

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/buildtall-systems/orderflow/internal/fsm"
)

// Service exposes the order lifecycle operations. Each transition runs the
// Synchronizer sequence against a fresh machine instance.
type Service struct {
	store         Store
	table         *fsm.Table
	sync          *Synchronizer
	logger        *slog.Logger
	now           func() time.Time
	locks         *lockTable
	retryAttempts uint64
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithTable replaces the default transition table.
func WithTable(t *fsm.Table) ServiceOption {
	return func(s *Service) { s.table = t }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides time.Now for UpdatedAt stamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithLocking serializes operations on the same order id within this process.
func WithLocking() ServiceOption {
	return func(s *Service) { s.locks = newLockTable() }
}

// WithRetry re-runs a transition up to attempts more times when it loses a
// race with another writer.
func WithRetry(attempts uint64) ServiceOption {
	return func(s *Service) { s.retryAttempts = attempts }
}

// NewService builds a Service over store. Without WithTable the default
// order table with transition logging is used.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.table == nil {
		s.table = fsm.DefaultTable(fsm.WithTransitionLogging(s.logger))
	}
	s.sync = NewSynchronizer(store, s.table, s.logger, WithSyncClock(s.now))
	return s
}

// Table returns the transition table the service applies.
func (s *Service) Table() *fsm.Table {
	return s.table
}

// Create persists a new order in the table's initial state.
func (s *Service) Create(ctx context.Context, createdAt time.Time) (*Order, error) {
	o, err := s.store.Save(ctx, &Order{
		CreatedAt: createdAt,
		State:     s.table.Initial(),
		UpdatedAt: s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating order: %w", err)
	}

	s.logger.InfoContext(ctx, "order created", slog.String("order_id", o.ID), slog.String("state", string(o.State)))
	return o, nil
}

// Pay applies PAY with the payment confirmation token.
func (s *Service) Pay(ctx context.Context, id, confirmationToken string) (fsm.State, error) {
	return s.transition(ctx, id, fsm.EventPay, fsm.Payload{fsm.PaymentConfirmationKey: confirmationToken})
}

// Fulfill applies FULFILL.
func (s *Service) Fulfill(ctx context.Context, id string) (fsm.State, error) {
	return s.transition(ctx, id, fsm.EventFulfill, nil)
}

// Cancel applies CANCEL.
func (s *Service) Cancel(ctx context.Context, id string) (fsm.State, error) {
	return s.transition(ctx, id, fsm.EventCancel, nil)
}

// Send applies an arbitrary event. Pay, Fulfill and Cancel are the named forms.
func (s *Service) Send(ctx context.Context, id string, event fsm.Event, payload fsm.Payload) (fsm.State, error) {
	return s.transition(ctx, id, event, payload)
}

// GetByID reads the stored order.
func (s *Service) GetByID(ctx context.Context, id string) (*Order, error) {
	return s.store.LoadByID(ctx, id)
}

// AvailableEvents returns the events legal for the order's stored state.
func (s *Service) AvailableEvents(ctx context.Context, id string) ([]fsm.Event, error) {
	_, m, err := s.sync.Rehydrate(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.AvailableEvents(), nil
}

// List returns the most recent orders when the store supports listing.
func (s *Service) List(ctx context.Context, limit int) ([]Order, error) {
	lister, ok := s.store.(Lister)
	if !ok {
		return nil, fmt.Errorf("listing orders: store %T does not support listing", s.store)
	}
	return lister.List(ctx, limit)
}

func (s *Service) transition(ctx context.Context, id string, event fsm.Event, payload fsm.Payload) (fsm.State, error) {
	if s.locks != nil {
		unlock := s.locks.lock(id)
		defer unlock()
	}

	var result *Order
	err := retryConflicts(ctx, s.retryAttempts, func(ctx context.Context) error {
		var err error
		result, err = s.sync.Apply(ctx, id, event, payload)
		return err
	})
	if err != nil {
		s.logger.DebugContext(ctx, "order transition rejected",
			slog.String("order_id", id),
			slog.String("event", string(event)),
			slog.Any("error", err),
		)
		return "", err
	}

	return result.State, nil
}

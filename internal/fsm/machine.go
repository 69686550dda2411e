package fsm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/looplab/fsm"
)

// Machine is the transient state machine bound to one order id. It does not
// own the order record; callers reset it to the persisted state before use.
type Machine struct {
	id     string
	table  *Table
	logger *slog.Logger
	fsm    *fsm.FSM
	mu     sync.Mutex
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithMachineLogger sets the logger used to report hook failures.
func WithMachineLogger(logger *slog.Logger) MachineOption {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMachine builds a fresh machine for id, positioned at the table's initial state.
func NewMachine(table *Table, id string, opts ...MachineOption) *Machine {
	m := &Machine{
		id:     id,
		table:  table,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}

	events := make(fsm.Events, 0, len(table.transitions))
	for _, tr := range table.transitions {
		events = append(events, fsm.EventDesc{
			Name: string(tr.Event),
			Src:  []string{string(tr.Source)},
			Dst:  string(tr.Target),
		})
	}

	m.fsm = fsm.NewFSM(
		string(table.initial),
		events,
		fsm.Callbacks{
			"leave_state": func(ctx context.Context, e *fsm.Event) {
				runHooks(ctx, m.logger, "exit", m.table.onExit[State(e.Src)], m.hookContext(e))
			},
			"enter_state": func(ctx context.Context, e *fsm.Event) {
				runHooks(ctx, m.logger, "enter", m.table.onEnter[State(e.Dst)], m.hookContext(e))
			},
		},
	)
	return m
}

func (m *Machine) hookContext(e *fsm.Event) HookContext {
	hc := HookContext{
		OrderID: m.id,
		Event:   Event(e.Event),
		From:    State(e.Src),
		To:      State(e.Dst),
	}
	if len(e.Args) > 0 {
		if p, ok := e.Args[0].(Payload); ok {
			hc.Payload = p
		}
	}
	return hc
}

// ID returns the order id the machine is bound to.
func (m *Machine) ID() string {
	return m.id
}

// Current returns the machine's current state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State(m.fsm.Current())
}

// ResetTo forces the current state without running hooks.
func (m *Machine) ResetTo(state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fsm.SetState(string(state))
}

// SendEvent applies event to the current state. On success the source's exit
// hooks and the target's entry hooks have run by the time it returns. An
// event not defined for the current state returns *IllegalTransitionError and
// leaves the state unchanged.
func (m *Machine) SendEvent(ctx context.Context, event Event, payload Payload) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	from := State(m.fsm.Current())
	if !m.table.IsLegal(from, event) {
		return "", &IllegalTransitionError{From: from, Event: event}
	}

	if err := m.fsm.Event(ctx, string(event), payload); err != nil {
		var invalidErr fsm.InvalidEventError
		var unknownErr fsm.UnknownEventError
		if errors.As(err, &invalidErr) || errors.As(err, &unknownErr) {
			return "", &IllegalTransitionError{From: from, Event: event}
		}
		return "", fmt.Errorf("sending %s to order %s: %w", event, m.id, err)
	}

	return State(m.fsm.Current()), nil
}

// AvailableEvents returns the events legal from the current state.
func (m *Machine) AvailableEvents() []Event {
	current := m.Current()
	var events []Event
	for _, tr := range m.table.TransitionsFrom(current) {
		events = append(events, tr.Event)
	}
	return events
}

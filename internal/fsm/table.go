package fsm

import (
	"fmt"
	"log/slog"
)

// Transition is one legal (source, event) -> target edge.
type Transition struct {
	Source State
	Event  Event
	Target State
}

type edge struct {
	src State
	ev  Event
}

// Table is the immutable set of legal transitions plus the entry and exit
// hooks registered for each state.
type Table struct {
	initial     State
	transitions []Transition
	index       map[edge]State
	onEnter     map[State][]Hook
	onExit      map[State][]Hook
}

// TableOption registers hooks while a Table is built.
type TableOption func(*Table)

// OnEnter appends a hook run after the machine enters state.
func OnEnter(state State, h Hook) TableOption {
	return func(t *Table) {
		t.onEnter[state] = append(t.onEnter[state], h)
	}
}

// OnExit appends a hook run before the machine leaves state.
func OnExit(state State, h Hook) TableOption {
	return func(t *Table) {
		t.onExit[state] = append(t.onExit[state], h)
	}
}

// WithTransitionLogging logs every transition on entry to its target state.
func WithTransitionLogging(logger *slog.Logger) TableOption {
	return func(t *Table) {
		h := LogTransition(logger)
		for _, s := range allStates {
			t.onEnter[s] = append(t.onEnter[s], h)
		}
	}
}

var defaultTransitions = []Transition{
	{Source: StateSubmitted, Event: EventPay, Target: StatePaid},
	{Source: StatePaid, Event: EventFulfill, Target: StateFulfilled},
	{Source: StateSubmitted, Event: EventCancel, Target: StateCancelled},
	{Source: StatePaid, Event: EventCancel, Target: StateCancelled},
	// A fulfilled order stays cancellable; a cancelled one accepts nothing.
	{Source: StateFulfilled, Event: EventCancel, Target: StateCancelled},
}

// NewTable validates transitions and builds a Table. Each (source, event)
// pair may appear at most once.
func NewTable(initial State, transitions []Transition, opts ...TableOption) (*Table, error) {
	if !initial.Valid() {
		return nil, fmt.Errorf("initial state %q is not defined", initial)
	}

	t := &Table{
		initial:     initial,
		transitions: make([]Transition, 0, len(transitions)),
		index:       make(map[edge]State, len(transitions)),
		onEnter:     make(map[State][]Hook),
		onExit:      make(map[State][]Hook),
	}

	for _, tr := range transitions {
		if !tr.Source.Valid() || !tr.Target.Valid() {
			return nil, fmt.Errorf("transition %s -%s-> %s uses an undefined state", tr.Source, tr.Event, tr.Target)
		}
		if !tr.Event.Valid() {
			return nil, fmt.Errorf("transition %s -%s-> %s uses an undefined event", tr.Source, tr.Event, tr.Target)
		}
		key := edge{tr.Source, tr.Event}
		if existing, ok := t.index[key]; ok {
			return nil, fmt.Errorf("ambiguous transition %s -%s->: both %s and %s", tr.Source, tr.Event, existing, tr.Target)
		}
		t.index[key] = tr.Target
		t.transitions = append(t.transitions, tr)
	}

	for _, opt := range opts {
		opt(t)
	}

	return t, nil
}

// DefaultTable returns the order lifecycle table with the given hooks.
func DefaultTable(opts ...TableOption) *Table {
	t, err := NewTable(StateSubmitted, defaultTransitions, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// Initial returns the state a new order starts in.
func (t *Table) Initial() State {
	return t.initial
}

// Transitions returns a copy of every edge in declaration order.
func (t *Table) Transitions() []Transition {
	return append([]Transition(nil), t.transitions...)
}

// TransitionsFrom returns the edges leaving state, in declaration order.
func (t *Table) TransitionsFrom(state State) []Transition {
	var out []Transition
	for _, tr := range t.transitions {
		if tr.Source == state {
			out = append(out, tr)
		}
	}
	return out
}

// IsLegal reports whether event is defined for state.
func (t *Table) IsLegal(state State, event Event) bool {
	_, ok := t.index[edge{state, event}]
	return ok
}

// Apply returns the target of (state, event) or an *IllegalTransitionError.
func (t *Table) Apply(state State, event Event) (State, error) {
	target, ok := t.index[edge{state, event}]
	if !ok {
		return "", &IllegalTransitionError{From: state, Event: event}
	}
	return target, nil
}

// Package fsm holds the order transition table and the per-order machine
// instance that applies events against it.
package fsm

import "fmt"

// State is a phase of an order's lifecycle. It is persisted as text.
type State string

const (
	StateSubmitted State = "SUBMITTED"
	StatePaid      State = "PAID"
	StateFulfilled State = "FULFILLED"
	StateCancelled State = "CANCELLED"
)

// Event names a requested transition.
type Event string

const (
	EventPay     Event = "PAY"
	EventFulfill Event = "FULFILL"
	EventCancel  Event = "CANCEL"
)

// PaymentConfirmationKey is the payload key carrying the payment token of a PAY event.
const PaymentConfirmationKey = "paymentConfirmationNumber"

// Payload is optional data delivered with an event. Hooks can read it;
// it is never persisted.
type Payload map[string]string

var allStates = []State{StateSubmitted, StatePaid, StateFulfilled, StateCancelled}

var allEvents = []Event{EventPay, EventFulfill, EventCancel}

// States returns every defined state in declaration order.
func States() []State {
	return append([]State(nil), allStates...)
}

// Events returns every defined event in declaration order.
func Events() []Event {
	return append([]Event(nil), allEvents...)
}

// Valid reports whether s is one of the defined states.
func (s State) Valid() bool {
	for _, st := range allStates {
		if s == st {
			return true
		}
	}
	return false
}

// Valid reports whether e is one of the defined events.
func (e Event) Valid() bool {
	for _, ev := range allEvents {
		if e == ev {
			return true
		}
	}
	return false
}

// ParseState converts stored text back into a State.
func ParseState(s string) (State, error) {
	st := State(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown order state %q", s)
	}
	return st, nil
}

// ParseEvent converts an event name into an Event.
func ParseEvent(s string) (Event, error) {
	ev := Event(s)
	if !ev.Valid() {
		return "", fmt.Errorf("unknown order event %q", s)
	}
	return ev, nil
}

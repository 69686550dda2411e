package fsm

import (
	"errors"
	"fmt"
)

// ErrIllegalTransition indicates the event is not defined for the current state.
var ErrIllegalTransition = errors.New("illegal state transition")

// IllegalTransitionError carries the rejected (state, event) pair.
type IllegalTransitionError struct {
	From  State
	Event Event
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("%s: event %s not allowed in state %s", ErrIllegalTransition, e.Event, e.From)
}

// Is makes errors.Is(err, ErrIllegalTransition) hold.
func (e *IllegalTransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}

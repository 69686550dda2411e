package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/buildtall-systems/orderflow/internal/fsm"
	"github.com/buildtall-systems/orderflow/internal/order"
)

// NewOrderCmd creates an order in the initial state.
func NewOrderCmd(ctx context.Context, svc Lifecycle, now time.Time) Result {
	o, err := svc.Create(ctx, now)
	if err != nil {
		return Result{Error: fmt.Errorf("creating order: %w", err)}
	}
	return Result{Message: fmt.Sprintf("Order %s created (%s).\nPay with: pay %s <confirmation>", o.ID, o.State, o.ID)}
}

// PayCmd records a payment confirmation against an order.
// Args: [order_id, confirmation]
func PayCmd(ctx context.Context, svc Lifecycle, args []string) Result {
	if len(args) < 2 {
		return Result{Error: errors.New("usage: pay <order_id> <confirmation>")}
	}

	id := args[0]
	state, err := svc.Pay(ctx, id, args[1])
	if err != nil {
		return Result{Error: describe(id, fsm.EventPay, err)}
	}
	return Result{Message: fmt.Sprintf("Order %s is now %s.", id, state)}
}

// CancelCmd cancels an order that has not been cancelled yet.
// Args: [order_id]
func CancelCmd(ctx context.Context, svc Lifecycle, args []string) Result {
	if len(args) < 1 {
		return Result{Error: errors.New("usage: cancel <order_id>")}
	}

	id := args[0]
	state, err := svc.Cancel(ctx, id)
	if err != nil {
		return Result{Error: describe(id, fsm.EventCancel, err)}
	}
	return Result{Message: fmt.Sprintf("Order %s is now %s.", id, state)}
}

// StatusCmd shows an order's stored state and the events it still accepts.
// Args: [order_id]
func StatusCmd(ctx context.Context, svc Lifecycle, args []string) Result {
	if len(args) < 1 {
		return Result{Error: errors.New("usage: status <order_id>")}
	}

	id := args[0]
	o, err := svc.GetByID(ctx, id)
	if err != nil {
		return Result{Error: describe(id, "", err)}
	}

	events, err := svc.AvailableEvents(ctx, id)
	if err != nil {
		return Result{Error: describe(id, "", err)}
	}

	next := "none"
	if len(events) > 0 {
		names := make([]string, len(events))
		for i, ev := range events {
			names[i] = strings.ToLower(string(ev))
		}
		next = strings.Join(names, ", ")
	}

	return Result{Message: fmt.Sprintf("Order %s: %s (created %s)\nNext: %s",
		o.ID, o.State, o.CreatedAt.UTC().Format(time.RFC3339), next)}
}

// HelpCmd returns available commands based on user role.
func HelpCmd(isAdmin bool) Result {
	msg := `Available commands:
• new - Place a new order
• pay <order_id> <confirmation> - Record payment for an order
• cancel <order_id> - Cancel an order
• status <order_id> - Show order state
• help - Show this message`

	if isAdmin {
		msg += `

Admin commands:
• fulfill <order_id> - Fulfill a paid order
• orders [limit] - List recent orders`
	}

	return Result{Message: msg}
}

// describe turns lifecycle errors into replies a sender can act on.
func describe(id string, event fsm.Event, err error) error {
	var illegal *fsm.IllegalTransitionError
	switch {
	case errors.Is(err, order.ErrNotFound):
		return fmt.Errorf("order %s not found", id)
	case errors.As(err, &illegal):
		return fmt.Errorf("order %s is %s and cannot accept %s", id, illegal.From, strings.ToLower(string(event)))
	case errors.Is(err, order.ErrConcurrentModification):
		return fmt.Errorf("order %s changed while processing, try again", id)
	default:
		return fmt.Errorf("order %s: %w", id, err)
	}
}

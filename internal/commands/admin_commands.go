package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/buildtall-systems/orderflow/internal/fsm"
)

const defaultOrdersLimit = 10

// FulfillCmd fulfills a paid order.
// Args: [order_id]
func FulfillCmd(ctx context.Context, svc Lifecycle, args []string) Result {
	if len(args) < 1 {
		return Result{Error: errors.New("usage: fulfill <order_id>")}
	}

	id := args[0]
	state, err := svc.Fulfill(ctx, id)
	if err != nil {
		return Result{Error: describe(id, fsm.EventFulfill, err)}
	}
	return Result{Message: fmt.Sprintf("Order %s is now %s.", id, state)}
}

// OrdersCmd lists recent orders, newest first.
// Args: [limit]
func OrdersCmd(ctx context.Context, svc Lifecycle, args []string) Result {
	limit := defaultOrdersLimit
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return Result{Error: errors.New("limit must be a positive number")}
		}
		limit = n
	}

	orders, err := svc.List(ctx, limit)
	if err != nil {
		return Result{Error: fmt.Errorf("listing orders: %w", err)}
	}

	if len(orders) == 0 {
		return Result{Message: "No orders."}
	}

	msg := fmt.Sprintf("%d recent orders:\n", len(orders))
	for _, o := range orders {
		msg += fmt.Sprintf("• %s %s %s\n", o.ID, o.State, o.CreatedAt.UTC().Format(time.DateTime))
	}
	return Result{Message: msg}
}

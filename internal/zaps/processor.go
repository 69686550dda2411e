package zaps

import (
	"context"
	"errors"
	"fmt"

	"github.com/buildtall-systems/orderflow/internal/fsm"
	"github.com/buildtall-systems/orderflow/internal/order"
)

// Payer applies a payment confirmation to an order.
type Payer interface {
	Pay(ctx context.Context, id, confirmationToken string) (fsm.State, error)
}

// ProcessResult contains the outcome of processing a zap.
type ProcessResult struct {
	OrderID    string
	Applied    bool      // Whether the zap moved the order to PAID
	State      fsm.State // Order state after processing, empty if unknown
	AmountSats int64
	Message    string // Human-readable result message
}

// ErrNoOrder indicates the zap request did not name an order.
var ErrNoOrder = errors.New("zap does not reference an order")

// ProcessZap pays the order named by a validated zap, using the receipt event
// ID as the payment confirmation. Zaps for orders that can no longer be paid
// are reported, not retried.
func ProcessZap(ctx context.Context, payer Payer, zap *ValidatedZap) (*ProcessResult, error) {
	if zap.OrderID == "" {
		return nil, ErrNoOrder
	}

	result := &ProcessResult{OrderID: zap.OrderID, AmountSats: zap.AmountSats}

	state, err := payer.Pay(ctx, zap.OrderID, zap.ZapEventID)
	var illegal *fsm.IllegalTransitionError
	switch {
	case err == nil:
		result.Applied = true
		result.State = state
		result.Message = fmt.Sprintf("Received %d sats from %s - order %s is now %s", zap.AmountSats, zap.SenderNpub, zap.OrderID, state)
		return result, nil

	case errors.As(err, &illegal):
		result.State = illegal.From
		result.Message = fmt.Sprintf("Zap of %d sats from %s for order %s not applied: order is %s", zap.AmountSats, zap.SenderNpub, zap.OrderID, illegal.From)
		return result, nil

	case errors.Is(err, order.ErrNotFound):
		result.Message = fmt.Sprintf("Zap of %d sats from %s names unknown order %s", zap.AmountSats, zap.SenderNpub, zap.OrderID)
		return result, nil

	default:
		return nil, fmt.Errorf("paying order %s: %w", zap.OrderID, err)
	}
}

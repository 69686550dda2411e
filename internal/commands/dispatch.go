package commands

import (
	"context"
	"time"

	"github.com/buildtall-systems/orderflow/internal/fsm"
	"github.com/buildtall-systems/orderflow/internal/order"
)

// Lifecycle is the subset of order.Service the commands drive.
type Lifecycle interface {
	Create(ctx context.Context, createdAt time.Time) (*order.Order, error)
	Pay(ctx context.Context, id, confirmationToken string) (fsm.State, error)
	Fulfill(ctx context.Context, id string) (fsm.State, error)
	Cancel(ctx context.Context, id string) (fsm.State, error)
	GetByID(ctx context.Context, id string) (*order.Order, error)
	AvailableEvents(ctx context.Context, id string) ([]fsm.Event, error)
	List(ctx context.Context, limit int) ([]order.Order, error)
}

// ExecuteConfig holds configuration needed for command execution.
type ExecuteConfig struct {
	Admins []string
	Now    func() time.Time
}

// Result holds the response from a command execution.
type Result struct {
	Message string
	Error   error
}

// Execute runs the command and returns a result.
// senderNpub is the sender's public key in npub format.
func Execute(ctx context.Context, svc Lifecycle, cmd *Command, senderNpub string, cfg ExecuteConfig) Result {
	isAdmin := IsAdmin(senderNpub, cfg.Admins)
	if err := CanExecute(cmd, senderNpub, cfg.Admins); err != nil {
		return Result{Error: err}
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	switch cmd.Name {
	// Customer commands
	case CmdNew:
		return NewOrderCmd(ctx, svc, now())

	case CmdPay:
		return PayCmd(ctx, svc, cmd.Args)

	case CmdCancel:
		return CancelCmd(ctx, svc, cmd.Args)

	case CmdStatus:
		return StatusCmd(ctx, svc, cmd.Args)

	case CmdHelp:
		return HelpCmd(isAdmin)

	// Admin commands
	case CmdFulfill:
		return FulfillCmd(ctx, svc, cmd.Args)

	case CmdOrders:
		return OrdersCmd(ctx, svc, cmd.Args)

	default:
		return HelpCmd(isAdmin)
	}
}

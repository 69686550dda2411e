package fsm

import (
	"context"
	"fmt"
	"log/slog"
)

// HookContext describes the transition a hook is observing.
type HookContext struct {
	OrderID string
	Event   Event
	From    State
	To      State
	Payload Payload
}

// Hook observes a state being entered or left. Hooks must not persist
// anything; a returned error is logged and the transition still completes.
type Hook func(ctx context.Context, hc HookContext) error

// LogTransition returns a hook that writes one structured record per transition.
// Hooks run before the new state is persisted, so the record reports an
// accepted transition; a save that later loses a version race still leaves it
// in the log. The persisted outcome is logged separately as "order state persisted".
func LogTransition(logger *slog.Logger) Hook {
	return func(ctx context.Context, hc HookContext) error {
		logger.InfoContext(ctx, "order state changed",
			slog.String("order_id", hc.OrderID),
			slog.String("event", string(hc.Event)),
			slog.String("from", string(hc.From)),
			slog.String("to", string(hc.To)),
		)
		return nil
	}
}

// runHooks invokes hooks in registration order. A failing or panicking hook
// is reported and the remaining hooks still run.
func runHooks(ctx context.Context, logger *slog.Logger, phase string, hooks []Hook, hc HookContext) {
	for i, h := range hooks {
		if err := callHook(ctx, h, hc); err != nil {
			logger.WarnContext(ctx, "order hook failed",
				slog.String("phase", phase),
				slog.Int("hook", i),
				slog.String("order_id", hc.OrderID),
				slog.String("event", string(hc.Event)),
				slog.Any("error", err),
			)
		}
	}
}

func callHook(ctx context.Context, h Hook, hc HookContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook panic: %v", r)
		}
	}()
	return h(ctx, hc)
}

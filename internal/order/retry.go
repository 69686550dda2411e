package order

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

const conflictRetryBase = 10 * time.Millisecond

// retryConflicts runs fn and re-runs it up to attempts more times while it
// fails with ErrConcurrentModification. Any other error stops immediately.
func retryConflicts(ctx context.Context, attempts uint64, fn func(context.Context) error) error {
	if attempts == 0 {
		return fn(ctx)
	}

	b := retry.NewExponential(conflictRetryBase)
	b = retry.WithJitterPercent(20, b)
	b = retry.WithMaxRetries(attempts, b)

	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if errors.Is(err, ErrConcurrentModification) {
			return retry.RetryableError(err)
		}
		return err
	})
}

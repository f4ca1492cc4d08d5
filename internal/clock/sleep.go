// Package clock provides helpers for time-related operations.
package clock

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// SleepWithContext waits for the duration on clk or returns early if the context is canceled.
func SleepWithContext(ctx context.Context, clk clockwork.Clock, d time.Duration) error {
	timer := clk.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}

// Every runs fn once per interval until ctx is done. An error from fn is
// passed to onError and the loop continues.
func Every(ctx context.Context, clk clockwork.Clock, interval time.Duration, fn func(context.Context) error, onError func(error)) error {
	for {
		if err := fn(ctx); err != nil && onError != nil {
			onError(err)
		}
		if err := SleepWithContext(ctx, clk, interval); err != nil {
			return err
		}
	}
}

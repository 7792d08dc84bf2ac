// Package retry provides the bounded polling used by every wait in the
// form driver. No wait blocks longer than its timeout.
package retry

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned by Until when cond never held within the timeout.
var ErrTimeout = errors.New("condition not met before timeout")

// Condition is polled by Until. A non-nil error is not fatal: it is kept as
// the last error and polling continues.
type Condition func(ctx context.Context) (bool, error)

// Result describes how a polling run ended.
type Result struct {
	Met      bool
	Attempts int
	Elapsed  time.Duration
	// LastErr is the most recent error returned by the condition, if any.
	LastErr error
}

// Until polls cond every interval until it returns true, the timeout elapses
// or ctx is done. cond is always evaluated at least once. The returned error
// is nil when the condition was met, ctx.Err() on cancellation and
// ErrTimeout otherwise.
func Until(ctx context.Context, interval, timeout time.Duration, cond Condition) (Result, error) {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	start := time.Now()
	deadline := start.Add(timeout)

	var res Result
	for {
		res.Attempts++
		ok, err := cond(ctx)
		if err != nil {
			res.LastErr = err
		}
		if ok {
			res.Met = true
			res.Elapsed = time.Since(start)
			return res, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			res.Elapsed = time.Since(start)
			return res, ErrTimeout
		}
		wait := interval
		if remaining < wait {
			wait = remaining
		}
		if err := Settle(ctx, wait); err != nil {
			res.Elapsed = time.Since(start)
			return res, err
		}
	}
}

// Settle waits d or until ctx is done.
func Settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

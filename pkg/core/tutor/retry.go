package tutor

import (
	"context"
	"errors"
	"time"
)

// BackoffPolicy bounds the retry loop around the vendor call: a fixed attempt
// budget with the delay multiplied by Factor after each failure.
type BackoffPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Factor      float64
}

// DefaultBackoff is the production retry policy for transient vendor
// failures.
var DefaultBackoff = BackoffPolicy{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
	Factor:      2,
}

// sleepFunc suspends for d or until ctx is done. Injected so the loop is
// unit-testable without wall-clock delays.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryable reports whether err is worth another attempt. Typed errors decide
// for themselves; anything untyped is assumed to be a transport-level failure
// and retried.
func retryable(err error) bool {
	var r interface{ IsRetryable() bool }
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	return true
}

// withRetry runs fn under the policy. fn's last error is returned once the
// attempt budget is exhausted or a non-retryable error appears.
func withRetry(ctx context.Context, policy BackoffPolicy, sleep sleepFunc, fn func(ctx context.Context) (string, error)) (string, error) {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.Factor <= 1 {
		policy.Factor = 2
	}
	if sleep == nil {
		sleep = sleepContext
	}

	delay := policy.BaseDelay
	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, delay); err != nil {
				return "", err
			}
			delay = time.Duration(float64(delay) * policy.Factor)
		}

		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if ctx.Err() != nil || !retryable(err) {
			break
		}
	}
	return "", lastErr
}

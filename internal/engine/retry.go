package engine

import (
	"context"
	"time"
)

// RetryPolicy retries an action a bounded number of times with a constant
// delay. Total attempts are MaxRetries+1.
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration

	// OnRetry, when set, is called before each wait with the failed attempt
	// number (1-based) and its error.
	OnRetry func(attempt int, err error)
}

// Do runs action until it succeeds or the attempts are exhausted. It returns
// the number of attempts made and the last error. Cancelling ctx aborts the
// wait between attempts.
func (p RetryPolicy) Do(ctx context.Context, action func(context.Context) error) (int, error) {
	attempts := 0
	for {
		attempts++
		err := action(ctx)
		if err == nil {
			return attempts, nil
		}
		if attempts > p.MaxRetries {
			return attempts, err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempts, err)
		}

		timer := time.NewTimer(p.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempts, err
		case <-timer.C:
		}
	}
}

// Retry runs action with maxRetries retries spaced by delay.
func Retry(ctx context.Context, maxRetries int, delay time.Duration, action func(context.Context) error) error {
	_, err := RetryPolicy{MaxRetries: maxRetries, Delay: delay}.Do(ctx, action)
	return err
}

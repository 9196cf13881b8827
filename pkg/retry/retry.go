// Package retry implements a small bounded retry state machine:
// Attempt -> Success | Retry(n) -> Exhausted.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned when every attempt has failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy bounds retries by attempt count with a fixed delay between attempts.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultPolicy returns the policy used for collaborator API calls.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Delay: 2 * time.Second}
}

// Do runs op until it succeeds, the context is cancelled, or MaxAttempts
// is reached. The last error is wrapped under ErrExhausted.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == attempts {
			break
		}

		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("%w after %d attempts: %v", ErrExhausted, attempts, lastErr)
}

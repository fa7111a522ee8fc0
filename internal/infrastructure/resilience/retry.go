package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// RetryPolicy bounds how often a failed operation is re-attempted.
type RetryPolicy struct {
	// MaxAttempts includes the first call; 2 means "retry once".
	MaxAttempts int
	// Backoff is the wait between attempts; zero retries immediately.
	Backoff time.Duration
	// OnRetry observes each failed attempt that will be retried.
	OnRetry func(attempt int, err error)
	// Clock drives the backoff wait; defaults to the real clock.
	Clock clockwork.Clock
}

// RetryOnce is the policy used for persistence writes.
func RetryOnce() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2}
}

// Retry runs op until it succeeds, the attempts are exhausted or ctx ends.
// Breaker rejections are returned immediately since retrying them is pointless.
func Retry(ctx context.Context, p RetryPolicy, op func() error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if err == ErrCircuitOpen || err == ErrTooManyRequests {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if p.Backoff > 0 {
			select {
			case <-clock.After(p.Backoff):
			case <-ctx.Done():
				return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
			}
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", p.MaxAttempts, err)
}

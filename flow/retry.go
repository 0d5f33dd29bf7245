package flow

import (
	"context"
	"math"
	"time"
)

// RetryStrategy returns how long to wait before the next executor attempt.
// The attempt index starts at 0 and increments after each failure.
type RetryStrategy interface {
	SleepDuration(attempt int, err error) time.Duration
}

// NoDelayStrategy retries immediately.
type NoDelayStrategy struct{}

func (NoDelayStrategy) SleepDuration(int, error) time.Duration { return 0 }

// ExponentialBackoffStrategy grows the delay by Factor on every attempt,
// capped at Max when Max is positive.
//
//	WithRetryPolicy(RetryPolicy{
//	    MaxRetries: 3,
//	    Strategy:   ExponentialBackoffStrategy{Base: 100 * time.Millisecond, Factor: 2, Max: 2 * time.Second},
//	})
type ExponentialBackoffStrategy struct {
	Base   time.Duration
	Factor float64
	Max    time.Duration
}

func (e ExponentialBackoffStrategy) SleepDuration(attempt int, _ error) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := time.Duration(float64(e.Base) * math.Pow(e.Factor, float64(attempt)))
	if e.Max > 0 && delay > e.Max {
		return e.Max
	}
	return delay
}

// RetryPolicy controls how the dispatcher runs executors. The zero value runs
// an executor once with no timeout.
type RetryPolicy struct {
	MaxRetries int
	// Timeout bounds each attempt. Zero means no timeout.
	Timeout  time.Duration
	Strategy RetryStrategy
}

// run calls fn until it succeeds, the retries are exhausted or ctx is done.
// onRetry is called with the failed attempt index before sleeping.
func (p RetryPolicy) run(ctx context.Context, fn func(context.Context) error, onRetry func(int, error)) error {
	strategy := p.Strategy
	if strategy == nil {
		strategy = NoDelayStrategy{}
	}
	var err error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		err = p.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if attempt == p.MaxRetries {
			break
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		if delay := strategy.SleepDuration(attempt, err); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}

func (p RetryPolicy) attempt(ctx context.Context, fn func(context.Context) error) error {
	if p.Timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	return fn(ctx)
}

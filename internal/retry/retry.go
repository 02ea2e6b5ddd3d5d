// internal/retry/retry.go
// Package retry models retries as explicit policy data consumed by a generic
// helper, instead of scattering try/except style control flow per call site.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy is a bounded-attempt retry schedule.
type Policy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultPolicy suits short network calls: three attempts with a fast
// exponential schedule.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		MaxElapsedTime:  2 * time.Minute,
	}
}

// Permanent marks an error as non-retryable; Do stops immediately and returns
// the wrapped error.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op under the policy until it succeeds, the attempt budget is spent,
// or ctx is cancelled. The last error is returned on exhaustion.
func Do(ctx context.Context, p Policy, op func() error) error {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = p.MaxElapsedTime
	b.Reset()

	var schedule backoff.BackOff = backoff.WithContext(b, ctx)
	if p.MaxAttempts > 0 {
		schedule = backoff.WithMaxRetries(schedule, uint64(p.MaxAttempts-1))
	}

	return backoff.Retry(op, schedule)
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, p Policy, op func() (T, error)) (T, error) {
	var out T
	err := Do(ctx, p, func() error {
		v, err := op()
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

package video

import (
	"context"
	"errors"
	"time"
)

const (
	DefaultMaxAttempts  = 30
	DefaultPollInterval = 2 * time.Second
)

// ErrAttemptsExhausted is returned by RetryPolicy.Run when no attempt succeeded.
var ErrAttemptsExhausted = errors.New("video: poll attempts exhausted")

// RetryPolicy bounds polling: a fixed attempt budget with a fixed delay between attempts.
type RetryPolicy struct {
	MaxAttempts int
	Interval    time.Duration
}

// DefaultRetryPolicy allows about a minute of processing.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, Interval: DefaultPollInterval}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Interval < 0 {
		p.Interval = 0
	}
	return p
}

// Run calls fn until it reports done, returns an error, the budget runs out or
// ctx is cancelled. The delay only runs between attempts.
func (p RetryPolicy) Run(ctx context.Context, fn func(ctx context.Context, attempt int) (bool, error)) error {
	p = p.normalized()
	timer := time.NewTimer(p.Interval)
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		done, err := fn(ctx, attempt)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if attempt >= p.MaxAttempts {
			return ErrAttemptsExhausted
		}
		timer.Reset(p.Interval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

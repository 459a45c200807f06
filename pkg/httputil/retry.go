package httputil

import (
	"context"
	"errors"
	"time"

	"github.com/cenk/backoff"
)

// RetryableError wraps an error to indicate it should trigger a retry.
// Wrap transient failures (network timeouts, 5xx and 429 responses) with
// this type so that [Retry] knows to attempt the operation again.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable marks err as transient. A nil error stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err, or anything it wraps, is a [RetryableError].
func IsRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}

// RetryPolicy describes an exponential backoff schedule.
//
// The wait before retry n is InitialInterval*Multiplier^(n-1), capped at
// MaxInterval and randomized by ±RandomizationFactor. MaxElapsed bounds the
// total time spent retrying and MaxAttempts bounds the number of calls; a
// zero value leaves that dimension unbounded.
type RetryPolicy struct {
	InitialInterval     time.Duration
	Multiplier          float64
	MaxInterval         time.Duration
	RandomizationFactor float64
	MaxElapsed          time.Duration
	MaxAttempts         int
}

// DefaultRetryPolicy starts at 500ms, doubles up to 30s between attempts and
// gives up after two minutes.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval:     500 * time.Millisecond,
		Multiplier:          2.0,
		MaxInterval:         30 * time.Second,
		RandomizationFactor: 0.1,
		MaxElapsed:          2 * time.Minute,
	}
}

// lastBackOff remembers the most recent wait its BackOff proposed.
type lastBackOff struct {
	backoff.BackOff
	next time.Duration
}

func (b *lastBackOff) NextBackOff() time.Duration {
	b.next = b.BackOff.NextBackOff()
	return b.next
}

func (p RetryPolicy) backOff(ctx context.Context) (backoff.BackOff, *lastBackOff) {
	exp := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		exp.InitialInterval = p.InitialInterval
	}
	if p.Multiplier > 0 {
		exp.Multiplier = p.Multiplier
	}
	if p.MaxInterval > 0 {
		exp.MaxInterval = p.MaxInterval
	}
	exp.RandomizationFactor = p.RandomizationFactor
	exp.MaxElapsedTime = p.MaxElapsed
	exp.Reset()

	var b backoff.BackOff = exp
	if p.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1))
	}
	last := &lastBackOff{BackOff: b, next: backoff.Stop}
	return backoff.WithContext(last, ctx), last
}

// Retry calls fn until it succeeds, returns an error that is not a
// [RetryableError], or the policy is exhausted. notify, if non-nil, is
// called before each wait with the failed attempt's error.
//
// On exhaustion the last error is returned. If ctx is done, ctx.Err() is
// returned instead, and context.DeadlineExceeded is returned when the ctx
// deadline falls before the next wait.
func Retry(ctx context.Context, policy RetryPolicy, fn func() error, notify func(err error, wait time.Duration)) error {
	op := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		err := fn()
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	b, last := policy.backOff(ctx)
	err := backoff.RetryNotify(op, b, backoff.Notify(notify))
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	// WithContext stops early when the deadline would pass during the wait.
	if deadline, ok := ctx.Deadline(); ok && IsRetryable(err) &&
		last.next != backoff.Stop && time.Until(deadline) < last.next {
		return context.DeadlineExceeded
	}
	return err
}

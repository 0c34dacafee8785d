// Package resilience retries result-returning operations that fail transiently.
package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/goliatone/go-readthrough/result"
)

// Policy bounds a retry loop.
type Policy struct {
	// MaxAttempts counts the first call, so 5 means one call and four retries.
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// DefaultPolicy makes up to four retries starting one millisecond apart.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
	}
}

func (p Policy) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.MaxAttempts, validation.Required, validation.Min(1)),
		validation.Field(&p.InitialDelay, validation.Required, validation.Min(time.Duration(1))),
		validation.Field(&p.MaxDelay, validation.Min(p.InitialDelay)),
	)
}

// Logger is told about every failed attempt that will be retried.
type Logger interface {
	Warn(msg string, keysAndValues ...any)
}

type Option func(*retrier)

func WithLogger(l Logger) Option {
	return func(r *retrier) {
		r.logger = l
	}
}

type retrier struct {
	logger Logger
}

// Retry calls fn until it succeeds, fails with anything other than Unexpected
// errors, or the policy is exhausted. The last result is returned as is.
//
// A context cancelled between attempts stops the loop; the failure of the last
// attempt is returned.
func Retry[T any](ctx context.Context, policy Policy, fn func(context.Context) result.Result[T], opts ...Option) result.Result[T] {
	var r retrier
	for _, opt := range opts {
		opt(&r)
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = policy.InitialDelay
	if policy.MaxDelay > 0 {
		expBackoff.MaxInterval = policy.MaxDelay
	}

	var (
		last    result.Result[T]
		attempt int
	)
	operation := func() (struct{}, error) {
		attempt++
		last = fn(ctx)
		if last.IsSuccess() {
			return struct{}{}, nil
		}
		if !Transient(last.Errors()) {
			return struct{}{}, backoff.Permanent(last.Err())
		}
		return struct{}{}, last.Err()
	}

	retryOpts := []backoff.RetryOption{
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(uint(max(policy.MaxAttempts, 1))),
	}
	if r.logger != nil {
		retryOpts = append(retryOpts, backoff.WithNotify(func(err error, delay time.Duration) {
			r.logger.Warn("resilience: attempt failed, retrying", "attempt", attempt, "delay", delay, "error", err)
		}))
	}

	_, err := backoff.Retry(ctx, operation, retryOpts...)
	if attempt == 0 && err != nil {
		return result.Err[T](result.Unexpected("retry.cancelled", err.Error()))
	}
	return last
}

// RetryVoid is Retry for operations without a value.
func RetryVoid(ctx context.Context, policy Policy, fn func(context.Context) result.Void, opts ...Option) result.Void {
	res := Retry(ctx, policy, func(ctx context.Context) result.Result[struct{}] {
		v := fn(ctx)
		if v.IsSuccess() {
			return result.Ok(struct{}{})
		}
		return result.Errs[struct{}](v.Errors()...)
	}, opts...)
	return result.Drop(res)
}

// Transient reports whether every error is Unexpected. Validation, NotFound,
// Conflict and Unauthorized failures are deterministic and never retried.
func Transient(errs []result.Error) bool {
	if len(errs) == 0 {
		return false
	}
	for _, e := range errs {
		if e.Kind != result.KindUnexpected {
			return false
		}
	}
	return true
}

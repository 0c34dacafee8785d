// Package result carries success or failure across layer boundaries without
// panicking or leaking raw errors into API responses.
//
// A Result holds either a value or a non-empty, ordered list of Error values.
// Consumers unwrap it with Match; pipelines compose with Map and Then, both of
// which short-circuit on failure and carry the original errors forward untouched.
//
//	r := result.Then(loadBook(ctx, id), func(b Book) result.Result[BookModel] {
//		return result.Ok(b.ToModel())
//	})
//	status := result.Match(r, onOK, onFailure)
package result

import "go.uber.org/multierr"

var errUninitialized = Unexpected("result.uninitialized", "result was not constructed with Ok or Err")

// Result is the outcome of an operation producing a T.
// The zero value is treated as a failure carrying a single Unexpected error.
type Result[T any] struct {
	value T
	errs  []Error
	ok    bool
}

// Ok wraps value in a successful Result.
func Ok[T any](value T) Result[T] {
	return Result[T]{value: value, ok: true}
}

// Err wraps a single error in a failed Result.
func Err[T any](err Error) Result[T] {
	return Result[T]{errs: []Error{err}}
}

// Errs wraps one or more errors in a failed Result. It panics when errs is empty
// because a failure without errors breaks the Result invariant.
func Errs[T any](errs ...Error) Result[T] {
	if len(errs) == 0 {
		panic("result: Errs called without errors")
	}
	return Result[T]{errs: append([]Error(nil), errs...)}
}

func (r Result[T]) IsSuccess() bool { return r.ok }

func (r Result[T]) IsFailure() bool { return !r.ok }

// Value returns the wrapped value. Calling it on a failure panics.
func (r Result[T]) Value() T {
	if !r.ok {
		panic("result: Value called on a failed result")
	}
	return r.value
}

// Errors returns a copy of the failure's errors. Calling it on a success panics.
func (r Result[T]) Errors() []Error {
	if r.ok {
		panic("result: Errors called on a successful result")
	}
	return failureErrors(r.errs)
}

// FirstError returns the first error of a failure.
func (r Result[T]) FirstError() Error {
	return r.Errors()[0]
}

// Err returns nil for a success, otherwise all errors combined into one error value.
func (r Result[T]) Err() error {
	if r.ok {
		return nil
	}
	return combine(failureErrors(r.errs))
}

// Match consumes r by calling exactly one of the two functions.
func Match[T, R any](r Result[T], onSuccess func(T) R, onFailure func([]Error) R) R {
	if r.ok {
		return onSuccess(r.value)
	}
	return onFailure(failureErrors(r.errs))
}

// Map transforms the value of a success. On failure fn is not called and the
// original errors are carried into the new Result.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	if !r.ok {
		return Result[U]{errs: failureErrors(r.errs)}
	}
	return Ok(fn(r.value))
}

// Then chains a fallible step. On failure next is not called.
func Then[T, U any](r Result[T], next func(T) Result[U]) Result[U] {
	if !r.ok {
		return Result[U]{errs: failureErrors(r.errs)}
	}
	return next(r.value)
}

func failureErrors(errs []Error) []Error {
	if len(errs) == 0 {
		return []Error{errUninitialized}
	}
	return append([]Error(nil), errs...)
}

func combine(errs []Error) error {
	out := make([]error, len(errs))
	for i, e := range errs {
		out[i] = e
	}
	return multierr.Combine(out...)
}

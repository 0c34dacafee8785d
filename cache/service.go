package cache

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidResultType is returned by GetOrFetch when the cached value does not
// have the type the caller asked for.
var ErrInvalidResultType = errors.New("cache: cached value has unexpected type")

// KeySerializer builds a cache key from a method name + arbitrary args.
// It is responsible for producing stable keys across calls.
type KeySerializer interface {
	SerializeKey(method string, args ...any) string
}

// FetchFn loads a value from the source of truth on a cache miss.
type FetchFn[T any] func(ctx context.Context) (T, error)

// Service is a read-through cache for values of type T.
//
// GetOrFetch returns the live entry for key or runs fetchFn to populate it.
// Concurrent callers missing on the same key share a single fetchFn execution.
// A failed fetch is returned to every waiter and nothing is stored.
type Service[T any] interface {
	GetOrFetch(ctx context.Context, key string, fetchFn func(ctx context.Context) (T, error)) (T, error)
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	InvalidateKeys(ctx context.Context, keys []string) error
}

// CacheService stores values of any type. Repository decorators share one
// instance across entity types and recover the static type with GetOrFetch.
type CacheService = Service[any]

// GetOrFetch is a type-safe wrapper over a CacheService.
func GetOrFetch[T any](ctx context.Context, service CacheService, key string, fetchFn FetchFn[T]) (T, error) {
	var zero T

	value, err := service.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		return fetchFn(ctx)
	})
	if err != nil {
		return zero, err
	}

	// a nil interface value is a legitimate cached zero for interface and pointer T
	if value == nil {
		return zero, nil
	}

	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("%w: key %q holds %T", ErrInvalidResultType, key, value)
	}
	return typed, nil
}

package cacheinfra

import (
	"context"
	"reflect"
	"strings"

	"github.com/viccon/sturdyc"
)

// PrefixDeleter is implemented by distributed storages that can drop every key
// under a prefix.
type PrefixDeleter interface {
	DeletePrefix(ctx context.Context, prefix string) error
}

// Option customises a SturdycService.
type Option func(*options)

type options struct {
	storage sturdyc.DistributedStorageWithDeletions
}

// WithDistributedStorage adds a shared second tier behind the in-process cache.
func WithDistributedStorage(storage sturdyc.DistributedStorageWithDeletions) Option {
	return func(o *options) {
		o.storage = storage
	}
}

// SturdycService is a read-through cache for T backed by a sturdyc client.
// Concurrent misses on one key are collapsed into a single fetch by sturdyc.
type SturdycService[T any] struct {
	client  *sturdyc.Client[T]
	storage sturdyc.DistributedStorageWithDeletions
}

// NewSturdycService validates cfg and builds the sturdyc client.
//
// Without distributed storage entries live in process for cfg.TTL. With it they
// live in process for cfg.LocalTTL and in the storage for as long as the storage
// keeps them. Distributed entries are JSON encoded, so T must not be an interface type.
func NewSturdycService[T any](cfg Config, opts ...Option) (*SturdycService[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	sturdycOpts := cfg.ToSturdycOptions()
	if o.storage != nil {
		if reflect.TypeFor[T]().Kind() == reflect.Interface {
			return nil, &ConfigError{Field: "DistributedStorage", Message: "requires a concrete value type"}
		}
		sturdycOpts = append(sturdycOpts, sturdyc.WithDistributedStorage(o.storage))
	}

	client := sturdyc.New[T](
		cfg.Capacity,
		cfg.NumShards,
		cfg.localTTL(o.storage != nil),
		cfg.EvictionPercentage,
		sturdycOpts...,
	)

	return &SturdycService[T]{client: client, storage: o.storage}, nil
}

// GetOrFetch returns the cached value for key, calling fetchFn on a miss.
// Errors from fetchFn are not cached.
func (s *SturdycService[T]) GetOrFetch(ctx context.Context, key string, fetchFn func(ctx context.Context) (T, error)) (T, error) {
	if fetchFn == nil {
		var zero T
		return zero, &ConfigError{Field: "fetchFn", Message: "cannot be nil"}
	}
	return s.client.GetOrFetch(ctx, key, fetchFn)
}

// Delete removes key from every tier.
func (s *SturdycService[T]) Delete(ctx context.Context, key string) error {
	s.client.Delete(key)
	if s.storage != nil {
		s.storage.Delete(ctx, key)
	}
	return nil
}

// DeleteByPrefix removes every key starting with prefix. The shared tier is only
// swept when the storage implements PrefixDeleter.
func (s *SturdycService[T]) DeleteByPrefix(ctx context.Context, prefix string) error {
	var matched []string
	for _, key := range s.client.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			s.client.Delete(key)
			matched = append(matched, key)
		}
	}

	if s.storage == nil {
		return nil
	}
	if pd, ok := s.storage.(PrefixDeleter); ok {
		return pd.DeletePrefix(ctx, prefix)
	}
	if len(matched) > 0 {
		s.storage.DeleteBatch(ctx, matched)
	}
	return nil
}

// InvalidateKeys removes keys from every tier.
func (s *SturdycService[T]) InvalidateKeys(ctx context.Context, keys []string) error {
	for _, key := range keys {
		s.client.Delete(key)
	}
	if s.storage != nil && len(keys) > 0 {
		s.storage.DeleteBatch(ctx, keys)
	}
	return nil
}

// Size returns the number of entries held in process.
func (s *SturdycService[T]) Size() int {
	return s.client.Size()
}

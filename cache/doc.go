// Package cache provides the read-through cache contract and key serialization
// used by the books service and the repository decorators.
//
// # Overview
//
//   - Service[T]: typed read-through cache (GetOrFetch, Delete, DeleteByPrefix, InvalidateKeys)
//   - CacheService: Service[any], shared by decorators across entity types
//   - KeySerializer: builds stable keys from a method name and its arguments
//
// The default implementation is backed by sturdyc. Concurrent misses on the same
// key run the fetch function once and every waiter receives its outcome. Fetch
// errors are never stored.
//
// # Basic Usage
//
//	svc, err := cache.NewTypedService[[]books.BookModel](cache.DefaultConfig(), nil)
//	models, err := svc.GetOrFetch(ctx, "books-all", loadBooks)
//
// With a CacheService the static type is recovered by the package level helper:
//
//	book, err := cache.GetOrFetch(ctx, shared, key, func(ctx context.Context) (*Book, error) {
//		return repo.GetByID(ctx, id)
//	})
//
// # Keys
//
// Keys are segments joined by KeySeparator ("::"). The default serializer quotes
// strings, sorts map entries and omits zero struct fields, so a filter value
// produces the same key in every process:
//
//	book::Find::Filter{Column:"title",Op:"contains",Value:"go"}::["Author"]
//
// Prefix builds an invalidation prefix that ends on a separator, so the prefix
// for id 1 never matches id 10.
//
// Functions and channels are rendered by address and are only stable within a
// single process. Pass filter values instead of closures when keys must be shared.
//
// # Distributed storage
//
// NewTypedService accepts a DistributedStorage (see internal/cacheinfra.RedisStorage).
// Entries then live in process for Config.LocalTTL and in the shared tier for
// Config.TTL. Values cross process boundaries as JSON, so the value type must be concrete.
package cache

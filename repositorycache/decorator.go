package repositorycache

import (
	"context"
	"reflect"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/goliatone/go-readthrough/cache"
	"github.com/goliatone/go-readthrough/repository"
)

const (
	methodGetByID = "GetByID"
	methodGetAll  = "GetAll"
	methodFind    = "Find"
)

// Logger receives invalidation failures.
type Logger interface {
	Warn(msg string, keysAndValues ...any)
}

type nopLogger struct{}

func (nopLogger) Warn(string, ...any) {}

// Option customises a CachedRepository.
type Option func(*options)

type options struct {
	namespace string
	logger    Logger
}

// WithNamespace overrides the key namespace derived from the entity type name.
func WithNamespace(namespace string) Option {
	return func(o *options) {
		if ns := toSnake(namespace); ns != "" {
			o.namespace = ns
		}
	}
}

func WithLogger(l Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// CachedRepository decorates a repository with read-through caching.
//
// GetByID, GetAll and Find are served from the cache under keys of the form
// "<namespace>::<Method>::<args>". Writes pass through and, when they succeed,
// drop the keys they can affect. Query passes through uncached.
type CachedRepository[T repository.Entity] struct {
	base          repository.Repository[T]
	cache         cache.CacheService
	keySerializer cache.KeySerializer
	keyRegistry   *xsync.MapOf[string, struct{}]
	namespace     string
	logger        Logger
}

// New wraps base. A nil keySerializer uses cache.NewDefaultKeySerializer.
func New[T repository.Entity](base repository.Repository[T], cacheService cache.CacheService, keySerializer cache.KeySerializer, opts ...Option) *CachedRepository[T] {
	o := options{namespace: namespaceFor[T](), logger: nopLogger{}}
	for _, opt := range opts {
		opt(&o)
	}
	if keySerializer == nil {
		keySerializer = cache.NewDefaultKeySerializer()
	}
	return &CachedRepository[T]{
		base:          base,
		cache:         cacheService,
		keySerializer: keySerializer,
		keyRegistry:   xsync.NewMapOf[string, struct{}](),
		namespace:     o.namespace,
		logger:        o.logger,
	}
}

// Namespace returns the first segment of every key this decorator writes.
func (c *CachedRepository[T]) Namespace() string {
	return c.namespace
}

// Cloner is implemented by entities holding pointers or slices, so values
// handed out by the decorator share nothing with the cached ones. Entities
// without it are copied by value.
type Cloner[T any] interface {
	Clone() T
}

// GetByID caches absence as well as hits. The returned entity is a copy of the cached one.
func (c *CachedRepository[T]) GetByID(ctx context.Context, id int64, include ...string) (*T, error) {
	key := c.key(methodGetByID, id, normalizeIncludes(include))
	found, err := cache.GetOrFetch(ctx, c.cache, key, func(ctx context.Context) (*T, error) {
		return c.base.GetByID(ctx, id, include...)
	})
	if err != nil || found == nil {
		return nil, err
	}
	out := cloneEntity(*found)
	return &out, nil
}

func (c *CachedRepository[T]) GetAll(ctx context.Context, include ...string) ([]T, error) {
	key := c.key(methodGetAll, normalizeIncludes(include))
	rows, err := cache.GetOrFetch(ctx, c.cache, key, func(ctx context.Context) ([]T, error) {
		return c.base.GetAll(ctx, include...)
	})
	return cloneRows(rows), err
}

func (c *CachedRepository[T]) Find(ctx context.Context, filter repository.Filter, include ...string) ([]T, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	key := c.key(methodFind, filter, normalizeIncludes(include))
	rows, err := cache.GetOrFetch(ctx, c.cache, key, func(ctx context.Context) ([]T, error) {
		return c.base.Find(ctx, filter, include...)
	})
	return cloneRows(rows), err
}

func (c *CachedRepository[T]) Query(include ...string) repository.Query[T] {
	return c.base.Query(include...)
}

func (c *CachedRepository[T]) Add(ctx context.Context, entity T) (int64, error) {
	id, err := c.base.Add(ctx, entity)
	if err == nil {
		c.invalidateEntities(ctx, id)
	}
	return id, err
}

func (c *CachedRepository[T]) AddRange(ctx context.Context, entities []T) ([]int64, error) {
	ids, err := c.base.AddRange(ctx, entities)
	if err == nil && len(ids) > 0 {
		c.invalidateEntities(ctx, ids...)
	}
	return ids, err
}

func (c *CachedRepository[T]) Update(ctx context.Context, entity T) (int64, error) {
	n, err := c.base.Update(ctx, entity)
	if err == nil && n > 0 {
		c.invalidateEntities(ctx, entity.GetID())
	}
	return n, err
}

func (c *CachedRepository[T]) Delete(ctx context.Context, id int64) (bool, error) {
	deleted, err := c.base.Delete(ctx, id)
	if err == nil && deleted {
		c.invalidateEntities(ctx, id)
	}
	return deleted, err
}

// key builds and registers the cache key for a read.
func (c *CachedRepository[T]) key(method string, args ...any) string {
	key := cache.Key(c.namespace, c.keySerializer.SerializeKey(method, args...))
	c.keyRegistry.Store(key, struct{}{})
	return key
}

// invalidateEntities drops every cached read of ids, including cached absence
// from lookups made before an add, and every list, since any write can move an
// entity in or out of a filtered result.
func (c *CachedRepository[T]) invalidateEntities(ctx context.Context, ids ...int64) {
	prefixes := make([]string, 0, len(ids)+2)
	prefixes = append(prefixes,
		cache.Prefix(c.namespace, methodGetAll),
		cache.Prefix(c.namespace, methodFind),
	)
	for _, id := range ids {
		prefixes = append(prefixes, cache.Key(c.namespace, c.keySerializer.SerializeKey(methodGetByID, id))+cache.KeySeparator)
	}
	c.invalidateByPrefix(ctx, prefixes...)
}

// invalidateByPrefix removes registered keys starting with any of prefixes.
func (c *CachedRepository[T]) invalidateByPrefix(ctx context.Context, prefixes ...string) {
	var keys []string
	c.keyRegistry.Range(func(key string, _ struct{}) bool {
		for _, prefix := range prefixes {
			if strings.HasPrefix(key, prefix) {
				keys = append(keys, key)
				break
			}
		}
		return true
	})
	if len(keys) == 0 {
		return
	}

	if err := c.cache.InvalidateKeys(ctx, keys); err != nil {
		// keys stay registered so the next write retries them
		c.logger.Warn("repositorycache: invalidation failed", "namespace", c.namespace, "keys", len(keys), "error", err)
		return
	}
	for _, key := range keys {
		c.keyRegistry.Delete(key)
	}
}

// TrackedKeys returns the number of keys awaiting invalidation.
func (c *CachedRepository[T]) TrackedKeys() int {
	return c.keyRegistry.Size()
}

func normalizeIncludes(include []string) []string {
	out := make([]string, 0, len(include))
	for _, path := range include {
		if path != "" {
			out = append(out, path)
		}
	}
	return out
}

func cloneRows[T any](rows []T) []T {
	if rows == nil {
		return nil
	}
	out := make([]T, len(rows))
	for i, row := range rows {
		out[i] = cloneEntity(row)
	}
	return out
}

func cloneEntity[T any](v T) T {
	if c, ok := any(v).(Cloner[T]); ok {
		return c.Clone()
	}
	return v
}

func namespaceFor[T any]() string {
	t := reflect.TypeFor[T]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if ns := toSnake(t.Name()); ns != "" {
		return ns
	}
	return toSnake(t.String())
}

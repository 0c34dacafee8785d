package di

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"

	"github.com/goliatone/go-readthrough/books"
	"github.com/goliatone/go-readthrough/cache"
	"github.com/goliatone/go-readthrough/internal/cacheinfra"
	"github.com/goliatone/go-readthrough/internal/config"
	"github.com/goliatone/go-readthrough/internal/database"
	"github.com/goliatone/go-readthrough/internal/logger"
	"github.com/goliatone/go-readthrough/repository"
	"github.com/goliatone/go-readthrough/repositorycache"
)

// Container owns the process-wide singletons: database handle, cache services,
// key serializer and the book service built on top of them.
type Container struct {
	config        config.Config
	logger        *logger.Logger
	db            *bun.DB
	redis         redis.UniversalClient
	ownsDB        bool
	ownsRedis     bool
	cacheService  cache.CacheService
	keySerializer cache.KeySerializer
	bookService   *books.Service
}

type Option func(*options)

type options struct {
	logger         *logger.Logger
	db             *bun.DB
	redis          redis.UniversalClient
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDB uses db instead of opening cfg.Database. The container does not close it.
func WithDB(db *bun.DB) Option {
	return func(o *options) { o.db = db }
}

// WithRedisClient uses client for the shared cache tier instead of dialing
// cfg.Redis. The container does not close it.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(o *options) { o.redis = client }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// NewContainer validates cfg and builds every component. Nothing is left open
// when it fails.
func NewContainer(ctx context.Context, cfg config.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c := &Container{config: cfg, logger: o.logger, db: o.db, redis: o.redis}
	if err := c.build(ctx, o); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) build(ctx context.Context, o options) (err error) {
	cfg := c.config

	if c.logger == nil {
		if c.logger, err = logger.New(cfg.Log.Mode); err != nil {
			return err
		}
	}

	if c.db == nil {
		c.db, err = database.Open(ctx, cfg.Database, database.WithQueryLogger(c.logger))
		if err != nil {
			return err
		}
		c.ownsDB = true
	}

	if c.redis == nil && cfg.Redis.Enabled() {
		c.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		c.ownsRedis = true
		if err = c.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("di: ping redis %s: %w", cfg.Redis.Addr, err)
		}
	}

	if c.cacheService, err = cache.NewCacheService(cfg.CacheOptions()); err != nil {
		return err
	}
	c.keySerializer = cache.NewDefaultKeySerializer()

	listing, err := cache.NewTypedService[[]books.BookModel](cfg.CacheOptions(), c.distributedStorage())
	if err != nil {
		return err
	}

	serviceOpts := []books.Option{
		books.WithLogger(c.logger),
		books.WithCacheKey(cfg.Books.CacheKey),
		books.WithRedactErrors(cfg.Books.RedactErrors),
	}
	if o.tracerProvider != nil {
		serviceOpts = append(serviceOpts, books.WithTracerProvider(o.tracerProvider))
	}
	if o.meterProvider != nil {
		serviceOpts = append(serviceOpts, books.WithMeterProvider(o.meterProvider))
	}

	c.bookService = books.NewService(
		NewCachedRepository[books.Book](c, books.NewBookRepository(c.db)),
		NewCachedRepository[books.Author](c, books.NewAuthorRepository(c.db)),
		listing,
		serviceOpts...,
	)
	return nil
}

func (c *Container) distributedStorage() cache.DistributedStorage {
	if c.redis == nil {
		return nil
	}
	return cacheinfra.NewRedisStorage(c.redis, c.config.Cache.TTL,
		cacheinfra.WithRedisPrefix(c.config.Redis.Prefix),
		cacheinfra.WithRedisErrorHandler(func(op string, err error) {
			c.logger.Warn("di: redis cache command failed", "op", op, "error", err)
		}),
	)
}

// Migrate creates the book tables when they are missing.
func (c *Container) Migrate(ctx context.Context) error {
	return database.CreateTables(ctx, c.db, books.Models()...)
}

func (c *Container) Config() config.Config { return c.config }

func (c *Container) Logger() *logger.Logger { return c.logger }

func (c *Container) DB() *bun.DB { return c.db }

// CacheService returns the cache shared by every cached repository.
func (c *Container) CacheService() cache.CacheService { return c.cacheService }

func (c *Container) KeySerializer() cache.KeySerializer { return c.keySerializer }

func (c *Container) BookService() *books.Service { return c.bookService }

// Close releases the connections the container opened itself.
func (c *Container) Close() error {
	var err error
	if c.ownsRedis && c.redis != nil {
		err = multierr.Append(err, c.redis.Close())
	}
	if c.ownsDB && c.db != nil {
		err = multierr.Append(err, c.db.Close())
	}
	if c.logger != nil {
		c.logger.Sync()
	}
	return err
}

// NewCachedRepository wraps base with the container's cache and key serializer.
// Go methods cannot have type parameters, so this is a package-level function:
//
//	authors := di.NewCachedRepository[books.Author](container, books.NewAuthorRepository(db))
func NewCachedRepository[T repository.Entity](c *Container, base repository.Repository[T]) *repositorycache.CachedRepository[T] {
	return repositorycache.New(base, c.cacheService, c.keySerializer, repositorycache.WithLogger(c.logger))
}

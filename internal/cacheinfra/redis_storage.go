package cacheinfra

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces every key the storage writes.
const DefaultRedisPrefix = "readthrough:"

const scanBatch = 256

// RedisStorage is a sturdyc distributed storage over redis. Reads that fail are
// reported as misses, writes that fail are dropped, so a redis outage degrades
// to in-process caching.
type RedisStorage struct {
	client  redis.UniversalClient
	ttl     time.Duration
	prefix  string
	onError func(op string, err error)
}

// RedisOption customises a RedisStorage.
type RedisOption func(*RedisStorage)

// WithRedisPrefix replaces DefaultRedisPrefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStorage) {
		s.prefix = prefix
	}
}

// WithRedisErrorHandler is called for every failed redis command.
func WithRedisErrorHandler(fn func(op string, err error)) RedisOption {
	return func(s *RedisStorage) {
		if fn != nil {
			s.onError = fn
		}
	}
}

// NewRedisStorage stores entries in client with the given ttl.
func NewRedisStorage(client redis.UniversalClient, ttl time.Duration, opts ...RedisOption) *RedisStorage {
	s := &RedisStorage{
		client:  client,
		ttl:     ttl,
		prefix:  DefaultRedisPrefix,
		onError: func(string, error) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStorage) key(k string) string {
	return s.prefix + k
}

func (s *RedisStorage) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.onError("get", err)
		}
		return nil, false
	}
	return b, true
}

func (s *RedisStorage) Set(ctx context.Context, key string, value []byte) {
	if err := s.client.Set(ctx, s.key(key), value, s.ttl).Err(); err != nil {
		s.onError("set", err)
	}
}

func (s *RedisStorage) GetBatch(ctx context.Context, keys []string) map[string][]byte {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}

	values, err := s.client.MGet(ctx, full...).Result()
	if err != nil {
		s.onError("mget", err)
		return out
	}
	for i, v := range values {
		if str, ok := v.(string); ok {
			out[keys[i]] = []byte(str)
		}
	}
	return out
}

func (s *RedisStorage) SetBatch(ctx context.Context, records map[string][]byte) {
	if len(records) == 0 {
		return
	}
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range records {
			pipe.Set(ctx, s.key(k), v, s.ttl)
		}
		return nil
	})
	if err != nil {
		s.onError("set_batch", err)
	}
}

func (s *RedisStorage) Delete(ctx context.Context, key string) {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		s.onError("del", err)
	}
}

func (s *RedisStorage) DeleteBatch(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		s.onError("del_batch", err)
	}
}

// DeletePrefix scans for keys under prefix and deletes them in batches.
func (s *RedisStorage) DeletePrefix(ctx context.Context, prefix string) error {
	pattern := escapeGlob(s.key(prefix)) + "*"

	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

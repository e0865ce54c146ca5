package research

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// Store keeps small string values between runs: cached titles, Dropbox
// cursors and Notion page ids.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Del(ctx context.Context, key string) error
}

type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (rs *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := rs.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "redis Get failed")
	}
	return val, true, nil
}

func (rs *RedisStore) Set(ctx context.Context, key, value string) error {
	return errors.Wrap(rs.rdb.Set(ctx, key, value, rs.ttl).Err(), "redis Set failed")
}

func (rs *RedisStore) Del(ctx context.Context, key string) error {
	return errors.Wrap(rs.rdb.Del(ctx, key).Err(), "redis Del failed")
}

// MemoryStore is used when no redis server is configured. Its contents
// last for the lifetime of the process.
type MemoryStore struct {
	lock sync.Mutex
	m    map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]string)}
}

func (ms *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	val, ok := ms.m[key]
	return val, ok, nil
}

func (ms *MemoryStore) Set(_ context.Context, key, value string) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	ms.m[key] = value
	return nil
}

func (ms *MemoryStore) Del(_ context.Context, key string) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	delete(ms.m, key)
	return nil
}

// NewStore connects to redis when an address is configured and falls back
// to a MemoryStore otherwise.
func NewStore(ctx context.Context, config RedisConfig) (Store, error) {
	if config.Addr == "" {
		return NewMemoryStore(), nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "redis Ping failed")
	}
	return NewRedisStore(rdb, config.TTL), nil
}

package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stockwise/stockwise-backend/pkg/config"
)

// RedisStore keeps blobs as plain redis strings under a prefix
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore connects to redis and verifies the connection. Keys are
// stored as "<prefix>:<key>"; a trailing colon on prefix is ignored.
func NewRedisStore(cfg *config.RedisConfig, prefix string) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return newRedisStore(rdb, prefix), nil
}

func newRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: strings.TrimRight(prefix, ":")}
}

func (s *RedisStore) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

// Get returns the blob stored under key
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("kvstore get %s: %w", key, err)
	}
	return value, nil
}

// Set stores the blob under key without expiry
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.rdb.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("kvstore set %s: %w", key, err)
	}
	return nil
}

// Delete removes key
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("kvstore delete %s: %w", key, err)
	}
	return nil
}

// Health returns the health status of redis
func (s *RedisStore) Health(ctx context.Context) map[string]string {
	status := map[string]string{"status": "up"}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		status["status"] = "down"
		status["error"] = err.Error()
	}
	return status
}

// Close closes the redis connection
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

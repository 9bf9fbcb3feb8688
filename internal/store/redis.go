package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix namespaces every key DocFlow writes to Redis.
const DefaultRedisKeyPrefix = "docflow:"

// RedisKVStore is a KVStore backed by Redis, for hosts that share state across processes.
type RedisKVStore struct {
	client *redis.Client
	prefix string
}

var _ KVStore = (*RedisKVStore)(nil)

// NewRedisKVStore connects to addr and verifies the connection.
func NewRedisKVStore(ctx context.Context, addr, prefix string) (*RedisKVStore, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address not set")
	}
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		slog.Error("Redis ping failed", "error", err, "addr", addr)
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	slog.Debug("RedisKVStore connected", "addr", addr, "prefix", prefix)
	return &RedisKVStore{client: client, prefix: prefix}, nil
}

func (r *RedisKVStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return v, true, nil
}

func (r *RedisKVStore) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

func (r *RedisKVStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis client.
func (r *RedisKVStore) Close() error {
	return r.client.Close()
}

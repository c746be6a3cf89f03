// Package cache keeps rendered list responses (events, performers) in Redis.
// Entries are grouped so a write can drop every cached page of a listing at once.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Groups of cached responses.
const (
	GroupEvents     = "events"
	GroupPerformers = "performers"
)

type Cache interface {
	Get(ctx context.Context, group, key string) ([]byte, bool, error)
	Set(ctx context.Context, group, key string, value []byte) error
	Invalidate(ctx context.Context, group string) error
}

type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedis connects using a redis:// URL and pings the server.
func NewRedis(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis is not available: %w", err)
	}
	return NewRedisWithClient(client, ttl), nil
}

func NewRedisWithClient(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl, prefix: "vor:cache:"}
}

func (r *Redis) entryKey(group, key string) string { return r.prefix + group + ":" + key }
func (r *Redis) groupKey(group string) string      { return r.prefix + group + ":keys" }

func (r *Redis) Get(ctx context.Context, group, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.entryKey(group, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, group, key string, value []byte) error {
	k := r.entryKey(group, key)
	if err := r.client.Set(ctx, k, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	if err := r.client.SAdd(ctx, r.groupKey(group), k).Err(); err != nil {
		return fmt.Errorf("cache index: %w", err)
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context, group string) error {
	gk := r.groupKey(group)
	keys, err := r.client.SMembers(ctx, gk).Result()
	if err != nil {
		return fmt.Errorf("cache members: %w", err)
	}
	if err := r.client.Del(ctx, append(keys, gk)...).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

func (r *Redis) Close() error { return r.client.Close() }

// Nop is used when no REDIS_URL is configured.
type Nop struct{}

func (Nop) Get(context.Context, string, string) ([]byte, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, string, string, []byte) error         { return nil }
func (Nop) Invalidate(context.Context, string) error                  { return nil }

// GetJSON decodes a cached value into out and reports whether it was found.
func GetJSON(ctx context.Context, c Cache, group, key string, out any) (bool, error) {
	raw, ok, err := c.Get(ctx, group, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("cache decode: %w", err)
	}
	return true, nil
}

func SetJSON(ctx context.Context, c Cache, group, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	return c.Set(ctx, group, key, raw)
}

// Package redisstore wraps the Redis operations used by the station stores.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	maintnotifications "github.com/redis/go-redis/v9/maintnotifications"

	"github.com/mohammed-shakir/airmap/internal/core/observability"
)

type Option func(*redis.Options)

func WithPoolSize(n int) Option {
	return func(o *redis.Options) { o.PoolSize = n }
}

func WithMinIdleConns(n int) Option {
	return func(o *redis.Options) { o.MinIdleConns = n }
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.DialTimeout = d }
}

func WithReadTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.ReadTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.WriteTimeout = d }
}

type Client struct {
	rdb *redis.Client
}

func New(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}

	ro := &redis.Options{
		Addr:         addr,
		PoolSize:     32,
		MinIdleConns: 2,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	}
	for _, f := range opts {
		f(ro)
	}

	rdb := redis.NewClient(ro)

	start := time.Now()
	err := rdb.Ping(ctx).Err()
	observability.ObserveStoreOp("ping", err, time.Since(start).Seconds())
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	start := time.Now()
	err := c.rdb.Ping(ctx).Err()
	observability.ObserveStoreOp("ping", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Get returns ok=false for a missing key.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.ObserveStoreOp("get", nil, time.Since(start).Seconds())
		return nil, false, nil
	}
	observability.ObserveStoreOp("get", err, time.Since(start).Seconds())
	if err != nil {
		return nil, false, fmt.Errorf("redis GET %q: %w", key, err)
	}
	return b, true, nil
}

// MGet returns a map of found keys to their values
func (c *Client) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	start := time.Now()
	if len(keys) == 0 {
		observability.ObserveStoreOp("mget", nil, time.Since(start).Seconds())
		return map[string][]byte{}, nil
	}

	vals, err := c.rdb.MGet(ctx, keys...).Result()
	observability.ObserveStoreOp("mget", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("redis MGET %d keys: %w", len(keys), err)
	}

	out := make(map[string][]byte, len(vals))
	for i, v := range vals {
		if v == nil {
			continue // missing key
		}
		switch t := v.(type) {
		case string:
			out[keys[i]] = []byte(t)
		case []byte:
			out[keys[i]] = t
		default:
			out[keys[i]] = fmt.Append(nil, t)
		}
	}
	return out, nil
}

func (c *Client) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	start := time.Now()
	err := c.rdb.Set(ctx, key, val, ttl).Err()
	observability.ObserveStoreOp("set", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("redis SET %q: %w", key, err)
	}
	return nil
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	start := time.Now()
	err := c.rdb.Del(ctx, keys...).Err()
	observability.ObserveStoreOp("del", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("redis DEL %d keys: %w", len(keys), err)
	}
	return nil
}

func (c *Client) SMembers(ctx context.Context, key string) ([]string, error) {
	start := time.Now()
	out, err := c.rdb.SMembers(ctx, key).Result()
	observability.ObserveStoreOp("smembers", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("redis SMEMBERS %q: %w", key, err)
	}
	return out, nil
}

// SUnion returns the union of the given sets; missing sets count as empty.
func (c *Client) SUnion(ctx context.Context, keys ...string) ([]string, error) {
	start := time.Now()
	if len(keys) == 0 {
		observability.ObserveStoreOp("sunion", nil, time.Since(start).Seconds())
		return nil, nil
	}
	out, err := c.rdb.SUnion(ctx, keys...).Result()
	observability.ObserveStoreOp("sunion", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("redis SUNION %d sets: %w", len(keys), err)
	}
	return out, nil
}

// HGet returns ok=false for a missing field.
func (c *Client) HGet(ctx context.Context, key, field string) (string, bool, error) {
	start := time.Now()
	v, err := c.rdb.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		observability.ObserveStoreOp("hget", nil, time.Since(start).Seconds())
		return "", false, nil
	}
	observability.ObserveStoreOp("hget", err, time.Since(start).Seconds())
	if err != nil {
		return "", false, fmt.Errorf("redis HGET %q %q: %w", key, field, err)
	}
	return v, true, nil
}

func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	start := time.Now()
	out, err := c.rdb.HGetAll(ctx, key).Result()
	observability.ObserveStoreOp("hgetall", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("redis HGETALL %q: %w", key, err)
	}
	return out, nil
}

// Incr bumps a counter and returns the new value.
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	start := time.Now()
	n, err := c.rdb.Incr(ctx, key).Result()
	observability.ObserveStoreOp("incr", err, time.Since(start).Seconds())
	if err != nil {
		return 0, fmt.Errorf("redis INCR %q: %w", key, err)
	}
	return n, nil
}

// Tx runs fn inside MULTI/EXEC so a record and its index entries land together.
func (c *Client) Tx(ctx context.Context, op string, fn func(p redis.Pipeliner) error) error {
	start := time.Now()
	_, err := c.rdb.TxPipelined(ctx, fn)
	observability.ObserveStoreOp(op, err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("redis tx %s: %w", op, err)
	}
	return nil
}

func (c *Client) Close() error {
	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}

func (c *Client) MSetWithTTL(
	ctx context.Context,
	kv map[string][]byte,
	ttl time.Duration,
) error {
	start := time.Now()
	if len(kv) == 0 {
		observability.ObserveStoreOp("mset", nil, time.Since(start).Seconds())
		return nil
	}

	_, err := c.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for k, v := range kv {
			if err := p.Set(ctx, k, v, ttl).Err(); err != nil {
				return fmt.Errorf("redis MSET pipeline SET %q: %w", k, err)
			}
		}
		return nil
	})

	observability.ObserveStoreOp("mset", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("redis MSET %d keys (pipeline): %w", len(kv), err)
	}
	return nil
}

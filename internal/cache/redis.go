// Package cache is the API gateway's Redis client: a fixed-window rate
// limiter and a short-lived response cache.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"carehub/internal/common/config"

	"github.com/go-redis/redis/v8"
)

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = errors.New("cache: miss")

type Client struct {
	rdb *redis.Client
}

func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping limiter redis at %s: %w", cfg.Address, err)
	}

	return &Client{rdb: rdb}, nil
}

// NewFromRedis wraps an existing connection.
func NewFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// IsRateLimited counts one request for key in the current window and reports
// whether the count is above limit. The window starts on the first request.
func (c *Client) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	redisKey := "ratelimit:" + key

	pipe := c.rdb.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	// A key without expiry was just created, or lost its TTL.
	if ttl.Val() < 0 {
		if err := c.rdb.Expire(ctx, redisKey, window).Err(); err != nil {
			return false, err
		}
	}

	return incr.Val() > int64(limit), nil
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return data, err
}

func (c *Client) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, data, ttl).Err()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// ResponseKey derives a cache key from a route name and request body.
func ResponseKey(route string, body []byte) string {
	sum := sha256.Sum256(body)
	return "response:" + route + ":" + hex.EncodeToString(sum[:16])
}

package redis

import (
	"context"
	"strings"
	"time"

	"workspace-billing/internal/config"

	"github.com/go-redis/redis/v8"
)

// Nil is returned by Get on a cache miss.
const Nil = redis.Nil

type RedisClient interface {
	Ping(ctx context.Context) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Close() error
}

var _ RedisClient = (*Client)(nil)

type Client struct {
	cli *redis.Client
}

// NewClient accepts either a bare host:port or a redis:// URL.
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if strings.HasPrefix(cfg.URL, "redis://") || strings.HasPrefix(cfg.URL, "rediss://") {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, err
		}
		if cfg.Password != "" {
			parsed.Password = cfg.Password
		}
		opts = parsed
	}
	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return &Client{cli: c}, nil
}

// Wrap adapts an existing go-redis client.
func Wrap(c *redis.Client) *Client { return &Client{cli: c} }

func (c *Client) Ping(ctx context.Context) error { return c.cli.Ping(ctx).Err() }

func (c *Client) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.cli.Set(ctx, key, value, expiration).Err()
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.cli.Get(ctx, key).Result()
}

func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	return c.cli.Incr(ctx, key).Result()
}

func (c *Client) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return c.cli.Expire(ctx, key, expiration).Err()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.cli.Del(ctx, keys...).Err()
}

func (c *Client) Close() error { return c.cli.Close() }

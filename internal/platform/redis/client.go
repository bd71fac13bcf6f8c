package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"palisade/internal/platform/config"
)

// Client wraps go-redis for the ledger's replay cache. Redis is optional:
// without it every replay check falls through to the event store's unique
// index, which stays the source of truth either way.
type Client struct {
	*redis.Client
}

// New connects using the replay-cache settings. Returns nil when no URL is
// configured so callers can wire a cache-less ledger.
func New(cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{Client: client}, nil
}

// Health reports whether the replay cache is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.Client.Close()
}

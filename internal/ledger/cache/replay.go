package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"palisade/internal/ledger/models"
	"palisade/internal/platform/redis"
)

// Replay is a Redis-backed cache of recently recorded events keyed by
// request_id. It is a read-through optimization in front of the event
// store's unique index; a cache miss or Redis outage only costs a store
// lookup, never correctness.
type Replay struct {
	client *redis.Client
	ttl    time.Duration
}

func NewReplay(client *redis.Client, ttl time.Duration) *Replay {
	if client == nil {
		return nil
	}
	return &Replay{client: client, ttl: ttl}
}

func key(requestID string) string {
	return "ledger:replay:" + requestID
}

// Get returns the cached event for the request id, or nil on a miss.
func (c *Replay) Get(ctx context.Context, requestID string) (*models.Event, error) {
	if c == nil {
		return nil, nil
	}
	raw, err := c.client.Get(ctx, key(requestID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("replay cache get: %w", err)
	}
	var event models.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, fmt.Errorf("replay cache decode: %w", err)
	}
	return &event, nil
}

// Put stores the event under its request id for the configured TTL.
func (c *Replay) Put(ctx context.Context, event *models.Event) error {
	if c == nil {
		return nil
	}
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("replay cache encode: %w", err)
	}
	if err := c.client.Set(ctx, key(event.RequestID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("replay cache put: %w", err)
	}
	return nil
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"signupboard/internal/domain"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "signupboard:events:"

// EventCache is a per-guild read-through cache of events. Redis failures fall
// back to the store; the cache never decides anything on its own.
type EventCache struct {
	client *redis.Client
	store  domain.EventRepository
	ttl    time.Duration
	logger *slog.Logger
}

func NewEventCache(client *redis.Client, store domain.EventRepository, ttl time.Duration, logger *slog.Logger) *EventCache {
	return &EventCache{client: client, store: store, ttl: ttl, logger: logger}
}

// NewClient opens a go-redis client.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func key(guildID string) string {
	return keyPrefix + guildID
}

func (c *EventCache) Get(ctx context.Context, guildID string) ([]*domain.Event, error) {
	const op = "redis.EventCache.Get"

	data, err := c.client.Get(ctx, key(guildID)).Bytes()
	switch {
	case err == nil:
		var events []*domain.Event
		if err := json.Unmarshal(data, &events); err == nil {
			return events, nil
		}
		c.logger.Warn("discarding unreadable cache entry", slog.String("op", op), "guild_id", guildID)
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("cache read failed, using store", slog.String("op", op), "guild_id", guildID, "err", err)
		return c.load(ctx, guildID)
	}

	events, err := c.load(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if err := c.put(ctx, guildID, events); err != nil {
		c.logger.Warn("cache fill failed", slog.String("op", op), "guild_id", guildID, "err", err)
	}
	return events, nil
}

// Refresh reloads the guild's events from the store. If the store cannot be
// read the entry is dropped so the next Get goes to the store.
func (c *EventCache) Refresh(ctx context.Context, guildID string) error {
	const op = "redis.EventCache.Refresh"

	events, err := c.load(ctx, guildID)
	if err != nil {
		if delErr := c.client.Del(ctx, key(guildID)).Err(); delErr != nil {
			c.logger.Warn("cache invalidate failed", slog.String("op", op), "guild_id", guildID, "err", delErr)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.put(ctx, guildID, events); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *EventCache) load(ctx context.Context, guildID string) ([]*domain.Event, error) {
	events, err := c.store.ListByGuild(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

func (c *EventCache) put(ctx context.Context, guildID string, events []*domain.Event) error {
	data, err := json.Marshal(events)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(guildID), data, c.ttl).Err()
}

package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/hostel-outing-api/internal/models"
)

// RedisEventPublisher fans outing events out over a Redis pub/sub channel.
type RedisEventPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisEventPublisher constructs the publisher.
func NewRedisEventPublisher(client *redis.Client, channel string) *RedisEventPublisher {
	return &RedisEventPublisher{client: client, channel: channel}
}

// Publish sends the event as JSON. Without a client it silently drops.
func (p *RedisEventPublisher) Publish(ctx context.Context, event models.OutingEvent) error {
	if p.client == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal outing event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", p.channel, err)
	}
	return nil
}

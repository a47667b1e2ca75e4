package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/medsurvey/internal/config"
	"github.com/stemsi/medsurvey/internal/model"
)

// EventPublisher fans form events out to the instance's live subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, formID string, ev model.FormEvent) error
}

type redisEventPublisher struct {
	rdb *redis.Client
}

// NewEventPublisher publishes on the instance's Redis PubSub channel.
func NewEventPublisher(rdb *redis.Client) EventPublisher {
	return &redisEventPublisher{rdb: rdb}
}

func (p *redisEventPublisher) Publish(ctx context.Context, formID string, ev model.FormEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.rdb.Publish(ctx, config.CacheKey.FormEventsChannel(formID), payload).Err()
}

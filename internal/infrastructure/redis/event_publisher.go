package redis

import (
	"context"

	"github.com/go-redis/redis/v8"

	"live-auction/internal/domain"
)

var _ domain.EventPublisher = (*EventPublisher)(nil)

// EventPublisher sends auction events to a Redis channel shared by every
// instance.
type EventPublisher struct {
	client  *redis.Client
	channel string
}

func NewEventPublisher(client *redis.Client, channel string) *EventPublisher {
	return &EventPublisher{client: client, channel: channel}
}

func (r *EventPublisher) Publish(ctx context.Context, event *domain.AuctionEvent) error {
	data, err := encodeEvent(event)
	if err != nil {
		return err
	}

	return r.client.Publish(ctx, r.channel, data).Err()
}

package services

import (
	"context"
	"fmt"

	"live-auction/internal/domain"
	"live-auction/pkg/logger"
)

// EventListener feeds events received from the cross-instance bus into
// the local broadcaster so every instance serves its own viewers.
type EventListener struct {
	broadcaster domain.EventPublisher
	log         logger.Logger
}

func NewEventListener(broadcaster domain.EventPublisher, log logger.Logger) *EventListener {
	return &EventListener{
		broadcaster: broadcaster,
		log:         log,
	}
}

// Start blocks until ctx is cancelled or the subscription fails.
func (el *EventListener) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	el.log.Info("Starting event listener")
	return subscriber.SubscribeToAuctionEvents(ctx, el.handleEvent)
}

func (el *EventListener) handleEvent(event *domain.AuctionEvent) error {
	el.log.Debug("Handling auction event", "type", event.Type, "auction_id", event.AuctionID)

	switch event.Type {
	case domain.EventBid, domain.EventClosed:
		return el.broadcaster.Publish(context.Background(), event)
	}

	return fmt.Errorf("unknown event type %q", event.Type)
}

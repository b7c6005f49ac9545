package websocket

import (
	"context"
	"sync"

	"live-auction/internal/domain"
	"live-auction/internal/metrics"
	"live-auction/pkg/logger"
)

var _ domain.Broadcaster = (*Hub)(nil)

// topic holds the subscribers of one auction. publishMu keeps deliveries
// for the auction in publish order.
type topic struct {
	publishMu   sync.Mutex
	subscribers map[string]domain.Subscriber
}

// Hub fans auction events out to the subscribers of each auction.
// Delivery never blocks: a subscriber that cannot take an event is
// skipped and the event counted as dropped.
type Hub struct {
	mutex   sync.RWMutex
	topics  map[string]*topic // auctionID -> topic
	metrics *metrics.Metrics
	log     logger.Logger
}

func NewHub(metrics *metrics.Metrics, log logger.Logger) *Hub {
	return &Hub{
		topics:  make(map[string]*topic),
		metrics: metrics,
		log:     log,
	}
}

func (h *Hub) Subscribe(auctionID string, sub domain.Subscriber) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	t, ok := h.topics[auctionID]
	if !ok {
		t = &topic{subscribers: make(map[string]domain.Subscriber)}
		h.topics[auctionID] = t
	}
	if _, exists := t.subscribers[sub.ID()]; !exists {
		h.metrics.SubscriberAdded()
	}
	t.subscribers[sub.ID()] = sub

	h.log.Debug("Subscriber registered", "subscriber_id", sub.ID(), "auction_id", auctionID)
}

// Unsubscribe is a no-op for unknown subscribers.
func (h *Hub) Unsubscribe(auctionID string, sub domain.Subscriber) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	t, ok := h.topics[auctionID]
	if !ok {
		return
	}
	if _, exists := t.subscribers[sub.ID()]; !exists {
		return
	}

	delete(t.subscribers, sub.ID())
	h.metrics.SubscriberRemoved()
	if len(t.subscribers) == 0 {
		delete(h.topics, auctionID)
	}

	h.log.Debug("Subscriber unregistered", "subscriber_id", sub.ID(), "auction_id", auctionID)
}

// Publish delivers event to a snapshot of the auction's subscribers. It
// always returns nil; failed deliveries are logged and counted.
func (h *Hub) Publish(ctx context.Context, event *domain.AuctionEvent) error {
	h.mutex.RLock()
	t, ok := h.topics[event.AuctionID]
	h.mutex.RUnlock()
	if !ok {
		return nil
	}

	t.publishMu.Lock()
	defer t.publishMu.Unlock()

	for _, sub := range h.snapshot(t) {
		if err := sub.Deliver(event); err != nil {
			h.metrics.ObserveDropped()
			h.log.Warn("Failed to deliver event", "subscriber_id", sub.ID(),
				"auction_id", event.AuctionID, "type", event.Type, "error", err)
		}
	}
	return nil
}

// SubscriberCount returns the number of live subscribers of an auction.
func (h *Hub) SubscriberCount(auctionID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if t, ok := h.topics[auctionID]; ok {
		return len(t.subscribers)
	}
	return 0
}

func (h *Hub) snapshot(t *topic) []domain.Subscriber {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	subs := make([]domain.Subscriber, 0, len(t.subscribers))
	for _, sub := range t.subscribers {
		subs = append(subs, sub)
	}
	return subs
}

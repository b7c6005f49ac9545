package websocket

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"live-auction/internal/domain"
	"live-auction/internal/metrics"
	"live-auction/pkg/logger"
)

type recordingSubscriber struct {
	id     string
	mu     sync.Mutex
	events []*domain.AuctionEvent
	err    error
}

func (s *recordingSubscriber) ID() string { return s.id }

func (s *recordingSubscriber) Deliver(event *domain.AuctionEvent) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSubscriber) received() []*domain.AuctionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.AuctionEvent(nil), s.events...)
}

func metricValue(t *testing.T, m *metrics.Metrics, name string) float64 {
	t.Helper()

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		metric := family.GetMetric()[0]
		if metric.GetCounter() != nil {
			return metric.GetCounter().GetValue()
		}
		return metric.GetGauge().GetValue()
	}
	return 0
}

func bidEvent(auctionID string, sequence int) *domain.AuctionEvent {
	return domain.NewBidEvent(&domain.Bid{AuctionID: auctionID, Sequence: sequence})
}

func TestHub_DeliversOnlyToAuctionSubscribers(t *testing.T) {
	hub := NewHub(metrics.New(), logger.NewNop())
	a := &recordingSubscriber{id: "a"}
	b := &recordingSubscriber{id: "b"}
	other := &recordingSubscriber{id: "other"}

	hub.Subscribe("auction_1", a)
	hub.Subscribe("auction_1", b)
	hub.Subscribe("auction_2", other)

	require.NoError(t, hub.Publish(context.Background(), bidEvent("auction_1", 1)))

	require.Len(t, a.received(), 1)
	require.Len(t, b.received(), 1)
	require.Empty(t, other.received())
}

func TestHub_PreservesPublishOrder(t *testing.T) {
	hub := NewHub(metrics.New(), logger.NewNop())
	sub := &recordingSubscriber{id: "viewer"}
	hub.Subscribe("auction_1", sub)

	for i := 1; i <= 50; i++ {
		require.NoError(t, hub.Publish(context.Background(), bidEvent("auction_1", i)))
	}

	events := sub.received()
	require.Len(t, events, 50)
	for i, event := range events {
		require.Equal(t, i+1, event.Bid.Sequence)
	}
}

func TestHub_FailingSubscriberDoesNotAffectOthers(t *testing.T) {
	m := metrics.New()
	hub := NewHub(m, logger.NewNop())
	slow := &recordingSubscriber{id: "slow", err: ErrSendBufferFull}
	healthy := &recordingSubscriber{id: "healthy"}
	hub.Subscribe("auction_1", slow)
	hub.Subscribe("auction_1", healthy)

	require.NoError(t, hub.Publish(context.Background(), bidEvent("auction_1", 1)))

	require.Len(t, healthy.received(), 1)
	require.Equal(t, 1.0, metricValue(t, m, "auction_fanout_dropped_total"))
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub(metrics.New(), logger.NewNop())
	sub := &recordingSubscriber{id: "viewer"}

	hub.Subscribe("auction_1", sub)
	require.Equal(t, 1, hub.SubscriberCount("auction_1"))
	require.Equal(t, 1.0, metricValue(t, hub.metrics, "auction_subscribers"))

	hub.Unsubscribe("auction_1", sub)
	hub.Unsubscribe("auction_1", sub)
	require.Equal(t, 0, hub.SubscriberCount("auction_1"))
	require.Equal(t, 0.0, metricValue(t, hub.metrics, "auction_subscribers"))

	require.NoError(t, hub.Publish(context.Background(), bidEvent("auction_1", 1)))
	require.Empty(t, sub.received())
}

func TestHub_ConcurrentSubscribeAndPublish(t *testing.T) {
	hub := NewHub(metrics.New(), logger.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		sub := &recordingSubscriber{id: fmt.Sprintf("viewer-%d", i)}
		go func() {
			defer wg.Done()
			hub.Subscribe("auction_1", sub)
			hub.Unsubscribe("auction_1", sub)
		}()
		go func(i int) {
			defer wg.Done()
			_ = hub.Publish(context.Background(), bidEvent("auction_1", i))
		}(i)
	}
	wg.Wait()

	require.Equal(t, 0, hub.SubscriberCount("auction_1"))
}

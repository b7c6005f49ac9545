package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"live-auction/internal/clock"
	"live-auction/internal/domain"
	"live-auction/internal/infrastructure/memory"
	"live-auction/internal/metrics"
	"live-auction/pkg/logger"
)

var start = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*domain.AuctionEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event *domain.AuctionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) ofType(t domain.EventType) []*domain.AuctionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []*domain.AuctionEvent
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	store     *memory.AuctionStore
	clock     *clock.Fake
	publisher *recordingPublisher
	metrics   *metrics.Metrics
	manager   *AuctionManager
	bids      *BidService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:     memory.NewAuctionStore(),
		clock:     clock.NewFake(start),
		publisher: &recordingPublisher{},
		metrics:   metrics.New(),
	}
	log := logger.NewNop()
	f.manager = NewAuctionManager(f.store, NewAuctionLocks(), f.clock, f.publisher, f.metrics, d("50"), log)
	f.bids = NewBidService(f.manager, 64, log)
	return f
}

// createAuction lists an auction with the given current bid that ends in one minute.
func (f *fixture) createAuction(t *testing.T, current string) *domain.Auction {
	t.Helper()

	auction, err := f.manager.CreateAuction(context.Background(), domain.NewAuction{
		Description: "Vintage record player",
		StartingBid: d(current),
		EndTime:     f.clock.Now().Add(time.Minute),
	})
	require.NoError(t, err)
	return auction
}

func (f *fixture) bid(auctionID, name, amount string) (*domain.Bid, error) {
	return f.bids.PlaceBid(context.Background(), domain.BidRequest{
		AuctionID:  auctionID,
		BidderName: name,
		Amount:     d(amount),
	})
}

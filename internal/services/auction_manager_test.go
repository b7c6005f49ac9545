package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-auction/internal/domain"
)

func TestCreateAuction_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  domain.NewAuction
	}{
		{"missing description", domain.NewAuction{StartingBid: d("10"), EndTime: start.Add(time.Hour)}},
		{"negative starting bid", domain.NewAuction{Description: "x", StartingBid: d("-1"), EndTime: start.Add(time.Hour)}},
		{"starting bid precision", domain.NewAuction{Description: "x", StartingBid: d("1.001"), EndTime: start.Add(time.Hour)}},
		{"negative increment", domain.NewAuction{Description: "x", StartingBid: d("1"), MinIncrement: d("-5"), EndTime: start.Add(time.Hour)}},
		{"end time in the past", domain.NewAuction{Description: "x", StartingBid: d("1"), EndTime: start.Add(-time.Second)}},
		{"end time now", domain.NewAuction{Description: "x", StartingBid: d("1"), EndTime: start}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.manager.CreateAuction(context.Background(), tt.req)
			require.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestCreateAuction(t *testing.T) {
	f := newFixture(t)

	auction, err := f.manager.CreateAuction(context.Background(), domain.NewAuction{
		Description: "  Signed poster ",
		StartingBid: d("100"),
		EndTime:     start.Add(time.Hour),
	})
	require.NoError(t, err)
	require.Equal(t, "Signed poster", auction.Description)
	require.Equal(t, domain.AuctionOpen, auction.Status)
	require.True(t, d("100").Equal(auction.CurrentBid))
	require.True(t, d("150").Equal(f.manager.MinimumBid(auction)))
	require.True(t, start.Equal(auction.CreatedAt))
}

func TestGetAuction_ClosesOverdueAuction(t *testing.T) {
	f := newFixture(t)
	auction := f.createAuction(t, "100")

	got, err := f.manager.GetAuction(context.Background(), auction.ID)
	require.NoError(t, err)
	require.Equal(t, domain.AuctionOpen, got.Status)
	require.Empty(t, f.publisher.ofType(domain.EventClosed))

	f.clock.Advance(2 * time.Minute)
	got, err = f.manager.GetAuction(context.Background(), auction.ID)
	require.NoError(t, err)
	require.Equal(t, domain.AuctionClosed, got.Status)
	require.NotNil(t, got.ClosedAt)
	require.True(t, f.clock.Now().Equal(*got.ClosedAt))

	_, err = f.manager.GetAuction(context.Background(), auction.ID)
	require.NoError(t, err)
	require.Len(t, f.publisher.ofType(domain.EventClosed), 1)
}

func TestRequestClose(t *testing.T) {
	f := newFixture(t)
	auction := f.createAuction(t, "100")

	// Before the deadline a close request leaves the auction open.
	got, err := f.manager.RequestClose(context.Background(), auction.ID)
	require.NoError(t, err)
	require.Equal(t, domain.AuctionOpen, got.Status)
	require.Empty(t, f.publisher.ofType(domain.EventClosed))

	f.clock.Advance(time.Minute)
	first, err := f.manager.RequestClose(context.Background(), auction.ID)
	require.NoError(t, err)
	require.Equal(t, domain.AuctionClosed, first.Status)

	f.clock.Advance(time.Minute)
	second, err := f.manager.RequestClose(context.Background(), auction.ID)
	require.NoError(t, err)
	require.Equal(t, domain.AuctionClosed, second.Status)
	require.True(t, first.ClosedAt.Equal(*second.ClosedAt))

	require.Len(t, f.publisher.ofType(domain.EventClosed), 1)
}

func TestRequestClose_UnknownAuction(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.RequestClose(context.Background(), "auction_missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExpireDue_ConcurrentTriggersEmitOnce(t *testing.T) {
	f := newFixture(t)
	auction := f.createAuction(t, "100")
	f.clock.Advance(time.Hour)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		closed int
	)
	for i := 0; i < 10; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			n, err := f.manager.ExpireDue(context.Background())
			assert.NoError(t, err)
			mu.Lock()
			closed += n
			mu.Unlock()
		}()
		go func() {
			defer wg.Done()
			_, _ = f.manager.GetAuction(context.Background(), auction.ID)
		}()
		go func() {
			defer wg.Done()
			_, _ = f.manager.RequestClose(context.Background(), auction.ID)
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, closed, 1)
	events := f.publisher.ofType(domain.EventClosed)
	require.Len(t, events, 1)
	require.Equal(t, auction.ID, events[0].AuctionID)
	require.Equal(t, domain.AuctionClosed, events[0].Auction.Status)
}

func TestExpireDue_OnlyClosesDueAuctions(t *testing.T) {
	f := newFixture(t)
	soon := f.createAuction(t, "100")
	later, err := f.manager.CreateAuction(context.Background(), domain.NewAuction{
		Description: "Later",
		StartingBid: decimal.NewFromInt(10),
		EndTime:     start.Add(time.Hour),
	})
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	closed, err := f.manager.ExpireDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, closed)

	got, err := f.store.GetAuction(context.Background(), soon.ID)
	require.NoError(t, err)
	require.Equal(t, domain.AuctionClosed, got.Status)

	got, err = f.store.GetAuction(context.Background(), later.ID)
	require.NoError(t, err)
	require.Equal(t, domain.AuctionOpen, got.Status)

	closed, err = f.manager.ExpireDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, closed)
}

func TestListAuctions_ReportsExpiredAsClosed(t *testing.T) {
	f := newFixture(t)
	f.createAuction(t, "100")
	f.clock.Advance(time.Minute)

	auctions, err := f.manager.ListAuctions(context.Background())
	require.NoError(t, err)
	require.Len(t, auctions, 1)
	require.Equal(t, domain.AuctionClosed, auctions[0].Status)
	require.Len(t, f.publisher.ofType(domain.EventClosed), 1)
}

func TestClosedEventFollowsLastBid(t *testing.T) {
	f := newFixture(t)
	auction := f.createAuction(t, "100")

	_, err := f.bid(auction.ID, "ana", "150")
	require.NoError(t, err)
	_, err = f.bid(auction.ID, "bruno", "200")
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	_, err = f.manager.ExpireDue(context.Background())
	require.NoError(t, err)

	f.publisher.mu.Lock()
	defer f.publisher.mu.Unlock()
	require.Len(t, f.publisher.events, 3)
	require.Equal(t, domain.EventClosed, f.publisher.events[2].Type)
	require.True(t, d("200").Equal(f.publisher.events[2].Auction.CurrentBid))
	require.Equal(t, 2, f.publisher.events[2].Auction.BidCount)
}

// Package storetest holds behavioural tests every domain.AuctionStore
// implementation must pass.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-auction/internal/domain"
	"live-auction/pkg/utils"
)

// Factory returns an empty store for one subtest.
type Factory func(t *testing.T) domain.AuctionStore

var base = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// NewTestAuction returns an open auction ending one hour after base.
func NewTestAuction(current string) *domain.Auction {
	return &domain.Auction{
		ID:          utils.GenerateID("auction"),
		Description: "Vintage record player",
		StartingBid: amount(current),
		CurrentBid:  amount(current),
		EndTime:     base.Add(time.Hour),
		Status:      domain.AuctionOpen,
		CreatedAt:   base,
		UpdatedAt:   base,
	}
}

func newBid(name, value string, at time.Time) *domain.Bid {
	return &domain.Bid{
		ID:          utils.GenerateID("bid"),
		BidderName:  name,
		Amount:      amount(value),
		SubmittedAt: at,
		AcceptedAt:  at,
	}
}

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("get_unknown_auction", func(t *testing.T) {
		store := newStore(t)
		_, err := store.GetAuction(ctx, "auction_missing")
		require.ErrorIs(t, err, domain.ErrNotFound)

		_, err = store.AppendBid(ctx, "auction_missing", newBid("ana", "10", base), nil)
		require.ErrorIs(t, err, domain.ErrNotFound)

		_, _, err = store.CloseAuction(ctx, "auction_missing", base)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("create_and_get", func(t *testing.T) {
		store := newStore(t)
		auction := NewTestAuction("100")
		auction.MinIncrement = amount("5")
		require.NoError(t, store.CreateAuction(ctx, auction))

		got, err := store.GetAuction(ctx, auction.ID)
		require.NoError(t, err)
		require.Equal(t, auction.ID, got.ID)
		require.Equal(t, auction.Description, got.Description)
		require.True(t, amount("100").Equal(got.CurrentBid))
		require.True(t, amount("5").Equal(got.MinIncrement))
		require.True(t, auction.EndTime.Equal(got.EndTime))
		require.Equal(t, domain.AuctionOpen, got.Status)
		require.Nil(t, got.ClosedAt)
		require.Empty(t, got.Bids)
	})

	t.Run("append_bids_newest_first", func(t *testing.T) {
		store := newStore(t)
		auction := NewTestAuction("100")
		require.NoError(t, store.CreateAuction(ctx, auction))

		first := newBid("ana", "150", base.Add(time.Minute))
		updated, err := store.AppendBid(ctx, auction.ID, first, nil)
		require.NoError(t, err)
		require.Equal(t, 1, first.Sequence)
		require.True(t, amount("150").Equal(updated.CurrentBid))

		second := newBid("bruno", "200.50", base.Add(2*time.Minute))
		_, err = store.AppendBid(ctx, auction.ID, second, nil)
		require.NoError(t, err)
		require.Equal(t, 2, second.Sequence)

		got, err := store.GetAuction(ctx, auction.ID)
		require.NoError(t, err)
		require.Equal(t, 2, got.BidCount)
		require.True(t, amount("200.50").Equal(got.CurrentBid))
		require.Len(t, got.Bids, 2)
		require.Equal(t, "bruno", got.Bids[0].BidderName)
		require.Equal(t, 2, got.Bids[0].Sequence)
		require.Equal(t, "ana", got.Bids[1].BidderName)
		require.True(t, second.AcceptedAt.Equal(got.Bids[0].AcceptedAt))
	})

	t.Run("guard_rejection_leaves_state_untouched", func(t *testing.T) {
		store := newStore(t)
		auction := NewTestAuction("100")
		require.NoError(t, store.CreateAuction(ctx, auction))

		rejected := errors.New("rejected by guard")
		var seen decimal.Decimal
		_, err := store.AppendBid(ctx, auction.ID, newBid("ana", "500", base), func(current *domain.Auction) error {
			seen = current.CurrentBid
			return rejected
		})
		require.ErrorIs(t, err, rejected)
		require.True(t, amount("100").Equal(seen))

		got, err := store.GetAuction(ctx, auction.ID)
		require.NoError(t, err)
		require.Equal(t, 0, got.BidCount)
		require.Empty(t, got.Bids)
		require.True(t, amount("100").Equal(got.CurrentBid))
	})

	t.Run("current_bid_never_decreases", func(t *testing.T) {
		store := newStore(t)
		auction := NewTestAuction("100")
		require.NoError(t, store.CreateAuction(ctx, auction))

		_, err := store.AppendBid(ctx, auction.ID, newBid("ana", "99", base), nil)
		require.ErrorIs(t, err, domain.ErrBidTooLow)
	})

	t.Run("close_is_idempotent", func(t *testing.T) {
		store := newStore(t)
		auction := NewTestAuction("100")
		require.NoError(t, store.CreateAuction(ctx, auction))

		closedAt := base.Add(time.Hour)
		first, transitioned, err := store.CloseAuction(ctx, auction.ID, closedAt)
		require.NoError(t, err)
		require.True(t, transitioned)
		require.Equal(t, domain.AuctionClosed, first.Status)
		require.NotNil(t, first.ClosedAt)
		require.True(t, closedAt.Equal(*first.ClosedAt))

		second, transitioned, err := store.CloseAuction(ctx, auction.ID, closedAt.Add(time.Minute))
		require.NoError(t, err)
		require.False(t, transitioned)
		require.Equal(t, domain.AuctionClosed, second.Status)
		require.True(t, closedAt.Equal(*second.ClosedAt))
	})

	t.Run("closed_auction_rejects_bids", func(t *testing.T) {
		store := newStore(t)
		auction := NewTestAuction("100")
		require.NoError(t, store.CreateAuction(ctx, auction))

		_, _, err := store.CloseAuction(ctx, auction.ID, base)
		require.NoError(t, err)

		guardCalled := false
		_, err = store.AppendBid(ctx, auction.ID, newBid("ana", "1000000", base), func(*domain.Auction) error {
			guardCalled = true
			return nil
		})
		require.ErrorIs(t, err, domain.ErrAlreadyClosed)
		require.False(t, guardCalled)
	})

	t.Run("concurrent_close_transitions_once", func(t *testing.T) {
		store := newStore(t)
		auction := NewTestAuction("100")
		require.NoError(t, store.CreateAuction(ctx, auction))

		const workers = 8
		var (
			wg          sync.WaitGroup
			mu          sync.Mutex
			transitions int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, transitioned, err := store.CloseAuction(ctx, auction.ID, base)
				assert.NoError(t, err)
				if transitioned {
					mu.Lock()
					transitions++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		require.Equal(t, 1, transitions)
	})

	t.Run("concurrent_appends_are_serialized", func(t *testing.T) {
		store := newStore(t)
		auction := NewTestAuction("0")
		require.NoError(t, store.CreateAuction(ctx, auction))

		increment := amount("10")
		const workers = 16
		var wg sync.WaitGroup
		for i := 1; i <= workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				bid := newBid("bidder", decimal.NewFromInt(int64(i*10)).String(), base)
				_, _ = store.AppendBid(ctx, auction.ID, bid, func(current *domain.Auction) error {
					if bid.Amount.LessThan(current.CurrentBid.Add(increment)) {
						return domain.ErrBidTooLow
					}
					return nil
				})
			}(i)
		}
		wg.Wait()

		got, err := store.GetAuction(ctx, auction.ID)
		require.NoError(t, err)
		require.Equal(t, len(got.Bids), got.BidCount)
		require.NotEmpty(t, got.Bids)
		require.True(t, got.Bids[0].Amount.Equal(got.CurrentBid))

		// Oldest to newest, every accepted bid cleared the increment over its predecessor.
		previous := decimal.Zero
		for i := len(got.Bids) - 1; i >= 0; i-- {
			bid := got.Bids[i]
			require.Equal(t, len(got.Bids)-i, bid.Sequence)
			require.True(t, bid.Amount.GreaterThanOrEqual(previous.Add(increment)),
				"bid %s accepted after %s", bid.Amount, previous)
			previous = bid.Amount
		}
	})

	t.Run("list_and_expired", func(t *testing.T) {
		store := newStore(t)

		due := NewTestAuction("10")
		due.EndTime = base.Add(-time.Minute)
		upcoming := NewTestAuction("10")
		upcoming.EndTime = base.Add(time.Hour)
		alreadyClosed := NewTestAuction("10")
		alreadyClosed.EndTime = base.Add(-time.Hour)

		for _, a := range []*domain.Auction{due, upcoming, alreadyClosed} {
			require.NoError(t, store.CreateAuction(ctx, a))
		}
		_, _, err := store.CloseAuction(ctx, alreadyClosed.ID, base)
		require.NoError(t, err)

		all, err := store.ListAuctions(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		for _, a := range all {
			require.Empty(t, a.Bids)
		}

		expired, err := store.ListExpiredAuctions(ctx, base)
		require.NoError(t, err)
		require.Equal(t, []string{due.ID}, expired)

		// An auction is due exactly at its end time.
		expired, err = store.ListExpiredAuctions(ctx, upcoming.EndTime)
		require.NoError(t, err)
		require.ElementsMatch(t, []string{due.ID, upcoming.ID}, expired)
	})
}

package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"live-auction/internal/domain"
	"live-auction/internal/metrics"
	"live-auction/pkg/logger"
	"live-auction/pkg/utils"
)

// AuctionManager owns the auction lifecycle: creation, reads with
// on-demand expiry, and the OPEN to CLOSED transition.
type AuctionManager struct {
	store        domain.AuctionStore
	locks        *AuctionLocks
	clock        domain.Clock
	eventPub     domain.EventPublisher
	metrics      *metrics.Metrics
	minIncrement decimal.Decimal
	log          logger.Logger
}

func NewAuctionManager(
	store domain.AuctionStore,
	locks *AuctionLocks,
	clock domain.Clock,
	eventPub domain.EventPublisher,
	metrics *metrics.Metrics,
	minIncrement decimal.Decimal,
	log logger.Logger,
) *AuctionManager {
	return &AuctionManager{
		store:        store,
		locks:        locks,
		clock:        clock,
		eventPub:     eventPub,
		metrics:      metrics,
		minIncrement: minIncrement,
		log:          log,
	}
}

func (am *AuctionManager) CreateAuction(ctx context.Context, req domain.NewAuction) (*domain.Auction, error) {
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", domain.ErrInvalidInput)
	}
	if req.StartingBid.IsNegative() || !req.StartingBid.Equal(req.StartingBid.Truncate(domain.MoneyPrecision)) {
		return nil, fmt.Errorf("%w: invalid starting bid %s", domain.ErrInvalidInput, req.StartingBid)
	}
	if !req.MinIncrement.IsZero() {
		if err := domain.ValidateAmount(req.MinIncrement); err != nil {
			return nil, fmt.Errorf("min increment: %w", err)
		}
	}

	now := am.clock.Now()
	if !req.EndTime.After(now) {
		return nil, fmt.Errorf("%w: end time must be in the future", domain.ErrInvalidInput)
	}

	auction := &domain.Auction{
		ID:           utils.GenerateID("auction"),
		Description:  description,
		StartingBid:  req.StartingBid,
		CurrentBid:   req.StartingBid,
		MinIncrement: req.MinIncrement,
		EndTime:      req.EndTime.UTC(),
		Status:       domain.AuctionOpen,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := am.store.CreateAuction(ctx, auction); err != nil {
		return nil, fmt.Errorf("create auction: %w", err)
	}

	am.log.Info("Auction created", "auction_id", auction.ID, "end_time", auction.EndTime)
	return auction, nil
}

// GetAuction returns the auction with its bid history. An open auction
// whose deadline has passed is closed before it is returned.
func (am *AuctionManager) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	auction, err := am.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if !auction.IsDue(am.clock.Now()) {
		return auction, nil
	}

	if err := am.closeWithLock(ctx, auctionID); err != nil {
		return nil, err
	}
	return am.store.GetAuction(ctx, auctionID)
}

func (am *AuctionManager) ListAuctions(ctx context.Context) ([]*domain.Auction, error) {
	auctions, err := am.store.ListAuctions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}

	now := am.clock.Now()
	for i, auction := range auctions {
		if !auction.IsDue(now) {
			continue
		}
		unlock := am.locks.Lock(auction.ID)
		closed, _, err := am.closeLocked(ctx, auction.ID)
		unlock()
		if err != nil {
			return nil, err
		}
		auctions[i] = closed
	}
	return auctions, nil
}

// RequestClose is the client-facing close trigger. It closes the auction
// only once its deadline has passed and always returns the current state.
func (am *AuctionManager) RequestClose(ctx context.Context, auctionID string) (*domain.Auction, error) {
	unlock := am.locks.Lock(auctionID)
	defer unlock()

	auction, err := am.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if !auction.IsDue(am.clock.Now()) {
		return auction, nil
	}

	if _, _, err := am.closeLocked(ctx, auctionID); err != nil {
		return nil, err
	}
	return am.store.GetAuction(ctx, auctionID)
}

// ExpireDue closes every open auction whose end time has passed and
// returns how many of them this call transitioned.
func (am *AuctionManager) ExpireDue(ctx context.Context) (int, error) {
	ids, err := am.store.ListExpiredAuctions(ctx, am.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("list expired auctions: %w", err)
	}

	closed := 0
	for _, id := range ids {
		unlock := am.locks.Lock(id)
		_, transitioned, err := am.closeLocked(ctx, id)
		unlock()
		if err != nil {
			am.log.Error("Failed to close expired auction", "auction_id", id, "error", err)
			continue
		}
		if transitioned {
			closed++
		}
	}
	return closed, nil
}

// MinimumBid is the smallest amount the next bid on auction may have.
func (am *AuctionManager) MinimumBid(auction *domain.Auction) decimal.Decimal {
	return domain.MinimumBid(auction, am.minIncrement)
}

func (am *AuctionManager) closeWithLock(ctx context.Context, auctionID string) error {
	unlock := am.locks.Lock(auctionID)
	defer unlock()

	_, _, err := am.closeLocked(ctx, auctionID)
	return err
}

// closeLocked must run inside the auction's critical section so the
// closed event is ordered after every bid event of the auction.
func (am *AuctionManager) closeLocked(ctx context.Context, auctionID string) (*domain.Auction, bool, error) {
	auction, transitioned, err := am.store.CloseAuction(ctx, auctionID, am.clock.Now())
	if err != nil {
		return nil, false, fmt.Errorf("close auction %s: %w", auctionID, err)
	}
	if !transitioned {
		return auction, false, nil
	}

	am.metrics.ObserveClose()
	am.log.Info("Auction closed", "auction_id", auctionID,
		"final_bid", auction.CurrentBid.StringFixed(domain.MoneyPrecision), "bid_count", auction.BidCount)

	if err := am.eventPub.Publish(ctx, domain.NewClosedEvent(auction)); err != nil {
		am.log.Error("Failed to publish closed event", "auction_id", auctionID, "error", err)
	}
	return auction, true, nil
}

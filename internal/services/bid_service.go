package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"live-auction/internal/domain"
	"live-auction/internal/metrics"
	"live-auction/pkg/logger"
	"live-auction/pkg/utils"
)

// BidService arbitrates bid submissions. It shares the per-auction locks,
// clock and publisher of its AuctionManager.
type BidService struct {
	auctionManager      *AuctionManager
	maxBidderNameLength int
	log                 logger.Logger
}

func NewBidService(auctionManager *AuctionManager, maxBidderNameLength int, log logger.Logger) *BidService {
	return &BidService{
		auctionManager:      auctionManager,
		maxBidderNameLength: maxBidderNameLength,
		log:                 log,
	}
}

// PlaceBid accepts the bid only when the auction is open, its deadline
// has not passed and the amount clears the current bid by the required
// increment. On acceptance a bid event is published before the auction's
// lock is released.
func (s *BidService) PlaceBid(ctx context.Context, req domain.BidRequest) (*domain.Bid, error) {
	am := s.auctionManager

	bid, err := s.newBid(req)
	if err != nil {
		am.metrics.ObserveBid(metrics.ResultInvalid)
		return nil, err
	}

	s.log.Debug("Placing bid", "auction_id", req.AuctionID, "bidder", bid.BidderName,
		"amount", bid.Amount.StringFixed(domain.MoneyPrecision))

	unlock := am.locks.Lock(req.AuctionID)
	defer unlock()

	expired := false
	_, err = am.store.AppendBid(ctx, req.AuctionID, bid, func(current *domain.Auction) error {
		now := am.clock.Now()
		if !now.Before(current.EndTime) {
			expired = true
			return fmt.Errorf("bid on %s after deadline: %w", current.ID, domain.ErrAlreadyClosed)
		}
		if !domain.MeetsMinimum(current, bid.Amount, am.minIncrement) {
			return &domain.BidTooLowError{Amount: bid.Amount, Minimum: am.MinimumBid(current)}
		}
		bid.AcceptedAt = now
		if bid.SubmittedAt.IsZero() {
			bid.SubmittedAt = now
		}
		return nil
	})

	if expired {
		if _, _, closeErr := am.closeLocked(ctx, req.AuctionID); closeErr != nil {
			s.log.Error("Failed to close expired auction", "auction_id", req.AuctionID, "error", closeErr)
		}
	}

	if err != nil {
		am.metrics.ObserveBid(rejectionResult(err))
		if !domain.IsRejection(err) {
			s.log.Error("Failed to append bid", "auction_id", req.AuctionID, "error", err)
		}
		return nil, err
	}

	am.metrics.ObserveBid(metrics.ResultAccepted)
	s.log.Info("Bid accepted", "auction_id", bid.AuctionID, "sequence", bid.Sequence,
		"bidder", bid.BidderName, "amount", bid.Amount.StringFixed(domain.MoneyPrecision))

	if err := am.eventPub.Publish(ctx, domain.NewBidEvent(bid)); err != nil {
		s.log.Error("Failed to publish bid event", "auction_id", bid.AuctionID, "error", err)
	}
	return bid, nil
}

func (s *BidService) newBid(req domain.BidRequest) (*domain.Bid, error) {
	name := strings.TrimSpace(req.BidderName)
	if name == "" {
		return nil, fmt.Errorf("%w: bidder name is required", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(name) > s.maxBidderNameLength {
		return nil, fmt.Errorf("%w: bidder name longer than %d characters", domain.ErrInvalidInput, s.maxBidderNameLength)
	}
	if err := domain.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}

	var submittedAt = req.SubmittedAt
	if !submittedAt.IsZero() {
		submittedAt = submittedAt.UTC()
	}

	return &domain.Bid{
		ID:          utils.GenerateID("bid"),
		BidderName:  name,
		Amount:      req.Amount,
		SubmittedAt: submittedAt,
	}, nil
}

func rejectionResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrBidTooLow):
		return metrics.ResultTooLow
	case errors.Is(err, domain.ErrAlreadyClosed):
		return metrics.ResultClosed
	case errors.Is(err, domain.ErrNotFound):
		return metrics.ResultNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return metrics.ResultInvalid
	default:
		return metrics.ResultError
	}
}

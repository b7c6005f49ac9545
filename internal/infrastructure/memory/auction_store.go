package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"live-auction/internal/domain"
)

var _ domain.AuctionStore = (*AuctionStore)(nil)

// auctionRecord guards one auction and its history. Bids are kept oldest
// first and reversed on read.
type auctionRecord struct {
	mu      sync.RWMutex
	auction domain.Auction
	bids    []domain.Bid
}

// AuctionStore is a concurrency-safe in-memory implementation of
// domain.AuctionStore. The outer lock only guards the index; each auction
// has its own lock so writers on different auctions never contend.
type AuctionStore struct {
	mu       sync.RWMutex
	auctions map[string]*auctionRecord
}

func NewAuctionStore() *AuctionStore {
	return &AuctionStore{
		auctions: make(map[string]*auctionRecord),
	}
}

func (s *AuctionStore) record(auctionID string) (*auctionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.auctions[auctionID]
	if !ok {
		return nil, fmt.Errorf("auction %s: %w", auctionID, domain.ErrNotFound)
	}
	return rec, nil
}

func (s *AuctionStore) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.auctions[auction.ID]; exists {
		return fmt.Errorf("create auction %s: duplicate id", auction.ID)
	}

	rec := &auctionRecord{auction: *auction.Clone()}
	rec.auction.Bids = nil
	s.auctions[auction.ID] = rec
	return nil
}

func (s *AuctionStore) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	rec, err := s.record(auctionID)
	if err != nil {
		return nil, err
	}

	rec.mu.RLock()
	defer rec.mu.RUnlock()

	auction := rec.auction.Clone()
	auction.Bids = make([]domain.Bid, 0, len(rec.bids))
	for i := len(rec.bids) - 1; i >= 0; i-- {
		auction.Bids = append(auction.Bids, rec.bids[i])
	}
	return auction, nil
}

func (s *AuctionStore) ListAuctions(ctx context.Context) ([]*domain.Auction, error) {
	s.mu.RLock()
	records := make([]*auctionRecord, 0, len(s.auctions))
	for _, rec := range s.auctions {
		records = append(records, rec)
	}
	s.mu.RUnlock()

	auctions := make([]*domain.Auction, 0, len(records))
	for _, rec := range records {
		rec.mu.RLock()
		auctions = append(auctions, rec.auction.Clone())
		rec.mu.RUnlock()
	}

	sort.Slice(auctions, func(i, j int) bool {
		if auctions[i].EndTime.Equal(auctions[j].EndTime) {
			return auctions[i].ID < auctions[j].ID
		}
		return auctions[i].EndTime.Before(auctions[j].EndTime)
	})
	return auctions, nil
}

func (s *AuctionStore) AppendBid(ctx context.Context, auctionID string, bid *domain.Bid, guard domain.BidGuard) (*domain.Auction, error) {
	rec, err := s.record(auctionID)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.auction.IsClosed() {
		return nil, fmt.Errorf("append bid to %s: %w", auctionID, domain.ErrAlreadyClosed)
	}
	if guard != nil {
		if err := guard(rec.auction.Clone()); err != nil {
			return nil, err
		}
	}
	if bid.Amount.LessThan(rec.auction.CurrentBid) {
		return nil, &domain.BidTooLowError{Amount: bid.Amount, Minimum: rec.auction.CurrentBid}
	}

	bid.AuctionID = auctionID
	bid.Sequence = rec.auction.BidCount + 1
	rec.bids = append(rec.bids, *bid)

	rec.auction.CurrentBid = bid.Amount
	rec.auction.BidCount = bid.Sequence
	rec.auction.UpdatedAt = bid.AcceptedAt

	return rec.auction.Clone(), nil
}

func (s *AuctionStore) CloseAuction(ctx context.Context, auctionID string, closedAt time.Time) (*domain.Auction, bool, error) {
	rec, err := s.record(auctionID)
	if err != nil {
		return nil, false, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.auction.IsClosed() {
		return rec.auction.Clone(), false, nil
	}

	rec.auction.Status = domain.AuctionClosed
	rec.auction.ClosedAt = &closedAt
	rec.auction.UpdatedAt = closedAt

	return rec.auction.Clone(), true, nil
}

func (s *AuctionStore) ListExpiredAuctions(ctx context.Context, now time.Time) ([]string, error) {
	s.mu.RLock()
	records := make([]*auctionRecord, 0, len(s.auctions))
	for _, rec := range s.auctions {
		records = append(records, rec)
	}
	s.mu.RUnlock()

	var ids []string
	for _, rec := range records {
		rec.mu.RLock()
		if rec.auction.IsDue(now) {
			ids = append(ids, rec.auction.ID)
		}
		rec.mu.RUnlock()
	}
	sort.Strings(ids)
	return ids, nil
}

package domain

import (
	"context"
	"time"
)

// Clock is the authoritative source of time for deadlines and timestamps.
type Clock interface {
	Now() time.Time
}

// BidGuard is evaluated by AuctionStore.AppendBid against the locked,
// current state of an open auction. A non-nil error aborts the append.
type BidGuard func(current *Auction) error

// AuctionStore persists auctions and their bid history. Mutations on one
// auction are serialized; readers see the state before or after a
// mutation, never a mix.
type AuctionStore interface {
	CreateAuction(ctx context.Context, auction *Auction) error
	// GetAuction returns the auction with its bids, newest first.
	GetAuction(ctx context.Context, auctionID string) (*Auction, error)
	// ListAuctions returns auction headers without bids.
	ListAuctions(ctx context.Context) ([]*Auction, error)
	// AppendBid assigns bid.Sequence, stores the bid and moves CurrentBid
	// to bid.Amount atomically. The returned auction carries no bids.
	AppendBid(ctx context.Context, auctionID string, bid *Bid, guard BidGuard) (*Auction, error)
	// CloseAuction is idempotent. transitioned is true only for the call
	// that moved the auction from open to closed.
	CloseAuction(ctx context.Context, auctionID string, closedAt time.Time) (auction *Auction, transitioned bool, err error)
	// ListExpiredAuctions returns ids of open auctions whose end time is at or before now.
	ListExpiredAuctions(ctx context.Context, now time.Time) ([]string, error)
}

// Event interfaces
type EventPublisher interface {
	Publish(ctx context.Context, event *AuctionEvent) error
}

type EventSubscriber interface {
	SubscribeToAuctionEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event *AuctionEvent) error

// Subscriber is one live viewer of an auction topic. Deliver must not block.
type Subscriber interface {
	ID() string
	Deliver(event *AuctionEvent) error
}

// Broadcaster fans events out to the subscribers of an auction.
type Broadcaster interface {
	EventPublisher
	Subscribe(auctionID string, sub Subscriber)
	Unsubscribe(auctionID string, sub Subscriber)
}

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

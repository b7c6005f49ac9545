package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Auction struct {
	ID           string          `json:"id"`
	Description  string          `json:"description"`
	StartingBid  decimal.Decimal `json:"starting_bid"`
	CurrentBid   decimal.Decimal `json:"current_bid"`
	MinIncrement decimal.Decimal `json:"min_increment"`
	EndTime      time.Time       `json:"end_time"`
	Status       AuctionStatus   `json:"status"`
	ClosedAt     *time.Time      `json:"closed_at,omitempty"`
	BidCount     int             `json:"bid_count"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	// Bids is newest first. Only filled by detail reads.
	Bids []Bid `json:"bids,omitempty"`
}

func (a *Auction) IsClosed() bool {
	return a.Status == AuctionClosed
}

// IsDue reports whether an open auction has reached its end time.
func (a *Auction) IsDue(now time.Time) bool {
	return a.Status == AuctionOpen && !now.Before(a.EndTime)
}

// Clone returns a deep copy safe to hand to callers.
func (a *Auction) Clone() *Auction {
	c := *a
	if a.ClosedAt != nil {
		closedAt := *a.ClosedAt
		c.ClosedAt = &closedAt
	}
	if a.Bids != nil {
		c.Bids = append([]Bid(nil), a.Bids...)
	}
	return &c
}

type AuctionStatus int

const (
	AuctionOpen AuctionStatus = iota
	AuctionClosed
)

func (s AuctionStatus) String() string {
	switch s {
	case AuctionOpen:
		return "open"
	case AuctionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

func (s AuctionStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *AuctionStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "open":
		*s = AuctionOpen
	case "closed":
		*s = AuctionClosed
	default:
		return fmt.Errorf("unknown auction status %q", str)
	}
	return nil
}

// Bid is identified within its auction by Sequence, which starts at 1.
type Bid struct {
	ID          string          `json:"id"`
	AuctionID   string          `json:"auction_id"`
	Sequence    int             `json:"sequence"`
	BidderName  string          `json:"bidder_name"`
	Amount      decimal.Decimal `json:"amount"`
	SubmittedAt time.Time       `json:"submitted_at"`
	AcceptedAt  time.Time       `json:"accepted_at"`
}

// BidRequest is a bid submission as received from a client.
type BidRequest struct {
	AuctionID   string
	BidderName  string
	Amount      decimal.Decimal
	SubmittedAt time.Time
}

// NewAuction holds the fields an operator supplies when listing an auction.
type NewAuction struct {
	Description  string
	StartingBid  decimal.Decimal
	MinIncrement decimal.Decimal
	EndTime      time.Time
}

type EventType string

const (
	EventBid    EventType = "bid"
	EventClosed EventType = "closed"
)

// AuctionEvent is what subscribers of an auction's topic receive.
type AuctionEvent struct {
	Type      EventType `json:"type"`
	AuctionID string    `json:"auction_id"`
	Bid       *Bid      `json:"bid,omitempty"`
	Auction   *Auction  `json:"auction,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBidEvent(bid *Bid) *AuctionEvent {
	b := *bid
	return &AuctionEvent{
		Type:      EventBid,
		AuctionID: bid.AuctionID,
		Bid:       &b,
		Timestamp: bid.AcceptedAt,
	}
}

func NewClosedEvent(auction *Auction) *AuctionEvent {
	final := auction.Clone()
	final.Bids = nil

	ts := auction.UpdatedAt
	if auction.ClosedAt != nil {
		ts = *auction.ClosedAt
	}
	return &AuctionEvent{
		Type:      EventClosed,
		AuctionID: auction.ID,
		Auction:   final,
		Timestamp: ts,
	}
}

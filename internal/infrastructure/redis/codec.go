package redis

import (
	"encoding/json"
	"fmt"

	"live-auction/internal/domain"
)

func encodeEvent(event *domain.AuctionEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", event.Type, err)
	}
	return data, nil
}

func decodeEvent(payload string) (*domain.AuctionEvent, error) {
	var event domain.AuctionEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	switch event.Type {
	case domain.EventBid:
		if event.Bid == nil {
			return nil, fmt.Errorf("invalid event format: bid event without bid")
		}
	case domain.EventClosed:
		if event.Auction == nil {
			return nil, fmt.Errorf("invalid event format: closed event without auction")
		}
	default:
		return nil, fmt.Errorf("invalid event format: unknown type %q", event.Type)
	}
	if event.AuctionID == "" {
		return nil, fmt.Errorf("invalid event format: missing auction id")
	}
	return &event, nil
}

package websocket

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"live-auction/internal/domain"
	"live-auction/pkg/logger"
)

type AuctionReader interface {
	GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error)
}

type BidPlacer interface {
	PlaceBid(ctx context.Context, req domain.BidRequest) (*domain.Bid, error)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Viewers connect from any origin
	},
}

// Handler upgrades viewers of an open auction and subscribes them to its
// events.
type Handler struct {
	auctions AuctionReader
	bids     BidPlacer
	hub      domain.Broadcaster
	opts     Options
	log      logger.Logger
}

func NewHandler(auctions AuctionReader, bids BidPlacer, hub domain.Broadcaster, opts Options, log logger.Logger) *Handler {
	return &Handler{
		auctions: auctions,
		bids:     bids,
		hub:      hub,
		opts:     opts,
		log:      log,
	}
}

func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	auctionID := mux.Vars(r)["auctionID"]

	auction, err := h.auctions.GetAuction(r.Context(), auctionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "auction not found", http.StatusNotFound)
			return
		}
		h.log.Error("Failed to load auction", "auction_id", auctionID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if auction.IsClosed() {
		h.log.Info("Rejected connection - auction has ended", "auction_id", auctionID)
		http.Error(w, "auction has already ended", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	c := NewConnection(conn, auctionID, h.opts, h.log)
	c.onClose = func() { h.hub.Unsubscribe(auctionID, c) }
	h.hub.Subscribe(auctionID, c)

	// The auction may have closed between the check above and Subscribe,
	// in which case the closed event was published before we joined. If the
	// hub already queued it, Deliver skips this copy.
	if latest, err := h.auctions.GetAuction(context.Background(), auctionID); err == nil && latest.IsClosed() {
		if err := c.Deliver(domain.NewClosedEvent(latest)); err != nil {
			h.log.Warn("Failed to deliver closed event", "connection_id", c.ID(),
				"auction_id", auctionID, "error", err)
		}
	}

	go c.writePump()
	go c.readPump(h.bids)
}

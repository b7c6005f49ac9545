package handlers

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"live-auction/internal/domain"
	"live-auction/pkg/logger"
)

//go:generate mockgen -source=auction_handler.go -destination=mock_auction_handler.go -package=handlers

type AuctionService interface {
	CreateAuction(ctx context.Context, req domain.NewAuction) (*domain.Auction, error)
	GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error)
	ListAuctions(ctx context.Context) ([]*domain.Auction, error)
	RequestClose(ctx context.Context, auctionID string) (*domain.Auction, error)
	MinimumBid(auction *domain.Auction) decimal.Decimal
}

type BidService interface {
	PlaceBid(ctx context.Context, req domain.BidRequest) (*domain.Bid, error)
}

type CreateAuctionRequest struct {
	Description  string          `json:"description"`
	StartingBid  decimal.Decimal `json:"starting_bid"`
	MinIncrement decimal.Decimal `json:"min_increment"`
	EndTime      time.Time       `json:"end_time"`
}

type PlaceBidRequest struct {
	BidderName  string          `json:"bidder_name"`
	Amount      decimal.Decimal `json:"amount"`
	SubmittedAt *time.Time      `json:"submitted_at,omitempty"`
}

// AuctionResponse adds the values a client needs to render a countdown
// and a bid form. RemainingSeconds is derived from the server clock.
type AuctionResponse struct {
	*domain.Auction
	MinimumBid       decimal.Decimal `json:"minimum_bid"`
	ServerTime       time.Time       `json:"server_time"`
	RemainingSeconds int64           `json:"remaining_seconds"`
}

type ErrorResponse struct {
	Error           string           `json:"error"`
	Reason          string           `json:"reason"`
	RequiredMinimum *decimal.Decimal `json:"required_minimum,omitempty"`
}

type AuctionHandler struct {
	auctions AuctionService
	bids     BidService
	clock    domain.Clock
	log      logger.Logger
}

func NewAuctionHandler(auctions AuctionService, bids BidService, clock domain.Clock, log logger.Logger) *AuctionHandler {
	return &AuctionHandler{
		auctions: auctions,
		bids:     bids,
		clock:    clock,
		log:      log,
	}
}

func (h *AuctionHandler) Register(g *echo.Group) {
	g.POST("/auctions", h.CreateAuction)
	g.GET("/auctions", h.ListAuctions)
	g.GET("/auctions/:id", h.GetAuction)
	g.POST("/auctions/:id/bids", h.PlaceBid)
	g.POST("/auctions/:id/close", h.CloseAuction)
}

func (h *AuctionHandler) CreateAuction(c echo.Context) error {
	var req CreateAuctionRequest
	if err := c.Bind(&req); err != nil {
		h.log.Debug("Failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Reason: "invalid_input"})
	}

	auction, err := h.auctions.CreateAuction(c.Request().Context(), domain.NewAuction{
		Description:  req.Description,
		StartingBid:  req.StartingBid,
		MinIncrement: req.MinIncrement,
		EndTime:      req.EndTime,
	})
	if err != nil {
		return h.writeError(c, err)
	}

	h.log.Info("Auction created successfully", "auction_id", auction.ID)
	return c.JSON(http.StatusCreated, h.toResponse(auction))
}

func (h *AuctionHandler) ListAuctions(c echo.Context) error {
	auctions, err := h.auctions.ListAuctions(c.Request().Context())
	if err != nil {
		return h.writeError(c, err)
	}

	response := make([]AuctionResponse, 0, len(auctions))
	for _, auction := range auctions {
		response = append(response, h.toResponse(auction))
	}
	return c.JSON(http.StatusOK, response)
}

func (h *AuctionHandler) GetAuction(c echo.Context) error {
	auction, err := h.auctions.GetAuction(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, h.toResponse(auction))
}

func (h *AuctionHandler) PlaceBid(c echo.Context) error {
	var req PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		h.log.Debug("Failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Reason: "invalid_input"})
	}

	bidReq := domain.BidRequest{
		AuctionID:  c.Param("id"),
		BidderName: req.BidderName,
		Amount:     req.Amount,
	}
	if req.SubmittedAt != nil {
		bidReq.SubmittedAt = *req.SubmittedAt
	}

	bid, err := h.bids.PlaceBid(c.Request().Context(), bidReq)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, bid)
}

func (h *AuctionHandler) CloseAuction(c echo.Context) error {
	auction, err := h.auctions.RequestClose(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, h.toResponse(auction))
}

func (h *AuctionHandler) toResponse(auction *domain.Auction) AuctionResponse {
	now := h.clock.Now()

	var remaining int64
	if !auction.IsClosed() && auction.EndTime.After(now) {
		remaining = int64(math.Ceil(auction.EndTime.Sub(now).Seconds()))
	}

	return AuctionResponse{
		Auction:          auction,
		MinimumBid:       h.auctions.MinimumBid(auction),
		ServerTime:       now,
		RemainingSeconds: remaining,
	}
}

func (h *AuctionHandler) writeError(c echo.Context, err error) error {
	response := ErrorResponse{Error: err.Error(), Reason: domain.RejectionReason(err)}

	var status int
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyClosed):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrBidTooLow):
		status = http.StatusUnprocessableEntity
		var tooLow *domain.BidTooLowError
		if errors.As(err, &tooLow) {
			response.RequiredMinimum = &tooLow.Minimum
		}
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	default:
		h.log.Error("Request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
		status = http.StatusInternalServerError
		response.Error = "Internal server error"
	}

	return c.JSON(status, response)
}

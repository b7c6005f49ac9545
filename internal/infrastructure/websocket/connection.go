package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"live-auction/internal/domain"
	"live-auction/pkg/logger"
	"live-auction/pkg/utils"
)

var (
	ErrSendBufferFull   = errors.New("send buffer full")
	ErrConnectionClosed = errors.New("connection closed")
)

// Options controls per-connection buffering and keepalive.
type Options struct {
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
}

func (o Options) pingPeriod() time.Duration {
	return o.PongWait * 9 / 10
}

type outbound struct {
	data  []byte
	final bool
}

type inboundMessage struct {
	Type       string          `json:"type"`
	BidderName string          `json:"bidder_name"`
	Amount     decimal.Decimal `json:"amount"`
}

type bidRejection struct {
	Type            string           `json:"type"`
	Reason          string           `json:"reason"`
	Message         string           `json:"message"`
	RequiredMinimum *decimal.Decimal `json:"required_minimum,omitempty"`
}

// Connection is one websocket viewer of an auction. Only writePump writes
// to the socket; everything else enqueues on send.
type Connection struct {
	id        string
	auctionID string
	conn      *websocket.Conn
	opts      Options
	send      chan outbound
	done      chan struct{}
	closing   atomic.Bool // a closed event is queued
	closeOnce sync.Once
	onClose   func()
	log       logger.Logger
}

func NewConnection(conn *websocket.Conn, auctionID string, opts Options, log logger.Logger) *Connection {
	id := utils.GenerateID("conn")
	return &Connection{
		id:        id,
		auctionID: auctionID,
		conn:      conn,
		opts:      opts,
		send:      make(chan outbound, opts.SendBuffer),
		done:      make(chan struct{}),
		log:       log.With("connection_id", id, "auction_id", auctionID),
	}
}

func (c *Connection) ID() string {
	return c.id
}

// Deliver enqueues an auction event without blocking. The connection is
// closed after a closed event has been written, and only the first closed
// event is queued.
func (c *Connection) Deliver(event *domain.AuctionEvent) error {
	final := event.Type == domain.EventClosed
	if final && !c.closing.CompareAndSwap(false, true) {
		return nil
	}

	data, err := json.Marshal(event)
	if err == nil {
		err = c.enqueue(outbound{data: data, final: final})
	}
	if err != nil && final {
		c.closing.Store(false)
	}
	return err
}

func (c *Connection) reply(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		c.log.Error("Failed to encode reply", "error", err)
		return
	}
	if err := c.enqueue(outbound{data: data}); err != nil {
		c.log.Warn("Failed to queue reply", "error", err)
	}
}

func (c *Connection) enqueue(msg outbound) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close is safe to call more than once and from any goroutine.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
		if c.onClose != nil {
			c.onClose()
		}
	})
	return err
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return

		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
				c.log.Debug("Write failed", "error", err)
				return
			}
			if msg.final {
				c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "auction closed"),
					time.Now().Add(c.opts.WriteWait))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) readPump(bids BidPlacer) {
	defer c.Close()

	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("Unexpected close", "error", err)
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.reply(map[string]string{"type": "error", "message": "invalid message"})
			continue
		}

		switch msg.Type {
		case "ping":
			c.reply(map[string]string{"type": "pong"})
		case "place_bid":
			c.handleBid(bids, msg)
		default:
			c.reply(map[string]string{"type": "error", "message": "unknown message type"})
		}
	}
}

func (c *Connection) handleBid(bids BidPlacer, msg inboundMessage) {
	bid, err := bids.PlaceBid(context.Background(), domain.BidRequest{
		AuctionID:  c.auctionID,
		BidderName: msg.BidderName,
		Amount:     msg.Amount,
	})
	if err == nil {
		c.reply(map[string]interface{}{"type": "bid_placed", "bid": bid})
		return
	}

	rejection := bidRejection{
		Type:    "bid_rejected",
		Reason:  domain.RejectionReason(err),
		Message: err.Error(),
	}
	var tooLow *domain.BidTooLowError
	if errors.As(err, &tooLow) {
		rejection.RequiredMinimum = &tooLow.Minimum
	}
	if !domain.IsRejection(err) {
		c.log.Error("Failed to place bid", "error", err)
		rejection.Message = "failed to place bid"
	}
	c.reply(rejection)
}

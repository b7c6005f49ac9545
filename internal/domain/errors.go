package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Store-level errors
var (
	ErrNotFound      = errors.New("auction not found")
	ErrAlreadyClosed = errors.New("auction already closed")
)

// Bid rejection errors
var (
	ErrBidTooLow    = errors.New("bid amount too low")
	ErrInvalidInput = errors.New("invalid input")
)

// BidTooLowError carries the minimum that was required when the bid was
// evaluated. It matches ErrBidTooLow with errors.Is.
type BidTooLowError struct {
	Amount  decimal.Decimal
	Minimum decimal.Decimal
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("%s: %s is below the minimum of %s", ErrBidTooLow, e.Amount, e.Minimum)
}

func (e *BidTooLowError) Unwrap() error {
	return ErrBidTooLow
}

// IsRejection reports whether err is one of the recoverable rejections a
// caller should see, as opposed to an infrastructure failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAlreadyClosed) ||
		errors.Is(err, ErrBidTooLow) ||
		errors.Is(err, ErrInvalidInput)
}

// RejectionReason maps an error to the short code reported to clients.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyClosed):
		return "auction_closed"
	case errors.Is(err, ErrBidTooLow):
		return "bid_too_low"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal_error"
	}
}

package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyPrecision is the number of fractional digits accepted for amounts.
const MoneyPrecision int32 = 2

// ValidateAmount checks that amount is positive and has at most
// MoneyPrecision fractional digits.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidInput, amount)
	}
	if !amount.Equal(amount.Truncate(MoneyPrecision)) {
		return fmt.Errorf("%w: amount %s has more than %d decimal places", ErrInvalidInput, amount, MoneyPrecision)
	}
	return nil
}

// EffectiveIncrement returns the auction's own increment when set,
// otherwise the fallback.
func EffectiveIncrement(auction *Auction, fallback decimal.Decimal) decimal.Decimal {
	if auction.MinIncrement.IsPositive() {
		return auction.MinIncrement
	}
	return fallback
}

// MinimumBid is the smallest amount the next bid may have.
func MinimumBid(auction *Auction, fallbackIncrement decimal.Decimal) decimal.Decimal {
	return auction.CurrentBid.Add(EffectiveIncrement(auction, fallbackIncrement))
}

// MeetsMinimum reports whether amount is at least the next minimum bid.
func MeetsMinimum(auction *Auction, amount, fallbackIncrement decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(MinimumBid(auction, fallbackIncrement))
}

package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type BalanceSnapshot struct {
	Free      map[string]decimal.Decimal
	FetchedAt time.Time
}

// FreeOf returns zero when the currency is not held.
func (b BalanceSnapshot) FreeOf(currency string) decimal.Decimal {
	if b.Free == nil {
		return decimal.Zero
	}

	free, ok := b.Free[currency]
	if !ok {
		return decimal.Zero
	}

	return free
}

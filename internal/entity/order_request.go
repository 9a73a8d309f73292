package entity

import (
	"time"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

// OrderRequest is a validated TradingView alert. Treat it as a value; use WithIntent to derive a copy.
type OrderRequest struct {
	ID           null.String
	Comment      null.String
	AlertTime    time.Time
	Exchange     string
	Ticker       string
	PrevPosition string
	Action       string
	NextPosition string
	Intent       OrderIntent
	Price        decimal.Decimal
	Quantity     decimal.Decimal
}

func (o OrderRequest) WithIntent(intent OrderIntent) OrderRequest {
	o.Intent = intent
	return o
}

// Cost is the notional value of the request in quote currency.
func (o OrderRequest) Cost() decimal.Decimal {
	return o.Price.Mul(o.Quantity)
}

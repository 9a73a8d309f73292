package entity

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ExchangeName string

const (
	ExchangeUpbit ExchangeName = "UPBIT"
)

type OrderStatus string

const (
	OrderStatusOpen     OrderStatus = "open"
	OrderStatusClosed   OrderStatus = "closed"
	OrderStatusCanceled OrderStatus = "canceled"
)

// Symbol is the canonical BASE/QUOTE pair used inside the service.
type Symbol struct {
	Base  string
	Quote string
}

func (s Symbol) String() string {
	return s.Base + "/" + s.Quote
}

func (s Symbol) IsZero() bool {
	return strings.TrimSpace(s.Base) == "" || strings.TrimSpace(s.Quote) == ""
}

type Ticker struct {
	Symbol    Symbol
	LastPrice decimal.Decimal
	Timestamp time.Time
}

type PlacedOrder struct {
	ID string
}

type OrderSnapshot struct {
	ID      string
	Symbol  Symbol
	Status  OrderStatus
	Filled  decimal.Decimal
	Average decimal.Decimal
	Cost    decimal.Decimal
}

// Exchange is the slice of an exchange account the executor needs.
type Exchange interface {
	FetchBalance(ctx context.Context) (BalanceSnapshot, error)
	FetchTicker(ctx context.Context, symbol Symbol) (Ticker, error)
	CreateMarketBuyOrder(ctx context.Context, symbol Symbol, cost decimal.Decimal) (PlacedOrder, error)
	CreateMarketSellOrder(ctx context.Context, symbol Symbol, amount decimal.Decimal) (PlacedOrder, error)
	FetchOrder(ctx context.Context, orderID string, symbol Symbol) (OrderSnapshot, error)
}

// ExchangeFactory builds an authenticated exchange client for one operator.
type ExchangeFactory func(cred APICredential) (Exchange, error)

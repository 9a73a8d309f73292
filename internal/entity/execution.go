package entity

import (
	"time"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

type ExecutionResult struct {
	Success         bool
	OrderID         null.String
	ExchangeOrderID string
	Comment         null.String
	Exchange        string
	Symbol          string
	Side            OrderSide
	AveragePrice    decimal.Decimal
	FilledQuantity  decimal.Decimal
	FilledCost      decimal.Decimal
	Timestamp       time.Time
	AdvisoryNote    string
	FailureMessage  string

	// Err keeps the cause of a failed execution for errors.Is checks. It is never serialized.
	Err error `json:"-"`
}

// ExecutionPayload is the wire shape of an ExecutionResult.
type ExecutionPayload struct {
	ID             *string          `json:"id,omitempty"`
	Comment        *string          `json:"comment,omitempty"`
	Time           string           `json:"time,omitempty"`
	Exchange       string           `json:"exchange,omitempty"`
	Symbol         string           `json:"symbol,omitempty"`
	OrderType      OrderSide        `json:"order_type,omitempty"`
	Price          *decimal.Decimal `json:"price,omitempty"`
	Amount         *decimal.Decimal `json:"amount,omitempty"`
	Cost           *decimal.Decimal `json:"cost,omitempty"`
	Success        bool             `json:"success"`
	FailureMessage string           `json:"failure_message,omitempty"`
}

const ExecutionTimeLayout = "2006-01-02 15:04:05"

func (r ExecutionResult) Payload() ExecutionPayload {
	if !r.Success {
		return ExecutionPayload{
			Success:        false,
			FailureMessage: r.FailureMessage,
		}
	}

	price := r.AveragePrice
	amount := r.FilledQuantity
	cost := r.FilledCost

	return ExecutionPayload{
		ID:        r.OrderID.Ptr(),
		Comment:   r.Comment.Ptr(),
		Time:      r.Timestamp.Format(ExecutionTimeLayout),
		Exchange:  r.Exchange,
		Symbol:    r.Symbol,
		OrderType: r.Side,
		Price:     &price,
		Amount:    &amount,
		Cost:      &cost,
		Success:   true,
	}
}

type WebhookOutcome struct {
	RequestID string
	Accepted  bool
	Result    *ExecutionResult
	Message   string
}

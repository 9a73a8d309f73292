package entity

import (
	"time"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

type ExecutionHistory struct {
	ID              string              `db:"id" json:"id"`
	RequestID       string              `db:"request_id" json:"request_id"`
	AdminID         string              `db:"admin_id" json:"admin_id"`
	Exchange        string              `db:"exchange" json:"exchange"`
	Ticker          string              `db:"ticker" json:"ticker"`
	Symbol          null.String         `db:"symbol" json:"symbol"`
	Intent          string              `db:"intent" json:"intent"`
	SignalID        null.String         `db:"signal_id" json:"signal_id"`
	Comment         null.String         `db:"comment" json:"comment"`
	ExchangeOrderID null.String         `db:"exchange_order_id" json:"exchange_order_id"`
	Side            null.String         `db:"side" json:"side"`
	AvgFillPrice    decimal.NullDecimal `db:"avg_fill_price" json:"avg_fill_price"`
	FilledQuantity  decimal.NullDecimal `db:"filled_quantity" json:"filled_quantity"`
	FilledCost      decimal.NullDecimal `db:"filled_cost" json:"filled_cost"`
	Success         bool                `db:"success" json:"success"`
	AdvisoryNote    null.String         `db:"advisory_note" json:"advisory_note"`
	FailureMessage  null.String         `db:"failure_message" json:"failure_message"`
	AlertAt         time.Time           `db:"alert_at" json:"alert_at"`
	CreatedAt       time.Time           `db:"created_at" json:"created_at"`
}

func (e ExecutionHistory) TableName() string {
	return "execution_histories"
}

func NewExecutionHistory(requestID, adminID string, req OrderRequest, result ExecutionResult, now time.Time) *ExecutionHistory {
	history := &ExecutionHistory{
		RequestID:      requestID,
		AdminID:        adminID,
		Exchange:       req.Exchange,
		Ticker:         req.Ticker,
		Intent:         string(req.Intent),
		SignalID:       req.ID,
		Comment:        req.Comment,
		Success:        result.Success,
		AdvisoryNote:   null.NewString(result.AdvisoryNote, result.AdvisoryNote != ""),
		FailureMessage: null.NewString(result.FailureMessage, result.FailureMessage != ""),
		AlertAt:        req.AlertTime,
		CreatedAt:      now,
	}

	if result.Success {
		history.Symbol = null.StringFrom(result.Symbol)
		history.ExchangeOrderID = null.NewString(result.ExchangeOrderID, result.ExchangeOrderID != "")
		history.Side = null.StringFrom(string(result.Side))
		history.AvgFillPrice = decimal.NewNullDecimal(result.AveragePrice)
		history.FilledQuantity = decimal.NewNullDecimal(result.FilledQuantity)
		history.FilledCost = decimal.NewNullDecimal(result.FilledCost)
	}

	return history
}

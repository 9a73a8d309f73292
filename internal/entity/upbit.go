package entity

import "github.com/shopspring/decimal"

type UpbitAccount struct {
	Currency     string          `json:"currency"`
	Balance      decimal.Decimal `json:"balance"`
	Locked       decimal.Decimal `json:"locked"`
	AvgBuyPrice  decimal.Decimal `json:"avg_buy_price"`
	UnitCurrency string          `json:"unit_currency"`
}

type UpbitTicker struct {
	Market         string          `json:"market"`
	TradePrice     decimal.Decimal `json:"trade_price"`
	TradeTimestamp int64           `json:"trade_timestamp"`
	Timestamp      int64           `json:"timestamp"`
}

type UpbitTrade struct {
	UUID   string          `json:"uuid"`
	Price  decimal.Decimal `json:"price"`
	Volume decimal.Decimal `json:"volume"`
	Funds  decimal.Decimal `json:"funds"`
	Side   string          `json:"side"`
}

type UpbitOrder struct {
	UUID            string              `json:"uuid"`
	Side            string              `json:"side"`
	OrdType         string              `json:"ord_type"`
	Price           decimal.NullDecimal `json:"price"`
	State           string              `json:"state"`
	Market          string              `json:"market"`
	Volume          decimal.NullDecimal `json:"volume"`
	RemainingVolume decimal.NullDecimal `json:"remaining_volume"`
	ExecutedVolume  decimal.Decimal     `json:"executed_volume"`
	PaidFee         decimal.Decimal     `json:"paid_fee"`
	TradesCount     int                 `json:"trades_count"`
	Trades          []UpbitTrade        `json:"trades"`
}

type UpbitErrorResponse struct {
	Error struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error"`
}

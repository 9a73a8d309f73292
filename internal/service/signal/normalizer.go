package signal

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/guregu/null/v6"
	"github.com/hanane-support/H-ATS/internal/entity"
	"github.com/shopspring/decimal"
)

var (
	ErrValidation = errors.New("invalid order request")
)

const (
	fieldID                 = "id"
	fieldComment            = "comment"
	fieldExchange           = "exchange"
	fieldTicker             = "ticker"
	fieldPrice              = "price"
	fieldContracts          = "contracts"
	fieldPrevMarketPosition = "prev_market_position"
	fieldAction             = "action"
	fieldMarketPosition     = "market_position"
)

// Normalize turns a decoded webhook payload into an OrderRequest. The intent is left empty
// and is filled by the caller once ResolveIntent succeeds.
func Normalize(payload map[string]any, alertTime time.Time) (entity.OrderRequest, error) {
	ticker := stringField(payload, fieldTicker)
	if strings.TrimSpace(ticker) == "" {
		return entity.OrderRequest{}, fmt.Errorf("%w: ticker is required", ErrValidation)
	}

	price, err := decimalField(payload, fieldPrice)
	if err != nil {
		return entity.OrderRequest{}, err
	}
	if !price.IsPositive() {
		return entity.OrderRequest{}, fmt.Errorf("%w: price must be greater than 0, got %s", ErrValidation, price)
	}

	quantity, err := decimalField(payload, fieldContracts)
	if err != nil {
		return entity.OrderRequest{}, err
	}
	if !quantity.IsPositive() {
		return entity.OrderRequest{}, fmt.Errorf("%w: quantity must be greater than 0, got %s", ErrValidation, quantity)
	}

	return entity.OrderRequest{
		ID:           optionalStringField(payload, fieldID),
		Comment:      optionalStringField(payload, fieldComment),
		AlertTime:    alertTime,
		Exchange:     stringField(payload, fieldExchange),
		Ticker:       strings.TrimSpace(ticker),
		PrevPosition: stringField(payload, fieldPrevMarketPosition),
		Action:       stringField(payload, fieldAction),
		NextPosition: stringField(payload, fieldMarketPosition),
		Price:        price,
		Quantity:     quantity,
	}, nil
}

func stringField(payload map[string]any, key string) string {
	value, ok := payload[key]
	if !ok || value == nil {
		return ""
	}

	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func optionalStringField(payload map[string]any, key string) null.String {
	value, ok := payload[key]
	if !ok || value == nil {
		return null.String{}
	}

	return null.StringFrom(stringField(payload, key))
}

func decimalField(payload map[string]any, key string) (decimal.Decimal, error) {
	value, ok := payload[key]
	if !ok || value == nil {
		return decimal.Zero, fmt.Errorf("%w: %s is required", ErrValidation, key)
	}

	var (
		parsed decimal.Decimal
		err    error
	)
	switch v := value.(type) {
	case json.Number:
		parsed, err = decimal.NewFromString(v.String())
	case string:
		parsed, err = decimal.NewFromString(strings.TrimSpace(v))
	case float64:
		parsed = decimal.NewFromFloat(v)
	case float32:
		parsed = decimal.NewFromFloat32(v)
	case int:
		parsed = decimal.NewFromInt(int64(v))
	case int64:
		parsed = decimal.NewFromInt(v)
	case decimal.Decimal:
		parsed = v
	default:
		err = fmt.Errorf("unsupported type %T", value)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s is not numeric: %v", ErrValidation, key, err)
	}

	return parsed, nil
}

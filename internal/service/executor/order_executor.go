package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hanane-support/H-ATS/internal/entity"
	"github.com/hanane-support/H-ATS/internal/service/balance"
	"github.com/hanane-support/H-ATS/internal/service/market"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrExchangeNotFound   = errors.New("exchange not found")
	ErrCredentialsMissing = errors.New("exchange credentials are missing")
	ErrUnknownOrderType   = errors.New("unknown order type")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrFillFailed         = errors.New("fill failed")
	ErrUnknownSellIntent  = errors.New("unknown sell intent")
	ErrInvalidQuantity    = errors.New("invalid sell quantity")
)

const (
	DefaultFillMaxRetries   = 5
	DefaultFillPollInterval = time.Second
)

var (
	buyIntents = map[entity.OrderIntent]bool{
		entity.IntentOpenLong:        true,
		entity.IntentSplitOpenLong:   true,
		entity.IntentReverseOpenLong: true,
	}
	// close_short, split_open_short and split_close_short have no handler and fail as unknown
	sellIntents = map[entity.OrderIntent]bool{
		entity.IntentCloseLong:        true,
		entity.IntentSplitCloseLong:   true,
		entity.IntentOpenShort:        true,
		entity.IntentReverseOpenShort: true,
	}
)

type Config struct {
	FillMaxRetries   int
	FillPollInterval time.Duration
	BalanceCacheTTL  time.Duration
	Market           market.Config
}

func (c Config) withDefaults() Config {
	if c.FillMaxRetries <= 0 {
		c.FillMaxRetries = DefaultFillMaxRetries
	}
	if c.FillPollInterval < 0 {
		c.FillPollInterval = 0
	}
	if c.FillPollInterval == 0 {
		c.FillPollInterval = DefaultFillPollInterval
	}
	if c.BalanceCacheTTL <= 0 {
		c.BalanceCacheTTL = balance.DefaultFreshnessWindow
	}
	return c
}

type OrderExecutor struct {
	operatorID   string
	exchangeName entity.ExchangeName
	exchange     entity.Exchange
	balance      *balance.Cache
	market       *market.Provider
	cfg          Config
	now          func() time.Time
}

func NewOrderExecutor(ctx context.Context, operatorID string, exchangeName entity.ExchangeName, store entity.CredentialStore, factory entity.ExchangeFactory, cfg Config) (*OrderExecutor, error) {
	if factory == nil {
		return nil, fmt.Errorf("%w: %s", ErrExchangeNotFound, exchangeName)
	}

	cred, found, err := store.GetAPICredentials(ctx, operatorID, exchangeName)
	if err != nil {
		return nil, fmt.Errorf("load %s credentials: %w", exchangeName, err)
	}
	if !found || !cred.Complete() {
		return nil, fmt.Errorf("%w: operator %s has no %s api key on record", ErrCredentialsMissing, operatorID, exchangeName)
	}

	exchange, err := factory(cred)
	if err != nil {
		return nil, fmt.Errorf("init %s client: %w", exchangeName, err)
	}

	return newOrderExecutor(operatorID, exchangeName, exchange, cfg), nil
}

func newOrderExecutor(operatorID string, exchangeName entity.ExchangeName, exchange entity.Exchange, cfg Config) *OrderExecutor {
	cfg = cfg.withDefaults()

	return &OrderExecutor{
		operatorID:   operatorID,
		exchangeName: exchangeName,
		exchange:     exchange,
		balance:      balance.NewCache(exchange, cfg.BalanceCacheTTL),
		market:       market.NewProvider(exchange, cfg.Market),
		cfg:          cfg,
		now:          time.Now,
	}
}

// Execute runs one order request to completion. Failures, including panics, are reported in the result.
func (e *OrderExecutor) Execute(ctx context.Context, req entity.OrderRequest) (result entity.ExecutionResult) {
	logger := logrus.WithFields(logrus.Fields{
		"operator_id": e.operatorID,
		"exchange":    e.exchangeName,
		"ticker":      req.Ticker,
		"intent":      req.Intent,
	})

	defer func() {
		if recovered := recover(); recovered != nil {
			logger.WithField("panic", recovered).Error("panic recovered in order executor")
			result = e.failure(fmt.Errorf("order execution aborted: %v", recovered), "")
		}
	}()

	switch {
	case buyIntents[req.Intent]:
		res, err := e.executeBuy(ctx, req)
		if err != nil {
			logger.Warnf("buy order failed: %v", err)
			return e.failure(err, "buy order failed")
		}
		return res
	case sellIntents[req.Intent]:
		res, err := e.executeSell(ctx, req)
		if err != nil {
			logger.Warnf("sell order failed: %v", err)
			return e.failure(err, "sell order failed")
		}
		return res
	default:
		logger.Warn("unknown order type")
		return e.failure(fmt.Errorf("%w: %s", ErrUnknownOrderType, req.Intent), "")
	}
}

func (e *OrderExecutor) executeBuy(ctx context.Context, req entity.OrderRequest) (entity.ExecutionResult, error) {
	symbol, err := e.market.ToCanonical(req.Ticker)
	if err != nil {
		return entity.ExecutionResult{}, err
	}

	available, err := e.balance.GetFreeBalance(ctx, symbol.Quote)
	if err != nil {
		return entity.ExecutionResult{}, err
	}

	minimum, err := e.market.MinimumNotional(ctx, symbol.Quote)
	if err != nil {
		return entity.ExecutionResult{}, err
	}

	cost := req.Cost()

	logrus.WithFields(logrus.Fields{
		"symbol":    symbol.String(),
		"available": available.String(),
		"minimum":   minimum.String(),
		"cost":      cost.String(),
	}).Info("placing market buy order")

	if available.LessThan(minimum) {
		return entity.ExecutionResult{}, fmt.Errorf("%w: available %s %s is below the minimum order amount %s %s",
			ErrInsufficientFunds, formatQuote(available), symbol.Quote, formatQuote(minimum), symbol.Quote)
	}
	if cost.GreaterThan(available) {
		return entity.ExecutionResult{}, fmt.Errorf("%w: order cost %s %s exceeds available %s %s",
			ErrInsufficientFunds, formatQuote(cost), symbol.Quote, formatQuote(available), symbol.Quote)
	}

	placed, err := e.exchange.CreateMarketBuyOrder(ctx, symbol, cost)
	if err != nil {
		return entity.ExecutionResult{}, fmt.Errorf("create market buy order: %w", err)
	}

	snapshot, err := e.waitForFill(ctx, placed.ID, symbol)
	if err != nil {
		return entity.ExecutionResult{}, err
	}

	return e.success(req, symbol, entity.OrderSideBuy, placed.ID, snapshot, ""), nil
}

func (e *OrderExecutor) executeSell(ctx context.Context, req entity.OrderRequest) (entity.ExecutionResult, error) {
	symbol, err := e.market.ToCanonical(req.Ticker)
	if err != nil {
		return entity.ExecutionResult{}, err
	}

	available, err := e.balance.GetFreeBalance(ctx, symbol.Base)
	if err != nil {
		return entity.ExecutionResult{}, err
	}
	if !available.IsPositive() {
		return entity.ExecutionResult{}, fmt.Errorf("%w: no %s available to sell", ErrInsufficientFunds, symbol.Base)
	}

	minimum, err := e.market.MinimumNotional(ctx, symbol.Quote)
	if err != nil {
		return entity.ExecutionResult{}, err
	}

	ticker, err := e.exchange.FetchTicker(ctx, symbol)
	if err != nil {
		return entity.ExecutionResult{}, fmt.Errorf("%w: fetch %s ticker: %v", market.ErrMarketDataUnavailable, symbol, err)
	}
	currentPrice := ticker.LastPrice

	var (
		amount decimal.Decimal
		note   string
	)
	switch req.Intent {
	case entity.IntentCloseLong, entity.IntentReverseOpenShort, entity.IntentOpenShort:
		amount = available
	case entity.IntentSplitCloseLong:
		amount, note = e.applyDustGuard(symbol, available, req.Quantity, currentPrice, minimum)
	default:
		return entity.ExecutionResult{}, fmt.Errorf("%w: %s", ErrUnknownSellIntent, req.Intent)
	}

	logrus.WithFields(logrus.Fields{
		"symbol":        symbol.String(),
		"available":     available.String(),
		"amount":        amount.String(),
		"current_price": currentPrice.String(),
		"minimum":       minimum.String(),
	}).Info("placing market sell order")

	if !amount.IsPositive() {
		return entity.ExecutionResult{}, fmt.Errorf("%w: computed sell amount %s", ErrInvalidQuantity, amount)
	}
	if amount.GreaterThan(available) {
		return entity.ExecutionResult{}, fmt.Errorf("%w: sell amount %s %s exceeds available %s %s",
			ErrInsufficientFunds, formatBase(amount), symbol.Base, formatBase(available), symbol.Base)
	}

	placed, err := e.exchange.CreateMarketSellOrder(ctx, symbol, amount)
	if err != nil {
		return entity.ExecutionResult{}, fmt.Errorf("create market sell order: %w", err)
	}

	snapshot, err := e.waitForFill(ctx, placed.ID, symbol)
	if err != nil {
		return entity.ExecutionResult{}, err
	}

	return e.success(req, symbol, entity.OrderSideSell, placed.ID, snapshot, note), nil
}

// applyDustGuard sells the whole holding when a partial sell would leave less than the minimum order value behind.
func (e *OrderExecutor) applyDustGuard(symbol entity.Symbol, available, requested, currentPrice, minimum decimal.Decimal) (decimal.Decimal, string) {
	remaining := available.Sub(requested)
	remainingValue := remaining.Mul(currentPrice)

	if !remainingValue.LessThan(minimum) {
		return requested, ""
	}

	logrus.WithFields(logrus.Fields{
		"symbol":          symbol.String(),
		"remaining_value": remainingValue.String(),
		"minimum":         minimum.String(),
	}).Info("remaining value below minimum, selling full holding")

	note := fmt.Sprintf(
		"held: %s %s\nrequested sell: %s %s\nremaining value: %s %s (minimum %s %s)\nsold full holding: %s %s",
		formatBase(available), symbol.Base,
		formatBase(requested), symbol.Base,
		formatQuote(remainingValue), symbol.Quote,
		formatQuote(minimum), symbol.Quote,
		formatBase(available), symbol.Base,
	)

	return available, note
}

func (e *OrderExecutor) waitForFill(ctx context.Context, orderID string, symbol entity.Symbol) (entity.OrderSnapshot, error) {
	var snapshot entity.OrderSnapshot

	for attempt := 1; attempt <= e.cfg.FillMaxRetries; attempt++ {
		current, err := e.exchange.FetchOrder(ctx, orderID, symbol)
		if err != nil {
			return entity.OrderSnapshot{}, fmt.Errorf("fetch order %s: %w", orderID, err)
		}
		snapshot = current

		logger := logrus.WithFields(logrus.Fields{
			"order_id": orderID,
			"attempt":  attempt,
			"status":   current.Status,
			"filled":   current.Filled.String(),
		})

		if current.Status == entity.OrderStatusClosed || current.Filled.IsPositive() {
			logger.Info("order filled")
			break
		}

		if attempt == e.cfg.FillMaxRetries {
			logger.Warn("order not filled after max attempts")
			break
		}

		logger.Debug("waiting for fill")
		select {
		case <-ctx.Done():
			return entity.OrderSnapshot{}, ctx.Err()
		case <-time.After(e.cfg.FillPollInterval):
		}
	}

	if !snapshot.Filled.IsPositive() {
		return entity.OrderSnapshot{}, fmt.Errorf("%w: order id %s, filled quantity 0", ErrFillFailed, orderID)
	}

	return snapshot, nil
}

func (e *OrderExecutor) success(req entity.OrderRequest, symbol entity.Symbol, side entity.OrderSide, orderID string, snapshot entity.OrderSnapshot, note string) entity.ExecutionResult {
	return entity.ExecutionResult{
		Success:         true,
		OrderID:         req.ID,
		ExchangeOrderID: orderID,
		Comment:         req.Comment,
		Exchange:        string(e.exchangeName),
		Symbol:          symbol.String(),
		Side:            side,
		AveragePrice:    snapshot.Average,
		FilledQuantity:  snapshot.Filled,
		FilledCost:      snapshot.Cost,
		Timestamp:       e.now(),
		AdvisoryNote:    note,
	}
}

func (e *OrderExecutor) failure(err error, prefix string) entity.ExecutionResult {
	message := err.Error()
	if prefix != "" && !errors.Is(err, ErrInsufficientFunds) && !errors.Is(err, ErrFillFailed) {
		message = prefix + ": " + message
	}

	return entity.ExecutionResult{
		Success:        false,
		Exchange:       string(e.exchangeName),
		Timestamp:      e.now(),
		FailureMessage: message,
		Err:            err,
	}
}

func formatQuote(v decimal.Decimal) string {
	return v.StringFixed(4)
}

func formatBase(v decimal.Decimal) string {
	return v.StringFixed(8)
}

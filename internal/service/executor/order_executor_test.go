package executor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/hanane-support/H-ATS/internal/entity"
	"github.com/hanane-support/H-ATS/internal/service/market"
	"github.com/shopspring/decimal"
)

type fakeExchange struct {
	balances   map[string]decimal.Decimal
	prices     map[string]decimal.Decimal
	fills      []entity.OrderSnapshot
	panicOnRun bool

	balanceCalls    int
	fetchOrderCalls int
	buys            []decimal.Decimal
	sells           []decimal.Decimal
}

func (f *fakeExchange) FetchBalance(_ context.Context) (entity.BalanceSnapshot, error) {
	if f.panicOnRun {
		panic("boom")
	}
	f.balanceCalls++
	return entity.BalanceSnapshot{Free: f.balances}, nil
}

func (f *fakeExchange) FetchTicker(_ context.Context, symbol entity.Symbol) (entity.Ticker, error) {
	price, ok := f.prices[symbol.String()]
	if !ok {
		return entity.Ticker{}, errors.New("unknown market")
	}
	return entity.Ticker{Symbol: symbol, LastPrice: price}, nil
}

func (f *fakeExchange) CreateMarketBuyOrder(_ context.Context, _ entity.Symbol, cost decimal.Decimal) (entity.PlacedOrder, error) {
	f.buys = append(f.buys, cost)
	return entity.PlacedOrder{ID: "order-buy-1"}, nil
}

func (f *fakeExchange) CreateMarketSellOrder(_ context.Context, _ entity.Symbol, amount decimal.Decimal) (entity.PlacedOrder, error) {
	f.sells = append(f.sells, amount)
	return entity.PlacedOrder{ID: "order-sell-1"}, nil
}

func (f *fakeExchange) FetchOrder(_ context.Context, orderID string, symbol entity.Symbol) (entity.OrderSnapshot, error) {
	idx := f.fetchOrderCalls
	f.fetchOrderCalls++
	if len(f.fills) == 0 {
		return entity.OrderSnapshot{ID: orderID, Symbol: symbol, Status: entity.OrderStatusOpen}, nil
	}
	if idx >= len(f.fills) {
		idx = len(f.fills) - 1
	}
	return f.fills[idx], nil
}

func testConfig() Config {
	return Config{
		FillMaxRetries:   5,
		FillPollInterval: time.Millisecond,
		BalanceCacheTTL:  5 * time.Second,
		Market:           market.DefaultUpbitConfig(),
	}
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func newTestExecutor(ex *fakeExchange) *OrderExecutor {
	return newOrderExecutor("admin-1", entity.ExchangeUpbit, ex, testConfig())
}

func filled(amount, cost string) entity.OrderSnapshot {
	filledAmount := dec(amount)
	filledCost := dec(cost)
	return entity.OrderSnapshot{
		Status:  entity.OrderStatusClosed,
		Filled:  filledAmount,
		Cost:    filledCost,
		Average: filledCost.Div(filledAmount),
	}
}

func request(intent entity.OrderIntent, price, quantity string) entity.OrderRequest {
	return entity.OrderRequest{
		ID:        null.StringFrom("signal-1"),
		Exchange:  string(entity.ExchangeUpbit),
		Ticker:    "BTCKRW",
		Intent:    intent,
		Price:     dec(price),
		Quantity:  dec(quantity),
		AlertTime: time.Now(),
	}
}

func TestExecuteBuyRejectedBelowMinimum(t *testing.T) {
	ex := &fakeExchange{balances: map[string]decimal.Decimal{"KRW": dec("4000")}}

	result := newTestExecutor(ex).Execute(context.Background(), request(entity.IntentOpenLong, "50000000", "0.0001"))

	if result.Success {
		t.Fatalf("Execute() succeeded, want failure")
	}
	if !errors.Is(result.Err, ErrInsufficientFunds) {
		t.Fatalf("Execute() err = %v, want ErrInsufficientFunds", result.Err)
	}
	if !strings.Contains(result.FailureMessage, "4000.0000") || !strings.Contains(result.FailureMessage, "5005.0000") {
		t.Fatalf("failure message %q should carry balance and minimum", result.FailureMessage)
	}
	if len(ex.buys) != 0 {
		t.Fatalf("buy orders = %d, want 0", len(ex.buys))
	}
}

func TestExecuteBuyRejectedWhenCostExceedsBalance(t *testing.T) {
	ex := &fakeExchange{balances: map[string]decimal.Decimal{"KRW": dec("50000")}}

	result := newTestExecutor(ex).Execute(context.Background(), request(entity.IntentSplitOpenLong, "50000000", "0.002"))

	if !errors.Is(result.Err, ErrInsufficientFunds) {
		t.Fatalf("Execute() err = %v, want ErrInsufficientFunds", result.Err)
	}
	if !strings.Contains(result.FailureMessage, "100000.0000") {
		t.Fatalf("failure message %q should carry the order cost", result.FailureMessage)
	}
	if len(ex.buys) != 0 {
		t.Fatalf("buy orders = %d, want 0", len(ex.buys))
	}
}

func TestExecuteBuySucceeds(t *testing.T) {
	ex := &fakeExchange{
		balances: map[string]decimal.Decimal{"KRW": dec("1000000")},
		fills:    []entity.OrderSnapshot{filled("0.002", "100000")},
	}

	result := newTestExecutor(ex).Execute(context.Background(), request(entity.IntentOpenLong, "50000000", "0.002"))

	if !result.Success {
		t.Fatalf("Execute() failed: %s", result.FailureMessage)
	}
	if len(ex.buys) != 1 || !ex.buys[0].Equal(dec("100000")) {
		t.Fatalf("buy orders = %v, want one order costing 100000", ex.buys)
	}
	if result.Side != entity.OrderSideBuy || result.Symbol != "BTC/KRW" {
		t.Fatalf("side/symbol = %s %s", result.Side, result.Symbol)
	}
	if !result.AveragePrice.Equal(dec("50000000")) || !result.FilledQuantity.Equal(dec("0.002")) || !result.FilledCost.Equal(dec("100000")) {
		t.Fatalf("fill = %s @ %s (cost %s)", result.FilledQuantity, result.AveragePrice, result.FilledCost)
	}
	if result.ExchangeOrderID != "order-buy-1" || result.OrderID.String != "signal-1" {
		t.Fatalf("ids = %s %s", result.ExchangeOrderID, result.OrderID.String)
	}
	if ex.balanceCalls != 1 {
		t.Fatalf("balance fetches = %d, want 1", ex.balanceCalls)
	}
}

func TestExecuteSplitCloseLongDustGuard(t *testing.T) {
	tests := []struct {
		name       string
		requested  string
		wantAmount string
		wantNote   bool
	}{
		{name: "dust left behind sells everything", requested: "0.00999", wantAmount: "0.01", wantNote: true},
		{name: "enough left keeps partial sell", requested: "0.005", wantAmount: "0.005"},
		{name: "remaining value equal to minimum keeps partial sell", requested: "0.0098999", wantAmount: "0.0098999"},
		{name: "request above holding sells everything", requested: "0.02", wantAmount: "0.01", wantNote: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := &fakeExchange{
				balances: map[string]decimal.Decimal{"BTC": dec("0.01")},
				prices:   map[string]decimal.Decimal{"BTC/KRW": dec("50000000")},
				fills:    []entity.OrderSnapshot{filled(tt.wantAmount, "1000")},
			}

			result := newTestExecutor(ex).Execute(context.Background(), request(entity.IntentSplitCloseLong, "50000000", tt.requested))

			if !result.Success {
				t.Fatalf("Execute() failed: %s", result.FailureMessage)
			}
			if len(ex.sells) != 1 || !ex.sells[0].Equal(dec(tt.wantAmount)) {
				t.Fatalf("sell orders = %v, want one order of %s", ex.sells, tt.wantAmount)
			}
			if result.Side != entity.OrderSideSell {
				t.Fatalf("side = %s, want sell", result.Side)
			}
			if tt.wantNote != (result.AdvisoryNote != "") {
				t.Fatalf("advisory note = %q, want present=%v", result.AdvisoryNote, tt.wantNote)
			}
			if tt.wantNote && !strings.Contains(result.AdvisoryNote, "sold full holding: 0.01000000 BTC") {
				t.Fatalf("advisory note %q should report the final amount", result.AdvisoryNote)
			}
		})
	}
}

func TestExecuteSellWholeHolding(t *testing.T) {
	for _, intent := range []entity.OrderIntent{entity.IntentCloseLong, entity.IntentOpenShort, entity.IntentReverseOpenShort} {
		t.Run(string(intent), func(t *testing.T) {
			ex := &fakeExchange{
				balances: map[string]decimal.Decimal{"BTC": dec("0.3")},
				prices:   map[string]decimal.Decimal{"BTC/KRW": dec("50000000")},
				fills:    []entity.OrderSnapshot{filled("0.3", "15000000")},
			}

			result := newTestExecutor(ex).Execute(context.Background(), request(intent, "50000000", "0.1"))

			if !result.Success {
				t.Fatalf("Execute() failed: %s", result.FailureMessage)
			}
			if len(ex.sells) != 1 || !ex.sells[0].Equal(dec("0.3")) {
				t.Fatalf("sell orders = %v, want 0.3", ex.sells)
			}
		})
	}
}

func TestExecuteSellWithoutHolding(t *testing.T) {
	ex := &fakeExchange{
		balances: map[string]decimal.Decimal{"KRW": dec("1000000")},
		prices:   map[string]decimal.Decimal{"BTC/KRW": dec("50000000")},
	}

	result := newTestExecutor(ex).Execute(context.Background(), request(entity.IntentCloseLong, "50000000", "0.1"))

	if !errors.Is(result.Err, ErrInsufficientFunds) {
		t.Fatalf("Execute() err = %v, want ErrInsufficientFunds", result.Err)
	}
	if len(ex.sells) != 0 {
		t.Fatalf("sell orders = %d, want 0", len(ex.sells))
	}
}

func TestExecuteZeroFill(t *testing.T) {
	ex := &fakeExchange{balances: map[string]decimal.Decimal{"KRW": dec("1000000")}}

	result := newTestExecutor(ex).Execute(context.Background(), request(entity.IntentOpenLong, "50000000", "0.002"))

	if !errors.Is(result.Err, ErrFillFailed) {
		t.Fatalf("Execute() err = %v, want ErrFillFailed", result.Err)
	}
	if !strings.Contains(result.FailureMessage, "order-buy-1") {
		t.Fatalf("failure message %q should carry the order id", result.FailureMessage)
	}
	if ex.fetchOrderCalls != 5 {
		t.Fatalf("fetch order calls = %d, want 5", ex.fetchOrderCalls)
	}
}

func TestExecuteStopsPollingOnFirstFill(t *testing.T) {
	pending := entity.OrderSnapshot{Status: entity.OrderStatusOpen}
	ex := &fakeExchange{
		balances: map[string]decimal.Decimal{"KRW": dec("1000000")},
		fills:    []entity.OrderSnapshot{pending, pending, filled("0.002", "100000")},
	}

	result := newTestExecutor(ex).Execute(context.Background(), request(entity.IntentOpenLong, "50000000", "0.002"))

	if !result.Success {
		t.Fatalf("Execute() failed: %s", result.FailureMessage)
	}
	if ex.fetchOrderCalls != 3 {
		t.Fatalf("fetch order calls = %d, want 3", ex.fetchOrderCalls)
	}
}

func TestExecuteUnknownOrderType(t *testing.T) {
	for _, intent := range []entity.OrderIntent{entity.IntentNone, entity.IntentCloseShort, entity.IntentSplitOpenShort, entity.IntentSplitCloseShort} {
		t.Run(string(intent), func(t *testing.T) {
			ex := &fakeExchange{}

			result := newTestExecutor(ex).Execute(context.Background(), request(intent, "1", "1"))

			if !errors.Is(result.Err, ErrUnknownOrderType) {
				t.Fatalf("Execute() err = %v, want ErrUnknownOrderType", result.Err)
			}
			if ex.balanceCalls != 0 || len(ex.buys)+len(ex.sells) != 0 {
				t.Fatalf("exchange touched for intent %s", intent)
			}
		})
	}
}

func TestExecuteRecoversPanic(t *testing.T) {
	ex := &fakeExchange{panicOnRun: true}

	result := newTestExecutor(ex).Execute(context.Background(), request(entity.IntentOpenLong, "1", "1"))

	if result.Success || result.FailureMessage == "" {
		t.Fatalf("Execute() = %+v, want failure", result)
	}
}

type fakeCredentialStore struct {
	cred  entity.APICredential
	found bool
}

func (f fakeCredentialStore) GetAPICredentials(context.Context, string, entity.ExchangeName) (entity.APICredential, bool, error) {
	return f.cred, f.found, nil
}

func (f fakeCredentialStore) GetWebhookPassword(context.Context, string) (string, bool, error) {
	return "", false, nil
}

func (f fakeCredentialStore) GetAllowedIPs(context.Context, string) ([]string, error) {
	return nil, nil
}

func (f fakeCredentialStore) GetDiscordWebhookURL(context.Context, string) (string, bool, error) {
	return "", false, nil
}

func TestNewOrderExecutor(t *testing.T) {
	factory := func(entity.APICredential) (entity.Exchange, error) {
		return &fakeExchange{}, nil
	}

	tests := []struct {
		name    string
		store   fakeCredentialStore
		factory entity.ExchangeFactory
		wantErr error
	}{
		{name: "no record", store: fakeCredentialStore{}, factory: factory, wantErr: ErrCredentialsMissing},
		{name: "missing secret", store: fakeCredentialStore{cred: entity.APICredential{APIKey: "k"}, found: true}, factory: factory, wantErr: ErrCredentialsMissing},
		{name: "unknown exchange", store: fakeCredentialStore{}, factory: nil, wantErr: ErrExchangeNotFound},
		{name: "ok", store: fakeCredentialStore{cred: entity.APICredential{APIKey: "k", SecretKey: "s"}, found: true}, factory: factory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executor, err := NewOrderExecutor(context.Background(), "admin-1", entity.ExchangeUpbit, tt.store, tt.factory, testConfig())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NewOrderExecutor() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || executor == nil {
				t.Fatalf("NewOrderExecutor() = %v, %v", executor, err)
			}
		})
	}
}

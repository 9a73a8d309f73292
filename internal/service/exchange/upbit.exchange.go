package exchange

import (
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hanane-support/H-ATS/internal/config"
	"github.com/hanane-support/H-ATS/internal/entity"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	defaultUpbitBaseURL           = "https://api.upbit.com"
	defaultUpbitRequestTimeout    = 10 * time.Second
	defaultUpbitRequestsPerSecond = 8
	defaultUpbitBurst             = 8
)

var (
	ErrUpbitRequestRejected = errors.New("upbit request rejected")
)

type UpbitExchange struct {
	accessKey  string
	secretKey  string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// InitUpbitExchange registers the Upbit client factory. All operator clients share one rate limiter
// because Upbit counts requests per source address.
func InitUpbitExchange(exchangeConfig config.ExchangeConfig) {
	baseURL := strings.TrimRight(strings.TrimSpace(exchangeConfig.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultUpbitBaseURL
	}

	timeout := exchangeConfig.RequestTimeout
	if timeout <= 0 {
		timeout = defaultUpbitRequestTimeout
	}

	rps := exchangeConfig.RequestsPerSecond
	if rps <= 0 {
		rps = defaultUpbitRequestsPerSecond
	}
	burst := exchangeConfig.Burst
	if burst <= 0 {
		burst = defaultUpbitBurst
	}

	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	httpClient := &http.Client{Timeout: timeout}

	RegisterExchange(entity.ExchangeUpbit, func(cred entity.APICredential) (entity.Exchange, error) {
		upbit, err := NewUpbitExchange(baseURL, cred, httpClient, limiter)
		if err != nil {
			return nil, err
		}
		return upbit, nil
	})

	logrus.WithFields(logrus.Fields{
		"base_url":            baseURL,
		"request_timeout":     timeout.String(),
		"requests_per_second": rps,
	}).Info("upbit exchange registered")
}

func NewUpbitExchange(baseURL string, cred entity.APICredential, httpClient *http.Client, limiter *rate.Limiter) (*UpbitExchange, error) {
	accessKey := strings.TrimSpace(cred.APIKey)
	secretKey := strings.TrimSpace(cred.SecretKey)
	if accessKey == "" || secretKey == "" {
		return nil, errors.New("upbit access key and secret key are required")
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultUpbitRequestTimeout}
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(defaultUpbitRequestsPerSecond), defaultUpbitBurst)
	}

	return &UpbitExchange{
		accessKey:  accessKey,
		secretKey:  secretKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		limiter:    limiter,
	}, nil
}

func (e *UpbitExchange) FetchBalance(ctx context.Context) (entity.BalanceSnapshot, error) {
	var accounts []entity.UpbitAccount
	if err := e.do(ctx, http.MethodGet, "/v1/accounts", nil, true, &accounts); err != nil {
		return entity.BalanceSnapshot{}, err
	}

	free := make(map[string]decimal.Decimal, len(accounts))
	for _, account := range accounts {
		free[strings.ToUpper(account.Currency)] = account.Balance
	}

	return entity.BalanceSnapshot{Free: free, FetchedAt: time.Now()}, nil
}

func (e *UpbitExchange) FetchTicker(ctx context.Context, symbol entity.Symbol) (entity.Ticker, error) {
	params := []queryParam{{"markets", upbitMarketCode(symbol)}}

	var tickers []entity.UpbitTicker
	if err := e.do(ctx, http.MethodGet, "/v1/ticker", params, false, &tickers); err != nil {
		return entity.Ticker{}, err
	}
	if len(tickers) == 0 {
		return entity.Ticker{}, fmt.Errorf("upbit ticker not found: %s", symbol)
	}

	return entity.Ticker{
		Symbol:    symbol,
		LastPrice: tickers[0].TradePrice,
		Timestamp: time.UnixMilli(tickers[0].Timestamp),
	}, nil
}

func (e *UpbitExchange) CreateMarketBuyOrder(ctx context.Context, symbol entity.Symbol, cost decimal.Decimal) (entity.PlacedOrder, error) {
	params := []queryParam{
		{"market", upbitMarketCode(symbol)},
		{"side", "bid"},
		{"ord_type", "price"},
		{"price", cost.String()},
	}

	return e.placeOrder(ctx, params)
}

func (e *UpbitExchange) CreateMarketSellOrder(ctx context.Context, symbol entity.Symbol, amount decimal.Decimal) (entity.PlacedOrder, error) {
	params := []queryParam{
		{"market", upbitMarketCode(symbol)},
		{"side", "ask"},
		{"ord_type", "market"},
		{"volume", amount.String()},
	}

	return e.placeOrder(ctx, params)
}

func (e *UpbitExchange) placeOrder(ctx context.Context, params []queryParam) (entity.PlacedOrder, error) {
	var order entity.UpbitOrder
	if err := e.do(ctx, http.MethodPost, "/v1/orders", params, true, &order); err != nil {
		return entity.PlacedOrder{}, err
	}

	logrus.WithFields(logrus.Fields{
		"uuid":     order.UUID,
		"market":   order.Market,
		"side":     order.Side,
		"ord_type": order.OrdType,
		"state":    order.State,
	}).Info("upbit order placed")

	return entity.PlacedOrder{ID: order.UUID}, nil
}

func (e *UpbitExchange) FetchOrder(ctx context.Context, orderID string, symbol entity.Symbol) (entity.OrderSnapshot, error) {
	params := []queryParam{{"uuid", orderID}}

	var order entity.UpbitOrder
	if err := e.do(ctx, http.MethodGet, "/v1/order", params, true, &order); err != nil {
		return entity.OrderSnapshot{}, err
	}

	return mapUpbitOrder(order, symbol), nil
}

func mapUpbitOrder(order entity.UpbitOrder, symbol entity.Symbol) entity.OrderSnapshot {
	cost := decimal.Zero
	for _, trade := range order.Trades {
		cost = cost.Add(trade.Funds)
	}

	average := decimal.Zero
	if order.ExecutedVolume.IsPositive() {
		average = cost.Div(order.ExecutedVolume)
	}

	return entity.OrderSnapshot{
		ID:      order.UUID,
		Symbol:  symbol,
		Status:  upbitOrderStatus(order.State),
		Filled:  order.ExecutedVolume,
		Average: average,
		Cost:    cost,
	}
}

func upbitOrderStatus(state string) entity.OrderStatus {
	switch state {
	case "done":
		return entity.OrderStatusClosed
	case "cancel":
		return entity.OrderStatusCanceled
	default:
		return entity.OrderStatusOpen
	}
}

// upbitMarketCode converts BTC/KRW into KRW-BTC.
func upbitMarketCode(symbol entity.Symbol) string {
	return strings.ToUpper(symbol.Quote) + "-" + strings.ToUpper(symbol.Base)
}

type queryParam struct {
	key   string
	value string
}

func encodeParams(params []queryParam) string {
	pairs := make([]string, 0, len(params))
	for _, p := range params {
		pairs = append(pairs, url.QueryEscape(p.key)+"="+url.QueryEscape(p.value))
	}
	return strings.Join(pairs, "&")
}

func (e *UpbitExchange) authorization(query string) (string, error) {
	claims := jwt.MapClaims{
		"access_key": e.accessKey,
		"nonce":      uuid.NewString(),
	}
	if query != "" {
		hash := sha512.Sum512([]byte(query))
		claims["query_hash"] = hex.EncodeToString(hash[:])
		claims["query_hash_alg"] = "SHA512"
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(e.secretKey))
	if err != nil {
		return "", fmt.Errorf("sign upbit token: %w", err)
	}

	return "Bearer " + token, nil
}

func (e *UpbitExchange) do(ctx context.Context, method, path string, params []queryParam, private bool, out any) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("upbit rate limit wait: %w", err)
	}

	query := encodeParams(params)
	endpoint := e.baseURL + path

	var body io.Reader
	if method == http.MethodGet {
		if query != "" {
			endpoint += "?" + query
		}
	} else {
		payload := make(map[string]string, len(params))
		for _, p := range params {
			payload[p.key] = p.value
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	if private {
		authorization, err := e.authorization(query)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", authorization)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var errResp entity.UpbitErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err != nil || errResp.Error.Message == "" {
			return fmt.Errorf("%w: status=%d body=%s", ErrUpbitRequestRejected, resp.StatusCode, string(respBody))
		}

		logrus.WithFields(logrus.Fields{
			"path":   path,
			"status": resp.StatusCode,
			"name":   errResp.Error.Name,
		}).Warn("upbit request rejected")

		return fmt.Errorf("%w: status=%d name=%s message=%s", ErrUpbitRequestRejected, resp.StatusCode, errResp.Error.Name, errResp.Error.Message)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("upbit %s parse failed: status=%d body=%s", path, resp.StatusCode, string(respBody))
	}

	return nil
}

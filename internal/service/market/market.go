package market

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hanane-support/H-ATS/internal/entity"
	"github.com/shopspring/decimal"
)

var (
	ErrUnsupportedQuoteCurrency = errors.New("unsupported quote currency")
	ErrMarketDataUnavailable    = errors.New("market data unavailable")
	ErrUnrecognizedTickerFormat = errors.New("unrecognized ticker format")
)

var (
	DefaultFeeRate        = decimal.RequireFromString("0.001")
	DefaultMinOrderAmount = decimal.NewFromInt(5000)
)

const DefaultNativeCurrency = "KRW"

type PriceSource interface {
	FetchTicker(ctx context.Context, symbol entity.Symbol) (entity.Ticker, error)
}

type Config struct {
	NativeCurrency  string
	FeeRate         decimal.Decimal
	MinOrderAmount  decimal.Decimal
	QuoteCurrencies []string
}

// DefaultUpbitConfig settles in KRW and also trades the BTC and USDT markets.
func DefaultUpbitConfig() Config {
	return Config{
		NativeCurrency:  DefaultNativeCurrency,
		FeeRate:         DefaultFeeRate,
		MinOrderAmount:  DefaultMinOrderAmount,
		QuoteCurrencies: []string{"KRW", "BTC", "USDT"},
	}
}

type minimumNotionalFunc func(ctx context.Context, quote string) (decimal.Decimal, error)

type Provider struct {
	cfg        Config
	prices     PriceSource
	strategies map[string]minimumNotionalFunc
	suffixes   []string
}

func NewProvider(prices PriceSource, cfg Config) *Provider {
	if cfg.NativeCurrency == "" {
		cfg.NativeCurrency = DefaultNativeCurrency
	}
	if cfg.FeeRate.IsNegative() {
		cfg.FeeRate = DefaultFeeRate
	}
	if !cfg.MinOrderAmount.IsPositive() {
		cfg.MinOrderAmount = DefaultMinOrderAmount
	}
	if len(cfg.QuoteCurrencies) == 0 {
		cfg.QuoteCurrencies = []string{cfg.NativeCurrency}
	}

	p := &Provider{
		cfg:        cfg,
		prices:     prices,
		strategies: make(map[string]minimumNotionalFunc, len(cfg.QuoteCurrencies)),
	}

	for _, quote := range cfg.QuoteCurrencies {
		quote = strings.ToUpper(strings.TrimSpace(quote))
		if quote == "" {
			continue
		}
		if quote == cfg.NativeCurrency {
			p.strategies[quote] = p.nativeMinimum
		} else {
			p.strategies[quote] = p.convertedMinimum
		}
		p.suffixes = append(p.suffixes, quote)
	}
	if _, ok := p.strategies[cfg.NativeCurrency]; !ok {
		p.strategies[cfg.NativeCurrency] = p.nativeMinimum
		p.suffixes = append(p.suffixes, cfg.NativeCurrency)
	}

	// longest suffix first so USDT wins over a shorter overlapping quote
	sort.SliceStable(p.suffixes, func(i, j int) bool {
		return len(p.suffixes[i]) > len(p.suffixes[j])
	})

	return p
}

func (p *Provider) NativeCurrency() string {
	return p.cfg.NativeCurrency
}

func (p *Provider) FeeMultiplier() decimal.Decimal {
	return decimal.NewFromInt(1).Add(p.cfg.FeeRate)
}

// MinimumNotional is the smallest order value accepted in the given quote currency, fee included.
func (p *Provider) MinimumNotional(ctx context.Context, quote string) (decimal.Decimal, error) {
	strategy, ok := p.strategies[strings.ToUpper(quote)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnsupportedQuoteCurrency, quote)
	}

	return strategy(ctx, strings.ToUpper(quote))
}

func (p *Provider) nativeMinimum(_ context.Context, _ string) (decimal.Decimal, error) {
	return p.cfg.MinOrderAmount.Mul(p.FeeMultiplier()), nil
}

func (p *Provider) convertedMinimum(ctx context.Context, quote string) (decimal.Decimal, error) {
	nativeMinimum, err := p.nativeMinimum(ctx, p.cfg.NativeCurrency)
	if err != nil {
		return decimal.Zero, err
	}

	symbol := entity.Symbol{Base: quote, Quote: p.cfg.NativeCurrency}
	ticker, err := p.prices.FetchTicker(ctx, symbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: fetch %s ticker: %v", ErrMarketDataUnavailable, symbol, err)
	}
	if !ticker.LastPrice.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s last price is %s", ErrMarketDataUnavailable, symbol, ticker.LastPrice)
	}

	return nativeMinimum.Div(ticker.LastPrice), nil
}

// ToCanonical converts a TradingView ticker such as BTCKRW into BTC/KRW.
func (p *Provider) ToCanonical(ticker string) (entity.Symbol, error) {
	raw := strings.ToUpper(strings.TrimSpace(ticker))

	if strings.Contains(raw, "/") {
		parts := strings.Split(raw, "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return entity.Symbol{}, fmt.Errorf("%w: %s", ErrUnrecognizedTickerFormat, ticker)
		}
		return entity.Symbol{Base: parts[0], Quote: parts[1]}, nil
	}

	for _, quote := range p.suffixes {
		base, ok := strings.CutSuffix(raw, quote)
		if !ok {
			continue
		}
		if base == "" {
			break
		}
		return entity.Symbol{Base: base, Quote: quote}, nil
	}

	return entity.Symbol{}, fmt.Errorf("%w: %s", ErrUnrecognizedTickerFormat, ticker)
}

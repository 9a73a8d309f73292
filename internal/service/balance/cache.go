package balance

import (
	"context"
	"fmt"
	"time"

	"github.com/hanane-support/H-ATS/internal/entity"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const DefaultFreshnessWindow = 5 * time.Second

type Fetcher interface {
	FetchBalance(ctx context.Context) (entity.BalanceSnapshot, error)
}

// Cache keeps the latest balance snapshot of one exchange account. It is not safe for concurrent use;
// each executor owns its own cache.
type Cache struct {
	fetcher  Fetcher
	window   time.Duration
	now      func() time.Time
	snapshot *entity.BalanceSnapshot
}

func NewCache(fetcher Fetcher, window time.Duration) *Cache {
	if window <= 0 {
		window = DefaultFreshnessWindow
	}

	return &Cache{
		fetcher: fetcher,
		window:  window,
		now:     time.Now,
	}
}

// WithClock replaces the clock used to age snapshots.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

func (c *Cache) GetBalance(ctx context.Context, forceRefresh bool) (entity.BalanceSnapshot, error) {
	now := c.now()
	if !forceRefresh && c.snapshot != nil && now.Sub(c.snapshot.FetchedAt) < c.window {
		logrus.WithField("age", now.Sub(c.snapshot.FetchedAt).String()).Debug("using cached balance")
		return *c.snapshot, nil
	}

	snapshot, err := c.fetcher.FetchBalance(ctx)
	if err != nil {
		return entity.BalanceSnapshot{}, fmt.Errorf("fetch balance: %w", err)
	}
	snapshot.FetchedAt = now

	c.snapshot = &snapshot
	logrus.WithField("currencies", len(snapshot.Free)).Debug("balance refreshed")

	return snapshot, nil
}

func (c *Cache) GetFreeBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	snapshot, err := c.GetBalance(ctx, false)
	if err != nil {
		return decimal.Zero, err
	}

	return snapshot.FreeOf(currency), nil
}

package balance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hanane-support/H-ATS/internal/entity"
	"github.com/shopspring/decimal"
)

type countingFetcher struct {
	calls int
	free  map[string]decimal.Decimal
	err   error
}

func (f *countingFetcher) FetchBalance(_ context.Context) (entity.BalanceSnapshot, error) {
	f.calls++
	if f.err != nil {
		return entity.BalanceSnapshot{}, f.err
	}
	return entity.BalanceSnapshot{Free: f.free}, nil
}

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time { return c.now }

func TestCacheReusesFreshSnapshot(t *testing.T) {
	fetcher := &countingFetcher{free: map[string]decimal.Decimal{"KRW": decimal.NewFromInt(100000)}}
	clock := &manualClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cache := NewCache(fetcher, 5*time.Second).WithClock(clock.Now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		free, err := cache.GetFreeBalance(ctx, "KRW")
		if err != nil {
			t.Fatalf("GetFreeBalance() error = %v", err)
		}
		if !free.Equal(decimal.NewFromInt(100000)) {
			t.Fatalf("GetFreeBalance() = %s, want 100000", free)
		}
		clock.now = clock.now.Add(time.Second)
	}

	if fetcher.calls != 1 {
		t.Fatalf("fetch calls = %d, want 1", fetcher.calls)
	}
}

func TestCacheRefreshes(t *testing.T) {
	t.Run("expired", func(t *testing.T) {
		fetcher := &countingFetcher{}
		clock := &manualClock{now: time.Unix(0, 0)}
		cache := NewCache(fetcher, 5*time.Second).WithClock(clock.Now)

		if _, err := cache.GetBalance(context.Background(), false); err != nil {
			t.Fatalf("GetBalance() error = %v", err)
		}
		clock.now = clock.now.Add(5 * time.Second)
		if _, err := cache.GetBalance(context.Background(), false); err != nil {
			t.Fatalf("GetBalance() error = %v", err)
		}

		if fetcher.calls != 2 {
			t.Fatalf("fetch calls = %d, want 2", fetcher.calls)
		}
	})

	t.Run("forced", func(t *testing.T) {
		fetcher := &countingFetcher{}
		cache := NewCache(fetcher, time.Hour)

		for i := 0; i < 2; i++ {
			if _, err := cache.GetBalance(context.Background(), true); err != nil {
				t.Fatalf("GetBalance() error = %v", err)
			}
		}

		if fetcher.calls != 2 {
			t.Fatalf("fetch calls = %d, want 2", fetcher.calls)
		}
	})
}

func TestCacheMissingCurrencyIsZero(t *testing.T) {
	cache := NewCache(&countingFetcher{free: map[string]decimal.Decimal{"KRW": decimal.NewFromInt(1)}}, 0)

	free, err := cache.GetFreeBalance(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("GetFreeBalance() error = %v", err)
	}
	if !free.IsZero() {
		t.Fatalf("GetFreeBalance() = %s, want 0", free)
	}
}

func TestCacheFetchError(t *testing.T) {
	cause := errors.New("exchange down")
	cache := NewCache(&countingFetcher{err: cause}, 0)

	_, err := cache.GetBalance(context.Background(), false)
	if !errors.Is(err, cause) {
		t.Fatalf("GetBalance() error = %v, want %v", err, cause)
	}
}

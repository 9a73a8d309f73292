package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	content := `
env: development
log:
  log_level: debug
graceful_shutdown_timeout: 10s
exchanges:
  upbit:
    name: UPBIT
    base_url: https://api.upbit.com
    fee_rate: 0.001
    min_order_amount: "5000"
    native_currency: KRW
    request_timeout: 10s
executor:
  fill_max_retries: 5
  fill_poll_interval: 1s
  balance_cache_ttl: 5s
webhook:
  path: /webhook
  operator_lock_ttl: 1m
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if err := LoadConfig(path); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	upbit, ok := Env.Exchanges["upbit"]
	if !ok {
		t.Fatalf("upbit exchange config missing")
	}
	if !upbit.FeeRate.Equal(decimal.RequireFromString("0.001")) {
		t.Errorf("fee rate = %s, want 0.001", upbit.FeeRate)
	}
	if !upbit.MinOrderAmount.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("min order amount = %s, want 5000", upbit.MinOrderAmount)
	}
	if upbit.RequestTimeout != 10*time.Second {
		t.Errorf("request timeout = %s, want 10s", upbit.RequestTimeout)
	}
	if Env.Executor.FillPollInterval != time.Second {
		t.Errorf("fill poll interval = %s, want 1s", Env.Executor.FillPollInterval)
	}
	if Env.Webhook.OperatorLockTTL != time.Minute {
		t.Errorf("operator lock ttl = %s, want 1m", Env.Webhook.OperatorLockTTL)
	}
}

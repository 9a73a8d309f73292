package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/hanane-support/H-ATS/internal/entity"
	"github.com/hanane-support/H-ATS/internal/service/lock"
	"github.com/shopspring/decimal"
)

type fakeStore struct {
	password   string
	hasPass    bool
	allowedIPs []string
}

func (f fakeStore) GetAPICredentials(context.Context, string, entity.ExchangeName) (entity.APICredential, bool, error) {
	return entity.APICredential{}, false, nil
}

func (f fakeStore) GetWebhookPassword(context.Context, string) (string, bool, error) {
	return f.password, f.hasPass, nil
}

func (f fakeStore) GetAllowedIPs(context.Context, string) ([]string, error) {
	return f.allowedIPs, nil
}

func (f fakeStore) GetDiscordWebhookURL(context.Context, string) (string, bool, error) {
	return "", false, nil
}

type fakeExecutor struct {
	result   entity.ExecutionResult
	requests []entity.OrderRequest
}

func (f *fakeExecutor) Execute(_ context.Context, req entity.OrderRequest) entity.ExecutionResult {
	f.requests = append(f.requests, req)
	return f.result
}

type fakeFactory struct {
	executor *fakeExecutor
	err      error
	calls    int
}

func (f *fakeFactory) Supports(exchange entity.ExchangeName) bool {
	return exchange == entity.ExchangeUpbit
}

func (f *fakeFactory) NewExecutor(context.Context, string, entity.ExchangeName) (Executor, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.executor, nil
}

type recordingSink struct {
	mu            sync.Mutex
	notifications []entity.Notification
}

func (s *recordingSink) Notify(_ context.Context, n entity.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, n)
}

type recordingHistory struct {
	histories []*entity.ExecutionHistory
}

func (r *recordingHistory) Create(_ context.Context, h *entity.ExecutionHistory) error {
	r.histories = append(r.histories, h)
	return nil
}

func validPayload() map[string]any {
	return map[string]any{
		"admin_id":             "admin-1",
		"webhook_password":     "s3cret",
		"exchange":             "UPBIT",
		"ticker":               "BTCKRW",
		"price":                "50000000",
		"contracts":            "0.002",
		"prev_market_position": "flat",
		"action":               "buy",
		"market_position":      "long",
		"id":                   "entry",
	}
}

type fixture struct {
	service   *WebhookService
	factory   *fakeFactory
	sink      *recordingSink
	histories *recordingHistory
}

func newFixture(store fakeStore, cfg Config) *fixture {
	f := &fixture{
		factory: &fakeFactory{executor: &fakeExecutor{result: entity.ExecutionResult{
			Success:        true,
			Side:           entity.OrderSideBuy,
			Symbol:         "BTC/KRW",
			FilledQuantity: decimal.RequireFromString("0.002"),
		}}},
		sink:      &recordingSink{},
		histories: &recordingHistory{},
	}
	f.service = NewWebhookService(store, f.factory, f.sink, lock.NewLocalLocker(), f.histories, cfg)
	return f
}

func TestHandlePasswordMismatch(t *testing.T) {
	f := newFixture(fakeStore{password: "different", hasPass: true}, Config{})

	outcome := f.service.Handle(context.Background(), validPayload(), "52.89.214.238")

	if outcome.Accepted {
		t.Fatalf("outcome accepted, want rejected")
	}
	if f.factory.calls != 0 || len(f.factory.executor.requests) != 0 {
		t.Fatalf("executor invoked on password mismatch")
	}
	if len(f.sink.notifications) != 1 {
		t.Fatalf("notifications = %d, want 1", len(f.sink.notifications))
	}
	n := f.sink.notifications[0]
	if n.Title != entity.NotificationTitleFailed || n.Result.Success {
		t.Fatalf("notification = %+v, want failure", n)
	}
	if !strings.Contains(n.Result.FailureMessage, "webhook_password") {
		t.Fatalf("failure message %q should point at the alert message", n.Result.FailureMessage)
	}
	if len(f.histories.histories) != 0 {
		t.Fatalf("history recorded for rejected webhook")
	}
}

func TestHandleRejections(t *testing.T) {
	tests := []struct {
		name          string
		store         fakeStore
		cfg           Config
		mutate        func(map[string]any)
		remoteIP      string
		wantNotified  bool
		wantInMessage string
	}{
		{
			name:          "missing admin id",
			store:         fakeStore{password: "s3cret", hasPass: true},
			mutate:        func(p map[string]any) { delete(p, "admin_id") },
			wantInMessage: "admin_id",
		},
		{
			name:          "password not configured",
			store:         fakeStore{},
			wantNotified:  true,
			wantInMessage: "not configured",
		},
		{
			name:          "invalid signal",
			store:         fakeStore{password: "s3cret", hasPass: true},
			mutate:        func(p map[string]any) { p["market_position"] = "sideways" },
			wantNotified:  true,
			wantInMessage: "invalid signal",
		},
		{
			name:          "invalid quantity",
			store:         fakeStore{password: "s3cret", hasPass: true},
			mutate:        func(p map[string]any) { p["contracts"] = "0" },
			wantNotified:  true,
			wantInMessage: "quantity",
		},
		{
			name:          "unsupported exchange",
			store:         fakeStore{password: "s3cret", hasPass: true},
			mutate:        func(p map[string]any) { p["exchange"] = "BINANCE" },
			wantNotified:  true,
			wantInMessage: "unsupported exchange",
		},
		{
			name:          "ip not allowed",
			store:         fakeStore{password: "s3cret", hasPass: true, allowedIPs: []string{"52.89.214.238"}},
			cfg:           Config{CheckAllowedIPs: true},
			remoteIP:      "10.0.0.1",
			wantNotified:  true,
			wantInMessage: "not allowed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.store, tt.cfg)
			payload := validPayload()
			if tt.mutate != nil {
				tt.mutate(payload)
			}

			outcome := f.service.Handle(context.Background(), payload, tt.remoteIP)

			if outcome.Accepted {
				t.Fatalf("outcome accepted, want rejected")
			}
			if !strings.Contains(outcome.Message, tt.wantInMessage) {
				t.Fatalf("message %q should contain %q", outcome.Message, tt.wantInMessage)
			}
			if f.factory.calls != 0 {
				t.Fatalf("executor constructed for rejected webhook")
			}
			if got := len(f.sink.notifications) == 1; got != tt.wantNotified {
				t.Fatalf("notifications = %d, want notified=%v", len(f.sink.notifications), tt.wantNotified)
			}
		})
	}
}

func TestHandleExecutesOrder(t *testing.T) {
	f := newFixture(fakeStore{password: "s3cret", hasPass: true, allowedIPs: []string{"52.89.214.238"}}, Config{CheckAllowedIPs: true})

	outcome := f.service.Handle(context.Background(), validPayload(), "52.89.214.238")

	if !outcome.Accepted || outcome.Result == nil || !outcome.Result.Success {
		t.Fatalf("outcome = %+v, want executed", outcome)
	}
	requests := f.factory.executor.requests
	if len(requests) != 1 {
		t.Fatalf("executor requests = %d, want 1", len(requests))
	}
	if requests[0].Intent != entity.IntentOpenLong {
		t.Fatalf("intent = %s, want open_long", requests[0].Intent)
	}
	if !requests[0].Cost().Equal(decimal.NewFromInt(100000)) {
		t.Fatalf("cost = %s, want 100000", requests[0].Cost())
	}
	if len(f.sink.notifications) != 1 || f.sink.notifications[0].Title != entity.NotificationTitleBuy {
		t.Fatalf("notifications = %+v, want one buy notification", f.sink.notifications)
	}
	if len(f.histories.histories) != 1 || f.histories.histories[0].Intent != string(entity.IntentOpenLong) {
		t.Fatalf("histories = %+v, want one open_long record", f.histories.histories)
	}
}

func TestHandleExecutorUnavailable(t *testing.T) {
	f := newFixture(fakeStore{password: "s3cret", hasPass: true}, Config{})
	f.factory.err = errors.New("exchange credentials are missing")

	outcome := f.service.Handle(context.Background(), validPayload(), "")

	if outcome.Accepted {
		t.Fatalf("outcome accepted, want rejected")
	}
	if len(f.sink.notifications) != 1 || !strings.Contains(f.sink.notifications[0].Result.FailureMessage, "credentials are missing") {
		t.Fatalf("notifications = %+v, want credentials failure", f.sink.notifications)
	}
}

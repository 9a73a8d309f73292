package notification

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/guregu/null/v6"
	"github.com/hanane-support/H-ATS/internal/entity"
	"github.com/shopspring/decimal"
)

type capturedEmbed struct {
	mu     sync.Mutex
	embeds []discordEmbed
}

func (c *capturedEmbed) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload discordPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err == nil {
			c.mu.Lock()
			c.embeds = append(c.embeds, payload.Embeds...)
			c.mu.Unlock()
		}
		w.WriteHeader(status)
	}
}

func (c *capturedEmbed) all() []discordEmbed {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]discordEmbed(nil), c.embeds...)
}

func sellResult() entity.ExecutionResult {
	return entity.ExecutionResult{
		Success:        true,
		OrderID:        null.StringFrom("signal-9"),
		Exchange:       "UPBIT",
		Symbol:         "BTC/KRW",
		Side:           entity.OrderSideSell,
		AveragePrice:   decimal.NewFromInt(50000000),
		FilledQuantity: decimal.RequireFromString("0.01"),
		FilledCost:     decimal.NewFromInt(500000),
		Timestamp:      time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		AdvisoryNote:   "sold full holding: 0.01000000 BTC",
	}
}

func TestFormatNotification(t *testing.T) {
	t.Run("sell success", func(t *testing.T) {
		description, color := FormatNotification(entity.NewExecutionNotification("admin-1", sellResult()))
		if color != ColorSell {
			t.Errorf("color = %#x, want %#x", color, ColorSell)
		}
		for _, want := range []string{"symbol: BTC/KRW", "order type: sell", "id: signal-9", "comment: unknown", "amount: 0.01000000", "sold full holding"} {
			if !strings.Contains(description, want) {
				t.Errorf("description missing %q:\n%s", want, description)
			}
		}
	})

	t.Run("failure", func(t *testing.T) {
		result := entity.ExecutionResult{Success: false, FailureMessage: "insufficient funds: no BTC available to sell"}
		n := entity.NewExecutionNotification("admin-1", result)
		description, color := FormatNotification(n)
		if n.Title != entity.NotificationTitleFailed {
			t.Errorf("title = %s", n.Title)
		}
		if color != ColorFailure || description != result.FailureMessage {
			t.Errorf("FormatNotification() = %q, %#x", description, color)
		}
	})
}

func TestDiscordNotifierSendEmbed(t *testing.T) {
	t.Run("no content accepted", func(t *testing.T) {
		captured := &capturedEmbed{}
		server := httptest.NewServer(captured.handler(http.StatusNoContent))
		defer server.Close()

		err := NewDiscordNotifier(time.Second).SendEmbed(context.Background(), server.URL, "buy", "body", ColorBuy)
		if err != nil {
			t.Fatalf("SendEmbed() error = %v", err)
		}
		embeds := captured.all()
		if len(embeds) != 1 || embeds[0].Title != "buy" || embeds[0].Color != ColorBuy {
			t.Fatalf("embeds = %+v", embeds)
		}
	})

	t.Run("error status", func(t *testing.T) {
		server := httptest.NewServer((&capturedEmbed{}).handler(http.StatusBadRequest))
		defer server.Close()

		err := NewDiscordNotifier(time.Second).SendEmbed(context.Background(), server.URL, "buy", "body", ColorBuy)
		if !errors.Is(err, ErrDiscordDeliveryFailed) {
			t.Fatalf("SendEmbed() error = %v, want ErrDiscordDeliveryFailed", err)
		}
	})

	t.Run("missing url", func(t *testing.T) {
		err := NewDiscordNotifier(time.Second).SendEmbed(context.Background(), "", "buy", "body", ColorBuy)
		if !errors.Is(err, ErrDiscordWebhookMissing) {
			t.Fatalf("SendEmbed() error = %v, want ErrDiscordWebhookMissing", err)
		}
	})
}

type staticResolver struct {
	url string
}

func (r staticResolver) GetDiscordWebhookURL(context.Context, string) (string, bool, error) {
	return r.url, r.url != "", nil
}

func TestDirectSinkDelivers(t *testing.T) {
	captured := &capturedEmbed{}
	server := httptest.NewServer(captured.handler(http.StatusNoContent))
	defer server.Close()

	service := NewNotificationService(nil, staticResolver{url: server.URL}, NewDiscordNotifier(time.Second))
	sink := NewDirectSink(service, time.Second)

	sink.Notify(context.Background(), entity.NewExecutionNotification("admin-1", sellResult()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sink.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	embeds := captured.all()
	if len(embeds) != 1 || embeds[0].Title != entity.NotificationTitleSell {
		t.Fatalf("embeds = %+v", embeds)
	}
}

func TestDeliverWithoutWebhookURL(t *testing.T) {
	service := NewNotificationService(nil, staticResolver{}, NewDiscordNotifier(time.Second))

	if err := service.Deliver(context.Background(), entity.NewExecutionNotification("admin-1", sellResult())); err != nil {
		t.Fatalf("Deliver() error = %v, want nil", err)
	}
}

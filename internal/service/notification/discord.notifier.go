package notification

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/hanane-support/H-ATS/internal/entity"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	defaultDiscordTimeout = 10 * time.Second

	ColorBuy     = 0x00FF00
	ColorSell    = 0x9B59B6
	ColorFailure = 0xFFFF00
	ColorInfo    = 0x3498DB
)

var (
	ErrDiscordWebhookMissing = errors.New("discord webhook url is not configured")
	ErrDiscordDeliveryFailed = errors.New("discord delivery failed")
)

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

type DiscordNotifier struct {
	httpClient *http.Client
}

func NewDiscordNotifier(timeout time.Duration) *DiscordNotifier {
	if timeout <= 0 {
		timeout = defaultDiscordTimeout
	}

	return &DiscordNotifier{httpClient: &http.Client{Timeout: timeout}}
}

func (d *DiscordNotifier) SendEmbed(ctx context.Context, webhookURL, title, description string, color int) error {
	if strings.TrimSpace(webhookURL) == "" {
		return ErrDiscordWebhookMissing
	}

	payload, err := json.Marshal(discordPayload{Embeds: []discordEmbed{{
		Title:       title,
		Description: description,
		Color:       color,
	}}})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDiscordDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: status=%d body=%s", ErrDiscordDeliveryFailed, resp.StatusCode, string(body))
	}

	return nil
}

func (d *DiscordNotifier) SendNotification(ctx context.Context, webhookURL string, n entity.Notification) error {
	description, color := FormatNotification(n)
	return d.SendEmbed(ctx, webhookURL, n.Title, description, color)
}

func (d *DiscordNotifier) SendInfo(ctx context.Context, webhookURL, title, message string) {
	if strings.TrimSpace(webhookURL) == "" {
		return
	}

	if err := d.SendEmbed(ctx, webhookURL, title, message, ColorInfo); err != nil {
		logrus.WithField("title", title).Warnf("discord info message not delivered: %v", err)
	}
}

// FormatNotification renders an execution result as a Discord embed description.
func FormatNotification(n entity.Notification) (string, int) {
	result := n.Result
	if !result.Success {
		message := result.FailureMessage
		if message == "" {
			message = "unknown error"
		}
		return message, ColorFailure
	}

	color := ColorBuy
	if result.OrderType == entity.OrderSideSell {
		color = ColorSell
	}

	lines := []string{
		"time: " + orUnknown(result.Time),
		"exchange: " + orUnknown(result.Exchange),
		"symbol: " + orUnknown(result.Symbol),
		"order type: " + orUnknown(string(result.OrderType)),
		"id: " + orUnknownPtr(result.ID),
		"comment: " + orUnknownPtr(result.Comment),
		"price: " + orUnknownDecimal(result.Price, 4),
		"amount: " + orUnknownDecimal(result.Amount, 8),
		"cost: " + orUnknownDecimal(result.Cost, 4),
	}
	if n.Note != "" {
		lines = append(lines, "", n.Note)
	}

	return strings.Join(lines, "\n"), color
}

func orUnknown(v string) string {
	if strings.TrimSpace(v) == "" {
		return "unknown"
	}
	return v
}

func orUnknownPtr(v *string) string {
	if v == nil {
		return "unknown"
	}
	return orUnknown(*v)
}

func orUnknownDecimal(v *decimal.Decimal, places int32) string {
	if v == nil {
		return "unknown"
	}
	return v.StringFixed(places)
}

package entity

import (
	"context"
	"time"

	"github.com/guregu/null/v6"
)

type APICredential struct {
	APIKey    string
	SecretKey string
}

func (c APICredential) Complete() bool {
	return c.APIKey != "" && c.SecretKey != ""
}

// CredentialStore is read by the pipeline. The bool reports whether a value is on record.
type CredentialStore interface {
	GetAPICredentials(ctx context.Context, operatorID string, exchange ExchangeName) (APICredential, bool, error)
	GetWebhookPassword(ctx context.Context, operatorID string) (string, bool, error)
	GetAllowedIPs(ctx context.Context, operatorID string) ([]string, error)
	GetDiscordWebhookURL(ctx context.Context, operatorID string) (string, bool, error)
}

type ExchangeCredential struct {
	ID        string    `db:"id" json:"id"`
	AdminID   string    `db:"admin_id" json:"admin_id"`
	Exchange  string    `db:"exchange" json:"exchange"`
	APIKey    string    `db:"api_key" json:"-"`
	SecretKey string    `db:"secret_key" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (e ExchangeCredential) TableName() string {
	return "exchange_credentials"
}

type MessengerConfig struct {
	ID                string      `db:"id" json:"id"`
	AdminID           string      `db:"admin_id" json:"admin_id"`
	DiscordWebhookURL null.String `db:"discord_webhook_url" json:"discord_webhook_url"`
	CreatedAt         time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at" json:"updated_at"`
}

func (m MessengerConfig) TableName() string {
	return "messenger_configs"
}

type WebhookConfig struct {
	ID              string      `db:"id" json:"id"`
	AdminID         string      `db:"admin_id" json:"admin_id"`
	WebhookPassword null.String `db:"webhook_password" json:"-"`
	AllowedIPs      null.String `db:"allowed_ips" json:"allowed_ips"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`
}

func (w WebhookConfig) TableName() string {
	return "webhook_configs"
}

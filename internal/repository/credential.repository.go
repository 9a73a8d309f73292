package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/guregu/null/v6"
	"github.com/hanane-support/H-ATS/internal/constant"
	"github.com/hanane-support/H-ATS/internal/entity"
	"github.com/hanane-support/H-ATS/internal/util"
	"github.com/jmoiron/sqlx"
)

// CredentialRepository stores per-operator exchange keys, webhook settings and the Discord target.
type CredentialRepository struct {
	db     *sqlx.DB
	cipher *util.SecretCipher
}

func NewCredentialRepository(db *sqlx.DB, cipher *util.SecretCipher) *CredentialRepository {
	return &CredentialRepository{db: db, cipher: cipher}
}

func (r *CredentialRepository) GetAPICredentials(ctx context.Context, adminID string, exchange entity.ExchangeName) (entity.APICredential, bool, error) {
	var row entity.ExchangeCredential
	err := r.db.GetContext(ctx, &row, "SELECT * FROM exchange_credentials WHERE admin_id = $1 AND exchange = $2", adminID, string(exchange))
	if errors.Is(err, sql.ErrNoRows) {
		return entity.APICredential{}, false, nil
	}
	if err != nil {
		return entity.APICredential{}, false, err
	}

	secretKey, err := r.cipher.Decrypt(row.SecretKey)
	if err != nil {
		return entity.APICredential{}, false, fmt.Errorf("decrypt %s secret key: %w", exchange, err)
	}

	return entity.APICredential{APIKey: row.APIKey, SecretKey: secretKey}, true, nil
}

func (r *CredentialRepository) UpsertAPICredentials(ctx context.Context, adminID string, exchange entity.ExchangeName, cred entity.APICredential) error {
	secretKey, err := r.cipher.Encrypt(cred.SecretKey)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	queryBuilder := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Insert(entity.ExchangeCredential{}.TableName()).
		Columns("admin_id", "exchange", "api_key", "secret_key", "created_at", "updated_at").
		Values(adminID, string(exchange), cred.APIKey, secretKey, now, now).
		Suffix("ON CONFLICT (admin_id, exchange) DO UPDATE SET api_key = EXCLUDED.api_key, secret_key = EXCLUDED.secret_key, updated_at = EXCLUDED.updated_at")

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *CredentialRepository) DeleteAPICredentials(ctx context.Context, adminID string, exchange entity.ExchangeName) (bool, error) {
	queryBuilder := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Delete(entity.ExchangeCredential{}.TableName()).
		Where(sq.Eq{"admin_id": adminID, "exchange": string(exchange)})

	return r.execAffected(ctx, queryBuilder)
}

func (r *CredentialRepository) GetWebhookPassword(ctx context.Context, adminID string) (string, bool, error) {
	row, found, err := r.getWebhookConfig(ctx, adminID)
	if err != nil || !found || !row.WebhookPassword.Valid || row.WebhookPassword.String == "" {
		return "", false, err
	}

	password, err := r.cipher.Decrypt(row.WebhookPassword.String)
	if err != nil {
		return "", false, fmt.Errorf("decrypt webhook password: %w", err)
	}

	return password, true, nil
}

func (r *CredentialRepository) UpsertWebhookPassword(ctx context.Context, adminID, password string) error {
	sealed, err := r.cipher.Encrypt(password)
	if err != nil {
		return err
	}

	return r.upsertWebhookConfig(ctx, adminID, "webhook_password", null.StringFrom(sealed))
}

// GetAllowedIPs falls back to the TradingView addresses when the operator has not configured a list.
func (r *CredentialRepository) GetAllowedIPs(ctx context.Context, adminID string) ([]string, error) {
	row, found, err := r.getWebhookConfig(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if !found || !row.AllowedIPs.Valid {
		return constant.DefaultAllowedIPs, nil
	}

	ips := SplitAllowedIPs(row.AllowedIPs.String)
	if len(ips) == 0 {
		return constant.DefaultAllowedIPs, nil
	}

	return ips, nil
}

func (r *CredentialRepository) UpsertAllowedIPs(ctx context.Context, adminID string, ips []string) error {
	value := null.String{}
	if joined := strings.Join(SplitAllowedIPs(strings.Join(ips, ",")), ","); joined != "" {
		value = null.StringFrom(joined)
	}

	return r.upsertWebhookConfig(ctx, adminID, "allowed_ips", value)
}

func (r *CredentialRepository) GetDiscordWebhookURL(ctx context.Context, adminID string) (string, bool, error) {
	var row entity.MessengerConfig
	err := r.db.GetContext(ctx, &row, "SELECT * FROM messenger_configs WHERE admin_id = $1", adminID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if !row.DiscordWebhookURL.Valid || strings.TrimSpace(row.DiscordWebhookURL.String) == "" {
		return "", false, nil
	}

	return row.DiscordWebhookURL.String, true, nil
}

func (r *CredentialRepository) UpsertDiscordWebhookURL(ctx context.Context, adminID, webhookURL string) error {
	now := time.Now().UTC()
	queryBuilder := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Insert(entity.MessengerConfig{}.TableName()).
		Columns("admin_id", "discord_webhook_url", "created_at", "updated_at").
		Values(adminID, null.NewString(webhookURL, webhookURL != ""), now, now).
		Suffix("ON CONFLICT (admin_id) DO UPDATE SET discord_webhook_url = EXCLUDED.discord_webhook_url, updated_at = EXCLUDED.updated_at")

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *CredentialRepository) DeleteDiscordWebhookURL(ctx context.Context, adminID string) (bool, error) {
	queryBuilder := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Update(entity.MessengerConfig{}.TableName()).
		Set("discord_webhook_url", nil).
		Set("updated_at", time.Now().UTC()).
		Where(sq.And{sq.Eq{"admin_id": adminID}, sq.NotEq{"discord_webhook_url": nil}})

	return r.execAffected(ctx, queryBuilder)
}

func (r *CredentialRepository) getWebhookConfig(ctx context.Context, adminID string) (entity.WebhookConfig, bool, error) {
	var row entity.WebhookConfig
	err := r.db.GetContext(ctx, &row, "SELECT * FROM webhook_configs WHERE admin_id = $1", adminID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.WebhookConfig{}, false, nil
	}
	if err != nil {
		return entity.WebhookConfig{}, false, err
	}

	return row, true, nil
}

func (r *CredentialRepository) upsertWebhookConfig(ctx context.Context, adminID, column string, value null.String) error {
	now := time.Now().UTC()
	queryBuilder := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Insert(entity.WebhookConfig{}.TableName()).
		Columns("admin_id", column, "created_at", "updated_at").
		Values(adminID, value, now, now).
		Suffix(fmt.Sprintf("ON CONFLICT (admin_id) DO UPDATE SET %s = EXCLUDED.%s, updated_at = EXCLUDED.updated_at", column, column))

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *CredentialRepository) execAffected(ctx context.Context, builder sq.Sqlizer) (bool, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return false, err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// SplitAllowedIPs parses the comma separated allowed_ips column, dropping blanks and duplicates.
func SplitAllowedIPs(raw string) []string {
	seen := make(map[string]bool)
	ips := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		ip := strings.TrimSpace(part)
		if ip == "" || seen[ip] {
			continue
		}
		seen[ip] = true
		ips = append(ips, ip)
	}

	return ips
}

package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/hanane-support/H-ATS/internal/config"
	"github.com/hanane-support/H-ATS/internal/entity"
	"github.com/hanane-support/H-ATS/internal/repository"
	"github.com/hanane-support/H-ATS/internal/service/notification"
	"github.com/hanane-support/H-ATS/internal/util"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const credentialCommandTimeout = 30 * time.Second

var errFlagRequired = errors.New("flag is required")

type credentialCommand func(ctx context.Context, cmd *cobra.Command, adminID string, repo *repository.CredentialRepository, histories *repository.ExecutionHistoryRepository) error

// runCredentialCommand opens the store, runs fn for the --admin-id operator and closes the store.
func runCredentialCommand(cmd *cobra.Command, fn credentialCommand) {
	ctx, cancel := context.WithTimeout(context.Background(), credentialCommandTimeout)
	defer cancel()

	adminID, err := requiredFlag(cmd, "admin-id")
	util.ContinueOrFatal(err)

	store := openMainDatabase(ctx)
	defer store.db.Close()

	util.ContinueOrFatal(fn(ctx, cmd, adminID, store.credentials, store.histories))
}

func StartSetExchangeKeys(cmd *cobra.Command, args []string) {
	runCredentialCommand(cmd, func(ctx context.Context, cmd *cobra.Command, adminID string, repo *repository.CredentialRepository, _ *repository.ExecutionHistoryRepository) error {
		exchangeName, err := exchangeFlag(cmd)
		if err != nil {
			return err
		}
		accessKey, err := requiredFlag(cmd, "access-key")
		if err != nil {
			return err
		}
		secretKey, err := requiredFlag(cmd, "secret-key")
		if err != nil {
			return err
		}

		err = repo.UpsertAPICredentials(ctx, adminID, exchangeName, entity.APICredential{APIKey: accessKey, SecretKey: secretKey})
		if err != nil {
			return err
		}

		logrus.WithFields(logrus.Fields{"operator_id": adminID, "exchange": exchangeName}).Info("exchange api keys registered")
		notifyOperator(ctx, repo, adminID, "api keys registered", fmt.Sprintf("%s api keys were registered", exchangeName))
		return nil
	})
}

func StartDeleteExchangeKeys(cmd *cobra.Command, args []string) {
	runCredentialCommand(cmd, func(ctx context.Context, cmd *cobra.Command, adminID string, repo *repository.CredentialRepository, _ *repository.ExecutionHistoryRepository) error {
		exchangeName, err := exchangeFlag(cmd)
		if err != nil {
			return err
		}

		deleted, err := repo.DeleteAPICredentials(ctx, adminID, exchangeName)
		if err != nil {
			return err
		}
		if !deleted {
			logrus.WithFields(logrus.Fields{"operator_id": adminID, "exchange": exchangeName}).Warn("no api keys on record")
			return nil
		}

		logrus.WithFields(logrus.Fields{"operator_id": adminID, "exchange": exchangeName}).Info("exchange api keys released")
		notifyOperator(ctx, repo, adminID, "api keys released", fmt.Sprintf("%s api keys were released", exchangeName))
		return nil
	})
}

func StartSetDiscordWebhook(cmd *cobra.Command, args []string) {
	runCredentialCommand(cmd, func(ctx context.Context, cmd *cobra.Command, adminID string, repo *repository.CredentialRepository, _ *repository.ExecutionHistoryRepository) error {
		webhookURL, err := requiredFlag(cmd, "url")
		if err != nil {
			return err
		}
		if !strings.HasPrefix(webhookURL, "https://") {
			return fmt.Errorf("discord webhook url must use https: %s", webhookURL)
		}

		if err := repo.UpsertDiscordWebhookURL(ctx, adminID, webhookURL); err != nil {
			return err
		}

		logrus.WithField("operator_id", adminID).Info("discord webhook registered")
		notifyOperator(ctx, repo, adminID, "discord connected", "order results will be posted to this channel")
		return nil
	})
}

func StartDeleteDiscordWebhook(cmd *cobra.Command, args []string) {
	runCredentialCommand(cmd, func(ctx context.Context, cmd *cobra.Command, adminID string, repo *repository.CredentialRepository, _ *repository.ExecutionHistoryRepository) error {
		notifyOperator(ctx, repo, adminID, "discord disconnected", "order results will no longer be posted to this channel")

		deleted, err := repo.DeleteDiscordWebhookURL(ctx, adminID)
		if err != nil {
			return err
		}

		logrus.WithFields(logrus.Fields{"operator_id": adminID, "deleted": deleted}).Info("discord webhook released")
		return nil
	})
}

func StartSetWebhookPassword(cmd *cobra.Command, args []string) {
	runCredentialCommand(cmd, func(ctx context.Context, cmd *cobra.Command, adminID string, repo *repository.CredentialRepository, _ *repository.ExecutionHistoryRepository) error {
		password, err := requiredFlag(cmd, "password")
		if err != nil {
			return err
		}

		if err := repo.UpsertWebhookPassword(ctx, adminID, password); err != nil {
			return err
		}

		logrus.WithField("operator_id", adminID).Info("webhook password updated")
		return nil
	})
}

func StartSetAllowedIPs(cmd *cobra.Command, args []string) {
	runCredentialCommand(cmd, func(ctx context.Context, cmd *cobra.Command, adminID string, repo *repository.CredentialRepository, _ *repository.ExecutionHistoryRepository) error {
		ips, _ := cmd.Flags().GetStringSlice("ips")

		if err := repo.UpsertAllowedIPs(ctx, adminID, ips); err != nil {
			return err
		}

		allowed, err := repo.GetAllowedIPs(ctx, adminID)
		if err != nil {
			return err
		}

		logrus.WithFields(logrus.Fields{"operator_id": adminID, "allowed_ips": allowed}).Info("allowed ips updated")
		return nil
	})
}

func StartShowExecutionHistory(cmd *cobra.Command, args []string) {
	runCredentialCommand(cmd, func(ctx context.Context, cmd *cobra.Command, adminID string, _ *repository.CredentialRepository, histories *repository.ExecutionHistoryRepository) error {
		limit, _ := cmd.Flags().GetUint64("limit")

		records, err := histories.GetRecentByAdminID(ctx, adminID, limit)
		if err != nil {
			return err
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(records)
	})
}

func notifyOperator(ctx context.Context, repo *repository.CredentialRepository, adminID, title, message string) {
	webhookURL, found, err := repo.GetDiscordWebhookURL(ctx, adminID)
	if err != nil {
		logrus.WithField("operator_id", adminID).Warnf("load discord webhook: %v", err)
		return
	}
	if !found {
		return
	}

	notification.NewDiscordNotifier(config.Env.Notification.RequestTimeout).SendInfo(ctx, webhookURL, title, message)
}

func requiredFlag(cmd *cobra.Command, name string) (string, error) {
	value, _ := cmd.Flags().GetString(name)
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("--%s %w", name, errFlagRequired)
	}

	return value, nil
}

func exchangeFlag(cmd *cobra.Command) (entity.ExchangeName, error) {
	value, _ := cmd.Flags().GetString("exchange")
	exchangeName := entity.ExchangeName(strings.ToUpper(strings.TrimSpace(value)))
	if exchangeName != entity.ExchangeUpbit {
		return "", fmt.Errorf("unsupported exchange: %s", value)
	}

	return exchangeName, nil
}

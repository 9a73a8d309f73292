package cmd

import (
	"github.com/hanane-support/H-ATS/internal/bootstrap"
	"github.com/spf13/cobra"
)

// credentialCmd groups the operator data commands
var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage operator credentials and settings",
}

var setKeysCmd = &cobra.Command{
	Use:   "set-keys",
	Short: "Register exchange api keys",
	Run:   bootstrap.StartSetExchangeKeys,
}

var deleteKeysCmd = &cobra.Command{
	Use:   "delete-keys",
	Short: "Release exchange api keys",
	Run:   bootstrap.StartDeleteExchangeKeys,
}

var setDiscordCmd = &cobra.Command{
	Use:   "set-discord",
	Short: "Register the Discord webhook url for order results",
	Run:   bootstrap.StartSetDiscordWebhook,
}

var deleteDiscordCmd = &cobra.Command{
	Use:   "delete-discord",
	Short: "Release the Discord webhook url",
	Run:   bootstrap.StartDeleteDiscordWebhook,
}

var setPasswordCmd = &cobra.Command{
	Use:   "set-password",
	Short: "Set the webhook password expected in TradingView alerts",
	Run:   bootstrap.StartSetWebhookPassword,
}

var setAllowedIPsCmd = &cobra.Command{
	Use:   "set-allowed-ips",
	Short: "Set the source addresses allowed to send alerts",
	Long:  `Set the source addresses allowed to send alerts. An empty list restores the TradingView defaults.`,
	Run:   bootstrap.StartSetAllowedIPs,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print recent execution results",
	Run:   bootstrap.StartShowExecutionHistory,
}

func init() {
	rootCmd.AddCommand(credentialCmd)
	credentialCmd.PersistentFlags().String("admin-id", "", "operator id")

	for _, c := range []*cobra.Command{setKeysCmd, deleteKeysCmd} {
		c.Flags().String("exchange", "UPBIT", "exchange name")
	}
	setKeysCmd.Flags().String("access-key", "", "exchange access key")
	setKeysCmd.Flags().String("secret-key", "", "exchange secret key")
	setDiscordCmd.Flags().String("url", "", "discord webhook url")
	setPasswordCmd.Flags().String("password", "", "webhook password")
	setAllowedIPsCmd.Flags().StringSlice("ips", nil, "comma separated source addresses")
	historyCmd.Flags().Uint64("limit", 20, "number of records")

	credentialCmd.AddCommand(setKeysCmd, deleteKeysCmd, setDiscordCmd, deleteDiscordCmd, setPasswordCmd, setAllowedIPsCmd, historyCmd)
}

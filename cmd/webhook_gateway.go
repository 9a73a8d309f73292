package cmd

import (
	"github.com/hanane-support/H-ATS/internal/bootstrap"
	"github.com/spf13/cobra"
)

// webhookGatewayCmd represents the webhook-gateway command
var webhookGatewayCmd = &cobra.Command{
	Use:   "webhook-gateway",
	Short: "Start the TradingView webhook gateway",
	Long: `The webhook gateway authenticates TradingView alerts, resolves the
position transition into an order intent and executes it as a market order
on the operator's exchange account.`,
	Run: bootstrap.StartWebhookGateway,
}

func init() {
	rootCmd.AddCommand(webhookGatewayCmd)
}

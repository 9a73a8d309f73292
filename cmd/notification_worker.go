package cmd

import (
	"github.com/hanane-support/H-ATS/internal/bootstrap"
	"github.com/spf13/cobra"
)

// notificationWorkerCmd represents the notification-worker command
var notificationWorkerCmd = &cobra.Command{
	Use:   "notification-worker",
	Short: "Deliver execution results to Discord",
	Long: `Consumes execution results published by the webhook gateway and posts
them to each operator's Discord webhook, retrying failed deliveries.`,
	Run: bootstrap.StartNotificationWorker,
}

func init() {
	rootCmd.AddCommand(notificationWorkerCmd)
}

package bootstrap

import (
	"context"

	"github.com/hanane-support/H-ATS/internal/config"
	"github.com/hanane-support/H-ATS/internal/entity"
	"github.com/hanane-support/H-ATS/internal/infrastructure"
	"github.com/hanane-support/H-ATS/internal/service/notification"
	"github.com/hanane-support/H-ATS/internal/util"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func StartNotificationWorker(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := openMainDatabase(ctx)

	nc, js, err := infrastructure.NewJetstream(config.Env.NatsJetstream)
	util.ContinueOrFatal(err)

	discord := notification.NewDiscordNotifier(config.Env.Notification.RequestTimeout)
	notificationService := notification.NewNotificationService(js, store.credentials, discord)

	subscribers := []entity.Subscriber{notificationService}
	for _, v := range subscribers {
		err = v.JetstreamEventSubscribe(ctx)
		util.ContinueOrFatal(err)
	}
	logrus.Info("notification worker subscribed to execution results")

	wait := gracefulShutdown(ctx, config.Env.GracefulShutdownTimeout, map[string]operation{
		"nats connection": func(ctx context.Context) error {
			return infrastructure.CloseJetstream(nc)
		},
		"database": func(ctx context.Context) error {
			cancel()
			return store.db.Close()
		},
	})

	<-wait
}

package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hanane-support/H-ATS/internal/config"
	"github.com/hanane-support/H-ATS/internal/constant"
	"github.com/hanane-support/H-ATS/internal/entity"
	httpHandler "github.com/hanane-support/H-ATS/internal/handler/webhook/http"
	"github.com/hanane-support/H-ATS/internal/infrastructure"
	"github.com/hanane-support/H-ATS/internal/service/exchange"
	"github.com/hanane-support/H-ATS/internal/service/executor"
	"github.com/hanane-support/H-ATS/internal/service/lock"
	"github.com/hanane-support/H-ATS/internal/service/notification"
	"github.com/hanane-support/H-ATS/internal/service/pipeline"
	"github.com/hanane-support/H-ATS/internal/util"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func StartWebhookGateway(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := openMainDatabase(ctx)
	credentialRepo := store.credentials

	exchangeName := entity.ExchangeUpbit
	exchangeConfig := config.Env.Exchanges[strings.ToLower(string(exchangeName))]
	exchange.InitUpbitExchange(exchangeConfig)

	executors := executorFactory{executor.NewFactory(
		credentialRepo,
		exchange.GlobalExchangeRegistry,
		map[entity.ExchangeName]executor.Config{exchangeName: executorConfig(exchangeConfig)},
	)}

	discord := notification.NewDiscordNotifier(config.Env.Notification.RequestTimeout)

	var (
		nc     *nats.Conn
		sink   entity.NotificationSink
		direct *notification.DirectSink
		err    error
	)
	switch config.Env.Notification.Mode {
	case constant.NotificationModeJetstream:
		var js nats.JetStreamContext
		nc, js, err = infrastructure.NewJetstream(config.Env.NatsJetstream)
		util.ContinueOrFatal(err)

		notificationService := notification.NewNotificationService(js, credentialRepo, discord)
		publishers := []entity.Publisher{notificationService}
		for _, v := range publishers {
			err = v.JetstreamEventInit(ctx)
			util.ContinueOrFatal(err)
		}
		sink = notification.NewJetstreamSink(notificationService)
	default:
		direct = notification.NewDirectSink(notification.NewNotificationService(nil, credentialRepo, discord), config.Env.Notification.RequestTimeout)
		sink = direct
	}

	var (
		redisClient *redis.Client
		locker      lock.Locker = lock.NewLocalLocker()
	)
	if redisConfig, ok := config.Env.Redis["lock"]; ok && redisConfig.CacheDSN != "" {
		redisClient, err = infrastructure.NewRedisClient(ctx, redisConfig)
		util.ContinueOrFatal(err)
		locker = lock.NewRedisLocker(redisClient, constant.OperatorLockKeyPrefix, config.Env.Webhook.OperatorLockTTL)
	}

	webhookService := pipeline.NewWebhookService(credentialRepo, executors, sink, locker, store.histories, pipeline.Config{
		CheckAllowedIPs: config.Env.Webhook.CheckAllowedIPs,
		LockTimeout:     config.Env.Webhook.OperatorLockTTL,
	})

	readiness := map[string]infrastructure.ReadinessCheck{"postgres": store.health.Check}
	if nc != nil {
		readiness["nats"] = infrastructure.JetstreamReadiness(nc)
	}
	if redisClient != nil {
		readiness["redis"] = infrastructure.RedisReadiness(redisClient)
	}

	trustedProxies, err := infrastructure.ParseTrustedProxies(config.Env.Webhook.TrustedProxies)
	util.ContinueOrFatal(err)

	httpMux := http.NewServeMux()
	infrastructure.RegisterHealthRoutes(httpMux, readiness)
	webhookHandler := httpHandler.NewWebhookHTTPHandler(webhookService, config.Env.Webhook.Path, config.Env.Webhook.MaxBodyBytes)
	webhookHandler.Register(httpMux)

	httpPort := fmt.Sprintf(":%s", config.Env.Port["webhook_gateway_http"])
	httpServer := infrastructure.NewHTTPServerWithConfig(infrastructure.HTTPServerConfig{
		Addr:            httpPort,
		ShutdownTimeout: config.Env.GracefulShutdownTimeout,
		RateLimit:       config.Env.Webhook.RateLimit,
		RateBurst:       config.Env.Webhook.RateBurst,
		TrustedProxies:  trustedProxies,
	}, httpMux)

	go func() {
		err := httpServer.Start()
		if err != nil {
			logrus.Error(err)
		}
	}()
	logrus.Info(fmt.Sprintf("http server started on %s", httpPort))

	serverWebhookURL := config.Env.Notification.ServerWebhookURL
	discord.SendInfo(ctx, serverWebhookURL, "server started", fmt.Sprintf("%s %s is listening on %s", config.ServiceName, config.ServiceVersion, httpPort))

	ops := map[string]operation{
		"http": func(_ context.Context) error {
			// the shared ctx is canceled by the database op, in-flight orders still need to drain
			drainCtx, drainCancel := context.WithTimeout(context.Background(), config.Env.GracefulShutdownTimeout)
			defer drainCancel()

			err := httpServer.Shutdown(drainCtx)
			if direct != nil {
				if waitErr := direct.Wait(drainCtx); waitErr != nil && err == nil {
					err = waitErr
				}
			}
			discord.SendInfo(drainCtx, serverWebhookURL, "server stopped", fmt.Sprintf("%s is shutting down", config.ServiceName))
			return err
		},
		"database": func(ctx context.Context) error {
			cancel()
			return store.db.Close()
		},
	}
	if nc != nil {
		ops["nats connection"] = func(ctx context.Context) error {
			return infrastructure.CloseJetstream(nc)
		}
	}
	if redisClient != nil {
		ops["redis"] = func(ctx context.Context) error {
			return redisClient.Close()
		}
	}

	wait := gracefulShutdown(ctx, config.Env.GracefulShutdownTimeout, ops)

	<-wait
}

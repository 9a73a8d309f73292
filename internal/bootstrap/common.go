package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hanane-support/H-ATS/internal/config"
	"github.com/hanane-support/H-ATS/internal/entity"
	"github.com/hanane-support/H-ATS/internal/infrastructure"
	"github.com/hanane-support/H-ATS/internal/repository"
	"github.com/hanane-support/H-ATS/internal/service/executor"
	"github.com/hanane-support/H-ATS/internal/service/market"
	"github.com/hanane-support/H-ATS/internal/service/pipeline"
	"github.com/hanane-support/H-ATS/internal/util"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

const mainDatabase = "h_ats"

type operation func(ctx context.Context) error

// gracefulShutdown waits for termination syscalls and doing clean up operations after received it.
func gracefulShutdown(ctx context.Context, timeout time.Duration, ops map[string]operation) <-chan struct{} {
	wait := make(chan struct{})
	go func() {
		s := make(chan os.Signal, 1)

		// add any other syscalls that you want to be notified with
		signal.Notify(s, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		<-s

		logrus.Info("shutting down")

		// set timeout for the ops to be done to prevent system hang
		timeoutFunc := time.AfterFunc(timeout, func() {
			logrus.Error(fmt.Sprintf("timeout %d ms has been elapsed, force exit", timeout.Milliseconds()))
			os.Exit(0)
		})

		defer timeoutFunc.Stop()

		var wg sync.WaitGroup

		// Do the operations asynchronously to save time
		for key, op := range ops {
			wg.Add(1)
			go func() {
				defer wg.Done()

				logrus.Info(fmt.Sprintf("cleaning up: %s", key))
				if err := op(ctx); err != nil {
					logrus.Error(fmt.Sprintf("%s: clean up failed: %s", key, err.Error()))
					return
				}

				logrus.Info(fmt.Sprintf("%s was shutdown gracefully", key))
			}()
		}

		wg.Wait()

		close(wait)
	}()

	return wait
}

type mainStore struct {
	db          *sqlx.DB
	health      *infrastructure.HealthState
	credentials *repository.CredentialRepository
	histories   *repository.ExecutionHistoryRepository
}

// openMainDatabase connects to the credential and history store and starts its health check.
func openMainDatabase(ctx context.Context) mainStore {
	dbConfig := config.Env.Database[mainDatabase]

	db, err := infrastructure.NewPostgresConnection(ctx, dbConfig)
	util.ContinueOrFatal(err)
	health := infrastructure.StartPostgresHealthCheck(ctx, db, dbConfig.PingInterval)

	cipher, err := util.NewSecretCipher(config.Env.Security.EncryptionKey)
	util.ContinueOrFatal(err)
	if cipher == nil {
		logrus.Warn("security.encryption_key is empty, exchange secrets are stored in plain text")
	}

	return mainStore{
		db:          db,
		health:      health,
		credentials: repository.NewCredentialRepository(db, cipher),
		histories:   repository.NewExecutionHistoryRepository(db),
	}
}

func executorConfig(exchangeConfig config.ExchangeConfig) executor.Config {
	marketConfig := market.DefaultUpbitConfig()
	if currency := exchangeConfig.NativeCurrency; currency != "" {
		marketConfig.NativeCurrency = currency
	}
	if exchangeConfig.FeeRate.IsPositive() {
		marketConfig.FeeRate = exchangeConfig.FeeRate
	}
	if exchangeConfig.MinOrderAmount.IsPositive() {
		marketConfig.MinOrderAmount = exchangeConfig.MinOrderAmount
	}

	return executor.Config{
		FillMaxRetries:   config.Env.Executor.FillMaxRetries,
		FillPollInterval: config.Env.Executor.FillPollInterval,
		BalanceCacheTTL:  config.Env.Executor.BalanceCacheTTL,
		Market:           marketConfig,
	}
}

// executorFactory exposes executor.Factory through the pipeline port.
type executorFactory struct {
	*executor.Factory
}

func (f executorFactory) NewExecutor(ctx context.Context, operatorID string, exchangeName entity.ExchangeName) (pipeline.Executor, error) {
	orderExecutor, err := f.New(ctx, operatorID, exchangeName)
	if err != nil {
		return nil, err
	}

	return orderExecutor, nil
}

package notification

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/hanane-support/H-ATS/internal/config"
	"github.com/hanane-support/H-ATS/internal/constant"
	"github.com/hanane-support/H-ATS/internal/entity"
	"github.com/hanane-support/H-ATS/internal/util"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

const defaultHandlerTimeout = 15 * time.Second

type WebhookURLResolver interface {
	GetDiscordWebhookURL(ctx context.Context, operatorID string) (string, bool, error)
}

type NotificationService struct {
	js       nats.JetStreamContext
	resolver WebhookURLResolver
	discord  *DiscordNotifier
}

func NewNotificationService(js nats.JetStreamContext, resolver WebhookURLResolver, discord *DiscordNotifier) *NotificationService {
	return &NotificationService{
		js:       js,
		resolver: resolver,
		discord:  discord,
	}
}

func (s *NotificationService) JetstreamEventInit(ctx context.Context) error {
	streamConfig := &nats.StreamConfig{
		Name:      constant.NotificationStreamName,
		Subjects:  []string{constant.NotificationStreamSubjectAll},
		Retention: nats.WorkQueuePolicy,
		Storage:   nats.FileStorage,
		MaxAge:    24 * time.Hour,
	}

	stream, err := s.js.StreamInfo(constant.NotificationStreamName, nats.Context(ctx))
	if err != nil && !errors.Is(err, nats.ErrStreamNotFound) {
		logrus.Error(err)
		return err
	}

	if stream == nil {
		logrus.Infof("creating stream: %s", constant.NotificationStreamName)
		_, err = s.js.AddStream(streamConfig, nats.Context(ctx))
		return err
	}

	logrus.Infof("updating stream: %s", constant.NotificationStreamName)
	_, err = s.js.UpdateStream(streamConfig, nats.Context(ctx))
	if err != nil {
		logrus.Error(err)
		return err
	}

	return nil
}

func (s *NotificationService) JetstreamEventSubscribe(ctx context.Context) error {
	err := s.JetstreamEventInit(ctx)
	if err != nil {
		logrus.Error(err)
		return err
	}

	timeout := config.Env.NatsJetstream.TimeoutHandler["execution_result"]
	if timeout <= 0 {
		timeout = defaultHandlerTimeout
	}

	_, err = s.js.QueueSubscribe(
		constant.NotificationStreamSubjectExecutionResult,
		constant.NotificationQueueName,
		func(msg *nats.Msg) {
			err := util.ProcessWithTimeout(timeout, msg, s.handleExecutionResultEvent)
			if err != nil {
				logrus.Errorf("error processing message: %v", err)
				return
			}

			err = msg.Ack()
			if err != nil {
				logrus.Errorf("failed to acknowledge message: %v", err)
				return
			}
		},
		nats.ManualAck(),
		nats.Durable(constant.NotificationQueueGroup),
	)
	if err != nil {
		return err
	}

	return nil
}

func (s *NotificationService) handleExecutionResultEvent(ctx context.Context, msg *nats.Msg) (err error) {
	var event *entity.NotificationEvent
	err = json.Unmarshal(msg.Data, &event)
	if err != nil || event == nil {
		logrus.WithField("req", string(msg.Data)).Errorf("invalid notification event: %v", err)
		return nil
	}

	logger := logrus.WithFields(logrus.Fields{
		"operator_id": event.Data.OperatorID,
		"title":       event.Data.Title,
		"retry":       event.RetryCount,
	})

	defer func() {
		if err != nil {
			logger.Error(err)
			event.RetryCount++
			if event.RetryCount >= config.Env.NatsJetstream.MaxRetries {
				logger.Warn("notification dropped after max retries")
				err = nil
				return
			}

			publishErr := util.PublishEvent(s.js, constant.NotificationStreamSubjectExecutionResult, event, nats.ExpectStream(constant.NotificationStreamName))
			if publishErr != nil {
				logger.Error(publishErr)
				return
			}
			err = nil
		}
	}()

	return s.Deliver(ctx, event.Data)
}

// Deliver sends a notification to the operator's Discord channel. A missing channel is logged and skipped.
func (s *NotificationService) Deliver(ctx context.Context, n entity.Notification) error {
	webhookURL, found, err := s.resolver.GetDiscordWebhookURL(ctx, n.OperatorID)
	if err != nil {
		return err
	}
	if !found {
		logrus.WithField("operator_id", n.OperatorID).Warn("discord webhook url not configured, notification skipped")
		return nil
	}

	err = s.discord.SendNotification(ctx, webhookURL, n)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"operator_id": n.OperatorID,
		"title":       n.Title,
		"success":     n.Result.Success,
	}).Info("notification delivered")

	return nil
}

func (s *NotificationService) Publish(n entity.Notification) error {
	return util.PublishEvent(s.js, constant.NotificationStreamSubjectExecutionResult, entity.NotificationEvent{
		RetryCount: 0,
		Data:       n,
	}, nats.ExpectStream(constant.NotificationStreamName))
}

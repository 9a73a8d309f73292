package notification

import (
	"context"
	"sync"
	"time"

	"github.com/hanane-support/H-ATS/internal/entity"
	"github.com/sirupsen/logrus"
)

// JetstreamSink hands results to the notification worker through the notification stream.
type JetstreamSink struct {
	service *NotificationService
}

func NewJetstreamSink(service *NotificationService) *JetstreamSink {
	return &JetstreamSink{service: service}
}

func (s *JetstreamSink) Notify(_ context.Context, n entity.Notification) {
	if err := s.service.Publish(n); err != nil {
		logrus.WithField("operator_id", n.OperatorID).Errorf("publish notification: %v", err)
	}
}

// DirectSink posts to Discord from a background goroutine in the gateway process.
type DirectSink struct {
	service *NotificationService
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDirectSink(service *NotificationService, timeout time.Duration) *DirectSink {
	if timeout <= 0 {
		timeout = defaultDiscordTimeout
	}

	return &DirectSink{service: service, timeout: timeout}
}

func (s *DirectSink) Notify(_ context.Context, n entity.Notification) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if err := s.service.Deliver(ctx, n); err != nil {
			logrus.WithField("operator_id", n.OperatorID).Errorf("deliver notification: %v", err)
		}
	}()
}

// Wait blocks until in-flight deliveries finish.
func (s *DirectSink) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package pipeline

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hanane-support/H-ATS/internal/entity"
	"github.com/hanane-support/H-ATS/internal/service/lock"
	"github.com/hanane-support/H-ATS/internal/service/signal"
	"github.com/sirupsen/logrus"
)

var (
	ErrAdminIDMissing             = errors.New("admin_id is missing from the webhook payload")
	ErrIPNotAllowed               = errors.New("source ip is not allowed")
	ErrWebhookPasswordNotSet      = errors.New("webhook password is not configured")
	ErrWebhookPasswordMismatch    = errors.New("webhook password does not match")
	ErrUnsupportedExchange        = errors.New("unsupported exchange")
	ErrOperatorBusy               = errors.New("operator is busy with another order")
	ErrExecutorUnavailable        = errors.New("order executor unavailable")
	ErrCredentialStoreUnavailable = errors.New("credential store unavailable")
)

const (
	fieldAdminID         = "admin_id"
	fieldWebhookPassword = "webhook_password"
	fieldExchange        = "exchange"
)

// Executor runs one order request and reports the outcome.
type Executor interface {
	Execute(ctx context.Context, req entity.OrderRequest) entity.ExecutionResult
}

type ExecutorFactory interface {
	Supports(exchange entity.ExchangeName) bool
	NewExecutor(ctx context.Context, operatorID string, exchange entity.ExchangeName) (Executor, error)
}

type HistoryRecorder interface {
	Create(ctx context.Context, history *entity.ExecutionHistory) error
}

type Config struct {
	CheckAllowedIPs bool
	LockTimeout     time.Duration
}

type WebhookService struct {
	store     entity.CredentialStore
	executors ExecutorFactory
	sink      entity.NotificationSink
	locker    lock.Locker
	histories HistoryRecorder
	cfg       Config
	now       func() time.Time
}

func NewWebhookService(store entity.CredentialStore, executors ExecutorFactory, sink entity.NotificationSink, locker lock.Locker, histories HistoryRecorder, cfg Config) *WebhookService {
	if locker == nil {
		locker = lock.NewNoopLocker()
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = lock.DefaultTTL
	}

	return &WebhookService{
		store:     store,
		executors: executors,
		sink:      sink,
		locker:    locker,
		histories: histories,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Handle authenticates a TradingView alert, executes it and notifies the operator.
// Execution failures are reported through the sink and the returned outcome, never as an error.
func (s *WebhookService) Handle(ctx context.Context, payload map[string]any, remoteIP string) entity.WebhookOutcome {
	alertTime := s.now()
	requestID := uuid.NewString()

	adminID := strings.TrimSpace(stringValue(payload, fieldAdminID))
	logger := logrus.WithFields(logrus.Fields{
		"request_id":  requestID,
		"operator_id": adminID,
		"remote_ip":   remoteIP,
	})

	if adminID == "" {
		logger.Warn(ErrAdminIDMissing)
		return entity.WebhookOutcome{RequestID: requestID, Message: ErrAdminIDMissing.Error()}
	}

	if err := s.authenticate(ctx, adminID, payload, remoteIP); err != nil {
		logger.Warnf("webhook rejected: %v", err)
		s.notifyFailure(ctx, adminID, authFailureMessage(err))
		return entity.WebhookOutcome{RequestID: requestID, Message: err.Error()}
	}

	req, err := s.buildRequest(payload, alertTime)
	if err != nil {
		logger.Warnf("invalid order request: %v", err)
		s.notifyFailure(ctx, adminID, fmt.Sprintf("order request could not be created: %v", err))
		return entity.WebhookOutcome{RequestID: requestID, Message: err.Error()}
	}

	logger = logger.WithFields(logrus.Fields{
		"exchange": req.Exchange,
		"ticker":   req.Ticker,
		"intent":   req.Intent,
	})

	exchangeName := entity.ExchangeName(strings.ToUpper(strings.TrimSpace(req.Exchange)))
	if !s.executors.Supports(exchangeName) {
		err := fmt.Errorf("%w: %s", ErrUnsupportedExchange, req.Exchange)
		logger.Warn(err)
		s.notifyFailure(ctx, adminID, err.Error())
		return entity.WebhookOutcome{RequestID: requestID, Message: err.Error()}
	}

	result, err := s.execute(ctx, adminID, exchangeName, req)
	if err != nil {
		logger.Warn(err)
		s.notifyFailure(ctx, adminID, err.Error())
		return entity.WebhookOutcome{RequestID: requestID, Message: err.Error()}
	}

	s.record(ctx, requestID, adminID, req, result)
	s.sink.Notify(ctx, entity.NewExecutionNotification(adminID, result))

	if result.Success {
		logger.WithField("exchange_order_id", result.ExchangeOrderID).Info("order executed")
	} else {
		logger.Warnf("order failed: %s", result.FailureMessage)
	}

	message := "order executed"
	if !result.Success {
		message = result.FailureMessage
	}

	return entity.WebhookOutcome{
		RequestID: requestID,
		Accepted:  true,
		Result:    &result,
		Message:   message,
	}
}

func (s *WebhookService) authenticate(ctx context.Context, adminID string, payload map[string]any, remoteIP string) error {
	if s.cfg.CheckAllowedIPs {
		allowed, err := s.store.GetAllowedIPs(ctx, adminID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCredentialStoreUnavailable, err)
		}
		if !slices.Contains(allowed, remoteIP) {
			return fmt.Errorf("%w: %s", ErrIPNotAllowed, remoteIP)
		}
	}

	stored, found, err := s.store.GetWebhookPassword(ctx, adminID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCredentialStoreUnavailable, err)
	}
	if !found {
		return ErrWebhookPasswordNotSet
	}

	received := stringValue(payload, fieldWebhookPassword)
	if subtle.ConstantTimeCompare([]byte(received), []byte(stored)) != 1 {
		return ErrWebhookPasswordMismatch
	}

	return nil
}

func (s *WebhookService) buildRequest(payload map[string]any, alertTime time.Time) (entity.OrderRequest, error) {
	req, err := signal.Normalize(payload, alertTime)
	if err != nil {
		return entity.OrderRequest{}, err
	}

	intent, err := signal.ResolveIntent(req.PrevPosition, req.Action, req.NextPosition)
	if err != nil {
		return entity.OrderRequest{}, err
	}

	return req.WithIntent(intent), nil
}

func (s *WebhookService) execute(ctx context.Context, adminID string, exchangeName entity.ExchangeName, req entity.OrderRequest) (entity.ExecutionResult, error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.cfg.LockTimeout)
	defer cancel()

	release, err := s.locker.Acquire(lockCtx, adminID)
	if err != nil {
		return entity.ExecutionResult{}, fmt.Errorf("%w: %w", ErrOperatorBusy, err)
	}
	defer release()

	executor, err := s.executors.NewExecutor(ctx, adminID, exchangeName)
	if err != nil {
		return entity.ExecutionResult{}, fmt.Errorf("%w: %w", ErrExecutorUnavailable, err)
	}

	return executor.Execute(ctx, req), nil
}

func (s *WebhookService) record(ctx context.Context, requestID, adminID string, req entity.OrderRequest, result entity.ExecutionResult) {
	if s.histories == nil {
		return
	}

	history := entity.NewExecutionHistory(requestID, adminID, req, result, s.now())
	if err := s.histories.Create(ctx, history); err != nil {
		logrus.WithField("request_id", requestID).Errorf("record execution history: %v", err)
	}
}

func (s *WebhookService) notifyFailure(ctx context.Context, adminID, message string) {
	s.sink.Notify(ctx, entity.NewExecutionNotification(adminID, entity.ExecutionResult{
		Success:        false,
		Timestamp:      s.now(),
		FailureMessage: message,
	}))
}

func authFailureMessage(err error) string {
	switch {
	case errors.Is(err, ErrWebhookPasswordMismatch):
		return "webhook password does not match, check webhook_password in the TradingView alert message"
	case errors.Is(err, ErrWebhookPasswordNotSet):
		return "webhook password is not configured for this operator"
	default:
		return err.Error()
	}
}

func stringValue(payload map[string]any, key string) string {
	value, ok := payload[key]
	if !ok || value == nil {
		return ""
	}

	if s, ok := value.(string); ok {
		return s
	}

	return fmt.Sprint(value)
}

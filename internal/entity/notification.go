package entity

import "context"

const (
	NotificationTitleBuy    = "buy"
	NotificationTitleSell   = "sell"
	NotificationTitleFailed = "order failed"
)

type Notification struct {
	OperatorID string           `json:"operator_id"`
	Title      string           `json:"title"`
	Result     ExecutionPayload `json:"result"`
	Note       string           `json:"note,omitempty"`
}

type NotificationEvent struct {
	RetryCount int          `json:"retry"`
	Data       Notification `json:"data"`
}

// NotificationSink delivers results out of band. Implementations must not block the caller on delivery.
type NotificationSink interface {
	Notify(ctx context.Context, notification Notification)
}

func NewExecutionNotification(operatorID string, result ExecutionResult) Notification {
	title := NotificationTitleFailed
	if result.Success {
		title = NotificationTitleBuy
		if result.Side == OrderSideSell {
			title = NotificationTitleSell
		}
	}

	return Notification{
		OperatorID: operatorID,
		Title:      title,
		Result:     result.Payload(),
		Note:       result.AdvisoryNote,
	}
}

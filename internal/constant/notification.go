package constant

const (
	NotificationQueueName  = "notification_queue"
	NotificationQueueGroup = "notification_group"

	NotificationStreamName                   = "notification"
	NotificationStreamSubjectAll             = "notification.*"
	NotificationStreamSubjectExecutionResult = "notification.execution_result"

	NotificationModeJetstream = "jetstream"
	NotificationModeDirect    = "direct"
)

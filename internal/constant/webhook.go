package constant

const (
	DefaultWebhookPath = "/webhook"

	OperatorLockKeyPrefix = "webhook-lock:"
)

// TradingView sends alerts from these addresses.
var DefaultAllowedIPs = []string{
	"52.89.214.238",
	"34.212.75.30",
	"54.218.53.128",
	"52.32.178.7",
}

package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

var (
	ServiceName    = "h-ats"
	ServiceVersion = ""
)

var (
	Env *EnvConfig
)

type EnvConfig struct {
	Env                     string                    `mapstructure:"env"`
	Log                     LogConfig                 `mapstructure:"log"`
	GracefulShutdownTimeout time.Duration             `mapstructure:"graceful_shutdown_timeout"`
	Port                    map[string]string         `mapstructure:"port"`
	Exchanges               map[string]ExchangeConfig `mapstructure:"exchanges"`
	Database                map[string]DatabaseConfig `mapstructure:"database"`
	Redis                   map[string]RedisConfig    `mapstructure:"redis"`
	NatsJetstream           NatsJetstreamConfig       `mapstructure:"nats_jetstream"`
	Executor                ExecutorConfig            `mapstructure:"executor"`
	Notification            NotificationConfig        `mapstructure:"notification"`
	Webhook                 WebhookConfig             `mapstructure:"webhook"`
	Security                SecurityConfig            `mapstructure:"security"`
}

type NatsJetstreamConfig struct {
	URL             string                   `mapstructure:"url"`
	MaxRetries      int                      `mapstructure:"max_retries"`
	ReconnectFactor float64                  `mapstructure:"reconnect_factor"`
	MinJitter       time.Duration            `mapstructure:"min_jitter"`
	MaxJitter       time.Duration            `mapstructure:"max_jitter"`
	TimeoutHandler  map[string]time.Duration `mapstructure:"timeout_handler"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	ReconnectFactor float64       `mapstructure:"reconnect_factor"`
	MinJitter       time.Duration `mapstructure:"min_jitter"`
	MaxJitter       time.Duration `mapstructure:"max_jitter"`
	MaxRetry        int           `mapstructure:"max_retry"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxActiveConns  int           `mapstructure:"max_active_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

type LogConfig struct {
	ShowCaller bool   `mapstructure:"show_caller"`
	LogLevel   string `mapstructure:"log_level"`
}

type ExchangeConfig struct {
	Name              string          `mapstructure:"name"`
	BaseURL           string          `mapstructure:"base_url"`
	FeeRate           decimal.Decimal `mapstructure:"fee_rate"`         // fraction, e.g. 0.001 for 0.1%
	MinOrderAmount    decimal.Decimal `mapstructure:"min_order_amount"` // in the exchange's native currency
	NativeCurrency    string          `mapstructure:"native_currency"`
	RequestTimeout    time.Duration   `mapstructure:"request_timeout"`
	RequestsPerSecond float64         `mapstructure:"requests_per_second"`
	Burst             int             `mapstructure:"burst"`
}

type ExecutorConfig struct {
	FillMaxRetries   int           `mapstructure:"fill_max_retries"`
	FillPollInterval time.Duration `mapstructure:"fill_poll_interval"`
	BalanceCacheTTL  time.Duration `mapstructure:"balance_cache_ttl"`
}

type NotificationConfig struct {
	Mode             string        `mapstructure:"mode"` // jetstream | direct
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	ServerWebhookURL string        `mapstructure:"server_webhook_url"`
}

type WebhookConfig struct {
	Path            string        `mapstructure:"path"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	RateLimit       float64       `mapstructure:"rate_limit"` // requests per second per remote ip, 0 disables
	RateBurst       int           `mapstructure:"rate_burst"`
	OperatorLockTTL time.Duration `mapstructure:"operator_lock_ttl"`
	CheckAllowedIPs bool          `mapstructure:"check_allowed_ips"`
	TrustedProxies  []string      `mapstructure:"trusted_proxies"` // peers allowed to set X-Forwarded-For
}

type SecurityConfig struct {
	EncryptionKey string `mapstructure:"encryption_key"`
}

type RedisConfig struct {
	CacheDSN string `mapstructure:"cache_dsn"`
}

func LoadConfig(configPath string) error {
	viper.Reset()

	configPath = strings.TrimSpace(configPath)
	if configPath == "" {
		viper.SetConfigName("config")
		viper.SetConfigType("yml")
		viper.AddConfigPath(".")
	} else {
		ext := strings.ToLower(filepath.Ext(configPath))
		if ext == ".yml" || ext == ".yaml" {
			viper.SetConfigFile(configPath)
		} else {
			viper.SetConfigName(filepath.Base(configPath))
			viper.SetConfigType("yml")
			configDir := filepath.Dir(configPath)
			if configDir == "." || configDir == "" {
				viper.AddConfigPath(".")
			} else {
				viper.AddConfigPath(configDir)
			}
		}
	}

	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.SetEnvPrefix("HATS")
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	err = viper.Unmarshal(&Env, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		StringToDecimalHookFunc(),
	)))
	if err != nil {
		return fmt.Errorf("failed to unmarshal config file: %w", err)
	}

	return nil
}

// StringToDecimalHookFunc decodes yaml strings and numbers into decimal.Decimal.
func StringToDecimalHookFunc() mapstructure.DecodeHookFuncType {
	decimalType := reflect.TypeOf(decimal.Decimal{})

	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != decimalType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if strings.TrimSpace(v) == "" {
				return decimal.Zero, nil
			}
			return decimal.NewFromString(strings.TrimSpace(v))
		case float64:
			return decimal.NewFromFloat(v), nil
		case float32:
			return decimal.NewFromFloat32(v), nil
		case int:
			return decimal.NewFromInt(int64(v)), nil
		case int64:
			return decimal.NewFromInt(v), nil
		case uint64:
			return decimal.NewFromUint64(v), nil
		default:
			return data, nil
		}
	}
}

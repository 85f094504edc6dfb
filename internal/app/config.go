package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "STOREFRONT"

// StorageDriver выбирает реализацию хранилища.
type StorageDriver string

const (
	StorageDriverMemory   StorageDriver = "memory"
	StorageDriverPostgres StorageDriver = "postgres"
)

// Config описывает настройки запуска сервиса.
type Config struct {
	Environment string

	HTTPAddr    string
	MetricsAddr string
	// GRPCAddr: адрес gRPC health-сервера; пустой отключает его.
	GRPCAddr        string
	ShutdownTimeout time.Duration
	CORSOrigins     []string

	StorageDriver       StorageDriver
	PostgresDSN         string
	PostgresAutoMigrate bool

	KafkaBrokers  []string
	KafkaClientID string
	// KafkaTopic: общий топик событий; пустой означает маршрутизацию по типу агрегата.
	KafkaTopic string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	IdempotencyTTL              time.Duration
	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int

	Currency           string
	PaymentRetryWindow time.Duration
	MaxPaymentAttempts int

	RazorpayKeyID     string
	RazorpayKeySecret string
	// GatewayBreakerFailures: число подряд идущих сбоев шлюза до размыкания.
	GatewayBreakerFailures int
	GatewayBreakerReset    time.Duration

	LogLevel  string
	LogFormat string
}

// DefaultConfig возвращает настройки для локального запуска.
func DefaultConfig() Config {
	return Config{
		Environment:                 "development",
		HTTPAddr:                    ":8080",
		MetricsAddr:                 ":9090",
		ShutdownTimeout:             10 * time.Second,
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		KafkaClientID:               "storefront",
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            50 * time.Millisecond,
		IdempotencyTTL:              24 * time.Hour,
		IdempotencyCleanupInterval:  time.Minute,
		IdempotencyCleanupBatchSize: 500,
		Currency:                    "INR",
		PaymentRetryWindow:          11 * time.Minute,
		MaxPaymentAttempts:          3,
		GatewayBreakerFailures:      5,
		GatewayBreakerReset:         30 * time.Second,
		LogLevel:                    "info",
		LogFormat:                   "text",
	}
}

func setDefaults(v *viper.Viper) {
	def := DefaultConfig()
	v.SetDefault("environment", def.Environment)
	v.SetDefault("http.addr", def.HTTPAddr)
	v.SetDefault("metrics.addr", def.MetricsAddr)
	v.SetDefault("grpc.addr", def.GRPCAddr)
	v.SetDefault("shutdown.timeout", def.ShutdownTimeout)
	v.SetDefault("cors.origins", "")
	v.SetDefault("storage.driver", string(def.StorageDriver))
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.auto_migrate", def.PostgresAutoMigrate)
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.client_id", def.KafkaClientID)
	v.SetDefault("kafka.topic", "")
	v.SetDefault("outbox.poll_interval", def.OutboxPollInterval)
	v.SetDefault("outbox.batch_size", def.OutboxBatchSize)
	v.SetDefault("outbox.max_attempts", def.OutboxMaxAttempts)
	v.SetDefault("outbox.retry_delay", def.OutboxRetryDelay)
	v.SetDefault("idempotency.ttl", def.IdempotencyTTL)
	v.SetDefault("idempotency.cleanup_interval", def.IdempotencyCleanupInterval)
	v.SetDefault("idempotency.cleanup_batch_size", def.IdempotencyCleanupBatchSize)
	v.SetDefault("checkout.currency", def.Currency)
	v.SetDefault("checkout.retry_window", def.PaymentRetryWindow)
	v.SetDefault("checkout.max_payment_attempts", def.MaxPaymentAttempts)
	v.SetDefault("razorpay.key_id", "")
	v.SetDefault("razorpay.key_secret", "")
	v.SetDefault("gateway.breaker_failures", def.GatewayBreakerFailures)
	v.SetDefault("gateway.breaker_reset", def.GatewayBreakerReset)
	v.SetDefault("log.level", def.LogLevel)
	v.SetDefault("log.format", def.LogFormat)
}

// Load читает конфигурацию: значения по умолчанию, затем файл (configFile или
// STOREFRONT_CONFIG), затем переменные окружения STOREFRONT_*, например
// STOREFRONT_HTTP_ADDR или STOREFRONT_POSTGRES_DSN.
func Load(configFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile == "" {
		configFile = v.GetString("config")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	cfg := Config{
		Environment:                 v.GetString("environment"),
		HTTPAddr:                    v.GetString("http.addr"),
		MetricsAddr:                 v.GetString("metrics.addr"),
		GRPCAddr:                    v.GetString("grpc.addr"),
		ShutdownTimeout:             v.GetDuration("shutdown.timeout"),
		CORSOrigins:                 stringList(v, "cors.origins"),
		StorageDriver:               StorageDriver(strings.ToLower(v.GetString("storage.driver"))),
		PostgresDSN:                 v.GetString("postgres.dsn"),
		PostgresAutoMigrate:         v.GetBool("postgres.auto_migrate"),
		KafkaBrokers:                stringList(v, "kafka.brokers"),
		KafkaClientID:               v.GetString("kafka.client_id"),
		KafkaTopic:                  v.GetString("kafka.topic"),
		OutboxPollInterval:          v.GetDuration("outbox.poll_interval"),
		OutboxBatchSize:             v.GetInt("outbox.batch_size"),
		OutboxMaxAttempts:           v.GetInt("outbox.max_attempts"),
		OutboxRetryDelay:            v.GetDuration("outbox.retry_delay"),
		IdempotencyTTL:              v.GetDuration("idempotency.ttl"),
		IdempotencyCleanupInterval:  v.GetDuration("idempotency.cleanup_interval"),
		IdempotencyCleanupBatchSize: v.GetInt("idempotency.cleanup_batch_size"),
		Currency:                    strings.ToUpper(v.GetString("checkout.currency")),
		PaymentRetryWindow:          v.GetDuration("checkout.retry_window"),
		MaxPaymentAttempts:          v.GetInt("checkout.max_payment_attempts"),
		RazorpayKeyID:               v.GetString("razorpay.key_id"),
		RazorpayKeySecret:           v.GetString("razorpay.key_secret"),
		GatewayBreakerFailures:      v.GetInt("gateway.breaker_failures"),
		GatewayBreakerReset:         v.GetDuration("gateway.breaker_reset"),
		LogLevel:                    v.GetString("log.level"),
		LogFormat:                   v.GetString("log.format"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres.dsn is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	if c.Currency == "" {
		errs = append(errs, errors.New("checkout.currency is required"))
	}
	if c.PaymentRetryWindow <= 0 {
		errs = append(errs, errors.New("checkout.retry_window must be positive"))
	}
	if c.MaxPaymentAttempts <= 0 {
		errs = append(errs, errors.New("checkout.max_payment_attempts must be positive"))
	}
	if c.OutboxPollInterval <= 0 || c.OutboxBatchSize <= 0 || c.OutboxMaxAttempts <= 0 {
		errs = append(errs, errors.New("outbox poll interval, batch size and attempts must be positive"))
	}
	if c.IdempotencyTTL <= 0 {
		errs = append(errs, errors.New("idempotency.ttl must be positive"))
	}
	if (c.RazorpayKeyID == "") != (c.RazorpayKeySecret == "") {
		errs = append(errs, errors.New("razorpay.key_id and razorpay.key_secret must be set together"))
	}
	// Mock-шлюз с публичным секретом подписи допустим только вне production.
	if c.Production() && (c.RazorpayKeyID == "" || c.RazorpayKeySecret == "") {
		errs = append(errs, errors.New("razorpay.key_id and razorpay.key_secret are required in production"))
	}
	return errors.Join(errs...)
}

// Production сообщает, что сервис запущен в боевом окружении.
func (c Config) Production() bool {
	return strings.EqualFold(c.Environment, "production")
}

// stringList читает список из файла (YAML-последовательность) или из env (через запятую).
func stringList(v *viper.Viper, key string) []string {
	var raw []string
	if s, ok := v.Get(key).(string); ok {
		raw = strings.Split(s, ",")
	} else {
		raw = v.GetStringSlice(key)
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

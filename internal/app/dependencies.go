package app

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/service/coupon"
	"github.com/vladislavdragonenkov/storefront/internal/service/events"
	"github.com/vladislavdragonenkov/storefront/internal/service/inventory"
	"github.com/vladislavdragonenkov/storefront/internal/service/payment"
	"github.com/vladislavdragonenkov/storefront/internal/service/wallet"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
	"github.com/vladislavdragonenkov/storefront/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

// storage: общий интерфейс memory и postgres хранилищ.
type storage interface {
	domain.UnitOfWork
	Ping(ctx context.Context) error
}

// Metrics: все метрики сервиса.
type Metrics struct {
	Checkout *metrics.CheckoutMetrics
	HTTP     *metrics.HTTPMetrics
	Outbox   *metrics.OutboxMetrics
	Cleanup  *metrics.CleanupMetrics
}

// Dependencies содержит все зависимости приложения.
type Dependencies struct {
	Store       storage
	Idempotency domain.IdempotencyRepository
	Gateway     domain.PaymentGateway
	Services    httpapi.Services
	Metrics     Metrics
	Health      *health.Handler

	// Producer и Publisher равны nil, если Kafka не настроена.
	Producer     *kafka.Producer
	Publisher    domain.OutboxPublisher
	DLQPublisher domain.OutboxPublisher

	Logger *log.Entry

	closers []func() error
}

// NewDependencies создаёт хранилище, платёжный шлюз, сервисы и Kafka producer.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	deps := &Dependencies{Logger: logger}

	if err := deps.initStorage(ctx, cfg); err != nil {
		return nil, err
	}

	deps.Metrics = Metrics{
		Checkout: metrics.NewCheckoutMetrics(),
		HTTP:     metrics.NewHTTPMetrics(),
		Outbox:   metrics.NewOutboxMetrics(),
		Cleanup:  metrics.NewCleanupMetrics(),
	}

	deps.Gateway = newGateway(cfg, logger)
	verifier := payment.NewHMACVerifier(cfg.RazorpayKeySecret)
	if cfg.RazorpayKeySecret == "" {
		// mock-шлюз подписывает платежи тем же ключом, что и верификатор
		verifier = payment.NewHMACVerifier(payment.MockKeySecret)
	}

	recorder := events.NewRecorder(deps.Metrics.Checkout, logger.WithField("component", "events"))
	deps.Services = httpapi.Services{
		Checkout: checkout.NewService(
			deps.Store,
			inventory.NewService(logger.WithField("component", "inventory")),
			deps.Gateway,
			verifier,
			checkout.WithConfig(checkout.Config{
				Currency:           cfg.Currency,
				GatewayKeyID:       cfg.RazorpayKeyID,
				RetryWindow:        cfg.PaymentRetryWindow,
				MaxPaymentAttempts: cfg.MaxPaymentAttempts,
			}),
			checkout.WithMetrics(deps.Metrics.Checkout),
			checkout.WithLogger(logger.WithField("component", "checkout")),
		),
		Wallet:  wallet.NewService(deps.Store, recorder, deps.Metrics.Checkout, cfg.Currency, logger.WithField("component", "wallet")),
		Catalog: catalog.NewService(deps.Store, logger.WithField("component", "catalog")),
		Coupons: coupon.NewService(deps.Store, logger.WithField("component", "coupon")),
	}

	deps.Health = health.NewHandler(version.Version())
	deps.Health.RegisterChecker("storage", health.NewPingChecker("storage", deps.Store.Ping))
	if pinger, ok := deps.Gateway.(interface{ Ping(context.Context) error }); ok {
		deps.Health.RegisterChecker("payment_gateway", health.NewOptionalChecker("payment_gateway", pinger.Ping))
	}

	deps.initKafka(cfg)
	return deps, nil
}

func (d *Dependencies) initStorage(ctx context.Context, cfg Config) error {
	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return fmt.Errorf("apply migrations: %w", err)
			}
		}
		d.Store = store
		d.Idempotency = postgres.NewIdempotencyRepository(store)
		d.closers = append(d.closers, store.Close)
		d.Logger.WithField("auto_migrate", cfg.PostgresAutoMigrate).Info("postgres storage initialized")
	default:
		d.Store = memory.NewStore()
		d.Idempotency = memory.NewIdempotencyRepository()
		d.Logger.Info("in-memory storage initialized")
	}
	return nil
}

func newGateway(cfg Config, logger *log.Entry) domain.PaymentGateway {
	var gateway domain.PaymentGateway
	if cfg.RazorpayKeyID != "" && cfg.RazorpayKeySecret != "" {
		gateway = payment.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, logger.WithField("component", "razorpay"))
	} else {
		logger.Warn("razorpay credentials are not configured, using mock payment gateway")
		gateway = payment.NewMockGateway()
	}
	breaker := payment.NewCircuitBreaker(cfg.GatewayBreakerFailures, cfg.GatewayBreakerReset, logger.WithField("component", "gateway-breaker"))
	return payment.NewBreakerGateway(gateway, breaker)
}

// initKafka подключает producer; без брокеров или при ошибке сервис работает без публикации.
func (d *Dependencies) initKafka(cfg Config) {
	if len(cfg.KafkaBrokers) == 0 {
		return
	}
	producer, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaClientID)
	if err != nil {
		d.Logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return
	}
	d.Producer = producer
	d.Publisher = kafka.NewOutboxPublisher(producer, cfg.KafkaTopic)
	d.DLQPublisher = kafka.NewDLQPublisher(producer)
	d.closers = append(d.closers, producer.Close)
	d.Logger.WithField("brokers", cfg.KafkaBrokers).Info("kafka producer initialized")
}

// Close освобождает ресурсы в обратном порядке создания.
func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

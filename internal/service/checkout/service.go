package checkout

import (
	"context"
	"math/rand/v2"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/events"
	"github.com/vladislavdragonenkov/storefront/internal/service/inventory"
)

// Config: параметры оформления и оплаты заказов.
type Config struct {
	Currency string
	// GatewayKeyID: публичный ключ шлюза, который отдаётся клиенту вместе с интентом.
	GatewayKeyID string
	// RetryWindow: длина окна повторной оплаты после неудачи.
	RetryWindow time.Duration
	// MaxPaymentAttempts: сколько неудачных оплат допускается до запрета повтора.
	MaxPaymentAttempts  int
	OrderNumberAttempts int
	ConflictRetries     int
	ConflictBackoff     time.Duration
}

// DefaultConfig возвращает значения по умолчанию.
func DefaultConfig() Config {
	return Config{
		Currency:            "INR",
		RetryWindow:         11 * time.Minute,
		MaxPaymentAttempts:  3,
		OrderNumberAttempts: 5,
		ConflictRetries:     3,
		ConflictBackoff:     10 * time.Millisecond,
	}
}

// Metrics: метрики оформления. *metrics.CheckoutMetrics удовлетворяет интерфейсу.
type Metrics interface {
	events.Metrics
	RecordOrderPlaced(paymentMethod string)
	RecordOrderCancelled(refundMinor int64)
	RecordPaymentResult(result string)
	RecordStockConflict()
	RecordVersionConflict()
	RecordStepDuration(step string, duration time.Duration)
	RecordStepFailure(step, kind string)
	InFlightStarted()
	InFlightFinished()
}

// Option настраивает Service.
type Option func(*Service)

// WithConfig задаёт конфигурацию; нулевые поля заменяются значениями по умолчанию.
func WithConfig(cfg Config) Option {
	return func(s *Service) {
		def := DefaultConfig()
		if cfg.Currency == "" {
			cfg.Currency = def.Currency
		}
		if cfg.RetryWindow <= 0 {
			cfg.RetryWindow = def.RetryWindow
		}
		if cfg.MaxPaymentAttempts <= 0 {
			cfg.MaxPaymentAttempts = def.MaxPaymentAttempts
		}
		if cfg.OrderNumberAttempts <= 0 {
			cfg.OrderNumberAttempts = def.OrderNumberAttempts
		}
		if cfg.ConflictRetries <= 0 {
			cfg.ConflictRetries = def.ConflictRetries
		}
		if cfg.ConflictBackoff <= 0 {
			cfg.ConflictBackoff = def.ConflictBackoff
		}
		s.cfg = cfg
	}
}

// WithMetrics включает метрики.
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock подменяет часы (для тестов).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithOrderNumbers подменяет генератор шестизначной части номера заказа.
func WithOrderNumbers(next func() int) Option {
	return func(s *Service) { s.nextNumber = next }
}

// Service проводит заказ через жизненный цикл: оформление, оплата, отмена.
// Каждый переход выполняется одной транзакцией вместе с событиями outbox/timeline.
type Service struct {
	uow        domain.UnitOfWork
	inventory  *inventory.Service
	gateway    domain.PaymentGateway
	verifier   domain.SignatureVerifier
	events     *events.Recorder
	cfg        Config
	metrics    Metrics
	logger     *log.Entry
	now        func() time.Time
	nextNumber func() int
}

// NewService собирает сервис оформления заказов.
func NewService(
	uow domain.UnitOfWork,
	inv *inventory.Service,
	gateway domain.PaymentGateway,
	verifier domain.SignatureVerifier,
	opts ...Option,
) *Service {
	s := &Service{
		uow:        uow,
		inventory:  inv,
		gateway:    gateway,
		verifier:   verifier,
		cfg:        DefaultConfig(),
		logger:     log.New().WithField("component", "checkout"),
		now:        func() time.Time { return time.Now().UTC() },
		nextNumber: func() int { return rand.IntN(1_000_000) },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.inventory == nil {
		s.inventory = inventory.NewService(s.logger.WithField("component", "inventory"))
	}
	var recorderMetrics events.Metrics
	if s.metrics != nil {
		recorderMetrics = s.metrics
	}
	s.events = events.NewRecorder(recorderMetrics, s.logger)
	return s
}

// Config возвращает действующую конфигурацию.
func (s *Service) Config() Config {
	return s.cfg
}

// withConflictRetry повторяет транзакцию при конфликте версий заказа
// с экспоненциальной задержкой.
func (s *Service) withConflictRetry(ctx context.Context, step domain.WorkflowStep, orderID string, fn func() error) error {
	delay := s.cfg.ConflictBackoff
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || !domain.IsVersionConflict(err) {
			return err
		}
		if s.metrics != nil {
			s.metrics.RecordVersionConflict()
		}
		if attempt >= s.cfg.ConflictRetries {
			return err
		}
		s.logger.WithFields(log.Fields{
			"order_id": orderID,
			"step":     step,
			"attempt":  attempt,
		}).Warn("version conflict detected, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}

// track запускает учёт шага и возвращает функцию его завершения.
func (s *Service) track(step domain.WorkflowStep) func(err *error) {
	if s.metrics == nil {
		return func(*error) {}
	}
	start := time.Now()
	s.metrics.InFlightStarted()
	return func(err *error) {
		s.metrics.InFlightFinished()
		s.metrics.RecordStepDuration(string(step), time.Since(start))
		if err != nil && *err != nil {
			s.metrics.RecordStepFailure(string(step), string(domain.KindOf(*err)))
		}
	}
}

// principal достаёт пользователя запроса.
func principal(ctx context.Context) (domain.Principal, error) {
	p, ok := domain.PrincipalFrom(ctx)
	if !ok {
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	return p, nil
}

// authorize проверяет, что вызывающий: владелец заказа или администратор.
func authorize(ctx context.Context, order domain.Order) error {
	p, err := principal(ctx)
	if err != nil {
		return err
	}
	if !p.CanAccess(order.UserID) {
		return domain.ErrForbidden
	}
	return nil
}

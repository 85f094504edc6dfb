package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// CircuitState: состояние circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreaker размыкается после maxFailures ошибок подряд и через resetTimeout
// пропускает одну пробную операцию.
type CircuitBreaker struct {
	maxFailures  int
	resetTimeout time.Duration
	now          func() time.Time

	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	state       CircuitState
	probing     bool
	logger      *log.Entry
}

// NewCircuitBreaker создаёт новый circuit breaker.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration, logger *log.Entry) *CircuitBreaker {
	if logger == nil {
		logger = log.New().WithField("component", "circuit-breaker")
	}
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		now:          time.Now,
		state:        CircuitClosed,
		logger:       logger,
	}
}

// State возвращает текущее состояние.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Execute выполняет операцию через circuit breaker.
// Ошибки с isFailure(err) == false не размыкают цепь.
func (cb *CircuitBreaker) Execute(operation string, fn func() error, isFailure func(error) bool) error {
	if err := cb.before(operation); err != nil {
		return err
	}
	err := fn()
	cb.after(operation, err != nil && (isFailure == nil || isFailure(err)))
	return err
}

func (cb *CircuitBreaker) before(operation string) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if cb.now().Sub(cb.lastFailure) < cb.resetTimeout {
			return domain.ErrCircuitOpen
		}
		cb.state = CircuitHalfOpen
		cb.probing = true
		cb.logger.WithField("operation", operation).Info("circuit breaker half-open")
	case CircuitHalfOpen:
		// Пока пробная операция не завершилась, остальные вызовы отбрасываем.
		if cb.probing {
			return domain.ErrCircuitOpen
		}
		cb.probing = true
	}
	return nil
}

func (cb *CircuitBreaker) after(operation string, failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false
	if failed {
		cb.failures++
		cb.lastFailure = cb.now()
		if cb.state == CircuitHalfOpen || cb.failures >= cb.maxFailures {
			cb.state = CircuitOpen
			cb.logger.WithFields(log.Fields{
				"operation": operation,
				"failures":  cb.failures,
			}).Warn("circuit breaker opened")
		}
		return
	}

	if cb.state == CircuitHalfOpen {
		cb.logger.WithField("operation", operation).Info("circuit breaker closed")
	}
	cb.state = CircuitClosed
	cb.failures = 0
}

// BreakerGateway защищает шлюз circuit breaker. Ошибки валидации и отмена
// контекста не считаются отказом шлюза.
type BreakerGateway struct {
	next    domain.PaymentGateway
	breaker *CircuitBreaker
}

// NewBreakerGateway оборачивает gateway.
func NewBreakerGateway(next domain.PaymentGateway, breaker *CircuitBreaker) *BreakerGateway {
	return &BreakerGateway{next: next, breaker: breaker}
}

// CreateOrder вызывает шлюз, если цепь не разомкнута.
func (g *BreakerGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (domain.GatewayOrder, error) {
	var order domain.GatewayOrder
	err := g.breaker.Execute("create_order", func() error {
		var err error
		order, err = g.next.CreateOrder(ctx, amountMinor, currency, receipt)
		return err
	}, isGatewayFailure)
	if errors.Is(err, domain.ErrCircuitOpen) {
		return domain.GatewayOrder{}, fmt.Errorf("%w: %w", domain.ErrGatewayUnavailable, err)
	}
	return order, err
}

// FetchOrder читает интент через тот же circuit breaker.
func (g *BreakerGateway) FetchOrder(ctx context.Context, gatewayOrderID string) (domain.GatewayOrder, error) {
	var order domain.GatewayOrder
	err := g.breaker.Execute("fetch_order", func() error {
		var err error
		order, err = g.next.FetchOrder(ctx, gatewayOrderID)
		return err
	}, isGatewayFailure)
	if errors.Is(err, domain.ErrCircuitOpen) {
		return domain.GatewayOrder{}, fmt.Errorf("%w: %w", domain.ErrGatewayUnavailable, err)
	}
	return order, err
}

// Ping сообщает о разомкнутой цепи; используется health-проверкой.
func (g *BreakerGateway) Ping(context.Context) error {
	if state := g.breaker.State(); state == CircuitOpen {
		return fmt.Errorf("%w: circuit %s", domain.ErrGatewayUnavailable, state)
	}
	return nil
}

func isGatewayFailure(err error) bool {
	if errors.Is(err, context.Canceled) || domain.KindOf(err) == domain.KindValidation {
		return false
	}
	return true
}

var _ domain.PaymentGateway = (*BreakerGateway)(nil)

package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// MockKeySecret: секрет подписи при работе с mock-шлюзом, когда ключи Razorpay не заданы.
const MockKeySecret = "rzp_test_secret"

// MockGateway: конфигурируемая заглушка шлюза для тестов и локального запуска.
type MockGateway struct {
	mu sync.Mutex

	CreateErr error

	CreateCalls int
	Orders      []domain.GatewayOrder
}

// NewMockGateway возвращает mock с успешным сценарием по умолчанию.
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

// CreateOrder возвращает заранее настроенную ошибку либо новый интент и считает вызовы.
func (m *MockGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (domain.GatewayOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls++
	if err := ctx.Err(); err != nil {
		return domain.GatewayOrder{}, err
	}
	if m.CreateErr != nil {
		return domain.GatewayOrder{}, m.CreateErr
	}
	order := domain.GatewayOrder{
		ID:          "order_" + uuid.NewString()[:14],
		AmountMinor: amountMinor,
		Currency:    currency,
		Receipt:     receipt,
		Status:      "created",
		CreatedAt:   time.Now().UTC(),
	}
	m.Orders = append(m.Orders, order)
	return order, nil
}

// FetchOrder ищет интент среди созданных этим mock.
func (m *MockGateway) FetchOrder(ctx context.Context, gatewayOrderID string) (domain.GatewayOrder, error) {
	if err := ctx.Err(); err != nil {
		return domain.GatewayOrder{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, order := range m.Orders {
		if order.ID == gatewayOrderID {
			return order, nil
		}
	}
	return domain.GatewayOrder{}, fmt.Errorf("%s: %w", gatewayOrderID, domain.ErrGatewayOrderNotFound)
}

// Calls возвращает число вызовов CreateOrder.
func (m *MockGateway) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CreateCalls
}

var _ domain.PaymentGateway = (*MockGateway)(nil)

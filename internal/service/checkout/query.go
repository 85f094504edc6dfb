package checkout

import (
	"context"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/inventory"
)

// ItemAvailability: строка отчёта о наличии.
type ItemAvailability = inventory.Availability

// OrderDetails: заказ с историей событий и учётом неудачных оплат.
type OrderDetails struct {
	Order          domain.Order
	Timeline       []domain.TimelineEvent
	FailedPayments []domain.FailedPayment
	Retry          domain.RetryToken
}

// Get возвращает заказ владельцу или администратору.
func (s *Service) Get(ctx context.Context, orderID string) (OrderDetails, error) {
	order, err := s.loadOwned(ctx, orderID)
	if err != nil {
		return OrderDetails{}, err
	}
	repos := s.uow.Repositories()
	timeline, err := repos.Timeline.List(ctx, order.ID)
	if err != nil {
		return OrderDetails{}, err
	}
	failed, err := repos.FailedPayments.ListByOrder(ctx, order.ID)
	if err != nil {
		return OrderDetails{}, err
	}
	return OrderDetails{
		Order:          order,
		Timeline:       timeline,
		FailedPayments: failed,
		Retry:          order.RetryToken(s.cfg.MaxPaymentAttempts),
	}, nil
}

// List возвращает заказы текущего пользователя от новых к старым.
func (s *Service) List(ctx context.Context, limit, offset int) ([]domain.Order, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	return s.uow.Repositories().Orders.ListByUser(ctx, p.UserID, clampLimit(limit), offset)
}

// ListAll возвращает все заказы (только администратор).
func (s *Service) ListAll(ctx context.Context, limit, offset int) ([]domain.Order, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return s.uow.Repositories().Orders.List(ctx, clampLimit(limit), offset)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 20
	case limit > 100:
		return 100
	default:
		return limit
	}
}

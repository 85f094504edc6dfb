package memory

import (
	"context"
	"sort"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// orderRepository: in-memory реализация OrderRepository.
type orderRepository struct{ access }

// Create сохраняет новый заказ, если ID, номер и интент шлюза ещё не заняты.
func (r *orderRepository) Create(_ context.Context, order domain.Order) error {
	return r.write(func(st *state) error {
		if _, exists := st.orders[order.ID]; exists {
			return domain.ErrOrderVersionConflict
		}
		for _, existing := range st.orders {
			if existing.Number == order.Number {
				return domain.ErrOrderNumberTaken
			}
			if order.GatewayOrderID != "" && existing.GatewayOrderID == order.GatewayOrderID {
				return domain.ErrPaymentAlreadyUsed
			}
		}
		// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
		st.orders[order.ID] = cloneOrder(order)
		return nil
	})
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepository) Get(_ context.Context, id string) (domain.Order, error) {
	var order domain.Order
	err := r.read(func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return domain.ErrOrderNotFound
		}
		order = cloneOrder(o)
		return nil
	})
	return order, err
}

func (r *orderRepository) GetByGatewayOrderID(_ context.Context, gatewayOrderID string) (domain.Order, error) {
	var order domain.Order
	err := r.read(func(st *state) error {
		if gatewayOrderID == "" {
			return domain.ErrOrderNotFound
		}
		for _, o := range st.orders {
			if o.GatewayOrderID == gatewayOrderID {
				order = cloneOrder(o)
				return nil
			}
		}
		return domain.ErrOrderNotFound
	})
	return order, err
}

// ListByUser возвращает заказы пользователя, ограничивая выборку limit (если >0).
func (r *orderRepository) ListByUser(_ context.Context, userID string, limit, offset int) ([]domain.Order, error) {
	return r.list(func(o domain.Order) bool { return o.UserID == userID }, limit, offset)
}

func (r *orderRepository) List(_ context.Context, limit, offset int) ([]domain.Order, error) {
	return r.list(func(domain.Order) bool { return true }, limit, offset)
}

func (r *orderRepository) list(match func(domain.Order) bool, limit, offset int) ([]domain.Order, error) {
	var result []domain.Order
	err := r.read(func(st *state) error {
		result = make([]domain.Order, 0, len(st.orders))
		for _, order := range st.orders {
			if match(order) {
				result = append(result, cloneOrder(order))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if offset > 0 {
		if offset >= len(result) {
			return []domain.Order{}, nil
		}
		result = result[offset:]
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Save перезаписывает заказ, проверяя версию (optimistic locking).
func (r *orderRepository) Save(_ context.Context, order domain.Order) error {
	return r.write(func(st *state) error {
		current, ok := st.orders[order.ID]
		if !ok {
			return domain.ErrOrderNotFound
		}
		if current.Version != order.Version {
			return domain.ErrOrderVersionConflict
		}
		if order.GatewayOrderID != "" {
			for id, existing := range st.orders {
				if id != order.ID && existing.GatewayOrderID == order.GatewayOrderID {
					return domain.ErrPaymentAlreadyUsed
				}
			}
		}
		// Инкрементируем версию перед сохранением.
		order.Version++
		st.orders[order.ID] = cloneOrder(order)
		return nil
	})
}

var _ domain.OrderRepository = (*orderRepository)(nil)

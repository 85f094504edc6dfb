package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	orderNumberConstraint  = "orders_order_number_key"
	gatewayOrderConstraint = "orders_gateway_order_key"
)

const orderColumns = `
	id, user_id, order_number, payment_method, payment_id, gateway_order_id,
	currency, amount_minor, discount_minor, coupon_code, shipping_address,
	status, payment_status, payment_retry_count, payment_retry_window,
	version, created_at, updated_at`

type orderRepository struct {
	q querier
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	shipping, err := json.Marshal(order.Shipping)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}

	return atomically(ctx, r.q, func(q querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO orders (`+orderColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		`,
			order.ID, order.UserID, order.Number, string(order.PaymentMethod), order.PaymentID, order.GatewayOrderID,
			order.Currency, order.AmountMinor, order.DiscountMinor, order.CouponCode, shipping,
			string(order.Status), string(order.PaymentStatus), order.PaymentRetryCount, nullTime(order.PaymentRetryWindow),
			order.Version, order.CreatedAt, order.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				switch constraintName(err) {
				case orderNumberConstraint:
					return domain.ErrOrderNumberTaken
				case gatewayOrderConstraint:
					return domain.ErrPaymentAlreadyUsed
				}
				return domain.ErrOrderVersionConflict
			}
			return fmt.Errorf("insert order: %w", err)
		}

		for i, item := range order.Items {
			if _, err := q.ExecContext(ctx, `
				INSERT INTO order_items (
					id, order_id, position, product_id, variant_id, qty, price_minor, created_at
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			`,
				item.ID, order.ID, i, item.ProductID, item.VariantID, item.Qty, item.PriceMinor, item.CreatedAt,
			); err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}
		return nil
	})
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	return r.getBy(ctx, "id", id)
}

func (r *orderRepository) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (domain.Order, error) {
	if gatewayOrderID == "" {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return r.getBy(ctx, "gateway_order_id", gatewayOrderID)
}

// getBy принимает имя колонки только из кода пакета, не из пользовательского ввода.
func (r *orderRepository) getBy(ctx context.Context, column, value string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := scanOrder(r.q.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE `+column+` = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items
	return order, nil
}

func (r *orderRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Order, error) {
	return r.list(ctx, `WHERE user_id = $1`, []any{userID}, limit, offset)
}

func (r *orderRepository) List(ctx context.Context, limit, offset int) ([]domain.Order, error) {
	return r.list(ctx, ``, nil, limit, offset)
}

func (r *orderRepository) list(ctx context.Context, where string, args []any, limit, offset int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM orders
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, orderColumns, where, len(args)-1, len(args))

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	rows.Close()

	// Позиции грузим после закрытия курсора: внутри транзакции одно соединение.
	for i := range orders {
		items, err := r.loadItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

// Save обновляет изменяемые поля заказа. Позиции неизменны после создания.
func (r *orderRepository) Save(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    payment_status = $2,
		    payment_id = $3,
		    gateway_order_id = $4,
		    payment_retry_count = $5,
		    payment_retry_window = $6,
		    version = version + 1,
		    updated_at = $7
		WHERE id = $8
		  AND version = $9
	`,
		string(order.Status),
		string(order.PaymentStatus),
		order.PaymentID,
		order.GatewayOrderID,
		order.PaymentRetryCount,
		nullTime(order.PaymentRetryWindow),
		order.UpdatedAt,
		order.ID,
		order.Version,
	)
	if err != nil {
		if isUniqueViolation(err) && constraintName(err) == gatewayOrderConstraint {
			return domain.ErrPaymentAlreadyUsed
		}
		return fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, order.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check order exists: %w", err)
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrOrderVersionConflict
	}

	return nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, product_id, variant_id, qty, price_minor, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY position ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.VariantID, &item.Qty, &item.PriceMinor, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order         domain.Order
		method        string
		status        string
		paymentStatus string
		shipping      []byte
		retryWindow   sql.NullTime
	)
	if err := row.Scan(
		&order.ID, &order.UserID, &order.Number, &method, &order.PaymentID, &order.GatewayOrderID,
		&order.Currency, &order.AmountMinor, &order.DiscountMinor, &order.CouponCode, &shipping,
		&status, &paymentStatus, &order.PaymentRetryCount, &retryWindow,
		&order.Version, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}

	order.PaymentMethod = domain.PaymentMethod(method)
	order.Status = domain.OrderStatus(status)
	order.PaymentStatus = domain.PaymentStatus(paymentStatus)
	order.PaymentRetryWindow = timeOrZero(retryWindow)
	if len(shipping) > 0 {
		if err := json.Unmarshal(shipping, &order.Shipping); err != nil {
			return domain.Order{}, fmt.Errorf("unmarshal shipping address: %w", err)
		}
	}
	return order, nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)

package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
	rzperrors "github.com/razorpay/razorpay-go/errors"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// orderAPI: часть клиента razorpay-go, которой пользуется шлюз.
type orderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
	Fetch(orderID string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// RazorpayGateway создаёт платёжные интенты через Orders API.
type RazorpayGateway struct {
	orders orderAPI
	logger *log.Entry
}

// NewRazorpayGateway создаёт шлюз с ключами API.
func NewRazorpayGateway(keyID, keySecret string, logger *log.Entry) *RazorpayGateway {
	client := razorpay.NewClient(keyID, keySecret)
	return newRazorpayGateway(client.Order, logger)
}

func newRazorpayGateway(orders orderAPI, logger *log.Entry) *RazorpayGateway {
	if logger == nil {
		logger = log.New().WithField("component", "razorpay")
	}
	return &RazorpayGateway{orders: orders, logger: logger}
}

// CreateOrder регистрирует интент. Сумма передаётся в минимальных единицах (пайсах).
// Клиент razorpay-go не принимает context, поэтому отмена проверяется только до вызова.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (domain.GatewayOrder, error) {
	if amountMinor <= 0 {
		return domain.GatewayOrder{}, domain.NewValidationError("amount", "must be greater than zero")
	}
	if err := ctx.Err(); err != nil {
		return domain.GatewayOrder{}, err
	}

	body, err := g.orders.Create(map[string]interface{}{
		"amount":   amountMinor,
		"currency": currency,
		"receipt":  receipt,
	}, nil)
	if err != nil {
		g.logger.WithError(err).WithFields(log.Fields{
			"receipt":      receipt,
			"amount_minor": amountMinor,
		}).Warn("razorpay order create failed")
		return domain.GatewayOrder{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	order, err := parseGatewayOrder(body)
	if err != nil {
		return domain.GatewayOrder{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	return order, nil
}

// FetchOrder читает интент из Orders API. BAD_REQUEST от шлюза означает
// неизвестный идентификатор; остальные ошибки считаются недоступностью шлюза.
func (g *RazorpayGateway) FetchOrder(ctx context.Context, gatewayOrderID string) (domain.GatewayOrder, error) {
	if gatewayOrderID == "" {
		return domain.GatewayOrder{}, domain.NewValidationError("razorpay_order_id", "is required")
	}
	if err := ctx.Err(); err != nil {
		return domain.GatewayOrder{}, err
	}

	body, err := g.orders.Fetch(gatewayOrderID, nil, nil)
	var badRequest *rzperrors.BadRequestError
	if errors.As(err, &badRequest) {
		return domain.GatewayOrder{}, fmt.Errorf("%s: %w", gatewayOrderID, domain.ErrGatewayOrderNotFound)
	}
	if err != nil {
		g.logger.WithError(err).WithField("gateway_order_id", gatewayOrderID).Warn("razorpay order fetch failed")
		return domain.GatewayOrder{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	order, err := parseGatewayOrder(body)
	if err != nil {
		return domain.GatewayOrder{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	return order, nil
}

// parseGatewayOrder разбирает ответ Orders API. Числа приходят из JSON как float64.
func parseGatewayOrder(body map[string]interface{}) (domain.GatewayOrder, error) {
	id, _ := body["id"].(string)
	if id == "" {
		return domain.GatewayOrder{}, fmt.Errorf("razorpay response without order id")
	}
	order := domain.GatewayOrder{ID: id}
	order.Currency, _ = body["currency"].(string)
	order.Receipt, _ = body["receipt"].(string)
	order.Status, _ = body["status"].(string)
	if amount, ok := body["amount"].(float64); ok {
		order.AmountMinor = int64(amount)
	}
	if created, ok := body["created_at"].(float64); ok && created > 0 {
		order.CreatedAt = time.Unix(int64(created), 0).UTC()
	} else {
		order.CreatedAt = time.Now().UTC()
	}
	return order, nil
}

var _ domain.PaymentGateway = (*RazorpayGateway)(nil)

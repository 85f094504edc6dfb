package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/coupon"
	"github.com/vladislavdragonenkov/storefront/internal/service/events"
)

// LineItem: позиция корзины с ценой, зафиксированной на момент покупки.
type LineItem struct {
	ProductID      string
	VariantID      string
	Qty            int32
	UnitPriceMinor int64
}

// PlaceOrderRequest: данные оформления заказа.
type PlaceOrderRequest struct {
	// UserID: владелец заказа; пустой означает текущего пользователя.
	UserID        string
	Items         []LineItem
	PaymentMethod domain.PaymentMethod
	// PaymentID: платёж шлюза, проведённый до оформления (оплата вперёд).
	// Принимается только вместе с интентом шлюза и подписью обратного вызова.
	PaymentID        string
	GatewayOrderID   string
	PaymentSignature string
	TotalAmountMinor int64
	Shipping         domain.ShippingAddress
	CouponCode       string
}

// PlaceOrderResult: итог оформления.
type PlaceOrderResult struct {
	OrderID       string
	OrderNumber   string
	Status        domain.OrderStatus
	PaymentStatus domain.PaymentStatus
	TotalMinor    int64
	DiscountMinor int64
}

// PlaceOrder резервирует товары, применяет купон, списывает кошелёк и создаёт заказ
// одной транзакцией. Номер заказа при коллизии генерируется заново.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (result PlaceOrderResult, err error) {
	defer s.track(domain.StepPlace)(&err)

	p, err := principal(ctx)
	if err != nil {
		return PlaceOrderResult{}, err
	}
	if req.UserID == "" {
		req.UserID = p.UserID
	}
	if !p.CanAccess(req.UserID) {
		return PlaceOrderResult{}, domain.ErrForbidden
	}
	if len(req.Items) == 0 {
		return PlaceOrderResult{}, domain.ErrItemsRequired
	}
	if !req.PaymentMethod.Valid() {
		return PlaceOrderResult{}, domain.ErrPaymentMethodInvalid
	}
	if req.PaymentMethod != domain.PaymentMethodOnline && (req.PaymentID != "" || req.GatewayOrderID != "") {
		return PlaceOrderResult{}, domain.NewValidationError("paymentId", "allowed only for online payment")
	}
	if err := s.checkPrepaid(ctx, req); err != nil {
		return PlaceOrderResult{}, err
	}

	order := s.newOrder(req)
	couponCode := domain.NormalizeCouponCode(req.CouponCode)

	for attempt := 1; attempt <= s.cfg.OrderNumberAttempts; attempt++ {
		order.Number = domain.FormatOrderNumber(s.nextNumber())
		err = s.uow.InTx(ctx, func(repos domain.Repositories) error {
			return s.placeTx(ctx, repos, &order, couponCode)
		})
		if !errors.Is(err, domain.ErrOrderNumberTaken) {
			break
		}
		s.logger.WithFields(log.Fields{
			"order_number": order.Number,
			"attempt":      attempt,
		}).Warn("order number collision, regenerating")
	}
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) && s.metrics != nil {
			s.metrics.RecordStockConflict()
		}
		if domain.KindOf(err) == domain.KindUpstream {
			s.logger.WithError(err).WithField("user_id", order.UserID).Error("place order failed")
		}
		return PlaceOrderResult{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordOrderPlaced(string(order.PaymentMethod))
	}
	s.logger.WithFields(log.Fields{
		"order_id":       order.ID,
		"order_number":   order.Number,
		"payment_method": order.PaymentMethod,
		"amount_minor":   order.AmountMinor,
	}).Info("order placed")

	return PlaceOrderResult{
		OrderID:       order.ID,
		OrderNumber:   order.Number,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		TotalMinor:    order.AmountMinor,
		DiscountMinor: order.DiscountMinor,
	}, nil
}

// checkPrepaid подтверждает оплату вперёд: подпись шлюза сходится, а интент
// выписан ровно на сумму заказа в валюте магазина.
func (s *Service) checkPrepaid(ctx context.Context, req PlaceOrderRequest) error {
	if req.PaymentID == "" {
		if req.GatewayOrderID != "" || req.PaymentSignature != "" {
			return domain.NewValidationError("paymentId", "is required with razorpayOrderId")
		}
		return nil
	}
	if err := s.verifySignature(domain.PaymentConfirmation{
		GatewayOrderID: req.GatewayOrderID,
		PaymentID:      req.PaymentID,
		Signature:      req.PaymentSignature,
	}); err != nil {
		return err
	}
	intent, err := s.gateway.FetchOrder(ctx, req.GatewayOrderID)
	if err != nil {
		return err
	}
	if intent.AmountMinor != req.TotalAmountMinor || !strings.EqualFold(intent.Currency, s.cfg.Currency) {
		s.logger.WithFields(log.Fields{
			"gateway_order_id": req.GatewayOrderID,
			"gateway_amount":   intent.AmountMinor,
			"order_amount":     req.TotalAmountMinor,
		}).Warn("prepaid amount mismatch")
		return domain.ErrPaymentAmountMismatch
	}
	return nil
}

func (s *Service) newOrder(req PlaceOrderRequest) domain.Order {
	now := s.now()
	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, domain.OrderItem{
			ID:         uuid.NewString(),
			ProductID:  strings.TrimSpace(it.ProductID),
			VariantID:  strings.TrimSpace(it.VariantID),
			Qty:        it.Qty,
			PriceMinor: it.UnitPriceMinor,
			CreatedAt:  now,
		})
	}
	return domain.Order{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		Items:          items,
		PaymentMethod:  req.PaymentMethod,
		PaymentID:      req.PaymentID,
		GatewayOrderID: req.GatewayOrderID,
		Currency:       s.cfg.Currency,
		AmountMinor:    req.TotalAmountMinor,
		Shipping:       req.Shipping,
		Status:         domain.OrderStatusPending,
		PaymentStatus:  domain.InitialPaymentStatus(req.PaymentMethod, req.PaymentID),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (s *Service) placeTx(ctx context.Context, repos domain.Repositories, order *domain.Order, couponCode string) error {
	order.DiscountMinor = 0
	order.CouponCode = ""
	if couponCode != "" {
		quote, err := coupon.Quoted(ctx, repos.Coupons, couponCode, order.UserID, order.Subtotal(), order.CreatedAt)
		if err != nil {
			return err
		}
		order.CouponCode = quote.Code
		order.DiscountMinor = quote.DiscountMinor
	}
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return errors.Join(errs...)
	}

	if order.GatewayOrderID != "" {
		bound, err := repos.Orders.GetByGatewayOrderID(ctx, order.GatewayOrderID)
		switch {
		case err == nil:
			s.logger.WithFields(log.Fields{
				"gateway_order_id": order.GatewayOrderID,
				"order_id":         bound.ID,
			}).Warn("prepaid intent already bound")
			return domain.ErrPaymentAlreadyUsed
		case !errors.Is(err, domain.ErrOrderNotFound):
			return err
		}
	}

	if err := s.inventory.Reserve(ctx, repos.Products, order.Items); err != nil {
		return err
	}

	if err := repos.Orders.Create(ctx, *order); err != nil {
		return err
	}

	if order.CouponCode != "" {
		if err := repos.Coupons.Redeem(ctx, order.CouponCode, order.UserID, order.ID, order.CreatedAt); err != nil {
			return err
		}
	}

	if err := s.events.Emit(ctx, repos, events.Event{
		Type:    domain.EventOrderPlaced,
		OrderID: order.ID,
		At:      order.CreatedAt,
		Payload: map[string]any{
			"order_number":   order.Number,
			"user_id":        order.UserID,
			"status":         order.Status,
			"payment_status": order.PaymentStatus,
			"payment_method": order.PaymentMethod,
			"amount_minor":   order.AmountMinor,
			"discount_minor": order.DiscountMinor,
			"currency":       order.Currency,
		},
	}); err != nil {
		return err
	}

	if order.PaymentMethod == domain.PaymentMethodWallet {
		return s.debitWallet(ctx, repos, order)
	}
	return nil
}

// debitWallet списывает сумму заказа с кошелька. Нехватка средств откатывает весь заказ.
func (s *Service) debitWallet(ctx context.Context, repos domain.Repositories, order *domain.Order) error {
	if order.AmountMinor == 0 {
		return nil
	}
	txn := domain.WalletTransaction{
		ID:          uuid.NewString(),
		UserID:      order.UserID,
		Type:        domain.TransactionDebit,
		AmountMinor: order.AmountMinor,
		Description: fmt.Sprintf("Payment for order %s", order.Number),
		OrderID:     order.ID,
		Status:      domain.TransactionCompleted,
		CreatedAt:   order.CreatedAt,
	}
	balance, err := repos.Wallets.Debit(ctx, txn)
	if err != nil {
		return err
	}
	return s.events.Emit(ctx, repos, events.Event{
		Type:          domain.EventWalletDebited,
		AggregateType: events.AggregateWallet,
		AggregateID:   order.UserID,
		OrderID:       order.ID,
		At:            order.CreatedAt,
		Payload: map[string]any{
			"user_id":        order.UserID,
			"amount_minor":   order.AmountMinor,
			"balance_minor":  balance,
			"transaction_id": txn.ID,
		},
	})
}

// CheckAvailability строит отчёт о наличии позиций корзины.
func (s *Service) CheckAvailability(ctx context.Context, items []LineItem) ([]ItemAvailability, error) {
	if len(items) == 0 {
		return nil, domain.ErrItemsRequired
	}
	orderItems := make([]domain.OrderItem, 0, len(items))
	for _, it := range items {
		orderItems = append(orderItems, domain.OrderItem{ProductID: it.ProductID, VariantID: it.VariantID, Qty: it.Qty})
	}
	return s.inventory.CheckAvailability(ctx, s.uow.Repositories().Products, orderItems)
}

package checkout

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/events"
)

// Intent: платёжный интент шлюза, который клиент открывает в виджете оплаты.
type Intent struct {
	OrderID        string
	OrderNumber    string
	GatewayOrderID string
	AmountMinor    int64
	Currency       string
	KeyID          string
}

// FailureResult: итог фиксации неудачной оплаты.
type FailureResult struct {
	OrderID           string
	OrderNumber       string
	RetryWindowEnds   time.Time
	AttemptsRemaining int
}

// VerifyResult: итог проверки подписи оплаты.
type VerifyResult struct {
	// OrderID пуст, если интент ещё не привязан к заказу (оплата вперёд).
	OrderID        string
	OrderNumber    string
	GatewayOrderID string
	PaymentID      string
	Status         domain.OrderStatus
	PaymentStatus  domain.PaymentStatus
}

// CreatePaymentIntent создаёт интент шлюза на сумму онлайн-заказа и привязывает его к заказу.
func (s *Service) CreatePaymentIntent(ctx context.Context, orderID string) (intent Intent, err error) {
	defer s.track(domain.StepPaymentIntent)(&err)

	order, err := s.loadOwned(ctx, orderID)
	if err != nil {
		return Intent{}, err
	}
	if err := payable(order); err != nil {
		return Intent{}, err
	}
	return s.openIntent(ctx, order, domain.EventPaymentIntent, nil)
}

// RetryPayment выдаёт новый интент, если окно повтора открыто и попытки не исчерпаны.
func (s *Service) RetryPayment(ctx context.Context, orderID string) (intent Intent, err error) {
	defer s.track(domain.StepRetry)(&err)

	order, err := s.loadOwned(ctx, orderID)
	if err != nil {
		return Intent{}, err
	}
	check := func(o domain.Order) error {
		if o.PaymentMethod != domain.PaymentMethodOnline {
			return domain.ErrPaymentNotOnline
		}
		if o.PaymentStatus == domain.PaymentStatusPaid {
			return domain.ErrPaymentAlreadyCompleted
		}
		if o.Status != domain.OrderStatusPending {
			return domain.ErrRetryNotAvailable
		}
		return o.RetryToken(s.cfg.MaxPaymentAttempts).Check(s.now())
	}
	if err := check(order); err != nil {
		return Intent{}, err
	}

	intent, err = s.openIntent(ctx, order, domain.EventPaymentRetry, check)
	if err != nil {
		return Intent{}, err
	}
	if s.metrics != nil {
		s.metrics.RecordPaymentResult("retry")
	}
	return intent, nil
}

// openIntent вызывает шлюз вне транзакции, затем сохраняет идентификатор интента.
// recheck повторяет проверки на свежей версии заказа внутри транзакции.
func (s *Service) openIntent(ctx context.Context, order domain.Order, event domain.EventType, recheck func(domain.Order) error) (Intent, error) {
	gw, err := s.gateway.CreateOrder(ctx, order.AmountMinor, order.Currency, order.Number)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("gateway order create failed")
		return Intent{}, err
	}

	err = s.withConflictRetry(ctx, domain.StepPaymentIntent, order.ID, func() error {
		return s.uow.InTx(ctx, func(repos domain.Repositories) error {
			fresh, err := repos.Orders.Get(ctx, order.ID)
			if err != nil {
				return err
			}
			check := payable
			if recheck != nil {
				check = recheck
			}
			if err := check(fresh); err != nil {
				return err
			}
			now := s.now()
			fresh.BindGatewayOrder(gw.ID, now)
			if err := repos.Orders.Save(ctx, fresh); err != nil {
				return err
			}
			return s.events.Emit(ctx, repos, events.Event{
				Type:    event,
				OrderID: fresh.ID,
				At:      now,
				Payload: map[string]any{
					"order_number":     fresh.Number,
					"gateway_order_id": gw.ID,
					"amount_minor":     fresh.AmountMinor,
					"attempt":          fresh.PaymentRetryCount + 1,
				},
			})
		})
	})
	if err != nil {
		return Intent{}, err
	}

	s.logger.WithFields(log.Fields{
		"order_id":         order.ID,
		"gateway_order_id": gw.ID,
		"event":            event,
	}).Info("payment intent created")
	return Intent{
		OrderID:        order.ID,
		OrderNumber:    order.Number,
		GatewayOrderID: gw.ID,
		AmountMinor:    order.AmountMinor,
		Currency:       order.Currency,
		KeyID:          s.cfg.GatewayKeyID,
	}, nil
}

// CreateStandalonePayment создаёт интент без заказа: клиент платит до оформления.
func (s *Service) CreateStandalonePayment(ctx context.Context, amountMinor int64, receipt string) (Intent, error) {
	if _, err := principal(ctx); err != nil {
		return Intent{}, err
	}
	if amountMinor <= 0 {
		return Intent{}, domain.NewValidationError("amount", "must be greater than zero")
	}
	receipt = strings.TrimSpace(receipt)
	if receipt == "" {
		receipt = "rcpt_" + uuid.NewString()[:8]
	}

	gw, err := s.gateway.CreateOrder(ctx, amountMinor, s.cfg.Currency, receipt)
	if err != nil {
		return Intent{}, err
	}
	return Intent{
		GatewayOrderID: gw.ID,
		AmountMinor:    amountMinor,
		Currency:       s.cfg.Currency,
		KeyID:          s.cfg.GatewayKeyID,
	}, nil
}

// RecordPaymentFailure фиксирует неудачную оплату и открывает окно повтора.
// ref: идентификатор заказа или интента шлюза.
func (s *Service) RecordPaymentFailure(ctx context.Context, ref string, gwErr domain.GatewayError) (result FailureResult, err error) {
	defer s.track(domain.StepPaymentFailed)(&err)

	order, err := s.resolveOrder(ctx, ref)
	if err != nil {
		return FailureResult{}, err
	}
	if err := authorize(ctx, order); err != nil {
		return FailureResult{}, err
	}
	if order.PaymentMethod != domain.PaymentMethodOnline {
		return FailureResult{}, domain.ErrPaymentNotOnline
	}

	err = s.withConflictRetry(ctx, domain.StepPaymentFailed, order.ID, func() error {
		return s.uow.InTx(ctx, func(repos domain.Repositories) error {
			fresh, err := repos.Orders.Get(ctx, order.ID)
			if err != nil {
				return err
			}
			now := s.now()
			if err := fresh.MarkPaymentFailed(now, s.cfg.RetryWindow); err != nil {
				return err
			}
			if err := repos.Orders.Save(ctx, fresh); err != nil {
				return err
			}
			if err := repos.FailedPayments.Create(ctx, domain.FailedPayment{
				ID:             uuid.NewString(),
				OrderID:        fresh.ID,
				GatewayOrderID: fresh.GatewayOrderID,
				Error:          gwErr,
				CreatedAt:      now,
			}); err != nil {
				return err
			}

			token := fresh.RetryToken(s.cfg.MaxPaymentAttempts)
			result = FailureResult{
				OrderID:           fresh.ID,
				OrderNumber:       fresh.Number,
				RetryWindowEnds:   token.ExpiresAt,
				AttemptsRemaining: max(token.AttemptsRemaining, 0),
			}
			return s.events.Emit(ctx, repos, events.Event{
				Type:    domain.EventPaymentFailed,
				OrderID: fresh.ID,
				Reason:  failureReason(gwErr),
				At:      now,
				Payload: map[string]any{
					"order_number":      fresh.Number,
					"gateway_order_id":  fresh.GatewayOrderID,
					"error_code":        gwErr.Code,
					"retry_count":       fresh.PaymentRetryCount,
					"retry_window_ends": token.ExpiresAt.Format(time.RFC3339),
				},
			})
		})
	})
	if err != nil {
		return FailureResult{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordPaymentResult("failed")
	}
	s.logger.WithFields(log.Fields{
		"order_id":          result.OrderID,
		"error_code":        gwErr.Code,
		"retry_window_ends": result.RetryWindowEnds,
	}).Warn("payment failed")
	return result, nil
}

func failureReason(gwErr domain.GatewayError) string {
	switch {
	case gwErr.Description != "":
		return gwErr.Description
	case gwErr.Reason != "":
		return gwErr.Reason
	default:
		return gwErr.Code
	}
}

// VerifyPayment проверяет подпись оплаты и, если интент привязан к заказу, отмечает заказ оплаченным.
func (s *Service) VerifyPayment(ctx context.Context, conf domain.PaymentConfirmation) (VerifyResult, error) {
	if _, err := principal(ctx); err != nil {
		return VerifyResult{}, err
	}
	if err := s.verifySignature(conf); err != nil {
		return VerifyResult{}, err
	}

	order, err := s.uow.Repositories().Orders.GetByGatewayOrderID(ctx, conf.GatewayOrderID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		// Оплата вперёд: заказ будет создан позже с этим подтверждением.
		if s.metrics != nil {
			s.metrics.RecordPaymentResult("verified")
		}
		return VerifyResult{
			GatewayOrderID: conf.GatewayOrderID,
			PaymentID:      conf.PaymentID,
			PaymentStatus:  domain.PaymentStatusPaid,
		}, nil
	}
	if err != nil {
		return VerifyResult{}, err
	}
	return s.markPaid(ctx, order, conf)
}

// VerifyRetryPayment проверяет оплату повторной попытки конкретного заказа.
func (s *Service) VerifyRetryPayment(ctx context.Context, orderID string, conf domain.PaymentConfirmation) (VerifyResult, error) {
	order, err := s.loadOwned(ctx, orderID)
	if err != nil {
		return VerifyResult{}, err
	}
	if err := s.verifySignature(conf); err != nil {
		return VerifyResult{}, err
	}
	if order.GatewayOrderID != conf.GatewayOrderID {
		return VerifyResult{}, domain.NewValidationError("razorpay_order_id", "does not match the latest payment attempt")
	}
	return s.markPaid(ctx, order, conf)
}

func (s *Service) verifySignature(conf domain.PaymentConfirmation) error {
	if err := conf.Validate(); err != nil {
		return err
	}
	if err := s.verifier.Verify(conf.GatewayOrderID, conf.PaymentID, conf.Signature); err != nil {
		if s.metrics != nil {
			s.metrics.RecordPaymentResult("signature_invalid")
		}
		s.logger.WithField("gateway_order_id", conf.GatewayOrderID).Warn("payment signature mismatch")
		return err
	}
	return nil
}

// markPaid идемпотентен: повторное подтверждение тем же платежом возвращает текущее состояние.
func (s *Service) markPaid(ctx context.Context, order domain.Order, conf domain.PaymentConfirmation) (result VerifyResult, err error) {
	defer s.track(domain.StepVerify)(&err)

	if err := authorize(ctx, order); err != nil {
		return VerifyResult{}, err
	}

	var transitioned bool
	err = s.withConflictRetry(ctx, domain.StepVerify, order.ID, func() error {
		transitioned = false
		return s.uow.InTx(ctx, func(repos domain.Repositories) error {
			fresh, err := repos.Orders.Get(ctx, order.ID)
			if err != nil {
				return err
			}
			if fresh.PaymentStatus == domain.PaymentStatusPaid {
				if fresh.PaymentID != conf.PaymentID {
					return domain.ErrPaymentAlreadyCompleted
				}
				result = verifyResult(fresh, conf)
				return nil
			}

			now := s.now()
			if err := fresh.MarkPaid(conf.PaymentID, now); err != nil {
				return err
			}
			if err := repos.Orders.Save(ctx, fresh); err != nil {
				return err
			}
			resolved, err := repos.FailedPayments.ResolveByGatewayOrder(ctx, conf.GatewayOrderID, now)
			if err != nil {
				return err
			}
			transitioned = true
			result = verifyResult(fresh, conf)
			return s.events.Emit(ctx, repos, events.Event{
				Type:    domain.EventPaymentVerified,
				OrderID: fresh.ID,
				At:      now,
				Payload: map[string]any{
					"order_number":      fresh.Number,
					"gateway_order_id":  conf.GatewayOrderID,
					"payment_id":        conf.PaymentID,
					"status":            fresh.Status,
					"resolved_failures": resolved,
				},
			})
		})
	})
	if err != nil {
		return VerifyResult{}, err
	}

	if transitioned {
		if s.metrics != nil {
			s.metrics.RecordPaymentResult("verified")
		}
		s.logger.WithFields(log.Fields{
			"order_id":   result.OrderID,
			"payment_id": conf.PaymentID,
		}).Info("payment verified")
	}
	return result, nil
}

func verifyResult(order domain.Order, conf domain.PaymentConfirmation) VerifyResult {
	return VerifyResult{
		OrderID:        order.ID,
		OrderNumber:    order.Number,
		GatewayOrderID: conf.GatewayOrderID,
		PaymentID:      order.PaymentID,
		Status:         order.Status,
		PaymentStatus:  order.PaymentStatus,
	}
}

// payable: заказ можно оплачивать онлайн.
func payable(order domain.Order) error {
	switch {
	case order.PaymentMethod != domain.PaymentMethodOnline:
		return domain.ErrPaymentNotOnline
	case order.PaymentStatus == domain.PaymentStatusPaid:
		return domain.ErrPaymentAlreadyCompleted
	case order.Status != domain.OrderStatusPending:
		return &domain.InvalidTransitionError{Current: order.Status, Target: domain.OrderStatusProcessing}
	default:
		return nil
	}
}

// resolveOrder ищет заказ по внутреннему идентификатору, затем по интенту шлюза.
func (s *Service) resolveOrder(ctx context.Context, ref string) (domain.Order, error) {
	if ref == "" {
		return domain.Order{}, domain.ErrOrderIDRequired
	}
	orders := s.uow.Repositories().Orders
	order, err := orders.Get(ctx, ref)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return orders.GetByGatewayOrderID(ctx, ref)
	}
	return order, err
}

func (s *Service) loadOwned(ctx context.Context, orderID string) (domain.Order, error) {
	if orderID == "" {
		return domain.Order{}, domain.ErrOrderIDRequired
	}
	if _, err := principal(ctx); err != nil {
		return domain.Order{}, err
	}
	order, err := s.uow.Repositories().Orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if err := authorize(ctx, order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

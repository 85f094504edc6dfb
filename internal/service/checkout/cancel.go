package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/events"
)

// CancelResult: итог отмены заказа.
type CancelResult struct {
	OrderID     string
	OrderNumber string
	Status      domain.OrderStatus
	RefundMinor int64
}

// Cancel отменяет заказ одной транзакцией: статус, возврат остатков, снятие
// погашения купона и возврат денег в кошелёк. Отклонённая отмена ничего не меняет.
func (s *Service) Cancel(ctx context.Context, orderID, reason string) (result CancelResult, err error) {
	defer s.track(domain.StepCancel)(&err)

	if orderID == "" {
		return CancelResult{}, domain.ErrOrderIDRequired
	}
	if _, err := principal(ctx); err != nil {
		return CancelResult{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "cancelled by customer"
	}

	err = s.withConflictRetry(ctx, domain.StepCancel, orderID, func() error {
		return s.uow.InTx(ctx, func(repos domain.Repositories) error {
			order, err := repos.Orders.Get(ctx, orderID)
			if err != nil {
				return err
			}
			if err := authorize(ctx, order); err != nil {
				return err
			}
			result, err = s.cancelTx(ctx, repos, order, reason)
			return err
		})
	})
	if err != nil {
		return CancelResult{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCancelled(result.RefundMinor)
	}
	s.logger.WithFields(log.Fields{
		"order_id":     result.OrderID,
		"refund_minor": result.RefundMinor,
		"reason":       reason,
	}).Info("order cancelled")
	return result, nil
}

func (s *Service) cancelTx(ctx context.Context, repos domain.Repositories, order domain.Order, reason string) (CancelResult, error) {
	now := s.now()
	previous := order.Status
	if err := order.Cancel(now); err != nil {
		return CancelResult{}, err
	}
	if err := repos.Orders.Save(ctx, order); err != nil {
		return CancelResult{}, err
	}

	if err := s.inventory.Release(ctx, repos.Products, order.Items); err != nil {
		return CancelResult{}, err
	}
	if order.CouponCode != "" {
		if err := repos.Coupons.Release(ctx, order.CouponCode, order.UserID, order.ID); err != nil {
			return CancelResult{}, err
		}
	}

	refund := order.RefundableAmount()
	if err := s.events.Emit(ctx, repos, events.Event{
		Type:    domain.EventOrderCancelled,
		OrderID: order.ID,
		Reason:  reason,
		At:      now,
		Payload: map[string]any{
			"order_number":    order.Number,
			"user_id":         order.UserID,
			"previous_status": previous,
			"status":          order.Status,
			"refund_minor":    refund,
		},
	}); err != nil {
		return CancelResult{}, err
	}

	if refund > 0 {
		if err := s.refundToWallet(ctx, repos, order, refund, now); err != nil {
			return CancelResult{}, fmt.Errorf("%s: %w", domain.StepRefund, err)
		}
	}

	return CancelResult{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		Status:      order.Status,
		RefundMinor: refund,
	}, nil
}

func (s *Service) refundToWallet(ctx context.Context, repos domain.Repositories, order domain.Order, amount int64, now time.Time) error {
	txn := domain.WalletTransaction{
		ID:          uuid.NewString(),
		UserID:      order.UserID,
		Type:        domain.TransactionCredit,
		AmountMinor: amount,
		Description: fmt.Sprintf("Refund for cancelled order %s", order.Number),
		OrderID:     order.ID,
		Status:      domain.TransactionCompleted,
		CreatedAt:   now,
	}
	balance, err := repos.Wallets.Credit(ctx, txn, order.Currency)
	if err != nil {
		return err
	}
	return s.events.Emit(ctx, repos, events.Event{
		Type:          domain.EventWalletCredited,
		AggregateType: events.AggregateWallet,
		AggregateID:   order.UserID,
		OrderID:       order.ID,
		Reason:        txn.Description,
		At:            now,
		Payload: map[string]any{
			"user_id":        order.UserID,
			"amount_minor":   amount,
			"balance_minor":  balance,
			"transaction_id": txn.ID,
		},
	})
}

// UpdateStatus: административная смена статуса. Переход в cancelled выполняет
// полную отмену с возвратом остатков и денег.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, next domain.OrderStatus) (order domain.Order, err error) {
	defer s.track(domain.StepStatusUpdate)(&err)

	p, err := principal(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	if !p.IsAdmin() {
		return domain.Order{}, domain.ErrForbidden
	}
	if orderID == "" {
		return domain.Order{}, domain.ErrOrderIDRequired
	}
	if !next.Valid() {
		return domain.Order{}, domain.ErrOrderStatusInvalid
	}

	if next == domain.OrderStatusCancelled {
		if _, err := s.Cancel(ctx, orderID, "cancelled by admin"); err != nil {
			return domain.Order{}, err
		}
		return s.uow.Repositories().Orders.Get(ctx, orderID)
	}

	var changed bool
	err = s.withConflictRetry(ctx, domain.StepStatusUpdate, orderID, func() error {
		return s.uow.InTx(ctx, func(repos domain.Repositories) error {
			var err error
			order, err = repos.Orders.Get(ctx, orderID)
			if err != nil {
				return err
			}
			previous := order.Status
			now := s.now()
			changed, err = order.AdvanceTo(next, now)
			if err != nil || !changed {
				return err
			}
			if err := repos.Orders.Save(ctx, order); err != nil {
				return err
			}
			order.Version++
			return s.events.Emit(ctx, repos, events.Event{
				Type:    domain.EventOrderStatusChanged,
				OrderID: order.ID,
				Reason:  fmt.Sprintf("%s -> %s", previous, order.Status),
				At:      now,
				Payload: map[string]any{
					"order_number":    order.Number,
					"previous_status": previous,
					"status":          order.Status,
					"admin_id":        p.UserID,
				},
			})
		})
	})
	if err != nil {
		return domain.Order{}, err
	}
	if changed {
		s.logger.WithFields(log.Fields{
			"order_id": order.ID,
			"status":   order.Status,
		}).Info("order status updated")
	}
	return order, nil
}

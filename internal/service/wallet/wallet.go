package wallet

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

const defaultTransactionsLimit = 50

// Metrics: счётчики сервиса кошельков. Может быть nil.
type Metrics interface {
	RecordRefund(amountMinor int64)
}

// View: кошелёк вместе с тратами текущего месяца.
type View struct {
	domain.Wallet
	MonthlySpendingMinor int64
}

// RefundRequest: ручное зачисление администратором.
type RefundRequest struct {
	UserID      string
	AmountMinor int64
	OrderID     string
	Description string
}

// Service читает кошельки и проводит ручные возвраты.
type Service struct {
	uow      domain.UnitOfWork
	events   *events.Recorder
	metrics  Metrics
	currency string
	logger   *log.Entry
	now      func() time.Time
}

// NewService создаёт сервис кошельков. currency: валюта новых кошельков.
func NewService(uow domain.UnitOfWork, recorder *events.Recorder, metrics Metrics, currency string, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "wallet")
	}
	if recorder == nil {
		recorder = events.NewRecorder(nil, logger)
	}
	return &Service{
		uow:      uow,
		events:   recorder,
		metrics:  metrics,
		currency: currency,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetWallet возвращает кошелёк (создавая пустой при первом обращении),
// последние limit транзакций и траты с начала месяца.
func (s *Service) GetWallet(ctx context.Context, userID string, limit int) (View, error) {
	principal, ok := domain.PrincipalFrom(ctx)
	if !ok {
		return View{}, domain.ErrUnauthenticated
	}
	if userID == "" {
		userID = principal.UserID
	}
	if !principal.CanAccess(userID) {
		return View{}, domain.ErrForbidden
	}
	if limit <= 0 {
		limit = defaultTransactionsLimit
	}

	repos := s.uow.Repositories()
	if err := repos.Wallets.Ensure(ctx, userID, s.currency); err != nil {
		return View{}, err
	}
	w, err := repos.Wallets.Get(ctx, userID, limit)
	if err != nil {
		return View{}, err
	}
	spent, err := repos.Wallets.SpentSince(ctx, userID, domain.MonthStart(s.now()))
	if err != nil {
		return View{}, err
	}
	return View{Wallet: w, MonthlySpendingMinor: spent}, nil
}

// Refund зачисляет сумму на кошелёк пользователя одной транзакцией вместе с событиями.
func (s *Service) Refund(ctx context.Context, req RefundRequest) (domain.WalletTransaction, int64, error) {
	principal, ok := domain.PrincipalFrom(ctx)
	if !ok {
		return domain.WalletTransaction{}, 0, domain.ErrUnauthenticated
	}
	if !principal.IsAdmin() {
		return domain.WalletTransaction{}, 0, domain.ErrForbidden
	}
	if req.UserID == "" {
		return domain.WalletTransaction{}, 0, domain.ErrUserRequired
	}
	if req.AmountMinor <= 0 {
		return domain.WalletTransaction{}, 0, domain.ErrWalletAmountInvalid
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = "Refund"
	}

	now := s.now()
	txn := domain.WalletTransaction{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		Type:        domain.TransactionCredit,
		AmountMinor: req.AmountMinor,
		Description: description,
		OrderID:     req.OrderID,
		Status:      domain.TransactionCompleted,
		CreatedAt:   now,
	}

	var balance int64
	err := s.uow.InTx(ctx, func(repos domain.Repositories) error {
		if req.OrderID != "" {
			order, err := repos.Orders.Get(ctx, req.OrderID)
			if err != nil {
				return err
			}
			if !order.OwnedBy(req.UserID) {
				return domain.NewValidationError("orderId", "belongs to another user")
			}
		}

		var err error
		balance, err = repos.Wallets.Credit(ctx, txn, s.currency)
		if err != nil {
			return err
		}
		return s.events.Emit(ctx, repos, events.Event{
			Type:          domain.EventWalletCredited,
			AggregateType: events.AggregateWallet,
			AggregateID:   req.UserID,
			OrderID:       req.OrderID,
			Reason:        description,
			At:            now,
			Payload: map[string]any{
				"user_id":        req.UserID,
				"amount_minor":   req.AmountMinor,
				"balance_minor":  balance,
				"transaction_id": txn.ID,
			},
		})
	})
	if err != nil {
		if !errors.Is(err, domain.ErrOrderNotFound) {
			s.logger.WithError(err).WithField("user_id", req.UserID).Warn("wallet refund failed")
		}
		return domain.WalletTransaction{}, 0, err
	}

	if s.metrics != nil {
		s.metrics.RecordRefund(req.AmountMinor)
	}
	s.logger.WithFields(log.Fields{
		"user_id":      req.UserID,
		"amount_minor": req.AmountMinor,
		"order_id":     req.OrderID,
		"admin_id":     principal.UserID,
	}).Info("wallet refunded")
	return txn, balance, nil
}

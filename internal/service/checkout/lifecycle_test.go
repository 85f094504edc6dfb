package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func paidOnline(t *testing.T, e *env, userID string, qty int32) PlaceOrderResult {
	t.Helper()
	req := request(domain.PaymentMethodOnline, qty)
	e.prepay(t, &req, "pay_"+userID)
	return e.place(t, userID, req)
}

func TestCancel_PaidOnlineRefundsToWallet(t *testing.T) {
	e := newEnv(t)
	placed := paidOnline(t, e, "user-1", 3)

	res, err := e.svc.Cancel(customer("user-1"), placed.OrderID, "changed my mind")
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusCancelled, res.Status)
	assert.Equal(t, placed.OrderNumber, res.OrderNumber)
	assert.Equal(t, int64(3000), res.RefundMinor)
	assert.Equal(t, int32(10), e.stock(t, "s"))
	assert.Equal(t, int64(3000), e.balance(t, "user-1"))
	assert.Equal(t, []domain.EventType{
		domain.EventOrderPlaced, domain.EventOrderCancelled, domain.EventWalletCredited,
	}, e.timeline(t, placed.OrderID))

	// Повторная отмена отклоняется и ничего не меняет.
	_, err = e.svc.Cancel(customer("user-1"), placed.OrderID, "")
	var transition *domain.InvalidTransitionError
	require.True(t, errors.As(err, &transition))
	assert.Equal(t, domain.OrderStatusCancelled, transition.Current)
	assert.Equal(t, int64(3000), e.balance(t, "user-1"))
	assert.Equal(t, int32(10), e.stock(t, "s"))
}

func TestCancel_UnpaidOrdersRefundNothing(t *testing.T) {
	e := newEnv(t)

	cod := e.place(t, "user-1", request(domain.PaymentMethodCOD, 2))
	res, err := e.svc.Cancel(customer("user-1"), cod.OrderID, "")
	require.NoError(t, err)
	assert.Zero(t, res.RefundMinor)

	online := e.place(t, "user-1", request(domain.PaymentMethodOnline, 2))
	res, err = e.svc.Cancel(customer("user-1"), online.OrderID, "")
	require.NoError(t, err)
	assert.Zero(t, res.RefundMinor)

	assert.Equal(t, int64(0), e.balance(t, "user-1"))
	assert.Equal(t, int32(10), e.stock(t, "s"))
}

func TestCancel_WalletOrderRestoresBalance(t *testing.T) {
	e := newEnv(t)
	_, err := e.store.Repositories().Wallets.Credit(context.Background(), domain.WalletTransaction{
		ID: "seed", UserID: "user-1", Type: domain.TransactionCredit, AmountMinor: 1000,
		Status: domain.TransactionCompleted, CreatedAt: e.now,
	}, "INR")
	require.NoError(t, err)

	placed := e.place(t, "user-1", request(domain.PaymentMethodWallet, 1))
	require.Equal(t, int64(0), e.balance(t, "user-1"))

	_, err = e.svc.Cancel(customer("user-1"), placed.OrderID, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), e.balance(t, "user-1"))
}

func TestCancel_ReleasesCouponRedemption(t *testing.T) {
	e := newEnv(t)
	coupons := e.store.Repositories().Coupons
	require.NoError(t, coupons.Create(context.Background(), domain.Coupon{
		Code: "FEST10", DiscountPct: decimal.NewFromInt(10), Active: true,
	}))

	req := request(domain.PaymentMethodCOD, 2)
	req.CouponCode = "FEST10"
	req.TotalAmountMinor = 1800
	placed := e.place(t, "user-1", req)

	_, err := e.svc.Cancel(customer("user-1"), placed.OrderID, "")
	require.NoError(t, err)
	used, err := coupons.UsedBy(context.Background(), "FEST10", "user-1")
	require.NoError(t, err)
	assert.False(t, used)

	again := e.place(t, "user-1", req)
	assert.Equal(t, int64(200), again.DiscountMinor)
}

func TestCancel_Guards(t *testing.T) {
	e := newEnv(t)
	placed := paidOnline(t, e, "user-1", 1)

	_, err := e.svc.Cancel(customer("user-2"), placed.OrderID, "")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = e.svc.Cancel(customer("user-1"), "missing", "")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	_, err = e.svc.UpdateStatus(admin(), placed.OrderID, domain.OrderStatusShipped)
	require.NoError(t, err)
	_, err = e.svc.Cancel(customer("user-1"), placed.OrderID, "")
	var transition *domain.InvalidTransitionError
	require.True(t, errors.As(err, &transition))
	assert.Equal(t, domain.OrderStatusShipped, transition.Current)

	assert.Equal(t, int64(0), e.balance(t, "user-1"))
	assert.Equal(t, int32(9), e.stock(t, "s"))

	// Администратор может отменить чужой заказ.
	other := e.place(t, "user-3", request(domain.PaymentMethodCOD, 1))
	_, err = e.svc.Cancel(admin(), other.OrderID, "fraud")
	assert.NoError(t, err)
}

func TestUpdateStatus(t *testing.T) {
	e := newEnv(t)
	placed := e.place(t, "user-1", request(domain.PaymentMethodCOD, 1))

	_, err := e.svc.UpdateStatus(customer("user-1"), placed.OrderID, domain.OrderStatusShipped)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	order, err := e.svc.UpdateStatus(admin(), placed.OrderID, domain.OrderStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, order.Status)

	order, err = e.svc.UpdateStatus(admin(), placed.OrderID, domain.OrderStatusShipped)
	require.NoError(t, err, "same status is a no-op")
	assert.Equal(t, domain.OrderStatusShipped, order.Status)

	_, err = e.svc.UpdateStatus(admin(), placed.OrderID, domain.OrderStatusProcessing)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	_, err = e.svc.UpdateStatus(admin(), placed.OrderID, "lost")
	assert.ErrorIs(t, err, domain.ErrOrderStatusInvalid)

	order, err = e.svc.UpdateStatus(admin(), placed.OrderID, domain.OrderStatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, order.Status)

	_, err = e.svc.UpdateStatus(admin(), placed.OrderID, domain.OrderStatusCancelled)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	assert.Equal(t, []domain.EventType{
		domain.EventOrderPlaced, domain.EventOrderStatusChanged, domain.EventOrderStatusChanged,
	}, e.timeline(t, placed.OrderID))
}

func TestUpdateStatus_CancelRunsCancellationWorkflow(t *testing.T) {
	e := newEnv(t)
	placed := paidOnline(t, e, "user-1", 2)

	order, err := e.svc.UpdateStatus(admin(), placed.OrderID, domain.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, order.Status)
	assert.Equal(t, int64(2000), e.balance(t, "user-1"))
	assert.Equal(t, int32(10), e.stock(t, "s"))

	_, err = e.svc.UpdateStatus(admin(), placed.OrderID, domain.OrderStatusProcessing)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
}

// flakyUnitOfWork возвращает конфликт версий на первых conflicts транзакциях.
type flakyUnitOfWork struct {
	domain.UnitOfWork
	conflicts int
	calls     int
}

func (u *flakyUnitOfWork) InTx(ctx context.Context, fn func(domain.Repositories) error) error {
	u.calls++
	if u.calls <= u.conflicts {
		return domain.ErrOrderVersionConflict
	}
	return u.UnitOfWork.InTx(ctx, fn)
}

func TestCancel_RetriesVersionConflicts(t *testing.T) {
	e := newEnv(t)
	placed := e.place(t, "user-1", request(domain.PaymentMethodCOD, 1))

	uow := &flakyUnitOfWork{UnitOfWork: e.store, conflicts: 2}
	svc := NewService(uow, nil, e.gateway, e.verifier,
		WithConfig(Config{ConflictBackoff: time.Millisecond}),
		WithClock(func() time.Time { return e.now }),
	)

	_, err := svc.Cancel(customer("user-1"), placed.OrderID, "")
	require.NoError(t, err)
	assert.Equal(t, 3, uow.calls)

	uow = &flakyUnitOfWork{UnitOfWork: e.store, conflicts: 10}
	svc = NewService(uow, nil, e.gateway, e.verifier, WithConfig(Config{ConflictBackoff: time.Millisecond}))
	other := e.place(t, "user-1", request(domain.PaymentMethodCOD, 1))
	_, err = svc.Cancel(customer("user-1"), other.OrderID, "")
	assert.ErrorIs(t, err, domain.ErrOrderVersionConflict)
	assert.Equal(t, 3, uow.calls)
}

func TestGetAndListAll(t *testing.T) {
	e := newEnv(t)
	placed := e.place(t, "user-1", request(domain.PaymentMethodCOD, 1))
	e.now = e.now.Add(time.Minute)
	e.place(t, "user-2", request(domain.PaymentMethodCOD, 1))

	details, err := e.svc.Get(customer("user-1"), placed.OrderID)
	require.NoError(t, err)
	assert.Equal(t, placed.OrderNumber, details.Order.Number)
	assert.Len(t, details.Timeline, 1)
	assert.True(t, details.Retry.IsZero())

	_, err = e.svc.Get(customer("user-2"), placed.OrderID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = e.svc.ListAll(customer("user-1"), 10, 0)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	all, err := e.svc.ListAll(admin(), 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "user-2", all[0].UserID, "newest first")
}

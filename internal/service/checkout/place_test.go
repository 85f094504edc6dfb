package checkout

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestPlaceOrder_COD(t *testing.T) {
	e := newEnv(t)

	res := e.place(t, "user-1", request(domain.PaymentMethodCOD, 3))

	assert.Equal(t, "GPI000001", res.OrderNumber)
	assert.Equal(t, domain.OrderStatusPending, res.Status)
	assert.Equal(t, domain.PaymentStatusPending, res.PaymentStatus)
	assert.Equal(t, int32(7), e.stock(t, "s"))

	order := e.order(t, res.OrderID)
	assert.Equal(t, "user-1", order.UserID)
	assert.Equal(t, "INR", order.Currency)
	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(1000), order.Items[0].PriceMinor)
	assert.Equal(t, []domain.EventType{domain.EventOrderPlaced}, e.timeline(t, res.OrderID))
	assert.Len(t, e.store.AllPending(), 1)
}

func TestPlaceOrder_OnlineWithPaymentIDIsPaid(t *testing.T) {
	e := newEnv(t)
	req := request(domain.PaymentMethodOnline, 1)
	e.prepay(t, &req, "pay_123")

	res := e.place(t, "user-1", req)
	assert.Equal(t, domain.PaymentStatusPaid, res.PaymentStatus)
	assert.Equal(t, domain.OrderStatusPending, res.Status)
	assert.Equal(t, req.GatewayOrderID, e.order(t, res.OrderID).GatewayOrderID)

	// Без paymentId онлайн-заказ ждёт оплаты.
	res = e.place(t, "user-1", request(domain.PaymentMethodOnline, 1))
	assert.Equal(t, domain.PaymentStatusPending, res.PaymentStatus)
}

func TestPlaceOrder_UnverifiedPaymentRejected(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*testing.T, *env, *PlaceOrderRequest)
		want   error
		kind   domain.ErrorKind
	}{
		{"bare payment id", func(_ *testing.T, _ *env, r *PlaceOrderRequest) {
			r.GatewayOrderID, r.PaymentSignature = "", ""
		}, nil, domain.KindValidation},
		{"forged signature", func(_ *testing.T, _ *env, r *PlaceOrderRequest) {
			r.PaymentSignature = "deadbeef"
		}, domain.ErrSignatureInvalid, domain.KindSignatureInvalid},
		{"signature of another payment", func(_ *testing.T, e *env, r *PlaceOrderRequest) {
			r.PaymentSignature = e.verifier.Sign(r.GatewayOrderID, "pay_other")
		}, domain.ErrSignatureInvalid, domain.KindSignatureInvalid},
		{"unknown gateway order", func(_ *testing.T, e *env, r *PlaceOrderRequest) {
			r.GatewayOrderID = "order_unknown"
			r.PaymentSignature = e.verifier.Sign(r.GatewayOrderID, r.PaymentID)
		}, domain.ErrGatewayOrderNotFound, domain.KindValidation},
		{"intent for smaller amount", func(t *testing.T, e *env, r *PlaceOrderRequest) {
			cheap, err := e.gateway.CreateOrder(context.Background(), 1000, "INR", "rcpt_cheap")
			require.NoError(t, err)
			r.GatewayOrderID = cheap.ID
			r.PaymentSignature = e.verifier.Sign(cheap.ID, r.PaymentID)
		}, domain.ErrPaymentAmountMismatch, domain.KindValidation},
		{"intent in other currency", func(t *testing.T, e *env, r *PlaceOrderRequest) {
			usd, err := e.gateway.CreateOrder(context.Background(), r.TotalAmountMinor, "USD", "rcpt_usd")
			require.NoError(t, err)
			r.GatewayOrderID = usd.ID
			r.PaymentSignature = e.verifier.Sign(usd.ID, r.PaymentID)
		}, domain.ErrPaymentAmountMismatch, domain.KindValidation},
		{"intent without payment", func(_ *testing.T, _ *env, r *PlaceOrderRequest) {
			r.PaymentID, r.PaymentSignature = "", ""
		}, nil, domain.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			req := request(domain.PaymentMethodOnline, 2)
			e.prepay(t, &req, "pay_forged")
			tt.mutate(t, e, &req)

			_, err := e.svc.PlaceOrder(customer("user-1"), req)
			require.Error(t, err)
			if tt.want != nil {
				require.ErrorIs(t, err, tt.want)
			}
			assert.Equal(t, tt.kind, domain.KindOf(err))
			assert.Equal(t, int32(10), e.stock(t, "s"))
			assert.Empty(t, e.store.AllPending())
		})
	}
}

func TestPlaceOrder_ForgedPaymentCannotMintWalletCredit(t *testing.T) {
	e := newEnv(t)
	req := request(domain.PaymentMethodOnline, 3)
	req.PaymentID = "pay_forged"

	_, err := e.svc.PlaceOrder(customer("user-1"), req)
	require.Error(t, err)

	// Неоплаченный заказ отменяется без возврата.
	unpaid := e.place(t, "user-1", request(domain.PaymentMethodOnline, 3))
	res, err := e.svc.Cancel(customer("user-1"), unpaid.OrderID, "")
	require.NoError(t, err)
	assert.Zero(t, res.RefundMinor)
	assert.Equal(t, int64(0), e.balance(t, "user-1"))
}

func TestPlaceOrder_PaymentBoundOnce(t *testing.T) {
	e := newEnv(t)
	req := request(domain.PaymentMethodOnline, 2)
	e.prepay(t, &req, "pay_once")
	first := e.place(t, "user-1", req)

	_, err := e.svc.PlaceOrder(customer("user-1"), req)
	require.ErrorIs(t, err, domain.ErrPaymentAlreadyUsed)
	assert.Equal(t, int32(8), e.stock(t, "s"))

	// Интент, выданный существующему заказу, тоже не оплачивает новый.
	again := request(domain.PaymentMethodOnline, 1)
	intent, err := e.svc.CreatePaymentIntent(customer("user-1"), e.place(t, "user-1", again).OrderID)
	require.NoError(t, err)
	again.PaymentID = "pay_intent"
	again.GatewayOrderID = intent.GatewayOrderID
	again.PaymentSignature = e.verifier.Sign(intent.GatewayOrderID, "pay_intent")
	_, err = e.svc.PlaceOrder(customer("user-1"), again)
	require.ErrorIs(t, err, domain.ErrPaymentAlreadyUsed)

	res, err := e.svc.Cancel(customer("user-1"), first.OrderID, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), res.RefundMinor)
	assert.Equal(t, int64(2000), e.balance(t, "user-1"))
}

func TestPlaceOrder_CatalogMismatchIsValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PlaceOrderRequest)
		want   error
		field  string
	}{
		{"stale price", func(r *PlaceOrderRequest) { r.Items[0].UnitPriceMinor = 1; r.TotalAmountMinor = 2 }, nil, "price"},
		{"unknown product", func(r *PlaceOrderRequest) { r.Items[0].ProductID = "ghost" }, domain.ErrProductNotFound, "items"},
		{"unknown variant", func(r *PlaceOrderRequest) { r.Items[0].VariantID = "xl" }, domain.ErrVariantNotFound, "items"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			req := request(domain.PaymentMethodCOD, 2)
			tt.mutate(&req)

			_, err := e.svc.PlaceOrder(customer("user-1"), req)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
			assert.Equal(t, domain.KindValidation, domain.KindOf(err))
			assert.Equal(t, int32(10), e.stock(t, "s"))
		})
	}
}

func TestPlaceOrder_ConcurrentBuyersNeverOversell(t *testing.T) {
	var numbers atomic.Int64
	e := newEnv(t, WithOrderNumbers(func() int { return int(numbers.Add(1)) }))
	const (
		buyers = 16
		qty    = 3
	)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []error
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.svc.PlaceOrder(customer(fmt.Sprintf("user-%d", i)), request(domain.PaymentMethodCOD, qty))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return
			}
			successes++
		}(i)
	}
	wg.Wait()

	stock := e.stock(t, "s")
	assert.GreaterOrEqual(t, stock, int32(0))
	assert.Equal(t, int32(10), stock+int32(successes*qty))
	assert.Equal(t, 3, successes)
	for _, err := range failures {
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	}
}

func TestPlaceOrder_ValidationLeavesStockUntouched(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PlaceOrderRequest)
		want   error
	}{
		{"amount mismatch", func(r *PlaceOrderRequest) { r.TotalAmountMinor = 1 }, domain.ErrAmountMismatch},
		{"no items", func(r *PlaceOrderRequest) { r.Items = nil }, domain.ErrItemsRequired},
		{"bad method", func(r *PlaceOrderRequest) { r.PaymentMethod = "card" }, domain.ErrPaymentMethodInvalid},
		{"no address", func(r *PlaceOrderRequest) { r.Shipping = domain.ShippingAddress{} }, domain.ErrShippingAddressRequired},
		{"short stock", func(r *PlaceOrderRequest) { r.Items[0].Qty = 11; r.TotalAmountMinor = 11000 }, domain.ErrInsufficientStock},
		{"missing variant", func(r *PlaceOrderRequest) { r.Items[0].VariantID = "xl" }, domain.ErrVariantNotFound},
		{"payment id on cod", func(r *PlaceOrderRequest) { r.PaymentID = "pay_1" }, nil},
		{"other user", func(r *PlaceOrderRequest) { r.UserID = "user-2" }, domain.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			req := request(domain.PaymentMethodCOD, 2)
			tt.mutate(&req)

			_, err := e.svc.PlaceOrder(customer("user-1"), req)
			if tt.want == nil {
				var verr *domain.ValidationError
				require.ErrorAs(t, err, &verr)
			} else {
				require.ErrorIs(t, err, tt.want)
			}
			assert.Equal(t, int32(10), e.stock(t, "s"))
			assert.Empty(t, e.store.AllPending())
		})
	}
}

func TestPlaceOrder_Unauthenticated(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.PlaceOrder(context.Background(), request(domain.PaymentMethodCOD, 1))
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestPlaceOrder_RegeneratesTakenNumber(t *testing.T) {
	seq := []int{7, 7, 8}
	e := newEnv(t, WithOrderNumbers(func() int {
		n := seq[0]
		seq = seq[1:]
		return n
	}))

	first := e.place(t, "user-1", request(domain.PaymentMethodCOD, 1))
	second := e.place(t, "user-1", request(domain.PaymentMethodCOD, 1))

	assert.Equal(t, "GPI000007", first.OrderNumber)
	assert.Equal(t, "GPI000008", second.OrderNumber)
	assert.Equal(t, int32(8), e.stock(t, "s"))
}

func TestPlaceOrder_GivesUpAfterNumberAttempts(t *testing.T) {
	e := newEnv(t, WithOrderNumbers(func() int { return 42 }))
	e.place(t, "user-1", request(domain.PaymentMethodCOD, 1))

	_, err := e.svc.PlaceOrder(customer("user-1"), request(domain.PaymentMethodCOD, 1))
	require.ErrorIs(t, err, domain.ErrOrderNumberTaken)
	assert.Equal(t, int32(9), e.stock(t, "s"))
}

func TestPlaceOrder_Coupon(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.store.Repositories().Coupons.Create(context.Background(), domain.Coupon{
		Code: "FEST10", DiscountPct: decimal.NewFromInt(10), MaxDiscountMinor: 250, Active: true,
	}))

	req := request(domain.PaymentMethodCOD, 2)
	req.CouponCode = "fest10"
	req.TotalAmountMinor = 1800
	res := e.place(t, "user-1", req)
	assert.Equal(t, int64(200), res.DiscountMinor)
	assert.Equal(t, "FEST10", e.order(t, res.OrderID).CouponCode)

	// Повторное применение тем же пользователем откатывает весь заказ.
	_, err := e.svc.PlaceOrder(customer("user-1"), req)
	require.ErrorIs(t, err, domain.ErrCouponAlreadyUsed)
	assert.Equal(t, int32(8), e.stock(t, "s"))

	// Скидка упирается в потолок.
	big := request(domain.PaymentMethodCOD, 5)
	big.CouponCode = "FEST10"
	big.TotalAmountMinor = 4750
	res = e.place(t, "user-2", big)
	assert.Equal(t, int64(250), res.DiscountMinor)
}

func TestPlaceOrder_Wallet(t *testing.T) {
	e := newEnv(t)
	_, err := e.store.Repositories().Wallets.Credit(context.Background(), domain.WalletTransaction{
		ID: "seed", UserID: "user-1", Type: domain.TransactionCredit, AmountMinor: 2500,
		Status: domain.TransactionCompleted, CreatedAt: e.now,
	}, "INR")
	require.NoError(t, err)

	res := e.place(t, "user-1", request(domain.PaymentMethodWallet, 2))
	assert.Equal(t, domain.PaymentStatusPaid, res.PaymentStatus)
	assert.Equal(t, int64(500), e.balance(t, "user-1"))
	assert.Equal(t, []domain.EventType{domain.EventOrderPlaced, domain.EventWalletDebited}, e.timeline(t, res.OrderID))

	_, err = e.svc.PlaceOrder(customer("user-1"), request(domain.PaymentMethodWallet, 1))
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, int64(500), e.balance(t, "user-1"))
	assert.Equal(t, int32(8), e.stock(t, "s"))

	orders, err := e.svc.List(customer("user-1"), 0, 0)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestCheckAvailability(t *testing.T) {
	e := newEnv(t)

	report, err := e.svc.CheckAvailability(context.Background(), []LineItem{
		{ProductID: "p1", VariantID: "s", Qty: 4},
		{ProductID: "p1", VariantID: "m", Qty: 11},
	})
	require.NoError(t, err)
	require.Len(t, report, 2)
	assert.True(t, report[0].OK)
	assert.False(t, report[1].OK)
	assert.Equal(t, int32(10), report[1].Available)
}

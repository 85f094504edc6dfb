package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/payment"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

const testSecret = "rzp_test_secret"

type env struct {
	svc      *Service
	store    *memory.Store
	gateway  *payment.MockGateway
	verifier *payment.HMACVerifier
	now      time.Time
}

func newEnv(t *testing.T, opts ...Option) *env {
	t.Helper()
	e := &env{
		store:    memory.NewStore(),
		gateway:  payment.NewMockGateway(),
		verifier: payment.NewHMACVerifier(testSecret),
		now:      time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	numbers := 0
	base := []Option{
		WithConfig(Config{Currency: "INR", GatewayKeyID: "rzp_test_key", ConflictBackoff: time.Millisecond}),
		WithClock(func() time.Time { return e.now }),
		WithOrderNumbers(func() int { numbers++; return numbers }),
	}
	e.svc = NewService(e.store, nil, e.gateway, e.verifier, append(base, opts...)...)

	require.NoError(t, e.store.Repositories().Products.Create(context.Background(), domain.Product{
		ID:   "p1",
		Name: "Block print kurta",
		Variants: []domain.Variant{
			{ID: "s", Size: "S", PriceMinor: 1000, DiscountPct: decimal.Zero, FinalPriceMinor: 1000, Stock: 10},
			{ID: "m", Size: "M", PriceMinor: 1000, DiscountPct: decimal.Zero, FinalPriceMinor: 1000, Stock: 10},
		},
	}))
	return e
}

func customer(id string) context.Context {
	return domain.WithPrincipal(context.Background(), domain.Principal{UserID: id, Role: domain.RoleCustomer})
}

func admin() context.Context {
	return domain.WithPrincipal(context.Background(), domain.Principal{UserID: "admin-1", Role: domain.RoleAdmin})
}

func address() domain.ShippingAddress {
	return domain.ShippingAddress{
		FullName:   "Asha Rao",
		Phone:      "+919800000000",
		Line1:      "12 MG Road",
		City:       "Bengaluru",
		State:      "KA",
		PostalCode: "560001",
		Country:    "IN",
	}
}

func request(method domain.PaymentMethod, qty int32) PlaceOrderRequest {
	return PlaceOrderRequest{
		Items:            []LineItem{{ProductID: "p1", VariantID: "s", Qty: qty, UnitPriceMinor: 1000}},
		PaymentMethod:    method,
		TotalAmountMinor: int64(qty) * 1000,
		Shipping:         address(),
	}
}

func (e *env) place(t *testing.T, userID string, req PlaceOrderRequest) PlaceOrderResult {
	t.Helper()
	res, err := e.svc.PlaceOrder(customer(userID), req)
	require.NoError(t, err)
	return res
}

func (e *env) order(t *testing.T, id string) domain.Order {
	t.Helper()
	o, err := e.store.Repositories().Orders.Get(context.Background(), id)
	require.NoError(t, err)
	return o
}

func (e *env) stock(t *testing.T, variantID string) int32 {
	t.Helper()
	p, err := e.store.Repositories().Products.Get(context.Background(), "p1")
	require.NoError(t, err)
	v, ok := p.Variant(variantID)
	require.True(t, ok)
	return v.Stock
}

func (e *env) balance(t *testing.T, userID string) int64 {
	t.Helper()
	w, err := e.store.Repositories().Wallets.Get(context.Background(), userID, 0)
	if err != nil {
		require.ErrorIs(t, err, domain.ErrWalletNotFound)
		return 0
	}
	require.NoError(t, w.Validate())
	return w.BalanceMinor
}

func (e *env) timeline(t *testing.T, orderID string) []domain.EventType {
	t.Helper()
	events, err := e.store.Repositories().Timeline.List(context.Background(), orderID)
	require.NoError(t, err)
	types := make([]domain.EventType, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	return types
}

func (e *env) confirm(gatewayOrderID, paymentID string) domain.PaymentConfirmation {
	return domain.PaymentConfirmation{
		GatewayOrderID: gatewayOrderID,
		PaymentID:      paymentID,
		Signature:      e.verifier.Sign(gatewayOrderID, paymentID),
	}
}

// prepay проводит оплату вперёд на сумму запроса и подставляет подписанное подтверждение.
func (e *env) prepay(t *testing.T, req *PlaceOrderRequest, paymentID string) {
	t.Helper()
	intent, err := e.gateway.CreateOrder(context.Background(), req.TotalAmountMinor, "INR", "rcpt_test")
	require.NoError(t, err)
	conf := e.confirm(intent.ID, paymentID)
	req.GatewayOrderID = conf.GatewayOrderID
	req.PaymentID = conf.PaymentID
	req.PaymentSignature = conf.Signature
}

package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/service/wallet"
)

// Все денежные поля API передаются в минимальных единицах валюты (пайсах).

type lineItemRequest struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
	Quantity  int32  `json:"quantity"`
	Price     int64  `json:"price"`
}

func toLineItems(items []lineItemRequest) []checkout.LineItem {
	out := make([]checkout.LineItem, 0, len(items))
	for _, it := range items {
		out = append(out, checkout.LineItem{
			ProductID:      it.ProductID,
			VariantID:      it.VariantID,
			Qty:            it.Quantity,
			UnitPriceMinor: it.Price,
		})
	}
	return out
}

type placeOrderRequest struct {
	Items            []lineItemRequest      `json:"items"`
	PaymentMethod    string                 `json:"paymentMethod"`
	PaymentID        string                 `json:"paymentId"`
	GatewayOrderID   string                 `json:"razorpayOrderId"`
	PaymentSignature string                 `json:"razorpaySignature"`
	TotalAmount      int64                  `json:"totalAmount"`
	ShippingAddress  domain.ShippingAddress `json:"shippingAddress"`
	CouponCode       string                 `json:"couponCode"`
}

type placeOrderResponse struct {
	OrderID       string `json:"orderId"`
	OrderNumber   string `json:"orderNumber"`
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
	TotalAmount   int64  `json:"totalAmount"`
	Discount      int64  `json:"discount"`
}

type validateOrderRequest struct {
	Items []lineItemRequest `json:"items"`
}

type validateOrderResponse struct {
	Available bool                        `json:"available"`
	Items     []checkout.ItemAvailability `json:"items"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type cancelOrderResponse struct {
	OrderID      string `json:"orderId"`
	OrderNumber  string `json:"orderNumber"`
	Status       string `json:"status"`
	RefundAmount int64  `json:"refundAmount"`
}

type orderItemResponse struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
	Quantity  int32  `json:"quantity"`
	Price     int64  `json:"price"`
}

type orderResponse struct {
	ID                 string                 `json:"id"`
	OrderNumber        string                 `json:"orderNumber"`
	UserID             string                 `json:"userId"`
	Items              []orderItemResponse    `json:"items"`
	PaymentMethod      string                 `json:"paymentMethod"`
	PaymentID          string                 `json:"paymentId,omitempty"`
	GatewayOrderID     string                 `json:"razorpayOrderId,omitempty"`
	Currency           string                 `json:"currency"`
	TotalAmount        int64                  `json:"totalAmount"`
	Discount           int64                  `json:"discount"`
	CouponCode         string                 `json:"couponCode,omitempty"`
	ShippingAddress    domain.ShippingAddress `json:"shippingAddress"`
	Status             string                 `json:"status"`
	PaymentStatus      string                 `json:"paymentStatus"`
	PaymentRetryCount  int32                  `json:"paymentRetryCount"`
	PaymentRetryWindow *time.Time             `json:"paymentRetryWindow,omitempty"`
	CreatedAt          time.Time              `json:"createdAt"`
	UpdatedAt          time.Time              `json:"updatedAt"`
}

func toOrderResponse(o domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Qty,
			Price:     it.PriceMinor,
		})
	}
	return orderResponse{
		ID:                 o.ID,
		OrderNumber:        o.Number,
		UserID:             o.UserID,
		Items:              items,
		PaymentMethod:      string(o.PaymentMethod),
		PaymentID:          o.PaymentID,
		GatewayOrderID:     o.GatewayOrderID,
		Currency:           o.Currency,
		TotalAmount:        o.AmountMinor,
		Discount:           o.DiscountMinor,
		CouponCode:         o.CouponCode,
		ShippingAddress:    o.Shipping,
		Status:             string(o.Status),
		PaymentStatus:      string(o.PaymentStatus),
		PaymentRetryCount:  o.PaymentRetryCount,
		PaymentRetryWindow: timePtr(o.PaymentRetryWindow),
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
}

func toOrderList(orders []domain.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return out
}

type timelineResponse struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

type failedPaymentResponse struct {
	ID             string              `json:"id"`
	GatewayOrderID string              `json:"razorpayOrderId"`
	Error          domain.GatewayError `json:"error"`
	Resolved       bool                `json:"resolved"`
	CreatedAt      time.Time           `json:"createdAt"`
	ResolvedAt     *time.Time          `json:"resolvedAt,omitempty"`
}

type retryResponse struct {
	CanRetry          bool      `json:"canRetry"`
	ExpiresAt         time.Time `json:"expiresAt"`
	AttemptsRemaining int       `json:"attemptsRemaining"`
	RemainingSeconds  int64     `json:"remainingSeconds"`
}

type orderDetailsResponse struct {
	Order          orderResponse           `json:"order"`
	Timeline       []timelineResponse      `json:"timeline"`
	FailedPayments []failedPaymentResponse `json:"failedPayments"`
	Retry          *retryResponse          `json:"retry,omitempty"`
}

func toOrderDetails(d checkout.OrderDetails, now time.Time) orderDetailsResponse {
	timeline := make([]timelineResponse, 0, len(d.Timeline))
	for _, ev := range d.Timeline {
		timeline = append(timeline, timelineResponse{Type: string(ev.Type), Reason: ev.Reason, Occurred: ev.Occurred})
	}
	failed := make([]failedPaymentResponse, 0, len(d.FailedPayments))
	for _, fp := range d.FailedPayments {
		failed = append(failed, failedPaymentResponse{
			ID:             fp.ID,
			GatewayOrderID: fp.GatewayOrderID,
			Error:          fp.Error,
			Resolved:       fp.Resolved,
			CreatedAt:      fp.CreatedAt,
			ResolvedAt:     timePtr(fp.ResolvedAt),
		})
	}

	resp := orderDetailsResponse{
		Order:          toOrderResponse(d.Order),
		Timeline:       timeline,
		FailedPayments: failed,
	}
	if !d.Retry.IsZero() {
		resp.Retry = &retryResponse{
			CanRetry:          d.Retry.Valid(now),
			ExpiresAt:         d.Retry.ExpiresAt,
			AttemptsRemaining: d.Retry.AttemptsRemaining,
			RemainingSeconds:  int64(d.Retry.Remaining(now).Seconds()),
		}
	}
	return resp
}

type intentResponse struct {
	OrderID        string `json:"orderId,omitempty"`
	OrderNumber    string `json:"orderNumber,omitempty"`
	GatewayOrderID string `json:"razorpayOrderId"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	KeyID          string `json:"keyId"`
}

func toIntentResponse(in checkout.Intent) intentResponse {
	return intentResponse{
		OrderID:        in.OrderID,
		OrderNumber:    in.OrderNumber,
		GatewayOrderID: in.GatewayOrderID,
		Amount:         in.AmountMinor,
		Currency:       in.Currency,
		KeyID:          in.KeyID,
	}
}

type createPaymentRequest struct {
	Amount  int64  `json:"amount"`
	Receipt string `json:"receipt"`
}

type paymentFailureRequest struct {
	OrderID        string              `json:"orderId"`
	GatewayOrderID string              `json:"razorpay_order_id"`
	Error          domain.GatewayError `json:"error"`
}

type paymentFailureResponse struct {
	OrderID           string    `json:"orderId"`
	OrderNumber       string    `json:"orderNumber"`
	RetryWindowEnds   time.Time `json:"retryWindowEnds"`
	AttemptsRemaining int       `json:"attemptsRemaining"`
}

type verifyPaymentRequest struct {
	OrderID        string `json:"orderId"`
	GatewayOrderID string `json:"razorpay_order_id"`
	PaymentID      string `json:"razorpay_payment_id"`
	Signature      string `json:"razorpay_signature"`
}

func (r verifyPaymentRequest) confirmation() domain.PaymentConfirmation {
	return domain.PaymentConfirmation{
		GatewayOrderID: r.GatewayOrderID,
		PaymentID:      r.PaymentID,
		Signature:      r.Signature,
	}
}

type verifyPaymentResponse struct {
	OrderID        string `json:"orderId,omitempty"`
	OrderNumber    string `json:"orderNumber,omitempty"`
	GatewayOrderID string `json:"razorpayOrderId"`
	PaymentID      string `json:"paymentId"`
	Status         string `json:"status,omitempty"`
	PaymentStatus  string `json:"paymentStatus"`
}

func toVerifyResponse(res checkout.VerifyResult) verifyPaymentResponse {
	return verifyPaymentResponse{
		OrderID:        res.OrderID,
		OrderNumber:    res.OrderNumber,
		GatewayOrderID: res.GatewayOrderID,
		PaymentID:      res.PaymentID,
		Status:         string(res.Status),
		PaymentStatus:  string(res.PaymentStatus),
	}
}

type transactionResponse struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description"`
	OrderID     string    `json:"orderId,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toTransactionResponse(t domain.WalletTransaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		Type:        string(t.Type),
		Amount:      t.AmountMinor,
		Description: t.Description,
		OrderID:     t.OrderID,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt,
	}
}

type walletResponse struct {
	Balance         int64                 `json:"balance"`
	Currency        string                `json:"currency"`
	MonthlySpending int64                 `json:"monthlySpending"`
	Transactions    []transactionResponse `json:"transactions"`
}

func toWalletResponse(v wallet.View) walletResponse {
	txns := make([]transactionResponse, 0, len(v.Transactions))
	for _, t := range v.Transactions {
		txns = append(txns, toTransactionResponse(t))
	}
	return walletResponse{
		Balance:         v.BalanceMinor,
		Currency:        v.Currency,
		MonthlySpending: v.MonthlySpendingMinor,
		Transactions:    txns,
	}
}

type refundRequest struct {
	Amount      int64  `json:"amount"`
	OrderID     string `json:"orderId"`
	Description string `json:"description"`
}

type refundResponse struct {
	Transaction transactionResponse `json:"transaction"`
	Balance     int64               `json:"balance"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type offerPayload struct {
	DiscountPct decimal.Decimal `json:"discountPercentage"`
	StartsAt    *time.Time      `json:"startsAt,omitempty"`
	EndsAt      *time.Time      `json:"endsAt,omitempty"`
	Active      bool            `json:"active"`
}

func (o offerPayload) toDomain() domain.Offer {
	return domain.Offer{
		DiscountPct: o.DiscountPct,
		StartsAt:    timeValue(o.StartsAt),
		EndsAt:      timeValue(o.EndsAt),
		Active:      o.Active,
	}
}

func fromOffer(o domain.Offer) *offerPayload {
	if !o.Active && o.DiscountPct.IsZero() {
		return nil
	}
	return &offerPayload{
		DiscountPct: o.DiscountPct,
		StartsAt:    timePtr(o.StartsAt),
		EndsAt:      timePtr(o.EndsAt),
		Active:      o.Active,
	}
}

type variantPayload struct {
	ID          string          `json:"id"`
	Size        string          `json:"size"`
	Price       int64           `json:"price"`
	DiscountPct decimal.Decimal `json:"discountPercentage"`
	FinalPrice  int64           `json:"finalPrice"`
	Stock       int32           `json:"stock"`
}

type createProductRequest struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	CategoryID string           `json:"categoryId"`
	Offer      *offerPayload    `json:"offer"`
	Variants   []variantPayload `json:"variants"`
}

func (r createProductRequest) toDomain() domain.Product {
	p := domain.Product{ID: r.ID, Name: r.Name, CategoryID: r.CategoryID}
	if r.Offer != nil {
		p.Offer = r.Offer.toDomain()
	}
	for _, v := range r.Variants {
		p.Variants = append(p.Variants, domain.Variant{
			ID:          v.ID,
			Size:        v.Size,
			PriceMinor:  v.Price,
			DiscountPct: v.DiscountPct,
			Stock:       v.Stock,
		})
	}
	return p
}

type productResponse struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	CategoryID string           `json:"categoryId,omitempty"`
	Blocked    bool             `json:"isBlocked"`
	Offer      *offerPayload    `json:"offer,omitempty"`
	Variants   []variantPayload `json:"variants"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

func toProductResponse(p domain.Product) productResponse {
	variants := make([]variantPayload, 0, len(p.Variants))
	for _, v := range p.Variants {
		variants = append(variants, variantPayload{
			ID:          v.ID,
			Size:        v.Size,
			Price:       v.PriceMinor,
			DiscountPct: v.DiscountPct,
			FinalPrice:  v.FinalPriceMinor,
			Stock:       v.Stock,
		})
	}
	return productResponse{
		ID:         p.ID,
		Name:       p.Name,
		CategoryID: p.CategoryID,
		Blocked:    p.Blocked,
		Offer:      fromOffer(p.Offer),
		Variants:   variants,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

type blockProductRequest struct {
	Blocked *bool `json:"blocked"`
}

type repriceResponse struct {
	Product productResponse `json:"product"`
	Changed bool            `json:"changed"`
}

type validateCouponRequest struct {
	Code      string `json:"code"`
	CartTotal int64  `json:"cartTotal"`
}

type couponPayload struct {
	Code        string          `json:"code"`
	DiscountPct decimal.Decimal `json:"discountPercentage"`
	MaxDiscount int64           `json:"maxDiscount"`
	MinPurchase int64           `json:"minPurchase"`
	StartsAt    *time.Time      `json:"startsAt,omitempty"`
	ExpiresAt   *time.Time      `json:"expiresAt,omitempty"`
	Active      *bool           `json:"isActive,omitempty"`
	CreatedAt   *time.Time      `json:"createdAt,omitempty"`
}

func (p couponPayload) toDomain() domain.Coupon {
	active := true
	if p.Active != nil {
		active = *p.Active
	}
	return domain.Coupon{
		Code:             p.Code,
		DiscountPct:      p.DiscountPct,
		MaxDiscountMinor: p.MaxDiscount,
		MinPurchaseMinor: p.MinPurchase,
		StartsAt:         timeValue(p.StartsAt),
		ExpiresAt:        timeValue(p.ExpiresAt),
		Active:           active,
	}
}

func fromCoupon(c domain.Coupon) couponPayload {
	active := c.Active
	return couponPayload{
		Code:        c.Code,
		DiscountPct: c.DiscountPct,
		MaxDiscount: c.MaxDiscountMinor,
		MinPurchase: c.MinPurchaseMinor,
		StartsAt:    timePtr(c.StartsAt),
		ExpiresAt:   timePtr(c.ExpiresAt),
		Active:      &active,
		CreatedAt:   timePtr(c.CreatedAt),
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeValue(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}

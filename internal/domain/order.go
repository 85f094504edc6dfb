package domain

import (
	"fmt"
	"strings"
	"time"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending: заказ создан, товары зарезервированы, ждём обработки.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing: оплата подтверждена или заказ принят в работу.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped: заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered: заказ доставлен (терминальный статус).
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled: заказ отменён (терминальный статус).
	OrderStatusCancelled OrderStatus = "cancelled"
)

// orderProgress задаёт порядок прямого продвижения статусов.
var orderProgress = map[OrderStatus]int{
	OrderStatusPending:    0,
	OrderStatusProcessing: 1,
	OrderStatusShipped:    2,
	OrderStatusDelivered:  3,
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	if s == OrderStatusCancelled {
		return true
	}
	_, ok := orderProgress[s]
	return ok
}

// Terminal сообщает, что из статуса больше нет переходов.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusDelivered
}

// Cancellable сообщает, можно ли отменить заказ в этом статусе.
func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPending || s == OrderStatusProcessing
}

// PaymentStatus описывает состояние оплаты заказа.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// PaymentMethod: способ оплаты заказа.
type PaymentMethod string

const (
	// PaymentMethodCOD: оплата при получении.
	PaymentMethodCOD PaymentMethod = "cod"
	// PaymentMethodOnline: оплата через платёжный шлюз.
	PaymentMethodOnline PaymentMethod = "online"
	// PaymentMethodWallet: списание с внутреннего кошелька при оформлении.
	PaymentMethodWallet PaymentMethod = "wallet"
)

// Valid проверяет, что способ оплаты поддерживается.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCOD, PaymentMethodOnline, PaymentMethodWallet:
		return true
	default:
		return false
	}
}

// OrderItem представляет одну позицию заказа. Цена фиксируется при покупке и больше не меняется.
type OrderItem struct {
	ID        string
	ProductID string
	VariantID string
	Qty       int32
	// PriceMinor: цена за единицу в минимальных денежных единицах (пайсы, копейки).
	PriceMinor int64
	CreatedAt  time.Time
}

// ShippingAddress: снимок адреса доставки на момент оформления.
type ShippingAddress struct {
	FullName   string `json:"fullName"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Complete проверяет обязательные поля адреса.
func (a ShippingAddress) Complete() bool {
	for _, v := range []string{a.FullName, a.Phone, a.Line1, a.City, a.PostalCode} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// Order агрегирует состояние заказа, оплаты и учёт повторных попыток.
type Order struct {
	ID     string
	UserID string
	// Number: человекочитаемый номер вида GPI123456.
	Number        string
	Items         []OrderItem
	PaymentMethod PaymentMethod
	// PaymentID: идентификатор платежа в шлюзе, есть только у онлайн-оплаты.
	PaymentID      string
	GatewayOrderID string
	Currency       string
	AmountMinor    int64
	DiscountMinor  int64
	CouponCode     string
	Shipping       ShippingAddress
	Status         OrderStatus
	PaymentStatus  PaymentStatus
	// PaymentRetryCount: сколько раз оплата завершилась неудачей.
	PaymentRetryCount int32
	// PaymentRetryWindow: момент, до которого (строго) разрешена повторная оплата.
	PaymentRetryWindow time.Time
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Subtotal возвращает сумму позиций qty * price.
func (o *Order) Subtotal() int64 {
	var sum int64
	for _, item := range o.Items {
		sum += int64(item.Qty) * item.PriceMinor
	}
	return sum
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}
	if o.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.AmountMinor < 0 || o.DiscountMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}
	if !o.PaymentMethod.Valid() {
		errs = append(errs, ErrPaymentMethodInvalid)
	}
	if !o.Shipping.Complete() {
		errs = append(errs, ErrShippingAddressRequired)
	}

	for _, item := range o.Items {
		if item.ProductID == "" || item.VariantID == "" {
			errs = append(errs, ErrItemRefRequired)
		}
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.PriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
	}
	// Итог заказа = сумма позиций минус скидка купона.
	if len(o.Items) > 0 && o.Subtotal()-o.DiscountMinor != o.AmountMinor {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}

// InitialPaymentStatus определяет статус оплаты при создании заказа.
// Кошелёк списывается в той же транзакции, поэтому такой заказ сразу оплачен.
// paymentID передаётся только после проверки подписи и суммы интента шлюза.
func InitialPaymentStatus(method PaymentMethod, paymentID string) PaymentStatus {
	switch {
	case method == PaymentMethodOnline && paymentID != "":
		return PaymentStatusPaid
	case method == PaymentMethodWallet:
		return PaymentStatusPaid
	default:
		return PaymentStatusPending
	}
}

// FormatOrderNumber собирает номер заказа из шестизначного числа.
func FormatOrderNumber(n int) string {
	return fmt.Sprintf("GPI%06d", n%1_000_000)
}

// Cancel переводит заказ в cancelled. Разрешено только из pending и processing.
func (o *Order) Cancel(now time.Time) error {
	if !o.Status.Cancellable() {
		return &InvalidTransitionError{Current: o.Status, Target: OrderStatusCancelled}
	}
	o.Status = OrderStatusCancelled
	o.UpdatedAt = now
	return nil
}

// AdvanceTo продвигает статус вперёд по цепочке pending→processing→shipped→delivered.
// Возвращает false, если статус уже совпадает.
func (o *Order) AdvanceTo(next OrderStatus, now time.Time) (bool, error) {
	if !next.Valid() {
		return false, ErrOrderStatusInvalid
	}
	if next == OrderStatusCancelled {
		return false, o.Cancel(now)
	}
	if o.Status == next {
		return false, nil
	}
	if o.Status.Terminal() || orderProgress[next] < orderProgress[o.Status] {
		return false, &InvalidTransitionError{Current: o.Status, Target: next}
	}
	o.Status = next
	o.UpdatedAt = now
	return true, nil
}

// MarkPaid фиксирует успешную оплату.
func (o *Order) MarkPaid(paymentID string, now time.Time) error {
	if o.Status == OrderStatusCancelled {
		return &InvalidTransitionError{Current: o.Status, Target: OrderStatusProcessing}
	}
	o.PaymentStatus = PaymentStatusPaid
	o.PaymentID = paymentID
	if o.Status == OrderStatusPending {
		o.Status = OrderStatusProcessing
	}
	o.UpdatedAt = now
	return nil
}

// MarkPaymentFailed фиксирует неудачную оплату и открывает окно повторной попытки.
func (o *Order) MarkPaymentFailed(now time.Time, window time.Duration) error {
	if o.Status != OrderStatusPending {
		return &InvalidTransitionError{Current: o.Status, Target: OrderStatusPending}
	}
	if o.PaymentStatus == PaymentStatusPaid {
		return ErrPaymentAlreadyCompleted
	}
	o.PaymentStatus = PaymentStatusFailed
	o.PaymentRetryCount++
	o.PaymentRetryWindow = now.Add(window)
	o.UpdatedAt = now
	return nil
}

// RetryToken выдаёт токен повторной оплаты по текущему учёту неудач заказа.
func (o *Order) RetryToken(maxAttempts int) RetryToken {
	if o.PaymentStatus != PaymentStatusFailed {
		return RetryToken{}
	}
	return RetryToken{
		ExpiresAt:         o.PaymentRetryWindow,
		AttemptsRemaining: maxAttempts - int(o.PaymentRetryCount),
	}
}

// BindGatewayOrder привязывает к заказу новый платёжный интент шлюза.
func (o *Order) BindGatewayOrder(gatewayOrderID string, now time.Time) {
	o.GatewayOrderID = gatewayOrderID
	o.UpdatedAt = now
}

// RefundableAmount: сумма, которую нужно вернуть в кошелёк при отмене.
// Возврат положен только за реально списанные деньги.
func (o *Order) RefundableAmount() int64 {
	if o.PaymentStatus != PaymentStatusPaid {
		return 0
	}
	if o.PaymentMethod == PaymentMethodOnline || o.PaymentMethod == PaymentMethodWallet {
		return o.AmountMinor
	}
	return 0
}

// OwnedBy проверяет владельца заказа.
func (o *Order) OwnedBy(userID string) bool {
	return o.UserID == userID
}

package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка отсутствующего идентификатора пользователя.
	ErrUserRequired = errors.New("user_id is required")
	// Ошибка отсутствующего кода валюты.
	ErrCurrencyRequired = errors.New("currency is required")
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("amount must be non-negative")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка позиции без ссылки на товар или вариант.
	ErrItemRefRequired = errors.New("item product_id and variant_id are required")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order amount does not match items sum")
	// Ошибка неизвестного способа оплаты.
	ErrPaymentMethodInvalid = errors.New("payment method must be one of cod, online, wallet")
	// Ошибка незаполненного адреса доставки.
	ErrShippingAddressRequired = errors.New("shipping address is incomplete")
	// Ошибка неизвестного статуса заказа.
	ErrOrderStatusInvalid = errors.New("unknown order status")
	// Ошибка пустого идентификатора заказа.
	ErrOrderIDRequired = errors.New("order_id is required")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrOrderNumberTaken: сгенерированный номер заказа уже занят.
	ErrOrderNumberTaken = errors.New("order number already taken")
	// ErrInvalidStateTransition: переход статуса заказа запрещён.
	ErrInvalidStateTransition = errors.New("invalid order state transition")

	// ErrProductNotFound возвращается, если товар не найден в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrVariantNotFound: вариант отсутствует у товара.
	ErrVariantNotFound = errors.New("variant not found")
	// ErrProductExists: товар с таким идентификатором уже есть.
	ErrProductExists = errors.New("product already exists")
	// ErrCategoryExists: категория с таким идентификатором уже есть.
	ErrCategoryExists = errors.New("category already exists")
	// ErrCategoryNotFound возвращается, если категория не найдена.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrProductUnavailable: товар заблокирован и не продаётся.
	ErrProductUnavailable = errors.New("product is unavailable")
	// ErrInsufficientStock: остатка варианта не хватает на запрошенное количество.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrProductNameRequired: пустое имя товара.
	ErrProductNameRequired = errors.New("product name is required")
	// ErrVariantsRequired: у товара нет ни одного варианта.
	ErrVariantsRequired = errors.New("product must have at least one variant")
	// ErrVariantInvalid: у варианта отрицательная цена/остаток или некорректная скидка.
	ErrVariantInvalid = errors.New("variant price, stock and discount must be valid")

	// ErrWalletNotFound возвращается, если кошелёк пользователя ещё не создан.
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrInsufficientFunds: списание сделало бы баланс отрицательным.
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	// ErrWalletAmountInvalid: сумма операции по кошельку должна быть положительной.
	ErrWalletAmountInvalid = errors.New("wallet amount must be greater than zero")
	// ErrWalletLedgerMismatch: баланс не совпадает с суммой завершённых транзакций.
	ErrWalletLedgerMismatch = errors.New("wallet balance does not match ledger")

	// ErrRetryNotAvailable: заказ не находится в состоянии неудачной оплаты.
	ErrRetryNotAvailable = errors.New("payment retry is not available for this order")
	// ErrRetryWindowExpired: окно повторной оплаты истекло.
	ErrRetryWindowExpired = errors.New("payment retry window expired")
	// ErrRetryAttemptsExhausted: попытки повторной оплаты исчерпаны.
	ErrRetryAttemptsExhausted = errors.New("payment retry attempts exhausted")
	// ErrSignatureInvalid: подпись платёжного шлюза не совпала.
	ErrSignatureInvalid = errors.New("payment signature is invalid")
	// ErrPaymentAlreadyCompleted: заказ уже оплачен.
	ErrPaymentAlreadyCompleted = errors.New("order is already paid")
	// ErrPaymentNotOnline: операция доступна только для онлайн-оплаты.
	ErrPaymentNotOnline = errors.New("order payment method is not online")
	// ErrPaymentAlreadyUsed: интент шлюза уже привязан к другому заказу.
	ErrPaymentAlreadyUsed = errors.New("payment is already used by another order")
	// ErrPaymentAmountMismatch: сумма интента шлюза не совпадает с суммой заказа.
	ErrPaymentAmountMismatch = errors.New("payment amount does not match order total")
	// ErrGatewayOrderNotFound: шлюз не знает такой интент.
	ErrGatewayOrderNotFound = errors.New("gateway order not found")
	// ErrGatewayUnavailable: временная ошибка платёжного шлюза.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrCircuitOpen: circuit breaker не пропускает вызовы шлюза.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrCouponNotFound возвращается, если купон не найден.
	ErrCouponNotFound = errors.New("coupon not found")
	// ErrCouponInactive: купон выключен.
	ErrCouponInactive = errors.New("coupon is inactive")
	// ErrCouponNotStarted: срок действия купона ещё не начался.
	ErrCouponNotStarted = errors.New("coupon is not active yet")
	// ErrCouponExpired: срок действия купона истёк.
	ErrCouponExpired = errors.New("coupon has expired")
	// ErrCouponMinPurchase: сумма корзины меньше минимальной для купона.
	ErrCouponMinPurchase = errors.New("cart total is below coupon minimum purchase")
	// ErrCouponAlreadyUsed: пользователь уже применял купон.
	ErrCouponAlreadyUsed = errors.New("coupon already used by this user")
	// ErrCouponInvalid: купон заполнен некорректно.
	ErrCouponInvalid = errors.New("coupon code, discount and dates must be valid")
	// ErrCouponExists: купон с таким кодом уже создан.
	ErrCouponExists = errors.New("coupon already exists")

	// ErrForbidden: у вызывающего нет нужной роли или он не владелец ресурса.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthenticated: запрос пришёл без пользователя.
	ErrUnauthenticated = errors.New("authenticated user is required")

	// ErrIdempotencyKeyRequired: пустой ключ идемпотентности.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired: пустой хеш запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyNotFound: ключ идемпотентности не найден.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
	// ErrIdempotencyKeyAlreadyExists: ключ идемпотентности уже зарегистрирован.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch: ключ переиспользован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")

	// ErrOutboxPublish: ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsIdempotencyConflict проверяет, что ключ уже занят (тем же или другим запросом).
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}

// ValidationError описывает некорректное поле входных данных.
// Err, если задан, сохраняет исходную причину для errors.Is.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError создаёт ошибку валидации поля.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// AsValidation переводит err в ошибку валидации поля, сохраняя цепочку:
// например, отсутствующий в каталоге товар из тела заказа это 400, а не 404.
func AsValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Reason: err.Error(), Err: err}
}

// InsufficientStockError сообщает, сколько единиц варианта реально доступно.
type InsufficientStockError struct {
	ProductID string
	VariantID string
	Requested int32
	Available int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s variant %s: requested %d, available %d",
		e.ProductID, e.VariantID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// InvalidTransitionError фиксирует текущий и запрошенный статус заказа.
type InvalidTransitionError struct {
	Current OrderStatus
	Target  OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.Current, e.Target)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidStateTransition }

// ErrorKind классифицирует ошибки для транспорта.
type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindNotFound         ErrorKind = "not_found"
	KindStateConflict    ErrorKind = "state_conflict"
	KindSignatureInvalid ErrorKind = "signature_invalid"
	KindForbidden        ErrorKind = "forbidden"
	KindUnauthenticated  ErrorKind = "unauthenticated"
	KindConflict         ErrorKind = "conflict"
	KindUpstream         ErrorKind = "upstream"
)

var kindsBySentinel = []struct {
	kind ErrorKind
	errs []error
}{
	{KindNotFound, []error{ErrOrderNotFound, ErrProductNotFound, ErrVariantNotFound, ErrCategoryNotFound, ErrWalletNotFound, ErrCouponNotFound}},
	{KindStateConflict, []error{
		ErrInvalidStateTransition, ErrRetryNotAvailable, ErrRetryWindowExpired, ErrRetryAttemptsExhausted,
		ErrPaymentAlreadyCompleted, ErrPaymentNotOnline,
	}},
	{KindSignatureInvalid, []error{ErrSignatureInvalid}},
	{KindForbidden, []error{ErrForbidden}},
	{KindUnauthenticated, []error{ErrUnauthenticated}},
	{KindConflict, []error{ErrIdempotencyHashMismatch, ErrIdempotencyKeyAlreadyExists, ErrCouponExists, ErrProductExists, ErrCategoryExists}},
	{KindValidation, []error{
		ErrUserRequired, ErrCurrencyRequired, ErrItemsRequired, ErrAmountNegative, ErrItemQtyInvalid,
		ErrItemPriceInvalid, ErrItemRefRequired, ErrAmountMismatch, ErrPaymentMethodInvalid,
		ErrShippingAddressRequired, ErrOrderStatusInvalid, ErrOrderIDRequired, ErrProductUnavailable,
		ErrInsufficientStock, ErrProductNameRequired, ErrVariantsRequired, ErrVariantInvalid,
		ErrInsufficientFunds, ErrWalletAmountInvalid, ErrCouponInactive, ErrCouponNotStarted,
		ErrCouponExpired, ErrCouponMinPurchase, ErrCouponAlreadyUsed, ErrCouponInvalid,
		ErrIdempotencyKeyRequired, ErrIdempotencyRequestHashRequired,
		ErrPaymentAlreadyUsed, ErrPaymentAmountMismatch, ErrGatewayOrderNotFound,
	}},
}

// KindOf возвращает класс ошибки. Всё, что не распознано, считается сбоем
// зависимостей (БД, шлюз) и отдаётся как KindUpstream.
func KindOf(err error) ErrorKind {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return KindValidation
	}
	for _, group := range kindsBySentinel {
		for _, sentinel := range group.errs {
			if errors.Is(err, sentinel) {
				return group.kind
			}
		}
	}
	return KindUpstream
}

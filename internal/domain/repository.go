package domain

import (
	"context"
	"time"
)

// ProductRepository: каталог товаров с атомарными операциями над остатками.
type ProductRepository interface {
	Create(ctx context.Context, product Product) error
	// Get возвращает товар по идентификатору или ErrProductNotFound.
	Get(ctx context.Context, id string) (Product, error)
	SetBlocked(ctx context.Context, id string, blocked bool) error
	// UpdatePrices сохраняет итоговые цены вариантов.
	UpdatePrices(ctx context.Context, product Product) error
	// DecrementStock уменьшает остаток одной условной операцией «только если хватает».
	// При нехватке возвращает *InsufficientStockError с актуальным остатком.
	DecrementStock(ctx context.Context, productID, variantID string, qty int32) error
	// IncrementStock возвращает единицы на склад.
	IncrementStock(ctx context.Context, productID, variantID string, qty int32) error
}

// CategoryRepository читает категории (ведутся внешним сервисом каталога).
type CategoryRepository interface {
	Create(ctx context.Context, category Category) error
	Get(ctx context.Context, id string) (Category, error)
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ. ErrOrderNumberTaken, если номер уже занят.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id string) (Order, error)
	// GetByGatewayOrderID ищет заказ по идентификатору интента шлюза.
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (Order, error)
	// ListByUser возвращает заказы пользователя от новых к старым.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error)
	// List возвращает все заказы от новых к старым.
	List(ctx context.Context, limit, offset int) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(ctx context.Context, order Order) error
}

// WalletRepository: кошельки с атомарным зачислением и условным списанием.
type WalletRepository interface {
	// Get возвращает кошелёк и последние limit транзакций или ErrWalletNotFound.
	Get(ctx context.Context, userID string, limit int) (Wallet, error)
	// Ensure создаёт пустой кошелёк, если его ещё нет.
	Ensure(ctx context.Context, userID, currency string) error
	// Credit зачисляет средства (создавая кошелёк) и возвращает новый баланс.
	Credit(ctx context.Context, txn WalletTransaction, currency string) (int64, error)
	// Debit списывает средства только при достаточном балансе, иначе ErrInsufficientFunds.
	Debit(ctx context.Context, txn WalletTransaction) (int64, error)
	// SpentSince суммирует завершённые списания начиная с from.
	SpentSince(ctx context.Context, userID string, from time.Time) (int64, error)
}

// FailedPaymentRepository хранит записи о неудачных оплатах.
type FailedPaymentRepository interface {
	Create(ctx context.Context, record FailedPayment) error
	ListByOrder(ctx context.Context, orderID string) ([]FailedPayment, error)
	// ResolveByGatewayOrder помечает записи интента разрешёнными и возвращает их число.
	ResolveByGatewayOrder(ctx context.Context, gatewayOrderID string, at time.Time) (int, error)
}

// CouponRepository хранит купоны и факты их погашения.
type CouponRepository interface {
	Create(ctx context.Context, coupon Coupon) error
	Get(ctx context.Context, code string) (Coupon, error)
	// UsedBy сообщает, погашал ли пользователь купон.
	UsedBy(ctx context.Context, code, userID string) (bool, error)
	// Redeem фиксирует погашение; повторное погашение: ErrCouponAlreadyUsed.
	Redeem(ctx context.Context, code, userID, orderID string, at time.Time) error
	// Release снимает погашение, сделанное заказом orderID. Отсутствие записи не ошибка.
	Release(ctx context.Context, code, userID, orderID string) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	List(ctx context.Context, orderID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// Repositories: набор репозиториев, разделяющих одну транзакцию хранилища.
type Repositories struct {
	Products       ProductRepository
	Categories     CategoryRepository
	Orders         OrderRepository
	Wallets        WalletRepository
	FailedPayments FailedPaymentRepository
	Coupons        CouponRepository
	Outbox         OutboxRepository
	Timeline       TimelineRepository
}

// UnitOfWork выполняет шаги бизнес-процесса одной транзакцией.
type UnitOfWork interface {
	// Repositories возвращает репозитории вне транзакции (для чтения).
	Repositories() Repositories
	// InTx выполняет fn в транзакции: ошибка fn откатывает все изменения.
	InTx(ctx context.Context, fn func(repos Repositories) error) error
}

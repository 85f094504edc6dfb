package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// state: всё содержимое in-memory хранилища. Транзакция работает поверх
// снимка state и при ошибке восстанавливает его целиком.
type state struct {
	products    map[string]domain.Product
	categories  map[string]domain.Category
	orders      map[string]domain.Order
	wallets     map[string]domain.Wallet
	failed      []domain.FailedPayment
	coupons     map[string]domain.Coupon
	redemptions map[string]redemption
	outbox      map[string]outboxRecord
	outboxSeq   int64
	timeline    map[string][]domain.TimelineEvent
}

func newState() *state {
	return &state{
		products:    make(map[string]domain.Product),
		categories:  make(map[string]domain.Category),
		orders:      make(map[string]domain.Order),
		wallets:     make(map[string]domain.Wallet),
		coupons:     make(map[string]domain.Coupon),
		redemptions: make(map[string]redemption),
		outbox:      make(map[string]outboxRecord),
		timeline:    make(map[string][]domain.TimelineEvent),
	}
}

func (s *state) clone() *state {
	dst := newState()
	for k, v := range s.products {
		dst.products[k] = cloneProduct(v)
	}
	for k, v := range s.categories {
		dst.categories[k] = v
	}
	for k, v := range s.orders {
		dst.orders[k] = cloneOrder(v)
	}
	for k, v := range s.wallets {
		dst.wallets[k] = cloneWallet(v)
	}
	dst.failed = make([]domain.FailedPayment, len(s.failed))
	for i, v := range s.failed {
		dst.failed[i] = cloneFailedPayment(v)
	}
	for k, v := range s.coupons {
		dst.coupons[k] = v
	}
	for k, v := range s.redemptions {
		dst.redemptions[k] = v
	}
	for k, v := range s.outbox {
		v.msg.Payload = append([]byte(nil), v.msg.Payload...)
		dst.outbox[k] = v
	}
	dst.outboxSeq = s.outboxSeq
	for k, v := range s.timeline {
		dst.timeline[k] = append([]domain.TimelineEvent(nil), v...)
	}
	return dst
}

// Store: in-memory хранилище для локальной разработки и тестов.
// Транзакции сериализуются одним мьютексом и не реентерабельны.
type Store struct {
	mu sync.RWMutex
	st *state
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{st: newState()}
}

// Repositories возвращает репозитории, каждая операция которых атомарна сама по себе.
func (s *Store) Repositories() domain.Repositories {
	return s.repositories(false)
}

// InTx выполняет fn под эксклюзивной блокировкой; ошибка откатывает все изменения.
func (s *Store) InTx(ctx context.Context, fn func(repos domain.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(s.repositories(true)); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// Ping всегда успешен; нужен для health-проверок наравне с postgres.
func (s *Store) Ping(context.Context) error {
	return nil
}

func (s *Store) repositories(inTx bool) domain.Repositories {
	a := access{store: s, inTx: inTx}
	return domain.Repositories{
		Products:       &productRepository{a},
		Categories:     &categoryRepository{a},
		Orders:         &orderRepository{a},
		Wallets:        &walletRepository{a},
		FailedPayments: &failedPaymentRepository{a},
		Coupons:        &couponRepository{a},
		Outbox:         &outboxRepository{a},
		Timeline:       &timelineRepository{a},
	}
}

// access берёт блокировку, только если операция выполняется вне транзакции.
type access struct {
	store *Store
	inTx  bool
}

func (a access) read(fn func(st *state) error) error {
	if a.inTx {
		return fn(a.store.st)
	}
	a.store.mu.RLock()
	defer a.store.mu.RUnlock()
	return fn(a.store.st)
}

func (a access) write(fn func(st *state) error) error {
	if a.inTx {
		return fn(a.store.st)
	}
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	return fn(a.store.st)
}

func cloneProduct(p domain.Product) domain.Product {
	p.Variants = append([]domain.Variant(nil), p.Variants...)
	return p
}

func cloneOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return o
}

func cloneWallet(w domain.Wallet) domain.Wallet {
	w.Transactions = append([]domain.WalletTransaction(nil), w.Transactions...)
	return w
}

func cloneFailedPayment(f domain.FailedPayment) domain.FailedPayment {
	if f.Error.Metadata != nil {
		meta := make(map[string]string, len(f.Error.Metadata))
		for k, v := range f.Error.Metadata {
			meta[k] = v
		}
		f.Error.Metadata = meta
	}
	return f
}

var _ domain.UnitOfWork = (*Store)(nil)

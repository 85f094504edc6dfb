package domain

import "time"

// TransactionType: направление движения средств по кошельку.
type TransactionType string

const (
	TransactionCredit TransactionType = "credit"
	TransactionDebit  TransactionType = "debit"
)

// TransactionStatus: состояние транзакции кошелька.
// В баланс входят только completed.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

// WalletTransaction: запись append-only журнала кошелька.
type WalletTransaction struct {
	ID          string
	UserID      string
	Type        TransactionType
	AmountMinor int64
	Description string
	OrderID     string
	Status      TransactionStatus
	CreatedAt   time.Time
}

// Signed возвращает вклад транзакции в баланс.
func (t WalletTransaction) Signed() int64 {
	if t.Status != TransactionCompleted {
		return 0
	}
	if t.Type == TransactionDebit {
		return -t.AmountMinor
	}
	return t.AmountMinor
}

// Wallet: баланс и журнал транзакций пользователя.
type Wallet struct {
	UserID       string
	BalanceMinor int64
	Currency     string
	// Transactions упорядочены от новых к старым.
	Transactions []WalletTransaction
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewWallet создаёт пустой кошелёк.
func NewWallet(userID, currency string, now time.Time) Wallet {
	return Wallet{UserID: userID, Currency: currency, CreatedAt: now, UpdatedAt: now}
}

// Apply проводит завершённую транзакцию по балансу. Списание, уводящее баланс
// в минус, отклоняется, и кошелёк не меняется.
func (w *Wallet) Apply(txn WalletTransaction) error {
	if txn.AmountMinor <= 0 {
		return ErrWalletAmountInvalid
	}
	if txn.Status == TransactionCompleted {
		next := w.BalanceMinor + txn.Signed()
		if next < 0 {
			return ErrInsufficientFunds
		}
		w.BalanceMinor = next
	}
	w.Transactions = append([]WalletTransaction{txn}, w.Transactions...)
	w.UpdatedAt = txn.CreatedAt
	return nil
}

// LedgerBalance пересчитывает баланс по журналу.
func (w *Wallet) LedgerBalance() int64 {
	var sum int64
	for _, txn := range w.Transactions {
		sum += txn.Signed()
	}
	return sum
}

// Validate проверяет, что баланс неотрицателен и совпадает с журналом.
func (w *Wallet) Validate() error {
	if w.BalanceMinor < 0 {
		return ErrInsufficientFunds
	}
	if w.BalanceMinor != w.LedgerBalance() {
		return ErrWalletLedgerMismatch
	}
	return nil
}

// MonthlySpending суммирует завершённые списания с начала календарного месяца now.
func (w *Wallet) MonthlySpending(now time.Time) int64 {
	from := MonthStart(now)
	var sum int64
	for _, txn := range w.Transactions {
		if txn.Type == TransactionDebit && txn.Status == TransactionCompleted && !txn.CreatedAt.Before(from) {
			sum += txn.AmountMinor
		}
	}
	return sum
}

// MonthStart возвращает полночь первого дня месяца в часовом поясе now.
func MonthStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}

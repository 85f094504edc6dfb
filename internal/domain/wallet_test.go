package domain

import (
	"errors"
	"testing"
	"time"
)

func completed(kind TransactionType, amount int64, at time.Time) WalletTransaction {
	return WalletTransaction{ID: at.String(), UserID: "user-1", Type: kind, AmountMinor: amount, Status: TransactionCompleted, CreatedAt: at}
}

func TestWalletApplyKeepsLedgerInvariant(t *testing.T) {
	now := time.Date(2026, 4, 15, 9, 0, 0, 0, time.UTC)
	w := NewWallet("user-1", "INR", now)

	steps := []WalletTransaction{
		completed(TransactionCredit, 1000, now),
		completed(TransactionDebit, 300, now.Add(time.Minute)),
		{UserID: "user-1", Type: TransactionCredit, AmountMinor: 700, Status: TransactionPending, CreatedAt: now.Add(2 * time.Minute)},
		completed(TransactionCredit, 50, now.Add(3*time.Minute)),
	}
	for _, txn := range steps {
		if err := w.Apply(txn); err != nil {
			t.Fatalf("apply %+v: %v", txn, err)
		}
		if err := w.Validate(); err != nil {
			t.Fatalf("ledger invariant broken: %v", err)
		}
	}
	if w.BalanceMinor != 750 {
		t.Fatalf("balance = %d, want 750", w.BalanceMinor)
	}
	if w.Transactions[0].AmountMinor != 50 {
		t.Fatalf("expected newest transaction first")
	}
}

func TestWalletRejectsOverdraft(t *testing.T) {
	now := time.Now().UTC()
	w := NewWallet("user-1", "INR", now)
	if err := w.Apply(completed(TransactionCredit, 100, now)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	err := w.Apply(completed(TransactionDebit, 101, now))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if w.BalanceMinor != 100 || len(w.Transactions) != 1 {
		t.Fatalf("wallet mutated by rejected debit: balance=%d txns=%d", w.BalanceMinor, len(w.Transactions))
	}

	if err := w.Apply(completed(TransactionCredit, 0, now)); !errors.Is(err, ErrWalletAmountInvalid) {
		t.Fatalf("expected ErrWalletAmountInvalid, got %v", err)
	}
}

func TestWalletMonthlySpending(t *testing.T) {
	now := time.Date(2026, 4, 15, 9, 0, 0, 0, time.UTC)
	w := NewWallet("user-1", "INR", now)
	_ = w.Apply(completed(TransactionCredit, 5000, now.AddDate(0, -1, 0)))
	_ = w.Apply(completed(TransactionDebit, 1000, now.AddDate(0, -1, 0)))
	_ = w.Apply(completed(TransactionDebit, 200, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)))
	_ = w.Apply(completed(TransactionDebit, 300, now))

	if got := w.MonthlySpending(now); got != 500 {
		t.Fatalf("monthly spending = %d, want 500", got)
	}
}

package memory

import (
	"context"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type walletRepository struct{ access }

func (r *walletRepository) Get(_ context.Context, userID string, limit int) (domain.Wallet, error) {
	var wallet domain.Wallet
	err := r.read(func(st *state) error {
		w, ok := st.wallets[userID]
		if !ok {
			return domain.ErrWalletNotFound
		}
		wallet = cloneWallet(w)
		return nil
	})
	if err != nil {
		return domain.Wallet{}, err
	}
	if limit > 0 && len(wallet.Transactions) > limit {
		wallet.Transactions = wallet.Transactions[:limit]
	}
	return wallet, nil
}

func (r *walletRepository) Ensure(_ context.Context, userID, currency string) error {
	return r.write(func(st *state) error {
		if _, ok := st.wallets[userID]; !ok {
			st.wallets[userID] = domain.NewWallet(userID, currency, time.Now().UTC())
		}
		return nil
	})
}

func (r *walletRepository) Credit(_ context.Context, txn domain.WalletTransaction, currency string) (int64, error) {
	var balance int64
	err := r.write(func(st *state) error {
		w, ok := st.wallets[txn.UserID]
		if !ok {
			w = domain.NewWallet(txn.UserID, currency, txn.CreatedAt)
		}
		w = cloneWallet(w)
		if err := w.Apply(txn); err != nil {
			return err
		}
		st.wallets[txn.UserID] = w
		balance = w.BalanceMinor
		return nil
	})
	return balance, err
}

func (r *walletRepository) Debit(_ context.Context, txn domain.WalletTransaction) (int64, error) {
	var balance int64
	err := r.write(func(st *state) error {
		w, ok := st.wallets[txn.UserID]
		if !ok {
			return domain.ErrInsufficientFunds
		}
		w = cloneWallet(w)
		if err := w.Apply(txn); err != nil {
			return err
		}
		st.wallets[txn.UserID] = w
		balance = w.BalanceMinor
		return nil
	})
	return balance, err
}

func (r *walletRepository) SpentSince(_ context.Context, userID string, from time.Time) (int64, error) {
	var spent int64
	err := r.read(func(st *state) error {
		w := st.wallets[userID]
		for _, txn := range w.Transactions {
			if txn.Type == domain.TransactionDebit && txn.Status == domain.TransactionCompleted && !txn.CreatedAt.Before(from) {
				spent += txn.AmountMinor
			}
		}
		return nil
	})
	return spent, err
}

var _ domain.WalletRepository = (*walletRepository)(nil)

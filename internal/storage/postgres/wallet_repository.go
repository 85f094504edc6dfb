package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type walletRepository struct {
	q querier
}

func (r *walletRepository) Get(ctx context.Context, userID string, limit int) (domain.Wallet, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var wallet domain.Wallet
	err := r.q.QueryRowContext(ctx, `
		SELECT user_id, balance_minor, currency, created_at, updated_at
		FROM wallets
		WHERE user_id = $1
	`, userID).Scan(&wallet.UserID, &wallet.BalanceMinor, &wallet.Currency, &wallet.CreatedAt, &wallet.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Wallet{}, domain.ErrWalletNotFound
		}
		return domain.Wallet{}, fmt.Errorf("select wallet: %w", err)
	}

	if limit <= 0 {
		limit = 50
	}
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, user_id, type, amount_minor, description, order_id, status, created_at
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("select wallet transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			txn    domain.WalletTransaction
			typ    string
			status string
		)
		if err := rows.Scan(&txn.ID, &txn.UserID, &typ, &txn.AmountMinor, &txn.Description, &txn.OrderID, &status, &txn.CreatedAt); err != nil {
			return domain.Wallet{}, fmt.Errorf("scan wallet transaction: %w", err)
		}
		txn.Type = domain.TransactionType(typ)
		txn.Status = domain.TransactionStatus(status)
		wallet.Transactions = append(wallet.Transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return domain.Wallet{}, fmt.Errorf("iterate wallet transactions: %w", err)
	}

	return wallet, nil
}

func (r *walletRepository) Ensure(ctx context.Context, userID, currency string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO wallets (user_id, balance_minor, currency, created_at, updated_at)
		VALUES ($1, 0, $2, $3, $3)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, currency, now)
	if err != nil {
		return fmt.Errorf("ensure wallet: %w", err)
	}
	return nil
}

// Credit создаёт кошелёк при первом зачислении и увеличивает баланс одной командой.
func (r *walletRepository) Credit(ctx context.Context, txn domain.WalletTransaction, currency string) (int64, error) {
	if txn.AmountMinor <= 0 {
		return 0, domain.ErrWalletAmountInvalid
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var balance int64
	err := atomically(ctx, r.q, func(q querier) error {
		if err := q.QueryRowContext(ctx, `
			INSERT INTO wallets (user_id, balance_minor, currency, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)
			ON CONFLICT (user_id) DO UPDATE
			SET balance_minor = wallets.balance_minor + EXCLUDED.balance_minor,
			    updated_at = EXCLUDED.updated_at
			RETURNING balance_minor
		`, txn.UserID, txn.AmountMinor, currency, txn.CreatedAt).Scan(&balance); err != nil {
			return fmt.Errorf("credit wallet: %w", err)
		}
		return insertWalletTransaction(ctx, q, txn)
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// Debit списывает только при достаточном балансе: проверка и изменение в одном UPDATE.
func (r *walletRepository) Debit(ctx context.Context, txn domain.WalletTransaction) (int64, error) {
	if txn.AmountMinor <= 0 {
		return 0, domain.ErrWalletAmountInvalid
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var balance int64
	err := atomically(ctx, r.q, func(q querier) error {
		err := q.QueryRowContext(ctx, `
			UPDATE wallets
			SET balance_minor = balance_minor - $2,
			    updated_at = $3
			WHERE user_id = $1
			  AND balance_minor >= $2
			RETURNING balance_minor
		`, txn.UserID, txn.AmountMinor, txn.CreatedAt).Scan(&balance)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrInsufficientFunds
			}
			return fmt.Errorf("debit wallet: %w", err)
		}
		return insertWalletTransaction(ctx, q, txn)
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (r *walletRepository) SpentSince(ctx context.Context, userID string, from time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var spent int64
	err := r.q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_minor), 0)
		FROM wallet_transactions
		WHERE user_id = $1
		  AND type = 'debit'
		  AND status = 'completed'
		  AND created_at >= $2
	`, userID, from).Scan(&spent)
	if err != nil {
		return 0, fmt.Errorf("sum wallet spending: %w", err)
	}
	return spent, nil
}

func insertWalletTransaction(ctx context.Context, q querier, txn domain.WalletTransaction) error {
	status := txn.Status
	if status == "" {
		status = domain.TransactionCompleted
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO wallet_transactions (
			id, user_id, type, amount_minor, description, order_id, status, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		txn.ID, txn.UserID, string(txn.Type), txn.AmountMinor, txn.Description, txn.OrderID, string(status), txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet transaction: %w", err)
	}
	return nil
}

var _ domain.WalletRepository = (*walletRepository)(nil)

package postgres

import (
	"context"
	"errors"

	"github.com/inzira/inzira-go/internal/domain"
	"github.com/inzira/inzira-go/internal/repository"
)

func (s *Store) WalletAccount(ctx context.Context, userID int64) (*domain.WalletAccount, error) {
	const op = "postgres.Store.WalletAccount"

	db := s.handle()

	var a domain.WalletAccount
	err := db.QueryRow(ctx,
		`SELECT user_id, balance FROM wallet_accounts WHERE user_id = $1`,
		userID,
	).Scan(&a.UserID, &a.Balance)
	if err != nil {
		err = translateDBErr(err)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, wrapDBErr(op, repository.ErrAccountNotFound)
		}
		return nil, wrapDBErr(op, err)
	}

	return &a, nil
}

func (s *Store) EnsureWalletAccount(ctx context.Context, userID int64) error {
	const op = "postgres.Store.EnsureWalletAccount"

	db := s.handle()

	if _, err := db.Exec(ctx,
		`INSERT INTO wallet_accounts(user_id, balance)
       	 VALUES ($1, 0)
     	 ON CONFLICT (user_id) DO NOTHING`,
		userID,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// ApplyWalletTx is the single write path for balances: it locks the account
// row, checks the resulting balance, updates it and appends the ledger entry,
// all against the same handle. Run it inside InTx so the read-check-write and
// the append commit or roll back together. Concurrent transactions on one
// account queue on the row lock, so two debits can never both spend the same
// funds. On success t.BalanceAfter carries the new balance.
func (s *Store) ApplyWalletTx(ctx context.Context, t *domain.WalletTransaction) error {
	const op = "postgres.Store.ApplyWalletTx"

	db := s.handle()

	var balance int64
	err := db.QueryRow(ctx,
		`SELECT balance FROM wallet_accounts WHERE user_id = $1 FOR UPDATE`,
		t.UserID,
	).Scan(&balance)
	if err != nil {
		err = translateDBErr(err)
		if errors.Is(err, repository.ErrNotFound) {
			return wrapDBErr(op, repository.ErrAccountNotFound)
		}
		return wrapDBErr(op, err)
	}

	balance += t.Delta()
	if balance < 0 {
		return wrapDBErr(op, repository.ErrInsufficientFunds)
	}

	if _, err := db.Exec(ctx,
		`UPDATE wallet_accounts SET balance = $2 WHERE user_id = $1`,
		t.UserID, balance,
	); err != nil {
		return wrapDBErr(op, err)
	}

	t.BalanceAfter = balance

	if _, err := db.Exec(ctx,
		`INSERT INTO wallet_transactions(id, user_id, type, amount, balance_after, correlation_id, created_at)
       	 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.UserID, t.Type, t.Amount, t.BalanceAfter, t.CorrelationID, t.CreatedAt,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (s *Store) ListWalletTxs(
	ctx context.Context,
	userID int64,
	limit, offset int,
) ([]domain.WalletTransaction, error) {
	const op = "postgres.Store.ListWalletTxs"

	db := s.handle()

	rows, err := db.Query(ctx,
		`SELECT id, user_id, type, amount, balance_after, COALESCE(correlation_id, ''), created_at
       	 FROM wallet_transactions
      	 WHERE user_id = $1
      	 ORDER BY created_at DESC
      	 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var txs []domain.WalletTransaction
	for rows.Next() {
		var t domain.WalletTransaction
		if err := rows.Scan(
			&t.ID, &t.UserID, &t.Type, &t.Amount,
			&t.BalanceAfter, &t.CorrelationID, &t.CreatedAt,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return txs, nil
}

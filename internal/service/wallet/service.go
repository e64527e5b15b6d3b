package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/inzira/inzira-go/internal/domain"
	"github.com/inzira/inzira-go/internal/repository"
	"github.com/inzira/inzira-go/internal/uow"
)

type Config struct {
	// Minimum amounts are portal policy, checked here before the transactor
	// touches the ledger. Smallest currency unit.
	MinDeposit    int64
	MinWithdrawal int64
}

type Service struct {
	store repository.Store
	uow   *uow.UoW
	cfg   Config
}

func New(store repository.Store, cfg Config) *Service {
	if cfg.MinDeposit <= 0 {
		cfg.MinDeposit = 100
	}

	if cfg.MinWithdrawal <= 0 {
		cfg.MinWithdrawal = 500
	}

	return &Service{
		store: store,
		uow:   uow.NewUoW(store),
		cfg:   cfg,
	}
}

// Deposit credits the user's wallet. The deposit is assumed to be an
// already-confirmed event on the external payment rail; the core only records
// it. Creates the account on first use.
func (s *Service) Deposit(ctx context.Context, userID, amount int64) (*domain.WalletTransaction, error) {
	const op = "service.wallet.Deposit"

	if amount <= 0 {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidAmount)
	}

	if amount < s.cfg.MinDeposit {
		return nil, fmt.Errorf("%s:%w", op, ErrAmountBelowMinimum)
	}

	t := newTx(userID, domain.TxDeposit, amount, "")

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Tx, _ func(uow.AfterCommit)) error {
		if err := tx.EnsureWalletAccount(ctx, userID); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}
		if err := tx.ApplyWalletTx(ctx, t); err != nil {
			return fmt.Errorf("%s:%w", op, translateErr(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return t, nil
}

// Withdraw debits the user's wallet. The balance can never go negative: the
// store serializes transactions per account and rejects an overdraft.
func (s *Service) Withdraw(ctx context.Context, userID, amount int64) (*domain.WalletTransaction, error) {
	const op = "service.wallet.Withdraw"

	if amount <= 0 {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidAmount)
	}

	if amount < s.cfg.MinWithdrawal {
		return nil, fmt.Errorf("%s:%w", op, ErrAmountBelowMinimum)
	}

	t := newTx(userID, domain.TxWithdrawal, amount, "")

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Tx, _ func(uow.AfterCommit)) error {
		if err := tx.ApplyWalletTx(ctx, t); err != nil {
			return fmt.Errorf("%s:%w", op, translateErr(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return t, nil
}

// Pay debits the wallet for a booking inside the caller's transaction, so the
// payment commits or rolls back together with the rest of the booking flow.
func (s *Service) Pay(
	ctx context.Context,
	tx repository.Tx,
	userID, amount int64,
	bookingID uuid.UUID,
) (*domain.WalletTransaction, error) {
	const op = "service.wallet.Pay"

	if amount <= 0 {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidAmount)
	}

	t := newTx(userID, domain.TxPayment, amount, bookingID.String())

	if err := tx.ApplyWalletTx(ctx, t); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateErr(err))
	}

	return t, nil
}

// Refund credits back a settled booking payment inside the caller's
// transaction. Correlation ties the refund to the booking it compensates.
func (s *Service) Refund(
	ctx context.Context,
	tx repository.Tx,
	userID, amount int64,
	bookingID uuid.UUID,
) (*domain.WalletTransaction, error) {
	const op = "service.wallet.Refund"

	if amount <= 0 {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidAmount)
	}

	t := newTx(userID, domain.TxRefund, amount, bookingID.String())

	if err := tx.ApplyWalletTx(ctx, t); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateErr(err))
	}

	return t, nil
}

// Balance returns the current account balance. Users without a wallet yet
// read as zero.
func (s *Service) Balance(ctx context.Context, userID int64) (*domain.WalletAccount, error) {
	const op = "service.wallet.Balance"

	a, err := s.store.WalletAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return &domain.WalletAccount{UserID: userID}, nil
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return a, nil
}

func (s *Service) History(
	ctx context.Context,
	userID int64,
	limit, offset int,
) ([]domain.WalletTransaction, error) {
	const op = "service.wallet.History"

	txs, err := s.store.ListWalletTxs(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return txs, nil
}

func newTx(userID int64, typ domain.TransactionType, amount int64, correlation string) *domain.WalletTransaction {
	return &domain.WalletTransaction{
		ID:            uuid.New(),
		UserID:        userID,
		Type:          typ,
		Amount:        amount,
		CorrelationID: correlation,
		CreatedAt:     time.Now().UTC(),
	}
}

func translateErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrInsufficientFunds):
		return ErrInsufficientFunds
	case errors.Is(err, repository.ErrAccountNotFound):
		return ErrAccountNotFound
	default:
		return err
	}
}

package wallet

import "errors"

var (
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrAmountBelowMinimum = errors.New("amount below configured minimum")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrAccountNotFound    = errors.New("wallet account not found")
)

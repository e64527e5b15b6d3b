package repository

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrSeatTaken         = errors.New("seat already taken")
	ErrClaimExpired      = errors.New("seat claim expired")
	ErrWrongStatus       = errors.New("unexpected booking status")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountNotFound   = errors.New("wallet account not found")
	ErrTicketUsed        = errors.New("ticket already used")

	// ErrSerialization marks a transaction aborted by the store's concurrency
	// control; the whole transaction is safe to retry.
	ErrSerialization = errors.New("serialization failure")
)

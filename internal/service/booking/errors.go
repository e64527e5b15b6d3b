package booking

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrTripNotFound         = errors.New("trip not found")
	ErrTripDeparted         = errors.New("trip has already departed")
	ErrSeatOutOfRange       = errors.New("seat number out of range")
	ErrSeatTaken            = errors.New("seat already taken")
	ErrBookingNotFound      = errors.New("booking not found")
	ErrBookingNotPending    = errors.New("booking is not pending")
	ErrClaimExpired         = errors.New("seat claim expired")
	ErrAlreadyCancelled     = errors.New("booking already cancelled")
	ErrNotCancellable       = errors.New("booking cannot be cancelled")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
)

type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter)
}

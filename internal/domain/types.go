package domain

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingBoarded   BookingStatus = "boarded"
	BookingCancelled BookingStatus = "cancelled"
)

type PaymentMethod string

const (
	PayWallet PaymentMethod = "wallet"
	PayMoMo   PaymentMethod = "momo"
	PayAirtel PaymentMethod = "airtel"
)

type TransactionType string

const (
	TxDeposit    TransactionType = "deposit"
	TxWithdrawal TransactionType = "withdrawal"
	TxPayment    TransactionType = "payment"
	TxRefund     TransactionType = "refund"
)

// Trip is reference data published by the scheduling system. The core reads
// it but never mutates it after publication.
type Trip struct {
	ID          int64     `json:"id"`
	BusID       string    `json:"bus_id"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	Departure   time.Time `json:"departure"`
	Arrival     time.Time `json:"arrival"`
	Price       int64     `json:"price"` // smallest currency unit (RWF)
	SeatCount   int       `json:"seat_count"`
}

// SeatClaim binds one seat on one trip to one booking. ExpiresAt is set while
// the owning booking is pending and cleared once the booking is confirmed.
type SeatClaim struct {
	TripID     int64
	SeatNumber int
	BookingID  uuid.UUID
	ExpiresAt  *time.Time
}

type Booking struct {
	ID          uuid.UUID     `json:"id"`
	UserID      int64         `json:"user_id"`
	TripID      int64         `json:"trip_id"`
	SeatNumber  int           `json:"seat_number"`
	Price       int64         `json:"price"`
	Method      PaymentMethod `json:"payment_method"`
	Status      BookingStatus `json:"status"`
	TicketToken string        `json:"ticket_token,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

type WalletAccount struct {
	UserID  int64 `json:"user_id"`
	Balance int64 `json:"balance"`
}

// WalletTransaction is an immutable ledger entry. BalanceAfter is the account
// balance as of this entry; the running sum of signed deltas always equals it.
type WalletTransaction struct {
	ID            uuid.UUID       `json:"id"`
	UserID        int64           `json:"user_id"`
	Type          TransactionType `json:"type"`
	Amount        int64           `json:"amount"`
	BalanceAfter  int64           `json:"balance_after"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Delta is the signed effect of the transaction on the balance.
func (t WalletTransaction) Delta() int64 {
	switch t.Type {
	case TxWithdrawal, TxPayment:
		return -t.Amount
	default:
		return t.Amount
	}
}

type Ticket struct {
	Token      string     `json:"token"`
	BookingID  uuid.UUID  `json:"booking_id"`
	TripID     int64      `json:"trip_id"`
	SeatNumber int        `json:"seat_number"`
	IssuedAt   time.Time  `json:"issued_at"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	ConsumedBy *int64     `json:"consumed_by,omitempty"`
}

type AuditEntry struct {
	ID         int64     `json:"id"`
	ActorID    int64     `json:"actor_id"`
	Action     string    `json:"action"`
	TargetType string    `json:"target_type"`
	TargetID   string    `json:"target_id"`
	Details    string    `json:"details,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type SeatStatus string

const (
	SeatFree SeatStatus = "free"
	SeatHeld SeatStatus = "held"
	SeatSold SeatStatus = "sold"
)

type SeatWithStatus struct {
	SeatNumber int        `json:"seat_number"`
	Status     SeatStatus `json:"status"`
}

type TripAvailability struct {
	Free  int `json:"free"`
	Held  int `json:"held"`
	Sold  int `json:"sold"`
	Total int `json:"total"`
}

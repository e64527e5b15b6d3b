package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/inzira/inzira-go/internal/domain"
)

// Tx is the set of storage operations available inside a transaction. All
// cross-request coordination happens through these operations: seat claims
// rely on a unique (trip_id, seat_number) constraint, wallet mutations on a
// per-account row lock, ticket consumption on a conditional update.
type Tx interface {
	// Trips (read-only reference data plus a seed loader).
	TripByID(ctx context.Context, tripID int64) (*domain.Trip, error)
	ListTrips(ctx context.Context, origin, destination string, limit, offset int) ([]domain.Trip, error)
	CreateTrip(ctx context.Context, t *domain.Trip) error

	// Seat claims and bookings.
	ClaimSeat(ctx context.Context, tripID int64, seatNumber int, bookingID uuid.UUID, expiresAt time.Time) error
	ConfirmClaim(ctx context.Context, bookingID uuid.UUID) error
	ReleaseClaim(ctx context.Context, bookingID uuid.UUID) error
	ListClaims(ctx context.Context, tripID int64) ([]domain.SeatClaim, error)
	CreateBooking(ctx context.Context, b *domain.Booking) error
	BookingByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	BookingByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to domain.BookingStatus) error
	SetBookingTicket(ctx context.Context, id uuid.UUID, token string) error
	ListUserBookings(ctx context.Context, userID int64) ([]domain.Booking, error)
	ExpirePending(ctx context.Context, now time.Time) (int64, error)

	// Wallet ledger.
	WalletAccount(ctx context.Context, userID int64) (*domain.WalletAccount, error)
	EnsureWalletAccount(ctx context.Context, userID int64) error
	ApplyWalletTx(ctx context.Context, t *domain.WalletTransaction) error
	ListWalletTxs(ctx context.Context, userID int64, limit, offset int) ([]domain.WalletTransaction, error)

	// Tickets.
	InsertTicket(ctx context.Context, t *domain.Ticket) error
	TicketByToken(ctx context.Context, token string) (*domain.Ticket, error)
	ConsumeTicket(ctx context.Context, token string, operatorID int64, at time.Time) error

	// Audit log.
	AppendAudit(ctx context.Context, e *domain.AuditEntry) error
	ListAudit(ctx context.Context, limit, offset int) ([]domain.AuditEntry, error)
}

// Store is the durable ledger store. Operations called directly on the store
// run in their own implicit transaction; InTx groups several into one.
type Store interface {
	Tx

	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

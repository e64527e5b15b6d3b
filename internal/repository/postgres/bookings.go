package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/inzira/inzira-go/internal/domain"
	"github.com/inzira/inzira-go/internal/repository"
)

// ClaimSeat atomically binds (tripID, seatNumber) to bookingID. The insert
// races on the composite primary key of seat_claims, so of two concurrent
// claims for the same seat exactly one succeeds; the loser gets ErrSeatTaken.
// Expired claims on the trip are freed first, so an abandoned pending booking
// never blocks the seat past its lease.
func (s *Store) ClaimSeat(
	ctx context.Context,
	tripID int64,
	seatNumber int,
	bookingID uuid.UUID,
	expiresAt time.Time,
) error {
	const op = "postgres.Store.ClaimSeat"

	db := s.handle()

	if _, err := db.Exec(ctx,
		`WITH expired AS (
			DELETE FROM seat_claims
		  	 WHERE trip_id = $1
				AND expires_at IS NOT NULL
				AND expires_at <= now()
		 	 RETURNING booking_id
		 )
		 UPDATE bookings SET status = 'cancelled'
	  	  WHERE id IN (SELECT booking_id FROM expired)
			AND status = 'pending'`,
		tripID,
	); err != nil {
		return wrapDBErr(op, err)
	}

	_, err := db.Exec(ctx,
		`INSERT INTO seat_claims(trip_id, seat_number, booking_id, expires_at)
       	 VALUES ($1, $2, $3, $4)`,
		tripID, seatNumber, bookingID, expiresAt,
	)
	if err != nil {
		err = translateDBErr(err)
		if errors.Is(err, repository.ErrConflict) {
			return wrapDBErr(op, repository.ErrSeatTaken)
		}
		return wrapDBErr(op, err)
	}

	return nil
}

// ConfirmClaim clears the lease on a claim, making it permanent. Fails with
// ErrClaimExpired when the lease has already lapsed.
func (s *Store) ConfirmClaim(ctx context.Context, bookingID uuid.UUID) error {
	const op = "postgres.Store.ConfirmClaim"

	db := s.handle()

	tag, err := db.Exec(ctx,
		`UPDATE seat_claims
         SET expires_at = NULL
      	 WHERE booking_id = $1
        	AND (expires_at IS NULL OR expires_at > now())`,
		bookingID,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, repository.ErrClaimExpired)
	}

	return nil
}

// ReleaseClaim frees the seat held by bookingID. Releasing an already-freed
// claim is a no-op.
func (s *Store) ReleaseClaim(ctx context.Context, bookingID uuid.UUID) error {
	const op = "postgres.Store.ReleaseClaim"

	db := s.handle()

	if _, err := db.Exec(ctx,
		`DELETE FROM seat_claims WHERE booking_id = $1`,
		bookingID,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (s *Store) ListClaims(ctx context.Context, tripID int64) ([]domain.SeatClaim, error) {
	const op = "postgres.Store.ListClaims"

	db := s.handle()

	rows, err := db.Query(ctx,
		`SELECT trip_id, seat_number, booking_id, expires_at
       	 FROM seat_claims WHERE trip_id = $1`,
		tripID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var claims []domain.SeatClaim
	for rows.Next() {
		var c domain.SeatClaim
		if err := rows.Scan(&c.TripID, &c.SeatNumber, &c.BookingID, &c.ExpiresAt); err != nil {
			return nil, wrapDBErr(op, err)
		}
		claims = append(claims, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return claims, nil
}

func (s *Store) CreateBooking(ctx context.Context, b *domain.Booking) error {
	const op = "postgres.Store.CreateBooking"

	db := s.handle()

	if _, err := db.Exec(ctx,
		`INSERT INTO bookings(id, user_id, trip_id, seat_number, price, payment_method, status, created_at)
       	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		b.ID, b.UserID, b.TripID, b.SeatNumber, b.Price, b.Method, b.Status, b.CreatedAt,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

const bookingColumns = `id, user_id, trip_id, seat_number, price, payment_method, status, COALESCE(ticket_token, ''), created_at`

func (s *Store) BookingByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "postgres.Store.BookingByID"
	return s.bookingByID(ctx, op, id, false)
}

// BookingByIDForUpdate locks the booking row for the rest of the enclosing
// transaction, serializing confirm/cancel/board transitions on it.
func (s *Store) BookingByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "postgres.Store.BookingByIDForUpdate"
	return s.bookingByID(ctx, op, id, true)
}

func (s *Store) bookingByID(
	ctx context.Context,
	op string,
	id uuid.UUID,
	forUpdate bool,
) (*domain.Booking, error) {
	db := s.handle()

	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	if forUpdate {
		q += ` FOR UPDATE`
	}

	var b domain.Booking
	err := db.QueryRow(ctx, q, id).Scan(
		&b.ID, &b.UserID, &b.TripID, &b.SeatNumber,
		&b.Price, &b.Method, &b.Status, &b.TicketToken, &b.CreatedAt,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &b, nil
}

// UpdateBookingStatus transitions a booking from one lifecycle state to the
// next. The update is conditional on the current state, so concurrent
// transitions cannot both apply.
func (s *Store) UpdateBookingStatus(
	ctx context.Context,
	id uuid.UUID,
	from, to domain.BookingStatus,
) error {
	const op = "postgres.Store.UpdateBookingStatus"

	db := s.handle()

	tag, err := db.Exec(ctx,
		`UPDATE bookings SET status = $3 WHERE id = $1 AND status = $2`,
		id, from, to,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM bookings WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return wrapDBErr(op, err)
		}
		if !exists {
			return wrapDBErr(op, repository.ErrNotFound)
		}
		return wrapDBErr(op, repository.ErrWrongStatus)
	}

	return nil
}

func (s *Store) SetBookingTicket(ctx context.Context, id uuid.UUID, token string) error {
	const op = "postgres.Store.SetBookingTicket"

	db := s.handle()

	tag, err := db.Exec(ctx,
		`UPDATE bookings SET ticket_token = $2 WHERE id = $1`,
		id, token,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, repository.ErrNotFound)
	}

	return nil
}

func (s *Store) ListUserBookings(ctx context.Context, userID int64) ([]domain.Booking, error) {
	const op = "postgres.Store.ListUserBookings"

	db := s.handle()

	rows, err := db.Query(ctx,
		`SELECT `+bookingColumns+`
       	 FROM bookings WHERE user_id = $1
      	 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(
			&b.ID, &b.UserID, &b.TripID, &b.SeatNumber,
			&b.Price, &b.Method, &b.Status, &b.TicketToken, &b.CreatedAt,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return bookings, nil
}

// ExpirePending reclaims seats held by pending bookings whose lease has
// lapsed: the bookings become cancelled and their claims are deleted.
func (s *Store) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	const op = "postgres.Store.ExpirePending"

	db := s.handle()

	tag, err := db.Exec(ctx,
		`WITH expired AS (
			DELETE FROM seat_claims
		  	 WHERE expires_at IS NOT NULL AND expires_at <= $1
		 	 RETURNING booking_id
		 )
		 UPDATE bookings SET status = 'cancelled'
	  	  WHERE id IN (SELECT booking_id FROM expired)
			AND status = 'pending'`,
		now,
	)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return tag.RowsAffected(), nil
}

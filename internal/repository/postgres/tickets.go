package postgres

import (
	"context"
	"time"

	"github.com/inzira/inzira-go/internal/domain"
	"github.com/inzira/inzira-go/internal/repository"
)

func (s *Store) InsertTicket(ctx context.Context, t *domain.Ticket) error {
	const op = "postgres.Store.InsertTicket"

	db := s.handle()

	if _, err := db.Exec(ctx,
		`INSERT INTO tickets(token, booking_id, trip_id, seat_number, issued_at)
       	 VALUES ($1, $2, $3, $4, $5)`,
		t.Token, t.BookingID, t.TripID, t.SeatNumber, t.IssuedAt,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (s *Store) TicketByToken(ctx context.Context, token string) (*domain.Ticket, error) {
	const op = "postgres.Store.TicketByToken"

	db := s.handle()

	var t domain.Ticket
	err := db.QueryRow(ctx,
		`SELECT token, booking_id, trip_id, seat_number, issued_at, consumed_at, consumed_by
       	 FROM tickets WHERE token = $1`,
		token,
	).Scan(&t.Token, &t.BookingID, &t.TripID, &t.SeatNumber, &t.IssuedAt, &t.ConsumedAt, &t.ConsumedBy)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &t, nil
}

// ConsumeTicket marks the ticket used. The update is conditional on
// consumed_at still being unset, so of two concurrent scans of the same token
// exactly one succeeds; the other gets ErrTicketUsed.
func (s *Store) ConsumeTicket(
	ctx context.Context,
	token string,
	operatorID int64,
	at time.Time,
) error {
	const op = "postgres.Store.ConsumeTicket"

	db := s.handle()

	tag, err := db.Exec(ctx,
		`UPDATE tickets
         SET consumed_at = $2, consumed_by = $3
      	 WHERE token = $1 AND consumed_at IS NULL`,
		token, at, operatorID,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM tickets WHERE token = $1)`, token,
		).Scan(&exists); err != nil {
			return wrapDBErr(op, err)
		}
		if !exists {
			return wrapDBErr(op, repository.ErrNotFound)
		}
		return wrapDBErr(op, repository.ErrTicketUsed)
	}

	return nil
}

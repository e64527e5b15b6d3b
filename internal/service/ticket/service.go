package ticket

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/inzira/inzira-go/internal/domain"
	"github.com/inzira/inzira-go/internal/repository"
)

// tokenPrefix keeps scanned codes recognizable at the gate; everything after
// it is 128 bits from crypto/rand, so tokens cannot be guessed or derived
// from booking ids.
const tokenPrefix = "INZ-"

// Auditor records verification attempts. Recording is best-effort and must
// never fail the scan.
type Auditor interface {
	Record(actorID int64, action, targetType, targetID, details string)
}

type Service struct {
	store   repository.Store
	auditor Auditor
}

func New(store repository.Store, auditor Auditor) *Service {
	return &Service{store: store, auditor: auditor}
}

type VerificationResult struct {
	Token      string    `json:"token"`
	BookingID  uuid.UUID `json:"booking_id"`
	TripID     int64     `json:"trip_id"`
	SeatNumber int       `json:"seat_number"`
	ConsumedAt time.Time `json:"consumed_at"`
}

// NewToken mints a fresh ticket token.
func NewToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return tokenPrefix + hex.EncodeToString(b)
}

// Issue mints and persists the ticket for a booking that has just been
// confirmed. It runs inside the caller's transaction so a booking can never
// commit as confirmed without its ticket.
func (s *Service) Issue(ctx context.Context, tx repository.Tx, b *domain.Booking) (*domain.Ticket, error) {
	const op = "service.ticket.Issue"

	t := &domain.Ticket{
		Token:      NewToken(),
		BookingID:  b.ID,
		TripID:     b.TripID,
		SeatNumber: b.SeatNumber,
		IssuedAt:   time.Now().UTC(),
	}

	if err := tx.InsertTicket(ctx, t); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if err := tx.SetBookingTicket(ctx, b.ID, t.Token); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	b.TicketToken = t.Token

	return t, nil
}

// VerifyAndConsume consumes the ticket exactly once and moves its booking to
// boarded. Two gates scanning the same token concurrently get exactly one
// success and one ErrTicketAlreadyUsed. Every attempt, including failures, is
// audited.
func (s *Service) VerifyAndConsume(
	ctx context.Context,
	token string,
	gateOperatorID int64,
) (*VerificationResult, error) {
	const op = "service.ticket.VerifyAndConsume"

	res, err := s.verifyOnce(ctx, token, gateOperatorID)
	for attempts := 1; attempts < 3 && errors.Is(err, repository.ErrSerialization); attempts++ {
		res, err = s.verifyOnce(ctx, token, gateOperatorID)
	}

	s.audit(gateOperatorID, token, err)

	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return res, nil
}

func (s *Service) verifyOnce(
	ctx context.Context,
	token string,
	gateOperatorID int64,
) (*VerificationResult, error) {
	var res *VerificationResult

	err := s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		t, err := tx.TicketByToken(ctx, token)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrTicketNotFound
			}
			return err
		}

		// Lock the booking first: scans racing with cancellation serialize
		// here, and the status check below sees the committed state.
		b, err := tx.BookingByIDForUpdate(ctx, t.BookingID)
		if err != nil {
			return err
		}

		if t.ConsumedAt != nil {
			return ErrTicketAlreadyUsed
		}

		if b.Status != domain.BookingConfirmed {
			return ErrTicketInvalidState
		}

		now := time.Now().UTC()
		if err := tx.ConsumeTicket(ctx, token, gateOperatorID, now); err != nil {
			if errors.Is(err, repository.ErrTicketUsed) {
				return ErrTicketAlreadyUsed
			}
			return err
		}

		if err := tx.UpdateBookingStatus(ctx, b.ID, domain.BookingConfirmed, domain.BookingBoarded); err != nil {
			return err
		}

		res = &VerificationResult{
			Token:      token,
			BookingID:  b.ID,
			TripID:     b.TripID,
			SeatNumber: b.SeatNumber,
			ConsumedAt: now,
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

func (s *Service) audit(gateOperatorID int64, token string, verifyErr error) {
	if s.auditor == nil {
		return
	}

	outcome := "ok"
	if verifyErr != nil {
		outcome = verifyErr.Error()
	}

	s.auditor.Record(gateOperatorID, "ticket.verify", "ticket", token, outcome)
}

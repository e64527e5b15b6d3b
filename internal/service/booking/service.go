package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/inzira/inzira-go/internal/domain"
	"github.com/inzira/inzira-go/internal/repository"
	redisrepo "github.com/inzira/inzira-go/internal/repository/redis"
	"github.com/inzira/inzira-go/internal/service/wallet"
	"github.com/inzira/inzira-go/internal/uow"
)

// Auditor records state-changing operations. Best-effort.
type Auditor interface {
	Record(actorID int64, action, targetType, targetID, details string)
}

// Tickets issues boarding tickets inside the confirm transaction.
type Tickets interface {
	Issue(ctx context.Context, tx repository.Tx, b *domain.Booking) (*domain.Ticket, error)
}

type Config struct {
	// PendingTTL is how long a seat stays held behind an unsettled booking
	// before the claim is reclaimed.
	PendingTTL time.Duration
}

type Service struct {
	store   repository.Store
	wallet  *wallet.Service
	tickets Tickets
	auditor Auditor
	cache   *redisrepo.Cache
	pubsub  *redisrepo.TripsPubSub
	limiter *redisrepo.SlidingWindowLimiter
	uow     *uow.UoW
	cfg     Config
}

func New(
	store repository.Store,
	walletSvc *wallet.Service,
	tickets Tickets,
	auditor Auditor,
	cache *redisrepo.Cache,
	pubsub *redisrepo.TripsPubSub,
	limiter *redisrepo.SlidingWindowLimiter,
	cfg Config,
) *Service {
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = 10 * time.Minute
	}

	return &Service{
		store:   store,
		wallet:  walletSvc,
		tickets: tickets,
		auditor: auditor,
		cache:   cache,
		pubsub:  pubsub,
		limiter: limiter,
		uow:     uow.NewUoW(store),
		cfg:     cfg,
	}
}

// Reserve claims a seat for the rider and creates a pending booking holding
// it for cfg.PendingTTL. The claim is a single conditional insert, so two
// concurrent reservations of the same seat resolve to one winner; the loser
// gets ErrSeatTaken with nothing written.
func (s *Service) Reserve(
	ctx context.Context,
	userID, tripID int64,
	seatNumber int,
	method domain.PaymentMethod,
	rlKey string,
) (*domain.Booking, error) {
	const op = "service.booking.Reserve"

	switch method {
	case domain.PayWallet, domain.PayMoMo, domain.PayAirtel:
	default:
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidPaymentMethod)
	}

	if s.limiter != nil && rlKey != "" {
		ok, _, retry, err := s.limiter.Allow(ctx, rlKey)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		if !ok {
			return nil, fmt.Errorf("%s:%w", op, RateLimitedError{RetryAfter: retry})
		}
	}

	trip, err := s.store.TripByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrTripNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	now := time.Now().UTC()

	if !trip.Departure.After(now) {
		return nil, fmt.Errorf("%s:%w", op, ErrTripDeparted)
	}

	if seatNumber < 1 || seatNumber > trip.SeatCount {
		return nil, fmt.Errorf("%s:%w", op, ErrSeatOutOfRange)
	}

	b := &domain.Booking{
		ID:         uuid.New(),
		UserID:     userID,
		TripID:     tripID,
		SeatNumber: seatNumber,
		Price:      trip.Price,
		Method:     method,
		Status:     domain.BookingPending,
		CreatedAt:  now,
	}

	err = s.doRetried(ctx, func(
		ctx context.Context,
		tx repository.Tx,
		after func(uow.AfterCommit),
	) error {
		if err := tx.ClaimSeat(ctx, tripID, seatNumber, b.ID, now.Add(s.cfg.PendingTTL)); err != nil {
			if errors.Is(err, repository.ErrSeatTaken) {
				return fmt.Errorf("%s:%w", op, ErrSeatTaken)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		if err := tx.CreateBooking(ctx, b); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		after(func(ctx context.Context) {
			s.tripChanged(ctx, tripID)
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(userID, "booking.reserve", b.ID, fmt.Sprintf("trip=%d seat=%d", tripID, seatNumber))

	return b, nil
}

// Confirm settles a pending booking: the wallet payment (when wallet-funded),
// the confirmed status and the minted ticket commit in one transaction, so no
// observer ever sees a confirmed booking without its payment and ticket. If
// the payment fails nothing is written; the booking stays pending and its
// claim lapses into the expiry sweep.
func (s *Service) Confirm(ctx context.Context, bookingID uuid.UUID, actorID int64) (*domain.Booking, error) {
	const op = "service.booking.Confirm"

	var b *domain.Booking

	err := s.doRetried(ctx, func(
		ctx context.Context,
		tx repository.Tx,
		after func(uow.AfterCommit),
	) error {
		var err error
		b, err = tx.BookingByIDForUpdate(ctx, bookingID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrBookingNotFound)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		if b.Status != domain.BookingPending {
			return fmt.Errorf("%s:%w", op, ErrBookingNotPending)
		}

		if err := tx.ConfirmClaim(ctx, b.ID); err != nil {
			if errors.Is(err, repository.ErrClaimExpired) {
				return fmt.Errorf("%s:%w", op, ErrClaimExpired)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		if b.Method == domain.PayWallet {
			if _, err := s.wallet.Pay(ctx, tx, b.UserID, b.Price, b.ID); err != nil {
				return fmt.Errorf("%s:%w", op, err)
			}
		}

		if err := tx.UpdateBookingStatus(ctx, b.ID, domain.BookingPending, domain.BookingConfirmed); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}
		b.Status = domain.BookingConfirmed

		if _, err := s.tickets.Issue(ctx, tx, b); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		after(func(ctx context.Context) {
			s.tripChanged(ctx, b.TripID)
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(actorID, "booking.confirm", b.ID, string(b.Method))

	return b, nil
}

// Cancel releases the seat and, when a wallet payment had settled, issues the
// compensating refund in the same transaction. Cancelling twice is an error,
// never a second refund.
func (s *Service) Cancel(ctx context.Context, bookingID uuid.UUID, actorID int64) (*domain.Booking, error) {
	const op = "service.booking.Cancel"

	var b *domain.Booking

	err := s.doRetried(ctx, func(
		ctx context.Context,
		tx repository.Tx,
		after func(uow.AfterCommit),
	) error {
		var err error
		b, err = tx.BookingByIDForUpdate(ctx, bookingID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrBookingNotFound)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		switch b.Status {
		case domain.BookingCancelled:
			return fmt.Errorf("%s:%w", op, ErrAlreadyCancelled)
		case domain.BookingBoarded:
			return fmt.Errorf("%s:%w", op, ErrNotCancellable)
		}

		if b.Status == domain.BookingConfirmed && b.Method == domain.PayWallet {
			if _, err := s.wallet.Refund(ctx, tx, b.UserID, b.Price, b.ID); err != nil {
				return fmt.Errorf("%s:%w", op, err)
			}
		}

		if err := tx.UpdateBookingStatus(ctx, b.ID, b.Status, domain.BookingCancelled); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}
		b.Status = domain.BookingCancelled

		if err := tx.ReleaseClaim(ctx, b.ID); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		after(func(ctx context.Context) {
			s.tripChanged(ctx, b.TripID)
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(actorID, "booking.cancel", b.ID, "")

	return b, nil
}

// ExpirePending reclaims seats held by pending bookings whose lease has
// lapsed. Invoked periodically by the app; the claim path also reclaims
// lazily, so a dead sweeper only delays reuse, never blocks it.
func (s *Service) ExpirePending(ctx context.Context) (int64, error) {
	const op = "service.booking.ExpirePending"

	released, err := s.store.ExpirePending(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	return released, nil
}

// doRetried runs fn through the unit of work, retrying a bounded number of
// times when the store aborts the transaction with a serialization failure.
// Under Serializable isolation the loser of a seat race can surface as 40001
// rather than a key conflict; the retry re-runs against the committed state
// and resolves to the real outcome (ErrSeatTaken, ErrBookingNotPending, ...).
func (s *Service) doRetried(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Tx, after func(uow.AfterCommit)) error,
) error {
	err := s.uow.Do(ctx, fn)
	for attempts := 1; attempts < 3 && errors.Is(err, repository.ErrSerialization); attempts++ {
		err = s.uow.Do(ctx, fn)
	}
	return err
}

func (s *Service) tripChanged(ctx context.Context, tripID int64) {
	if s.cache != nil {
		_ = s.cache.InvalidateTrip(ctx, tripID)
	}
	if s.pubsub != nil {
		_ = s.pubsub.PublishTripChanged(ctx, tripID)
	}
}

func (s *Service) record(actorID int64, action string, bookingID uuid.UUID, details string) {
	if s.auditor != nil {
		s.auditor.Record(actorID, action, "booking", bookingID.String(), details)
	}
}

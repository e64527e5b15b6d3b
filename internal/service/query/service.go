package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/inzira/inzira-go/internal/domain"
	"github.com/inzira/inzira-go/internal/repository"
	redisrepo "github.com/inzira/inzira-go/internal/repository/redis"
)

type Config struct {
	TripTTL    time.Duration
	SeatMapTTL time.Duration
}

// Service serves the read side of the portal. Hot reads go through the Redis
// cache; everything is loaded from the ledger store, never from in-process
// state, so reads always reflect committed claims.
type Service struct {
	store repository.Store
	cache *redisrepo.Cache
	cfg   Config
}

func New(store repository.Store, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.TripTTL <= 0 {
		cfg.TripTTL = time.Minute
	}

	if cfg.SeatMapTTL <= 0 {
		cfg.SeatMapTTL = 15 * time.Second
	}

	return &Service{store: store, cache: cache, cfg: cfg}
}

func (s *Service) GetTrip(ctx context.Context, tripID int64) (*domain.Trip, error) {
	const op = "service.query.GetTrip"

	load := func(ctx context.Context) (*domain.Trip, error) {
		return s.store.TripByID(ctx, tripID)
	}

	var trip *domain.Trip
	var err error
	if s.cache != nil {
		trip, err = redisrepo.GetOrSetJSON(ctx, s.cache, redisrepo.KeyTripSummary(tripID), s.cfg.TripTTL, load)
	} else {
		trip, err = load(ctx)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrTripNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return trip, nil
}

func (s *Service) ListTrips(
	ctx context.Context,
	origin, destination string,
	limit, offset int,
) ([]domain.Trip, error) {
	const op = "service.query.ListTrips"

	trips, err := s.store.ListTrips(ctx, origin, destination, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return trips, nil
}

// SeatMap reports every seat of the trip with its claim status. Seats behind
// a lapsed pending claim read as free even before the sweep reclaims them.
func (s *Service) SeatMap(ctx context.Context, tripID int64) ([]domain.SeatWithStatus, error) {
	const op = "service.query.SeatMap"

	load := func(ctx context.Context) ([]domain.SeatWithStatus, error) {
		return s.loadSeatMap(ctx, tripID)
	}

	var seats []domain.SeatWithStatus
	var err error
	if s.cache != nil {
		seats, err = redisrepo.GetOrSetJSON(ctx, s.cache, redisrepo.KeyTripSeatMap(tripID), s.cfg.SeatMapTTL, load)
	} else {
		seats, err = load(ctx)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrTripNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return seats, nil
}

func (s *Service) loadSeatMap(ctx context.Context, tripID int64) ([]domain.SeatWithStatus, error) {
	trip, err := s.store.TripByID(ctx, tripID)
	if err != nil {
		return nil, err
	}

	claims, err := s.store.ListClaims(ctx, tripID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	status := make(map[int]domain.SeatStatus, len(claims))
	for _, c := range claims {
		switch {
		case c.ExpiresAt == nil:
			status[c.SeatNumber] = domain.SeatSold
		case c.ExpiresAt.After(now):
			status[c.SeatNumber] = domain.SeatHeld
		}
	}

	seats := make([]domain.SeatWithStatus, 0, trip.SeatCount)
	for n := 1; n <= trip.SeatCount; n++ {
		st, ok := status[n]
		if !ok {
			st = domain.SeatFree
		}
		seats = append(seats, domain.SeatWithStatus{SeatNumber: n, Status: st})
	}

	return seats, nil
}

func (s *Service) Availability(ctx context.Context, tripID int64) (*domain.TripAvailability, error) {
	const op = "service.query.Availability"

	load := func(ctx context.Context) (*domain.TripAvailability, error) {
		seats, err := s.loadSeatMap(ctx, tripID)
		if err != nil {
			return nil, err
		}

		counts := &domain.TripAvailability{Total: len(seats)}
		for _, seat := range seats {
			switch seat.Status {
			case domain.SeatHeld:
				counts.Held++
			case domain.SeatSold:
				counts.Sold++
			default:
				counts.Free++
			}
		}

		return counts, nil
	}

	var counts *domain.TripAvailability
	var err error
	if s.cache != nil {
		counts, err = redisrepo.GetOrSetJSON(ctx, s.cache, redisrepo.KeyTripAvailability(tripID), s.cfg.SeatMapTTL, load)
	} else {
		counts, err = load(ctx)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrTripNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return counts, nil
}

func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "service.query.GetBooking"

	b, err := s.store.BookingByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrBookingNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return b, nil
}

func (s *Service) ListUserBookings(ctx context.Context, userID int64) ([]domain.Booking, error) {
	const op = "service.query.ListUserBookings"

	bookings, err := s.store.ListUserBookings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return bookings, nil
}

func (s *Service) AuditPage(ctx context.Context, limit, offset int) ([]domain.AuditEntry, error) {
	const op = "service.query.AuditPage"

	entries, err := s.store.ListAudit(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return entries, nil
}

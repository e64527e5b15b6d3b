package admin

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/inzira/inzira-go/internal/domain"
	"github.com/inzira/inzira-go/internal/repository"
)

// Auditor records state-changing operations. Best-effort.
type Auditor interface {
	Record(actorID int64, action, targetType, targetID, details string)
}

// Service loads trip reference data published by the scheduling system.
// Trips are immutable once created; there is no update or delete.
type Service struct {
	store   repository.Store
	auditor Auditor
}

func New(store repository.Store, auditor Auditor) *Service {
	return &Service{store: store, auditor: auditor}
}

func (s *Service) CreateTrip(ctx context.Context, actorID int64, t *domain.Trip) (int64, error) {
	const op = "service.admin.CreateTrip"

	if t.Origin == "" || t.Destination == "" || t.SeatCount <= 0 || t.Price <= 0 {
		return 0, fmt.Errorf("%s:%w", op, ErrInvalidTrip)
	}

	if !t.Arrival.IsZero() && t.Arrival.Before(t.Departure) {
		return 0, fmt.Errorf("%s:%w", op, ErrInvalidTrip)
	}

	if err := s.store.CreateTrip(ctx, t); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return 0, fmt.Errorf("%s:%w", op, ErrTripConflict)
		}
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	if s.auditor != nil {
		s.auditor.Record(actorID, "trip.create", "trip", strconv.FormatInt(t.ID, 10),
			fmt.Sprintf("%s-%s seats=%d", t.Origin, t.Destination, t.SeatCount))
	}

	return t.ID, nil
}

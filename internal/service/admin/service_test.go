package admin_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inzira/inzira-go/internal/domain"
	"github.com/inzira/inzira-go/internal/repository/repositorytest"
	"github.com/inzira/inzira-go/internal/service/admin"
)

func TestCreateTrip(t *testing.T) {
	ctx := context.Background()
	store := repositorytest.New()
	svc := admin.New(store, nil)

	trip := &domain.Trip{
		BusID:       "RAD-040",
		Origin:      "Kigali",
		Destination: "Nyagatare",
		Departure:   time.Now().UTC().Add(6 * time.Hour),
		Arrival:     time.Now().UTC().Add(9 * time.Hour),
		Price:       6000,
		SeatCount:   30,
	}

	id, err := svc.CreateTrip(ctx, 2, trip)
	require.NoError(t, err)
	assert.NotZero(t, id)

	got, err := store.TripByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Nyagatare", got.Destination)
}

func TestCreateTripValidation(t *testing.T) {
	ctx := context.Background()
	svc := admin.New(repositorytest.New(), nil)

	base := domain.Trip{
		BusID:       "RAD-041",
		Origin:      "Kigali",
		Destination: "Huye",
		Departure:   time.Now().UTC().Add(time.Hour),
		Arrival:     time.Now().UTC().Add(3 * time.Hour),
		Price:       4000,
		SeatCount:   30,
	}

	noOrigin := base
	noOrigin.Origin = ""
	_, err := svc.CreateTrip(ctx, 2, &noOrigin)
	assert.ErrorIs(t, err, admin.ErrInvalidTrip)

	noSeats := base
	noSeats.SeatCount = 0
	_, err = svc.CreateTrip(ctx, 2, &noSeats)
	assert.ErrorIs(t, err, admin.ErrInvalidTrip)

	freeTrip := base
	freeTrip.Price = 0
	_, err = svc.CreateTrip(ctx, 2, &freeTrip)
	assert.ErrorIs(t, err, admin.ErrInvalidTrip)

	backwards := base
	backwards.Arrival = backwards.Departure.Add(-time.Hour)
	_, err = svc.CreateTrip(ctx, 2, &backwards)
	assert.ErrorIs(t, err, admin.ErrInvalidTrip)
}

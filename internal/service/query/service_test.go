package query_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inzira/inzira-go/internal/domain"
	"github.com/inzira/inzira-go/internal/repository/repositorytest"
	"github.com/inzira/inzira-go/internal/service/query"
)

func seedTrip(t *testing.T, store *repositorytest.Fake, seats int) int64 {
	t.Helper()

	trip := &domain.Trip{
		BusID:       "RAD-010",
		Origin:      "Kigali",
		Destination: "Rubavu",
		Departure:   time.Now().UTC().Add(3 * time.Hour),
		Arrival:     time.Now().UTC().Add(6 * time.Hour),
		Price:       7000,
		SeatCount:   seats,
	}
	require.NoError(t, store.CreateTrip(context.Background(), trip))

	return trip.ID
}

func claim(t *testing.T, store *repositorytest.Fake, tripID int64, seat int, expiresAt time.Time) {
	t.Helper()
	require.NoError(t, store.ClaimSeat(context.Background(), tripID, seat, uuid.New(), expiresAt))
}

func TestGetTrip(t *testing.T) {
	ctx := context.Background()
	store := repositorytest.New()
	svc := query.New(store, nil, query.Config{})

	tripID := seedTrip(t, store, 10)

	trip, err := svc.GetTrip(ctx, tripID)
	require.NoError(t, err)
	assert.Equal(t, "Rubavu", trip.Destination)

	_, err = svc.GetTrip(ctx, tripID+50)
	assert.ErrorIs(t, err, query.ErrTripNotFound)
}

func TestSeatMap(t *testing.T) {
	ctx := context.Background()
	store := repositorytest.New()
	svc := query.New(store, nil, query.Config{})

	tripID := seedTrip(t, store, 4)
	now := time.Now().UTC()

	// seat 1: live hold, seat 2: sold, seat 3: lapsed hold, seat 4: free.
	claim(t, store, tripID, 1, now.Add(10*time.Minute))
	claim(t, store, tripID, 2, now.Add(10*time.Minute))
	soldClaims, err := store.ListClaims(ctx, tripID)
	require.NoError(t, err)
	for _, c := range soldClaims {
		if c.SeatNumber == 2 {
			require.NoError(t, store.ConfirmClaim(ctx, c.BookingID))
		}
	}
	claim(t, store, tripID, 3, now.Add(-time.Minute))

	seats, err := svc.SeatMap(ctx, tripID)
	require.NoError(t, err)
	require.Len(t, seats, 4)

	assert.Equal(t, domain.SeatHeld, seats[0].Status)
	assert.Equal(t, domain.SeatSold, seats[1].Status)
	assert.Equal(t, domain.SeatFree, seats[2].Status)
	assert.Equal(t, domain.SeatFree, seats[3].Status)
}

func TestAvailability(t *testing.T) {
	ctx := context.Background()
	store := repositorytest.New()
	svc := query.New(store, nil, query.Config{})

	tripID := seedTrip(t, store, 5)
	now := time.Now().UTC()

	claim(t, store, tripID, 1, now.Add(10*time.Minute))
	claim(t, store, tripID, 2, now.Add(10*time.Minute))
	claims, err := store.ListClaims(ctx, tripID)
	require.NoError(t, err)
	require.NoError(t, store.ConfirmClaim(ctx, claims[0].BookingID))

	counts, err := svc.Availability(ctx, tripID)
	require.NoError(t, err)
	assert.Equal(t, &domain.TripAvailability{Free: 3, Held: 1, Sold: 1, Total: 5}, counts)
}

func TestListTripsFilters(t *testing.T) {
	ctx := context.Background()
	store := repositorytest.New()
	svc := query.New(store, nil, query.Config{})

	seedTrip(t, store, 10)
	other := &domain.Trip{
		BusID:       "RAD-011",
		Origin:      "Kigali",
		Destination: "Huye",
		Departure:   time.Now().UTC().Add(time.Hour),
		Arrival:     time.Now().UTC().Add(3 * time.Hour),
		Price:       4000,
		SeatCount:   20,
	}
	require.NoError(t, store.CreateTrip(ctx, other))

	all, err := svc.ListTrips(ctx, "Kigali", "", 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	huye, err := svc.ListTrips(ctx, "", "Huye", 10, 0)
	require.NoError(t, err)
	require.Len(t, huye, 1)
	assert.Equal(t, "Huye", huye[0].Destination)
}

func TestGetBooking(t *testing.T) {
	ctx := context.Background()
	store := repositorytest.New()
	svc := query.New(store, nil, query.Config{})

	b := &domain.Booking{
		ID:         uuid.New(),
		UserID:     1,
		TripID:     1,
		SeatNumber: 2,
		Status:     domain.BookingPending,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.CreateBooking(ctx, b))

	got, err := svc.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	_, err = svc.GetBooking(ctx, uuid.New())
	assert.ErrorIs(t, err, query.ErrBookingNotFound)
}

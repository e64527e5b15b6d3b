package postgres

import (
	"context"

	"github.com/inzira/inzira-go/internal/domain"
)

func (s *Store) TripByID(ctx context.Context, tripID int64) (*domain.Trip, error) {
	const op = "postgres.Store.TripByID"

	db := s.handle()

	var t domain.Trip
	err := db.QueryRow(ctx,
		`SELECT id, bus_id, origin, destination, departure_at, arrival_at, price, seat_count
       	 FROM trips WHERE id = $1`,
		tripID,
	).Scan(&t.ID, &t.BusID, &t.Origin, &t.Destination, &t.Departure, &t.Arrival, &t.Price, &t.SeatCount)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &t, nil
}

func (s *Store) ListTrips(
	ctx context.Context,
	origin, destination string,
	limit, offset int,
) ([]domain.Trip, error) {
	const op = "postgres.Store.ListTrips"

	db := s.handle()

	rows, err := db.Query(ctx,
		`SELECT id, bus_id, origin, destination, departure_at, arrival_at, price, seat_count
       	 FROM trips
      	 WHERE ($1 = '' OR origin = $1)
        	AND ($2 = '' OR destination = $2)
      	 ORDER BY departure_at
      	 LIMIT $3 OFFSET $4`,
		origin, destination, limit, offset,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var trips []domain.Trip
	for rows.Next() {
		var t domain.Trip
		if err := rows.Scan(
			&t.ID, &t.BusID, &t.Origin, &t.Destination,
			&t.Departure, &t.Arrival, &t.Price, &t.SeatCount,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return trips, nil
}

// CreateTrip loads reference data published by the scheduling system. The
// core never updates or deletes trips.
func (s *Store) CreateTrip(ctx context.Context, t *domain.Trip) error {
	const op = "postgres.Store.CreateTrip"

	db := s.handle()

	err := db.QueryRow(ctx,
		`INSERT INTO trips(bus_id, origin, destination, departure_at, arrival_at, price, seat_count)
       	 VALUES ($1, $2, $3, $4, $5, $6, $7)
     	 RETURNING id`,
		t.BusID, t.Origin, t.Destination, t.Departure, t.Arrival, t.Price, t.SeatCount,
	).Scan(&t.ID)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

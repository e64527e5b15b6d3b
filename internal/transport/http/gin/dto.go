package httpgin

import (
	"time"
)

type ReserveSeatRequest struct {
	SeatNumber    int    `json:"seat_number" binding:"required,gt=0"`
	PaymentMethod string `json:"payment_method" binding:"required,oneof=wallet momo airtel"`
}

type ReserveSeatResponse struct {
	BookingID  string `json:"booking_id"`
	TripID     int64  `json:"trip_id"`
	SeatNumber int    `json:"seat_number"`
	Price      int64  `json:"price"`
	Status     string `json:"status"`
}

type WalletAmountRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

type ScanTicketRequest struct {
	Token string `json:"token" binding:"required"`
}

type CreateTripRequest struct {
	BusID       string `json:"bus_id" binding:"required"`
	Origin      string `json:"origin" binding:"required"`
	Destination string `json:"destination" binding:"required"`
	DepartureAt string `json:"departure_at" binding:"required"`
	ArrivalAt   string `json:"arrival_at" binding:"required"`
	Price       int64  `json:"price" binding:"required,gt=0"`
	SeatCount   int    `json:"seat_count" binding:"required,gt=0"`
}

type CreateTripResponse struct {
	TripID int64 `json:"trip_id"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

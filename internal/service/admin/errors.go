package admin

import "errors"

var (
	ErrInvalidTrip  = errors.New("invalid trip definition")
	ErrTripConflict = errors.New("trip already exists")
)

package ticket

import "errors"

var (
	ErrTicketNotFound     = errors.New("ticket not found")
	ErrTicketAlreadyUsed  = errors.New("ticket already used")
	ErrTicketInvalidState = errors.New("ticket booking is not boardable")
)

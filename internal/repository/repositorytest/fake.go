// Package repositorytest provides an in-memory repository.Store for service
// and handler tests. It mirrors the conflict semantics of the Postgres store:
// one claim per (trip, seat), per-account wallet serialization, single-use
// ticket consumption. A mutex serializes transactions, and a failed InTx rolls
// the state back to its snapshot.
package repositorytest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inzira/inzira-go/internal/domain"
	"github.com/inzira/inzira-go/internal/repository"
)

type claimKey struct {
	tripID int64
	seat   int
}

type state struct {
	nextTripID  int64
	trips       map[int64]domain.Trip
	claims      map[claimKey]domain.SeatClaim
	bookings    map[uuid.UUID]domain.Booking
	accounts    map[int64]domain.WalletAccount
	walletTxs   []domain.WalletTransaction
	tickets     map[string]domain.Ticket
	nextAuditID int64
	audit       []domain.AuditEntry
}

func newState() *state {
	return &state{
		nextTripID:  1,
		trips:       make(map[int64]domain.Trip),
		claims:      make(map[claimKey]domain.SeatClaim),
		bookings:    make(map[uuid.UUID]domain.Booking),
		accounts:    make(map[int64]domain.WalletAccount),
		tickets:     make(map[string]domain.Ticket),
		nextAuditID: 1,
	}
}

func (s *state) clone() *state {
	c := &state{
		nextTripID:  s.nextTripID,
		trips:       make(map[int64]domain.Trip, len(s.trips)),
		claims:      make(map[claimKey]domain.SeatClaim, len(s.claims)),
		bookings:    make(map[uuid.UUID]domain.Booking, len(s.bookings)),
		accounts:    make(map[int64]domain.WalletAccount, len(s.accounts)),
		walletTxs:   append([]domain.WalletTransaction(nil), s.walletTxs...),
		tickets:     make(map[string]domain.Ticket, len(s.tickets)),
		nextAuditID: s.nextAuditID,
		audit:       append([]domain.AuditEntry(nil), s.audit...),
	}
	for k, v := range s.trips {
		c.trips[k] = v
	}
	for k, v := range s.claims {
		c.claims[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.tickets {
		c.tickets[k] = v
	}
	return c
}

// Fake is an in-memory repository.Store.
type Fake struct {
	mu sync.Mutex
	s  *state
}

func New() *Fake {
	return &Fake{s: newState()}
}

var _ repository.Store = (*Fake)(nil)

// tx is the unlocked view handed to InTx callbacks. The Fake's mutex is held
// for the whole transaction.
type tx struct {
	s *state
}

var _ repository.Tx = (*tx)(nil)

func (f *Fake) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	snapshot := f.s.clone()
	if err := fn(ctx, &tx{s: f.s}); err != nil {
		f.s = snapshot
		return err
	}
	return nil
}

// --- Trips ---

func (f *Fake) TripByID(ctx context.Context, tripID int64) (*domain.Trip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&tx{s: f.s}).TripByID(ctx, tripID)
}

func (t *tx) TripByID(_ context.Context, tripID int64) (*domain.Trip, error) {
	trip, ok := t.s.trips[tripID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &trip, nil
}

func (f *Fake) ListTrips(ctx context.Context, origin, destination string, limit, offset int) ([]domain.Trip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&tx{s: f.s}).ListTrips(ctx, origin, destination, limit, offset)
}

func (t *tx) ListTrips(_ context.Context, origin, destination string, limit, offset int) ([]domain.Trip, error) {
	trips := make([]domain.Trip, 0, len(t.s.trips))
	for _, trip := range t.s.trips {
		if origin != "" && trip.Origin != origin {
			continue
		}
		if destination != "" && trip.Destination != destination {
			continue
		}
		trips = append(trips, trip)
	}
	sort.Slice(trips, func(i, j int) bool { return trips[i].ID < trips[j].ID })
	return page(trips, limit, offset), nil
}

func (f *Fake) CreateTrip(ctx context.Context, trip *domain.Trip) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&tx{s: f.s}).CreateTrip(ctx, trip)
}

func (t *tx) CreateTrip(_ context.Context, trip *domain.Trip) error {
	trip.ID = t.s.nextTripID
	t.s.nextTripID++
	t.s.trips[trip.ID] = *trip
	return nil
}

// --- Seat claims and bookings ---

func (f *Fake) ClaimSeat(ctx context.Context, tripID int64, seatNumber int, bookingID uuid.UUID, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&tx{s: f.s}).ClaimSeat(ctx, tripID, seatNumber, bookingID, expiresAt)
}

func (t *tx) ClaimSeat(_ context.Context, tripID int64, seatNumber int, bookingID uuid.UUID, expiresAt time.Time) error {
	key := claimKey{tripID: tripID, seat: seatNumber}
	t.s.reapClaim(key, time.Now().UTC())

	if _, taken := t.s.claims[key]; taken {
		return repository.ErrSeatTaken
	}

	exp := expiresAt
	t.s.claims[key] = domain.SeatClaim{
		TripID:     tripID,
		SeatNumber: seatNumber,
		BookingID:  bookingID,
		ExpiresAt:  &exp,
	}
	return nil
}

func (f *Fake) ConfirmClaim(ctx context.Context, bookingID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&tx{s: f.s}).ConfirmClaim(ctx, bookingID)
}

func (t *tx) ConfirmClaim(_ context.Context, bookingID uuid.UUID) error {
	now := time.Now().UTC()
	for key, c := range t.s.claims {
		if c.BookingID != bookingID {
			continue
		}
		if c.ExpiresAt == nil || !c.ExpiresAt.After(now) {
			return repository.ErrClaimExpired
		}
		c.ExpiresAt = nil
		t.s.claims[key] = c
		return nil
	}
	return repository.ErrClaimExpired
}

func (f *Fake) ReleaseClaim(ctx context.Context, bookingID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&tx{s: f.s}).ReleaseClaim(ctx, bookingID)
}

func (t *tx) ReleaseClaim(_ context.Context, bookingID uuid.UUID) error {
	for key, c := range t.s.claims {
		if c.BookingID == bookingID {
			delete(t.s.claims, key)
			return nil
		}
	}
	return nil
}

func (f *Fake) ListClaims(ctx context.Context, tripID int64) ([]domain.SeatClaim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&tx{s: f.s}).ListClaims(ctx, tripID)
}

func (t *tx) ListClaims(_ context.Context, tripID int64) ([]domain.SeatClaim, error) {
	var claims []domain.SeatClaim
	for _, c := range t.s.claims {
		if c.TripID == tripID {
			claims = append(claims, c)
		}
	}
	sort.Slice(claims, func(i, j int) bool { return claims[i].SeatNumber < claims[j].SeatNumber })
	return claims, nil
}

func (f *Fake) CreateBooking(ctx context.Context, b *domain.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&tx{s: f.s}).CreateBooking(ctx, b)
}

func (t *tx) CreateBooking(_ context.Context, b *domain.Booking) error {
	if _, exists := t.s.bookings[b.ID]; exists {
		return repository.ErrConflict
	}
	t.s.bookings[b.ID] = *b
	return nil
}

func (f *Fake) BookingByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&tx{s: f.s}).BookingByID(ctx, id)
}

func (t *tx) BookingByID(_ context.Context, id uuid.UUID) (*domain.Booking, error) {
	b, ok := t.s.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (f *Fake) BookingByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	return f.BookingByID(ctx, id)
}

func (t *tx) BookingByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	return t.BookingByID(ctx, id)
}

func (f *Fake) UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to domain.BookingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&tx{s: f.s}).UpdateBookingStatus(ctx, id, from, to)
}

func (t *tx) UpdateBookingStatus(_ context.Context, id uuid.UUID, from, to domain.BookingStatus) error {
	b, ok := t.s.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	if b.Status != from {
		return repository.ErrWrongStatus
	}
	b.Status = to
	t.s.bookings[id] = b
	return nil
}

func (f *Fake) SetBookingTicket(ctx context.Context, id uuid.UUID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&tx{s: f.s}).SetBookingTicket(ctx, id, token)
}

func (t *tx) SetBookingTicket(_ context.Context, id uuid.UUID, token string) error {
	b, ok := t.s.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	b.TicketToken = token
	t.s.bookings[id] = b
	return nil
}

func (f *Fake) ListUserBookings(ctx context.Context, userID int64) ([]domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&tx{s: f.s}).ListUserBookings(ctx, userID)
}

func (t *tx) ListUserBookings(_ context.Context, userID int64) ([]domain.Booking, error) {
	var bookings []domain.Booking
	for _, b := range t.s.bookings {
		if b.UserID == userID {
			bookings = append(bookings, b)
		}
	}
	sort.Slice(bookings, func(i, j int) bool {
		return bookings[i].CreatedAt.After(bookings[j].CreatedAt)
	})
	return bookings, nil
}

func (f *Fake) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&tx{s: f.s}).ExpirePending(ctx, now)
}

func (t *tx) ExpirePending(_ context.Context, now time.Time) (int64, error) {
	var released int64
	for key := range t.s.claims {
		if t.s.reapClaim(key, now) {
			released++
		}
	}
	return released, nil
}

// reapClaim removes the claim at key if its lease has lapsed and cancels its
// pending booking. Reports whether a claim was removed.
func (s *state) reapClaim(key claimKey, now time.Time) bool {
	c, ok := s.claims[key]
	if !ok || c.ExpiresAt == nil || c.ExpiresAt.After(now) {
		return false
	}

	delete(s.claims, key)

	if b, ok := s.bookings[c.BookingID]; ok && b.Status == domain.BookingPending {
		b.Status = domain.BookingCancelled
		s.bookings[c.BookingID] = b
	}
	return true
}

// --- Wallet ledger ---

func (f *Fake) WalletAccount(ctx context.Context, userID int64) (*domain.WalletAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&tx{s: f.s}).WalletAccount(ctx, userID)
}

func (t *tx) WalletAccount(_ context.Context, userID int64) (*domain.WalletAccount, error) {
	a, ok := t.s.accounts[userID]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	return &a, nil
}

func (f *Fake) EnsureWalletAccount(ctx context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&tx{s: f.s}).EnsureWalletAccount(ctx, userID)
}

func (t *tx) EnsureWalletAccount(_ context.Context, userID int64) error {
	if _, ok := t.s.accounts[userID]; !ok {
		t.s.accounts[userID] = domain.WalletAccount{UserID: userID}
	}
	return nil
}

func (f *Fake) ApplyWalletTx(ctx context.Context, wt *domain.WalletTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&tx{s: f.s}).ApplyWalletTx(ctx, wt)
}

func (t *tx) ApplyWalletTx(_ context.Context, wt *domain.WalletTransaction) error {
	a, ok := t.s.accounts[wt.UserID]
	if !ok {
		return repository.ErrAccountNotFound
	}

	balance := a.Balance + wt.Delta()
	if balance < 0 {
		return repository.ErrInsufficientFunds
	}

	a.Balance = balance
	t.s.accounts[wt.UserID] = a
	wt.BalanceAfter = balance
	t.s.walletTxs = append(t.s.walletTxs, *wt)
	return nil
}

func (f *Fake) ListWalletTxs(ctx context.Context, userID int64, limit, offset int) ([]domain.WalletTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&tx{s: f.s}).ListWalletTxs(ctx, userID, limit, offset)
}

func (t *tx) ListWalletTxs(_ context.Context, userID int64, limit, offset int) ([]domain.WalletTransaction, error) {
	var txs []domain.WalletTransaction
	for i := len(t.s.walletTxs) - 1; i >= 0; i-- {
		if t.s.walletTxs[i].UserID == userID {
			txs = append(txs, t.s.walletTxs[i])
		}
	}
	return page(txs, limit, offset), nil
}

// --- Tickets ---

func (f *Fake) InsertTicket(ctx context.Context, ticket *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&tx{s: f.s}).InsertTicket(ctx, ticket)
}

func (t *tx) InsertTicket(_ context.Context, ticket *domain.Ticket) error {
	if _, exists := t.s.tickets[ticket.Token]; exists {
		return repository.ErrConflict
	}
	t.s.tickets[ticket.Token] = *ticket
	return nil
}

func (f *Fake) TicketByToken(ctx context.Context, token string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&tx{s: f.s}).TicketByToken(ctx, token)
}

func (t *tx) TicketByToken(_ context.Context, token string) (*domain.Ticket, error) {
	ticket, ok := t.s.tickets[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &ticket, nil
}

func (f *Fake) ConsumeTicket(ctx context.Context, token string, operatorID int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&tx{s: f.s}).ConsumeTicket(ctx, token, operatorID, at)
}

func (t *tx) ConsumeTicket(_ context.Context, token string, operatorID int64, at time.Time) error {
	ticket, ok := t.s.tickets[token]
	if !ok {
		return repository.ErrNotFound
	}
	if ticket.ConsumedAt != nil {
		return repository.ErrTicketUsed
	}
	ticket.ConsumedAt = &at
	ticket.ConsumedBy = &operatorID
	t.s.tickets[token] = ticket
	return nil
}

// --- Audit log ---

func (f *Fake) AppendAudit(ctx context.Context, e *domain.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&tx{s: f.s}).AppendAudit(ctx, e)
}

func (t *tx) AppendAudit(_ context.Context, e *domain.AuditEntry) error {
	e.ID = t.s.nextAuditID
	t.s.nextAuditID++
	t.s.audit = append(t.s.audit, *e)
	return nil
}

func (f *Fake) ListAudit(ctx context.Context, limit, offset int) ([]domain.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&tx{s: f.s}).ListAudit(ctx, limit, offset)
}

func (t *tx) ListAudit(_ context.Context, limit, offset int) ([]domain.AuditEntry, error) {
	entries := make([]domain.AuditEntry, 0, len(t.s.audit))
	for i := len(t.s.audit) - 1; i >= 0; i-- {
		entries = append(entries, t.s.audit[i])
	}
	return page(entries, limit, offset), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

package booking_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inzira/inzira-go/internal/domain"
	"github.com/inzira/inzira-go/internal/repository"
	"github.com/inzira/inzira-go/internal/repository/repositorytest"
	"github.com/inzira/inzira-go/internal/service/booking"
	"github.com/inzira/inzira-go/internal/service/ticket"
	"github.com/inzira/inzira-go/internal/service/wallet"
)

func newTestService(t *testing.T, cfg booking.Config) (*booking.Service, *wallet.Service, *repositorytest.Fake) {
	t.Helper()

	store := repositorytest.New()
	walletSvc := wallet.New(store, wallet.Config{})
	ticketSvc := ticket.New(store, nil)

	return booking.New(store, walletSvc, ticketSvc, nil, nil, nil, nil, cfg), walletSvc, store
}

func seedTrip(t *testing.T, store *repositorytest.Fake, seats int, price int64) int64 {
	t.Helper()

	trip := &domain.Trip{
		BusID:       "RAD-001",
		Origin:      "Kigali",
		Destination: "Musanze",
		Departure:   time.Now().UTC().Add(2 * time.Hour),
		Arrival:     time.Now().UTC().Add(4 * time.Hour),
		Price:       price,
		SeatCount:   seats,
	}
	require.NoError(t, store.CreateTrip(context.Background(), trip))

	return trip.ID
}

func TestReserve(t *testing.T) {
	ctx := context.Background()
	svc, _, store := newTestService(t, booking.Config{})
	tripID := seedTrip(t, store, 30, 5000)

	b, err := svc.Reserve(ctx, 1, tripID, 12, domain.PayWallet, "")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingPending, b.Status)
	assert.Equal(t, int64(5000), b.Price)
	assert.Equal(t, 12, b.SeatNumber)

	// Same seat again loses.
	_, err = svc.Reserve(ctx, 2, tripID, 12, domain.PayWallet, "")
	assert.ErrorIs(t, err, booking.ErrSeatTaken)

	// A different seat is unaffected.
	_, err = svc.Reserve(ctx, 2, tripID, 13, domain.PayMoMo, "")
	assert.NoError(t, err)
}

func TestReserveValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, store := newTestService(t, booking.Config{})
	tripID := seedTrip(t, store, 30, 5000)

	_, err := svc.Reserve(ctx, 1, tripID, 12, "cash", "")
	assert.ErrorIs(t, err, booking.ErrInvalidPaymentMethod)

	_, err = svc.Reserve(ctx, 1, tripID+100, 12, domain.PayWallet, "")
	assert.ErrorIs(t, err, booking.ErrTripNotFound)

	_, err = svc.Reserve(ctx, 1, tripID, 0, domain.PayWallet, "")
	assert.ErrorIs(t, err, booking.ErrSeatOutOfRange)

	_, err = svc.Reserve(ctx, 1, tripID, 31, domain.PayWallet, "")
	assert.ErrorIs(t, err, booking.ErrSeatOutOfRange)
}

func TestReserveDepartedTrip(t *testing.T) {
	ctx := context.Background()
	svc, _, store := newTestService(t, booking.Config{})

	trip := &domain.Trip{
		BusID:       "RAD-002",
		Origin:      "Kigali",
		Destination: "Huye",
		Departure:   time.Now().UTC().Add(-time.Hour),
		Arrival:     time.Now().UTC().Add(time.Hour),
		Price:       3000,
		SeatCount:   30,
	}
	require.NoError(t, store.CreateTrip(ctx, trip))

	_, err := svc.Reserve(ctx, 1, trip.ID, 1, domain.PayWallet, "")
	assert.ErrorIs(t, err, booking.ErrTripDeparted)
}

func TestReserveConcurrentOneWinner(t *testing.T) {
	ctx := context.Background()
	svc, _, store := newTestService(t, booking.Config{})
	tripID := seedTrip(t, store, 30, 5000)

	const riders = 16

	var wg sync.WaitGroup
	errs := make([]error, riders)

	for i := range riders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Reserve(ctx, int64(i+1), tripID, 7, domain.PayWallet, "")
		}()
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		default:
			require.ErrorIs(t, err, booking.ErrSeatTaken)
			lost++
		}
	}

	assert.Equal(t, 1, won)
	assert.Equal(t, riders-1, lost)
}

func TestConfirmWalletBooking(t *testing.T) {
	ctx := context.Background()
	svc, walletSvc, store := newTestService(t, booking.Config{})
	tripID := seedTrip(t, store, 30, 5000)

	_, err := walletSvc.Deposit(ctx, 1, 20000)
	require.NoError(t, err)

	b, err := svc.Reserve(ctx, 1, tripID, 3, domain.PayWallet, "")
	require.NoError(t, err)

	confirmed, err := svc.Confirm(ctx, b.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, confirmed.Status)
	assert.NotEmpty(t, confirmed.TicketToken)

	// The payment settled against the wallet.
	acct, err := walletSvc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(15000), acct.Balance)

	txs, err := walletSvc.History(ctx, 1, 10, 0)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, domain.TxPayment, txs[0].Type)
	assert.Equal(t, b.ID.String(), txs[0].CorrelationID)

	// Confirming twice is rejected.
	_, err = svc.Confirm(ctx, b.ID, 1)
	assert.ErrorIs(t, err, booking.ErrBookingNotPending)
}

func TestConfirmInsufficientFundsLeavesBookingPending(t *testing.T) {
	ctx := context.Background()
	svc, walletSvc, store := newTestService(t, booking.Config{})
	tripID := seedTrip(t, store, 30, 5000)

	_, err := walletSvc.Deposit(ctx, 1, 1000)
	require.NoError(t, err)

	b, err := svc.Reserve(ctx, 1, tripID, 3, domain.PayWallet, "")
	require.NoError(t, err)

	_, err = svc.Confirm(ctx, b.ID, 1)
	assert.ErrorIs(t, err, wallet.ErrInsufficientFunds)

	// Nothing was written: no debit, no ticket, booking still pending.
	acct, err := walletSvc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), acct.Balance)

	got, err := store.BookingByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingPending, got.Status)
	assert.Empty(t, got.TicketToken)
}

func TestConfirmExternalRailSkipsWallet(t *testing.T) {
	ctx := context.Background()
	svc, walletSvc, store := newTestService(t, booking.Config{})
	tripID := seedTrip(t, store, 30, 5000)

	b, err := svc.Reserve(ctx, 1, tripID, 3, domain.PayMoMo, "")
	require.NoError(t, err)

	confirmed, err := svc.Confirm(ctx, b.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, confirmed.Status)
	assert.NotEmpty(t, confirmed.TicketToken)

	// No wallet account was ever touched.
	acct, err := walletSvc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), acct.Balance)
}

func TestConfirmExpiredClaim(t *testing.T) {
	ctx := context.Background()
	svc, _, store := newTestService(t, booking.Config{PendingTTL: time.Millisecond})
	tripID := seedTrip(t, store, 30, 5000)

	b, err := svc.Reserve(ctx, 1, tripID, 3, domain.PayMoMo, "")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = svc.Confirm(ctx, b.ID, 1)
	assert.ErrorIs(t, err, booking.ErrClaimExpired)
}

func TestConfirmUnknownBooking(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, booking.Config{})

	_, err := svc.Confirm(ctx, uuid.New(), 1)
	assert.ErrorIs(t, err, booking.ErrBookingNotFound)
}

func TestCancelRefundsOnce(t *testing.T) {
	ctx := context.Background()
	svc, walletSvc, store := newTestService(t, booking.Config{})
	tripID := seedTrip(t, store, 30, 5000)

	_, err := walletSvc.Deposit(ctx, 1, 20000)
	require.NoError(t, err)

	b, err := svc.Reserve(ctx, 1, tripID, 3, domain.PayWallet, "")
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, b.ID, 1)
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, b.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, cancelled.Status)

	// The full price came back.
	acct, err := walletSvc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), acct.Balance)

	// A second cancel is an error, never a second refund.
	_, err = svc.Cancel(ctx, b.ID, 1)
	assert.ErrorIs(t, err, booking.ErrAlreadyCancelled)

	acct, err = walletSvc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), acct.Balance)

	// The seat is reusable.
	_, err = svc.Reserve(ctx, 2, tripID, 3, domain.PayWallet, "")
	assert.NoError(t, err)
}

func TestCancelPendingBookingSkipsRefund(t *testing.T) {
	ctx := context.Background()
	svc, walletSvc, store := newTestService(t, booking.Config{})
	tripID := seedTrip(t, store, 30, 5000)

	b, err := svc.Reserve(ctx, 1, tripID, 3, domain.PayWallet, "")
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, b.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, cancelled.Status)

	// Nothing had settled, so there is nothing to refund.
	txs, err := walletSvc.History(ctx, 1, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestCancelBoardedBooking(t *testing.T) {
	ctx := context.Background()

	store := repositorytest.New()
	walletSvc := wallet.New(store, wallet.Config{})
	ticketSvc := ticket.New(store, nil)
	svc := booking.New(store, walletSvc, ticketSvc, nil, nil, nil, nil, booking.Config{})

	tripID := seedTrip(t, store, 30, 5000)

	b, err := svc.Reserve(ctx, 1, tripID, 3, domain.PayMoMo, "")
	require.NoError(t, err)
	confirmed, err := svc.Confirm(ctx, b.ID, 1)
	require.NoError(t, err)

	_, err = ticketSvc.VerifyAndConsume(ctx, confirmed.TicketToken, 99)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, b.ID, 1)
	assert.ErrorIs(t, err, booking.ErrNotCancellable)
}

// flakyStore aborts the next n transactions with a serialization failure, the
// way the store's concurrency control does under contention.
type flakyStore struct {
	repository.Store
	mu       sync.Mutex
	failures int
}

func (f *flakyStore) setFailures(n int) {
	f.mu.Lock()
	f.failures = n
	f.mu.Unlock()
}

func (f *flakyStore) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return repository.ErrSerialization
	}
	f.mu.Unlock()
	return f.Store.InTx(ctx, fn)
}

func newFlakyService(t *testing.T) (*booking.Service, *flakyStore, int64) {
	t.Helper()

	store := repositorytest.New()
	tripID := seedTrip(t, store, 30, 5000)

	flaky := &flakyStore{Store: store}
	walletSvc := wallet.New(flaky, wallet.Config{})
	ticketSvc := ticket.New(flaky, nil)
	svc := booking.New(flaky, walletSvc, ticketSvc, nil, nil, nil, nil, booking.Config{})

	return svc, flaky, tripID
}

func TestReserveRetriesSerializationAbort(t *testing.T) {
	ctx := context.Background()
	svc, flaky, tripID := newFlakyService(t)

	flaky.setFailures(2)

	b, err := svc.Reserve(ctx, 1, tripID, 9, domain.PayWallet, "")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingPending, b.Status)

	// A retried loser sees the committed claim and gets the real outcome,
	// not the abort.
	flaky.setFailures(1)
	_, err = svc.Reserve(ctx, 2, tripID, 9, domain.PayWallet, "")
	assert.ErrorIs(t, err, booking.ErrSeatTaken)
}

func TestReserveSerializationAbortExhaustsRetries(t *testing.T) {
	ctx := context.Background()
	svc, flaky, tripID := newFlakyService(t)

	flaky.setFailures(10)

	_, err := svc.Reserve(ctx, 1, tripID, 9, domain.PayWallet, "")
	assert.ErrorIs(t, err, repository.ErrSerialization)
}

func TestConfirmRetriesSerializationAbort(t *testing.T) {
	ctx := context.Background()
	svc, flaky, tripID := newFlakyService(t)

	b, err := svc.Reserve(ctx, 1, tripID, 9, domain.PayMoMo, "")
	require.NoError(t, err)

	flaky.setFailures(2)

	confirmed, err := svc.Confirm(ctx, b.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, confirmed.Status)

	flaky.setFailures(2)

	cancelled, err := svc.Cancel(ctx, b.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, cancelled.Status)
}

func TestExpirePendingFreesSeat(t *testing.T) {
	ctx := context.Background()
	svc, _, store := newTestService(t, booking.Config{PendingTTL: time.Millisecond})
	tripID := seedTrip(t, store, 30, 5000)

	b, err := svc.Reserve(ctx, 1, tripID, 3, domain.PayWallet, "")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	released, err := svc.ExpirePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), released)

	got, err := store.BookingByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, got.Status)

	// Another rider can now take the seat.
	_, err = svc.Reserve(ctx, 2, tripID, 3, domain.PayWallet, "")
	assert.NoError(t, err)
}

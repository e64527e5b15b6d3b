package httpgin_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inzira/inzira-go/internal/domain"
	"github.com/inzira/inzira-go/internal/repository"
	"github.com/inzira/inzira-go/internal/repository/repositorytest"
	"github.com/inzira/inzira-go/internal/service"
	httpgin "github.com/inzira/inzira-go/internal/transport/http/gin"
)

func newTestRouter(t *testing.T) (*gin.Engine, *repositorytest.Fake) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	store := repositorytest.New()
	svcs := service.NewServices(store, nil, nil, nil, nil, service.Config{})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return httpgin.NewRouter(svcs, nil, logger), store
}

func seedTrip(t *testing.T, store *repositorytest.Fake, seats int, price int64) int64 {
	t.Helper()

	trip := &domain.Trip{
		BusID:       "RAD-020",
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

func doJSON(r *gin.Engine, method, path string, body any, userID int64, role string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID > 0 {
		req.Header.Set("X-User-ID", strconv.FormatInt(userID, 10))
		req.Header.Set("X-User-Role", role)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(r, http.MethodGet, "/healthz", nil, 0, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReserveRequiresIdentity(t *testing.T) {
	r, store := newTestRouter(t)
	tripID := seedTrip(t, store, 30, 5000)

	w := doJSON(r, http.MethodPost, fmt.Sprintf("/trips/%d/bookings", tripID),
		gin.H{"seat_number": 1, "payment_method": "wallet"}, 0, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReserve(t *testing.T) {
	r, store := newTestRouter(t)
	tripID := seedTrip(t, store, 30, 5000)
	path := fmt.Sprintf("/trips/%d/bookings", tripID)

	w := doJSON(r, http.MethodPost, path,
		gin.H{"seat_number": 4, "payment_method": "wallet"}, 1, "passenger")
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		BookingID  string `json:"booking_id"`
		SeatNumber int    `json:"seat_number"`
		Price      int64  `json:"price"`
		Status     string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.BookingID)
	assert.Equal(t, 4, resp.SeatNumber)
	assert.Equal(t, int64(5000), resp.Price)
	assert.Equal(t, "pending", resp.Status)

	// Losing the seat race maps to 409.
	w = doJSON(r, http.MethodPost, path,
		gin.H{"seat_number": 4, "payment_method": "wallet"}, 2, "passenger")
	assert.Equal(t, http.StatusConflict, w.Code)

	// Unknown payment rail is rejected by binding.
	w = doJSON(r, http.MethodPost, path,
		gin.H{"seat_number": 5, "payment_method": "cash"}, 1, "passenger")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConfirmFlow(t *testing.T) {
	r, store := newTestRouter(t)
	tripID := seedTrip(t, store, 30, 5000)

	// Not enough money yet.
	w := doJSON(r, http.MethodPost, "/wallet/deposit", gin.H{"amount": 1000}, 1, "passenger")
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(r, http.MethodPost, fmt.Sprintf("/trips/%d/bookings", tripID),
		gin.H{"seat_number": 4, "payment_method": "wallet"}, 1, "passenger")
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		BookingID string `json:"booking_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	w = doJSON(r, http.MethodPost, "/bookings/"+resp.BookingID+"/confirm", nil, 1, "passenger")
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	// Top up and retry.
	w = doJSON(r, http.MethodPost, "/wallet/deposit", gin.H{"amount": 10000}, 1, "passenger")
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(r, http.MethodPost, "/bookings/"+resp.BookingID+"/confirm", nil, 1, "passenger")
	require.Equal(t, http.StatusOK, w.Code)

	var confirmed domain.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &confirmed))
	assert.Equal(t, domain.BookingConfirmed, confirmed.Status)
	assert.NotEmpty(t, confirmed.TicketToken)

	// Confirming twice conflicts.
	w = doJSON(r, http.MethodPost, "/bookings/"+resp.BookingID+"/confirm", nil, 1, "passenger")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGateScanRoles(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(r, http.MethodPost, "/gate/scan", gin.H{"token": "INZ-x"}, 1, "passenger")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(r, http.MethodPost, "/gate/scan", gin.H{"token": "INZ-x"}, 9, "companyAdmin")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGateScanConsumesOnce(t *testing.T) {
	r, store := newTestRouter(t)
	tripID := seedTrip(t, store, 30, 5000)

	w := doJSON(r, http.MethodPost, fmt.Sprintf("/trips/%d/bookings", tripID),
		gin.H{"seat_number": 2, "payment_method": "momo"}, 1, "passenger")
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		BookingID string `json:"booking_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	w = doJSON(r, http.MethodPost, "/bookings/"+resp.BookingID+"/confirm", nil, 1, "passenger")
	require.Equal(t, http.StatusOK, w.Code)

	var confirmed domain.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &confirmed))

	w = doJSON(r, http.MethodPost, "/gate/scan",
		gin.H{"token": confirmed.TicketToken}, 9, "companyAdmin")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPost, "/gate/scan",
		gin.H{"token": confirmed.TicketToken}, 9, "companyAdmin")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestWalletEndpoints(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(r, http.MethodPost, "/wallet/deposit", gin.H{"amount": 50}, 1, "passenger")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/wallet/deposit", gin.H{"amount": 5000}, 1, "passenger")
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(r, http.MethodPost, "/wallet/withdraw", gin.H{"amount": 9000}, 1, "passenger")
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	w = doJSON(r, http.MethodGet, "/wallet", nil, 1, "passenger")
	require.Equal(t, http.StatusOK, w.Code)

	var acct domain.WalletAccount
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &acct))
	assert.Equal(t, int64(5000), acct.Balance)

	w = doJSON(r, http.MethodGet, "/wallet/transactions", nil, 1, "passenger")
	require.Equal(t, http.StatusOK, w.Code)

	var txs []domain.WalletTransaction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &txs))
	assert.Len(t, txs, 1)
}

func TestAdminTripsRoles(t *testing.T) {
	r, _ := newTestRouter(t)

	body := gin.H{
		"bus_id":       "RAD-030",
		"origin":       "Kigali",
		"destination":  "Rusizi",
		"departure_at": time.Now().UTC().Add(5 * time.Hour).Format(time.RFC3339),
		"arrival_at":   time.Now().UTC().Add(12 * time.Hour).Format(time.RFC3339),
		"price":        9000,
		"seat_count":   45,
	}

	w := doJSON(r, http.MethodPost, "/admin/trips", body, 1, "passenger")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(r, http.MethodPost, "/admin/trips", body, 2, "systemAdmin")
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		TripID int64 `json:"trip_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotZero(t, resp.TripID)

	// The published trip is readable right away.
	w = doJSON(r, http.MethodGet, fmt.Sprintf("/trips/%d", resp.TripID), nil, 0, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

// contendedStore aborts every transaction the way the store does under
// unresolvable contention.
type contendedStore struct {
	repository.Store
}

func (s *contendedStore) InTx(context.Context, func(ctx context.Context, tx repository.Tx) error) error {
	return repository.ErrSerialization
}

func TestReserveSerializationConflictIsRetryable(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := repositorytest.New()
	tripID := seedTrip(t, store, 30, 5000)

	svcs := service.NewServices(&contendedStore{Store: store}, nil, nil, nil, nil, service.Config{})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := httpgin.NewRouter(svcs, nil, logger)

	w := doJSON(r, http.MethodPost, fmt.Sprintf("/trips/%d/bookings", tripID),
		gin.H{"seat_number": 1, "payment_method": "wallet"}, 1, "passenger")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestPaginationParamsClamped(t *testing.T) {
	r, store := newTestRouter(t)
	seedTrip(t, store, 30, 5000)

	w := doJSON(r, http.MethodGet, "/trips?limit=-5&offset=-1", nil, 0, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/wallet/transactions?limit=-5", nil, 1, "passenger")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuditPageRoles(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(r, http.MethodGet, "/audit", nil, 1, "passenger")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(r, http.MethodGet, "/audit", nil, 2, "systemAdmin")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSeatMapETag(t *testing.T) {
	r, store := newTestRouter(t)
	tripID := seedTrip(t, store, 4, 5000)
	path := fmt.Sprintf("/trips/%d/seats", tripID)

	w := doJSON(r, http.MethodGet, path, nil, 0, "")
	require.Equal(t, http.StatusOK, w.Code)
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("If-None-Match", etag)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusNotModified, w2.Code)
}

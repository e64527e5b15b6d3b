package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/inzira/inzira-go/internal/domain"
	"github.com/inzira/inzira-go/internal/repository"
	redisrepo "github.com/inzira/inzira-go/internal/repository/redis"
	"github.com/inzira/inzira-go/internal/service"
	"github.com/inzira/inzira-go/internal/service/admin"
	"github.com/inzira/inzira-go/internal/service/booking"
	"github.com/inzira/inzira-go/internal/service/query"
	"github.com/inzira/inzira-go/internal/service/ticket"
	"github.com/inzira/inzira-go/internal/service/wallet"
)

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public trip reads
	r.GET("/trips", handleListTrips(svcs))
	r.GET("/trips/:id", handleGetTrip(svcs))
	r.GET("/trips/:id/seats", handleTripSeats(svcs))
	r.GET("/trips/:id/availability", handleTripAvailability(svcs))

	// Rider API
	user := r.Group("/", RequireUser())
	{
		user.POST("/trips/:id/bookings", handleReserveSeat(svcs, idem))
		user.POST("/bookings/:id/confirm", handleConfirmBooking(svcs))
		user.POST("/bookings/:id/cancel", handleCancelBooking(svcs))
		user.GET("/bookings/:id", handleGetBooking(svcs))
		user.GET("/users/me/bookings", handleMyBookings(svcs))

		user.GET("/wallet", handleWalletBalance(svcs))
		user.GET("/wallet/transactions", handleWalletHistory(svcs))
		user.POST("/wallet/deposit", handleDeposit(svcs))
		user.POST("/wallet/withdraw", handleWithdraw(svcs))
	}

	// Gate scanning is done by company staff devices.
	gate := r.Group("/gate", RequireUser(), RequireRole(RoleCompanyAdmin, RoleSystemAdmin))
	{
		gate.POST("/scan", handleGateScan(svcs))
	}

	// System administration
	adminGroup := r.Group("/admin", RequireUser(), RequireRole(RoleSystemAdmin))
	{
		adminGroup.POST("/trips", handleCreateTrip(svcs))
	}
	r.GET("/audit", RequireUser(), RequireRole(RoleSystemAdmin), handleAuditPage(svcs))

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  List trips
// @Param    origin       query  string  false "origin city"
// @Param    destination  query  string  false "destination city"
// @Success  200  {array}  domain.Trip
// @Router   /trips [get]
func handleListTrips(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := parsePage(c)

		trips, err := svcs.Query.ListTrips(
			c.Request.Context(),
			c.Query("origin"),
			c.Query("destination"),
			limit,
			offset,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, trips, "public, max-age=60", true)
	}
}

// @Summary  Get trip
// @Param    id  path  int  true  "Trip ID"
// @Success  200  {object}  domain.Trip
// @Failure  404  {object}  ErrorResponse
// @Router   /trips/{id} [get]
func handleGetTrip(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		tripID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		t, err := svcs.Query.GetTrip(c.Request.Context(), tripID)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, t, "public, max-age=60", true)
	}
}

// @Summary  Trip seat map
// @Param    id  path  int  true  "Trip ID"
// @Success  200  {array}  domain.SeatWithStatus
// @Router   /trips/{id}/seats [get]
func handleTripSeats(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		tripID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		seats, err := svcs.Query.SeatMap(c.Request.Context(), tripID)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, seats, "public, max-age=15", true)
	}
}

// @Summary  Trip availability counters
// @Param    id  path  int  true  "Trip ID"
// @Success  200  {object}  domain.TripAvailability
// @Router   /trips/{id}/availability [get]
func handleTripAvailability(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		tripID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		counts, err := svcs.Query.Availability(c.Request.Context(), tripID)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, counts, "public, max-age=15", true)
	}
}

// @Summary  Reserve a seat (idempotent)
// @Param    id  path  int  true  "Trip ID"
// @Param    req body  ReserveSeatRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} ReserveSeatResponse
// @Failure  400 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "seat taken / idem in progress"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /trips/{id}/bookings [post]
func handleReserveSeat(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		tripID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req ReserveSeatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		userID := c.GetInt64("user_id")

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemReserve(tripID, idemKey)

			if payload, ok, _ := idem.GetResult(c.Request.Context(), idemStorageKey); ok {
				c.Header("Idempotency-Key", idemKey)
				c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
				return
			}

			locked, err := idem.AcquireLock(c.Request.Context(), idemStorageKey, 60*time.Second)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(c.Request.Context(), idemStorageKey); ok {
					c.Header("Idempotency-Key", idemKey)
					c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
				return
			}
		}

		rlKey := "ip:" + c.ClientIP()

		b, err := svcs.Booking.Reserve(
			c.Request.Context(),
			userID,
			tripID,
			req.SeatNumber,
			domain.PaymentMethod(req.PaymentMethod),
			rlKey,
		)
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			var rl booking.RateLimitedError
			if errors.As(err, &rl) {
				c.Header("Retry-After", strconv.Itoa(int(rl.RetryAfter.Seconds())+1))
				c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: rl.Error()})
				return
			}
			respondErr(c, err)
			return
		}

		resp := ReserveSeatResponse{
			BookingID:  b.ID.String(),
			TripID:     b.TripID,
			SeatNumber: b.SeatNumber,
			Price:      b.Price,
			Status:     string(b.Status),
		}

		if idemStorageKey != "" && idem != nil {
			payload, _ := json.Marshal(resp)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(payload))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// @Summary  Confirm booking (settle payment, issue ticket)
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200 {object} domain.Booking
// @Failure  402 {object} ErrorResponse "insufficient funds"
// @Failure  409 {object} ErrorResponse
// @Failure  410 {object} ErrorResponse "claim expired"
// @Router   /bookings/{id}/confirm [post]
func handleConfirmBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		b, err := svcs.Booking.Confirm(c.Request.Context(), bookingID, c.GetInt64("user_id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

// @Summary  Cancel booking (refunds settled wallet payments)
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200 {object} domain.Booking
// @Failure  409 {object} ErrorResponse
// @Router   /bookings/{id}/cancel [post]
func handleCancelBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		b, err := svcs.Booking.Cancel(c.Request.Context(), bookingID, c.GetInt64("user_id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

// @Summary  Get booking
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200 {object} domain.Booking
// @Router   /bookings/{id} [get]
func handleGetBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		b, err := svcs.Query.GetBooking(c.Request.Context(), bookingID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

// @Summary  List caller's bookings
// @Success  200 {array} domain.Booking
// @Router   /users/me/bookings [get]
func handleMyBookings(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookings, err := svcs.Query.ListUserBookings(c.Request.Context(), c.GetInt64("user_id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, bookings)
	}
}

// @Summary  Wallet balance
// @Success  200 {object} domain.WalletAccount
// @Router   /wallet [get]
func handleWalletBalance(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, err := svcs.Wallet.Balance(c.Request.Context(), c.GetInt64("user_id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, a)
	}
}

// @Summary  Wallet transaction history
// @Success  200 {array} domain.WalletTransaction
// @Router   /wallet/transactions [get]
func handleWalletHistory(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := parsePage(c)

		txs, err := svcs.Wallet.History(c.Request.Context(), c.GetInt64("user_id"), limit, offset)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, txs)
	}
}

// @Summary  Deposit into wallet
// @Param    req body WalletAmountRequest true "payload"
// @Success  201 {object} domain.WalletTransaction
// @Failure  400 {object} ErrorResponse
// @Router   /wallet/deposit [post]
func handleDeposit(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req WalletAmountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		t, err := svcs.Wallet.Deposit(c.Request.Context(), c.GetInt64("user_id"), req.Amount)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, t)
	}
}

// @Summary  Withdraw from wallet
// @Param    req body WalletAmountRequest true "payload"
// @Success  201 {object} domain.WalletTransaction
// @Failure  402 {object} ErrorResponse "insufficient funds"
// @Router   /wallet/withdraw [post]
func handleWithdraw(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req WalletAmountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		t, err := svcs.Wallet.Withdraw(c.Request.Context(), c.GetInt64("user_id"), req.Amount)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, t)
	}
}

// @Summary  Verify and consume a boarding ticket
// @Param    req body ScanTicketRequest true "payload"
// @Success  200 {object} ticket.VerificationResult
// @Failure  404 {object} ErrorResponse "unknown token"
// @Failure  409 {object} ErrorResponse "already used / not boardable"
// @Router   /gate/scan [post]
func handleGateScan(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ScanTicketRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := svcs.Ticket.VerifyAndConsume(c.Request.Context(), req.Token, c.GetInt64("user_id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// @Summary  Load a published trip (reference data)
// @Param    req body CreateTripRequest true "payload"
// @Success  201 {object} CreateTripResponse
// @Router   /admin/trips [post]
func handleCreateTrip(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateTripRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		departure, err := parseRFC3339(req.DepartureAt)
		if err != nil {
			badRequest(c, "invalid departure_at (RFC3339)")
			return
		}
		arrival, err := parseRFC3339(req.ArrivalAt)
		if err != nil {
			badRequest(c, "invalid arrival_at (RFC3339)")
			return
		}
		t := &domain.Trip{
			BusID:       req.BusID,
			Origin:      req.Origin,
			Destination: req.Destination,
			Departure:   departure,
			Arrival:     arrival,
			Price:       req.Price,
			SeatCount:   req.SeatCount,
		}
		id, err := svcs.Admin.CreateTrip(c.Request.Context(), c.GetInt64("user_id"), t)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, CreateTripResponse{TripID: id})
	}
}

// @Summary  Audit log page
// @Success  200 {array} domain.AuditEntry
// @Router   /audit [get]
func handleAuditPage(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := parsePage(c)

		entries, err := svcs.Query.AuditPage(c.Request.Context(), limit, offset)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	v, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return v, true
}

// parseIntDefault falls back to def on anything unusable, including negative
// values, which the store would reject as LIMIT/OFFSET.
func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return def
	}
	return v
}

const maxPageSize = 200

func parsePage(c *gin.Context) (limit, offset int) {
	limit = parseIntDefault(c.Query("limit"), 50)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset = parseIntDefault(c.Query("offset"), 0)
	return limit, offset
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	switch {
	// booking service
	case errors.Is(err, booking.ErrTripNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "trip not found"})
		return
	case errors.Is(err, booking.ErrTripDeparted):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "trip has departed"})
		return
	case errors.Is(err, booking.ErrSeatOutOfRange):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "seat out of range"})
		return
	case errors.Is(err, booking.ErrSeatTaken):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "seat already taken"})
		return
	case errors.Is(err, booking.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "booking not found"})
		return
	case errors.Is(err, booking.ErrBookingNotPending):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "booking is not pending"})
		return
	case errors.Is(err, booking.ErrClaimExpired):
		c.JSON(http.StatusGone, ErrorResponse{Error: "seat claim expired"})
		return
	case errors.Is(err, booking.ErrAlreadyCancelled):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "booking already cancelled"})
		return
	case errors.Is(err, booking.ErrNotCancellable):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "booking cannot be cancelled"})
		return
	case errors.Is(err, booking.ErrInvalidPaymentMethod):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid payment method"})
		return
	// wallet service
	case errors.Is(err, wallet.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "amount must be positive"})
		return
	case errors.Is(err, wallet.ErrAmountBelowMinimum):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "amount below minimum"})
		return
	case errors.Is(err, wallet.ErrInsufficientFunds):
		c.JSON(http.StatusPaymentRequired, ErrorResponse{Error: "insufficient funds"})
		return
	case errors.Is(err, wallet.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "wallet account not found"})
		return
	// ticket service
	case errors.Is(err, ticket.ErrTicketNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "ticket not found"})
		return
	case errors.Is(err, ticket.ErrTicketAlreadyUsed):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "ticket already used"})
		return
	case errors.Is(err, ticket.ErrTicketInvalidState):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "ticket is not boardable"})
		return
	// query service
	case errors.Is(err, query.ErrTripNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "trip not found"})
		return
	case errors.Is(err, query.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "booking not found"})
		return
	// admin service
	case errors.Is(err, admin.ErrInvalidTrip):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid trip definition"})
		return
	case errors.Is(err, admin.ErrTripConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "trip already exists"})
		return
	// storage
	case errors.Is(err, repository.ErrSerialization):
		// Transaction aborted by concurrency control after service-level
		// retries; the request is safe to repeat.
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "transient conflict, retry"})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/inzira/inzira-go/internal/config"
	"github.com/inzira/inzira-go/internal/postgres"
	"github.com/inzira/inzira-go/internal/redis"
	postgresrepo "github.com/inzira/inzira-go/internal/repository/postgres"
	redisrepo "github.com/inzira/inzira-go/internal/repository/redis"
	"github.com/inzira/inzira-go/internal/service"
	"github.com/inzira/inzira-go/internal/service/audit"
	"github.com/inzira/inzira-go/internal/service/booking"
	"github.com/inzira/inzira-go/internal/service/query"
	"github.com/inzira/inzira-go/internal/service/wallet"
	httpgin "github.com/inzira/inzira-go/internal/transport/http/gin"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	services   *service.Services
	recorder   *audit.Recorder
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Initialize dependencies
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.Name,
		cfg.Postgres.SSLMode,
	)

	pgxPool, err := postgres.New(context.Background(), postgres.Config{DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	rdb, err := redis.New(context.Background(), redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	// Initialize repositories
	store := postgresrepo.NewStore(pgxPool)
	cache := redisrepo.New(rdb)
	pubsub := redisrepo.NewTripsPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, "rl", cfg.Limiter.ReserveLimit, cfg.Limiter.ReserveWindow)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, 2*time.Hour)

	// Audit entries are buffered and written off the request path.
	recorder := audit.NewRecorder(store, logger, 0)

	// Initialize services
	services := service.NewServices(store, recorder, cache, pubsub, limiter, service.Config{
		Booking: booking.Config{PendingTTL: cfg.Booking.PendingTTL},
		Wallet: wallet.Config{
			MinDeposit:    cfg.Wallet.MinDeposit,
			MinWithdrawal: cfg.Wallet.MinWithdrawal,
		},
		Query: query.Config{},
	})

	// Initialize Gin router
	router := httpgin.NewRouter(services, idempotencyStore, logger)

	return &App{
		cfg:      cfg,
		logger:   logger,
		services: services,
		recorder: recorder,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Drain audit entries until shutdown
	g.Go(func() error {
		return a.recorder.Run(gCtx)
	})

	// Reclaim seats behind lapsed pending bookings
	g.Go(func() error {
		interval := a.cfg.Booking.SweepInterval
		if interval <= 0 {
			interval = time.Minute
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
				released, err := a.services.Booking.ExpirePending(gCtx)
				if err != nil {
					a.logger.Error("pending sweep failed", "error", err)
					continue
				}
				if released > 0 {
					a.logger.Info("pending sweep released seats", "count", released)
				}
			}
		}
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}

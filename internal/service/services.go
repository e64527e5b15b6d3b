package service

import (
	"github.com/inzira/inzira-go/internal/repository"
	redisrepo "github.com/inzira/inzira-go/internal/repository/redis"
	"github.com/inzira/inzira-go/internal/service/admin"
	"github.com/inzira/inzira-go/internal/service/audit"
	"github.com/inzira/inzira-go/internal/service/booking"
	"github.com/inzira/inzira-go/internal/service/query"
	"github.com/inzira/inzira-go/internal/service/ticket"
	"github.com/inzira/inzira-go/internal/service/wallet"
)

type Services struct {
	Booking *booking.Service
	Wallet  *wallet.Service
	Ticket  *ticket.Service
	Query   *query.Service
	Admin   *admin.Service
}

type Config struct {
	Booking booking.Config
	Wallet  wallet.Config
	Query   query.Config
}

func NewServices(
	store repository.Store,
	recorder *audit.Recorder,
	cache *redisrepo.Cache,
	pubsub *redisrepo.TripsPubSub,
	limiter *redisrepo.SlidingWindowLimiter,
	cfg Config,
) *Services {
	var auditor interface {
		Record(actorID int64, action, targetType, targetID, details string)
	}
	if recorder != nil {
		auditor = recorder
	}

	walletSvc := wallet.New(store, cfg.Wallet)
	ticketSvc := ticket.New(store, auditor)

	return &Services{
		Booking: booking.New(store, walletSvc, ticketSvc, auditor, cache, pubsub, limiter, cfg.Booking),
		Wallet:  walletSvc,
		Ticket:  ticketSvc,
		Query:   query.New(store, cache, cfg.Query),
		Admin:   admin.New(store, auditor),
	}
}

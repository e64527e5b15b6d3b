// Package redis builds the shared client behind the trip read cache, the
// trip-changed pubsub fanout, the reserve rate limiter and the idempotency
// store. All of those live in internal/repository/redis; this package only
// dials and verifies the connection.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 3 * time.Second

type Config struct {
	Addr     string
	Password string
	DB       int
}

// New connects and pings. Redis is a hard dependency at startup: serving
// without the limiter and idempotency store would silently drop the
// guarantees the reserve endpoint advertises.
func New(ctx context.Context, cfg Config) (*redis.Client, error) {
	const op = "redis.New"

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctxPing, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if _, err := client.Ping(ctxPing).Result(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return client, nil
}

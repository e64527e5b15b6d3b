package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("POSTGRES_USER", "inzira")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "inzira")
}

func TestNewDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "disable", cfg.Postgres.SSLMode)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 10*time.Minute, cfg.Booking.PendingTTL)
	assert.Equal(t, time.Minute, cfg.Booking.SweepInterval)
	assert.Equal(t, int64(100), cfg.Wallet.MinDeposit)
	assert.Equal(t, int64(500), cfg.Wallet.MinWithdrawal)
	assert.Equal(t, 10, cfg.Limiter.ReserveLimit)
}

func TestNewOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("BOOKING_PENDING_TTL", "5m")
	t.Setenv("WALLET_MIN_WITHDRAWAL", "1000")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Booking.PendingTTL)
	assert.Equal(t, int64(1000), cfg.Wallet.MinWithdrawal)
}

func TestNewMissingRequired(t *testing.T) {
	t.Setenv("POSTGRES_USER", "")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "inzira")

	_, err := New()
	require.Error(t, err)
}

func TestNewInvalidValues(t *testing.T) {
	setRequired(t)
	t.Setenv("BOOKING_PENDING_TTL", "soon")

	_, err := New()
	require.Error(t, err)
}

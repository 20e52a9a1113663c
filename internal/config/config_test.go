package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "vineledger", cfg.Database.DBName)
	assert.Equal(t, 24*time.Hour, cfg.Redis.SeenTTL)
	assert.Equal(t, "trade-events", cfg.Kafka.TradeTopic)

	assert.True(t, cfg.Trading.AllocationFactor.Equal(decimal.RequireFromString("0.20")))
	assert.True(t, cfg.Trading.DailyROITarget.Equal(decimal.RequireFromString("5.0")))
	assert.Equal(t, 0.35, cfg.Trading.LossProbability)
	assert.Equal(t, 15*time.Minute, cfg.Trading.IntervalMin)
	assert.Equal(t, 60*time.Minute, cfg.Trading.IntervalMax)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("TRADING_ALLOCATION_FACTOR", "0.15")
	t.Setenv("TRADING_INTERVAL_MIN", "5m")
	t.Setenv("REDIS_SEEN_TTL", "1h")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.True(t, cfg.Trading.AllocationFactor.Equal(decimal.RequireFromString("0.15")))
	assert.Equal(t, 5*time.Minute, cfg.Trading.IntervalMin)
	assert.Equal(t, time.Hour, cfg.Redis.SeenTTL)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("TRADING_ALLOCATION_FACTOR", "not-a-number")
	t.Setenv("TRADING_INTERVAL_MIN", "soon")

	cfg := Load()

	assert.True(t, cfg.Trading.AllocationFactor.Equal(decimal.RequireFromString("0.20")))
	assert.Equal(t, 15*time.Minute, cfg.Trading.IntervalMin)
}

func TestConnectionString(t *testing.T) {
	d := DatabaseConfig{
		Host: "db", Port: "5433", User: "u", Password: "p",
		DBName: "ledger", SSLMode: "disable",
	}
	assert.Equal(t, "postgres://u:p@db:5433/ledger?sslmode=disable", d.ConnectionString())
}

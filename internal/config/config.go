package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Trading  TradingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration for the idempotency fast path
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// SeenTTL bounds how long a processed reference is cached. The DB
	// unique index remains authoritative after expiry.
	SeenTTL time.Duration
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers         []string
	TradeTopic      string
	SettlementTopic string
	GroupID         string
}

// TradingConfig holds settlement and generator tuning
type TradingConfig struct {
	// AllocationFactor is the fraction of each account's capital treated
	// as at risk per trade. Empirically 0.15-0.25; there is no canonical
	// value.
	AllocationFactor decimal.Decimal
	// DailyROITarget caps the generator's cumulative realized ROI per
	// account per day, in percent.
	DailyROITarget decimal.Decimal
	LossProbability float64
	GainMinPct      decimal.Decimal
	GainMaxPct      decimal.Decimal
	LossMinPct      decimal.Decimal
	LossMaxPct      decimal.Decimal
	IntervalMin     time.Duration
	IntervalMax     time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "vineledger"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			SeenTTL:  getEnvDuration("REDIS_SEEN_TTL", 24*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers:         []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			TradeTopic:      getEnv("KAFKA_TRADE_TOPIC", "trade-events"),
			SettlementTopic: getEnv("KAFKA_SETTLEMENT_TOPIC", "settlement-events"),
			GroupID:         getEnv("KAFKA_GROUP_ID", "vine-ledger"),
		},
		Trading: TradingConfig{
			AllocationFactor: getEnvDecimal("TRADING_ALLOCATION_FACTOR", "0.20"),
			DailyROITarget:   getEnvDecimal("TRADING_DAILY_ROI_TARGET", "5.0"),
			LossProbability:  getEnvFloat("TRADING_LOSS_PROBABILITY", 0.35),
			GainMinPct:       getEnvDecimal("TRADING_GAIN_MIN_PCT", "0.5"),
			GainMaxPct:       getEnvDecimal("TRADING_GAIN_MAX_PCT", "2.5"),
			LossMinPct:       getEnvDecimal("TRADING_LOSS_MIN_PCT", "0.2"),
			LossMaxPct:       getEnvDecimal("TRADING_LOSS_MAX_PCT", "1.2"),
			IntervalMin:      getEnvDuration("TRADING_INTERVAL_MIN", 15*time.Minute),
			IntervalMax:      getEnvDuration("TRADING_INTERVAL_MAX", 60*time.Minute),
		},
	}
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key, defaultValue string) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	d, _ := decimal.NewFromString(defaultValue)
	return d
}

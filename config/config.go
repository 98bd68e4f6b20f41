// config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	SandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	ProductionBaseURL = "https://api.safaricom.co.ke"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Mpesa    MpesaConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Donation DonationConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Host        string
	Port        string
	User        string
	Password    string
	DBName      string
	SSLMode     string
	AutoMigrate bool

	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectAttempts int
}

// DSN returns a postgres:// url usable by both pgxpool and migrate.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type MpesaConfig struct {
	Environment     string
	BaseURL         string
	ConsumerKey     string
	ConsumerSecret  string
	Passkey         string
	ShortCode       string
	TransactionType string
	CallbackURL     string
	TimeoutURL      string

	HTTPTimeout      time.Duration
	QueryMaxAttempts int
	QueryRetryDelay  time.Duration

	// Simulation replaces the provider with an in-process simulator. It is
	// only ever enabled explicitly.
	Simulation bool
}

// ResolveBaseURL picks the API host for the configured environment unless an
// explicit base url is set.
func (m MpesaConfig) ResolveBaseURL() string {
	if m.BaseURL != "" {
		return strings.TrimRight(m.BaseURL, "/")
	}
	if m.Environment == "production" {
		return ProductionBaseURL
	}
	return SandboxBaseURL
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Enabled reports whether any broker is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type DonationConfig struct {
	RefPrefix       string
	RateLimit       int
	RateLimitWindow time.Duration
	RateLimitBlock  time.Duration
}

func Load(logger *zap.Logger) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnv("DB_PORT", "5432"),
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", ""),
			DBName:      getEnv("DB_NAME", "helpinghand"),
			SSLMode:     getEnv("DB_SSL_MODE", "disable"),
			AutoMigrate: getEnvBool("DB_AUTO_MIGRATE", true),

			MaxConns:        getEnvInt("DB_MAX_CONNS", 20),
			MinConns:        getEnvInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			ConnectAttempts: getEnvInt("DB_CONNECT_ATTEMPTS", 5),
		},
		Mpesa: MpesaConfig{
			Environment:      getEnv("MPESA_ENVIRONMENT", "sandbox"),
			BaseURL:          getEnv("MPESA_BASE_URL", ""),
			ConsumerKey:      getEnv("MPESA_CONSUMER_KEY", ""),
			ConsumerSecret:   getEnv("MPESA_CONSUMER_SECRET", ""),
			Passkey:          getEnv("MPESA_PASSKEY", ""),
			ShortCode:        getEnv("MPESA_BUSINESS_SHORT_CODE", ""),
			TransactionType:  getEnv("MPESA_TRANSACTION_TYPE", "CustomerPayBillOnline"),
			CallbackURL:      getEnv("MPESA_CALLBACK_URL", ""),
			TimeoutURL:       getEnv("MPESA_TIMEOUT_URL", ""),
			HTTPTimeout:      getEnvDuration("MPESA_HTTP_TIMEOUT", 30*time.Second),
			QueryMaxAttempts: getEnvInt("MPESA_QUERY_MAX_ATTEMPTS", 3),
			QueryRetryDelay:  getEnvDuration("MPESA_QUERY_RETRY_DELAY", 2*time.Second),
			Simulation:       getEnvBool("MPESA_SIMULATION", false),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "redis"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvSlice("KAFKA_BROKERS", nil),
			Topic:   getEnv("KAFKA_DONATION_TOPIC", "donation_events"),
		},
		Donation: DonationConfig{
			RefPrefix:       getEnv("DONATION_REF_PREFIX", "HH"),
			RateLimit:       getEnvInt("DONATION_RATE_LIMIT", 10),
			RateLimitWindow: getEnvDuration("DONATION_RATE_WINDOW", time.Minute),
			RateLimitBlock:  getEnvDuration("DONATION_RATE_BLOCK", 5*time.Minute),
		},
	}

	if err := cfg.validate(logger); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate rejects settings that can never work and warns about the ones
// that will only fail at request time.
func (c *Config) validate(logger *zap.Logger) error {
	if c.Mpesa.QueryMaxAttempts < 1 {
		return fmt.Errorf("MPESA_QUERY_MAX_ATTEMPTS must be at least 1, got %d", c.Mpesa.QueryMaxAttempts)
	}
	if c.Mpesa.HTTPTimeout <= 0 {
		return fmt.Errorf("MPESA_HTTP_TIMEOUT must be positive")
	}
	if c.Donation.RefPrefix == "" {
		return fmt.Errorf("DONATION_REF_PREFIX must not be empty")
	}

	if c.Mpesa.Simulation {
		if c.Server.Env == "production" {
			return fmt.Errorf("MPESA_SIMULATION cannot be enabled in production")
		}
		logger.Warn("M-Pesa SIMULATION mode enabled, no real payments will be requested")
		return nil
	}

	if c.Mpesa.ConsumerKey == "" || c.Mpesa.ConsumerSecret == "" {
		logger.Warn("M-Pesa consumer credentials missing, donations will fail with MISSING_CREDENTIALS")
	}
	if c.Mpesa.CallbackURL == "" || c.Mpesa.TimeoutURL == "" {
		logger.Warn("M-Pesa callback or timeout url missing, donations will fail with MISCONFIGURED_ENDPOINTS")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		boolVal, err := strconv.ParseBool(value)
		if err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
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

func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env                  string
	HTTPAddr             string
	StorageMode          string
	MongoURI             string
	MongoDB              string
	KafkaBrokers         []string
	KafkaTopicPrefix     string
	PaymentEventsTopic   string
	IdempotencyTTL       time.Duration
	OutboxPollInterval   time.Duration
	RetryBackoff         []time.Duration
	SoftHoldTTL          time.Duration
	BookingExpiry        time.Duration
	SweepInterval        time.Duration
	PaymentTimeout       time.Duration
	CalendarSyncInterval time.Duration
	CalendarSyncHorizon  time.Duration
	StripeSecretKey      string
	StripeWebhookSecret  string
	GoogleCalendarID     string
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:                 getEnv("APP_ENV", "dev"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		StorageMode:         strings.ToLower(getEnv("STORAGE_MODE", "memory")),
		MongoURI:            os.Getenv("MONGO_URI"),
		MongoDB:             getEnv("MONGO_DB", "spothire"),
		KafkaTopicPrefix:    getEnv("KAFKA_TOPIC_PREFIX", ""),
		PaymentEventsTopic:  getEnv("PAYMENT_EVENTS_TOPIC", "payment.events.v1"),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		GoogleCalendarID:    getEnv("GOOGLE_CALENDAR_ID", "primary"),
	}
	brokers := getEnv("KAFKA_BROKERS", "")
	if brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	idempotencyTTL, err := parseDurationEnv("IDEMP_TTL", 168*time.Hour)
	if err != nil {
		return Config{}, err
	}
	cfg.IdempotencyTTL = idempotencyTTL

	poll, err := parseDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond)
	if err != nil {
		return Config{}, err
	}
	cfg.OutboxPollInterval = poll

	holdTTL, err := parseDurationEnv("SOFT_HOLD_TTL", 30*time.Minute)
	if err != nil {
		return Config{}, err
	}
	cfg.SoftHoldTTL = holdTTL

	expiry, err := parseDurationEnv("BOOKING_EXPIRY", 30*time.Minute)
	if err != nil {
		return Config{}, err
	}
	cfg.BookingExpiry = expiry

	sweep, err := parseDurationEnv("SWEEP_INTERVAL", time.Minute)
	if err != nil {
		return Config{}, err
	}
	cfg.SweepInterval = sweep

	payTimeout, err := parseDurationEnv("PAYMENT_TIMEOUT", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.PaymentTimeout = payTimeout

	syncInterval, err := parseDurationEnv("CALENDAR_SYNC_INTERVAL", 15*time.Minute)
	if err != nil {
		return Config{}, err
	}
	cfg.CalendarSyncInterval = syncInterval

	syncHorizon, err := parseDurationEnv("CALENDAR_SYNC_HORIZON", 365*24*time.Hour)
	if err != nil {
		return Config{}, err
	}
	cfg.CalendarSyncHorizon = syncHorizon

	retryStr := getEnv("RETRY_BACKOFF", "1s,5s,30s")
	for _, raw := range strings.Split(retryStr, ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}

	switch cfg.StorageMode {
	case "memory":
	case "mongo":
		if cfg.MongoURI == "" {
			return Config{}, fmt.Errorf("MONGO_URI is required when STORAGE_MODE=mongo")
		}
	default:
		return Config{}, fmt.Errorf("invalid STORAGE_MODE %q", cfg.StorageMode)
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application level configuration loaded from environment and flags.
type Config struct {
	RunAddress  string
	DatabaseURI string

	PaymentGatewayAddress string
	PaymentSecretKey      string
	WebhookCallbackToken  string
	Currency              string
	JWTSecret             string
	TokenTTL              time.Duration
	PasswordHashCost      int

	RedisAddress     string
	KafkaBrokers     []string
	OrderEventsTopic string

	OrderExpiration    time.Duration
	InvoiceDuration    time.Duration
	CheckoutTimeout    time.Duration
	SweepInterval      time.Duration
	SweepBatchSize     int
	SweeperEnabled     bool
	WorkerPoolSize     int
	CheckoutRateLimit  int
	CheckoutRateWindow time.Duration
	ShutdownTimeout    time.Duration
	LogLevel           string
}

const (
	defaultRunAddress         = ":8080"
	defaultGatewayAddress     = "https://api.xendit.co"
	defaultCurrency           = "IDR"
	defaultJWTSecret          = "change-me-in-production"
	defaultTokenTTL           = 24 * time.Hour
	defaultRedisAddress       = "localhost:6379"
	defaultKafkaBrokers       = "localhost:9092"
	defaultOrderEventsTopic   = "order-events"
	defaultOrderExpiration    = 1450 * time.Minute
	defaultInvoiceDuration    = 24 * time.Hour
	defaultCheckoutTimeout    = 15 * time.Second
	defaultSweepInterval      = 5 * time.Minute
	defaultSweepBatchSize     = 50
	defaultWorkerPoolSize     = 4
	defaultCheckoutRateLimit  = 10
	defaultCheckoutRateWindow = time.Minute
	defaultShutdownTimeout    = 10 * time.Second
	defaultLogLevel           = "info"

	minSweepInterval = time.Minute
)

// Load reads an optional .env file, then parses configuration from flags and environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return load(os.Args[1:], os.LookupEnv)
}

type envLookup func(string) (string, bool)

func load(args []string, lookup envLookup) (*Config, error) {
	cfg := &Config{
		RunAddress:            getString(lookup, "RUN_ADDRESS", defaultRunAddress),
		DatabaseURI:           getString(lookup, "DATABASE_URI", ""),
		PaymentGatewayAddress: getString(lookup, "PAYMENT_GATEWAY_ADDRESS", defaultGatewayAddress),
		PaymentSecretKey:      getString(lookup, "PAYMENT_SECRET_KEY", ""),
		WebhookCallbackToken:  getString(lookup, "WEBHOOK_CALLBACK_TOKEN", ""),
		Currency:              getString(lookup, "CURRENCY", defaultCurrency),
		JWTSecret:             getString(lookup, "JWT_SECRET", defaultJWTSecret),
		TokenTTL:              getDuration(lookup, "TOKEN_TTL", defaultTokenTTL),
		PasswordHashCost:      getInt(lookup, "PASSWORD_HASH_COST", 0),
		RedisAddress:          getString(lookup, "REDIS_ADDR", defaultRedisAddress),
		OrderEventsTopic:      getString(lookup, "ORDER_EVENTS_TOPIC", defaultOrderEventsTopic),
		OrderExpiration:       getDuration(lookup, "ORDER_EXPIRATION", defaultOrderExpiration),
		InvoiceDuration:       getDuration(lookup, "INVOICE_DURATION", defaultInvoiceDuration),
		CheckoutTimeout:       getDuration(lookup, "CHECKOUT_TIMEOUT", defaultCheckoutTimeout),
		SweepInterval:         getDuration(lookup, "SWEEP_INTERVAL", defaultSweepInterval),
		SweepBatchSize:        getInt(lookup, "SWEEP_BATCH_SIZE", defaultSweepBatchSize),
		SweeperEnabled:        getBool(lookup, "SWEEPER_ENABLED", true),
		WorkerPoolSize:        getInt(lookup, "WORKER_POOL_SIZE", defaultWorkerPoolSize),
		CheckoutRateLimit:     getInt(lookup, "CHECKOUT_RATE_LIMIT", defaultCheckoutRateLimit),
		CheckoutRateWindow:    getDuration(lookup, "CHECKOUT_RATE_WINDOW", defaultCheckoutRateWindow),
		ShutdownTimeout:       getDuration(lookup, "SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		LogLevel:              getString(lookup, "LOG_LEVEL", defaultLogLevel),
	}
	brokers := getString(lookup, "KAFKA_BROKERS", defaultKafkaBrokers)

	flags := flag.NewFlagSet("storefront", flag.ContinueOnError)
	flags.SetOutput(io.Discard)

	flags.StringVar(&cfg.RunAddress, "a", cfg.RunAddress, "HTTP server listen address")
	flags.StringVar(&cfg.DatabaseURI, "d", cfg.DatabaseURI, "PostgreSQL DSN")
	flags.StringVar(&cfg.PaymentGatewayAddress, "g", cfg.PaymentGatewayAddress, "Payment gateway base URL")
	flags.StringVar(&cfg.PaymentSecretKey, "payment-key", cfg.PaymentSecretKey, "Payment gateway secret key")
	flags.StringVar(&cfg.WebhookCallbackToken, "callback-token", cfg.WebhookCallbackToken, "Expected x-callback-token of payment webhooks")
	flags.StringVar(&cfg.Currency, "currency", cfg.Currency, "Invoice currency")
	flags.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "Secret for signing auth tokens")
	flags.DurationVar(&cfg.TokenTTL, "token-ttl", cfg.TokenTTL, "Lifetime of issued auth tokens")
	flags.IntVar(&cfg.PasswordHashCost, "hash-cost", cfg.PasswordHashCost, "bcrypt cost for stored passwords, 0 for the library default")
	flags.StringVar(&cfg.RedisAddress, "redis", cfg.RedisAddress, "Redis address")
	flags.StringVar(&brokers, "kafka", brokers, "Comma separated Kafka brokers")
	flags.StringVar(&cfg.OrderEventsTopic, "events-topic", cfg.OrderEventsTopic, "Kafka topic for order events")
	flags.DurationVar(&cfg.OrderExpiration, "order-expiration", cfg.OrderExpiration, "Time a pending order waits for payment")
	flags.DurationVar(&cfg.InvoiceDuration, "invoice-duration", cfg.InvoiceDuration, "Invoice validity")
	flags.DurationVar(&cfg.CheckoutTimeout, "checkout-timeout", cfg.CheckoutTimeout, "Checkout transaction deadline")
	flags.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "Interval between expiration sweeps")
	flags.IntVar(&cfg.SweepBatchSize, "sweep-batch", cfg.SweepBatchSize, "Maximum orders cancelled per sweep")
	flags.BoolVar(&cfg.SweeperEnabled, "sweeper", cfg.SweeperEnabled, "Run the expiration sweeper in this process")
	flags.IntVar(&cfg.WorkerPoolSize, "worker-pool", cfg.WorkerPoolSize, "Number of concurrent sweep workers")
	flags.IntVar(&cfg.CheckoutRateLimit, "checkout-rate", cfg.CheckoutRateLimit, "Checkouts allowed per user and window")
	flags.DurationVar(&cfg.CheckoutRateWindow, "checkout-window", cfg.CheckoutRateWindow, "Checkout rate limit window")
	flags.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "Graceful shutdown timeout")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")

	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	cfg.KafkaBrokers = splitList(brokers)

	secrets := []struct {
		env string
		dst *string
	}{
		{"JWT_SECRET_FILE", &cfg.JWTSecret},
		{"PAYMENT_SECRET_KEY_FILE", &cfg.PaymentSecretKey},
		{"WEBHOOK_CALLBACK_TOKEN_FILE", &cfg.WebhookCallbackToken},
	}
	for _, s := range secrets {
		if err := readSecretFile(lookup, s.env, s.dst); err != nil {
			return nil, err
		}
	}

	if cfg.OrderExpiration <= 0 {
		cfg.OrderExpiration = defaultOrderExpiration
	}
	if cfg.InvoiceDuration <= 0 {
		cfg.InvoiceDuration = defaultInvoiceDuration
	}
	if cfg.CheckoutTimeout <= 0 {
		cfg.CheckoutTimeout = defaultCheckoutTimeout
	}
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = defaultSweepBatchSize
	}
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = defaultWorkerPoolSize
	}
	if cfg.CheckoutRateLimit <= 0 {
		cfg.CheckoutRateLimit = defaultCheckoutRateLimit
	}
	if cfg.CheckoutRateWindow <= 0 {
		cfg.CheckoutRateWindow = defaultCheckoutRateWindow
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}

	switch {
	case cfg.DatabaseURI == "":
		return nil, fmt.Errorf("database URI must be provided")
	case cfg.PaymentSecretKey == "":
		return nil, fmt.Errorf("payment secret key must be provided")
	case cfg.WebhookCallbackToken == "":
		return nil, fmt.Errorf("webhook callback token must be provided")
	case cfg.SweepInterval < minSweepInterval:
		return nil, fmt.Errorf("sweep interval %s is below the minimum of %s", cfg.SweepInterval, minSweepInterval)
	case len(cfg.KafkaBrokers) == 0:
		return nil, fmt.Errorf("at least one kafka broker must be provided")
	}

	return cfg, nil
}

func readSecretFile(lookup envLookup, key string, dst *string) error {
	path, ok := lookup(key)
	if !ok || path == "" {
		return nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", strings.ToLower(key), err)
	}
	*dst = strings.TrimSpace(string(content))
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getString(lookup envLookup, key, def string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(lookup envLookup, key string, def int) int {
	if v, ok := lookup(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getBool(lookup envLookup, key string, def bool) bool {
	if v, ok := lookup(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDuration(lookup envLookup, key string, def time.Duration) time.Duration {
	if v, ok := lookup(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"organic-hub/database"
	awspkg "organic-hub/pkg/aws"
)

type Config struct {
	Env  string
	Port string

	Postgres      database.PostgresConfig
	RedisURL      string
	CacheRedisURL string
	CacheTTL      time.Duration
	CartTTL       time.Duration

	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	StripeAPIKey         string
	StripeWebhookSecret  string
	StripePublishableKey string
	Currency             string

	EventBackend    string
	OrderTopicARN   string
	KafkaBrokers    []string
	KafkaTopic      string
	PaymentQueueURL string

	AWSRegion          string
	AWSEndpoint        string
	AWSAccessKeyID     string
	AWSSecretKey       string
	UseSecrets         bool
	CloudWatchEnabled  bool
	CloudWatchLogGroup string
	MetricsEnabled     bool
	MetricsNamespace   string

	WishlistTable     string
	S3Bucket          string
	S3PublicURL       string
	FallbackStorePath string
	ReplayInterval    time.Duration

	FreeShippingThreshold float64
	ShippingFee           float64
	LowStockThreshold     int

	AdminEmail    string
	AdminPassword string

	AllowedOrigins []string
	RateLimit      float64
	RateBurst      int
}

// SecretSource supplies JSON secrets by name.
type SecretSource interface {
	GetSecretJSON(ctx context.Context, name string) (map[string]string, error)
}

const (
	secretDB     = "organic-hub/DB_CREDENTIALS"
	secretJWT    = "organic-hub/JWT"
	secretStripe = "organic-hub/STRIPE"
)

func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "8080"),
		Postgres: database.PostgresConfig{
			Host:     os.Getenv("POSTGRES_HOST"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DBName:   os.Getenv("POSTGRES_DB"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			TimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),
		},
		RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379/0"),
		CacheRedisURL: os.Getenv("CACHE_REDIS_URL"),
		CacheTTL:      getEnvDuration("CACHE_TTL", 5*time.Minute),
		CartTTL:       getEnvDuration("CART_TTL", 7*24*time.Hour),

		JWTSecret:  os.Getenv("JWT_SECRET"),
		AccessTTL:  getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTTL: getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),

		StripeAPIKey:         os.Getenv("STRIPE_API_KEY"),
		StripeWebhookSecret:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripePublishableKey: os.Getenv("STRIPE_PUBLISHABLE_KEY"),
		Currency:             strings.ToLower(getEnv("CURRENCY", "usd")),

		EventBackend:    strings.ToLower(getEnv("EVENT_BACKEND", "none")),
		OrderTopicARN:   os.Getenv("ORDER_SNS_TOPIC_ARN"),
		KafkaBrokers:    splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:      getEnv("KAFKA_TOPIC", "organic-hub.orders"),
		PaymentQueueURL: os.Getenv("PAYMENT_EVENTS_QUEUE_URL"),

		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		AWSEndpoint:        os.Getenv("AWS_ENDPOINT"),
		AWSAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretKey:       os.Getenv("AWS_SECRET_ACCESS_KEY"),
		UseSecrets:         os.Getenv("AWS_USE_SECRETS") == "true",
		CloudWatchEnabled:  os.Getenv("CLOUDWATCH_ENABLED") == "true",
		CloudWatchLogGroup: getEnv("CLOUDWATCH_LOG_GROUP", "/organic-hub/api"),
		MetricsEnabled:     os.Getenv("METRICS_ENABLED") == "true",
		MetricsNamespace:   getEnv("METRICS_NAMESPACE", "OrganicHub"),

		WishlistTable:     getEnv("WISHLIST_TABLE", "organic-hub-wishlist"),
		S3Bucket:          os.Getenv("AWS_S3_BUCKET"),
		S3PublicURL:       os.Getenv("AWS_S3_PUBLIC_URL"),
		FallbackStorePath: getEnv("FALLBACK_STORE_PATH", "data/fallback.json"),
		ReplayInterval:    getEnvDuration("REPLAY_INTERVAL", 30*time.Second),

		FreeShippingThreshold: getEnvFloat("FREE_SHIPPING_THRESHOLD", 50),
		ShippingFee:           getEnvFloat("SHIPPING_FEE", 5.99),
		LowStockThreshold:     getEnvInt("LOW_STOCK_THRESHOLD", 10),

		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		RateLimit:      getEnvFloat("RATE_LIMIT_RPS", 20),
		RateBurst:      getEnvInt("RATE_LIMIT_BURST", 40),
	}

	if cfg.UseSecrets {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		awsCfg, err := awspkg.LoadConfig(ctx, cfg.AWSOptions())
		if err != nil {
			return nil, err
		}
		cfg.applySecrets(ctx, awspkg.NewSecretsClient(awsCfg))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) AWSOptions() awspkg.Options {
	return awspkg.Options{
		Region:          c.AWSRegion,
		Endpoint:        c.AWSEndpoint,
		AccessKeyID:     c.AWSAccessKeyID,
		SecretAccessKey: c.AWSSecretKey,
	}
}

// applySecrets overrides credentials with values from Secrets Manager.
// Missing secrets keep the environment values.
func (c *Config) applySecrets(ctx context.Context, src SecretSource) {
	if m, err := src.GetSecretJSON(ctx, secretDB); err == nil {
		override(&c.Postgres.User, m["POSTGRES_USER"])
		override(&c.Postgres.Password, m["POSTGRES_PASSWORD"])
		override(&c.Postgres.DBName, m["POSTGRES_DB"])
		override(&c.Postgres.Host, m["POSTGRES_HOST"])
		override(&c.Postgres.Port, m["POSTGRES_PORT"])
	}
	if m, err := src.GetSecretJSON(ctx, secretJWT); err == nil {
		override(&c.JWTSecret, m["JWT_SECRET"])
	}
	if m, err := src.GetSecretJSON(ctx, secretStripe); err == nil {
		override(&c.StripeAPIKey, m["STRIPE_API_KEY"])
		override(&c.StripeWebhookSecret, m["STRIPE_WEBHOOK_SECRET"])
		override(&c.StripePublishableKey, m["STRIPE_PUBLISHABLE_KEY"])
	}
}

func (c *Config) Validate() error {
	p := c.Postgres
	if p.User == "" || p.Password == "" || p.DBName == "" || p.Host == "" {
		return fmt.Errorf("database config incomplete")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.EventBackend {
	case "none":
	case "sns":
		if c.OrderTopicARN == "" {
			return fmt.Errorf("ORDER_SNS_TOPIC_ARN is required when EVENT_BACKEND=sns")
		}
	case "kafka":
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when EVENT_BACKEND=kafka")
		}
	default:
		return fmt.Errorf("unknown EVENT_BACKEND %q", c.EventBackend)
	}
	if c.FreeShippingThreshold < 0 || c.ShippingFee < 0 {
		return fmt.Errorf("shipping amounts must not be negative")
	}
	return nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

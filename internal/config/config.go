package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds the runtime settings for the API server.
type Config struct {
	Port        string
	Environment string
	SiteURL     string
	LogLevel    string
	LogFormat   string

	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string

	AuthJWTSecret string
	AuthJWTIssuer string

	StripeSecretKey     string
	StripeWebhookSecret string
	StripePrices        PriceIDs

	RedisURL string

	VPICBaseURL     string
	RecallsBaseURL  string
	UpstreamTimeout time.Duration
	VINCacheTTL     time.Duration
	RecallCacheTTL  time.Duration

	InternalAPIToken string
	CORSOrigins      []string
	MaxRequestSize   int64
	PublicRateLimit  float64
	PublicRateBurst  int

	SentryDSN         string
	SentryEnvironment string
}

// PriceIDs are the Stripe price identifiers used to seed the plan catalog.
type PriceIDs struct {
	ProMonthly        string
	ProYearly         string
	EnterpriseMonthly string
	EnterpriseYearly  string
}

// Load reads configuration from the environment, after loading a .env file if one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("failed to load .env file")
	}

	upstreamTimeout, err := GetDuration("UPSTREAM_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	vinTTL, err := GetDuration("VIN_CACHE_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	recallTTL, err := GetDuration("RECALL_CACHE_TTL", time.Hour)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:        GetEnv("PORT", "8080"),
		Environment: GetEnv("ENVIRONMENT", "development"),
		SiteURL:     strings.TrimRight(GetEnv("SITE_URL", "http://localhost:3000"), "/"),
		LogLevel:    GetEnv("LOG_LEVEL", "info"),
		LogFormat:   GetEnv("LOG_FORMAT", ""),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBHost:      GetEnv("DB_HOST", "localhost"),
		DBPort:      GetEnv("DB_PORT", "5432"),
		DBUser:      GetEnv("DB_USER", "postgres"),
		DBPassword:  os.Getenv("DB_PASSWORD"),
		DBName:      GetEnv("DB_NAME", "myautowhiz"),
		DBSSLMode:   GetEnv("DB_SSLMODE", "disable"),

		AuthJWTSecret: os.Getenv("AUTH_JWT_SECRET"),
		AuthJWTIssuer: os.Getenv("AUTH_JWT_ISSUER"),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripePrices: PriceIDs{
			ProMonthly:        os.Getenv("STRIPE_PRICE_PRO_MONTHLY"),
			ProYearly:         os.Getenv("STRIPE_PRICE_PRO_YEARLY"),
			EnterpriseMonthly: os.Getenv("STRIPE_PRICE_ENTERPRISE_MONTHLY"),
			EnterpriseYearly:  os.Getenv("STRIPE_PRICE_ENTERPRISE_YEARLY"),
		},

		RedisURL: os.Getenv("REDIS_URL"),

		VPICBaseURL:     strings.TrimRight(GetEnv("VPIC_BASE_URL", "https://vpic.nhtsa.dot.gov/api/vehicles"), "/"),
		RecallsBaseURL:  strings.TrimRight(GetEnv("RECALLS_BASE_URL", "https://api.nhtsa.gov"), "/"),
		UpstreamTimeout: upstreamTimeout,
		VINCacheTTL:     vinTTL,
		RecallCacheTTL:  recallTTL,

		InternalAPIToken: os.Getenv("INTERNAL_API_TOKEN"),
		CORSOrigins:      splitList(GetEnv("CORS_ORIGINS", "http://localhost:3000")),
		MaxRequestSize:   GetInt64("MAX_REQUEST_SIZE", 10<<20),
		PublicRateLimit:  GetFloat("PUBLIC_RATE_LIMIT", 2),
		PublicRateBurst:  int(GetInt64("PUBLIC_RATE_BURST", 20)),

		SentryDSN:         os.Getenv("SENTRY_DSN"),
		SentryEnvironment: GetEnv("SENTRY_ENVIRONMENT", GetEnv("ENVIRONMENT", "development")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Validate rejects configurations that cannot safely serve traffic.
func (c *Config) Validate() error {
	if !c.IsProduction() {
		return nil
	}
	var missing []string
	if c.StripeWebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if c.StripeSecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if c.AuthJWTSecret == "" {
		missing = append(missing, "AUTH_JWT_SECRET")
	}
	if c.DatabaseURL == "" && c.DBPassword == "" {
		missing = append(missing, "DATABASE_URL or DB_PASSWORD")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// PostgresDSN returns DATABASE_URL when set, otherwise a key/value DSN built from DB_* settings.
func (c *Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

// GetEnv gets an environment variable or returns a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetDuration parses a Go duration from the environment.
func GetDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// GetInt64 returns an integer setting, falling back to the default when unset or malformed.
func GetInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

// GetFloat returns a float setting, falling back to the default when unset or malformed.
func GetFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

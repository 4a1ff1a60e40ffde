package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("CORS_ORIGINS", "https://app.myautowhiz.com, http://localhost:3000 ,")
	t.Setenv("SITE_URL", "https://app.myautowhiz.com/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, 24*time.Hour, cfg.VINCacheTTL)
	assert.Equal(t, "https://app.myautowhiz.com", cfg.SiteURL)
	assert.Equal(t, []string{"https://app.myautowhiz.com", "http://localhost:3000"}, cfg.CORSOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("UPSTREAM_TIMEOUT", "soon")
	_, err := Load()
	assert.ErrorContains(t, err, "UPSTREAM_TIMEOUT")
}

func TestValidateProduction(t *testing.T) {
	cfg := &Config{Environment: "production"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STRIPE_WEBHOOK_SECRET")
	assert.Contains(t, err.Error(), "AUTH_JWT_SECRET")

	cfg = &Config{
		Environment:         "Production",
		StripeWebhookSecret: "whsec_test",
		StripeSecretKey:     "sk_test",
		AuthJWTSecret:       "secret",
		DatabaseURL:         "postgres://localhost/myautowhiz",
	}
	assert.NoError(t, cfg.Validate())
}

func TestPostgresDSN(t *testing.T) {
	cfg := &Config{DBHost: "db", DBUser: "app", DBPassword: "pw", DBName: "mw", DBPort: "5432", DBSSLMode: "require"}
	assert.Equal(t, "host=db user=app password=pw dbname=mw port=5432 sslmode=require TimeZone=UTC", cfg.PostgresDSN())

	cfg.DatabaseURL = "postgres://example"
	assert.Equal(t, "postgres://example", cfg.PostgresDSN())
}

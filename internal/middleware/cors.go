package middleware

import (
	"fmt"
	"net/url"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/sirupsen/logrus"
)

// CORSConfig builds the CORS policy for the browser dashboard.
func CORSConfig(origins []string, production bool) (cors.Config, error) {
	config := cors.DefaultConfig()

	var allowed []string
	for _, origin := range origins {
		if err := validateCORSOrigin(origin); err != nil {
			logrus.WithError(err).WithField("origin", origin).Warn("ignoring invalid CORS origin")
			continue
		}
		allowed = append(allowed, origin)
	}

	if !production && !containsString(allowed, "http://localhost:3000") {
		allowed = append(allowed, "http://localhost:3000")
	}
	if len(allowed) == 0 {
		return config, fmt.Errorf("no valid CORS origins configured")
	}
	if containsString(allowed, "*") && production {
		return config, fmt.Errorf("wildcard CORS origin is not allowed in production")
	}

	config.AllowOrigins = allowed
	config.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{
		"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID",
	}
	config.ExposeHeaders = []string{
		"Content-Length", "Content-Type", "X-Request-ID", "Retry-After",
	}
	config.AllowCredentials = true
	config.MaxAge = 12 * time.Hour

	logrus.WithField("origins", len(allowed)).Info("CORS configured")
	return config, nil
}

func validateCORSOrigin(origin string) error {
	if origin == "*" {
		return nil
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid scheme: %s (must be http or https)", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("missing host in origin")
	}
	return nil
}

func containsString(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

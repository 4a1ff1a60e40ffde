package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// InternalAuth guards worker-only endpoints with a shared bearer token.
// An empty configured token disables the endpoints entirely.
func InternalAuth(expected string) gin.HandlerFunc {
	expectedHash := sha256.Sum256([]byte(expected))

	return func(c *gin.Context) {
		if expected == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Internal API disabled"})
			c.Abort()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing authorization header"})
			c.Abort()
			return
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format"})
			c.Abort()
			return
		}

		got := sha256.Sum256([]byte(parts[1]))
		if subtle.ConstantTimeCompare(got[:], expectedHash[:]) != 1 {
			logrus.WithField("client_ip", c.ClientIP()).Warn("rejected internal API token")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Next()
	}
}

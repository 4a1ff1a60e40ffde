package utils

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	apperrors "myautowhiz-backend/internal/errors"
)

// SendErrorResponse sends a standardized error response
func SendErrorResponse(c *gin.Context, statusCode int, appErr *apperrors.AppError) {
	if appErr == nil {
		appErr = &apperrors.AppError{Code: "UNKNOWN_ERROR", Message: "An unexpected error occurred"}
	}

	c.JSON(statusCode, gin.H{
		"error":   appErr.Code,
		"message": appErr.Message,
		"details": appErr.Details,
	})

	if statusCode >= http.StatusInternalServerError {
		extras := map[string]interface{}{
			"status_code": statusCode,
			"error_code":  appErr.Code,
			"details":     appErr.Details,
		}
		if c != nil && c.FullPath() != "" {
			extras["route"] = c.FullPath()
		}
		CaptureSentryError(c, appErr.Err, fmt.Sprintf("SendErrorResponse:%s", appErr.Code), extras)
	}
}

// RespondError translates a component error into the HTTP error taxonomy.
func RespondError(c *gin.Context, err error) {
	appErr := apperrors.From(err)
	status := appErr.StatusCode()
	if status >= http.StatusInternalServerError {
		logrus.WithFields(logrus.Fields{
			"path":   c.FullPath(),
			"method": c.Request.Method,
			"code":   appErr.Code,
		}).WithError(err).Error("request failed")
	}
	SendErrorResponse(c, status, appErr)
}

// GetClientIP extracts the client IP from the request
func GetClientIP(c *gin.Context) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		ips := strings.Split(forwarded, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if realIP := c.GetHeader("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}

	return c.ClientIP()
}

// QueryInt parses an integer query parameter, clamping it into [min, max].
func QueryInt(c *gin.Context, key string, def, min, max int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if n < min {
		return min
	}
	if max > 0 && n > max {
		return max
	}
	return n
}

package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	apperrors "myautowhiz-backend/internal/errors"
	"myautowhiz-backend/internal/models"
	"myautowhiz-backend/pkg/utils"
)

// AuthCookieName is the cookie the web client stores the access token in.
const AuthCookieName = "sb-access-token"

func tokenFromRequest(c *gin.Context) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	token, err := c.Cookie(AuthCookieName)
	if err != nil {
		return ""
	}
	return token
}

// Middleware requires a valid session and attaches the Identity to the request context.
func Middleware(v *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Allow OPTIONS requests to pass through for CORS preflight
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		tokenString := tokenFromRequest(c)
		if tokenString == "" {
			utils.RespondError(c, apperrors.Unauthorized("No authorization token provided"))
			c.Abort()
			return
		}

		identity, err := v.Verify(tokenString)
		if err != nil {
			logrus.WithError(err).Debug("rejected session token")
			utils.RespondError(c, apperrors.Unauthorized("Invalid token"))
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), identity))
		c.Next()
	}
}

// Optional attaches an Identity when a valid token is present but never rejects the request.
func Optional(v *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString := tokenFromRequest(c); tokenString != "" {
			if identity, err := v.Verify(tokenString); err == nil {
				c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), identity))
			}
		}
		c.Next()
	}
}

// RequireRole restricts a route to callers whose profile carries one of the roles.
func RequireRole(db *gorm.DB, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserID(c)
		if userID == "" {
			utils.RespondError(c, apperrors.Unauthorized("Authentication required"))
			c.Abort()
			return
		}

		var profile models.Profile
		if err := db.WithContext(c.Request.Context()).Select("id", "role").Where("id = ?", userID).First(&profile).Error; err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			c.Abort()
			return
		}

		for _, role := range roles {
			if profile.Role == role {
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
		c.Abort()
	}
}

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"myautowhiz-backend/internal/database/dbtest"
	"myautowhiz-backend/internal/models"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	handlers := append(mw, func(c *gin.Context) {
		id, ok := IdentityFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusOK, gin.H{"user_id": ""})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": id.UserID, "email": id.Email})
	})
	router.GET("/me", handlers...)
	return router
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	router := newRouter(Middleware(NewVerifier(testSecret, "")))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
}

func TestMiddlewareAcceptsBearerToken(t *testing.T) {
	token, err := IssueToken(testSecret, "user-1", "driver@example.com", time.Hour)
	require.NoError(t, err)

	router := newRouter(Middleware(NewVerifier(testSecret, "")))
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"user-1"`)
	assert.Contains(t, w.Body.String(), "driver@example.com")
}

func TestMiddlewareAcceptsCookieToken(t *testing.T) {
	token, err := IssueToken(testSecret, "user-2", "", time.Hour)
	require.NoError(t, err)

	router := newRouter(Middleware(NewVerifier(testSecret, "")))
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: AuthCookieName, Value: token})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"user-2"`)
}

func TestMiddlewareRejectsBadTokens(t *testing.T) {
	expired, err := IssueToken(testSecret, "user-1", "", -time.Minute)
	require.NoError(t, err)
	wrongKey, err := IssueToken("other-secret", "user-1", "", time.Hour)
	require.NoError(t, err)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	router := newRouter(Middleware(NewVerifier(testSecret, "")))
	for name, token := range map[string]string{
		"expired":    expired,
		"wrong key":  wrongKey,
		"no subject": noSubject,
		"garbage":    "not-a-jwt",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestVerifierChecksIssuer(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		AppMetadata: map[string]any{"role": "admin"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-3",
			Issuer:    "https://auth.example.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	id, err := NewVerifier(testSecret, "https://auth.example.com").Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-3", id.UserID)
	assert.Equal(t, "admin", id.Role)

	_, err = NewVerifier(testSecret, "https://other.example.com").Verify(token)
	assert.Error(t, err)
}

func TestOptionalNeverRejects(t *testing.T) {
	router := newRouter(Optional(NewVerifier(testSecret, "")))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":""`)
}

func TestRequireRole(t *testing.T) {
	db := dbtest.New(t)
	require.NoError(t, db.Create(&models.Profile{ID: "admin-1", Role: models.RoleAdmin}).Error)
	require.NoError(t, db.Create(&models.Profile{ID: "user-1", Role: models.RoleUser}).Error)

	router := newRouter(Middleware(NewVerifier(testSecret, "")), RequireRole(db, models.RoleAdmin, models.RoleSuperAdmin))

	for userID, want := range map[string]int{"admin-1": http.StatusOK, "user-1": http.StatusForbidden, "ghost": http.StatusForbidden} {
		token, err := IssueToken(testSecret, userID, "", time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, userID)
	}
}

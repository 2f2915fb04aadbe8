package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heritagelanka/ceylon360-backend/internal/models"
	"github.com/heritagelanka/ceylon360-backend/pkg/jwt"
)

func setupTestJWTService() *jwt.Service {
	return jwt.NewService(
		"test-access-secret-key-123456789",
		"test-refresh-secret-key-123456789",
		time.Hour,
		24*time.Hour,
	)
}

func setupTestRouter() (*gin.Engine, *logrus.Logger) {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return gin.New(), logger
}

func get(router *gin.Engine, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_Success(t *testing.T) {
	jwtService := setupTestJWTService()
	router, logger := setupTestRouter()

	token, err := jwtService.GenerateAccessToken("u-nimal", "nimal@example.lk", "TRAVELER")
	require.NoError(t, err)

	router.GET("/protected", AuthMiddleware(jwtService, logger), func(c *gin.Context) {
		userCtx, exists := GetUserContext(c)
		require.True(t, exists)
		actor := userCtx.Actor()
		c.JSON(http.StatusOK, gin.H{"user_id": actor.UserID, "role": actor.Role})
	})

	w := get(router, "/protected", "Bearer "+token)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "u-nimal")
	assert.Contains(t, w.Body.String(), "TRAVELER")
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	jwtService := setupTestJWTService()
	wrongService := jwt.NewService("wrong-secret", "wrong-refresh", time.Hour, time.Hour)
	expiredService := jwt.NewService("test-access-secret-key-123456789", "r", -time.Minute, time.Hour)

	wrongToken, err := wrongService.GenerateAccessToken("u1", "a@example.lk", "GUIDE")
	require.NoError(t, err)
	expiredToken, err := expiredService.GenerateAccessToken("u1", "a@example.lk", "GUIDE")
	require.NoError(t, err)
	refreshToken, err := jwtService.GenerateRefreshToken("u1")
	require.NoError(t, err)
	unknownRole, err := jwtService.GenerateAccessToken("u1", "a@example.lk", "DRIVER")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"missing header", "", "MISSING_AUTH_HEADER"},
		{"basic scheme", "Basic dXNlcjpwYXNz", "INVALID_AUTH_FORMAT"},
		{"empty bearer", "Bearer   ", "INVALID_AUTH_FORMAT"},
		{"garbage token", "Bearer not-a-jwt", "INVALID_TOKEN"},
		{"wrong secret", "Bearer " + wrongToken, "INVALID_TOKEN"},
		{"expired", "Bearer " + expiredToken, "TOKEN_EXPIRED"},
		{"refresh token", "Bearer " + refreshToken, "INVALID_TOKEN"},
		{"unknown role", "Bearer " + unknownRole, "INVALID_TOKEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, logger := setupTestRouter()
			router.GET("/protected", AuthMiddleware(jwtService, logger), func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"message": "should not reach here"})
			})

			w := get(router, "/protected", tt.header)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tt.code)
			assert.NotContains(t, w.Body.String(), "should not reach here")
		})
	}
}

func TestRequireRole(t *testing.T) {
	jwtService := setupTestJWTService()
	guideToken, err := jwtService.GenerateAccessToken("u-kamal", "kamal@example.lk", "GUIDE")
	require.NoError(t, err)

	router, logger := setupTestRouter()
	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "ok"}) }
	router.GET("/guider", AuthMiddleware(jwtService, logger), RequireRole(models.RoleGuide), ok)
	router.GET("/admin", AuthMiddleware(jwtService, logger), RequireRole(models.RoleAdmin), ok)
	router.GET("/any", AuthMiddleware(jwtService, logger), RequireRole(models.RoleAdmin, models.RoleGuide), ok)
	router.GET("/no-auth", RequireRole(models.RoleAdmin), ok)

	t.Run("Role matches", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, get(router, "/guider", "Bearer "+guideToken).Code)
	})

	t.Run("Role missing", func(t *testing.T) {
		w := get(router, "/admin", "Bearer "+guideToken)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "INSUFFICIENT_PERMISSIONS")
	})

	t.Run("One of several roles", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, get(router, "/any", "Bearer "+guideToken).Code)
	})

	t.Run("Without auth middleware", func(t *testing.T) {
		w := get(router, "/no-auth", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "MISSING_USER_CONTEXT")
	})
}

func TestMustGetUserContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	assert.Panics(t, func() { MustGetUserContext(c) })

	c.Set(UserContextKey, UserContext{UserID: "u1", Role: models.RoleAdmin})
	assert.True(t, MustGetUserContext(c).Actor().IsAdmin())
}

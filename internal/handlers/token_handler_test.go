package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/heritagelanka/ceylon360-backend/internal/database"
	"github.com/heritagelanka/ceylon360-backend/internal/models"
	"github.com/heritagelanka/ceylon360-backend/internal/services"
	"github.com/heritagelanka/ceylon360-backend/pkg/jwt"
)

var userRowColumns = []string{
	"id", "email", "password_hash", "name", "phone", "role", "telegram_chat_id", "created_at", "updated_at",
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// setupTestDB creates a mock database for testing
func setupTestDB(t *testing.T) (*database.PostgresDB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return database.Wrap(mockDB), mock
}

func setupTokenTestHandler(db database.DB) (*AuthHandler, *jwt.Service) {
	jwtService := jwt.NewService("test-secret", "test-refresh-secret", time.Hour, 7*24*time.Hour)
	clock := fixedClock{now: time.Now()}
	authService := services.NewAuthService(database.NewUserRepository(db), jwtService, bcrypt.MinCost, clock, quietLogger())
	return NewAuthHandler(authService, quietLogger()), jwtService
}

func postJSON(handler gin.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	payload, _ := json.Marshal(body)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(payload))
	c.Request.Header.Set("Content-Type", "application/json")

	handler(c)
	return w
}

func userRow(id, email, password string, role models.UserRole) *sqlmock.Rows {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	now := time.Now()
	return sqlmock.NewRows(userRowColumns).
		AddRow(id, email, string(hash), "Nimal", nil, string(role), nil, now, now)
}

func TestLogin_Success(t *testing.T) {
	db, mock := setupTestDB(t)
	handler, jwtService := setupTokenTestHandler(db)

	mock.ExpectQuery(`FROM users WHERE email = \$1`).
		WithArgs("nimal@example.lk").
		WillReturnRows(userRow("u-nimal", "nimal@example.lk", "s3cret-pass", models.RoleTraveler))

	w := postJSON(handler.Login, models.LoginRequest{Email: "Nimal@Example.lk", Password: "s3cret-pass"})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp models.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotContains(t, w.Body.String(), "password_hash")

	claims, err := jwtService.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u-nimal", claims.UserID)
	assert.Equal(t, "TRAVELER", claims.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogin_WrongPassword(t *testing.T) {
	db, mock := setupTestDB(t)
	handler, _ := setupTokenTestHandler(db)

	mock.ExpectQuery(`FROM users WHERE email = \$1`).
		WillReturnRows(userRow("u-nimal", "nimal@example.lk", "s3cret-pass", models.RoleTraveler))

	w := postJSON(handler.Login, models.LoginRequest{Email: "nimal@example.lk", Password: "guess"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_credentials")
}

func TestLogin_BadBody(t *testing.T) {
	db, _ := setupTestDB(t)
	handler, _ := setupTokenTestHandler(db)

	w := postJSON(handler.Login, gin.H{"email": "not-an-email"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation_error")
}

func TestRefreshToken_Success(t *testing.T) {
	db, mock := setupTestDB(t)
	handler, jwtService := setupTokenTestHandler(db)

	refresh, err := jwtService.GenerateRefreshToken("u-kamal")
	require.NoError(t, err)

	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs("u-kamal").
		WillReturnRows(userRow("u-kamal", "kamal@example.lk", "pw-123456", models.RoleGuide))

	w := postJSON(handler.RefreshToken, models.RefreshTokenRequest{RefreshToken: refresh})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp models.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	claims, err := jwtService.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "GUIDE", claims.Role)
}

func TestRefreshToken_Rejected(t *testing.T) {
	db, _ := setupTestDB(t)
	handler, jwtService := setupTokenTestHandler(db)

	access, err := jwtService.GenerateAccessToken("u-kamal", "kamal@example.lk", "GUIDE")
	require.NoError(t, err)

	for _, token := range []string{"garbage", access} {
		w := postJSON(handler.RefreshToken, models.RefreshTokenRequest{RefreshToken: token})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "invalid_refresh_token")
	}
}

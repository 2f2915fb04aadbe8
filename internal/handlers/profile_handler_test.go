package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heritagelanka/ceylon360-backend/internal/middleware"
	"github.com/heritagelanka/ceylon360-backend/internal/models"
)

// setupAuthenticatedContext creates a Gin context with authenticated user
func setupAuthenticatedContext(userID string, role models.UserRole, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(http.MethodPost, "/", reader)
	c.Request.Header.Set("Content-Type", "application/json")

	// Simulates AuthMiddleware
	c.Set(middleware.UserContextKey, middleware.UserContext{
		UserID: userID,
		Email:  "nimal@example.lk",
		Role:   role,
	})

	return c, w
}

func TestMe_Success(t *testing.T) {
	db, mock := setupTestDB(t)
	handler, _ := setupTokenTestHandler(db)

	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs("u-nimal").
		WillReturnRows(userRow("u-nimal", "nimal@example.lk", "pw-123456", models.RoleTraveler))

	c, w := setupAuthenticatedContext("u-nimal", models.RoleTraveler, nil)
	handler.Me(c)

	require.Equal(t, http.StatusOK, w.Code)
	var user models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	assert.Equal(t, "u-nimal", user.ID)
	assert.Empty(t, user.PasswordHash)
}

func TestMe_UserNotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	handler, _ := setupTokenTestHandler(db)

	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs("u-gone").
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	c, w := setupAuthenticatedContext("u-gone", models.RoleTraveler, nil)
	handler.Me(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	var response ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "not_found", response.Error)
}

func TestLinkTelegram_Success(t *testing.T) {
	db, mock := setupTestDB(t)
	handler, _ := setupTokenTestHandler(db)

	mock.ExpectExec(`UPDATE users SET telegram_chat_id = \$2`).
		WithArgs("u-nimal", int64(777001)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs("u-nimal").
		WillReturnRows(userRow("u-nimal", "nimal@example.lk", "pw-123456", models.RoleTraveler))

	c, w := setupAuthenticatedContext("u-nimal", models.RoleTraveler, LinkTelegramRequest{ChatID: 777001})
	handler.LinkTelegram(c)

	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkTelegram_MissingChatID(t *testing.T) {
	db, _ := setupTestDB(t)
	handler, _ := setupTokenTestHandler(db)

	c, w := setupAuthenticatedContext("u-nimal", models.RoleTraveler, gin.H{})
	handler.LinkTelegram(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

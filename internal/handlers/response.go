package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/heritagelanka/ceylon360-backend/internal/middleware"
	"github.com/heritagelanka/ceylon360-backend/internal/services"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// errorKinds maps service error kinds to HTTP statuses, checked in order
var errorKinds = []struct {
	kind   error
	status int
	code   string
}{
	{services.ErrInvalidCredential, http.StatusUnauthorized, "invalid_credentials"},
	{services.ErrNotFound, http.StatusNotFound, "not_found"},
	{services.ErrForbidden, http.StatusForbidden, "forbidden"},
	{services.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{services.ErrConflict, http.StatusConflict, "conflict"},
	{services.ErrPreconditionFailed, http.StatusPreconditionFailed, "precondition_failed"},
	{services.ErrValidation, http.StatusBadRequest, "validation_error"},
	{services.ErrUpstream, http.StatusBadGateway, "upstream_failure"},
}

// respondError writes the status and envelope for a service error. Unknown
// errors are logged and reported as 500 without their details.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	for _, k := range errorKinds {
		if errors.Is(err, k.kind) {
			if k.status >= http.StatusInternalServerError {
				logger.WithError(err).WithField("path", c.FullPath()).Warn("Upstream failure")
			}
			c.JSON(k.status, ErrorResponse{Error: k.code, Message: err.Error()})
			return
		}
	}

	_ = c.Error(err)
	logger.WithError(err).WithField("path", c.FullPath()).Error("Unhandled service error")
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An unexpected error occurred",
	})
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "validation_error",
		Message: err.Error(),
	})
}

// actor returns the caller set by AuthMiddleware
func actor(c *gin.Context) services.Actor {
	return middleware.MustGetUserContext(c).Actor()
}

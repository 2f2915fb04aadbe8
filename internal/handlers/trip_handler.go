package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/heritagelanka/ceylon360-backend/internal/models"
	"github.com/heritagelanka/ceylon360-backend/internal/services"
)

// TripHandler handles trip planning and lifecycle requests for every role
type TripHandler struct {
	trips  *services.TripService
	logger *logrus.Logger
}

// NewTripHandler creates a new trip handler
func NewTripHandler(trips *services.TripService, logger *logrus.Logger) *TripHandler {
	return &TripHandler{
		trips:  trips,
		logger: logger,
	}
}

// CreateTrip handles POST /api/v1/traveler/trips
func (h *TripHandler) CreateTrip(c *gin.Context) {
	var req models.CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	trip, err := h.trips.CreateTrip(c.Request.Context(), actor(c), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, trip)
}

// ListTrips handles GET /api/v1/{traveler,guider}/trips
func (h *TripHandler) ListTrips(c *gin.Context) {
	trips, err := h.trips.ListTrips(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trips": trips,
		"total": len(trips),
	})
}

// ListAllTrips handles GET /api/v1/admin/trips?status=
func (h *TripHandler) ListAllTrips(c *gin.Context) {
	status := models.TripStatus(c.Query("status"))
	if status != "" && !status.IsValid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Unknown trip status: " + string(status),
		})
		return
	}

	trips, err := h.trips.ListAllTrips(c.Request.Context(), actor(c), status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trips": trips,
		"total": len(trips),
	})
}

// GetTrip handles GET /api/v1/{traveler,guider,admin}/trips/:id
func (h *TripHandler) GetTrip(c *gin.Context) {
	trip, err := h.trips.GetTrip(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, trip)
}

// ConfirmTrip handles POST /api/v1/traveler/trips/:id/confirm
func (h *TripHandler) ConfirmTrip(c *gin.Context) {
	h.transition(c, h.trips.ConfirmTrip)
}

// StartTrip handles POST /api/v1/{traveler,guider}/trips/:id/start
func (h *TripHandler) StartTrip(c *gin.Context) {
	h.transition(c, h.trips.StartTrip)
}

// CompleteTrip handles POST /api/v1/{traveler,guider}/trips/:id/complete
func (h *TripHandler) CompleteTrip(c *gin.Context) {
	h.transition(c, h.trips.CompleteTrip)
}

// CancelTrip handles POST /api/v1/{traveler,admin}/trips/:id/cancel
func (h *TripHandler) CancelTrip(c *gin.Context) {
	h.transition(c, h.trips.CancelTrip)
}

// DeleteTrip handles DELETE /api/v1/traveler/trips/:id
func (h *TripHandler) DeleteTrip(c *gin.Context) {
	if err := h.trips.DeleteTrip(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Trip deleted"})
}

type transitionFunc func(ctx context.Context, actor services.Actor, tripID string) (*models.Trip, error)

func (h *TripHandler) transition(c *gin.Context, fn transitionFunc) {
	trip, err := fn(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, trip)
}

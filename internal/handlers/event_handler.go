package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/heritagelanka/ceylon360-backend/internal/models"
	"github.com/heritagelanka/ceylon360-backend/internal/services"
)

// EventHandler handles cultural events and ticket sales
type EventHandler struct {
	events *services.EventService
	logger *logrus.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler(events *services.EventService, logger *logrus.Logger) *EventHandler {
	return &EventHandler{events: events, logger: logger}
}

// ListEvents handles GET /api/v1/events
func (h *EventHandler) ListEvents(c *gin.Context) {
	events, err := h.events.ListEvents(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events, "total": len(events)})
}

// GetEvent handles GET /api/v1/events/:id
func (h *EventHandler) GetEvent(c *gin.Context) {
	event, err := h.events.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

// CreateEvent handles POST /api/v1/admin/events
func (h *EventHandler) CreateEvent(c *gin.Context) {
	var req models.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	event, err := h.events.CreateEvent(c.Request.Context(), actor(c), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, event)
}

// PurchaseTicket handles POST /api/v1/traveler/events/:id/tickets
func (h *EventHandler) PurchaseTicket(c *gin.Context) {
	var req models.PurchaseTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	session, err := h.events.PurchaseTicket(c.Request.Context(), actor(c), c.Param("id"), req.Quantity)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/heritagelanka/ceylon360-backend/internal/services"
)

// PaymentHandler handles trip checkout and the gateway webhook
type PaymentHandler struct {
	payments *services.PaymentService
	logger   *logrus.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(payments *services.PaymentService, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		logger:   logger,
	}
}

// RequestPayment handles POST /api/v1/traveler/trips/:id/payment
func (h *PaymentHandler) RequestPayment(c *gin.Context) {
	session, err := h.payments.RequestPayment(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

// GetTripPayment handles GET /api/v1/traveler/trips/:id/payment
func (h *PaymentHandler) GetTripPayment(c *gin.Context) {
	p, err := h.payments.GetTripPayment(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

// Webhook handles POST /api/v1/payments/webhook. The gateway only needs a
// 2xx to stop retrying, so replays of settled payments also return 200.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		respondBindError(c, err)
		return
	}

	p, err := h.payments.MarkPaid(c.Request.Context(), body)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payment_id": p.ID,
		"status":     p.Status,
	})
}

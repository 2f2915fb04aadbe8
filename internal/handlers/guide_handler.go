package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/heritagelanka/ceylon360-backend/internal/models"
	"github.com/heritagelanka/ceylon360-backend/internal/services"
	"github.com/heritagelanka/ceylon360-backend/internal/utils"
)

// GuideHandler handles trip matching and start verification
type GuideHandler struct {
	matching     *services.GuideMatchingService
	verification *services.VerificationService
	logger       *logrus.Logger
}

// NewGuideHandler creates a new guide handler
func NewGuideHandler(
	matching *services.GuideMatchingService,
	verification *services.VerificationService,
	logger *logrus.Logger,
) *GuideHandler {
	return &GuideHandler{
		matching:     matching,
		verification: verification,
		logger:       logger,
	}
}

// ListAvailableTrips handles GET /api/v1/guider/trips/available
func (h *GuideHandler) ListAvailableTrips(c *gin.Context) {
	trips, err := h.matching.ListAvailableTrips(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trips": trips,
		"total": len(trips),
	})
}

// AcceptTrip handles POST /api/v1/guider/trips/:id/accept
func (h *GuideHandler) AcceptTrip(c *gin.Context) {
	trip, err := h.matching.AcceptTrip(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, trip)
}

// IssueOTP handles POST /api/v1/traveler/trips/:id/otp
func (h *GuideHandler) IssueOTP(c *gin.Context) {
	var req models.IssueOTPRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
	}

	resp, err := h.verification.IssueOTP(c.Request.Context(), actor(c), c.Param("id"), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// VerifyOTP handles POST /api/v1/guider/trips/:id/verify-otp
func (h *GuideHandler) VerifyOTP(c *gin.Context) {
	var req models.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	meta := services.RequestMeta{
		IPAddress: utils.ClientIP(c),
		UserAgent: c.Request.UserAgent(),
	}
	resp, err := h.verification.VerifyOTP(c.Request.Context(), actor(c), c.Param("id"), &req, meta)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

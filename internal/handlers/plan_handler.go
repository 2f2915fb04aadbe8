package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/heritagelanka/ceylon360-backend/internal/planner"
	"github.com/heritagelanka/ceylon360-backend/internal/services"
)

// PlanHandler handles AI itinerary generation
type PlanHandler struct {
	plans  *services.PlanService
	logger *logrus.Logger
}

// NewPlanHandler creates a new plan handler
func NewPlanHandler(plans *services.PlanService, logger *logrus.Logger) *PlanHandler {
	return &PlanHandler{plans: plans, logger: logger}
}

// GeneratePlan handles POST /api/v1/traveler/plans/generate
func (h *PlanHandler) GeneratePlan(c *gin.Context) {
	var req planner.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	plan, err := h.plans.GeneratePlan(c.Request.Context(), actor(c), req)
	if err != nil {
		if services.IsRetryable(err) {
			c.Header("Retry-After", "30")
		}
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, plan)
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/heritagelanka/ceylon360-backend/internal/services"
)

// AdminHandler handles scheduler operations for administrators
type AdminHandler struct {
	cron   *services.CronService
	logger *logrus.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(cron *services.CronService, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		cron:   cron,
		logger: logger,
	}
}

// GetCronStatus handles GET /api/v1/admin/cron/status
func (h *AdminHandler) GetCronStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.cron.GetJobStatus())
}

// RunTripStartReminders handles POST /api/v1/admin/cron/trip-start/run
func (h *AdminHandler) RunTripStartReminders(c *gin.Context) {
	h.runJob(c, h.cron.RunTripStartNow)
}

// RunDailyItineraryReminders handles POST /api/v1/admin/cron/daily-itinerary/run
func (h *AdminHandler) RunDailyItineraryReminders(c *gin.Context) {
	h.runJob(c, h.cron.RunDailyItineraryNow)
}

func (h *AdminHandler) runJob(c *gin.Context, run func() (*services.RunResult, error)) {
	h.logger.WithField("admin_id", actor(c).UserID).Info("Reminder job triggered manually")

	result, err := run()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

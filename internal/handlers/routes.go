package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/heritagelanka/ceylon360-backend/internal/middleware"
	"github.com/heritagelanka/ceylon360-backend/internal/models"
	"github.com/heritagelanka/ceylon360-backend/pkg/jwt"
)

// Handlers groups every API handler for route registration
type Handlers struct {
	Auth    *AuthHandler
	Trip    *TripHandler
	Guide   *GuideHandler
	Payment *PaymentHandler
	Plan    *PlanHandler
	Review  *ReviewHandler
	Event   *EventHandler
	Admin   *AdminHandler
}

// RegisterRoutes mounts the /api/v1 routes on router
func RegisterRoutes(router *gin.Engine, h Handlers, jwtService *jwt.Service, logger *logrus.Logger) {
	auth := middleware.AuthMiddleware(jwtService, logger)

	v1 := router.Group("/api/v1")

	authRoutes := v1.Group("/auth")
	{
		authRoutes.POST("/register", h.Auth.Register)
		authRoutes.POST("/login", h.Auth.Login)
		authRoutes.POST("/refresh", h.Auth.RefreshToken)
		authRoutes.GET("/me", auth, h.Auth.Me)
		authRoutes.POST("/telegram", auth, h.Auth.LinkTelegram)
	}

	// Public
	v1.GET("/events", h.Event.ListEvents)
	v1.GET("/events/:id", h.Event.GetEvent)
	v1.GET("/users/:id/reviews", h.Review.ListUserReviews)
	v1.POST("/payments/webhook", h.Payment.Webhook)

	traveler := v1.Group("/traveler", auth, middleware.RequireRole(models.RoleTraveler))
	{
		traveler.POST("/trips", h.Trip.CreateTrip)
		traveler.GET("/trips", h.Trip.ListTrips)
		traveler.GET("/trips/:id", h.Trip.GetTrip)
		traveler.DELETE("/trips/:id", h.Trip.DeleteTrip)
		traveler.POST("/trips/:id/confirm", h.Trip.ConfirmTrip)
		traveler.POST("/trips/:id/start", h.Trip.StartTrip)
		traveler.POST("/trips/:id/complete", h.Trip.CompleteTrip)
		traveler.POST("/trips/:id/cancel", h.Trip.CancelTrip)
		traveler.POST("/trips/:id/payment", h.Payment.RequestPayment)
		traveler.GET("/trips/:id/payment", h.Payment.GetTripPayment)
		traveler.POST("/trips/:id/otp", h.Guide.IssueOTP)
		traveler.POST("/plans/generate", h.Plan.GeneratePlan)
		traveler.POST("/reviews", h.Review.SubmitReview)
		traveler.GET("/reviews", h.Review.ListMyReviews)
		traveler.POST("/events/:id/tickets", h.Event.PurchaseTicket)
	}

	guider := v1.Group("/guider", auth, middleware.RequireRole(models.RoleGuide))
	{
		guider.GET("/trips/available", h.Guide.ListAvailableTrips)
		guider.GET("/trips", h.Trip.ListTrips)
		guider.GET("/trips/:id", h.Trip.GetTrip)
		guider.POST("/trips/:id/accept", h.Guide.AcceptTrip)
		guider.POST("/trips/:id/verify-otp", h.Guide.VerifyOTP)
		guider.POST("/trips/:id/start", h.Trip.StartTrip)
		guider.POST("/trips/:id/complete", h.Trip.CompleteTrip)
		guider.POST("/reviews", h.Review.SubmitReview)
		guider.GET("/reviews", h.Review.ListMyReviews)
	}

	admin := v1.Group("/admin", auth, middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("/trips", h.Trip.ListAllTrips)
		admin.GET("/trips/:id", h.Trip.GetTrip)
		admin.POST("/trips/:id/cancel", h.Trip.CancelTrip)
		admin.DELETE("/trips/:id", h.Trip.DeleteTrip)
		admin.POST("/events", h.Event.CreateEvent)
		admin.GET("/cron/status", h.Admin.GetCronStatus)
		admin.POST("/cron/trip-start/run", h.Admin.RunTripStartReminders)
		admin.POST("/cron/daily-itinerary/run", h.Admin.RunDailyItineraryReminders)
	}
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/heritagelanka/ceylon360-backend/internal/models"
	"github.com/heritagelanka/ceylon360-backend/internal/services"
)

// ReviewHandler handles trip reviews
type ReviewHandler struct {
	reviews *services.ReviewService
	logger  *logrus.Logger
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(reviews *services.ReviewService, logger *logrus.Logger) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, logger: logger}
}

// SubmitReview handles POST /api/v1/{traveler,guider}/reviews
func (h *ReviewHandler) SubmitReview(c *gin.Context) {
	var req models.SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	review, err := h.reviews.SubmitReview(c.Request.Context(), actor(c), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, review)
}

// ListMyReviews handles GET /api/v1/{traveler,guider}/reviews
func (h *ReviewHandler) ListMyReviews(c *gin.Context) {
	reviews, err := h.reviews.ListMyReviews(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reviews": reviews, "total": len(reviews)})
}

// ListUserReviews handles GET /api/v1/users/:id/reviews
func (h *ReviewHandler) ListUserReviews(c *gin.Context) {
	reviews, err := h.reviews.ListReviews(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reviews": reviews, "total": len(reviews)})
}

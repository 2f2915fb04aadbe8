package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/heritagelanka/ceylon360-backend/internal/models"
)

// ReviewService records ratings between the traveler and guide of a finished trip
type ReviewService struct {
	trips    TripStore
	reviews  ReviewStore
	profiles profiles
	clock    Clock
	logger   *logrus.Logger
}

// NewReviewService creates a new ReviewService
func NewReviewService(trips TripStore, reviews ReviewStore, users UserStore, clock Clock, logger *logrus.Logger) *ReviewService {
	return &ReviewService{
		trips:    trips,
		reviews:  reviews,
		profiles: profiles{users: users},
		clock:    clock,
		logger:   logger,
	}
}

// SubmitReview rates the other participant of a COMPLETED or CANCELLED
// trip. Each reviewer may review a trip once.
func (s *ReviewService) SubmitReview(ctx context.Context, actor Actor, req *models.SubmitReviewRequest) (*models.Review, error) {
	if err := models.ValidateRating(req.Rating); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	trip, err := s.trips.GetTrip(ctx, req.TripID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trip: %w", err)
	}
	if trip == nil {
		return nil, ErrTripNotFound
	}
	if !trip.Status.IsReviewable() {
		return nil, fmt.Errorf("%w: trip is %s and cannot be reviewed yet", ErrPreconditionFailed, trip.Status)
	}
	if !trip.HasGuide() {
		return nil, fmt.Errorf("%w: self-guided trips have no one to review", ErrPreconditionFailed)
	}

	revieweeID, err := s.reviewee(ctx, actor, trip)
	if err != nil {
		return nil, err
	}

	review := &models.Review{
		ID:         uuid.New().String(),
		TripID:     trip.ID,
		ReviewerID: actor.UserID,
		RevieweeID: revieweeID,
		Rating:     req.Rating,
		CreatedAt:  s.clock.Now(),
	}
	if req.Comment != nil {
		if c := strings.TrimSpace(*req.Comment); c != "" {
			review.Comment = &c
		}
	}

	created, err := s.reviews.CreateReview(ctx, review)
	if err != nil {
		return nil, fmt.Errorf("failed to create review: %w", err)
	}
	if !created {
		return nil, ErrDuplicateReview
	}

	s.logger.WithFields(logrus.Fields{
		"trip_id":     trip.ID,
		"reviewer_id": review.ReviewerID,
		"rating":      review.Rating,
	}).Info("Review submitted")

	return review, nil
}

// reviewee returns the user the actor is reviewing on this trip
func (s *ReviewService) reviewee(ctx context.Context, actor Actor, trip *models.Trip) (string, error) {
	switch actor.Role {
	case models.RoleTraveler:
		t, err := s.profiles.traveler(ctx, actor)
		if err != nil {
			return "", err
		}
		if trip.TravelerID != t.ID {
			return "", ErrNotTripOwner
		}
		_, guideUser, err := s.profiles.guideUser(ctx, *trip.GuideID)
		if err != nil {
			return "", err
		}
		return guideUser.ID, nil
	case models.RoleGuide:
		g, err := s.profiles.guide(ctx, actor)
		if err != nil {
			return "", err
		}
		if !trip.IsGuidedBy(g.ID) {
			return "", ErrNotAssignedGuide
		}
		travelerUser, err := s.profiles.travelerUser(ctx, trip.TravelerID)
		if err != nil {
			return "", err
		}
		return travelerUser.ID, nil
	}
	return "", ErrForbidden
}

// ListReviews returns the reviews received by a user
func (s *ReviewService) ListReviews(ctx context.Context, userID string) ([]models.Review, error) {
	reviews, err := s.reviews.ListReviewsFor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, nil
}

// ListMyReviews returns the reviews written by the caller
func (s *ReviewService) ListMyReviews(ctx context.Context, actor Actor) ([]models.Review, error) {
	reviews, err := s.reviews.ListReviewsBy(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, nil
}

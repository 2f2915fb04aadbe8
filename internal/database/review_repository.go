package database

import (
	"context"
	"fmt"

	"github.com/heritagelanka/ceylon360-backend/internal/models"
)

const reviewColumns = `id, trip_id, reviewer_id, reviewee_id, rating, comment, created_at`

// ReviewRepository handles review database operations
type ReviewRepository struct {
	db DB
}

// NewReviewRepository creates a new review repository
func NewReviewRepository(db DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// CreateReview inserts a review; false means the reviewer already reviewed the trip
func (r *ReviewRepository) CreateReview(ctx context.Context, rv *models.Review) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO reviews (`+reviewColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (trip_id, reviewer_id) DO NOTHING`,
		rv.ID, rv.TripID, rv.ReviewerID, rv.RevieweeID, rv.Rating, rv.Comment, rv.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to create review: %w", err)
	}
	return affected(res)
}

// ListReviewsFor returns reviews received by a user, newest first
func (r *ReviewRepository) ListReviewsFor(ctx context.Context, userID string) ([]models.Review, error) {
	return r.list(ctx, `reviewee_id = $1`, userID)
}

// ListReviewsBy returns reviews written by a user, newest first
func (r *ReviewRepository) ListReviewsBy(ctx context.Context, userID string) ([]models.Review, error) {
	return r.list(ctx, `reviewer_id = $1`, userID)
}

func (r *ReviewRepository) list(ctx context.Context, where, userID string) ([]models.Review, error) {
	reviews := []models.Review{}
	err := r.db.SelectContext(ctx, &reviews, `
		SELECT `+reviewColumns+` FROM reviews
		WHERE `+where+`
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, nil
}

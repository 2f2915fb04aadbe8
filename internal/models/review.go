package models

import (
	"errors"
	"time"
)

// Review is a rating left by one trip participant for the other
type Review struct {
	ID         string    `json:"id" db:"id"`
	TripID     string    `json:"trip_id" db:"trip_id"`
	ReviewerID string    `json:"reviewer_id" db:"reviewer_id"`
	RevieweeID string    `json:"reviewee_id" db:"reviewee_id"`
	Rating     int       `json:"rating" db:"rating"`
	Comment    *string   `json:"comment,omitempty" db:"comment"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// ErrInvalidRating is returned for ratings outside 1..5
var ErrInvalidRating = errors.New("rating must be between 1 and 5")

// ValidateRating checks a star rating
func ValidateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}
	return nil
}

// SubmitReviewRequest is the payload for reviewing a finished trip
type SubmitReviewRequest struct {
	TripID  string  `json:"trip_id" binding:"required"`
	Rating  int     `json:"rating" binding:"required"`
	Comment *string `json:"comment"`
}

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/heritagelanka/ceylon360-backend/internal/models"
)

const verificationColumns = `
	id, trip_id, otp_hash, issued_at, expires_at, attempts, max_attempts, invalidated,
	verified_at, guide_id, traveler_latitude, traveler_longitude, guide_latitude,
	guide_longitude, distance_meters, device_type, browser, os, ip_address`

// VerificationRepository handles trip start OTP database operations
type VerificationRepository struct {
	db DB
}

// NewVerificationRepository creates a new verification repository
func NewVerificationRepository(db DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// CreateVerification invalidates the trip's unverified codes and stores a new one
func (r *VerificationRepository) CreateVerification(ctx context.Context, v *models.TripVerification) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE trip_verifications SET invalidated = TRUE
			WHERE trip_id = $1 AND verified_at IS NULL AND NOT invalidated`, v.TripID)
		if err != nil {
			return fmt.Errorf("failed to invalidate previous OTPs: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO trip_verifications (
				id, trip_id, otp_hash, issued_at, expires_at, attempts, max_attempts,
				traveler_latitude, traveler_longitude
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			v.ID, v.TripID, v.OTPHash, v.IssuedAt, v.ExpiresAt, v.Attempts, v.MaxAttempts,
			v.TravelerLatitude, v.TravelerLongitude,
		)
		if err != nil {
			return fmt.Errorf("failed to create OTP: %w", err)
		}
		return nil
	})
}

// GetActiveVerification returns the newest code that has not been superseded
func (r *VerificationRepository) GetActiveVerification(ctx context.Context, tripID string) (*models.TripVerification, error) {
	var v models.TripVerification
	err := r.db.GetContext(ctx, &v, `
		SELECT `+verificationColumns+` FROM trip_verifications
		WHERE trip_id = $1 AND NOT invalidated
		ORDER BY issued_at DESC
		LIMIT 1`, tripID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get OTP: %w", err)
	}
	return &v, nil
}

// HasVerified reports whether the guide verified a code for the trip
func (r *VerificationRepository) HasVerified(ctx context.Context, tripID, guideID string) (bool, error) {
	var ok bool
	err := r.db.GetContext(ctx, &ok, `
		SELECT EXISTS(
			SELECT 1 FROM trip_verifications
			WHERE trip_id = $1 AND guide_id = $2 AND verified_at IS NOT NULL
		)`, tripID, guideID)
	if err != nil {
		return false, fmt.Errorf("failed to check OTP verification: %w", err)
	}
	return ok, nil
}

// IncrementAttempts records a failed attempt and returns the new count
func (r *VerificationRepository) IncrementAttempts(ctx context.Context, id string) (int, error) {
	var attempts int
	err := r.db.GetContext(ctx, &attempts, `
		UPDATE trip_verifications SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to increment OTP attempts: %w", err)
	}
	return attempts, nil
}

// MarkVerified stores the verification details if the code is still usable
func (r *VerificationRepository) MarkVerified(ctx context.Context, v *models.TripVerification) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE trip_verifications
		SET verified_at = $2, guide_id = $3, guide_latitude = $4, guide_longitude = $5,
		    distance_meters = $6, device_type = $7, browser = $8, os = $9, ip_address = $10
		WHERE id = $1 AND verified_at IS NULL AND NOT invalidated AND attempts < max_attempts`,
		v.ID, v.VerifiedAt, v.GuideID, v.GuideLatitude, v.GuideLongitude,
		v.DistanceMeters, v.DeviceType, v.Browser, v.OS, v.IPAddress,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark OTP verified: %w", err)
	}
	return affected(res)
}

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/heritagelanka/ceylon360-backend/internal/config"
	"github.com/heritagelanka/ceylon360-backend/internal/metrics"
	"github.com/heritagelanka/ceylon360-backend/internal/models"
	"github.com/heritagelanka/ceylon360-backend/internal/utils"
	"github.com/heritagelanka/ceylon360-backend/pkg/geo"
)

// OTPLength is the number of digits in a trip start code
const OTPLength = 4

// VerificationService issues and checks the one-time code a guide enters to
// prove they met the traveler before a guided trip starts
type VerificationService struct {
	trips         TripStore
	verifications VerificationStore
	profiles      profiles
	cfg           config.OTPConfig
	hashCost      int
	metrics       *metrics.Metrics
	clock         Clock
	logger        *logrus.Logger
}

// NewVerificationService creates a new VerificationService. hashCost is the
// bcrypt cost for stored codes.
func NewVerificationService(
	trips TripStore,
	verifications VerificationStore,
	users UserStore,
	cfg config.OTPConfig,
	hashCost int,
	m *metrics.Metrics,
	clock Clock,
	logger *logrus.Logger,
) *VerificationService {
	if hashCost < bcrypt.MinCost {
		hashCost = bcrypt.DefaultCost
	}
	return &VerificationService{
		trips:         trips,
		verifications: verifications,
		profiles:      profiles{users: users},
		cfg:           cfg,
		hashCost:      hashCost,
		metrics:       m,
		clock:         clock,
		logger:        logger,
	}
}

// RequestMeta is the caller information stored with a verification for audit
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// IssueOTP generates a fresh code for the traveler to hand to their guide.
// Earlier unverified codes for the trip stop working.
func (s *VerificationService) IssueOTP(ctx context.Context, actor Actor, tripID string, req *models.IssueOTPRequest) (*models.IssueOTPResponse, error) {
	traveler, err := s.profiles.traveler(ctx, actor)
	if err != nil {
		return nil, err
	}
	trip, err := s.trips.GetTrip(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trip: %w", err)
	}
	if trip == nil {
		return nil, ErrTripNotFound
	}
	if trip.TravelerID != traveler.ID {
		return nil, ErrNotTripOwner
	}
	if !trip.HasGuide() {
		return nil, fmt.Errorf("%w: trip has no guide to verify", ErrPreconditionFailed)
	}
	if trip.Status != models.TripStatusConfirmed {
		return nil, &TransitionError{TripID: trip.ID, From: trip.Status, To: models.TripStatusInProgress}
	}
	if req != nil && req.Latitude != nil && req.Longitude != nil {
		if !(geo.Point{Lat: *req.Latitude, Lng: *req.Longitude}).Valid() {
			return nil, ErrInvalidCoordinate
		}
	}

	code, err := utils.GenerateNumericCode(OTPLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate OTP: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash OTP: %w", err)
	}

	now := s.clock.Now()
	v := &models.TripVerification{
		ID:          uuid.New().String(),
		TripID:      trip.ID,
		OTPHash:     string(hash),
		IssuedAt:    now,
		ExpiresAt:   now.Add(time.Duration(s.cfg.ExpiryMinutes) * time.Minute),
		MaxAttempts: s.cfg.MaxAttempts,
	}
	if req != nil {
		v.TravelerLatitude = req.Latitude
		v.TravelerLongitude = req.Longitude
	}

	if err := s.verifications.CreateVerification(ctx, v); err != nil {
		return nil, fmt.Errorf("failed to store OTP: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"trip_id":    trip.ID,
		"expires_at": v.ExpiresAt,
	}).Info("Trip start OTP issued")

	return &models.IssueOTPResponse{OTP: code, ExpiresAt: v.ExpiresAt}, nil
}

// VerifyOTP checks the code entered by the trip's guide. Checks run in the
// order expired, attempts exhausted, mismatch. A verified code stays verified.
func (s *VerificationService) VerifyOTP(ctx context.Context, actor Actor, tripID string, req *models.VerifyOTPRequest, meta RequestMeta) (*models.VerifyOTPResponse, error) {
	guide, err := s.profiles.guide(ctx, actor)
	if err != nil {
		return nil, err
	}
	trip, err := s.trips.GetTrip(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trip: %w", err)
	}
	if trip == nil {
		return nil, ErrTripNotFound
	}
	if !trip.IsGuidedBy(guide.ID) {
		return nil, ErrNotAssignedGuide
	}
	if req.Latitude == nil || req.Longitude == nil {
		return nil, ErrInvalidCoordinate
	}
	guidePos := geo.Point{Lat: *req.Latitude, Lng: *req.Longitude}
	if !guidePos.Valid() {
		return nil, ErrInvalidCoordinate
	}

	log := s.logger.WithFields(logrus.Fields{"trip_id": trip.ID, "guide_id": guide.ID})

	v, err := s.verifications.GetActiveVerification(ctx, trip.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load OTP: %w", err)
	}
	if v == nil {
		s.metrics.OTPVerification("not_issued")
		return nil, ErrOTPNotIssued
	}
	if v.IsVerified() {
		return &models.VerifyOTPResponse{Verified: true, DistanceMeters: v.DistanceMeters}, nil
	}

	now := s.clock.Now()
	if v.IsExpired(now) {
		s.metrics.OTPVerification("expired")
		return nil, ErrOTPExpired
	}
	if v.AttemptsExhausted() {
		s.metrics.OTPVerification("max_attempts")
		return nil, ErrOTPMaxAttempts
	}

	if bcrypt.CompareHashAndPassword([]byte(v.OTPHash), []byte(req.OTP)) != nil {
		attempts, err := s.verifications.IncrementAttempts(ctx, v.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to record OTP attempt: %w", err)
		}
		log.WithField("attempts", attempts).Warn("OTP mismatch")
		if attempts >= v.MaxAttempts {
			s.metrics.OTPVerification("max_attempts")
			return nil, ErrOTPMaxAttempts
		}
		s.metrics.OTPVerification("mismatch")
		return nil, ErrOTPMismatch
	}

	var distance *float64
	if v.TravelerLatitude != nil && v.TravelerLongitude != nil {
		d := geo.HaversineMeters(geo.Point{Lat: *v.TravelerLatitude, Lng: *v.TravelerLongitude}, guidePos)
		distance = &d
		if s.cfg.MaxDistanceMeters > 0 && d > s.cfg.MaxDistanceMeters {
			s.metrics.OTPVerification("too_far")
			log.WithField("distance_m", d).Warn("Guide too far from traveler")
			return nil, ErrTooFar
		}
	}

	device := utils.ParseUserAgent(meta.UserAgent)
	v.VerifiedAt = &now
	v.GuideID = &guide.ID
	v.GuideLatitude = req.Latitude
	v.GuideLongitude = req.Longitude
	v.DistanceMeters = distance
	v.DeviceType = &device.DeviceType
	v.Browser = &device.Browser
	v.OS = &device.OS
	if meta.IPAddress != "" {
		ip := meta.IPAddress
		v.IPAddress = &ip
	}

	ok, err := s.verifications.MarkVerified(ctx, v)
	if err != nil {
		return nil, fmt.Errorf("failed to mark OTP verified: %w", err)
	}
	if !ok {
		// Superseded by a newer code, or attempts ran out concurrently.
		s.metrics.OTPVerification("superseded")
		return nil, ErrOTPNotIssued
	}

	s.metrics.OTPVerification("verified")
	log.WithField("distance_m", distance).Info("Trip start OTP verified")

	return &models.VerifyOTPResponse{Verified: true, DistanceMeters: distance}, nil
}

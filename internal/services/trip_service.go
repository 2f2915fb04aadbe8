package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/heritagelanka/ceylon360-backend/internal/events"
	"github.com/heritagelanka/ceylon360-backend/internal/metrics"
	"github.com/heritagelanka/ceylon360-backend/internal/models"
	"github.com/heritagelanka/ceylon360-backend/pkg/geo"
)

// TripService owns trip creation and every trip status transition
type TripService struct {
	trips         TripStore
	payments      PaymentStore
	verifications VerificationStore
	profiles      profiles
	plans         *PlanService
	publisher     events.Publisher
	metrics       *metrics.Metrics
	clock         Clock
	location      *time.Location
	logger        *logrus.Logger
}

// NewTripService creates a new TripService
func NewTripService(
	trips TripStore,
	payments PaymentStore,
	verifications VerificationStore,
	users UserStore,
	plans *PlanService,
	publisher events.Publisher,
	m *metrics.Metrics,
	clock Clock,
	location *time.Location,
	logger *logrus.Logger,
) *TripService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if location == nil {
		location = time.UTC
	}
	return &TripService{
		trips:         trips,
		payments:      payments,
		verifications: verifications,
		profiles:      profiles{users: users},
		plans:         plans,
		publisher:     publisher,
		metrics:       m,
		clock:         clock,
		location:      location,
		logger:        logger,
	}
}

// CreateTrip plans a new trip for the calling traveler
func (s *TripService) CreateTrip(ctx context.Context, actor Actor, req *models.CreateTripRequest) (*models.Trip, error) {
	traveler, err := s.profiles.traveler(ctx, actor)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.Title) == "" {
		return nil, validation("title is required")
	}
	from, to, err := req.ParseDates(s.location)
	if err != nil {
		return nil, validation("%s", err.Error())
	}

	mode := req.PlanningMode
	if mode == "" {
		mode = models.PlanningModeManual
	}
	if !mode.IsValid() {
		return nil, validation("unknown planning mode %q", mode)
	}

	var locations []models.TripLocation
	if mode == models.PlanningModeAIGenerated {
		locations = s.plans.IngestLocations(req.Locations)
	} else {
		locations, err = manualLocations(req.Locations)
		if err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	trip := &models.Trip{
		ID:            uuid.New().String(),
		TravelerID:    traveler.ID,
		Title:         strings.TrimSpace(req.Title),
		FromDate:      models.CivilDate(from),
		ToDate:        models.CivilDate(to),
		Status:        models.TripStatusPlanning,
		BookingStatus: models.BookingStatusPending,
		NeedsGuide:    req.NeedsGuide,
		PlanningMode:  mode,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for i := range locations {
		locations[i].ID = uuid.New().String()
		locations[i].TripID = trip.ID
	}
	trip.Locations = models.SortLocations(locations)
	if err := models.ValidateLocationOrder(trip.Locations); err != nil {
		return nil, validation("%s", err.Error())
	}
	trip.TotalDistanceKm = routeKm(trip.Locations)

	if err := s.trips.CreateTrip(ctx, trip); err != nil {
		return nil, fmt.Errorf("failed to create trip: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"trip_id":       trip.ID,
		"traveler_id":   traveler.ID,
		"planning_mode": mode,
		"locations":     len(trip.Locations),
	}).Info("Trip created")
	s.publish(ctx, events.Event{Key: events.KeyTripCreated, TripID: trip.ID})

	return trip, nil
}

// manualLocations enforces the island geofence: one bad location rejects the request
func manualLocations(candidates []models.LocationCandidate) ([]models.TripLocation, error) {
	out := make([]models.TripLocation, 0, len(candidates))
	for _, c := range candidates {
		if strings.TrimSpace(c.Title) == "" {
			return nil, validation("every location needs a title")
		}
		if c.Latitude == nil || c.Longitude == nil {
			return nil, validation("location %q is missing coordinates", c.Title)
		}
		if !(geo.Point{Lat: *c.Latitude, Lng: *c.Longitude}).Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidCoordinate, c.Title)
		}
		if !models.InSriLanka(*c.Latitude, *c.Longitude) {
			return nil, fmt.Errorf("%w: %q", ErrOutsideSriLanka, c.Title)
		}
		out = append(out, c.ToLocation())
	}
	return models.NormalizeLocationOrder(out), nil
}

func routeKm(locations []models.TripLocation) float64 {
	points := make([]geo.Point, 0, len(locations))
	for _, l := range locations {
		points = append(points, geo.Point{Lat: l.Latitude, Lng: l.Longitude})
	}
	return geo.PathKm(points)
}

// GetTrip returns a trip the caller may view
func (s *TripService) GetTrip(ctx context.Context, actor Actor, tripID string) (*models.Trip, error) {
	trip, err := s.load(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if err := s.profiles.canView(ctx, actor, trip); err != nil {
		return nil, err
	}
	return trip, nil
}

// ListTrips returns the caller's trips: owned for travelers, assigned for guides
func (s *TripService) ListTrips(ctx context.Context, actor Actor) ([]models.Trip, error) {
	switch actor.Role {
	case models.RoleTraveler:
		t, err := s.profiles.traveler(ctx, actor)
		if err != nil {
			return nil, err
		}
		return s.trips.ListTripsByTraveler(ctx, t.ID)
	case models.RoleGuide:
		g, err := s.profiles.guide(ctx, actor)
		if err != nil {
			return nil, err
		}
		return s.trips.ListTripsByGuide(ctx, g.ID)
	case models.RoleAdmin:
		return s.trips.ListTrips(ctx, "")
	}
	return nil, ErrForbidden
}

// ListAllTrips returns every trip, optionally filtered by status (admin)
func (s *TripService) ListAllTrips(ctx context.Context, actor Actor, status models.TripStatus) ([]models.Trip, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if status != "" && !status.IsValid() {
		return nil, validation("unknown status %q", status)
	}
	return s.trips.ListTrips(ctx, status)
}

// ConfirmTrip moves a planned trip to CONFIRMED. Guided trips need an
// accepted guide first.
func (s *TripService) ConfirmTrip(ctx context.Context, actor Actor, tripID string) (*models.Trip, error) {
	trip, err := s.ownedTrip(ctx, actor, tripID)
	if err != nil {
		return nil, err
	}
	t, err := s.transition(trip, models.TripStatusConfirmed)
	if err != nil {
		return nil, err
	}
	if trip.NeedsGuide && (!trip.HasGuide() || trip.BookingStatus != models.BookingStatusAccepted) {
		s.metrics.TransitionRejected(string(models.TripStatusConfirmed), "guide_not_accepted")
		return nil, ErrGuideNotAccepted
	}

	return s.apply(ctx, trip, t)
}

// StartTrip moves a confirmed, paid trip to IN_PROGRESS. The assigned guide
// starts guided trips after verifying the traveler's OTP; travelers start
// self-guided trips.
func (s *TripService) StartTrip(ctx context.Context, actor Actor, tripID string) (*models.Trip, error) {
	trip, err := s.load(ctx, tripID)
	if err != nil {
		return nil, err
	}

	var guideID *string
	if trip.HasGuide() {
		g, err := s.profiles.guide(ctx, actor)
		if err != nil {
			return nil, err
		}
		if !trip.IsGuidedBy(g.ID) {
			return nil, ErrNotAssignedGuide
		}
		guideID = &g.ID
	} else {
		if err := s.checkOwner(ctx, actor, trip); err != nil {
			return nil, err
		}
		if trip.NeedsGuide {
			s.metrics.TransitionRejected(string(models.TripStatusInProgress), "no_guide")
			return nil, ErrGuideNotAccepted
		}
	}

	t, err := s.transition(trip, models.TripStatusInProgress)
	if err != nil {
		return nil, err
	}
	if err := s.checkPaid(ctx, trip.ID); err != nil {
		s.metrics.TransitionRejected(string(models.TripStatusInProgress), "payment_not_paid")
		return nil, err
	}
	if guideID != nil {
		verified, err := s.verifications.HasVerified(ctx, trip.ID, *guideID)
		if err != nil {
			return nil, fmt.Errorf("failed to check verification: %w", err)
		}
		if !verified {
			s.metrics.TransitionRejected(string(models.TripStatusInProgress), "otp_not_verified")
			return nil, ErrOTPNotVerified
		}
	}
	if err := s.checkAvailability(ctx, trip, guideID); err != nil {
		return nil, err
	}

	busy := true
	t.RequirePaid = true
	t.ExclusiveTraveler = true
	t.GuideID = guideID
	t.GuideBusy = &busy
	return s.apply(ctx, trip, t)
}

// CompleteTrip finishes an in-progress trip, frees the guide and releases the payment
func (s *TripService) CompleteTrip(ctx context.Context, actor Actor, tripID string) (*models.Trip, error) {
	trip, err := s.load(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if err := s.checkParticipant(ctx, actor, trip); err != nil {
		return nil, err
	}
	t, err := s.transition(trip, models.TripStatusCompleted)
	if err != nil {
		return nil, err
	}

	free := false
	t.GuideID = trip.GuideID
	t.GuideBusy = guideFlag(trip, &free)
	t.PaymentFrom = models.PaymentStatusPaid
	t.PaymentTo = models.PaymentStatusReleased
	return s.apply(ctx, trip, t)
}

// CancelTrip cancels a trip that has not finished. Only the owning traveler
// or an admin may cancel.
func (s *TripService) CancelTrip(ctx context.Context, actor Actor, tripID string) (*models.Trip, error) {
	trip, err := s.load(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		if err := s.checkOwner(ctx, actor, trip); err != nil {
			return nil, err
		}
	}
	t, err := s.transition(trip, models.TripStatusCancelled)
	if err != nil {
		return nil, err
	}
	// The side effects below depend on the status read, so only that status may match.
	t.From = []models.TripStatus{trip.Status}
	t.PaymentFrom = models.PaymentStatusPending
	t.PaymentTo = models.PaymentStatusCancelled
	// The guide flag belongs to this trip only while it is in progress.
	if trip.Status == models.TripStatusInProgress {
		free := false
		t.GuideID = trip.GuideID
		t.GuideBusy = guideFlag(trip, &free)
	}
	return s.apply(ctx, trip, t)
}

// DeleteTrip removes a trip that has not started
func (s *TripService) DeleteTrip(ctx context.Context, actor Actor, tripID string) error {
	trip, err := s.load(ctx, tripID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() {
		if err := s.checkOwner(ctx, actor, trip); err != nil {
			return err
		}
	}
	if !trip.Status.IsDeletable() {
		return fmt.Errorf("%w: trip %s is %s and can no longer be deleted", ErrInvalidTransition, trip.ID, trip.Status)
	}

	p, err := s.payments.GetPaymentByTrip(ctx, trip.ID)
	if err != nil {
		return fmt.Errorf("failed to load payment: %w", err)
	}
	if p != nil && p.Status.IsSettled() {
		return fmt.Errorf("%w: trip has a settled payment, cancel it instead", ErrPreconditionFailed)
	}

	deleted, err := s.trips.DeleteTrip(ctx, trip.ID, []models.TripStatus{models.TripStatusPlanning, models.TripStatusConfirmed})
	if err != nil {
		return fmt.Errorf("failed to delete trip: %w", err)
	}
	if !deleted {
		current, err := s.load(ctx, trip.ID)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: trip %s is %s and can no longer be deleted", ErrInvalidTransition, current.ID, current.Status)
	}

	s.logger.WithField("trip_id", trip.ID).Info("Trip deleted")
	return nil
}

// transition builds the conditional write for trip -> to from the lifecycle
// table: the edge must exist, every source status of the target may match and
// the booking status follows the target.
func (s *TripService) transition(trip *models.Trip, to models.TripStatus) (models.TripTransition, error) {
	if !trip.Status.CanTransitionTo(to) {
		return models.TripTransition{}, s.rejected(trip, to, "wrong_status")
	}
	booking, _ := models.BookingStatusFor(to)
	return models.TripTransition{
		TripID:        trip.ID,
		From:          models.SourcesFor(to),
		To:            to,
		BookingStatus: booking,
	}, nil
}

// apply performs the conditional write and explains a refused write by re-reading the trip
func (s *TripService) apply(ctx context.Context, trip *models.Trip, t models.TripTransition) (*models.Trip, error) {
	if !trip.Status.CanTransitionTo(t.To) {
		return nil, s.rejected(trip, t.To, "wrong_status")
	}
	ok, err := s.trips.ApplyTransition(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("failed to update trip status: %w", err)
	}
	if !ok {
		return nil, s.explainRefusal(ctx, trip, t)
	}

	s.metrics.TripTransition(string(trip.Status), string(t.To))
	s.logger.WithFields(logrus.Fields{
		"trip_id": trip.ID,
		"from":    trip.Status,
		"to":      t.To,
	}).Info("Trip status changed")
	s.publish(ctx, events.Event{
		Key:    events.KeyTripStatusChanged,
		TripID: trip.ID,
		From:   string(trip.Status),
		To:     string(t.To),
	})

	return s.load(ctx, trip.ID)
}

func (s *TripService) explainRefusal(ctx context.Context, trip *models.Trip, t models.TripTransition) error {
	current, err := s.load(ctx, trip.ID)
	if err != nil {
		return err
	}
	if !containsStatus(t.From, current.Status) {
		return s.rejected(current, t.To, "concurrent_change")
	}
	if t.RequirePaid {
		if err := s.checkPaid(ctx, trip.ID); err != nil {
			s.metrics.TransitionRejected(string(t.To), "payment_not_paid")
			return err
		}
	}
	if t.GuideBusy != nil && *t.GuideBusy {
		g, err := s.profiles.users.GetGuideByID(ctx, *t.GuideID)
		if err == nil && g != nil && g.TripInProgress {
			s.metrics.TransitionRejected(string(t.To), "guide_busy")
			return ErrGuideBusy
		}
	}
	if t.ExclusiveTraveler {
		busy, err := s.trips.HasInProgressTrip(ctx, current.TravelerID)
		if err == nil && busy {
			s.metrics.TransitionRejected(string(t.To), "traveler_busy")
			return ErrTravelerBusy
		}
	}
	s.metrics.TransitionRejected(string(t.To), "conflict")
	return ErrConcurrentUpdate
}

func (s *TripService) rejected(trip *models.Trip, to models.TripStatus, reason string) error {
	s.metrics.TransitionRejected(string(to), reason)
	return &TransitionError{TripID: trip.ID, From: trip.Status, To: to}
}

func (s *TripService) checkPaid(ctx context.Context, tripID string) error {
	p, err := s.payments.GetPaymentByTrip(ctx, tripID)
	if err != nil {
		return fmt.Errorf("failed to load payment: %w", err)
	}
	if p == nil || p.Status != models.PaymentStatusPaid {
		return ErrPaymentNotPaid
	}
	return nil
}

// checkAvailability gives a precise error before the conditional write
func (s *TripService) checkAvailability(ctx context.Context, trip *models.Trip, guideID *string) error {
	if guideID != nil {
		g, err := s.profiles.users.GetGuideByID(ctx, *guideID)
		if err != nil {
			return fmt.Errorf("failed to load guide: %w", err)
		}
		if g != nil && g.TripInProgress {
			s.metrics.TransitionRejected(string(models.TripStatusInProgress), "guide_busy")
			return ErrGuideBusy
		}
	}
	busy, err := s.trips.HasInProgressTrip(ctx, trip.TravelerID)
	if err != nil {
		return fmt.Errorf("failed to check traveler trips: %w", err)
	}
	if busy {
		s.metrics.TransitionRejected(string(models.TripStatusInProgress), "traveler_busy")
		return ErrTravelerBusy
	}
	return nil
}

func (s *TripService) load(ctx context.Context, tripID string) (*models.Trip, error) {
	trip, err := s.trips.GetTrip(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trip: %w", err)
	}
	if trip == nil {
		return nil, ErrTripNotFound
	}
	return trip, nil
}

func (s *TripService) ownedTrip(ctx context.Context, actor Actor, tripID string) (*models.Trip, error) {
	trip, err := s.load(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if err := s.checkOwner(ctx, actor, trip); err != nil {
		return nil, err
	}
	return trip, nil
}

func (s *TripService) checkOwner(ctx context.Context, actor Actor, trip *models.Trip) error {
	t, err := s.profiles.traveler(ctx, actor)
	if err != nil {
		return err
	}
	if trip.TravelerID != t.ID {
		return ErrNotTripOwner
	}
	return nil
}

// checkParticipant allows the owner, the assigned guide, or an admin
func (s *TripService) checkParticipant(ctx context.Context, actor Actor, trip *models.Trip) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleGuide:
		g, err := s.profiles.guide(ctx, actor)
		if err != nil {
			return err
		}
		if !trip.IsGuidedBy(g.ID) {
			return ErrNotAssignedGuide
		}
		return nil
	default:
		return s.checkOwner(ctx, actor, trip)
	}
}

func (s *TripService) publish(ctx context.Context, evt events.Event) {
	evt.OccurredAt = s.clock.Now().UTC()
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.WithError(err).WithField("routing_key", evt.RoutingKey()).Warn("Failed to publish trip event")
	}
}

func guideFlag(trip *models.Trip, v *bool) *bool {
	if !trip.HasGuide() {
		return nil
	}
	return v
}

func containsStatus(list []models.TripStatus, s models.TripStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

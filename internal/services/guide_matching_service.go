package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/heritagelanka/ceylon360-backend/internal/events"
	"github.com/heritagelanka/ceylon360-backend/internal/metrics"
	"github.com/heritagelanka/ceylon360-backend/internal/models"
)

// GuideMatchingService lets guides discover and accept trips that need a guide
type GuideMatchingService struct {
	trips     TripStore
	profiles  profiles
	publisher events.Publisher
	metrics   *metrics.Metrics
	clock     Clock
	logger    *logrus.Logger
}

// NewGuideMatchingService creates a new GuideMatchingService
func NewGuideMatchingService(
	trips TripStore,
	users UserStore,
	publisher events.Publisher,
	m *metrics.Metrics,
	clock Clock,
	logger *logrus.Logger,
) *GuideMatchingService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &GuideMatchingService{
		trips:     trips,
		profiles:  profiles{users: users},
		publisher: publisher,
		metrics:   m,
		clock:     clock,
		logger:    logger,
	}
}

// ListAvailableTrips returns open trips whose traveler shares at least one
// language with the guide
func (s *GuideMatchingService) ListAvailableTrips(ctx context.Context, actor Actor) ([]models.AvailableTrip, error) {
	guide, err := s.profiles.guide(ctx, actor)
	if err != nil {
		return nil, err
	}

	open, err := s.trips.ListOpenTripsNeedingGuide(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open trips: %w", err)
	}

	languages := make(map[string][]string)
	result := make([]models.AvailableTrip, 0, len(open))
	for _, trip := range open {
		travelerLangs, ok := languages[trip.TravelerID]
		if !ok {
			t, err := s.profiles.users.GetTravelerByID(ctx, trip.TravelerID)
			if err != nil {
				return nil, fmt.Errorf("failed to load traveler: %w", err)
			}
			if t != nil {
				travelerLangs = t.Languages
			}
			languages[trip.TravelerID] = travelerLangs
		}

		shared := models.SharedLanguages(guide.Languages, travelerLangs)
		if len(shared) == 0 {
			continue
		}
		result = append(result, models.AvailableTrip{Trip: trip, SharedLanguages: shared})
	}

	return result, nil
}

// AcceptTrip assigns the calling guide to an open trip. When two guides race
// for the same trip exactly one wins; the other receives ErrTripTaken.
func (s *GuideMatchingService) AcceptTrip(ctx context.Context, actor Actor, tripID string) (*models.Trip, error) {
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

	log := s.logger.WithFields(logrus.Fields{"trip_id": trip.ID, "guide_id": guide.ID})

	if trip.HasGuide() {
		s.metrics.GuideAcceptance("taken")
		return nil, ErrTripTaken
	}
	if !trip.NeedsGuide || trip.Status != models.TripStatusPlanning {
		s.metrics.GuideAcceptance("not_open")
		return nil, fmt.Errorf("%w: trip is not open for guides", ErrPreconditionFailed)
	}

	traveler, err := s.profiles.users.GetTravelerByID(ctx, trip.TravelerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load traveler: %w", err)
	}
	if traveler == nil || len(models.SharedLanguages(guide.Languages, traveler.Languages)) == 0 {
		s.metrics.GuideAcceptance("no_shared_language")
		return nil, fmt.Errorf("%w: guide shares no language with the traveler", ErrPreconditionFailed)
	}

	if err := s.checkAvailable(ctx, guide, trip); err != nil {
		s.metrics.GuideAcceptance("unavailable")
		return nil, err
	}

	assigned, err := s.trips.AssignGuide(ctx, trip.ID, guide.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to assign guide: %w", err)
	}
	if !assigned {
		s.metrics.GuideAcceptance("lost_race")
		log.Info("Guide lost the race to accept trip")
		return nil, ErrTripTaken
	}

	s.metrics.GuideAcceptance("accepted")
	log.Info("Guide accepted trip")

	evt := events.Event{
		Key:        events.KeyGuideAssigned,
		TripID:     trip.ID,
		Attributes: map[string]string{"guide_id": guide.ID},
		OccurredAt: s.clock.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		log.WithError(err).Warn("Failed to publish guide assignment")
	}

	updated, err := s.trips.GetTrip(ctx, trip.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trip: %w", err)
	}
	if updated == nil {
		return nil, ErrTripNotFound
	}
	return updated, nil
}

// checkAvailable rejects a guide who is on a trip or already committed to
// one with overlapping dates
func (s *GuideMatchingService) checkAvailable(ctx context.Context, guide *models.Guide, trip *models.Trip) error {
	if guide.TripInProgress {
		return ErrGuideUnavailable
	}

	assigned, err := s.trips.ListTripsByGuide(ctx, guide.ID)
	if err != nil {
		return fmt.Errorf("failed to list guide trips: %w", err)
	}
	for i := range assigned {
		other := &assigned[i]
		switch other.Status {
		case models.TripStatusInProgress:
			return ErrGuideUnavailable
		case models.TripStatusPlanning, models.TripStatusConfirmed:
			if other.OverlapsDates(trip) {
				return ErrGuideUnavailable
			}
		}
	}
	return nil
}

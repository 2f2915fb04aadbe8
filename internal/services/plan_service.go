package services

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/heritagelanka/ceylon360-backend/internal/metrics"
	"github.com/heritagelanka/ceylon360-backend/internal/models"
	"github.com/heritagelanka/ceylon360-backend/internal/planner"
)

// GeneratedPlan is a validated AI draft ready to be accepted as a trip
type GeneratedPlan struct {
	Draft     *planner.Draft        `json:"draft"`
	Locations []models.TripLocation `json:"locations"`
	Dropped   int                   `json:"dropped"`
}

// PlanService turns AI itinerary drafts into trip locations
type PlanService struct {
	generator PlanGenerator
	validate  *validator.Validate
	metrics   *metrics.Metrics
	logger    *logrus.Logger
}

// NewPlanService creates a new PlanService. generator may be nil when no LLM is configured.
func NewPlanService(generator PlanGenerator, m *metrics.Metrics, logger *logrus.Logger) *PlanService {
	return &PlanService{
		generator: generator,
		validate:  validator.New(),
		metrics:   m,
		logger:    logger,
	}
}

// IngestLocations keeps candidates with a title and in-range numeric
// coordinates and assigns any missing ordering. No Sri Lanka geofence is
// applied here; only manual planning restricts locations to the island.
func (s *PlanService) IngestLocations(candidates []models.LocationCandidate) []models.TripLocation {
	valid := make([]models.TripLocation, 0, len(candidates))
	for i, c := range candidates {
		if err := s.validate.Struct(c); err != nil {
			s.logger.WithFields(logrus.Fields{
				"index": i,
				"title": c.Title,
				"error": err.Error(),
			}).Debug("Dropping invalid AI location")
			continue
		}
		valid = append(valid, c.ToLocation())
	}

	dropped := len(candidates) - len(valid)
	s.metrics.AILocations(len(valid), dropped)
	s.logger.WithFields(logrus.Fields{
		"received": len(candidates),
		"valid":    len(valid),
		"dropped":  dropped,
	}).Info("Validated AI itinerary locations")

	return models.NormalizeLocationOrder(valid)
}

// GeneratePlan drafts an itinerary for a traveler and validates its locations
func (s *PlanService) GeneratePlan(ctx context.Context, actor Actor, req planner.Request) (*GeneratedPlan, error) {
	if actor.Role != models.RoleTraveler {
		return nil, ErrForbidden
	}
	if s.generator == nil {
		return nil, upstream("generate plan", errPlannerDisabled)
	}
	if req.Days <= 0 {
		return nil, validation("days must be positive")
	}

	draft, err := s.generator.GeneratePlan(ctx, req)
	if err != nil {
		s.logger.WithError(err).Warn("AI plan generation failed")
		return nil, upstream("generate plan", err)
	}

	return s.ValidateDraft(draft), nil
}

// ValidateDraft flattens a draft and keeps only its usable locations
func (s *PlanService) ValidateDraft(draft *planner.Draft) *GeneratedPlan {
	candidates := flattenDraft(draft)
	locations := s.IngestLocations(candidates)

	return &GeneratedPlan{
		Draft:     draft,
		Locations: locations,
		Dropped:   len(candidates) - len(locations),
	}
}

// flattenDraft prefers the day-by-day itinerary and falls back to the
// attraction list when the model returned no days.
func flattenDraft(d *planner.Draft) []models.LocationCandidate {
	var out []models.LocationCandidate
	for _, day := range d.DailyItinerary {
		for _, loc := range day.Locations {
			if loc.DayNumber == 0 {
				loc.DayNumber = day.Day
			}
			out = append(out, loc)
		}
	}
	if len(out) == 0 {
		out = append(out, d.SelectedAttractions...)
	}
	return out
}

var errPlannerDisabled = errors.New("AI planner is not configured")

package models

import (
	"errors"
	"time"
)

// PlanningMode records how a trip's itinerary was produced
type PlanningMode string

const (
	PlanningModeManual      PlanningMode = "MANUAL"
	PlanningModeAIGenerated PlanningMode = "AI_GENERATED"
)

// IsValid reports whether the planning mode is known
func (m PlanningMode) IsValid() bool {
	return m == PlanningModeManual || m == PlanningModeAIGenerated
}

// Trip is a traveler's booked journey. Status only moves through the
// transition table in trip_lifecycle.go.
type Trip struct {
	ID              string        `json:"id" db:"id"`
	TravelerID      string        `json:"traveler_id" db:"traveler_id"`
	GuideID         *string       `json:"guide_id,omitempty" db:"guide_id"`
	Title           string        `json:"title" db:"title"`
	FromDate        time.Time     `json:"from_date" db:"from_date"`
	ToDate          time.Time     `json:"to_date" db:"to_date"`
	Status          TripStatus    `json:"status" db:"status"`
	BookingStatus   BookingStatus `json:"booking_status" db:"booking_status"`
	NeedsGuide      bool          `json:"needs_guide" db:"needs_guide"`
	PlanningMode    PlanningMode  `json:"planning_mode" db:"planning_mode"`
	TotalDistanceKm float64       `json:"total_distance_km" db:"total_distance_km"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`

	Locations []TripLocation `json:"locations" db:"-"`
}

// HasGuide reports whether a guide has been assigned
func (t *Trip) HasGuide() bool {
	return t.GuideID != nil && *t.GuideID != ""
}

// IsGuidedBy reports whether the given guide is assigned to the trip
func (t *Trip) IsGuidedBy(guideID string) bool {
	return t.HasGuide() && *t.GuideID == guideID
}

// Days returns the inclusive number of calendar days the trip spans
func (t *Trip) Days() int {
	days := DaysBetween(t.FromDate, t.ToDate) + 1
	if days < 1 {
		return 1
	}
	return days
}

// DayNumber returns the 1-based itinerary day for the calendar date of on
func (t *Trip) DayNumber(on time.Time) int {
	return DaysBetween(t.FromDate, on) + 1
}

// LocationsForDay returns the trip's locations scheduled on a day, in visit order
func (t *Trip) LocationsForDay(day int) []TripLocation {
	var out []TripLocation
	for _, loc := range SortLocations(t.Locations) {
		if loc.DayNumber == day {
			out = append(out, loc)
		}
	}
	return out
}

// OverlapsDates reports whether two trips share at least one calendar day
func (t *Trip) OverlapsDates(other *Trip) bool {
	return !CivilDate(t.FromDate).After(CivilDate(other.ToDate)) &&
		!CivilDate(other.FromDate).After(CivilDate(t.ToDate))
}

// CivilDate returns the calendar date of t, read in t's own location, as
// midnight UTC. DATE columns scan as UTC midnight, so this lets them be
// compared with wall-clock times from any zone.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from a to b
func DaysBetween(a, b time.Time) int {
	return int(CivilDate(b).Sub(CivilDate(a)).Hours() / 24)
}

// CreateTripRequest is the payload for planning a new trip
type CreateTripRequest struct {
	Title        string              `json:"title" binding:"required"`
	FromDate     string              `json:"from_date" binding:"required"`
	ToDate       string              `json:"to_date" binding:"required"`
	NeedsGuide   bool                `json:"needs_guide"`
	PlanningMode PlanningMode        `json:"planning_mode"`
	Locations    []LocationCandidate `json:"locations"`
}

// ErrInvalidDateRange is returned when a trip ends before it starts
var ErrInvalidDateRange = errors.New("from_date must be on or before to_date")

// ParseDates parses the request's YYYY-MM-DD dates
func (r *CreateTripRequest) ParseDates(loc *time.Location) (time.Time, time.Time, error) {
	from, err := time.ParseInLocation("2006-01-02", r.FromDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("from_date must be YYYY-MM-DD")
	}
	to, err := time.ParseInLocation("2006-01-02", r.ToDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("to_date must be YYYY-MM-DD")
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, ErrInvalidDateRange
	}
	return from, to, nil
}

// AvailableTrip is a trip a guide can accept, with the languages shared with its traveler
type AvailableTrip struct {
	Trip
	SharedLanguages []string `json:"shared_languages"`
}

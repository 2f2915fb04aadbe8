package models

import (
	"fmt"
	"sort"
)

// Sri Lanka bounding box used to restrict manually placed locations
const (
	SriLankaMinLat = 5.8
	SriLankaMaxLat = 9.9
	SriLankaMinLng = 79.5
	SriLankaMaxLng = 81.9
)

// TripLocation is one stop on a trip itinerary
type TripLocation struct {
	ID              string  `json:"id" db:"id"`
	TripID          string  `json:"trip_id" db:"trip_id"`
	DayNumber       int     `json:"day_number" db:"day_number"`
	VisitOrder      int     `json:"visit_order" db:"visit_order"`
	Title           string  `json:"title" db:"title"`
	Address         *string `json:"address,omitempty" db:"address"`
	Category        *string `json:"category,omitempty" db:"category"`
	Latitude        float64 `json:"latitude" db:"latitude"`
	Longitude       float64 `json:"longitude" db:"longitude"`
	DurationMinutes *int    `json:"duration_minutes,omitempty" db:"duration_minutes"`
}

// InSriLanka reports whether the coordinates fall inside the island's bounding box
func InSriLanka(lat, lng float64) bool {
	return lat >= SriLankaMinLat && lat <= SriLankaMaxLat &&
		lng >= SriLankaMinLng && lng <= SriLankaMaxLng
}

// LocationCandidate is an unvalidated location from a client or an LLM response.
// Pointer coordinates distinguish a missing value from zero.
type LocationCandidate struct {
	Title           string   `json:"title" validate:"required"`
	Address         *string  `json:"address,omitempty"`
	Category        *string  `json:"category,omitempty"`
	Latitude        *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude       *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	DayNumber       int      `json:"day_number,omitempty" validate:"gte=0"`
	VisitOrder      int      `json:"visit_order,omitempty" validate:"gte=0"`
	DurationMinutes *int     `json:"duration_minutes,omitempty"`
}

// ToLocation converts a validated candidate into a TripLocation
func (c LocationCandidate) ToLocation() TripLocation {
	loc := TripLocation{
		Title:           c.Title,
		Address:         c.Address,
		Category:        c.Category,
		DayNumber:       c.DayNumber,
		VisitOrder:      c.VisitOrder,
		DurationMinutes: c.DurationMinutes,
	}
	if c.Latitude != nil {
		loc.Latitude = *c.Latitude
	}
	if c.Longitude != nil {
		loc.Longitude = *c.Longitude
	}
	return loc
}

// SortLocations returns a copy ordered by (day_number, visit_order)
func SortLocations(locations []TripLocation) []TripLocation {
	out := make([]TripLocation, len(locations))
	copy(out, locations)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DayNumber != out[j].DayNumber {
			return out[i].DayNumber < out[j].DayNumber
		}
		return out[i].VisitOrder < out[j].VisitOrder
	})
	return out
}

// ValidateLocationOrder checks that every location has a positive day and
// visit order and that (day_number, visit_order) is unique. Gaps are allowed.
func ValidateLocationOrder(locations []TripLocation) error {
	seen := make(map[[2]int]struct{}, len(locations))
	for _, loc := range locations {
		if loc.DayNumber < 1 || loc.VisitOrder < 1 {
			return fmt.Errorf("location %q has no day/visit order", loc.Title)
		}
		key := [2]int{loc.DayNumber, loc.VisitOrder}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate visit order %d on day %d", loc.VisitOrder, loc.DayNumber)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// NormalizeLocationOrder fills in missing day numbers and visit orders and
// bumps duplicates within a day so the result passes ValidateLocationOrder.
// Input order is preserved for entries that need a value assigned.
func NormalizeLocationOrder(locations []TripLocation) []TripLocation {
	out := make([]TripLocation, len(locations))
	copy(out, locations)

	lastDay := 1
	for i := range out {
		if out[i].DayNumber < 1 {
			out[i].DayNumber = lastDay
		}
		lastDay = out[i].DayNumber
	}

	used := make(map[int]map[int]bool)
	maxOrder := make(map[int]int)
	for i := range out {
		day := out[i].DayNumber
		if used[day] == nil {
			used[day] = make(map[int]bool)
		}
		order := out[i].VisitOrder
		if order < 1 {
			order = maxOrder[day] + 1
		}
		for used[day][order] {
			order++
		}
		used[day][order] = true
		if order > maxOrder[day] {
			maxOrder[day] = order
		}
		out[i].VisitOrder = order
	}
	return out
}

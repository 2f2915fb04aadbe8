package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/heritagelanka/ceylon360-backend/internal/models"
)

// dateLayout is how civil trip dates are bound to DATE columns
const dateLayout = "2006-01-02"

// errNotApplied rolls back a conditional transition whose guard failed
var errNotApplied = errors.New("transition not applied")

const tripColumns = `
	id, traveler_id, guide_id, title, from_date, to_date, status, booking_status,
	needs_guide, planning_mode, total_distance_km, created_at, updated_at`

const locationColumns = `
	id, trip_id, day_number, visit_order, title, address, category,
	latitude, longitude, duration_minutes`

// TripRepository handles trip and itinerary database operations
type TripRepository struct {
	db DB
}

// NewTripRepository creates a new trip repository
func NewTripRepository(db DB) *TripRepository {
	return &TripRepository{db: db}
}

func statusArray(statuses []models.TripStatus) interface{} {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return pq.Array(out)
}

// CreateTrip inserts a trip and its locations in one transaction
func (r *TripRepository) CreateTrip(ctx context.Context, trip *models.Trip) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO trips (`+tripColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			trip.ID, trip.TravelerID, trip.GuideID, trip.Title,
			models.CivilDate(trip.FromDate).Format(dateLayout), models.CivilDate(trip.ToDate).Format(dateLayout),
			trip.Status, trip.BookingStatus, trip.NeedsGuide, trip.PlanningMode,
			trip.TotalDistanceKm, trip.CreatedAt, trip.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create trip: %w", err)
		}

		for _, loc := range trip.Locations {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO trip_locations (`+locationColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				loc.ID, trip.ID, loc.DayNumber, loc.VisitOrder, loc.Title, loc.Address,
				loc.Category, loc.Latitude, loc.Longitude, loc.DurationMinutes,
			)
			if err != nil {
				return fmt.Errorf("failed to create trip location %q: %w", loc.Title, err)
			}
		}
		return nil
	})
}

// GetTrip retrieves a trip with its locations
func (r *TripRepository) GetTrip(ctx context.Context, id string) (*models.Trip, error) {
	var trip models.Trip
	err := r.db.GetContext(ctx, &trip, `SELECT `+tripColumns+` FROM trips WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}

	var locations []models.TripLocation
	err = r.db.SelectContext(ctx, &locations, `
		SELECT `+locationColumns+` FROM trip_locations
		WHERE trip_id = $1
		ORDER BY day_number, visit_order`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get trip locations: %w", err)
	}
	trip.Locations = locations
	return &trip, nil
}

func (r *TripRepository) selectTrips(ctx context.Context, query string, args ...interface{}) ([]models.Trip, error) {
	trips := []models.Trip{}
	if err := r.db.SelectContext(ctx, &trips, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	return trips, nil
}

// ListTripsByTraveler returns a traveler's trips, newest first
func (r *TripRepository) ListTripsByTraveler(ctx context.Context, travelerID string) ([]models.Trip, error) {
	return r.selectTrips(ctx, `
		SELECT `+tripColumns+` FROM trips
		WHERE traveler_id = $1
		ORDER BY from_date DESC`, travelerID)
}

// ListTripsByGuide returns the trips a guide is assigned to, newest first
func (r *TripRepository) ListTripsByGuide(ctx context.Context, guideID string) ([]models.Trip, error) {
	return r.selectTrips(ctx, `
		SELECT `+tripColumns+` FROM trips
		WHERE guide_id = $1
		ORDER BY from_date DESC`, guideID)
}

// ListTrips returns every trip, optionally filtered by status
func (r *TripRepository) ListTrips(ctx context.Context, status models.TripStatus) ([]models.Trip, error) {
	if status == "" {
		return r.selectTrips(ctx, `SELECT `+tripColumns+` FROM trips ORDER BY created_at DESC`)
	}
	return r.selectTrips(ctx, `
		SELECT `+tripColumns+` FROM trips
		WHERE status = $1
		ORDER BY created_at DESC`, status)
}

// ListTripsStartingOn returns trips in the given statuses whose first day is day
func (r *TripRepository) ListTripsStartingOn(ctx context.Context, statuses []models.TripStatus, day time.Time) ([]models.Trip, error) {
	return r.selectTrips(ctx, `
		SELECT `+tripColumns+` FROM trips
		WHERE status = ANY($1) AND from_date = $2
		ORDER BY id`, statusArray(statuses), models.CivilDate(day).Format(dateLayout))
}

// ListTripsWithLocations returns trips in a status with their itineraries loaded
func (r *TripRepository) ListTripsWithLocations(ctx context.Context, status models.TripStatus) ([]models.Trip, error) {
	trips, err := r.ListTrips(ctx, status)
	if err != nil || len(trips) == 0 {
		return trips, err
	}

	ids := make([]string, len(trips))
	for i := range trips {
		ids[i] = trips[i].ID
	}
	var locations []models.TripLocation
	err = r.db.SelectContext(ctx, &locations, `
		SELECT `+locationColumns+` FROM trip_locations
		WHERE trip_id = ANY($1)
		ORDER BY trip_id, day_number, visit_order`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to list trip locations: %w", err)
	}

	byTrip := make(map[string][]models.TripLocation, len(trips))
	for _, loc := range locations {
		byTrip[loc.TripID] = append(byTrip[loc.TripID], loc)
	}
	for i := range trips {
		trips[i].Locations = byTrip[trips[i].ID]
	}
	return trips, nil
}

// ListOpenTripsNeedingGuide returns PLANNING trips still waiting for a guide
func (r *TripRepository) ListOpenTripsNeedingGuide(ctx context.Context) ([]models.Trip, error) {
	return r.selectTrips(ctx, `
		SELECT `+tripColumns+` FROM trips
		WHERE needs_guide AND guide_id IS NULL AND status = $1
		ORDER BY from_date`, models.TripStatusPlanning)
}

// HasInProgressTrip reports whether the traveler has a trip IN_PROGRESS
func (r *TripRepository) HasInProgressTrip(ctx context.Context, travelerID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS(SELECT 1 FROM trips WHERE traveler_id = $1 AND status = $2)`,
		travelerID, models.TripStatusInProgress)
	if err != nil {
		return false, fmt.Errorf("failed to check in-progress trips: %w", err)
	}
	return exists, nil
}

// AssignGuide sets the trip's guide only if none is assigned yet. The
// condition sits in the UPDATE so concurrent accepts have one winner.
func (r *TripRepository) AssignGuide(ctx context.Context, tripID, guideID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE trips
		SET guide_id = $2, booking_status = $3, updated_at = NOW()
		WHERE id = $1 AND guide_id IS NULL AND needs_guide AND status = $4`,
		tripID, guideID, models.BookingStatusAccepted, models.TripStatusPlanning)
	if err != nil {
		return false, fmt.Errorf("failed to assign guide: %w", err)
	}
	return affected(res)
}

// ApplyTransition performs a conditional status change together with its
// guide flag and payment side effects. It reports false, writing nothing,
// when any guard fails.
func (r *TripRepository) ApplyTransition(ctx context.Context, t models.TripTransition) (bool, error) {
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var current struct {
			Status     models.TripStatus `db:"status"`
			TravelerID string            `db:"traveler_id"`
		}
		err := tx.GetContext(ctx, &current, `
			SELECT status, traveler_id FROM trips WHERE id = $1 FOR UPDATE`, t.TripID)
		if err == sql.ErrNoRows {
			return errNotApplied
		}
		if err != nil {
			return fmt.Errorf("failed to lock trip: %w", err)
		}
		if !containsStatus(t.From, current.Status) || !current.Status.CanTransitionTo(t.To) {
			return errNotApplied
		}

		if t.RequirePaid {
			var paid bool
			err := tx.GetContext(ctx, &paid, `
				SELECT EXISTS(SELECT 1 FROM payments WHERE trip_id = $1 AND status = $2)`,
				t.TripID, models.PaymentStatusPaid)
			if err != nil {
				return fmt.Errorf("failed to check payment: %w", err)
			}
			if !paid {
				return errNotApplied
			}
		}

		if t.ExclusiveTraveler {
			// serializes starts of different trips by the same traveler
			if _, err := tx.ExecContext(ctx, `
				SELECT 1 FROM travelers WHERE id = $1 FOR UPDATE`, current.TravelerID); err != nil {
				return fmt.Errorf("failed to lock traveler: %w", err)
			}

			var busy bool
			err := tx.GetContext(ctx, &busy, `
				SELECT EXISTS(SELECT 1 FROM trips WHERE traveler_id = $1 AND id <> $2 AND status = $3)`,
				current.TravelerID, t.TripID, models.TripStatusInProgress)
			if err != nil {
				return fmt.Errorf("failed to check traveler trips: %w", err)
			}
			if busy {
				return errNotApplied
			}
		}

		if t.GuideID != nil && t.GuideBusy != nil {
			query := `UPDATE guides SET trip_in_progress = $2 WHERE id = $1`
			if *t.GuideBusy {
				query += ` AND NOT trip_in_progress`
			}
			res, err := tx.ExecContext(ctx, query, *t.GuideID, *t.GuideBusy)
			if err != nil {
				return fmt.Errorf("failed to update guide availability: %w", err)
			}
			ok, err := affected(res)
			if err != nil {
				return err
			}
			if !ok {
				return errNotApplied
			}
		}

		if t.PaymentTo != "" {
			_, err := tx.ExecContext(ctx, `
				UPDATE payments SET status = $3, updated_at = NOW()
				WHERE trip_id = $1 AND status = $2`,
				t.TripID, t.PaymentFrom, t.PaymentTo)
			if err != nil {
				return fmt.Errorf("failed to update payment: %w", err)
			}
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE trips
			SET status = $2,
			    booking_status = COALESCE(NULLIF($3, ''), booking_status),
			    updated_at = NOW()
			WHERE id = $1 AND status = ANY($4)`,
			t.TripID, t.To, string(t.BookingStatus), statusArray(t.From))
		if isUniqueViolation(err) {
			return errNotApplied
		}
		if err != nil {
			return fmt.Errorf("failed to update trip status: %w", err)
		}
		ok, err := affected(res)
		if err != nil {
			return err
		}
		if !ok {
			return errNotApplied
		}
		return nil
	})
	if errors.Is(err, errNotApplied) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// isUniqueViolation matches the partial indexes that allow one IN_PROGRESS
// trip per traveler and per guide
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// DeleteTrip removes a trip still in one of the given statuses. Locations,
// verifications and unpaid payments cascade.
func (r *TripRepository) DeleteTrip(ctx context.Context, id string, statuses []models.TripStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM trips WHERE id = $1 AND status = ANY($2)`, id, statusArray(statuses))
	if err != nil {
		return false, fmt.Errorf("failed to delete trip: %w", err)
	}
	return affected(res)
}

func containsStatus(list []models.TripStatus, s models.TripStatus) bool {
	for _, candidate := range list {
		if candidate == s {
			return true
		}
	}
	return false
}

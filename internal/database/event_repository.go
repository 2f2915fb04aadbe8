package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/heritagelanka/ceylon360-backend/internal/models"
)

const eventColumns = `id, title, venue, starts_at, ticket_price, capacity, tickets_sold, created_at`

// EventRepository handles ticketed event database operations
type EventRepository struct {
	db DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db DB) *EventRepository {
	return &EventRepository{db: db}
}

// CreateEvent inserts an event
func (r *EventRepository) CreateEvent(ctx context.Context, e *models.Event) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.Title, e.Venue, e.StartsAt, e.TicketPrice, e.Capacity, e.TicketsSold, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// GetEvent retrieves an event by ID
func (r *EventRepository) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var e models.Event
	err := r.db.GetContext(ctx, &e, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return &e, nil
}

// ListEvents returns events starting after from, soonest first
func (r *EventRepository) ListEvents(ctx context.Context, from time.Time) ([]models.Event, error) {
	events := []models.Event{}
	err := r.db.SelectContext(ctx, &events, `
		SELECT `+eventColumns+` FROM events
		WHERE starts_at > $1
		ORDER BY starts_at`, from)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// ReserveTickets takes p.Quantity seats and records the pending payment in
// one transaction. It reports false when too few seats are left.
func (r *EventRepository) ReserveTickets(ctx context.Context, eventID string, p *models.Payment) (bool, error) {
	reserved := false
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE events
			SET tickets_sold = tickets_sold + $2
			WHERE id = $1 AND tickets_sold + $2 <= capacity`, eventID, p.Quantity)
		if err != nil {
			return fmt.Errorf("failed to reserve seats: %w", err)
		}
		if reserved, err = affected(res); err != nil || !reserved {
			return err
		}

		if _, err := insertPayment(ctx, tx, p, ""); err != nil {
			return fmt.Errorf("failed to create ticket payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return reserved, nil
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/heritagelanka/ceylon360-backend/internal/models"
)

const paymentColumns = `
	id, trip_id, event_id, payer_id, amount, currency, quantity, status,
	session_id, redirect_url, paid_at, created_at, updated_at`

// PaymentRepository handles trip and ticket payment database operations
type PaymentRepository struct {
	db DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func insertPayment(ctx context.Context, ex sqlx.ExecerContext, p *models.Payment, onConflict string) (sql.Result, error) {
	return ex.ExecContext(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`+onConflict,
		p.ID, p.TripID, p.EventID, p.PayerID, p.Amount, p.Currency, p.Quantity, p.Status,
		p.SessionID, p.RedirectURL, p.PaidAt, p.CreatedAt, p.UpdatedAt,
	)
}

// CreateTripPayment inserts a trip payment unless the trip already has one
func (r *PaymentRepository) CreateTripPayment(ctx context.Context, p *models.Payment) (bool, error) {
	res, err := insertPayment(ctx, r.db, p, `
		ON CONFLICT (trip_id) WHERE trip_id IS NOT NULL DO NOTHING`)
	if err != nil {
		return false, fmt.Errorf("failed to create payment: %w", err)
	}
	return affected(res)
}

func (r *PaymentRepository) getPayment(ctx context.Context, where string, arg interface{}) (*models.Payment, error) {
	var p models.Payment
	err := r.db.GetContext(ctx, &p, `SELECT `+paymentColumns+` FROM payments WHERE `+where, arg)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &p, nil
}

// GetPayment retrieves a payment by ID
func (r *PaymentRepository) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	return r.getPayment(ctx, `id = $1`, id)
}

// GetPaymentByTrip retrieves the payment of a trip
func (r *PaymentRepository) GetPaymentByTrip(ctx context.Context, tripID string) (*models.Payment, error) {
	return r.getPayment(ctx, `trip_id = $1`, tripID)
}

// SetPaymentSession stores the checkout session opened for a payment
func (r *PaymentRepository) SetPaymentSession(ctx context.Context, id, sessionID, redirectURL string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET session_id = $2, redirect_url = $3, updated_at = NOW()
		WHERE id = $1`, id, sessionID, redirectURL)
	if err != nil {
		return fmt.Errorf("failed to store payment session: %w", err)
	}
	return nil
}

// MarkPaid moves a PENDING payment to PAID
func (r *PaymentRepository) MarkPaid(ctx context.Context, id string, paidAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET status = $2, paid_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4`,
		id, models.PaymentStatusPaid, paidAt, models.PaymentStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment paid: %w", err)
	}
	return affected(res)
}

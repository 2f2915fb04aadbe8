package models

import (
	"errors"
	"time"
)

// PaymentStatus represents the state of a trip or ticket payment
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusPaid      PaymentStatus = "PAID"
	PaymentStatusReleased  PaymentStatus = "RELEASED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// IsSettled reports whether money has been collected for the payment
func (s PaymentStatus) IsSettled() bool {
	return s == PaymentStatusPaid || s == PaymentStatusReleased
}

// Payment is a charge for either a trip or event tickets, never both
type Payment struct {
	ID          string        `json:"id" db:"id"`
	TripID      *string       `json:"trip_id,omitempty" db:"trip_id"`
	EventID     *string       `json:"event_id,omitempty" db:"event_id"`
	PayerID     string        `json:"payer_id" db:"payer_id"`
	Amount      float64       `json:"amount" db:"amount"`
	Currency    string        `json:"currency" db:"currency"`
	Quantity    int           `json:"quantity" db:"quantity"`
	Status      PaymentStatus `json:"status" db:"status"`
	SessionID   *string       `json:"session_id,omitempty" db:"session_id"`
	RedirectURL *string       `json:"redirect_url,omitempty" db:"redirect_url"`
	PaidAt      *time.Time    `json:"paid_at,omitempty" db:"paid_at"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
}

var (
	ErrPaymentTarget = errors.New("payment must reference exactly one of trip or event")
	ErrPaymentAmount = errors.New("payment amount must be positive")
)

// Validate checks the payment references exactly one target and has a positive amount
func (p *Payment) Validate() error {
	hasTrip := p.TripID != nil && *p.TripID != ""
	hasEvent := p.EventID != nil && *p.EventID != ""
	if hasTrip == hasEvent {
		return ErrPaymentTarget
	}
	if p.Amount <= 0 {
		return ErrPaymentAmount
	}
	return nil
}

// PaymentSession is returned to the client to continue checkout
type PaymentSession struct {
	PaymentID   string  `json:"payment_id"`
	SessionID   string  `json:"session_id"`
	RedirectURL string  `json:"redirect_url"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
}

package services

import (
	"context"
	"time"

	"github.com/heritagelanka/ceylon360-backend/internal/models"
	"github.com/heritagelanka/ceylon360-backend/internal/payment"
	"github.com/heritagelanka/ceylon360-backend/internal/planner"
)

// Lookups return (nil, nil) when the row does not exist.

// TripStore persists trips and their itinerary locations
type TripStore interface {
	CreateTrip(ctx context.Context, trip *models.Trip) error
	GetTrip(ctx context.Context, id string) (*models.Trip, error)
	ListTripsByTraveler(ctx context.Context, travelerID string) ([]models.Trip, error)
	ListTripsByGuide(ctx context.Context, guideID string) ([]models.Trip, error)
	ListTrips(ctx context.Context, status models.TripStatus) ([]models.Trip, error)
	ListTripsStartingOn(ctx context.Context, statuses []models.TripStatus, day time.Time) ([]models.Trip, error)
	ListTripsWithLocations(ctx context.Context, status models.TripStatus) ([]models.Trip, error)
	ListOpenTripsNeedingGuide(ctx context.Context) ([]models.Trip, error)
	HasInProgressTrip(ctx context.Context, travelerID string) (bool, error)
	AssignGuide(ctx context.Context, tripID, guideID string) (bool, error)
	ApplyTransition(ctx context.Context, t models.TripTransition) (bool, error)
	DeleteTrip(ctx context.Context, id string, statuses []models.TripStatus) (bool, error)
}

// PaymentStore persists trip and ticket payments
type PaymentStore interface {
	CreateTripPayment(ctx context.Context, p *models.Payment) (bool, error)
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	GetPaymentByTrip(ctx context.Context, tripID string) (*models.Payment, error)
	SetPaymentSession(ctx context.Context, id, sessionID, redirectURL string) error
	MarkPaid(ctx context.Context, id string, paidAt time.Time) (bool, error)
}

// UserStore persists accounts and their role profiles
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User, traveler *models.Traveler, guide *models.Guide) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetTravelerByUserID(ctx context.Context, userID string) (*models.Traveler, error)
	GetTravelerByID(ctx context.Context, id string) (*models.Traveler, error)
	GetGuideByUserID(ctx context.Context, userID string) (*models.Guide, error)
	GetGuideByID(ctx context.Context, id string) (*models.Guide, error)
	SetTelegramChatID(ctx context.Context, userID string, chatID int64) error
}

// VerificationStore persists start OTPs
type VerificationStore interface {
	CreateVerification(ctx context.Context, v *models.TripVerification) error
	GetActiveVerification(ctx context.Context, tripID string) (*models.TripVerification, error)
	HasVerified(ctx context.Context, tripID, guideID string) (bool, error)
	IncrementAttempts(ctx context.Context, id string) (int, error)
	MarkVerified(ctx context.Context, v *models.TripVerification) (bool, error)
}

// ReviewStore persists trip reviews
type ReviewStore interface {
	CreateReview(ctx context.Context, r *models.Review) (bool, error)
	ListReviewsFor(ctx context.Context, userID string) ([]models.Review, error)
	ListReviewsBy(ctx context.Context, userID string) ([]models.Review, error)
}

// EventStore persists ticketed events
type EventStore interface {
	CreateEvent(ctx context.Context, e *models.Event) error
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	ListEvents(ctx context.Context, from time.Time) ([]models.Event, error)
	ReserveTickets(ctx context.Context, eventID string, p *models.Payment) (bool, error)
}

// CheckoutGateway opens hosted checkout sessions and authenticates their webhooks
type CheckoutGateway interface {
	CreateSession(ctx context.Context, req payment.CheckoutRequest) (*payment.Session, error)
	VerifyWebhook(body []byte) (*payment.WebhookEvent, error)
}

// PlanGenerator drafts an itinerary from a traveler's preferences
type PlanGenerator interface {
	GeneratePlan(ctx context.Context, req planner.Request) (*planner.Draft, error)
}

// ReminderLedger remembers which reminders were already sent
type ReminderLedger interface {
	// Claim returns true the first time a key is claimed within ttl.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release forgets a claim so a failed send can be retried.
	Release(ctx context.Context, key string) error
}

// NoopLedger claims every key, so reruns resend reminders
type NoopLedger struct{}

// Claim always succeeds
func (NoopLedger) Claim(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}

// Release does nothing
func (NoopLedger) Release(context.Context, string) error { return nil }

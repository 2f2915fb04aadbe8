package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/heritagelanka/ceylon360-backend/internal/config"
	"github.com/heritagelanka/ceylon360-backend/internal/events"
	"github.com/heritagelanka/ceylon360-backend/internal/metrics"
	"github.com/heritagelanka/ceylon360-backend/internal/models"
	"github.com/heritagelanka/ceylon360-backend/internal/payment"
)

// PaymentService requests trip payments and records gateway confirmations.
// Recording a payment never changes the trip's status.
type PaymentService struct {
	trips     TripStore
	payments  PaymentStore
	profiles  profiles
	gateway   CheckoutGateway
	pricing   config.PricingConfig
	publisher events.Publisher
	metrics   *metrics.Metrics
	clock     Clock
	logger    *logrus.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	trips TripStore,
	payments PaymentStore,
	users UserStore,
	gateway CheckoutGateway,
	pricing config.PricingConfig,
	publisher events.Publisher,
	m *metrics.Metrics,
	clock Clock,
	logger *logrus.Logger,
) *PaymentService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &PaymentService{
		trips:     trips,
		payments:  payments,
		profiles:  profiles{users: users},
		gateway:   gateway,
		pricing:   pricing,
		publisher: publisher,
		metrics:   m,
		clock:     clock,
		logger:    logger,
	}
}

// RequestPayment opens a checkout session for a confirmed trip. A trip has
// at most one payment; a pending payment whose session was never opened may
// be retried.
func (s *PaymentService) RequestPayment(ctx context.Context, actor Actor, tripID string) (*models.PaymentSession, error) {
	traveler, err := s.profiles.traveler(ctx, actor)
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
	if trip.TravelerID != traveler.ID {
		return nil, ErrNotTripOwner
	}
	if trip.Status != models.TripStatusConfirmed {
		return nil, fmt.Errorf("%w: payment can only be requested for a CONFIRMED trip, trip is %s", ErrInvalidTransition, trip.Status)
	}

	p, err := s.payments.GetPaymentByTrip(ctx, trip.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	if p != nil && (p.Status != models.PaymentStatusPending || p.SessionID != nil) {
		return nil, ErrPaymentExists
	}

	if p == nil {
		amount, err := s.tripAmount(ctx, trip)
		if err != nil {
			return nil, err
		}
		now := s.clock.Now()
		p = &models.Payment{
			ID:        uuid.New().String(),
			TripID:    &trip.ID,
			PayerID:   traveler.ID,
			Amount:    amount,
			Currency:  s.pricing.Currency,
			Quantity:  1,
			Status:    models.PaymentStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := p.Validate(); err != nil {
			return nil, validation("%s", err.Error())
		}
		created, err := s.payments.CreateTripPayment(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("failed to create payment: %w", err)
		}
		if !created {
			return nil, ErrPaymentExists
		}
	}

	user, err := s.profiles.user(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return s.openSession(ctx, p, user, fmt.Sprintf("Trip: %s", trip.Title))
}

// openSession asks the gateway for a checkout and stores the session on the payment
func (s *PaymentService) openSession(ctx context.Context, p *models.Payment, payer *models.User, description string) (*models.PaymentSession, error) {
	req := payment.CheckoutRequest{
		InvoiceID:     p.ID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Description:   description,
		CustomerName:  payer.Name,
		CustomerEmail: payer.Email,
	}
	if payer.Phone != nil {
		req.CustomerPhone = *payer.Phone
	}

	session, err := s.gateway.CreateSession(ctx, req)
	if err != nil {
		s.logger.WithError(err).WithField("payment_id", p.ID).Error("Failed to open checkout session")
		return nil, upstream("create checkout session", err)
	}
	if err := s.payments.SetPaymentSession(ctx, p.ID, session.SessionID, session.RedirectURL); err != nil {
		return nil, fmt.Errorf("failed to store checkout session: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"payment_id": p.ID,
		"session_id": session.SessionID,
		"amount":     p.Amount,
	}).Info("Checkout session opened")

	return &models.PaymentSession{
		PaymentID:   p.ID,
		SessionID:   session.SessionID,
		RedirectURL: session.RedirectURL,
		Amount:      p.Amount,
		Currency:    p.Currency,
	}, nil
}

// tripAmount prices a guided trip at the guide's daily rate for each day and
// a self-guided trip at the platform fee.
func (s *PaymentService) tripAmount(ctx context.Context, trip *models.Trip) (float64, error) {
	if !trip.HasGuide() {
		return s.pricing.PlatformFee, nil
	}
	g, err := s.profiles.users.GetGuideByID(ctx, *trip.GuideID)
	if err != nil {
		return 0, fmt.Errorf("failed to load guide: %w", err)
	}
	if g == nil {
		return 0, ErrGuideNotFound
	}
	if g.DailyRate <= 0 {
		return s.pricing.PlatformFee, nil
	}
	return g.DailyRate * float64(trip.Days()), nil
}

// GetTripPayment returns the payment for a trip the caller may view
func (s *PaymentService) GetTripPayment(ctx context.Context, actor Actor, tripID string) (*models.Payment, error) {
	trip, err := s.trips.GetTrip(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trip: %w", err)
	}
	if trip == nil {
		return nil, ErrTripNotFound
	}
	if err := s.profiles.canView(ctx, actor, trip); err != nil {
		return nil, err
	}
	p, err := s.payments.GetPaymentByTrip(ctx, trip.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	if p == nil {
		return nil, ErrPaymentNotFound
	}
	return p, nil
}

// MarkPaid records an authenticated gateway confirmation. Replayed webhooks
// return the already-paid payment.
func (s *PaymentService) MarkPaid(ctx context.Context, body []byte) (*models.Payment, error) {
	evt, err := s.gateway.VerifyWebhook(body)
	if err != nil {
		s.logger.WithError(err).Warn("Rejected payment webhook")
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}

	log := s.logger.WithFields(logrus.Fields{
		"payment_id":     evt.InvoiceID,
		"transaction_id": evt.TransactionID,
	})

	p, err := s.payments.GetPayment(ctx, evt.InvoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	if p == nil {
		log.Warn("Webhook for unknown payment")
		return nil, ErrPaymentNotFound
	}
	if !evt.Successful {
		log.Info("Gateway reported an unsuccessful payment")
		return p, nil
	}
	if p.Status.IsSettled() {
		log.Debug("Payment already settled")
		return p, nil
	}
	if p.Status != models.PaymentStatusPending {
		return nil, fmt.Errorf("%w: payment is %s", ErrPreconditionFailed, p.Status)
	}

	paidAt := s.clock.Now()
	ok, err := s.payments.MarkPaid(ctx, p.ID, paidAt)
	if err != nil {
		return nil, fmt.Errorf("failed to mark payment paid: %w", err)
	}

	current, err := s.payments.GetPayment(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	if current == nil {
		return nil, ErrPaymentNotFound
	}
	if !ok {
		if current.Status.IsSettled() {
			return current, nil
		}
		return nil, fmt.Errorf("%w: payment is %s", ErrPreconditionFailed, current.Status)
	}

	s.metrics.PaymentPaid()
	log.Info("Payment marked as paid")

	evtOut := events.Event{Key: events.KeyPaymentPaid, PaymentID: p.ID, OccurredAt: paidAt.UTC()}
	if p.TripID != nil {
		evtOut.TripID = *p.TripID
	}
	if p.EventID != nil {
		evtOut.EventID = *p.EventID
	}
	if err := s.publisher.Publish(ctx, evtOut); err != nil {
		log.WithError(err).Warn("Failed to publish payment event")
	}

	return current, nil
}


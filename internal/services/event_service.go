package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/heritagelanka/ceylon360-backend/internal/events"
	"github.com/heritagelanka/ceylon360-backend/internal/models"
)

// EventService publishes ticketed cultural events and sells their tickets
type EventService struct {
	events    EventStore
	payments  *PaymentService
	profiles  profiles
	currency  string
	publisher events.Publisher
	clock     Clock
	logger    *logrus.Logger
}

// NewEventService creates a new EventService
func NewEventService(
	store EventStore,
	payments *PaymentService,
	users UserStore,
	currency string,
	publisher events.Publisher,
	clock Clock,
	logger *logrus.Logger,
) *EventService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &EventService{
		events:    store,
		payments:  payments,
		profiles:  profiles{users: users},
		currency:  currency,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
	}
}

// ListEvents returns upcoming events
func (s *EventService) ListEvents(ctx context.Context) ([]models.Event, error) {
	list, err := s.events.ListEvents(ctx, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return list, nil
}

// GetEvent returns one event
func (s *EventService) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	e, err := s.events.GetEvent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load event: %w", err)
	}
	if e == nil {
		return nil, ErrEventNotFound
	}
	return e, nil
}

// CreateEvent publishes a new event (admin)
func (s *EventService) CreateEvent(ctx context.Context, actor Actor, req *models.CreateEventRequest) (*models.Event, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, validation("title is required")
	}
	if req.Capacity <= 0 || req.TicketPrice <= 0 {
		return nil, validation("capacity and ticket price must be positive")
	}
	if !req.StartsAt.After(s.clock.Now()) {
		return nil, validation("event must start in the future")
	}

	e := &models.Event{
		ID:          uuid.New().String(),
		Title:       strings.TrimSpace(req.Title),
		Venue:       strings.TrimSpace(req.Venue),
		StartsAt:    req.StartsAt,
		TicketPrice: req.TicketPrice,
		Capacity:    req.Capacity,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.events.CreateEvent(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"event_id": e.ID, "capacity": e.Capacity}).Info("Event created")
	return e, nil
}

// PurchaseTicket reserves seats and opens a checkout session for them. The
// seats and the pending payment are written together, so an oversold event
// is refused rather than overbooked.
func (s *EventService) PurchaseTicket(ctx context.Context, actor Actor, eventID string, quantity int) (*models.PaymentSession, error) {
	traveler, err := s.profiles.traveler(ctx, actor)
	if err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, validation("quantity must be positive")
	}

	e, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !e.StartsAt.After(s.clock.Now()) {
		return nil, fmt.Errorf("%w: event has already started", ErrPreconditionFailed)
	}
	if e.SeatsLeft() < quantity {
		return nil, ErrSoldOut
	}

	now := s.clock.Now()
	p := &models.Payment{
		ID:        uuid.New().String(),
		EventID:   &e.ID,
		PayerID:   traveler.ID,
		Amount:    e.TicketPrice * float64(quantity),
		Currency:  s.currency,
		Quantity:  quantity,
		Status:    models.PaymentStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.Validate(); err != nil {
		return nil, validation("%s", err.Error())
	}

	reserved, err := s.events.ReserveTickets(ctx, e.ID, p)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve tickets: %w", err)
	}
	if !reserved {
		return nil, ErrSoldOut
	}

	log := s.logger.WithFields(logrus.Fields{"event_id": e.ID, "payment_id": p.ID, "quantity": quantity})
	log.Info("Tickets reserved")

	evt := events.Event{
		Key:        events.KeyTicketsReserved,
		EventID:    e.ID,
		PaymentID:  p.ID,
		Attributes: map[string]string{"quantity": strconv.Itoa(quantity)},
		OccurredAt: now.UTC(),
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		log.WithError(err).Warn("Failed to publish ticket reservation")
	}

	user, err := s.profiles.user(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return s.payments.openSession(ctx, p, user, fmt.Sprintf("%d x %s", quantity, e.Title))
}

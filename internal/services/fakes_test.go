package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/heritagelanka/ceylon360-backend/internal/models"
	"github.com/heritagelanka/ceylon360-backend/internal/payment"
	"github.com/heritagelanka/ceylon360-backend/internal/planner"
)

// memStore is an in-memory implementation of every store port. Conditional
// writes hold the mutex for their whole check-and-set, like a transaction.
type memStore struct {
	mu            sync.Mutex
	users         map[string]*models.User
	travelers     map[string]*models.Traveler
	guides        map[string]*models.Guide
	trips         map[string]*models.Trip
	payments      map[string]*models.Payment
	verifications map[string]*models.TripVerification
	reviews       []*models.Review
	events        map[string]*models.Event

	// failTransition forces ApplyTransition to report a lost race once
	failTransition bool
}

func newMemStore() *memStore {
	return &memStore{
		users:         make(map[string]*models.User),
		travelers:     make(map[string]*models.Traveler),
		guides:        make(map[string]*models.Guide),
		trips:         make(map[string]*models.Trip),
		payments:      make(map[string]*models.Payment),
		verifications: make(map[string]*models.TripVerification),
		events:        make(map[string]*models.Event),
	}
}

func cloneTrip(t *models.Trip) *models.Trip {
	c := *t
	if t.GuideID != nil {
		g := *t.GuideID
		c.GuideID = &g
	}
	c.Locations = append([]models.TripLocation(nil), t.Locations...)
	return &c
}

func clonePayment(p *models.Payment) *models.Payment {
	c := *p
	return &c
}

// TripStore

func (m *memStore) CreateTrip(_ context.Context, trip *models.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[trip.ID] = cloneTrip(trip)
	return nil
}

func (m *memStore) GetTrip(_ context.Context, id string) (*models.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[id]
	if !ok {
		return nil, nil
	}
	return cloneTrip(t), nil
}

func (m *memStore) list(filter func(*models.Trip) bool) []models.Trip {
	var out []models.Trip
	for _, t := range m.trips {
		if filter(t) {
			out = append(out, *cloneTrip(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) ListTripsByTraveler(_ context.Context, travelerID string) ([]models.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list(func(t *models.Trip) bool { return t.TravelerID == travelerID }), nil
}

func (m *memStore) ListTripsByGuide(_ context.Context, guideID string) ([]models.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list(func(t *models.Trip) bool { return t.IsGuidedBy(guideID) }), nil
}

func (m *memStore) ListTrips(_ context.Context, status models.TripStatus) ([]models.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list(func(t *models.Trip) bool { return status == "" || t.Status == status }), nil
}

func (m *memStore) ListTripsStartingOn(_ context.Context, statuses []models.TripStatus, day time.Time) ([]models.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := models.CivilDate(day)
	return m.list(func(t *models.Trip) bool {
		return containsStatus(statuses, t.Status) && models.CivilDate(t.FromDate).Equal(want)
	}), nil
}

func (m *memStore) ListTripsWithLocations(ctx context.Context, status models.TripStatus) ([]models.Trip, error) {
	return m.ListTrips(ctx, status)
}

func (m *memStore) ListOpenTripsNeedingGuide(_ context.Context) ([]models.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list(func(t *models.Trip) bool {
		return t.NeedsGuide && !t.HasGuide() && t.Status == models.TripStatusPlanning
	}), nil
}

func (m *memStore) HasInProgressTrip(_ context.Context, travelerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.travelerBusy(travelerID, ""), nil
}

func (m *memStore) travelerBusy(travelerID, except string) bool {
	for _, t := range m.trips {
		if t.TravelerID == travelerID && t.ID != except && t.Status == models.TripStatusInProgress {
			return true
		}
	}
	return false
}

func (m *memStore) AssignGuide(_ context.Context, tripID, guideID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[tripID]
	if !ok || t.GuideID != nil || t.Status != models.TripStatusPlanning || !t.NeedsGuide {
		return false, nil
	}
	g := guideID
	t.GuideID = &g
	t.BookingStatus = models.BookingStatusAccepted
	return true, nil
}

func (m *memStore) tripPayment(tripID string) *models.Payment {
	for _, p := range m.payments {
		if p.TripID != nil && *p.TripID == tripID {
			return p
		}
	}
	return nil
}

func (m *memStore) ApplyTransition(_ context.Context, tr models.TripTransition) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTransition {
		m.failTransition = false
		return false, nil
	}

	t, ok := m.trips[tr.TripID]
	if !ok || !containsStatus(tr.From, t.Status) {
		return false, nil
	}
	p := m.tripPayment(t.ID)
	if tr.RequirePaid && (p == nil || p.Status != models.PaymentStatusPaid) {
		return false, nil
	}
	if tr.ExclusiveTraveler && m.travelerBusy(t.TravelerID, t.ID) {
		return false, nil
	}
	var guide *models.Guide
	if tr.GuideID != nil && tr.GuideBusy != nil {
		guide = m.guides[*tr.GuideID]
		if guide == nil {
			return false, nil
		}
		if *tr.GuideBusy && guide.TripInProgress {
			return false, nil
		}
	}

	if guide != nil {
		guide.TripInProgress = *tr.GuideBusy
	}
	if tr.PaymentTo != "" && p != nil && p.Status == tr.PaymentFrom {
		p.Status = tr.PaymentTo
	}
	t.Status = tr.To
	if tr.BookingStatus != "" {
		t.BookingStatus = tr.BookingStatus
	}
	return true, nil
}

func (m *memStore) DeleteTrip(_ context.Context, id string, statuses []models.TripStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[id]
	if !ok || !containsStatus(statuses, t.Status) {
		return false, nil
	}
	delete(m.trips, id)
	return true, nil
}

// PaymentStore

func (m *memStore) CreateTripPayment(_ context.Context, p *models.Payment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tripPayment(*p.TripID) != nil {
		return false, nil
	}
	m.payments[p.ID] = clonePayment(p)
	return true, nil
}

func (m *memStore) GetPayment(_ context.Context, id string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, nil
	}
	return clonePayment(p), nil
}

func (m *memStore) GetPaymentByTrip(_ context.Context, tripID string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p := m.tripPayment(tripID); p != nil {
		return clonePayment(p), nil
	}
	return nil, nil
}

func (m *memStore) SetPaymentSession(_ context.Context, id, sessionID, redirectURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return fmt.Errorf("payment %s missing", id)
	}
	p.SessionID = &sessionID
	p.RedirectURL = &redirectURL
	return nil
}

func (m *memStore) MarkPaid(_ context.Context, id string, paidAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.Status != models.PaymentStatusPending {
		return false, nil
	}
	p.Status = models.PaymentStatusPaid
	p.PaidAt = &paidAt
	return true, nil
}

// UserStore

func (m *memStore) CreateUser(_ context.Context, u *models.User, traveler *models.Traveler, guide *models.Guide) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return errors.New("duplicate email")
		}
	}
	c := *u
	m.users[u.ID] = &c
	if traveler != nil {
		t := *traveler
		m.travelers[t.ID] = &t
	}
	if guide != nil {
		g := *guide
		m.guides[g.ID] = &g
	}
	return nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, nil
}

func (m *memStore) GetTravelerByUserID(_ context.Context, userID string) (*models.Traveler, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.travelers {
		if t.UserID == userID {
			c := *t
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetTravelerByID(_ context.Context, id string) (*models.Traveler, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.travelers[id]; ok {
		c := *t
		return &c, nil
	}
	return nil, nil
}

func (m *memStore) GetGuideByUserID(_ context.Context, userID string) (*models.Guide, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.guides {
		if g.UserID == userID {
			c := *g
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetGuideByID(_ context.Context, id string) (*models.Guide, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.guides[id]; ok {
		c := *g
		return &c, nil
	}
	return nil, nil
}

func (m *memStore) SetTelegramChatID(_ context.Context, userID string, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("user %s missing", userID)
	}
	u.TelegramChatID = &chatID
	return nil
}

// VerificationStore

func (m *memStore) CreateVerification(_ context.Context, v *models.TripVerification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, old := range m.verifications {
		if old.TripID == v.TripID && old.VerifiedAt == nil {
			old.Invalidated = true
		}
	}
	c := *v
	m.verifications[v.ID] = &c
	return nil
}

func (m *memStore) GetActiveVerification(_ context.Context, tripID string) (*models.TripVerification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.TripVerification
	for _, v := range m.verifications {
		if v.TripID != tripID || v.Invalidated {
			continue
		}
		if latest == nil || v.IssuedAt.After(latest.IssuedAt) {
			latest = v
		}
	}
	if latest == nil {
		return nil, nil
	}
	c := *latest
	return &c, nil
}

func (m *memStore) HasVerified(_ context.Context, tripID, guideID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.verifications {
		if v.TripID == tripID && v.VerifiedAt != nil && v.GuideID != nil && *v.GuideID == guideID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) IncrementAttempts(_ context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.verifications[id]
	if !ok {
		return 0, fmt.Errorf("verification %s missing", id)
	}
	v.Attempts++
	return v.Attempts, nil
}

func (m *memStore) MarkVerified(_ context.Context, v *models.TripVerification) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.verifications[v.ID]
	if !ok || stored.Invalidated || stored.VerifiedAt != nil || stored.Attempts >= stored.MaxAttempts {
		return false, nil
	}
	c := *v
	c.Attempts = stored.Attempts
	m.verifications[v.ID] = &c
	return true, nil
}

// ReviewStore

func (m *memStore) CreateReview(_ context.Context, r *models.Review) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.reviews {
		if existing.TripID == r.TripID && existing.ReviewerID == r.ReviewerID {
			return false, nil
		}
	}
	c := *r
	m.reviews = append(m.reviews, &c)
	return true, nil
}

func (m *memStore) ListReviewsFor(_ context.Context, userID string) ([]models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Review
	for _, r := range m.reviews {
		if r.RevieweeID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStore) ListReviewsBy(_ context.Context, userID string) ([]models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Review
	for _, r := range m.reviews {
		if r.ReviewerID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

// EventStore

func (m *memStore) CreateEvent(_ context.Context, e *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *e
	m.events[e.ID] = &c
	return nil
}

func (m *memStore) GetEvent(_ context.Context, id string) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.events[id]; ok {
		c := *e
		return &c, nil
	}
	return nil, nil
}

func (m *memStore) ListEvents(_ context.Context, from time.Time) ([]models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Event
	for _, e := range m.events {
		if e.StartsAt.After(from) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (m *memStore) ReserveTickets(_ context.Context, eventID string, p *models.Payment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[eventID]
	if !ok || e.TicketsSold+p.Quantity > e.Capacity {
		return false, nil
	}
	e.TicketsSold += p.Quantity
	m.payments[p.ID] = clonePayment(p)
	return true, nil
}

// Seeding helpers

func (m *memStore) addTraveler(userID, name string, languages ...string) *models.Traveler {
	m.mu.Lock()
	defer m.mu.Unlock()
	phone := "0771234567"
	m.users[userID] = &models.User{ID: userID, Email: userID + "@example.lk", Name: name, Phone: &phone, Role: models.RoleTraveler}
	t := &models.Traveler{ID: "trv-" + userID, UserID: userID, Languages: languages}
	m.travelers[t.ID] = t
	c := *t
	return &c
}

func (m *memStore) addGuide(userID, name string, rate float64, languages ...string) *models.Guide {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID] = &models.User{ID: userID, Email: userID + "@example.lk", Name: name, Role: models.RoleGuide}
	g := &models.Guide{ID: "gd-" + userID, UserID: userID, Languages: languages, DailyRate: rate}
	m.guides[g.ID] = g
	c := *g
	return &c
}

func (m *memStore) putTrip(t *models.Trip) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[t.ID] = cloneTrip(t)
}

func (m *memStore) putPayment(p *models.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.ID] = clonePayment(p)
}

func (m *memStore) trip(id string) *models.Trip {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.trips[id]; ok {
		return cloneTrip(t)
	}
	return nil
}

func (m *memStore) guide(id string) *models.Guide {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *m.guides[id]
	return &c
}

func (m *memStore) payment(id string) *models.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.payments[id]; ok {
		return clonePayment(p)
	}
	return nil
}

// fixedClock is a settable clock
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *fixedClock { return &fixedClock{now: t} }

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeGateway is a CheckoutGateway whose webhook body is the invoice id,
// optionally prefixed with "fail:" for an unsuccessful payment
type fakeGateway struct {
	mu       sync.Mutex
	requests []payment.CheckoutRequest
	err      error
}

func (g *fakeGateway) CreateSession(_ context.Context, req payment.CheckoutRequest) (*payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.requests = append(g.requests, req)
	return &payment.Session{
		SessionID:   "sess-" + req.InvoiceID,
		RedirectURL: "https://pay.example.lk/" + req.InvoiceID,
	}, nil
}

func (g *fakeGateway) VerifyWebhook(body []byte) (*payment.WebhookEvent, error) {
	s := string(body)
	switch {
	case s == "":
		return nil, errors.New("empty body")
	case s == "forged":
		return nil, errors.New("check value mismatch")
	case len(s) > 5 && s[:5] == "fail:":
		return &payment.WebhookEvent{InvoiceID: s[5:], Successful: false}, nil
	}
	return &payment.WebhookEvent{InvoiceID: s, TransactionID: "tx-" + s, Successful: true}, nil
}

// fakeGenerator returns a canned draft
type fakeGenerator struct {
	draft *planner.Draft
	err   error
}

func (g *fakeGenerator) GeneratePlan(context.Context, planner.Request) (*planner.Draft, error) {
	return g.draft, g.err
}

// sentMessage is one captured notification
type sentMessage struct {
	To   string
	Text string
}

// fakeNotifier captures messages and fails for listed recipients
type fakeNotifier struct {
	mu     sync.Mutex
	sent   []sentMessage
	failTo map[string]bool
}

func (n *fakeNotifier) Send(_ context.Context, to models.Contact, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failTo[to.Name] {
		return errors.New("gateway down")
	}
	n.sent = append(n.sent, sentMessage{To: to.Name, Text: text})
	return nil
}

func (n *fakeNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.sent...)
}

// memLedger is an in-memory ReminderLedger
type memLedger struct {
	mu   sync.Mutex
	keys map[string]bool
	err  error
}

func newMemLedger() *memLedger { return &memLedger{keys: make(map[string]bool)} }

func (l *memLedger) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	if l.keys[key] {
		return false, nil
	}
	l.keys[key] = true
	return true, nil
}

func (l *memLedger) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.keys, key)
	return nil
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func ptr[T any](v T) *T { return &v }

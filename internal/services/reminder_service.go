package services

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"text/template"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/heritagelanka/ceylon360-backend/internal/metrics"
	"github.com/heritagelanka/ceylon360-backend/internal/models"
	"github.com/heritagelanka/ceylon360-backend/internal/notify"
)

// Reminder job names
const (
	JobTripStart      = "trip_start"
	JobDailyItinerary = "daily_itinerary"
)

const reminderClaimTTL = 36 * time.Hour

//go:embed templates/reminders.yaml
var defaultReminderTemplates []byte

// ReminderTemplates holds the parsed reminder messages
type ReminderTemplates struct {
	TripStartTraveler *template.Template
	TripStartGuide    *template.Template
	DailyItinerary    *template.Template
}

// reminderData is what every reminder template renders against
type reminderData struct {
	Name        string
	Counterpart string
	Trip        *models.Trip
	Day         int
	Locations   []models.TripLocation
}

// LoadReminderTemplates parses a YAML document of named text/templates
func LoadReminderTemplates(data []byte) (*ReminderTemplates, error) {
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse reminder templates: %w", err)
	}

	funcs := template.FuncMap{
		"date": func(t time.Time) string { return t.Format("2006-01-02") },
	}
	parse := func(name string) (*template.Template, error) {
		text, ok := raw[name]
		if !ok {
			return nil, fmt.Errorf("reminder template %q is missing", name)
		}
		return template.New(name).Funcs(funcs).Option("missingkey=error").Parse(text)
	}

	var (
		t   ReminderTemplates
		err error
	)
	if t.TripStartTraveler, err = parse("trip_start_traveler"); err != nil {
		return nil, err
	}
	if t.TripStartGuide, err = parse("trip_start_guide"); err != nil {
		return nil, err
	}
	if t.DailyItinerary, err = parse("daily_itinerary"); err != nil {
		return nil, err
	}
	return &t, nil
}

// DefaultReminderTemplates returns the built-in reminder messages
func DefaultReminderTemplates() *ReminderTemplates {
	t, err := LoadReminderTemplates(defaultReminderTemplates)
	if err != nil {
		panic(err)
	}
	return t
}

// RunResult summarises one reminder job run
type RunResult struct {
	Job     string    `json:"job"`
	Scanned int       `json:"scanned"`
	Sent    int       `json:"sent"`
	Skipped int       `json:"skipped"`
	Failed  int       `json:"failed"`
	RanAt   time.Time `json:"ran_at"`
}

// ReminderService sends trip-start and daily itinerary messages
type ReminderService struct {
	trips     TripStore
	profiles  profiles
	notifier  notify.Notifier
	ledger    ReminderLedger
	templates *ReminderTemplates
	metrics   *metrics.Metrics
	clock     Clock
	location  *time.Location
	logger    *logrus.Logger
}

// NewReminderService creates a new ReminderService. A nil ledger resends on every run.
func NewReminderService(
	trips TripStore,
	users UserStore,
	notifier notify.Notifier,
	ledger ReminderLedger,
	templates *ReminderTemplates,
	m *metrics.Metrics,
	clock Clock,
	location *time.Location,
	logger *logrus.Logger,
) *ReminderService {
	if ledger == nil {
		ledger = NoopLedger{}
	}
	if templates == nil {
		templates = DefaultReminderTemplates()
	}
	if location == nil {
		location = time.UTC
	}
	return &ReminderService{
		trips:     trips,
		profiles:  profiles{users: users},
		notifier:  notifier,
		ledger:    ledger,
		templates: templates,
		metrics:   m,
		clock:     clock,
		location:  location,
		logger:    logger,
	}
}

// RunTripStartReminders messages the traveler and any assigned guide of
// every PLANNING or CONFIRMED trip that starts tomorrow
func (s *ReminderService) RunTripStartReminders(ctx context.Context) (*RunResult, error) {
	now := s.clock.Now().In(s.location)
	tomorrow := models.CivilDate(now).AddDate(0, 0, 1)
	result := &RunResult{Job: JobTripStart, RanAt: now}

	trips, err := s.trips.ListTripsStartingOn(ctx,
		[]models.TripStatus{models.TripStatusConfirmed, models.TripStatusPlanning}, tomorrow)
	if err != nil {
		return nil, fmt.Errorf("failed to list trips starting %s: %w", tomorrow.Format("2006-01-02"), err)
	}

	for i := range trips {
		trip := &trips[i]
		result.Scanned++
		log := s.logger.WithFields(logrus.Fields{"job": JobTripStart, "trip_id": trip.ID})

		traveler, err := s.profiles.travelerUser(ctx, trip.TravelerID)
		if err != nil {
			log.WithError(err).Error("Failed to load traveler for reminder")
			s.count(result, JobTripStart, "failed")
			continue
		}

		var guide *models.User
		if trip.HasGuide() {
			if _, guide, err = s.profiles.guideUser(ctx, *trip.GuideID); err != nil {
				log.WithError(err).Error("Failed to load guide for reminder")
				s.count(result, JobTripStart, "failed")
				guide = nil
			}
		}

		data := reminderData{Name: traveler.Name, Trip: trip}
		if guide != nil {
			data.Counterpart = guide.Name
		}
		s.deliver(ctx, result, log, fmt.Sprintf("%s:%s:traveler:%s", JobTripStart, trip.ID, tomorrow.Format("2006-01-02")),
			traveler, s.templates.TripStartTraveler, data)

		if guide != nil {
			data := reminderData{Name: guide.Name, Counterpart: traveler.Name, Trip: trip}
			s.deliver(ctx, result, log, fmt.Sprintf("%s:%s:guide:%s", JobTripStart, trip.ID, tomorrow.Format("2006-01-02")),
				guide, s.templates.TripStartGuide, data)
		}
	}

	s.logResult(result)
	return result, nil
}

// RunDailyItineraryReminders messages the traveler of every IN_PROGRESS trip
// with the locations planned for today, or a prompt to check the itinerary
// when none are planned
func (s *ReminderService) RunDailyItineraryReminders(ctx context.Context) (*RunResult, error) {
	now := s.clock.Now().In(s.location)
	today := models.CivilDate(now)
	result := &RunResult{Job: JobDailyItinerary, RanAt: now}

	trips, err := s.trips.ListTripsWithLocations(ctx, models.TripStatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("failed to list trips in progress: %w", err)
	}

	for i := range trips {
		trip := &trips[i]
		result.Scanned++
		log := s.logger.WithFields(logrus.Fields{"job": JobDailyItinerary, "trip_id": trip.ID})

		// free days and trips running past to_date still get a message
		day := trip.DayNumber(now)
		if day < 1 {
			day = 1
		}
		locations := trip.LocationsForDay(day)

		traveler, err := s.profiles.travelerUser(ctx, trip.TravelerID)
		if err != nil {
			log.WithError(err).Error("Failed to load traveler for reminder")
			s.count(result, JobDailyItinerary, "failed")
			continue
		}

		data := reminderData{Name: traveler.Name, Trip: trip, Day: day, Locations: locations}
		s.deliver(ctx, result, log, fmt.Sprintf("%s:%s:%s", JobDailyItinerary, trip.ID, today.Format("2006-01-02")),
			traveler, s.templates.DailyItinerary, data)
	}

	s.logResult(result)
	return result, nil
}

// deliver claims the ledger key, renders and sends one message. A failed
// send releases the claim so the next run retries it.
func (s *ReminderService) deliver(ctx context.Context, result *RunResult, log *logrus.Entry, key string, to *models.User, tmpl *template.Template, data reminderData) {
	claimed, err := s.ledger.Claim(ctx, key, reminderClaimTTL)
	if err != nil {
		log.WithError(err).Warn("Reminder ledger unavailable, sending anyway")
		claimed = true
	}
	if !claimed {
		s.count(result, result.Job, "skipped")
		return
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		log.WithError(err).Error("Failed to render reminder")
		s.release(ctx, log, key)
		s.count(result, result.Job, "failed")
		return
	}

	if err := s.notifier.Send(ctx, models.ContactOf(to), buf.String()); err != nil {
		log.WithError(err).WithField("recipient", to.ID).Warn("Failed to send reminder")
		s.release(ctx, log, key)
		s.count(result, result.Job, "failed")
		return
	}
	s.count(result, result.Job, "sent")
}

func (s *ReminderService) release(ctx context.Context, log *logrus.Entry, key string) {
	if err := s.ledger.Release(ctx, key); err != nil {
		log.WithError(err).Warn("Failed to release reminder claim")
	}
}

func (s *ReminderService) count(result *RunResult, job, outcome string) {
	switch outcome {
	case "sent":
		result.Sent++
	case "skipped":
		result.Skipped++
	case "failed":
		result.Failed++
	}
	s.metrics.Reminder(job, outcome)
}

func (s *ReminderService) logResult(r *RunResult) {
	s.logger.WithFields(logrus.Fields{
		"job":     r.Job,
		"scanned": r.Scanned,
		"sent":    r.Sent,
		"skipped": r.Skipped,
		"failed":  r.Failed,
	}).Info("Reminder job finished")
}

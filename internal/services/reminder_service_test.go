package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heritagelanka/ceylon360-backend/internal/models"
)

type reminderFixture struct {
	*fixture
	notifier  *fakeNotifier
	ledger    *memLedger
	reminders *ReminderService
}

// newReminderFixture sets the clock to the evening before the seeded trips start
func newReminderFixture(t *testing.T) *reminderFixture {
	t.Helper()
	f := newFixture(t)
	f.clock.Set(time.Date(2025, 3, 9, 18, 0, 0, 0, colombo))
	rf := &reminderFixture{
		fixture:  f,
		notifier: &fakeNotifier{failTo: map[string]bool{}},
		ledger:   newMemLedger(),
	}
	rf.reminders = NewReminderService(f.store, f.store, rf.notifier, rf.ledger, nil, nil, f.clock, colombo, testLogger())
	return rf
}

func TestRunTripStartReminders(t *testing.T) {
	f := newReminderFixture(t)
	ctx := context.Background()

	f.seedTrip("guided", models.TripStatusConfirmed, f.guide)
	f.seedTrip("self", models.TripStatusPlanning, nil)
	f.seedTrip("done", models.TripStatusCompleted, nil)
	later := f.seedTrip("later", models.TripStatusConfirmed, nil)
	later.FromDate = later.FromDate.AddDate(0, 0, 2)
	f.store.putTrip(later)

	result, err := f.reminders.RunTripStartReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, 3, result.Sent)
	assert.Zero(t, result.Failed)

	sent := f.notifier.messages()
	require.Len(t, sent, 3)
	assert.Equal(t, "Nimal", sent[0].To)
	assert.Equal(t, `Hi Nimal, your trip "Cultural Triangle" starts tomorrow (2025-03-10). Your guide Kamal will meet you. Have a great journey with Ceylon360!`, sent[0].Text)
	assert.Equal(t, "Kamal", sent[1].To)
	assert.Contains(t, sent[1].Text, "for Nimal starting tomorrow")
	assert.Equal(t, "Nimal", sent[2].To)
	assert.NotContains(t, sent[2].Text, "Your guide")
}

func TestRunTripStartReminders_LedgerSuppressesRepeats(t *testing.T) {
	f := newReminderFixture(t)
	ctx := context.Background()
	f.seedTrip("guided", models.TripStatusConfirmed, f.guide)

	_, err := f.reminders.RunTripStartReminders(ctx)
	require.NoError(t, err)

	result, err := f.reminders.RunTripStartReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Sent)
	assert.Equal(t, 2, result.Skipped)
	assert.Len(t, f.notifier.messages(), 2)
}

func TestRunTripStartReminders_FailedSendIsRetried(t *testing.T) {
	f := newReminderFixture(t)
	ctx := context.Background()
	f.seedTrip("guided", models.TripStatusConfirmed, f.guide)
	f.notifier.failTo["Kamal"] = true

	result, err := f.reminders.RunTripStartReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, result.Failed)

	f.notifier.failTo["Kamal"] = false
	result, err = f.reminders.RunTripStartReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent, "only the guide is resent")
	assert.Equal(t, 1, result.Skipped)

	sent := f.notifier.messages()
	require.Len(t, sent, 2)
	assert.Equal(t, "Kamal", sent[1].To)
}

func TestRunTripStartReminders_LedgerDownStillSends(t *testing.T) {
	f := newReminderFixture(t)
	f.ledger.err = errors.New("redis: connection refused")
	f.seedTrip("self", models.TripStatusConfirmed, nil)

	result, err := f.reminders.RunTripStartReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
}

func TestRunDailyItineraryReminders(t *testing.T) {
	f := newReminderFixture(t)
	ctx := context.Background()
	f.clock.Set(time.Date(2025, 3, 11, 7, 0, 0, 0, colombo))

	trip := f.seedTrip("active", models.TripStatusInProgress, f.guide)
	trip.Locations = []models.TripLocation{
		{ID: "l1", TripID: trip.ID, DayNumber: 1, VisitOrder: 1, Title: "Sigiriya", Latitude: 7.957, Longitude: 80.7603},
		{ID: "l3", TripID: trip.ID, DayNumber: 2, VisitOrder: 2, Title: "Peradeniya Gardens", Latitude: 7.2695, Longitude: 80.5963},
		{ID: "l2", TripID: trip.ID, DayNumber: 2, VisitOrder: 1, Title: "Temple of the Tooth", Latitude: 7.2936, Longitude: 80.6413},
	}
	f.store.putTrip(trip)

	empty := f.seedTrip("empty-day", models.TripStatusInProgress, nil)
	empty.Locations = []models.TripLocation{{ID: "l9", TripID: empty.ID, DayNumber: 1, VisitOrder: 1, Title: "Galle Fort", Latitude: 6.0269, Longitude: 80.217}}
	f.store.putTrip(empty)

	f.seedTrip("confirmed", models.TripStatusConfirmed, nil)

	result, err := f.reminders.RunDailyItineraryReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, 2, result.Sent)
	assert.Zero(t, result.Skipped)

	var texts []string
	for _, m := range f.notifier.messages() {
		texts = append(texts, m.Text)
	}
	assert.ElementsMatch(t, []string{
		`Good morning Nimal! Day 2 of "Cultural Triangle": Temple of the Tooth, Peradeniya Gardens.`,
		`Good morning Nimal! Day 2 of "Cultural Triangle": No stops are planned today. Check your itinerary in the Ceylon360 app.`,
	}, texts)

	result, err = f.reminders.RunDailyItineraryReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Sent, "once per day")
}

func TestRunDailyItineraryReminders_PastToDateStillSends(t *testing.T) {
	f := newReminderFixture(t)
	f.clock.Set(time.Date(2025, 3, 14, 7, 0, 0, 0, colombo))

	trip := f.seedTrip("overrun", models.TripStatusInProgress, nil)
	trip.Locations = []models.TripLocation{{ID: "l1", TripID: trip.ID, DayNumber: 1, VisitOrder: 1, Title: "Sigiriya", Latitude: 7.957, Longitude: 80.7603}}
	f.store.putTrip(trip)

	result, err := f.reminders.RunDailyItineraryReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Zero(t, result.Skipped)

	sent := f.notifier.messages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "Day 5 of")
	assert.Contains(t, sent[0].Text, "No stops are planned today.")
}

func TestLoadReminderTemplates(t *testing.T) {
	t.Run("defaults parse", func(t *testing.T) {
		assert.NotPanics(t, func() { DefaultReminderTemplates() })
	})

	t.Run("missing template", func(t *testing.T) {
		_, err := LoadReminderTemplates([]byte("trip_start_traveler: hi\ntrip_start_guide: hi\n"))
		assert.ErrorContains(t, err, "daily_itinerary")
	})

	t.Run("bad syntax", func(t *testing.T) {
		_, err := LoadReminderTemplates([]byte("trip_start_traveler: \"{{.Name\"\ntrip_start_guide: hi\ndaily_itinerary: hi\n"))
		assert.Error(t, err)
	})

	t.Run("not yaml", func(t *testing.T) {
		_, err := LoadReminderTemplates([]byte("- just\n- a list\n"))
		assert.Error(t, err)
	})
}

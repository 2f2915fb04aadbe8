package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/heritagelanka/ceylon360-backend/internal/config"
)

// CronService manages the scheduled reminder jobs
type CronService struct {
	cron      *cron.Cron
	reminders *ReminderService
	cfg       config.ReminderConfig
	logger    *logrus.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
	last    map[string]*RunResult
}

// NewCronService creates a new CronService running in the configured timezone
func NewCronService(reminders *ReminderService, cfg config.ReminderConfig, logger *logrus.Logger) *CronService {
	c := cron.New(cron.WithSeconds(), cron.WithLocation(cfg.Location()))

	return &CronService{
		cron:      c,
		reminders: reminders,
		cfg:       cfg,
		logger:    logger,
		entries:   make(map[string]cron.EntryID),
		last:      make(map[string]*RunResult),
	}
}

// Start schedules both reminder jobs and starts the scheduler
func (s *CronService) Start() error {
	s.logger.Info("Starting cron service...")

	// Cron format: second minute hour day month weekday
	id, err := s.cron.AddFunc(s.cfg.TripStartSchedule, s.tripStartJob)
	if err != nil {
		return fmt.Errorf("failed to schedule trip start reminders: %w", err)
	}
	s.entries[JobTripStart] = id
	s.logger.WithField("schedule", s.cfg.TripStartSchedule).Info("Scheduled: trip start reminders")

	id, err = s.cron.AddFunc(s.cfg.DailyItinerarySchedule, s.dailyItineraryJob)
	if err != nil {
		return fmt.Errorf("failed to schedule daily itinerary reminders: %w", err)
	}
	s.entries[JobDailyItinerary] = id
	s.logger.WithField("schedule", s.cfg.DailyItinerarySchedule).Info("Scheduled: daily itinerary reminders")

	s.cron.Start()
	s.logger.WithField("timezone", s.cfg.Location().String()).Info("Cron service started")
	return nil
}

// Stop waits for running jobs and stops the scheduler
func (s *CronService) Stop() {
	s.logger.Info("Stopping cron service...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

func (s *CronService) tripStartJob() {
	s.run(JobTripStart, s.reminders.RunTripStartReminders)
}

func (s *CronService) dailyItineraryJob() {
	s.run(JobDailyItinerary, s.reminders.RunDailyItineraryReminders)
}

func (s *CronService) run(job string, fn func(context.Context) (*RunResult, error)) (*RunResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	startTime := time.Now()
	result, err := fn(ctx)
	if err != nil {
		s.logger.WithError(err).WithField("job", job).Error("[CRON] Reminder job failed")
		return nil, err
	}

	s.mu.Lock()
	s.last[job] = result
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"job":      job,
		"duration": time.Since(startTime).String(),
	}).Info("[CRON] Reminder job completed")
	return result, nil
}

// RunTripStartNow runs the trip start reminders immediately
func (s *CronService) RunTripStartNow() (*RunResult, error) {
	s.logger.Info("[MANUAL] Running trip start reminders now")
	return s.run(JobTripStart, s.reminders.RunTripStartReminders)
}

// RunDailyItineraryNow runs the daily itinerary reminders immediately
func (s *CronService) RunDailyItineraryNow() (*RunResult, error) {
	s.logger.Info("[MANUAL] Running daily itinerary reminders now")
	return s.run(JobDailyItinerary, s.reminders.RunDailyItineraryReminders)
}

// GetJobStatus returns the schedule and last result of each job
func (s *CronService) GetJobStatus() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]map[string]interface{}, 0, len(s.entries))
	for _, name := range []string{JobTripStart, JobDailyItinerary} {
		id, ok := s.entries[name]
		if !ok {
			continue
		}
		entry := s.cron.Entry(id)
		jobs = append(jobs, map[string]interface{}{
			"name":        name,
			"next_run":    entry.Next,
			"prev_run":    entry.Prev,
			"last_result": s.last[name],
		})
	}

	return map[string]interface{}{
		"running":   len(s.entries) > 0,
		"job_count": len(jobs),
		"timezone":  s.cfg.Location().String(),
		"jobs":      jobs,
	}
}

// Package app wires configuration into repositories, collaborators and
// services. The HTTP server and ceylonctl share it.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/heritagelanka/ceylon360-backend/internal/cache"
	"github.com/heritagelanka/ceylon360-backend/internal/config"
	"github.com/heritagelanka/ceylon360-backend/internal/database"
	"github.com/heritagelanka/ceylon360-backend/internal/events"
	"github.com/heritagelanka/ceylon360-backend/internal/metrics"
	"github.com/heritagelanka/ceylon360-backend/internal/notify"
	"github.com/heritagelanka/ceylon360-backend/internal/payment"
	"github.com/heritagelanka/ceylon360-backend/internal/planner"
	"github.com/heritagelanka/ceylon360-backend/internal/services"
	"github.com/heritagelanka/ceylon360-backend/pkg/jwt"
	"github.com/heritagelanka/ceylon360-backend/pkg/sms"
)

// App holds the long-lived components of a running process
type App struct {
	Config  *config.Config
	Logger  *logrus.Logger
	DB      *database.PostgresDB
	Metrics *metrics.Metrics
	JWT     *jwt.Service

	Auth         *services.AuthService
	Trips        *services.TripService
	Payments     *services.PaymentService
	Matching     *services.GuideMatchingService
	Verification *services.VerificationService
	Reminders    *services.ReminderService
	Cron         *services.CronService
	Reviews      *services.ReviewService
	Events       *services.EventService
	Plans        *services.PlanService

	closers []func() error
}

// New connects to PostgreSQL and the optional Redis and RabbitMQ brokers and
// builds every service. Optional collaborators that fail to connect are
// logged and replaced by their no-op versions.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger, reg prometheus.Registerer) (*App, error) {
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info("Database connection established")

	a := &App{
		Config:  cfg,
		Logger:  logger,
		DB:      db,
		Metrics: metrics.New(reg),
		JWT: jwt.NewService(
			cfg.JWT.Secret,
			cfg.JWT.RefreshSecret,
			cfg.JWT.AccessTokenExpiry,
			cfg.JWT.RefreshTokenExpiry,
		),
		closers: []func() error{db.Close},
	}

	location := cfg.Reminders.Location()
	clock := services.SystemClock{Location: location}

	users := database.NewUserRepository(db)
	trips := database.NewTripRepository(db)
	payments := database.NewPaymentRepository(db)
	verifications := database.NewVerificationRepository(db)
	reviews := database.NewReviewRepository(db)
	eventStore := database.NewEventRepository(db)

	publisher := a.publisher()
	gateway := payment.NewPAYable(cfg.Payment, logger)
	if !gateway.IsConfigured() {
		logger.Warn("PAYable merchant credentials missing, payment requests will fail")
	}

	a.Plans = services.NewPlanService(a.planGenerator(), a.Metrics, logger)
	a.Auth = services.NewAuthService(users, a.JWT, cfg.Security.BcryptCost, clock, logger)
	a.Trips = services.NewTripService(trips, payments, verifications, users, a.Plans, publisher, a.Metrics, clock, location, logger)
	a.Payments = services.NewPaymentService(trips, payments, users, gateway, cfg.Pricing, publisher, a.Metrics, clock, logger)
	a.Matching = services.NewGuideMatchingService(trips, users, publisher, a.Metrics, clock, logger)
	a.Verification = services.NewVerificationService(trips, verifications, users, cfg.OTP, cfg.Security.BcryptCost, a.Metrics, clock, logger)
	a.Reviews = services.NewReviewService(trips, reviews, users, clock, logger)
	a.Events = services.NewEventService(eventStore, a.Payments, users, cfg.Pricing.Currency, publisher, clock, logger)
	a.Reminders = services.NewReminderService(trips, users, a.notifier(), a.ledger(ctx), services.DefaultReminderTemplates(), a.Metrics, clock, location, logger)
	a.Cron = services.NewCronService(a.Reminders, cfg.Reminders, logger)

	return a, nil
}

// Close releases connections in reverse order of creation
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.WithError(err).Warn("Error during shutdown")
		}
	}
}

func (a *App) publisher() events.Publisher {
	if a.Config.RabbitMQ.URL == "" {
		a.Logger.Info("RABBITMQ_URL not set, trip events are not published")
		return events.Noop{}
	}
	pub, err := events.Dial(a.Config.RabbitMQ.URL, a.Config.RabbitMQ.Exchange, a.Logger)
	if err != nil {
		a.Logger.WithError(err).Warn("RabbitMQ unavailable, trip events are not published")
		return events.Noop{}
	}
	a.closers = append(a.closers, pub.Close)
	a.Logger.WithField("exchange", a.Config.RabbitMQ.Exchange).Info("Publishing trip events to RabbitMQ")
	return pub
}

func (a *App) ledger(ctx context.Context) services.ReminderLedger {
	if a.Config.Redis.URL == "" {
		a.Logger.Info("REDIS_URL not set, reminders resend on rerun")
		return nil
	}
	client, err := cache.Connect(ctx, a.Config.Redis.URL)
	if err != nil {
		a.Logger.WithError(err).Warn("Redis unavailable, reminders resend on rerun")
		return nil
	}
	a.closers = append(a.closers, client.Close)
	a.Logger.Info("Reminder ledger connected to Redis")
	return cache.NewReminderLedger(client)
}

// notifier tries Telegram first, then SMS. Outside production SMS is
// replaced by the log notifier.
func (a *App) notifier() notify.Notifier {
	var channels []notify.Notifier

	if a.Config.Telegram.BotToken != "" {
		tg, err := notify.NewTelegramNotifier(a.Config.Telegram.BotToken)
		if err != nil {
			a.Logger.WithError(err).Warn("Telegram bot unavailable, skipping channel")
		} else {
			channels = append(channels, tg)
			a.Logger.Info("Telegram channel enabled for reminders")
		}
	}

	if a.Config.SMS.Mode == "production" {
		gateway := sms.NewDialogGateway(a.Config.SMS.APIURL, a.Config.SMS.ESMSQK, a.Config.SMS.Mask)
		channels = append(channels, notify.NewSMSNotifier(gateway, a.Logger))
		a.Logger.Info("Dialog SMS gateway enabled for reminders")
	} else {
		channels = append(channels, notify.NewLogNotifier(a.Logger))
		a.Logger.Info("SMS gateway in development mode (messages are only logged)")
	}

	return notify.NewMulti(channels...)
}

// planGenerator returns nil when no LLM key is configured so the plan
// service reports the feature as unavailable.
func (a *App) planGenerator() services.PlanGenerator {
	if a.Config.Planner.OpenAIKey == "" {
		a.Logger.Info("OPENAI_API_KEY not set, AI planning disabled")
		return nil
	}
	return planner.NewOpenAIPlanner(a.Config.Planner, a.Logger)
}

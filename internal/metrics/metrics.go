// Package metrics holds the Prometheus collectors for the booking backend.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every collector the services update
type Metrics struct {
	tripTransitions     *prometheus.CounterVec
	transitionRejects   *prometheus.CounterVec
	guideAcceptances    *prometheus.CounterVec
	remindersSent       *prometheus.CounterVec
	aiLocations         *prometheus.CounterVec
	paymentsPaid        prometheus.Counter
	otpVerifications    *prometheus.CounterVec
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		tripTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ceylon360_trip_transitions_total",
				Help: "Trip status transitions applied",
			},
			[]string{"from", "to"},
		),
		transitionRejects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ceylon360_trip_transition_rejections_total",
				Help: "Trip status transitions rejected",
			},
			[]string{"to", "reason"},
		),
		guideAcceptances: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ceylon360_guide_acceptances_total",
				Help: "Guide trip acceptance attempts by outcome",
			},
			[]string{"outcome"},
		),
		remindersSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ceylon360_reminders_total",
				Help: "Reminder messages by job and outcome",
			},
			[]string{"job", "outcome"},
		),
		aiLocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ceylon360_ai_locations_total",
				Help: "AI generated locations by validation outcome",
			},
			[]string{"outcome"},
		),
		paymentsPaid: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ceylon360_payments_paid_total",
				Help: "Payments confirmed by webhook",
			},
		),
		otpVerifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ceylon360_otp_verifications_total",
				Help: "Trip start OTP verifications by outcome",
			},
			[]string{"outcome"},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ceylon360_http_requests_total",
				Help: "HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ceylon360_http_request_duration_milliseconds",
				Help:    "HTTP request duration in milliseconds",
				Buckets: []float64{5, 10, 50, 100, 200, 500, 1000, 2000, 5000},
			},
			[]string{"method", "route"},
		),
	}

	reg.MustRegister(
		m.tripTransitions,
		m.transitionRejects,
		m.guideAcceptances,
		m.remindersSent,
		m.aiLocations,
		m.paymentsPaid,
		m.otpVerifications,
		m.httpRequestsTotal,
		m.httpRequestDuration,
	)
	return m
}

// TripTransition counts an applied status change
func (m *Metrics) TripTransition(from, to string) {
	if m == nil {
		return
	}
	m.tripTransitions.WithLabelValues(from, to).Inc()
}

// TransitionRejected counts a refused status change
func (m *Metrics) TransitionRejected(to, reason string) {
	if m == nil {
		return
	}
	m.transitionRejects.WithLabelValues(to, reason).Inc()
}

// GuideAcceptance counts an accept attempt by outcome
func (m *Metrics) GuideAcceptance(outcome string) {
	if m == nil {
		return
	}
	m.guideAcceptances.WithLabelValues(outcome).Inc()
}

// Reminder counts a reminder outcome: "sent", "skipped" or "failed"
func (m *Metrics) Reminder(job, outcome string) {
	if m == nil {
		return
	}
	m.remindersSent.WithLabelValues(job, outcome).Inc()
}

// AILocations counts validated and dropped AI locations
func (m *Metrics) AILocations(valid, dropped int) {
	if m == nil {
		return
	}
	m.aiLocations.WithLabelValues("valid").Add(float64(valid))
	m.aiLocations.WithLabelValues("dropped").Add(float64(dropped))
}

// PaymentPaid counts a webhook-confirmed payment
func (m *Metrics) PaymentPaid() {
	if m == nil {
		return
	}
	m.paymentsPaid.Inc()
}

// OTPVerification counts a verification attempt outcome
func (m *Metrics) OTPVerification(outcome string) {
	if m == nil {
		return
	}
	m.otpVerifications.WithLabelValues(outcome).Inc()
}

// GinMiddleware records request counts and latency per route template
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(method, route).Observe(float64(time.Since(start).Milliseconds()))
	}
}

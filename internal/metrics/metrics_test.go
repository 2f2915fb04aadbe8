package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.TripTransition("CONFIRMED", "IN_PROGRESS")
	m.TripTransition("CONFIRMED", "IN_PROGRESS")
	m.TransitionRejected("IN_PROGRESS", "payment_not_paid")
	m.GuideAcceptance("accepted")
	m.Reminder("trip_start", "sent")
	m.AILocations(3, 2)
	m.PaymentPaid()
	m.OTPVerification("mismatch")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.tripTransitions.WithLabelValues("CONFIRMED", "IN_PROGRESS")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitionRejects.WithLabelValues("IN_PROGRESS", "payment_not_paid")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.aiLocations.WithLabelValues("valid")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.aiLocations.WithLabelValues("dropped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.paymentsPaid))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.TripTransition("a", "b")
		m.TransitionRejected("a", "b")
		m.GuideAcceptance("accepted")
		m.Reminder("x", "sent")
		m.AILocations(1, 1)
		m.PaymentPaid()
		m.OTPVerification("ok")
	})
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(prometheus.NewRegistry())

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/trips/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/trips/abc", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/trips/:id", "204")))
}

package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heritagelanka/ceylon360-backend/internal/models"
)

func TestRequestPayment(t *testing.T) {
	tests := []struct {
		name       string
		guide      bool
		wantAmount float64
	}{
		{"guided trip is priced per day", true, 15000},
		{"self-guided trip pays the platform fee", false, 1500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			var guide *models.Guide
			if tt.guide {
				guide = f.guide
			}
			f.seedTrip("t1", models.TripStatusConfirmed, guide)

			session, err := f.payments.RequestPayment(ctx, travelerActor, "t1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantAmount, session.Amount)
			assert.Equal(t, "LKR", session.Currency)
			assert.Equal(t, "sess-"+session.PaymentID, session.SessionID)

			p, err := f.payments.GetTripPayment(ctx, travelerActor, "t1")
			require.NoError(t, err)
			assert.Equal(t, models.PaymentStatusPending, p.Status)
			require.NotNil(t, p.SessionID)

			require.Len(t, f.gateway.requests, 1)
			assert.Equal(t, "Nimal", f.gateway.requests[0].CustomerName)
			assert.Equal(t, "0771234567", f.gateway.requests[0].CustomerPhone)
		})
	}
}

func TestRequestPayment_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedTrip("planning", models.TripStatusPlanning, f.guide)
	f.seedTrip("t1", models.TripStatusConfirmed, f.guide)

	_, err := f.payments.RequestPayment(ctx, travelerActor, "planning")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.payments.RequestPayment(ctx, otherTraveler, "t1")
	assert.ErrorIs(t, err, ErrNotTripOwner)

	_, err = f.payments.RequestPayment(ctx, guideActor, "t1")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.payments.RequestPayment(ctx, travelerActor, "t1")
	require.NoError(t, err)
	_, err = f.payments.RequestPayment(ctx, travelerActor, "t1")
	assert.ErrorIs(t, err, ErrPaymentExists)
}

func TestRequestPayment_GatewayFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedTrip("t1", models.TripStatusConfirmed, f.guide)

	f.gateway.err = errors.New("connection reset")
	_, err := f.payments.RequestPayment(ctx, travelerActor, "t1")
	require.Error(t, err)
	assert.True(t, IsRetryable(err))

	f.gateway.err = nil
	session, err := f.payments.RequestPayment(ctx, travelerActor, "t1")
	require.NoError(t, err)

	p, err := f.payments.GetTripPayment(ctx, travelerActor, "t1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, session.PaymentID, "the retry reuses the pending payment")
}

func TestMarkPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedTrip("t1", models.TripStatusConfirmed, f.guide)

	session, err := f.payments.RequestPayment(ctx, travelerActor, "t1")
	require.NoError(t, err)

	p, err := f.payments.MarkPaid(ctx, []byte(session.PaymentID))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, p.Status)
	require.NotNil(t, p.PaidAt)
	assert.True(t, f.clock.Now().Equal(*p.PaidAt))

	assert.Equal(t, models.TripStatusConfirmed, f.store.trip("t1").Status, "payment never moves the trip")

	again, err := f.payments.MarkPaid(ctx, []byte(session.PaymentID))
	require.NoError(t, err, "replayed webhook")
	assert.Equal(t, models.PaymentStatusPaid, again.Status)
	assert.Equal(t, p.PaidAt, again.PaidAt)
}

func TestMarkPaid_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedTrip("t1", models.TripStatusConfirmed, f.guide)
	f.seedPayment("t1", models.PaymentStatusPending)

	_, err := f.payments.MarkPaid(ctx, []byte("forged"))
	assert.ErrorIs(t, err, ErrInvalidWebhook)

	_, err = f.payments.MarkPaid(ctx, []byte("unknown-invoice"))
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	p, err := f.payments.MarkPaid(ctx, []byte("fail:pay-t1"))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, p.Status)

	f.seedPayment("t1", models.PaymentStatusCancelled)
	_, err = f.payments.MarkPaid(ctx, []byte("pay-t1"))
	assert.ErrorIs(t, err, ErrPreconditionFailed)
}

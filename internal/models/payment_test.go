package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestPayment_Validate(t *testing.T) {
	tests := []struct {
		name    string
		payment Payment
		wantErr error
	}{
		{"trip payment", Payment{TripID: strPtr("t1"), Amount: 100}, nil},
		{"event payment", Payment{EventID: strPtr("e1"), Amount: 100}, nil},
		{"both targets", Payment{TripID: strPtr("t1"), EventID: strPtr("e1"), Amount: 100}, ErrPaymentTarget},
		{"no target", Payment{Amount: 100}, ErrPaymentTarget},
		{"empty trip id", Payment{TripID: strPtr(""), Amount: 100}, ErrPaymentTarget},
		{"zero amount", Payment{TripID: strPtr("t1")}, ErrPaymentAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payment.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestSharedLanguages(t *testing.T) {
	got := SharedLanguages([]string{"English", "Sinhala", "german"}, []string{"german", " ENGLISH "})
	assert.Equal(t, []string{"English", "german"}, got)

	assert.Empty(t, SharedLanguages([]string{"Tamil"}, []string{"French"}))
}

func TestEventSeatsLeft(t *testing.T) {
	e := &Event{Capacity: 10, TicketsSold: 7}
	assert.Equal(t, 3, e.SeatsLeft())
	e.TicketsSold = 12
	assert.Equal(t, 0, e.SeatsLeft())
}

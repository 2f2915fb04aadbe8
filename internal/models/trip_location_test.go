package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLocationOrder(t *testing.T) {
	t.Run("assigns missing orders sequentially", func(t *testing.T) {
		in := []TripLocation{
			{Title: "Sigiriya"},
			{Title: "Dambulla"},
			{Title: "Kandy", DayNumber: 2},
			{Title: "Peradeniya"},
		}
		out := NormalizeLocationOrder(in)

		require.NoError(t, ValidateLocationOrder(out))
		assert.Equal(t, 1, out[0].DayNumber)
		assert.Equal(t, 1, out[0].VisitOrder)
		assert.Equal(t, 2, out[1].VisitOrder)
		assert.Equal(t, 2, out[2].DayNumber)
		assert.Equal(t, 1, out[2].VisitOrder)
		assert.Equal(t, 2, out[3].DayNumber, "inherits previous day")
		assert.Equal(t, 2, out[3].VisitOrder)
	})

	t.Run("bumps duplicates within a day", func(t *testing.T) {
		in := []TripLocation{
			{Title: "A", DayNumber: 1, VisitOrder: 1},
			{Title: "B", DayNumber: 1, VisitOrder: 1},
			{Title: "C", DayNumber: 2, VisitOrder: 1},
		}
		out := NormalizeLocationOrder(in)

		require.NoError(t, ValidateLocationOrder(out))
		assert.Equal(t, 1, out[0].VisitOrder)
		assert.Equal(t, 2, out[1].VisitOrder)
		assert.Equal(t, 1, out[2].VisitOrder)
	})

	t.Run("keeps gaps", func(t *testing.T) {
		in := []TripLocation{
			{Title: "A", DayNumber: 1, VisitOrder: 1},
			{Title: "B", DayNumber: 1, VisitOrder: 5},
		}
		out := NormalizeLocationOrder(in)
		assert.Equal(t, 5, out[1].VisitOrder)
	})

	t.Run("does not mutate input", func(t *testing.T) {
		in := []TripLocation{{Title: "A"}}
		NormalizeLocationOrder(in)
		assert.Equal(t, 0, in[0].VisitOrder)
	})
}

func TestValidateLocationOrder(t *testing.T) {
	assert.NoError(t, ValidateLocationOrder(nil))
	assert.Error(t, ValidateLocationOrder([]TripLocation{{Title: "A", DayNumber: 1}}))
	assert.Error(t, ValidateLocationOrder([]TripLocation{
		{Title: "A", DayNumber: 1, VisitOrder: 2},
		{Title: "B", DayNumber: 1, VisitOrder: 2},
	}))
}

func TestSortLocations(t *testing.T) {
	in := []TripLocation{
		{Title: "C", DayNumber: 2, VisitOrder: 1},
		{Title: "B", DayNumber: 1, VisitOrder: 3},
		{Title: "A", DayNumber: 1, VisitOrder: 1},
	}
	out := SortLocations(in)
	assert.Equal(t, "A", out[0].Title)
	assert.Equal(t, "B", out[1].Title)
	assert.Equal(t, "C", out[2].Title)
	assert.Equal(t, "C", in[0].Title)
}

func TestInSriLanka(t *testing.T) {
	assert.True(t, InSriLanka(7.2906, 80.6337), "Kandy")
	assert.True(t, InSriLanka(6.9271, 79.8612), "Colombo")
	assert.False(t, InSriLanka(13.0827, 80.2707), "Chennai")
	assert.False(t, InSriLanka(0, 0))
}

func TestTripDates(t *testing.T) {
	loc, _ := time.LoadLocation("Asia/Colombo")
	trip := &Trip{
		FromDate: time.Date(2025, 3, 10, 0, 0, 0, 0, loc),
		ToDate:   time.Date(2025, 3, 12, 0, 0, 0, 0, loc),
		Locations: []TripLocation{
			{Title: "Later", DayNumber: 2, VisitOrder: 2},
			{Title: "First", DayNumber: 2, VisitOrder: 1},
			{Title: "Other", DayNumber: 1, VisitOrder: 1},
		},
	}

	assert.Equal(t, 3, trip.Days())
	assert.Equal(t, 2, trip.DayNumber(time.Date(2025, 3, 11, 7, 0, 0, 0, loc)))

	day2 := trip.LocationsForDay(2)
	require.Len(t, day2, 2)
	assert.Equal(t, "First", day2[0].Title)

	other := &Trip{
		FromDate: time.Date(2025, 3, 12, 0, 0, 0, 0, loc),
		ToDate:   time.Date(2025, 3, 14, 0, 0, 0, 0, loc),
	}
	assert.True(t, trip.OverlapsDates(other))
	other.FromDate = time.Date(2025, 3, 13, 0, 0, 0, 0, loc)
	assert.False(t, trip.OverlapsDates(other))
}

func TestCreateTripRequest_ParseDates(t *testing.T) {
	req := &CreateTripRequest{FromDate: "2025-03-10", ToDate: "2025-03-09"}
	_, _, err := req.ParseDates(time.UTC)
	assert.ErrorIs(t, err, ErrInvalidDateRange)

	req.ToDate = "2025-03-10"
	from, to, err := req.ParseDates(time.UTC)
	require.NoError(t, err)
	assert.True(t, from.Equal(to))

	req.FromDate = "10/03/2025"
	_, _, err = req.ParseDates(time.UTC)
	assert.Error(t, err)
}

func TestDayNumberAcrossZones(t *testing.T) {
	colombo, _ := time.LoadLocation("Asia/Colombo")
	trip := &Trip{FromDate: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)}

	// 03:00 in Colombo on the 11th is still the 10th in UTC
	assert.Equal(t, 2, trip.DayNumber(time.Date(2025, 3, 11, 3, 0, 0, 0, colombo)))
	assert.Equal(t, 1, trip.DayNumber(time.Date(2025, 3, 10, 23, 30, 0, 0, colombo)))
}

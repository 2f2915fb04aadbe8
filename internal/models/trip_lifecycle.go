package models

// TripStatus represents where a trip is in its lifecycle
type TripStatus string

const (
	TripStatusPlanning   TripStatus = "PLANNING"
	TripStatusConfirmed  TripStatus = "CONFIRMED"
	TripStatusInProgress TripStatus = "IN_PROGRESS"
	TripStatusCompleted  TripStatus = "COMPLETED"
	TripStatusCancelled  TripStatus = "CANCELLED"
)

// tripTransitions is the only place trip status edges are defined.
var tripTransitions = map[TripStatus][]TripStatus{
	TripStatusPlanning:   {TripStatusConfirmed, TripStatusCancelled},
	TripStatusConfirmed:  {TripStatusInProgress, TripStatusCancelled},
	TripStatusInProgress: {TripStatusCompleted, TripStatusCancelled},
}

// AllTripStatuses lists every trip status in stage order
func AllTripStatuses() []TripStatus {
	return []TripStatus{
		TripStatusPlanning,
		TripStatusConfirmed,
		TripStatusInProgress,
		TripStatusCompleted,
		TripStatusCancelled,
	}
}

// IsValid reports whether the status is known
func (s TripStatus) IsValid() bool {
	return s.Stage() >= 0
}

// Stage returns the monotonic rank of a status. Both terminal states share
// the highest rank. Unknown statuses return -1.
func (s TripStatus) Stage() int {
	switch s {
	case TripStatusPlanning:
		return 0
	case TripStatusConfirmed:
		return 1
	case TripStatusInProgress:
		return 2
	case TripStatusCompleted, TripStatusCancelled:
		return 3
	default:
		return -1
	}
}

// CanTransitionTo reports whether the edge s -> next exists in the table
func (s TripStatus) CanTransitionTo(next TripStatus) bool {
	for _, allowed := range tripTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible
func (s TripStatus) IsTerminal() bool {
	return s == TripStatusCompleted || s == TripStatusCancelled
}

// IsDeletable reports whether a trip in this status may be physically removed
func (s TripStatus) IsDeletable() bool {
	return s == TripStatusPlanning || s == TripStatusConfirmed
}

// CanBeCancelled checks if the trip can still be cancelled
func (s TripStatus) CanBeCancelled() bool {
	return s.CanTransitionTo(TripStatusCancelled)
}

// IsReviewable reports whether reviews may be left for a trip in this status
func (s TripStatus) IsReviewable() bool {
	return s.IsTerminal()
}

// SourcesFor returns every status that has an edge into target
func SourcesFor(target TripStatus) []TripStatus {
	var out []TripStatus
	for _, from := range AllTripStatuses() {
		if from.CanTransitionTo(target) {
			out = append(out, from)
		}
	}
	return out
}

// BookingStatus tracks the guide booking alongside the trip status
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusAccepted  BookingStatus = "ACCEPTED"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// BookingStatusFor returns the booking status that accompanies a trip transition
func BookingStatusFor(to TripStatus) (BookingStatus, bool) {
	switch to {
	case TripStatusConfirmed:
		return BookingStatusConfirmed, true
	case TripStatusCompleted:
		return BookingStatusCompleted, true
	case TripStatusCancelled:
		return BookingStatusCancelled, true
	}
	return "", false
}

// TripTransition describes one conditional status write. The store applies
// every part in a single transaction and reports false when any condition
// no longer holds.
type TripTransition struct {
	TripID string
	From   []TripStatus
	To     TripStatus

	// BookingStatus is written alongside the status when non-empty.
	BookingStatus BookingStatus

	// RequirePaid makes the write conditional on the trip payment being PAID.
	RequirePaid bool

	// ExclusiveTraveler makes the write conditional on the traveler having
	// no other IN_PROGRESS trip.
	ExclusiveTraveler bool

	// GuideID and GuideBusy set the guide's trip_in_progress flag. Setting it
	// to true requires it to currently be false.
	GuideID   *string
	GuideBusy *bool

	// PaymentFrom -> PaymentTo moves the trip payment when it is in PaymentFrom.
	PaymentFrom PaymentStatus
	PaymentTo   PaymentStatus
}

package services

import (
	"errors"
	"fmt"

	"github.com/heritagelanka/ceylon360-backend/internal/models"
)

// Error kinds returned by every service. Handlers map them to HTTP statuses
// with errors.Is; specific errors wrap one of these with %w.
var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrConflict           = errors.New("conflict")
	ErrValidation         = errors.New("validation failed")
	ErrUpstream           = errors.New("upstream failure")
)

// Specific failures
var (
	ErrTripNotFound      = fmt.Errorf("%w: trip not found", ErrNotFound)
	ErrPaymentNotFound   = fmt.Errorf("%w: payment not found", ErrNotFound)
	ErrEventNotFound     = fmt.Errorf("%w: event not found", ErrNotFound)
	ErrGuideNotFound     = fmt.Errorf("%w: guide profile not found", ErrNotFound)
	ErrTravelerNotFound  = fmt.Errorf("%w: traveler profile not found", ErrNotFound)
	ErrUserNotFound      = fmt.Errorf("%w: user not found", ErrNotFound)
	ErrNotTripOwner      = fmt.Errorf("%w: trip does not belong to caller", ErrForbidden)
	ErrNotAssignedGuide  = fmt.Errorf("%w: caller is not the trip's guide", ErrForbidden)
	ErrPaymentNotPaid    = fmt.Errorf("%w: payment has not been completed", ErrPreconditionFailed)
	ErrPaymentExists     = fmt.Errorf("%w: payment already requested for this trip", ErrConflict)
	ErrGuideBusy         = fmt.Errorf("%w: guide already has a trip in progress", ErrPreconditionFailed)
	ErrTravelerBusy      = fmt.Errorf("%w: traveler already has a trip in progress", ErrPreconditionFailed)
	ErrGuideNotAccepted  = fmt.Errorf("%w: a guide must accept the trip first", ErrPreconditionFailed)
	ErrOTPNotVerified    = fmt.Errorf("%w: guide has not verified the start OTP", ErrPreconditionFailed)
	ErrGuideUnavailable  = fmt.Errorf("%w: guide has an overlapping or active trip", ErrConflict)
	ErrTripTaken         = fmt.Errorf("%w: trip was already accepted", ErrConflict)
	ErrConcurrentUpdate  = fmt.Errorf("%w: trip changed concurrently", ErrConflict)
	ErrDuplicateReview   = fmt.Errorf("%w: review already submitted", ErrConflict)
	ErrSoldOut           = fmt.Errorf("%w: not enough tickets left", ErrConflict)
	ErrEmailTaken        = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrInvalidCoordinate = fmt.Errorf("%w: coordinates out of range", ErrValidation)
	ErrOutsideSriLanka   = fmt.Errorf("%w: location is outside Sri Lanka", ErrValidation)
	ErrOTPExpired        = fmt.Errorf("%w: OTP has expired", ErrValidation)
	ErrOTPMismatch       = fmt.Errorf("%w: OTP does not match", ErrValidation)
	ErrOTPMaxAttempts    = fmt.Errorf("%w: maximum OTP attempts exceeded", ErrValidation)
	ErrOTPNotIssued      = fmt.Errorf("%w: no active OTP for this trip", ErrValidation)
	ErrTooFar            = fmt.Errorf("%w: guide is too far from the traveler", ErrValidation)
	ErrInvalidWebhook    = fmt.Errorf("%w: webhook payload rejected", ErrValidation)
	ErrInvalidCredential = fmt.Errorf("%w: invalid email or password", ErrForbidden)
)

// TransitionError reports a trip that was not in a state allowing the
// requested transition.
type TransitionError struct {
	TripID string
	From   models.TripStatus
	To     models.TripStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("trip %s cannot move from %s to %s", e.TripID, e.From, e.To)
}

// Unwrap lets errors.Is match ErrInvalidTransition
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// IsRetryable reports whether the failure came from an external collaborator
// and may succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUpstream)
}

func upstream(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUpstream, op, err)
}

func validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

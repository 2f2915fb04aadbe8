package models

import "time"

// TripVerification is one OTP issued by a traveler for their guide to verify
// co-presence before a guided trip starts.
type TripVerification struct {
	ID                string     `json:"id" db:"id"`
	TripID            string     `json:"trip_id" db:"trip_id"`
	OTPHash           string     `json:"-" db:"otp_hash"`
	IssuedAt          time.Time  `json:"issued_at" db:"issued_at"`
	ExpiresAt         time.Time  `json:"expires_at" db:"expires_at"`
	Attempts          int        `json:"attempts" db:"attempts"`
	MaxAttempts       int        `json:"max_attempts" db:"max_attempts"`
	Invalidated       bool       `json:"invalidated" db:"invalidated"`
	VerifiedAt        *time.Time `json:"verified_at,omitempty" db:"verified_at"`
	GuideID           *string    `json:"guide_id,omitempty" db:"guide_id"`
	TravelerLatitude  *float64   `json:"traveler_latitude,omitempty" db:"traveler_latitude"`
	TravelerLongitude *float64   `json:"traveler_longitude,omitempty" db:"traveler_longitude"`
	GuideLatitude     *float64   `json:"guide_latitude,omitempty" db:"guide_latitude"`
	GuideLongitude    *float64   `json:"guide_longitude,omitempty" db:"guide_longitude"`
	DistanceMeters    *float64   `json:"distance_meters,omitempty" db:"distance_meters"`
	DeviceType        *string    `json:"device_type,omitempty" db:"device_type"`
	Browser           *string    `json:"browser,omitempty" db:"browser"`
	OS                *string    `json:"os,omitempty" db:"os"`
	IPAddress         *string    `json:"ip_address,omitempty" db:"ip_address"`
}

// IsVerified reports whether the OTP was accepted
func (v *TripVerification) IsVerified() bool {
	return v.VerifiedAt != nil
}

// IsExpired reports whether the code is past its window. The boundary
// instant itself is still valid.
func (v *TripVerification) IsExpired(now time.Time) bool {
	return now.After(v.ExpiresAt)
}

// AttemptsExhausted reports whether no attempts remain
func (v *TripVerification) AttemptsExhausted() bool {
	return v.Attempts >= v.MaxAttempts
}

// IssueOTPRequest carries the traveler's last-known position
type IssueOTPRequest struct {
	Latitude  *float64 `json:"latitude" binding:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" binding:"omitempty,gte=-180,lte=180"`
}

// IssueOTPResponse returns the plaintext code to the traveler exactly once
type IssueOTPResponse struct {
	OTP       string    `json:"otp"`
	ExpiresAt time.Time `json:"expires_at"`
}

// VerifyOTPRequest is the guide's verification attempt
type VerifyOTPRequest struct {
	OTP       string   `json:"otp" binding:"required,len=4,numeric"`
	Latitude  *float64 `json:"latitude" binding:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" binding:"required,gte=-180,lte=180"`
}

// VerifyOTPResponse reports the recorded distance after a successful verification
type VerifyOTPResponse struct {
	Verified       bool     `json:"verified"`
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
}

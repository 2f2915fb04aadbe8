package models

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

// UserRole is the single role an account holds
type UserRole string

const (
	RoleTraveler UserRole = "TRAVELER"
	RoleGuide    UserRole = "GUIDE"
	RoleAdmin    UserRole = "ADMIN"
)

// IsValid reports whether the role is known
func (r UserRole) IsValid() bool {
	switch r {
	case RoleTraveler, RoleGuide, RoleAdmin:
		return true
	}
	return false
}

// User represents an account in the system
type User struct {
	ID             string    `json:"id" db:"id"`
	Email          string    `json:"email" db:"email"`
	PasswordHash   string    `json:"-" db:"password_hash"`
	Name           string    `json:"name" db:"name"`
	Phone          *string   `json:"phone,omitempty" db:"phone"`
	Role           UserRole  `json:"role" db:"role"`
	TelegramChatID *int64    `json:"telegram_chat_id,omitempty" db:"telegram_chat_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Traveler is the traveler profile attached to a user
type Traveler struct {
	ID        string         `json:"id" db:"id"`
	UserID    string         `json:"user_id" db:"user_id"`
	Languages pq.StringArray `json:"languages" db:"languages"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// Guide is the guide profile attached to a user
type Guide struct {
	ID             string         `json:"id" db:"id"`
	UserID         string         `json:"user_id" db:"user_id"`
	Languages      pq.StringArray `json:"languages" db:"languages"`
	DailyRate      float64        `json:"daily_rate" db:"daily_rate"`
	TripInProgress bool           `json:"trip_in_progress" db:"trip_in_progress"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// SharedLanguages returns the case-insensitive intersection of two language
// lists, keeping the spelling from a.
func SharedLanguages(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, lang := range b {
		set[strings.ToLower(strings.TrimSpace(lang))] = struct{}{}
	}
	var out []string
	seen := make(map[string]struct{})
	for _, lang := range a {
		key := strings.ToLower(strings.TrimSpace(lang))
		if _, ok := set[key]; !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, lang)
	}
	return out
}

// Contact is who a notification goes to
type Contact struct {
	Name           string
	Phone          *string
	TelegramChatID *int64
}

// ContactOf returns the notification contact details of a user
func ContactOf(u *User) Contact {
	return Contact{Name: u.Name, Phone: u.Phone, TelegramChatID: u.TelegramChatID}
}

// RegisterRequest is the payload for creating an account
type RegisterRequest struct {
	Email     string   `json:"email" binding:"required,email"`
	Password  string   `json:"password" binding:"required,min=8"`
	Name      string   `json:"name" binding:"required"`
	Phone     *string  `json:"phone" binding:"omitempty,lkphone"`
	Role      UserRole `json:"role" binding:"required,oneof=TRAVELER GUIDE"`
	Languages []string `json:"languages"`
	DailyRate float64  `json:"daily_rate" binding:"gte=0"`
}

// LoginRequest is the payload for password login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshTokenRequest is the payload for exchanging a refresh token
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenResponse is returned after a successful login or refresh
type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         *User     `json:"user"`
}

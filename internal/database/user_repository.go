package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/heritagelanka/ceylon360-backend/internal/models"
)

const userColumns = `id, email, password_hash, name, phone, role, telegram_chat_id, created_at, updated_at`

// UserRepository handles account and profile database operations
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

// CreateUser inserts an account with its traveler or guide profile
func (r *UserRepository) CreateUser(ctx context.Context, u *models.User, traveler *models.Traveler, guide *models.Guide) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (`+userColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			u.ID, u.Email, u.PasswordHash, u.Name, u.Phone, u.Role,
			u.TelegramChatID, u.CreatedAt, u.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		if traveler != nil {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO travelers (id, user_id, languages, created_at)
				VALUES ($1, $2, $3, $4)`,
				traveler.ID, traveler.UserID, pq.Array([]string(traveler.Languages)), traveler.CreatedAt)
			if err != nil {
				return fmt.Errorf("failed to create traveler profile: %w", err)
			}
		}
		if guide != nil {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO guides (id, user_id, languages, daily_rate, trip_in_progress, created_at)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				guide.ID, guide.UserID, pq.Array([]string(guide.Languages)), guide.DailyRate,
				guide.TripInProgress, guide.CreatedAt)
			if err != nil {
				return fmt.Errorf("failed to create guide profile: %w", err)
			}
		}
		return nil
	})
}

func (r *UserRepository) getUser(ctx context.Context, where string, arg interface{}) (*models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// GetUserByEmail retrieves a user by lowercased email
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, `email = $1`, email)
}

// GetUserByID retrieves a user by ID
func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return r.getUser(ctx, `id = $1`, id)
}

func (r *UserRepository) getTraveler(ctx context.Context, where string, arg interface{}) (*models.Traveler, error) {
	var t models.Traveler
	err := r.db.GetContext(ctx, &t, `
		SELECT id, user_id, languages, created_at FROM travelers WHERE `+where, arg)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get traveler: %w", err)
	}
	return &t, nil
}

// GetTravelerByUserID retrieves the traveler profile of a user
func (r *UserRepository) GetTravelerByUserID(ctx context.Context, userID string) (*models.Traveler, error) {
	return r.getTraveler(ctx, `user_id = $1`, userID)
}

// GetTravelerByID retrieves a traveler profile by ID
func (r *UserRepository) GetTravelerByID(ctx context.Context, id string) (*models.Traveler, error) {
	return r.getTraveler(ctx, `id = $1`, id)
}

func (r *UserRepository) getGuide(ctx context.Context, where string, arg interface{}) (*models.Guide, error) {
	var g models.Guide
	err := r.db.GetContext(ctx, &g, `
		SELECT id, user_id, languages, daily_rate, trip_in_progress, created_at
		FROM guides WHERE `+where, arg)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get guide: %w", err)
	}
	return &g, nil
}

// GetGuideByUserID retrieves the guide profile of a user
func (r *UserRepository) GetGuideByUserID(ctx context.Context, userID string) (*models.Guide, error) {
	return r.getGuide(ctx, `user_id = $1`, userID)
}

// GetGuideByID retrieves a guide profile by ID
func (r *UserRepository) GetGuideByID(ctx context.Context, id string) (*models.Guide, error) {
	return r.getGuide(ctx, `id = $1`, id)
}

// SetTelegramChatID links a Telegram chat to a user for notifications
func (r *UserRepository) SetTelegramChatID(ctx context.Context, userID string, chatID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET telegram_chat_id = $2, updated_at = NOW() WHERE id = $1`, userID, chatID)
	if err != nil {
		return fmt.Errorf("failed to link telegram chat: %w", err)
	}
	return nil
}

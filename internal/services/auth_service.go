package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/heritagelanka/ceylon360-backend/internal/models"
	"github.com/heritagelanka/ceylon360-backend/pkg/jwt"
	"github.com/heritagelanka/ceylon360-backend/pkg/validator"
)

// AuthService handles registration, password login and token refresh
type AuthService struct {
	users      UserStore
	jwtService *jwt.Service
	bcryptCost int
	clock      Clock
	logger     *logrus.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(users UserStore, jwtService *jwt.Service, bcryptCost int, clock Clock, logger *logrus.Logger) *AuthService {
	if bcryptCost < bcrypt.MinCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		users:      users,
		jwtService: jwtService,
		bcryptCost: bcryptCost,
		clock:      clock,
		logger:     logger,
	}
}

// Register creates an account together with its traveler or guide profile
func (s *AuthService) Register(ctx context.Context, req *models.RegisterRequest) (*models.TokenResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if req.Role != models.RoleTraveler && req.Role != models.RoleGuide {
		return nil, validation("role must be TRAVELER or GUIDE")
	}

	existing, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	var phone *string
	if req.Phone != nil && strings.TrimSpace(*req.Phone) != "" {
		normalized, err := validator.NormalizePhone(*req.Phone)
		if err != nil {
			return nil, validation("%s", err.Error())
		}
		phone = &normalized
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.clock.Now()
	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(req.Name),
		Phone:        phone,
		Role:         req.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var (
		traveler *models.Traveler
		guide    *models.Guide
	)
	switch req.Role {
	case models.RoleTraveler:
		traveler = &models.Traveler{
			ID:        uuid.New().String(),
			UserID:    user.ID,
			Languages: req.Languages,
			CreatedAt: now,
		}
	case models.RoleGuide:
		if len(req.Languages) == 0 {
			return nil, validation("guides must list at least one language")
		}
		guide = &models.Guide{
			ID:        uuid.New().String(),
			UserID:    user.ID,
			Languages: req.Languages,
			DailyRate: req.DailyRate,
			CreatedAt: now,
		}
	}

	if err := s.users.CreateUser(ctx, user, traveler, guide); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"role":    user.Role,
	}).Info("User registered")

	return s.issueTokens(user)
}

// Login authenticates an email and password and returns tokens
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.TokenResponse, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.WithField("user_id", user.ID).Warn("Failed login attempt")
		return nil, ErrInvalidCredential
	}

	return s.issueTokens(user)
}

// RefreshToken exchanges a valid refresh token for a new token pair. The
// role is re-read so role changes apply on the next refresh.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*models.TokenResponse, error) {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid refresh token", ErrForbidden)
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: invalid refresh token", ErrForbidden)
	}

	return s.issueTokens(user)
}

// Me returns the caller's account
func (s *AuthService) Me(ctx context.Context, actor Actor) (*models.User, error) {
	return profiles{users: s.users}.user(ctx, actor.UserID)
}

// LinkTelegram records the chat the caller's reminders should also go to
func (s *AuthService) LinkTelegram(ctx context.Context, actor Actor, chatID int64) (*models.User, error) {
	if chatID == 0 {
		return nil, validation("chat_id is required")
	}
	if err := s.users.SetTelegramChatID(ctx, actor.UserID, chatID); err != nil {
		return nil, fmt.Errorf("failed to link telegram chat: %w", err)
	}
	s.logger.WithField("user_id", actor.UserID).Info("Telegram chat linked")
	return s.Me(ctx, actor)
}

func (s *AuthService) issueTokens(user *models.User) (*models.TokenResponse, error) {
	accessToken, err := s.jwtService.GenerateAccessToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refreshToken, err := s.jwtService.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &models.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    s.clock.Now().Add(s.jwtService.AccessTokenExpiry()),
		User:         user,
	}, nil
}

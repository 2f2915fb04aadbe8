package services

import (
	"context"
	"fmt"

	"github.com/heritagelanka/ceylon360-backend/internal/models"
)

// Actor is the authenticated caller of a service operation
type Actor struct {
	UserID string
	Role   models.UserRole
}

// IsAdmin reports whether the caller is an administrator
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// profiles resolves role profiles for actors
type profiles struct {
	users UserStore
}

func (p profiles) traveler(ctx context.Context, actor Actor) (*models.Traveler, error) {
	if actor.Role != models.RoleTraveler {
		return nil, fmt.Errorf("%w: traveler role required", ErrForbidden)
	}
	t, err := p.users.GetTravelerByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load traveler: %w", err)
	}
	if t == nil {
		return nil, ErrTravelerNotFound
	}
	return t, nil
}

func (p profiles) guide(ctx context.Context, actor Actor) (*models.Guide, error) {
	if actor.Role != models.RoleGuide {
		return nil, fmt.Errorf("%w: guide role required", ErrForbidden)
	}
	g, err := p.users.GetGuideByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load guide: %w", err)
	}
	if g == nil {
		return nil, ErrGuideNotFound
	}
	return g, nil
}

// travelerUser returns the account behind a traveler profile
func (p profiles) travelerUser(ctx context.Context, travelerID string) (*models.User, error) {
	t, err := p.users.GetTravelerByID(ctx, travelerID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTravelerNotFound
	}
	return p.user(ctx, t.UserID)
}

// guideUser returns the guide profile and the account behind it
func (p profiles) guideUser(ctx context.Context, guideID string) (*models.Guide, *models.User, error) {
	g, err := p.users.GetGuideByID(ctx, guideID)
	if err != nil {
		return nil, nil, err
	}
	if g == nil {
		return nil, nil, ErrGuideNotFound
	}
	u, err := p.user(ctx, g.UserID)
	if err != nil {
		return nil, nil, err
	}
	return g, u, nil
}

func (p profiles) user(ctx context.Context, id string) (*models.User, error) {
	u, err := p.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// canView reports whether the actor may read the trip
func (p profiles) canView(ctx context.Context, actor Actor, trip *models.Trip) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleTraveler:
		t, err := p.traveler(ctx, actor)
		if err != nil {
			return err
		}
		if trip.TravelerID != t.ID {
			return ErrNotTripOwner
		}
		return nil
	case models.RoleGuide:
		g, err := p.guide(ctx, actor)
		if err != nil {
			return err
		}
		open := trip.NeedsGuide && !trip.HasGuide() && trip.Status == models.TripStatusPlanning
		if !trip.IsGuidedBy(g.ID) && !open {
			return ErrNotAssignedGuide
		}
		return nil
	}
	return ErrForbidden
}

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/learnhub/learnhub-backend/internal/model"
	"github.com/rs/zerolog"
)

// UserStore is the profile persistence used by UserService.
type UserStore interface {
	EnsureByAccount(ctx context.Context, accountID int64, displayName string) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	UpdateDisplayName(ctx context.Context, accountID int64, name string) (*model.User, error)
}

// UserService manages learner profiles.
type UserService struct {
	users UserStore
	log   zerolog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(users UserStore, log zerolog.Logger) *UserService {
	return &UserService{
		users: users,
		log:   log.With().Str("component", "user_service").Logger(),
	}
}

// Me returns the caller's profile, creating an empty one on first access.
func (s *UserService) Me(ctx context.Context, accountID int64) (*model.User, error) {
	u, err := s.users.EnsureByAccount(ctx, accountID, "")
	if err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}
	return u, nil
}

// UpdateMe sets the caller's display name.
func (s *UserService) UpdateMe(ctx context.Context, accountID int64, displayName string) (*model.User, error) {
	if _, err := s.users.EnsureByAccount(ctx, accountID, displayName); err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}
	u, err := s.users.UpdateDisplayName(ctx, accountID, displayName)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return u, nil
}

// GetByID retrieves a profile by ID.
func (s *UserService) GetByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/learnhub/learnhub-backend/internal/model"
)

// UserRepository handles learner profile data access.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// EnsureByAccount returns the profile for an account, creating it on first use.
func (r *UserRepository) EnsureByAccount(ctx context.Context, accountID int64, displayName string) (*model.User, error) {
	db := conn(ctx, r.pool)
	if _, err := db.Exec(ctx,
		`INSERT INTO users (account_id, display_name)
		 VALUES ($1, $2)
		 ON CONFLICT (account_id) DO NOTHING`,
		accountID, displayName,
	); err != nil {
		return nil, err
	}
	return r.GetByAccount(ctx, accountID)
}

// GetByAccount retrieves a profile by account ID.
func (r *UserRepository) GetByAccount(ctx context.Context, accountID int64) (*model.User, error) {
	u := &model.User{}
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, account_id, display_name, created_at, updated_at
		 FROM users WHERE account_id = $1`, accountID,
	).Scan(&u.ID, &u.AccountID, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetByID retrieves a profile by ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	u := &model.User{}
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, account_id, display_name, created_at, updated_at
		 FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.AccountID, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// UpdateDisplayName sets the profile display name.
func (r *UserRepository) UpdateDisplayName(ctx context.Context, accountID int64, name string) (*model.User, error) {
	u := &model.User{}
	err := conn(ctx, r.pool).QueryRow(ctx,
		`UPDATE users SET display_name = $1, updated_at = NOW()
		 WHERE account_id = $2
		 RETURNING id, account_id, display_name, created_at, updated_at`,
		name, accountID,
	).Scan(&u.ID, &u.AccountID, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/learnhub/learnhub-backend/internal/model"
)

// AccountRepository handles account data access.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Create inserts a new account. A taken email yields ErrDuplicate.
func (r *AccountRepository) Create(ctx context.Context, a *model.Account) error {
	err := conn(ctx, r.pool).QueryRow(ctx,
		`INSERT INTO accounts (email, password_hash, role)
		 VALUES (LOWER($1), $2, $3)
		 RETURNING id, email, created_at, updated_at`,
		a.Email, a.PasswordHash, a.Role,
	).Scan(&a.ID, &a.Email, &a.CreatedAt, &a.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetByEmail retrieves an account by email, case-insensitively.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	a := &model.Account{}
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, email, password_hash, role, created_at, updated_at
		 FROM accounts WHERE email = LOWER($1)`, email,
	).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Role, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*model.Account, error) {
	a := &model.Account{}
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, email, password_hash, role, created_at, updated_at
		 FROM accounts WHERE id = $1`, id,
	).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Role, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// UpdateRole changes an account's role.
func (r *AccountRepository) UpdateRole(ctx context.Context, id int64, role model.Role) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE accounts SET role = $1, updated_at = NOW() WHERE id = $2`, role, id)
	return err
}

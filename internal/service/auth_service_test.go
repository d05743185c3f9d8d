package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/learnhub/learnhub-backend/internal/config"
	"github.com/learnhub/learnhub-backend/internal/model"
	"github.com/learnhub/learnhub-backend/internal/repository"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memAccounts struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*model.Account
}

func (m *memAccounts) Create(_ context.Context, a *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.Email == a.Email {
			return repository.ErrDuplicate
		}
	}
	m.nextID++
	a.ID = m.nextID
	cp := *a
	m.rows[a.ID] = &cp
	return nil
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.rows {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memAccounts) GetByID(_ context.Context, id int64) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func newTestAuthService(t *testing.T) *AuthService {
	t.Helper()
	_, rdb := newTestRedis(t)
	cfg := &config.Config{
		JWTSecret:     "test-secret",
		JWTExpiry:     15 * time.Minute,
		RefreshExpiry: time.Hour,
		BcryptCost:    bcrypt.MinCost,
	}
	return NewAuthService(cfg, &memAccounts{rows: make(map[int64]*model.Account)}, rdb, zerolog.Nop())
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	account, tokens, err := svc.Register(ctx, &model.RegisterRequest{Email: "ana@example.com", Password: "secret-pass", DisplayName: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleStudent, account.Role)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Equal(t, int64(900), tokens.ExpiresIn)

	_, _, err = svc.Register(ctx, &model.RegisterRequest{Email: "ana@example.com", Password: "other-pass"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, _, err = svc.Login(ctx, "ana@example.com", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody@example.com", "secret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, pair, err := svc.Login(ctx, "ana@example.com", "secret-pass")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, account.ID, claims.AccountID)
	assert.Equal(t, model.RoleStudent, claims.Role)
}

func TestRefreshRotatesToken(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	_, tokens, err := svc.Register(ctx, &model.RegisterRequest{Email: "ben@example.com", Password: "secret-pass"})
	require.NoError(t, err)

	rotated, err := svc.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken)

	_, err = svc.Refresh(ctx, tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	require.NoError(t, svc.Logout(ctx, rotated.RefreshToken))
	_, err = svc.Refresh(ctx, rotated.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	svc := newTestAuthService(t)
	other := newTestAuthService(t)
	other.cfg = &config.Config{JWTSecret: "another-secret", JWTExpiry: time.Minute}

	token, err := other.GenerateAccessToken(&model.Account{ID: 1, Role: model.RoleAdmin})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestActorCanManage(t *testing.T) {
	assert.True(t, Actor{AccountID: 5, Role: model.RoleInstructor}.CanManage(5))
	assert.False(t, Actor{AccountID: 5, Role: model.RoleInstructor}.CanManage(6))
	assert.True(t, Actor{AccountID: 1, Role: model.RoleAdmin}.CanManage(6))
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/learnhub/learnhub-backend/internal/config"
	"github.com/learnhub/learnhub-backend/internal/model"
	"github.com/learnhub/learnhub-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// Common auth errors.
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidRefreshToken = errors.New("refresh token invalid or expired")
)

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	AccountID int64      `json:"account_id"`
	Role      model.Role `json:"role"`
}

// AccountStore is the account persistence used by AuthService.
type AccountStore interface {
	Create(ctx context.Context, a *model.Account) error
	GetByEmail(ctx context.Context, email string) (*model.Account, error)
	GetByID(ctx context.Context, id int64) (*model.Account, error)
}

// AuthService handles accounts, JWT access tokens and refresh sessions.
type AuthService struct {
	cfg      *config.Config
	accounts AccountStore
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, accounts AccountStore, rdb *redis.Client, log zerolog.Logger) *AuthService {
	return &AuthService{
		cfg:      cfg,
		accounts: accounts,
		rdb:      rdb,
		log:      log.With().Str("component", "auth_service").Logger(),
	}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// CreateAccount stores a new account with the given role.
func (s *AuthService) CreateAccount(ctx context.Context, email, password string, role model.Role) (*model.Account, error) {
	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := &model.Account{Email: email, PasswordHash: hash, Role: role}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	s.log.Info().Int64("account_id", account.ID).Str("role", string(role)).Msg("Account created")
	return account, nil
}

// Register creates a student account and signs it in.
func (s *AuthService) Register(ctx context.Context, req *model.RegisterRequest) (*model.Account, *model.TokenPair, error) {
	account, err := s.CreateAccount(ctx, req.Email, req.Password, model.RoleStudent)
	if err != nil {
		return nil, nil, err
	}

	tokens, err := s.IssueTokens(ctx, account)
	if err != nil {
		return nil, nil, err
	}
	return account, tokens, nil
}

// Login validates email + password and issues a token pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.Account, *model.TokenPair, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("get account: %w", err)
	}

	if err := s.CheckPassword(account.PasswordHash, password); err != nil {
		return nil, nil, err
	}

	tokens, err := s.IssueTokens(ctx, account)
	if err != nil {
		return nil, nil, err
	}
	return account, tokens, nil
}

// IssueTokens signs an access token and stores a fresh refresh token in Redis.
func (s *AuthService) IssueTokens(ctx context.Context, account *model.Account) (*model.TokenPair, error) {
	access, err := s.GenerateAccessToken(account)
	if err != nil {
		return nil, err
	}

	refresh := uuid.New().String()
	key := config.CacheKey.RefreshTokenKey(refresh)
	if err := s.rdb.Set(ctx, key, account.ID, s.cfg.RefreshExpiry).Err(); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &model.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.cfg.JWTExpiry / time.Second),
	}, nil
}

// Refresh rotates a refresh token. The old token is consumed atomically, so
// presenting it twice fails the second time.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error) {
	key := config.CacheKey.RefreshTokenKey(refreshToken)
	val, err := s.rdb.GetDel(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("consume refresh token: %w", err)
	}

	accountID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("get account: %w", err)
	}

	return s.IssueTokens(ctx, account)
}

// Logout revokes a refresh token. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.rdb.Del(ctx, config.CacheKey.RefreshTokenKey(refreshToken)).Err()
}

// GetAccount retrieves an account by ID.
func (s *AuthService) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return account, nil
}

// GenerateAccessToken signs a short-lived HS256 access token.
func (s *AuthService) GenerateAccessToken(account *model.Account) (string, error) {
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.FormatInt(account.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		AccountID: account.ID,
		Role:      account.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/learnhub/learnhub-backend/internal/middleware"
	"github.com/learnhub/learnhub-backend/internal/model"
	"github.com/learnhub/learnhub-backend/internal/response"
	"github.com/learnhub/learnhub-backend/internal/service"
	"github.com/learnhub/learnhub-backend/internal/validator"
	"github.com/rs/zerolog"
)

// ProfileUpdater creates or renames the learner profile of a token's account.
type ProfileUpdater interface {
	UpdateProfile(ctx context.Context, token, displayName string) error
}

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService *service.AuthService
	profiles    ProfileUpdater
	log         zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, profiles ProfileUpdater, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		profiles:    profiles,
		log:         log.With().Str("component", "auth_handler").Logger(),
	}
}

// Register godoc
// POST /api/v1/auth/register
// Creates a student account, signs it in and seeds the learner profile.
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	account, tokens, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		failWith(c, err)
		return
	}

	// The profile is created lazily on first /users/me too, so a failure
	// here only loses the display name.
	if err := h.profiles.UpdateProfile(c.Request.Context(), tokens.AccessToken, req.DisplayName); err != nil {
		h.log.Warn().Err(err).Int64("account_id", account.ID).Msg("Profile setup skipped")
	}

	response.Success(c, http.StatusCreated, gin.H{
		"account": account,
		"tokens":  tokens,
	})
}

// Login godoc
// POST /api/v1/auth/login
// Validates email + password and returns a token pair.
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	account, tokens, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"account": account,
		"tokens":  tokens,
	})
}

// Refresh godoc
// POST /api/v1/auth/refresh
// Rotates a refresh token. The old token stops working immediately.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req model.RefreshRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	tokens, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, tokens)
}

// Logout godoc
// POST /api/v1/auth/logout
// Revokes the given refresh token.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req model.RefreshRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.authService.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// Me godoc
// GET /api/v1/auth/me
// Returns the authenticated account.
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	account, err := h.authService.GetAccount(c.Request.Context(), claims.AccountID)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, account)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/learnhub/learnhub-backend/internal/middleware"
	"github.com/learnhub/learnhub-backend/internal/model"
	"github.com/learnhub/learnhub-backend/internal/response"
	"github.com/learnhub/learnhub-backend/internal/service"
	"github.com/learnhub/learnhub-backend/internal/validator"
)

// UserHandler serves learner profiles.
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// Me godoc
// GET /api/v1/users/me
// Returns the caller's learner profile, creating it on first access.
func (h *UserHandler) Me(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	user, err := h.userService.Me(c.Request.Context(), claims.AccountID)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, user)
}

// UpdateMe godoc
// PUT /api/v1/users/me
// Sets the caller's display name.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.UpdateProfileRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user, err := h.userService.UpdateMe(c.Request.Context(), claims.AccountID, req.DisplayName)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, user)
}

// GetByID godoc
// GET /api/v1/users/:id
// Returns a profile by ID. Admin only.
func (h *UserHandler) GetByID(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	user, err := h.userService.GetByID(c.Request.Context(), id)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, user)
}

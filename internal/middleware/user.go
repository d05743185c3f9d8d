package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/learnhub/learnhub-backend/internal/model"
	"github.com/learnhub/learnhub-backend/internal/peer"
	"github.com/learnhub/learnhub-backend/internal/response"
)

// ContextKeyUser is the Gin context key for the caller's learner profile.
const ContextKeyUser = "user"

// UserResolver maps an account to its learner profile.
type UserResolver interface {
	Resolve(ctx context.Context, accountID int64, token string) (*model.User, error)
}

// ResolveUser loads the caller's profile from the user service. Attempt
// endpoints cannot run without it, so lookup failures are hard errors.
func ResolveUser(resolver UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		user, err := resolver.Resolve(c.Request.Context(), claims.AccountID, GetToken(c))
		if err != nil {
			if errors.Is(err, peer.ErrNotFound) {
				response.AbortFail(c, http.StatusNotFound, response.ErrNotFound)
				return
			}
			response.AbortFail(c, http.StatusServiceUnavailable, response.ErrUpstreamUnavailable)
			return
		}

		c.Set(ContextKeyUser, user)
		c.Next()
	}
}

// GetUser returns the profile set by ResolveUser.
func GetUser(c *gin.Context) *model.User {
	val, exists := c.Get(ContextKeyUser)
	if !exists {
		return nil
	}
	user, _ := val.(*model.User)
	return user
}

package peer

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/learnhub/learnhub-backend/internal/model"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

// UserClient talks to the user service.
type UserClient struct {
	http  *resty.Client
	cache *cache.Cache
	log   zerolog.Logger
}

// NewUserClient creates a new UserClient.
func NewUserClient(opts Options, log zerolog.Logger) *UserClient {
	return &UserClient{
		http:  newHTTPClient(opts),
		cache: newCache(opts.CacheTTL),
		log:   log.With().Str("component", "peer_users").Logger(),
	}
}

// Resolve maps an account to its learner profile using the caller's token.
// Unlike enrichment lookups, failures are returned to the caller.
func (c *UserClient) Resolve(ctx context.Context, accountID int64, token string) (*model.User, error) {
	key := fmt.Sprintf("acct:%d", accountID)
	if v, ok := c.cache.Get(key); ok {
		return v.(*model.User), nil
	}

	user, err := do[*model.User](ctx, c.http.R().SetAuthToken(token), resty.MethodGet, "/api/v1/users/me")
	if err != nil {
		c.log.Warn().Err(err).Int64("account_id", accountID).Msg("Resolve user failed")
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: empty user payload", ErrUnavailable)
	}

	c.cache.Set(key, user, cache.DefaultExpiration)
	return user, nil
}

// UpdateProfile sets the display name of the token's account.
func (c *UserClient) UpdateProfile(ctx context.Context, token, displayName string) error {
	req := c.http.R().
		SetAuthToken(token).
		SetBody(model.UpdateProfileRequest{DisplayName: displayName})
	_, err := do[*model.User](ctx, req, resty.MethodPut, "/api/v1/users/me")
	return err
}

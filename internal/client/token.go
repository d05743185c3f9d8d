package client

import (
	"context"
	"errors"
	"sync"

	"github.com/learnhub/learnhub-backend/internal/model"
	"golang.org/x/sync/singleflight"
)

type refreshFunc func(ctx context.Context, refreshToken string) (model.TokenPair, error)

// tokenRefresher holds the token pair of one API client. Refresh tokens are
// single use on the server, so concurrent refreshes are collapsed into one
// call and every waiter receives its result.
type tokenRefresher struct {
	mu    sync.RWMutex
	pair  model.TokenPair
	group singleflight.Group
	fetch refreshFunc
}

func newTokenRefresher(fetch refreshFunc) *tokenRefresher {
	return &tokenRefresher{fetch: fetch}
}

func (t *tokenRefresher) current() model.TokenPair {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pair
}

func (t *tokenRefresher) access() string {
	return t.current().AccessToken
}

func (t *tokenRefresher) set(pair model.TokenPair) {
	t.mu.Lock()
	t.pair = pair
	t.mu.Unlock()
}

// refresh returns an access token newer than stale. When another caller has
// already replaced stale, its token is returned without a network call.
func (t *tokenRefresher) refresh(ctx context.Context, stale string) (string, error) {
	if cur := t.current(); cur.AccessToken != stale && cur.AccessToken != "" {
		return cur.AccessToken, nil
	}

	ch := t.group.DoChan("refresh", func() (any, error) {
		cur := t.current()
		if cur.AccessToken != stale && cur.AccessToken != "" {
			return cur.AccessToken, nil
		}
		if cur.RefreshToken == "" {
			return "", ErrNotAuthenticated
		}

		// Waiters may give up; the exchange itself must finish or the
		// rotated refresh token is lost.
		pair, err := t.fetch(context.WithoutCancel(ctx), cur.RefreshToken)
		if err != nil {
			if errors.Is(err, ErrSessionExpired) {
				t.set(model.TokenPair{})
			}
			return "", err
		}
		t.set(pair)
		return pair.AccessToken, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

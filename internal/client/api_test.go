package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/learnhub/learnhub-backend/internal/model"
	"github.com/learnhub/learnhub-backend/internal/response"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway accepts only currentAccess and rotates the pair on refresh.
type fakeGateway struct {
	mu             sync.Mutex
	currentAccess  string
	currentRefresh string
	rejectRefresh  bool
	refreshCalls   atomic.Int32
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code response.ErrCode) {
	writeJSON(w, status, response.Response{Error: &response.ErrorBody{Code: code, Message: response.GetMessage(code)}})
}

func (g *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v1/auth/login":
		g.mu.Lock()
		pair := model.TokenPair{AccessToken: g.currentAccess, RefreshToken: g.currentRefresh}
		g.mu.Unlock()
		writeJSON(w, http.StatusOK, response.Response{Data: pair})

	case "/api/v1/auth/refresh":
		g.refreshCalls.Add(1)
		var req model.RefreshRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		g.mu.Lock()
		defer g.mu.Unlock()
		if g.rejectRefresh || req.RefreshToken != g.currentRefresh {
			writeError(w, http.StatusUnauthorized, response.ErrRefreshInvalid)
			return
		}
		g.currentAccess += "+"
		g.currentRefresh += "+"
		writeJSON(w, http.StatusOK, response.Response{Data: model.TokenPair{AccessToken: g.currentAccess, RefreshToken: g.currentRefresh}})

	case "/api/v1/user-quizzes":
		g.mu.Lock()
		ok := r.Header.Get("Authorization") == "Bearer "+g.currentAccess
		g.mu.Unlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}
		writeJSON(w, http.StatusOK, response.Response{Data: []model.ProgressEntry{}})

	case "/api/v1/quizzes/5/start":
		writeError(w, http.StatusConflict, response.ErrAttemptCompleted)

	default:
		http.NotFound(w, r)
	}
}

func newTestAPI(t *testing.T, g *fakeGateway) *API {
	t.Helper()
	srv := httptest.NewServer(g)
	t.Cleanup(srv.Close)
	return NewAPI(Options{BaseURL: srv.URL}, zerolog.Nop())
}

func TestAPIRequiresLogin(t *testing.T) {
	api := newTestAPI(t, &fakeGateway{currentAccess: "a", currentRefresh: "r"})

	_, err := api.Progress(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	require.NoError(t, api.Login(context.Background(), "ana@example.com", "secret"))
	assert.Equal(t, "a", api.Tokens().AccessToken)

	_, err = api.Progress(context.Background())
	assert.NoError(t, err)
}

func TestConcurrentExpiredCallsRefreshOnce(t *testing.T) {
	g := &fakeGateway{currentAccess: "a1", currentRefresh: "r1"}
	api := newTestAPI(t, g)
	api.SetTokens(model.TokenPair{AccessToken: "expired", RefreshToken: "r1"})

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = api.Progress(context.Background())
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 1, g.refreshCalls.Load())
	assert.Equal(t, "a1+", api.Tokens().AccessToken)
	assert.Equal(t, "r1+", api.Tokens().RefreshToken)
}

func TestRejectedRefreshExpiresSession(t *testing.T) {
	g := &fakeGateway{currentAccess: "a1", currentRefresh: "r1", rejectRefresh: true}
	api := newTestAPI(t, g)
	api.SetTokens(model.TokenPair{AccessToken: "expired", RefreshToken: "r1"})

	_, err := api.Progress(context.Background())
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Empty(t, api.Tokens().AccessToken)

	_, err = api.Progress(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestAPIErrorCarriesCode(t *testing.T) {
	g := &fakeGateway{currentAccess: "a", currentRefresh: "r"}
	api := newTestAPI(t, g)
	api.SetTokens(model.TokenPair{AccessToken: "a", RefreshToken: "r"})

	_, err := api.Start(context.Background(), 5)
	require.Error(t, err)
	assert.True(t, IsCode(err, response.ErrAttemptCompleted))

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.EqualValues(t, 0, g.refreshCalls.Load())
}

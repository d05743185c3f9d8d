// Package client is the learner side of the quiz API: a typed HTTP client,
// a local SQLite draft store and the autosave loop that keeps the server in
// step with the draft.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/learnhub/learnhub-backend/internal/model"
	"github.com/learnhub/learnhub-backend/internal/response"
	"github.com/rs/zerolog"
)

var (
	// ErrNotAuthenticated is returned by calls that need a token before Login.
	ErrNotAuthenticated = errors.New("client: not authenticated")
	// ErrSessionExpired means the refresh token was rejected; log in again.
	ErrSessionExpired = errors.New("client: session expired")
)

// Error is a non-2xx answer from the API.
type Error struct {
	Status  int
	Code    response.ErrCode
	Message string
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: %s (%d): %s", e.Code, e.Status, e.Message)
}

// IsCode reports whether err is an API error carrying code.
func IsCode(err error, code response.ErrCode) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}

type envelope[T any] struct {
	Data  T                   `json:"data"`
	Error *response.ErrorBody `json:"error,omitempty"`
}

// Options configures an API client.
type Options struct {
	BaseURL string
	Timeout time.Duration
}

// API talks to the LearnHub gateway on behalf of one learner. It owns its
// token pair; concurrent calls that hit an expired access token share one
// refresh.
type API struct {
	http   *resty.Client
	tokens *tokenRefresher
	log    zerolog.Logger
}

// NewAPI creates an API client for opts.BaseURL.
func NewAPI(opts Options, log zerolog.Logger) *API {
	c := resty.New().
		SetBaseURL(opts.BaseURL).
		SetHeader("Accept", "application/json")
	if opts.Timeout > 0 {
		c.SetTimeout(opts.Timeout)
	}

	a := &API{
		http: c,
		log:  log.With().Str("component", "api_client").Logger(),
	}
	a.tokens = newTokenRefresher(a.refresh)
	return a
}

// Login exchanges credentials for a token pair and keeps it.
func (a *API) Login(ctx context.Context, email, password string) error {
	pair, err := execute[model.TokenPair](ctx, a.http, http.MethodPost, "/api/v1/auth/login",
		&model.LoginRequest{Email: email, Password: password}, "")
	if err != nil {
		return err
	}
	a.tokens.set(pair)
	return nil
}

// SetTokens installs a token pair obtained elsewhere.
func (a *API) SetTokens(pair model.TokenPair) {
	a.tokens.set(pair)
}

// Tokens returns the current token pair.
func (a *API) Tokens() model.TokenPair {
	return a.tokens.current()
}

func (a *API) refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	pair, err := execute[model.TokenPair](ctx, a.http, http.MethodPost, "/api/v1/auth/refresh",
		&model.RefreshRequest{RefreshToken: refreshToken}, "")
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		return pair, ErrSessionExpired
	}
	if err == nil {
		a.log.Debug().Msg("Access token refreshed")
	}
	return pair, err
}

// AttemptView fetches the quiz as shown to a learner.
func (a *API) AttemptView(ctx context.Context, quizID int64) (*model.AttemptView, error) {
	return send[*model.AttemptView](ctx, a, http.MethodGet, "/api/v1/quizzes/"+id(quizID)+"/attempt", nil)
}

// Start opens or resumes the learner's attempt on a quiz.
func (a *API) Start(ctx context.Context, quizID int64) (*model.StartAttemptResponse, error) {
	return send[*model.StartAttemptResponse](ctx, a, http.MethodPost, "/api/v1/quizzes/"+id(quizID)+"/start", nil)
}

// Retake opens a new attempt after a completed one.
func (a *API) Retake(ctx context.Context, quizID int64) (*model.StartAttemptResponse, error) {
	return send[*model.StartAttemptResponse](ctx, a, http.MethodPost, "/api/v1/quizzes/"+id(quizID)+"/retake", nil)
}

// State fetches the server-side answers of a result.
func (a *API) State(ctx context.Context, resultID int64) (*model.ResumeState, error) {
	return send[*model.ResumeState](ctx, a, http.MethodGet, "/api/v1/results/"+id(resultID)+"/state", nil)
}

// Submit stores answers; with IsFinalSubmission it also grades the result.
func (a *API) Submit(ctx context.Context, sub *model.Submission) (*model.SubmissionResult, error) {
	return send[*model.SubmissionResult](ctx, a, http.MethodPost, "/api/v1/results/"+id(sub.ResultID)+"/submit", sub)
}

// Review fetches the graded review of a completed result.
func (a *API) Review(ctx context.Context, resultID int64) (*model.ResultReview, error) {
	return send[*model.ResultReview](ctx, a, http.MethodGet, "/api/v1/results/"+id(resultID)+"/review", nil)
}

// Progress lists the learner's standing on every quiz they attempted.
func (a *API) Progress(ctx context.Context) ([]model.ProgressEntry, error) {
	return send[[]model.ProgressEntry](ctx, a, http.MethodGet, "/api/v1/user-quizzes", nil)
}

// send performs an authenticated call. A 401 triggers one shared token
// refresh and a single retry with the new token.
func send[T any](ctx context.Context, a *API, method, path string, body any) (T, error) {
	var zero T

	access := a.tokens.access()
	if access == "" {
		return zero, ErrNotAuthenticated
	}

	out, err := execute[T](ctx, a.http, method, path, body, access)
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		return out, err
	}

	fresh, err := a.tokens.refresh(ctx, access)
	if err != nil {
		return zero, err
	}
	return execute[T](ctx, a.http, method, path, body, fresh)
}

func execute[T any](ctx context.Context, c *resty.Client, method, path string, body any, token string) (T, error) {
	var env envelope[T]
	var zero T

	req := c.R().SetContext(ctx).SetResult(&env).SetError(&env)
	if body != nil {
		req.SetBody(body)
	}
	if token != "" {
		req.SetAuthToken(token)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return zero, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr := &Error{Status: resp.StatusCode()}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return zero, apiErr
	}
	return env.Data, nil
}

func id(v int64) string {
	return strconv.FormatInt(v, 10)
}

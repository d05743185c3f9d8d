package peer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/learnhub/learnhub-backend/internal/model"
	"github.com/learnhub/learnhub-backend/internal/response"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCourseServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/courses/1":
			_ = json.NewEncoder(w).Encode(response.Response{Data: model.CourseDetail{
				Course:    model.Course{ID: 1, Title: "Go Fundamentals", InstructorID: 42},
				QuizCount: 3,
			}})
		case "/api/v1/courses/2":
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(response.Response{Error: &response.ErrorBody{Code: response.ErrCourseNotFound}})
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCourseClientCachesLookups(t *testing.T) {
	var hits atomic.Int32
	srv := newCourseServer(t, &hits)
	c := NewCourseClient(Options{BaseURL: srv.URL, Timeout: time.Second, CacheTTL: time.Minute}, zerolog.Nop())
	ctx := context.Background()

	course, err := c.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Go Fundamentals", course.Title)
	assert.Equal(t, int64(42), course.InstructorID)

	assert.Equal(t, "Go Fundamentals", c.CourseName(ctx, 1))
	assert.EqualValues(t, 1, hits.Load())
}

func TestCourseClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := newCourseServer(t, &hits)
	c := NewCourseClient(Options{BaseURL: srv.URL, Timeout: time.Second}, zerolog.Nop())
	ctx := context.Background()

	_, err := c.Get(ctx, 2)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Get(ctx, 3)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Empty(t, c.CourseName(ctx, 3))
}

func TestCourseClientUnreachable(t *testing.T) {
	c := NewCourseClient(Options{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond}, zerolog.Nop())

	_, err := c.Get(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestPeerForwardsRequestID(t *testing.T) {
	var seen atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.Header.Get(response.HeaderRequestID))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response.Response{Data: model.CourseDetail{Course: model.Course{ID: 7}}})
	}))
	t.Cleanup(srv.Close)

	c := NewCourseClient(Options{BaseURL: srv.URL, Timeout: time.Second}, zerolog.Nop())
	_, err := c.Get(response.WithRequestID(context.Background(), "req-123"), 7)
	require.NoError(t, err)
	assert.Equal(t, "req-123", seen.Load())
}

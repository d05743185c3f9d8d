package peer

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/learnhub/learnhub-backend/internal/model"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

// CourseClient reads the course catalog.
type CourseClient struct {
	http  *resty.Client
	cache *cache.Cache
	log   zerolog.Logger
}

// NewCourseClient creates a new CourseClient.
func NewCourseClient(opts Options, log zerolog.Logger) *CourseClient {
	return &CourseClient{
		http:  newHTTPClient(opts),
		cache: newCache(opts.CacheTTL),
		log:   log.With().Str("component", "peer_courses").Logger(),
	}
}

// Get fetches a course by ID.
func (c *CourseClient) Get(ctx context.Context, courseID int64) (*model.Course, error) {
	key := fmt.Sprintf("course:%d", courseID)
	if v, ok := c.cache.Get(key); ok {
		return v.(*model.Course), nil
	}

	course, err := do[*model.CourseDetail](ctx, c.http.R(), resty.MethodGet, fmt.Sprintf("/api/v1/courses/%d", courseID))
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, ErrNotFound
	}

	c.cache.Set(key, &course.Course, cache.DefaultExpiration)
	return &course.Course, nil
}

// CourseName returns the course title, or "" when the lookup fails.
func (c *CourseClient) CourseName(ctx context.Context, courseID int64) string {
	course, err := c.Get(ctx, courseID)
	if err != nil {
		c.log.Warn().Err(err).Int64("course_id", courseID).Msg("Course enrichment skipped")
		return ""
	}
	return course.Title
}

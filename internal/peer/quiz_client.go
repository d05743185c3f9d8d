package peer

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

// QuizClient reads quiz aggregates for the course catalog.
type QuizClient struct {
	http  *resty.Client
	cache *cache.Cache
	log   zerolog.Logger
}

// NewQuizClient creates a new QuizClient.
func NewQuizClient(opts Options, log zerolog.Logger) *QuizClient {
	return &QuizClient{
		http:  newHTTPClient(opts),
		cache: newCache(opts.CacheTTL),
		log:   log.With().Str("component", "peer_quizzes").Logger(),
	}
}

type quizCount struct {
	Count int `json:"count"`
}

// QuizCount returns the number of published quizzes in a course, or 0 when
// the quiz service cannot be reached.
func (c *QuizClient) QuizCount(ctx context.Context, courseID int64) int {
	key := fmt.Sprintf("count:%d", courseID)
	if v, ok := c.cache.Get(key); ok {
		return v.(int)
	}

	req := c.http.R().SetQueryParam("course_id", strconv.FormatInt(courseID, 10))
	out, err := do[quizCount](ctx, req, resty.MethodGet, "/api/v1/quizzes/count")
	if err != nil {
		c.log.Warn().Err(err).Int64("course_id", courseID).Msg("Quiz count enrichment skipped")
		return 0
	}

	c.cache.Set(key, out.Count, cache.DefaultExpiration)
	return out.Count
}

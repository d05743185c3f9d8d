package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ViewWarmer rebuilds cached quiz views.
type ViewWarmer interface {
	WarmPublished(ctx context.Context) (int, error)
}

// CacheRefresher periodically re-warms the quiz view cache so entries never
// expire under load.
type CacheRefresher struct {
	warmer  ViewWarmer
	cron    *cron.Cron
	timeout time.Duration
	log     zerolog.Logger
}

// NewCacheRefresher schedules the refresh on spec, e.g. "@every 10m".
func NewCacheRefresher(warmer ViewWarmer, spec string, log zerolog.Logger) (*CacheRefresher, error) {
	r := &CacheRefresher{
		warmer:  warmer,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		timeout: 2 * time.Minute,
		log:     log.With().Str("component", "cache_refresher").Logger(),
	}
	if _, err := r.cron.AddFunc(spec, r.refresh); err != nil {
		return nil, fmt.Errorf("schedule cache refresh %q: %w", spec, err)
	}
	return r, nil
}

// Start runs the schedule until ctx is cancelled. Call in a goroutine.
func (r *CacheRefresher) Start(ctx context.Context) {
	r.cron.Start()
	r.log.Info().Msg("Refresher started")

	<-ctx.Done()
	<-r.cron.Stop().Done()
	r.log.Info().Msg("Refresher stopped")
}

func (r *CacheRefresher) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	start := time.Now()
	n, err := r.warmer.WarmPublished(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("Cache refresh failed")
		return
	}
	r.log.Info().Int("quizzes", n).Dur("took", time.Since(start)).Msg("Cache refreshed")
}

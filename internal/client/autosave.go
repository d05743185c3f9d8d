package client

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// DefaultAutosaveInterval is how often an open attempt is flushed.
const DefaultAutosaveInterval = 5 * time.Minute

// flushTimeout bounds a shared flush once it no longer follows any caller's
// context.
const flushTimeout = time.Minute

// FlushFunc writes the current answers to the server.
type FlushFunc func(ctx context.Context) error

// Autosaver flushes on a fixed interval until its context is cancelled.
// At most one flush runs at a time: a tick during a flush is skipped and an
// explicit Flush joins the one in progress.
type Autosaver struct {
	flush    FlushFunc
	interval time.Duration
	log      zerolog.Logger

	group    singleflight.Group
	inFlight atomic.Bool
}

// NewAutosaver creates an Autosaver. A non-positive interval uses
// DefaultAutosaveInterval.
func NewAutosaver(flush FlushFunc, interval time.Duration, log zerolog.Logger) *Autosaver {
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	return &Autosaver{
		flush:    flush,
		interval: interval,
		log:      log.With().Str("component", "autosaver").Logger(),
	}
}

// Run ticks until ctx is cancelled. A flush already running when ctx ends
// finishes on its own, so an explicit Flush joined to it still gets a result.
func (a *Autosaver) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

// tick reports whether a flush was attempted.
func (a *Autosaver) tick(ctx context.Context) bool {
	if a.inFlight.Load() {
		a.log.Debug().Msg("Previous flush still running, skipping tick")
		return false
	}
	if err := a.Flush(ctx); err != nil && ctx.Err() == nil {
		a.log.Warn().Err(err).Msg("Autosave failed")
	}
	return true
}

// Flush saves now. Callers arriving while a flush runs share its outcome.
// The shared call is detached from ctx; each caller stops waiting when its
// own ctx ends.
func (a *Autosaver) Flush(ctx context.Context) error {
	ch := a.group.DoChan("flush", func() (any, error) {
		a.inFlight.Store(true)
		defer a.inFlight.Store(false)

		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
		defer cancel()
		return nil, a.flush(flushCtx)
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

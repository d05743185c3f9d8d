package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingWarmer struct {
	calls atomic.Int32
	err   error
}

func (w *countingWarmer) WarmPublished(context.Context) (int, error) {
	w.calls.Add(1)
	return 3, w.err
}

func TestCacheRefresherRejectsBadSchedule(t *testing.T) {
	_, err := NewCacheRefresher(&countingWarmer{}, "every now and then", zerolog.Nop())
	assert.Error(t, err)
}

func TestCacheRefresherRunsOnSchedule(t *testing.T) {
	warmer := &countingWarmer{err: errors.New("redis down")}
	r, err := NewCacheRefresher(warmer, "@every 1s", zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return warmer.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	cancel()
	<-done
}

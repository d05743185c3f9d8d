package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingFlush counts calls and holds each one until release is closed.
type blockingFlush struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	err     error
}

func newBlockingFlush() *blockingFlush {
	return &blockingFlush{started: make(chan struct{}, 16), release: make(chan struct{})}
}

func (b *blockingFlush) flush(ctx context.Context) error {
	b.calls.Add(1)
	b.started <- struct{}{}
	select {
	case <-b.release:
		return b.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestAutosaverSkipsTickWhileFlushing(t *testing.T) {
	b := newBlockingFlush()
	a := NewAutosaver(b.flush, time.Hour, zerolog.Nop())
	ctx := context.Background()

	done := make(chan bool)
	go func() { done <- a.tick(ctx) }()
	<-b.started

	assert.False(t, a.tick(ctx), "tick during a flush must be skipped")

	close(b.release)
	assert.True(t, <-done)
	assert.EqualValues(t, 1, b.calls.Load())
}

func TestAutosaverConcurrentFlushesShareOneCall(t *testing.T) {
	b := newBlockingFlush()
	b.err = errors.New("server down")
	a := NewAutosaver(b.flush, time.Hour, zerolog.Nop())
	ctx := context.Background()

	first := make(chan error, 1)
	go func() { first <- a.Flush(ctx) }()
	<-b.started

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = a.Flush(ctx)
		}()
	}

	// Joiners register with the running call before it is released.
	time.Sleep(20 * time.Millisecond)
	close(b.release)
	wg.Wait()

	assert.EqualError(t, <-first, "server down")
	for _, err := range errs {
		assert.EqualError(t, err, "server down")
	}
	assert.EqualValues(t, 1, b.calls.Load())
}

func TestAutosaverJoinerOutlivesCancelledStarter(t *testing.T) {
	b := newBlockingFlush()
	a := NewAutosaver(b.flush, time.Hour, zerolog.Nop())

	tickCtx, cancelTick := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() { first <- a.Flush(tickCtx) }()
	<-b.started

	second := make(chan error, 1)
	go func() { second <- a.Flush(context.Background()) }()
	time.Sleep(20 * time.Millisecond)

	cancelTick()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(b.release)
	assert.NoError(t, <-second)
	assert.EqualValues(t, 1, b.calls.Load())
}

func TestAutosaverFlushAfterPreviousCompletes(t *testing.T) {
	var calls atomic.Int32
	a := NewAutosaver(func(context.Context) error {
		calls.Add(1)
		return nil
	}, 0, zerolog.Nop())

	require.NoError(t, a.Flush(context.Background()))
	require.NoError(t, a.Flush(context.Background()))
	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, DefaultAutosaveInterval, a.interval)
}

func TestAutosaverRunStopsOnCancel(t *testing.T) {
	var calls atomic.Int32
	a := NewAutosaver(func(context.Context) error {
		calls.Add(1)
		return nil
	}, 5*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(stopped)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

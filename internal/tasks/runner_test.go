package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingFailures struct {
	mu    sync.Mutex
	names []string
}

func (c *countingFailures) TaskFailed(task string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names = append(c.names, task)
}

func (c *countingFailures) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.names...)
}

func TestRunner_RunsQueuedTasksBeforeStop(t *testing.T) {
	r := New(Config{Workers: 2, QueueSize: 10}, zap.NewNop(), nil)
	r.Start(context.Background())

	var n atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, r.Go("inc", func(context.Context) error {
			n.Add(1)
			return nil
		}))
	}
	require.NoError(t, r.Stop(context.Background()))
	assert.Equal(t, int32(10), n.Load())
}

func TestRunner_CountsFailuresAndPanics(t *testing.T) {
	fc := &countingFailures{}
	r := New(Config{Workers: 1, QueueSize: 4}, zap.NewNop(), fc)
	r.Start(context.Background())

	require.NoError(t, r.Go("email", func(context.Context) error { return errors.New("smtp down") }))
	require.NoError(t, r.Go("cleanup", func(context.Context) error { panic("boom") }))
	require.NoError(t, r.Go("ok", func(context.Context) error { return nil }))
	require.NoError(t, r.Stop(context.Background()))

	assert.ElementsMatch(t, []string{"email", "cleanup"}, fc.snapshot())
}

func TestRunner_DropsWhenFullOrStopped(t *testing.T) {
	fc := &countingFailures{}
	r := New(Config{Workers: 1, QueueSize: 1}, zap.NewNop(), fc)

	assert.ErrorIs(t, r.Go("early", func(context.Context) error { return nil }), ErrNotRunning)

	r.Start(context.Background())
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, r.Go("block", func(context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started
	require.NoError(t, r.Go("queued", func(context.Context) error { return nil }))
	assert.ErrorIs(t, r.Go("overflow", func(context.Context) error { return nil }), ErrQueueFull)

	close(release)
	require.NoError(t, r.Stop(context.Background()))
	assert.ElementsMatch(t, []string{"early", "overflow"}, fc.snapshot())
}

func TestRunner_StopTimeoutCancelsTasks(t *testing.T) {
	r := New(Config{Workers: 1, QueueSize: 1, Timeout: time.Minute}, zap.NewNop(), nil)
	r.Start(context.Background())

	started := make(chan struct{})
	require.NoError(t, r.Go("slow", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Stop(ctx), context.DeadlineExceeded)
}

func TestRunner_StopDoesNotWaitForStuckTask(t *testing.T) {
	defer func(d time.Duration) { stopGrace = d }(stopGrace)
	stopGrace = 20 * time.Millisecond

	r := New(Config{Workers: 1, QueueSize: 1, Timeout: time.Minute}, zap.NewNop(), nil)
	r.Start(context.Background())

	started := make(chan struct{})
	release := make(chan struct{})
	finished := make(chan struct{})
	require.NoError(t, r.Go("stuck", func(context.Context) error {
		defer close(finished)
		close(started)
		<-release
		return nil
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	begin := time.Now()
	assert.ErrorIs(t, r.Stop(ctx), context.DeadlineExceeded)
	assert.Less(t, time.Since(begin), time.Second)

	close(release)
	<-finished
	r.wg.Wait()
}

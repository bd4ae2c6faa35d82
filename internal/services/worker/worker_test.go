// worker_test.go: Queueing, back-pressure and shutdown of the worker pool.
package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_Do(t *testing.T) {
	p := NewPool(2, 4, nil)
	p.Start()
	defer p.Stop()

	var ran atomic.Int32
	err := p.Do(context.Background(), JobOutline, func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), ran.Load())

	boom := errors.New("backend down")
	err = p.Do(context.Background(), JobSnippets, func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestPool_QueueFull(t *testing.T) {
	p := NewPool(1, 1, nil)
	p.Start()
	defer p.Stop()

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(&Job{Type: JobFacts, Run: func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}}))
	<-started

	// One slot in the buffer, then full.
	require.NoError(t, p.Submit(&Job{Type: JobFacts, Run: func(ctx context.Context) error { return nil }}))
	err := p.Submit(&Job{Type: JobFacts, Run: func(ctx context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrQueueFull)

	close(release)
}

func TestPool_DoCallerCancelled(t *testing.T) {
	p := NewPool(1, 2, nil)
	p.Start()
	defer p.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- p.Do(ctx, JobAsk, func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestPool_PanicBecomesError(t *testing.T) {
	p := NewPool(1, 1, nil)
	p.Start()
	defer p.Stop()

	err := p.Do(context.Background(), JobPodcast, func(ctx context.Context) error { panic("bad input") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	// The worker survives.
	assert.NoError(t, p.Do(context.Background(), JobPodcast, func(ctx context.Context) error { return nil }))
}

func TestPool_Stop(t *testing.T) {
	p := NewPool(1, 4, nil)
	p.Start()

	var ran atomic.Int32
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Submit(&Job{Type: JobSummarize, Run: func(ctx context.Context) error {
			ran.Add(1)
			return nil
		}}))
	}
	p.Stop()
	p.Stop()

	assert.Equal(t, int32(3), ran.Load(), "queued jobs drain on stop")
	assert.ErrorIs(t, p.Submit(&Job{Type: JobSummarize, Run: func(ctx context.Context) error { return nil }}), ErrStopped)
	assert.Equal(t, 1, p.WorkerCount())
}

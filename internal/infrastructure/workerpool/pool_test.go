package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestPool_RunsJobs(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := New(Options{Workers: 2, Log: zerolog.Nop()})
	defer p.Close()

	var n atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Do(context.Background(), func() { n.Add(1) }))
	}
	assert.Equal(t, int32(10), n.Load())
}

func TestPool_BudgetExceededWhileRunning(t *testing.T) {
	defer goleak.VerifyNone(t)

	rejected := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_rejected_running"})
	p := New(Options{Workers: 1, Rejected: rejected, Log: zerolog.Nop()})
	defer p.Close()

	release := make(chan struct{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Do(ctx, func() { <-release })
	close(release)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBudgetExceeded))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, float64(1), testutil.ToFloat64(rejected))
}

func TestPool_SkipsJobsWhoseCallerGaveUp(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := New(Options{Workers: 1, QueueSize: 4, Log: zerolog.Nop()})
	defer p.Close()

	busy := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = p.Do(context.Background(), func() {
			close(started)
			<-busy
		})
	}()
	<-started

	var ran atomic.Bool
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := p.Do(ctx, func() { ran.Store(true) })
	require.ErrorIs(t, err, ErrBudgetExceeded)

	close(busy)
	// The next job only runs after the abandoned one has been dequeued.
	require.NoError(t, p.Do(context.Background(), func() {}))
	assert.False(t, ran.Load())
}

func TestPool_DoAfterClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := New(Options{Workers: 1, Log: zerolog.Nop()})
	p.Close()

	err := p.Do(context.Background(), func() {})
	assert.ErrorIs(t, err, ErrClosed)
}

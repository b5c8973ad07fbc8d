// Package workerpool runs CPU-bound jobs on a fixed set of goroutines so that
// expensive work (password hashing) cannot starve request handling.
package workerpool

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const defaultQueueFactor = 16

var (
	// ErrClosed is returned by Do after Close.
	ErrClosed = errors.New("workerpool: closed")
	// ErrBudgetExceeded is returned when the caller's context ends before the job finishes.
	ErrBudgetExceeded = errors.New("workerpool: budget exceeded")
)

type job struct {
	ctx  context.Context
	fn   func()
	done chan struct{}
}

// Options configures a Pool. Zero values pick defaults.
type Options struct {
	Workers   int
	QueueSize int
	Depth     prometheus.Gauge
	Rejected  prometheus.Counter
	Log       zerolog.Logger
}

// Pool is a bounded set of workers fed from one buffered queue.
type Pool struct {
	jobs     chan job
	quit     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
	depth    prometheus.Gauge
	rejected prometheus.Counter
	log      zerolog.Logger
}

// New creates a Pool and starts its workers.
// If Workers <= 0, runtime.NumCPU() workers are used.
func New(opts Options) *Pool {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	queue := opts.QueueSize
	if queue <= 0 {
		queue = workers * defaultQueueFactor
	}
	p := &Pool{
		jobs:     make(chan job, queue),
		quit:     make(chan struct{}),
		depth:    opts.Depth,
		rejected: opts.Rejected,
		log:      opts.Log,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.runWorker(i)
	}
	return p
}

// Do runs fn on a worker and blocks until it returns or ctx is done.
// A job whose ctx ended while it was still queued is skipped by the worker.
func (p *Pool) Do(ctx context.Context, fn func()) error {
	j := job{ctx: ctx, fn: fn, done: make(chan struct{})}

	select {
	case <-p.quit:
		return ErrClosed
	default:
	}

	select {
	case p.jobs <- j:
		p.observeDepth()
	case <-ctx.Done():
		p.reject()
		return errors.Join(ErrBudgetExceeded, ctx.Err())
	case <-p.quit:
		return ErrClosed
	}

	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		p.reject()
		return errors.Join(ErrBudgetExceeded, ctx.Err())
	case <-p.quit:
		return ErrClosed
	}
}

// Close stops the workers and waits for running jobs to return.
func (p *Pool) Close() {
	p.once.Do(func() {
		close(p.quit)
	})
	p.wg.Wait()
}

func (p *Pool) runWorker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.quit:
			return
		case j := <-p.jobs:
			p.observeDepth()
			if j.ctx.Err() != nil {
				p.log.Debug().Int("worker_id", id).Msg("skipping job whose caller gave up")
				continue
			}
			j.fn()
			close(j.done)
		}
	}
}

func (p *Pool) observeDepth() {
	if p.depth != nil {
		p.depth.Set(float64(len(p.jobs)))
	}
}

func (p *Pool) reject() {
	if p.rejected != nil {
		p.rejected.Inc()
	}
}

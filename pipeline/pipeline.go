// Package pipeline serialises row events: every submitted job runs to
// completion on a single worker before the next one starts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrPipelineClosed is returned when Submit is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
	// ErrPipelineCloseTimeout is returned when queued jobs do not finish in time.
	ErrPipelineCloseTimeout = errors.New("pipeline: close timed out")
)

var drainTimeout = 30 * time.Second

// Job is one unit of work. It receives the submitter's context.
type Job func(ctx context.Context) error

type task struct {
	ctx  context.Context
	name string
	fn   Job
	done chan error
}

// Pipeline runs jobs one at a time in submission order.
type Pipeline struct {
	jobs chan *task

	wg        sync.WaitGroup
	startOnce sync.Once

	metrics metrics

	mu     sync.Mutex // guards closed
	closed bool

	closeOnce    sync.Once
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// New builds a pipeline whose queue holds buffer pending jobs.
func New(buffer int) *Pipeline {
	if buffer < 0 {
		buffer = 0
	}
	return &Pipeline{
		jobs:     make(chan *task, buffer),
		metrics:  newMetrics(),
		shutdown: make(chan struct{}),
	}
}

// Start launches the worker. Jobs submitted earlier wait in the queue.
func (p *Pipeline) Start() {
	if p.isClosed() {
		return
	}
	p.launch()
}

func (p *Pipeline) launch() {
	p.startOnce.Do(func() {
		p.wg.Add(1)
		go p.worker()
	})
}

// Submit queues fn and blocks until it has run, returning its error. When
// ctx ends first Submit returns ctx.Err(); a job still queued at that point
// is skipped.
func (p *Pipeline) Submit(ctx context.Context, name string, fn Job) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if p.isClosed() {
		return ErrPipelineClosed
	}

	t := &task{ctx: ctx, name: name, fn: fn, done: make(chan error, 1)}
	if err := p.enqueue(t); err != nil {
		return err
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs, runs the ones already queued and waits for
// the worker to exit. It gives up after the drain timeout and returns
// ErrPipelineCloseTimeout, leaving the worker to finish in the background.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.signalShutdown()
	p.closeOnce.Do(func() {
		close(p.jobs)
	})

	p.launch()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(drainTimeout):
		return ErrPipelineCloseTimeout
	}
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	snap := p.metrics.snapshot()
	snap["queued_jobs"] = len(p.jobs)
	return snap
}

// StartMetricsReporting emits periodic progress logs until Close.
func (p *Pipeline) StartMetricsReporting(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				metrics := p.GetMetrics()
				slog.Info("pipeline progress",
					slog.Int64("processed", metrics["processed_jobs"].(int64)),
					slog.Int64("failed", metrics["failed_jobs"].(int64)),
					slog.Int("queued", metrics["queued_jobs"].(int)),
				)
			case <-p.shutdown:
				return
			}
		}
	}()
}

func (p *Pipeline) worker() {
	defer p.wg.Done()

	for t := range p.jobs {
		if err := t.ctx.Err(); err != nil {
			p.metrics.addFailure(t.name)
			t.done <- err
			continue
		}

		start := time.Now()
		err := p.run(t)
		elapsed := time.Since(start)
		if err != nil {
			p.metrics.addFailure(t.name)
			slog.Debug("pipeline job failed",
				slog.String("job", t.name),
				slog.Duration("elapsed", elapsed),
				slog.Any("error", err),
			)
		} else {
			p.metrics.incrementProcessed()
			slog.Debug("pipeline job done", slog.String("job", t.name), slog.Duration("elapsed", elapsed))
		}
		t.done <- err
	}
}

func (p *Pipeline) run(t *task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", t.name, r)
		}
	}()
	return t.fn(t.ctx)
}

func (p *Pipeline) enqueue(t *task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrPipelineClosed
		}
	}()

	select {
	case <-p.shutdown:
		return ErrPipelineClosed
	case <-t.ctx.Done():
		return t.ctx.Err()
	case p.jobs <- t:
		return nil
	}
}

func (p *Pipeline) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Pipeline) signalShutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
}

type metrics struct {
	mu        sync.Mutex
	processed int64
	failed    int64
	failures  map[string]int
}

func newMetrics() metrics {
	return metrics{
		failures: make(map[string]int),
	}
}

func (m *metrics) incrementProcessed() {
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
}

func (m *metrics) addFailure(job string) {
	m.mu.Lock()
	m.failed++
	m.failures[job]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyFailures := make(map[string]int, len(m.failures))
	for k, v := range m.failures {
		copyFailures[k] = v
	}

	return map[string]interface{}{
		"processed_jobs": m.processed,
		"failed_jobs":    m.failed,
		"failures":       copyFailures,
	}
}

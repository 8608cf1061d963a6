// Package dispatch runs extraction jobs on a bounded worker pool.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/spherical/pdf-tables/internal/domain"
	"github.com/spherical/pdf-tables/internal/observability"
)

var (
	// ErrQueueFull is returned when a reservation does not fit in the pool.
	ErrQueueFull = domain.CapacityError("extraction queue is full", nil)
	// ErrShuttingDown is returned once Shutdown has been called.
	ErrShuttingDown = domain.CapacityError("dispatcher is shutting down", nil)
	// ErrReservationExhausted is returned when submitting more jobs than were reserved.
	ErrReservationExhausted = errors.New("reservation exhausted")
)

// Dispatcher feeds jobs to a fixed number of workers through a buffered queue.
// Every job holds one slot from reservation until its worker finishes it,
// so accepted work never blocks the submitter.
type Dispatcher struct {
	runner  domain.Runner
	logger  *observability.Logger
	workers int
	queue   int
	timeout time.Duration

	sem   *semaphore.Weighted
	held  atomic.Int64
	ch    chan domain.Job
	wg    sync.WaitGroup
	once  sync.Once
	ctx   context.Context
	abort context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithWorkers sets the number of concurrent extractions
func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithQueueSize sets how many accepted jobs may wait for a worker
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n >= 0 {
			d.queue = n
		}
	}
}

// WithJobTimeout bounds each extraction; zero means no limit
func WithJobTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t >= 0 {
			d.timeout = t
		}
	}
}

// WithLogger sets the dispatcher logger
func WithLogger(l *observability.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l.WithComponent("dispatch")
		}
	}
}

// New creates a dispatcher and starts its workers.
func New(runner domain.Runner, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		runner:  runner,
		logger:  observability.NopLogger(),
		workers: 4,
		queue:   64,
	}
	for _, o := range opts {
		o(d)
	}

	capacity := d.Capacity()
	d.sem = semaphore.NewWeighted(int64(capacity))
	d.ch = make(chan domain.Job, capacity)
	d.ctx, d.abort = context.WithCancel(context.Background())

	d.start()
	return d
}

// Capacity is the number of jobs the pool accepts before applying backpressure.
func (d *Dispatcher) Capacity() int {
	return d.workers + d.queue
}

// InFlight is the number of reserved, queued and running jobs.
func (d *Dispatcher) InFlight() int {
	return int(d.held.Load())
}

func (d *Dispatcher) start() {
	d.once.Do(func() {
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go d.work(i + 1)
		}
	})
}

func (d *Dispatcher) work(workerID int) {
	defer d.wg.Done()
	d.logger.Debug().Int("worker_id", workerID).Msg("Worker started")

	for job := range d.ch {
		d.run(workerID, job)
	}

	d.logger.Debug().Int("worker_id", workerID).Msg("Worker stopped")
}

func (d *Dispatcher) run(workerID int, job domain.Job) {
	defer d.release(1)

	ctx := d.ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	d.runner.Run(ctx, job)
	d.logger.Debug().
		Int("worker_id", workerID).
		Str("job_id", job.ID).
		Dur("duration", time.Since(start)).
		Msg("Job finished")
}

func (d *Dispatcher) release(n int64) {
	d.held.Add(-n)
	d.sem.Release(n)
}

// Reserve claims n slots at once, or none. The caller submits up to n jobs
// through the reservation and must Release it when done.
func (d *Dispatcher) Reserve(n int) (*Reservation, error) {
	if n <= 0 {
		return &Reservation{d: d}, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrShuttingDown
	}
	if !d.sem.TryAcquire(int64(n)) {
		d.logger.Warn().
			Int("requested", n).
			Int("in_flight", d.InFlight()).
			Int("capacity", d.Capacity()).
			Msg("Queue full, applying backpressure")
		return nil, ErrQueueFull
	}
	d.held.Add(int64(n))
	return &Reservation{d: d, remaining: n}, nil
}

// Shutdown stops intake and waits for queued and running jobs. When ctx
// expires first, running jobs are interrupted and the remaining queue drains
// with a canceled context, so every accepted job still records a terminal status.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.ch)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); d.wg.Wait() }()

	select {
	case <-done:
		d.abort()
		d.logger.Info().Msg("Queue drained, shutdown complete")
		return nil
	case <-ctx.Done():
		d.abort()
		d.logger.Warn().Int("in_flight", d.InFlight()).Msg("Shutdown deadline reached, interrupting jobs")
		<-done
		return ctx.Err()
	}
}

// Reservation holds pool slots for a batch of jobs.
type Reservation struct {
	d         *Dispatcher
	mu        sync.Mutex
	remaining int
}

// Remaining returns the number of jobs that can still be submitted.
func (r *Reservation) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remaining
}

// Submit queues a job on a reserved slot. It never blocks.
func (r *Reservation) Submit(job domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.remaining == 0 {
		return ErrReservationExhausted
	}

	d := r.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrShuttingDown
	}

	// buffered to capacity and every queued job holds a slot, so this send cannot block
	d.ch <- job
	r.remaining--
	d.logger.Debug().Str("job_id", job.ID).Msg("Queued job for extraction")
	return nil
}

// Release returns the slots that were not used by Submit. It is safe to call more than once.
func (r *Reservation) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.remaining > 0 {
		r.d.release(int64(r.remaining))
		r.remaining = 0
	}
}

package t2i

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"t2i_backend/backends"
	"t2i_backend/logging"
)

const (
	// DefaultMaxParallel is the default in-flight window.
	DefaultMaxParallel = 4

	// DefaultLeaseTimeout bounds how long one sub-task waits for a backend.
	DefaultLeaseTimeout = 2 * time.Minute
)

// Sink turns a produced image into the reference handed back to the client.
type Sink interface {
	Persist(ctx context.Context, img backends.Image, params backends.Params) (string, error)
}

// Observer receives a summary of every finished dispatch.
type Observer interface {
	ObserveDispatch(s logging.DispatchSummary)
}

// Config tunes a Dispatcher.
type Config struct {
	// MaxParallel is the number of sub-tasks allowed in flight at once.
	MaxParallel int

	// LeaseTimeout is the per sub-task wait for a free backend.
	LeaseTimeout time.Duration

	// Observer is optional.
	Observer Observer
}

// Dispatcher schedules generation sub-tasks. It is safe for concurrent use;
// every Dispatch call has its own latch and result channel.
//
// One Dispatch composes:
//   - Normalize for the base seed and a private copy of the params
//   - a window of at most Config.MaxParallel sub-tasks, refilled whenever
//     one of them finishes
//   - backends.LeasePool.Lease per sub-task, bounded by Config.LeaseTimeout
//   - ErrorLatch, where the first failure wins
//   - ResultChannel, so sub-tasks never block while holding a lease
//   - Sink.Persist for every produced image
//
// Public API:
//   - NewDispatcher(): apply defaults and name the logger
//   - Dispatch(): lazy result sequence for one request
//   - Config(): the effective configuration
type Dispatcher struct {
	pool   backends.LeasePool
	cfg    Config
	logger *logging.Logger
}

// NewDispatcher applies defaults to cfg. A nil logger discards output.
func NewDispatcher(pool backends.LeasePool, cfg Config, logger *logging.Logger) *Dispatcher {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = DefaultMaxParallel
	}
	if cfg.LeaseTimeout <= 0 {
		cfg.LeaseTimeout = DefaultLeaseTimeout
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Dispatcher{pool: pool, cfg: cfg, logger: logger.Named("dispatch")}
}

// Config returns the effective configuration.
func (d *Dispatcher) Config() Config {
	return d.cfg
}

// Dispatch returns a lazy sequence of results for req. Nothing runs until
// the sequence is ranged over.
//
// The sequence yields outputs in completion order. On failure it yields one
// Result carrying Err and nothing after it. Whether the sequence runs to the
// end or the consumer stops early, every spawned sub-task has finished and
// released its lease before the range loop returns.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request, sink Sink) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		if req.Images <= 0 {
			return
		}
		r := &run{
			d:       d,
			ctx:     ctx,
			req:     Normalize(req),
			sink:    sink,
			results: NewResultChannel(),
			done:    make(chan struct{}, d.cfg.MaxParallel),
			yield:   yield,
			id:      uuid.NewString(),
		}
		r.execute()
	}
}

// run is the state of one Dispatch call.
type run struct {
	d       *Dispatcher
	ctx     context.Context
	req     Request
	sink    Sink
	latch   ErrorLatch
	results *ResultChannel
	done    chan struct{}
	yield   func(Result) bool
	id      string

	inflight  int
	spawned   int
	delivered int
	finished  bool // error yielded or consumer stopped
}

func (r *run) execute() {
	start := time.Now()
	window := r.d.cfg.MaxParallel
	ctxDone := r.ctx.Done()

	r.d.logger.Debug("dispatch started",
		zap.String("dispatch_id", r.id),
		zap.Int("images", r.req.Images),
		zap.Int64("base_seed", r.req.Params.Seed))

	for i := 0; i < r.req.Images && !r.finished; i++ {
		for r.inflight >= window {
			select {
			case <-r.done:
				r.inflight--
			case <-r.results.Ready():
				r.flush()
			case <-ctxDone:
				r.latch.Set(newError(KindCanceled, i, r.ctx.Err()))
				ctxDone = nil
			}
		}
		r.flush()

		if err := r.ctx.Err(); err != nil {
			r.latch.Set(newError(KindCanceled, i, err))
		}
		if r.latch.Load() != nil || r.finished {
			break
		}
		r.spawn(r.req.Task(i))
	}

	// join everything already spawned
	for r.inflight > 0 {
		select {
		case <-r.done:
			r.inflight--
		case <-r.results.Ready():
			r.flush()
		}
	}
	r.flush()
	r.yieldError()

	r.summarize(time.Since(start))
}

func (r *run) spawn(t Task) {
	r.inflight++
	r.spawned++
	go r.work(t)
}

// work is one sub-task. The lease is released before done is signaled.
func (r *run) work(t Task) {
	defer func() { r.done <- struct{}{} }()
	defer func() {
		if p := recover(); p != nil {
			r.fail(newError(KindGenerationFailed, t.Index, fmt.Errorf("panic: %v", p)))
		}
	}()

	waitStart := time.Now()
	lease, err := r.d.pool.Lease(r.ctx, r.d.cfg.LeaseTimeout)
	if err != nil {
		r.fail(leaseError(t.Index, err))
		return
	}
	defer lease.Release()
	r.d.logger.Debug("backend leased",
		append(logging.LeaseFields(t.Index, lease.ID(), time.Since(waitStart)), zap.String("dispatch_id", r.id))...)

	if r.latch.Load() != nil {
		return
	}

	images, err := lease.Backend().Generate(r.ctx, t.Params)
	if err != nil {
		r.fail(generationError(r.ctx, t.Index, err))
		return
	}

	for _, img := range images {
		ref, err := r.sink.Persist(r.ctx, img, t.Params)
		if err != nil {
			r.fail(newError(KindPersistenceFailed, t.Index, err))
			return
		}
		r.results.Post(Result{Image: ref, Seed: t.Params.Seed, Index: t.Index})
	}
}

func (r *run) fail(e *Error) {
	if r.latch.Set(e) {
		r.d.logger.Warn("dispatch task failed",
			zap.String("dispatch_id", r.id),
			zap.Int("task", e.Index),
			zap.String("error_kind", string(e.Kind)),
			zap.Error(e.Err))
	}
}

// flush forwards queued outputs, or the latched error in their place.
func (r *run) flush() {
	items := r.results.Drain()
	if r.finished {
		return
	}
	if r.latch.Load() != nil {
		r.yieldError()
		return
	}
	for _, item := range items {
		if !r.yield(item) {
			r.finished = true
			return
		}
		r.delivered++
	}
}

func (r *run) yieldError() {
	if r.finished {
		return
	}
	if e := r.latch.Load(); e != nil {
		r.finished = true
		r.yield(Result{Index: e.Index, Err: e})
	}
}

func (r *run) summarize(elapsed time.Duration) {
	s := logging.DispatchSummary{
		DispatchID: r.id,
		Requested:  r.req.Images,
		Spawned:    r.spawned,
		Delivered:  r.delivered,
		BaseSeed:   r.req.Params.Seed,
		Window:     r.d.cfg.MaxParallel,
		Duration:   elapsed,
	}
	if e := r.latch.Load(); e != nil {
		s.ErrorKind = string(e.Kind)
		r.d.logger.Warn("dispatch failed", logging.DispatchFields(s))
	} else {
		r.d.logger.Info("dispatch finished", logging.DispatchFields(s))
	}
	if r.d.cfg.Observer != nil {
		r.d.cfg.Observer.ObserveDispatch(s)
	}
}

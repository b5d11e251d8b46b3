package db

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"t2i_backend/logging"
)

const (
	// DefaultChannelCapacity is the default number of queued writes.
	DefaultChannelCapacity = 100

	// DefaultDrainTimeout bounds the wait for queued writes at shutdown.
	DefaultDrainTimeout = 30 * time.Second
)

// AsyncWriter runs a handler for queued items on one background goroutine,
// so callers on the request path never wait for SQLite.
type AsyncWriter[T any] struct {
	items   chan T
	handler func(T) error
	logger  *logging.Logger

	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	started bool
	dropped int64
}

// NewAsyncWriter creates a stopped writer. capacity <= 0 uses
// DefaultChannelCapacity. Handler errors are logged.
func NewAsyncWriter[T any](handler func(T) error, capacity int, logger *logging.Logger) *AsyncWriter[T] {
	if capacity <= 0 {
		capacity = DefaultChannelCapacity
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AsyncWriter[T]{
		items:   make(chan T, capacity),
		handler: handler,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the background goroutine. Extra calls are no-ops.
func (w *AsyncWriter[T]) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	w.wg.Add(1)
	go w.run()
}

func (w *AsyncWriter[T]) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			w.drain()
			return
		case item := <-w.items:
			w.handle(item)
		}
	}
}

func (w *AsyncWriter[T]) drain() {
	for {
		select {
		case item := <-w.items:
			w.handle(item)
		default:
			return
		}
	}
}

func (w *AsyncWriter[T]) handle(item T) {
	if err := w.handler(item); err != nil {
		w.logger.Warn("async write failed", zap.Error(err))
	}
}

// Write queues item without blocking. It returns false when the queue is full.
func (w *AsyncWriter[T]) Write(item T) bool {
	select {
	case w.items <- item:
		return true
	default:
		w.mu.Lock()
		w.dropped++
		w.mu.Unlock()
		return false
	}
}

// WriteWithTimeout waits up to timeout for queue space.
func (w *AsyncWriter[T]) WriteWithTimeout(item T, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case w.items <- item:
		return true
	case <-timer.C:
		w.mu.Lock()
		w.dropped++
		w.mu.Unlock()
		return false
	}
}

// Pending returns the number of queued items.
func (w *AsyncWriter[T]) Pending() int {
	return len(w.items)
}

// Dropped returns how many writes were rejected because the queue was full.
func (w *AsyncWriter[T]) Dropped() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

// Stop drains the queue and waits for the goroutine.
func (w *AsyncWriter[T]) Stop() {
	w.cancel()
	w.wg.Wait()
}

// StopWithTimeout is Stop bounded by timeout. It reports whether the drain
// finished in time.
func (w *AsyncWriter[T]) StopWithTimeout(timeout time.Duration) bool {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// NewHistoryWriter is an AsyncWriter that inserts image records through repo.
func NewHistoryWriter(repo *ImageRepository, logger *logging.Logger) *AsyncWriter[ImageRecord] {
	return NewAsyncWriter(func(rec ImageRecord) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, err := repo.Insert(ctx, rec)
		return err
	}, DefaultChannelCapacity, logger)
}

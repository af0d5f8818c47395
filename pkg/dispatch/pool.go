package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/mdus/internal/logger"
	"github.com/marmos91/mdus/internal/ratelimiter"
	"github.com/marmos91/mdus/pkg/metrics"
)

// ErrAlreadyStarted is returned by Start when the pool is already running.
var ErrAlreadyStarted = errors.New("dispatch: pool already started")

// Handler serves one claimed request to completion.
//
// Serve is called synchronously on a worker goroutine; the worker does not
// claim anything else until Serve returns. Implementations must turn every
// failure into a reply of their own - nothing is propagated back to the pool.
type Handler[T any] interface {
	Serve(ctx context.Context, req T)
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc[T any] func(ctx context.Context, req T)

// Serve calls f(ctx, req).
func (f HandlerFunc[T]) Serve(ctx context.Context, req T) {
	f(ctx, req)
}

// Config holds the pool parameters.
type Config struct {
	// Size is the number of worker goroutines. Must be >= 1.
	Size int

	// Capacity is the hand-off buffer capacity. 0 means DefaultCapacity.
	Capacity int

	// OverflowLogRate limits queue-overflow warnings to this many per second.
	// 0 logs every overflow.
	OverflowLogRate float64

	// OverflowLogBurst is the number of overflow warnings logged back to back
	// before OverflowLogRate applies.
	OverflowLogBurst int
}

// Pool hands pending requests from a single producer (the acceptor) to a
// fixed set of long-lived workers.
//
// Architecture:
//
//	acceptor ──Enqueue──▶ Buffer (LIFO, bounded) ──claim──▶ worker 1..N ──▶ Handler
//
// Synchronization uses two independent locks:
//   - the buffer lock (inside Buffer) guards the stack contents
//   - waitMu guards the quit flag and the block/wake handshake on pending
//
// The locks are only ever nested as waitMu → buffer lock: Enqueue pushes and
// a worker checks for emptiness while holding waitMu. The buffer lock is
// never held across a wait on pending.
//
// Readiness:
// Each worker announces itself exactly once, while holding waitMu and right
// before its first wait. WaitUntilReady therefore returns only once every
// worker is either parked on pending or already past its predicate check, so
// a request enqueued after it returns always finds a listener.
//
// Shutdown:
// InitiateShutdown sets quit under waitMu and broadcasts on pending. Workers
// blocked in claim wake, observe quit and exit without claiming further work.
// Workers busy in a handler finish that request first. Requests still in the
// buffer are not served; Drain hands them back to the caller for release.
// Enqueue checks quit under the same lock, so once InitiateShutdown returns
// nothing new enters the buffer and a Drain after JoinAll sees everything.
//
// Thread safety:
// Enqueue, WaitUntilReady, InitiateShutdown, JoinAll, Shutdown and Drain are
// safe for concurrent use. Start must be called once.
type Pool[T any] struct {
	size    int
	buffer  *Buffer[T]
	handler Handler[T]
	metrics metrics.DispatchMetrics

	// overflowLog throttles queue-overflow warnings under sustained overload
	overflowLog *ratelimiter.RateLimiter

	// waitMu guards quit and is the lock associated with pending
	waitMu  sync.Mutex
	pending *sync.Cond
	quit    bool

	// readyMu guards readyCount and is the lock associated with readyCond
	readyMu    sync.Mutex
	readyCond  *sync.Cond
	readyCount int

	busy atomic.Int32

	startOnce sync.Once
	started   atomic.Bool
	workers   sync.WaitGroup

	// stopped is closed once every worker has returned
	stopped chan struct{}

	// ctx is handed to every Handler.Serve call. It carries the values of the
	// Start context but is never cancelled: in-flight handlers always finish.
	ctx context.Context
}

// NewPool creates a pool in a stopped state. Call Start to launch workers.
//
// Parameters:
//   - cfg: Pool size and buffer capacity
//   - handler: Serves each claimed request (required)
//   - m: Optional metrics collector (nil for no metrics)
//
// Panics if handler is nil or cfg.Size < 1 (indicates programmer error).
func NewPool[T any](cfg Config, handler Handler[T], m metrics.DispatchMetrics) *Pool[T] {
	if handler == nil {
		panic("dispatch: handler cannot be nil")
	}
	if cfg.Size < 1 {
		panic(fmt.Sprintf("dispatch: pool size must be at least 1, got %d", cfg.Size))
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if m == nil {
		m = metrics.NewNoopDispatchMetrics()
	}

	p := &Pool[T]{
		size:        cfg.Size,
		buffer:      NewBuffer[T](cfg.Capacity),
		handler:     handler,
		metrics:     m,
		overflowLog: ratelimiter.New(cfg.OverflowLogRate, cfg.OverflowLogBurst),
		stopped:     make(chan struct{}),
		ctx:         context.Background(),
	}
	p.pending = sync.NewCond(&p.waitMu)
	p.readyCond = sync.NewCond(&p.readyMu)

	return p
}

// Start launches Size worker goroutines and returns immediately.
//
// Pair it with WaitUntilReady before exposing Enqueue to any producer.
//
// Returns ErrAlreadyStarted if called more than once.
func (p *Pool[T]) Start(ctx context.Context) error {
	err := ErrAlreadyStarted
	p.startOnce.Do(func() {
		err = nil
		p.ctx = context.WithoutCancel(ctx)
		p.started.Store(true)

		p.workers.Add(p.size)
		for i := 0; i < p.size; i++ {
			go p.worker(i)
		}

		go func() {
			p.workers.Wait()
			close(p.stopped)
		}()
	})
	return err
}

// Enqueue offers req to the workers.
//
// The request is pushed on top of the buffer and exactly one waiting worker
// is signalled. Enqueue never blocks on a full buffer.
//
// Returns false if the buffer is full or shutdown has been initiated. The
// request was not retained and the caller owns the job of telling the client.
func (p *Pool[T]) Enqueue(req T) bool {
	p.waitMu.Lock()
	if p.quit {
		p.waitMu.Unlock()
		p.metrics.RecordRejected()
		logger.Debug("new request during shutdown, rejecting")
		return false
	}
	position, ok := p.buffer.Push(req)
	if ok {
		p.pending.Signal()
	}
	p.waitMu.Unlock()

	if !ok {
		p.metrics.RecordRejected()
		if allowed, suppressed := p.overflowLog.Allow(); allowed {
			if suppressed > 0 {
				logger.Warn("new request, but cannot respond due to queue overflow (%d similar warnings suppressed)", suppressed)
			} else {
				logger.Warn("new request, but cannot respond due to queue overflow")
			}
		}
		return false
	}

	logger.Debug("new request, adding to queue at position %d", position)
	p.metrics.RecordEnqueued()
	p.metrics.SetQueueDepth(position + 1)

	return true
}

// WaitUntilReady blocks until every worker has announced readiness.
//
// It must be called after Start. The wait is a predicate loop on readyCond;
// each worker announcement broadcasts, so there is no polling delay between
// the last announcement and the return.
func (p *Pool[T]) WaitUntilReady() {
	p.readyMu.Lock()
	defer p.readyMu.Unlock()

	for p.readyCount < p.size {
		logger.Debug("%d/%d threads ready", p.readyCount, p.size)
		p.readyCond.Wait()
	}
	logger.Debug("%d/%d threads ready", p.readyCount, p.size)
}

// InitiateShutdown asks every worker to exit.
//
// Idle workers wake immediately; busy workers exit after their current
// request. Safe to call multiple times.
func (p *Pool[T]) InitiateShutdown() {
	p.waitMu.Lock()
	p.quit = true
	p.pending.Broadcast()
	p.waitMu.Unlock()
}

// ShuttingDown reports whether InitiateShutdown has been called.
func (p *Pool[T]) ShuttingDown() bool {
	p.waitMu.Lock()
	defer p.waitMu.Unlock()
	return p.quit
}

// JoinAll blocks until every worker has exited.
//
// Calling JoinAll on a pool that was never started returns immediately.
func (p *Pool[T]) JoinAll() {
	if !p.started.Load() {
		return
	}
	<-p.stopped
}

// Shutdown initiates shutdown and waits for the workers to exit.
//
// Returns ctx.Err() if ctx is done before every worker has returned. The
// workers keep exiting in the background in that case.
func (p *Pool[T]) Shutdown(ctx context.Context) error {
	p.InitiateShutdown()

	if !p.started.Load() {
		return nil
	}

	select {
	case <-p.stopped:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatch: %d worker(s) still busy: %w", p.Busy(), ctx.Err())
	}
}

// Drain removes every request still waiting in the buffer and returns them,
// most recent first.
func (p *Pool[T]) Drain() []T {
	items := p.buffer.Drain()
	p.metrics.SetQueueDepth(0)
	return items
}

// Size returns the configured number of workers.
func (p *Pool[T]) Size() int {
	return p.size
}

// Capacity returns the hand-off buffer capacity.
func (p *Pool[T]) Capacity() int {
	return p.buffer.Cap()
}

// Pending returns the number of requests waiting in the buffer.
func (p *Pool[T]) Pending() int {
	return p.buffer.Len()
}

// Ready returns the number of workers that have announced readiness.
func (p *Pool[T]) Ready() int {
	p.readyMu.Lock()
	defer p.readyMu.Unlock()
	return p.readyCount
}

// Busy returns the number of workers currently inside Handler.Serve.
func (p *Pool[T]) Busy() int {
	return int(p.busy.Load())
}

// worker is the body of each worker goroutine.
func (p *Pool[T]) worker(id int) {
	defer p.workers.Done()

	announced := false
	for {
		req, ok := p.claim(&announced)
		if !ok {
			break
		}
		logger.Debug("worker %d will handle a request", id)
		p.serve(req)
	}

	logger.Debug("worker %d will terminate", id)
}

// claim blocks until a request is available or shutdown is requested.
//
// The first call on each worker announces readiness while holding waitMu,
// so the announcement and the first predicate check are atomic with respect
// to Enqueue's signal.
//
// Returns ok=false when the worker must exit.
func (p *Pool[T]) claim(announced *bool) (req T, ok bool) {
	for {
		p.waitMu.Lock()
		if !*announced {
			*announced = true
			p.announceReady()
		}
		for !p.quit && p.buffer.Len() == 0 {
			p.pending.Wait()
		}
		quit := p.quit
		p.waitMu.Unlock()

		if quit {
			return req, false
		}

		// The pop happens under the buffer lock only. Another worker woken
		// for the same item may have taken it already, in which case we go
		// back to waiting.
		if req, ok = p.buffer.Pop(); ok {
			p.metrics.SetQueueDepth(p.buffer.Len())
			return req, true
		}
	}
}

// announceReady bumps the ready counter and wakes the barrier waiter.
func (p *Pool[T]) announceReady() {
	p.readyMu.Lock()
	p.readyCount++
	count := p.readyCount
	p.readyCond.Broadcast()
	p.readyMu.Unlock()

	p.metrics.SetWorkersReady(count)
}

// serve runs the handler for one request. A panicking handler is logged and
// contained so that the worker survives.
func (p *Pool[T]) serve(req T) {
	p.metrics.SetWorkersBusy(int(p.busy.Add(1)))
	defer func() {
		p.metrics.SetWorkersBusy(int(p.busy.Add(-1)))
		if r := recover(); r != nil {
			logger.Error("request handler panicked: %v\n%s", r, debug.Stack())
		}
	}()

	start := time.Now()
	p.handler.Serve(p.ctx, req)
	logger.Debug("request served in %v", time.Since(start))
}

package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"
)

// Handler processes one item.
type Handler[T any] func(ctx context.Context, item T) error

// KeyFunc identifies an item for deduplication and IsProcessing.
type KeyFunc[T any] func(item T) string

// Stats is a point-in-time view of the queue.
type Stats struct {
	Pending   int
	Running   int
	Completed int
	Failed    int
}

type options struct {
	logger *slog.Logger
}

// Option configures a Queue.
type Option func(*options)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

type entry[T any] struct {
	key  string
	item T
}

// Queue runs a handler over enqueued items in FIFO order with at most
// maxConcurrent handlers in flight.
type Queue[T any] struct {
	key           KeyFunc[T]
	handler       Handler[T]
	maxConcurrent int
	pool          *ants.Pool
	ctx           context.Context
	cancel        context.CancelFunc
	logger        *slog.Logger

	mu        sync.Mutex
	pending   []entry[T]
	queued    map[string]struct{}
	running   map[string]struct{}
	workers   int
	draining  bool
	released  bool
	idle      chan struct{}
	completed int
	failed    int
}

// New creates a queue. maxConcurrent values below 1 are treated as 1.
func New[T any](key KeyFunc[T], handler Handler[T], maxConcurrent int, opts ...Option) (*Queue[T], error) {
	if key == nil || handler == nil {
		return nil, errors.New("queue: key and handler are required")
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger.With("component", "queue")

	pool, err := ants.NewPool(maxConcurrent,
		ants.WithLogger(antsLogger{logger}),
		ants.WithPanicHandler(func(p any) {
			logger.Error("worker panic", "panic", p)
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create worker pool")
	}

	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)

	return &Queue[T]{
		key:           key,
		handler:       handler,
		maxConcurrent: maxConcurrent,
		pool:          pool,
		ctx:           ctx,
		cancel:        cancel,
		logger:        logger,
		queued:        make(map[string]struct{}),
		running:       make(map[string]struct{}),
		idle:          idle,
	}, nil
}

// Enqueue appends item to the tail and starts it immediately when a slot
// is free.
func (q *Queue[T]) Enqueue(item T) error {
	k := q.key(item)

	q.mu.Lock()
	switch {
	case q.released:
		q.mu.Unlock()
		return ErrReleased
	case q.draining:
		q.mu.Unlock()
		return ErrDraining
	}
	if _, ok := q.queued[k]; ok {
		q.mu.Unlock()
		return errors.Wrapf(ErrDuplicate, "key %s is queued", k)
	}
	if _, ok := q.running[k]; ok {
		q.mu.Unlock()
		return errors.Wrapf(ErrDuplicate, "key %s is running", k)
	}

	q.queued[k] = struct{}{}
	q.pending = append(q.pending, entry[T]{key: k, item: item})
	q.markBusyLocked()
	next, ok := q.claimLocked()
	q.mu.Unlock()

	if ok {
		return q.submit(next)
	}
	return nil
}

// Size returns the number of items waiting to start.
func (q *Queue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Running returns the number of handlers in flight.
func (q *Queue[T]) Running() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.running)
}

// IsProcessing reports whether an item with item's key is running.
func (q *Queue[T]) IsProcessing(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.running[q.key(item)]
	return ok
}

// IsQueued reports whether an item with item's key is waiting or running.
func (q *Queue[T]) IsQueued(item T) bool {
	k := q.key(item)
	q.mu.Lock()
	defer q.mu.Unlock()
	_, waiting := q.queued[k]
	_, running := q.running[k]
	return waiting || running
}

// Stats returns counters for the queue's lifetime.
func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Pending:   len(q.pending),
		Running:   len(q.running),
		Completed: q.completed,
		Failed:    q.failed,
	}
}

// Clear discards every item that has not started and returns how many were
// dropped. Running handlers are unaffected.
func (q *Queue[T]) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.pending)
	for _, e := range q.pending {
		delete(q.queued, e.key)
	}
	q.pending = nil
	q.signalIdleLocked()
	if n > 0 {
		q.logger.Debug("cleared pending items", "count", n)
	}
	return n
}

// Drain stops new items from starting and waits for running handlers to
// finish. Pending items stay queued until Resume.
func (q *Queue[T]) Drain(ctx context.Context) error {
	q.mu.Lock()
	q.draining = true
	q.signalIdleLocked()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resume lifts a drain and restarts pending items.
func (q *Queue[T]) Resume() error {
	q.mu.Lock()
	if q.released {
		q.mu.Unlock()
		return ErrReleased
	}
	q.draining = false
	var starts []entry[T]
	for {
		next, ok := q.claimLocked()
		if !ok {
			break
		}
		starts = append(starts, next)
	}
	if len(starts) > 0 || len(q.pending) > 0 {
		q.markBusyLocked()
	}
	q.mu.Unlock()

	for i, e := range starts {
		if err := q.submit(e); err != nil {
			q.unclaim(starts[i+1:]...)
			return err
		}
	}
	return nil
}

// Wait blocks until nothing is running and nothing is waiting to start, or
// until ctx is done. While draining, pending items do not count.
func (q *Queue[T]) Wait(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release drops pending items, cancels the context handed to running
// handlers and releases the worker pool. The queue is unusable afterwards.
func (q *Queue[T]) Release() {
	q.mu.Lock()
	if q.released {
		q.mu.Unlock()
		return
	}
	q.released = true
	q.draining = true
	for _, e := range q.pending {
		delete(q.queued, e.key)
	}
	q.pending = nil
	q.signalIdleLocked()
	q.mu.Unlock()

	q.cancel()
	q.pool.Release()
}

// Initialize satisfies the service lifecycle; the pool is ready at construction.
func (q *Queue[T]) Initialize(ctx context.Context) error {
	return nil
}

// Destroy drains running handlers and releases the queue.
func (q *Queue[T]) Destroy(ctx context.Context) error {
	err := q.Drain(ctx)
	q.Release()
	return err
}

// claimLocked pops the head of pending when a slot is free.
func (q *Queue[T]) claimLocked() (entry[T], bool) {
	if q.draining || q.released || len(q.pending) == 0 || q.workers >= q.maxConcurrent {
		return entry[T]{}, false
	}
	next := q.pending[0]
	q.pending[0] = entry[T]{}
	q.pending = q.pending[1:]
	delete(q.queued, next.key)
	q.running[next.key] = struct{}{}
	q.workers++
	return next, true
}

func (q *Queue[T]) submit(first entry[T]) error {
	err := q.pool.Submit(func() { q.work(first) })
	if err == nil {
		return nil
	}

	q.unclaim(first)
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrReleased
	}
	return errors.Wrap(err, "submit to worker pool")
}

// unclaim gives back the slots of claimed entries that never reached a
// worker. The entries are dropped.
func (q *Queue[T]) unclaim(entries ...entry[T]) {
	if len(entries) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range entries {
		delete(q.running, e.key)
		q.workers--
	}
	q.signalIdleLocked()
}

// work runs items until no pending item can be claimed. Follow-up items are
// taken inline rather than submitted so a worker never waits on its own pool.
func (q *Queue[T]) work(e entry[T]) {
	for {
		err := q.run(e)

		q.mu.Lock()
		delete(q.running, e.key)
		if err != nil {
			q.failed++
		} else {
			q.completed++
		}
		q.workers--
		next, ok := q.claimLocked()
		if !ok {
			q.signalIdleLocked()
		}
		q.mu.Unlock()

		if !ok {
			return
		}
		e = next
	}
}

func (q *Queue[T]) run(e entry[T]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("handler panic: %v", r)
			q.logger.Error("handler panicked", "key", e.key, "panic", r)
		}
	}()

	if err = q.handler(q.ctx, e.item); err != nil {
		q.logger.Warn("handler failed", "key", e.key, "err", err)
	}
	return err
}

// markBusyLocked replaces a closed idle channel with an open one.
func (q *Queue[T]) markBusyLocked() {
	select {
	case <-q.idle:
		q.idle = make(chan struct{})
	default:
	}
}

// signalIdleLocked closes the idle channel once nothing can make progress.
func (q *Queue[T]) signalIdleLocked() {
	if q.workers > 0 {
		return
	}
	if len(q.pending) > 0 && !q.draining {
		return
	}
	select {
	case <-q.idle:
	default:
		close(q.idle)
	}
}

// antsLogger adapts slog to the ants.Logger interface.
type antsLogger struct {
	logger *slog.Logger
}

func (l antsLogger) Printf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

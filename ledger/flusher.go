package ledger

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// flusher is a coalescing write buffer. Any number of schedule calls inside
// the delay window produce one save; each call pushes the deadline out, up
// to maxDelay after the first unsaved change.
type flusher struct {
	delay    time.Duration
	maxDelay time.Duration
	save     func(ctx context.Context) error
	logger   *slog.Logger

	mu         sync.Mutex
	timer      *time.Timer
	dirty      bool
	dirtySince time.Time
	stopped    bool

	saveMu sync.Mutex
}

func newFlusher(delay, maxDelay time.Duration, save func(ctx context.Context) error, logger *slog.Logger) *flusher {
	return &flusher{delay: delay, maxDelay: maxDelay, save: save, logger: logger}
}

// schedule marks the buffer dirty and arms or extends the timer.
func (f *flusher) schedule() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		f.dirty = true
		return
	}

	now := time.Now()
	if !f.dirty {
		f.dirty = true
		f.dirtySince = now
	}

	wait := f.delay
	if f.maxDelay > 0 {
		if remaining := f.maxDelay - now.Sub(f.dirtySince); remaining < wait {
			wait = max(remaining, 0)
		}
	}
	if f.timer == nil {
		f.timer = time.AfterFunc(wait, f.fire)
		return
	}
	f.timer.Reset(wait)
}

// fire runs on the timer goroutine. A failed save is logged and retried on
// the next debounce cycle.
func (f *flusher) fire() {
	if err := f.flush(context.Background()); err != nil {
		f.logger.Error("ledger save failed, will retry", "err", err)
		f.mu.Lock()
		stopped := f.stopped
		f.mu.Unlock()
		if !stopped {
			f.schedule()
		}
	}
}

// flush saves immediately if there are unsaved changes.
func (f *flusher) flush(ctx context.Context) error {
	f.mu.Lock()
	if !f.dirty {
		f.mu.Unlock()
		return nil
	}
	f.dirty = false
	if f.timer != nil {
		f.timer.Stop()
	}
	f.mu.Unlock()

	f.saveMu.Lock()
	err := f.save(ctx)
	f.saveMu.Unlock()

	if err != nil {
		f.mu.Lock()
		if !f.dirty {
			f.dirty = true
			f.dirtySince = time.Now()
		}
		f.mu.Unlock()
	}
	return err
}

// stop disarms the timer. Later schedule calls only mark the buffer dirty.
func (f *flusher) stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	if f.timer != nil {
		f.timer.Stop()
	}
}

func (f *flusher) pending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirty
}

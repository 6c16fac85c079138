package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"

	"ulogme/entity"
	"ulogme/logicalday"
)

type KeyOptions struct {
	// Window is the aggregation window, 9s when zero.
	Window       time.Duration
	BoundaryHour int
	Location     *time.Location

	Clock  quartz.Clock
	Logger slog.Logger
}

// FlushError reports a failed write. The keystrokes it carries were put
// back into the counter and are written by a later flush.
type FlushError struct {
	Count int64
	Err   error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("flush %d keystrokes (kept for retry): %v", e.Count, e.Err)
}

func (e *FlushError) Unwrap() error { return e.Err }

// KeyCounter aggregates key presses into one count per window.
// RecordKeypress may be called from any goroutine.
type KeyCounter struct {
	opts  KeyOptions
	store KeyEventWriter

	mu          sync.Mutex
	pending     int64
	windowStart time.Time
}

func NewKeyCounter(store KeyEventWriter, opts KeyOptions) *KeyCounter {
	if opts.Window <= 0 {
		opts.Window = 9 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &KeyCounter{
		opts:        opts,
		store:       store,
		windowStart: opts.Clock.Now("keys", "start"),
	}
}

func (k *KeyCounter) RecordKeypress() {
	k.mu.Lock()
	k.pending++
	k.mu.Unlock()
}

// Pending returns the keystrokes counted but not yet written.
func (k *KeyCounter) Pending() int64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.pending
}

// Poll writes the pending count once the aggregation window has elapsed.
func (k *KeyCounter) Poll(ctx context.Context) error {
	return k.flush(ctx, false)
}

// Flush writes the pending count regardless of the window.
func (k *KeyCounter) Flush(ctx context.Context) error {
	return k.flush(ctx, true)
}

func (k *KeyCounter) flush(ctx context.Context, force bool) error {
	now := k.opts.Clock.Now("keys", "flush")

	k.mu.Lock()
	if !force && now.Sub(k.windowStart) < k.opts.Window {
		k.mu.Unlock()
		return nil
	}
	n := k.pending
	start := k.windowStart
	k.pending = 0
	k.windowStart = now
	k.mu.Unlock()

	if n == 0 {
		return nil
	}

	ev := entity.KeyEvent{
		Timestamp:   now,
		KeyCount:    n,
		LogicalDate: logicalday.Resolve(now.In(k.opts.Location), k.opts.BoundaryHour),
	}
	if err := k.store.InsertKeyEvent(ctx, ev); err != nil {
		k.mu.Lock()
		k.pending += n
		k.windowStart = start
		k.mu.Unlock()
		return &FlushError{Count: n, Err: err}
	}
	k.opts.Logger.Debug(ctx, "keystrokes flushed", slog.F("count", n))
	return nil
}

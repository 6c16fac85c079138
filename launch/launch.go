// Package launch runs the daemon loop: one ticker drives both trackers and
// OS notifications are funnelled into the same goroutine through a buffered
// channel.
package launch

import (
	"context"
	"sync"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
	"golang.org/x/xerrors"

	"ulogme/entity"
)

const (
	DefaultInterval    = 2 * time.Second
	DefaultEventBuffer = 64
	// shutdownTimeout bounds the final keystroke flush.
	shutdownTimeout = 5 * time.Second
)

// Event is an OS notification handed to the daemon.
type Event interface {
	event()
}

// Focus reports that App became the frontmost application.
type Focus struct {
	App string
}

// Locked reports that the screen was locked.
type Locked struct{}

func (Focus) event()  {}
func (Locked) event() {}

type WindowPoller interface {
	SetActiveApplication(name string)
	CurrentApplication() string
	HandleLockEvent(ctx context.Context) error
	Poll(ctx context.Context) error
}

type KeyPoller interface {
	Poll(ctx context.Context) error
	Flush(ctx context.Context) error
	Pending() int64
}

type Options struct {
	Interval    time.Duration
	EventBuffer int
	Clock       quartz.Clock
	Logger      slog.Logger
}

// Status is a snapshot of the daemon for the tray and the CLI.
type Status struct {
	Running     bool
	Ticks       int64
	LastTick    time.Time
	Errors      int64
	LastError   string
	CurrentApp  string
	PendingKeys int64
}

type Daemon struct {
	opts   Options
	window WindowPoller
	keys   KeyPoller

	events chan Event
	done   chan struct{}
	once   sync.Once

	mu     sync.Mutex
	status Status
}

// New builds a daemon. keys may be nil when keystroke tracking is disabled.
func New(window WindowPoller, keys KeyPoller, opts Options) *Daemon {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultEventBuffer
	}
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	return &Daemon{
		opts:   opts,
		window: window,
		keys:   keys,
		events: make(chan Event, opts.EventBuffer),
		done:   make(chan struct{}),
	}
}

// FocusChanged may be called from any goroutine.
func (d *Daemon) FocusChanged(app string) {
	d.send(Focus{App: app})
}

// ScreenLocked may be called from any goroutine.
func (d *Daemon) ScreenLocked() {
	d.send(Locked{})
}

func (d *Daemon) send(ev Event) {
	select {
	case d.events <- ev:
	case <-d.done:
	}
}

func (d *Daemon) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.status
	if d.keys != nil {
		s.PendingKeys = d.keys.Pending()
	}
	return s
}

// Run blocks until ctx is canceled. Before returning it applies the events
// still queued and force-flushes the keystroke counter; the error reports a
// failed final flush. Run may only be called once.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.once.Do(func() { close(d.done) })

	ticker := d.opts.Clock.NewTicker(d.opts.Interval, "daemon", "poll")
	defer ticker.Stop()

	d.setRunning(true)
	defer d.setRunning(false)
	d.opts.Logger.Info(ctx, "daemon started", slog.F("interval", d.opts.Interval))

	for {
		select {
		case <-ctx.Done():
			return d.shutdown(ctx)
		case ev := <-d.events:
			d.handle(ctx, ev)
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

func (d *Daemon) tick(ctx context.Context) {
	// Notifications that arrived before the tick are applied first so the
	// poll sees the newest state.
	d.drain(ctx)

	if err := d.window.Poll(ctx); err != nil {
		d.fail(ctx, "poll window", err)
	}
	if d.keys != nil {
		if err := d.keys.Poll(ctx); err != nil {
			d.fail(ctx, "poll keystrokes", err)
		}
	}

	now := d.opts.Clock.Now("daemon", "tick")
	d.mu.Lock()
	d.status.Ticks++
	d.status.LastTick = now
	d.status.CurrentApp = d.window.CurrentApplication()
	d.mu.Unlock()
}

func (d *Daemon) drain(ctx context.Context) {
	for {
		select {
		case ev := <-d.events:
			d.handle(ctx, ev)
		default:
			return
		}
	}
}

func (d *Daemon) handle(ctx context.Context, ev Event) {
	switch ev := ev.(type) {
	case Focus:
		d.window.SetActiveApplication(ev.App)
		d.opts.Logger.Debug(ctx, "focus changed", slog.F("app", d.window.CurrentApplication()))
	case Locked:
		if err := d.window.HandleLockEvent(ctx); err != nil {
			d.fail(ctx, "log screen lock", err)
		}
	}
	d.mu.Lock()
	d.status.CurrentApp = d.window.CurrentApplication()
	d.mu.Unlock()
}

func (d *Daemon) shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	d.drain(ctx)
	if d.keys == nil {
		return nil
	}
	if err := d.keys.Flush(ctx); err != nil {
		d.fail(ctx, "final keystroke flush", err)
		return xerrors.Errorf("final keystroke flush: %w", err)
	}
	d.opts.Logger.Info(ctx, "daemon stopped")
	return nil
}

func (d *Daemon) fail(ctx context.Context, what string, err error) {
	d.opts.Logger.Error(ctx, what+" failed", slog.Error(err))
	d.mu.Lock()
	d.status.Errors++
	d.status.LastError = err.Error()
	d.mu.Unlock()
}

func (d *Daemon) setRunning(running bool) {
	d.mu.Lock()
	d.status.Running = running
	d.mu.Unlock()
}

// DisplayApp renders an application name for people, spelling out the
// locked-screen sentinel.
func DisplayApp(app string) string {
	switch app {
	case "":
		return "nothing yet"
	case entity.LockedScreen:
		return "screen locked"
	}
	return app
}

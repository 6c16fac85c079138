package platform

import (
	"context"
	"strconv"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
	"golang.org/x/xerrors"
)

// loginWindow is the frontmost process on macOS while the screen is locked.
const loginWindow = "loginwindow"

// FocusSink receives focus notifications. launch.Daemon implements it.
type FocusSink interface {
	FocusChanged(app string)
	ScreenLocked()
}

// FrontAppWatcher polls the frontmost application and reports changes.
type FrontAppWatcher struct {
	OS       OS
	Run      Runner
	Interval time.Duration
	Clock    quartz.Clock
	Logger   slog.Logger
	// ProcessName resolves a pid on linux; defaults to gopsutil.
	ProcessName func(ctx context.Context, pid int32) (string, error)

	last string
}

// FrontApp returns the name of the frontmost application.
func (w *FrontAppWatcher) FrontApp(ctx context.Context) (string, error) {
	switch w.OS {
	case Darwin:
		return osascript(ctx, w.Run,
			`tell application "System Events" to get name of first application process whose frontmost is true`)
	case Linux:
		out, err := w.Run(ctx, "xdotool", "getactivewindow", "getwindowpid")
		if err != nil {
			return "", err
		}
		pid, err := strconv.ParseInt(trimLine(out), 10, 32)
		if err != nil {
			return "", xerrors.Errorf("parse window pid: %w", err)
		}
		name := w.ProcessName
		if name == nil {
			name = ProcessName
		}
		return name(ctx, int32(pid))
	default:
		return "", unavailable(w.OS)
	}
}

// Check queries the frontmost application once and notifies sink when it
// changed since the previous check.
func (w *FrontAppWatcher) Check(ctx context.Context, sink FocusSink) {
	app, err := w.FrontApp(ctx)
	if err != nil {
		w.Logger.Debug(ctx, "front application unavailable", slog.Error(err))
		return
	}
	if app == "" || app == w.last {
		return
	}
	w.last = app
	if app == loginWindow {
		sink.ScreenLocked()
		return
	}
	sink.FocusChanged(app)
}

// Watch checks the frontmost application every Interval until ctx is
// canceled.
func (w *FrontAppWatcher) Watch(ctx context.Context, sink FocusSink) error {
	if w.Clock == nil {
		w.Clock = quartz.NewReal()
	}
	if w.Interval <= 0 {
		w.Interval = time.Second
	}
	w.Check(ctx, sink)
	waiter := w.Clock.TickerFunc(ctx, w.Interval, func() error {
		w.Check(ctx, sink)
		return nil
	}, "platform", "frontapp")
	err := waiter.Wait()
	if xerrors.Is(err, context.Canceled) || xerrors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

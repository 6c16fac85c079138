package tracker

import (
	"context"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
	"golang.org/x/xerrors"

	"ulogme/entity"
	"ulogme/logicalday"
)

type WindowOptions struct {
	Titles   TitleSource
	Browsers BrowserSource

	WindowTitles bool
	BrowserTabs  bool
	BrowserURLs  bool

	BoundaryHour int
	Location     *time.Location

	Clock  quartz.Clock
	Logger slog.Logger
}

// WindowTracker decides whether the current window state is a new
// observation and records it. It is owned by a single goroutine: the
// daemon loop calls every method.
type WindowTracker struct {
	opts  WindowOptions
	store WindowEventWriter

	currentApp string
	lastLogged string
}

func NewWindowTracker(store WindowEventWriter, opts WindowOptions) *WindowTracker {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &WindowTracker{opts: opts, store: store}
}

// SetActiveApplication records the newly focused application. Nothing is
// written until the next Poll.
func (w *WindowTracker) SetActiveApplication(name string) {
	w.currentApp = Sanitize(name)
}

func (w *WindowTracker) CurrentApplication() string {
	return w.currentApp
}

// HandleLockEvent switches to the locked-screen sentinel and records it
// right away.
func (w *WindowTracker) HandleLockEvent(ctx context.Context) error {
	w.currentApp = entity.LockedScreen
	return w.logCurrentWindow(ctx)
}

// Poll records the current window unless it matches the last recorded one.
func (w *WindowTracker) Poll(ctx context.Context) error {
	return w.logCurrentWindow(ctx)
}

func (w *WindowTracker) logCurrentWindow(ctx context.Context) error {
	app := w.currentApp
	if app == "" {
		return nil
	}

	var title, url string
	if app != entity.LockedScreen {
		title = w.windowTitle(ctx, app)
		if IsBrowser(app) {
			url = w.browserURL(ctx, app)
			if w.opts.BrowserTabs && url != "" {
				title = Sanitize(url)
			}
		}
	}

	signature := app
	if title != "" {
		signature = app + " :: " + title
	}
	if signature == w.lastLogged {
		return nil
	}

	now := w.opts.Clock.Now("window", "log")
	ev := entity.WindowEvent{
		Timestamp:   now,
		AppName:     app,
		WindowTitle: entity.StrPtr(title),
		BrowserURL:  entity.StrPtr(url),
		LogicalDate: logicalday.Resolve(now.In(w.opts.Location), w.opts.BoundaryHour),
	}
	if err := w.store.InsertWindowEvent(ctx, ev); err != nil {
		// lastLogged is left alone so the next poll writes it again
		return xerrors.Errorf("log window %q: %w", app, err)
	}
	w.lastLogged = signature
	w.opts.Logger.Debug(ctx, "window logged", slog.F("signature", signature))
	return nil
}

func (w *WindowTracker) windowTitle(ctx context.Context, app string) string {
	if !w.opts.WindowTitles || w.opts.Titles == nil {
		return ""
	}
	title, err := w.opts.Titles.WindowTitle(ctx, app)
	if err != nil {
		w.opts.Logger.Debug(ctx, "window title unavailable", slog.F("app", app), slog.Error(err))
		return ""
	}
	return Sanitize(title)
}

func (w *WindowTracker) browserURL(ctx context.Context, app string) string {
	if !w.opts.BrowserURLs || w.opts.Browsers == nil {
		return ""
	}
	url, err := w.opts.Browsers.CurrentURL(ctx, app)
	if err != nil {
		w.opts.Logger.Debug(ctx, "browser url unavailable", slog.F("app", app), slog.Error(err))
		return ""
	}
	return url
}

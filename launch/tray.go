package launch

import (
	"context"
	"fmt"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
	"github.com/dustin/go-humanize"
	"github.com/getlantern/systray"
)

const trayRefresh = 10 * time.Second

// RunTray shows a tray icon for d and blocks until the user quits or ctx
// is canceled. Quitting from the menu calls cancel. It must run on the
// main goroutine.
func RunTray(ctx context.Context, cancel context.CancelFunc, d *Daemon, clock quartz.Clock, logger slog.Logger) {
	if clock == nil {
		clock = quartz.NewReal()
	}
	onReady := func() {
		systray.SetTitle("ulogme")
		systray.SetTooltip(Tooltip(d.Status(), clock.Now("tray", "refresh")))

		mStatus := systray.AddMenuItem(DisplayApp(""), "Current application")
		mStatus.Disable()
		systray.AddSeparator()
		mQuit := systray.AddMenuItem("Quit", "Stop tracking and quit")

		go func() {
			ticker := clock.NewTicker(trayRefresh, "tray", "refresh")
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					systray.Quit()
					return
				case <-mQuit.ClickedCh:
					logger.Info(ctx, "quit requested from tray")
					cancel()
					systray.Quit()
					return
				case <-ticker.C:
					st := d.Status()
					mStatus.SetTitle(DisplayApp(st.CurrentApp))
					systray.SetTooltip(Tooltip(st, clock.Now("tray", "refresh")))
				}
			}
		}()
	}
	systray.Run(onReady, func() { cancel() })
}

// Tooltip renders a one-line daemon status.
func Tooltip(st Status, now time.Time) string {
	if !st.Running {
		return "ulogme: stopped"
	}
	last := "never"
	if !st.LastTick.IsZero() {
		last = humanize.RelTime(st.LastTick, now, "ago", "from now")
	}
	tip := fmt.Sprintf("ulogme: %s, %s keys pending, last poll %s",
		DisplayApp(st.CurrentApp), humanize.Comma(st.PendingKeys), last)
	if st.Errors > 0 {
		tip += fmt.Sprintf(" (%s errors)", humanize.Comma(st.Errors))
	}
	return tip
}

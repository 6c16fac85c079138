package platform

import (
	"context"
	"strings"

	"github.com/shirou/gopsutil/process"
	"golang.org/x/xerrors"

	"ulogme/tracker"
)

var urlScripts = map[string]string{
	"Google Chrome": `tell application "Google Chrome" to get URL of active tab of front window`,
	"Brave Browser": `tell application "Brave Browser" to get URL of active tab of front window`,
	"Brave":         `tell application "Brave" to get URL of active tab of front window`,
	"Arc":           `tell application "Arc" to get URL of active tab of front window`,
	"Safari":        `tell application "Safari" to get URL of front document`,
}

// BrowserURLs asks a running browser for the URL of its active tab.
// Firefox is recognised but has no scripting interface for it.
type BrowserURLs struct {
	OS  OS
	Run Runner
	// Running reports whether a process called name exists. Scripting a
	// browser that is not running would launch it.
	Running func(ctx context.Context, name string) (bool, error)
}

var _ tracker.BrowserSource = BrowserURLs{}

func (b BrowserURLs) CurrentURL(ctx context.Context, app string) (string, error) {
	if b.OS != Darwin {
		return "", unavailable(b.OS)
	}
	script, ok := urlScripts[app]
	if !ok {
		return "", xerrors.Errorf("no url script for %q: %w", app, tracker.ErrUnavailable)
	}

	running := b.Running
	if running == nil {
		running = ProcessRunning
	}
	ok, err := running(ctx, app)
	if err != nil {
		return "", xerrors.Errorf("look up %q process: %w", app, err)
	}
	if !ok {
		return "", xerrors.Errorf("%q is not running: %w", app, tracker.ErrUnavailable)
	}

	url, err := osascript(ctx, b.Run, script)
	if err != nil {
		return "", xerrors.Errorf("url of %q: %w", app, err)
	}
	if url == "" || url == "missing value" {
		return "", tracker.ErrUnavailable
	}
	return url, nil
}

// ProcessRunning scans the process table for name.
func ProcessRunning(ctx context.Context, name string) (bool, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return false, xerrors.Errorf("list processes: %w", err)
	}
	for _, p := range procs {
		pname, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if strings.EqualFold(pname, name) {
			return true, nil
		}
	}
	return false, nil
}

// ProcessName returns the executable name of pid.
func ProcessName(ctx context.Context, pid int32) (string, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return "", xerrors.Errorf("process %d: %w", pid, err)
	}
	name, err := p.NameWithContext(ctx)
	if err != nil {
		return "", xerrors.Errorf("name of process %d: %w", pid, err)
	}
	return name, nil
}

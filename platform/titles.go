package platform

import (
	"context"
	"fmt"

	"golang.org/x/xerrors"

	"ulogme/tracker"
)

// Titles reads the title of the frontmost window.
type Titles struct {
	OS  OS
	Run Runner
}

var _ tracker.TitleSource = Titles{}

func (t Titles) WindowTitle(ctx context.Context, app string) (string, error) {
	var (
		title string
		err   error
	)
	switch t.OS {
	case Darwin:
		title, err = osascript(ctx, t.Run, fmt.Sprintf(
			`tell application "System Events" to tell (first process whose name is "%s") to get name of front window`,
			quote(app)))
	case Linux:
		var out []byte
		out, err = t.Run(ctx, "xdotool", "getactivewindow", "getwindowname")
		title = trimLine(out)
	default:
		return "", unavailable(t.OS)
	}
	if err != nil {
		return "", xerrors.Errorf("window title of %q: %w", app, err)
	}
	if title == "" || title == "missing value" {
		return "", tracker.ErrUnavailable
	}
	return title, nil
}

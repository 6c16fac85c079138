// Package tracker turns raw desktop signals into persisted activity rows.
//
// The WindowTracker records the frontmost application whenever it differs
// from the last recorded observation. The KeyCounter sums key presses and
// writes one count per aggregation window. Neither ever learns which keys
// were pressed.
package tracker

import (
	"context"
	"strings"
	"unicode/utf8"

	"golang.org/x/xerrors"

	"ulogme/entity"
)

// ErrUnavailable is returned by sources that cannot answer right now
// (permission denied, application not running, unsupported platform).
var ErrUnavailable = xerrors.New("source unavailable")

// TitleSource looks up the title of the frontmost window owned by app.
type TitleSource interface {
	WindowTitle(ctx context.Context, app string) (string, error)
}

// BrowserSource looks up the URL of the active tab of browser app.
type BrowserSource interface {
	CurrentURL(ctx context.Context, app string) (string, error)
}

type WindowEventWriter interface {
	InsertWindowEvent(ctx context.Context, ev entity.WindowEvent) error
}

type KeyEventWriter interface {
	InsertKeyEvent(ctx context.Context, ev entity.KeyEvent) error
}

var browsers = map[string]struct{}{
	"Google Chrome": {},
	"Safari":        {},
	"Arc":           {},
	"Firefox":       {},
	"Brave Browser": {},
	"Brave":         {},
}

// IsBrowser reports whether app is a browser whose tab URL may be looked up.
func IsBrowser(app string) bool {
	_, ok := browsers[app]
	return ok
}

// Sanitize replaces non-ASCII runes with spaces, drops control characters
// and trims the result.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= utf8.RuneSelf:
			b.WriteByte(' ')
		case r < 0x20 || r == 0x7f:
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

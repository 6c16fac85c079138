// Package seed fills a store with plausible sample activity so the reports
// and the web UI can be exercised without running the daemon.
package seed

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"golang.org/x/xerrors"

	"ulogme/entity"
	"ulogme/logicalday"
)

type Store interface {
	InsertWindowEvent(ctx context.Context, ev entity.WindowEvent) error
	InsertKeyEvent(ctx context.Context, ev entity.KeyEvent) error
	InsertNote(ctx context.Context, n entity.Note) error
	SaveBlog(ctx context.Context, b entity.BlogEntry) error
}

var windows = []struct {
	app, title string
}{
	{"Code", "window.go - ulogme"},
	{"Code", "keyboard.go - ulogme"},
	{"Code", "launch.go - ulogme"},
	{"Google Chrome", "https://github.com/karpathy/ulogme"},
	{"Google Chrome", "https://pkg.go.dev/github.com/jmoiron/sqlx"},
	{"Google Chrome", "https://sqlite.org/lang_upsert.html"},
	{"Terminal", "zsh"},
	{"iTerm2", "go test ./..."},
	{"Slack", "DM with teammate"},
	{"Slack", "#engineering channel"},
	{"Finder", "~/code/ulogme"},
	{"Safari", "https://news.ycombinator.com"},
	{"Notes", "Ideas for project"},
	{entity.LockedScreen, ""},
}

type Options struct {
	Days int
	// Today is the most recent logical day generated.
	Today    logicalday.Date
	Location *time.Location
	// Seed makes the output reproducible.
	Seed uint64
}

// Stats counts what Generate wrote.
type Stats struct {
	Days         int
	WindowEvents int
	KeyEvents    int
	Keystrokes   int64
	Notes        int
}

// Generate writes Days logical days of activity ending at Today: window
// events between 07:00 and 23:00, a keystroke count every 9 seconds, two
// notes and a blog entry per day.
func Generate(ctx context.Context, store Store, opts Options) (Stats, error) {
	if opts.Days <= 0 {
		return Stats{}, xerrors.Errorf("days must be positive, got %d", opts.Days)
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	var stats Stats
	for offset := 0; offset < opts.Days; offset++ {
		day := opts.Today.AddDays(-offset)
		if err := generateDay(ctx, store, rng, day, offset, opts.Location, &stats); err != nil {
			return stats, xerrors.Errorf("seed %s: %w", day, err)
		}
		stats.Days++
	}
	return stats, nil
}

func generateDay(ctx context.Context, store Store, rng *rand.Rand, day logicalday.Date, offset int, loc *time.Location, stats *Stats) error {
	midnight := day.In(loc)
	begin := midnight.Add(7 * time.Hour)
	end := midnight.Add(23 * time.Hour)

	for ts := begin; ts.Before(end); ts = ts.Add(time.Duration(30+rng.IntN(571)) * time.Second) {
		w := windows[rng.IntN(len(windows))]
		ev := entity.WindowEvent{
			Timestamp:   ts,
			AppName:     w.app,
			WindowTitle: entity.StrPtr(w.title),
			LogicalDate: day,
		}
		if w.app == "Google Chrome" || w.app == "Safari" {
			ev.BrowserURL = entity.StrPtr(w.title)
		}
		if err := store.InsertWindowEvent(ctx, ev); err != nil {
			return err
		}
		stats.WindowEvents++
	}

	for ts := begin; ts.Before(end); ts = ts.Add(9 * time.Second) {
		n := keystrokes(rng, ts.Hour())
		if n == 0 {
			continue
		}
		if err := store.InsertKeyEvent(ctx, entity.KeyEvent{Timestamp: ts, KeyCount: n, LogicalDate: day}); err != nil {
			return err
		}
		stats.KeyEvents++
		stats.Keystrokes += n
	}

	for _, n := range []struct {
		at      time.Duration
		content string
	}{
		{10*time.Hour + 30*time.Minute, "Started work on the rewrite"},
		{12 * time.Hour, "Lunch break"},
	} {
		if err := store.InsertNote(ctx, entity.Note{Timestamp: midnight.Add(n.at), Content: n.content, LogicalDate: day}); err != nil {
			return err
		}
		stats.Notes++
	}

	return store.SaveBlog(ctx, entity.BlogEntry{
		LogicalDate: day,
		Content:     fmt.Sprintf("Day %d of working on the ulogme rewrite. Made good progress on the tracker daemon.", offset+1),
	})
}

// keystrokes follows a working day: busy mornings and afternoons, quieter
// around lunch and in the evening.
func keystrokes(rng *rand.Rand, hour int) int64 {
	switch {
	case (hour >= 9 && hour <= 12) || (hour >= 14 && hour <= 18):
		return int64(20 + rng.IntN(61))
	case hour >= 7 && hour <= 14:
		return int64(5 + rng.IntN(26))
	default:
		return int64(rng.IntN(16))
	}
}

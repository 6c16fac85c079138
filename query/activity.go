package query

import (
	"context"
	"database/sql"

	"golang.org/x/xerrors"

	"ulogme/entity"
	"ulogme/logicalday"
)

type windowRow struct {
	Timestamp   string          `db:"timestamp"`
	AppName     string          `db:"app_name"`
	WindowTitle sql.NullString  `db:"window_title"`
	BrowserURL  sql.NullString  `db:"browser_url"`
	LogicalDate logicalday.Date `db:"logical_date"`
}

func (r windowRow) entity() (entity.WindowEvent, error) {
	ts, err := parseTimestamp(r.Timestamp)
	if err != nil {
		return entity.WindowEvent{}, err
	}
	return entity.WindowEvent{
		Timestamp:   ts,
		AppName:     r.AppName,
		WindowTitle: nullString(r.WindowTitle),
		BrowserURL:  nullString(r.BrowserURL),
		LogicalDate: r.LogicalDate,
	}, nil
}

// InsertWindowEvent upserts on (timestamp, app_name); a second observation
// of the same pair replaces title and URL.
func (db *Database) InsertWindowEvent(ctx context.Context, ev entity.WindowEvent) error {
	if ev.AppName == "" {
		return xerrors.New("InsertWindowEvent: empty app name")
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO window_events (timestamp, app_name, window_title, browser_url, logical_date)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (timestamp, app_name) DO UPDATE SET
			window_title = excluded.window_title,
			browser_url = excluded.browser_url`,
		formatTimestamp(ev.Timestamp),
		ev.AppName,
		ev.WindowTitle,
		ev.BrowserURL,
		ev.LogicalDate,
	)
	if err != nil {
		return xerrors.Errorf("InsertWindowEvent: %w", err)
	}
	return nil
}

// GetWindowEventsForDate returns the day's window events, oldest first.
func (db *Database) GetWindowEventsForDate(ctx context.Context, date logicalday.Date) ([]entity.WindowEvent, error) {
	rows := []windowRow{}
	err := db.SelectContext(ctx, &rows, `
		SELECT timestamp, app_name, window_title, browser_url, logical_date
		FROM window_events
		WHERE logical_date = ?
		ORDER BY timestamp`, date)
	if err != nil {
		return nil, xerrors.Errorf("GetWindowEventsForDate: %w", err)
	}
	events := make([]entity.WindowEvent, 0, len(rows))
	for _, r := range rows {
		ev, err := r.entity()
		if err != nil {
			return nil, xerrors.Errorf("GetWindowEventsForDate: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// GetLastWindowEvent returns the most recent window event across all days.
func (db *Database) GetLastWindowEvent(ctx context.Context) (entity.WindowEvent, error) {
	var r windowRow
	err := db.GetContext(ctx, &r, `
		SELECT timestamp, app_name, window_title, browser_url, logical_date
		FROM window_events
		ORDER BY timestamp DESC
		LIMIT 1`)
	if xerrors.Is(err, sql.ErrNoRows) {
		return entity.WindowEvent{}, ErrNotFound
	}
	if err != nil {
		return entity.WindowEvent{}, xerrors.Errorf("GetLastWindowEvent: %w", err)
	}
	return r.entity()
}

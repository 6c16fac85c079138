package query

import (
	"context"

	"golang.org/x/xerrors"

	"ulogme/entity"
	"ulogme/logicalday"
)

type keyRow struct {
	Timestamp   string          `db:"timestamp"`
	KeyCount    int64           `db:"key_count"`
	LogicalDate logicalday.Date `db:"logical_date"`
}

// InsertKeyEvent upserts on timestamp. Counts landing on the same timestamp
// are added together: both flushes are real keystrokes.
func (db *Database) InsertKeyEvent(ctx context.Context, ev entity.KeyEvent) error {
	if ev.KeyCount < 0 {
		return xerrors.Errorf("InsertKeyEvent: negative count %d", ev.KeyCount)
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO key_events (timestamp, key_count, logical_date)
		VALUES (?, ?, ?)
		ON CONFLICT (timestamp) DO UPDATE SET
			key_count = key_events.key_count + excluded.key_count`,
		formatTimestamp(ev.Timestamp),
		ev.KeyCount,
		ev.LogicalDate,
	)
	if err != nil {
		return xerrors.Errorf("InsertKeyEvent: %w", err)
	}
	return nil
}

func (db *Database) GetKeyEventsForDate(ctx context.Context, date logicalday.Date) ([]entity.KeyEvent, error) {
	rows := []keyRow{}
	err := db.SelectContext(ctx, &rows, `
		SELECT timestamp, key_count, logical_date
		FROM key_events
		WHERE logical_date = ?
		ORDER BY timestamp`, date)
	if err != nil {
		return nil, xerrors.Errorf("GetKeyEventsForDate: %w", err)
	}
	events := make([]entity.KeyEvent, 0, len(rows))
	for _, r := range rows {
		ts, err := parseTimestamp(r.Timestamp)
		if err != nil {
			return nil, xerrors.Errorf("GetKeyEventsForDate: %w", err)
		}
		events = append(events, entity.KeyEvent{Timestamp: ts, KeyCount: r.KeyCount, LogicalDate: r.LogicalDate})
	}
	return events, nil
}

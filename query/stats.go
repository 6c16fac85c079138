package query

import (
	"context"
	"strings"

	"golang.org/x/xerrors"

	"ulogme/entity"
	"ulogme/logicalday"
)

// DefaultOverviewLimit bounds GetOverview when the caller passes no limit.
const DefaultOverviewLimit = 30

// GetDailySummary returns keystroke totals and per-application event counts
// for one logical day.
func (db *Database) GetDailySummary(ctx context.Context, date logicalday.Date) (entity.DailySummary, error) {
	summary := entity.DailySummary{LogicalDate: date, AppUsage: []entity.AppUsage{}}

	var keys struct {
		TotalKeys int64 `db:"total_keys"`
		KeyEvents int64 `db:"key_events"`
	}
	err := db.GetContext(ctx, &keys, `
		SELECT COALESCE(SUM(key_count), 0) AS total_keys,
		       COUNT(*) AS key_events
		FROM key_events
		WHERE logical_date = ?`, date)
	if err != nil {
		return entity.DailySummary{}, xerrors.Errorf("GetDailySummary: %w", err)
	}
	summary.TotalKeys = keys.TotalKeys
	summary.KeyEvents = keys.KeyEvents

	err = db.SelectContext(ctx, &summary.AppUsage, `
		SELECT app_name, COUNT(*) AS event_count
		FROM window_events
		WHERE logical_date = ?
		GROUP BY app_name
		ORDER BY event_count DESC, app_name`, date)
	if err != nil {
		return entity.DailySummary{}, xerrors.Errorf("GetDailySummary: %w", err)
	}
	return summary, nil
}

// GetOverview rolls up total keystrokes and distinct applications per
// logical day, most recent first. Zero from/to leave that side open.
func (db *Database) GetOverview(ctx context.Context, from, to logicalday.Date, limit int) ([]entity.DayOverview, error) {
	if limit <= 0 {
		limit = DefaultOverviewLimit
	}
	q := `
	SELECT w.logical_date AS logical_date,
	       COALESCE(
	         (SELECT SUM(k.key_count) FROM key_events k WHERE k.logical_date = w.logical_date),
	         0
	       ) AS total_keys,
	       COUNT(DISTINCT w.app_name) AS unique_apps
	FROM window_events w`

	var (
		conditions []string
		args       []any
	)
	if !from.IsZero() {
		conditions = append(conditions, "w.logical_date >= ?")
		args = append(args, from)
	}
	if !to.IsZero() {
		conditions = append(conditions, "w.logical_date <= ?")
		args = append(args, to)
	}
	if len(conditions) > 0 {
		q += "\n\tWHERE " + strings.Join(conditions, " AND ")
	}
	q += `
	GROUP BY w.logical_date
	ORDER BY w.logical_date DESC
	LIMIT ?`
	args = append(args, limit)

	rows := []entity.DayOverview{}
	if err := db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, xerrors.Errorf("GetOverview: %w", err)
	}
	return rows, nil
}

// GetAvailableDates lists every logical day holding window or key events,
// most recent first.
func (db *Database) GetAvailableDates(ctx context.Context) ([]logicalday.Date, error) {
	dates := []logicalday.Date{}
	err := db.SelectContext(ctx, &dates, `
		SELECT DISTINCT logical_date
		FROM (
		  SELECT logical_date FROM window_events
		  UNION
		  SELECT logical_date FROM key_events
		)
		ORDER BY logical_date DESC`)
	if err != nil {
		return nil, xerrors.Errorf("GetAvailableDates: %w", err)
	}
	return dates, nil
}

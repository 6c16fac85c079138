package query

import (
	"context"
	"database/sql"

	"golang.org/x/xerrors"

	"ulogme/entity"
	"ulogme/logicalday"
)

// notes and the daily blog: last write wins

func (db *Database) InsertNote(ctx context.Context, n entity.Note) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO notes (timestamp, content, logical_date)
		VALUES (?, ?, ?)
		ON CONFLICT (timestamp) DO UPDATE SET content = excluded.content`,
		formatTimestamp(n.Timestamp), n.Content, n.LogicalDate)
	if err != nil {
		return xerrors.Errorf("InsertNote: %w", err)
	}
	return nil
}

func (db *Database) GetNotesForDate(ctx context.Context, date logicalday.Date) ([]entity.Note, error) {
	rows := []struct {
		Timestamp   string          `db:"timestamp"`
		Content     string          `db:"content"`
		LogicalDate logicalday.Date `db:"logical_date"`
	}{}
	err := db.SelectContext(ctx, &rows, `
		SELECT timestamp, content, logical_date
		FROM notes
		WHERE logical_date = ?
		ORDER BY timestamp`, date)
	if err != nil {
		return nil, xerrors.Errorf("GetNotesForDate: %w", err)
	}
	notes := make([]entity.Note, 0, len(rows))
	for _, r := range rows {
		ts, err := parseTimestamp(r.Timestamp)
		if err != nil {
			return nil, xerrors.Errorf("GetNotesForDate: %w", err)
		}
		notes = append(notes, entity.Note{Timestamp: ts, Content: r.Content, LogicalDate: r.LogicalDate})
	}
	return notes, nil
}

func (db *Database) SaveBlog(ctx context.Context, b entity.BlogEntry) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO daily_blog (logical_date, content) VALUES (?, ?)
		ON CONFLICT (logical_date) DO UPDATE SET content = excluded.content`,
		b.LogicalDate, b.Content)
	if err != nil {
		return xerrors.Errorf("SaveBlog: %w", err)
	}
	return nil
}

// GetBlog returns ErrNotFound when nothing was written for date.
func (db *Database) GetBlog(ctx context.Context, date logicalday.Date) (entity.BlogEntry, error) {
	var content sql.NullString
	err := db.GetContext(ctx, &content, `SELECT content FROM daily_blog WHERE logical_date = ?`, date)
	if xerrors.Is(err, sql.ErrNoRows) {
		return entity.BlogEntry{}, ErrNotFound
	}
	if err != nil {
		return entity.BlogEntry{}, xerrors.Errorf("GetBlog: %w", err)
	}
	return entity.BlogEntry{LogicalDate: date, Content: content.String}, nil
}

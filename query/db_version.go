package query

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/xerrors"

	// "sqlite" (pure Go, default) and "sqlite3" (cgo) drivers.
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"

	// SchemaVersion is the version written to the schema_version setting
	// once every migration below has been applied.
	SchemaVersion = 2

	SchemaVersionKey = "schema_version"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = xerrors.New("not found")

// Database is the single-writer event store.
type Database struct {
	*sqlx.DB
}

func NewDatabase(db *sqlx.DB) *Database {
	return &Database{DB: db}
}

// Open opens (creating if needed) the SQLite file at path and brings its
// schema up to date.
func Open(ctx context.Context, driver, path string) (*Database, error) {
	if driver == "" {
		driver = DriverModernc
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, xerrors.Errorf("Open: mkdir: %w", err)
		}
	}

	dbTemp, err := sqlx.Open(driver, path)
	if err != nil {
		return nil, xerrors.Errorf("Open: %w", err)
	}
	// One connection: the store has a single writer, and ":memory:"
	// databases only live as long as their connection.
	dbTemp.SetMaxOpenConns(1)
	dbTemp.SetConnMaxLifetime(0)

	db := NewDatabase(dbTemp)
	if err := db.applyPragmas(ctx); err != nil {
		_ = dbTemp.Close()
		return nil, err
	}
	if err := db.migrate(ctx); err != nil {
		_ = dbTemp.Close()
		return nil, err
	}
	return db, nil
}

func (db *Database) applyPragmas(ctx context.Context) error {
	for _, p := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return xerrors.Errorf("applyPragmas %q: %w", p, err)
		}
	}
	return nil
}

func (db *Database) TableExists(ctx context.Context, tableName string) (bool, error) {
	query := `
		SELECT count(name)
		FROM sqlite_master
		WHERE type='table' AND name=?
	`

	var count int
	err := db.QueryRowContext(ctx, query, tableName).Scan(&count)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// GetDbVersion returns the recorded schema version, 0 for a fresh file.
func (db *Database) GetDbVersion(ctx context.Context) (int, error) {
	exist, err := db.TableExists(ctx, "settings")
	if err != nil {
		return 0, xerrors.Errorf("GetDbVersion: %w", err)
	}
	if !exist {
		return 0, nil
	}
	var version int
	err = db.GetSettingInto(ctx, SchemaVersionKey, &version)
	if xerrors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, xerrors.Errorf("GetDbVersion: %w", err)
	}
	return version, nil
}

var schemaV1 = []string{
	`CREATE TABLE IF NOT EXISTS window_events (
		timestamp TEXT NOT NULL,
		app_name TEXT NOT NULL,
		window_title TEXT,
		browser_url TEXT,
		logical_date TEXT NOT NULL,
		PRIMARY KEY (timestamp, app_name)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_window_logical_date ON window_events(logical_date)`,
	`CREATE TABLE IF NOT EXISTS key_events (
		timestamp TEXT NOT NULL PRIMARY KEY,
		key_count INTEGER NOT NULL,
		logical_date TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_key_logical_date ON key_events(logical_date)`,
	`CREATE TABLE IF NOT EXISTS notes (
		timestamp TEXT NOT NULL PRIMARY KEY,
		content TEXT NOT NULL,
		logical_date TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notes_logical_date ON notes(logical_date)`,
	`CREATE TABLE IF NOT EXISTS daily_blog (
		logical_date TEXT PRIMARY KEY,
		content TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

var schemaV2 = []string{
	// per-app counts of the daily summary
	`CREATE INDEX IF NOT EXISTS idx_window_date_app ON window_events(logical_date, app_name)`,
}

func (db *Database) migrate(ctx context.Context) error {
	dbVersion, err := db.GetDbVersion(ctx)
	if err != nil {
		return xerrors.Errorf("migrate: %w", err)
	}
	if dbVersion >= SchemaVersion {
		return nil
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return xerrors.Errorf("migrate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if dbVersion < 1 {
		if err := execAll(ctx, tx, schemaV1); err != nil {
			return xerrors.Errorf("migrate version 1: %w", err)
		}
	}
	if dbVersion < 2 {
		if err := execAll(ctx, tx, schemaV2); err != nil {
			return xerrors.Errorf("migrate version 2: %w", err)
		}
	}
	if err := setSetting(ctx, tx, SchemaVersionKey, SchemaVersion); err != nil {
		return xerrors.Errorf("migrate: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return xerrors.Errorf("migrate: commit: %w", err)
	}
	return nil
}

func execAll(ctx context.Context, tx *sqlx.Tx, stmts []string) error {
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// Timestamps are stored as fixed-width UTC text so that lexical order is
// time order and equal instants always produce the same key.
const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, xerrors.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

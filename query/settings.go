package query

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"golang.org/x/xerrors"
)

// GetSetting returns the raw JSON stored under key, or ErrNotFound.
func (db *Database) GetSetting(ctx context.Context, key string) (json.RawMessage, error) {
	var value string
	err := db.GetContext(ctx, &value, `SELECT value FROM settings WHERE key = ?`, key)
	if xerrors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, xerrors.Errorf("GetSetting %q: %w", key, err)
	}
	return json.RawMessage(value), nil
}

// GetSettingInto decodes the setting into dst.
func (db *Database) GetSettingInto(ctx context.Context, key string, dst any) error {
	raw, err := db.GetSetting(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return xerrors.Errorf("GetSettingInto %q: %w", key, err)
	}
	return nil
}

// SetSetting stores value as JSON, replacing any previous value.
func (db *Database) SetSetting(ctx context.Context, key string, value any) error {
	return setSetting(ctx, db.DB, key, value)
}

func setSetting(ctx context.Context, ex sqlx.ExecerContext, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return xerrors.Errorf("SetSetting %q: %w", key, err)
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, string(b))
	if err != nil {
		return xerrors.Errorf("SetSetting %q: %w", key, err)
	}
	return nil
}

package entity

import (
	"encoding/json"
	"time"

	"ulogme/logicalday"
)

// LockedScreen is the application name recorded while the screen is locked.
const LockedScreen = "__LOCKEDSCREEN"

// WindowEvent is one observation of the frontmost application. It is unique
// per (Timestamp, AppName).
type WindowEvent struct {
	Timestamp   time.Time       `json:"timestamp"`
	AppName     string          `json:"app_name"`
	WindowTitle *string         `json:"window_title"`
	BrowserURL  *string         `json:"browser_url"`
	LogicalDate logicalday.Date `json:"logical_date"`
}

// KeyEvent holds the keystrokes counted over one aggregation window. Only
// the count is kept, never which keys were pressed.
type KeyEvent struct {
	Timestamp   time.Time       `json:"timestamp"`
	KeyCount    int64           `json:"key_count"`
	LogicalDate logicalday.Date `json:"logical_date"`
}

type Note struct {
	Timestamp   time.Time       `json:"timestamp"`
	Content     string          `json:"content"`
	LogicalDate logicalday.Date `json:"logical_date"`
}

// BlogEntry is the free-text journal of one logical day.
type BlogEntry struct {
	LogicalDate logicalday.Date `json:"logical_date"`
	Content     string          `json:"content"`
}

type Setting struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// AppUsage counts the window events of one application.
type AppUsage struct {
	AppName    string `db:"app_name" json:"app_name"`
	EventCount int64  `db:"event_count" json:"event_count"`
}

type DailySummary struct {
	LogicalDate logicalday.Date `json:"logical_date"`
	TotalKeys   int64           `json:"total_keys"`
	KeyEvents   int64           `json:"key_events"`
	AppUsage    []AppUsage      `json:"app_usage"`
}

// DayOverview is one row of the multi-day rollup.
type DayOverview struct {
	LogicalDate logicalday.Date `db:"logical_date" json:"logical_date"`
	TotalKeys   int64           `db:"total_keys" json:"total_keys"`
	UniqueApps  int64           `db:"unique_apps" json:"unique_apps"`
}

// StrPtr returns nil for an empty string.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

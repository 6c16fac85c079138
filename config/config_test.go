package config_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ulogme/config"
)

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(afero.NewMemMapFs(), "")
	require.NoError(t, err)
	assert.True(t, cfg.WindowTitles)
	assert.True(t, cfg.Keystrokes)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 9*time.Second, cfg.KeystrokeWindow)
	assert.Equal(t, 7, cfg.BoundaryHour)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, []string{"Coding", "Terminal"}, cfg.HackingCategories)
	assert.False(t, cfg.WebEnabled)
}

func TestLoadTOML(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/home/me/ulogme/ulogme.toml", `
[tracking]
window_titles = false
browser_tabs = false
keystrokes = true
window_poll_interval = 0.5
keystroke_window = 15.0

[day_boundary]
hour = 4
timezone = "UTC"

[database]
path = "store/activity.db"
driver = "sqlite3"

[[category_mappings.rules]]
pattern = "code|vim"
category = "Coding"

[[category_mappings.rules]]
pattern = "slack"
category = "Chat"

[hacking]
categories = ["Coding"]

[web]
enabled = true
listen = "127.0.0.1:9000"
`)

	cfg, err := config.Load(fs, "/home/me/ulogme/ulogme.toml")
	require.NoError(t, err)
	assert.False(t, cfg.WindowTitles)
	assert.False(t, cfg.BrowserTabs)
	assert.True(t, cfg.BrowserURLs)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 15*time.Second, cfg.KeystrokeWindow)
	assert.Equal(t, 4, cfg.BoundaryHour)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, filepath.Join("/home/me/ulogme", "store/activity.db"), cfg.AbsoluteDBPath())
	require.Len(t, cfg.CategoryRules, 2)
	assert.True(t, cfg.CategoryRules[0].Pattern.MatchString("VIM :: main.go"))
	assert.Equal(t, "Chat", cfg.CategoryRules[1].Category)
	assert.Equal(t, []string{"Coding"}, cfg.HackingCategories)
	assert.True(t, cfg.WebEnabled)
	assert.Equal(t, "127.0.0.1:9000", cfg.WebListen)
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/etc/ulogme.yaml", `
tracking:
  keystrokes: false
day_boundary:
  hour: 0
category_mappings:
  rules:
    - pattern: "terminal"
      category: "Terminal"
`)
	cfg, err := config.Load(fs, "/etc/ulogme.yaml")
	require.NoError(t, err)
	assert.False(t, cfg.Keystrokes)
	assert.Equal(t, 0, cfg.BoundaryHour)
	require.Len(t, cfg.CategoryRules, 1)
}

func TestLoadFallsBackOnBadValues(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/cfg/ulogme.toml", `
[tracking]
window_poll_interval = -1.0
keystroke_window = 0.0

[day_boundary]
hour = 24
timezone = "Mars/Olympus"

[database]
driver = "postgres"

[[category_mappings.rules]]
pattern = "("
category = "Broken"

[[category_mappings.rules]]
pattern = "ok"
category = "Fine"

[[category_mappings.rules]]
pattern = "no-category"
`)

	cfg, err := config.Load(fs, "/cfg/ulogme.toml")
	require.Error(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, config.DefaultPollInterval, cfg.PollInterval)
	assert.Equal(t, config.DefaultKeystrokeWindow, cfg.KeystrokeWindow)
	assert.Equal(t, 7, cfg.BoundaryHour)
	assert.Equal(t, time.Local, cfg.Location)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	require.Len(t, cfg.CategoryRules, 1)
	assert.Equal(t, "Fine", cfg.CategoryRules[0].Category)

	msg := err.Error()
	for _, want := range []string{"window_poll_interval", "keystroke_window", "day_boundary.hour", "timezone", "database.driver", "Broken", "no-category"} {
		assert.Contains(t, msg, want)
	}
}

func TestLoadUnreadableOrMalformed(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	cfg, err := config.Load(fs, "/missing/ulogme.toml")
	require.Error(t, err)
	assert.Equal(t, 7, cfg.BoundaryHour)

	writeFile(t, fs, "/bad/ulogme.toml", "[tracking\nwindow_titles = ")
	cfg, err = config.Load(fs, "/bad/ulogme.toml")
	require.Error(t, err)
	assert.True(t, cfg.WindowTitles)
}

func TestFind(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/work/ulogme.toml", "")
	require.NoError(t, fs.MkdirAll("/work/project/sub", 0o755))

	assert.Equal(t, filepath.Join("/work", config.FileName), config.Find(fs, "/work/project/sub"))
	assert.Equal(t, "", config.Find(fs, "/elsewhere"))
}

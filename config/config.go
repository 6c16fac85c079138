// Package config loads the tracker configuration. Problems in the file are
// reported once and replaced by defaults; loading never fails outright.
package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"

	"ulogme/logicalday"
)

// FileName is the configuration file looked up by Find.
const FileName = "ulogme.toml"

const (
	DefaultPollInterval    = 2 * time.Second
	DefaultKeystrokeWindow = 9 * time.Second
	DefaultDBPath          = "data/ulogme.db"
	DefaultDriver          = "sqlite"
	DefaultListen          = "127.0.0.1:8124"
)

// CategoryRule maps window text matching Pattern to Category.
type CategoryRule struct {
	Pattern  *regexp.Regexp
	Category string
}

// Config is built once at startup and never mutated afterwards.
type Config struct {
	WindowTitles    bool
	BrowserTabs     bool
	BrowserURLs     bool
	Keystrokes      bool
	PollInterval    time.Duration
	KeystrokeWindow time.Duration

	BoundaryHour int
	Location     *time.Location

	DBPath   string
	DBDriver string

	CategoryRules     []CategoryRule
	HackingCategories []string

	WebEnabled bool
	WebListen  string

	// BaseDir is the directory of the config file; relative paths resolve
	// against it.
	BaseDir string
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		WindowTitles:      true,
		BrowserTabs:       true,
		BrowserURLs:       true,
		Keystrokes:        true,
		PollInterval:      DefaultPollInterval,
		KeystrokeWindow:   DefaultKeystrokeWindow,
		BoundaryHour:      logicalday.DefaultBoundaryHour,
		Location:          time.Local,
		DBPath:            DefaultDBPath,
		DBDriver:          DefaultDriver,
		HackingCategories: []string{"Coding", "Terminal"},
		WebListen:         DefaultListen,
		BaseDir:           defaultBaseDir(),
	}
}

func defaultBaseDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		if wd, err := os.Getwd(); err == nil {
			return wd
		}
		return "."
	}
	return filepath.Join(configDir, "ulogme")
}

// AbsoluteDBPath resolves DBPath against BaseDir.
func (c *Config) AbsoluteDBPath() string {
	if c.DBPath == ":memory:" || filepath.IsAbs(c.DBPath) {
		return c.DBPath
	}
	return filepath.Join(c.BaseDir, c.DBPath)
}

// fileConfig mirrors the file layout. Pointers tell "absent" from "false".
type fileConfig struct {
	Tracking struct {
		WindowTitles       *bool    `toml:"window_titles" yaml:"window_titles"`
		BrowserTabs        *bool    `toml:"browser_tabs" yaml:"browser_tabs"`
		BrowserURLs        *bool    `toml:"browser_urls" yaml:"browser_urls"`
		Keystrokes         *bool    `toml:"keystrokes" yaml:"keystrokes"`
		WindowPollInterval *float64 `toml:"window_poll_interval" yaml:"window_poll_interval"`
		KeystrokeWindow    *float64 `toml:"keystroke_window" yaml:"keystroke_window"`
	} `toml:"tracking" yaml:"tracking"`
	DayBoundary struct {
		Hour     *int   `toml:"hour" yaml:"hour"`
		Timezone string `toml:"timezone" yaml:"timezone"`
	} `toml:"day_boundary" yaml:"day_boundary"`
	Database struct {
		Path   string `toml:"path" yaml:"path"`
		Driver string `toml:"driver" yaml:"driver"`
	} `toml:"database" yaml:"database"`
	CategoryMappings struct {
		Rules []struct {
			Pattern  string `toml:"pattern" yaml:"pattern"`
			Category string `toml:"category" yaml:"category"`
		} `toml:"rules" yaml:"rules"`
	} `toml:"category_mappings" yaml:"category_mappings"`
	Hacking struct {
		Categories []string `toml:"categories" yaml:"categories"`
	} `toml:"hacking" yaml:"hacking"`
	Web struct {
		Enabled *bool  `toml:"enabled" yaml:"enabled"`
		Listen  string `toml:"listen" yaml:"listen"`
	} `toml:"web" yaml:"web"`
}

// Find returns the first ulogme.toml in dir or one of its parents, or ""
// when there is none.
func Find(fs afero.Fs, dir string) string {
	dir = filepath.Clean(dir)
	for {
		candidate := filepath.Join(dir, FileName)
		if ok, _ := afero.Exists(fs, candidate); ok {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Load reads path and returns the resulting configuration. The returned
// Config is never nil; the error lists every setting that was replaced by
// its default. An empty path yields the defaults.
func Load(fs afero.Fs, path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return cfg, xerrors.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = toml.Unmarshal(data, &fc)
	}
	if err != nil {
		return cfg, xerrors.Errorf("parse config %s: %w", path, err)
	}

	if abs, err := filepath.Abs(filepath.Dir(path)); err == nil {
		cfg.BaseDir = abs
	} else {
		cfg.BaseDir = filepath.Dir(path)
	}

	return cfg, cfg.apply(&fc)
}

func (c *Config) apply(fc *fileConfig) error {
	var warnings *multierror.Error

	setBool(&c.WindowTitles, fc.Tracking.WindowTitles)
	setBool(&c.BrowserTabs, fc.Tracking.BrowserTabs)
	setBool(&c.BrowserURLs, fc.Tracking.BrowserURLs)
	setBool(&c.Keystrokes, fc.Tracking.Keystrokes)
	setBool(&c.WebEnabled, fc.Web.Enabled)

	if v := fc.Tracking.WindowPollInterval; v != nil {
		if *v > 0 {
			c.PollInterval = seconds(*v)
		} else {
			warnings = multierror.Append(warnings, xerrors.Errorf("tracking.window_poll_interval must be positive, got %v", *v))
		}
	}
	if v := fc.Tracking.KeystrokeWindow; v != nil {
		if *v > 0 {
			c.KeystrokeWindow = seconds(*v)
		} else {
			warnings = multierror.Append(warnings, xerrors.Errorf("tracking.keystroke_window must be positive, got %v", *v))
		}
	}

	if h := fc.DayBoundary.Hour; h != nil {
		if *h >= 0 && *h <= 23 {
			c.BoundaryHour = *h
		} else {
			warnings = multierror.Append(warnings, xerrors.Errorf("day_boundary.hour must be within 0..23, got %d", *h))
		}
	}
	if tz := fc.DayBoundary.Timezone; tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			warnings = multierror.Append(warnings, xerrors.Errorf("day_boundary.timezone: %w", err))
		} else {
			c.Location = loc
		}
	}

	if fc.Database.Path != "" {
		c.DBPath = fc.Database.Path
	}
	switch fc.Database.Driver {
	case "":
	case "sqlite", "sqlite3":
		c.DBDriver = fc.Database.Driver
	default:
		warnings = multierror.Append(warnings, xerrors.Errorf("database.driver %q is not one of sqlite, sqlite3", fc.Database.Driver))
	}

	for _, r := range fc.CategoryMappings.Rules {
		if r.Pattern == "" || r.Category == "" {
			warnings = multierror.Append(warnings, xerrors.Errorf("invalid category rule %q -> %q: pattern and category are required", r.Pattern, r.Category))
			continue
		}
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			warnings = multierror.Append(warnings, xerrors.Errorf("invalid category rule %q -> %q: %w", r.Pattern, r.Category, err))
			continue
		}
		c.CategoryRules = append(c.CategoryRules, CategoryRule{Pattern: re, Category: r.Category})
	}
	if fc.Hacking.Categories != nil {
		c.HackingCategories = fc.Hacking.Categories
	}

	if fc.Web.Listen != "" {
		c.WebListen = fc.Web.Listen
	}

	return warnings.ErrorOrNil()
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

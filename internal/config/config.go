package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // zone names resolve on hosts without zoneinfo

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"calgrid/internal/layout"
	appLog "calgrid/internal/log"
	"calgrid/internal/style"
)

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// SourceID returns ID, falling back to Name and then URL.
func (c ICSConfig) SourceID() string {
	switch {
	case c.ID != "":
		return c.ID
	case c.Name != "":
		return c.Name
	default:
		return c.URL
	}
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// LayoutConfig holds the calendar grid geometry.
type LayoutConfig struct {
	// StartHour / EndHour bound the visible hours of week and day views
	// (inclusive).
	StartHour int `yaml:"start_hour" json:"start_hour"`
	EndHour   int `yaml:"end_hour" json:"end_hour"`

	WeekPixelsPerHour float64 `yaml:"week_pixels_per_hour" json:"week_pixels_per_hour"`
	DayPixelsPerHour  float64 `yaml:"day_pixels_per_hour" json:"day_pixels_per_hour"`

	// MonthInlineLimit is how many events a month cell lists before "+N more";
	// negative lists them all.
	MonthInlineLimit int `yaml:"month_inline_limit" json:"month_inline_limit"`

	// MonthRows is "auto" (35 or 42 cells as needed) or "fixed" (always 35).
	MonthRows string `yaml:"month_rows" json:"month_rows"`

	// MinEventMinutes is the height given to events whose end is not after
	// their start.
	MinEventMinutes int `yaml:"min_event_minutes" json:"min_event_minutes"`

	// Overlap is "lanes" (side by side) or "stack".
	Overlap string `yaml:"overlap" json:"overlap"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used as canonical display zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "sunday" (default) or "monday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron is a standard 5-field cron spec for ICS refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays is the agenda length and the ICS expansion window.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// BackfillDays is how far back ICS occurrences are expanded.
	BackfillDays int `yaml:"backfill_days" json:"backfill_days"`

	// CacheDir stores ICS bodies and HTTP cache metadata.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Demo seeds the collection with mock events.
	Demo bool `yaml:"demo" json:"demo"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Layout LayoutConfig `yaml:"layout" json:"layout"`

	// Categories overrides the built-in category styles by name.
	Categories map[string]style.Style `yaml:"categories,omitempty" json:"categories,omitempty"`

	// ICS is the list of subscribed ICS sources.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen      = "127.0.0.1:8080"
	defaultTimezone    = "UTC"
	defaultRefreshCron = "*/15 * * * *"
	defaultCacheDir    = "./cache/ics-cache"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       defaultListen,
		Timezone:     defaultTimezone,
		WeekStart:    "sunday",
		RefreshCron:  defaultRefreshCron,
		HorizonDays:  layout.DefaultHorizonDays,
		BackfillDays: 1,
		CacheDir:     defaultCacheDir,
		Demo:         true,
		LogLevel:     "info",
		Layout: LayoutConfig{
			StartHour:         layout.DefaultStartHour,
			EndHour:           layout.DefaultEndHour,
			WeekPixelsPerHour: layout.DefaultWeekPixelsPerHour,
			DayPixelsPerHour:  layout.DefaultDayPixelsPerHour,
			MonthInlineLimit:  layout.DefaultInlineLimit,
			MonthRows:         "auto",
			MinEventMinutes:   int(layout.DefaultMinDuration / time.Minute),
			Overlap:           string(layout.OverlapLanes),
		},
		ICS: []ICSConfig{},
	}
}

// Normalize fills in missing/zero values so partially-filled configs still
// behave correctly. Unknown enum values fall back to defaults.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	switch strings.ToLower(c.WeekStart) {
	case "monday":
		c.WeekStart = "monday"
	default:
		c.WeekStart = "sunday"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = layout.DefaultHorizonDays
	}
	if c.BackfillDays < 0 {
		c.BackfillDays = 0
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	l := &c.Layout
	if l.StartHour == 0 && l.EndHour == 0 {
		l.StartHour, l.EndHour = layout.DefaultStartHour, layout.DefaultEndHour
	}
	if l.WeekPixelsPerHour <= 0 {
		l.WeekPixelsPerHour = layout.DefaultWeekPixelsPerHour
	}
	if l.DayPixelsPerHour <= 0 {
		l.DayPixelsPerHour = layout.DefaultDayPixelsPerHour
	}
	if l.MonthInlineLimit == 0 {
		l.MonthInlineLimit = layout.DefaultInlineLimit
	}
	if l.MonthRows != "fixed" {
		l.MonthRows = "auto"
	}
	if l.MinEventMinutes <= 0 {
		l.MinEventMinutes = int(layout.DefaultMinDuration / time.Minute)
	}
	if l.Overlap != string(layout.OverlapStack) {
		l.Overlap = string(layout.OverlapLanes)
	}

	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
}

// Validate reports settings that Normalize cannot repair.
func (c *Config) Validate() error {
	var problems []string

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		problems = append(problems, fmt.Sprintf("timezone %q: %v", c.Timezone, err))
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		problems = append(problems, fmt.Sprintf("refresh %q: %v", c.RefreshCron, err))
	}
	l := c.Layout
	if l.StartHour < 0 || l.EndHour > 23 || l.EndHour < l.StartHour {
		problems = append(problems, fmt.Sprintf("layout hours %d-%d out of range", l.StartHour, l.EndHour))
	}
	seen := make(map[string]bool)
	for i, src := range c.ICS {
		if src.URL == "" {
			problems = append(problems, fmt.Sprintf("ics[%d]: url is empty", i))
			continue
		}
		id := src.SourceID()
		if seen[id] {
			problems = append(problems, fmt.Sprintf("ics[%d]: duplicate id %q", i, id))
		}
		seen[id] = true
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", c.Timezone)
		return time.Local
	}
	return loc
}

// LayoutOptions converts the config into view-builder options.
func (c *Config) LayoutOptions() layout.Options {
	opts := layout.DefaultOptions()
	if c.WeekStart == "monday" {
		opts.WeekStart = time.Monday
	}
	if c.Layout.MonthRows == "fixed" {
		opts.Rows = layout.RowsFixed
	}
	opts.StartHour = c.Layout.StartHour
	opts.EndHour = c.Layout.EndHour
	opts.WeekPixelsPerHour = c.Layout.WeekPixelsPerHour
	opts.DayPixelsPerHour = c.Layout.DayPixelsPerHour
	opts.InlineLimit = c.Layout.MonthInlineLimit
	opts.MinDuration = time.Duration(c.Layout.MinEventMinutes) * time.Minute
	opts.Overlap = layout.Overlap(c.Layout.Overlap)
	opts.HorizonDays = c.HorizonDays
	opts.Location = c.Location()
	return opts
}

// Styles returns the category style table with config overrides applied.
func (c *Config) Styles() style.Table {
	return style.DefaultTable().WithOverrides(c.Categories)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (parent directory created as needed) and returned.
//   - Otherwise the YAML is decoded and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config: path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Return cfg with the error so the caller can still run.
				return cfg, err
			}
			appLog.Info("wrote default config", "path", path)
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg to path atomically (temp file + rename, final perms 0600).
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config: path is empty")
	}
	if cfg == nil {
		return errors.New("config: nil config")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".calgrid-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience wrapper around the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

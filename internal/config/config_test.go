package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"calgrid/internal/layout"
	"calgrid/internal/model"
)

func TestLoadCreatesDefaultConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WeekStart != "sunday" || cfg.Layout.StartHour != 8 || cfg.Layout.EndHour != 19 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600, got %o", perm)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.RefreshCron != cfg.RefreshCron || again.Layout != cfg.Layout {
		t.Fatalf("round trip changed config: %+v vs %+v", again, cfg)
	}
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
timezone: Asia/Seoul
week_start: Tuesday
demo: false
layout:
  month_rows: sometimes
  overlap: stack
categories:
  meeting:
    color: teal
ics:
  - url: https://example.com/team.ics
    name: team
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.WeekStart != "sunday" {
		t.Errorf("unknown week_start should fall back to sunday, got %q", cfg.WeekStart)
	}
	if cfg.Demo {
		t.Errorf("demo should be disabled")
	}
	if cfg.Layout.MonthRows != "auto" || cfg.Layout.Overlap != "stack" {
		t.Errorf("unexpected layout %+v", cfg.Layout)
	}
	if cfg.Layout.WeekPixelsPerHour != 60 || cfg.Layout.DayPixelsPerHour != 80 {
		t.Errorf("pixel defaults not applied: %+v", cfg.Layout)
	}
	if got := cfg.ICS[0].SourceID(); got != "team" {
		t.Errorf("SourceID = %q", got)
	}
	if got := cfg.Styles().Resolve(model.CategoryMeeting); got.Color != "teal" {
		t.Errorf("style override missing: %+v", got)
	}

	opts := cfg.LayoutOptions()
	if opts.Overlap != layout.OverlapStack || opts.Location.String() != "Asia/Seoul" {
		t.Errorf("unexpected layout options %+v", opts)
	}
	if opts.MinDuration != 15*time.Minute || opts.WeekStart != time.Sunday {
		t.Errorf("unexpected layout options %+v", opts)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Timezone = "Mars/Olympus"
	cfg.RefreshCron = "every now and then"
	cfg.Layout.StartHour = 20
	cfg.Layout.EndHour = 8
	cfg.ICS = []ICSConfig{
		{URL: "https://a.example/x.ics", ID: "dup"},
		{URL: "https://b.example/y.ics", ID: "dup"},
		{Name: "missing-url"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"timezone", "refresh", "layout hours", "duplicate id", "url is empty"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}

func TestLayoutOptionsMondayFixed(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.WeekStart = "monday"
	cfg.Layout.MonthRows = "fixed"
	cfg.Normalize()

	opts := cfg.LayoutOptions()
	if opts.WeekStart != time.Monday || opts.Rows != layout.RowsFixed {
		t.Fatalf("unexpected options %+v", opts)
	}
}

package ics

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"calgrid/internal/model"
)

func fixture(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

var teamCalendar = fixture(
	"BEGIN:VCALENDAR",
	"VERSION:2.0",
	"PRODID:-//test//EN",
	"BEGIN:VEVENT",
	"UID:standup@example.com",
	"DTSTAMP:20250101T000000Z",
	"DTSTART:20250505T090000Z",
	"DTEND:20250505T093000Z",
	"SUMMARY:Standup",
	"CATEGORIES:Meeting",
	"ATTENDEE;CN=Sam Lee:mailto:sam@example.com",
	"RRULE:FREQ=DAILY;COUNT=5",
	"EXDATE:20250507T090000Z",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:standup@example.com",
	"DTSTAMP:20250101T000000Z",
	"RECURRENCE-ID:20250506T090000Z",
	"DTSTART:20250506T100000Z",
	"DTEND:20250506T103000Z",
	"SUMMARY:Standup (moved)",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:offsite@example.com",
	"DTSTAMP:20250101T000000Z",
	"DTSTART;VALUE=DATE:20250508",
	"DTEND;VALUE=DATE:20250509",
	"SUMMARY:Offsite",
	"CATEGORIES:Retreat,Social",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"DTSTAMP:20250101T000000Z",
	"DTSTART:20250505T120000Z",
	"SUMMARY:No UID",
	"END:VEVENT",
	"END:VCALENDAR",
)

func TestParseICS(t *testing.T) {
	t.Parallel()

	events, err := ParseICS(Source{ID: "team"}, teamCalendar)
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events (UID-less one skipped), got %d", len(events))
	}

	base := events[0]
	if base.UID != "standup@example.com" || base.Summary != "Standup" || base.Category != model.CategoryMeeting {
		t.Errorf("unexpected base event %+v", base)
	}
	if base.RawRRule == "" || len(base.ExDates) != 1 || base.IsOverride {
		t.Errorf("recurrence not parsed: %+v", base)
	}
	if len(base.Attendees) != 1 || base.Attendees[0].Name != "Sam Lee" || base.Attendees[0].Email != "sam@example.com" {
		t.Errorf("unexpected attendees %+v", base.Attendees)
	}

	override := events[1]
	if !override.IsOverride || override.Recurrence == nil {
		t.Fatalf("override not detected: %+v", override)
	}
	if want := time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC); !override.Recurrence.Equal(want) {
		t.Errorf("RECURRENCE-ID = %v, want %v", override.Recurrence, want)
	}

	offsite := events[2]
	if !offsite.AllDay || offsite.Category != model.CategorySocial {
		t.Errorf("unexpected all-day event %+v", offsite)
	}
}

func TestParseICSRejectsEmptyBody(t *testing.T) {
	t.Parallel()

	if _, err := ParseICS(Source{ID: "x"}, nil); err == nil {
		t.Fatal("expected error for empty body")
	}
}

func TestExpandRecurrence(t *testing.T) {
	t.Parallel()

	parsed, err := ParseICS(Source{ID: "team"}, teamCalendar)
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}

	res, err := Expand(parsed, ExpandConfig{
		DisplayLocation: time.UTC,
		RangeStart:      time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC),
		RangeEnd:        time.Date(2025, 5, 12, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}

	byID := make(map[string]model.Event)
	for _, e := range res.Events {
		byID[e.ID] = e
		if e.SourceID != "team" {
			t.Errorf("event %s has source %q", e.ID, e.SourceID)
		}
	}

	// 5 daily instances minus the EXDATE, plus the all-day event.
	if len(res.Events) != 5 {
		t.Fatalf("expected 5 events, got %d: %v", len(res.Events), byID)
	}
	if _, ok := byID["standup@example.com/2025-05-07T09:00:00Z"]; ok {
		t.Error("EXDATE instance was not removed")
	}

	moved, ok := byID["standup@example.com/2025-05-06T09:00:00Z"]
	if !ok {
		t.Fatal("overridden instance missing")
	}
	if moved.Title != "Standup (moved)" || moved.Start.Hour() != 10 {
		t.Errorf("override not applied: %+v", moved)
	}

	first := byID["standup@example.com/2025-05-05T09:00:00Z"]
	if !first.IsRecurring || first.RecurringPattern != "daily" || first.Duration() != 30*time.Minute {
		t.Errorf("unexpected first instance %+v", first)
	}

	for i := 1; i < len(res.Events); i++ {
		if res.Events[i].Start.Before(res.Events[i-1].Start) {
			t.Fatalf("events not ordered by start")
		}
	}
}

func TestExpandCapAndPattern(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 6, 14, 0, 0, 0, time.UTC)
	parsed := []ParsedEvent{{
		Source:   Source{ID: "s"},
		UID:      "sync",
		Summary:  "Sync",
		Start:    start,
		End:      start.Add(time.Hour),
		RawRRule: "FREQ=WEEKLY;INTERVAL=2",
	}}

	res, err := Expand(parsed, ExpandConfig{
		DisplayLocation:        time.UTC,
		RangeStart:             start,
		RangeEnd:               start.AddDate(1, 0, 0),
		MaxOccurrencesPerEvent: 3,
	})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(res.Events) != 3 || len(res.TruncatedEvents) != 1 || res.TruncatedEvents[0] != "sync" {
		t.Fatalf("cap not applied: %d events, truncated %v", len(res.Events), res.TruncatedEvents)
	}
	if got := res.Events[1].Start.Sub(res.Events[0].Start); got != 14*24*time.Hour {
		t.Errorf("interval = %v", got)
	}
	if res.Events[0].RecurringPattern != "biweekly" {
		t.Errorf("pattern = %q", res.Events[0].RecurringPattern)
	}
}

func TestExpandDropsEmptyRanges(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	parsed := []ParsedEvent{
		{UID: "zero", Summary: "Zero", Start: at, End: at},
		{UID: "ok", Summary: "Ok", Start: at, End: at.Add(time.Hour)},
	}

	res, err := Expand(parsed, ExpandConfig{
		RangeStart: at.Add(-time.Hour),
		RangeEnd:   at.Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(res.Events) != 1 || res.Events[0].Title != "Ok" {
		t.Fatalf("expected only the valid event, got %+v", res.Events)
	}

	if _, err := Expand(nil, ExpandConfig{RangeStart: at, RangeEnd: at.Add(-time.Hour)}); err == nil {
		t.Error("expected error for inverted range")
	}
}

func TestExpandAllDayKeepsCalendarDay(t *testing.T) {
	t.Parallel()

	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	body := fixture(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//EN",
		"BEGIN:VEVENT",
		"UID:holiday@example.com",
		"DTSTAMP:20250101T000000Z",
		"DTSTART;VALUE=DATE:20250502",
		"DTEND;VALUE=DATE:20250503",
		"SUMMARY:Holiday",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:cleanup@example.com",
		"DTSTAMP:20250101T000000Z",
		"DTSTART;VALUE=DATE:20250505",
		"DTEND;VALUE=DATE:20250506",
		"SUMMARY:Cleanup",
		"RRULE:FREQ=WEEKLY;COUNT=2",
		"END:VEVENT",
		"END:VCALENDAR",
	)
	parsed, err := ParseICS(Source{ID: "home"}, body)
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}

	res, err := Expand(parsed, ExpandConfig{
		DisplayLocation: ny,
		RangeStart:      time.Date(2025, 5, 1, 0, 0, 0, 0, ny),
		RangeEnd:        time.Date(2025, 5, 20, 0, 0, 0, 0, ny),
	})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}

	want := []struct {
		id    string
		start time.Time
	}{
		{"holiday@example.com/2025-05-02T00:00:00Z", time.Date(2025, 5, 2, 0, 0, 0, 0, ny)},
		{"cleanup@example.com/2025-05-05T00:00:00Z", time.Date(2025, 5, 5, 0, 0, 0, 0, ny)},
		{"cleanup@example.com/2025-05-12T00:00:00Z", time.Date(2025, 5, 12, 0, 0, 0, 0, ny)},
	}
	if len(res.Events) != len(want) {
		t.Fatalf("expected %d events, got %+v", len(want), res.Events)
	}
	for i, w := range want {
		e := res.Events[i]
		if e.ID != w.id || !e.AllDay {
			t.Errorf("event %d = %s allDay=%v, want %s", i, e.ID, e.AllDay, w.id)
		}
		if !e.Start.Equal(w.start) || !e.End.Equal(w.start.AddDate(0, 0, 1)) {
			t.Errorf("%s spans %v - %v, want the whole of %s", e.ID, e.Start, e.End, w.start.Format("2006-01-02"))
		}
		if e.Start.Location() != ny {
			t.Errorf("%s not in display location: %v", e.ID, e.Start.Location())
		}
	}

	var buf bytes.Buffer
	if err := Export(&buf, res.Events[:1], ""); err != nil {
		t.Fatalf("Export: %v", err)
	}
	for _, line := range []string{"DTSTART;VALUE=DATE:20250502", "DTEND;VALUE=DATE:20250503"} {
		if !strings.Contains(buf.String(), line) {
			t.Errorf("export missing %q:\n%s", line, buf.String())
		}
	}
}

func TestExportRoundTrip(t *testing.T) {
	t.Parallel()

	events := []model.Event{
		{
			ID:          "review-1",
			Title:       "Design review",
			Description: "Walk through mocks",
			Location:    "Room 4",
			Category:    model.CategoryDesign,
			Start:       time.Date(2025, 5, 6, 13, 0, 0, 0, time.UTC),
			End:         time.Date(2025, 5, 6, 14, 30, 0, 0, time.UTC),
			Attendees:   []model.Attendee{{Name: "Sam Lee", Email: "sam@example.com"}},
		},
		{
			ID:     "holiday",
			Title:  "Holiday",
			Start:  time.Date(2025, 5, 9, 0, 0, 0, 0, time.UTC),
			End:    time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC),
			AllDay: true,
		},
	}

	var buf bytes.Buffer
	if err := Export(&buf, events, ""); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.Contains(buf.String(), DefaultProductID) {
		t.Errorf("PRODID missing from output")
	}

	parsed, err := ParseICS(Source{ID: "export"}, buf.Bytes())
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}
	if len(parsed) != 2 {
		t.Fatalf("expected 2 events, got %d", len(parsed))
	}

	got := parsed[0]
	if got.UID != "review-1" || got.Summary != "Design review" || got.Location != "Room 4" {
		t.Errorf("unexpected event %+v", got)
	}
	if got.Category != model.CategoryDesign {
		t.Errorf("category = %v", got.Category)
	}
	if !got.Start.Equal(events[0].Start) || !got.End.Equal(events[0].End) {
		t.Errorf("times changed: %v - %v", got.Start, got.End)
	}
	if len(got.Attendees) != 1 || got.Attendees[0].Name != "Sam Lee" {
		t.Errorf("attendees = %+v", got.Attendees)
	}
	if !parsed[1].AllDay {
		t.Errorf("all-day flag lost")
	}
}

func TestFetcherUsesValidatorsAndCache(t *testing.T) {
	t.Parallel()

	var hits, conditional atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("User-Agent") != userAgent {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			conditional.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write(teamCalendar)
	}))

	f := NewFetcher(t.TempDir(), srv.Client())
	src := Source{ID: "team", URL: srv.URL + "/private/token.ics"}
	ctx := context.Background()

	first, err := f.FetchOne(ctx, src)
	if err != nil || first.FromCache || !bytes.Equal(first.Body, teamCalendar) {
		t.Fatalf("first fetch: %v fromCache=%v", err, first.FromCache)
	}

	second, err := f.FetchOne(ctx, src)
	if err != nil || !second.FromCache || !bytes.Equal(second.Body, teamCalendar) {
		t.Fatalf("conditional fetch: %v fromCache=%v", err, second.FromCache)
	}
	if conditional.Load() != 1 {
		t.Errorf("expected one conditional request, got %d", conditional.Load())
	}

	srv.Close()
	third, err := f.FetchOne(ctx, src)
	if err != nil || !third.FromCache {
		t.Fatalf("offline fetch should fall back to cache: %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("server hits = %d", hits.Load())
	}
}

func TestFetchAllReportsFailures(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/broken.ics") {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write(teamCalendar)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	results, errs := f.FetchAll(context.Background(), []Source{
		{ID: "good", URL: srv.URL + "/good.ics"},
		{ID: "broken", URL: srv.URL + "/broken.ics"},
		{ID: "empty"},
	})
	if len(results) != 1 || results[0].Source.ID != "good" {
		t.Fatalf("unexpected results %+v", results)
	}
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
	if !strings.Contains(errs[0].Error(), "broken") {
		t.Errorf("error does not name the source: %v", errs[0])
	}
}

func TestRedactURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"https://example.com/private/abcd.ics?token=x", "https://example.com/...(redacted)"},
		{"http://host:8080", "http://host:8080/...(redacted)"},
		{"not a url", "ics://...(redacted)"},
	}
	for _, tt := range tests {
		if got := redactURL(tt.in); got != tt.want {
			t.Errorf("redactURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

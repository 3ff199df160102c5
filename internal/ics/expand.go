package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// DisplayLocation is the zone every occurrence is converted to.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd bound the occurrences that are produced.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps a single series. If zero,
	// defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult holds the concrete events produced by Expand.
type ExpandResult struct {
	Events []model.Event
	// TruncatedEvents records UIDs that hit the MaxOccurrencesPerEvent cap.
	TruncatedEvents []string
}

// Expand turns parsed VEVENTs into concrete model events within the
// configured range. It handles:
//
//   - single events
//   - RRULE recurrence with EXDATE removal
//   - RECURRENCE-ID overrides
//   - all-day events
//
// Occurrences whose end is not after their start are dropped. The result is
// ordered by start, then ID.
func Expand(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("ics: expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	var uids []string
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, ok := baseByUID[ev.UID]; !ok {
			uids = append(uids, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	out := make([]model.Event, 0)
	for _, uid := range uids {
		truncated := false
		for _, ev := range baseByUID[uid] {
			occ, hitCap := expandEvent(ev, overridesByUID[uid], cfg)
			truncated = truncated || hitCap
			out = append(out, occ...)
		}
		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Warn("ics expand truncated", "uid", uid, "cap", cfg.MaxOccurrencesPerEvent)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	result.Events = out
	return result, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Event, bool) {
	if ev.RawRRule == "" {
		return expandSingleEvent(ev, overrides, cfg), false
	}
	return expandRecurringEvent(ev, overrides, cfg)
}

func expandSingleEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.Event {
	if !timeRangesOverlap(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
		return nil
	}

	start, end, src := ev.Start, ev.End, ev
	if o, ok := findOverrideForStart(overrides, ev.Start); ok {
		start, end, src = o.Start, o.End, o
	}

	if e, ok := makeEvent(src, start, end, "", cfg.DisplayLocation); ok {
		return []model.Event{e}
	}
	return nil
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Event, bool) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("ics rrule parse failed", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)
	pattern := recurringPattern(r.OrigOptions)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen the window by the event length so occurrences that started
	// before RangeStart but are still running are kept.
	dur := ev.End.Sub(ev.Start)
	rangeStart := cfg.RangeStart.Add(-dur).In(ev.Start.Location())
	rangeEnd := cfg.RangeEnd.In(ev.Start.Location())

	starts := set.Between(rangeStart, rangeEnd, true)
	hitCap := false
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		starts = starts[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	out := make([]model.Event, 0, len(starts))
	for _, occStart := range starts {
		var occEnd time.Time
		if ev.AllDay {
			occStart = time.Date(occStart.Year(), occStart.Month(), occStart.Day(), 0, 0, 0, 0, occStart.Location())
			occEnd = occStart.AddDate(0, 0, 1)
		} else {
			occEnd = occStart.Add(dur)
		}

		start, end, src := occStart, occEnd, ev
		if o, ok := findOverrideForStart(overrides, occStart); ok {
			start, end, src = o.Start, o.End, o
		}
		if e, ok := makeEvent(src, start, end, pattern, cfg.DisplayLocation); ok {
			// The instance keeps the series ID even when an override moves it.
			e.ID = instanceID(ev.UID, occStart)
			out = append(out, e)
		}
	}
	return out, hitCap
}

// findOverrideForStart finds an override whose RECURRENCE-ID equals start.
func findOverrideForStart(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

// makeEvent converts a parsed VEVENT instance into a model.Event in
// displayLoc. ok is false when the instance has an empty or inverted range.
func makeEvent(ev ParsedEvent, start, end time.Time, pattern string, displayLoc *time.Location) (model.Event, bool) {
	if !end.After(start) {
		appLog.Warn("ics occurrence dropped: end not after start", "uid", ev.UID, "start", start.Format(time.RFC3339))
		return model.Event{}, false
	}

	title := ev.Summary
	if title == "" {
		title = "(no title)"
	}

	id := instanceID(ev.UID, start)

	// DATE values carry no zone: keep the calendar day, not the instant.
	if ev.AllDay {
		start, end = floatingDate(start, displayLoc), floatingDate(end, displayLoc)
	} else {
		start, end = start.In(displayLoc), end.In(displayLoc)
	}

	e := model.Event{
		ID:               id,
		SourceID:         ev.Source.ID,
		Title:            title,
		Description:      ev.Description,
		Location:         ev.Location,
		Category:         ev.Category,
		Start:            start,
		End:              end,
		AllDay:           ev.AllDay,
		IsRecurring:      pattern != "",
		RecurringPattern: pattern,
	}
	if len(ev.Attendees) > 0 {
		e.Attendees = append([]model.Attendee(nil), ev.Attendees...)
	}
	return e, true
}

// floatingDate returns midnight in loc of the calendar day t names in its
// own location.
func floatingDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func instanceID(uid string, start time.Time) string {
	return uid + "/" + start.UTC().Format(time.RFC3339)
}

// recurringPattern names the repetition of a rule for display.
func recurringPattern(o rrule.ROption) string {
	interval := o.Interval
	if interval <= 0 {
		interval = 1
	}
	switch o.Freq {
	case rrule.DAILY:
		return "daily"
	case rrule.WEEKLY:
		if interval == 2 {
			return "biweekly"
		}
		return "weekly"
	case rrule.MONTHLY:
		return "monthly"
	case rrule.YEARLY:
		return "yearly"
	default:
		return "custom"
	}
}

func timeRangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aEnd.After(bStart) && aStart.Before(bEnd)
}

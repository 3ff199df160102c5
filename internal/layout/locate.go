package layout

import (
	"time"

	"calgrid/internal/model"
)

// SameDay reports whether a falls on b's calendar date, reading a in b's
// location.
func SameDay(a, b time.Time) bool {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// EventsOnDay returns the events whose start falls on day, in input order.
func EventsOnDay(events []model.Event, day time.Time) []model.Event {
	out := make([]model.Event, 0)
	for _, e := range events {
		if SameDay(e.Start, day) {
			out = append(out, e)
		}
	}
	return out
}

// EventsInHourSlot returns the events that start on day during hour. An event
// is only ever located in its start slot; its height covers later hours.
func EventsInHourSlot(events []model.Event, day time.Time, hour int) []model.Event {
	out := make([]model.Event, 0)
	for _, e := range events {
		if SameDay(e.Start, day) && e.Start.In(day.Location()).Hour() == hour {
			out = append(out, e)
		}
	}
	return out
}

// InWindow reports whether e starts inside the visible hour window of the
// time-grid views. Events outside it are not placed in any slot.
func InWindow(e model.Event, loc *time.Location, startHour, endHour int) bool {
	h := e.Start.In(loc).Hour()
	return h >= startHour && h <= endHour
}

// Truncate keeps the first limit events and counts the rest, for the
// "+N more" badge. A negative limit keeps everything.
func Truncate(events []model.Event, limit int) (shown []model.Event, more int) {
	if limit < 0 || len(events) <= limit {
		return events, 0
	}
	return events[:limit], len(events) - limit
}

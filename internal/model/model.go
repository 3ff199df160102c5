package model

import (
	"fmt"
	"strings"
	"time"
)

// Attendee is a participant listed on an event. The same person may appear on
// several events; no deduplication happens across events.
type Attendee struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar,omitempty"`
}

// Event is a single concrete calendar entry. Recurring series are stored as
// one Event per occurrence; IsRecurring and RecurringPattern are tags only.
type Event struct {
	ID       string `json:"id"`
	SourceID string `json:"source_id,omitempty"` // ICS source ID, empty for local events

	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Location    string   `json:"location,omitempty"`
	Category    Category `json:"category"`

	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	AllDay bool      `json:"all_day,omitempty"`

	Attendees []Attendee `json:"attendees,omitempty"`

	IsRecurring      bool   `json:"is_recurring,omitempty"`
	RecurringPattern string `json:"recurring_pattern,omitempty"`
}

// Duration returns End-Start; it is non-positive for malformed events.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Validate checks the invariants an event must satisfy before it enters the
// collection.
func (e Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("event %q: %w", e.ID, ErrMissingTitle)
	}
	if !e.End.After(e.Start) {
		return fmt.Errorf("event %q: %w", e.ID, ErrInvalidEventRange)
	}
	return nil
}

// Clone returns a copy whose attendee slice does not alias the receiver's.
func (e Event) Clone() Event {
	out := e
	if e.Attendees != nil {
		out.Attendees = append([]Attendee(nil), e.Attendees...)
	}
	return out
}

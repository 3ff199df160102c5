package ics

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"

	"calgrid/internal/model"
)

// DefaultProductID is the PRODID written by Export when none is given.
const DefaultProductID = "-//calgrid//EN"

// Export writes events as a single VCALENDAR, one VEVENT per event.
// Times are written in UTC; all-day events use DATE values.
func Export(w io.Writer, events []model.Event, prodID string) error {
	if prodID == "" {
		prodID = DefaultProductID
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, prodID)

	stamp := time.Now().UTC()
	for _, e := range events {
		cal.Children = append(cal.Children, toVEvent(e, stamp))
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("ics: encode calendar: %w", err)
	}
	return nil
}

func toVEvent(e model.Event, stamp time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, e.ID)
	ve.Props.SetText(ical.PropSummary, e.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp)

	if e.AllDay {
		ve.Props.SetDate(ical.PropDateTimeStart, e.Start)
		ve.Props.SetDate(ical.PropDateTimeEnd, e.End)
	} else {
		ve.Props.SetDateTime(ical.PropDateTimeStart, e.Start.UTC())
		ve.Props.SetDateTime(ical.PropDateTimeEnd, e.End.UTC())
	}

	if e.Description != "" {
		ve.Props.SetText(ical.PropDescription, e.Description)
	}
	if e.Location != "" {
		ve.Props.SetText(ical.PropLocation, e.Location)
	}
	if e.Category != model.CategoryOther {
		ve.Props.SetText(ical.PropCategories, e.Category.String())
	}
	for _, a := range e.Attendees {
		if a.Email == "" {
			continue
		}
		p := ical.NewProp(ical.PropAttendee)
		p.SetText("mailto:" + a.Email)
		if a.Name != "" {
			p.Params.Set(ical.ParamCommonName, a.Name)
		}
		ve.Props.Add(p)
	}
	return ve
}

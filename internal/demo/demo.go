// Package demo provides the mock event collection shown when no calendar
// source is configured.
package demo

import (
	"fmt"
	"time"

	"calgrid/internal/model"
)

var (
	alex   = model.Attendee{ID: "u-1", Name: "Alex Morgan", Email: "alex@example.com", Avatar: "/avatars/alex.png"}
	sam    = model.Attendee{ID: "u-2", Name: "Sam Lee", Email: "sam@example.com"}
	jordan = model.Attendee{ID: "u-3", Name: "Jordan Diaz", Email: "jordan@example.com", Avatar: "/avatars/jordan.png"}
	taylor = model.Attendee{ID: "u-4", Name: "Taylor Kim", Email: "taylor@example.com"}
)

type template struct {
	title       string
	category    model.Category
	day         int // day of month
	hour, min   int
	duration    time.Duration
	location    string
	description string
	attendees   []model.Attendee
	pattern     string
}

var templates = []template{
	{title: "Team Standup", category: model.CategoryMeeting, day: 2, hour: 9, duration: 30 * time.Minute, location: "Room 4B", attendees: []model.Attendee{alex, sam, jordan}, pattern: "daily"},
	{title: "Sprint Planning", category: model.CategoryPlanning, day: 2, hour: 10, duration: 2 * time.Hour, location: "Main conference room", description: "Scope the next two weeks.", attendees: []model.Attendee{alex, sam, jordan, taylor}, pattern: "biweekly"},
	{title: "Design Review", category: model.CategoryDesign, day: 2, hour: 11, min: 30, duration: time.Hour, location: "Figma", attendees: []model.Attendee{jordan, taylor}},
	{title: "Client Call: Acme", category: model.CategoryClient, day: 2, hour: 14, duration: 45 * time.Minute, location: "Zoom", attendees: []model.Attendee{alex}},
	{title: "Lunch & Learn", category: model.CategorySocial, day: 2, hour: 12, duration: time.Hour, location: "Cafeteria"},
	{title: "1:1 with Sam", category: model.CategoryMeeting, day: 5, hour: 15, duration: 30 * time.Minute, attendees: []model.Attendee{alex, sam}, pattern: "weekly"},
	{title: "Roadmap Workshop", category: model.CategoryPlanning, day: 8, hour: 13, duration: 3 * time.Hour, location: "Room 2A", description: "Quarterly roadmap alignment."},
	{title: "Usability Testing", category: model.CategoryDesign, day: 12, hour: 9, min: 30, duration: 90 * time.Minute, attendees: []model.Attendee{jordan}},
	{title: "Quarterly Business Review", category: model.CategoryClient, day: 15, hour: 11, duration: 2 * time.Hour, location: "Client HQ", attendees: []model.Attendee{alex, taylor}},
	{title: "Team Offsite Dinner", category: model.CategorySocial, day: 19, hour: 18, min: 30, duration: 2 * time.Hour, location: "Downtown"},
	{title: "Release Retro", category: model.CategoryOther, day: 23, hour: 16, duration: time.Hour},
	{title: "Early Ops Sync", category: model.CategoryMeeting, day: 26, hour: 7, duration: 30 * time.Minute, description: "Starts before the visible day window."},
	{title: "Month-end Close", category: model.CategoryPlanning, day: 28, hour: 9, duration: 8 * time.Hour},
}

// Events returns the demo collection laid out in ref's month. IDs are stable
// for a given month so links stay valid across restarts.
func Events(ref time.Time) []model.Event {
	year, month, _ := ref.Date()
	loc := ref.Location()
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()

	events := make([]model.Event, 0, len(templates))
	for i, t := range templates {
		day := t.day
		if day > lastDay {
			day = lastDay
		}
		start := time.Date(year, month, day, t.hour, t.min, 0, 0, loc)
		events = append(events, model.Event{
			ID:               fmt.Sprintf("demo-%04d%02d-%02d", year, int(month), i+1),
			Title:            t.title,
			Description:      t.description,
			Location:         t.location,
			Category:         t.category,
			Start:            start,
			End:              start.Add(t.duration),
			Attendees:        t.attendees,
			IsRecurring:      t.pattern != "",
			RecurringPattern: t.pattern,
		})
	}
	return events
}

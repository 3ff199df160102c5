package web

import (
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"calgrid/internal/model"
)

// eventPatch holds only the fields present in a PATCH body. Nil means
// "leave unchanged".
type eventPatch struct {
	title       *string
	description *string
	location    *string
	category    *model.Category
	start       *time.Time
	end         *time.Time
	allDay      *bool
	attendees   *[]model.Attendee
}

// parsePatch reads a partial event from a JSON object. Unknown keys are
// ignored; known keys with the wrong type are rejected.
func parsePatch(body []byte) (eventPatch, error) {
	var p eventPatch
	if !gjson.ValidBytes(body) {
		return p, errors.New("invalid JSON body")
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return p, errors.New("body must be a JSON object")
	}

	var err error
	if p.title, err = stringField(root, "title"); err != nil {
		return p, err
	}
	if p.description, err = stringField(root, "description"); err != nil {
		return p, err
	}
	if p.location, err = stringField(root, "location"); err != nil {
		return p, err
	}

	if name, err := stringField(root, "category"); err != nil {
		return p, err
	} else if name != nil {
		c, _ := model.ParseCategory(*name)
		p.category = &c
	}

	if p.start, err = timeField(root, "start"); err != nil {
		return p, err
	}
	if p.end, err = timeField(root, "end"); err != nil {
		return p, err
	}

	if v := root.Get("all_day"); v.Exists() {
		if v.Type != gjson.True && v.Type != gjson.False {
			return p, errors.New("all_day must be a boolean")
		}
		b := v.Bool()
		p.allDay = &b
	}

	if v := root.Get("attendees"); v.Exists() {
		if !v.IsArray() {
			return p, errors.New("attendees must be an array")
		}
		list := make([]model.Attendee, 0)
		for _, a := range v.Array() {
			list = append(list, model.Attendee{
				ID:     a.Get("id").String(),
				Name:   a.Get("name").String(),
				Email:  a.Get("email").String(),
				Avatar: a.Get("avatar").String(),
			})
		}
		p.attendees = &list
	}
	return p, nil
}

func (p eventPatch) apply(e *model.Event) {
	if p.title != nil {
		e.Title = *p.title
	}
	if p.description != nil {
		e.Description = *p.description
	}
	if p.location != nil {
		e.Location = *p.location
	}
	if p.category != nil {
		e.Category = *p.category
	}
	if p.start != nil {
		e.Start = *p.start
	}
	if p.end != nil {
		e.End = *p.end
	}
	if p.allDay != nil {
		e.AllDay = *p.allDay
	}
	if p.attendees != nil {
		e.Attendees = *p.attendees
	}
}

func stringField(root gjson.Result, key string) (*string, error) {
	v := root.Get(key)
	if !v.Exists() {
		return nil, nil
	}
	if v.Type != gjson.String {
		return nil, fmt.Errorf("%s must be a string", key)
	}
	s := v.String()
	return &s, nil
}

func timeField(root gjson.Result, key string) (*time.Time, error) {
	s, err := stringField(root, key)
	if err != nil || s == nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil, fmt.Errorf("%s must be an RFC 3339 timestamp", key)
	}
	return &t, nil
}

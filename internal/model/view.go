package model

import (
	"fmt"
	"strings"
)

// ViewMode selects which calendar layout is built. Any mode may follow any
// other.
type ViewMode string

const (
	ViewMonth  ViewMode = "month"
	ViewWeek   ViewMode = "week"
	ViewDay    ViewMode = "day"
	ViewAgenda ViewMode = "agenda"
)

func ParseViewMode(s string) (ViewMode, error) {
	switch m := ViewMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ViewMonth, ViewWeek, ViewDay, ViewAgenda:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownViewMode, s)
	}
}

// PageMode is what the calendar page is doing with the selected event.
type PageMode int

const (
	Viewing PageMode = iota
	Creating
	Editing
)

func (m PageMode) String() string {
	switch m {
	case Creating:
		return "creating"
	case Editing:
		return "editing"
	default:
		return "viewing"
	}
}

// PageState replaces a handful of independent dialog flags with one record,
// so "creating" and "editing" can never be set at the same time.
type PageState struct {
	Mode            PageMode
	SelectedEventID string
}

// Select focuses an event without opening an editor.
func (s PageState) Select(id string) PageState {
	return PageState{Mode: Viewing, SelectedEventID: id}
}

func (s PageState) BeginCreate() PageState {
	return PageState{Mode: Creating}
}

// BeginEdit opens the editor for id, or for the current selection when id is
// empty.
func (s PageState) BeginEdit(id string) (PageState, error) {
	if id == "" {
		id = s.SelectedEventID
	}
	if id == "" {
		return s, ErrNoEventSelected
	}
	return PageState{Mode: Editing, SelectedEventID: id}, nil
}

// Cancel closes any open editor but keeps the selection.
func (s PageState) Cancel() PageState {
	return PageState{Mode: Viewing, SelectedEventID: s.SelectedEventID}
}

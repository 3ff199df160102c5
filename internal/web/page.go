package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"calgrid/internal/layout"
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
	"calgrid/internal/style"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.New("calendar.html").Funcs(template.FuncMap{
	"clock": func(t time.Time) string { return t.Format("15:04") },
	"hour":  func(h int) string { return fmt.Sprintf("%02d:00", h) },
	"pct":   func(f float64) float64 { return f * 100 },
	"input": func(t time.Time) string { return t.Format("2006-01-02T15:04") },
}).ParseFS(templateFS, "templates/calendar.html"))

var viewModes = []model.ViewMode{model.ViewMonth, model.ViewWeek, model.ViewDay, model.ViewAgenda}

// pageData feeds templates/calendar.html.
type pageData struct {
	Mode     model.ViewMode
	Modes    []model.ViewMode
	Date     string
	Title    string
	Prev     string
	Next     string
	Today    string
	Version  uint64
	Timezone string
	Weekdays []string

	Month  *layout.MonthView
	Grid   *layout.TimeGridView
	Agenda *layout.AgendaView

	State      model.PageState
	Selected   *model.Event
	Categories []style.Entry

	styles style.Table
}

func (d pageData) Style(c model.Category) style.Style { return d.styles.Resolve(c) }
func (d pageData) Creating() bool                     { return d.State.Mode == model.Creating }
func (d pageData) Editing() bool                      { return d.State.Mode == model.Editing }

// HourTop is the pixel offset of hour h in the time grid.
func (d pageData) HourTop(h int) float64 {
	if d.Grid == nil || len(d.Grid.Hours) == 0 {
		return 0
	}
	return float64(h-d.Grid.Hours[0]) * d.Grid.PixelsPerHour
}

// handleCalendar renders the calendar page.
//
// GET /calendar?view=week&date=2025-05-06&selected=ID&edit=ID&create=1
//
// The root element carries data-ready="true" once rendered so headless
// capture can wait on it.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, date, err := s.parseViewQuery(q.Get("view"), q.Get("date"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	state := model.PageState{}
	if id := q.Get("selected"); id != "" {
		state = state.Select(id)
	}
	switch {
	case q.Get("create") != "":
		state = state.BeginCreate()
	case q.Has("edit"):
		state, err = state.BeginEdit(q.Get("edit"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	snap := s.store.Snapshot()
	data := pageData{
		Mode:       mode,
		Modes:      viewModes,
		Date:       date.Format(dateLayout),
		Today:      s.now().In(s.opts.Location).Format(dateLayout),
		Version:    snap.Version,
		Timezone:   s.opts.Location.String(),
		Weekdays:   weekdayNames(s.opts.WeekStart),
		State:      state,
		Categories: s.styles.Entries(),
		styles:     s.styles,
	}
	prev, next := stepDate(mode, date, s.opts.HorizonDays)
	data.Prev, data.Next = prev.Format(dateLayout), next.Format(dateLayout)

	if state.SelectedEventID != "" {
		e, err := s.store.Get(state.SelectedEventID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		data.Selected = &e
	}

	view, err := layout.Build(mode, snap.Events, date, s.opts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	switch v := view.(type) {
	case layout.MonthView:
		data.Month = &v
		data.Title = date.Format("January 2006")
	case layout.TimeGridView:
		data.Grid = &v
		if mode == model.ViewDay {
			data.Title = date.Format("Monday, January 2, 2006")
		} else {
			first := v.Days[0].Date
			data.Title = first.Format("Jan 2") + " - " + v.Days[len(v.Days)-1].Date.Format("Jan 2, 2006")
		}
	case layout.AgendaView:
		data.Agenda = &v
		data.Title = "Upcoming"
	default:
		writeError(w, http.StatusInternalServerError, "unexpected view")
		return
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		appLog.Error("calendar page render failed", err, "mode", mode, "date", data.Date)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// stepDate returns the reference dates of the previous and next page.
func stepDate(mode model.ViewMode, date time.Time, horizon int) (time.Time, time.Time) {
	switch mode {
	case model.ViewMonth:
		first := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, date.Location())
		return first.AddDate(0, -1, 0), first.AddDate(0, 1, 0)
	case model.ViewWeek:
		return date.AddDate(0, 0, -7), date.AddDate(0, 0, 7)
	case model.ViewAgenda:
		return date.AddDate(0, 0, -horizon), date.AddDate(0, 0, horizon)
	default:
		return date.AddDate(0, 0, -1), date.AddDate(0, 0, 1)
	}
}

func weekdayNames(start time.Weekday) []string {
	out := make([]string, 7)
	for i := range out {
		out[i] = time.Weekday((int(start) + i) % 7).String()[:3]
	}
	return out
}

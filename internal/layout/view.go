package layout

import (
	"fmt"
	"sort"
	"time"

	"calgrid/internal/model"
)

const (
	DefaultInlineLimit = 3
	DefaultHorizonDays = 7

	dateKeyLayout = "2006-01-02"
)

// Overlap selects how concurrent events share a day column.
type Overlap string

const (
	// OverlapStack draws concurrent events on top of each other.
	OverlapStack Overlap = "stack"
	// OverlapLanes splits the column into side-by-side lanes.
	OverlapLanes Overlap = "lanes"
)

// Options carries every knob of the view builders. Zero values fall back to
// the defaults of DefaultOptions.
type Options struct {
	WeekStart time.Weekday
	Rows      RowPolicy

	// StartHour and EndHour are the inclusive visible hour window. Both zero
	// means unset and selects 8..19; a midnight-only column is not
	// expressible.
	StartHour         int
	EndHour           int
	WeekPixelsPerHour float64
	DayPixelsPerHour  float64
	MinDuration       time.Duration
	Overlap           Overlap

	// InlineLimit is how many events a month cell lists before "+N more".
	// Zero selects DefaultInlineLimit; a negative value lists every event.
	InlineLimit int
	// HorizonDays is the length of the agenda window.
	HorizonDays int

	// Location is the display timezone; nil means the reference date's.
	Location *time.Location
}

// DefaultOptions mirrors the dashboard: Sunday weeks, 8:00-19:00 columns,
// 60px/h week and 80px/h day views, three events per month cell.
func DefaultOptions() Options {
	return Options{
		WeekStart:         time.Sunday,
		Rows:              RowsAuto,
		StartHour:         DefaultStartHour,
		EndHour:           DefaultEndHour,
		WeekPixelsPerHour: DefaultWeekPixelsPerHour,
		DayPixelsPerHour:  DefaultDayPixelsPerHour,
		MinDuration:       DefaultMinDuration,
		Overlap:           OverlapLanes,
		InlineLimit:       DefaultInlineLimit,
		HorizonDays:       DefaultHorizonDays,
	}
}

func (o Options) normalized(ref time.Time) Options {
	if o.Location == nil {
		o.Location = ref.Location()
	}
	if o.StartHour == 0 && o.EndHour == 0 {
		o.StartHour, o.EndHour = DefaultStartHour, DefaultEndHour
	}
	if o.WeekPixelsPerHour <= 0 {
		o.WeekPixelsPerHour = DefaultWeekPixelsPerHour
	}
	if o.DayPixelsPerHour <= 0 {
		o.DayPixelsPerHour = DefaultDayPixelsPerHour
	}
	if o.MinDuration <= 0 {
		o.MinDuration = DefaultMinDuration
	}
	if o.InlineLimit == 0 {
		o.InlineLimit = DefaultInlineLimit
	}
	if o.HorizonDays <= 0 {
		o.HorizonDays = DefaultHorizonDays
	}
	return o
}

// MonthCell is a month grid cell with its inline events.
type MonthCell struct {
	Date           time.Time     `json:"date"`
	Key            string        `json:"key"`
	InCurrentMonth bool          `json:"in_current_month"`
	Events         []model.Event `json:"events"`
	More           int           `json:"more"`
}

// MonthView is the month layout for one reference date.
type MonthView struct {
	Mode      model.ViewMode `json:"mode"`
	Reference time.Time      `json:"reference"`
	Month     string         `json:"month"`
	Cells     []MonthCell    `json:"cells"`
}

// Placed is an event positioned inside a day column. Left and Width are
// fractions of the column width.
type Placed struct {
	Event model.Event `json:"event"`
	Box
	Lane  int     `json:"lane"`
	Lanes int     `json:"lanes"`
	Left  float64 `json:"left"`
	Width float64 `json:"width"`
}

// HourSlot lists the events starting in one visible hour.
type HourSlot struct {
	Hour   int           `json:"hour"`
	Events []model.Event `json:"events"`
}

// DayColumn is one day of the week or day view.
type DayColumn struct {
	Date   time.Time     `json:"date"`
	Key    string        `json:"key"`
	Slots  []HourSlot    `json:"slots"`
	Placed []Placed      `json:"placed"`
	AllDay []model.Event `json:"all_day"`
	// Hidden are timed events starting outside the visible hours; the month
	// and agenda views still show them.
	Hidden []model.Event `json:"hidden"`
}

// TimeGridView is the week or day layout.
type TimeGridView struct {
	Mode          model.ViewMode `json:"mode"`
	Reference     time.Time      `json:"reference"`
	Hours         []int          `json:"hours"`
	PixelsPerHour float64        `json:"pixels_per_hour"`
	ColumnHeight  float64        `json:"column_height"`
	Days          []DayColumn    `json:"days"`
}

// AgendaDay groups agenda entries by date.
type AgendaDay struct {
	Date   time.Time     `json:"date"`
	Key    string        `json:"key"`
	Events []model.Event `json:"events"`
}

// AgendaView lists upcoming events in [From, To).
type AgendaView struct {
	Mode model.ViewMode `json:"mode"`
	From time.Time      `json:"from"`
	To   time.Time      `json:"to"`
	Days []AgendaDay    `json:"days"`
}

// Empty reports whether the agenda has nothing to show.
func (a AgendaView) Empty() bool {
	return len(a.Days) == 0
}

// Month builds the month view around ref.
func Month(events []model.Event, ref time.Time, opts Options) MonthView {
	opts = opts.normalized(ref)
	ref = ref.In(opts.Location)
	events = localize(events, opts.Location)

	grid := MonthGrid(ref, GridOptions{WeekStart: opts.WeekStart, Rows: opts.Rows})
	cells := make([]MonthCell, len(grid))
	for i, c := range grid {
		shown, more := Truncate(EventsOnDay(events, c.Date), opts.InlineLimit)
		cells[i] = MonthCell{
			Date:           c.Date,
			Key:            c.Date.Format(dateKeyLayout),
			InCurrentMonth: c.InCurrentMonth,
			Events:         shown,
			More:           more,
		}
	}

	return MonthView{
		Mode:      model.ViewMonth,
		Reference: ref,
		Month:     ref.Format("January 2006"),
		Cells:     cells,
	}
}

// Week builds the seven-column view of the week containing selected.
func Week(events []model.Event, selected time.Time, opts Options) TimeGridView {
	opts = opts.normalized(selected)
	selected = selected.In(opts.Location)
	days := WeekDays(selected, opts.WeekStart)
	return timeGrid(model.ViewWeek, localize(events, opts.Location), selected, days, opts.WeekPixelsPerHour, opts)
}

// Day builds the single-column view of selected.
func Day(events []model.Event, selected time.Time, opts Options) TimeGridView {
	opts = opts.normalized(selected)
	selected = selected.In(opts.Location)
	days := []time.Time{StartOfDay(selected)}
	return timeGrid(model.ViewDay, localize(events, opts.Location), selected, days, opts.DayPixelsPerHour, opts)
}

func timeGrid(mode model.ViewMode, events []model.Event, ref time.Time, days []time.Time, pph float64, opts Options) TimeGridView {
	pos := Positioner{
		StartHour:     opts.StartHour,
		EndHour:       opts.EndHour,
		PixelsPerHour: pph,
		MinDuration:   opts.MinDuration,
	}
	hours := BuildDayHours(opts.StartHour, opts.EndHour)

	view := TimeGridView{
		Mode:          mode,
		Reference:     ref,
		Hours:         hours,
		PixelsPerHour: pph,
		ColumnHeight:  pos.ColumnHeight(),
		Days:          make([]DayColumn, 0, len(days)),
	}

	for _, day := range days {
		col := DayColumn{
			Date:   day,
			Key:    day.Format(dateKeyLayout),
			Slots:  make([]HourSlot, 0, len(hours)),
			Placed: make([]Placed, 0),
			AllDay: make([]model.Event, 0),
			Hidden: make([]model.Event, 0),
		}

		visible := make([]model.Event, 0)
		for _, e := range EventsOnDay(events, day) {
			switch {
			case e.AllDay:
				col.AllDay = append(col.AllDay, e)
			case !InWindow(e, opts.Location, opts.StartHour, opts.EndHour):
				col.Hidden = append(col.Hidden, e)
			default:
				visible = append(visible, e)
			}
		}

		for _, h := range hours {
			col.Slots = append(col.Slots, HourSlot{Hour: h, Events: EventsInHourSlot(visible, day, h)})
		}

		col.Placed = place(visible, pos, opts)
		view.Days = append(view.Days, col)
	}
	return view
}

func place(events []model.Event, pos Positioner, opts Options) []Placed {
	out := make([]Placed, 0, len(events))
	if opts.Overlap != OverlapLanes {
		for _, e := range events {
			out = append(out, Placed{Event: e, Box: pos.Place(e), Lanes: 1, Width: 1})
		}
		return out
	}

	for _, l := range AssignLanes(events, opts.MinDuration) {
		width := 1 / float64(l.Count)
		out = append(out, Placed{
			Event: l.Event,
			Box:   pos.Place(l.Event),
			Lane:  l.Index,
			Lanes: l.Count,
			Left:  float64(l.Index) * width,
			Width: width,
		})
	}
	return out
}

// Agenda lists events starting in the HorizonDays days from from, sorted by
// start time and grouped by day. Days without events are omitted.
func Agenda(events []model.Event, from time.Time, opts Options) AgendaView {
	opts = opts.normalized(from)
	start := StartOfDay(from.In(opts.Location))
	end := start.AddDate(0, 0, opts.HorizonDays)

	inRange := make([]model.Event, 0)
	for _, e := range localize(events, opts.Location) {
		if !e.Start.Before(start) && e.Start.Before(end) {
			inRange = append(inRange, e)
		}
	}
	sort.SliceStable(inRange, func(i, j int) bool {
		return inRange[i].Start.Before(inRange[j].Start)
	})

	view := AgendaView{Mode: model.ViewAgenda, From: start, To: end, Days: make([]AgendaDay, 0)}
	for _, e := range inRange {
		n := len(view.Days)
		if n > 0 && SameDay(e.Start, view.Days[n-1].Date) {
			view.Days[n-1].Events = append(view.Days[n-1].Events, e)
			continue
		}
		day := StartOfDay(e.Start)
		view.Days = append(view.Days, AgendaDay{
			Date:   day,
			Key:    day.Format(dateKeyLayout),
			Events: []model.Event{e},
		})
	}
	return view
}

// Build dispatches on mode.
func Build(mode model.ViewMode, events []model.Event, date time.Time, opts Options) (any, error) {
	switch mode {
	case model.ViewMonth:
		return Month(events, date, opts), nil
	case model.ViewWeek:
		return Week(events, date, opts), nil
	case model.ViewDay:
		return Day(events, date, opts), nil
	case model.ViewAgenda:
		return Agenda(events, date, opts), nil
	default:
		return nil, fmt.Errorf("layout: %w: %q", model.ErrUnknownViewMode, mode)
	}
}

// localize copies events with their times read in loc. The input slice is
// never modified.
func localize(events []model.Event, loc *time.Location) []model.Event {
	out := make([]model.Event, len(events))
	for i, e := range events {
		e.Start = e.Start.In(loc)
		e.End = e.End.In(loc)
		out[i] = e
	}
	return out
}

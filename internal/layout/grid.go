// Package layout turns a flat event collection into calendar grids: month
// cells, week/day hour columns and pixel boxes for timed events. Everything
// here is a pure function of its inputs; callers own the event slice.
package layout

import "time"

// RowPolicy decides how many week rows a month grid has.
type RowPolicy int

const (
	// RowsAuto uses five rows, or six when the month does not fit in five.
	RowsAuto RowPolicy = iota
	// RowsFixed always uses five rows (35 cells); trailing days of months
	// that need a sixth row are not shown.
	RowsFixed
)

const daysPerWeek = 7

// GridOptions configures MonthGrid.
type GridOptions struct {
	WeekStart time.Weekday
	Rows      RowPolicy
}

// Cell is one day of a month grid.
type Cell struct {
	Date           time.Time
	InCurrentMonth bool
}

// TimeSlot is one visible hour of one day in the week and day views.
type TimeSlot struct {
	Date time.Time
	Hour int
}

// BuildMonthGrid returns the classic 5x7 grid for ref's month, weeks starting
// on Sunday. Cells outside the month are kept and flagged.
func BuildMonthGrid(ref time.Time) []Cell {
	return MonthGrid(ref, GridOptions{WeekStart: time.Sunday, Rows: RowsFixed})
}

// MonthGrid returns the cells for ref's month. Cell i holds
// firstOfMonth + (i - offset) days, where offset is the weekday distance of
// the first of the month from opts.WeekStart.
func MonthGrid(ref time.Time, opts GridOptions) []Cell {
	year, month, _ := ref.Date()
	first := time.Date(year, month, 1, 0, 0, 0, 0, ref.Location())
	offset := weekdayOffset(first.Weekday(), opts.WeekStart)

	rows := 5
	if opts.Rows == RowsAuto && offset+daysInMonth(first) > rows*daysPerWeek {
		rows = 6
	}

	cells := make([]Cell, rows*daysPerWeek)
	for i := range cells {
		d := first.AddDate(0, 0, i-offset)
		cells[i] = Cell{
			Date:           d,
			InCurrentMonth: d.Year() == year && d.Month() == month,
		}
	}
	return cells
}

// BuildWeekGrid returns the seven dates of the Sunday-started week that
// contains selected.
func BuildWeekGrid(selected time.Time) []time.Time {
	return WeekDays(selected, time.Sunday)
}

// WeekDays returns the seven dates of the week containing selected, starting
// on weekStart, each at local midnight.
func WeekDays(selected time.Time, weekStart time.Weekday) []time.Time {
	day := StartOfDay(selected)
	first := day.AddDate(0, 0, -weekdayOffset(day.Weekday(), weekStart))

	days := make([]time.Time, daysPerWeek)
	for i := range days {
		days[i] = first.AddDate(0, 0, i)
	}
	return days
}

// BuildDayHours returns the visible hours from start to end inclusive,
// clamped to 0..23. The default 8..19 window has 12 hours.
func BuildDayHours(start, end int) []int {
	start = clampHour(start)
	end = clampHour(end)
	if end < start {
		return []int{}
	}
	hours := make([]int, 0, end-start+1)
	for h := start; h <= end; h++ {
		hours = append(hours, h)
	}
	return hours
}

// TimeSlots crosses days with hours, day-major.
func TimeSlots(days []time.Time, hours []int) []TimeSlot {
	slots := make([]TimeSlot, 0, len(days)*len(hours))
	for _, d := range days {
		for _, h := range hours {
			slots = append(slots, TimeSlot{Date: d, Hour: h})
		}
	}
	return slots
}

// StartOfDay returns local midnight of t in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func weekdayOffset(wd, weekStart time.Weekday) int {
	return (int(wd) - int(weekStart) + daysPerWeek) % daysPerWeek
}

func daysInMonth(first time.Time) int {
	return first.AddDate(0, 1, -1).Day()
}

func clampHour(h int) int {
	switch {
	case h < 0:
		return 0
	case h > 23:
		return 23
	default:
		return h
	}
}

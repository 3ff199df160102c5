package layout

import (
	"fmt"
	"time"

	"calgrid/internal/model"
)

const (
	DefaultStartHour         = 8
	DefaultEndHour           = 19
	DefaultWeekPixelsPerHour = 60
	DefaultDayPixelsPerHour  = 80
	DefaultMinDuration       = 15 * time.Minute
)

// Box is the vertical placement of an event inside a day column, in pixels
// from the top of the first visible hour.
type Box struct {
	Top     float64 `json:"top"`
	Height  float64 `json:"height"`
	Clamped bool    `json:"clamped,omitempty"` // non-positive duration replaced by MinDuration
	Clipped bool    `json:"clipped,omitempty"` // cut at the bottom of the column
}

// Positioner converts event times into column coordinates.
type Positioner struct {
	StartHour     int
	EndHour       int
	PixelsPerHour float64
	MinDuration   time.Duration
}

// WeekPositioner matches the week view: 8:00-19:00 at 60px per hour.
func WeekPositioner() Positioner {
	return Positioner{
		StartHour:     DefaultStartHour,
		EndHour:       DefaultEndHour,
		PixelsPerHour: DefaultWeekPixelsPerHour,
		MinDuration:   DefaultMinDuration,
	}
}

// DayPositioner matches the day view: 8:00-19:00 at 80px per hour.
func DayPositioner() Positioner {
	p := WeekPositioner()
	p.PixelsPerHour = DefaultDayPixelsPerHour
	return p
}

// ColumnHeight is the pixel height of the visible hour window.
func (p Positioner) ColumnHeight() float64 {
	return float64(p.EndHour-p.StartHour+1) * p.PixelsPerHour
}

// Position computes the box for e without any correction. Top and height
// follow wall-clock hours, so DST days keep boxes aligned with the hour rows.
// An event ending on a later day runs to midnight, which Place clips to the
// bottom of the column. Events that do not end after they start are rejected
// with model.ErrInvalidEventRange.
func (p Positioner) Position(e model.Event) (Box, error) {
	if !e.End.After(e.Start) {
		return Box{}, fmt.Errorf("layout: event %q: %w", e.ID, model.ErrInvalidEventRange)
	}
	return Box{Top: p.top(e.Start), Height: p.height(e.Start, e.End)}, nil
}

// Place always returns a drawable box: non-positive durations are clamped to
// MinDuration and boxes running past the last visible hour are clipped.
func (p Positioner) Place(e model.Event) Box {
	box, err := p.Position(e)
	if err != nil {
		box = Box{
			Top:     p.top(e.Start),
			Height:  p.minDuration().Hours() * p.PixelsPerHour,
			Clamped: true,
		}
	}

	bottom := p.ColumnHeight()
	if box.Top < bottom && box.Top+box.Height > bottom {
		box.Height = bottom - box.Top
		box.Clipped = true
	}
	return box
}

func (p Positioner) top(start time.Time) float64 {
	return float64(start.Hour()-p.StartHour)*p.PixelsPerHour +
		float64(start.Minute())/60*p.PixelsPerHour
}

// height is the wall-clock span of start..end in start's column. An end on a
// later day stops at midnight; a span that folds back over a DST repeat
// falls back to elapsed time.
func (p Positioner) height(start, end time.Time) float64 {
	end = end.In(start.Location())
	if !SameDay(end, start) {
		return float64(24-p.StartHour)*p.PixelsPerHour - p.top(start)
	}
	if h := p.top(end) - p.top(start); h > 0 {
		return h
	}
	return end.Sub(start).Hours() * p.PixelsPerHour
}

func (p Positioner) minDuration() time.Duration {
	if p.MinDuration <= 0 {
		return DefaultMinDuration
	}
	return p.MinDuration
}

// Package term renders calendar views as plain terminal text.
package term

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	"calgrid/internal/layout"
	"calgrid/internal/model"
	"calgrid/internal/style"
)

const (
	DefaultWidth = 112
	minWidth     = 49
	hourLabelW   = 7
)

// ansiColors maps style color names onto the 16-color palette.
var ansiColors = map[string]string{
	"blue":   "4",
	"purple": "5",
	"pink":   "13",
	"green":  "2",
	"amber":  "3",
	"teal":   "6",
	"red":    "1",
	"slate":  "8",
}

// Renderer turns layout views into strings. The zero value is usable.
type Renderer struct {
	Styles style.Table
	Width  int
}

// NewRenderer returns a Renderer with the given styles and width.
func NewRenderer(styles style.Table, width int) Renderer {
	return Renderer{Styles: styles, Width: width}
}

// Render dispatches on the concrete view type returned by layout.Build.
func (r Renderer) Render(view any) (string, error) {
	switch v := view.(type) {
	case layout.MonthView:
		return r.RenderMonth(v), nil
	case layout.TimeGridView:
		return r.RenderTimeGrid(v), nil
	case layout.AgendaView:
		return r.RenderAgenda(v), nil
	default:
		return "", fmt.Errorf("term: unsupported view %T", view)
	}
}

func (r Renderer) width() int {
	if r.Width <= 0 {
		return DefaultWidth
	}
	return max(r.Width, minWidth)
}

func (r Renderer) styles() style.Table {
	if r.Styles == nil {
		return style.DefaultTable()
	}
	return r.Styles
}

// eventStyle colors text with the category color.
func (r Renderer) eventStyle(c model.Category) lipgloss.Style {
	color, ok := ansiColors[r.styles().Resolve(c).Color]
	if !ok {
		color = "7"
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)
	moreStyle   = lipgloss.NewStyle().Italic(true).Faint(true)
)

func clip(s string, w int) string {
	if w <= 1 {
		return ""
	}
	return truncate.StringWithTail(s, uint(w), "…")
}

// RenderMonth draws the month as rows of seven cells. Each cell lists its
// inline events followed by "+N more" when some were held back.
func (r Renderer) RenderMonth(v layout.MonthView) string {
	cellW := r.width() / 7
	inner := cellW - 1

	rowHeight := 1
	for _, c := range v.Cells {
		n := 1 + len(c.Events)
		if c.More > 0 {
			n++
		}
		rowHeight = max(rowHeight, n)
	}

	cellStyle := lipgloss.NewStyle().Width(cellW).Height(rowHeight).PaddingRight(1)

	var header []string
	for i := 0; i < 7 && i < len(v.Cells); i++ {
		header = append(header, cellStyle.Height(1).Render(headerStyle.Render(v.Cells[i].Date.Format("Mon"))))
	}

	rows := []string{titleStyle.Render(v.Month), lipgloss.JoinHorizontal(lipgloss.Top, header...)}
	for start := 0; start < len(v.Cells); start += 7 {
		end := min(start+7, len(v.Cells))
		cells := make([]string, 0, 7)
		for _, c := range v.Cells[start:end] {
			day := fmt.Sprintf("%2d", c.Date.Day())
			if !c.InCurrentMonth {
				day = dimStyle.Render(day)
			}
			lines := []string{day}
			for _, e := range c.Events {
				label := e.Title
				if !e.AllDay {
					label = e.Start.Format("15:04") + " " + label
				}
				lines = append(lines, r.eventStyle(e.Category).Render(clip(label, inner)))
			}
			if c.More > 0 {
				lines = append(lines, moreStyle.Render(fmt.Sprintf("+%d more", c.More)))
			}
			cells = append(cells, cellStyle.Render(strings.Join(lines, "\n")))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// RenderTimeGrid draws a week or day view with one row per visible hour.
// Events are listed in the hour they start; all-day events go on top and
// events outside the visible hours are summarized below.
func (r Renderer) RenderTimeGrid(v layout.TimeGridView) string {
	if len(v.Days) == 0 {
		return ""
	}
	colW := (r.width() - hourLabelW) / len(v.Days)
	col := lipgloss.NewStyle().Width(colW).PaddingRight(1)
	label := lipgloss.NewStyle().Width(hourLabelW)

	header := []string{label.Render("")}
	allDay := []string{label.Render(dimStyle.Render("all"))}
	for _, d := range v.Days {
		header = append(header, col.Render(headerStyle.Render(d.Date.Format("Mon 2"))))
		allDay = append(allDay, col.Render(r.eventLines(d.AllDay, colW-1, false)))
	}

	rows := []string{
		titleStyle.Render(timeGridTitle(v)),
		lipgloss.JoinHorizontal(lipgloss.Top, header...),
		lipgloss.JoinHorizontal(lipgloss.Top, allDay...),
	}
	for i, h := range v.Hours {
		cells := []string{label.Render(dimStyle.Render(fmt.Sprintf("%02d:00", h)))}
		for _, d := range v.Days {
			var events []model.Event
			if i < len(d.Slots) {
				events = d.Slots[i].Events
			}
			cells = append(cells, col.Render(r.eventLines(events, colW-1, true)))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}

	hidden := 0
	for _, d := range v.Days {
		hidden += len(d.Hidden)
	}
	switch {
	case hidden == 0:
	case len(v.Hours) == 0:
		rows = append(rows, moreStyle.Render(fmt.Sprintf("%d event(s) outside visible hours", hidden)))
	default:
		rows = append(rows, moreStyle.Render(fmt.Sprintf("%d event(s) outside %02d:00-%02d:59", hidden, v.Hours[0], v.Hours[len(v.Hours)-1])))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (r Renderer) eventLines(events []model.Event, w int, withTime bool) string {
	lines := make([]string, 0, len(events))
	for _, e := range events {
		text := e.Title
		if withTime {
			text = e.Start.Format("15:04") + " " + text
		}
		lines = append(lines, r.eventStyle(e.Category).Render(clip(text, w)))
	}
	return strings.Join(lines, "\n")
}

func timeGridTitle(v layout.TimeGridView) string {
	first := v.Days[0].Date
	if v.Mode == model.ViewDay {
		return first.Format("Monday, January 2, 2006")
	}
	last := v.Days[len(v.Days)-1].Date
	return first.Format("Jan 2") + " - " + last.Format("Jan 2, 2006")
}

// RenderAgenda lists upcoming events grouped by day with wrapped
// descriptions.
func (r Renderer) RenderAgenda(v layout.AgendaView) string {
	if v.Empty() {
		return dimStyle.Render("No events found.")
	}

	const indent = "      "
	wrapAt := r.width() - len(indent)
	styles := r.styles()

	var blocks []string
	for _, d := range v.Days {
		lines := []string{headerStyle.Render(d.Date.Format("Monday, January 2"))}
		for _, e := range d.Events {
			when := "all day"
			if !e.AllDay {
				when = e.Start.Format("15:04") + "-" + e.End.Format("15:04")
			}
			tag := r.eventStyle(e.Category).Render("[" + styles.Resolve(e.Category).Label + "]")
			lines = append(lines, fmt.Sprintf("  %-11s %s %s", when, e.Title, tag))
			if e.Location != "" {
				lines = append(lines, indent+dimStyle.Render("@ "+e.Location))
			}
			if e.Description != "" {
				for _, l := range strings.Split(wordwrap.String(e.Description, wrapAt), "\n") {
					lines = append(lines, indent+l)
				}
			}
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

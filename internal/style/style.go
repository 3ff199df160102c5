package style

import (
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

// Style is how a category is drawn: a named color, an icon name and a label.
type Style struct {
	Color string `yaml:"color" json:"color"`
	Icon  string `yaml:"icon" json:"icon"`
	Label string `yaml:"label" json:"label"`
}

// fallback is used when a table lacks even the CategoryOther entry.
var fallback = Style{Color: "slate", Icon: "calendar", Label: "Other"}

// Table maps each category to its style. It is process-wide configuration and
// is never mutated after construction; WithOverrides returns a new table.
type Table map[model.Category]Style

// DefaultTable returns the built-in category styles.
func DefaultTable() Table {
	return Table{
		model.CategoryMeeting:  {Color: "blue", Icon: "users", Label: "Meeting"},
		model.CategoryPlanning: {Color: "purple", Icon: "clipboard", Label: "Planning"},
		model.CategoryDesign:   {Color: "pink", Icon: "palette", Label: "Design"},
		model.CategoryClient:   {Color: "green", Icon: "briefcase", Label: "Client"},
		model.CategorySocial:   {Color: "amber", Icon: "coffee", Label: "Social"},
		model.CategoryOther:    fallback,
	}
}

// Resolve returns the style for c, or the default entry when c has none.
func (t Table) Resolve(c model.Category) Style {
	if s, ok := t[c]; ok {
		return s
	}
	if s, ok := t[model.CategoryOther]; ok {
		return s
	}
	return fallback
}

// ResolveName resolves free-form category text. Unknown names get the
// default entry.
func (t Table) ResolveName(name string) Style {
	c, _ := model.ParseCategory(name)
	return t.Resolve(c)
}

// WithOverrides returns a copy of t with per-category fields replaced by the
// non-empty fields of overrides. Keys that are not categories are skipped.
func (t Table) WithOverrides(overrides map[string]Style) Table {
	out := make(Table, len(t))
	for c, s := range t {
		out[c] = s
	}
	for name, o := range overrides {
		c, ok := model.ParseCategory(name)
		if !ok {
			appLog.Warn("ignoring style override for unknown category", "category", name)
			continue
		}
		s := out.Resolve(c)
		if o.Color != "" {
			s.Color = o.Color
		}
		if o.Icon != "" {
			s.Icon = o.Icon
		}
		if o.Label != "" {
			s.Label = o.Label
		}
		out[c] = s
	}
	return out
}

// Entry pairs a category name with its resolved style, for API listings.
type Entry struct {
	Category string `json:"category"`
	Style
}

// Entries lists every category in display order.
func (t Table) Entries() []Entry {
	out := make([]Entry, 0, len(model.Categories))
	for _, c := range model.Categories {
		out = append(out, Entry{Category: c.String(), Style: t.Resolve(c)})
	}
	return out
}

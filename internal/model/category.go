package model

import "strings"

// Category is the closed set of event categories. Anything that cannot be
// mapped onto one of the named values becomes CategoryOther.
type Category int

const (
	CategoryOther Category = iota
	CategoryMeeting
	CategoryPlanning
	CategoryDesign
	CategoryClient
	CategorySocial
)

// Categories lists every category in display order, CategoryOther last.
var Categories = []Category{
	CategoryMeeting,
	CategoryPlanning,
	CategoryDesign,
	CategoryClient,
	CategorySocial,
	CategoryOther,
}

var categoryNames = map[Category]string{
	CategoryOther:    "other",
	CategoryMeeting:  "meeting",
	CategoryPlanning: "planning",
	CategoryDesign:   "design",
	CategoryClient:   "client",
	CategorySocial:   "social",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "other"
}

// ParseCategory maps free-form text onto a Category. The boolean reports
// whether s named a known category; unknown input yields CategoryOther.
func ParseCategory(s string) (Category, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "default" {
		return CategoryOther, true
	}
	for c, name := range categoryNames {
		if name == key {
			return c, true
		}
	}
	return CategoryOther, false
}

func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText never fails: unknown names decode to CategoryOther.
func (c *Category) UnmarshalText(b []byte) error {
	*c, _ = ParseCategory(string(b))
	return nil
}

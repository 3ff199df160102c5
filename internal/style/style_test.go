package style

import (
	"testing"

	"calgrid/internal/model"
)

func TestResolveNameFallsBackToDefault(t *testing.T) {
	t.Parallel()

	table := DefaultTable()
	want := table[model.CategoryOther]

	for _, name := range []string{"urgent-fix", "", "HOLIDAY", "meetings"} {
		if got := table.ResolveName(name); got != want {
			t.Errorf("ResolveName(%q) = %+v, want %+v", name, got, want)
		}
	}

	got := table.ResolveName("urgent-fix")
	if got.Color != "slate" || got.Icon != "calendar" || got.Label != "Other" {
		t.Errorf("unexpected default style %+v", got)
	}
}

func TestResolveWithoutDefaultEntry(t *testing.T) {
	t.Parallel()

	table := Table{model.CategoryMeeting: {Color: "blue"}}
	if got := table.Resolve(model.CategorySocial); got != fallback {
		t.Fatalf("expected built-in fallback, got %+v", got)
	}
}

func TestWithOverrides(t *testing.T) {
	t.Parallel()

	base := DefaultTable()
	out := base.WithOverrides(map[string]Style{
		"meeting": {Color: "teal"},
		"no-such": {Color: "red"},
		"default": {Label: "Misc"},
	})

	if got := out.Resolve(model.CategoryMeeting); got.Color != "teal" || got.Icon != "users" {
		t.Errorf("partial override not merged: %+v", got)
	}
	if got := out.Resolve(model.CategoryOther); got.Label != "Misc" || got.Color != "slate" {
		t.Errorf("default override not applied: %+v", got)
	}
	if base.Resolve(model.CategoryMeeting).Color != "blue" {
		t.Errorf("base table was mutated")
	}
	if len(out.Entries()) != len(model.Categories) {
		t.Errorf("entries length mismatch")
	}
}

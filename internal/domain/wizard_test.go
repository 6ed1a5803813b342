package domain_test

import (
	"reflect"
	"testing"

	"staylist/internal/domain"
)

func TestParseCategory(t *testing.T) {
	for in, want := range map[string]domain.Category{
		"villa":      domain.CategoryVilla,
		" Hotel ":    domain.CategoryHotel,
		"day_picnic": domain.CategoryDayPicnic,
		"Day-Picnic": domain.CategoryDayPicnic,
	} {
		got, ok := domain.ParseCategory(in)
		if !ok || got != want {
			t.Fatalf("ParseCategory(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := domain.ParseCategory("castle"); ok {
		t.Fatalf("castle is not a category")
	}
}

func TestDerivedMaxGuests(t *testing.T) {
	c := domain.Capacity{RoomsCount: 4, CapacityPerRoom: 3, DayPicnicCapacity: 40}
	if got := c.DerivedMaxGuests(domain.CategoryResort); got != 12 {
		t.Fatalf("rooms mode: %d", got)
	}
	if got := c.DerivedMaxGuests(domain.CategoryDayPicnic); got != 40 {
		t.Fatalf("day picnic mode: %d", got)
	}
}

func TestStructuredAmenitiesUnion(t *testing.T) {
	a := domain.Amenities{
		Facilities:    []string{"Pool", " WiFi "},
		RoomFeatures:  []string{"AC", "WiFi"},
		Accessibility: []string{"", "Ramp"},
	}
	if got := a.Structured(); !reflect.DeepEqual(got, []string{"Pool", "WiFi", "AC", "Ramp"}) {
		t.Fatalf("union: %v", got)
	}
}

func TestSafetyCompleteness(t *testing.T) {
	s := domain.Safety{FireSafety: []string{"Alarm"}, Health: []string{"First aid"}, Security: []string{"CCTV"}}
	if s.Completeness() != 75 {
		t.Fatalf("completeness: %d", s.Completeness())
	}
}

func TestCloneIsDeep(t *testing.T) {
	d := domain.NewWizardDocument()
	d.Basic.Title = "T"
	d.Basic.Languages = []string{"English"}
	d.Rooms.BedTypes = map[string]int{"king": 1}
	c := d.Clone()
	c.Basic.Languages[0] = "Tamil"
	c.Rooms.BedTypes["king"] = 5
	if d.Basic.Languages[0] != "English" || d.Rooms.BedTypes["king"] != 1 {
		t.Fatalf("clone shares state with the original")
	}
}

func TestHasIdentity(t *testing.T) {
	d := domain.NewWizardDocument()
	d.Basic.Title = "Casa"
	if d.HasIdentity() {
		t.Fatalf("title alone is not enough")
	}
	d.Basic.Category = domain.CategoryVilla
	if !d.HasIdentity() {
		t.Fatalf("title and category should be enough")
	}
}

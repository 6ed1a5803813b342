package app_test

import (
	"errors"
	"strings"
	"testing"

	"staylist/internal/app"
	"staylist/internal/domain"
)

func roomsStep(t *testing.T) *app.StepController {
	t.Helper()
	c := app.NewStepController(nil, app.Validator{})
	if _, err := c.GoTo(c.IndexOf(app.StepRooms)); err != nil {
		t.Fatalf("goto rooms: %v", err)
	}
	return c
}

// Villa with 3 rooms split 2 + 1 moves on.
func TestNextFromRoomsExactAllocation(t *testing.T) {
	c := roomsStep(t)
	tr, err := c.Next(villaDoc())
	if err != nil || !tr.Moved || c.CurrentStep().ID != app.StepAmenities {
		t.Fatalf("expected to advance: moved=%v err=%v at %s (%s)", tr.Moved, err, c.CurrentStep().ID, tr.Validation.Reason)
	}
}

// Villa with 3 rooms split 2 + 2 is blocked with a surplus of 1.
func TestNextFromRoomsOverAllocated(t *testing.T) {
	c := roomsStep(t)
	doc := villaDoc()
	doc.Rooms.RoomTypes[1].Count = 2

	tr, err := c.Next(doc)
	if err != nil {
		t.Fatalf("validation failure must not be an error: %v", err)
	}
	if tr.Moved || c.CurrentStep().ID != app.StepRooms {
		t.Fatalf("should stay on rooms step")
	}
	if !strings.Contains(tr.Validation.Reason, "over by 1") {
		t.Fatalf("reason should cite surplus of 1: %q", tr.Validation.Reason)
	}
}

// Day picnic skips the allocation check and derives max_guests from its capacity.
func TestDayPicnicSkipsRooms(t *testing.T) {
	c := roomsStep(t)
	doc := domain.NewWizardDocument()
	doc.Basic.Category = domain.CategoryDayPicnic
	doc.Capacity.RoomsCount = 7
	doc.Capacity.DayPicnicCapacity = 40

	if tr, err := c.Next(doc); err != nil || !tr.Moved {
		t.Fatalf("day picnic should pass rooms step: %+v err=%v", tr, err)
	}
	if got := app.ToPersistedEntity(doc).MaxGuests; got != 40 {
		t.Fatalf("max_guests: got %d want 40", got)
	}
}

// The rooms step is hidden for day picnics in both directions.
func TestDayPicnicNavigationHidesRooms(t *testing.T) {
	c := app.NewStepController(nil, app.Validator{})
	doc := domain.NewWizardDocument()
	doc.Basic.Category = domain.CategoryDayPicnic
	doc.Capacity.DayPicnicCapacity = 40
	doc.Capacity.DayPicnicDuration = "6 hours"
	if _, err := c.GoTo(c.IndexOf(app.StepCapacity)); err != nil {
		t.Fatalf("goto capacity: %v", err)
	}

	tr, err := c.Next(doc)
	if err != nil || !tr.Moved || c.CurrentStep().ID != app.StepAmenities {
		t.Fatalf("next from capacity should land on amenities, got %s: %+v err=%v", c.CurrentStep().ID, tr, err)
	}
	if tr := c.Previous(doc); !tr.Moved || c.CurrentStep().ID != app.StepCapacity {
		t.Fatalf("previous from amenities should land on capacity, got %s", c.CurrentStep().ID)
	}

	// other categories still walk through rooms
	villa := villaDoc()
	if tr, _ := c.Next(villa); !tr.Moved || c.CurrentStep().ID != app.StepRooms {
		t.Fatalf("villa should visit rooms, got %s", c.CurrentStep().ID)
	}
}

func TestNextOnlyAdvancesWhenValid(t *testing.T) {
	c := app.NewStepController(nil, app.Validator{})
	doc := domain.NewWizardDocument()
	if tr, _ := c.Next(doc); tr.Moved || c.Current() != 0 {
		t.Fatalf("empty basic step must block")
	}
	doc = villaDoc()
	if tr, _ := c.Next(doc); !tr.Moved || c.Current() != 1 {
		t.Fatalf("valid basic step must advance")
	}
}

func TestGoToIsNotGated(t *testing.T) {
	c := app.NewStepController(nil, app.Validator{})
	tr, err := c.GoTo(6)
	if err != nil || !tr.Moved || c.Current() != 6 {
		t.Fatalf("jump should succeed: %+v err=%v", tr, err)
	}
	if _, err := c.GoTo(8); !errors.Is(err, domain.ErrInvalidStep) {
		t.Fatalf("out of range jump: %v", err)
	}
	if c.Current() != 6 {
		t.Fatalf("failed jump must not move")
	}
}

func TestPreviousAndFinalStep(t *testing.T) {
	c := app.NewStepController(nil, app.Validator{})
	if tr := c.Previous(villaDoc()); tr.Moved || c.Current() != 0 {
		t.Fatalf("previous at 0 must stay")
	}
	_, _ = c.GoTo(len(app.DefaultSteps) - 1)
	if !c.IsFinal() {
		t.Fatalf("expected final step")
	}
	if _, err := c.Next(villaDoc()); !errors.Is(err, domain.ErrFinalStep) {
		t.Fatalf("next on final step: %v", err)
	}
	if tr := c.Previous(villaDoc()); !tr.Moved || c.Current() != len(app.DefaultSteps)-2 {
		t.Fatalf("previous should move back one")
	}
}

func TestRestoreClamps(t *testing.T) {
	c := app.NewStepController(nil, app.Validator{})
	c.Restore(99)
	if c.Current() != len(app.DefaultSteps)-1 {
		t.Fatalf("restore high: %d", c.Current())
	}
	c.Restore(-3)
	if c.Current() != 0 {
		t.Fatalf("restore low: %d", c.Current())
	}
}

func TestProgress(t *testing.T) {
	c := app.NewStepController(nil, app.Validator{})
	_, _ = c.GoTo(3)
	p := c.Progress(villaDoc())
	if p.Total != 8 || p.Current != 3 || p.Percent != 50 {
		t.Fatalf("unexpected progress: %+v", p)
	}
	if len(p.Completed) != 8 {
		t.Fatalf("all steps of a complete doc should count as completed: %v", p.Completed)
	}
	p = c.Progress(domain.NewWizardDocument())
	// optional steps, plus rooms since 0 declared == 0 allocated
	if len(p.Completed) != 4 {
		t.Fatalf("empty doc completed: %v", p.Completed)
	}
}

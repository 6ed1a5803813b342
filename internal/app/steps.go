package app

import (
	"fmt"

	"staylist/internal/domain"
)

type StepID string

const (
	StepBasic     StepID = "basic"
	StepCapacity  StepID = "capacity"
	StepRooms     StepID = "rooms"
	StepAmenities StepID = "amenities"
	StepPricing   StepID = "pricing"
	StepSafety    StepID = "safety"
	StepNearby    StepID = "nearby"
	StepPhotos    StepID = "photos"
)

type StepDescriptor struct {
	ID    StepID `json:"id"`
	Title string `json:"title"`
	// HiddenFor lists the categories that never see this step during
	// sequential navigation.
	HiddenFor []domain.Category `json:"hidden_for,omitempty"`
}

// HiddenIn reports whether the step is skipped for cat.
func (s StepDescriptor) HiddenIn(cat domain.Category) bool {
	for _, c := range s.HiddenFor {
		if c == cat {
			return true
		}
	}
	return false
}

var DefaultSteps = []StepDescriptor{
	{ID: StepBasic, Title: "Basic Information"},
	{ID: StepCapacity, Title: "Capacity"},
	{ID: StepRooms, Title: "Rooms & Beds", HiddenFor: []domain.Category{domain.CategoryDayPicnic}},
	{ID: StepAmenities, Title: "Amenities"},
	{ID: StepPricing, Title: "Pricing & Policies"},
	{ID: StepSafety, Title: "Safety & Security"},
	{ID: StepNearby, Title: "Nearby & Transport"},
	{ID: StepPhotos, Title: "Photos"},
}

// Transition describes what a navigation request did.
type Transition struct {
	From       int    `json:"from"`
	To         int    `json:"to"`
	Moved      bool   `json:"moved"`
	Validation Result `json:"validation"`
}

type Progress struct {
	Current   int      `json:"current"`
	Total     int      `json:"total"`
	Percent   int      `json:"percent"`
	Completed []StepID `json:"completed"`
}

// StepController is the wizard's navigation state machine. Only sequential
// Next is gated by validation; GoTo lets users jump ahead to preview later steps.
type StepController struct {
	steps     []StepDescriptor
	current   int
	validator Validator
}

func NewStepController(steps []StepDescriptor, v Validator) *StepController {
	if len(steps) == 0 {
		steps = DefaultSteps
	}
	cp := make([]StepDescriptor, len(steps))
	copy(cp, steps)
	return &StepController{steps: cp, validator: v}
}

func (c *StepController) Steps() []StepDescriptor {
	out := make([]StepDescriptor, len(c.steps))
	copy(out, c.steps)
	return out
}

func (c *StepController) Current() int                { return c.current }
func (c *StepController) CurrentStep() StepDescriptor { return c.steps[c.current] }
func (c *StepController) IsFinal() bool               { return c.current == len(c.steps)-1 }

// IndexOf returns the position of id, or -1.
func (c *StepController) IndexOf(id StepID) int {
	for i, s := range c.steps {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Next advances to the next step shown for the document's category when the
// current step validates. A failed validation leaves the index unchanged and
// is reported in the Transition. On the final step Next is replaced by
// submit and returns ErrFinalStep.
func (c *StepController) Next(doc domain.WizardDocument) (Transition, error) {
	t := Transition{From: c.current, To: c.current}
	if c.IsFinal() {
		return t, domain.ErrFinalStep
	}
	t.Validation = c.validator.Validate(c.steps[c.current].ID, doc)
	if !t.Validation.OK {
		return t, nil
	}
	c.current = c.seek(c.current, 1, doc.Basic.Category)
	t.To, t.Moved = c.current, true
	return t, nil
}

// Previous moves back to the closest earlier step shown for the document's
// category, or stays put when there is none.
func (c *StepController) Previous(doc domain.WizardDocument) Transition {
	t := Transition{From: c.current, To: c.current, Validation: pass(c.steps[c.current].ID)}
	i := c.seek(c.current, -1, doc.Basic.Category)
	if i < 0 {
		return t
	}
	c.current = i
	t.To, t.Moved = c.current, true
	return t
}

// seek walks from i in direction dir past steps hidden for cat. Going
// forward it stops at the last step, which is never skipped; going back it
// returns -1 when nothing earlier is shown.
func (c *StepController) seek(i, dir int, cat domain.Category) int {
	for i += dir; i >= 0 && i < len(c.steps)-1; i += dir {
		if !c.steps[i].HiddenIn(cat) {
			return i
		}
	}
	if i < 0 {
		return -1
	}
	return len(c.steps) - 1
}

func (c *StepController) GoTo(i int) (Transition, error) {
	t := Transition{From: c.current, To: c.current}
	if i < 0 || i >= len(c.steps) {
		return t, fmt.Errorf("go to step %d: %w", i, domain.ErrInvalidStep)
	}
	c.current = i
	t.To, t.Moved = i, i != t.From
	t.Validation = pass(c.steps[i].ID)
	return t, nil
}

// Restore puts the controller back on a saved index, clamped to the step range.
func (c *StepController) Restore(i int) {
	switch {
	case i < 0:
		c.current = 0
	case i >= len(c.steps):
		c.current = len(c.steps) - 1
	default:
		c.current = i
	}
}

func (c *StepController) Progress(doc domain.WizardDocument) Progress {
	p := Progress{Current: c.current, Total: len(c.steps)}
	p.Percent = (c.current + 1) * 100 / len(c.steps)
	for _, s := range c.steps {
		if c.validator.Validate(s.ID, doc).OK {
			p.Completed = append(p.Completed, s.ID)
		}
	}
	return p
}

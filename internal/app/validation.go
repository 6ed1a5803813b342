package app

import (
	"fmt"
	"strings"
	"time"

	"staylist/internal/domain"
)

// Result is the outcome of validating one step. A failed Result is an
// expected, user-correctable condition and is never returned as an error.
type Result struct {
	Step     StepID   `json:"step"`
	OK       bool     `json:"ok"`
	Reason   string   `json:"reason,omitempty"`
	Missing  []string `json:"missing,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func pass(step StepID) Result { return Result{Step: step, OK: true} }

func fail(step StepID, reason string, missing ...string) Result {
	return Result{Step: step, Reason: reason, Missing: missing}
}

const dateLayout = "2006-01-02"

// Validator holds the per-step predicates. It is pure and synchronous.
type Validator struct{}

func (v Validator) Validate(step StepID, doc domain.WizardDocument) Result {
	switch step {
	case StepBasic:
		return v.basic(doc)
	case StepCapacity:
		return v.capacity(doc)
	case StepRooms:
		return v.rooms(doc)
	case StepPricing:
		return v.pricing(doc)
	case StepPhotos:
		return v.photos(doc)
	case StepAmenities, StepSafety, StepNearby:
		return pass(step)
	}
	return fail(step, fmt.Sprintf("unknown step %q", step))
}

// ValidateAll checks every step in order and returns the first failure
// together with its index, or a passing Result and -1.
func (v Validator) ValidateAll(steps []StepDescriptor, doc domain.WizardDocument) (Result, int) {
	var warnings []string
	for i, s := range steps {
		r := v.Validate(s.ID, doc)
		if !r.OK {
			return r, i
		}
		warnings = append(warnings, r.Warnings...)
	}
	return Result{OK: true, Warnings: warnings}, -1
}

func (v Validator) basic(doc domain.WizardDocument) Result {
	b := doc.Basic
	required := []struct {
		name, val string
	}{
		{"title", b.Title},
		{"category", string(b.Category)},
		{"description", b.Description},
		{"address", b.Address},
		{"city", b.City},
		{"state", b.State},
	}
	var missing []string
	for _, f := range required {
		if strings.TrimSpace(f.val) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fail(StepBasic, "Please fill in: "+strings.Join(missing, ", "), missing...)
	}
	if !b.Category.Valid() {
		return fail(StepBasic, fmt.Sprintf("Unknown property category %q", b.Category), "category")
	}
	if b.StarRating != 0 && (b.StarRating < 1 || b.StarRating > 5) {
		return fail(StepBasic, "Star rating must be between 1 and 5", "star_rating")
	}
	return pass(StepBasic)
}

func (v Validator) capacity(doc domain.WizardDocument) Result {
	c := doc.Capacity
	if doc.Basic.Category.IsDayPicnic() {
		var missing []string
		if c.DayPicnicCapacity <= 0 {
			missing = append(missing, "day_picnic_capacity")
		}
		if strings.TrimSpace(c.DayPicnicDuration) == "" {
			missing = append(missing, "day_picnic_duration")
		}
		if len(missing) > 0 {
			return fail(StepCapacity, "Please set the maximum capacity and duration for the day picnic", missing...)
		}
		return pass(StepCapacity)
	}
	var missing []string
	if c.RoomsCount <= 0 {
		missing = append(missing, "rooms_count")
	}
	if c.CapacityPerRoom <= 0 {
		missing = append(missing, "capacity_per_room")
	}
	if len(missing) > 0 {
		return fail(StepCapacity, "Please set the number of rooms and guests per room", missing...)
	}
	if c.Bedrooms < 0 || c.Bathrooms < 0 {
		return fail(StepCapacity, "Bedroom and bathroom counts cannot be negative", "bedrooms", "bathrooms")
	}
	return pass(StepCapacity)
}

// RemainingRooms is rooms_count minus the rooms allocated to room types:
// positive when under-allocated, negative when over-allocated.
func RemainingRooms(doc domain.WizardDocument) int {
	return doc.Capacity.RoomsCount - doc.Rooms.AllocatedRooms()
}

func (v Validator) rooms(doc domain.WizardDocument) Result {
	if doc.Basic.Category.IsDayPicnic() {
		return pass(StepRooms)
	}
	switch remaining := RemainingRooms(doc); {
	case remaining > 0:
		return fail(StepRooms, fmt.Sprintf("Room types need %d more room(s) to match the %d declared",
			remaining, doc.Capacity.RoomsCount), "room_types")
	case remaining < 0:
		return fail(StepRooms, fmt.Sprintf("Room types are over by %d room(s): %d allocated, %d declared",
			-remaining, doc.Rooms.AllocatedRooms(), doc.Capacity.RoomsCount), "room_types")
	}
	// the allocation alone decides the step; incomplete rows are only flagged
	r := pass(StepRooms)
	for i, rt := range doc.Rooms.RoomTypes {
		name := strings.TrimSpace(rt.Type)
		switch {
		case name == "":
			r.Warnings = append(r.Warnings, fmt.Sprintf("Room type %d has no name", i+1))
		case rt.Count <= 0:
			r.Warnings = append(r.Warnings, fmt.Sprintf("Room type %q has no rooms allocated", name))
		}
		if rt.PricePerNight < 0 {
			r.Warnings = append(r.Warnings, fmt.Sprintf("Room type %d has a negative price", i+1))
		}
	}
	return r
}

func (v Validator) pricing(doc domain.WizardDocument) Result {
	p := doc.Pricing
	var missing []string
	if p.BaseRate <= 0 {
		missing = append(missing, "base_rate")
	}
	if strings.TrimSpace(p.Currency) == "" {
		missing = append(missing, "currency")
	}
	if p.MinimumStay < 1 {
		missing = append(missing, "minimum_stay")
	}
	if len(missing) > 0 {
		return fail(StepPricing, "Please fill in: "+strings.Join(missing, ", "), missing...)
	}
	if p.CancellationPolicy != "" && !p.CancellationPolicy.Valid() {
		return fail(StepPricing, fmt.Sprintf("Unknown cancellation policy %q", p.CancellationPolicy), "cancellation_policy")
	}
	for _, t := range []struct{ name, val string }{{"check_in_time", p.CheckInTime}, {"check_out_time", p.CheckOutTime}} {
		if t.val == "" {
			continue
		}
		if _, err := time.Parse("15:04", t.val); err != nil {
			return fail(StepPricing, fmt.Sprintf("%s must look like 14:00", t.name), t.name)
		}
	}
	for i, sr := range p.SeasonalRates {
		if strings.TrimSpace(sr.Name) == "" || sr.Rate <= 0 {
			return fail(StepPricing, fmt.Sprintf("Seasonal rate %d needs a name and a positive rate", i+1), "seasonal_rates")
		}
		start, err1 := time.Parse(dateLayout, sr.StartDate)
		end, err2 := time.Parse(dateLayout, sr.EndDate)
		if err1 != nil || err2 != nil {
			return fail(StepPricing, fmt.Sprintf("Seasonal rate %q needs valid start and end dates", sr.Name), "seasonal_rates")
		}
		if end.Before(start) {
			return fail(StepPricing, fmt.Sprintf("Seasonal rate %q ends before it starts", sr.Name), "seasonal_rates")
		}
	}
	r := pass(StepPricing)
	r.Warnings = SeasonalOverlaps(p.SeasonalRates)
	return r
}

// SeasonalOverlaps describes every pair of seasonal rates whose date ranges
// intersect. Overlaps are reported, not rejected.
func SeasonalOverlaps(rates []domain.SeasonalRate) []string {
	type span struct {
		name       string
		start, end time.Time
	}
	spans := make([]span, 0, len(rates))
	for _, sr := range rates {
		s, err1 := time.Parse(dateLayout, sr.StartDate)
		e, err2 := time.Parse(dateLayout, sr.EndDate)
		if err1 != nil || err2 != nil {
			continue
		}
		spans = append(spans, span{sr.Name, s, e})
	}
	var out []string
	for i := 0; i < len(spans); i++ {
		for j := i + 1; j < len(spans); j++ {
			a, b := spans[i], spans[j]
			if !a.start.After(b.end) && !b.start.After(a.end) {
				out = append(out, fmt.Sprintf("Seasonal rates %q and %q overlap", a.name, b.name))
			}
		}
	}
	return out
}

func (v Validator) photos(doc domain.WizardDocument) Result {
	if len(doc.Photos) == 0 {
		return fail(StepPhotos, "Please add at least one photo", "photos")
	}
	if n := doc.Photos.PrimaryCount(); n != 1 {
		return fail(StepPhotos, "Please choose exactly one cover photo", "photos")
	}
	for i, p := range doc.Photos {
		if strings.TrimSpace(p.ImageURL) == "" {
			return fail(StepPhotos, fmt.Sprintf("Photo %d has no image", i+1), "photos")
		}
	}
	return pass(StepPhotos)
}

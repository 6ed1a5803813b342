package domain

import (
	"encoding/json"
	"strings"
)

type Category string

const (
	CategoryVilla     Category = "Villa"
	CategoryApartment Category = "Apartment"
	CategoryCottage   Category = "Cottage"
	CategoryHomestay  Category = "Homestay"
	CategoryFarmhouse Category = "Farmhouse"
	CategoryResort    Category = "Resort"
	CategoryHotel     Category = "Hotel"
	CategoryDayPicnic Category = "Day Picnic"
)

var Categories = []Category{
	CategoryVilla, CategoryApartment, CategoryCottage, CategoryHomestay,
	CategoryFarmhouse, CategoryResort, CategoryHotel, CategoryDayPicnic,
}

// ParseCategory matches case-insensitively and tolerates "day_picnic"/"day-picnic".
func ParseCategory(s string) (Category, bool) {
	norm := strings.NewReplacer("_", " ", "-", " ").Replace(strings.TrimSpace(s))
	for _, c := range Categories {
		if strings.EqualFold(string(c), norm) {
			return c, true
		}
	}
	return "", false
}

func (c Category) Valid() bool {
	_, ok := ParseCategory(string(c))
	return ok && c != ""
}

func (c Category) IsDayPicnic() bool { return c == CategoryDayPicnic }

// WizardDocument is the single mutable aggregate edited across all wizard steps.
type WizardDocument struct {
	Basic     BasicInfo       `json:"basic"`
	Capacity  Capacity        `json:"capacity"`
	Rooms     RoomComposition `json:"rooms"`
	Amenities Amenities       `json:"amenities"`
	Pricing   Pricing         `json:"pricing"`
	Safety    Safety          `json:"safety"`
	Nearby    Nearby          `json:"nearby"`
	Photos    PhotoList       `json:"photos"`
}

type BasicInfo struct {
	Title        string   `json:"title"`
	Category     Category `json:"category"`
	Subtype      string   `json:"subtype,omitempty"`
	Description  string   `json:"description"`
	Address      string   `json:"address"`
	City         string   `json:"city"`
	State        string   `json:"state"`
	Country      string   `json:"country,omitempty"`
	PostalCode   string   `json:"postal_code,omitempty"`
	ContactName  string   `json:"contact_name,omitempty"`
	ContactPhone string   `json:"contact_phone,omitempty"`
	ContactEmail string   `json:"contact_email,omitempty"`
	Languages    []string `json:"languages,omitempty"`
	StarRating   int      `json:"star_rating,omitempty"` // 0 = not declared, else 1..5
}

type Capacity struct {
	RoomsCount        int    `json:"rooms_count"`
	CapacityPerRoom   int    `json:"capacity_per_room"`
	Bedrooms          int    `json:"bedrooms"`
	Bathrooms         int    `json:"bathrooms"`
	DayPicnicCapacity int    `json:"day_picnic_capacity,omitempty"`
	DayPicnicDuration string `json:"day_picnic_duration,omitempty"`
	// MaxGuests is derived; see DerivedMaxGuests.
	MaxGuests int `json:"max_guests"`
}

// DerivedMaxGuests recomputes max_guests for the given category.
func (c Capacity) DerivedMaxGuests(cat Category) int {
	if cat.IsDayPicnic() {
		return c.DayPicnicCapacity
	}
	return c.RoomsCount * c.CapacityPerRoom
}

type RoomType struct {
	Type          string  `json:"type"`
	Count         int     `json:"count"`
	PricePerNight float64 `json:"price_per_night"`
	Size          string  `json:"size,omitempty"`
}

type RoomComposition struct {
	RoomTypes     []RoomType          `json:"room_types"`
	RoomAmenities map[string][]string `json:"room_amenities,omitempty"` // room type -> amenities
	BedTypes      map[string]int      `json:"bed_types,omitempty"`      // bed type -> quantity
}

// AllocatedRooms sums the declared count over every room type.
func (r RoomComposition) AllocatedRooms() int {
	n := 0
	for _, rt := range r.RoomTypes {
		n += rt.Count
	}
	return n
}

type Amenities struct {
	Facilities    []string `json:"facilities,omitempty"`
	RoomFeatures  []string `json:"room_features,omitempty"`
	Recreation    []string `json:"recreation,omitempty"`
	Accessibility []string `json:"accessibility,omitempty"`
	// Deprecated: Legacy mirrors the flat amenities column read by older
	// consumers. It is rebuilt from the structured sets at the converter
	// boundary and should not be edited directly.
	Legacy []string `json:"legacy,omitempty"`
}

// Structured returns the union of the structured sets in a stable order.
func (a Amenities) Structured() []string {
	return unionStrings(a.Facilities, a.RoomFeatures, a.Recreation, a.Accessibility)
}

type CancellationPolicy string

const (
	CancellationFlexible      CancellationPolicy = "flexible"
	CancellationModerate      CancellationPolicy = "moderate"
	CancellationStrict        CancellationPolicy = "strict"
	CancellationNonRefundable CancellationPolicy = "non_refundable"
)

func (p CancellationPolicy) Valid() bool {
	switch p {
	case CancellationFlexible, CancellationModerate, CancellationStrict, CancellationNonRefundable:
		return true
	}
	return false
}

type SeasonalRate struct {
	Name      string  `json:"name"`
	Rate      float64 `json:"rate"`
	StartDate string  `json:"start_date"` // YYYY-MM-DD
	EndDate   string  `json:"end_date"`
}

type PolicyText struct {
	Child   string `json:"child,omitempty"`
	Pet     string `json:"pet,omitempty"`
	Smoking string `json:"smoking,omitempty"`
	Damage  string `json:"damage,omitempty"`
	Group   string `json:"group,omitempty"`
}

type Pricing struct {
	BaseRate           float64            `json:"base_rate"`
	Currency           string             `json:"currency"`
	MinimumStay        int                `json:"minimum_stay"`
	SeasonalRates      []SeasonalRate     `json:"seasonal_rates,omitempty"`
	CancellationPolicy CancellationPolicy `json:"cancellation_policy"`
	CheckInTime        string             `json:"check_in_time"`
	CheckOutTime       string             `json:"check_out_time"`
	PaymentMethods     []string           `json:"payment_methods,omitempty"`
	Policies           PolicyText         `json:"policies"`
}

type Safety struct {
	FireSafety []string `json:"fire_safety,omitempty"`
	Security   []string `json:"security,omitempty"`
	Health     []string `json:"health,omitempty"`
	Emergency  []string `json:"emergency,omitempty"`
}

// Completeness is the share (0-100) of the four safety sets that are filled in.
func (s Safety) Completeness() int {
	filled := 0
	for _, set := range [][]string{s.FireSafety, s.Security, s.Health, s.Emergency} {
		if len(set) > 0 {
			filled++
		}
	}
	return filled * 100 / 4
}

type Place struct {
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Distance string `json:"distance,omitempty"`
}

type Nearby struct {
	Landmarks     []Place           `json:"landmarks,omitempty"`
	Dining        []Place           `json:"dining,omitempty"`
	Entertainment []Place           `json:"entertainment,omitempty"`
	Distances     map[string]string `json:"distances,omitempty"`
	Transport     map[string]string `json:"transport,omitempty"`
}

// NewWizardDocument returns an empty document carrying the form defaults.
func NewWizardDocument() WizardDocument {
	return WizardDocument{
		Pricing: Pricing{
			Currency:           DefaultCurrency,
			MinimumStay:        1,
			CancellationPolicy: CancellationModerate,
			CheckInTime:        DefaultCheckIn,
			CheckOutTime:       DefaultCheckOut,
		},
	}
}

const (
	DefaultCurrency      = "INR"
	DefaultCheckIn       = "14:00"
	DefaultCheckOut      = "11:00"
	DefaultPhotoCategory = "general"
)

// HasIdentity reports whether the document is worth persisting as a draft.
func (d WizardDocument) HasIdentity() bool {
	return strings.TrimSpace(d.Basic.Title) != "" && d.Basic.Category != ""
}

// Clone returns a deep copy that shares no slices or maps with d.
func (d WizardDocument) Clone() WizardDocument {
	b, err := json.Marshal(d)
	if err != nil {
		return d
	}
	var out WizardDocument
	if err := json.Unmarshal(b, &out); err != nil {
		return d
	}
	return out
}

func unionStrings(sets ...[]string) []string {
	seen := make(map[string]struct{}, 16)
	var out []string
	for _, set := range sets {
		for _, s := range set {
			t := strings.TrimSpace(s)
			if t == "" {
				continue
			}
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

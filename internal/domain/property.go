package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// PropertyRecord is a property row as returned by the entity gateway. It is
// kept loosely typed: older rows may lack newer sections or carry them in a
// different shape, and the converter degrades those to defaults.
type PropertyRecord map[string]any

func (r PropertyRecord) ID() string      { return recordString(r, "id") }
func (r PropertyRecord) OwnerID() string { return recordString(r, "owner_id") }
func (r PropertyRecord) Status() string  { return recordString(r, "status") }

func recordString(r PropertyRecord, k string) string {
	switch v := r[k].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	case int64:
		return fmt.Sprintf("%d", v)
	case int:
		return fmt.Sprintf("%d", v)
	}
	return ""
}

const (
	StatusDraft   = "draft"
	StatusPending = "pending"
	StatusActive  = "active"
)

// PropertyPayload is exactly the shape the entity gateway accepts on create and update.
type PropertyPayload struct {
	Title           string   `json:"title"`
	PropertyType    string   `json:"property_type"`
	PropertySubtype string   `json:"property_subtype,omitempty"`
	Description     string   `json:"description"`
	Address         string   `json:"address"`
	City            string   `json:"city"`
	State           string   `json:"state"`
	Country         string   `json:"country,omitempty"`
	PostalCode      string   `json:"postal_code,omitempty"`
	ContactName     string   `json:"contact_name,omitempty"`
	ContactPhone    string   `json:"contact_phone,omitempty"`
	ContactEmail    string   `json:"contact_email,omitempty"`
	Languages       []string `json:"languages"`
	StarRating      int      `json:"star_rating,omitempty"`

	RoomsCount        int    `json:"rooms_count"`
	CapacityPerRoom   int    `json:"capacity_per_room"`
	Bedrooms          int    `json:"bedrooms"`
	Bathrooms         int    `json:"bathrooms"`
	MaxGuests         int    `json:"max_guests"`
	DayPicnicCapacity int    `json:"day_picnic_capacity,omitempty"`
	DayPicnicDuration string `json:"day_picnic_duration,omitempty"`

	RoomTypes     []RoomType          `json:"room_types"`
	RoomAmenities map[string][]string `json:"room_amenities"`
	BedTypes      map[string]int      `json:"bed_types"`

	AmenityDetails AmenityDetails `json:"amenity_details"`
	// Deprecated: flat union of AmenityDetails kept for older consumers.
	Amenities []string `json:"amenities"`

	PricePerNight      float64        `json:"price_per_night"`
	Currency           string         `json:"currency"`
	MinimumStay        int            `json:"minimum_stay"`
	SeasonalPricing    []SeasonalRate `json:"seasonal_pricing"`
	CancellationPolicy string         `json:"cancellation_policy"`
	CheckInTime        string         `json:"check_in_time"`
	CheckOutTime       string         `json:"check_out_time"`
	PaymentMethods     []string       `json:"payment_methods"`
	Policies           PolicyText     `json:"policies"`

	SafetyFeatures SafetyFeatures `json:"safety_features"`
	Nearby         NearbyDetails  `json:"nearby"`

	// Deprecated: photo URLs in display order; photo records are authoritative.
	Images []string `json:"images"`

	Status string `json:"status"`
}

type AmenityDetails struct {
	Facilities    []string `json:"property_facilities"`
	RoomFeatures  []string `json:"room_features"`
	Recreation    []string `json:"recreation"`
	Accessibility []string `json:"accessibility"`
}

type SafetyFeatures struct {
	FireSafety []string `json:"fire_safety"`
	Security   []string `json:"security"`
	Health     []string `json:"health"`
	Emergency  []string `json:"emergency_procedures"`
	Score      int      `json:"completeness_score"`
}

type NearbyDetails struct {
	Landmarks        []Place           `json:"landmarks"`
	Dining           []Place           `json:"dining"`
	Entertainment    []Place           `json:"entertainment"`
	Distances        map[string]string `json:"distances"`
	TransportOptions map[string]string `json:"transport_options"`
}

// Record renders the payload as the gateway would echo it back, which lets
// callers feed a payload straight into the record-to-document mapping.
func (p PropertyPayload) Record() (PropertyRecord, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var rec PropertyRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

type PhotoRecord struct {
	ID           string `json:"id,omitempty"`
	PropertyID   string `json:"property_id"`
	ImageURL     string `json:"image_url"`
	Caption      string `json:"caption,omitempty"`
	AltText      string `json:"alt_text,omitempty"`
	Category     string `json:"category"`
	DisplayOrder int    `json:"display_order"`
	IsPrimary    bool   `json:"is_primary"`
}

// DraftRecord is a serialized wizard document plus the time it was last written.
type DraftRecord struct {
	Document   WizardDocument `json:"document"`
	Step       int            `json:"step"`
	PropertyID string         `json:"property_id,omitempty"`
	// Created marks a new listing whose create already reached the backend;
	// without it a PropertyID means the draft edits an existing listing.
	Created   bool      `json:"created,omitempty"`
	LastSaved time.Time `json:"lastSaved"`
}

type DraftSummary struct {
	UserID    string
	Title     string
	Category  Category
	Step      int
	LastSaved time.Time
}

// ListingSubmitted is published after a listing is created or updated through the wizard.
type ListingSubmitted struct {
	PropertyID  string `json:"property_id"`
	OwnerID     string `json:"owner_id"`
	Title       string `json:"title"`
	Category    string `json:"category"`
	Created     bool   `json:"created"`
	PhotoCount  int    `json:"photo_count"`
	SubmittedAt string `json:"submitted_at"`
}

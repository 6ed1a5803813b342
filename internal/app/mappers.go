package app

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"staylist/internal/domain"
)

/********** alias registries (single source of truth) **********/

var propertyAliases = map[string][]string{
	"title":         {"title", "name", "property_name"},
	"category":      {"property_type", "category", "type"},
	"subtype":       {"property_subtype", "subtype", "sub_type"},
	"description":   {"description", "long_description", "about"},
	"address":       {"address", "address.line", "street_address", "location.address"},
	"city":          {"city", "address.city", "location.city"},
	"state":         {"state", "address.state", "location.state"},
	"country":       {"country", "address.country", "location.country"},
	"postal_code":   {"postal_code", "pincode", "zip", "address.postal_code"},
	"contact_name":  {"contact_name", "contact.name"},
	"contact_phone": {"contact_phone", "contact.phone", "phone"},
	"contact_email": {"contact_email", "contact.email", "email"},
	"duration":      {"day_picnic_duration", "duration_category", "day_picnic.duration"},
	"currency":      {"currency", "pricing.currency"},
	"cancellation":  {"cancellation_policy", "policies.cancellation"},
	"check_in":      {"check_in_time", "check_in", "policies.check_in"},
	"check_out":     {"check_out_time", "check_out", "policies.check_out"},
	"child_policy":  {"policies.child", "child_policy"},
	"pet_policy":    {"policies.pet", "pet_policy"},
	"smoking":       {"policies.smoking", "smoking_policy"},
	"damage":        {"policies.damage", "damage_policy"},
	"group":         {"policies.group", "group_policy"},
}

var numericAliases = map[string][]string{
	"star_rating":         {"star_rating", "stars", "rating.stars"},
	"rooms_count":         {"rooms_count", "total_rooms", "rooms"},
	"capacity_per_room":   {"capacity_per_room", "guests_per_room"},
	"bedrooms":            {"bedrooms", "bedroom_count"},
	"bathrooms":           {"bathrooms", "bathroom_count"},
	"day_picnic_capacity": {"day_picnic_capacity", "day_picnic.capacity"},
	"price":               {"price_per_night", "base_price", "price"},
	"minimum_stay":        {"minimum_stay", "min_stay", "min_nights"},
}

// nestedAliases apply inside list elements (room types, seasonal rates).
var nestedAliases = map[string][]string{
	"room_type":    {"type", "name", "room_type"},
	"room_size":    {"size", "room_size"},
	"season_name":  {"name", "season", "label"},
	"season_start": {"start_date", "startDate", "from"},
	"season_end":   {"end_date", "endDate", "to"},
}

/********** tiny helpers **********/

// expandJSON decodes string values that hold encoded JSON objects or arrays,
// which is how some older rows carry their nested sections.
func expandJSON(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	t := strings.TrimSpace(s)
	if t == "" || (t[0] != '{' && t[0] != '[') {
		return v
	}
	var out any
	if err := json.Unmarshal([]byte(t), &out); err != nil {
		return v
	}
	return out
}

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := expandJSON(cur).(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return expandJSON(cur)
}

// lookupStr returns string at path or "".
func lookupStr(m map[string]any, path string) string {
	if v := lookupAny(m, path); v != nil {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// firstNonEmptyAlias: first non-empty string for a named alias set.
func firstNonEmptyAlias(m map[string]any, aliases map[string][]string, key string) *string {
	for _, p := range aliases[key] {
		if s := lookupStr(m, p); s != "" {
			return &s
		}
	}
	return nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func aliasStr(m map[string]any, key string) string {
	return deref(firstNonEmptyAlias(m, propertyAliases, key))
}

// toFloat: number from float64/int/string like "8,0".
func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(t, ",", "."))
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}

// getFloatFlexible: number from several paths.
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		if f, ok := toFloat(lookupAny(m, k)); ok {
			return &f
		}
	}
	return nil
}

// aliasInt reads a non-negative int for a numeric alias set, 0 when absent or malformed.
func aliasInt(m map[string]any, key string) int {
	f := getFloatFlexible(m, numericAliases[key]...)
	if f == nil || *f < 0 {
		return 0
	}
	return int(*f)
}

func aliasFloat(m map[string]any, key string) float64 {
	f := getFloatFlexible(m, numericAliases[key]...)
	if f == nil || *f < 0 {
		return 0
	}
	return *f
}

// stringsOf accepts []any with either strings or {url/src/name} objects, or
// a comma separated string. Empty input yields nil.
func stringsOf(v any) []string {
	var out []string
	switch t := expandJSON(v).(type) {
	case []any:
		for _, it := range t {
			switch e := it.(type) {
			case string:
				if s := strings.TrimSpace(e); s != "" {
					out = append(out, s)
				}
			case map[string]any:
				for _, k := range []string{"url", "src", "name"} {
					if s, ok := e[k].(string); ok && strings.TrimSpace(s) != "" {
						out = append(out, strings.TrimSpace(s))
						break
					}
				}
			}
		}
	case []string:
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, s := range strings.Split(t, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// firstSliceStrings: first non-empty string list found among paths.
func firstSliceStrings(m map[string]any, paths ...string) []string {
	for _, k := range paths {
		if out := stringsOf(lookupAny(m, k)); len(out) > 0 {
			return out
		}
	}
	return nil
}

func mapsOf(v any) []map[string]any {
	raw, ok := expandJSON(v).([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, it := range raw {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func firstMaps(m map[string]any, paths ...string) []map[string]any {
	for _, k := range paths {
		if out := mapsOf(lookupAny(m, k)); len(out) > 0 {
			return out
		}
	}
	return nil
}

func objectOf(m map[string]any, paths ...string) map[string]any {
	for _, k := range paths {
		if obj, ok := lookupAny(m, k).(map[string]any); ok && len(obj) > 0 {
			return obj
		}
	}
	return nil
}

func formatNumber(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func stringMapOf(m map[string]any, paths ...string) map[string]string {
	obj := objectOf(m, paths...)
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				out[k] = s
			}
		default:
			if f, ok := toFloat(t); ok {
				out[k] = formatNumber(f)
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func nonEmpty[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	return s
}

/********** record -> wizard document **********/

// ToWizardDocument flattens a persisted record and its photo records into
// the wizard layout. It never fails: missing or malformed sections fall
// back to the same defaults a new document starts with.
func ToWizardDocument(rec domain.PropertyRecord, photos []domain.PhotoRecord) domain.WizardDocument {
	m := map[string]any(rec)
	doc := domain.NewWizardDocument()
	if m == nil {
		return doc
	}

	doc.Basic = mapBasic(m)
	doc.Capacity = domain.Capacity{
		RoomsCount:        aliasInt(m, "rooms_count"),
		CapacityPerRoom:   aliasInt(m, "capacity_per_room"),
		Bedrooms:          aliasInt(m, "bedrooms"),
		Bathrooms:         aliasInt(m, "bathrooms"),
		DayPicnicCapacity: aliasInt(m, "day_picnic_capacity"),
		DayPicnicDuration: aliasStr(m, "duration"),
	}
	// stored max_guests is ignored; it is a derived value and may be stale
	doc.Capacity.MaxGuests = doc.Capacity.DerivedMaxGuests(doc.Basic.Category)

	doc.Rooms = domain.RoomComposition{
		RoomTypes:     mapRoomTypes(firstMaps(m, "room_types", "rooms_config")),
		RoomAmenities: mapRoomAmenities(objectOf(m, "room_amenities")),
		BedTypes:      mapBedTypes(objectOf(m, "bed_types", "beds")),
	}
	doc.Amenities = mapAmenities(m)
	mapPricing(m, &doc.Pricing)
	doc.Safety = domain.Safety{
		FireSafety: firstSliceStrings(m, "safety_features.fire_safety", "fire_safety"),
		Security:   firstSliceStrings(m, "safety_features.security", "security_features"),
		Health:     firstSliceStrings(m, "safety_features.health", "health_safety"),
		Emergency:  firstSliceStrings(m, "safety_features.emergency_procedures", "safety_features.emergency", "emergency_procedures"),
	}
	doc.Nearby = domain.Nearby{
		Landmarks:     mapPlaces(m, "nearby.landmarks", "nearby_landmarks"),
		Dining:        mapPlaces(m, "nearby.dining", "nearby_dining"),
		Entertainment: mapPlaces(m, "nearby.entertainment", "nearby_entertainment"),
		Distances:     stringMapOf(m, "nearby.distances", "distances"),
		Transport:     stringMapOf(m, "nearby.transport_options", "transport_options"),
	}
	doc.Photos = mapPhotos(m, photos)
	return doc
}

func mapBasic(m map[string]any) domain.BasicInfo {
	b := domain.BasicInfo{
		Title:        aliasStr(m, "title"),
		Subtype:      aliasStr(m, "subtype"),
		Description:  aliasStr(m, "description"),
		Address:      aliasStr(m, "address"),
		City:         aliasStr(m, "city"),
		State:        aliasStr(m, "state"),
		Country:      aliasStr(m, "country"),
		PostalCode:   aliasStr(m, "postal_code"),
		ContactName:  aliasStr(m, "contact_name"),
		ContactPhone: aliasStr(m, "contact_phone"),
		ContactEmail: aliasStr(m, "contact_email"),
		Languages:    firstSliceStrings(m, "languages", "spoken_languages", "languages_spoken"),
	}
	raw := aliasStr(m, "category")
	if c, ok := domain.ParseCategory(raw); ok {
		b.Category = c
	} else {
		// unknown categories are kept so the basic step can flag them
		b.Category = domain.Category(raw)
	}
	if stars := aliasInt(m, "star_rating"); stars >= 1 && stars <= 5 {
		b.StarRating = stars
	}
	return b
}

func mapRoomTypes(in []map[string]any) []domain.RoomType {
	out := make([]domain.RoomType, 0, len(in))
	for _, r := range in {
		rt := domain.RoomType{
			Type: deref(firstNonEmptyAlias(r, nestedAliases, "room_type")),
			Size: deref(firstNonEmptyAlias(r, nestedAliases, "room_size")),
		}
		if f := getFloatFlexible(r, "count", "quantity", "rooms"); f != nil && *f > 0 {
			rt.Count = int(*f)
		}
		if f := getFloatFlexible(r, "price_per_night", "price", "rate"); f != nil && *f > 0 {
			rt.PricePerNight = *f
		}
		if size := getFloatFlexible(r, "size"); rt.Size == "" && size != nil {
			rt.Size = formatNumber(*size)
		}
		if rt.Type == "" && rt.Count == 0 {
			continue
		}
		out = append(out, rt)
	}
	return nonEmpty(out)
}

func mapRoomAmenities(obj map[string]any) map[string][]string {
	out := make(map[string][]string, len(obj))
	for k, v := range obj {
		if list := stringsOf(v); len(list) > 0 {
			out[k] = list
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func mapBedTypes(obj map[string]any) map[string]int {
	out := make(map[string]int, len(obj))
	for k, v := range obj {
		if f, ok := toFloat(v); ok && f > 0 {
			out[k] = int(f)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func mapAmenities(m map[string]any) domain.Amenities {
	a := domain.Amenities{
		Facilities:    firstSliceStrings(m, "amenity_details.property_facilities", "amenity_details.facilities", "property_facilities"),
		RoomFeatures:  firstSliceStrings(m, "amenity_details.room_features", "room_features"),
		Recreation:    firstSliceStrings(m, "amenity_details.recreation", "recreation_amenities"),
		Accessibility: firstSliceStrings(m, "amenity_details.accessibility", "accessibility_features"),
	}
	// Fold the legacy flat column into the structured sets, then rebuild the
	// legacy view from them so both always agree.
	known := make(map[string]struct{})
	for _, s := range a.Structured() {
		known[s] = struct{}{}
	}
	for _, s := range firstSliceStrings(m, "amenities", "facilities") {
		if _, ok := known[s]; ok {
			continue
		}
		known[s] = struct{}{}
		a.Facilities = append(a.Facilities, s)
	}
	a.Legacy = a.Structured()
	return a
}

func mapPricing(m map[string]any, p *domain.Pricing) {
	p.BaseRate = aliasFloat(m, "price")
	if c := aliasStr(m, "currency"); c != "" {
		p.Currency = strings.ToUpper(c)
	}
	if n := aliasInt(m, "minimum_stay"); n >= 1 {
		p.MinimumStay = n
	}
	if c := domain.CancellationPolicy(strings.ToLower(strings.ReplaceAll(aliasStr(m, "cancellation"), "-", "_"))); c.Valid() {
		p.CancellationPolicy = c
	}
	if t := aliasStr(m, "check_in"); t != "" {
		p.CheckInTime = t
	}
	if t := aliasStr(m, "check_out"); t != "" {
		p.CheckOutTime = t
	}
	p.PaymentMethods = firstSliceStrings(m, "payment_methods", "accepted_payments")
	p.Policies = domain.PolicyText{
		Child:   aliasStr(m, "child_policy"),
		Pet:     aliasStr(m, "pet_policy"),
		Smoking: aliasStr(m, "smoking"),
		Damage:  aliasStr(m, "damage"),
		Group:   aliasStr(m, "group"),
	}
	var rates []domain.SeasonalRate
	for _, r := range firstMaps(m, "seasonal_pricing", "seasonal_rates") {
		sr := domain.SeasonalRate{
			Name:      deref(firstNonEmptyAlias(r, nestedAliases, "season_name")),
			StartDate: deref(firstNonEmptyAlias(r, nestedAliases, "season_start")),
			EndDate:   deref(firstNonEmptyAlias(r, nestedAliases, "season_end")),
		}
		if f := getFloatFlexible(r, "rate", "price", "price_per_night"); f != nil {
			sr.Rate = *f
		}
		if sr.Name == "" && sr.Rate == 0 {
			continue
		}
		rates = append(rates, sr)
	}
	p.SeasonalRates = rates
}

func mapPlaces(m map[string]any, paths ...string) []domain.Place {
	for _, k := range paths {
		raw, ok := lookupAny(m, k).([]any)
		if !ok || len(raw) == 0 {
			continue
		}
		out := make([]domain.Place, 0, len(raw))
		for _, it := range raw {
			switch e := it.(type) {
			case string:
				if s := strings.TrimSpace(e); s != "" {
					out = append(out, domain.Place{Name: s})
				}
			case map[string]any:
				pl := domain.Place{
					Name: lookupStr(e, "name"),
					Type: lookupStr(e, "type"),
				}
				if d := lookupStr(e, "distance"); d != "" {
					pl.Distance = d
				} else if f, ok := toFloat(e["distance"]); ok {
					pl.Distance = formatNumber(f)
				}
				if pl.Name != "" {
					out = append(out, pl)
				}
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// mapPhotos prefers dedicated photo records; a legacy images list is only
// used when none exist, with the first image marked primary.
func mapPhotos(m map[string]any, records []domain.PhotoRecord) domain.PhotoList {
	var out domain.PhotoList
	if len(records) > 0 {
		recs := make([]domain.PhotoRecord, len(records))
		copy(recs, records)
		sort.SliceStable(recs, func(i, j int) bool { return recs[i].DisplayOrder < recs[j].DisplayOrder })
		for _, r := range recs {
			if strings.TrimSpace(r.ImageURL) == "" {
				continue
			}
			out = append(out, domain.Photo{
				ImageURL:     r.ImageURL,
				Caption:      r.Caption,
				AltText:      r.AltText,
				Category:     r.Category,
				DisplayOrder: r.DisplayOrder,
				IsPrimary:    r.IsPrimary,
			})
		}
	} else {
		for i, u := range firstSliceStrings(m, "images", "photos", "image_urls") {
			out = append(out, domain.Photo{
				ImageURL:     u,
				Category:     domain.DefaultPhotoCategory,
				DisplayOrder: i,
				IsPrimary:    i == 0,
			})
		}
	}
	out.Normalize()
	return nonEmpty(out)
}

/********** wizard document -> payload **********/

// ToPersistedEntity produces exactly the payload the entity gateway accepts.
// max_guests is always re-derived; the legacy flat amenities and images
// columns are rebuilt from their structured equivalents.
func ToPersistedEntity(doc domain.WizardDocument) domain.PropertyPayload {
	b, c, p := doc.Basic, doc.Capacity, doc.Pricing
	return domain.PropertyPayload{
		Title:           strings.TrimSpace(b.Title),
		PropertyType:    string(b.Category),
		PropertySubtype: b.Subtype,
		Description:     b.Description,
		Address:         b.Address,
		City:            b.City,
		State:           b.State,
		Country:         b.Country,
		PostalCode:      b.PostalCode,
		ContactName:     b.ContactName,
		ContactPhone:    b.ContactPhone,
		ContactEmail:    b.ContactEmail,
		Languages:       b.Languages,
		StarRating:      b.StarRating,

		RoomsCount:        c.RoomsCount,
		CapacityPerRoom:   c.CapacityPerRoom,
		Bedrooms:          c.Bedrooms,
		Bathrooms:         c.Bathrooms,
		MaxGuests:         c.DerivedMaxGuests(b.Category),
		DayPicnicCapacity: c.DayPicnicCapacity,
		DayPicnicDuration: c.DayPicnicDuration,

		RoomTypes:     doc.Rooms.RoomTypes,
		RoomAmenities: doc.Rooms.RoomAmenities,
		BedTypes:      doc.Rooms.BedTypes,

		AmenityDetails: domain.AmenityDetails{
			Facilities:    doc.Amenities.Facilities,
			RoomFeatures:  doc.Amenities.RoomFeatures,
			Recreation:    doc.Amenities.Recreation,
			Accessibility: doc.Amenities.Accessibility,
		},
		Amenities: doc.Amenities.Structured(),

		PricePerNight:      p.BaseRate,
		Currency:           p.Currency,
		MinimumStay:        p.MinimumStay,
		SeasonalPricing:    p.SeasonalRates,
		CancellationPolicy: string(p.CancellationPolicy),
		CheckInTime:        p.CheckInTime,
		CheckOutTime:       p.CheckOutTime,
		PaymentMethods:     p.PaymentMethods,
		Policies:           p.Policies,

		SafetyFeatures: domain.SafetyFeatures{
			FireSafety: doc.Safety.FireSafety,
			Security:   doc.Safety.Security,
			Health:     doc.Safety.Health,
			Emergency:  doc.Safety.Emergency,
			Score:      doc.Safety.Completeness(),
		},
		Nearby: domain.NearbyDetails{
			Landmarks:        doc.Nearby.Landmarks,
			Dining:           doc.Nearby.Dining,
			Entertainment:    doc.Nearby.Entertainment,
			Distances:        doc.Nearby.Distances,
			TransportOptions: doc.Nearby.Transport,
		},
		Images: doc.Photos.URLs(),
		Status: domain.StatusPending,
	}
}

// ToPhotoRecords renders the document's photos as records for propertyID.
func ToPhotoRecords(doc domain.WizardDocument, propertyID string) []domain.PhotoRecord {
	photos := doc.Photos.Clone()
	photos.Normalize()
	out := make([]domain.PhotoRecord, 0, len(photos))
	for _, p := range photos {
		out = append(out, domain.PhotoRecord{
			PropertyID:   propertyID,
			ImageURL:     p.ImageURL,
			Caption:      p.Caption,
			AltText:      p.AltText,
			Category:     p.Category,
			DisplayOrder: p.DisplayOrder,
			IsPrimary:    p.IsPrimary,
		})
	}
	return out
}

package models

// LocationMode selects how a search identifies its destination.
type LocationMode string

const (
	ModePlace    LocationMode = "place"
	ModeFreeform LocationMode = "freeform"
)

// Occupancy is one room's guest composition.
type Occupancy struct {
	Adults   int   `json:"adults" validate:"min=1,max=10"`
	Children []int `json:"children,omitempty" validate:"omitempty,max=6,dive,min=0,max=17"`
}

// PriceEntry is the cheapest offer found for a hotel.
type PriceEntry struct {
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	RefundableTag string  `json:"refundableTag,omitempty"`
	TaxIncluded   *bool   `json:"taxIncluded,omitempty"`
}

// HotelDetail holds the secondary metadata filled in by enrichment.
// A nil field means the value is unknown.
type HotelDetail struct {
	Rating      *float64 `json:"rating,omitempty"`
	ReviewCount *int     `json:"reviewCount,omitempty"`
	StarRating  *float64 `json:"starRating,omitempty"`
}

// IsEmpty reports whether no field is known.
func (d HotelDetail) IsEmpty() bool {
	return d.Rating == nil && d.ReviewCount == nil && d.StarRating == nil
}

// IsComplete reports whether every field is known.
func (d HotelDetail) IsComplete() bool {
	return d.Rating != nil && d.ReviewCount != nil && d.StarRating != nil
}

// FillGaps copies fields from other only where d has none. Existing values always win.
// The second return value reports whether anything changed.
func (d HotelDetail) FillGaps(other HotelDetail) (HotelDetail, bool) {
	changed := false
	if d.Rating == nil && other.Rating != nil {
		v := *other.Rating
		d.Rating = &v
		changed = true
	}
	if d.ReviewCount == nil && other.ReviewCount != nil {
		v := *other.ReviewCount
		d.ReviewCount = &v
		changed = true
	}
	if d.StarRating == nil && other.StarRating != nil {
		v := *other.StarRating
		d.StarRating = &v
		changed = true
	}
	return d, changed
}

// Hotel is the minimal identity used for ordering and display.
type Hotel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// HotelSummary is one row of a filtered and sorted result view.
type HotelSummary struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Price      *PriceEntry `json:"price,omitempty"`
	Refundable bool        `json:"refundable"`
	Detail     HotelDetail `json:"detail"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

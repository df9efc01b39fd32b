package rates

import "encoding/json"

// Occupancy is one room in the upstream request.
type Occupancy struct {
	Adults   int   `json:"adults"`
	Children []int `json:"children,omitempty"`
}

// Request is the upstream hotel rates query.
type Request struct {
	PlaceID     string `json:"placeId,omitempty"`
	AISearch    string `json:"aiSearch,omitempty"`
	Checkin     string `json:"checkin"`
	Checkout    string `json:"checkout"`
	Currency    string `json:"currency"`
	Language    string `json:"language,omitempty"`
	Nationality string `json:"guestNationality"`

	Occupancies []Occupancy `json:"occupancies"`
	Timeout     int         `json:"timeout"`

	StarRating                []int    `json:"starRating,omitempty"`
	MinRating                 *float64 `json:"minRating,omitempty"`
	MinReviewsCount           *int     `json:"minReviewsCount,omitempty"`
	FacilityIDs               []int    `json:"facilities,omitempty"`
	StrictFacilitiesFiltering bool     `json:"strictFacilitiesFiltering,omitempty"`

	RefundableRatesOnly bool     `json:"refundableRatesOnly,omitempty"`
	Margin              *float64 `json:"margin,omitempty"`
	AdditionalMarkup    *float64 `json:"additionalMarkup,omitempty"`
	IncludeHotelData    bool     `json:"includeHotelData"`

	// APIKey selects the channel credential; it is sent as a header, never in the body.
	APIKey string `json:"-"`
}

// Response is the decoded upstream body. Raw keeps the original bytes so callers can pass
// the payload through untouched.
type Response struct {
	Data   []HotelRates    `json:"data"`
	Hotels []HotelInfo     `json:"hotels"`
	Raw    json.RawMessage `json:"-"`
}

// HotelRates lists the offers for one hotel.
type HotelRates struct {
	HotelID   string     `json:"hotelId"`
	RoomTypes []RoomType `json:"roomTypes"`
}

// RoomType groups the rates for one room configuration.
type RoomType struct {
	OfferID string `json:"offerId"`
	Rates   []Rate `json:"rates"`
}

// Rate is a single priced offer.
type Rate struct {
	RateID               string               `json:"rateId"`
	Name                 string               `json:"name"`
	RetailRate           RetailRate           `json:"retailRate"`
	CancellationPolicies CancellationPolicies `json:"cancellationPolicies"`
}

// RetailRate holds the price totals and tax breakdown.
type RetailRate struct {
	Total        []Amount `json:"total"`
	TaxesAndFees []TaxFee `json:"taxesAndFees"`
}

// Amount is a monetary value.
type Amount struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// TaxFee is one tax line; Included reports whether it is part of the total.
type TaxFee struct {
	Included    bool    `json:"included"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
}

// CancellationPolicies carries the refundability class of a rate.
type CancellationPolicies struct {
	RefundableTag string `json:"refundableTag"`
}

// HotelInfo is the inline hotel data returned alongside rates.
type HotelInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Rating      *float64 `json:"rating"`
	ReviewCount *int     `json:"reviewCount"`
	Stars       *float64 `json:"stars"`
}

package search

import (
	"encoding/json"
	"hotel-search-go/models"
	"hotel-search-go/services/pricing"
)

// Payload is the composed result of one search. A Payload stored in the result cache is
// shared between requests and must not be modified.
type Payload struct {
	Mode       models.LocationMode           `json:"mode"`
	Raw        json.RawMessage               `json:"rawUpstreamPayload,omitempty"`
	Prices     map[string]models.PriceEntry  `json:"pricesByHotelId"`
	Refundable map[string]bool               `json:"hasRefundableRateByHotelId"`
	Details    map[string]models.HotelDetail `json:"hotelDetailsByHotelId"`
	Promo      PromoConfig                   `json:"promoConfig"`

	// Hotels is the recommended display order with names.
	Hotels  []models.Hotel `json:"-"`
	Pricing pricing.Inputs `json:"-"`
	Key     string         `json:"-"`
}

// HotelIDs returns the ids of Hotels in order.
func (p *Payload) HotelIDs() []string {
	ids := make([]string, len(p.Hotels))
	for i, h := range p.Hotels {
		ids[i] = h.ID
	}
	return ids
}

// PromoConfig is the promotional banner attached to every payload.
type PromoConfig struct {
	Enabled         bool    `json:"enabled"`
	BannerText      string  `json:"bannerText,omitempty"`
	DiscountPercent float64 `json:"discountPercent,omitempty"`
}

// NewPromoConfig enables the banner when it has text or a discount.
func NewPromoConfig(text string, discountPercent float64) PromoConfig {
	return PromoConfig{
		Enabled:         text != "" || discountPercent > 0,
		BannerText:      text,
		DiscountPercent: discountPercent,
	}
}

// Package filtersort filters and orders hotel results for display.
package filtersort

import (
	"hotel-search-go/models"
	"hotel-search-go/utils"
	"math"
	"sort"
	"strings"
)

// SortOrder names a display ordering.
type SortOrder string

const (
	SortRecommended SortOrder = "recommended"
	SortPriceAsc    SortOrder = "price_asc"
	SortPriceDesc   SortOrder = "price_desc"
	SortRatingDesc  SortOrder = "rating_desc"
)

// ParseSortOrder maps a client value to a SortOrder. Unknown values select SortRecommended.
func ParseSortOrder(s string) SortOrder {
	switch SortOrder(strings.ToLower(strings.TrimSpace(s))) {
	case SortPriceAsc:
		return SortPriceAsc
	case SortPriceDesc:
		return SortPriceDesc
	case SortRatingDesc:
		return SortRatingDesc
	default:
		return SortRecommended
	}
}

// Criteria are the display filters and ordering. Nil bounds are not applied.
type Criteria struct {
	SortOrder      SortOrder
	MinPrice       *float64
	MaxPrice       *float64
	Name           string
	RefundableOnly bool
}

// Indices are the per-hotel lookups a view is computed from.
type Indices struct {
	Prices     map[string]models.PriceEntry
	Refundable map[string]bool
	Details    map[string]models.HotelDetail
}

// Segments is a filtered primary result list followed by the "show all properties" remainder.
type Segments struct {
	Primary   []models.HotelSummary `json:"hotels"`
	Secondary []models.HotelSummary `json:"otherHotels"`
}

// Apply filters hotels by every criterion and sorts them stably. The input slice is not
// modified.
func Apply(hotels []models.Hotel, idx Indices, c Criteria) []models.HotelSummary {
	out := make([]models.HotelSummary, 0, len(hotels))

	for _, h := range hotels {
		price, hasPrice := idx.Prices[h.ID]
		refundable := idx.Refundable[h.ID]

		if c.RefundableOnly && !refundable {
			continue
		}
		if c.MinPrice != nil && priceOr(price, hasPrice, 0) < *c.MinPrice {
			continue
		}
		if c.MaxPrice != nil && priceOr(price, hasPrice, math.Inf(1)) > *c.MaxPrice {
			continue
		}
		if !utils.ContainsNormalized(h.Name, c.Name) {
			continue
		}

		summary := models.HotelSummary{
			ID:         h.ID,
			Name:       h.Name,
			Refundable: refundable,
			Detail:     idx.Details[h.ID],
		}
		if hasPrice {
			p := price
			summary.Price = &p
		}
		out = append(out, summary)
	}

	sortSummaries(out, ParseSortOrder(string(c.SortOrder)))
	return out
}

// ApplyWithSecondary computes the primary view and a trailing segment of secondary hotels
// not already in the primary list. Both segments use the same criteria and the primary
// indices win for hotels known to both.
func ApplyWithSecondary(primary []models.Hotel, primaryIdx Indices, secondary []models.Hotel, secondaryIdx Indices, c Criteria) Segments {
	seen := make(map[string]struct{}, len(primary))
	for _, h := range primary {
		seen[h.ID] = struct{}{}
	}

	var remainder []models.Hotel
	for _, h := range secondary {
		if _, dup := seen[h.ID]; dup {
			continue
		}
		seen[h.ID] = struct{}{}
		remainder = append(remainder, h)
	}

	return Segments{
		Primary:   Apply(dedupe(primary), primaryIdx, c),
		Secondary: Apply(remainder, secondaryIdx, c),
	}
}

func dedupe(hotels []models.Hotel) []models.Hotel {
	seen := make(map[string]struct{}, len(hotels))
	out := make([]models.Hotel, 0, len(hotels))
	for _, h := range hotels {
		if _, dup := seen[h.ID]; dup {
			continue
		}
		seen[h.ID] = struct{}{}
		out = append(out, h)
	}
	return out
}

func priceOr(p models.PriceEntry, ok bool, missing float64) float64 {
	if !ok {
		return missing
	}
	return p.Amount
}

func sortSummaries(s []models.HotelSummary, order SortOrder) {
	switch order {
	case SortPriceAsc:
		sort.SliceStable(s, func(i, j int) bool {
			return summaryPrice(s[i], math.Inf(1)) < summaryPrice(s[j], math.Inf(1))
		})
	case SortPriceDesc:
		sort.SliceStable(s, func(i, j int) bool {
			return summaryPrice(s[i], 0) > summaryPrice(s[j], 0)
		})
	case SortRatingDesc:
		sort.SliceStable(s, func(i, j int) bool {
			return summaryRating(s[i]) > summaryRating(s[j])
		})
	}
}

func summaryPrice(s models.HotelSummary, missing float64) float64 {
	if s.Price == nil {
		return missing
	}
	return s.Price.Amount
}

func summaryRating(s models.HotelSummary) float64 {
	if s.Detail.Rating == nil {
		return 0
	}
	return *s.Detail.Rating
}

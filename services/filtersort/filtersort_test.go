package filtersort

import (
	"hotel-search-go/models"
	"reflect"
	"testing"
)

func ids(s []models.HotelSummary) []string {
	out := make([]string, len(s))
	for i, h := range s {
		out[i] = h.ID
	}
	return out
}

func hotels(ids ...string) []models.Hotel {
	out := make([]models.Hotel, len(ids))
	for i, id := range ids {
		out[i] = models.Hotel{ID: id, Name: "Hotel " + id}
	}
	return out
}

func price(amount float64) models.PriceEntry {
	return models.PriceEntry{Amount: amount, Currency: "USD"}
}

func TestPriceSortWithGaps(t *testing.T) {
	idx := Indices{Prices: map[string]models.PriceEntry{"A": price(100), "C": price(50)}}

	tests := []struct {
		order    SortOrder
		expected []string
	}{
		{SortPriceAsc, []string{"C", "A", "B"}},
		{SortPriceDesc, []string{"A", "C", "B"}},
		{SortRecommended, []string{"A", "B", "C"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.order), func(t *testing.T) {
			got := ids(Apply(hotels("A", "B", "C"), idx, Criteria{SortOrder: tt.order}))
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestRecommendedKeepsInputOrder(t *testing.T) {
	idx := Indices{
		Prices: map[string]models.PriceEntry{"h1": price(300), "h2": price(10), "h3": price(150)},
		Details: map[string]models.HotelDetail{
			"h1": {Rating: models.Float(6.1)},
			"h3": {Rating: models.Float(9.9)},
		},
	}
	input := hotels("h1", "h2", "h3", "h4")

	got := ids(Apply(input, idx, Criteria{SortOrder: SortRecommended}))
	if !reflect.DeepEqual(got, []string{"h1", "h2", "h3", "h4"}) {
		t.Errorf("Expected input order, got %v", got)
	}
	if input[0].ID != "h1" {
		t.Error("Expected input slice to be untouched")
	}
}

func TestSortIsStable(t *testing.T) {
	idx := Indices{
		Prices: map[string]models.PriceEntry{"a": price(80), "b": price(80), "c": price(80), "d": price(20)},
		Details: map[string]models.HotelDetail{
			"b": {Rating: models.Float(7)},
			"c": {Rating: models.Float(7)},
		},
	}

	tests := []struct {
		order    SortOrder
		expected []string
	}{
		{SortPriceAsc, []string{"d", "a", "b", "c"}},
		{SortPriceDesc, []string{"a", "b", "c", "d"}},
		{SortRatingDesc, []string{"b", "c", "a", "d"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.order), func(t *testing.T) {
			got := ids(Apply(hotels("a", "b", "c", "d"), idx, Criteria{SortOrder: tt.order}))
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestRatingSortMissingLast(t *testing.T) {
	idx := Indices{Details: map[string]models.HotelDetail{
		"x": {Rating: models.Float(7.5)},
		"z": {Rating: models.Float(9.1)},
	}}

	got := ids(Apply(hotels("w", "x", "y", "z"), idx, Criteria{SortOrder: SortRatingDesc}))
	if !reflect.DeepEqual(got, []string{"z", "x", "w", "y"}) {
		t.Errorf("Expected [z x w y], got %v", got)
	}
}

func TestFilterConjunction(t *testing.T) {
	idx := Indices{
		Prices:     map[string]models.PriceEntry{"cheapRefundable": price(50), "pricyNonRefundable": price(100), "pricyRefundable": price(100)},
		Refundable: map[string]bool{"cheapRefundable": true, "pricyRefundable": true},
	}
	minPrice := 60.0

	got := ids(Apply(hotels("cheapRefundable", "pricyNonRefundable", "pricyRefundable"), idx, Criteria{RefundableOnly: true, MinPrice: &minPrice}))
	if !reflect.DeepEqual(got, []string{"pricyRefundable"}) {
		t.Errorf("Expected [pricyRefundable], got %v", got)
	}
}

func TestPriceBounds(t *testing.T) {
	idx := Indices{Prices: map[string]models.PriceEntry{"a": price(50), "b": price(100), "c": price(150)}}
	f := func(v float64) *float64 { return &v }

	tests := []struct {
		name     string
		min, max *float64
		expected []string
	}{
		{"no bounds keeps unpriced", nil, nil, []string{"a", "b", "c", "none"}},
		{"inclusive min", f(100), nil, []string{"b", "c"}},
		{"inclusive max", nil, f(100), []string{"a", "b"}},
		{"range", f(60), f(140), []string{"b"}},
		{"zero min excludes nothing priced", f(0), nil, []string{"a", "b", "c", "none"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Apply(hotels("a", "b", "c", "none"), idx, Criteria{MinPrice: tt.min, MaxPrice: tt.max}))
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestNameFilter(t *testing.T) {
	input := []models.Hotel{
		{ID: "1", Name: "Hôtel Le Méridien"},
		{ID: "2", Name: "Harbour Lodge"},
		{ID: "3", Name: "MERIDIAN SUITES"},
	}

	tests := []struct {
		name     string
		query    string
		expected []string
	}{
		{"diacritics ignored", "meridien", []string{"1"}},
		{"case ignored", "lodge", []string{"2"}},
		{"accented query", "HÔTEL", []string{"1"}},
		{"blank query", "   ", []string{"1", "2", "3"}},
		{"no match", "plaza", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Apply(input, Indices{}, Criteria{Name: tt.query}))
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestSummaryCarriesIndices(t *testing.T) {
	idx := Indices{
		Prices:     map[string]models.PriceEntry{"a": price(42)},
		Refundable: map[string]bool{"a": true},
		Details:    map[string]models.HotelDetail{"a": {ReviewCount: models.Int(12)}},
	}

	got := Apply(hotels("a", "b"), idx, Criteria{})
	if got[0].Price == nil || got[0].Price.Amount != 42 || !got[0].Refundable || *got[0].Detail.ReviewCount != 12 {
		t.Errorf("Unexpected summary %+v", got[0])
	}
	if got[1].Price != nil || got[1].Refundable || !got[1].Detail.IsEmpty() {
		t.Errorf("Expected empty summary for b, got %+v", got[1])
	}
}

func TestApplyWithSecondary(t *testing.T) {
	primaryIdx := Indices{Prices: map[string]models.PriceEntry{"a": price(100), "b": price(80)}}
	secondaryIdx := Indices{Prices: map[string]models.PriceEntry{"a": price(1), "c": price(70), "d": price(200)}}

	segments := ApplyWithSecondary(
		hotels("a", "b"), primaryIdx,
		hotels("c", "a", "d"), secondaryIdx,
		Criteria{SortOrder: SortPriceAsc},
	)

	if got := ids(segments.Primary); !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Errorf("Expected primary [b a], got %v", got)
	}
	if got := ids(segments.Secondary); !reflect.DeepEqual(got, []string{"c", "d"}) {
		t.Errorf("Expected secondary [c d], got %v", got)
	}
	if segments.Primary[1].Price.Amount != 100 {
		t.Errorf("Expected primary price to win, got %v", segments.Primary[1].Price.Amount)
	}
}

func TestApplyWithSecondaryFiltersRemainder(t *testing.T) {
	maxPrice := 150.0
	segments := ApplyWithSecondary(
		hotels("a"), Indices{Prices: map[string]models.PriceEntry{"a": price(100)}},
		hotels("a", "b", "c"), Indices{Prices: map[string]models.PriceEntry{"b": price(120), "c": price(900)}},
		Criteria{MaxPrice: &maxPrice},
	)

	if got := ids(segments.Secondary); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("Expected secondary [b], got %v", got)
	}
}

func TestParseSortOrder(t *testing.T) {
	tests := []struct {
		input    string
		expected SortOrder
	}{
		{"price_asc", SortPriceAsc},
		{" PRICE_DESC ", SortPriceDesc},
		{"rating_desc", SortRatingDesc},
		{"recommended", SortRecommended},
		{"", SortRecommended},
		{"distance", SortRecommended},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseSortOrder(tt.input); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

package search

import (
	"context"
	"errors"
	"hotel-search-go/models"
	"hotel-search-go/services/pricing"
	"hotel-search-go/services/providers"
	"hotel-search-go/services/providers/rates"
	"net/http"
	"sync"
	"testing"
	"time"
)

type fakeRates struct {
	mu         sync.Mutex
	calls      []rates.Request
	primary    func(ctx context.Context) (*rates.Response, error)
	refundable func(ctx context.Context) (*rates.Response, error)
}

func (f *fakeRates) SearchRates(ctx context.Context, req rates.Request) (*rates.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if req.RefundableRatesOnly {
		if f.refundable == nil {
			return &rates.Response{}, nil
		}
		return f.refundable(ctx)
	}
	return f.primary(ctx)
}

func (f *fakeRates) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func respond(resp *rates.Response) func(context.Context) (*rates.Response, error) {
	return func(context.Context) (*rates.Response, error) { return resp, nil }
}

func fail(err error) func(context.Context) (*rates.Response, error) {
	return func(context.Context) (*rates.Response, error) { return nil, err }
}

func rate(amount float64, currency, tag string, taxes ...rates.TaxFee) rates.Rate {
	return rates.Rate{
		RetailRate: rates.RetailRate{
			Total:        []rates.Amount{{Amount: amount, Currency: currency}},
			TaxesAndFees: taxes,
		},
		CancellationPolicies: rates.CancellationPolicies{RefundableTag: tag},
	}
}

func hotelWithRates(id string, rs ...rates.Rate) rates.HotelRates {
	return rates.HotelRates{HotelID: id, RoomTypes: []rates.RoomType{{OfferID: id + "-room", Rates: rs}}}
}

func TestAggregatePicksCheapestRate(t *testing.T) {
	primary := &rates.Response{
		Data: []rates.HotelRates{
			hotelWithRates("h1", rate(120, "USD", "NRFN"), rate(95, "USD", "RFN")),
			{HotelID: "h2", RoomTypes: []rates.RoomType{
				{Rates: []rates.Rate{rate(150, "USD", "NRFN")}},
				{Rates: []rates.Rate{rate(80, "USD", "NRFN")}},
			}},
			hotelWithRates("h3", rate(70, "USD", "first"), rate(70, "USD", "second")),
		},
	}
	refundable := &rates.Response{Data: []rates.HotelRates{hotelWithRates("h1", rate(95, "USD", "RFN"))}}

	agg := NewAggregator(AggregatorConfig{Rates: &fakeRates{primary: respond(primary), refundable: respond(refundable)}})
	payload, err := agg.Aggregate(context.Background(), mustQuery(t, validRequest()), pricing.Inputs{})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	tests := []struct {
		hotel  string
		amount float64
		tag    string
	}{
		{"h1", 95, "RFN"},
		{"h2", 80, "NRFN"},
		{"h3", 70, "first"},
	}
	for _, tt := range tests {
		t.Run(tt.hotel, func(t *testing.T) {
			entry, ok := payload.Prices[tt.hotel]
			if !ok {
				t.Fatalf("Expected price for %s", tt.hotel)
			}
			if entry.Amount != tt.amount || entry.RefundableTag != tt.tag {
				t.Errorf("Expected %v/%s, got %v/%s", tt.amount, tt.tag, entry.Amount, entry.RefundableTag)
			}
		})
	}

	if !payload.Refundable["h1"] {
		t.Error("Expected h1 to be refundable")
	}
	if payload.Refundable["h2"] {
		t.Error("Expected h2 not to be refundable")
	}
	if string(payload.Raw) != "" {
		t.Errorf("Expected raw payload from fake to be empty, got %s", payload.Raw)
	}
}

func TestAggregateTaxIncluded(t *testing.T) {
	primary := &rates.Response{
		Data: []rates.HotelRates{
			hotelWithRates("none", rate(100, "USD", "")),
			hotelWithRates("all", rate(100, "USD", "", rates.TaxFee{Included: true}, rates.TaxFee{Included: true})),
			hotelWithRates("excluded", rate(100, "USD", "", rates.TaxFee{Included: true}, rates.TaxFee{Included: false})),
		},
	}

	agg := NewAggregator(AggregatorConfig{Rates: &fakeRates{primary: respond(primary)}})
	payload, err := agg.Aggregate(context.Background(), mustQuery(t, validRequest()), pricing.Inputs{})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	if payload.Prices["none"].TaxIncluded != nil {
		t.Error("Expected unknown tax inclusion without tax lines")
	}
	if v := payload.Prices["all"].TaxIncluded; v == nil || !*v {
		t.Error("Expected tax included when every line is included")
	}
	if v := payload.Prices["excluded"].TaxIncluded; v == nil || *v {
		t.Error("Expected tax not included when a line is excluded")
	}
}

func TestAggregateCurrencyFallback(t *testing.T) {
	primary := &rates.Response{Data: []rates.HotelRates{hotelWithRates("h1", rate(100, "", ""))}}
	req := validRequest()
	req.Currency = "EUR"

	agg := NewAggregator(AggregatorConfig{Rates: &fakeRates{primary: respond(primary)}})
	payload, err := agg.Aggregate(context.Background(), mustQuery(t, req), pricing.Inputs{})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if got := payload.Prices["h1"].Currency; got != "EUR" {
		t.Errorf("Expected EUR, got %q", got)
	}
}

func TestAggregateNoRates(t *testing.T) {
	primary := &rates.Response{
		Hotels: []rates.HotelInfo{{ID: "h1"}, {ID: "h2"}, {ID: "h3"}},
		Data: []rates.HotelRates{
			{HotelID: "h1"},
			hotelWithRates("h2", rate(0, "USD", "")),
			hotelWithRates("h3", rates.Rate{}),
		},
	}

	agg := NewAggregator(AggregatorConfig{Rates: &fakeRates{primary: respond(primary)}})
	_, err := agg.Aggregate(context.Background(), mustQuery(t, validRequest()), pricing.Inputs{})

	var searchErr *Error
	if !errors.As(err, &searchErr) {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if searchErr.Code != CodeNoRates {
		t.Errorf("Expected %s, got %s", CodeNoRates, searchErr.Code)
	}
}

func TestAggregateEmptyResultIsNotAnError(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{Rates: &fakeRates{primary: respond(&rates.Response{})}})
	payload, err := agg.Aggregate(context.Background(), mustQuery(t, validRequest()), pricing.Inputs{})
	if err != nil {
		t.Fatalf("Expected empty success, got %v", err)
	}
	if len(payload.Hotels) != 0 || len(payload.Prices) != 0 {
		t.Errorf("Expected empty payload, got %+v", payload)
	}
}

func TestAggregateRefundableFailureIsAbsorbed(t *testing.T) {
	primary := &rates.Response{Data: []rates.HotelRates{hotelWithRates("h1", rate(100, "USD", "RFN"))}}
	fake := &fakeRates{
		primary:    respond(primary),
		refundable: fail(providers.NewUpstreamError("rates", http.StatusInternalServerError, "boom", nil)),
	}

	agg := NewAggregator(AggregatorConfig{Rates: fake})
	payload, err := agg.Aggregate(context.Background(), mustQuery(t, validRequest()), pricing.Inputs{})
	if err != nil {
		t.Fatalf("Expected refundable failure to be absorbed, got %v", err)
	}
	if len(payload.Refundable) != 0 {
		t.Errorf("Expected empty refundability index, got %v", payload.Refundable)
	}
	if _, ok := payload.Prices["h1"]; !ok {
		t.Error("Expected primary prices to survive")
	}
}

func TestAggregatePrimaryFailureFailsSearch(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code Code
	}{
		{"server error", providers.NewUpstreamError("rates", http.StatusBadGateway, "bad gateway", nil), CodeSearchFailed},
		{"client error", providers.NewUpstreamError("rates", http.StatusBadRequest, "invalid occupancy", nil), CodeInvalidParams},
		{"gateway timeout", providers.NewUpstreamError("rates", http.StatusGatewayTimeout, "upstream", nil), CodeTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeRates{
				primary:    fail(tt.err),
				refundable: respond(&rates.Response{Data: []rates.HotelRates{{HotelID: "h1"}}}),
			}
			agg := NewAggregator(AggregatorConfig{Rates: fake})
			payload, err := agg.Aggregate(context.Background(), mustQuery(t, validRequest()), pricing.Inputs{})
			if payload != nil {
				t.Error("Expected no payload on primary failure")
			}
			var searchErr *Error
			if !errors.As(err, &searchErr) {
				t.Fatalf("Expected *Error, got %v", err)
			}
			if searchErr.Code != tt.code {
				t.Errorf("Expected %s, got %s", tt.code, searchErr.Code)
			}
		})
	}
}

func TestAggregateTimeout(t *testing.T) {
	blocking := func(ctx context.Context) (*rates.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	agg := NewAggregator(AggregatorConfig{Rates: &fakeRates{primary: blocking, refundable: blocking}})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := agg.Aggregate(ctx, mustQuery(t, validRequest()), pricing.Inputs{})
	var searchErr *Error
	if !errors.As(err, &searchErr) {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if searchErr.Code != CodeTimeout {
		t.Errorf("Expected %s, got %s", CodeTimeout, searchErr.Code)
	}
}

func TestAggregateBuildsBothRequests(t *testing.T) {
	margin := 15.0
	fake := &fakeRates{primary: respond(&rates.Response{})}
	req := validRequest()
	req.Mode = "freeform"
	req.Query = "boutique hotels in Lisbon"
	req.StarRating = []int{4, 5}
	timeout := 7.5
	req.Timeout = &timeout

	agg := NewAggregator(AggregatorConfig{Rates: fake})
	_, err := agg.Aggregate(context.Background(), mustQuery(t, req), pricing.Inputs{Channel: "mobile", APIKey: "key-mobile", Margin: &margin})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	if fake.callCount() != 2 {
		t.Fatalf("Expected 2 upstream calls, got %d", fake.callCount())
	}

	var refundableCalls int
	for _, call := range fake.calls {
		if call.RefundableRatesOnly {
			refundableCalls++
			if call.IncludeHotelData {
				t.Error("Expected refundable call to skip hotel data")
			}
		} else if !call.IncludeHotelData {
			t.Error("Expected primary call to include hotel data")
		}
		if call.AISearch != "boutique hotels in Lisbon" || call.PlaceID != "" {
			t.Errorf("Expected freeform search, got place=%q ai=%q", call.PlaceID, call.AISearch)
		}
		if call.APIKey != "key-mobile" {
			t.Errorf("Expected channel API key, got %q", call.APIKey)
		}
		if call.Margin == nil || *call.Margin != 15 {
			t.Errorf("Expected margin 15, got %v", call.Margin)
		}
		if call.Timeout != 8 {
			t.Errorf("Expected timeout rounded up to 8, got %d", call.Timeout)
		}
		if len(call.StarRating) != 2 {
			t.Errorf("Expected star ratings passed through, got %v", call.StarRating)
		}
	}
	if refundableCalls != 1 {
		t.Errorf("Expected exactly one refundable-only call, got %d", refundableCalls)
	}
}

func TestAggregateInlineDetailsAndOrder(t *testing.T) {
	primary := &rates.Response{
		Hotels: []rates.HotelInfo{
			{ID: "h2", Name: "Harbour View", Rating: models.Float(8.5), ReviewCount: models.Int(412)},
			{ID: "h1", Name: "Old Town Inn"},
		},
		Data: []rates.HotelRates{
			hotelWithRates("h1", rate(90, "USD", "")),
			hotelWithRates("h2", rate(110, "USD", "")),
		},
	}
	agg := NewAggregator(AggregatorConfig{
		Rates: &fakeRates{primary: respond(primary)},
		Promo: NewPromoConfig("Autumn sale", 10),
	})

	payload, err := agg.Aggregate(context.Background(), mustQuery(t, validRequest()), pricing.Inputs{Channel: "web"})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	if ids := payload.HotelIDs(); len(ids) != 2 || ids[0] != "h2" || ids[1] != "h1" {
		t.Errorf("Expected recommended order [h2 h1], got %v", ids)
	}
	if payload.Hotels[0].Name != "Harbour View" {
		t.Errorf("Expected hotel name, got %q", payload.Hotels[0].Name)
	}
	detail, ok := payload.Details["h2"]
	if !ok || *detail.Rating != 8.5 || *detail.ReviewCount != 412 || detail.StarRating != nil {
		t.Errorf("Unexpected inline detail %+v", detail)
	}
	if _, ok := payload.Details["h1"]; ok {
		t.Error("Expected no detail entry for a hotel without inline data")
	}
	if !payload.Promo.Enabled || payload.Promo.BannerText != "Autumn sale" {
		t.Errorf("Unexpected promo %+v", payload.Promo)
	}
	if payload.Pricing.Channel != "web" {
		t.Errorf("Expected pricing inputs on payload, got %+v", payload.Pricing)
	}
}

package search

import (
	"context"
	"fmt"
	"hotel-search-go/logcolors"
	"hotel-search-go/models"
	"hotel-search-go/services/pricing"
	"hotel-search-go/services/providers/rates"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	callPrimary    = "primary"
	callRefundable = "refundable"
)

// RateSearcher is the upstream rate search provider.
type RateSearcher interface {
	SearchRates(ctx context.Context, req rates.Request) (*rates.Response, error)
}

// Observer receives search pipeline events. Methods may be called concurrently.
type Observer interface {
	ObserveUpstream(call string, elapsed time.Duration, err error)
	ObserveCache(hit bool)
	ObserveOutcome(code string)
}

type nopObserver struct{}

func (nopObserver) ObserveUpstream(string, time.Duration, error) {}
func (nopObserver) ObserveCache(bool)                            {}
func (nopObserver) ObserveOutcome(string)                        {}

// AggregatorConfig configures an Aggregator.
type AggregatorConfig struct {
	Rates    RateSearcher
	Promo    PromoConfig
	Observer Observer
	Clock    clockwork.Clock
}

// Aggregator fuses the primary and refundable-only rate searches into one Payload.
type Aggregator struct {
	rates    RateSearcher
	promo    PromoConfig
	observer Observer
	clock    clockwork.Clock
}

// NewAggregator creates an Aggregator.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Aggregator{
		rates:    cfg.Rates,
		promo:    cfg.Promo,
		observer: cfg.Observer,
		clock:    cfg.Clock,
	}
}

// Aggregate runs both upstream searches under the query timeout. A failed refundable search
// leaves the refundability index empty; a failed primary search fails the whole call with a
// classified *Error.
func (a *Aggregator) Aggregate(ctx context.Context, q Query, p pricing.Inputs) (*Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, q.Timeout())
	defer cancel()

	var primary, refundable *rates.Response
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		resp, err := a.call(gctx, callPrimary, buildRatesRequest(q, p, false))
		if err != nil {
			return fmt.Errorf("primary rate search: %w", err)
		}
		primary = resp
		return nil
	})

	g.Go(func() error {
		resp, err := a.call(gctx, callRefundable, buildRatesRequest(q, p, true))
		if err != nil {
			log.Warnf("%s Refundable rate search failed, continuing without refundability: %v", logcolors.LogAggregate, err)
			return nil
		}
		refundable = resp
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, Classify(err)
	}
	if primary == nil {
		primary = &rates.Response{}
	}

	order := RecommendedOrder(primary)
	payload := &Payload{
		Mode:       q.Mode(),
		Raw:        primary.Raw,
		Prices:     priceIndex(primary, q.Currency()),
		Refundable: refundabilityIndex(refundable),
		Details:    inlineDetails(primary),
		Promo:      a.promo,
		Hotels:     hotelsInOrder(order, primary),
		Pricing:    p,
	}

	if len(order) > 0 && len(payload.Prices) == 0 {
		return nil, NewError(CodeNoRates, "No rooms are available for the selected dates", nil)
	}

	log.Infof("%s %d hotels, %d priced, %d refundable", logcolors.LogAggregate,
		len(payload.Hotels), len(payload.Prices), len(payload.Refundable))
	return payload, nil
}

func (a *Aggregator) call(ctx context.Context, name string, req rates.Request) (*rates.Response, error) {
	start := a.clock.Now()
	resp, err := a.rates.SearchRates(ctx, req)
	a.observer.ObserveUpstream(name, a.clock.Since(start), err)
	return resp, err
}

// buildRatesRequest maps a query onto the upstream request body.
func buildRatesRequest(q Query, p pricing.Inputs, refundableOnly bool) rates.Request {
	req := rates.Request{
		Checkin:                   q.Checkin(),
		Checkout:                  q.Checkout(),
		Currency:                  q.Currency(),
		Language:                  q.Language(),
		Nationality:               q.Nationality(),
		Timeout:                   int(math.Ceil(q.Timeout().Seconds())),
		StarRating:                q.StarRatings(),
		FacilityIDs:               q.Facilities(),
		StrictFacilitiesFiltering: q.StrictFacilityFiltering(),
		RefundableRatesOnly:       refundableOnly,
		Margin:                    p.Margin,
		AdditionalMarkup:          p.Markup,
		IncludeHotelData:          !refundableOnly,
		APIKey:                    p.APIKey,
	}

	if q.Mode() == models.ModePlace {
		req.PlaceID = q.LocationID()
	} else {
		req.AISearch = q.LocationID()
	}
	if v, ok := q.MinRating(); ok {
		req.MinRating = &v
	}
	if v, ok := q.MinReviews(); ok {
		req.MinReviewsCount = &v
	}

	occupancies := q.Occupancies()
	req.Occupancies = make([]rates.Occupancy, len(occupancies))
	for i, o := range occupancies {
		req.Occupancies[i] = rates.Occupancy{Adults: o.Adults, Children: o.Children}
	}
	return req
}

// priceIndex picks the cheapest extractable rate per hotel. On equal totals the first rate
// in upstream order wins.
func priceIndex(resp *rates.Response, fallbackCurrency string) map[string]models.PriceEntry {
	out := make(map[string]models.PriceEntry)
	for _, hotel := range resp.Data {
		if hotel.HotelID == "" {
			continue
		}
		if entry, ok := cheapestRate(hotel, fallbackCurrency); ok {
			if existing, dup := out[hotel.HotelID]; dup && existing.Amount <= entry.Amount {
				continue
			}
			out[hotel.HotelID] = entry
		}
	}
	return out
}

func cheapestRate(hotel rates.HotelRates, fallbackCurrency string) (models.PriceEntry, bool) {
	var (
		best  models.PriceEntry
		found bool
	)
	for _, room := range hotel.RoomTypes {
		for _, rate := range room.Rates {
			entry, ok := extractPrice(rate, fallbackCurrency)
			if !ok {
				continue
			}
			if !found || entry.Amount < best.Amount {
				best = entry
				found = true
			}
		}
	}
	return best, found
}

// extractPrice reads the first positive total of a rate. TaxIncluded is left unknown when the
// rate carries no tax lines.
func extractPrice(rate rates.Rate, fallbackCurrency string) (models.PriceEntry, bool) {
	for _, total := range rate.RetailRate.Total {
		if total.Amount <= 0 || math.IsNaN(total.Amount) || math.IsInf(total.Amount, 0) {
			continue
		}
		entry := models.PriceEntry{
			Amount:        total.Amount,
			Currency:      total.Currency,
			RefundableTag: rate.CancellationPolicies.RefundableTag,
		}
		if entry.Currency == "" {
			entry.Currency = fallbackCurrency
		}
		if len(rate.RetailRate.TaxesAndFees) > 0 {
			included := true
			for _, tax := range rate.RetailRate.TaxesAndFees {
				if !tax.Included {
					included = false
					break
				}
			}
			entry.TaxIncluded = models.Bool(included)
		}
		return entry, true
	}
	return models.PriceEntry{}, false
}

func refundabilityIndex(resp *rates.Response) map[string]bool {
	out := make(map[string]bool)
	if resp == nil {
		return out
	}
	for _, hotel := range resp.Data {
		if hotel.HotelID != "" {
			out[hotel.HotelID] = true
		}
	}
	return out
}

// inlineDetails is wave 0: the metadata the primary response already carries.
func inlineDetails(resp *rates.Response) map[string]models.HotelDetail {
	out := make(map[string]models.HotelDetail)
	for _, h := range resp.Hotels {
		if h.ID == "" {
			continue
		}
		detail := models.HotelDetail{Rating: h.Rating, ReviewCount: h.ReviewCount, StarRating: h.Stars}
		if detail.IsEmpty() {
			continue
		}
		merged, _ := out[h.ID].FillGaps(detail)
		out[h.ID] = merged
	}
	return out
}

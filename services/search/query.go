package search

import (
	"fmt"
	"hotel-search-go/models"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	MinTimeout     = time.Second
	MaxTimeout     = 30 * time.Second
	DefaultTimeout = 5 * time.Second

	defaultCurrency    = "USD"
	defaultLanguage    = "en"
	defaultNationality = "US"
	dateLayout         = "2006-01-02"
)

// Request is the client search body. Fields after the quality filters only affect how
// results are displayed and never reach the upstream or the cache key.
type Request struct {
	Mode             string             `json:"mode" validate:"required,oneof=place freeform"`
	PlaceID          string             `json:"placeId" validate:"required_if=Mode place,max=200"`
	Query            string             `json:"query" validate:"required_if=Mode freeform,max=300"`
	Checkin          string             `json:"checkin" validate:"required,datetime=2006-01-02"`
	Checkout         string             `json:"checkout" validate:"required,datetime=2006-01-02"`
	Occupancies      []models.Occupancy `json:"occupancies" validate:"required,min=1,max=8,dive"`
	Currency         string             `json:"currency" validate:"omitempty,len=3,alpha"`
	Language         string             `json:"language" validate:"omitempty,min=2,max=5"`
	GuestNationality string             `json:"guestNationality" validate:"omitempty,len=2,alpha"`
	Timeout          *float64           `json:"timeout"`

	StarRating              []int    `json:"starRating" validate:"omitempty,max=5,dive,min=1,max=5"`
	MinRating               *float64 `json:"minRating" validate:"omitempty,min=0,max=10"`
	MinReviewsCount         *int     `json:"minReviewsCount" validate:"omitempty,min=0"`
	Facilities              []int    `json:"facilities" validate:"omitempty,max=50,dive,min=0"`
	StrictFacilityFiltering bool     `json:"strictFacilityFiltering"`

	SortOrder         string   `json:"sortOrder" validate:"omitempty,oneof=recommended price_asc price_desc rating_desc"`
	MinPrice          *float64 `json:"minPrice" validate:"omitempty,min=0"`
	MaxPrice          *float64 `json:"maxPrice" validate:"omitempty,min=0"`
	Name              string   `json:"name" validate:"max=200"`
	RefundableOnly    bool     `json:"refundableOnly"`
	ShowAllProperties bool     `json:"showAllProperties"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Query is a validated, normalized search. Its fields are only reachable through
// accessors that return copies, so a Query never changes after NewQuery.
type Query struct {
	mode             models.LocationMode
	locationID       string
	checkin          string
	checkout         string
	occupancies      []models.Occupancy
	currency         string
	language         string
	nationality      string
	timeout          time.Duration
	starRatings      []int
	minRating        *float64
	minReviews       *int
	facilities       []int
	strictFacilities bool
}

// NewQuery validates req and builds a Query. Failures are *Error with CodeInvalidParams.
func NewQuery(req Request) (Query, error) {
	if err := requestValidator().Struct(req); err != nil {
		return Query{}, NewError(CodeInvalidParams, describeValidation(err), err)
	}

	checkin, _ := time.Parse(dateLayout, req.Checkin)
	checkout, _ := time.Parse(dateLayout, req.Checkout)
	if !checkout.After(checkin) {
		return Query{}, NewError(CodeInvalidParams, "checkout must be after checkin", nil)
	}

	q := Query{
		mode:             models.LocationMode(req.Mode),
		checkin:          req.Checkin,
		checkout:         req.Checkout,
		occupancies:      copyOccupancies(req.Occupancies),
		currency:         strings.ToUpper(orDefault(req.Currency, defaultCurrency)),
		language:         strings.ToLower(orDefault(req.Language, defaultLanguage)),
		nationality:      strings.ToUpper(orDefault(req.GuestNationality, defaultNationality)),
		timeout:          ClampTimeout(req.Timeout),
		starRatings:      append([]int(nil), req.StarRating...),
		facilities:       append([]int(nil), req.Facilities...),
		strictFacilities: req.StrictFacilityFiltering,
	}
	if q.mode == models.ModePlace {
		q.locationID = strings.TrimSpace(req.PlaceID)
	} else {
		q.locationID = strings.TrimSpace(req.Query)
	}
	if req.MinRating != nil {
		v := *req.MinRating
		q.minRating = &v
	}
	if req.MinReviewsCount != nil {
		v := *req.MinReviewsCount
		q.minReviews = &v
	}
	return q, nil
}

// ClampTimeout converts a timeout in seconds into a duration within [MinTimeout, MaxTimeout].
// A nil value selects DefaultTimeout.
func ClampTimeout(seconds *float64) time.Duration {
	if seconds == nil {
		return DefaultTimeout
	}
	d := time.Duration(*seconds * float64(time.Second))
	if d < MinTimeout {
		return MinTimeout
	}
	if d > MaxTimeout {
		return MaxTimeout
	}
	return d
}

func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Request.")
		switch fe.Tag() {
		case "required", "required_if":
			msgs = append(msgs, field+" is required")
		case "min", "max", "len", "oneof", "datetime":
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func copyOccupancies(in []models.Occupancy) []models.Occupancy {
	out := make([]models.Occupancy, len(in))
	for i, o := range in {
		out[i] = models.Occupancy{Adults: o.Adults, Children: append([]int(nil), o.Children...)}
	}
	return out
}

func (q Query) Mode() models.LocationMode       { return q.mode }
func (q Query) LocationID() string              { return q.locationID }
func (q Query) Checkin() string                 { return q.checkin }
func (q Query) Checkout() string                { return q.checkout }
func (q Query) Occupancies() []models.Occupancy { return copyOccupancies(q.occupancies) }
func (q Query) Currency() string                { return q.currency }
func (q Query) Language() string                { return q.language }
func (q Query) Nationality() string             { return q.nationality }
func (q Query) Timeout() time.Duration          { return q.timeout }
func (q Query) StarRatings() []int              { return append([]int(nil), q.starRatings...) }
func (q Query) Facilities() []int               { return append([]int(nil), q.facilities...) }
func (q Query) StrictFacilityFiltering() bool   { return q.strictFacilities }

// MinRating returns the minimum guest rating filter, if set.
func (q Query) MinRating() (float64, bool) {
	if q.minRating == nil {
		return 0, false
	}
	return *q.minRating, true
}

// MinReviews returns the minimum review count filter, if set.
func (q Query) MinReviews() (int, bool) {
	if q.minReviews == nil {
		return 0, false
	}
	return *q.minReviews, true
}

// HasQualityFilters reports whether any star, rating, review or facility filter is set.
func (q Query) HasQualityFilters() bool {
	return len(q.starRatings) > 0 || q.minRating != nil || q.minReviews != nil || len(q.facilities) > 0
}

// WithoutQualityFilters returns the same search with every quality filter removed.
// It backs the "show all properties" segment.
func (q Query) WithoutQualityFilters() Query {
	out := q
	out.occupancies = copyOccupancies(q.occupancies)
	out.starRatings = nil
	out.minRating = nil
	out.minReviews = nil
	out.facilities = nil
	out.strictFacilities = false
	return out
}

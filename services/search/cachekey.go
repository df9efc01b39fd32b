package search

import (
	"hotel-search-go/services/pricing"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const (
	cacheKeyVersion = "search:v1"
	absent          = "-"
)

// BuildCacheKey derives the canonical key for a search. List filters are sorted so their
// input order never matters, absent optionals serialize as "-", and display-only
// parameters are not part of a Query so they can never leak in.
func BuildCacheKey(q Query, p pricing.Inputs) string {
	segments := []string{
		cacheKeyVersion,
		"mode=" + string(q.mode),
		"loc=" + escape(q.locationID),
		"in=" + q.checkin,
		"out=" + q.checkout,
		"occ=" + occupancySegment(q),
		"cur=" + escape(q.currency),
		"lang=" + escape(q.language),
		"nat=" + escape(q.nationality),
		"to=" + strconv.FormatFloat(q.timeout.Seconds(), 'f', -1, 64),
		"ch=" + escape(p.Channel),
		"margin=" + floatSegment(p.Margin),
		"markup=" + floatSegment(p.Markup),
		"stars=" + sortedInts(q.starRatings),
		"minr=" + floatSegment(q.minRating),
		"minrev=" + intSegment(q.minReviews),
		"fac=" + sortedInts(q.facilities),
		"strict=" + strconv.FormatBool(q.strictFacilities),
	}
	return strings.Join(segments, "|")
}

// occupancySegment keeps room order and child order: both change the upstream price.
func occupancySegment(q Query) string {
	if len(q.occupancies) == 0 {
		return absent
	}
	rooms := make([]string, len(q.occupancies))
	for i, o := range q.occupancies {
		children := absent
		if len(o.Children) > 0 {
			ages := make([]string, len(o.Children))
			for j, age := range o.Children {
				ages[j] = strconv.Itoa(age)
			}
			children = strings.Join(ages, ",")
		}
		rooms[i] = strconv.Itoa(o.Adults) + ":" + children
	}
	return strings.Join(rooms, ";")
}

func sortedInts(values []int) string {
	if len(values) == 0 {
		return absent
	}
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, v := range sorted {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func floatSegment(v *float64) string {
	if v == nil {
		return absent
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func intSegment(v *int) string {
	if v == nil {
		return absent
	}
	return strconv.Itoa(*v)
}

func escape(s string) string {
	if s == "" {
		return absent
	}
	return url.QueryEscape(s)
}

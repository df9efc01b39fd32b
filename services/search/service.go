package search

import (
	"context"
	"hotel-search-go/logcolors"
	"hotel-search-go/services/pricing"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// outcomeOK is reported to the Observer for successful searches.
const outcomeOK = "OK"

// ResultStore caches composed payloads by cache key.
type ResultStore interface {
	Get(key string) (*Payload, bool)
	Set(key string, payload *Payload)
}

// Options configures a Service.
type Options struct {
	// SingleFlight shares one upstream round trip between concurrent identical searches.
	SingleFlight bool
	Observer     Observer
}

// Service answers searches from the result cache or the aggregator.
type Service struct {
	aggregator *Aggregator
	store      ResultStore
	group      *singleflight.Group
	observer   Observer
}

// Outcome is the result of a search.
type Outcome struct {
	Payload  *Payload
	Key      string
	CacheHit bool
	// Shared is set when the payload came from another caller's in-flight search.
	Shared bool
}

// NewService creates a Service.
func NewService(aggregator *Aggregator, store ResultStore, opts Options) *Service {
	s := &Service{
		aggregator: aggregator,
		store:      store,
		observer:   opts.Observer,
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if opts.SingleFlight {
		s.group = &singleflight.Group{}
	}
	return s
}

// Lookup answers a search from the cache only.
func (s *Service) Lookup(q Query, p pricing.Inputs) (Outcome, bool) {
	key := BuildCacheKey(q, p)
	payload, ok := s.store.Get(key)
	if !ok {
		return Outcome{Key: key}, false
	}
	return Outcome{Payload: payload, Key: key, CacheHit: true}, true
}

// Search returns the cached payload for the query or runs the aggregator. Only successful
// payloads are cached. Errors are always *Error.
func (s *Service) Search(ctx context.Context, q Query, p pricing.Inputs) (Outcome, error) {
	if out, ok := s.Lookup(q, p); ok {
		s.observer.ObserveCache(true)
		s.observer.ObserveOutcome(outcomeOK)
		log.Debugf("%s Cache hit for %s", logcolors.LogCacheSearch, out.Key)
		return out, nil
	}
	s.observer.ObserveCache(false)

	key := BuildCacheKey(q, p)
	out := Outcome{Key: key}

	var (
		payload *Payload
		err     error
	)
	if s.group != nil {
		var v any
		// The shared call must not die with the first caller's request.
		v, err, out.Shared = s.group.Do(key, func() (any, error) {
			return s.compute(context.WithoutCancel(ctx), key, q, p)
		})
		if err == nil {
			payload = v.(*Payload)
		}
	} else {
		payload, err = s.compute(ctx, key, q, p)
	}

	if err != nil {
		searchErr := Classify(err)
		s.observer.ObserveOutcome(string(searchErr.Code))
		return out, searchErr
	}

	s.observer.ObserveOutcome(outcomeOK)
	out.Payload = payload
	return out, nil
}

func (s *Service) compute(ctx context.Context, key string, q Query, p pricing.Inputs) (*Payload, error) {
	payload, err := s.aggregator.Aggregate(ctx, q, p)
	if err != nil {
		log.Warnf("%s Search failed for %s: %v", logcolors.LogSearch, q.LocationID(), err)
		return nil, err
	}
	payload.Key = key
	s.store.Set(key, payload)
	return payload, nil
}

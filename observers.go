package main

import (
	"hotel-search-go/metrics"
	"hotel-search-go/stats"
	"time"
)

// observers forwards pipeline events to both the prometheus collectors and the
// persisted stats counters.
type observers struct {
	m *metrics.Metrics
	s *stats.Stats
}

func (o observers) ObserveUpstream(call string, elapsed time.Duration, err error) {
	o.m.ObserveUpstream(call, elapsed, err)
	o.s.ObserveUpstream(call, elapsed, err)
}

func (o observers) ObserveCache(hit bool) {
	o.m.ObserveCache(hit)
	o.s.ObserveCache(hit)
}

func (o observers) ObserveOutcome(code string) {
	o.m.ObserveOutcome(code)
	o.s.ObserveOutcome(code)
}

func (o observers) DetailCacheHit() {
	o.m.DetailCacheHit()
	o.s.DetailCacheHit()
}

func (o observers) DetailCacheMiss() {
	o.m.DetailCacheMiss()
	o.s.DetailCacheMiss()
}

func (o observers) DetailFetchFailed() {
	o.m.DetailFetchFailed()
	o.s.DetailFetchFailed()
}

func (o observers) WaveCompleted(size, updated int) {
	o.m.WaveCompleted(size, updated)
	o.s.WaveCompleted(size, updated)
}

func (o observers) WaveDiscarded() {
	o.m.WaveDiscarded()
	o.s.WaveDiscarded()
}

func (o observers) WaveFailed() {
	o.m.WaveFailed()
	o.s.WaveFailed()
}

// Package enrichment fills in hotel details in the background, one bounded wave at a time.
package enrichment

import (
	"context"
	"hotel-search-go/logcolors"
	"hotel-search-go/models"
	"hotel-search-go/services/search"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultBatchSize = 80
	DefaultMaxWaves  = 10
	DefaultDebounce  = 350 * time.Millisecond
)

// BatchFetcher looks up details for a batch of hotels. Hotels whose lookup fails are left
// out of the result.
type BatchFetcher interface {
	FetchBatch(ctx context.Context, hotelIDs []string, language string) (map[string]models.HotelDetail, error)
}

// Observer receives wave outcomes.
type Observer interface {
	WaveCompleted(size, updated int)
	WaveDiscarded()
	WaveFailed()
}

type nopObserver struct{}

func (nopObserver) WaveCompleted(int, int) {}
func (nopObserver) WaveDiscarded()         {}
func (nopObserver) WaveFailed()            {}

// Config controls wave sizing and pacing.
type Config struct {
	BatchSize int
	MaxWaves  int
	Debounce  time.Duration
	// CancelStale aborts an in-flight wave when a newer search supersedes it. Without it
	// the wave runs to completion and its result is dropped on arrival.
	CancelStale bool
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MaxWaves <= 0 {
		c.MaxWaves = DefaultMaxWaves
	}
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	return c
}

// WaveState tracks progress through the current search's hotels.
type WaveState struct {
	Generation int64 `json:"generation"`
	NextOffset int   `json:"nextOffset"`
	WaveIndex  int   `json:"waveIndex"`
	InFlight   bool  `json:"inFlight"`
}

// Search is the result set a session enriches. Secondary is the optional "show all
// properties" result.
type Search struct {
	Primary   *search.Payload
	Secondary *search.Payload
	Language  string
}

// Snapshot is a consistent copy of a session.
type Snapshot struct {
	ID      string                        `json:"sessionId"`
	State   WaveState                     `json:"state"`
	Total   int                           `json:"totalHotels"`
	Done    bool                          `json:"done"`
	Details map[string]models.HotelDetail `json:"hotelDetailsByHotelId"`
	Search  Search                        `json:"-"`
}

// Session owns the enrichment of one client's current search. A new search supersedes the
// previous one by bumping the generation; waves from an older generation never write.
type Session struct {
	id        string
	fetcher   BatchFetcher
	scheduler Scheduler
	observer  Observer
	cfg       Config

	mu         sync.Mutex
	state      WaveState
	current    Search
	order      []string
	details    map[string]models.HotelDetail
	timer      Timer
	cancelWave context.CancelFunc
	closed     bool
}

// NewSession creates an idle session.
func NewSession(id string, fetcher BatchFetcher, scheduler Scheduler, cfg Config, observer Observer) *Session {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Session{
		id:        id,
		fetcher:   fetcher,
		scheduler: scheduler,
		observer:  observer,
		cfg:       cfg.withDefaults(),
		details:   make(map[string]models.HotelDetail),
	}
}

func (s *Session) ID() string {
	return s.id
}

// Supersede makes srch the session's current search and returns its generation. Details
// reset to the inline data of srch and the first wave is scheduled after the debounce delay.
func (s *Session) Supersede(srch Search) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Generation++
	s.state.NextOffset = 0
	s.state.WaveIndex = 0
	s.state.InFlight = false

	s.current = srch
	s.order = recommendedOrder(srch)
	s.details = inlineDetails(srch)

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancelWave != nil {
		if s.cfg.CancelStale {
			s.cancelWave()
		}
		s.cancelWave = nil
	}

	log.Debugf("%s %s generation %d with %d hotels", logcolors.LogSession, logcolors.Session(s.id), s.state.Generation, len(s.order))

	if !s.closed && len(s.order) > 0 {
		s.scheduleLocked(s.state.Generation)
	}
	return s.state.Generation
}

func (s *Session) scheduleLocked(gen int64) {
	s.timer = s.scheduler.AfterFunc(s.cfg.Debounce, func() {
		s.runWave(gen)
	})
}

// runWave fetches the next batch for generation gen. It does nothing if gen is no longer
// current or a wave is already in flight.
func (s *Session) runWave(gen int64) {
	s.mu.Lock()
	if s.closed || gen != s.state.Generation || s.state.InFlight {
		s.mu.Unlock()
		return
	}

	start := s.state.NextOffset
	end := min(start+s.cfg.BatchSize, len(s.order))
	if start >= end {
		s.mu.Unlock()
		return
	}

	// Hotels whose inline details are already complete still count toward the window.
	size := end - start
	batch := make([]string, 0, size)
	for _, id := range s.order[start:end] {
		if !s.details[id].IsComplete() {
			batch = append(batch, id)
		}
	}
	language := s.current.Language
	wave := s.state.WaveIndex + 1
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelWave = cancel
	s.state.InFlight = true
	s.timer = nil
	s.mu.Unlock()

	log.Debugf("%s %s wave %d fetching %d of %d hotels (offset %d)", logcolors.LogWave, logcolors.Session(s.id), wave, len(batch), size, start)

	var results map[string]models.HotelDetail
	var err error
	if len(batch) > 0 {
		results, err = s.fetcher.FetchBatch(ctx, batch, language)
	}
	cancel()

	s.complete(gen, wave, size, results, err)
}

func (s *Session) complete(gen int64, wave, size int, results map[string]models.HotelDetail, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.state.Generation {
		s.observer.WaveDiscarded()
		log.Debugf("%s %s wave %d of generation %d discarded (current %d)", logcolors.LogWave, logcolors.Session(s.id), wave, gen, s.state.Generation)
		return
	}

	s.state.InFlight = false
	s.cancelWave = nil

	updated := 0
	if err != nil {
		s.observer.WaveFailed()
		log.Warnf("%s %s wave %d failed: %v", logcolors.LogWave, logcolors.Session(s.id), wave, err)
	} else {
		for id, detail := range results {
			merged, changed := s.details[id].FillGaps(detail)
			if changed {
				s.details[id] = merged
				updated++
			}
		}
		s.observer.WaveCompleted(size, updated)
	}

	s.state.NextOffset += size
	s.state.WaveIndex++

	log.Debugf("%s %s wave %d done: %d/%d hotels updated", logcolors.LogWave, logcolors.Session(s.id), wave, updated, size)

	if s.state.NextOffset < len(s.order) && s.state.WaveIndex < s.cfg.MaxWaves {
		s.scheduleLocked(gen)
	}
}

// Snapshot returns the current state and a copy of the detail index.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	details := make(map[string]models.HotelDetail, len(s.details))
	for id, d := range s.details {
		details[id] = d
	}
	return Snapshot{
		ID:      s.id,
		State:   s.state,
		Total:   len(s.order),
		Done:    !s.state.InFlight && (s.state.NextOffset >= len(s.order) || s.state.WaveIndex >= s.cfg.MaxWaves),
		Details: details,
		Search:  s.current,
	}
}

// Close stops pending waves. A closed session ignores any wave that lands later.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancelWave != nil {
		s.cancelWave()
		s.cancelWave = nil
	}
}

// recommendedOrder lists primary hotels first, then secondary-only hotels.
func recommendedOrder(srch Search) []string {
	var primary, secondary []string
	if srch.Primary != nil {
		primary = srch.Primary.HotelIDs()
	}
	if srch.Secondary != nil {
		secondary = srch.Secondary.HotelIDs()
	}
	return search.MergeOrder(primary, secondary)
}

// inlineDetails copies the details carried by the responses. Primary values win.
func inlineDetails(srch Search) map[string]models.HotelDetail {
	out := make(map[string]models.HotelDetail)
	for _, p := range []*search.Payload{srch.Primary, srch.Secondary} {
		if p == nil {
			continue
		}
		for id, d := range p.Details {
			merged, _ := out[id].FillGaps(d)
			out[id] = merged
		}
	}
	return out
}

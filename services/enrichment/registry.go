package enrichment

import (
	"hotel-search-go/logcolors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	log "github.com/sirupsen/logrus"
)

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// MaxSessions bounds the registry; the least recently used session is closed first.
	MaxSessions int
	// IdleTTL closes sessions that were not touched for this long.
	IdleTTL   time.Duration
	Fetcher   BatchFetcher
	Scheduler Scheduler
	Session   Config
	Observer  Observer
}

// Registry maps client session ids to sessions.
type Registry struct {
	mu       sync.Mutex
	sessions *expirable.LRU[string, *Session]
	cfg      RegistryConfig
}

// NewRegistry creates a registry. Evicted and expired sessions are closed.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	onEvict := func(id string, s *Session) {
		log.Debugf("%s %s evicted", logcolors.LogSession, logcolors.Session(id))
		s.Close()
	}
	return &Registry{
		sessions: expirable.NewLRU[string, *Session](cfg.MaxSessions, onEvict, cfg.IdleTTL),
		cfg:      cfg,
	}
}

// Get returns the session for id and refreshes its idle timer.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions.Get(id)
	if ok {
		r.sessions.Add(id, s)
	}
	return s, ok
}

// GetOrCreate returns the session for id, creating it when unknown. An empty or unknown id
// gets a fresh session; the returned session's ID is the one to hand back to the client.
func (r *Registry) GetOrCreate(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id != "" {
		if s, ok := r.sessions.Get(id); ok {
			r.sessions.Add(id, s)
			return s
		}
	}

	s := NewSession(uuid.NewString(), r.cfg.Fetcher, r.cfg.Scheduler, r.cfg.Session, r.cfg.Observer)
	r.sessions.Add(s.ID(), s)
	log.Debugf("%s %s created", logcolors.LogSession, logcolors.Session(s.ID()))
	return s
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return r.sessions.Len()
}

// Close closes every session.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions.Purge()
}

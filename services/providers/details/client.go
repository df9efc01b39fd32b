package details

import (
	"context"
	"encoding/json"
	"hotel-search-go/cache"
	"hotel-search-go/logcolors"
	"hotel-search-go/models"
	"hotel-search-go/services/providers"
	"net/http"
	"net/url"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

const (
	providerName       = "details"
	hotelPath          = "/data/hotel"
	defaultConcurrency = 8
)

// Store is the persistent detail cache consulted before the upstream.
type Store interface {
	Get(key string) (models.HotelDetail, bool)
	Set(key string, detail models.HotelDetail) error
}

// Observer receives cache and fetch outcomes. Any method may be called concurrently.
type Observer interface {
	DetailCacheHit()
	DetailCacheMiss()
	DetailFetchFailed()
}

type nopObserver struct{}

func (nopObserver) DetailCacheHit()    {}
func (nopObserver) DetailCacheMiss()   {}
func (nopObserver) DetailFetchFailed() {}

// hotelResponse is the upstream envelope for one hotel.
type hotelResponse struct {
	Data struct {
		ID          string   `json:"id"`
		Name        string   `json:"name"`
		Rating      *float64 `json:"rating"`
		ReviewCount *int     `json:"reviewCount"`
		StarRating  *float64 `json:"starRating"`
	} `json:"data"`
}

// Client fetches per-hotel metadata through the detail cache.
type Client struct {
	*providers.Client
	store       Store
	concurrency int64
	observer    Observer
}

// Options configures a Client.
type Options struct {
	Store       Store
	Concurrency int
	Observer    Observer
}

// NewClient wraps a transport configured for the detail upstream.
func NewClient(transport *providers.Client, opts Options) *Client {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	return &Client{
		Client:      transport,
		store:       opts.Store,
		concurrency: int64(opts.Concurrency),
		observer:    opts.Observer,
	}
}

// NewDefaultClient builds a detail client with its own transport.
func NewDefaultClient(cfg providers.ClientConfig, opts Options) *Client {
	if cfg.Name == "" {
		cfg.Name = providerName
	}
	return NewClient(providers.NewClient(cfg), opts)
}

// FetchHotel returns one hotel's metadata, from cache when fresh.
func (c *Client) FetchHotel(ctx context.Context, hotelID, language string) (models.HotelDetail, error) {
	key := cache.DetailKey(hotelID, language)
	if c.store != nil {
		if detail, ok := c.store.Get(key); ok {
			c.observer.DetailCacheHit()
			return detail, nil
		}
		c.observer.DetailCacheMiss()
	}

	query := url.Values{}
	query.Set("hotelId", hotelID)
	if language != "" {
		query.Set("language", language)
	}

	body, err := c.Do(ctx, providers.Request{
		Method: http.MethodGet,
		Path:   hotelPath,
		Query:  query,
	})
	if err != nil {
		return models.HotelDetail{}, err
	}

	var resp hotelResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.HotelDetail{}, providers.NewUpstreamError(c.Name(), http.StatusOK, "failed to parse response", err)
	}

	detail := models.HotelDetail{
		Rating:      resp.Data.Rating,
		ReviewCount: resp.Data.ReviewCount,
		StarRating:  resp.Data.StarRating,
	}
	if c.store != nil {
		if err := c.store.Set(key, detail); err != nil {
			log.Warnf("%s Failed to cache detail for %s: %v", logcolors.LogDetails, hotelID, err)
		}
	}
	return detail, nil
}

// CachedBatch answers from the store alone and never calls the upstream. Ids without a
// fresh cached entry are left out.
func (c *Client) CachedBatch(hotelIDs []string, language string) map[string]models.HotelDetail {
	out := make(map[string]models.HotelDetail, len(hotelIDs))
	if c.store == nil {
		return out
	}
	for _, id := range hotelIDs {
		if _, done := out[id]; done || id == "" {
			continue
		}
		if detail, ok := c.store.Get(cache.DetailKey(id, language)); ok {
			c.observer.DetailCacheHit()
			out[id] = detail
		} else {
			c.observer.DetailCacheMiss()
		}
	}
	return out
}

// FetchBatch fetches metadata for every id with bounded concurrency. Hotels whose lookup
// fails are left out of the result; the batch itself only fails if ctx is done before any
// work could start.
func (c *Client) FetchBatch(ctx context.Context, hotelIDs []string, language string) (map[string]models.HotelDetail, error) {
	out := make(map[string]models.HotelDetail, len(hotelIDs))
	if len(hotelIDs) == 0 {
		return out, nil
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = semaphore.NewWeighted(c.concurrency)
	)

	seen := make(map[string]struct{}, len(hotelIDs))
	for _, id := range hotelIDs {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}

		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(hotelID string) {
			defer wg.Done()
			defer sem.Release(1)

			detail, err := c.FetchHotel(ctx, hotelID, language)
			if err != nil {
				c.observer.DetailFetchFailed()
				log.Debugf("%s Skipping %s: %v", logcolors.LogDetails, hotelID, err)
				return
			}
			mu.Lock()
			out[hotelID] = detail
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	if len(out) == 0 && ctx.Err() != nil {
		return out, ctx.Err()
	}
	return out, nil
}

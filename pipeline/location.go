package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/lixenwraith/world-mood/mood"
)

const (
	DefaultLocationTimeout = 5 * time.Second
	DefaultLocationMaxAge  = 5 * time.Minute

	// UserLocationName labels a location resolved from the provider rather than the catalog
	UserLocationName = "Your Location"
)

var ErrNoProvider = errors.New("no location provider")

// LocationProvider resolves the viewer's approximate location
type LocationProvider interface {
	Locate(ctx context.Context) (mood.Location, error)
}

// StaticLocator always answers with a fixed location
type StaticLocator struct {
	Location mood.Location
}

func (s StaticLocator) Locate(context.Context) (mood.Location, error) {
	if err := s.Location.Validate(); err != nil {
		return mood.Location{}, err
	}
	return s.Location, nil
}

// HTTPLocator queries an ip-api style JSON endpoint
type HTTPLocator struct {
	URL    string
	Client *http.Client
}

func NewHTTPLocator(url string, client *http.Client) *HTTPLocator {
	if client == nil {
		client = &http.Client{Timeout: DefaultLocationTimeout}
	}
	return &HTTPLocator{URL: url, Client: client}
}

type ipLocation struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

func (h *HTTPLocator) Locate(ctx context.Context) (mood.Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return mood.Location{}, fmt.Errorf("locate: %w", err)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return mood.Location{}, fmt.Errorf("locate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return mood.Location{}, fmt.Errorf("locate: unexpected status %d", resp.StatusCode)
	}

	var body ipLocation
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return mood.Location{}, fmt.Errorf("locate: decode: %w", err)
	}
	if body.Status != "" && body.Status != "success" {
		return mood.Location{}, fmt.Errorf("locate: provider denied: %s", body.Message)
	}

	loc := mood.Location{Name: UserLocationName, Lat: body.Lat, Lng: body.Lon}
	if err := loc.Validate(); err != nil {
		return mood.Location{}, fmt.Errorf("locate: %w", err)
	}
	return loc, nil
}

// CachedLocator reuses a successful answer of next for MaxAge
type CachedLocator struct {
	next   LocationProvider
	maxAge time.Duration
	now    func() time.Time

	mu       sync.Mutex
	cached   mood.Location
	cachedAt time.Time
	valid    bool
}

func NewCachedLocator(next LocationProvider, maxAge time.Duration) *CachedLocator {
	if maxAge <= 0 {
		maxAge = DefaultLocationMaxAge
	}
	return &CachedLocator{next: next, maxAge: maxAge, now: time.Now}
}

func (c *CachedLocator) Locate(ctx context.Context) (mood.Location, error) {
	c.mu.Lock()
	if c.valid && c.now().Sub(c.cachedAt) < c.maxAge {
		loc := c.cached
		c.mu.Unlock()
		return loc, nil
	}
	c.mu.Unlock()

	loc, err := c.next.Locate(ctx)
	if err != nil {
		return mood.Location{}, err
	}

	c.mu.Lock()
	c.cached, c.cachedAt, c.valid = loc, c.now(), true
	c.mu.Unlock()
	return loc, nil
}

// ResolveLocation asks p within timeout and falls back to a random catalog location.
// The returned error only explains why the fallback was used; loc is always usable.
func ResolveLocation(ctx context.Context, p LocationProvider, timeout time.Duration, rng *rand.Rand) (loc mood.Location, err error) {
	if p == nil {
		return mood.RandomLocation(rng), ErrNoProvider
	}
	if timeout <= 0 {
		timeout = DefaultLocationTimeout
	}

	lctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type answer struct {
		loc mood.Location
		err error
	}
	ch := make(chan answer, 1)
	go func() {
		l, e := p.Locate(lctx)
		ch <- answer{l, e}
	}()

	select {
	case a := <-ch:
		if a.err == nil {
			return a.loc, nil
		}
		err = a.err
	case <-lctx.Done():
		err = fmt.Errorf("locate: %w", lctx.Err())
	}
	return mood.RandomLocation(rng), err
}

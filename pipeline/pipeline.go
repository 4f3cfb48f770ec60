// Package pipeline turns user selections, simulation ticks and store deliveries into mood
// events and fans each one out to the particle engine, the live feed and the statistics.
//
// A Pipeline is meant to be driven by one owner goroutine. Slow work (location lookup,
// store writes, store subscriptions) runs in background goroutines that only report back
// through channels; the owner applies the results with Apply and Deliver.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/lixenwraith/world-mood/logging"
	"github.com/lixenwraith/world-mood/mood"
)

const (
	DefaultLookback     = time.Hour
	DefaultStoreTimeout = 5 * time.Second

	OriginSimulated = "sim"
)

var ErrNoStore = errors.New("no mood store configured")

// Spawner receives every dispatched event for visualization
type Spawner interface {
	Spawn(kind mood.Kind, loc mood.Location) error
	Clear()
}

// MoodStore is the subset of a store backend the pipeline consumes
type MoodStore interface {
	Append(ctx context.Context, ev mood.Event) error
	Subscribe(ctx context.Context, since time.Time) (<-chan mood.Event, error)
	Range(ctx context.Context, from, to time.Time) ([]mood.Event, error)
}

// Chimer plays audible feedback for a local selection
type Chimer interface {
	PlayMood(kind mood.Kind)
}

// Options configures a Pipeline. Store, Locator and Chimer are optional.
type Options struct {
	Spawner Spawner
	Store   MoodStore
	Locator LocationProvider
	Chimer  Chimer
	Logger  *slog.Logger

	LocationTimeout time.Duration
	Lookback        time.Duration
	FeedSize        int
	Origin          string

	Rand *rand.Rand
	Now  func() time.Time
	// Go starts background work; nil uses a plain goroutine
	Go func(fn func())
}

// Selection is a user mood whose location has been resolved
type Selection struct {
	gen   uint64
	Event mood.Event
}

// Delivery is an event received from the store subscription
type Delivery struct {
	sub   uint64
	Event mood.Event
}

type Pipeline struct {
	mu sync.Mutex

	spawner Spawner
	feed    *Feed
	stats   *Stats
	sim     *Simulator

	store   MoodStore
	locator LocationProvider
	chimer  Chimer
	logger  *slog.Logger

	locationTimeout time.Duration
	lookback        time.Duration
	origin          string
	rng             *rand.Rand
	now             func() time.Time
	launch          func(fn func())

	log  []mood.Event
	seen map[mood.EventKey]struct{}

	// gen invalidates pending selections on Reset
	gen     uint64
	results chan Selection

	// sub identifies the active subscription; deliveries from older ones are dropped
	sub       uint64
	cancelSub context.CancelFunc
	remote    chan Delivery
}

func New(opts Options) (*Pipeline, error) {
	if opts.Spawner == nil {
		return nil, fmt.Errorf("pipeline: spawner is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.LocationTimeout <= 0 {
		opts.LocationTimeout = DefaultLocationTimeout
	}
	if opts.Lookback <= 0 {
		opts.Lookback = DefaultLookback
	}
	if opts.Rand == nil {
		opts.Rand = NewRand(time.Now().UnixNano())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Go == nil {
		opts.Go = goroutine
	}

	return &Pipeline{
		spawner:         opts.Spawner,
		feed:            NewFeed(opts.FeedSize),
		stats:           NewStats(),
		sim:             NewSimulator(opts.Rand),
		store:           opts.Store,
		locator:         opts.Locator,
		chimer:          opts.Chimer,
		logger:          opts.Logger,
		locationTimeout: opts.LocationTimeout,
		lookback:        opts.Lookback,
		launch:          opts.Go,
		origin:          opts.Origin,
		rng:             opts.Rand,
		now:             opts.Now,
		seen:            make(map[mood.EventKey]struct{}),
		results:         make(chan Selection, 16),
		remote:          make(chan Delivery, 64),
	}, nil
}

// HasStore reports whether a mood store was configured
func (p *Pipeline) HasStore() bool { return p.store != nil }

func (p *Pipeline) Feed() *Feed   { return p.feed }
func (p *Pipeline) Stats() *Stats { return p.stats }

// Events returns a copy of the in-memory event log in dispatch order
func (p *Pipeline) Events() []mood.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]mood.Event, len(p.log))
	copy(out, p.log)
	return out
}

// Dispatch records ev and fans it out to every sink
func (p *Pipeline) Dispatch(ev mood.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dispatchLocked(ev)
	p.stats.Recompute(p.log)
}

// DispatchRemote dispatches ev unless the log already holds its (timestamp, kind)
func (p *Pipeline) DispatchRemote(ev mood.Event) bool {
	ev.Timestamp = mood.TruncateTimestamp(ev.Timestamp)

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, dup := p.seen[ev.Key()]; dup {
		p.logger.Debug("duplicate remote mood dropped", "kind", ev.Kind, "ts", ev.Timestamp)
		return false
	}
	p.dispatchLocked(ev)
	p.stats.Recompute(p.log)
	return true
}

// DispatchBatch dispatches a fresh batch without dedup and recomputes stats once
func (p *Pipeline) DispatchBatch(events []mood.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ev := range events {
		p.dispatchLocked(ev)
	}
	p.stats.Recompute(p.log)
}

func (p *Pipeline) dispatchLocked(ev mood.Event) {
	if err := p.spawner.Spawn(ev.Kind, ev.Location); err != nil {
		// The event is discarded entirely: it never reaches the log, feed or stats
		p.logger.Warn("mood discarded", "kind", string(ev.Kind), "error", err)
		return
	}
	p.log = append(p.log, ev)
	p.seen[ev.Key()] = struct{}{}
	p.feed.Add(FeedItem{Kind: ev.Kind, Location: ev.Location, Timestamp: ev.Timestamp})
}

// Reset clears the event log, feed, stats and markers and invalidates pending selections
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.gen++
	p.log = p.log[:0]
	p.seen = make(map[mood.EventKey]struct{})
	p.feed.Reset()
	p.spawner.Clear()
	p.stats.Recompute(nil)
}

func goroutine(fn func()) { go fn() }

// Select resolves a location for kind in the background and posts the event to Results
func (p *Pipeline) Select(ctx context.Context, kind mood.Kind) error {
	if !kind.IsValid() {
		return fmt.Errorf("select: %w: %q", mood.ErrUnknownKind, string(kind))
	}

	p.mu.Lock()
	gen := p.gen
	p.mu.Unlock()

	p.launch(func() {
		loc, err := ResolveLocation(ctx, p.locator, p.locationTimeout, p.rng)
		if err != nil {
			p.logger.Debug("location fallback", "location", loc.Name, "reason", err)
		}

		ev := mood.NewEvent(kind, loc, p.now())
		ev.Origin = p.origin

		select {
		case p.results <- Selection{gen: gen, Event: ev}:
		case <-ctx.Done():
		}
	})
	return nil
}

// Results delivers resolved selections to the owner
func (p *Pipeline) Results() <-chan Selection { return p.results }

// Apply dispatches a resolved selection, persists it and plays the chime.
// Selections started before the last Reset are dropped.
func (p *Pipeline) Apply(sel Selection) bool {
	p.mu.Lock()
	if sel.gen != p.gen {
		p.mu.Unlock()
		p.logger.Debug("stale selection dropped", "kind", string(sel.Event.Kind))
		return false
	}
	p.dispatchLocked(sel.Event)
	p.stats.Recompute(p.log)
	p.mu.Unlock()

	p.Persist(sel.Event)
	if p.chimer != nil {
		p.chimer.PlayMood(sel.Event.Kind)
	}
	return true
}

// Persist appends ev to the store without waiting; failures are only logged
func (p *Pipeline) Persist(ev mood.Event) {
	if p.store == nil {
		return
	}
	p.launch(func() {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultStoreTimeout)
		defer cancel()
		if err := p.store.Append(ctx, ev); err != nil {
			p.logger.Warn("mood append failed", "kind", string(ev.Kind), "error", err)
		}
	})
}

// Simulate dispatches one random event stamped now
func (p *Pipeline) Simulate(now time.Time) mood.Event {
	ev := p.sim.Next(now)
	p.Dispatch(ev)
	return ev
}

// Prepopulate dispatches n staggered random events immediately
func (p *Pipeline) Prepopulate(now time.Time, n int) {
	p.DispatchBatch(p.sim.Prepopulate(now, n))
}

// Synthesize generates a demo batch for the hour starting at start
func (p *Pipeline) Synthesize(start time.Time) []mood.Event {
	return p.sim.Historical(start)
}

// Range reads stored events in [from, to)
func (p *Pipeline) Range(ctx context.Context, from, to time.Time) ([]mood.Event, error) {
	if p.store == nil {
		return nil, ErrNoStore
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultStoreTimeout)
	defer cancel()
	return p.store.Range(ctx, from, to)
}

// Resume (re)opens the store subscription for events since now minus the lookback
func (p *Pipeline) Resume(ctx context.Context) error {
	if p.store == nil {
		return ErrNoStore
	}

	p.mu.Lock()
	if p.cancelSub != nil {
		p.cancelSub()
	}
	p.sub++
	sub := p.sub
	sctx, cancel := context.WithCancel(ctx)
	p.cancelSub = cancel
	p.mu.Unlock()

	since := p.now().Add(-p.lookback)
	events, err := p.store.Subscribe(sctx, since)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe: %w", err)
	}
	p.logger.Info("subscribed to mood store", "since", since)

	p.launch(func() {
		for {
			select {
			case <-sctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					if sctx.Err() == nil {
						p.logger.Warn("mood subscription ended")
					}
					return
				}
				select {
				case p.remote <- Delivery{sub: sub, Event: ev}:
				case <-sctx.Done():
					return
				}
			}
		}
	})
	return nil
}

// Suspend cancels the store subscription
func (p *Pipeline) Suspend() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelSub != nil {
		p.cancelSub()
		p.cancelSub = nil
	}
	p.sub++
}

// Remote delivers store events to the owner
func (p *Pipeline) Remote() <-chan Delivery { return p.remote }

// Deliver dispatches d through the dedup path unless its subscription was replaced
func (p *Pipeline) Deliver(d Delivery) bool {
	p.mu.Lock()
	current := d.sub == p.sub && p.cancelSub != nil
	p.mu.Unlock()
	if !current {
		return false
	}
	return p.DispatchRemote(d.Event)
}

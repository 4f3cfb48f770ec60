package pipeline

import (
	"math/rand"
	"sync"
	"time"

	"github.com/lixenwraith/world-mood/mood"
)

const (
	DefaultSimulationInterval = 3500 * time.Millisecond
	DefaultInitialCount       = 8

	historicalBase   = 15
	historicalSpread = 10
	historicalStep   = time.Minute
	prepopulateStep  = time.Second
)

// lockedSource makes a rand.Source safe for the location goroutines and the owner loop
type lockedSource struct {
	mu  sync.Mutex
	src rand.Source
}

func (s *lockedSource) Int63() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Int63()
}

func (s *lockedSource) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src.Seed(seed)
}

// NewRand returns a goroutine-safe generator
func NewRand(seed int64) *rand.Rand {
	return rand.New(&lockedSource{src: rand.NewSource(seed)})
}

// Simulator produces random demo events
type Simulator struct {
	rng *rand.Rand
}

func NewSimulator(rng *rand.Rand) *Simulator {
	if rng == nil {
		rng = NewRand(time.Now().UnixNano())
	}
	return &Simulator{rng: rng}
}

// Next returns a random kind at a random catalog location stamped now
func (s *Simulator) Next(now time.Time) mood.Event {
	ev := mood.NewEvent(mood.RandomKind(s.rng), mood.RandomLocation(s.rng), now)
	ev.Origin = OriginSimulated
	return ev
}

// Prepopulate returns n events stamped now, now-1s, now-2s, ...
func (s *Simulator) Prepopulate(now time.Time, n int) []mood.Event {
	out := make([]mood.Event, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, s.Next(now.Add(-time.Duration(i)*prepopulateStep)))
	}
	return out
}

// Historical returns 15 to 24 events stamped start, start+1m, start+2m, ...
func (s *Simulator) Historical(start time.Time) []mood.Event {
	n := historicalBase + s.rng.Intn(historicalSpread)
	out := make([]mood.Event, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, s.Next(start.Add(time.Duration(i)*historicalStep)))
	}
	return out
}

package pipeline

import (
	"sync"

	"github.com/lixenwraith/world-mood/mood"
)

// StatsSnapshot is a consistent read of the aggregator
type StatsSnapshot struct {
	Total  int
	Top    mood.Kind
	Counts map[mood.Kind]int
}

// Stats counts events by kind and tracks the most common kind
type Stats struct {
	mu     sync.RWMutex
	counts map[mood.Kind]int
	total  int
	top    mood.Kind
}

func NewStats() *Stats {
	s := &Stats{}
	s.Recompute(nil)
	return s
}

// Recompute rebuilds counts from the full event log.
// Ties go to the kind listed first in the catalog; an empty log reports the first catalog kind.
func (s *Stats) Recompute(events []mood.Event) {
	counts := make(map[mood.Kind]int, len(mood.Kinds()))
	for _, ev := range events {
		counts[ev.Kind]++
	}

	kinds := mood.Kinds()
	top, topCount := kinds[0], 0
	for _, k := range kinds {
		if counts[k] > topCount {
			top, topCount = k, counts[k]
		}
	}

	s.mu.Lock()
	s.counts = counts
	s.total = len(events)
	s.top = top
	s.mu.Unlock()
}

func (s *Stats) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

func (s *Stats) Top() mood.Kind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.top
}

func (s *Stats) Count(k mood.Kind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[k]
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[mood.Kind]int, len(s.counts))
	for k, v := range s.counts {
		counts[k] = v
	}
	return StatsSnapshot{Total: s.total, Top: s.top, Counts: counts}
}

package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/lixenwraith/world-mood/mood"
)

const (
	DefaultFeedSize    = 25
	DefaultMessageSize = 15
)

// FeedItem is one line of the live feed
type FeedItem struct {
	Kind      mood.Kind
	Location  mood.Location
	Timestamp time.Time
}

// Feed is a bounded newest-first list
type Feed struct {
	mu    sync.RWMutex
	items []FeedItem
	max   int
}

func NewFeed(max int) *Feed {
	if max <= 0 {
		max = DefaultFeedSize
	}
	return &Feed{max: max}
}

// Add prepends item and drops the oldest beyond capacity
func (f *Feed) Add(item FeedItem) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.items = append(f.items, FeedItem{})
	copy(f.items[1:], f.items)
	f.items[0] = item
	if len(f.items) > f.max {
		f.items = f.items[:f.max]
	}
}

// Items returns a newest-first copy
func (f *Feed) Items() []FeedItem {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]FeedItem, len(f.items))
	copy(out, f.items)
	return out
}

func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.items)
}

func (f *Feed) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = f.items[:0]
}

// seenFactor sizes the dedup memory relative to the visible list
const seenFactor = 8

// MessageFeed is a bounded newest-first list of messages, deduplicated by Message.Key.
// Keys outlive their messages so a store replay cannot resurface an evicted one.
type MessageFeed struct {
	mu    sync.RWMutex
	items []mood.Message
	max   int

	seen    map[string]struct{}
	order   []string // seen keys, oldest first
	maxSeen int
}

func NewMessageFeed(max int) *MessageFeed {
	if max <= 0 {
		max = DefaultMessageSize
	}
	return &MessageFeed{
		max:     max,
		seen:    make(map[string]struct{}),
		maxSeen: max * seenFactor,
	}
}

// Add prepends msg unless an identical message was already shown
func (f *MessageFeed) Add(msg mood.Message) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := msg.Key()
	if _, dup := f.seen[key]; dup {
		return false
	}
	f.seen[key] = struct{}{}
	f.order = append(f.order, key)
	if len(f.order) > f.maxSeen {
		delete(f.seen, f.order[0])
		f.order = f.order[1:]
	}

	f.items = append(f.items, mood.Message{})
	copy(f.items[1:], f.items)
	f.items[0] = msg
	if len(f.items) > f.max {
		f.items = f.items[:f.max]
	}
	return true
}

func (f *MessageFeed) Items() []mood.Message {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]mood.Message, len(f.items))
	copy(out, f.items)
	return out
}

// TimeAgo renders the age of ts relative to now
func TimeAgo(ts, now time.Time) string {
	seconds := int64(now.Sub(ts) / time.Second)
	switch {
	case seconds < 60:
		return "Just now"
	case seconds < 3600:
		return fmt.Sprintf("%dm ago", seconds/60)
	case seconds < 86400:
		return fmt.Sprintf("%dh ago", seconds/3600)
	default:
		return fmt.Sprintf("%dd ago", seconds/86400)
	}
}

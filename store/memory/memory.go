// Package memory is an in-process Mood Store for tests and single-process demos.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/lixenwraith/world-mood/mood"
	"github.com/lixenwraith/world-mood/store"
)

// subscriber buffer; a subscriber that falls this far behind misses live appends
const subBuffer = 256

type Store struct {
	mu       sync.Mutex
	events   []mood.Event
	messages []mood.Message

	eventSubs   map[chan mood.Event]struct{}
	messageSubs map[chan mood.Message]struct{}
	closed      bool
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		eventSubs:   make(map[chan mood.Event]struct{}),
		messageSubs: make(map[chan mood.Message]struct{}),
	}
}

func (s *Store) Append(_ context.Context, ev mood.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	ev.Timestamp = mood.TruncateTimestamp(ev.Timestamp)
	if ev.ID == "" {
		ev.ID = store.NewID(ev.Timestamp)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	s.events = append(s.events, ev)
	for ch := range s.eventSubs {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

func (s *Store) Subscribe(ctx context.Context, since time.Time) (<-chan mood.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	var backlog []mood.Event
	for _, ev := range s.events {
		if !ev.Timestamp.Before(since) {
			backlog = append(backlog, ev)
		}
	}
	live := make(chan mood.Event, subBuffer)
	s.eventSubs[live] = struct{}{}

	return stream(ctx, backlog, live, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.eventSubs[live]; ok {
			delete(s.eventSubs, live)
			close(live)
		}
	}), nil
}

func (s *Store) Range(_ context.Context, from, to time.Time) ([]mood.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	var out []mood.Event
	for _, ev := range s.events {
		if !ev.Timestamp.Before(from) && ev.Timestamp.Before(to) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *Store) AppendMessage(_ context.Context, msg mood.Message) error {
	msg.Timestamp = mood.TruncateTimestamp(msg.Timestamp)
	if msg.ID == "" {
		msg.ID = store.NewID(msg.Timestamp)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	s.messages = append(s.messages, msg)
	for ch := range s.messageSubs {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

func (s *Store) SubscribeMessages(ctx context.Context, since time.Time) (<-chan mood.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	var backlog []mood.Message
	for _, m := range s.messages {
		if !m.Timestamp.Before(since) {
			backlog = append(backlog, m)
		}
	}
	live := make(chan mood.Message, subBuffer)
	s.messageSubs[live] = struct{}{}

	return stream(ctx, backlog, live, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.messageSubs[live]; ok {
			delete(s.messageSubs, live)
			close(live)
		}
	}), nil
}

// Close ends every subscription
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for ch := range s.eventSubs {
		close(ch)
	}
	for ch := range s.messageSubs {
		close(ch)
	}
	s.eventSubs = map[chan mood.Event]struct{}{}
	s.messageSubs = map[chan mood.Message]struct{}{}
	return nil
}

// stream sends backlog then forwards live until ctx ends or live is closed
func stream[T any](ctx context.Context, backlog []T, live <-chan T, done func()) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		defer done()

		for _, v := range backlog {
			select {
			case out <- v:
			case <-ctx.Done():
				return
			}
		}
		for {
			select {
			case v, ok := <-live:
				if !ok {
					return
				}
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

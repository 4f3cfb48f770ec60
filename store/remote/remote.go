// Package remote is a Mood Store client for a world-mood hub.
// Subscriptions reconnect with backoff and resume from the last timestamp they delivered,
// so a reconnect may replay events; consumers deduplicate.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lixenwraith/world-mood/logging"
	"github.com/lixenwraith/world-mood/mood"
	"github.com/lixenwraith/world-mood/store"
)

const (
	requestTimeout = 5 * time.Second
	minBackoff     = time.Second
	maxBackoff     = 60 * time.Second
)

type Store struct {
	base   *url.URL
	client *http.Client
	dialer *websocket.Dialer
	lg     *slog.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

var _ store.Store = (*Store)(nil)

// New connects to the hub at baseURL and checks its health endpoint
func New(ctx context.Context, baseURL string, client *http.Client, lg *slog.Logger) (*Store, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid hub url %q", store.ErrUnavailable, baseURL)
	}
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	if lg == nil {
		lg = logging.Discard()
	}

	s := &Store{
		base:   u,
		client: client,
		dialer: websocket.DefaultDialer,
		lg:     lg,
		done:   make(chan struct{}),
	}

	resp, err := s.do(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	resp.Body.Close()
	return s, nil
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Store) endpoint(path string, q url.Values) string {
	u := *s.base
	u.Path = s.base.Path + path
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *Store) do(ctx context.Context, method, path string, q url.Values, body any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.endpoint(path, q), rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return nil, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, e.Error)
	}
	return resp, nil
}

func (s *Store) Append(ctx context.Context, ev mood.Event) error {
	if s.isClosed() {
		return store.ErrClosed
	}
	if err := ev.Validate(); err != nil {
		return err
	}
	resp, err := s.do(ctx, http.MethodPost, "/moods", nil, store.FromEvent(ev))
	if err != nil {
		return fmt.Errorf("append mood: %w", err)
	}
	resp.Body.Close()
	return nil
}

func (s *Store) AppendMessage(ctx context.Context, msg mood.Message) error {
	if s.isClosed() {
		return store.ErrClosed
	}
	resp, err := s.do(ctx, http.MethodPost, "/messages", nil, store.FromMessage(msg))
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	resp.Body.Close()
	return nil
}

func (s *Store) Range(ctx context.Context, from, to time.Time) ([]mood.Event, error) {
	if s.isClosed() {
		return nil, store.ErrClosed
	}
	q := url.Values{}
	q.Set("from", strconv.FormatInt(from.UnixMilli(), 10))
	q.Set("to", strconv.FormatInt(to.UnixMilli(), 10))

	resp, err := s.do(ctx, http.MethodGet, "/moods", q, nil)
	if err != nil {
		return nil, fmt.Errorf("range moods: %w", err)
	}
	defer resp.Body.Close()

	var recs []store.EventRecord
	if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
		return nil, fmt.Errorf("decode moods: %w", err)
	}
	out := make([]mood.Event, 0, len(recs))
	for _, rec := range recs {
		ev, err := rec.Event()
		if err != nil {
			s.lg.Warn("skipping invalid mood", "id", rec.ID, "error", err)
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *Store) Subscribe(ctx context.Context, since time.Time) (<-chan mood.Event, error) {
	if s.isClosed() {
		return nil, store.ErrClosed
	}
	return follow(ctx, s, "/moods/stream", since, store.DecodeEvent, func(ev mood.Event) time.Time { return ev.Timestamp }), nil
}

func (s *Store) SubscribeMessages(ctx context.Context, since time.Time) (<-chan mood.Message, error) {
	if s.isClosed() {
		return nil, store.ErrClosed
	}
	return follow(ctx, s, "/messages/stream", since, store.DecodeMessage, func(m mood.Message) time.Time { return m.Timestamp }), nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}

func (s *Store) streamURL(path string, since time.Time) string {
	u := *s.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = s.base.Path + path
	u.RawQuery = url.Values{"since": {strconv.FormatInt(since.UnixMilli(), 10)}}.Encode()
	return u.String()
}

// follow keeps a websocket stream open, redialing with exponential backoff
func follow[T any](ctx context.Context, s *Store, path string, since time.Time, decode func([]byte) (T, error), stamp func(T) time.Time) <-chan T {
	out := make(chan T)
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	go func() {
		defer close(out)
		defer cancel()

		cursor := since
		backoff := minBackoff
		for {
			target := s.streamURL(path, cursor)
			conn, _, err := s.dialer.DialContext(ctx, target, nil)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.lg.Warn("stream dial failed", "url", target, "error", err, "retry", backoff)
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return
				}
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				continue
			}

			delivered := 0
			stop := context.AfterFunc(ctx, func() { conn.Close() })
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					if ctx.Err() == nil {
						s.lg.Warn("stream read failed, reconnecting", "url", target, "error", err)
					}
					break
				}
				v, err := decode(data)
				if err != nil {
					s.lg.Warn("skipping invalid record", "error", err)
					continue
				}
				if ts := stamp(v); ts.After(cursor) {
					cursor = ts
				}
				select {
				case out <- v:
					delivered++
				case <-ctx.Done():
				}
			}
			stop()
			conn.Close()
			if ctx.Err() != nil {
				return
			}

			// A connection that delivered nothing counts as a failed attempt
			if delivered > 0 {
				backoff = minBackoff
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			if delivered == 0 {
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
		}
	}()
	return out
}

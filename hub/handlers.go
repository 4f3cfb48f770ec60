package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lixenwraith/world-mood/mood"
	"github.com/lixenwraith/world-mood/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, mood.ErrUnknownKind),
		errors.Is(err, mood.ErrInvalidLocation),
		errors.Is(err, mood.ErrEmptyMessage),
		errors.Is(err, mood.ErrMessageTooLong):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrClosed), errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) postMood(w http.ResponseWriter, r *http.Request) {
	var rec store.EventRecord
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = s.now().UnixMilli()
	}

	ev, err := rec.Event()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if ev.ID == "" {
		ev.ID = store.NewID(ev.Timestamp)
	}
	if err := s.store.Append(r.Context(), ev); err != nil {
		s.lg.Warn("append mood failed", "error", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, store.FromEvent(ev))
}

func (s *Server) listMoods(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	to, err := parseTime(q.Get("to"), s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	from, err := parseTime(q.Get("from"), to.Add(-DefaultLookback))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	events, err := s.store.Range(r.Context(), from, to)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	out := make([]store.EventRecord, 0, len(events))
	for _, ev := range events {
		out = append(out, store.FromEvent(ev))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	var rec store.MessageRecord
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = s.now().UnixMilli()
	}

	msg, err := rec.Message()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if err := msg.Location.Validate(); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if msg.ID == "" {
		msg.ID = store.NewID(msg.Timestamp)
	}
	if err := s.store.AppendMessage(r.Context(), msg); err != nil {
		s.lg.Warn("append message failed", "error", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, store.FromMessage(msg))
}

func (s *Server) streamMoods(w http.ResponseWriter, r *http.Request) {
	since, err := parseTime(r.URL.Query().Get("since"), s.now().Add(-DefaultLookback))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.lg.Debug("websocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := watchClose(r.Context(), conn)
	defer cancel()

	events, err := s.store.Subscribe(ctx, since)
	if err != nil {
		closeWith(conn, websocket.CloseInternalServerErr, err.Error())
		return
	}
	s.lg.Info("mood stream opened", "remote", r.RemoteAddr, "since", since)
	pump(ctx, conn, events, store.FromEvent)
	s.lg.Info("mood stream closed", "remote", r.RemoteAddr)
}

func (s *Server) streamMessages(w http.ResponseWriter, r *http.Request) {
	since, err := parseTime(r.URL.Query().Get("since"), s.now().Add(-10*time.Minute))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.lg.Debug("websocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := watchClose(r.Context(), conn)
	defer cancel()

	msgs, err := s.store.SubscribeMessages(ctx, since)
	if err != nil {
		closeWith(conn, websocket.CloseInternalServerErr, err.Error())
		return
	}
	pump(ctx, conn, msgs, store.FromMessage)
}

// watchClose cancels the returned context when the peer goes away.
// The read side only drains control frames.
func watchClose(parent context.Context, conn *websocket.Conn) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return ctx, func() {
		cancel()
		conn.Close()
	}
}

// pump writes each value from ch as a JSON text frame until ctx ends or ch closes
func pump[T, R any](ctx context.Context, conn *websocket.Conn, ch <-chan T, record func(T) R) {
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-ch:
			if !ok {
				closeWith(conn, websocket.CloseGoingAway, "store closed")
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(record(v)); err != nil {
				return
			}
		}
	}
}

func closeWith(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

// parseTime accepts RFC3339 or unix milliseconds; empty returns def
func parseTime(v string, def time.Time) (time.Time, error) {
	if v == "" {
		return def, nil
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want RFC3339 or unix milliseconds", v)
	}
	return t, nil
}

package mood

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxMessageRunes bounds anonymous message length
const MaxMessageRunes = 280

// Event is a single mood report. Events are values; consumers receive copies.
type Event struct {
	ID        string    `json:"id,omitempty"`
	Kind      Kind      `json:"kind"`
	Location  Location  `json:"location"`
	Timestamp time.Time `json:"timestamp"`
	Origin    string    `json:"origin,omitempty"`
}

// EventKey identifies an event for deduplication: exact millisecond timestamp and kind
type EventKey struct {
	Millis int64
	Kind   Kind
}

// NewEvent builds an event with its timestamp truncated to millisecond precision
func NewEvent(kind Kind, loc Location, ts time.Time) Event {
	return Event{
		Kind:      kind,
		Location:  loc,
		Timestamp: TruncateTimestamp(ts),
	}
}

// Key returns the dedup key of the event
func (e Event) Key() EventKey {
	return EventKey{Millis: e.Timestamp.UnixMilli(), Kind: e.Kind}
}

// Validate checks kind and location
func (e Event) Validate() error {
	if !e.Kind.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, string(e.Kind))
	}
	return e.Location.Validate()
}

// TruncateTimestamp drops sub-millisecond precision and the monotonic reading.
// Stores persist milliseconds, so dedup keys must be computed at that precision.
func TruncateTimestamp(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli()).UTC()
}

// Message is an anonymous text shared alongside moods
type Message struct {
	ID        string    `json:"id,omitempty"`
	Text      string    `json:"text"`
	Location  Location  `json:"location"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage trims text and enforces the length limit
func NewMessage(text string, loc Location, ts time.Time) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}
	if n := utf8.RuneCountInString(text); n > MaxMessageRunes {
		return Message{}, fmt.Errorf("%w: %d runes (max %d)", ErrMessageTooLong, n, MaxMessageRunes)
	}
	return Message{
		Text:      text,
		Location:  loc,
		Timestamp: TruncateTimestamp(ts),
	}, nil
}

// Key identifies a message for deduplication of local echoes
func (m Message) Key() string {
	return fmt.Sprintf("%d|%s", m.Timestamp.UnixMilli(), m.Text)
}

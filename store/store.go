// Package store defines the Mood Store capability and the JSON records every backend persists.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lixenwraith/world-mood/mood"
)

var (
	ErrUnavailable = errors.New("mood store unavailable")
	ErrClosed      = errors.New("mood store closed")
)

// Store appends moods and messages and streams the ones appended after a cutoff.
// Delivery is at-least-once: subscribers may see an event more than once.
type Store interface {
	Append(ctx context.Context, ev mood.Event) error
	// Subscribe streams stored events with timestamp >= since, then new appends, until ctx ends
	Subscribe(ctx context.Context, since time.Time) (<-chan mood.Event, error)
	// Range returns stored events with from <= timestamp < to, oldest first
	Range(ctx context.Context, from, to time.Time) ([]mood.Event, error)

	AppendMessage(ctx context.Context, msg mood.Message) error
	SubscribeMessages(ctx context.Context, since time.Time) (<-chan mood.Message, error)

	Close() error
}

// EventRecord is the wire and storage form of a mood event
type EventRecord struct {
	ID           string  `json:"id,omitempty"`
	MoodType     string  `json:"moodType"`
	LocationName string  `json:"locationName"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	Timestamp    int64   `json:"timestamp"` // unix milliseconds
	Origin       string  `json:"origin,omitempty"`
}

// FromEvent converts ev to its record form
func FromEvent(ev mood.Event) EventRecord {
	return EventRecord{
		ID:           ev.ID,
		MoodType:     string(ev.Kind),
		LocationName: ev.Location.Name,
		Lat:          ev.Location.Lat,
		Lng:          ev.Location.Lng,
		Timestamp:    ev.Timestamp.UnixMilli(),
		Origin:       ev.Origin,
	}
}

// Event converts the record back, validating kind and location
func (r EventRecord) Event() (mood.Event, error) {
	kind, err := mood.ParseKind(r.MoodType)
	if err != nil {
		return mood.Event{}, err
	}
	ev := mood.Event{
		ID:        r.ID,
		Kind:      kind,
		Location:  mood.Location{Name: r.LocationName, Lat: r.Lat, Lng: r.Lng},
		Timestamp: time.UnixMilli(r.Timestamp).UTC(),
		Origin:    r.Origin,
	}
	if err := ev.Location.Validate(); err != nil {
		return mood.Event{}, err
	}
	return ev, nil
}

// MessageRecord is the wire and storage form of a message
type MessageRecord struct {
	ID        string        `json:"id,omitempty"`
	Text      string        `json:"text"`
	Location  mood.Location `json:"location"`
	Timestamp int64         `json:"timestamp"`
}

func FromMessage(m mood.Message) MessageRecord {
	return MessageRecord{ID: m.ID, Text: m.Text, Location: m.Location, Timestamp: m.Timestamp.UnixMilli()}
}

func (r MessageRecord) Message() (mood.Message, error) {
	msg, err := mood.NewMessage(r.Text, r.Location, time.UnixMilli(r.Timestamp))
	if err != nil {
		return mood.Message{}, err
	}
	msg.ID = r.ID
	return msg, nil
}

// EncodeEvent marshals ev as an EventRecord
func EncodeEvent(ev mood.Event) ([]byte, error) {
	return json.Marshal(FromEvent(ev))
}

// DecodeEvent unmarshals and validates an EventRecord
func DecodeEvent(data []byte) (mood.Event, error) {
	var rec EventRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return mood.Event{}, fmt.Errorf("decode event: %w", err)
	}
	return rec.Event()
}

func EncodeMessage(m mood.Message) ([]byte, error) {
	return json.Marshal(FromMessage(m))
}

func DecodeMessage(data []byte) (mood.Message, error) {
	var rec MessageRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return mood.Message{}, fmt.Errorf("decode message: %w", err)
	}
	return rec.Message()
}

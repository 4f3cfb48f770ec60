package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/world-mood/mood"
)

func TestEventRecord_WireFormat(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 123_456_789, time.UTC)
	ev := mood.NewEvent(mood.KindExcited, mood.Location{Name: "Lagos", Lat: 6.5244, Lng: 3.3792}, ts)

	data, err := EncodeEvent(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"moodType":"excited","locationName":"Lagos","lat":6.5244,"lng":3.3792,"timestamp":1748779200123}`, string(data))

	back, err := DecodeEvent(data)
	require.NoError(t, err)
	assert.Equal(t, ev.Key(), back.Key())
	assert.Equal(t, ev.Location, back.Location)
}

func TestDecodeEvent_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"unknown kind", `{"moodType":"bored","lat":0,"lng":0,"timestamp":1}`, mood.ErrUnknownKind},
		{"bad latitude", `{"moodType":"sad","lat":120,"lng":0,"timestamp":1}`, mood.ErrInvalidLocation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEvent([]byte(tt.data))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := DecodeEvent([]byte(`not json`))
	assert.Error(t, err)
}

func TestMessageRecord(t *testing.T) {
	msg, err := mood.NewMessage("hello world", mood.Location{Name: "Seoul", Lat: 37.5665, Lng: 126.978}, time.UnixMilli(1700000000000))
	require.NoError(t, err)

	data, err := EncodeMessage(msg)
	require.NoError(t, err)
	back, err := DecodeMessage(data)
	require.NoError(t, err)
	assert.Equal(t, msg.Key(), back.Key())
	assert.Equal(t, msg.Location, back.Location)

	_, err = DecodeMessage([]byte(`{"text":"  ","timestamp":1}`))
	assert.ErrorIs(t, err, mood.ErrEmptyMessage)
}

func TestNewID_Ordered(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := NewID(t0)
	b := NewID(t0)
	c := NewID(t0.Add(time.Second))
	assert.Len(t, a, 26)
	assert.Less(t, a, b)
	assert.Less(t, b, c)
}

package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/world-mood/mood"
	"github.com/lixenwraith/world-mood/store"
)

var cairo = mood.Location{Name: "Cairo", Lat: 30.0444, Lng: 31.2357}

func TestNew_NoBrokers(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil)
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestNew_UnreachableBroker(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := New(ctx, Config{Brokers: []string{"127.0.0.1:1"}}, nil)
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestEventMessage(t *testing.T) {
	ev := mood.NewEvent(mood.KindPeaceful, cairo, time.UnixMilli(1700000000123))
	msg, err := eventMessage(ev)
	require.NoError(t, err)

	assert.Equal(t, []byte("peaceful"), msg.Key)
	assert.Equal(t, ev.Timestamp, msg.Time)

	back, err := store.DecodeEvent(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, ev.Key(), back.Key())
	assert.Equal(t, cairo, back.Location)
}

func TestMessageMessage(t *testing.T) {
	m, err := mood.NewMessage("salaam", cairo, time.UnixMilli(1700000000000))
	require.NoError(t, err)

	msg, err := messageMessage(m)
	require.NoError(t, err)
	back, err := store.DecodeMessage(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, m.Key(), back.Key())
}

func TestFixedPartition(t *testing.T) {
	assert.Equal(t, 2, fixedPartition(2).Balance(kafka.Message{}, 0, 1, 2, 3))
	assert.Equal(t, 0, fixedPartition(9).Balance(kafka.Message{}, 0, 1))
}

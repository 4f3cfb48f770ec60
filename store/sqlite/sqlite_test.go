package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/world-mood/mood"
	"github.com/lixenwraith/world-mood/store"
)

var (
	base   = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sydney = mood.Location{Name: "Sydney", Lat: -33.8688, Lng: 151.2093}
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "moods.db"), 10*time.Millisecond)
	require.NoError(t, err, "create store")
	t.Cleanup(func() { s.Close() })
	return s
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for row")
	}
	var zero T
	return zero
}

func TestAppendAndRange(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ev := mood.NewEvent(mood.KindAnxious, sydney, base.Add(1500*time.Microsecond))
	ev.Origin = "session-a"
	require.NoError(t, s.Append(ctx, ev))
	require.NoError(t, s.Append(ctx, mood.NewEvent(mood.KindSad, sydney, base.Add(2*time.Hour))))

	got, err := s.Range(ctx, base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ev.Key(), got[0].Key())
	assert.Equal(t, sydney, got[0].Location)
	assert.Equal(t, "session-a", got[0].Origin)
	assert.NotEmpty(t, got[0].ID)
}

func TestAppend_RejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	bad := mood.NewEvent(mood.KindSad, mood.Location{Name: "x", Lat: 91}, base)
	assert.ErrorIs(t, s.Append(context.Background(), bad), mood.ErrInvalidLocation)
}

func TestSubscribe_BacklogThenPolled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newTestStore(t)

	require.NoError(t, s.Append(ctx, mood.NewEvent(mood.KindTired, sydney, base.Add(-3*time.Hour))))
	require.NoError(t, s.Append(ctx, mood.NewEvent(mood.KindLove, sydney, base.Add(-10*time.Minute))))

	ch, err := s.Subscribe(ctx, base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, mood.KindLove, recv(t, ch).Kind)

	// Appended after subscribing: delivered regardless of its timestamp
	require.NoError(t, s.Append(ctx, mood.NewEvent(mood.KindHappy, sydney, base)))
	assert.Equal(t, mood.KindHappy, recv(t, ch).Kind)
}

func TestSubscribeMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newTestStore(t)

	ch, err := s.SubscribeMessages(ctx, base.Add(-10*time.Minute))
	require.NoError(t, err)

	msg, err := mood.NewMessage("good morning", sydney, base)
	require.NoError(t, err)
	require.NoError(t, s.AppendMessage(ctx, msg))

	got := recv(t, ch)
	assert.Equal(t, msg.Key(), got.Key())
	assert.Equal(t, sydney, got.Location)
}

func TestClose(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "moods.db"), 10*time.Millisecond)
	require.NoError(t, err)

	ch, err := s.Subscribe(context.Background(), base)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.Eventually(t, func() bool {
		_, ok := <-ch
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, s.Append(context.Background(), mood.NewEvent(mood.KindSad, sydney, base)), store.ErrClosed)
	assert.NoError(t, s.Close())
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "moods.db")
	s, err := NewSQLiteStore(path, 0)
	require.NoError(t, err)
	require.NoError(t, s.Append(context.Background(), mood.NewEvent(mood.KindExcited, sydney, base)))
	require.NoError(t, s.Close())

	s2, err := NewSQLiteStore(path, 0)
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.Range(context.Background(), base, base.Add(time.Millisecond))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

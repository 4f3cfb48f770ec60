package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/world-mood/mood"
)

type recordingSpawner struct {
	mu      sync.Mutex
	spawned []mood.Kind
	clears  int
}

func (s *recordingSpawner) Spawn(kind mood.Kind, _ mood.Location) error {
	if !kind.IsValid() {
		return mood.ErrUnknownKind
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spawned = append(s.spawned, kind)
	return nil
}

func (s *recordingSpawner) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spawned = nil
	s.clears++
}

func (s *recordingSpawner) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.spawned)
}

type fakeStore struct {
	mu       sync.Mutex
	appended []mood.Event
	since    time.Time
	ch       chan mood.Event
	ranged   []mood.Event
	failWith error
}

func (f *fakeStore) Append(_ context.Context, ev mood.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.appended = append(f.appended, ev)
	return nil
}

func (f *fakeStore) Subscribe(_ context.Context, since time.Time) (<-chan mood.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.since = since
	return f.ch, nil
}

func (f *fakeStore) Range(_ context.Context, from, to time.Time) ([]mood.Event, error) {
	var out []mood.Event
	for _, ev := range f.ranged {
		if !ev.Timestamp.Before(from) && ev.Timestamp.Before(to) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeStore) appendedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.appended)
}

type countingChimer struct {
	mu    sync.Mutex
	kinds []mood.Kind
}

func (c *countingChimer) PlayMood(k mood.Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kinds = append(c.kinds, k)
}

var (
	fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tokyo    = mood.Location{Name: "Tokyo", Lat: 35.6762, Lng: 139.6503}
)

func newTestPipeline(t *testing.T, store MoodStore) (*Pipeline, *recordingSpawner) {
	t.Helper()
	sp := &recordingSpawner{}
	p, err := New(Options{
		Spawner: sp,
		Store:   store,
		Locator: StaticLocator{Location: tokyo},
		Rand:    NewRand(1),
		Now:     func() time.Time { return fixedNow },
		Origin:  "test-session",
	})
	require.NoError(t, err)
	return p, sp
}

func TestNew_RequiresSpawner(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestDispatch_FansOut(t *testing.T) {
	p, sp := newTestPipeline(t, nil)

	p.Dispatch(mood.NewEvent(mood.KindSad, tokyo, fixedNow))
	p.Dispatch(mood.NewEvent(mood.KindLove, tokyo, fixedNow.Add(time.Second)))

	assert.Equal(t, 2, sp.count())
	assert.Len(t, p.Events(), 2)
	assert.Equal(t, 2, p.Stats().Total())

	items := p.Feed().Items()
	require.Len(t, items, 2)
	assert.Equal(t, mood.KindLove, items[0].Kind, "feed is newest first")
}

func TestDispatch_UnknownKindDiscarded(t *testing.T) {
	p, sp := newTestPipeline(t, nil)

	p.Dispatch(mood.NewEvent(mood.Kind("bored"), tokyo, fixedNow))
	assert.Zero(t, sp.count())
	assert.Empty(t, p.Events())
	assert.Zero(t, p.Feed().Len())

	// The pipeline keeps working afterwards
	p.Dispatch(mood.NewEvent(mood.KindHappy, tokyo, fixedNow))
	assert.Equal(t, 1, sp.count())
}

func TestDispatchRemote_Dedup(t *testing.T) {
	p, sp := newTestPipeline(t, nil)

	ev := mood.NewEvent(mood.KindAngry, tokyo, fixedNow.Add(123*time.Millisecond))
	assert.True(t, p.DispatchRemote(ev))

	replay := ev
	replay.Location = mood.Location{Name: "Cairo", Lat: 30.0444, Lng: 31.2357}
	assert.False(t, p.DispatchRemote(replay), "same (timestamp, kind) is a duplicate")

	assert.Len(t, p.Events(), 1)
	assert.Equal(t, 1, sp.count(), "exactly one pair of markers")

	other := ev
	other.Kind = mood.KindSad
	assert.True(t, p.DispatchRemote(other), "different kind is not a duplicate")
}

func TestDispatchRemote_DedupAgainstLocalAndSubMillisecond(t *testing.T) {
	p, _ := newTestPipeline(t, nil)

	local := mood.NewEvent(mood.KindTired, tokyo, fixedNow)
	p.Dispatch(local)

	echo := local
	echo.Timestamp = fixedNow.Add(400 * time.Microsecond)
	assert.False(t, p.DispatchRemote(echo))
}

func TestReset_ClearsEverything(t *testing.T) {
	p, sp := newTestPipeline(t, nil)
	p.Prepopulate(fixedNow, 8)
	require.Len(t, p.Events(), 8)

	p.Reset()
	assert.Empty(t, p.Events())
	assert.Zero(t, p.Feed().Len())
	assert.Zero(t, p.Stats().Total())
	assert.Equal(t, 1, sp.clears)

	// Dedup memory is cleared too
	ev := mood.NewEvent(mood.KindHappy, tokyo, fixedNow)
	p.Dispatch(ev)
	p.Reset()
	assert.True(t, p.DispatchRemote(ev))
}

func TestPrepopulate_Staggered(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	p.Prepopulate(fixedNow, DefaultInitialCount)

	events := p.Events()
	require.Len(t, events, DefaultInitialCount)
	for i, ev := range events {
		assert.Equal(t, fixedNow.Add(-time.Duration(i)*time.Second), ev.Timestamp)
		assert.True(t, ev.Kind.IsValid())
	}
}

func TestSelect_ApplyPersistsAndChimes(t *testing.T) {
	store := &fakeStore{}
	chime := &countingChimer{}
	sp := &recordingSpawner{}
	p, err := New(Options{
		Spawner: sp,
		Store:   store,
		Locator: StaticLocator{Location: tokyo},
		Chimer:  chime,
		Now:     func() time.Time { return fixedNow },
		Origin:  "session-1",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.Select(ctx, mood.KindPeaceful))

	sel := <-p.Results()
	assert.Equal(t, tokyo, sel.Event.Location)
	assert.Equal(t, "session-1", sel.Event.Origin)
	assert.True(t, p.Apply(sel))

	assert.Equal(t, 1, sp.count())
	assert.Equal(t, []mood.Kind{mood.KindPeaceful}, chime.kinds)
	assert.Eventually(t, func() bool { return store.appendedCount() == 1 }, time.Second, 5*time.Millisecond)
}

// countingLauncher runs work on a goroutine and records how many were started
type countingLauncher struct {
	mu      sync.Mutex
	started int
}

func (l *countingLauncher) Go(fn func()) {
	l.mu.Lock()
	l.started++
	l.mu.Unlock()
	go fn()
}

func (l *countingLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started
}

func TestBackgroundWorkUsesLauncher(t *testing.T) {
	store := &fakeStore{}
	launcher := &countingLauncher{}
	p, err := New(Options{
		Spawner: &recordingSpawner{},
		Store:   store,
		Locator: StaticLocator{Location: tokyo},
		Now:     func() time.Time { return fixedNow },
		Go:      launcher.Go,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.Select(ctx, mood.KindLove))
	sel := <-p.Results()
	require.True(t, p.Apply(sel))
	assert.Eventually(t, func() bool { return store.appendedCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, launcher.count(), "location lookup and store append")

	m := NewMessenger(MessengerOptions{
		Locator: StaticLocator{Location: tokyo},
		Now:     func() time.Time { return fixedNow },
		Go:      launcher.Go,
	})
	require.NoError(t, m.Post(ctx, "hello"))
	<-m.Results()
	assert.Equal(t, 3, launcher.count())
}

func TestSelect_UnknownKind(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	err := p.Select(context.Background(), mood.Kind("meh"))
	assert.ErrorIs(t, err, mood.ErrUnknownKind)
}

func TestApply_StaleAfterReset(t *testing.T) {
	p, sp := newTestPipeline(t, nil)

	require.NoError(t, p.Select(context.Background(), mood.KindExcited))
	sel := <-p.Results()

	p.Reset()
	assert.False(t, p.Apply(sel))
	assert.Zero(t, sp.count())
}

func TestPersist_FailureIsNotFatal(t *testing.T) {
	store := &fakeStore{failWith: errors.New("boom")}
	p, _ := newTestPipeline(t, store)

	p.Persist(mood.NewEvent(mood.KindSad, tokyo, fixedNow))
	p.Dispatch(mood.NewEvent(mood.KindSad, tokyo, fixedNow))
	assert.Len(t, p.Events(), 1)
}

func TestResume_SubscribesWithLookback(t *testing.T) {
	store := &fakeStore{ch: make(chan mood.Event, 4)}
	p, sp := newTestPipeline(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, p.Resume(ctx))
	assert.Equal(t, fixedNow.Add(-time.Hour), store.since)

	ev := mood.NewEvent(mood.KindLove, tokyo, fixedNow.Add(-time.Minute))
	store.ch <- ev
	store.ch <- ev

	for i := 0; i < 2; i++ {
		select {
		case d := <-p.Remote():
			p.Deliver(d)
		case <-time.After(time.Second):
			t.Fatal("delivery timed out")
		}
	}
	assert.Equal(t, 1, sp.count(), "replayed event dispatched once")
}

func TestDeliver_DropsAfterSuspend(t *testing.T) {
	store := &fakeStore{ch: make(chan mood.Event, 1)}
	p, sp := newTestPipeline(t, store)

	require.NoError(t, p.Resume(context.Background()))
	store.ch <- mood.NewEvent(mood.KindHappy, tokyo, fixedNow)

	var d Delivery
	select {
	case d = <-p.Remote():
	case <-time.After(time.Second):
		t.Fatal("delivery timed out")
	}

	p.Suspend()
	assert.False(t, p.Deliver(d))
	assert.Zero(t, sp.count())
}

func TestResume_NoStore(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	assert.ErrorIs(t, p.Resume(context.Background()), ErrNoStore)
	_, err := p.Range(context.Background(), fixedNow, fixedNow)
	assert.ErrorIs(t, err, ErrNoStore)
	assert.False(t, p.HasStore())
}

package engine

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/world-mood/mood"
	"github.com/lixenwraith/world-mood/scene"
	"github.com/lixenwraith/world-mood/vmath"
)

type fakeObject struct {
	scene.Transform
	id       int
	geometry scene.Geometry
	material scene.Material
}

// fakeRenderer records the object graph and counts releases per object
type fakeRenderer struct {
	nextID   int
	children map[*fakeObject]bool
	released map[int]int
	removed  map[int]int
	frames   int
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{
		children: make(map[*fakeObject]bool),
		released: make(map[int]int),
		removed:  make(map[int]int),
	}
}

func (r *fakeRenderer) CreateGroup() scene.Object {
	r.nextID++
	return &fakeObject{Transform: scene.NewTransform(1), id: r.nextID, geometry: scene.Geometry{Kind: scene.GeometryGroup}}
}

func (r *fakeRenderer) CreateObject(g scene.Geometry, m scene.Material) scene.Object {
	r.nextID++
	return &fakeObject{Transform: scene.NewTransform(m.Opacity), id: r.nextID, geometry: g, material: m}
}

func (r *fakeRenderer) AddToGroup(_, obj scene.Object) {
	r.children[obj.(*fakeObject)] = true
}

func (r *fakeRenderer) RemoveFromGroup(_, obj scene.Object) {
	o := obj.(*fakeObject)
	delete(r.children, o)
	r.removed[o.id]++
}

func (r *fakeRenderer) Release(obj scene.Object) {
	r.released[obj.(*fakeObject).id]++
}

func (r *fakeRenderer) RenderFrame() { r.frames++ }

var tokyo = mood.Location{Name: "Tokyo", Lat: 35.6762, Lng: 139.6503}

func newTestEngine(t *testing.T, max int) (*ParticleEngine, *fakeRenderer, *MockTimeProvider) {
	t.Helper()
	r := newFakeRenderer()
	clock := NewMockTimeProvider(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	cfg := DefaultParticleConfig()
	cfg.MaxParticles = max
	return NewParticleEngine(r, r.CreateGroup(), cfg, clock), r, clock
}

func TestSpawn_CreatesDotAndRing(t *testing.T) {
	e, r, _ := newTestEngine(t, 100)

	require.NoError(t, e.Spawn(mood.KindHappy, tokyo))
	markers := e.Markers()
	require.Len(t, markers, 2)
	assert.Len(t, r.children, 2)

	dot, ring := markers[0], markers[1]
	assert.Equal(t, MarkerDot, dot.Kind)
	assert.Equal(t, MarkerRing, ring.Kind)
	assert.Equal(t, mood.KindHappy.Color(), dot.Color)

	want := vmath.GeoToVec3(tokyo.Lat, tokyo.Lng, 1.02)
	assert.Equal(t, want, dot.Object.Position())
	assert.InDelta(t, 1.02, vmath.V3FMag(ring.Object.Position()), 1e-9)

	dotObj := dot.Object.(*fakeObject)
	ringObj := ring.Object.(*fakeObject)
	assert.Equal(t, scene.GeometrySphere, dotObj.geometry.Kind)
	assert.Equal(t, scene.GeometryRing, ringObj.geometry.Kind)
	assert.Equal(t, 24, ringObj.geometry.Segments)
	assert.Equal(t, scene.SideDouble, ringObj.material.Side)

	// Ring faces the globe center
	n := ringObj.Normal()
	toCenter := vmath.V3FNormalize(vmath.V3FScale(want, -1))
	assert.InDelta(t, 1.0, vmath.V3FDot(n, toCenter), 1e-9)
}

func TestSpawn_UnknownKindIsNoop(t *testing.T) {
	e, r, _ := newTestEngine(t, 100)

	err := e.Spawn(mood.Kind("bored"), tokyo)
	assert.ErrorIs(t, err, mood.ErrUnknownKind)
	assert.Zero(t, e.Len())
	assert.Empty(t, r.children)
}

func TestSpawn_CapacityNeverExceeded(t *testing.T) {
	e, _, clock := newTestEngine(t, 10)

	for i := 0; i < 50; i++ {
		clock.Advance(time.Millisecond)
		require.NoError(t, e.Spawn(mood.Kinds()[i%8], tokyo))
		assert.LessOrEqual(t, e.Len(), 10)
	}

	// Survivors are the most recent, in insertion order
	markers := e.Markers()
	for i := 1; i < len(markers); i++ {
		assert.False(t, markers[i].CreatedAt.Before(markers[i-1].CreatedAt))
	}
}

func TestSpawn_101EvictsFirstMarkerOnce(t *testing.T) {
	e, r, clock := newTestEngine(t, 100)

	require.NoError(t, e.Spawn(mood.KindHappy, tokyo))
	first := e.Markers()[0].Object.(*fakeObject)
	firstTime := e.Markers()[0].CreatedAt

	for i := 1; i < 101; i++ {
		clock.Advance(time.Millisecond)
		require.NoError(t, e.Spawn(mood.KindSad, tokyo))
	}

	assert.Equal(t, 100, e.Len())
	for _, m := range e.Markers() {
		assert.NotSame(t, first, m.Object)
		assert.True(t, m.CreatedAt.After(firstTime))
	}
	assert.Equal(t, 1, r.released[first.id])
	assert.Equal(t, 1, r.removed[first.id])
	assert.False(t, r.children[first])
}

func TestTick_TokyoAtSpawnInstant(t *testing.T) {
	e, _, clock := newTestEngine(t, 100)

	require.NoError(t, e.Spawn(mood.KindHappy, tokyo))
	e.Tick(clock.Now())

	markers := e.Markers()
	assert.InDelta(t, 1.0, markers[0].Object.Scale(), 1e-12)
	assert.InDelta(t, 1.0, markers[1].Object.Scale(), 1e-12)
	assert.InDelta(t, 0.7, markers[1].Object.Opacity(), 1e-12)
	assert.InDelta(t, 0.9, markers[0].Object.Opacity(), 1e-12)
}

func TestTick_Idempotent(t *testing.T) {
	e, _, clock := newTestEngine(t, 100)
	require.NoError(t, e.Spawn(mood.KindLove, tokyo))
	clock.Advance(300 * time.Millisecond)
	require.NoError(t, e.Spawn(mood.KindAngry, tokyo))

	now := clock.Now().Add(420 * time.Millisecond)
	e.Tick(now)
	snapshot := poses(e)
	e.Tick(now)
	assert.Equal(t, snapshot, poses(e))
}

func TestTick_FadedRingsStay(t *testing.T) {
	e, r, clock := newTestEngine(t, 100)
	require.NoError(t, e.Spawn(mood.KindTired, tokyo))

	e.Tick(clock.Now().Add(10 * time.Second))
	assert.Equal(t, 2, e.Len())
	assert.Zero(t, e.Markers()[1].Object.Opacity())
	assert.Empty(t, r.released)
}

func TestRingOpacity_MonotonicAndZero(t *testing.T) {
	prev := math.Inf(1)
	for age := time.Duration(0); age <= 3*time.Second; age += 7 * time.Millisecond {
		op := RingOpacity(age)
		assert.LessOrEqual(t, op, prev, "age %v", age)
		if age >= 1500*time.Millisecond {
			assert.Zero(t, op, "age %v", age)
		}
		prev = op
	}
	assert.Zero(t, RingOpacity(1500*time.Millisecond))
}

func TestRingScale_And_DotScale(t *testing.T) {
	assert.InDelta(t, 1.0, RingScale(0), 1e-12)
	assert.InDelta(t, 2.5, RingScale(800*time.Millisecond), 1e-12)
	assert.InDelta(t, 1.0, DotScale(0), 1e-12)

	for age := time.Duration(0); age < 10*time.Second; age += 13 * time.Millisecond {
		s := DotScale(age)
		assert.GreaterOrEqual(t, s, 0.85-1e-12)
		assert.LessOrEqual(t, s, 1.15+1e-12)
	}
}

func TestClear_ReleasesEverything(t *testing.T) {
	e, r, _ := newTestEngine(t, 100)
	for i := 0; i < 5; i++ {
		require.NoError(t, e.Spawn(mood.KindPeaceful, tokyo))
	}

	e.Clear()
	assert.Zero(t, e.Len())
	assert.Empty(t, r.children)
	assert.Len(t, r.released, 10)
	for id, n := range r.released {
		assert.Equal(t, 1, n, "object %d", id)
	}

	// Engine is reusable after clear
	require.NoError(t, e.Spawn(mood.KindExcited, tokyo))
	assert.Equal(t, 2, e.Len())
}

func TestMarkerKind_String(t *testing.T) {
	assert.Equal(t, "dot", MarkerDot.String())
	assert.Equal(t, "ring", MarkerRing.String())
}

type pose struct{ scale, opacity float64 }

func poses(e *ParticleEngine) []pose {
	markers := e.Markers()
	out := make([]pose, len(markers))
	for i, m := range markers {
		out[i] = pose{m.Object.Scale(), m.Object.Opacity()}
	}
	return out
}

// @focus: #vfx { marker, ring } #lifecycle { fifo }
package engine

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/lixenwraith/world-mood/mood"
	"github.com/lixenwraith/world-mood/scene"
	"github.com/lixenwraith/world-mood/vmath"
)

const (
	DefaultMaxParticles = 100

	dotOpacity  = 0.9
	ringOpacity = 0.7

	ringGrowthPeriod  = 800 * time.Millisecond
	ringGrowthFactor  = 1.5
	ringFadePeriod    = 1500 * time.Millisecond
	dotPulsePeriod    = 250 * time.Millisecond
	dotPulseAmplitude = 0.15
)

// MarkerKind distinguishes the persistent dot from the expanding pulse ring
type MarkerKind uint8

const (
	MarkerDot MarkerKind = iota
	MarkerRing
)

func (k MarkerKind) String() string {
	if k == MarkerRing {
		return "ring"
	}
	return "dot"
}

// Marker is one live visual object owned by the engine
type Marker struct {
	Kind      MarkerKind
	Mood      mood.Kind
	CreatedAt time.Time
	Color     mood.Color
	Object    scene.Object
}

// ParticleConfig holds marker geometry and the capacity bound, in globe units
type ParticleConfig struct {
	GlobeRadius  float64
	MarkerOffset float64
	DotRadius    float64
	DotSegments  int
	RingInner    float64
	RingOuter    float64
	RingSegments int
	MaxParticles int
}

// DefaultParticleConfig returns the stock marker geometry
func DefaultParticleConfig() ParticleConfig {
	return ParticleConfig{
		GlobeRadius:  1,
		MarkerOffset: 0.02,
		DotRadius:    0.025,
		DotSegments:  12,
		RingInner:    0.015,
		RingOuter:    0.025,
		RingSegments: 24,
		MaxParticles: DefaultMaxParticles,
	}
}

// ParticleEngine owns the bounded FIFO of live markers.
// Faded rings are never removed by age; only capacity eviction and Clear drop markers.
type ParticleEngine struct {
	mu sync.Mutex

	renderer scene.Renderer
	group    scene.Object
	clock    TimeProvider
	cfg      ParticleConfig

	markers []Marker
}

// NewParticleEngine creates an engine drawing into group via renderer
func NewParticleEngine(renderer scene.Renderer, group scene.Object, cfg ParticleConfig, clock TimeProvider) *ParticleEngine {
	if cfg.MaxParticles <= 0 {
		cfg.MaxParticles = DefaultMaxParticles
	}
	if clock == nil {
		clock = NewMonotonicTimeProvider()
	}
	return &ParticleEngine{
		renderer: renderer,
		group:    group,
		clock:    clock,
		cfg:      cfg,
		markers:  make([]Marker, 0, cfg.MaxParticles+2),
	}
}

// Spawn places one dot and one ring at loc, then evicts beyond capacity
func (e *ParticleEngine) Spawn(kind mood.Kind, loc mood.Location) error {
	if !kind.IsValid() {
		return fmt.Errorf("spawn: %w: %q", mood.ErrUnknownKind, string(kind))
	}

	pos := vmath.GeoToVec3(loc.Lat, loc.Lng, e.cfg.GlobeRadius+e.cfg.MarkerOffset)
	color := kind.Color()

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()

	dot := e.renderer.CreateObject(
		scene.Sphere(e.cfg.DotRadius, e.cfg.DotSegments),
		scene.Material{Color: color, Opacity: dotOpacity, Transparent: true},
	)
	dot.SetPosition(pos)
	e.renderer.AddToGroup(e.group, dot)
	e.markers = append(e.markers, Marker{Kind: MarkerDot, Mood: kind, CreatedAt: now, Color: color, Object: dot})

	ring := e.renderer.CreateObject(
		scene.Ring(e.cfg.RingInner, e.cfg.RingOuter, e.cfg.RingSegments),
		scene.Material{Color: color, Opacity: ringOpacity, Transparent: true, Side: scene.SideDouble},
	)
	ring.SetPosition(pos)
	ring.LookAt(vmath.Vec3F{})
	e.renderer.AddToGroup(e.group, ring)
	e.markers = append(e.markers, Marker{Kind: MarkerRing, Mood: kind, CreatedAt: now, Color: color, Object: ring})

	e.evictLocked()
	return nil
}

// Tick writes scale and opacity for every marker as a pure function of its age at now
func (e *ParticleEngine) Tick(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.markers {
		m := &e.markers[i]
		age := now.Sub(m.CreatedAt)

		switch m.Kind {
		case MarkerRing:
			m.Object.SetScale(RingScale(age))
			m.Object.SetOpacity(RingOpacity(age))
		case MarkerDot:
			m.Object.SetScale(DotScale(age))
		}
	}
}

// EvictExcess drops the oldest markers until the capacity bound holds
func (e *ParticleEngine) EvictExcess() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.evictLocked()
}

func (e *ParticleEngine) evictLocked() {
	for len(e.markers) > e.cfg.MaxParticles {
		oldest := e.markers[0]
		e.markers[0] = Marker{}
		e.markers = e.markers[1:]
		e.release(oldest)
	}
}

// Clear removes and releases every marker
func (e *ParticleEngine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := len(e.markers) - 1; i >= 0; i-- {
		e.release(e.markers[i])
	}
	e.markers = e.markers[:0]
}

func (e *ParticleEngine) release(m Marker) {
	e.renderer.RemoveFromGroup(e.group, m.Object)
	e.renderer.Release(m.Object)
}

// Len returns the number of live markers
func (e *ParticleEngine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.markers)
}

// Markers returns a snapshot of live markers in insertion order
func (e *ParticleEngine) Markers() []Marker {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Marker, len(e.markers))
	copy(out, e.markers)
	return out
}

// MaxParticles returns the capacity bound
func (e *ParticleEngine) MaxParticles() int {
	return e.cfg.MaxParticles
}

// RingScale grows linearly: 1 at spawn, 2.5 after 800ms
func RingScale(age time.Duration) float64 {
	return 1 + (ms(age)/ms(ringGrowthPeriod))*ringGrowthFactor
}

// RingOpacity fades linearly from 0.7 and clamps at 0
func RingOpacity(age time.Duration) float64 {
	return math.Max(0, ringOpacity-ms(age)/ms(ringFadePeriod))
}

// DotScale pulses around 1 with ±0.15 amplitude
func DotScale(age time.Duration) float64 {
	return 1 + math.Sin(ms(age)/ms(dotPulsePeriod))*dotPulseAmplitude
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

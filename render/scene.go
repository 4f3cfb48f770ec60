// @focus: #render { globe, markers } #scene { graph }
package render

import (
	"math"
	"math/rand"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/world-mood/scene"
	"github.com/lixenwraith/world-mood/vmath"
)

// CellAspect is the width/height ratio correction for terminal cells
const CellAspect = 2.0

// node is the TerminalScene implementation of scene.Object
type node struct {
	scene.Transform
	id       uint64
	geometry scene.Geometry
	material scene.Material
	children []*node
	parent   *node
	released bool
}

// Overlay draws on top of the globe each frame, e.g. the HUD
type Overlay interface {
	Draw(buf *Buffer)
}

// TerminalScene is a scene.Renderer drawing an orthographic view of the globe into a tcell screen.
// Objects in the root group are positioned in globe coordinates and rotate with it.
type TerminalScene struct {
	mu     sync.Mutex
	screen tcell.Screen
	buf    *Buffer

	root   *node
	nextID uint64
	live   int

	rotX, rotY float64
	light      vmath.Vec3F
	stars      []star
	overlay    Overlay
}

type star struct {
	x, y   float64 // normalized [0,1)
	bright bool
}

// NewTerminalScene draws into screen; stars are placed from seed so the sky is stable
func NewTerminalScene(screen tcell.Screen, stars int, seed int64) *TerminalScene {
	w, h := screen.Size()
	ts := &TerminalScene{
		screen: screen,
		buf:    NewBuffer(w, h),
		light:  vmath.V3FNormalize(vmath.Vec3F{X: -0.5, Y: 0.45, Z: 0.75}),
	}
	ts.root = &node{Transform: scene.NewTransform(1), geometry: scene.Geometry{Kind: scene.GeometryGroup}}

	rng := rand.New(rand.NewSource(seed))
	ts.stars = make([]star, stars)
	for i := range ts.stars {
		ts.stars[i] = star{x: rng.Float64(), y: rng.Float64(), bright: rng.Intn(5) == 0}
	}
	return ts
}

// Root is the globe group; markers belong here
func (ts *TerminalScene) Root() scene.Object { return ts.root }

// SetRotation sets globe tilt (around X) and spin (around Y) in radians
func (ts *TerminalScene) SetRotation(x, y float64) {
	ts.mu.Lock()
	ts.rotX, ts.rotY = x, y
	ts.mu.Unlock()
}

func (ts *TerminalScene) SetOverlay(o Overlay) {
	ts.mu.Lock()
	ts.overlay = o
	ts.mu.Unlock()
}

// Live returns the number of created objects not yet released
func (ts *TerminalScene) Live() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.live
}

func (ts *TerminalScene) CreateGroup() scene.Object {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.nextID++
	return &node{
		Transform: scene.NewTransform(1),
		id:        ts.nextID,
		geometry:  scene.Geometry{Kind: scene.GeometryGroup},
	}
}

func (ts *TerminalScene) CreateObject(g scene.Geometry, m scene.Material) scene.Object {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.nextID++
	ts.live++
	return &node{
		Transform: scene.NewTransform(m.Opacity),
		id:        ts.nextID,
		geometry:  g,
		material:  m,
	}
}

func (ts *TerminalScene) AddToGroup(parent, obj scene.Object) {
	p, ok1 := parent.(*node)
	n, ok2 := obj.(*node)
	if !ok1 || !ok2 || n.released {
		return
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if n.parent != nil {
		n.parent.remove(n)
	}
	n.parent = p
	p.children = append(p.children, n)
}

func (ts *TerminalScene) RemoveFromGroup(parent, obj scene.Object) {
	p, ok1 := parent.(*node)
	n, ok2 := obj.(*node)
	if !ok1 || !ok2 {
		return
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if n.parent == p {
		p.remove(n)
		n.parent = nil
	}
}

func (ts *TerminalScene) Release(obj scene.Object) {
	n, ok := obj.(*node)
	if !ok {
		return
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if n.released {
		return
	}
	if n.parent != nil {
		n.parent.remove(n)
		n.parent = nil
	}
	n.released = true
	n.children = nil
	if n.geometry.Kind != scene.GeometryGroup {
		ts.live--
	}
}

func (n *node) remove(child *node) {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			return
		}
	}
}

// RenderFrame composes stars, globe, markers and the overlay, then shows the screen
func (ts *TerminalScene) RenderFrame() {
	ts.mu.Lock()
	w, h := ts.screen.Size()
	if bw, bh := ts.buf.Size(); bw != w || bh != h {
		ts.buf.Resize(w, h)
	}
	ts.buf.Clear(RgbBackground)

	v := ts.viewport()
	ts.drawStars(v)
	ts.drawGlobe(v)
	ts.drawNodes(v, ts.root)
	overlay := ts.overlay
	ts.mu.Unlock()

	if overlay != nil {
		overlay.Draw(ts.buf)
	}
	ts.buf.Flush(ts.screen)
	ts.screen.Show()
}

// viewport maps globe units to cells
type viewport struct {
	cx, cy float64
	radius float64 // rows per globe unit
}

func (ts *TerminalScene) viewport() viewport {
	w, h := ts.buf.Size()
	r := math.Min(float64(h)/2-1, float64(w)/(2*CellAspect)-1)
	if r < 1 {
		r = 1
	}
	return viewport{cx: float64(w) / 2, cy: float64(h) / 2, radius: r * 0.9}
}

// project maps a view-space point to cell coordinates
func (v viewport) project(p vmath.Vec3F) (float64, float64) {
	return v.cx + p.X*v.radius*CellAspect, v.cy - p.Y*v.radius
}

// toView applies globe rotation: spin around Y, then tilt around X
func (ts *TerminalScene) toView(p vmath.Vec3F) vmath.Vec3F {
	return vmath.V3FRotateX(vmath.V3FRotateY(p, ts.rotY), ts.rotX)
}

// toGlobe inverts toView
func (ts *TerminalScene) toGlobe(p vmath.Vec3F) vmath.Vec3F {
	return vmath.V3FRotateY(vmath.V3FRotateX(p, -ts.rotX), -ts.rotY)
}

func (ts *TerminalScene) drawStars(v viewport) {
	w, h := ts.buf.Size()
	for _, s := range ts.stars {
		x, y := int(s.x*float64(w)), int(s.y*float64(h))
		dx := (float64(x) - v.cx) / (v.radius * CellAspect)
		dy := (float64(y) - v.cy) / v.radius
		if dx*dx+dy*dy <= 1.2 {
			continue
		}
		if s.bright {
			ts.buf.Plot(x, y, '*', RgbStarBright, 1)
		} else {
			ts.buf.Plot(x, y, '.', RgbStarDim, 1)
		}
	}
}

const (
	gridStep    = 30.0 // degrees between graticule lines
	gridWidth   = 1.6  // degrees either side of a line
	glowOuter   = 1.12
	ambientTerm = 0.18
)

func (ts *TerminalScene) drawGlobe(v viewport) {
	w, h := ts.buf.Size()
	top := int(v.cy - v.radius*glowOuter - 1)
	bottom := int(v.cy + v.radius*glowOuter + 1)
	left := int(v.cx - v.radius*CellAspect*glowOuter - 1)
	right := int(v.cx + v.radius*CellAspect*glowOuter + 1)

	for y := max(top, 0); y <= min(bottom, h-1); y++ {
		ny := -(float64(y) + 0.5 - v.cy) / v.radius
		for x := max(left, 0); x <= min(right, w-1); x++ {
			nx := (float64(x) + 0.5 - v.cx) / (v.radius * CellAspect)
			d := nx*nx + ny*ny

			if d > 1 {
				if r := math.Sqrt(d); r < glowOuter {
					ts.buf.SetBg(x, y, RgbGlow, (glowOuter-r)/(glowOuter-1)*0.6)
				}
				continue
			}

			normal := vmath.Vec3F{X: nx, Y: ny, Z: math.Sqrt(1 - d)}
			lambert := math.Max(0, vmath.V3FDot(normal, ts.light))
			shade := ambientTerm + (1-ambientTerm)*lambert
			bg := Blend(RgbOceanDark, RgbOceanLit, shade)

			cell := Cell{Bg: bg, Fg: Scale(bg, 1.4), Rune: ShadeRune(lambert * 0.5)}
			lat, lng, _ := vmath.Vec3ToGeo(ts.toGlobe(normal))
			if onGrid(lat) || onGrid(lng) {
				cell.Rune = '·'
				cell.Fg = Blend(bg, RgbGrid, 0.35+0.5*shade)
			}
			ts.buf.Set(x, y, cell)
		}
	}
}

func onGrid(deg float64) bool {
	m := math.Mod(math.Abs(deg), gridStep)
	return m < gridWidth || gridStep-m < gridWidth
}

func (ts *TerminalScene) drawNodes(v viewport, group *node) {
	for _, n := range group.children {
		switch n.geometry.Kind {
		case scene.GeometryGroup:
			ts.drawNodes(v, n)
		case scene.GeometrySphere:
			ts.drawDot(v, n)
		case scene.GeometryRing:
			ts.drawRing(v, n)
		}
	}
}

// facing reports whether a surface point is on the visible hemisphere
func facing(p vmath.Vec3F) bool {
	return p.Z > 0
}

func (ts *TerminalScene) drawDot(v viewport, n *node) {
	p := ts.toView(n.Position())
	if !facing(p) {
		return
	}
	sx, sy := v.project(p)
	glyph := '●'
	if n.Scale() < 1 {
		glyph = '•'
	}
	x, y := int(math.Floor(sx)), int(math.Floor(sy))
	ts.buf.Plot(x, y, glyph, FromColor(n.material.Color), n.Opacity())
}

func (ts *TerminalScene) drawRing(v viewport, n *node) {
	alpha := n.Opacity()
	if alpha <= 0 {
		return
	}
	center := ts.toView(n.Position())
	if !facing(center) {
		return
	}

	radius := n.geometry.Outer * n.Scale()
	if radius*v.radius < 0.75 {
		// Smaller than a cell; the dot covers it
		return
	}

	// Ring lies in the plane perpendicular to its normal
	normal := ts.toView(vmath.V3FAdd(n.Position(), n.Normal()))
	normal = vmath.V3FNormalize(vmath.V3FSub(normal, center))
	u, w := basis(normal)

	segments := n.geometry.Segments
	if segments < 8 {
		segments = 8
	}
	color := FromColor(n.material.Color)
	for i := 0; i < segments; i++ {
		a := 2 * math.Pi * float64(i) / float64(segments)
		s, c := math.Sincos(a)
		pt := vmath.V3FAdd(center, vmath.V3FAdd(vmath.V3FScale(u, c*radius), vmath.V3FScale(w, s*radius)))
		sx, sy := v.project(pt)
		ts.buf.Plot(int(math.Floor(sx)), int(math.Floor(sy)), '∘', color, alpha)
	}
}

// basis returns two unit vectors orthogonal to n and each other
func basis(n vmath.Vec3F) (vmath.Vec3F, vmath.Vec3F) {
	ref := vmath.Vec3F{Y: 1}
	if math.Abs(n.Y) > 0.9 {
		ref = vmath.Vec3F{X: 1}
	}
	u := vmath.V3FNormalize(cross(ref, n))
	return u, cross(n, u)
}

func cross(a, b vmath.Vec3F) vmath.Vec3F {
	return vmath.Vec3F{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

var _ scene.Renderer = (*TerminalScene)(nil)

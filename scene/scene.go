// Package scene defines the renderer capability the particle engine draws through.
// Implementations own the camera, lighting and the per-frame draw call.
package scene

import (
	"github.com/lixenwraith/world-mood/mood"
	"github.com/lixenwraith/world-mood/vmath"
)

// GeometryKind selects the primitive shape of an object
type GeometryKind uint8

const (
	GeometryGroup GeometryKind = iota
	GeometrySphere
	GeometryRing
)

func (k GeometryKind) String() string {
	switch k {
	case GeometryGroup:
		return "group"
	case GeometrySphere:
		return "sphere"
	case GeometryRing:
		return "ring"
	}
	return "unknown"
}

// Geometry describes object shape in globe units
type Geometry struct {
	Kind     GeometryKind
	Radius   float64 // sphere
	Inner    float64 // ring
	Outer    float64 // ring
	Segments int
}

func Sphere(radius float64, segments int) Geometry {
	return Geometry{Kind: GeometrySphere, Radius: radius, Segments: segments}
}

func Ring(inner, outer float64, segments int) Geometry {
	return Geometry{Kind: GeometryRing, Inner: inner, Outer: outer, Segments: segments}
}

// Side selects which faces are drawn
type Side uint8

const (
	SideFront Side = iota
	SideBack
	SideDouble
)

// Material describes object surface
type Material struct {
	Color       mood.Color
	Opacity     float64
	Transparent bool
	Side        Side
}

// Object is a live handle into the renderer's object graph.
// Position, scale and opacity are written every animation tick.
type Object interface {
	Position() vmath.Vec3F
	SetPosition(p vmath.Vec3F)
	Scale() float64
	SetScale(s float64)
	Opacity() float64
	SetOpacity(o float64)
	// LookAt orients the object's facing normal toward target
	LookAt(target vmath.Vec3F)
}

// Renderer is the scene graph capability
type Renderer interface {
	CreateGroup() Object
	CreateObject(g Geometry, m Material) Object
	AddToGroup(parent, obj Object)
	RemoveFromGroup(parent, obj Object)
	// Release frees resources held by obj; obj must not be used afterwards
	Release(obj Object)
	RenderFrame()
}

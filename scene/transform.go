package scene

import (
	"github.com/lixenwraith/world-mood/vmath"
)

// Transform is the mutable state shared by Object implementations.
// Embed it to satisfy Object.
type Transform struct {
	position vmath.Vec3F
	normal   vmath.Vec3F
	scale    float64
	opacity  float64
}

// NewTransform returns a transform at the origin with unit scale
func NewTransform(opacity float64) Transform {
	return Transform{scale: 1, opacity: opacity, normal: vmath.Vec3F{Z: 1}}
}

func (t *Transform) Position() vmath.Vec3F     { return t.position }
func (t *Transform) SetPosition(p vmath.Vec3F) { t.position = p }
func (t *Transform) Scale() float64            { return t.scale }
func (t *Transform) SetScale(s float64)        { t.scale = s }
func (t *Transform) Opacity() float64          { return t.opacity }
func (t *Transform) SetOpacity(o float64)      { t.opacity = o }

// Normal returns the unit facing direction set by LookAt
func (t *Transform) Normal() vmath.Vec3F { return t.normal }

func (t *Transform) LookAt(target vmath.Vec3F) {
	n := vmath.V3FNormalize(vmath.V3FSub(target, t.position))
	if n == (vmath.Vec3F{}) {
		return
	}
	t.normal = n
}

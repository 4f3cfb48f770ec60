package render

import (
	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/world-mood/mood"
)

// RGB is a 24-bit color the compositor blends in before handing cells to tcell
type RGB struct {
	R, G, B uint8
}

var RGBBlack = RGB{0, 0, 0}

// FromColor converts a catalog color
func FromColor(c mood.Color) RGB {
	r, g, b := c.RGB()
	return RGB{r, g, b}
}

func (c RGB) TCell() tcell.Color {
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}

// clamp converts float to uint8
func clamp(v float64) uint8 {
	if v >= 255.0 {
		return 255
	}
	if v <= 0.0 {
		return 0
	}
	return uint8(v + 0.5)
}

// Blend is linear alpha blending of src over c
// If alpha is 1.0 or 0.0, we return early to save math
func Blend(c, src RGB, alpha float64) RGB {
	if alpha >= 1.0 {
		return src
	}
	if alpha <= 0.0 {
		return c
	}

	inv := 1.0 - alpha

	return RGB{
		R: clamp(float64(src.R)*alpha + float64(c.R)*inv),
		G: clamp(float64(src.G)*alpha + float64(c.G)*inv),
		B: clamp(float64(src.B)*alpha + float64(c.B)*inv),
	}
}

// Scale multiplies every channel by f, used for lighting
func Scale(c RGB, f float64) RGB {
	return RGB{
		R: clamp(float64(c.R) * f),
		G: clamp(float64(c.G) * f),
		B: clamp(float64(c.B) * f),
	}
}

// add is addition with clamping
func add(a, b uint8) uint8 {
	sum := int(a) + int(b)
	if sum > 255 {
		return 255
	}
	return uint8(sum)
}

// Add performs additive blend with clamping, used for glow
func Add(c, src RGB, alpha float64) RGB {
	if alpha <= 0.0 {
		return c
	}

	added := RGB{
		R: add(c.R, src.R),
		G: add(c.G, src.G),
		B: add(c.B, src.B),
	}

	if alpha >= 1.0 {
		return added
	}

	return Blend(c, added, alpha)
}

// Luma approximates perceived brightness in [0,255]
func Luma(c RGB) float64 {
	return 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
}

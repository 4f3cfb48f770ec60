package render

import (
	"github.com/gdamore/tcell/v2"
)

// Buffer is a compositor backed by a Cell array. Layers draw back to front
// and blend into what is already there, then Flush copies to the screen.
type Buffer struct {
	cells  []Cell
	width  int
	height int
}

// NewBuffer creates a buffer with the specified dimensions
func NewBuffer(width, height int) *Buffer {
	b := &Buffer{}
	b.Resize(width, height)
	return b
}

// Resize adjusts buffer dimensions, reallocates only if capacity insufficient
func (b *Buffer) Resize(width, height int) {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	size := width * height
	if cap(b.cells) < size {
		b.cells = make([]Cell, size)
	} else {
		b.cells = b.cells[:size]
	}
	b.width = width
	b.height = height
	b.Clear(RgbBackground)
}

func (b *Buffer) Size() (int, int) { return b.width, b.height }

// Clear resets all cells using exponential copy
func (b *Buffer) Clear(bg RGB) {
	if len(b.cells) == 0 {
		return
	}
	b.cells[0] = Cell{Fg: RgbText, Bg: bg}
	for filled := 1; filled < len(b.cells); filled *= 2 {
		copy(b.cells[filled:], b.cells[:filled])
	}
}

func (b *Buffer) inBounds(x, y int) bool {
	return x >= 0 && x < b.width && y >= 0 && y < b.height
}

// Get returns the cell at x,y; out of bounds returns the zero cell
func (b *Buffer) Get(x, y int) Cell {
	if !b.inBounds(x, y) {
		return Cell{}
	}
	return b.cells[y*b.width+x]
}

// Set replaces the cell at x,y
func (b *Buffer) Set(x, y int, c Cell) {
	if !b.inBounds(x, y) {
		return
	}
	b.cells[y*b.width+x] = c
}

// SetBg blends bg into the background and keeps the glyph
func (b *Buffer) SetBg(x, y int, bg RGB, alpha float64) {
	if !b.inBounds(x, y) {
		return
	}
	dst := &b.cells[y*b.width+x]
	dst.Bg = Blend(dst.Bg, bg, alpha)
}

// Plot writes r with fg blended against the current background at alpha
func (b *Buffer) Plot(x, y int, r rune, fg RGB, alpha float64) {
	if !b.inBounds(x, y) || alpha <= 0 {
		return
	}
	dst := &b.cells[y*b.width+x]
	dst.Rune = r
	dst.Fg = Blend(dst.Bg, fg, alpha)
	dst.Bold = false
}

// Text writes s left to right, clipped to maxWidth cells; returns cells written
func (b *Buffer) Text(x, y int, s string, fg, bg RGB, maxWidth int) int {
	n := 0
	for _, r := range s {
		if n >= maxWidth || x+n >= b.width {
			break
		}
		b.Set(x+n, y, Cell{Rune: r, Fg: fg, Bg: bg})
		n++
	}
	return n
}

// Fill paints a rectangle background
func (b *Buffer) Fill(x, y, w, h int, bg RGB, alpha float64) {
	for row := y; row < y+h; row++ {
		for col := x; col < x+w; col++ {
			if b.inBounds(col, row) {
				dst := &b.cells[row*b.width+col]
				dst.Bg = Blend(dst.Bg, bg, alpha)
				dst.Fg = Blend(dst.Fg, bg, alpha)
			}
		}
	}
}

// Flush copies every cell to the screen
func (b *Buffer) Flush(screen tcell.Screen) {
	for y := 0; y < b.height; y++ {
		row := y * b.width
		for x := 0; x < b.width; x++ {
			c := b.cells[row+x]
			r := c.Rune
			if r == 0 {
				r = ' '
			}
			style := tcell.StyleDefault.Foreground(c.Fg.TCell()).Background(c.Bg.TCell()).Bold(c.Bold)
			screen.SetContent(x, y, r, nil, style)
		}
	}
}

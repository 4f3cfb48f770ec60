package render

// Cell is one compositor slot; a zero Rune draws as a space
type Cell struct {
	Rune rune
	Fg   RGB
	Bg   RGB
	Bold bool
}

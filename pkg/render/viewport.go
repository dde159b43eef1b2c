package render

import (
	"strconv"
	"strings"

	"github.com/matzehuels/archdiagram/pkg/graph"
)

// Viewport constants.
const (
	ViewportPadding = 50
	fallbackWidth   = 1000
	fallbackHeight  = 800
	fallbackNodeW   = 150
	fallbackNodeH   = 50
)

// ViewBox is an SVG viewBox rectangle.
type ViewBox struct {
	X, Y, Width, Height float64
}

// DefaultViewBox is used when there is no graph to show.
var DefaultViewBox = ViewBox{0, 0, fallbackWidth, fallbackHeight}

// String formats the box as an SVG viewBox attribute value.
func (v ViewBox) String() string {
	return strings.Join([]string{num(v.X), num(v.Y), num(v.Width), num(v.Height)}, " ")
}

// Viewport computes the visible region for a positioned graph.
//
// A graph holding exactly one top-level node without children and without
// edges is framed tightly around that node with [ViewportPadding] on every
// side. Any other graph shows its full extent, padded the same way, with the
// origin shifted so content at (0,0) is inset. A nil graph yields
// [DefaultViewBox].
func Viewport(g *graph.Graph) ViewBox {
	if g == nil {
		return DefaultViewBox
	}

	if len(g.Children) == 1 && len(g.Edges) == 0 && !g.Children[0].HasChildren() {
		n := g.Children[0]
		return ViewBox{
			X:      n.X - ViewportPadding,
			Y:      n.Y - ViewportPadding,
			Width:  orFallback(n.Width, fallbackNodeW) + 2*ViewportPadding,
			Height: orFallback(n.Height, fallbackNodeH) + 2*ViewportPadding,
		}
	}

	return ViewBox{
		X:      -ViewportPadding,
		Y:      -ViewportPadding,
		Width:  orFallback(g.Width, fallbackWidth) + 2*ViewportPadding,
		Height: orFallback(g.Height, fallbackHeight) + 2*ViewportPadding,
	}
}

func orFallback(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

// num formats a coordinate with the shortest exact representation.
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

package render

import (
	"strings"

	"github.com/matzehuels/archdiagram/pkg/graph"
)

// LabelOffset is how far above its anchor point an edge label is drawn.
const LabelOffset = 10

// PathData builds SVG path data through points: a move to the first point
// followed by straight line segments. Fewer than two points yield "".
func PathData(points []graph.Point) string {
	if len(points) < 2 {
		return ""
	}
	var b strings.Builder
	b.WriteString("M ")
	b.WriteString(num(points[0].X))
	b.WriteByte(' ')
	b.WriteString(num(points[0].Y))
	for _, p := range points[1:] {
		b.WriteString(" L ")
		b.WriteString(num(p.X))
		b.WriteByte(' ')
		b.WriteString(num(p.Y))
	}
	return b.String()
}

// LabelAnchor returns where an edge label is drawn: the point at index
// len(points)/2, raised by [LabelOffset]. It reports false for no points.
func LabelAnchor(points []graph.Point) (graph.Point, bool) {
	if len(points) == 0 {
		return graph.Point{}, false
	}
	p := points[len(points)/2]
	p.Y -= LabelOffset
	return p, true
}

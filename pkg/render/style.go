package render

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"math"

	"github.com/matzehuels/archdiagram/pkg/errors"
	"github.com/matzehuels/archdiagram/pkg/graph"
)

// Style names.
const (
	StyleLight = "light"
	StyleDark  = "dark"
)

// Style controls the visual appearance of a diagram.
type Style interface {
	// RenderDefs writes SVG <defs> content, including the arrowhead marker.
	RenderDefs(buf *bytes.Buffer)
	// RenderBackground writes the full-viewport background, if any.
	RenderBackground(buf *bytes.Buffer, vb ViewBox)
	// RenderNode writes the shape and text of one node in its own
	// coordinate space (origin at the node's top-left corner).
	RenderNode(buf *bytes.Buffer, n NodeView)
	// RenderEdge writes one edge section with its optional label.
	RenderEdge(buf *bytes.Buffer, e EdgeView)
}

// NodeView is the data needed to draw a node.
type NodeView struct {
	ID, Label, Subtitle, Icon, Kind string
	Size                            Size
	State                           NodeState
	Group                           bool   // Node has children
	Animation                       []Size // Keyframes when the node was just toggled
}

// EdgeView is the data needed to draw one edge section.
type EdgeView struct {
	ID     string
	Path   string
	Label  string
	Anchor graph.Point
}

// Palette is a set of colors for [Themed].
type Palette struct {
	Background string
	NodeFill   string
	GroupFill  string
	NodeStroke string
	Text       string
	MutedText  string
	Edge       string
	Arrow      string
	Accents    map[string]string // Stroke color per node kind
}

// Light and Dark are the built-in palettes.
var (
	Light = Palette{
		Background: "#ffffff",
		NodeFill:   "#ffffff",
		GroupFill:  "#f8fafc",
		NodeStroke: "#e2e8f0",
		Text:       "#0f172a",
		MutedText:  "#64748b",
		Edge:       "#cbd5e1",
		Arrow:      "#888",
		Accents: map[string]string{
			graph.KindGateway:  "#f59e0b",
			graph.KindDatabase: "#10b981",
		},
	}
	Dark = Palette{
		Background: "#0f172a",
		NodeFill:   "#1e293b",
		GroupFill:  "#111827",
		NodeStroke: "#334155",
		Text:       "#f8fafc",
		MutedText:  "#94a3b8",
		Edge:       "#475569",
		Arrow:      "#888",
		Accents: map[string]string{
			graph.KindGateway:  "#fbbf24",
			graph.KindDatabase: "#34d399",
		},
	}
)

// StyleByName returns the style registered under name.
func StyleByName(name string) (Style, error) {
	switch name {
	case "", StyleLight:
		return Themed{Palette: Light}, nil
	case StyleDark:
		return Themed{Palette: Dark}, nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidStyle, "unknown style %q (want %s or %s)", name, StyleLight, StyleDark)
	}
}

// Themed draws rounded cards with a palette.
type Themed struct {
	Palette Palette
}

const (
	cornerRadius  = 6
	nodePadding   = 8
	iconSize      = 16
	labelFontSize = 14
	subFontSize   = 12
	edgeFontSize  = 12
	edgeWidth     = 1.5
	animSteps     = 12
)

func (s Themed) RenderDefs(buf *bytes.Buffer) {
	buf.WriteString("  <defs>\n")
	buf.WriteString(`    <marker id="arrowhead" markerWidth="10" markerHeight="7" refX="9" refY="3.5" orient="auto">` + "\n")
	fmt.Fprintf(buf, `      <polygon points="0 0, 10 3.5, 0 7" fill="%s"/>`+"\n", s.Palette.Arrow)
	buf.WriteString("    </marker>\n")
	buf.WriteString("  </defs>\n")
}

func (s Themed) RenderBackground(buf *bytes.Buffer, vb ViewBox) {
	fmt.Fprintf(buf, `  <rect class="background" x="%s" y="%s" width="%s" height="%s" fill="%s"/>`+"\n",
		num(vb.X), num(vb.Y), num(vb.Width), num(vb.Height), s.Palette.Background)
}

func (s Themed) RenderNode(buf *bytes.Buffer, n NodeView) {
	fill := s.Palette.NodeFill
	if n.Group {
		fill = s.Palette.GroupFill
	}
	stroke := s.Palette.NodeStroke
	if accent, ok := s.Palette.Accents[n.Kind]; ok {
		stroke = accent
	}

	fmt.Fprintf(buf, `<rect class="node-box" width="%s" height="%s" rx="%d" fill="%s" stroke="%s" stroke-width="1">`,
		num(round2(n.Size.Width)), num(round2(n.Size.Height)), cornerRadius, fill, stroke)
	if len(n.Animation) > 1 {
		buf.WriteString("\n")
		writeAnimate(buf, "width", n.Animation, func(sz Size) float64 { return sz.Width })
		writeAnimate(buf, "height", n.Animation, func(sz Size) float64 { return sz.Height })
	}
	buf.WriteString("</rect>\n")

	textX := nodePadding
	if n.Icon != "" {
		fmt.Fprintf(buf, `<image class="node-icon" href="%s" x="%d" y="%d" width="%d" height="%d" onerror="this.style.display='none'"/>`+"\n",
			EscapeXML(n.Icon), nodePadding, nodePadding, iconSize, iconSize)
		textX += iconSize + 4
	}

	labelY := nodePadding + labelFontSize
	if !n.Group {
		labelY = int(n.Size.Height/2) + labelFontSize/3
		if n.Subtitle != "" {
			labelY -= subFontSize / 2
		}
	}
	fmt.Fprintf(buf, `<text class="node-label" x="%d" y="%d" font-size="%d" font-weight="bold" fill="%s">%s</text>`+"\n",
		textX, labelY, labelFontSize, s.Palette.Text, EscapeXML(n.Label))
	if n.Subtitle != "" {
		fmt.Fprintf(buf, `<text class="node-subtitle" x="%d" y="%d" font-size="%d" fill="%s">%s</text>`+"\n",
			textX, labelY+subFontSize+2, subFontSize, s.Palette.MutedText, EscapeXML(n.Subtitle))
	}
}

func (s Themed) RenderEdge(buf *bytes.Buffer, e EdgeView) {
	fmt.Fprintf(buf, `    <path d="%s" fill="none" stroke="%s" stroke-width="%s" marker-end="url(#arrowhead)" data-edge-id="%s"/>`+"\n",
		e.Path, s.Palette.Edge, num(edgeWidth), EscapeXML(e.ID))
	if e.Label != "" {
		fmt.Fprintf(buf, `    <text x="%s" y="%s" text-anchor="middle" font-size="%d" fill="%s" pointer-events="none">%s</text>`+"\n",
			num(e.Anchor.X), num(e.Anchor.Y), edgeFontSize, s.Palette.MutedText, EscapeXML(e.Label))
	}
}

func writeAnimate(buf *bytes.Buffer, attr string, frames []Size, pick func(Size) float64) {
	fmt.Fprintf(buf, `  <animate attributeName="%s" dur="%dms" fill="freeze" values="`, attr, ExpandDuration.Milliseconds())
	for i, f := range frames {
		if i > 0 {
			buf.WriteByte(';')
		}
		buf.WriteString(num(round2(pick(f))))
	}
	buf.WriteString(`"/>` + "\n")
}

// EscapeXML escapes text for use in SVG content and attribute values.
func EscapeXML(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

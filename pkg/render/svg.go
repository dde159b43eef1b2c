package render

import (
	"bytes"
	"fmt"

	"github.com/matzehuels/archdiagram/pkg/graph"
)

// Panel messages shown in place of a diagram.
const (
	MsgCalculating = "Calculating layout..."
	MsgLayoutError = "Error calculating diagram layout. Check the logs for details."
	MsgEmpty       = "No diagram data available."
)

// SVGOption configures [RenderSVG].
type SVGOption func(*svgRenderer)

type svgRenderer struct {
	style      Style
	states     States
	toggled    string
	background bool
}

// WithStyle sets the visual style. The default is the light style.
func WithStyle(s Style) SVGOption { return func(r *svgRenderer) { r.style = s } }

// WithStates draws the given nodes in their presentation state.
func WithStates(s States) SVGOption { return func(r *svgRenderer) { r.states = s } }

// WithToggled animates the node with the given ID from its previous state to
// the state recorded in the states passed to [WithStates].
func WithToggled(id string) SVGOption { return func(r *svgRenderer) { r.toggled = id } }

// WithBackground fills the viewport with the style's background color.
func WithBackground() SVGOption { return func(r *svgRenderer) { r.background = true } }

func newSVGRenderer(opts ...SVGOption) svgRenderer {
	r := svgRenderer{style: Themed{Palette: Light}}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// RenderSVG draws a positioned graph. Nodes are drawn recursively with
// children translated into their parent's coordinate space; edges are drawn
// on top in graph coordinates, one path per section.
func RenderSVG(g graph.Graph, opts ...SVGOption) []byte {
	r := newSVGRenderer(opts...)
	vb := Viewport(&g)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="%s" width="100%%" height="100%%" preserveAspectRatio="xMidYMid meet" class="diagram">`+"\n", vb)
	r.style.RenderDefs(&buf)
	if r.background {
		r.style.RenderBackground(&buf, vb)
	}

	buf.WriteString(`  <g class="nodes">` + "\n")
	for _, n := range g.Children {
		r.renderNode(&buf, n)
	}
	buf.WriteString("  </g>\n")

	buf.WriteString(`  <g class="edges">` + "\n")
	for _, e := range g.Edges {
		r.renderEdge(&buf, e)
	}
	buf.WriteString("  </g>\n")

	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

// RenderMessage draws a panel holding only a centered message, used for the
// calculating, error and empty states.
func RenderMessage(msg string) []byte {
	vb := DefaultViewBox
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="%s" width="100%%" height="100%%" class="diagram-message">`+"\n", vb)
	fmt.Fprintf(&buf, `  <text x="%s" y="%s" text-anchor="middle" font-size="16" fill="%s">%s</text>`+"\n",
		num(vb.Width/2), num(vb.Height/2), Light.MutedText, EscapeXML(msg))
	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

func (r *svgRenderer) renderNode(buf *bytes.Buffer, n graph.Node) {
	state := r.states[n.ID]
	base := BaseSize(n.Width, n.Height)
	view := NodeView{
		ID:       n.ID,
		Label:    n.DisplayLabel(),
		Subtitle: n.Subtitle,
		Icon:     n.Icon,
		Kind:     n.Kind,
		Size:     SizeFor(state, base),
		State:    state,
		Group:    n.HasChildren(),
	}
	if n.ID == r.toggled {
		view.Animation = NewTransition(base, state.Toggle()).Keyframes(animSteps)
	}

	fmt.Fprintf(buf, `<g class="node node-%s" data-node-id="%s" data-state="%s" transform="translate(%s,%s)">`+"\n",
		EscapeXML(kindOrDefault(n.Kind)), EscapeXML(n.ID), state, num(n.X), num(n.Y))
	r.style.RenderNode(buf, view)
	for _, c := range n.Children {
		r.renderNode(buf, c)
	}
	buf.WriteString("</g>\n")
}

func (r *svgRenderer) renderEdge(buf *bytes.Buffer, e graph.Edge) {
	if len(e.Sections) == 0 {
		return
	}
	fmt.Fprintf(buf, `    <g class="edge" data-edge-id="%s">`+"\n", EscapeXML(e.ID))
	for _, s := range e.Sections {
		points := s.Points()
		view := EdgeView{ID: e.ID, Path: PathData(points)}
		if anchor, ok := LabelAnchor(points); ok {
			view.Label = e.Label
			view.Anchor = anchor
		}
		r.style.RenderEdge(buf, view)
	}
	buf.WriteString("    </g>\n")
}

func kindOrDefault(kind string) string {
	if kind == "" {
		return graph.KindService
	}
	return kind
}

// Package render draws positioned architecture graphs as SVG.
//
// # Viewport
//
// [Viewport] frames the diagram. A lone node is framed tightly; anything
// else shows the whole graph. Both add [ViewportPadding] on every side.
//
// # Edges
//
// Each edge section becomes one path through its start, bend and end
// points ([PathData]), ending in the shared arrowhead marker. A label sits
// above the middle point of the section ([LabelAnchor]).
//
// # Nodes
//
// Nodes are nested groups translated into their parent's coordinates. An
// icon that fails to load hides itself. Nodes have a presentation state
// ([NodeState]) toggled by clicks; expanded nodes are drawn 1.5x wider and
// 1.2x taller, and [WithToggled] adds the elastic transition as SMIL
// keyframes. Presentation state never feeds back into layout.
//
// # Format Conversion
//
// [ToPDF] and [ToPNG] convert the SVG with the external rsvg-convert tool.
//
//	svg := render.RenderSVG(positioned, render.WithStyle(style))
//	png, err := render.ToPNG(svg, 2.0)
package render

package layout

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/archdiagram/pkg/errors"
	"github.com/matzehuels/archdiagram/pkg/graph"
)

// Engine computes positions for a graph.
type Engine interface {
	Layout(ctx context.Context, g graph.Graph, opts Options) (graph.Graph, error)
}

// Graphviz lays out graphs with the Graphviz dot engine compiled to
// WebAssembly. The runtime is created on first use and shared; calls are
// serialized.
type Graphviz struct {
	mu     sync.Mutex
	gv     *graphviz.Graphviz
	logger *log.Logger
}

// NewGraphviz creates a Graphviz engine. A nil logger uses the default logger.
func NewGraphviz(logger *log.Logger) *Graphviz {
	if logger == nil {
		logger = log.Default()
	}
	return &Graphviz{logger: logger}
}

// Close releases the Graphviz runtime.
func (e *Graphviz) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gv == nil {
		return nil
	}
	err := e.gv.Close()
	e.gv = nil
	return err
}

// Layout positions g. Options are merged over [DefaultOptions]; missing
// sizes and edge IDs are filled in by [Prepare]. The returned graph has
// parent-relative node positions, graph-coordinate edge sections and the
// overall width and height.
func (e *Graphviz) Layout(ctx context.Context, g graph.Graph, opts Options) (graph.Graph, error) {
	if err := ctx.Err(); err != nil {
		return graph.Graph{}, err
	}

	prepared := Prepare(g)
	if len(prepared.Children) == 0 {
		prepared.Width, prepared.Height = 0, 0
		return prepared, nil
	}

	dot, engine, err := ToDOT(prepared, Merge(DefaultOptions(), opts))
	if err != nil {
		return graph.Graph{}, err
	}

	start := time.Now()
	out, err := e.run(ctx, dot, engine)
	if err != nil {
		return graph.Graph{}, errors.Wrap(errors.ErrCodeLayoutFailed, err, "graphviz %s layout", engine)
	}
	defer out.Close()

	positioned, err := readPositions(out, prepared)
	if err != nil {
		return graph.Graph{}, errors.Wrap(errors.ErrCodeLayoutFailed, err, "read graphviz output")
	}
	e.logger.Debug("layout complete", "engine", engine, "nodes", graph.NodeCount(positioned),
		"edges", len(positioned.Edges), "duration", time.Since(start).Round(time.Millisecond))
	return positioned, nil
}

// run renders dot to attributed DOT and parses the result back.
func (e *Graphviz) run(ctx context.Context, dot, engine string) (*graphviz.Graph, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.gv == nil {
		gv, err := graphviz.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("init graphviz: %w", err)
		}
		e.gv = gv
	}

	in, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer in.Close()

	e.gv.SetLayout(graphviz.Layout(engine))
	var buf bytes.Buffer
	if err := e.gv.Render(ctx, in, graphviz.XDOT, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	out, err := graphviz.ParseBytes(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("parse layout output: %w", err)
	}
	return out, nil
}

// =============================================================================
// Reading Graphviz output
// =============================================================================

// box is an absolute node box with a top-left origin.
type box struct{ x, y, w, h float64 }

// readPositions copies positions from Graphviz output onto a copy of
// prepared. Graphviz uses a bottom-left origin in points; the result uses a
// top-left origin with 1pt = 1px.
func readPositions(out *graphviz.Graph, prepared graph.Graph) (graph.Graph, error) {
	llx, lly, urx, ury, err := parseBB(out.GetStr("bb"))
	if err != nil {
		return graph.Graph{}, fmt.Errorf("graph bounding box: %w", err)
	}
	flip := func(y float64) float64 { return ury - y }

	clusters := make(map[string]bool)
	graph.Walk(prepared, func(n graph.Node, _ *graph.Node, _ int) bool {
		if n.HasChildren() {
			clusters[n.ID] = true
		}
		return true
	})

	boxes := make(map[string]box)
	edgePos := make(map[string]string)

	n, err := out.FirstNode()
	for ; err == nil && n != nil; n, err = out.NextNode(n) {
		name, nerr := n.Name()
		if nerr != nil {
			return graph.Graph{}, nerr
		}
		if !clusters[name] {
			x, y, perr := parsePoint(n.GetStr("pos"))
			if perr != nil {
				return graph.Graph{}, fmt.Errorf("node %q: %w", name, perr)
			}
			w := parseInches(n.GetStr("width"))
			h := parseInches(n.GetStr("height"))
			boxes[name] = box{x: x - w/2 - llx, y: flip(y) - h/2, w: w, h: h}
		}

		e, eerr := out.FirstOut(n)
		for ; eerr == nil && e != nil; e, eerr = out.NextOut(e) {
			edgePos[e.GetStr("id")] = e.GetStr("pos")
		}
		if eerr != nil {
			return graph.Graph{}, eerr
		}
	}
	if err != nil {
		return graph.Graph{}, err
	}

	if err := readClusters(out, boxes, llx, flip); err != nil {
		return graph.Graph{}, err
	}

	result := graph.Clone(prepared)
	result.X, result.Y = 0, 0
	result.Width = round(urx - llx)
	result.Height = round(ury - lly)
	if err := place(result.Children, boxes, 0, 0); err != nil {
		return graph.Graph{}, err
	}

	for i := range result.Edges {
		pos, ok := edgePos[result.Edges[i].ID]
		if !ok || pos == "" {
			continue
		}
		sections, err := parseSpline(pos, llx, flip)
		if err != nil {
			return graph.Graph{}, fmt.Errorf("edge %q: %w", result.Edges[i].ID, err)
		}
		for j := range sections {
			sections[j].ID = fmt.Sprintf("%s_s%d", result.Edges[i].ID, j)
		}
		result.Edges[i].Sections = sections
	}
	return result, nil
}

func readClusters(g *graphviz.Graph, boxes map[string]box, llx float64, flip func(float64) float64) error {
	sub, err := g.FirstSubGraph()
	for ; err == nil && sub != nil; sub, err = sub.NextSubGraph() {
		name, nerr := sub.Name()
		if nerr != nil {
			return nerr
		}
		if id, ok := strings.CutPrefix(name, clusterPrefix); ok {
			x0, y0, x1, y1, berr := parseBB(sub.GetStr("bb"))
			if berr != nil {
				return fmt.Errorf("cluster %q: %w", id, berr)
			}
			boxes[id] = box{x: x0 - llx, y: flip(y1), w: x1 - x0, h: y1 - y0}
		}
		if err := readClusters(sub, boxes, llx, flip); err != nil {
			return err
		}
	}
	return err
}

// place assigns parent-relative positions from absolute boxes.
func place(ns []graph.Node, boxes map[string]box, ox, oy float64) error {
	for i := range ns {
		b, ok := boxes[ns[i].ID]
		if !ok {
			return fmt.Errorf("no position for node %q", ns[i].ID)
		}
		ns[i].X = round(b.x - ox)
		ns[i].Y = round(b.y - oy)
		ns[i].Width = round(b.w)
		ns[i].Height = round(b.h)
		if err := place(ns[i].Children, boxes, b.x, b.y); err != nil {
			return err
		}
	}
	return nil
}

// parseSpline converts a Graphviz splineType ("e,x,y p0 p1 ... ; ...") into
// sections. Each cubic Bezier segment contributes its midpoint and end point
// as bend points; an arrow tip becomes the section end.
func parseSpline(pos string, llx float64, flip func(float64) float64) ([]graph.Section, error) {
	var sections []graph.Section
	for _, spline := range strings.Split(pos, ";") {
		var (
			ctrl       []graph.Point
			start, end *graph.Point
		)
		for _, tok := range strings.Fields(spline) {
			prefix := ""
			if strings.HasPrefix(tok, "e,") || strings.HasPrefix(tok, "s,") {
				prefix, tok = tok[:1], tok[2:]
			}
			x, y, err := parsePoint(tok)
			if err != nil {
				return nil, err
			}
			p := graph.Point{X: round(x - llx), Y: round(flip(y))}
			switch prefix {
			case "s":
				start = &p
			case "e":
				end = &p
			default:
				ctrl = append(ctrl, p)
			}
		}
		if len(ctrl) == 0 {
			continue
		}

		var s graph.Section
		s.StartPoint = ctrl[0]
		if start != nil {
			s.StartPoint = *start
			s.BendPoints = append(s.BendPoints, ctrl[0])
		}
		for i := 0; i+3 < len(ctrl); i += 3 {
			s.BendPoints = append(s.BendPoints, bezierMid(ctrl[i], ctrl[i+1], ctrl[i+2], ctrl[i+3]))
			if i+3 < len(ctrl)-1 {
				s.BendPoints = append(s.BendPoints, ctrl[i+3])
			}
		}
		last := ctrl[len(ctrl)-1]
		s.EndPoint = last
		if end != nil {
			s.BendPoints = append(s.BendPoints, last)
			s.EndPoint = *end
		}
		sections = append(sections, s)
	}
	return sections, nil
}

func bezierMid(p0, p1, p2, p3 graph.Point) graph.Point {
	return graph.Point{
		X: round((p0.X + 3*p1.X + 3*p2.X + p3.X) / 8),
		Y: round((p0.Y + 3*p1.Y + 3*p2.Y + p3.Y) / 8),
	}
}

func parsePoint(s string) (float64, float64, error) {
	parts := strings.Split(strings.TrimSuffix(s, "!"), ",")
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("invalid point %q", s)
	}
	x, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid point %q: %w", s, err)
	}
	y, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid point %q: %w", s, err)
	}
	return x, y, nil
}

func parseBB(s string) (llx, lly, urx, ury float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return 0, 0, 0, 0, fmt.Errorf("invalid bounding box %q", s)
	}
	var v [4]float64
	for i, p := range parts {
		if v[i], err = strconv.ParseFloat(p, 64); err != nil {
			return 0, 0, 0, 0, fmt.Errorf("invalid bounding box %q: %w", s, err)
		}
	}
	return v[0], v[1], v[2], v[3], nil
}

func parseInches(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v * 72
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}

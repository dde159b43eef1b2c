// Package project converts an architecture model plus a selected perspective
// into the generic graph consumed by the layout engine.
//
// Resources become nodes (children nested inside their parent, or flattened
// when [Flat] is requested). Relations of the selected perspective become
// edges when both endpoints resolve to projected nodes. Relations that
// reference unknown resources are dropped, reported in [Result.Dropped] and
// logged as warnings; they never fail the projection.
//
// Projection is a pure function of its inputs apart from logging.
package project

import (
	"fmt"
	"maps"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/archdiagram/pkg/graph"
	"github.com/matzehuels/archdiagram/pkg/model"
)

// Nesting controls how child resources are placed in the graph.
type Nesting int

const (
	// Nested embeds children inside their parent node.
	Nested Nesting = iota
	// Flat emits every resource as a top-level node in pre-order.
	Flat
)

// Sizing controls which node sizes the projector assigns.
type Sizing int

const (
	// SizingDefault leaves sizes unset so the layout adapter applies its
	// defaults.
	SizingDefault Sizing = iota
	// SizingBlock assigns block sizes: 180 wide, 100 tall when the resource
	// has a subtitle or description, 60 otherwise.
	SizingBlock
)

// Block sizes.
const (
	BlockWidth       = 180
	BlockHeight      = 60
	BlockHeightTall  = 100
	defaultEdgeIDSep = "-"
)

// EdgeIDScheme controls how edge identifiers are derived.
type EdgeIDScheme int

const (
	// EdgeIDEndpoints names edges "<from>-<to>", adding a numeric suffix
	// when the same pair appears more than once.
	EdgeIDEndpoints EdgeIDScheme = iota
	// EdgeIDIndex names edges "relation-<n>" by declaration index.
	EdgeIDIndex
)

// Options configures a projection. The zero value selects the first
// perspective, nests children, leaves sizes to the layout adapter and
// names edges by their endpoints.
type Options struct {
	Perspective string
	// Strict disables the fallback to the first perspective when
	// Perspective is set but matches nothing; the graph then has no edges.
	Strict  bool
	Nesting Nesting
	Sizing  Sizing
	EdgeIDs EdgeIDScheme
	Logger  *log.Logger
}

// DanglingRelation is a relation that was not projected because at least one
// endpoint did not resolve to a node.
type DanglingRelation struct {
	Index    int            `json:"index"`
	Relation model.Relation `json:"relation"`
	Missing  []string       `json:"missing"` // Normalized IDs that did not resolve
}

// Result is the output of [Project].
type Result struct {
	Graph graph.Graph
	// Perspective is the name of the perspective actually used, or "" when
	// none was selected.
	Perspective string
	Dropped     []DanglingRelation
	// Duplicates lists resource IDs that appeared more than once; only the
	// first occurrence is projected.
	Duplicates []string
}

// Project builds the generic graph for m under the perspective chosen by
// opts.
func Project(m *model.ArchitectureModel, opts Options) Result {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	acc := projectNodes(m.Resources, 0, opts, nodeFold{})
	nodes := acc.nodes
	if opts.Nesting == Flat {
		nodes = flatten(nodes)
	}
	for _, id := range acc.dups {
		logger.Warn("duplicate resource skipped", "id", id)
	}

	res := Result{
		Graph:      graph.Graph{ID: graph.RootID, Children: nodes, Edges: []graph.Edge{}},
		Duplicates: acc.dups,
	}

	p, ok := SelectPerspective(m, opts.Perspective, opts.Strict)
	if !ok {
		if opts.Perspective != "" && len(m.Perspectives) > 0 {
			logger.Warn("perspective not found", "perspective", opts.Perspective)
		}
		return res
	}
	res.Perspective = p.Name
	res.Graph.Edges, res.Dropped = projectEdges(p, acc.seen, opts.EdgeIDs)
	for _, d := range res.Dropped {
		logger.Warn(fmt.Sprintf("Missing node for relation: %s -> %s", d.Relation.From, d.Relation.To),
			"perspective", p.Name, "missing", strings.Join(d.Missing, ","))
	}
	return res
}

// SelectPerspective returns the perspective named name. When no perspective
// matches, the first declared perspective is returned unless strict is set
// and name is non-empty. The boolean is false when nothing was selected.
func SelectPerspective(m *model.ArchitectureModel, name string, strict bool) (*model.Perspective, bool) {
	if p, ok := m.FindPerspective(name); ok {
		return p, true
	}
	if strict && name != "" {
		return nil, false
	}
	if len(m.Perspectives) == 0 {
		return nil, false
	}
	return &m.Perspectives[0], true
}

// Classify derives a node kind from a resource's icon and name.
func Classify(r model.Resource) string {
	icon := strings.ToLower(r.Icon)
	name := strings.ToLower(r.Name)
	switch {
	case strings.Contains(icon, "gateway") || strings.Contains(name, "gateway"):
		return graph.KindGateway
	case strings.Contains(icon, "database") || strings.Contains(name, "database") || strings.Contains(name, "sql"):
		return graph.KindDatabase
	default:
		return graph.KindService
	}
}

// =============================================================================
// Nodes
// =============================================================================

// nodeFold is the accumulator threaded through the resource traversal.
// Each call receives the fold so far and returns the extended fold. A seen
// set is never written after it has been handed to a call; adding an id
// yields a new set.
type nodeFold struct {
	nodes []graph.Node
	seen  map[string]struct{}
	dups  []string
}

// withID returns a copy of seen that also holds id.
func withID(seen map[string]struct{}, id string) map[string]struct{} {
	next := make(map[string]struct{}, len(seen)+1)
	maps.Copy(next, seen)
	next[id] = struct{}{}
	return next
}

func projectNodes(rs []model.Resource, depth int, opts Options, acc nodeFold) nodeFold {
	for _, r := range rs {
		id := r.ID()
		if _, dup := acc.seen[id]; dup {
			acc.dups = append(acc.dups, id)
			continue
		}
		acc.seen = withID(acc.seen, id)

		inner := projectNodes(r.Children, depth+1, opts, nodeFold{seen: acc.seen, dups: acc.dups})
		acc.seen, acc.dups = inner.seen, inner.dups
		acc.nodes = append(acc.nodes, toNode(r, id, inner.nodes, opts.Sizing))
	}
	return acc
}

func toNode(r model.Resource, id string, children []graph.Node, sizing Sizing) graph.Node {
	n := graph.Node{
		ID:          id,
		Label:       r.Name,
		Subtitle:    r.Subtitle,
		Description: r.Description,
		Icon:        r.Icon,
		Kind:        Classify(r),
		Children:    children,
	}
	if sizing == SizingBlock {
		n.Width = BlockWidth
		n.Height = BlockHeight
		if r.Subtitle != "" || r.Description != "" {
			n.Height = BlockHeightTall
		}
	}
	return n
}

func flatten(ns []graph.Node) []graph.Node {
	var out []graph.Node
	for _, n := range ns {
		children := n.Children
		n.Children = nil
		out = append(out, n)
		out = append(out, flatten(children)...)
	}
	return out
}

// =============================================================================
// Edges
// =============================================================================

func projectEdges(p *model.Perspective, nodes map[string]struct{}, scheme EdgeIDScheme) ([]graph.Edge, []DanglingRelation) {
	edges := []graph.Edge{}
	var dropped []DanglingRelation
	issued := make(map[string]int)

	for i, rel := range p.Relations {
		from, to := model.NormalizeID(rel.From), model.NormalizeID(rel.To)

		var missing []string
		if _, ok := nodes[from]; !ok {
			missing = append(missing, from)
		}
		if _, ok := nodes[to]; !ok {
			missing = append(missing, to)
		}
		if len(missing) > 0 {
			dropped = append(dropped, DanglingRelation{Index: i, Relation: rel, Missing: missing})
			continue
		}

		edges = append(edges, graph.Edge{
			ID:          edgeID(scheme, i, from, to, issued),
			Sources:     []string{from},
			Targets:     []string{to},
			Label:       rel.Label,
			Description: rel.Description,
		})
	}
	return edges, dropped
}

// edgeID names an edge. Repeated endpoint pairs get "-N" suffixes, skipping
// any suffixed form that another pair already produced. issued maps every
// ID handed out; for endpoint bases it holds the last suffix used.
func edgeID(scheme EdgeIDScheme, index int, from, to string, issued map[string]int) string {
	if scheme == EdgeIDIndex {
		return fmt.Sprintf("relation-%d", index)
	}
	base := from + defaultEdgeIDSep + to
	n, taken := issued[base]
	if !taken {
		issued[base] = 1
		return base
	}
	for {
		n++
		id := fmt.Sprintf("%s-%d", base, n)
		if _, dup := issued[id]; !dup {
			issued[base] = n
			issued[id] = 1
			return id
		}
	}
}

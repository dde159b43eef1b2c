package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// =============================================================================
// Serialization API
// =============================================================================

// MarshalGraph converts a graph to indented JSON bytes.
func MarshalGraph(g Graph) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteGraph(g, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalGraph decodes JSON bytes into a graph.
func UnmarshalGraph(data []byte) (Graph, error) {
	return ReadGraph(bytes.NewReader(data))
}

// WriteGraph writes a graph as JSON to an io.Writer.
func WriteGraph(g Graph, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(g); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ReadGraph decodes a JSON graph from an io.Reader.
// Edges must reference nodes present in the tree.
func ReadGraph(r io.Reader) (Graph, error) {
	var g Graph
	if err := json.NewDecoder(r).Decode(&g); err != nil {
		return Graph{}, fmt.Errorf("decode: %w", err)
	}
	if err := Validate(g); err != nil {
		return Graph{}, err
	}
	return g, nil
}

// WriteGraphFile writes a graph to a JSON file.
func WriteGraphFile(g Graph, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteGraph(g, f)
}

// ReadGraphFile reads a graph from a JSON file.
func ReadGraphFile(path string) (Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return Graph{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadGraph(f)
}

// =============================================================================
// Traversal
// =============================================================================

// Walk visits every node depth-first in pre-order. The parent is nil for
// top-level nodes. Returning false from fn skips the node's children.
func Walk(g Graph, fn func(n Node, parent *Node, depth int) bool) {
	walkNodes(g.Children, nil, 0, fn)
}

func walkNodes(ns []Node, parent *Node, depth int, fn func(Node, *Node, int) bool) {
	for i := range ns {
		if fn(ns[i], parent, depth) {
			walkNodes(ns[i].Children, &ns[i], depth+1, fn)
		}
	}
}

// NodeIDs returns every node ID in pre-order.
func NodeIDs(g Graph) []string {
	var ids []string
	Walk(g, func(n Node, _ *Node, _ int) bool {
		ids = append(ids, n.ID)
		return true
	})
	return ids
}

// NodeCount returns the number of nodes at all nesting levels.
func NodeCount(g Graph) int {
	n := 0
	Walk(g, func(Node, *Node, int) bool {
		n++
		return true
	})
	return n
}

// Find returns the node with the given ID anywhere in the tree.
func Find(g Graph, id string) (Node, bool) {
	var found Node
	ok := false
	Walk(g, func(n Node, _ *Node, _ int) bool {
		if ok {
			return false
		}
		if n.ID == id {
			found, ok = n, true
			return false
		}
		return true
	})
	return found, ok
}

// Validate checks that node IDs are unique and that every edge endpoint
// names a node.
func Validate(g Graph) error {
	seen := make(map[string]bool)
	var dup string
	Walk(g, func(n Node, _ *Node, _ int) bool {
		if seen[n.ID] && dup == "" {
			dup = n.ID
		}
		seen[n.ID] = true
		return true
	})
	if dup != "" {
		return fmt.Errorf("duplicate node id %q", dup)
	}
	for _, e := range g.Edges {
		for _, id := range append(append([]string{}, e.Sources...), e.Targets...) {
			if !seen[id] {
				return fmt.Errorf("edge %q references unknown node %q", e.ID, id)
			}
		}
	}
	return nil
}

// Clone returns a deep copy of g.
func Clone(g Graph) Graph {
	out := g
	out.Children = cloneNodes(g.Children)
	if g.Edges != nil {
		out.Edges = make([]Edge, len(g.Edges))
		for i, e := range g.Edges {
			e.Sources = append([]string(nil), e.Sources...)
			e.Targets = append([]string(nil), e.Targets...)
			if e.Sections != nil {
				secs := make([]Section, len(e.Sections))
				for j, s := range e.Sections {
					s.BendPoints = append([]Point(nil), s.BendPoints...)
					secs[j] = s
				}
				e.Sections = secs
			}
			out.Edges[i] = e
		}
	}
	return out
}

func cloneNodes(ns []Node) []Node {
	if ns == nil {
		return nil
	}
	out := make([]Node, len(ns))
	for i, n := range ns {
		n.Children = cloneNodes(n.Children)
		out[i] = n
	}
	return out
}

// =============================================================================
// Geometry
// =============================================================================

// Rect is an axis-aligned box in graph coordinates.
type Rect struct {
	X, Y, Width, Height float64
}

// AbsoluteBounds returns each node's box in graph coordinates, resolving
// parent-relative positions.
func AbsoluteBounds(g Graph) map[string]Rect {
	out := make(map[string]Rect)
	var visit func(ns []Node, ox, oy float64)
	visit = func(ns []Node, ox, oy float64) {
		for _, n := range ns {
			r := Rect{X: ox + n.X, Y: oy + n.Y, Width: n.Width, Height: n.Height}
			out[n.ID] = r
			visit(n.Children, r.X, r.Y)
		}
	}
	visit(g.Children, 0, 0)
	return out
}

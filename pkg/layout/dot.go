package layout

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/matzehuels/archdiagram/pkg/graph"
)

// clusterPrefix marks subgraphs that stand for nodes with children.
const clusterPrefix = "cluster_"

// Prepare returns a copy of g ready for layout: nodes without a size get the
// default size for their depth, and edges without an ID are named
// "<source>-<target>".
func Prepare(g graph.Graph) graph.Graph {
	out := graph.Clone(g)
	sizeNodes(out.Children, 0)
	for i := range out.Edges {
		if out.Edges[i].ID == "" {
			out.Edges[i].ID = out.Edges[i].Source() + "-" + out.Edges[i].Target()
		}
	}
	return out
}

func sizeNodes(ns []graph.Node, depth int) {
	w, h := float64(DefaultWidth), float64(DefaultHeight)
	if depth > 0 {
		w, h = DefaultNestedWidth, DefaultNestedHeight
	}
	for i := range ns {
		if ns[i].Width == 0 {
			ns[i].Width = w
		}
		if ns[i].Height == 0 {
			ns[i].Height = h
		}
		sizeNodes(ns[i].Children, depth+1)
	}
}

// ToDOT converts a prepared graph and merged options to Graphviz DOT.
// It also returns the Graphviz layout engine selected by the options.
//
// Nodes with children become clusters holding an invisible anchor node named
// after the parent, so relations can point at the parent; such edges are
// clipped to the cluster with lhead/ltail.
func ToDOT(g graph.Graph, opts Options) (string, string, error) {
	engine, gattrs, err := translate(opts)
	if err != nil {
		return "", "", err
	}

	clusters := make(map[string]bool)
	graph.Walk(g, func(n graph.Node, _ *graph.Node, _ int) bool {
		if n.HasChildren() {
			clusters[n.ID] = true
		}
		return true
	})

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "digraph %s {\n", quote(orDefault(g.ID, graph.RootID)))
	buf.WriteString("  compound=true;\n")
	buf.WriteString("  node [shape=box, fixedsize=true, fontsize=12];\n")
	buf.WriteString("  edge [fontsize=11];\n")
	for _, a := range gattrs {
		fmt.Fprintf(&buf, "  %s=%s;\n", quote(a[0]), quote(a[1]))
	}
	buf.WriteString("\n")

	writeNodes(&buf, g.Children, "  ")

	buf.WriteString("\n")
	for _, e := range g.Edges {
		src, dst := e.Source(), e.Target()
		attrs := []string{"id=" + quote(e.ID)}
		if e.Label != "" {
			attrs = append(attrs, "label="+quote(e.Label))
		}
		if clusters[src] {
			attrs = append(attrs, "ltail="+quote(clusterPrefix+src))
		}
		if clusters[dst] {
			attrs = append(attrs, "lhead="+quote(clusterPrefix+dst))
		}
		fmt.Fprintf(&buf, "  %s -> %s [%s];\n", quote(src), quote(dst), strings.Join(attrs, ", "))
	}

	buf.WriteString("}\n")
	return buf.String(), engine, nil
}

func writeNodes(buf *bytes.Buffer, ns []graph.Node, indent string) {
	for _, n := range ns {
		if !n.HasChildren() {
			fmt.Fprintf(buf, "%s%s [label=%s, width=%s, height=%s];\n",
				indent, quote(n.ID), quote(n.DisplayLabel()), inches(n.Width), inches(n.Height))
			continue
		}
		fmt.Fprintf(buf, "%ssubgraph %s {\n", indent, quote(clusterPrefix+n.ID))
		fmt.Fprintf(buf, "%s  label=%s;\n", indent, quote(n.DisplayLabel()))
		fmt.Fprintf(buf, "%s  labelloc=t;\n", indent)
		fmt.Fprintf(buf, "%s  margin=16;\n", indent)
		fmt.Fprintf(buf, "%s  %s [shape=point, style=invis, label=\"\", width=0.01, height=0.01];\n", indent, quote(n.ID))
		writeNodes(buf, n.Children, indent+"  ")
		fmt.Fprintf(buf, "%s}\n", indent)
	}
}

// quote renders s as a DOT double-quoted string.
func quote(s string) string {
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
	if strings.HasSuffix(s, `\`) && !strings.HasSuffix(s, `\"`) {
		s += " "
	}
	return `"` + s + `"`
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func sortedKeys(m Options) []string {
	return slices.Sorted(maps.Keys(m))
}

package graph

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleGraph() Graph {
	return Graph{
		ID: RootID,
		Children: []Node{
			{ID: "Web_Server", Label: "Web Server", X: 10, Y: 20, Width: 200, Height: 120, Children: []Node{
				{ID: "Auth_Module", X: 15, Y: 30, Width: 120, Height: 40},
			}},
			{ID: "DB", X: 300, Y: 20, Width: 150, Height: 50},
		},
		Edges: []Edge{{
			ID: "Web_Server-DB", Sources: []string{"Web_Server"}, Targets: []string{"DB"}, Label: "query",
			Sections: []Section{{StartPoint: Point{210, 80}, BendPoints: []Point{{250, 80}}, EndPoint: Point{300, 45}}},
		}},
		Width: 450, Height: 140,
	}
}

func TestWalkAndCounts(t *testing.T) {
	g := sampleGraph()
	if got := NodeIDs(g); !cmp.Equal(got, []string{"Web_Server", "Auth_Module", "DB"}) {
		t.Errorf("NodeIDs() = %v", got)
	}
	if NodeCount(g) != 3 {
		t.Errorf("NodeCount() = %d, want 3", NodeCount(g))
	}

	parents := map[string]string{}
	Walk(g, func(n Node, parent *Node, _ int) bool {
		if parent != nil {
			parents[n.ID] = parent.ID
		}
		return true
	})
	if parents["Auth_Module"] != "Web_Server" || len(parents) != 1 {
		t.Errorf("parents = %v", parents)
	}
}

func TestFind(t *testing.T) {
	g := sampleGraph()
	n, ok := Find(g, "Auth_Module")
	if !ok || n.Width != 120 {
		t.Errorf("Find(Auth_Module) = %+v, %v", n, ok)
	}
	if _, ok := Find(g, "Cache"); ok {
		t.Error("Find(Cache) should fail")
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(sampleGraph()); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	dangling := sampleGraph()
	dangling.Edges = append(dangling.Edges, Edge{ID: "x", Sources: []string{"DB"}, Targets: []string{"Cache"}})
	if err := Validate(dangling); err == nil || !strings.Contains(err.Error(), "Cache") {
		t.Errorf("Validate(dangling) = %v", err)
	}

	dup := sampleGraph()
	dup.Children = append(dup.Children, Node{ID: "Auth_Module"})
	if err := Validate(dup); err == nil {
		t.Error("Validate(dup) should fail")
	}
}

func TestCloneIsDeep(t *testing.T) {
	g := sampleGraph()
	c := Clone(g)
	if diff := cmp.Diff(g, c); diff != "" {
		t.Fatalf("clone differs (-orig +clone):\n%s", diff)
	}
	c.Children[0].Children[0].X = 999
	c.Edges[0].Sections[0].BendPoints[0].X = 999
	c.Edges[0].Sources[0] = "changed"
	if g.Children[0].Children[0].X == 999 || g.Edges[0].Sections[0].BendPoints[0].X == 999 || g.Edges[0].Sources[0] == "changed" {
		t.Error("Clone shares memory with the original")
	}
}

func TestAbsoluteBounds(t *testing.T) {
	b := AbsoluteBounds(sampleGraph())
	if got := b["Auth_Module"]; got != (Rect{X: 25, Y: 50, Width: 120, Height: 40}) {
		t.Errorf("Auth_Module = %+v", got)
	}
	if got := b["DB"]; got != (Rect{X: 300, Y: 20, Width: 150, Height: 50}) {
		t.Errorf("DB = %+v", got)
	}
}

func TestSectionPoints(t *testing.T) {
	s := Section{StartPoint: Point{0, 0}, BendPoints: []Point{{1, 1}, {2, 2}}, EndPoint: Point{3, 3}}
	want := []Point{{0, 0}, {1, 1}, {2, 2}, {3, 3}}
	if diff := cmp.Diff(want, s.Points()); diff != "" {
		t.Errorf("Points() mismatch (-want +got):\n%s", diff)
	}
	if got := (Section{}).Points(); len(got) != 2 {
		t.Errorf("empty section points = %v", got)
	}
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.json")
	g := sampleGraph()
	if err := WriteGraphFile(g, path); err != nil {
		t.Fatalf("WriteGraphFile: %v", err)
	}
	got, err := ReadGraphFile(path)
	if err != nil {
		t.Fatalf("ReadGraphFile: %v", err)
	}
	if diff := cmp.Diff(g, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestUnmarshalGraphRejectsDangling(t *testing.T) {
	data := `{"id":"root","children":[{"id":"a"}],"edges":[{"id":"e","sources":["a"],"targets":["b"]}]}`
	if _, err := UnmarshalGraph([]byte(data)); err == nil {
		t.Error("expected error for edge to unknown node")
	}
}

func TestDisplayLabel(t *testing.T) {
	if got := (Node{ID: "DB"}).DisplayLabel(); got != "DB" {
		t.Errorf("DisplayLabel() = %q", got)
	}
	if got := (Node{ID: "Web_Server", Label: "Web Server"}).DisplayLabel(); got != "Web Server" {
		t.Errorf("DisplayLabel() = %q", got)
	}
}

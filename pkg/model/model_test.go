package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/archdiagram/pkg/errors"
)

const webServerDoc = `
resources:
  - name: Web Server
    subtitle: nginx
    icon: https://example.com/server.svg
    children:
      - name: Auth Module
  - name: DB
perspectives:
  - name: Data Flow
    relations:
      - from: Web Server
        to: DB
        label: query
        description: reads user rows
  - name: Empty
    relations: []
`

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Web Server", "Web_Server"},
		{"DB", "DB"},
		{"  padded name  ", "padded_name"},
		{"tab\tand   spaces", "tab_and_spaces"},
		{"line\nbreak", "line_break"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeID(tt.in); got != tt.want {
			t.Errorf("NormalizeID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	m, err := Parse([]byte(webServerDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(m.Resources) != 2 {
		t.Fatalf("resources = %d, want 2", len(m.Resources))
	}
	web := m.Resources[0]
	if web.ID() != "Web_Server" || web.Subtitle != "nginx" {
		t.Errorf("first resource = %+v", web)
	}
	if len(web.Children) != 1 || web.Children[0].Name != "Auth Module" {
		t.Errorf("children = %+v", web.Children)
	}
	if got := m.PerspectiveNames(); !cmp.Equal(got, []string{"Data Flow", "Empty"}) {
		t.Errorf("PerspectiveNames() = %v", got)
	}
	p, ok := m.FindPerspective("Data Flow")
	if !ok {
		t.Fatal("FindPerspective(Data Flow) not found")
	}
	want := Relation{From: "Web Server", To: "DB", Label: "query", Description: "reads user rows"}
	if diff := cmp.Diff([]Relation{want}, p.Relations); diff != "" {
		t.Errorf("relations mismatch (-want +got):\n%s", diff)
	}
	if _, ok := m.FindPerspective("data flow"); ok {
		t.Error("FindPerspective should be case sensitive")
	}
	if m.ResourceCount() != 3 {
		t.Errorf("ResourceCount() = %d, want 3", m.ResourceCount())
	}
	if m.RelationCount() != 1 {
		t.Errorf("RelationCount() = %d, want 1", m.RelationCount())
	}
}

func TestParseMissingSections(t *testing.T) {
	for _, doc := range []string{"", "resources: []", "perspectives:\n  - name: Only\n"} {
		m, err := Parse([]byte(doc))
		if err != nil {
			t.Fatalf("Parse(%q): %v", doc, err)
		}
		if m.Resources == nil || m.Perspectives == nil {
			t.Errorf("Parse(%q) left nil sections: %+v", doc, m)
		}
		for _, p := range m.Perspectives {
			if p.Relations == nil {
				t.Errorf("Parse(%q) left nil relations in %q", doc, p.Name)
			}
		}
	}
}

func TestParseMalformed(t *testing.T) {
	for _, doc := range []string{
		"resources: [",
		"resources: a: b",
		"just a string",
	} {
		_, err := Parse([]byte(doc))
		if err == nil {
			t.Errorf("Parse(%q) succeeded, want error", doc)
			continue
		}
		if !errors.Is(err, errors.ErrCodeInvalidYAML) {
			t.Errorf("Parse(%q) code = %v, want %v", doc, errors.GetCode(err), errors.ErrCodeInvalidYAML)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	docs := []string{
		webServerDoc,
		"",
		`
imports:
  - from: ./shared.yaml
    namespace: shared
resources:
  - name: A
    children: []
  - name: B
    description: second
perspectives:
  - name: P
`,
	}
	for _, doc := range docs {
		m, err := Parse([]byte(doc))
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		out, err := Marshal(m)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		again, err := Parse(out)
		if err != nil {
			t.Fatalf("Parse(Marshal): %v\n%s", err, out)
		}
		if diff := cmp.Diff(m, again); diff != "" {
			t.Errorf("round trip mismatch (-first +second):\n%s", diff)
		}
	}
}

func TestWalkOrder(t *testing.T) {
	m := &ArchitectureModel{Resources: []Resource{
		{Name: "a", Children: []Resource{{Name: "a1", Children: []Resource{{Name: "a11"}}}, {Name: "a2"}}},
		{Name: "b"},
	}}

	var got []string
	var depths []int
	m.Walk(func(r *Resource, depth int) bool {
		got = append(got, r.Name)
		depths = append(depths, depth)
		return true
	})
	if !cmp.Equal(got, []string{"a", "a1", "a11", "a2", "b"}) {
		t.Errorf("order = %v", got)
	}
	if !cmp.Equal(depths, []int{0, 1, 2, 1, 0}) {
		t.Errorf("depths = %v", depths)
	}

	got = nil
	m.Walk(func(r *Resource, depth int) bool {
		got = append(got, r.Name)
		return r.Name != "a"
	})
	if !cmp.Equal(got, []string{"a", "b"}) {
		t.Errorf("pruned order = %v", got)
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arch.yaml")
	if err := os.WriteFile(path, []byte(webServerDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(m.Resources) != 2 {
		t.Errorf("resources = %d, want 2", len(m.Resources))
	}

	_, err = ParseFile(filepath.Join(dir, "missing.yaml"))
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("missing file code = %v, want %v", errors.GetCode(err), errors.ErrCodeFileNotFound)
	}
}

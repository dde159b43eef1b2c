// Package model defines the architecture document and its YAML codec.
//
// An architecture document lists resources (possibly nested), and groups
// relations between them into named perspectives:
//
//	resources:
//	  - name: Web Server
//	    icon: https://example.com/server.svg
//	    children:
//	      - name: Auth Module
//	  - name: DB
//	perspectives:
//	  - name: Data Flow
//	    relations:
//	      - from: Web Server
//	        to: DB
//	        label: query
//
// Resources are addressed by name. [NormalizeID] turns a name into the
// identifier used by graphs and relations: interior whitespace runs become a
// single underscore, so "Web Server" and "Web  Server" both map to
// "Web_Server".
//
// A parsed [ArchitectureModel] is treated as immutable; every later stage of
// the pipeline derives new values from it.
package model

import (
	"strings"
	"unicode"
)

// ArchitectureModel is the root of an architecture document.
type ArchitectureModel struct {
	Imports      []Import      `yaml:"imports,omitempty" json:"imports,omitempty"`
	Resources    []Resource    `yaml:"resources" json:"resources"`
	Perspectives []Perspective `yaml:"perspectives" json:"perspectives"`
}

// Import references another document. Imports are carried through parsing
// and serialization but never resolved.
type Import struct {
	From      string `yaml:"from" json:"from"`
	Namespace string `yaml:"namespace" json:"namespace"`
}

// Resource is a named component of the system. Children are nested
// resources drawn inside their parent.
type Resource struct {
	Name        string     `yaml:"name" json:"name"`
	Subtitle    string     `yaml:"subtitle,omitempty" json:"subtitle,omitempty"`
	Icon        string     `yaml:"icon,omitempty" json:"icon,omitempty"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Children    []Resource `yaml:"children,omitempty" json:"children,omitempty"`
}

// ID returns the normalized identifier of the resource.
func (r Resource) ID() string { return NormalizeID(r.Name) }

// Relation is a directed, labeled connection between two resources,
// referenced by name.
type Relation struct {
	From        string `yaml:"from" json:"from"`
	To          string `yaml:"to" json:"to"`
	Label       string `yaml:"label" json:"label"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Perspective is a named view selecting which relations are drawn.
type Perspective struct {
	Name      string     `yaml:"name" json:"name"`
	Relations []Relation `yaml:"relations" json:"relations"`
}

// NormalizeID converts a resource name into an identifier. Leading and
// trailing whitespace is dropped and each interior whitespace run becomes a
// single underscore.
func NormalizeID(name string) string {
	return strings.Join(strings.FieldsFunc(name, unicode.IsSpace), "_")
}

// PerspectiveNames returns the perspective names in declaration order.
func (m *ArchitectureModel) PerspectiveNames() []string {
	names := make([]string, len(m.Perspectives))
	for i, p := range m.Perspectives {
		names[i] = p.Name
	}
	return names
}

// FindPerspective returns the perspective with the exact given name.
func (m *ArchitectureModel) FindPerspective(name string) (*Perspective, bool) {
	for i := range m.Perspectives {
		if m.Perspectives[i].Name == name {
			return &m.Perspectives[i], true
		}
	}
	return nil, false
}

// Walk visits every resource depth-first in pre-order. Depth is 0 for
// top-level resources. Returning false from fn skips the resource's children.
func (m *ArchitectureModel) Walk(fn func(r *Resource, depth int) bool) {
	walk(m.Resources, 0, fn)
}

func walk(rs []Resource, depth int, fn func(*Resource, int) bool) {
	for i := range rs {
		if fn(&rs[i], depth) {
			walk(rs[i].Children, depth+1, fn)
		}
	}
}

// ResourceCount returns the number of resources at all nesting levels.
func (m *ArchitectureModel) ResourceCount() int {
	n := 0
	m.Walk(func(*Resource, int) bool {
		n++
		return true
	})
	return n
}

// RelationCount returns the total number of relations over all perspectives.
func (m *ArchitectureModel) RelationCount() int {
	n := 0
	for _, p := range m.Perspectives {
		n += len(p.Relations)
	}
	return n
}

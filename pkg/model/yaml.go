package model

import (
	"bytes"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/archdiagram/pkg/errors"
)

// Parse decodes an architecture document. Missing sections decode to empty
// slices; an empty document yields an empty model. Malformed YAML returns an
// error with code [errors.ErrCodeInvalidYAML].
func Parse(data []byte) (*ArchitectureModel, error) {
	var m ArchitectureModel
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidYAML, err, "parse architecture document")
	}
	normalize(&m)
	return &m, nil
}

// ParseFile reads and parses the document at path.
func ParseFile(path string) (*ArchitectureModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "read %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read %s", path)
	}
	return Parse(data)
}

// Marshal serializes m back into YAML with two-space indentation.
// Parse(Marshal(m)) reproduces m.
func Marshal(m *ArchitectureModel) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode architecture document")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode architecture document")
	}
	return buf.Bytes(), nil
}

// normalize fixes the nil/empty ambiguity of YAML sequences so that a
// document survives a Marshal/Parse round trip unchanged.
func normalize(m *ArchitectureModel) {
	if m.Resources == nil {
		m.Resources = []Resource{}
	}
	if m.Perspectives == nil {
		m.Perspectives = []Perspective{}
	}
	if len(m.Imports) == 0 {
		m.Imports = nil
	}
	normalizeResources(m.Resources)
	for i := range m.Perspectives {
		if m.Perspectives[i].Relations == nil {
			m.Perspectives[i].Relations = []Relation{}
		}
	}
}

func normalizeResources(rs []Resource) {
	for i := range rs {
		if len(rs[i].Children) == 0 {
			rs[i].Children = nil
			continue
		}
		normalizeResources(rs[i].Children)
	}
}

// Package sample provides the example architecture document shown when the
// editor starts without a document of its own.
package sample

import (
	_ "embed"

	"github.com/matzehuels/archdiagram/pkg/model"
)

//go:embed sample.yaml
var document []byte

// Name is the file name the sample is served under.
const Name = "sample.yaml"

// Document returns a copy of the sample YAML.
func Document() []byte {
	return append([]byte(nil), document...)
}

// Load returns the sample YAML after checking that it parses. It is the
// default document source for the editor server.
func Load() ([]byte, error) {
	if _, err := model.Parse(document); err != nil {
		return nil, err
	}
	return Document(), nil
}

// Model returns the parsed sample.
func Model() (*model.ArchitectureModel, error) {
	return model.Parse(document)
}

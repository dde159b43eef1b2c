package pipeline_test

import (
	"context"
	"fmt"

	"github.com/matzehuels/archdiagram/pkg/pipeline"
)

func ExampleOptions_ProjectOptions() {
	opts := pipeline.Options{Perspective: "Data Flow", Nesting: pipeline.NestingFlat}
	po, err := opts.ProjectOptions()
	if err != nil {
		panic(err)
	}
	fmt.Println(po.Perspective, po.Nesting)
	// Output: Data Flow 1
}

func ExampleParse() {
	m, err := pipeline.Parse(context.Background(), []byte(`
resources:
  - name: Web Server
  - name: DB
perspectives:
  - name: Data Flow
    relations:
      - from: Web Server
        to: DB
        label: query
`), "inline")
	if err != nil {
		panic(err)
	}
	fmt.Println(m.ResourceCount(), m.PerspectiveNames())
	// Output: 2 [Data Flow]
}

// Package pkg provides the core libraries for Archdiagram architecture
// diagrams.
//
// # Overview
//
// Archdiagram turns a YAML architecture model into one diagram per
// perspective. A model declares resources, optionally nested, and named
// perspectives that each pick a set of relations between them.
//
// # Architecture
//
// The typical data flow:
//
//	YAML document
//	     ↓
//	[model] package (parse and normalize)
//	     ↓
//	[project] package (one perspective → generic graph)
//	     ↓
//	[layout] package (Graphviz positions and sizes)
//	     ↓
//	[render] package (SVG, PNG, PDF, JSON, DOT)
//
// [pipeline] runs these stages with caching and is shared by the CLI and the
// editor server.
//
// # Quick Start
//
//	runner := pipeline.NewRunner(cache.NewNullCache(), cache.NewDefaultKeyer(), nil, nil)
//	defer runner.Close()
//
//	result, err := runner.Execute(ctx, data, pipeline.Options{
//	    Perspective: "Data Flow",
//	    Formats:     []string{pipeline.FormatSVG},
//	})
//	svg := result.Artifacts[pipeline.FormatSVG]
//
// # Main Packages
//
// [model] - The architecture document: resources, perspectives, relations.
//
// [project] - Perspective projection. Relations whose endpoints do not
// resolve are dropped and reported.
//
// [graph] - The generic graph exchanged between stages, with JSON import and
// export.
//
// [layout] - Layout options and the Graphviz engine.
//
// [render] - SVG rendering, styles, viewport fitting and the rsvg-convert
// bridge for PNG and PDF.
//
// [cache] - Layout and artifact caches: null, memory, file, Redis and
// MongoDB.
//
// [session] - Editor preference stores: memory, file and Redis.
//
// [observability] - Hooks for pipeline, cache and HTTP events.
//
// [errors] - Coded errors shared by the CLI and the server.
//
// # Testing
//
//	go test ./pkg/...
//	go test -run Example ./pkg/...
package pkg

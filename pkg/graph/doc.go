// Package graph provides the generic node/edge graph exchanged with the
// layout engine.
//
// The same types describe a graph before and after layout. A projected graph
// carries identifiers, labels and optional sizes; a positioned graph adds
// coordinates to every node and routed sections to every edge.
//
// # Coordinates
//
// Positions use a top-left origin with y growing downward. A node's X and Y
// are relative to its parent node; top-level nodes are relative to the graph.
// Edge sections are expressed in graph coordinates. [AbsoluteBounds] resolves
// nested positions to graph coordinates.
//
// # Serialization
//
// The JSON field names follow the layered-layout convention
// (startPoint, bendPoints, endPoint):
//
//	{
//	  "id": "root",
//	  "children": [{"id": "Web_Server", "width": 150, "height": 50}],
//	  "edges": [{"id": "e0", "sources": ["Web_Server"], "targets": ["DB"]}]
//	}
//
// Common operations:
//
//	g, _ := graph.ReadGraphFile("layout.json")
//	graph.WriteGraphFile(g, "output.json")
//	data, _ := graph.MarshalGraph(g)
//	parsed, _ := graph.UnmarshalGraph(data)
//
// # Concurrency
//
// Graph values are plain data. Functions in this package never mutate their
// inputs; [Clone] returns a deep copy for callers that need to.
package graph

package graph_test

import (
	"fmt"
	"os"

	"github.com/matzehuels/archdiagram/pkg/graph"
)

func ExampleWriteGraph() {
	g := graph.Graph{
		ID:       graph.RootID,
		Children: []graph.Node{{ID: "Web_Server", Width: 150, Height: 50}, {ID: "DB"}},
		Edges:    []graph.Edge{{ID: "Web_Server-DB", Sources: []string{"Web_Server"}, Targets: []string{"DB"}, Label: "query"}},
	}
	if err := graph.WriteGraph(g, os.Stdout); err != nil {
		fmt.Println("Error:", err)
	}
	// Output:
	// {
	//   "id": "root",
	//   "children": [
	//     {
	//       "id": "Web_Server",
	//       "width": 150,
	//       "height": 50
	//     },
	//     {
	//       "id": "DB"
	//     }
	//   ],
	//   "edges": [
	//     {
	//       "id": "Web_Server-DB",
	//       "sources": [
	//         "Web_Server"
	//       ],
	//       "targets": [
	//         "DB"
	//       ],
	//       "label": "query"
	//     }
	//   ]
	// }
}

func ExampleAbsoluteBounds() {
	g := graph.Graph{Children: []graph.Node{
		{ID: "outer", X: 10, Y: 10, Width: 200, Height: 100, Children: []graph.Node{
			{ID: "inner", X: 20, Y: 30, Width: 120, Height: 40},
		}},
	}}
	fmt.Printf("%+v\n", graph.AbsoluteBounds(g)["inner"])
	// Output:
	// {X:30 Y:40 Width:120 Height:40}
}

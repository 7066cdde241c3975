package dag_test

import (
	"fmt"

	"github.com/matzehuels/knotview/pkg/dag"
)

func ExampleDAG_AssignRows() {
	g := dag.New()
	_ = g.AddNode(dag.Node{ID: "layer:shadow", Kind: dag.NodeKindLayer})
	_ = g.AddNode(dag.Node{ID: "layer:buildings", Kind: dag.NodeKindLayer})
	_ = g.AddNode(dag.Node{ID: "knot:shade", Kind: dag.NodeKindKnot})
	_ = g.AddNode(dag.Node{ID: "plot:histogram", Kind: dag.NodeKindPlot})
	_ = g.AddEdge(dag.Edge{From: "layer:shadow", To: "knot:shade"})
	_ = g.AddEdge(dag.Edge{From: "layer:buildings", To: "knot:shade"})
	_ = g.AddEdge(dag.Edge{From: "knot:shade", To: "plot:histogram"})

	g.AssignRows()
	for _, row := range g.Rows() {
		fmt.Println(row)
	}
	// Output:
	// [layer:shadow layer:buildings]
	// [knot:shade]
	// [plot:histogram]
}

func ExampleDAG_TopologicalOrder() {
	g := dag.New()
	_ = g.AddNode(dag.Node{ID: "b"})
	_ = g.AddNode(dag.Node{ID: "a"})
	_ = g.AddEdge(dag.Edge{From: "a", To: "b"})

	order, err := g.TopologicalOrder()
	fmt.Println(order, err)
	// Output:
	// [a b] <nil>
}

func ExampleDAG_Validate() {
	g := dag.New()
	_ = g.AddNode(dag.Node{ID: "x"})
	_ = g.AddNode(dag.Node{ID: "y"})
	_ = g.AddEdge(dag.Edge{From: "x", To: "y"})
	_ = g.AddEdge(dag.Edge{From: "y", To: "x"})

	fmt.Println(g.Validate())
	// Output:
	// graph contains a cycle
}

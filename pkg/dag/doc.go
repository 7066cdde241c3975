// Package dag provides the directed acyclic graph used to describe how a
// scene's layers, knots and plots depend on each other.
//
// # Basic Usage
//
// Create a graph with [New], add nodes with [DAG.AddNode] and edges with
// [DAG.AddEdge]. Edges point in the direction data flows:
//
//	g := dag.New()
//	g.AddNode(dag.Node{ID: "layer:water", Kind: dag.NodeKindLayer})
//	g.AddNode(dag.Node{ID: "knot:depth", Kind: dag.NodeKindKnot})
//	g.AddEdge(dag.Edge{From: "layer:water", To: "knot:depth"})
//
// # Validation
//
// [DAG.Validate] runs a depth-first search with white/gray/black coloring
// and reports [ErrGraphHasCycle]. [DAG.TopologicalOrder] returns a
// processing order and fails the same way.
//
// # Layering
//
// [DAG.AssignRows] assigns each node the length of the longest path from a
// source, so every edge points to a deeper row. [DAG.Rows] groups the
// result for display.
package dag

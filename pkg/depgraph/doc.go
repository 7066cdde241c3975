// Package depgraph derives the dependency graph of a grammar and renders it
// as a node-link diagram.
//
// # Overview
//
// Every layer, knot and plot a grammar declares becomes a node of a
// [dag.DAG]; edges follow the data from layers through knots into plots.
// Joins are marked on their edges so a reader can see which layers need a
// joined dataset before a scene can render.
//
// # Usage
//
//	g, err := depgraph.Build(grammar)
//	dot := depgraph.ToDOT(g, depgraph.Options{Detailed: true})
//	svg, err := depgraph.RenderSVG(ctx, dot)
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering.
package depgraph

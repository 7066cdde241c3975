package depgraph

import (
	"fmt"

	"github.com/matzehuels/knotview/pkg/dag"
	"github.com/matzehuels/knotview/pkg/errors"
	"github.com/matzehuels/knotview/pkg/grammar"
)

// Node ID prefixes.
const (
	prefixLayer = "layer:"
	prefixKnot  = "knot:"
	prefixPlot  = "plot:"
)

// LayerNodeID returns the node ID of a layer.
func LayerNodeID(name string) string { return prefixLayer + name }

// KnotNodeID returns the node ID of a knot.
func KnotNodeID(id string) string { return prefixKnot + id }

// PlotNodeID returns the node ID of a plot.
func PlotNodeID(view int, name string) string { return fmt.Sprintf("%s%d/%s", prefixPlot, view, name) }

// Build derives the dependency graph of g. Rows are assigned so that
// layers come first and plots last.
func Build(g *grammar.Grammar) (*dag.DAG, error) {
	d := dag.New()

	addLayer := func(name string) {
		if _, ok := d.Node(LayerNodeID(name)); !ok {
			_ = d.AddNode(dag.Node{ID: LayerNodeID(name), Label: name, Kind: dag.NodeKindLayer})
		}
	}
	edge := func(from, to string, meta dag.Metadata) error {
		if err := d.AddEdge(dag.Edge{From: from, To: to, Meta: meta}); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidGrammar, err, "edge %s -> %s", from, to)
		}
		return nil
	}

	for _, k := range g.Knots {
		kind := dag.NodeKindKnot
		if k.KnotOp {
			kind = dag.NodeKindOperation
		}
		meta := dag.Metadata{}
		if last := k.LastLink(); last.Out.Level != nil {
			meta["level"] = string(*last.Out.Level)
		}
		if k.Group != nil {
			meta["group"] = k.Group.Name
		}
		if err := d.AddNode(dag.Node{ID: KnotNodeID(k.ID), Label: k.ID, Kind: kind, Meta: meta}); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidGrammar, err, "knot %q", k.ID)
		}
	}

	// Edges are added once every knot node exists.
	for _, k := range g.Knots {
		for _, link := range k.IntegrationScheme {
			if k.KnotOp {
				refs := []string{link.Out.Name}
				if link.In != nil {
					refs = []string{link.In.Name, link.Out.Name}
				}
				for _, ref := range refs {
					if err := edge(KnotNodeID(ref), KnotNodeID(k.ID), dag.Metadata{"op": link.Op}); err != nil {
						return nil, err
					}
				}
				continue
			}
			addLayer(link.Out.Name)
			if err := edge(LayerNodeID(link.Out.Name), KnotNodeID(k.ID), nil); err != nil {
				return nil, err
			}
			if link.Joins() {
				addLayer(link.In.Name)
				m := dag.Metadata{"join": true, "into": link.Out.Name}
				if link.Op != "" {
					m["op"] = link.Op
				}
				if err := edge(LayerNodeID(link.In.Name), KnotNodeID(k.ID), m); err != nil {
					return nil, err
				}
			}
		}
	}

	for vi, v := range g.Views {
		for _, p := range v.Plots {
			id := PlotNodeID(vi, p.Name)
			if _, ok := d.Node(id); !ok {
				_ = d.AddNode(dag.Node{ID: id, Label: p.Name, Kind: dag.NodeKindPlot, Meta: dag.Metadata{"view": vi}})
			}
			for _, kid := range p.Knots {
				if err := edge(KnotNodeID(kid), id, nil); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := d.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidGrammar, err, "knot dependencies")
	}
	d.AssignRows()
	return d, nil
}

// JoinedLayers returns the layers that need a joined dataset, in graph
// order.
func JoinedLayers(d *dag.DAG) []string {
	var out []string
	seen := map[string]bool{}
	for _, e := range d.Edges() {
		if join, _ := e.Meta["join"].(bool); join {
			into, _ := e.Meta["into"].(string)
			if !seen[into] {
				seen[into] = true
				out = append(out, into)
			}
		}
	}
	return out
}

// Package pkg provides the libraries behind knotview, a grammar-driven 3D
// knot renderer whose map view stays in sync with linked 2D plots.
//
// # Overview
//
// A grammar declares knots: each knot reads a layer at a level, possibly
// through a spatial join from another layer, and computes a thematic value
// per element. A map view draws the knots; plots receive the per-element
// values; a highlight made on either side reaches the other.
//
// # Architecture
//
// The typical data flow through knotview:
//
//	Grammar file / stored grammar ([grammar], [store])
//	         ↓
//	    [grammar] Interpreter (visibility rules, variables)
//	         ↓
//	    [dataapi] Loader (files, HTTP, [cache])
//	         ↓
//	    [layer] meshes + joins → [knot] thematic values + shaders
//	         ↓
//	    [scene] Controller → [gl] Context, [camera]
//	         ↓
//	    plots data / highlights → status callback ([server] Hub)
//
// Supporting packages:
//   - [depgraph]: layer/knot/plot dependency graph on [dag], DOT and SVG
//   - [observability]: scene and cache hooks, prometheus implementation
//   - [config]: TOML config file and KNOTVIEW_* environment variables
//   - [errors]: coded errors mapped to HTTP statuses
//
// # Quick Start
//
//	g, err := grammar.Load("city.json")
//	if err != nil {
//	    return err
//	}
//	interp, err := grammar.NewInterpreter(g)
//	if err != nil {
//	    return err
//	}
//	surface := scene.NewHeadlessSurface("map", 800, 600)
//	ctrl, err := scene.New(scene.Options{
//	    Interpreter: interp,
//	    Loader:      dataapi.NewFileLoader("./data"),
//	    Surfaces:    scene.NewRegistry(surface),
//	})
//	if err != nil {
//	    return err
//	}
//	defer ctrl.Dispose()
//	if err := ctrl.Init(ctx, "map", func(key string, value any) {}); err != nil {
//	    return err
//	}
//	data, err := ctrl.PlotsData()
//
// [grammar]: https://pkg.go.dev/github.com/matzehuels/knotview/pkg/grammar
// [store]: https://pkg.go.dev/github.com/matzehuels/knotview/pkg/store
// [dataapi]: https://pkg.go.dev/github.com/matzehuels/knotview/pkg/dataapi
// [cache]: https://pkg.go.dev/github.com/matzehuels/knotview/pkg/cache
// [layer]: https://pkg.go.dev/github.com/matzehuels/knotview/pkg/layer
// [knot]: https://pkg.go.dev/github.com/matzehuels/knotview/pkg/knot
// [scene]: https://pkg.go.dev/github.com/matzehuels/knotview/pkg/scene
// [gl]: https://pkg.go.dev/github.com/matzehuels/knotview/pkg/gl
// [camera]: https://pkg.go.dev/github.com/matzehuels/knotview/pkg/camera
// [server]: https://pkg.go.dev/github.com/matzehuels/knotview/pkg/server
// [depgraph]: https://pkg.go.dev/github.com/matzehuels/knotview/pkg/depgraph
// [dag]: https://pkg.go.dev/github.com/matzehuels/knotview/pkg/dag
// [observability]: https://pkg.go.dev/github.com/matzehuels/knotview/pkg/observability
// [config]: https://pkg.go.dev/github.com/matzehuels/knotview/pkg/config
// [errors]: https://pkg.go.dev/github.com/matzehuels/knotview/pkg/errors
package pkg

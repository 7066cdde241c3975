// Package scene orchestrates a map view: it loads the layers a grammar
// needs, builds knots on them, renders frames, keeps linked plots in sync
// with the 3D highlight state and polls visibility rules.
//
// # Lifecycle
//
// A [Controller] moves through the states
//
//	Uninitialized → Initializing → Ready → (Rendering ⇄ Idle) → Disposed
//
// [Controller.Init] looks up the hosting [Surface]; when the surface does
// not exist it returns without error and leaves the scene blank. Otherwise
// it starts the visibility monitor, resolves the camera (inline or through
// the data client), fetches layers concurrently, builds them in
// declaration order, builds the knots, reports the knot grouping under
// [grammar.StatusLayersIDs], creates the plot-side [grammar.Manager],
// applies the view's filter box and draws the first frame.
//
// Queries and interactions made while the scene is initializing fail with
// [errors.ErrCodeNotReady].
//
// # Concurrency
//
// One mutex serializes every mutation. The monitor goroutine, surface
// events and HTTP handlers all take it, so the controller behaves like a
// single-threaded event loop. Status callbacks run with the lock held and
// must not call back into the controller.
//
// # Usage
//
//	surfaces := scene.NewRegistry(scene.NewHeadlessSurface("map", 800, 600))
//	c, err := scene.New(scene.Options{
//	    Interpreter: interp,
//	    Loader:      dataapi.NewFileLoader("./data"),
//	    Surfaces:    surfaces,
//	    Logger:      logger,
//	})
//	if err := c.Init(ctx, "map", status); err != nil {
//	    return err
//	}
//	defer c.Dispose()
//	plots, err := c.ParsePlotsKnotData()
package scene

// Package server exposes a scene over HTTP.
//
// The API lets a browser-side plot front end read the plot bindings, push
// selections into the 3D view and follow status events:
//
//	GET  /api/plots                 plot bindings ([]grammar.KnotData)
//	GET  /api/knots                 knot states
//	POST /api/knots/{id}/toggle     {"visible": true} or {} to flip
//	POST /api/highlight             {"knotId": "k", "index": 3, "value": true}
//	POST /api/highlight/clear       {"layerId": "buildings"}
//	POST /api/pick                  {"x": 10, "y": 20}
//	GET  /api/camera                camera state
//	PUT  /api/camera                {"position": [x, y, z]}
//	PUT  /api/filter                {"bbox": [minX, minY, maxX, maxY]}
//	GET  /api/status                websocket stream of status events
//	GET  /healthz                   scene lifecycle state
//	GET  /metrics                   prometheus metrics
//
// Errors are answered as {"error": {"code": "...", "message": "..."}} with
// the status [errors.HTTPStatus] maps the code to.
//
// # Status stream
//
// [Hub] implements [grammar.StatusFunc] through [Hub.Publish]; pass it to
// scene.Controller.Init so every status event reaches the connected
// websocket clients. The hub keeps the latest value per key and replays it
// to clients as they connect.
//
// [errors.HTTPStatus]: https://pkg.go.dev/github.com/matzehuels/knotview/pkg/errors#HTTPStatus
// [grammar.StatusFunc]: https://pkg.go.dev/github.com/matzehuels/knotview/pkg/grammar#StatusFunc
package server

// Package grammar holds the declarative description of a knotview scene.
//
// A grammar names the data layers, the knots that bind thematic data to a
// physical layer through an integration scheme, the map view (camera,
// mapped knots, spatial filter, visibility rules) and the linked plots:
//
//	{
//	  "knots": [{
//	    "id": "shadow",
//	    "integration_scheme": [{
//	      "in":  {"name": "shadow", "level": "COORDINATES3D"},
//	      "out": {"name": "buildings", "level": "COORDINATES3D"},
//	      "op": "avg"
//	    }]
//	  }],
//	  "views": [{
//	    "map": {"camera": "nyc", "knots": ["shadow"]},
//	    "plots": [{"name": "histogram", "knots": ["shadow"]}]
//	  }]
//	}
//
// [Load] decodes JSON, YAML or TOML grammars and validates them. The
// [Interpreter] answers the queries the scene controller asks of a grammar,
// and the [Manager] keeps the plot-side state (plot data and selections)
// synchronized with the 3D view.
package grammar

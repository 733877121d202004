// Package relmap defines the reliability map data model and its canonical
// JSON serialization.
//
// A reliability map describes an agent's reliability as a star network:
// one center node (the active agent) connected to surrounding nodes
// (benchmark suites, personas, memory probes). Each link carries a
// strength score and a drift factor that the visual layer encodes as
// stroke weight and fade.
//
// The wire format matches the /api/reliability_map endpoint:
//
//	{
//	  "nodes": [
//	    {"id": "agent", "label": "Active Agent", "type": "agent", "score": 0.85},
//	    {"id": "s1", "label": "Calculator Suite", "type": "suite",
//	     "score": 0.8, "lastRun": "2026-08-21T09:30:00Z"}
//	  ],
//	  "links": [
//	    {"source": "agent", "target": "s1", "strength": 0.8, "drift": 0.1}
//	  ]
//	}
//
// Node order is significant and round-trips unchanged: the radial layout
// assigns angles by input order, so reordering nodes changes the picture.
package relmap

package relmap

import (
	"encoding/json"

	"github.com/lattelab/reliamap/pkg/errors"
)

// =============================================================================
// Constants - Single Source of Truth
// =============================================================================

// Node types.
const (
	TypeAgent   = "agent"
	TypeSuite   = "suite"
	TypePersona = "persona"
	TypeMemory  = "memory"
)

// CenterNodeID is the node ID of the active agent, the anchor of the
// radial layout. Every payload must contain exactly one node with this ID.
const CenterNodeID = "agent"

// ValidTypes is the set of recognized node types.
var ValidTypes = map[string]bool{
	TypeAgent:   true,
	TypeSuite:   true,
	TypePersona: true,
	TypeMemory:  true,
}

// =============================================================================
// Node - Map Element
// =============================================================================

// Node is one element of the reliability map: the active agent at the
// center, or a benchmark suite, persona, or memory probe around it.
//
// Positions are deliberately not part of Node - they are derived by
// pkg/layout for one render cycle and never stored back.
type Node struct {
	ID    string `json:"id" bson:"id"`
	Label string `json:"label,omitempty" bson:"label,omitempty"` // Display label (defaults to ID)
	Type  string `json:"type" bson:"type"`

	// Score is the node's reliability score in [0,1]. A nil score means
	// "unmeasured", which renders differently from a measured zero.
	Score *float64 `json:"score,omitempty" bson:"score,omitempty"`

	// LastRun is an ISO-8601 timestamp of the most recent evaluation.
	// Stored verbatim; conversion to local time happens only at display.
	LastRun string `json:"lastRun,omitempty" bson:"last_run,omitempty"`
}

// IsCenter returns true if this is the center (active agent) node.
func (n *Node) IsCenter() bool { return n.ID == CenterNodeID }

// DisplayLabel returns the label if set, otherwise the ID.
func (n *Node) DisplayLabel() string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}

// =============================================================================
// Link - Weighted Connection
// =============================================================================

// Link connects the agent to a surrounding node. Strength drives the
// stroke weight, drift fades the link (opacity 1-drift).
type Link struct {
	Source   string  `json:"source" bson:"source"`
	Target   string  `json:"target" bson:"target"`
	Strength float64 `json:"strength" bson:"strength"`
	Drift    float64 `json:"drift" bson:"drift"`
}

// =============================================================================
// Map - Reliability Map Payload
// =============================================================================

// Map is the full payload retrieved from the data source for one render
// cycle. Node order is significant: it determines each surrounding node's
// angle in the radial layout.
//
// A Map is immutable once fetched; a new fetch produces a wholly new Map
// and a full layout recomputation. There is no partial-update model.
type Map struct {
	Nodes []Node `json:"nodes" bson:"nodes"`
	Links []Link `json:"links" bson:"links"`
}

// NodeByID returns the node with the given id, if present.
func (m *Map) NodeByID(id string) (Node, bool) {
	for _, n := range m.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Center returns the center node, if present.
func (m *Map) Center() (Node, bool) {
	return m.NodeByID(CenterNodeID)
}

// Surrounding returns all non-center nodes in their original order.
func (m *Map) Surrounding() []Node {
	out := make([]Node, 0, len(m.Nodes))
	for _, n := range m.Nodes {
		if !n.IsCenter() {
			out = append(out, n)
		}
	}
	return out
}

// Validate checks the payload for structural problems. Violations are
// reported as MALFORMED_PAYLOAD errors.
//
// Dangling link endpoints are intentionally NOT a validation failure:
// a link whose endpoint is missing degrades to a per-link render skip,
// not a whole-payload rejection.
func (m *Map) Validate() error {
	seen := make(map[string]bool, len(m.Nodes))
	for _, n := range m.Nodes {
		if n.ID == "" {
			return errors.New(errors.ErrCodeMalformedPayload, "node with empty id")
		}
		if seen[n.ID] {
			return errors.New(errors.ErrCodeMalformedPayload, "duplicate node id %q", n.ID)
		}
		seen[n.ID] = true

		if !ValidTypes[n.Type] {
			return errors.New(errors.ErrCodeMalformedPayload, "node %s: invalid type %q", n.ID, n.Type)
		}
		if n.IsCenter() && n.Type != TypeAgent {
			return errors.New(errors.ErrCodeMalformedPayload, "center node must have type %q, got %q", TypeAgent, n.Type)
		}
		if n.Score != nil && (*n.Score < 0 || *n.Score > 1) {
			return errors.New(errors.ErrCodeMalformedPayload, "node %s: score %v out of [0,1]", n.ID, *n.Score)
		}
	}

	for i, l := range m.Links {
		if l.Source == "" || l.Target == "" {
			return errors.New(errors.ErrCodeMalformedPayload, "link %d: missing endpoint id", i)
		}
		if l.Strength < 0 || l.Strength > 1 {
			return errors.New(errors.ErrCodeMalformedPayload, "link %s->%s: strength %v out of [0,1]", l.Source, l.Target, l.Strength)
		}
		if l.Drift < 0 || l.Drift > 1 {
			return errors.New(errors.ErrCodeMalformedPayload, "link %s->%s: drift %v out of [0,1]", l.Source, l.Target, l.Drift)
		}
	}

	return nil
}

// UnmarshalMap deserializes JSON bytes to a Map and validates it.
func UnmarshalMap(data []byte) (*Map, error) {
	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeMalformedPayload, err, "decode reliability map")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Score returns a pointer to v, for building Node literals.
func Score(v float64) *float64 { return &v }

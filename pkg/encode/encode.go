// Package encode maps reliability map entities to renderable visual
// properties.
//
// The encoders are pure functions: node and link attributes go in, sizes,
// opacities, stroke widths, and symbolic color roles come out. Colors are
// emitted as roles (primary, secondary, ...) and resolved to concrete
// values by a theme, so the encoding stays independent of light/dark mode
// and of the render surface.
package encode

import "github.com/lattelab/reliamap/pkg/relmap"

// Role is a symbolic color role resolved by a theme.
type Role string

// Color roles, one per node type category.
const (
	RolePrimary   Role = "primary"   // the active agent hub
	RoleSecondary Role = "secondary" // benchmark suites
	RoleAccent    Role = "accent"    // personas
	RoleMuted     Role = "muted"     // memory probes
)

// Encoding policy constants.
const (
	// AgentRadius gives the center node its distinguished hub weight.
	AgentRadius = 26.0

	// NodeRadius is the uniform weight of all surrounding nodes.
	NodeRadius = 14.0

	// DefaultOpacity is used for nodes with no recorded score. The node
	// stays visible but reads as "unknown strength".
	DefaultOpacity = 0.8

	// MinStroke and StrokeScale define the linear strength-to-width map:
	// strength 0 draws at the minimum visible width, strength 1 at
	// MinStroke+StrokeScale.
	MinStroke   = 0.5
	StrokeScale = 5.5
)

// NodeVisual is the renderable appearance of one node.
type NodeVisual struct {
	Radius      float64
	FillOpacity float64
	Role        Role
}

// LinkVisual is the renderable appearance of one link.
type LinkVisual struct {
	StrokeWidth float64
	Opacity     float64
}

// EncodeNode maps a node to its visual properties. Fill opacity equals
// the node's score when present, DefaultOpacity otherwise.
func EncodeNode(n relmap.Node) NodeVisual {
	v := NodeVisual{
		Radius:      NodeRadius,
		FillOpacity: DefaultOpacity,
		Role:        roleFor(n.Type),
	}
	if n.Type == relmap.TypeAgent {
		v.Radius = AgentRadius
	}
	if n.Score != nil {
		v.FillOpacity = clamp01(*n.Score)
	}
	return v
}

// EncodeLink maps a link to its visual properties. Stroke width grows
// linearly with strength; opacity is 1-drift, so a fully drifted link is
// nearly invisible.
func EncodeLink(l relmap.Link) LinkVisual {
	return LinkVisual{
		StrokeWidth: MinStroke + clamp01(l.Strength)*StrokeScale,
		Opacity:     clamp01(1 - l.Drift),
	}
}

func roleFor(nodeType string) Role {
	switch nodeType {
	case relmap.TypeAgent:
		return RolePrimary
	case relmap.TypeSuite:
		return RoleSecondary
	case relmap.TypePersona:
		return RoleAccent
	default:
		return RoleMuted
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

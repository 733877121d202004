package view

import (
	"github.com/lattelab/reliamap/pkg/encode"
	"github.com/lattelab/reliamap/pkg/interact"
	"github.com/lattelab/reliamap/pkg/layout"
	"github.com/lattelab/reliamap/pkg/relmap"
)

// =============================================================================
// Scene - Renderable Output
// =============================================================================

// Scene is the fully positioned, styled, interactive description of one
// render cycle. Slices are ordered for painting: edges first (under the
// nodes), then node markers, then labels, so edges never occlude markers.
type Scene struct {
	Width  float64
	Height float64

	Edges  []SceneEdge
	Nodes  []SceneNode
	Labels []SceneLabel
}

// SceneEdge is one renderable link with resolved endpoint positions.
type SceneEdge struct {
	Link    relmap.Link
	X1, Y1  float64
	X2, Y2  float64
	Visual  encode.LinkVisual
	Tooltip interact.LinkTooltip
}

// SceneNode is one renderable node marker.
type SceneNode struct {
	Node    relmap.Node
	X, Y    float64
	Visual  encode.NodeVisual
	Tooltip interact.NodeTooltip
}

// SceneLabel is one node caption, positioned below its marker.
type SceneLabel struct {
	NodeID string
	Text   string
	X, Y   float64
}

// labelGap is the vertical offset between a marker's center and its caption.
const labelGap = 14.0

// BuildScene composes layout positions with visual encodings and tooltip
// content into a renderable scene.
//
// A link whose source or target is absent from the position map is
// skipped; all other links and every positioned node still render. This
// partial-render policy means a payload with a few dangling references
// degrades gracefully instead of failing the whole view.
func BuildScene(m *relmap.Map, positions map[string]layout.Point, width, height float64) Scene {
	s := Scene{Width: width, Height: height}

	for _, l := range m.Links {
		src, okS := positions[l.Source]
		dst, okT := positions[l.Target]
		if !okS || !okT {
			continue
		}
		srcNode, _ := m.NodeByID(l.Source)
		dstNode, _ := m.NodeByID(l.Target)
		s.Edges = append(s.Edges, SceneEdge{
			Link: l,
			X1:   src.X, Y1: src.Y,
			X2: dst.X, Y2: dst.Y,
			Visual:  encode.EncodeLink(l),
			Tooltip: interact.ForLink(l, srcNode, dstNode),
		})
	}

	for _, n := range m.Nodes {
		p, ok := positions[n.ID]
		if !ok {
			continue
		}
		visual := encode.EncodeNode(n)
		s.Nodes = append(s.Nodes, SceneNode{
			Node: n,
			X:    p.X, Y: p.Y,
			Visual:  visual,
			Tooltip: interact.ForNode(n),
		})
		s.Labels = append(s.Labels, SceneLabel{
			NodeID: n.ID,
			Text:   n.DisplayLabel(),
			X:      p.X,
			Y:      p.Y + visual.Radius + labelGap,
		})
	}

	return s
}

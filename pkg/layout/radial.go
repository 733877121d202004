// Package layout computes 2D positions for reliability map nodes.
//
// The only algorithm is the radial layout: the active agent sits at a
// fixed canvas center and the remaining nodes are distributed evenly
// around a circle, in input order. The layout is a pure function of the
// node sequence - it never inspects scores or links - so identical input
// order always yields identical positions. Force-directed placement is
// deliberately out of scope.
package layout

import (
	"math"

	"github.com/lattelab/reliamap/pkg/errors"
	"github.com/lattelab/reliamap/pkg/relmap"
)

// Defaults for the layout frame.
const (
	DefaultCenterX = 400.0
	DefaultCenterY = 300.0
	DefaultRadius  = 200.0
)

// ErrMissingCenter is returned when the payload has no "agent" node to
// anchor the radial pattern. The layout fails explicitly rather than
// guessing a fallback center.
var ErrMissingCenter = errors.New(errors.ErrCodeMissingCenter, "no center node %q in payload", relmap.CenterNodeID)

// Point is a computed 2D position.
type Point struct {
	X float64 `json:"x" bson:"x"`
	Y float64 `json:"y" bson:"y"`
}

// Options configures the layout frame.
type Options struct {
	CenterX float64
	CenterY float64
	Radius  float64
}

// DefaultOptions returns the standard frame geometry.
func DefaultOptions() Options {
	return Options{CenterX: DefaultCenterX, CenterY: DefaultCenterY, Radius: DefaultRadius}
}

// Radial computes a position for every node: the center node at
// (CenterX, CenterY), and the i-th of n surrounding nodes (0-indexed, by
// input order) at angle (i/n)*2π on a circle of the configured radius.
//
// Returns ErrMissingCenter when no node carries the center ID. Each call
// produces a fresh map; the result is never mutated in place.
func Radial(nodes []relmap.Node, opts Options) (map[string]Point, error) {
	if opts.Radius == 0 {
		opts = DefaultOptions()
	}

	hasCenter := false
	surrounding := make([]relmap.Node, 0, len(nodes))
	for _, n := range nodes {
		if n.IsCenter() {
			hasCenter = true
			continue
		}
		surrounding = append(surrounding, n)
	}
	if !hasCenter {
		return nil, ErrMissingCenter
	}

	positions := make(map[string]Point, len(nodes))
	positions[relmap.CenterNodeID] = Point{X: opts.CenterX, Y: opts.CenterY}

	n := len(surrounding)
	for i, node := range surrounding {
		angle := float64(i) / float64(n) * 2 * math.Pi
		positions[node.ID] = Point{
			X: opts.CenterX + opts.Radius*math.Cos(angle),
			Y: opts.CenterY + opts.Radius*math.Sin(angle),
		}
	}

	return positions, nil
}

// Package interact derives tooltip content and defines the selection
// contract for reliability map elements.
//
// Tooltips are returned as structured data, not pre-formatted markup, so
// any surface (SVG title, terminal viewer, HTML) can format them for its
// own medium and the logic stays testable without a DOM.
package interact

import (
	"math"
	"strconv"
	"time"

	"github.com/lattelab/reliamap/pkg/relmap"
)

// Unmeasured is the literal rendered for absent numeric or timestamp
// fields. It keeps "unmeasured" visually distinct from a measured zero.
const Unmeasured = "N/A"

// NodeTooltip is the structured hover content for a node.
type NodeTooltip struct {
	Label   string
	Type    string
	Score   string // percentage, or Unmeasured
	LastRun string // locale-formatted local time, or Unmeasured
}

// LinkTooltip is the structured hover content for a link.
type LinkTooltip struct {
	SourceLabel string
	TargetLabel string
	Strength    string // percentage
	Drift       string // percentage
}

// NodeSelectedFunc receives the full node entity when the user clicks or
// selects a node. The default handler is diagnostic-only; callers inject
// their own to build drill-down behavior without touching layout or
// encoding logic.
type NodeSelectedFunc func(relmap.Node)

// Percent formats v as round(v*100) with a trailing percent sign.
func Percent(v float64) string {
	return strconv.Itoa(int(math.Round(v*100))) + "%"
}

// PercentOrNA formats a possibly-absent value; nil renders as Unmeasured.
func PercentOrNA(v *float64) string {
	if v == nil {
		return Unmeasured
	}
	return Percent(*v)
}

// ForNode builds the tooltip for a node. The stored ISO-8601 timestamp is
// converted to local time for display only; the entity is never mutated.
func ForNode(n relmap.Node) NodeTooltip {
	return NodeTooltip{
		Label:   n.DisplayLabel(),
		Type:    n.Type,
		Score:   PercentOrNA(n.Score),
		LastRun: localTime(n.LastRun),
	}
}

// ForLink builds the tooltip for a link given its resolved endpoints.
func ForLink(l relmap.Link, source, target relmap.Node) LinkTooltip {
	return LinkTooltip{
		SourceLabel: source.DisplayLabel(),
		TargetLabel: target.DisplayLabel(),
		Strength:    Percent(l.Strength),
		Drift:       Percent(l.Drift),
	}
}

// localTime converts an ISO-8601 timestamp to a local display string.
// Unparseable or absent timestamps render as Unmeasured.
func localTime(iso string) string {
	if iso == "" {
		return Unmeasured
	}
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return Unmeasured
	}
	return t.Local().Format("Jan 2, 2006 15:04")
}

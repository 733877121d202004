package render

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/lattelab/reliamap/pkg/view"
)

type SVGOption func(*svgRenderer)

type svgRenderer struct {
	theme    Theme
	tooltips bool
}

func WithTheme(t Theme) SVGOption { return func(r *svgRenderer) { r.theme = t } }
func WithTooltips() SVGOption     { return func(r *svgRenderer) { r.tooltips = true } }

// RenderSVG renders a scene to SVG. Paint order follows the scene
// contract: edges first, then node markers, then labels, so edges never
// occlude nodes.
func RenderSVG(s view.Scene, opts ...SVGOption) []byte {
	r := svgRenderer{theme: Light}
	for _, opt := range opts {
		opt(&r)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.1f %.1f" width="%.0f" height="%.0f">`+"\n",
		s.Width, s.Height, s.Width, s.Height)
	fmt.Fprintf(&buf, `  <rect width="100%%" height="100%%" fill="%s"/>`+"\n", r.theme.Background)

	for _, e := range s.Edges {
		r.renderEdge(&buf, e)
	}
	for _, n := range s.Nodes {
		r.renderNode(&buf, n)
	}
	for _, l := range s.Labels {
		r.renderLabel(&buf, l)
	}

	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

func (r *svgRenderer) renderEdge(buf *bytes.Buffer, e view.SceneEdge) {
	fmt.Fprintf(buf, `  <line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="%.2f" stroke-opacity="%.2f"`,
		e.X1, e.Y1, e.X2, e.Y2, r.theme.Edge, e.Visual.StrokeWidth, e.Visual.Opacity)
	if r.tooltips {
		fmt.Fprintf(buf, ">\n    <title>%s</title>\n  </line>\n", escape(edgeTitle(e)))
		return
	}
	buf.WriteString("/>\n")
}

func (r *svgRenderer) renderNode(buf *bytes.Buffer, n view.SceneNode) {
	fmt.Fprintf(buf, `  <circle id="node-%s" cx="%.2f" cy="%.2f" r="%.1f" fill="%s" fill-opacity="%.2f"`,
		escape(n.Node.ID), n.X, n.Y, n.Visual.Radius, r.theme.Color(n.Visual.Role), n.Visual.FillOpacity)
	if r.tooltips {
		fmt.Fprintf(buf, ">\n    <title>%s</title>\n  </circle>\n", escape(nodeTitle(n)))
		return
	}
	buf.WriteString("/>\n")
}

func (r *svgRenderer) renderLabel(buf *bytes.Buffer, l view.SceneLabel) {
	fmt.Fprintf(buf, `  <text x="%.2f" y="%.2f" text-anchor="middle" font-size="12" fill="%s">%s</text>`+"\n",
		l.X, l.Y, r.theme.Label, escape(l.Text))
}

func nodeTitle(n view.SceneNode) string {
	t := n.Tooltip
	return fmt.Sprintf("%s\ntype: %s\nscore: %s\nlast run: %s", t.Label, t.Type, t.Score, t.LastRun)
}

func edgeTitle(e view.SceneEdge) string {
	t := e.Tooltip
	return fmt.Sprintf("%s → %s\nstrength: %s\ndrift: %s", t.SourceLabel, t.TargetLabel, t.Strength, t.Drift)
}

func escape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

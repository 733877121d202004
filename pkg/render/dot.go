package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/lattelab/reliamap/pkg/encode"
	"github.com/lattelab/reliamap/pkg/relmap"
)

// ToDOT converts a reliability map to Graphviz DOT format for node-link
// export. The center node keeps its larger marker via node width; link
// strength maps to penwidth and drift to edge grey level. Links with a
// missing endpoint are skipped, matching the scene renderer.
func ToDOT(m *relmap.Map, theme Theme) string {
	var buf bytes.Buffer
	buf.WriteString("graph reliability {\n")
	buf.WriteString("  layout=neato;\n")
	fmt.Fprintf(&buf, "  bgcolor=%q;\n", theme.Background)
	buf.WriteString("  node [shape=circle, style=filled, fontsize=12];\n")
	buf.WriteString("\n")

	for _, n := range m.Nodes {
		v := encode.EncodeNode(n)
		fmt.Fprintf(&buf, "  %q [label=%q, fillcolor=%q, width=%.2f];\n",
			n.ID, n.DisplayLabel(), theme.Color(v.Role), v.Radius/encode.NodeRadius)
	}

	buf.WriteString("\n")
	for _, l := range m.Links {
		if _, ok := m.NodeByID(l.Source); !ok {
			continue
		}
		if _, ok := m.NodeByID(l.Target); !ok {
			continue
		}
		v := encode.EncodeLink(l)
		fmt.Fprintf(&buf, "  %q -- %q [penwidth=%.2f, color=\"%s%02x\"];\n",
			l.Source, l.Target, v.StrokeWidth, theme.Edge, uint8(v.Opacity*255))
	}

	buf.WriteString("}\n")
	return buf.String()
}

// RenderGraphvizSVG renders a DOT graph to SVG using Graphviz.
func RenderGraphvizSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the Graphviz <svg> tag so the viewBox starts
// at the origin and the dimensions are plain pixels.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}

// Formats supported by the render stage.
const (
	FormatSVG = "svg"
	FormatDOT = "dot"
)

// ValidFormats lists the accepted artifact formats.
var ValidFormats = []string{FormatSVG, FormatDOT}

// IsValidFormat reports whether format names a supported artifact.
func IsValidFormat(format string) bool {
	return strings.EqualFold(format, FormatSVG) || strings.EqualFold(format, FormatDOT)
}

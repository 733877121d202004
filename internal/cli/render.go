package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lattelab/reliamap/pkg/pipeline"
	"github.com/lattelab/reliamap/pkg/relmap"
)

// renderCommand creates the render command for generating artifacts.
func (c *CLI) renderCommand() *cobra.Command {
	var (
		formatsStr string
		output     string
		noCache    bool
	)
	opts := pipeline.Options{}
	opts.SetLayoutDefaults()
	opts.SetRenderDefaults()
	opts.Tooltips = true

	cmd := &cobra.Command{
		Use:   "render [map.json]",
		Short: "Render a reliability map to SVG or DOT",
		Long: `Render a reliability map to visual artifacts.

The render command takes a map.json file (produced by 'fetch') and
renders it to SVG or Graphviz DOT format. Layout positions are computed
as part of the run and cached locally for faster subsequent renders.

The native engine draws the radial map directly; --engine graphviz routes
the DOT export through Graphviz instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Formats = parseFormats(formatsStr)
			if err := pipeline.ValidateFormats(opts.Formats); err != nil {
				return err
			}
			if err := pipeline.ValidateEngine(opts.Engine); err != nil {
				return err
			}
			if opts.ThemeFile == "" {
				if err := pipeline.ValidateTheme(opts.Theme); err != nil {
					return err
				}
			}
			return c.runRender(cmd.Context(), args[0], opts, output, noCache)
		},
	}

	// Common flags
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): svg (default), dot, json (comma-separated)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	// Layout flags
	cmd.Flags().Float64Var(&opts.CenterX, "center-x", opts.CenterX, "center x coordinate")
	cmd.Flags().Float64Var(&opts.CenterY, "center-y", opts.CenterY, "center y coordinate")
	cmd.Flags().Float64Var(&opts.Radius, "radius", opts.Radius, "ring radius")
	cmd.Flags().Float64Var(&opts.Width, "width", opts.Width, "frame width")
	cmd.Flags().Float64Var(&opts.Height, "height", opts.Height, "frame height")

	// Render flags
	cmd.Flags().StringVar(&opts.Theme, "theme", opts.Theme, "color theme: light (default), dark")
	cmd.Flags().StringVar(&opts.ThemeFile, "theme-file", "", "TOML theme file (overrides --theme)")
	cmd.Flags().StringVar(&opts.Engine, "engine", opts.Engine, "svg engine: native (default), graphviz")
	cmd.Flags().BoolVar(&opts.Tooltips, "tooltips", opts.Tooltips, "embed hover tooltips in SVG output")

	return cmd
}

// runRender loads the map, computes the layout, and renders artifacts.
func (c *CLI) runRender(ctx context.Context, input string, opts pipeline.Options, output string, noCache bool) error {
	m, err := relmap.ReadMapFile(input)
	if err != nil {
		return fmt.Errorf("load map %s: %w", input, err)
	}

	runner, err := c.newRunner(noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()
	opts.Logger = c.Logger

	spinner := newSpinnerWithContext(ctx, "Rendering reliability map...")
	spinner.Start()

	positions, _, err := runner.ComputeLayoutWithCacheInfo(ctx, m, opts)
	if err != nil {
		spinner.StopWithError("Layout failed")
		return fmt.Errorf("layout: %w", err)
	}

	artifacts, cacheHit, err := runner.RenderWithCacheInfo(ctx, m, positions, opts)
	if err != nil {
		spinner.StopWithError("Render failed")
		return fmt.Errorf("render: %w", err)
	}
	spinner.Stop()

	printSuccess("Rendered reliability map")
	printStats(len(m.Nodes), len(m.Links), cacheHit)

	return writeArtifacts(artifacts, opts.Formats, input, output)
}

// writeArtifacts writes rendered artifacts to disk, one file per format.
// With a single format, output names the file directly; with several, it
// is treated as a base path.
func writeArtifacts(artifacts map[string][]byte, formats []string, input, output string) error {
	base := basePath(output, input)

	for _, format := range formats {
		data, ok := artifacts[format]
		if !ok {
			continue
		}

		path := base + "." + format
		if output != "" && len(formats) == 1 {
			path = output
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		printFile(path)
	}
	return nil
}

// basePath derives the base output path from the output and input paths.
// An empty output strips the extension from input; an output carrying a
// known format extension has it stripped.
func basePath(output, input string) string {
	if output == "" {
		return strings.TrimSuffix(input, filepath.Ext(input))
	}
	ext := filepath.Ext(output)
	if pipeline.ValidFormats[strings.TrimPrefix(ext, ".")] {
		return strings.TrimSuffix(output, ext)
	}
	return output
}

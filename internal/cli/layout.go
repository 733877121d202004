package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lattelab/reliamap/pkg/pipeline"
	"github.com/lattelab/reliamap/pkg/relmap"
)

// layoutCommand creates the layout command for computing positions.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		output  string
		noCache bool
	)
	opts := pipeline.Options{}
	opts.SetLayoutDefaults()

	cmd := &cobra.Command{
		Use:   "layout [map.json]",
		Short: "Compute radial positions for a reliability map",
		Long: `Compute radial positions for a reliability map.

The agent node is pinned at the center; all other nodes are placed evenly
around a circle in payload order. The resulting positions are written as
a JSON object keyed by node id.

The layout fails if the payload has no agent node to anchor on.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLayout(cmd.Context(), args[0], opts, output, noCache)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>_layout.json)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().Float64Var(&opts.CenterX, "center-x", opts.CenterX, "center x coordinate")
	cmd.Flags().Float64Var(&opts.CenterY, "center-y", opts.CenterY, "center y coordinate")
	cmd.Flags().Float64Var(&opts.Radius, "radius", opts.Radius, "ring radius")

	return cmd
}

func (c *CLI) runLayout(ctx context.Context, input string, opts pipeline.Options, output string, noCache bool) error {
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

	p := newProgress(c.Logger)
	positions, cacheHit, err := runner.ComputeLayoutWithCacheInfo(ctx, m, opts)
	if err != nil {
		return fmt.Errorf("layout: %w", err)
	}
	p.done(fmt.Sprintf("Positioned %d nodes", len(positions)))

	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + "_layout.json"
	}

	data, err := json.MarshalIndent(positions, "", "  ")
	if err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}

	printSuccess("Computed layout")
	printStats(len(positions), len(m.Links), cacheHit)
	printFile(output)
	printNextStep("Render artifacts", fmt.Sprintf("reliamap render %s", input))
	return nil
}

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lattelab/reliamap/pkg/pipeline"
	"github.com/lattelab/reliamap/pkg/relmap"
)

// fetchCommand creates the fetch command for retrieving a payload.
func (c *CLI) fetchCommand() *cobra.Command {
	var (
		baseURL string
		apiKey  string
		output  string
		refresh bool
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch a reliability map payload from the API",
		Long: `Fetch a reliability map payload from the API and save it as JSON.

The payload is validated against the expected node/link schema before it
is written. Results are cached locally for faster subsequent runs; use
--refresh to bypass the cache.

The API key is read from --api-key or the RELIAMAP_API_KEY environment
variable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runFetch(cmd.Context(), pipeline.Options{
				BaseURL: baseURL,
				APIKey:  apiKeyFromEnv(apiKey),
				Refresh: refresh,
			}, output, noCache)
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8000", "base URL of the reliability map API")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key (or set RELIAMAP_API_KEY)")
	cmd.Flags().StringVarP(&output, "output", "o", "map.json", "output file for the payload")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the local cache")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

func (c *CLI) runFetch(ctx context.Context, opts pipeline.Options, output string, noCache bool) error {
	runner, err := c.newRunner(noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()
	opts.Logger = c.Logger

	spinner := newSpinnerWithContext(ctx, "Fetching reliability map...")
	spinner.Start()

	m, cacheHit, err := runner.FetchWithCacheInfo(ctx, opts)
	if err != nil {
		spinner.StopWithError("Fetch failed")
		return err
	}
	spinner.Stop()

	if err := relmap.WriteMapFile(m, output); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}

	printSuccess("Fetched reliability map")
	printStats(len(m.Nodes), len(m.Links), cacheHit)
	printFile(output)
	printNextStep("Compute layout", fmt.Sprintf("reliamap layout %s", output))
	return nil
}

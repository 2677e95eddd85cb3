package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/heatgrid/heatgrid/pkg/pipeline"
	"github.com/heatgrid/heatgrid/pkg/street"
)

// graphCommand creates the graph command for building the street graph
// without planning a network.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		configPath string
		output     string
		noCache    bool
		refresh    bool
		decimals   int
	)

	cmd := &cobra.Command{
		Use:   "graph <streets.json>",
		Short: "Build and export the routable street graph",
		Long: `Build the routable street graph from a street extract and write it as JSON.

The exported graph is the exact input the planning stages work on, which
makes it useful for inspecting node merging and edge geometry before
committing to a full plan.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			opts := cfg.Pipeline
			if cmd.Flags().Changed("decimals") {
				opts.Decimals = decimals
			}
			opts.Refresh = refresh

			cs := cacheSettings{Disabled: noCache, URL: cfg.Cache.URL, Project: cfg.Cache.Project}
			return c.runGraph(cmd.Context(), args[0], opts, cs, output)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "TOML config file")
	cmd.Flags().StringVarP(&output, "output", "o", "graph.json", "output file for the street graph")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass cache for this run")
	cmd.Flags().IntVar(&decimals, "decimals", pipeline.DefaultDecimals, "node rounding decimals")

	return cmd
}

// runGraph builds the graph and writes it to disk.
func (c *CLI) runGraph(ctx context.Context, streetsPath string, opts pipeline.Options, cs cacheSettings, output string) error {
	crs, ways, err := loadStreets(streetsPath)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(cs)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	opts.Logger = c.Logger
	prog := newProgress(c.Logger)

	g, hit, err := runner.BuildGraphWithCacheInfo(ctx, pipeline.Input{Ways: ways, CRS: crs}, opts)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Built street graph with %d nodes", g.NodeCount()))

	if err := street.WriteGraphFile(g, output); err != nil {
		return err
	}

	printSuccess("Built street graph")
	printStats(g.NodeCount(), g.EdgeCount(), hit)
	printFile(output)
	return nil
}

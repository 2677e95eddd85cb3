package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/heatgrid/heatgrid/pkg/errors"
	"github.com/heatgrid/heatgrid/pkg/hydraulic"
	"github.com/heatgrid/heatgrid/pkg/pipeline"
)

// planCommand creates the plan command running the full pipeline.
func (c *CLI) planCommand() *cobra.Command {
	var (
		configPath string
		output     string
		noCache    bool
		refresh    bool
	)
	var flagOpts pipeline.Options

	cmd := &cobra.Command{
		Use:   "plan <streets.json> <buildings.json>",
		Short: "Plan a district heating network end to end",
		Long: `Plan a district heating network from a street extract and a building list.

The plan command builds the routable street graph, attaches every building
to its street, selects the plant location, constructs the trunk topology
and prepares a solver-ready hydraulic model. The optimizer then repairs
the model until a flow solver can converge on it.

Results are cached locally for faster subsequent runs; use a [cache]
section in the config file to share a Redis cache between machines.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			opts := cfg.Pipeline
			applyFlagOverrides(cmd, &opts, &flagOpts)
			opts.Refresh = refresh

			cs := cacheSettings{Disabled: noCache, URL: cfg.Cache.URL, Project: cfg.Cache.Project}
			return c.runPlan(cmd.Context(), args[0], args[1], opts, cs, output)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "TOML config file")
	cmd.Flags().StringVarP(&output, "output", "o", "network.json", "output file for the planned network")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass cache for this run")

	cmd.Flags().StringVar(&flagOpts.AttachMode, "attach-mode", "", "attachment mode: split-edge (default), nearest-node, clustered")
	cmd.Flags().StringVar(&flagOpts.TrunkMode, "trunk-mode", "", "trunk mode: selected-streets (default), full-street, street-plus-spurs")
	cmd.Flags().StringVar(&flagOpts.CostMode, "cost-mode", "", "routing cost: length-only (default), avoid-primary")
	cmd.Flags().BoolVar(&flagOpts.WeightedPlant, "weighted-plant", false, "weight the plant location by building demand")
	cmd.Flags().Float64Var(&flagOpts.MaxDistance, "max-distance", 0, "maximum building-to-street distance in meters (0 = unlimited)")
	cmd.Flags().Uint64Var(&flagOpts.Seed, "seed", 0, "optimizer seed for reproducible repairs")

	return cmd
}

// applyFlagOverrides copies explicitly set flags over the config values.
func applyFlagOverrides(cmd *cobra.Command, opts, flags *pipeline.Options) {
	if cmd.Flags().Changed("attach-mode") {
		opts.AttachMode = flags.AttachMode
	}
	if cmd.Flags().Changed("trunk-mode") {
		opts.TrunkMode = flags.TrunkMode
	}
	if cmd.Flags().Changed("cost-mode") {
		opts.CostMode = flags.CostMode
	}
	if cmd.Flags().Changed("weighted-plant") {
		opts.WeightedPlant = flags.WeightedPlant
	}
	if cmd.Flags().Changed("max-distance") {
		opts.MaxDistance = flags.MaxDistance
	}
	if cmd.Flags().Changed("seed") {
		opts.Seed = flags.Seed
	}
}

// runPlan loads the input, executes the pipeline and writes the network.
func (c *CLI) runPlan(ctx context.Context, streetsPath, buildingsPath string, opts pipeline.Options, cs cacheSettings, output string) error {
	input, err := loadInput(streetsPath, buildingsPath)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(cs)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	opts.Logger = c.Logger

	spinner := newSpinnerWithContext(ctx, "Planning network...")
	spinner.Start()

	result, err := runner.Execute(ctx, input, opts)
	if err != nil {
		spinner.StopWithError("Planning failed")
		return err
	}
	spinner.Stop()

	printSuccess("Planned district heating network")
	printStats(result.Stats.NodeCount, result.Stats.EdgeCount, result.CacheInfo.GraphHit)
	printDetail("trunk: %.0f m over %d edges", result.Stats.TrunkLength, len(result.Plan.Edges))
	printDetail("buildings: %d connected", len(result.Plan.Buildings))
	if result.Plan.Spurs != nil {
		printDetail("spurs: %d promoted (%.0f m)", result.Plan.Spurs.PromotedCount, result.Plan.Spurs.PromotedLength)
	}
	for _, id := range result.Unattached {
		printWarning("building %s has no street within reach", id)
	}
	if n := len(result.Dropped); n > 0 {
		printWarning("%d buildings dropped outside the dominant component", n)
	}

	printKeyValue("run id", result.Summary.RunID.String())
	printKeyValue("state", string(result.Summary.State))
	printKeyValue("iterations", fmt.Sprintf("%d", len(result.Summary.Iterations)))
	printKeyValue("fixes", fmt.Sprintf("%d", result.Summary.TotalFixes))
	if !result.Summary.Valid {
		printWarning("network did not stabilize; the solver may not converge")
	}

	if err := writeNetwork(output, result); err != nil {
		return err
	}
	printFile(output)
	return nil
}

// networkOutput is the exported run record: the realized model plus the
// optimizer summary and the buildings excluded from the plan.
type networkOutput struct {
	RunID       uuid.UUID             `json:"run_id"`
	GraphHash   string                `json:"graph_hash"`
	Valid       bool                  `json:"valid"`
	PlantSupply string                `json:"plant_supply"`
	PlantReturn string                `json:"plant_return"`
	Junctions   []*hydraulic.Junction `json:"junctions"`
	Pipes       []*hydraulic.Pipe     `json:"pipes"`
	Summary     *hydraulic.Summary    `json:"summary"`
	Dropped     []string              `json:"dropped,omitempty"`
	Unattached  []string              `json:"unattached,omitempty"`
}

func writeNetwork(path string, result *pipeline.Result) error {
	out := networkOutput{
		RunID:       result.Summary.RunID,
		GraphHash:   result.GraphHash,
		Valid:       result.Summary.Valid,
		PlantSupply: result.Network.PlantSupply,
		PlantReturn: result.Network.PlantReturn,
		Junctions:   result.Network.Junctions,
		Pipes:       result.Network.Pipes,
		Summary:     result.Summary,
		Dropped:     result.Dropped,
		Unattached:  result.Unattached,
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode network")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

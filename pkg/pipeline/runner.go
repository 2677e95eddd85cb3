package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/heatgrid/heatgrid/pkg/attach"
	"github.com/heatgrid/heatgrid/pkg/cache"
	"github.com/heatgrid/heatgrid/pkg/hydraulic"
	"github.com/heatgrid/heatgrid/pkg/observability"
	"github.com/heatgrid/heatgrid/pkg/street"
	"github.com/heatgrid/heatgrid/pkg/topology"
)

// Input is the raw planning input: street ways in a projected frame and
// the buildings to connect.
type Input struct {
	Ways      []street.Way      `json:"ways"`
	CRS       street.CRS        `json:"crs"`
	Buildings []attach.Building `json:"buildings"`
}

// Runner encapsulates pipeline execution with caching.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete graph → plan → realize → optimize pipeline
// with caching.
func (r *Runner) Execute(ctx context.Context, input Input, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	r.applyLogger(&opts)

	result := &Result{}

	// Stage 1: Graph
	graphStart := time.Now()
	observability.Pipeline().OnStageStart(ctx, observability.StageGraph)
	g, graphHit, err := r.BuildGraphWithCacheInfo(ctx, input, opts)
	if err == nil {
		err = street.CheckDensity(g, len(input.Buildings))
	}
	observability.Pipeline().OnStageComplete(ctx, observability.StageGraph, time.Since(graphStart), err)
	if err != nil {
		return nil, fmt.Errorf("graph: %w", err)
	}
	result.Graph = g
	result.Stats.GraphTime = time.Since(graphStart)
	result.Stats.NodeCount = g.NodeCount()
	result.Stats.EdgeCount = g.EdgeCount()
	result.CacheInfo.GraphHit = graphHit

	// Compute graph hash for cache keys and run records
	if graphData, err := street.MarshalGraph(g); err == nil {
		result.GraphHash = cache.Hash(graphData)
	}

	r.Logger.Info("built street graph",
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"cached", graphHit,
		"duration", result.Stats.GraphTime)

	// Stage 2: Plan
	planStart := time.Now()
	observability.Pipeline().OnStageStart(ctx, observability.StagePlan)
	stage, planHit, err := r.PlanWithCacheInfo(ctx, g, result.GraphHash, input.Buildings, opts)
	observability.Pipeline().OnStageComplete(ctx, observability.StagePlan, time.Since(planStart), err)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	result.Plan = stage.Plan
	result.Dropped = stage.Dropped
	result.Unattached = stage.Unattached
	result.Stats.PlanTime = time.Since(planStart)
	result.Stats.TrunkLength = stage.Plan.TotalLength()
	result.CacheInfo.PlanHit = planHit

	r.Logger.Info("planned trunk topology",
		"trunk_edges", len(stage.Plan.Edges),
		"trunk_length_m", result.Stats.TrunkLength,
		"buildings", len(stage.Plan.Buildings),
		"dropped", len(stage.Dropped),
		"cached", planHit,
		"duration", result.Stats.PlanTime)

	// Stage 3: Realize
	realizeStart := time.Now()
	observability.Pipeline().OnStageStart(ctx, observability.StageRealize)
	net, err := hydraulic.Realize(stage.Plan, opts.RealizeOptions())
	observability.Pipeline().OnStageComplete(ctx, observability.StageRealize, time.Since(realizeStart), err)
	if err != nil {
		return nil, fmt.Errorf("realize: %w", err)
	}
	result.Network = net
	result.Stats.RealizeTime = time.Since(realizeStart)

	r.Logger.Info("realized hydraulic network",
		"junctions", len(net.Junctions),
		"pipes", len(net.Pipes),
		"duration", result.Stats.RealizeTime)

	// Stage 4: Optimize
	optStart := time.Now()
	observability.Pipeline().OnStageStart(ctx, observability.StageOptimize)
	result.Summary = hydraulic.Optimize(net, opts.OptimizerOptions())
	result.Stats.OptimizeTime = time.Since(optStart)
	observability.Pipeline().OnStageComplete(ctx, observability.StageOptimize, result.Stats.OptimizeTime, nil)

	r.Logger.Info("optimized network",
		"run_id", result.Summary.RunID,
		"state", result.Summary.State,
		"iterations", len(result.Summary.Iterations),
		"fixes", result.Summary.TotalFixes,
		"duration", result.Stats.OptimizeTime)

	return result, nil
}

// BuildGraphWithCacheInfo builds the street graph with caching and
// returns cache hit info.
func (r *Runner) BuildGraphWithCacheInfo(ctx context.Context, input Input, opts Options) (*street.Graph, bool, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, err
	}
	r.applyLogger(&opts)

	// Key the graph by the raw ways and frame, not the buildings:
	// attachment happens in the plan stage.
	rawInput, _ := json.Marshal(struct {
		Ways []street.Way `json:"ways"`
		CRS  street.CRS   `json:"crs"`
	}{input.Ways, input.CRS})
	cacheKey := r.Keyer.GraphKey(cache.Hash(rawInput), opts.GraphKeyOpts(input.CRS))

	// Try cache first (unless refresh requested)
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			g, err := street.ReadGraph(bytes.NewReader(data))
			if err == nil {
				observability.Cache().OnCacheHit(ctx, "graph")
				return g, true, nil // Cache hit
			}
		}
	}
	observability.Cache().OnCacheMiss(ctx, "graph")

	g, err := street.Build(input.Ways, input.CRS, opts.Decimals)
	if err != nil {
		return nil, false, err
	}

	// Cache the result
	if data, err := street.MarshalGraph(g); err == nil {
		_ = r.Cache.Set(ctx, cacheKey, data, cache.TTLGraph)
		observability.Cache().OnCacheSet(ctx, "graph", len(data))
	}

	return g, false, nil // Cache miss
}

// BuildGraph is a convenience wrapper that calls BuildGraphWithCacheInfo
// and discards the cache hit info.
func (r *Runner) BuildGraph(ctx context.Context, input Input, opts Options) (*street.Graph, error) {
	g, _, err := r.BuildGraphWithCacheInfo(ctx, input, opts)
	return g, err
}

// PlanStage bundles the plan with the buildings dropped along the way.
type PlanStage struct {
	Plan       *topology.Plan
	Dropped    []string
	Unattached []string
}

// PlanWithCacheInfo runs attachment, component and plant selection and
// trunk construction with caching, and returns cache hit info.
func (r *Runner) PlanWithCacheInfo(ctx context.Context, g *street.Graph, graphHash string, buildings []attach.Building, opts Options) (*PlanStage, bool, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, err
	}
	r.applyLogger(&opts)

	// The plan depends on both the graph and the building set.
	buildingData, _ := json.Marshal(buildings)
	cacheKey := r.Keyer.PlanKey(graphHash+":"+cache.Hash(buildingData), opts.PlanKeyOpts())

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			stage, err := unmarshalPlanStage(data)
			if err == nil {
				observability.Cache().OnCacheHit(ctx, "plan")
				return stage, true, nil // Cache hit
			}
			// If deserialization fails, fall through to recompute
		}
	}
	observability.Cache().OnCacheMiss(ctx, "plan")

	stage, err := r.plan(g, buildings, opts)
	if err != nil {
		return nil, false, err
	}

	if data, err := marshalPlanStage(stage); err == nil {
		_ = r.Cache.Set(ctx, cacheKey, data, cache.TTLPlan)
		observability.Cache().OnCacheSet(ctx, "plan", len(data))
	}

	return stage, false, nil // Cache miss
}

// plan runs the uncached plan stage.
func (r *Runner) plan(g *street.Graph, buildings []attach.Building, opts Options) (*PlanStage, error) {
	res, err := attach.Attach(buildings, g, opts.AttachOptions())
	if err != nil {
		return nil, err
	}
	r.Logger.Debug("attached buildings",
		"attached", len(res.Buildings)-len(res.Unattached),
		"unattached", len(res.Unattached))

	sel, err := topology.SelectComponent(res.Graph, res.Buildings)
	if err != nil {
		return nil, err
	}
	if len(sel.Dropped) > 0 {
		r.Logger.Warn("dropped buildings outside the dominant component",
			"count", len(sel.Dropped))
	}

	plant, err := topology.SelectPlant(sel.Graph, sel.Buildings, opts.WeightedPlant)
	if err != nil {
		return nil, err
	}

	plan, err := topology.BuildTrunk(sel.Graph, sel.Buildings, plant, opts.TrunkOptions())
	if err != nil {
		return nil, err
	}
	return &PlanStage{Plan: plan, Dropped: sel.Dropped, Unattached: res.Unattached}, nil
}

// planStageJSON is the cache serialization of a plan stage. The graph is
// embedded in its canonical serialized form.
type planStageJSON struct {
	Plant      street.Coordinate    `json:"plant"`
	Edges      []street.EdgeKey     `json:"edges"`
	Graph      json.RawMessage      `json:"graph"`
	Buildings  []attach.Building    `json:"buildings"`
	Spurs      *topology.SpurReport `json:"spurs,omitempty"`
	Dropped    []string             `json:"dropped,omitempty"`
	Unattached []string             `json:"unattached,omitempty"`
}

func marshalPlanStage(stage *PlanStage) ([]byte, error) {
	graphData, err := street.MarshalGraph(stage.Plan.Graph)
	if err != nil {
		return nil, err
	}
	return json.Marshal(planStageJSON{
		Plant:      stage.Plan.Plant,
		Edges:      stage.Plan.Edges.Keys(),
		Graph:      graphData,
		Buildings:  stage.Plan.Buildings,
		Spurs:      stage.Plan.Spurs,
		Dropped:    stage.Dropped,
		Unattached: stage.Unattached,
	})
}

func unmarshalPlanStage(data []byte) (*PlanStage, error) {
	var raw planStageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	g, err := street.ReadGraph(bytes.NewReader(raw.Graph))
	if err != nil {
		return nil, err
	}
	edges := topology.EdgeSet{}
	for _, k := range raw.Edges {
		edges.Add(k)
	}
	return &PlanStage{
		Plan: &topology.Plan{
			Plant:     raw.Plant,
			Edges:     edges,
			Graph:     g,
			Buildings: raw.Buildings,
			Spurs:     raw.Spurs,
		},
		Dropped:    raw.Dropped,
		Unattached: raw.Unattached,
	}, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

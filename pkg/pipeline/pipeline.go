// Package pipeline provides the end-to-end planning pipeline: street
// graph construction, building attachment, trunk topology and the
// hydraulic network with convergence optimization.
//
// This package is the single entry point shared by the CLI and batch
// tooling. Centralizing the stage order and caching here keeps behavior
// consistent across entry points.
//
// # Architecture
//
// The pipeline consists of four stages:
//
//  1. Graph: build the routable street graph from raw ways
//  2. Plan: attach buildings, pick the plant, construct the trunk
//  3. Realize: expand the trunk into a supply/return hydraulic network
//  4. Optimize: repair the network until the solver can converge on it
//
// The graph and plan stages are cached by content hash; realization and
// optimization are cheap and always recomputed.
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{TrunkMode: "street-plus-spurs"}
//	result, err := runner.Execute(ctx, input, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	summary := result.Summary
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/heatgrid/heatgrid/pkg/attach"
	"github.com/heatgrid/heatgrid/pkg/cache"
	"github.com/heatgrid/heatgrid/pkg/errors"
	"github.com/heatgrid/heatgrid/pkg/hydraulic"
	"github.com/heatgrid/heatgrid/pkg/street"
	"github.com/heatgrid/heatgrid/pkg/topology"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and Batch Tooling
// =============================================================================

const (
	// DefaultAttachMode gives every building its own attach node.
	DefaultAttachMode = string(attach.ModeSplitEdge)

	// DefaultTrunkMode routes mains only along streets that serve a
	// building, which is the economical default for district planning.
	DefaultTrunkMode = string(topology.TrunkSelectedStreets)

	// DefaultCostMode routes by plain edge length.
	DefaultCostMode = string(topology.CostLengthOnly)

	// DefaultDecimals is the node rounding used for graph construction.
	DefaultDecimals = street.DefaultDecimals

	// DefaultSeed is the optimizer seed for reproducible runs.
	DefaultSeed = uint64(1)
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for the planning pipeline.
// This struct supports JSON and TOML serialization for config files.
type Options struct {
	// Attachment options
	AttachMode    string  `json:"attach_mode,omitempty" toml:"attach_mode"`
	SnapTolerance float64 `json:"snap_tolerance_m,omitempty" toml:"snap_tolerance_m"`
	MinSpacing    float64 `json:"min_spacing_m,omitempty" toml:"min_spacing_m"`
	MaxDistance   float64 `json:"max_distance_m,omitempty" toml:"max_distance_m"`
	Decimals      int     `json:"decimals,omitempty" toml:"decimals"`

	// Plant and trunk options
	WeightedPlant  bool    `json:"weighted_plant,omitempty" toml:"weighted_plant"`
	TrunkMode      string  `json:"trunk_mode,omitempty" toml:"trunk_mode"`
	CostMode       string  `json:"cost_mode,omitempty" toml:"cost_mode"`
	PrimaryPenalty float64 `json:"primary_penalty,omitempty" toml:"primary_penalty"`

	// Spur expansion options (trunk_mode = street-plus-spurs)
	SpurThreshold float64 `json:"spur_threshold_m,omitempty" toml:"spur_threshold_m"`
	SpurMaxDepth  int     `json:"spur_max_depth,omitempty" toml:"spur_max_depth"`
	SpurMinLoads  int     `json:"spur_min_buildings,omitempty" toml:"spur_min_buildings"`
	SpurMaxLength float64 `json:"spur_max_length_m,omitempty" toml:"spur_max_length_m"`
	SpurReduction float64 `json:"spur_reduction_pct,omitempty" toml:"spur_reduction_pct"`
	SpurBuffer    float64 `json:"spur_buffer_m,omitempty" toml:"spur_buffer_m"`

	// Realization options
	SupplyPressure float64 `json:"supply_pressure_bar,omitempty" toml:"supply_pressure_bar"`
	ReturnPressure float64 `json:"return_pressure_bar,omitempty" toml:"return_pressure_bar"`
	Roughness      float64 `json:"roughness_mm,omitempty" toml:"roughness_mm"`

	// Optimizer options
	MaxIterations int     `json:"max_iterations,omitempty" toml:"max_iterations"`
	MinPipeLength float64 `json:"min_pipe_length_m,omitempty" toml:"min_pipe_length_m"`
	RoughnessPct  float64 `json:"roughness_pct,omitempty" toml:"roughness_pct"`
	Seed          uint64  `json:"seed,omitempty" toml:"seed"`

	// Refresh bypasses the cache for this run.
	Refresh bool `json:"refresh,omitempty" toml:"-"`

	// Runtime options (not serialized)
	Logger *log.Logger     `json:"-" toml:"-"`
	Sizer  hydraulic.Sizer `json:"-" toml:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-" toml:"-"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// GraphHash is the content hash of the built street graph.
	GraphHash string

	// Graph is the routable street graph.
	Graph *street.Graph

	// Plan is the trunk topology with attached buildings.
	Plan *topology.Plan

	// Network is the realized hydraulic model after optimization.
	Network *hydraulic.Network

	// Summary is the optimizer's structured outcome.
	Summary *hydraulic.Summary

	// Dropped lists buildings discarded with the losing components.
	Dropped []string

	// Unattached lists buildings with no street edge within reach.
	Unattached []string

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	NodeCount    int
	EdgeCount    int
	TrunkLength  float64
	GraphTime    time.Duration
	PlanTime     time.Duration
	RealizeTime  time.Duration
	OptimizeTime time.Duration
}

// CacheInfo tracks cache hits for each cached pipeline stage.
type CacheInfo struct {
	GraphHit bool // Whether the street graph came from cache
	PlanHit  bool // Whether the network plan came from cache
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks mode strings and applies defaults for
// the full pipeline. Unknown modes fail here, before any work starts.
// This method is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}

	if o.AttachMode == "" {
		o.AttachMode = DefaultAttachMode
	}
	if _, err := attach.ParseMode(o.AttachMode); err != nil {
		return err
	}
	if o.TrunkMode == "" {
		o.TrunkMode = DefaultTrunkMode
	}
	if _, err := topology.ParseTrunkMode(o.TrunkMode); err != nil {
		return err
	}
	if o.CostMode == "" {
		o.CostMode = DefaultCostMode
	}
	if _, err := topology.ParseCostMode(o.CostMode); err != nil {
		return err
	}
	if o.MaxIterations < 0 {
		return errors.New(errors.ErrCodeInvalidOption,
			"max_iterations must not be negative, got %d", o.MaxIterations)
	}

	ad := attach.DefaultOptions()
	if o.SnapTolerance == 0 {
		o.SnapTolerance = ad.SnapTolerance
	}
	if o.MinSpacing == 0 {
		o.MinSpacing = ad.MinSpacing
	}
	if o.Decimals == 0 {
		o.Decimals = DefaultDecimals
	}

	if o.PrimaryPenalty == 0 {
		o.PrimaryPenalty = topology.DefaultPrimaryPenalty
	}
	sd := topology.DefaultSpurOptions()
	if o.SpurThreshold == 0 {
		o.SpurThreshold = sd.ServiceThreshold
	}
	if o.SpurMaxDepth == 0 {
		o.SpurMaxDepth = sd.MaxDepth
	}
	if o.SpurMinLoads == 0 {
		o.SpurMinLoads = sd.MinBuildings
	}
	if o.SpurMaxLength == 0 {
		o.SpurMaxLength = sd.MaxTotalLength
	}
	if o.SpurReduction == 0 {
		o.SpurReduction = sd.ReductionPct
	}
	if o.SpurBuffer == 0 {
		o.SpurBuffer = sd.SearchBuffer
	}

	rd := hydraulic.DefaultRealizeOptions()
	if o.SupplyPressure == 0 {
		o.SupplyPressure = rd.SupplyPressure
	}
	if o.ReturnPressure == 0 {
		o.ReturnPressure = rd.ReturnPressure
	}
	if o.Roughness == 0 {
		o.Roughness = rd.Roughness
	}

	od := hydraulic.DefaultOptimizerOptions()
	if o.MaxIterations == 0 {
		o.MaxIterations = od.MaxIterations
	}
	if o.MinPipeLength == 0 {
		o.MinPipeLength = od.MinPipeLength
	}
	if o.RoughnessPct == 0 {
		o.RoughnessPct = od.RoughnessPct
	}
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}

	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	o.validated = true
	return nil
}

// AttachOptions converts to the attachment engine's options.
func (o *Options) AttachOptions() attach.Options {
	return attach.Options{
		Mode:          attach.Mode(o.AttachMode),
		SnapTolerance: o.SnapTolerance,
		MinSpacing:    o.MinSpacing,
		MaxDistance:   o.MaxDistance,
	}
}

// TrunkOptions converts to the topology builder's options.
func (o *Options) TrunkOptions() topology.Options {
	return topology.Options{
		Mode:           topology.TrunkMode(o.TrunkMode),
		Cost:           topology.CostMode(o.CostMode),
		PrimaryPenalty: o.PrimaryPenalty,
		Spurs: topology.SpurOptions{
			ServiceThreshold: o.SpurThreshold,
			MaxDepth:         o.SpurMaxDepth,
			MinBuildings:     o.SpurMinLoads,
			MaxTotalLength:   o.SpurMaxLength,
			ReductionPct:     o.SpurReduction,
			SearchBuffer:     o.SpurBuffer,
		},
	}
}

// RealizeOptions converts to the hydraulic realization options.
func (o *Options) RealizeOptions() hydraulic.RealizeOptions {
	return hydraulic.RealizeOptions{
		SupplyPressure: o.SupplyPressure,
		ReturnPressure: o.ReturnPressure,
		Roughness:      o.Roughness,
		CrossLength:    hydraulic.DefaultRealizeOptions().CrossLength,
		Sizer:          o.Sizer,
	}
}

// OptimizerOptions converts to the convergence optimizer's options.
// All fixes stay enabled; disabling individual fixes is a library-level
// concern, not a pipeline one.
func (o *Options) OptimizerOptions() hydraulic.OptimizerOptions {
	od := hydraulic.DefaultOptimizerOptions()
	od.MaxIterations = o.MaxIterations
	od.MinPipeLength = o.MinPipeLength
	od.RoughnessPct = o.RoughnessPct
	od.Seed = o.Seed
	return od
}

// GraphKeyOpts returns cache key options for the graph stage.
func (o *Options) GraphKeyOpts(crs street.CRS) cache.GraphKeyOpts {
	return cache.GraphKeyOpts{
		CRS:      crs.Name,
		Unit:     crs.Unit,
		Decimals: o.Decimals,
	}
}

// PlanKeyOpts returns cache key options for the plan stage.
func (o *Options) PlanKeyOpts() cache.PlanKeyOpts {
	return cache.PlanKeyOpts{
		AttachMode:     o.AttachMode,
		SnapTolerance:  o.SnapTolerance,
		MinSpacing:     o.MinSpacing,
		MaxDistance:    o.MaxDistance,
		WeightedPlant:  o.WeightedPlant,
		TrunkMode:      o.TrunkMode,
		CostMode:       o.CostMode,
		PrimaryPenalty: o.PrimaryPenalty,
		SpurThreshold:  o.SpurThreshold,
		SpurMaxDepth:   o.SpurMaxDepth,
		SpurMinLoads:   o.SpurMinLoads,
		SpurMaxLength:  o.SpurMaxLength,
		SpurReduction:  o.SpurReduction,
		SpurBuffer:     o.SpurBuffer,
	}
}

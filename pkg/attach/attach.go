package attach

import (
	"math"
	"slices"
	"strings"

	"github.com/heatgrid/heatgrid/pkg/errors"
	"github.com/heatgrid/heatgrid/pkg/geom"
	"github.com/heatgrid/heatgrid/pkg/street"
)

// Mode selects the attachment policy.
type Mode string

const (
	// ModeNearestNode attaches each building to the closer endpoint of its
	// nearest edge. The graph is not mutated.
	ModeNearestNode Mode = "nearest-node"

	// ModeSplitEdge splits the nearest edge at each building's projection
	// point, giving every building its own attach node.
	ModeSplitEdge Mode = "split-edge"

	// ModeClustered splits like ModeSplitEdge but merges buildings whose
	// along-edge positions fall within the minimum spacing into one
	// cluster sharing a single attach node.
	ModeClustered Mode = "clustered"
)

// ParseMode validates a mode string. Unknown values are a configuration
// error; the engine never silently defaults.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeNearestNode:
		return ModeNearestNode, nil
	case ModeSplitEdge:
		return ModeSplitEdge, nil
	case ModeClustered:
		return ModeClustered, nil
	}
	return "", errors.New(errors.ErrCodeInvalidMode,
		"unknown attach mode %q (valid: nearest-node, split-edge, clustered)", s)
}

// Building is one heat consumer. The loader creates it with ID, point and
// demand fields; Attach fills in the attachment fields.
type Building struct {
	ID           string     `json:"id"`
	Point        geom.Point `json:"point"`
	AnnualDemand float64    `json:"annual_demand_mwh"` // MWh/a
	DesignLoad   float64    `json:"design_load_kw"`    // kW, optional (0 = unknown)

	// AttachPoint is the exact (unrounded) projection onto the street
	// geometry. Nil until attached.
	AttachPoint *geom.Point `json:"attach_point,omitempty"`

	// AttachNode is the rounded, graph-resident node the service pipe
	// connects to. Nil when no edge was within reach.
	AttachNode *street.Coordinate `json:"attach_node,omitempty"`

	// ServiceLength is the distance from the building to its attach
	// point, plus the graph-internal offset from attach point to attach
	// node where that offset is non-negligible.
	ServiceLength float64 `json:"service_length_m"`
}

// Attached reports whether the building has an attach node.
func (b *Building) Attached() bool { return b.AttachNode != nil }

// Load returns the design load when known, falling back to a flat
// full-load-hours estimate from annual demand.
func (b *Building) Load() float64 {
	if b.DesignLoad > 0 {
		return b.DesignLoad
	}
	// 1800 full-load hours: MWh/a -> kW.
	return b.AnnualDemand * 1000 / 1800
}

// Options configures the attachment engine.
type Options struct {
	Mode          Mode
	SnapTolerance float64 // projections this close to an endpoint snap to it (m)
	MinSpacing    float64 // cluster width for ModeClustered (m)
	MaxDistance   float64 // buildings farther than this from any edge stay unattached; 0 = unlimited
}

// DefaultOptions are the engine defaults: per-building edge splitting,
// 1 m snap tolerance, 25 m cluster spacing, unlimited reach.
func DefaultOptions() Options {
	return Options{
		Mode:          ModeSplitEdge,
		SnapTolerance: 1.0,
		MinSpacing:    25.0,
		MaxDistance:   0,
	}
}

// Result is the outcome of an attachment run: owned building records, an
// owned (possibly restructured) graph, and the IDs of buildings that had
// no street edge within reach.
type Result struct {
	Buildings  []Building
	Graph      *street.Graph
	Unattached []string
}

// candidate records a building's globally nearest edge.
type candidate struct {
	building int // index into the buildings slice
	key      street.EdgeKey
	proj     geom.Projection
}

// Attach maps each building onto the street graph under the configured
// policy. Inputs are never mutated: the graph is cloned before any edge
// splitting and buildings are copied before attachment fields are set.
func Attach(buildings []Building, g *street.Graph, opts Options) (Result, error) {
	if _, err := ParseMode(string(opts.Mode)); err != nil {
		return Result{}, err
	}
	if opts.SnapTolerance < 0 || opts.MinSpacing < 0 || opts.MaxDistance < 0 {
		return Result{}, errors.New(errors.ErrCodeInvalidOption,
			"attachment distances must be non-negative (snap=%g spacing=%g reach=%g)",
			opts.SnapTolerance, opts.MinSpacing, opts.MaxDistance)
	}
	if err := validateBuildings(buildings); err != nil {
		return Result{}, err
	}

	out := Result{
		Buildings: slices.Clone(buildings),
		Graph:     g.Clone(),
	}

	// Step 1: global nearest-edge scan, O(buildings x edges). The edge
	// iteration is canonical, so equidistant edges resolve to the same
	// winner on every run.
	cands := make([]*candidate, len(out.Buildings))
	for i := range out.Buildings {
		cands[i] = nearestEdge(out.Graph, out.Buildings[i].Point, opts.MaxDistance)
		if cands[i] == nil {
			out.Unattached = append(out.Unattached, out.Buildings[i].ID)
			continue
		}
		cands[i].building = i
	}

	// Step 2: policy dispatch.
	switch opts.Mode {
	case ModeNearestNode:
		attachNearestNode(&out, cands, opts)
	case ModeSplitEdge:
		attachSplitting(&out, cands, opts, false)
	case ModeClustered:
		attachSplitting(&out, cands, opts, true)
	}
	return out, nil
}

func validateBuildings(buildings []Building) error {
	seen := make(map[string]bool, len(buildings))
	for i := range buildings {
		id := buildings[i].ID
		if id == "" {
			return errors.New(errors.ErrCodeMissingField, "building %d has no id", i)
		}
		if seen[id] {
			return errors.New(errors.ErrCodeDuplicateBuildID, "duplicate building id %q", id).
				WithDetail("id", id)
		}
		seen[id] = true
	}
	return nil
}

// nearestEdge finds the globally nearest edge for a point, or nil when
// none is within reach. Ties keep the canonically first edge.
func nearestEdge(g *street.Graph, p geom.Point, maxDist float64) *candidate {
	var best *candidate
	bestDist := math.Inf(1)
	for _, e := range g.Edges() {
		proj, err := e.Geometry.Nearest(p)
		if err != nil {
			continue
		}
		if proj.Dist < bestDist {
			bestDist = proj.Dist
			best = &candidate{key: e.Key(), proj: proj}
		}
	}
	if best == nil || (maxDist > 0 && bestDist > maxDist) {
		return nil
	}
	return best
}

// attachNearestNode implements ModeNearestNode. The attach node is the
// edge endpoint geometrically closer to the projection (ties keep the
// first endpoint in edge-definition order); projections within the snap
// tolerance of an endpoint take that endpoint regardless.
func attachNearestNode(out *Result, cands []*candidate, opts Options) {
	for _, c := range cands {
		if c == nil {
			continue
		}
		e, ok := out.Graph.EdgeByKey(c.key)
		if !ok {
			continue
		}
		geomLen := e.Geometry.Length()
		aPt, bPt := e.Geometry.First(), e.Geometry.Last()

		var node street.Coordinate
		var alongOffset float64
		switch {
		case c.proj.Along <= opts.SnapTolerance:
			node = street.NewCoordinate(aPt, out.Graph.Decimals())
			alongOffset = c.proj.Along
		case geomLen-c.proj.Along <= opts.SnapTolerance:
			node = street.NewCoordinate(bPt, out.Graph.Decimals())
			alongOffset = geomLen - c.proj.Along
		case c.proj.Point.Dist(bPt) < c.proj.Point.Dist(aPt):
			node = street.NewCoordinate(bPt, out.Graph.Decimals())
			alongOffset = geomLen - c.proj.Along
		default:
			node = street.NewCoordinate(aPt, out.Graph.Decimals())
			alongOffset = c.proj.Along
		}

		b := &out.Buildings[c.building]
		p := c.proj.Point
		b.AttachPoint = &p
		b.AttachNode = &node
		b.ServiceLength = b.Point.Dist(p) + alongOffset
	}
}

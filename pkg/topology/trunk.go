package topology

import (
	"slices"
	"strings"

	"github.com/heatgrid/heatgrid/pkg/attach"
	"github.com/heatgrid/heatgrid/pkg/errors"
	"github.com/heatgrid/heatgrid/pkg/street"
)

// TrunkMode selects the trunk construction strategy.
type TrunkMode string

const (
	// TrunkFullStreet keeps every edge of the selected component.
	TrunkFullStreet TrunkMode = "full-street"

	// TrunkSelectedStreets unions the shortest paths from the plant to
	// every building's attach node.
	TrunkSelectedStreets TrunkMode = "selected-streets"

	// TrunkStreetPlusSpurs runs TrunkSelectedStreets and then expands the
	// result with short spurs into side streets.
	TrunkStreetPlusSpurs TrunkMode = "street-plus-spurs"
)

// ParseTrunkMode validates a trunk mode string.
func ParseTrunkMode(s string) (TrunkMode, error) {
	switch TrunkMode(strings.ToLower(strings.TrimSpace(s))) {
	case TrunkFullStreet:
		return TrunkFullStreet, nil
	case TrunkSelectedStreets:
		return TrunkSelectedStreets, nil
	case TrunkStreetPlusSpurs:
		return TrunkStreetPlusSpurs, nil
	}
	return "", errors.New(errors.ErrCodeInvalidMode,
		"unknown trunk mode %q (valid: full-street, selected-streets, street-plus-spurs)", s)
}

// CostMode selects the edge-cost function used for trunk routing.
type CostMode string

const (
	// CostLengthOnly routes by raw edge length.
	CostLengthOnly CostMode = "length-only"

	// CostAvoidPrimary penalizes classified primary roads, biasing the
	// trunk toward smaller streets.
	CostAvoidPrimary CostMode = "avoid-primary"
)

// ParseCostMode validates an edge-cost mode string.
func ParseCostMode(s string) (CostMode, error) {
	switch CostMode(strings.ToLower(strings.TrimSpace(s))) {
	case CostLengthOnly:
		return CostLengthOnly, nil
	case CostAvoidPrimary:
		return CostAvoidPrimary, nil
	}
	return "", errors.New(errors.ErrCodeInvalidMode,
		"unknown edge cost mode %q (valid: length-only, avoid-primary)", s)
}

// DefaultPrimaryPenalty is the length multiplier applied to primary
// roads under CostAvoidPrimary.
const DefaultPrimaryPenalty = 2.0

// EdgeSet is a normalized set of trunk edges. Keys carry sorted endpoint
// pairs, so direction-dependent duplicates cannot occur.
type EdgeSet map[street.EdgeKey]bool

// Add inserts a key and reports whether it was new.
func (s EdgeSet) Add(k street.EdgeKey) bool {
	if s[k] {
		return false
	}
	s[k] = true
	return true
}

// Has reports membership.
func (s EdgeSet) Has(k street.EdgeKey) bool { return s[k] }

// Keys returns the members in canonical order.
func (s EdgeSet) Keys() []street.EdgeKey {
	keys := make([]street.EdgeKey, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, street.EdgeKey.Compare)
	return keys
}

// Clone returns an independent copy.
func (s EdgeSet) Clone() EdgeSet {
	out := make(EdgeSet, len(s))
	for k := range s {
		out[k] = true
	}
	return out
}

// Options configures trunk construction.
type Options struct {
	Mode           TrunkMode
	Cost           CostMode
	PrimaryPenalty float64 // length multiplier under CostAvoidPrimary
	Spurs          SpurOptions
}

// DefaultOptions are the trunk defaults: shortest-path union routing by
// raw length, spur expansion parameters per DefaultSpurOptions.
func DefaultOptions() Options {
	return Options{
		Mode:           TrunkSelectedStreets,
		Cost:           CostLengthOnly,
		PrimaryPenalty: DefaultPrimaryPenalty,
		Spurs:          DefaultSpurOptions(),
	}
}

func (o Options) costFunc() street.CostFunc {
	if o.Cost == CostAvoidPrimary {
		return street.AvoidClassesCost(o.PrimaryPenalty, nil)
	}
	return street.LengthCost
}

// Plan is the frozen network plan: the plant node, the trunk edge set
// with its induced subgraph, the buildings it serves, and the spur
// expansion report when spur expansion ran.
type Plan struct {
	Plant     street.Coordinate
	Edges     EdgeSet
	Graph     *street.Graph
	Buildings []attach.Building
	Spurs     *SpurReport
}

// TotalLength returns the summed length of all trunk edges in meters.
func (p *Plan) TotalLength() float64 { return p.Graph.TotalLength() }

// BuildTrunk computes the trunk edge set connecting the plant to every
// building's attach node under the configured mode. The input graph must
// be the selected component with all buildings attached inside it; an
// unreachable attach node at this stage is a topological invariant
// violation, not a data-quality issue, and fails hard.
func BuildTrunk(g *street.Graph, buildings []attach.Building, plant street.Coordinate, opts Options) (*Plan, error) {
	if _, err := ParseTrunkMode(string(opts.Mode)); err != nil {
		return nil, err
	}
	if _, err := ParseCostMode(string(opts.Cost)); err != nil {
		return nil, err
	}
	if !g.HasNode(plant) {
		return nil, errors.New(errors.ErrCodeTopologyNoPlant,
			"plant node %v is not a graph node", plant)
	}

	plan := &Plan{
		Plant:     plant,
		Edges:     make(EdgeSet),
		Buildings: slices.Clone(buildings),
	}

	switch opts.Mode {
	case TrunkFullStreet:
		for _, e := range g.Edges() {
			plan.Edges.Add(e.Key())
		}
	case TrunkSelectedStreets, TrunkStreetPlusSpurs:
		if err := selectStreets(g, plan, opts.costFunc()); err != nil {
			return nil, err
		}
	}
	plan.Graph = g.Subgraph(plan.Edges.Keys())
	plan.Graph.AddNode(plant) // an empty trunk still carries its root

	if opts.Mode == TrunkStreetPlusSpurs {
		if err := expandSpurs(g, plan, opts); err != nil {
			return nil, err
		}
	}

	if err := Validate(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// selectStreets unions the plant-to-attach-node shortest paths into the
// plan's edge set. One Dijkstra run from the plant covers all targets.
func selectStreets(g *street.Graph, plan *Plan, cost street.CostFunc) error {
	tree, err := street.ShortestPaths(g, plan.Plant, cost)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "trunk routing from plant %v", plan.Plant)
	}
	for i := range plan.Buildings {
		b := &plan.Buildings[i]
		if !b.Attached() {
			continue
		}
		path, err := tree.PathTo(*b.AttachNode)
		if err != nil {
			return errors.New(errors.ErrCodeTopologyUnreachable,
				"building %q attach node %v is unreachable from the plant inside the selected component",
				b.ID, *b.AttachNode).
				WithDetail("building", b.ID).
				WithDetail("attach_node", b.AttachNode.String())
		}
		for j := 1; j < len(path); j++ {
			plan.Edges.Add(street.NewEdgeKey(path[j-1], path[j]))
		}
	}
	return nil
}

// Validate checks the plan's reachability invariant: the plant and every
// served building's attach node must lie in one connected subgraph of
// the trunk. Violations are fatal; they indicate a builder defect.
func Validate(plan *Plan) error {
	if !plan.Graph.HasNode(plan.Plant) {
		return errors.New(errors.ErrCodeTopologyDisconnected,
			"trunk subgraph lost the plant node %v", plan.Plant)
	}
	reach := street.ReachableFrom(plan.Graph, plan.Plant)
	var missing []string
	for i := range plan.Buildings {
		b := &plan.Buildings[i]
		if !b.Attached() || !reach[*b.AttachNode] {
			missing = append(missing, b.ID)
		}
	}
	if len(missing) > 0 {
		return errors.New(errors.ErrCodeTopologyUnreachable,
			"%d building(s) cannot be reached from the plant over trunk edges", len(missing)).
			WithDetail("buildings", missing)
	}
	return nil
}

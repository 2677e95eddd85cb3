package topology

import (
	"math"

	"github.com/heatgrid/heatgrid/pkg/errors"
	"github.com/heatgrid/heatgrid/pkg/geom"
	"github.com/heatgrid/heatgrid/pkg/street"
)

// SpurOptions bounds the spur expansion search.
type SpurOptions struct {
	ServiceThreshold float64 // buildings with longer service connections trigger the search (m)
	MaxDepth         int     // maximum hop count of a candidate edge from the base trunk
	MinBuildings     int     // minimum buildings a candidate must serve
	MaxTotalLength   float64 // cumulative length budget for promoted edges (m)
	ReductionPct     float64 // minimum mean service-length reduction (percent)
	SearchBuffer     float64 // spatial buffer around the base trunk (m)
}

// DefaultSpurOptions are the expansion defaults: 30 m trigger, depth 3,
// two buildings minimum, 500 m budget, 20 % reduction, 100 m buffer.
func DefaultSpurOptions() SpurOptions {
	return SpurOptions{
		ServiceThreshold: 30.0,
		MaxDepth:         3,
		MinBuildings:     2,
		MaxTotalLength:   500.0,
		ReductionPct:     20.0,
		SearchBuffer:     100.0,
	}
}

// SpurCandidate is one evaluated off-trunk edge. Candidates are
// ephemeral: promoted into the trunk or recorded with a rejection
// reason, never persisted independently.
type SpurCandidate struct {
	Edge         street.EdgeKey `json:"edge"`
	Buildings    []string       `json:"buildings"`
	Depth        int            `json:"depth"`
	Length       float64        `json:"length_m"`
	ReductionPct float64        `json:"reduction_pct"`
	WithinBuffer bool           `json:"within_buffer"`
	Promoted     bool           `json:"promoted"`
	Reason       string         `json:"reason,omitempty"` // empty when promoted
}

// SpurReport summarizes one expansion run.
type SpurReport struct {
	Candidates      []SpurCandidate `json:"candidates"`
	PromotedCount   int             `json:"promoted_count"`
	PromotedLength  float64         `json:"promoted_length_m"`
	ConnectorLength float64         `json:"connector_length_m"`
	Resnapped       int             `json:"resnapped_buildings"`
}

// expandSpurs promotes off-trunk edges into the plan when doing so
// measurably shortens service connections for enough buildings. The
// search runs over a bounding-box-filtered copy of the component graph,
// never the unfiltered dataset, keeping it cluster-local and
// deterministic. All affected buildings are re-snapped afterwards.
func expandSpurs(full *street.Graph, plan *Plan, opts Options) error {
	so := opts.Spurs
	report := &SpurReport{}
	plan.Spurs = report

	trunkNodes := plan.Graph.Nodes()
	if len(trunkNodes) == 0 {
		return nil
	}

	// Step 1: service length relative to the base trunk, via one
	// multi-source Dijkstra from all trunk nodes over the full graph.
	tree, err := street.MultiSourcePaths(full, trunkNodes, opts.costFunc())
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "spur expansion distance field")
	}
	service := make([]float64, len(plan.Buildings))
	for i := range plan.Buildings {
		b := &plan.Buildings[i]
		if !b.Attached() {
			service[i] = math.Inf(1)
			continue
		}
		d, ok := tree.Dist[*b.AttachNode]
		if !ok {
			service[i] = math.Inf(1)
			continue
		}
		service[i] = b.Point.Dist(*b.AttachPoint) + d
	}

	// Step 3 preparation: the candidate pool is the component graph
	// clipped to a buffered bounding box around the trunk geometry.
	pool := candidatePool(full, plan, so.SearchBuffer)
	hops := street.HopDistances(full, trunkNodes)

	// Steps 2-4: group far buildings by their nearest non-trunk edge,
	// keeping first-found group order.
	type group struct {
		buildings []int
		projDist  []float64
	}
	groups := map[street.EdgeKey]*group{}
	var order []street.EdgeKey
	for i := range plan.Buildings {
		if service[i] <= so.ServiceThreshold {
			continue
		}
		key, proj, ok := nearestOffTrunkEdge(pool, plan.Edges, plan.Buildings[i].Point)
		if !ok {
			continue
		}
		g, seen := groups[key]
		if !seen {
			g = &group{}
			groups[key] = g
			order = append(order, key)
		}
		g.buildings = append(g.buildings, i)
		g.projDist = append(g.projDist, proj.Dist)
	}

	// Steps 5-6: evaluate every candidate and promote the passing ones
	// in first-found order until the length budget runs out.
	var promoted []street.EdgeKey
	for _, key := range order {
		g := groups[key]
		e, ok := full.EdgeByKey(key)
		if !ok {
			continue
		}
		cand := SpurCandidate{
			Edge:   key,
			Depth:  edgeDepth(hops, e),
			Length: e.Length,
		}
		var reduction float64
		for j, bi := range g.buildings {
			cand.Buildings = append(cand.Buildings, plan.Buildings[bi].ID)
			if old := service[bi]; old > 0 && !math.IsInf(old, 1) {
				reduction += (old - g.projDist[j]) / old * 100
			}
		}
		cand.ReductionPct = reduction / float64(len(g.buildings))
		cand.WithinBuffer = withinBuffer(e, plan.Graph, so.SearchBuffer)

		switch {
		case cand.Depth > so.MaxDepth:
			cand.Reason = "exceeds max depth"
		case len(g.buildings) < so.MinBuildings:
			cand.Reason = "serves too few buildings"
		case report.PromotedLength+e.Length > so.MaxTotalLength:
			cand.Reason = "length budget exhausted"
		case cand.ReductionPct < so.ReductionPct:
			cand.Reason = "insufficient service reduction"
		case !cand.WithinBuffer:
			cand.Reason = "outside search buffer"
		default:
			cand.Promoted = true
			report.PromotedCount++
			report.PromotedLength += e.Length
			promoted = append(promoted, key)
		}
		report.Candidates = append(report.Candidates, cand)
	}

	// Step 7: merge, connecting detached spurs to the trunk over
	// shortest paths back to the nearest base-trunk node.
	for _, key := range promoted {
		plan.Edges.Add(key)
		e, _ := full.EdgeByKey(key)
		for _, end := range []street.Coordinate{e.A, e.B} {
			if plan.Graph.HasNode(end) {
				continue
			}
			path, err := tree.PathToSeed(end)
			if err != nil {
				continue
			}
			for j := 1; j < len(path); j++ {
				k := street.NewEdgeKey(path[j-1], path[j])
				if plan.Edges.Add(k) {
					if ce, ok := full.EdgeByKey(k); ok {
						report.ConnectorLength += ce.Length
					}
				}
			}
		}
		plan.Graph = full.Subgraph(plan.Edges.Keys())
	}
	if len(promoted) == 0 {
		return nil
	}

	// Step 8: re-snap every building to the expanded trunk. Step 9, the
	// connectivity validation, runs in BuildTrunk.
	plan.Graph = full.Subgraph(plan.Edges.Keys())
	plan.Graph.AddNode(plan.Plant)
	report.Resnapped = resnap(plan)
	return nil
}

// candidatePool clips the component graph to a bounding box around the
// trunk geometry, buffered by the search radius.
func candidatePool(full *street.Graph, plan *Plan, buffer float64) *street.Graph {
	var pts []geom.Point
	for _, e := range plan.Graph.Edges() {
		pts = append(pts, e.Geometry...)
	}
	if len(pts) == 0 {
		pts = append(pts, plan.Plant.Point())
	}
	box := geom.NewBBox(pts, buffer)

	var keys []street.EdgeKey
	for _, e := range full.Edges() {
		if box.Intersects(e.BBox(0)) {
			keys = append(keys, e.Key())
		}
	}
	return full.Subgraph(keys)
}

// nearestOffTrunkEdge scans the pool for the nearest edge not already in
// the trunk. The scan is canonical, so ties resolve identically on every
// run.
func nearestOffTrunkEdge(pool *street.Graph, trunk EdgeSet, p geom.Point) (street.EdgeKey, geom.Projection, bool) {
	var bestKey street.EdgeKey
	var best geom.Projection
	bestDist := math.Inf(1)
	found := false
	for _, e := range pool.Edges() {
		if trunk.Has(e.Key()) {
			continue
		}
		proj, err := e.Geometry.Nearest(p)
		if err != nil {
			continue
		}
		if proj.Dist < bestDist {
			bestKey, best, bestDist, found = e.Key(), proj, proj.Dist, true
		}
	}
	return bestKey, best, found
}

// edgeDepth is the hop count needed to reach and traverse the edge from
// the trunk: an edge sharing an endpoint with the trunk has depth 1.
func edgeDepth(hops map[street.Coordinate]int, e *street.Edge) int {
	ha, okA := hops[e.A]
	hb, okB := hops[e.B]
	switch {
	case okA && okB:
		return min(ha, hb) + 1
	case okA:
		return ha + 1
	case okB:
		return hb + 1
	}
	return math.MaxInt
}

// withinBuffer reports whether any vertex of the candidate's geometry
// lies within the buffer distance of the trunk geometry.
func withinBuffer(e *street.Edge, trunk *street.Graph, buffer float64) bool {
	for _, te := range trunk.Edges() {
		for _, p := range e.Geometry {
			if proj, err := te.Geometry.Nearest(p); err == nil && proj.Dist <= buffer {
				return true
			}
		}
	}
	return false
}

// resnap reattaches every building to its nearest trunk edge projection,
// overwriting attach point, attach node and service length. Returns how
// many buildings moved to a different node.
func resnap(plan *Plan) int {
	moved := 0
	for i := range plan.Buildings {
		b := &plan.Buildings[i]
		var bestEdge *street.Edge
		var best geom.Projection
		bestDist := math.Inf(1)
		for _, e := range plan.Graph.Edges() {
			proj, err := e.Geometry.Nearest(b.Point)
			if err != nil {
				continue
			}
			if proj.Dist < bestDist {
				bestEdge, best, bestDist = e, proj, proj.Dist
			}
		}
		if bestEdge == nil {
			continue
		}

		node := bestEdge.A
		if best.Point.Dist(bestEdge.B.Point()) < best.Point.Dist(bestEdge.A.Point()) {
			node = bestEdge.B
		}
		if b.AttachNode == nil || *b.AttachNode != node {
			moved++
		}
		p := best.Point
		b.AttachPoint = &p
		b.AttachNode = &node
		b.ServiceLength = b.Point.Dist(p) + p.Dist(node.Point())
	}
	return moved
}

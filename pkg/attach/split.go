package attach

import (
	"slices"

	"github.com/heatgrid/heatgrid/pkg/geom"
	"github.com/heatgrid/heatgrid/pkg/street"
)

// cut is one split position on an edge: the arclength position, the node
// it materializes, and the buildings attaching there.
type cut struct {
	along     float64
	node      street.Coordinate
	buildings []int // indices into Result.Buildings
}

// attachSplitting implements ModeSplitEdge and (with clustered=true)
// ModeClustered. Edges are processed in canonical key order; per edge,
// projections are ordered by along-position with building ID as the
// tie-break, so the resulting node chain is deterministic.
func attachSplitting(out *Result, cands []*candidate, opts Options, clustered bool) {
	byEdge := make(map[street.EdgeKey][]*candidate)
	var keys []street.EdgeKey
	for _, c := range cands {
		if c == nil {
			continue
		}
		if _, ok := byEdge[c.key]; !ok {
			keys = append(keys, c.key)
		}
		byEdge[c.key] = append(byEdge[c.key], c)
	}
	slices.SortFunc(keys, street.EdgeKey.Compare)

	for _, key := range keys {
		group := byEdge[key]
		slices.SortFunc(group, func(a, b *candidate) int {
			if a.proj.Along != b.proj.Along {
				if a.proj.Along < b.proj.Along {
					return -1
				}
				return 1
			}
			return compareIDs(out.Buildings[a.building].ID, out.Buildings[b.building].ID)
		})
		splitEdge(out, key, group, opts, clustered)
	}
}

func compareIDs(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// splitEdge materializes attach nodes for one edge's buildings and
// replaces the edge with a chain of sub-segments.
func splitEdge(out *Result, key street.EdgeKey, group []*candidate, opts Options, clustered bool) {
	e, ok := out.Graph.EdgeByKey(key)
	if !ok {
		return
	}
	decimals := out.Graph.Decimals()
	geomLen := e.Geometry.Length()
	nodeA := street.NewCoordinate(e.Geometry.First(), decimals)
	nodeB := street.NewCoordinate(e.Geometry.Last(), decimals)

	var cuts []cut
	if clustered {
		cuts = clusterCuts(out, e, group, opts)
	} else {
		cuts = perBuildingCuts(out, e, group, opts)
	}

	// Snapped-to-endpoint cuts and rounding collisions never made it into
	// cuts; attach those buildings and drop empty cut entries.
	interior := cuts[:0]
	for _, c := range cuts {
		if c.node == nodeA || c.node == nodeB {
			for _, bi := range c.buildings {
				setAttachment(out, bi, group, c.node)
			}
			continue
		}
		interior = append(interior, c)
	}
	cuts = interior

	for _, c := range cuts {
		for _, bi := range c.buildings {
			setAttachment(out, bi, group, c.node)
		}
	}
	if len(cuts) == 0 {
		return
	}

	// Rebuild the edge as a chain. Sub-segment geometry is cut from the
	// original polyline, and the stored length is redistributed
	// proportionally across the chain.
	out.Graph.RemoveEdge(e.A, e.B)
	chainAlong := []float64{0}
	chainNodes := []street.Coordinate{nodeA}
	for _, c := range cuts {
		chainAlong = append(chainAlong, c.along)
		chainNodes = append(chainNodes, c.node)
	}
	chainAlong = append(chainAlong, geomLen)
	chainNodes = append(chainNodes, nodeB)

	for i := 1; i < len(chainNodes); i++ {
		part, err := e.Geometry.Cut(chainAlong[i-1], chainAlong[i])
		if err != nil {
			continue
		}
		length := e.Length * (chainAlong[i] - chainAlong[i-1]) / geomLen
		out.Graph.AddEdge(street.Edge{
			A:         chainNodes[i-1],
			B:         chainNodes[i],
			Length:    length,
			Geometry:  part,
			Name:      e.Name,
			RoadClass: e.RoadClass,
		})
	}
}

// perBuildingCuts computes one cut per building, snapping to endpoints
// within the tolerance and merging cuts whose rounded coordinates
// collide.
func perBuildingCuts(out *Result, e *street.Edge, group []*candidate, opts Options) []cut {
	decimals := out.Graph.Decimals()
	geomLen := e.Geometry.Length()
	var cuts []cut
	for _, c := range group {
		along := c.proj.Along
		switch {
		case along <= opts.SnapTolerance:
			along = 0
		case geomLen-along <= opts.SnapTolerance:
			along = geomLen
		}
		pt, err := e.Geometry.At(along)
		if err != nil {
			continue
		}
		node := street.NewCoordinate(pt, decimals)
		if n := len(cuts); n > 0 && cuts[n-1].node == node {
			cuts[n-1].buildings = append(cuts[n-1].buildings, c.building)
			continue
		}
		cuts = append(cuts, cut{along: along, node: node, buildings: []int{c.building}})
	}
	return cuts
}

// clusterCuts merges buildings whose along-edge positions chain within
// MinSpacing of each other into one cluster. The shared attach node is
// the centroid of the cluster's projection points, re-projected onto the
// edge for the split-point computation.
func clusterCuts(out *Result, e *street.Edge, group []*candidate, opts Options) []cut {
	decimals := out.Graph.Decimals()
	geomLen := e.Geometry.Length()

	var clusters [][]*candidate
	for _, c := range group {
		if n := len(clusters); n > 0 {
			last := clusters[n-1]
			if c.proj.Along-last[len(last)-1].proj.Along <= opts.MinSpacing {
				clusters[n-1] = append(clusters[n-1], c)
				continue
			}
		}
		clusters = append(clusters, []*candidate{c})
	}

	var cuts []cut
	for _, cl := range clusters {
		pts := make([]geom.Point, len(cl))
		members := make([]int, len(cl))
		for i, c := range cl {
			pts[i] = c.proj.Point
			members[i] = c.building
		}
		center := geom.Centroid(pts, nil)
		proj, err := e.Geometry.Nearest(center)
		if err != nil {
			continue
		}
		along := proj.Along
		switch {
		case along <= opts.SnapTolerance:
			along = 0
		case geomLen-along <= opts.SnapTolerance:
			along = geomLen
		}
		pt, err := e.Geometry.At(along)
		if err != nil {
			continue
		}
		node := street.NewCoordinate(pt, decimals)
		if n := len(cuts); n > 0 && cuts[n-1].node == node {
			cuts[n-1].buildings = append(cuts[n-1].buildings, members...)
			continue
		}
		cuts = append(cuts, cut{along: along, node: node, buildings: members})
	}
	return cuts
}

// setAttachment fills a building's attachment fields given its final
// node. The attach point stays the building's own exact projection; the
// rounding/snapping offset from projection to node is added to the
// service length.
func setAttachment(out *Result, buildingIdx int, group []*candidate, node street.Coordinate) {
	var proj *geom.Projection
	for _, c := range group {
		if c.building == buildingIdx {
			proj = &c.proj
			break
		}
	}
	if proj == nil {
		return
	}
	b := &out.Buildings[buildingIdx]
	p := proj.Point
	b.AttachPoint = &p
	b.AttachNode = &node
	b.ServiceLength = b.Point.Dist(p) + p.Dist(node.Point())
}

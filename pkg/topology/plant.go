package topology

import (
	"github.com/heatgrid/heatgrid/pkg/attach"
	"github.com/heatgrid/heatgrid/pkg/errors"
	"github.com/heatgrid/heatgrid/pkg/geom"
	"github.com/heatgrid/heatgrid/pkg/street"
)

// SelectPlant chooses the network root: the graph node nearest the
// centroid of the retained buildings, demand-weighted when weighted is
// true. This is a deterministic siting heuristic, not an optimization;
// reproducibility matters more than optimality here.
func SelectPlant(g *street.Graph, buildings []attach.Building, weighted bool) (street.Coordinate, error) {
	if len(buildings) == 0 {
		return street.Coordinate{}, errors.New(errors.ErrCodeNoBuildings,
			"plant selection needs at least one retained building")
	}

	pts := make([]geom.Point, len(buildings))
	var weights []float64
	if weighted {
		weights = make([]float64, len(buildings))
	}
	for i := range buildings {
		pts[i] = buildings[i].Point
		if weighted {
			weights[i] = buildings[i].Load()
		}
	}
	center := geom.Centroid(pts, weights)

	plant, ok := street.NearestNode(g, center, nil)
	if !ok {
		return street.Coordinate{}, errors.New(errors.ErrCodeTopologyNoPlant,
			"selected component has no nodes to host the plant").
			WithDetail("centroid_x", center.X).
			WithDetail("centroid_y", center.Y)
	}
	return plant, nil
}

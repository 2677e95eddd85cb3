package street

import (
	"strings"

	"github.com/heatgrid/heatgrid/pkg/errors"
	"github.com/heatgrid/heatgrid/pkg/geom"
)

// CRS identifies the coordinate reference frame of input geometry.
// Only projected (linear-unit) frames are accepted by the builder.
type CRS struct {
	Name string `json:"name" toml:"name"` // e.g. "EPSG:25832"
	Unit string `json:"unit" toml:"unit"` // e.g. "m", "metre", "degree"
}

// Projected reports whether the frame uses linear units. Degree-based
// frames (WGS84 and friends) are not projected.
func (c CRS) Projected() bool {
	switch strings.ToLower(strings.TrimSpace(c.Unit)) {
	case "m", "meter", "meters", "metre", "metres":
		return true
	}
	return false
}

// Way is one raw street geometry as delivered by the loader: one or more
// polyline parts sharing name and classification.
type Way struct {
	Parts     []geom.Polyline
	Name      string
	RoadClass string
}

// Build converts a collection of ways into a routable street graph.
//
// Multi-part ways are decomposed into simple polylines. Degenerate parts
// (fewer than two vertices) are discarded. Each remaining part becomes one
// edge whose nodes are the rounded endpoints, whose length is the part's
// arclength, and whose geometry is the part itself. Duplicate edges
// between the same rounded node pair keep the first representative.
//
// A geographic (degree-unit) frame is a configuration error: all
// downstream length math assumes meters.
//
// Build is a pure function of its input; the returned graph owns copies
// of all geometry.
func Build(ways []Way, crs CRS, decimals int) (*Graph, error) {
	if !crs.Projected() {
		return nil, errors.New(errors.ErrCodeInvalidCRS,
			"coordinate frame %q uses unit %q; a projected (meters-based) frame is required", crs.Name, crs.Unit).
			WithDetail("crs", crs.Name).
			WithDetail("unit", crs.Unit)
	}
	if decimals <= 0 {
		decimals = DefaultDecimals
	}

	g := NewGraph(decimals)
	for _, w := range ways {
		for _, part := range w.Parts {
			if len(part) < 2 {
				continue
			}
			a := NewCoordinate(part.First(), decimals)
			b := NewCoordinate(part.Last(), decimals)
			g.AddEdge(Edge{
				A:         a,
				B:         b,
				Length:    part.Length(),
				Geometry:  part.Clone(),
				Name:      w.Name,
				RoadClass: w.RoadClass,
			})
		}
	}
	if g.EdgeCount() == 0 {
		return nil, errors.New(errors.ErrCodeEmptyStreets,
			"street dataset produced no usable edges (%d ways in)", len(ways))
	}
	return g, nil
}

// sparseEdgeFactor is the heuristic density guard: a street graph with
// fewer than buildings/sparseEdgeFactor edges is almost certainly too
// sparse to route buildings individually. The threshold is a heuristic,
// not a correctness boundary.
const sparseEdgeFactor = 4

// CheckDensity flags street datasets that are implausibly sparse for the
// number of buildings to be attached. The returned error is a data-quality
// issue, distinguishing bad input from a planner defect.
func CheckDensity(g *Graph, buildingCount int) error {
	if buildingCount < sparseEdgeFactor {
		return nil
	}
	minEdges := buildingCount / sparseEdgeFactor
	if g.EdgeCount() < minEdges {
		return errors.New(errors.ErrCodeSparseStreets,
			"street graph has %d edges for %d buildings (minimum heuristic: %d)",
			g.EdgeCount(), buildingCount, minEdges).
			WithDetail("edges", g.EdgeCount()).
			WithDetail("buildings", buildingCount).
			WithDetail("min_edges", minEdges)
	}
	return nil
}

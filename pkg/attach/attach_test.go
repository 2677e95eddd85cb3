package attach

import (
	"math"
	"testing"

	"github.com/heatgrid/heatgrid/pkg/errors"
	"github.com/heatgrid/heatgrid/pkg/geom"
	"github.com/heatgrid/heatgrid/pkg/street"
)

var metric = street.CRS{Name: "EPSG:25832", Unit: "m"}

func line(pts ...geom.Point) geom.Polyline { return geom.Polyline(pts) }

// gridGraph returns a 2x2 grid street graph: 4 nodes, 4 edges, each 100 m.
func gridGraph(t *testing.T) *street.Graph {
	t.Helper()
	ways := []street.Way{
		{Parts: []geom.Polyline{line(geom.Point{X: 0, Y: 0}, geom.Point{X: 100, Y: 0})}},
		{Parts: []geom.Polyline{line(geom.Point{X: 100, Y: 0}, geom.Point{X: 100, Y: 100})}},
		{Parts: []geom.Polyline{line(geom.Point{X: 100, Y: 100}, geom.Point{X: 0, Y: 100})}},
		{Parts: []geom.Polyline{line(geom.Point{X: 0, Y: 100}, geom.Point{X: 0, Y: 0})}},
	}
	g, err := street.Build(ways, metric, 3)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return g
}

func opts(mode Mode) Options {
	o := DefaultOptions()
	o.Mode = mode
	return o
}

func TestAttach_UnknownModeFailsFast(t *testing.T) {
	_, err := Attach(nil, gridGraph(t), Options{Mode: "voronoi"})
	if !errors.Is(err, errors.ErrCodeInvalidMode) {
		t.Fatalf("Attach() error = %v, want INVALID_MODE", err)
	}
}

func TestAttach_DuplicateIDRejected(t *testing.T) {
	buildings := []Building{
		{ID: "b1", Point: geom.Point{X: 10, Y: 10}},
		{ID: "b1", Point: geom.Point{X: 20, Y: 10}},
	}
	_, err := Attach(buildings, gridGraph(t), opts(ModeNearestNode))
	if !errors.Is(err, errors.ErrCodeDuplicateBuildID) {
		t.Fatalf("Attach() error = %v, want DATA_DUPLICATE_BUILDING_ID", err)
	}
}

func TestAttach_NearestNode(t *testing.T) {
	// 30 m above the bottom edge, projecting at x=30: endpoint (0,0) is
	// closer to the projection than (100,0).
	buildings := []Building{{ID: "b1", Point: geom.Point{X: 30, Y: 30}}}
	res, err := Attach(buildings, gridGraph(t), opts(ModeNearestNode))
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	b := res.Buildings[0]
	if !b.Attached() {
		t.Fatal("building not attached")
	}
	if (*b.AttachNode != street.Coordinate{X: 0, Y: 0}) {
		t.Errorf("attach node = %v, want (0,0)", *b.AttachNode)
	}
	if b.AttachPoint.Dist(geom.Point{X: 30, Y: 0}) > 1e-9 {
		t.Errorf("attach point = %v, want (30,0)", *b.AttachPoint)
	}
	// Service length includes the along-edge offset from projection to node.
	if math.Abs(b.ServiceLength-(30+30)) > 1e-9 {
		t.Errorf("service length = %v, want 60", b.ServiceLength)
	}
	// NearestNode never mutates the graph.
	if res.Graph.EdgeCount() != 4 {
		t.Errorf("EdgeCount() = %d, want 4", res.Graph.EdgeCount())
	}
}

func TestAttach_NearestNode_SnapOverridesCloserEndpoint(t *testing.T) {
	// Projection at x=99.5 is within the snap tolerance of (100,0).
	o := opts(ModeNearestNode)
	o.SnapTolerance = 1.0
	buildings := []Building{{ID: "b1", Point: geom.Point{X: 99.5, Y: 20}}}
	res, err := Attach(buildings, gridGraph(t), o)
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if (*res.Buildings[0].AttachNode != street.Coordinate{X: 100, Y: 0}) {
		t.Errorf("attach node = %v, want (100,0)", *res.Buildings[0].AttachNode)
	}
}

// Minimal-grid scenario: one building at the midpoint of one edge under
// edge splitting must produce exactly 2 sub-segments summing to 100 m.
func TestAttach_SplitEdge_MinimalGrid(t *testing.T) {
	buildings := []Building{{ID: "b1", Point: geom.Point{X: 50, Y: 20}}}
	res, err := Attach(buildings, gridGraph(t), opts(ModeSplitEdge))
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	b := res.Buildings[0]
	if (*b.AttachNode != street.Coordinate{X: 50, Y: 0}) {
		t.Errorf("attach node = %v, want (50,0)", *b.AttachNode)
	}
	if res.Graph.EdgeCount() != 5 {
		t.Fatalf("EdgeCount() = %d, want 5 (4 grid edges with one split in two)", res.Graph.EdgeCount())
	}
	e1, ok1 := res.Graph.Edge(street.Coordinate{X: 0, Y: 0}, street.Coordinate{X: 50, Y: 0})
	e2, ok2 := res.Graph.Edge(street.Coordinate{X: 50, Y: 0}, street.Coordinate{X: 100, Y: 0})
	if !ok1 || !ok2 {
		t.Fatal("split sub-segments missing")
	}
	if sum := e1.Length + e2.Length; math.Abs(sum-100) > 1e-6 {
		t.Errorf("sub-segment lengths sum = %v, want 100", sum)
	}
	if math.Abs(b.ServiceLength-20) > 1e-6 {
		t.Errorf("service length = %v, want 20", b.ServiceLength)
	}
}

func TestAttach_SplitEdge_LengthConservation(t *testing.T) {
	// Curved street with three buildings projecting onto it.
	ways := []street.Way{{Parts: []geom.Polyline{
		line(geom.Point{X: 0, Y: 0}, geom.Point{X: 60, Y: 30}, geom.Point{X: 120, Y: 30}, geom.Point{X: 200, Y: 0}),
	}}}
	g, err := street.Build(ways, metric, 3)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	orig := g.Edges()[0].Length

	buildings := []Building{
		{ID: "b1", Point: geom.Point{X: 40, Y: 60}},
		{ID: "b2", Point: geom.Point{X: 90, Y: 60}},
		{ID: "b3", Point: geom.Point{X: 160, Y: 60}},
	}
	res, err := Attach(buildings, g, opts(ModeSplitEdge))
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if res.Graph.EdgeCount() != 4 {
		t.Fatalf("EdgeCount() = %d, want 4 sub-segments", res.Graph.EdgeCount())
	}
	var sum float64
	for _, e := range res.Graph.Edges() {
		sum += e.Length
	}
	if rel := math.Abs(sum-orig) / orig; rel > 1e-6 {
		t.Errorf("split lengths sum = %v, want %v (rel err %v)", sum, orig, rel)
	}
	for _, b := range res.Buildings {
		if !b.Attached() {
			t.Errorf("building %s not attached", b.ID)
		}
	}
	// Each building gets its own node; curvature is preserved in the
	// sub-segment geometries (interior vertices survive).
	nodes := map[street.Coordinate]bool{}
	for _, b := range res.Buildings {
		nodes[*b.AttachNode] = true
	}
	if len(nodes) != 3 {
		t.Errorf("distinct attach nodes = %d, want 3", len(nodes))
	}
}

func TestAttach_SplitEdge_SnapToEndpointCreatesNoNode(t *testing.T) {
	o := opts(ModeSplitEdge)
	o.SnapTolerance = 2.0
	buildings := []Building{{ID: "b1", Point: geom.Point{X: 1, Y: 15}}} // projects 1 m from corner
	res, err := Attach(buildings, gridGraph(t), o)
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if res.Graph.EdgeCount() != 4 {
		t.Errorf("EdgeCount() = %d, want 4 (no split within snap tolerance)", res.Graph.EdgeCount())
	}
	if (*res.Buildings[0].AttachNode != street.Coordinate{X: 0, Y: 0}) {
		t.Errorf("attach node = %v, want (0,0)", *res.Buildings[0].AttachNode)
	}
}

func TestAttach_Clustered_MergesNearbyBuildings(t *testing.T) {
	o := opts(ModeClustered)
	o.MinSpacing = 25.0
	buildings := []Building{
		{ID: "b1", Point: geom.Point{X: 40, Y: 20}},
		{ID: "b2", Point: geom.Point{X: 60, Y: 20}}, // 20 m along-edge from b1: same cluster
		{ID: "b3", Point: geom.Point{X: 95, Y: 20}}, // 35 m from b2: own cluster... snapped to corner
	}
	res, err := Attach(buildings, gridGraph(t), o)
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	b1, b2 := res.Buildings[0], res.Buildings[1]
	if *b1.AttachNode != *b2.AttachNode {
		t.Errorf("cluster nodes differ: %v vs %v", *b1.AttachNode, *b2.AttachNode)
	}
	if (*b1.AttachNode != street.Coordinate{X: 50, Y: 0}) {
		t.Errorf("cluster node = %v, want centroid projection (50,0)", *b1.AttachNode)
	}
	if *res.Buildings[2].AttachNode == *b1.AttachNode {
		t.Error("distant building landed in the same cluster")
	}
	// One cluster node + one node for b3 = edge split into 3.
	if res.Graph.EdgeCount() != 6 {
		t.Errorf("EdgeCount() = %d, want 6", res.Graph.EdgeCount())
	}
}

func TestAttach_OutOfReachBuildingSkipped(t *testing.T) {
	o := opts(ModeSplitEdge)
	o.MaxDistance = 50
	buildings := []Building{
		{ID: "near", Point: geom.Point{X: 50, Y: 20}},
		{ID: "far", Point: geom.Point{X: 50, Y: 900}},
	}
	res, err := Attach(buildings, gridGraph(t), o)
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if len(res.Unattached) != 1 || res.Unattached[0] != "far" {
		t.Errorf("Unattached = %v, want [far]", res.Unattached)
	}
	var far *Building
	for i := range res.Buildings {
		if res.Buildings[i].ID == "far" {
			far = &res.Buildings[i]
		}
	}
	if far.Attached() {
		t.Error("out-of-reach building got an attach node")
	}
}

func TestAttach_DoesNotMutateInputs(t *testing.T) {
	g := gridGraph(t)
	buildings := []Building{{ID: "b1", Point: geom.Point{X: 50, Y: 20}}}
	if _, err := Attach(buildings, g, opts(ModeSplitEdge)); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if g.EdgeCount() != 4 {
		t.Errorf("input graph EdgeCount() = %d after Attach, want 4", g.EdgeCount())
	}
	if buildings[0].AttachNode != nil {
		t.Error("input building slice was mutated")
	}
}

package street

import (
	"bytes"
	"math"
	"testing"

	"github.com/heatgrid/heatgrid/pkg/errors"
	"github.com/heatgrid/heatgrid/pkg/geom"
)

func line(pts ...geom.Point) geom.Polyline { return geom.Polyline(pts) }

// gridWays returns a 2x2 grid: 4 nodes, 4 edges, each 100 m.
//
//	(0,100)--(100,100)
//	   |         |
//	 (0,0)----(100,0)
func gridWays() []Way {
	return []Way{
		{Parts: []geom.Polyline{line(geom.Point{X: 0, Y: 0}, geom.Point{X: 100, Y: 0})}},
		{Parts: []geom.Polyline{line(geom.Point{X: 100, Y: 0}, geom.Point{X: 100, Y: 100})}},
		{Parts: []geom.Polyline{line(geom.Point{X: 100, Y: 100}, geom.Point{X: 0, Y: 100})}},
		{Parts: []geom.Polyline{line(geom.Point{X: 0, Y: 100}, geom.Point{X: 0, Y: 0})}},
	}
}

var metric = CRS{Name: "EPSG:25832", Unit: "m"}

func TestBuild_Grid(t *testing.T) {
	g, err := Build(gridWays(), metric, 3)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if g.NodeCount() != 4 {
		t.Errorf("NodeCount() = %d, want 4", g.NodeCount())
	}
	if g.EdgeCount() != 4 {
		t.Errorf("EdgeCount() = %d, want 4", g.EdgeCount())
	}
	for _, e := range g.Edges() {
		if math.Abs(e.Length-100) > 1e-9 {
			t.Errorf("edge %v-%v length = %v, want 100", e.A, e.B, e.Length)
		}
	}
}

func TestBuild_RejectsGeographicCRS(t *testing.T) {
	_, err := Build(gridWays(), CRS{Name: "EPSG:4326", Unit: "degree"}, 3)
	if !errors.Is(err, errors.ErrCodeInvalidCRS) {
		t.Fatalf("Build() error = %v, want INVALID_CRS", err)
	}
}

func TestBuild_DropsDegenerateParts(t *testing.T) {
	ways := []Way{
		{Parts: []geom.Polyline{line(geom.Point{X: 0, Y: 0})}}, // single vertex
		{Parts: []geom.Polyline{{}}},                           // empty
		{Parts: []geom.Polyline{line(geom.Point{X: 0, Y: 0}, geom.Point{X: 10, Y: 0})}},
	}
	g, err := Build(ways, metric, 3)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if g.EdgeCount() != 1 {
		t.Errorf("EdgeCount() = %d, want 1", g.EdgeCount())
	}
}

func TestBuild_MergesRoundedEndpoints(t *testing.T) {
	// Endpoints 0.0004 m apart collapse to one node at 3 decimals.
	ways := []Way{
		{Parts: []geom.Polyline{line(geom.Point{X: 0, Y: 0}, geom.Point{X: 50, Y: 0})}},
		{Parts: []geom.Polyline{line(geom.Point{X: 50.0004, Y: 0.0002}, geom.Point{X: 100, Y: 0})}},
	}
	g, err := Build(ways, metric, 3)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if g.NodeCount() != 3 {
		t.Errorf("NodeCount() = %d, want 3", g.NodeCount())
	}
}

func TestBuild_DuplicateEdgeKeepsFirst(t *testing.T) {
	ways := []Way{
		{Name: "first", Parts: []geom.Polyline{line(geom.Point{X: 0, Y: 0}, geom.Point{X: 100, Y: 0})}},
		{Name: "second", Parts: []geom.Polyline{line(geom.Point{X: 100, Y: 0}, geom.Point{X: 0, Y: 0})}},
	}
	g, err := Build(ways, metric, 3)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if g.EdgeCount() != 1 {
		t.Fatalf("EdgeCount() = %d, want 1", g.EdgeCount())
	}
	e, _ := g.Edge(Coordinate{0, 0}, Coordinate{100, 0})
	if e.Name != "first" {
		t.Errorf("kept edge name = %q, want %q", e.Name, "first")
	}
}

func TestBuild_MultiPartWay(t *testing.T) {
	ways := []Way{{
		Name: "ring road",
		Parts: []geom.Polyline{
			line(geom.Point{X: 0, Y: 0}, geom.Point{X: 100, Y: 0}),
			line(geom.Point{X: 100, Y: 0}, geom.Point{X: 100, Y: 100}),
		},
	}}
	g, err := Build(ways, metric, 3)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if g.EdgeCount() != 2 {
		t.Errorf("EdgeCount() = %d, want 2", g.EdgeCount())
	}
}

func TestBuild_Idempotent(t *testing.T) {
	g1, err := Build(gridWays(), metric, 3)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	g2, err := Build(gridWays(), metric, 3)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	b1, err := MarshalGraph(g1)
	if err != nil {
		t.Fatalf("MarshalGraph() error = %v", err)
	}
	b2, err := MarshalGraph(g2)
	if err != nil {
		t.Fatalf("MarshalGraph() error = %v", err)
	}
	if !bytes.Equal(b1, b2) {
		t.Error("two builds of identical input serialize differently")
	}
}

func TestGraph_AddEdgeRejectsSelfLoop(t *testing.T) {
	g := NewGraph(3)
	if g.AddEdge(Edge{A: Coordinate{1, 1}, B: Coordinate{1, 1}, Length: 0}) {
		t.Error("AddEdge() accepted a self-loop")
	}
}

func TestGraph_CloneIsDeep(t *testing.T) {
	g, _ := Build(gridWays(), metric, 3)
	clone := g.Clone()
	clone.RemoveEdge(Coordinate{0, 0}, Coordinate{100, 0})
	if g.EdgeCount() != 4 {
		t.Errorf("original EdgeCount() = %d after mutating clone, want 4", g.EdgeCount())
	}
	// Geometry must not alias.
	e, _ := clone.Edge(Coordinate{0, 0}, Coordinate{0, 100})
	e.Geometry[0].X = 999
	orig, _ := g.Edge(Coordinate{0, 0}, Coordinate{0, 100})
	if orig.Geometry[0].X == 999 {
		t.Error("clone geometry aliases original")
	}
}

func TestCheckDensity(t *testing.T) {
	g, _ := Build(gridWays(), metric, 3) // 4 edges
	if err := CheckDensity(g, 10); err != nil {
		t.Errorf("CheckDensity(10 buildings) = %v, want nil", err)
	}
	err := CheckDensity(g, 100)
	if !errors.Is(err, errors.ErrCodeSparseStreets) {
		t.Errorf("CheckDensity(100 buildings) = %v, want DATA_SPARSE_STREETS", err)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	g, _ := Build(gridWays(), metric, 3)
	data, err := MarshalGraph(g)
	if err != nil {
		t.Fatalf("MarshalGraph() error = %v", err)
	}
	back, err := ReadGraph(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadGraph() error = %v", err)
	}
	data2, err := MarshalGraph(back)
	if err != nil {
		t.Fatalf("MarshalGraph() error = %v", err)
	}
	if !bytes.Equal(data, data2) {
		t.Error("JSON round-trip is not stable")
	}
}

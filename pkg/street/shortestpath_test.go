package street

import (
	"math"
	"testing"

	"github.com/heatgrid/heatgrid/pkg/geom"
)

func buildGrid(t *testing.T) *Graph {
	t.Helper()
	g, err := Build(gridWays(), metric, 3)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return g
}

func TestShortestPath_Grid(t *testing.T) {
	g := buildGrid(t)
	path, dist, err := ShortestPath(g, Coordinate{0, 0}, Coordinate{100, 100}, nil)
	if err != nil {
		t.Fatalf("ShortestPath() error = %v", err)
	}
	if math.Abs(dist-200) > 1e-9 {
		t.Errorf("dist = %v, want 200", dist)
	}
	if len(path) != 3 {
		t.Fatalf("path length = %d, want 3", len(path))
	}
	// Both corner routes cost 200; the deterministic tie-break must pick
	// the canonically smaller intermediate node (0,100).
	if (path[1] != Coordinate{0, 100}) {
		t.Errorf("intermediate node = %v, want (0,100)", path[1])
	}
}

func TestShortestPath_NoPath(t *testing.T) {
	g := buildGrid(t)
	g.AddNode(Coordinate{500, 500})
	if _, _, err := ShortestPath(g, Coordinate{0, 0}, Coordinate{500, 500}, nil); err != ErrNoPath {
		t.Errorf("ShortestPath() error = %v, want ErrNoPath", err)
	}
	if _, _, err := ShortestPath(g, Coordinate{7, 7}, Coordinate{0, 0}, nil); err != ErrNodeNotFound {
		t.Errorf("ShortestPath() error = %v, want ErrNodeNotFound", err)
	}
}

func TestAvoidClassesCost(t *testing.T) {
	// Two routes from (0,0) to (200,0): a direct primary road (200 m) and
	// a residential detour (220 m). The penalty makes the detour cheaper.
	ways := []Way{
		{RoadClass: "primary", Parts: []geom.Polyline{line(geom.Point{X: 0, Y: 0}, geom.Point{X: 200, Y: 0})}},
		{RoadClass: "residential", Parts: []geom.Polyline{line(geom.Point{X: 0, Y: 0}, geom.Point{X: 100, Y: 60})}},
		{RoadClass: "residential", Parts: []geom.Polyline{line(geom.Point{X: 100, Y: 60}, geom.Point{X: 200, Y: 0})}},
	}
	g, err := Build(ways, metric, 3)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	path, _, err := ShortestPath(g, Coordinate{0, 0}, Coordinate{200, 0}, LengthCost)
	if err != nil {
		t.Fatalf("ShortestPath() error = %v", err)
	}
	if len(path) != 2 {
		t.Errorf("length-only path hops = %d, want direct primary road", len(path)-1)
	}

	path, _, err = ShortestPath(g, Coordinate{0, 0}, Coordinate{200, 0}, AvoidClassesCost(2.0, nil))
	if err != nil {
		t.Fatalf("ShortestPath() error = %v", err)
	}
	if len(path) != 3 {
		t.Errorf("penalized path hops = %d, want residential detour", len(path)-1)
	}
}

func TestComponents_Canonical(t *testing.T) {
	ways := append(gridWays(),
		Way{Parts: []geom.Polyline{line(geom.Point{X: 500, Y: 500}, geom.Point{X: 600, Y: 500})}},
	)
	g, err := Build(ways, metric, 3)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	comps := Components(g)
	if len(comps) != 2 {
		t.Fatalf("Components() = %d components, want 2", len(comps))
	}
	if len(comps[0]) != 4 || len(comps[1]) != 2 {
		t.Errorf("component sizes = %d,%d, want 4,2", len(comps[0]), len(comps[1]))
	}
	// Ordered by minimum member coordinate: the grid (min (0,0)) first.
	if (comps[0][0] != Coordinate{0, 0}) {
		t.Errorf("first component min = %v, want (0,0)", comps[0][0])
	}
}

func TestMultiSourcePaths(t *testing.T) {
	// Grid plus a two-edge tail hanging off (100,0).
	ways := append(gridWays(),
		Way{Parts: []geom.Polyline{line(geom.Point{X: 100, Y: 0}, geom.Point{X: 180, Y: 0})}},
		Way{Parts: []geom.Polyline{line(geom.Point{X: 180, Y: 0}, geom.Point{X: 260, Y: 0})}},
	)
	g, err := Build(ways, metric, 3)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	seeds := []Coordinate{{0, 0}, {100, 100}}
	tree, err := MultiSourcePaths(g, seeds, nil)
	if err != nil {
		t.Fatalf("MultiSourcePaths() error = %v", err)
	}
	if d := tree.Dist[Coordinate{260, 0}]; math.Abs(d-260) > 1e-9 {
		t.Errorf("dist to tail tip = %v, want 260", d)
	}
	if (tree.Seed[Coordinate{260, 0}] != Coordinate{0, 0}) {
		t.Errorf("tail tip seed = %v, want (0,0)", tree.Seed[Coordinate{260, 0}])
	}
	// (100,0) is 100 m from both seeds; the tie resolves to the
	// canonically smaller one.
	if (tree.Seed[Coordinate{100, 0}] != Coordinate{0, 0}) {
		t.Errorf("equidistant node seed = %v, want (0,0)", tree.Seed[Coordinate{100, 0}])
	}

	path, err := tree.PathToSeed(Coordinate{260, 0})
	if err != nil {
		t.Fatalf("PathToSeed() error = %v", err)
	}
	want := []Coordinate{{0, 0}, {100, 0}, {180, 0}, {260, 0}}
	if len(path) != len(want) {
		t.Fatalf("path = %v, want %v", path, want)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Fatalf("path = %v, want %v", path, want)
		}
	}

	if _, err := MultiSourcePaths(g, []Coordinate{{9, 9}}, nil); err != ErrNodeNotFound {
		t.Errorf("MultiSourcePaths() error = %v, want ErrNodeNotFound", err)
	}
}

func TestHopDistances_MultiSource(t *testing.T) {
	g := buildGrid(t)
	hops := HopDistances(g, []Coordinate{{0, 0}})
	if hops[Coordinate{100, 100}] != 2 {
		t.Errorf("hops to far corner = %d, want 2", hops[Coordinate{100, 100}])
	}
	hops = HopDistances(g, []Coordinate{{0, 0}, {100, 100}})
	for c, h := range hops {
		if h > 1 {
			t.Errorf("node %v hop = %d, want <= 1 with two sources", c, h)
		}
	}
}

func TestNearestNode_Restricted(t *testing.T) {
	g := buildGrid(t)
	n, ok := NearestNode(g, geom.Point{X: 10, Y: 10}, nil)
	if !ok || (n != Coordinate{0, 0}) {
		t.Errorf("NearestNode() = %v,%v, want (0,0)", n, ok)
	}
	restrict := map[Coordinate]bool{{100, 100}: true}
	n, ok = NearestNode(g, geom.Point{X: 10, Y: 10}, restrict)
	if !ok || (n != Coordinate{100, 100}) {
		t.Errorf("restricted NearestNode() = %v,%v, want (100,100)", n, ok)
	}
}

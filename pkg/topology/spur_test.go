package topology

import (
	"math"
	"testing"

	"github.com/heatgrid/heatgrid/pkg/attach"
	"github.com/heatgrid/heatgrid/pkg/geom"
	"github.com/heatgrid/heatgrid/pkg/street"
)

// spurGraph is a main road along y=0 with a side street branching north
// at (100,0): connector (100,0)-(100,40) and side edge (100,40)-(100,90).
func spurGraph(t *testing.T) *street.Graph {
	t.Helper()
	return mustBuild(t, []street.Way{
		{Parts: []geom.Polyline{line(geom.Point{X: 0, Y: 0}, geom.Point{X: 100, Y: 0})}},
		{Parts: []geom.Polyline{line(geom.Point{X: 100, Y: 0}, geom.Point{X: 200, Y: 0})}},
		{Parts: []geom.Polyline{line(geom.Point{X: 100, Y: 0}, geom.Point{X: 100, Y: 40})}},
		{Parts: []geom.Polyline{line(geom.Point{X: 100, Y: 40}, geom.Point{X: 100, Y: 90})}},
	})
}

func spurOptions() Options {
	opts := DefaultOptions()
	opts.Mode = TrunkStreetPlusSpurs
	opts.Spurs = SpurOptions{
		ServiceThreshold: 30.0,
		MaxDepth:         3,
		MinBuildings:     2,
		MaxTotalLength:   500.0,
		ReductionPct:     20.0,
		SearchBuffer:     100.0,
	}
	return opts
}

// One building 50 m off-trunk with a candidate edge serving only it must
// not be promoted when two buildings are required, and its service
// length stays above the trigger threshold.
func TestExpandSpurs_MinBuildingsBlocksPromotion(t *testing.T) {
	g := spurGraph(t)
	buildings := []attach.Building{
		attached("b1", geom.Point{X: 0, Y: 10}, street.Coordinate{X: 0, Y: 0}),
		attached("far", geom.Point{X: 105, Y: 50}, street.Coordinate{X: 100, Y: 0}),
	}
	plan, err := BuildTrunk(g, buildings, street.Coordinate{X: 0, Y: 0}, spurOptions())
	if err != nil {
		t.Fatalf("BuildTrunk() error = %v", err)
	}

	rep := plan.Spurs
	if rep == nil || len(rep.Candidates) != 1 {
		t.Fatalf("Spurs = %+v, want exactly one candidate", rep)
	}
	c := rep.Candidates[0]
	if c.Promoted || rep.PromotedCount != 0 {
		t.Fatal("single-building spur was promoted despite min-buildings = 2")
	}
	if c.Reason != "serves too few buildings" {
		t.Errorf("rejection reason = %q, want min-buildings failure", c.Reason)
	}
	if len(plan.Edges) != 1 {
		t.Errorf("trunk edges = %d, want the base trunk only", len(plan.Edges))
	}
	if far := plan.Buildings[1]; far.ServiceLength < 30 {
		t.Errorf("service length = %v, want >= 30 (no promotion happened)", far.ServiceLength)
	}
}

func TestExpandSpurs_PromotesSharedSideStreet(t *testing.T) {
	g := spurGraph(t)
	buildings := []attach.Building{
		attached("b1", geom.Point{X: 0, Y: 10}, street.Coordinate{X: 0, Y: 0}),
		attached("b2", geom.Point{X: 95, Y: 60}, street.Coordinate{X: 100, Y: 0}),
		attached("b3", geom.Point{X: 105, Y: 70}, street.Coordinate{X: 100, Y: 0}),
	}
	plan, err := BuildTrunk(g, buildings, street.Coordinate{X: 0, Y: 0}, spurOptions())
	if err != nil {
		t.Fatalf("BuildTrunk() error = %v", err)
	}

	rep := plan.Spurs
	if rep.PromotedCount != 1 {
		t.Fatalf("PromotedCount = %d, want 1 (report: %+v)", rep.PromotedCount, rep)
	}
	side := street.NewEdgeKey(street.Coordinate{X: 100, Y: 40}, street.Coordinate{X: 100, Y: 90})
	if !plan.Edges.Has(side) {
		t.Fatal("side street missing from expanded trunk")
	}
	// The spur was not adjacent to the base trunk: the connector edge is
	// pulled in and accounted for.
	connector := street.NewEdgeKey(street.Coordinate{X: 100, Y: 0}, street.Coordinate{X: 100, Y: 40})
	if !plan.Edges.Has(connector) {
		t.Fatal("connector edge missing from expanded trunk")
	}
	if math.Abs(rep.ConnectorLength-40) > 1e-9 {
		t.Errorf("ConnectorLength = %v, want 40", rep.ConnectorLength)
	}

	// Re-snap moved both far buildings onto the side street and shortened
	// their service connections.
	b2, b3 := plan.Buildings[1], plan.Buildings[2]
	if (*b2.AttachNode != street.Coordinate{X: 100, Y: 40}) {
		t.Errorf("b2 attach node = %v, want (100,40)", *b2.AttachNode)
	}
	if (*b3.AttachNode != street.Coordinate{X: 100, Y: 90}) {
		t.Errorf("b3 attach node = %v, want (100,90)", *b3.AttachNode)
	}
	if math.Abs(b2.ServiceLength-25) > 1e-6 {
		t.Errorf("b2 service length = %v, want 25 (5 m to street + 20 m to node)", b2.ServiceLength)
	}
	if rep.Resnapped == 0 {
		t.Error("report records no re-snapped buildings")
	}

	// Expanded trunk keeps the reachability invariant.
	reach := street.ReachableFrom(plan.Graph, plan.Plant)
	for _, b := range plan.Buildings {
		if !reach[*b.AttachNode] {
			t.Errorf("building %s unreachable after expansion", b.ID)
		}
	}
}

func TestExpandSpurs_Deterministic(t *testing.T) {
	buildings := []attach.Building{
		attached("b1", geom.Point{X: 0, Y: 10}, street.Coordinate{X: 0, Y: 0}),
		attached("b2", geom.Point{X: 95, Y: 60}, street.Coordinate{X: 100, Y: 0}),
		attached("b3", geom.Point{X: 105, Y: 70}, street.Coordinate{X: 100, Y: 0}),
	}
	first, err := BuildTrunk(spurGraph(t), buildings, street.Coordinate{X: 0, Y: 0}, spurOptions())
	if err != nil {
		t.Fatalf("BuildTrunk() error = %v", err)
	}
	second, err := BuildTrunk(spurGraph(t), buildings, street.Coordinate{X: 0, Y: 0}, spurOptions())
	if err != nil {
		t.Fatalf("BuildTrunk() error = %v", err)
	}

	k1, k2 := first.Edges.Keys(), second.Edges.Keys()
	if len(k1) != len(k2) {
		t.Fatalf("edge counts differ: %d vs %d", len(k1), len(k2))
	}
	for i := range k1 {
		if k1[i] != k2[i] {
			t.Fatalf("edge sets diverge at %d: %v vs %v", i, k1[i], k2[i])
		}
	}
	for i := range first.Buildings {
		if *first.Buildings[i].AttachNode != *second.Buildings[i].AttachNode {
			t.Fatalf("attach node for %s differs between runs", first.Buildings[i].ID)
		}
	}
}

func TestExpandSpurs_DepthLimit(t *testing.T) {
	// Push the side street deeper than the allowed hop depth.
	opts := spurOptions()
	opts.Spurs.MaxDepth = 1
	buildings := []attach.Building{
		attached("b1", geom.Point{X: 0, Y: 10}, street.Coordinate{X: 0, Y: 0}),
		attached("b2", geom.Point{X: 95, Y: 60}, street.Coordinate{X: 100, Y: 0}),
		attached("b3", geom.Point{X: 105, Y: 70}, street.Coordinate{X: 100, Y: 0}),
	}
	plan, err := BuildTrunk(spurGraph(t), buildings, street.Coordinate{X: 0, Y: 0}, opts)
	if err != nil {
		t.Fatalf("BuildTrunk() error = %v", err)
	}
	if plan.Spurs.PromotedCount != 0 {
		t.Fatal("deep spur promoted past the depth limit")
	}
	if c := plan.Spurs.Candidates[0]; c.Reason != "exceeds max depth" {
		t.Errorf("rejection reason = %q, want depth failure", c.Reason)
	}
}

package street

import (
	"container/heap"
	"errors"
	"math"
	"slices"

	"github.com/heatgrid/heatgrid/pkg/geom"
)

// Sentinel errors for shortest-path queries.
var (
	// ErrNodeNotFound is returned when a path endpoint is not a graph node.
	ErrNodeNotFound = errors.New("street: node not in graph")

	// ErrNoPath is returned when the target is unreachable from the source.
	ErrNoPath = errors.New("street: no path between nodes")
)

// CostFunc maps an edge to a non-negative traversal cost. The default is
// the raw edge length; alternative cost functions bias route selection
// without changing the graph.
type CostFunc func(*Edge) float64

// LengthCost is the default cost function: the edge's length in meters.
func LengthCost(e *Edge) float64 { return e.Length }

// defaultPrimaryClasses are the road classifications penalized by
// AvoidClassesCost when no explicit set is given.
var defaultPrimaryClasses = map[string]bool{
	"primary":   true,
	"trunk":     true,
	"motorway":  true,
	"secondary": true,
}

// AvoidClassesCost returns a cost function that multiplies the length of
// edges whose road class is in classes by penalty, biasing routing toward
// smaller streets. A nil classes set penalizes the common primary-road
// classifications; penalty values <= 1 degrade to LengthCost.
func AvoidClassesCost(penalty float64, classes map[string]bool) CostFunc {
	if penalty <= 1 {
		return LengthCost
	}
	if classes == nil {
		classes = defaultPrimaryClasses
	}
	return func(e *Edge) float64 {
		if classes[e.RoadClass] {
			return e.Length * penalty
		}
		return e.Length
	}
}

// pathItem is a heap entry for the lazy-decrease-key Dijkstra.
type pathItem struct {
	node Coordinate
	dist float64
}

// pathHeap orders by distance, breaking ties on coordinate order so that
// extraction order - and therefore path choice - is deterministic.
type pathHeap []pathItem

func (h pathHeap) Len() int { return len(h) }
func (h pathHeap) Less(i, j int) bool {
	if h[i].dist != h[j].dist {
		return h[i].dist < h[j].dist
	}
	return h[i].node.Less(h[j].node)
}
func (h pathHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *pathHeap) Push(x any)         { *h = append(*h, x.(pathItem)) }
func (h *pathHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// PathTree holds single-source shortest-path results.
type PathTree struct {
	Source Coordinate
	Dist   map[Coordinate]float64    // node -> cost from source; absent means unreachable
	Prev   map[Coordinate]Coordinate // node -> predecessor on a shortest path
}

// ShortestPaths computes shortest paths from source to every reachable
// node using Dijkstra with a lazy decrease-key heap. cost may be nil for
// LengthCost. Neighbor expansion and heap ties are coordinate-ordered, so
// the predecessor tree is deterministic.
func ShortestPaths(g *Graph, source Coordinate, cost CostFunc) (*PathTree, error) {
	if !g.HasNode(source) {
		return nil, ErrNodeNotFound
	}
	if cost == nil {
		cost = LengthCost
	}

	dist := map[Coordinate]float64{source: 0}
	prev := map[Coordinate]Coordinate{}
	h := &pathHeap{{node: source, dist: 0}}

	for h.Len() > 0 {
		item := heap.Pop(h).(pathItem)
		if item.dist > dist[item.node] {
			continue // stale entry
		}
		for _, n := range g.Neighbors(item.node) {
			e, _ := g.Edge(item.node, n)
			c := cost(e)
			if c < 0 {
				c = 0
			}
			next := item.dist + c
			if cur, ok := dist[n]; !ok || next < cur {
				dist[n] = next
				prev[n] = item.node
				heap.Push(h, pathItem{node: n, dist: next})
			}
		}
	}
	return &PathTree{Source: source, Dist: dist, Prev: prev}, nil
}

// PathTo reconstructs the node sequence from the tree's source to target.
// Returns ErrNoPath if target was not reached.
func (t *PathTree) PathTo(target Coordinate) ([]Coordinate, error) {
	if _, ok := t.Dist[target]; !ok {
		return nil, ErrNoPath
	}
	var rev []Coordinate
	for c := target; ; {
		rev = append(rev, c)
		if c == t.Source {
			break
		}
		c = t.Prev[c]
	}
	path := make([]Coordinate, len(rev))
	for i, c := range rev {
		path[len(rev)-1-i] = c
	}
	return path, nil
}

// ShortestPath computes one shortest path between two nodes.
func ShortestPath(g *Graph, from, to Coordinate, cost CostFunc) ([]Coordinate, float64, error) {
	tree, err := ShortestPaths(g, from, cost)
	if err != nil {
		return nil, 0, err
	}
	path, err := tree.PathTo(to)
	if err != nil {
		return nil, 0, err
	}
	return path, tree.Dist[to], nil
}

// MultiTree holds multi-source shortest-path results: for every reachable
// node, the cost to the nearest seed, the predecessor toward that seed,
// and which seed it resolves to.
type MultiTree struct {
	Dist map[Coordinate]float64
	Prev map[Coordinate]Coordinate
	Seed map[Coordinate]Coordinate // node -> owning seed
}

// MultiSourcePaths runs Dijkstra from all seeds at once. Seeds not present
// in the graph are ignored; at least one seed must exist. Seed iteration
// is sorted, so equidistant nodes resolve to the same seed on every run.
func MultiSourcePaths(g *Graph, seeds []Coordinate, cost CostFunc) (*MultiTree, error) {
	if cost == nil {
		cost = LengthCost
	}
	sorted := make([]Coordinate, 0, len(seeds))
	for _, s := range seeds {
		if g.HasNode(s) {
			sorted = append(sorted, s)
		}
	}
	if len(sorted) == 0 {
		return nil, ErrNodeNotFound
	}
	slices.SortFunc(sorted, Coordinate.Compare)

	t := &MultiTree{
		Dist: make(map[Coordinate]float64),
		Prev: make(map[Coordinate]Coordinate),
		Seed: make(map[Coordinate]Coordinate),
	}
	h := &pathHeap{}
	for _, s := range sorted {
		if _, ok := t.Dist[s]; ok {
			continue
		}
		t.Dist[s] = 0
		t.Seed[s] = s
		heap.Push(h, pathItem{node: s, dist: 0})
	}
	for h.Len() > 0 {
		item := heap.Pop(h).(pathItem)
		if item.dist > t.Dist[item.node] {
			continue // stale entry
		}
		for _, n := range g.Neighbors(item.node) {
			e, _ := g.Edge(item.node, n)
			c := cost(e)
			if c < 0 {
				c = 0
			}
			next := item.dist + c
			if cur, ok := t.Dist[n]; !ok || next < cur {
				t.Dist[n] = next
				t.Prev[n] = item.node
				t.Seed[n] = t.Seed[item.node]
				heap.Push(h, pathItem{node: n, dist: next})
			}
		}
	}
	return t, nil
}

// PathToSeed reconstructs the node sequence from target back to its
// owning seed, returned seed-first. Returns ErrNoPath if target was not
// reached from any seed.
func (t *MultiTree) PathToSeed(target Coordinate) ([]Coordinate, error) {
	if _, ok := t.Dist[target]; !ok {
		return nil, ErrNoPath
	}
	var rev []Coordinate
	for c := target; ; {
		rev = append(rev, c)
		if c == t.Seed[target] {
			break
		}
		c = t.Prev[c]
	}
	path := make([]Coordinate, len(rev))
	for i, c := range rev {
		path[len(rev)-1-i] = c
	}
	return path, nil
}

// HopDistances returns the unweighted hop count from the nearest of the
// given seed nodes to every reachable node (multi-source BFS). Seeds not
// present in the graph are ignored; seed nodes themselves have hop 0.
func HopDistances(g *Graph, seeds []Coordinate) map[Coordinate]int {
	hops := make(map[Coordinate]int)
	var queue []Coordinate
	for _, s := range seeds {
		if g.HasNode(s) {
			if _, ok := hops[s]; !ok {
				hops[s] = 0
				queue = append(queue, s)
			}
		}
	}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		for _, n := range g.Neighbors(c) {
			if _, ok := hops[n]; !ok {
				hops[n] = hops[c] + 1
				queue = append(queue, n)
			}
		}
	}
	return hops
}

// NearestNode returns the graph node closest (Euclidean) to p, restricted
// to the given candidate set when restrict is non-nil. Ties keep the
// canonically smaller coordinate. Returns false when no candidate exists.
func NearestNode(g *Graph, p geom.Point, restrict map[Coordinate]bool) (Coordinate, bool) {
	best := Coordinate{}
	bestDist := math.Inf(1)
	found := false
	for _, c := range g.Nodes() {
		if restrict != nil && !restrict[c] {
			continue
		}
		d := c.Point().Dist(p)
		if d < bestDist {
			best, bestDist, found = c, d, true
		}
	}
	return best, found
}

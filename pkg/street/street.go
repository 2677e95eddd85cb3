package street

import (
	"fmt"
	"slices"

	"github.com/heatgrid/heatgrid/pkg/geom"
)

// DefaultDecimals is the coordinate rounding precision used for node
// identity. Two points within this tolerance collapse to the same node.
const DefaultDecimals = 3

// Coordinate is a rounded (x, y) pair acting as a graph-node identity.
// Coordinates are comparable and usable as map keys.
type Coordinate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewCoordinate rounds p to the given number of decimals.
func NewCoordinate(p geom.Point, decimals int) Coordinate {
	r := geom.RoundPoint(p, decimals)
	return Coordinate{X: r.X, Y: r.Y}
}

// Point returns the coordinate as a geometry point.
func (c Coordinate) Point() geom.Point { return geom.Point{X: c.X, Y: c.Y} }

// Less orders coordinates lexicographically by (X, Y).
func (c Coordinate) Less(o Coordinate) bool {
	if c.X != o.X {
		return c.X < o.X
	}
	return c.Y < o.Y
}

// Compare returns -1, 0 or 1 for use with slices.SortFunc.
func (c Coordinate) Compare(o Coordinate) int {
	if c.X != o.X {
		if c.X < o.X {
			return -1
		}
		return 1
	}
	if c.Y != o.Y {
		if c.Y < o.Y {
			return -1
		}
		return 1
	}
	return 0
}

func (c Coordinate) String() string { return fmt.Sprintf("(%g, %g)", c.X, c.Y) }

// EdgeKey is a normalized unordered node pair. The smaller coordinate is
// always stored first, so (u,v) and (v,u) produce the same key.
type EdgeKey struct {
	A, B Coordinate
}

// NewEdgeKey normalizes the pair ordering.
func NewEdgeKey(a, b Coordinate) EdgeKey {
	if b.Less(a) {
		a, b = b, a
	}
	return EdgeKey{A: a, B: b}
}

// Compare orders keys lexicographically by (A, B).
func (k EdgeKey) Compare(o EdgeKey) int {
	if c := k.A.Compare(o.A); c != 0 {
		return c
	}
	return k.B.Compare(o.B)
}

// Edge is an undirected street segment between two graph nodes.
type Edge struct {
	A, B      Coordinate    // endpoint nodes; Geometry runs from A to B
	Length    float64       // arclength in meters
	Geometry  geom.Polyline // source polyline; first/last vertices equal A/B up to rounding
	Name      string        // optional street name
	RoadClass string        // optional classification (e.g. "primary", "residential")
}

// Key returns the normalized edge key.
func (e *Edge) Key() EdgeKey { return NewEdgeKey(e.A, e.B) }

// Other returns the endpoint opposite to c. Panics if c is not an endpoint.
func (e *Edge) Other(c Coordinate) Coordinate {
	switch c {
	case e.A:
		return e.B
	case e.B:
		return e.A
	}
	panic(fmt.Sprintf("street: %v is not an endpoint of edge %v-%v", c, e.A, e.B))
}

// OrientedGeometry returns the edge geometry starting at from.
// Panics if from is not an endpoint.
func (e *Edge) OrientedGeometry(from Coordinate) geom.Polyline {
	switch from {
	case e.A:
		return e.Geometry
	case e.B:
		return e.Geometry.Reverse()
	}
	panic(fmt.Sprintf("street: %v is not an endpoint of edge %v-%v", from, e.A, e.B))
}

// BBox returns the bounding box of the edge geometry, expanded by buffer.
func (e *Edge) BBox(buffer float64) geom.BBox {
	return geom.NewBBox(e.Geometry, buffer)
}

// Graph is an undirected weighted street graph. The zero value is not
// usable - use NewGraph. Graph is not safe for concurrent use.
type Graph struct {
	decimals int
	nodes    map[Coordinate]struct{}
	adj      map[Coordinate]map[Coordinate]*Edge
	edges    map[EdgeKey]*Edge
}

// NewGraph creates an empty graph with the given coordinate rounding
// precision. Precision is part of node identity and is carried along so
// that later stages split edges consistently.
func NewGraph(decimals int) *Graph {
	return &Graph{
		decimals: decimals,
		nodes:    make(map[Coordinate]struct{}),
		adj:      make(map[Coordinate]map[Coordinate]*Edge),
		edges:    make(map[EdgeKey]*Edge),
	}
}

// Decimals returns the coordinate rounding precision of this graph.
func (g *Graph) Decimals() int { return g.decimals }

// AddNode adds a node. Adding an existing node is a no-op.
func (g *Graph) AddNode(c Coordinate) {
	if _, ok := g.nodes[c]; !ok {
		g.nodes[c] = struct{}{}
	}
}

// HasNode reports whether c is a node of the graph.
func (g *Graph) HasNode(c Coordinate) bool {
	_, ok := g.nodes[c]
	return ok
}

// AddEdge inserts an edge, creating its endpoint nodes as needed.
// If an edge between the same node pair already exists the first
// representative is kept and AddEdge returns false. Self-loops
// (identical rounded endpoints) are rejected.
func (g *Graph) AddEdge(e Edge) bool {
	if e.A == e.B {
		return false
	}
	key := e.Key()
	if _, exists := g.edges[key]; exists {
		return false
	}
	g.AddNode(e.A)
	g.AddNode(e.B)
	stored := e
	g.edges[key] = &stored
	if g.adj[e.A] == nil {
		g.adj[e.A] = make(map[Coordinate]*Edge)
	}
	if g.adj[e.B] == nil {
		g.adj[e.B] = make(map[Coordinate]*Edge)
	}
	g.adj[e.A][e.B] = &stored
	g.adj[e.B][e.A] = &stored
	return true
}

// RemoveEdge removes the edge between a and b if present. Endpoint nodes
// are kept even when they become isolated.
func (g *Graph) RemoveEdge(a, b Coordinate) {
	key := NewEdgeKey(a, b)
	if _, ok := g.edges[key]; !ok {
		return
	}
	delete(g.edges, key)
	delete(g.adj[a], b)
	delete(g.adj[b], a)
}

// Edge returns the edge between a and b, if present.
func (g *Graph) Edge(a, b Coordinate) (*Edge, bool) {
	e, ok := g.edges[NewEdgeKey(a, b)]
	return e, ok
}

// EdgeByKey returns the edge for a normalized key, if present.
func (g *Graph) EdgeByKey(k EdgeKey) (*Edge, bool) {
	e, ok := g.edges[k]
	return e, ok
}

// Nodes returns all nodes in canonical (coordinate-sorted) order.
func (g *Graph) Nodes() []Coordinate {
	nodes := make([]Coordinate, 0, len(g.nodes))
	for c := range g.nodes {
		nodes = append(nodes, c)
	}
	slices.SortFunc(nodes, Coordinate.Compare)
	return nodes
}

// Edges returns all edges sorted by normalized key.
func (g *Graph) Edges() []*Edge {
	edges := make([]*Edge, 0, len(g.edges))
	for _, e := range g.edges {
		edges = append(edges, e)
	}
	slices.SortFunc(edges, func(a, b *Edge) int { return a.Key().Compare(b.Key()) })
	return edges
}

// Neighbors returns the nodes adjacent to c in canonical order.
func (g *Graph) Neighbors(c Coordinate) []Coordinate {
	out := make([]Coordinate, 0, len(g.adj[c]))
	for n := range g.adj[c] {
		out = append(out, n)
	}
	slices.SortFunc(out, Coordinate.Compare)
	return out
}

// Degree returns the number of edges incident to c.
func (g *Graph) Degree(c Coordinate) int { return len(g.adj[c]) }

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Clone returns a deep copy of the graph. Edge geometries are copied, so
// mutations of the clone never alias the original.
func (g *Graph) Clone() *Graph {
	out := NewGraph(g.decimals)
	for c := range g.nodes {
		out.AddNode(c)
	}
	for _, e := range g.edges {
		clone := *e
		clone.Geometry = e.Geometry.Clone()
		out.AddEdge(clone)
	}
	return out
}

// Subgraph returns the graph induced by the given edge keys. Edges absent
// from g are silently skipped.
func (g *Graph) Subgraph(keys []EdgeKey) *Graph {
	out := NewGraph(g.decimals)
	for _, k := range keys {
		if e, ok := g.edges[k]; ok {
			clone := *e
			clone.Geometry = e.Geometry.Clone()
			out.AddEdge(clone)
		}
	}
	return out
}

// TotalLength returns the summed length of all edges in meters.
func (g *Graph) TotalLength() float64 {
	var total float64
	for _, e := range g.edges {
		total += e.Length
	}
	return total
}

package street

import "slices"

// Components returns the connected components of the graph. Each
// component is coordinate-sorted, and components are ordered by their
// minimum member coordinate. The ordering is canonical: it depends only
// on the node set, never on traversal or map iteration order.
func Components(g *Graph) [][]Coordinate {
	seen := make(map[Coordinate]bool, g.NodeCount())
	var comps [][]Coordinate

	// Seeds iterate in canonical order, so each component is discovered
	// from its minimum coordinate and the result order is canonical too.
	for _, seed := range g.Nodes() {
		if seen[seed] {
			continue
		}
		comp := []Coordinate{}
		queue := []Coordinate{seed}
		seen[seed] = true
		for len(queue) > 0 {
			c := queue[0]
			queue = queue[1:]
			comp = append(comp, c)
			for _, n := range g.Neighbors(c) {
				if !seen[n] {
					seen[n] = true
					queue = append(queue, n)
				}
			}
		}
		slices.SortFunc(comp, Coordinate.Compare)
		comps = append(comps, comp)
	}
	return comps
}

// ReachableFrom returns the set of nodes reachable from src, including
// src itself. Returns an empty set if src is not a node of the graph.
func ReachableFrom(g *Graph, src Coordinate) map[Coordinate]bool {
	reached := make(map[Coordinate]bool)
	if !g.HasNode(src) {
		return reached
	}
	queue := []Coordinate{src}
	reached[src] = true
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		for _, n := range g.Neighbors(c) {
			if !reached[n] {
				reached[n] = true
				queue = append(queue, n)
			}
		}
	}
	return reached
}

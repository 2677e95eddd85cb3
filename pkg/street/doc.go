// Package street models the routable street graph the planner works on.
//
// # Overview
//
// The graph is undirected and weighted. Nodes are rounded coordinates
// ([Coordinate]) - two street endpoints within rounding tolerance collapse
// to the same node, which is what makes independently digitized polylines
// join up into a routable network. Edges carry their arclength, the source
// polyline geometry, and optional road metadata (name, classification).
//
// [Build] converts a collection of raw ways (optionally multi-part
// polylines with a coordinate reference frame) into a graph. Geographic
// (degree-unit) frames are rejected up front: every downstream length and
// distance computation assumes meters.
//
// The graph is not a multigraph. When two ways share identical rounded
// endpoints, the first edge wins and later duplicates are dropped -
// downstream cost is length-based and near-duplicates have near-equal
// cost, so keeping one representative is sufficient.
//
// # Algorithms
//
// [Components] returns connected components in a canonical order (sorted
// by their minimum member coordinate) so that component selection is
// deterministic across runs and implementations. [ShortestPaths] is a
// Dijkstra over the edge set with a pluggable [CostFunc]; neighbor
// expansion is coordinate-ordered and heap ties break on coordinate order,
// so path choice is reproducible.
//
// # Determinism
//
// Every accessor that feeds pipeline output ([Graph.Nodes], [Graph.Edges],
// [Graph.Neighbors]) returns sorted results. Callers never observe map
// iteration order.
package street

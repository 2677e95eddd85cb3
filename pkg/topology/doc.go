// Package topology selects the network plan: the dominant connected
// component, the plant node, and the trunk edge set that carries the
// main distribution pipes.
//
// # Pipeline position
//
// The package consumes the attachment engine's output and produces a
// [Plan]. Stages run in order:
//
//  1. [SelectComponent] keeps the connected component holding the most
//     attached buildings and drops buildings attached elsewhere.
//  2. [SelectPlant] roots the network at the graph node nearest the
//     (optionally demand-weighted) centroid of the retained buildings.
//  3. [BuildTrunk] computes the trunk edge set under one of three modes,
//     optionally expanding it with short spurs into side streets.
//
// Every stage takes ownership of its input and returns owned values;
// none retains a reference into a previous stage's structure.
//
// # Determinism
//
// All selection is reproducible: components are ranked in canonical
// order, shortest-path tie-breaks are coordinate-ordered, and spur
// candidates are evaluated in a fixed order. Identical inputs always
// yield an identical trunk edge set.
package topology

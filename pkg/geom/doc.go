// Package geom provides the geometric primitives used by the network
// planning pipeline: points and polylines in a projected (meters-based)
// reference frame, nearest-point projection, arclength-based polyline
// cutting, and coordinate rounding.
//
// All operations are pure functions of their inputs. Nothing in this
// package allocates shared state, so values can be freely reused across
// pipeline stages.
//
// # Projection
//
// [Polyline.Nearest] projects an arbitrary point onto a polyline and
// returns the closest point together with its distance and its arclength
// position along the line. This is the primitive behind building
// attachment: every building is projected onto every candidate street
// edge, and the globally nearest projection wins.
//
// # Cutting
//
// [Polyline.Cut] extracts the sub-polyline between two arclength
// positions, interpolating new endpoints inside segments where necessary.
// Cutting preserves the original curvature - sub-segments are never
// replaced by straight chords.
//
// # Rounding
//
// [RoundPoint] snaps coordinates to a fixed number of decimals. Rounded
// coordinates act as graph-node identities downstream: two points within
// rounding tolerance collapse to the same node, which prevents spurious
// micro-edges in the street graph.
package geom

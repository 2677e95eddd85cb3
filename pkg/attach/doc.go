// Package attach maps buildings onto the street graph.
//
// # Overview
//
// For every building the engine scans all graph edges, projects the
// building point onto each edge's geometry, and records the globally
// nearest edge together with the exact projection point. What happens
// next depends on the attachment policy:
//
//   - [ModeNearestNode]: the building attaches to whichever endpoint of
//     the nearest edge is closer to the projection. No graph mutation.
//     Many buildings attaching to one endpoint produce star-burst service
//     geometry; the mode is kept because it is cheap and predictable.
//   - [ModeSplitEdge]: every edge collects its projecting buildings and
//     is split into a chain of sub-segments at the projection points, so
//     each building gets its own attach node. Sub-segment geometry is cut
//     from the original polyline at the corresponding arclength
//     positions, preserving real street curvature; the original edge
//     length is redistributed proportionally.
//   - [ModeClustered]: like ModeSplitEdge, but buildings whose along-edge
//     positions fall within a minimum spacing are merged into one cluster
//     sharing a single attach node at the cluster's projection centroid.
//
// The scan is O(buildings x edges). Callers needing scale should
// pre-filter edges with a spatial index before invoking the engine; that
// is a performance concern, not a correctness one.
//
// # Ownership
//
// [Attach] never mutates its inputs: it clones the graph before splitting
// edges and returns owned building records. Each pipeline stage consumes
// the previous stage's output and produces a refined copy.
//
// # Failure modes
//
// A building with no graph edge within reach keeps a nil attach node and
// is reported in [Result.Unattached]. This is a data-quality condition,
// not an error - partial coverage is common with incomplete street data.
package attach

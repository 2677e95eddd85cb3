// Package hydraulic realizes a network plan as the junction/pipe model
// consumed by an external flow solver, and repairs topological
// conditions that would make that model numerically singular.
//
// # Realization
//
// [Realize] turns a frozen plan into a [Network]: one supply/return
// junction pair per trunk node and per building, one supply and one
// return pipe per trunk edge, a service pipe pair plus one
// cross-connecting pipe per building, and a plant circulation pipe.
// Estimated mass flows are aggregated over the plant's shortest-path
// tree and handed to the pipe-sizing collaborator before the solver
// ever runs.
//
// # Convergence optimization
//
// [Optimize] is heuristic damage control around an opaque external
// solver: it detects zero-cycle tree structures, symmetric parallel
// paths, disconnected junctions, sub-minimum pipe lengths and
// non-positive initial pressures, and applies the enabled fixes in a
// fixed priority order until validation passes or the iteration cap is
// reached. Every decision lands in the returned [Summary]; the
// optimizer never silently reclassifies a network.
//
// The solver itself is out of scope. [Solver] and [Sizer] are the
// in-process contracts to those collaborators.
package hydraulic

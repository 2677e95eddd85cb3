package hydraulic

import (
	"context"
	"math"
)

// SolveResult is the external solver's outcome: a convergence flag and
// result tables keyed by pipe/junction ID. The optimizer only ever
// inspects the flag; result tables pass through to the caller.
type SolveResult struct {
	Converged bool
	Velocity  map[string]float64 // m/s per pipe
	Pressure  map[string]float64 // bar per junction
	Temp      map[string]float64 // degC per junction
}

// Solver is the contract to the external hydraulic flow solver. The
// engine never inspects its iteration state.
type Solver interface {
	Solve(ctx context.Context, net *Network) (*SolveResult, error)
}

// Sizer is the contract to the pipe-sizing collaborator: estimated mass
// flow in, inner diameter out. Invoked after topology is frozen, before
// the solver runs.
type Sizer interface {
	Diameter(massFlowKgS float64) float64
}

// CatalogSizer picks the smallest catalog diameter keeping the design
// velocity under a limit.
type CatalogSizer struct {
	MaxVelocity float64   // m/s
	Diameters   []float64 // ascending inner diameters (m)
}

const waterDensity = 977.0 // kg/m3 at network temperature

// Diameter implements Sizer.
func (s CatalogSizer) Diameter(massFlowKgS float64) float64 {
	if len(s.Diameters) == 0 {
		return 0
	}
	for _, d := range s.Diameters {
		area := math.Pi * d * d / 4
		if massFlowKgS <= s.MaxVelocity*waterDensity*area {
			return d
		}
	}
	return s.Diameters[len(s.Diameters)-1]
}

// DefaultSizer is a DN25..DN300 catalog at 1.5 m/s.
func DefaultSizer() Sizer {
	return CatalogSizer{
		MaxVelocity: 1.5,
		Diameters: []float64{
			0.0273, 0.0372, 0.0431, 0.0545, 0.0703, 0.0825,
			0.1071, 0.1325, 0.1603, 0.2101, 0.263, 0.3127,
		},
	}
}

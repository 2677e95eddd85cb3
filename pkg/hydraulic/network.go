package hydraulic

import (
	"fmt"
	"slices"

	"github.com/heatgrid/heatgrid/pkg/errors"
	"github.com/heatgrid/heatgrid/pkg/geom"
	"github.com/heatgrid/heatgrid/pkg/street"
	"github.com/heatgrid/heatgrid/pkg/topology"
)

// PipeKind classifies a pipe's role in the network.
type PipeKind string

const (
	// PipeMain carries distribution flow along a trunk edge.
	PipeMain PipeKind = "main"

	// PipeService connects a building to its attach node.
	PipeService PipeKind = "service"

	// PipeCross closes the circuit through a building's heat exchanger.
	PipeCross PipeKind = "cross"

	// PipePlant is the circulation connection at the plant.
	PipePlant PipeKind = "plant"

	// PipeLoop is an artificial high-resistance loop injected by the
	// optimizer. Exempt from the normal-pipe checks.
	PipeLoop PipeKind = "loop"

	// PipeVirtual reconnects an otherwise unreachable junction. Exempt
	// from the normal-pipe checks.
	PipeVirtual PipeKind = "virtual"
)

// Normal reports whether the pipe represents real infrastructure, as
// opposed to an artificial stabilization pipe.
func (k PipeKind) Normal() bool { return k != PipeLoop && k != PipeVirtual }

// Junction is one hydraulic node. Every physical location carries a
// supply and a return junction.
type Junction struct {
	ID       string     `json:"id"`
	Point    geom.Point `json:"point"`
	Supply   bool       `json:"supply"`
	Building string     `json:"building,omitempty"` // building ID for consumer junctions
	Pressure float64    `json:"pressure_bar"`       // initial hint for the solver
}

// Pipe is one directed flow segment between two junctions.
type Pipe struct {
	ID        string   `json:"id"`
	From      string   `json:"from"`
	To        string   `json:"to"`
	Kind      PipeKind `json:"kind"`
	Length    float64  `json:"length_m"`
	Diameter  float64  `json:"diameter_m"`
	Roughness float64  `json:"roughness_mm"`
	MassFlow  float64  `json:"mass_flow_kg_s"` // design estimate, set at realization
}

// Network is the realized hydraulic model. Junction and pipe order is
// the construction order, which is deterministic for identical plans.
type Network struct {
	Junctions []*Junction
	Pipes     []*Pipe

	PlantSupply string
	PlantReturn string

	byID map[string]*Junction
}

// NewNetwork returns an empty network.
func NewNetwork() *Network {
	return &Network{byID: map[string]*Junction{}}
}

// AssembleNetwork rebuilds a network from previously exported junctions
// and pipes, restoring the junction index. Pipes referencing unknown
// junctions and missing plant junctions are input errors.
func AssembleNetwork(junctions []*Junction, pipes []*Pipe, plantSupply, plantReturn string) (*Network, error) {
	net := NewNetwork()
	net.PlantSupply = plantSupply
	net.PlantReturn = plantReturn
	for _, j := range junctions {
		net.AddJunction(j)
	}
	for _, id := range []string{plantSupply, plantReturn} {
		if _, ok := net.byID[id]; !ok {
			return nil, errors.New(errors.ErrCodeInvalidInput,
				"plant junction %q is not in the network", id)
		}
	}
	for _, p := range pipes {
		for _, id := range []string{p.From, p.To} {
			if _, ok := net.byID[id]; !ok {
				return nil, errors.New(errors.ErrCodeInvalidInput,
					"pipe %q references unknown junction %q", p.ID, id)
			}
		}
		net.AddPipe(p)
	}
	return net, nil
}

// Junction returns the junction with the given ID.
func (n *Network) Junction(id string) (*Junction, bool) {
	j, ok := n.byID[id]
	return j, ok
}

// AddJunction inserts a junction, keeping the first on duplicate IDs.
func (n *Network) AddJunction(j *Junction) *Junction {
	if cur, ok := n.byID[j.ID]; ok {
		return cur
	}
	n.Junctions = append(n.Junctions, j)
	n.byID[j.ID] = j
	return j
}

// AddPipe appends a pipe, assigning a sequential ID when none is set.
func (n *Network) AddPipe(p *Pipe) *Pipe {
	if p.ID == "" {
		p.ID = fmt.Sprintf("pipe-%04d", len(n.Pipes))
	}
	n.Pipes = append(n.Pipes, p)
	return p
}

// adjacency builds an undirected neighbor map over the pipes accepted by
// keep (nil keeps all). Neighbor lists are sorted for deterministic
// traversal.
func (n *Network) adjacency(keep func(*Pipe) bool) map[string][]string {
	adj := map[string][]string{}
	for _, p := range n.Pipes {
		if keep != nil && !keep(p) {
			continue
		}
		adj[p.From] = append(adj[p.From], p.To)
		adj[p.To] = append(adj[p.To], p.From)
	}
	for _, ns := range adj {
		slices.Sort(ns)
	}
	return adj
}

// Water properties used for the design mass-flow estimate.
const (
	waterHeatCapacity = 4.19 // kJ/(kg K)
	designDeltaT      = 30.0 // K spread between supply and return
)

// massFlow converts a thermal load in kW to a water mass flow in kg/s.
func massFlow(loadKW float64) float64 {
	return loadKW / (waterHeatCapacity * designDeltaT)
}

// RealizeOptions configures network realization.
type RealizeOptions struct {
	SupplyPressure float64 // initial supply-side pressure hint (bar)
	ReturnPressure float64 // initial return-side pressure hint (bar)
	Roughness      float64 // pipe roughness for real pipes (mm)
	CrossLength    float64 // nominal length of building cross connections (m)
	Sizer          Sizer   // diameter lookup; nil uses DefaultSizer()
}

// DefaultRealizeOptions are the realization defaults: 6/3 bar pressure
// hints, steel-pipe roughness, 1 m cross connections.
func DefaultRealizeOptions() RealizeOptions {
	return RealizeOptions{
		SupplyPressure: 6.0,
		ReturnPressure: 3.0,
		Roughness:      0.045,
		CrossLength:    1.0,
	}
}

func supplyID(c street.Coordinate) string { return fmt.Sprintf("s:%g,%g", c.X, c.Y) }
func returnID(c street.Coordinate) string { return fmt.Sprintf("r:%g,%g", c.X, c.Y) }

// Realize turns a plan into the hydraulic network handed to the solver.
// The plan is not mutated; the returned network is owned by the caller.
func Realize(plan *topology.Plan, opts RealizeOptions) (*Network, error) {
	if opts.Sizer == nil {
		opts.Sizer = DefaultSizer()
	}
	net := NewNetwork()
	net.PlantSupply = supplyID(plan.Plant)
	net.PlantReturn = returnID(plan.Plant)

	for _, c := range plan.Graph.Nodes() {
		net.AddJunction(&Junction{ID: supplyID(c), Point: c.Point(), Supply: true, Pressure: opts.SupplyPressure})
		net.AddJunction(&Junction{ID: returnID(c), Point: c.Point(), Pressure: opts.ReturnPressure})
	}

	// Design flows: each trunk edge carries the summed load of every
	// building whose plant path crosses it.
	flows, err := edgeFlows(plan)
	if err != nil {
		return nil, err
	}

	for _, e := range plan.Graph.Edges() {
		f := flows[e.Key()]
		net.AddPipe(&Pipe{
			From: supplyID(e.A), To: supplyID(e.B), Kind: PipeMain,
			Length: e.Length, Roughness: opts.Roughness,
			Diameter: opts.Sizer.Diameter(f), MassFlow: f,
		})
		net.AddPipe(&Pipe{
			From: returnID(e.B), To: returnID(e.A), Kind: PipeMain,
			Length: e.Length, Roughness: opts.Roughness,
			Diameter: opts.Sizer.Diameter(f), MassFlow: f,
		})
	}

	for i := range plan.Buildings {
		b := &plan.Buildings[i]
		if !b.Attached() {
			continue
		}
		f := massFlow(b.Load())
		bs := net.AddJunction(&Junction{
			ID: "bs:" + b.ID, Point: b.Point, Supply: true,
			Building: b.ID, Pressure: opts.SupplyPressure,
		})
		br := net.AddJunction(&Junction{
			ID: "br:" + b.ID, Point: b.Point,
			Building: b.ID, Pressure: opts.ReturnPressure,
		})
		length := b.ServiceLength
		if length <= 0 {
			length = opts.CrossLength
		}
		net.AddPipe(&Pipe{
			From: supplyID(*b.AttachNode), To: bs.ID, Kind: PipeService,
			Length: length, Roughness: opts.Roughness,
			Diameter: opts.Sizer.Diameter(f), MassFlow: f,
		})
		net.AddPipe(&Pipe{
			From: br.ID, To: returnID(*b.AttachNode), Kind: PipeService,
			Length: length, Roughness: opts.Roughness,
			Diameter: opts.Sizer.Diameter(f), MassFlow: f,
		})
		net.AddPipe(&Pipe{
			From: bs.ID, To: br.ID, Kind: PipeCross,
			Length: opts.CrossLength, Roughness: opts.Roughness,
			Diameter: opts.Sizer.Diameter(f), MassFlow: f,
		})
	}

	total := flows[street.EdgeKey{}] // aggregate plant flow, see edgeFlows
	net.AddPipe(&Pipe{
		From: net.PlantReturn, To: net.PlantSupply, Kind: PipePlant,
		Length: opts.CrossLength, Roughness: opts.Roughness,
		Diameter: opts.Sizer.Diameter(total), MassFlow: total,
	})
	return net, nil
}

// edgeFlows aggregates building design flows over the plant's
// shortest-path tree. The zero EdgeKey accumulates the total plant flow.
func edgeFlows(plan *topology.Plan) (map[street.EdgeKey]float64, error) {
	flows := map[street.EdgeKey]float64{}
	tree, err := street.ShortestPaths(plan.Graph, plan.Plant, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "flow aggregation from plant %v", plan.Plant)
	}
	for i := range plan.Buildings {
		b := &plan.Buildings[i]
		if !b.Attached() {
			continue
		}
		path, err := tree.PathTo(*b.AttachNode)
		if err != nil {
			return nil, errors.New(errors.ErrCodeTopologyUnreachable,
				"building %q attach node %v unreachable during flow aggregation", b.ID, *b.AttachNode).
				WithDetail("building", b.ID)
		}
		f := massFlow(b.Load())
		for j := 1; j < len(path); j++ {
			flows[street.NewEdgeKey(path[j-1], path[j])] += f
		}
		flows[street.EdgeKey{}] += f
	}
	return flows, nil
}

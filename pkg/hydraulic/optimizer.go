package hydraulic

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/google/uuid"
)

// State is the optimizer's position in its validate/repair cycle.
type State string

const (
	StateUnvalidated State = "unvalidated"
	StateValidating  State = "validating"
	StateRepairing   State = "repairing"
	StateValid       State = "valid"
	StateExhausted   State = "max-iterations-exhausted"
)

// OptimizerOptions configures the convergence optimizer. All randomness
// flows from Seed; two runs with the same seed and network apply
// identical perturbations.
type OptimizerOptions struct {
	MaxIterations int
	MinPipeLength float64 // pipes below this are lengthened (m)
	RoughnessPct  float64 // symmetry-breaking roughness variation (percent)
	Seed          uint64

	MinPressure      float64 // floor for re-initialized pressures (bar)
	StartPressure    float64 // supply-side pressure at the plant (bar)
	PressureGradient float64 // pressure drop per meter of path distance (bar/m)

	LoopPipeLength float64 // length of artificial loop/virtual pipes (m)
	LoopRoughness  float64 // roughness of artificial pipes (mm)
	LoopDiameter   float64 // diameter of artificial pipes (m)

	FixLoops        bool
	FixRoughness    bool
	FixPressures    bool
	FixLengths      bool
	FixDisconnected bool
}

// DefaultOptimizerOptions are the optimizer defaults with every fix
// enabled.
func DefaultOptimizerOptions() OptimizerOptions {
	return OptimizerOptions{
		MaxIterations:    5,
		MinPipeLength:    1.0,
		RoughnessPct:     5.0,
		Seed:             1,
		MinPressure:      1.0,
		StartPressure:    6.0,
		PressureGradient: 0.0005,
		LoopPipeLength:   0.1,
		LoopRoughness:    50.0,
		LoopDiameter:     0.01,
		FixLoops:         true,
		FixRoughness:     true,
		FixPressures:     true,
		FixLengths:       true,
		FixDisconnected:  true,
	}
}

// Checks holds one validation pass over the network.
type Checks struct {
	ParallelPathScore float64 `json:"parallel_path_score"` // fraction of sinks with >1 simple path from the plant
	LoopCount         int     `json:"loop_count"`
	DisconnectedCount int     `json:"disconnected_count"`
	ShortPipeCount    int     `json:"short_pipe_count"`
	BadPressureCount  int     `json:"bad_pressure_count"`
}

// FixCounts tallies the repairs applied in one iteration.
type FixCounts struct {
	LoopsInjected   int `json:"loops_injected"`
	PipesPerturbed  int `json:"pipes_perturbed"`
	PressuresReset  int `json:"pressures_reset"`
	PipesLengthened int `json:"pipes_lengthened"`
	VirtualPipes    int `json:"virtual_pipes"`
}

func (f FixCounts) total() int {
	return f.LoopsInjected + f.PipesPerturbed + f.PressuresReset + f.PipesLengthened + f.VirtualPipes
}

// Iteration is one validate/repair round.
type Iteration struct {
	Checks Checks    `json:"checks"`
	Fixes  FixCounts `json:"fixes"`
}

// Summary is the optimizer's structured outcome. A network that still
// fails validation after the iteration cap is reported with Valid=false
// rather than an error; the caller may hand it to the solver anyway and
// inspect real convergence.
type Summary struct {
	RunID      uuid.UUID   `json:"run_id"`
	State      State       `json:"state"`
	Valid      bool        `json:"valid"`
	Iterations []Iteration `json:"iterations"`
	TotalFixes int         `json:"total_fixes"`
}

// Optimize validates the network and repairs whatever the enabled fixes
// can reach, in a fixed priority order: loop injection, roughness
// perturbation, pressure re-initialization, short-pipe lengthening,
// virtual pipes for disconnected junctions. The network is mutated in
// place; it is the only stage that touches the realized model.
func Optimize(net *Network, opts OptimizerOptions) *Summary {
	sum := &Summary{RunID: uuid.New(), State: StateUnvalidated}
	rng := rand.New(rand.NewPCG(opts.Seed, 0))

	for iter := 0; ; iter++ {
		sum.State = StateValidating
		ch := runChecks(net, opts)
		it := Iteration{Checks: ch}

		if passes(net, ch) {
			sum.Iterations = append(sum.Iterations, it)
			sum.State = StateValid
			sum.Valid = true
			return sum
		}
		if iter >= opts.MaxIterations {
			sum.Iterations = append(sum.Iterations, it)
			sum.State = StateExhausted
			return sum
		}

		sum.State = StateRepairing
		if opts.FixLoops && ch.LoopCount == 0 {
			if injectLoop(net, opts) {
				it.Fixes.LoopsInjected++
			}
		}
		if opts.FixRoughness && ch.ParallelPathScore > 0 && symmetricRoughness(net) {
			it.Fixes.PipesPerturbed = perturbRoughness(net, rng, opts.RoughnessPct)
		}
		if opts.FixPressures {
			it.Fixes.PressuresReset = reinitPressures(net, opts)
		}
		if opts.FixLengths && ch.ShortPipeCount > 0 {
			it.Fixes.PipesLengthened = lengthenShortPipes(net, opts.MinPipeLength)
		}
		if opts.FixDisconnected && ch.DisconnectedCount > 0 {
			it.Fixes.VirtualPipes = connectDisconnected(net, opts)
		}
		sum.TotalFixes += it.Fixes.total()
		sum.Iterations = append(sum.Iterations, it)
	}
}

// passes reports whether every check is clean. A positive parallel-path
// score only fails validation while pipe resistances are still exactly
// symmetric; once perturbed, parallel paths are no longer degenerate.
func passes(net *Network, ch Checks) bool {
	if ch.LoopCount == 0 || ch.DisconnectedCount > 0 || ch.ShortPipeCount > 0 || ch.BadPressureCount > 0 {
		return false
	}
	return ch.ParallelPathScore == 0 || !symmetricRoughness(net)
}

func runChecks(net *Network, opts OptimizerOptions) Checks {
	return Checks{
		ParallelPathScore: parallelPathScore(net),
		LoopCount:         loopCount(net),
		DisconnectedCount: disconnectedCount(net),
		ShortPipeCount:    shortPipeCount(net, opts.MinPipeLength),
		BadPressureCount:  badPressureCount(net),
	}
}

// supplySide reports whether both of the pipe's junctions sit on the
// supply side.
func (n *Network) supplySide(p *Pipe) bool {
	a, okA := n.Junction(p.From)
	b, okB := n.Junction(p.To)
	return okA && okB && a.Supply && b.Supply
}

// arc is one directed half of a pipe in an adjacency list.
type arc struct {
	to   string
	pipe int // index into net.Pipes
}

func (n *Network) arcs(keep func(*Pipe) bool) map[string][]arc {
	adj := map[string][]arc{}
	for i, p := range n.Pipes {
		if keep != nil && !keep(p) {
			continue
		}
		adj[p.From] = append(adj[p.From], arc{to: p.To, pipe: i})
		adj[p.To] = append(adj[p.To], arc{to: p.From, pipe: i})
	}
	for _, as := range adj {
		slices.SortFunc(as, func(a, b arc) int {
			if a.to != b.to {
				if a.to < b.to {
					return -1
				}
				return 1
			}
			return a.pipe - b.pipe
		})
	}
	return adj
}

// parallelPathScore is the fraction of building supply junctions with
// more than one simple path from the plant over supply-side mains and
// services. A sink has exactly one simple path iff every edge on its
// plant path is a bridge, so the score falls out of a bridge
// decomposition. Artificial pipes are exempt.
func parallelPathScore(net *Network) float64 {
	keep := func(p *Pipe) bool {
		return (p.Kind == PipeMain || p.Kind == PipeService) && net.supplySide(p)
	}
	adj := net.arcs(keep)
	br := bridges(adj, net.PlantSupply)

	reachAll := reachable(adj, net.PlantSupply, nil)
	reachBridges := reachable(adj, net.PlantSupply, br)

	total, multi := 0, 0
	for _, j := range net.Junctions {
		if j.Building == "" || !j.Supply || !reachAll[j.ID] {
			continue
		}
		total++
		if !reachBridges[j.ID] {
			multi++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(multi) / float64(total)
}

// bridges runs Tarjan's bridge finding from root, returning the pipe
// indices of all bridge edges. Parallel pipes between the same pair are
// handled by pipe identity, not parent node.
func bridges(adj map[string][]arc, root string) map[int]bool {
	disc := map[string]int{}
	low := map[string]int{}
	out := map[int]bool{}
	timer := 0

	var dfs func(node string, inPipe int)
	dfs = func(node string, inPipe int) {
		timer++
		disc[node] = timer
		low[node] = timer
		for _, a := range adj[node] {
			if a.pipe == inPipe {
				continue
			}
			if _, seen := disc[a.to]; seen {
				if disc[a.to] < low[node] {
					low[node] = disc[a.to]
				}
				continue
			}
			dfs(a.to, a.pipe)
			if low[a.to] < low[node] {
				low[node] = low[a.to]
			}
			if low[a.to] > disc[node] {
				out[a.pipe] = true
			}
		}
	}
	dfs(root, -1)
	return out
}

// reachable BFS-walks adj from root. When restrict is non-nil, only
// pipes in the restrict set are traversable.
func reachable(adj map[string][]arc, root string, restrict map[int]bool) map[string]bool {
	seen := map[string]bool{root: true}
	queue := []string{root}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, a := range adj[node] {
			if restrict != nil && !restrict[a.pipe] {
				continue
			}
			if !seen[a.to] {
				seen[a.to] = true
				queue = append(queue, a.to)
			}
		}
	}
	return seen
}

// loopCount is the cycle-basis size of the supply circuit (mains,
// services and injected loop pipes): pipes - junctions + components.
func loopCount(net *Network) int {
	keep := func(p *Pipe) bool {
		return p.Kind == PipeLoop || ((p.Kind == PipeMain || p.Kind == PipeService) && net.supplySide(p))
	}
	pipes := 0
	nodes := map[string]bool{}
	adj := net.arcs(keep)
	for _, p := range net.Pipes {
		if keep(p) {
			pipes++
			nodes[p.From] = true
			nodes[p.To] = true
		}
	}
	comps := 0
	seen := map[string]bool{}
	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if seen[id] {
			continue
		}
		comps++
		for n := range reachable(adj, id, nil) {
			seen[n] = true
		}
	}
	return pipes - len(nodes) + comps
}

// disconnectedCount counts junctions unreachable from the plant over
// any pipe.
func disconnectedCount(net *Network) int {
	reach := reachable(net.arcs(nil), net.PlantSupply, nil)
	n := 0
	for _, j := range net.Junctions {
		if !reach[j.ID] {
			n++
		}
	}
	return n
}

func shortPipeCount(net *Network, minLength float64) int {
	n := 0
	for _, p := range net.Pipes {
		if p.Kind.Normal() && p.Length < minLength {
			n++
		}
	}
	return n
}

func badPressureCount(net *Network) int {
	n := 0
	for _, j := range net.Junctions {
		if j.Pressure <= 0 {
			n++
		}
	}
	return n
}

// symmetricRoughness reports whether every normal pipe still carries an
// identical roughness value, the degenerate configuration that keeps
// parallel paths exactly balanced.
func symmetricRoughness(net *Network) bool {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range net.Pipes {
		if !p.Kind.Normal() {
			continue
		}
		lo = math.Min(lo, p.Roughness)
		hi = math.Max(hi, p.Roughness)
	}
	return !(hi-lo > 1e-12)
}

// injectLoop adds one minimal artificial loop: the two sinks farthest
// (by hop count) from the plant are connected through two very short
// high-resistance pipes and one high-resistance bridging pipe. The loop
// carries negligible real flow but removes the pure-tree singularity.
func injectLoop(net *Network, opts OptimizerOptions) bool {
	keep := func(p *Pipe) bool {
		return (p.Kind == PipeMain || p.Kind == PipeService) && net.supplySide(p)
	}
	adj := net.arcs(keep)
	hops := map[string]int{net.PlantSupply: 0}
	queue := []string{net.PlantSupply}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, a := range adj[node] {
			if _, ok := hops[a.to]; !ok {
				hops[a.to] = hops[node] + 1
				queue = append(queue, a.to)
			}
		}
	}

	// Sinks preferred; any reachable supply junction as fallback.
	var candidates []string
	for _, j := range net.Junctions {
		if j.Building != "" && j.Supply && hops[j.ID] > 0 {
			candidates = append(candidates, j.ID)
		}
	}
	if len(candidates) < 2 {
		candidates = candidates[:0]
		for _, j := range net.Junctions {
			if j.Supply && hops[j.ID] > 0 {
				candidates = append(candidates, j.ID)
			}
		}
	}
	if len(candidates) < 2 {
		return false
	}
	slices.SortFunc(candidates, func(a, b string) int {
		if hops[a] != hops[b] {
			return hops[b] - hops[a] // farthest first
		}
		if a < b {
			return -1
		}
		return 1
	})
	s1, _ := net.Junction(candidates[0])
	s2, _ := net.Junction(candidates[1])

	n := 0
	for _, j := range net.Junctions {
		if len(j.ID) > 3 && j.ID[:3] == "lj:" {
			n++
		}
	}
	l1 := net.AddJunction(&Junction{ID: loopJunctionID(n), Point: s1.Point, Supply: true, Pressure: s1.Pressure})
	l2 := net.AddJunction(&Junction{ID: loopJunctionID(n + 1), Point: s2.Point, Supply: true, Pressure: s2.Pressure})

	artificial := func(from, to string) *Pipe {
		return &Pipe{
			From: from, To: to, Kind: PipeLoop,
			Length: opts.LoopPipeLength, Roughness: opts.LoopRoughness,
			Diameter: opts.LoopDiameter,
		}
	}
	net.AddPipe(artificial(s1.ID, l1.ID))
	net.AddPipe(artificial(s2.ID, l2.ID))
	net.AddPipe(artificial(l1.ID, l2.ID))
	return true
}

func loopJunctionID(n int) string { return fmt.Sprintf("lj:%02d", n) }

// perturbRoughness breaks exact resistance symmetry with a small seeded
// variation on every normal pipe. Artificial pipes keep their high
// resistance untouched.
func perturbRoughness(net *Network, rng *rand.Rand, pct float64) int {
	n := 0
	for _, p := range net.Pipes {
		if !p.Kind.Normal() {
			continue
		}
		p.Roughness *= 1 + pct/100*(2*rng.Float64()-1)
		n++
	}
	return n
}

// reinitPressures recomputes every junction's initial pressure as a
// monotonically decreasing function of its path distance from the
// plant, floored at the safety minimum. Unreachable junctions get the
// floor.
func reinitPressures(net *Network, opts OptimizerOptions) int {
	dist := pathDistances(net)
	returnBase := math.Max(opts.MinPressure, opts.StartPressure/2)
	for _, j := range net.Junctions {
		base := opts.StartPressure
		if !j.Supply {
			base = returnBase
		}
		d, ok := dist[j.ID]
		if !ok {
			j.Pressure = opts.MinPressure
			continue
		}
		j.Pressure = math.Max(opts.MinPressure, base-opts.PressureGradient*d)
	}
	return len(net.Junctions)
}

// pathDistances is length-weighted Dijkstra over all pipes from both
// plant junctions. Linear-scan extraction with ID tie-breaks keeps it
// deterministic; networks are small enough that the quadratic bound is
// irrelevant.
func pathDistances(net *Network) map[string]float64 {
	adj := net.arcs(nil)
	dist := map[string]float64{}
	if _, ok := net.Junction(net.PlantSupply); ok {
		dist[net.PlantSupply] = 0
	}
	if _, ok := net.Junction(net.PlantReturn); ok {
		dist[net.PlantReturn] = 0
	}
	done := map[string]bool{}
	for {
		cur, found := "", false
		for id, d := range dist {
			if done[id] {
				continue
			}
			if !found || d < dist[cur] || (d == dist[cur] && id < cur) {
				cur, found = id, true
			}
		}
		if !found {
			return dist
		}
		done[cur] = true
		for _, a := range adj[cur] {
			next := dist[cur] + net.Pipes[a.pipe].Length
			if d, ok := dist[a.to]; !ok || next < d {
				dist[a.to] = next
			}
		}
	}
}

// lengthenShortPipes raises every normal pipe to the minimum length.
func lengthenShortPipes(net *Network, minLength float64) int {
	n := 0
	for _, p := range net.Pipes {
		if p.Kind.Normal() && p.Length < minLength {
			p.Length = minLength
			n++
		}
	}
	return n
}

// connectDisconnected ties every unreachable junction back to the plant
// with one high-resistance virtual pipe.
func connectDisconnected(net *Network, opts OptimizerOptions) int {
	reach := reachable(net.arcs(nil), net.PlantSupply, nil)
	n := 0
	for _, j := range net.Junctions {
		if reach[j.ID] {
			continue
		}
		net.AddPipe(&Pipe{
			From: j.ID, To: net.PlantSupply, Kind: PipeVirtual,
			Length: opts.LoopPipeLength, Roughness: opts.LoopRoughness,
			Diameter: opts.LoopDiameter,
		})
		n++
	}
	return n
}

package topology

import (
	"slices"

	"github.com/heatgrid/heatgrid/pkg/attach"
	"github.com/heatgrid/heatgrid/pkg/errors"
	"github.com/heatgrid/heatgrid/pkg/street"
)

// Selection is the outcome of dominant-component filtering: the induced
// subgraph of the winning component, the buildings attached inside it,
// and the IDs of buildings that were dropped.
type Selection struct {
	Graph      *street.Graph
	Buildings  []attach.Building
	Dropped    []string // attached outside the winning component, or unattached
	Components int      // component count of the input graph
}

// SelectComponent keeps the connected component containing the most
// attached buildings and discards the rest. Components are ranked in
// canonical order (sorted by minimum member coordinate), so an exact tie
// resolves to the same winner on every run. With a single component the
// graph passes through intact; unattached buildings are dropped either
// way.
func SelectComponent(g *street.Graph, buildings []attach.Building) (Selection, error) {
	comps := street.Components(g)
	counts := make([]int, len(comps))
	membership := make(map[street.Coordinate]int, g.NodeCount())
	for i, comp := range comps {
		for _, c := range comp {
			membership[c] = i
		}
	}
	for i := range buildings {
		if b := &buildings[i]; b.Attached() {
			if ci, ok := membership[*b.AttachNode]; ok {
				counts[ci]++
			}
		}
	}

	winner, best := -1, 0
	for i, n := range counts {
		if n > best {
			winner, best = i, n
		}
	}
	if winner < 0 {
		return Selection{}, errors.New(errors.ErrCodeNoAttachable,
			"no building is attached to any street component (%d components, %d buildings)",
			len(comps), len(buildings))
	}

	sel := Selection{Components: len(comps)}
	if len(comps) == 1 {
		sel.Graph = g.Clone()
	} else {
		inComp := make(map[street.Coordinate]bool, len(comps[winner]))
		for _, c := range comps[winner] {
			inComp[c] = true
		}
		var keys []street.EdgeKey
		for _, e := range g.Edges() {
			if inComp[e.A] && inComp[e.B] {
				keys = append(keys, e.Key())
			}
		}
		sel.Graph = g.Subgraph(keys)
	}

	for i := range buildings {
		b := buildings[i]
		if b.Attached() {
			if ci, ok := membership[*b.AttachNode]; ok && ci == winner {
				sel.Buildings = append(sel.Buildings, b)
				continue
			}
		}
		sel.Dropped = append(sel.Dropped, b.ID)
	}
	slices.Sort(sel.Dropped)
	return sel, nil
}

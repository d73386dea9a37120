package routing

import (
	"github.com/pkg/errors"

	"github.com/azybler/road_router/pkg/graph"
	"github.com/azybler/road_router/pkg/weight"
)

const maxUnpackDepth = 200

// ErrBrokenPath is returned when a hierarchy path references an edge the
// contracted graph does not have.
var ErrBrokenPath = errors.New("hierarchy path cannot be unpacked")

// unpackPath expands every shortcut of a hierarchy path into the original
// vertex sequence.
func unpackPath[T any](g *graph.DirectedMeta, h weight.Handler[T], path []uint32) ([]uint32, error) {
	if len(path) < 2 {
		return path, nil
	}
	result := []uint32{path[0]}
	for i := 0; i < len(path)-1; i++ {
		hop, err := unpackHop(g, h, path[i], path[i+1])
		if err != nil {
			return nil, err
		}
		result = append(result, hop[1:]...)
	}
	return result, nil
}

// unpackHop expands a single hop from->to using an explicit stack.
func unpackHop[T any](g *graph.DirectedMeta, h weight.Handler[T], from, to uint32) ([]uint32, error) {
	type item struct {
		from, to uint32
		depth    int
	}

	e := g.GetEdgeEnumerator()
	stack := []item{{from, to, 0}}
	result := []uint32{from}

	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if it.depth > maxUnpackDepth {
			return nil, errors.Wrapf(ErrBrokenPath, "%d->%d nests deeper than %d", from, to, maxUnpackDepth)
		}
		via, ok := hierarchyEdge(e, h, it.from, it.to)
		if !ok {
			return nil, errors.Wrapf(ErrBrokenPath, "no edge %d->%d", it.from, it.to)
		}
		if via == graph.NoVertex {
			result = append(result, it.to)
			continue
		}
		// Right half first so the left half is expanded first.
		stack = append(stack, item{via, it.to, it.depth + 1}, item{it.from, via, it.depth + 1})
	}
	return result, nil
}

// hierarchyEdge returns the via vertex of the cheapest edge usable from->to.
// The edge is stored at whichever end has the lower rank: at from flagged
// forward, or at to flagged backward.
func hierarchyEdge[T any](e *graph.MetaEnumerator, h weight.Handler[T], from, to uint32) (via uint32, ok bool) {
	var best T
	scan := func(v, n uint32, usable func(weight.Direction) bool) {
		if !e.MoveTo(v) {
			return
		}
		for e.MoveNext() {
			if e.Neighbour() != n {
				continue
			}
			w, dir := h.EdgeWeight(e.FixedData())
			if !usable(dir) {
				continue
			}
			if !ok || h.IsSmallerThan(w, best) {
				best, via, ok = w, e.Meta(0), true
			}
		}
	}
	scan(from, to, weight.Direction.Forward)
	scan(to, from, weight.Direction.Backward)
	return via, ok
}

package ch

import (
	"github.com/azybler/road_router/pkg/graph"
	"github.com/azybler/road_router/pkg/weight"
)

// Edge is a live edge of the vertex being evaluated.
type Edge[T any] struct {
	Neighbour uint32
	Weight    T
	Direction weight.Direction
}

// Shortcut is a candidate edge between two neighbours A < B of a contracted
// vertex. Forward is the weight from A to B, Backward from B to A.
type Shortcut[T any] struct {
	A, B          uint32
	Forward       T
	Backward      T
	ForwardValid  bool
	BackwardValid bool
}

// VertexInfo is the scratch state for evaluating one vertex: its live edges,
// the shortcuts contracting it would need and its priority inputs.
type VertexInfo[T any] struct {
	Vertex               uint32
	ContractedNeighbours int
	Depth                int
	Edges                []Edge[T]
	Shortcuts            []Shortcut[T]

	index map[uint64]int
}

func pairKey(a, b uint32) uint64 { return uint64(a)<<32 | uint64(b) }

// Load resets the info to vertex and collects its edges to uncontracted
// neighbours.
func (vi *VertexInfo[T]) Load(g *graph.DirectedMeta, h weight.Handler[T], vertex uint32, contracted []bool) {
	vi.Vertex = vertex
	vi.Edges = vi.Edges[:0]
	vi.Shortcuts = vi.Shortcuts[:0]
	e := g.Graph().GetEdgeEnumerator()
	if !e.MoveTo(vertex) {
		return
	}
	for e.MoveNext() {
		n := e.Neighbour()
		if int(n) < len(contracted) && contracted[n] {
			continue
		}
		w, dir := h.EdgeWeight(e.FixedData())
		vi.Edges = append(vi.Edges, Edge[T]{Neighbour: n, Weight: w, Direction: dir})
	}
}

// BuildShortcuts derives one candidate per neighbour pair from the loaded
// edges, keeping the cheapest weight per direction.
func (vi *VertexInfo[T]) BuildShortcuts(h weight.Handler[T]) {
	if vi.index == nil {
		vi.index = make(map[uint64]int)
	}
	clear(vi.index)
	vi.Shortcuts = vi.Shortcuts[:0]

	for _, in := range vi.Edges {
		if !in.Direction.Backward() {
			continue // in.Neighbour cannot reach the vertex over this edge
		}
		for _, out := range vi.Edges {
			if !out.Direction.Forward() || out.Neighbour == in.Neighbour {
				continue
			}
			w := h.Add(in.Weight, out.Weight)
			a, b := in.Neighbour, out.Neighbour
			forward := a < b
			if !forward {
				a, b = b, a
			}

			i, ok := vi.index[pairKey(a, b)]
			if !ok {
				i = len(vi.Shortcuts)
				vi.index[pairKey(a, b)] = i
				vi.Shortcuts = append(vi.Shortcuts, Shortcut[T]{A: a, B: b})
			}
			s := &vi.Shortcuts[i]
			if forward {
				if !s.ForwardValid || h.IsSmallerThan(w, s.Forward) {
					s.Forward, s.ForwardValid = w, true
				}
			} else if !s.BackwardValid || h.IsSmallerThan(w, s.Backward) {
				s.Backward, s.BackwardValid = w, true
			}
		}
	}
}

// RemoveWitnessed drops every shortcut direction for which wg knows a path
// at least as good.
func (vi *VertexInfo[T]) RemoveWitnessed(h weight.Handler[T], wg *WitnessGraph) {
	kept := vi.Shortcuts[:0]
	for _, s := range vi.Shortcuts {
		if s.ForwardValid {
			if m, ok := wg.Get(s.A, s.B); ok && m <= h.GetMetric(s.Forward) {
				s.ForwardValid = false
			}
		}
		if s.BackwardValid {
			if m, ok := wg.Get(s.B, s.A); ok && m <= h.GetMetric(s.Backward) {
				s.BackwardValid = false
			}
		}
		if s.ForwardValid || s.BackwardValid {
			kept = append(kept, s)
		}
	}
	vi.Shortcuts = kept
}

// Added returns the number of directed edges the shortcuts would insert,
// counting both stored ends of each.
func (vi *VertexInfo[T]) Added(h weight.Handler[T]) int {
	added := 0
	for _, s := range vi.Shortcuts {
		switch {
		case s.ForwardValid && s.BackwardValid && h.Equal(s.Forward, s.Backward):
			added += 2
		case s.ForwardValid && s.BackwardValid:
			added += 4
		default:
			added += 2
		}
	}
	return added
}

// Neighbours returns the distinct neighbours of the vertex.
func (vi *VertexInfo[T]) Neighbours() []uint32 {
	var out []uint32
	for _, e := range vi.Edges {
		seen := false
		for _, n := range out {
			if n == e.Neighbour {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, e.Neighbour)
		}
	}
	return out
}

// Priority orders vertices for contraction; lower is contracted sooner.
func (vi *VertexInfo[T]) Priority(h weight.Handler[T], cfg Config) float32 {
	diff := float32(vi.Added(h) - len(vi.Edges))
	return diff*cfg.DifferenceFactor +
		float32(vi.ContractedNeighbours)*cfg.ContractedFactor +
		float32(vi.Depth)*cfg.DepthFactor
}

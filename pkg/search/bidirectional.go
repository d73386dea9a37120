package search

import (
	"context"

	"github.com/azybler/road_router/pkg/graph"
	"github.com/azybler/road_router/pkg/weight"
)

// Bidirectional runs a forward search from the source and a backward search
// from the target over a contracted graph and meets in the middle.
type Bidirectional[T any] struct {
	h   weight.Handler[T]
	fwd *Dykstra[T]
	bwd *Dykstra[T]

	best       T
	bestVertex uint32
	found      bool
	ran        bool
}

// NewBidirectional creates a query from source to target. opts apply to
// both directions.
func NewBidirectional[T any](g *graph.DirectedMeta, h weight.Handler[T], source, target Source[T], opts ...Option[T]) *Bidirectional[T] {
	return Combine(h,
		NewDykstra(g, h, source, false, opts...),
		NewDykstra(g, h, target, true, opts...))
}

// Combine pairs a prepared forward and backward search, for instance to
// share a cached forward space between queries.
func Combine[T any](h weight.Handler[T], fwd, bwd *Dykstra[T]) *Bidirectional[T] {
	b := &Bidirectional[T]{h: h, fwd: fwd, bwd: bwd, bestVertex: graph.NoVertex}
	fwd.visitor = b.meet(fwd.visitor, bwd)
	bwd.visitor = b.meet(bwd.visitor, fwd)
	return b
}

// meet wraps a visitor so every settled vertex is checked against the
// other side.
func (b *Bidirectional[T]) meet(next func(Visit[T]) bool, other *Dykstra[T]) func(Visit[T]) bool {
	return func(v Visit[T]) bool {
		if o, ok := other.TryGetVisit(v.Vertex); ok {
			total := b.h.Add(v.Weight, o.Weight)
			if !b.found || b.h.IsSmallerThan(total, b.best) {
				b.best, b.bestVertex, b.found = total, v.Vertex, true
			}
		}
		return next != nil && next(v)
	}
}

// Run alternates the two searches. Each side stops once its frontier is
// empty or its smallest key cannot improve the best meeting weight.
func (b *Bidirectional[T]) Run(ctx context.Context) error {
	b.fwd.Initialize()
	b.bwd.Initialize()
	b.found, b.bestVertex = false, graph.NoVertex

	fwdDone, bwdDone := false, false
	for !fwdDone || !bwdDone {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fwdDone {
			fwdDone = b.exhausted(b.fwd) || !b.fwd.Step()
		}
		if !bwdDone {
			bwdDone = b.exhausted(b.bwd) || !b.bwd.Step()
		}
	}
	b.ran = true
	return nil
}

func (b *Bidirectional[T]) exhausted(d *Dykstra[T]) bool {
	if !b.found {
		return false
	}
	m, ok := d.PeekMetric()
	return !ok || m >= b.h.GetMetric(b.best)
}

// HasSucceeded reports whether source and target were connected.
func (b *Bidirectional[T]) HasSucceeded() bool { return b.ran && b.found }

// Best returns the meeting vertex and the total weight, or NoVertex.
func (b *Bidirectional[T]) Best() (uint32, T) { return b.bestVertex, b.best }

// Forward returns the forward search.
func (b *Bidirectional[T]) Forward() *Dykstra[T] { return b.fwd }

// Backward returns the backward search.
func (b *Bidirectional[T]) Backward() *Dykstra[T] { return b.bwd }

// Path returns the hierarchy path from source to target: the forward tree
// walk to the meeting vertex followed by the backward walk to the target.
// Shortcuts are not unpacked.
func (b *Bidirectional[T]) Path() (Path[T], error) {
	if !b.HasSucceeded() {
		return Path[T]{}, ErrNotFound
	}
	fv, _ := b.fwd.TryGetVisit(b.bestVertex)
	bv, _ := b.bwd.TryGetVisit(b.bestVertex)

	vertices := walk(b.h, b.fwd.Tree(), fv.Pointer)
	for i, j := 0, len(vertices)-1; i < j; i, j = i+1, j-1 {
		vertices[i], vertices[j] = vertices[j], vertices[i]
	}
	back := walk(b.h, b.bwd.Tree(), bv.Pointer)
	vertices = append(vertices, back[1:]...)
	return Path[T]{Vertices: vertices, Weight: b.best}, nil
}

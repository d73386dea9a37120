package search

import (
	"context"
	"fmt"

	"github.com/azybler/road_router/pkg/graph"
	"github.com/azybler/road_router/pkg/pathtree"
	"github.com/azybler/road_router/pkg/weight"
)

// Option configures a Dykstra search.
type Option[T any] func(*Dykstra[T])

// WithMax prunes every edge relaxed beyond limit.
func WithMax[T any](limit T) Option[T] {
	return func(d *Dykstra[T]) { d.max, d.hasMax = limit, true }
}

// WithVisitor calls fn for every settled vertex. Returning true stops the
// search.
func WithVisitor[T any](fn func(Visit[T]) bool) Option[T] {
	return func(d *Dykstra[T]) { d.visitor = fn }
}

// WithCache replays search spaces from c, computing each at most once.
func WithCache[T any](c *Cache[T]) Option[T] {
	return func(d *Dykstra[T]) { d.cache = c }
}

// Dykstra is a single-direction search over a contracted graph. A forward
// search follows edges flagged forward, a backward search edges flagged
// backward. It is not safe for concurrent use.
type Dykstra[T any] struct {
	g        *graph.DirectedMeta
	h        weight.Handler[T]
	source   Source[T]
	backward bool

	max     T
	hasMax  bool
	visitor func(Visit[T]) bool
	cache   *Cache[T]

	tree      *pathtree.Tree
	heap      minHeap
	tentative map[uint32]float32
	visits    map[uint32]Visit[T]
	settled   []Visit[T]
	enum      *graph.EdgeEnumerator

	// Replay state when a cache is configured.
	space     *SearchSpace[T]
	replayPos int

	initialized bool
	done        bool
	succeeded   bool
}

// NewDykstra creates a search from source over g.
func NewDykstra[T any](g *graph.DirectedMeta, h weight.Handler[T], source Source[T], backward bool, opts ...Option[T]) *Dykstra[T] {
	d := &Dykstra[T]{g: g, h: h, source: source, backward: backward}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Backward reports the search direction.
func (d *Dykstra[T]) Backward() bool { return d.backward }

func (d *Dykstra[T]) cacheKey() string {
	bound := "-"
	if d.hasMax {
		bound = fmt.Sprint(d.max)
	}
	return fmt.Sprintf("%s/%t/%s", d.source, d.backward, bound)
}

// Initialize seeds the frontier. With a cache it loads, or computes once,
// the full search space of this source and direction.
func (d *Dykstra[T]) Initialize() {
	d.initialized = true
	d.done, d.succeeded = false, false
	d.visits = make(map[uint32]Visit[T])
	d.settled = d.settled[:0]

	if d.cache != nil {
		d.space = d.cache.GetOrCompute(d.cacheKey(), d.compute)
		d.tree = d.space.Tree
		d.replayPos = 0
		return
	}

	if d.tree == nil {
		d.tree = pathtree.New(256)
	} else {
		d.tree.Clear()
	}
	if d.enum == nil {
		d.enum = d.g.Graph().GetEdgeEnumerator()
	}
	d.heap.Reset()
	d.tentative = make(map[uint32]float32)
	d.seed(d.source.Vertex1, d.source.Weight1)
	d.seed(d.source.Vertex2, d.source.Weight2)
}

func (d *Dykstra[T]) seed(vertex uint32, w T) {
	if vertex == graph.NoVertex {
		return
	}
	if d.hasMax && d.h.IsLargerThan(w, d.max) {
		return
	}
	m := d.h.GetMetric(w)
	if t, ok := d.tentative[vertex]; ok && t <= m {
		return
	}
	d.tentative[vertex] = m
	d.heap.Push(d.h.AddPathTree(d.tree, vertex, w, pathtree.NoPointer), m)
}

// compute runs an uncached copy of this search to completion.
func (d *Dykstra[T]) compute() *SearchSpace[T] {
	full := &Dykstra[T]{g: d.g, h: d.h, source: d.source, backward: d.backward, max: d.max, hasMax: d.hasMax}
	full.Initialize()
	for full.Step() {
	}
	return full.SearchSpace()
}

// Step settles at most one vertex. It returns false once the frontier is
// empty or the visitor asked to stop.
func (d *Dykstra[T]) Step() bool {
	if !d.initialized {
		d.Initialize()
	}
	if d.done {
		return false
	}
	if d.space != nil {
		return d.replay()
	}

	if d.heap.Len() == 0 {
		d.finish()
		return false
	}
	p := d.heap.Pop().pointer
	vertex, w, _ := d.h.GetPathTree(d.tree, p)
	if _, ok := d.visits[vertex]; ok {
		return true // stale entry
	}

	visit := Visit[T]{Vertex: vertex, Pointer: p, Weight: w}
	d.visits[vertex] = visit
	d.settled = append(d.settled, visit)
	if d.visitor != nil && d.visitor(visit) {
		d.finish()
		return false
	}

	if !d.enum.MoveTo(vertex) {
		return true
	}
	for d.enum.MoveNext() {
		n := d.enum.Neighbour()
		if _, ok := d.visits[n]; ok {
			continue
		}
		ew, dir := d.h.EdgeWeight(d.enum.FixedData())
		if d.backward && !dir.Backward() || !d.backward && !dir.Forward() {
			continue
		}
		nw := d.h.Add(w, ew)
		if d.hasMax && d.h.IsLargerThan(nw, d.max) {
			continue
		}
		m := d.h.GetMetric(nw)
		if t, ok := d.tentative[n]; ok && t <= m {
			continue
		}
		d.tentative[n] = m
		d.heap.Push(d.h.AddPathTree(d.tree, n, nw, p), m)
	}
	return true
}

func (d *Dykstra[T]) replay() bool {
	if d.replayPos >= len(d.space.Visits) {
		d.finish()
		return false
	}
	visit := d.space.Visits[d.replayPos]
	d.replayPos++
	d.visits[visit.Vertex] = visit
	d.settled = append(d.settled, visit)
	if d.visitor != nil && d.visitor(visit) {
		d.finish()
		return false
	}
	return true
}

func (d *Dykstra[T]) finish() {
	d.done = true
	d.succeeded = true
}

// Run steps until the search finishes. ctx is checked before every step.
func (d *Dykstra[T]) Run(ctx context.Context) error {
	d.Initialize()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Step() {
			return nil
		}
	}
}

// PeekMetric returns the smallest metric still in the frontier.
func (d *Dykstra[T]) PeekMetric() (float32, bool) {
	if d.done {
		return 0, false
	}
	if d.space != nil {
		if d.replayPos >= len(d.space.Visits) {
			return 0, false
		}
		return d.h.GetMetric(d.space.Visits[d.replayPos].Weight), true
	}
	return d.heap.Peek()
}

// TryGetVisit returns the visit of vertex if it was settled.
func (d *Dykstra[T]) TryGetVisit(vertex uint32) (Visit[T], bool) {
	v, ok := d.visits[vertex]
	return v, ok
}

// HasSucceeded reports whether the search ran to its end.
func (d *Dykstra[T]) HasSucceeded() bool { return d.succeeded }

// Tree returns the path tree the visit pointers refer to.
func (d *Dykstra[T]) Tree() *pathtree.Tree { return d.tree }

// SearchSpace returns what has been settled so far.
func (d *Dykstra[T]) SearchSpace() *SearchSpace[T] {
	if d.space != nil && d.done && d.replayPos >= len(d.space.Visits) {
		return d.space
	}
	return newSearchSpace(d.tree, append([]Visit[T](nil), d.settled...))
}

// PathTo returns the path from the source to vertex, in search order.
func (d *Dykstra[T]) PathTo(vertex uint32) (Path[T], error) {
	v, ok := d.visits[vertex]
	if !ok {
		return Path[T]{}, ErrNotFound
	}
	vertices := walk(d.h, d.tree, v.Pointer)
	for i, j := 0, len(vertices)-1; i < j; i, j = i+1, j-1 {
		vertices[i], vertices[j] = vertices[j], vertices[i]
	}
	return Path[T]{Vertices: vertices, Weight: v.Weight}, nil
}

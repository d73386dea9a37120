package ch

import (
	"math"

	"github.com/azybler/road_router/pkg/graph"
	"github.com/azybler/road_router/pkg/weight"
)

const (
	defaultMaxSettled = 500 // max vertices settled during witness search
	defaultMaxHops    = 5   // max hops from source
)

var infinity = float32(math.Inf(1))

// Witness is the best known weight from From to To avoiding the vertex it
// was computed for. Metric is +Inf when the bounded search found no path.
type Witness struct {
	From, To uint32
	Metric   float32
}

// witnessHeapItem is an entry in the witness search min-heap.
type witnessHeapItem struct {
	vertex uint32
	dist   float32
	hops   int
}

// witnessHeap is a concrete-typed binary min-heap for witness search.
type witnessHeap struct {
	items []witnessHeapItem
}

func (h *witnessHeap) Len() int { return len(h.items) }

func (h *witnessHeap) Push(vertex uint32, dist float32, hops int) {
	h.items = append(h.items, witnessHeapItem{vertex, dist, hops})
	h.siftUp(len(h.items) - 1)
}

func (h *witnessHeap) Pop() witnessHeapItem {
	top := h.items[0]
	n := len(h.items) - 1
	h.items[0] = h.items[n]
	h.items = h.items[:n]
	if n > 0 {
		h.siftDown(0)
	}
	return top
}

// siftUp moves a hole up instead of swapping, one assignment per level.
func (h *witnessHeap) siftUp(i int) {
	item := h.items[i]
	for i > 0 {
		parent := (i - 1) / 2
		if item.dist >= h.items[parent].dist {
			break
		}
		h.items[i] = h.items[parent]
		i = parent
	}
	h.items[i] = item
}

func (h *witnessHeap) siftDown(i int) {
	n := len(h.items)
	item := h.items[i]
	for {
		child := 2*i + 1
		if child >= n {
			break
		}
		if right := child + 1; right < n && h.items[right].dist < h.items[child].dist {
			child = right
		}
		if item.dist <= h.items[child].dist {
			break
		}
		h.items[i] = h.items[child]
		i = child
	}
	h.items[i] = item
}

func (h *witnessHeap) Reset() {
	h.items = h.items[:0]
}

// neighbourCost is the cheapest edge between the contracted vertex and one
// neighbour in one direction.
type neighbourCost struct {
	vertex uint32
	metric float32
}

func upsertMin(costs []neighbourCost, vertex uint32, metric float32) []neighbourCost {
	for i := range costs {
		if costs[i].vertex == vertex {
			if metric < costs[i].metric {
				costs[i].metric = metric
			}
			return costs
		}
	}
	return append(costs, neighbourCost{vertex, metric})
}

// WitnessCalculator runs bounded local searches around a vertex. It keeps
// reusable scratch state and is not safe for concurrent use; parallel
// passes create one per worker.
type WitnessCalculator[T any] struct {
	h          weight.Handler[T]
	contracted []bool
	maxSettled int
	maxHops    int

	// Distance array indexed by vertex; touched lists entries to reset.
	dist    []float32
	touched []uint32
	heap    witnessHeap

	in, out []neighbourCost
}

// NewWitnessCalculator creates a calculator that never enters vertices
// marked in contracted. The slice is read, never written.
func NewWitnessCalculator[T any](h weight.Handler[T], contracted []bool, maxSettled, maxHops int) *WitnessCalculator[T] {
	if maxSettled <= 0 {
		maxSettled = defaultMaxSettled
	}
	if maxHops <= 0 {
		maxHops = defaultMaxHops
	}
	return &WitnessCalculator[T]{
		h:          h,
		contracted: contracted,
		maxSettled: maxSettled,
		maxHops:    maxHops,
		heap:       witnessHeap{items: make([]witnessHeapItem, 0, 256)},
	}
}

func (c *WitnessCalculator[T]) isContracted(v uint32) bool {
	return int(v) < len(c.contracted) && c.contracted[v]
}

// Run computes the witnesses around vertex and writes them to wg.
func (c *WitnessCalculator[T]) Run(g *graph.DirectedMeta, wg *WitnessGraph, vertex uint32, affected map[uint32]struct{}) error {
	return wg.Apply(c.Calculate(g, vertex, affected))
}

// Calculate returns, for every ordered pair (a, b) of neighbours where a can
// reach vertex and vertex can reach b, the best weight from a to b that
// avoids vertex. It only reads g. With a non-nil affected set, only sources
// in the set are searched.
func (c *WitnessCalculator[T]) Calculate(g *graph.DirectedMeta, vertex uint32, affected map[uint32]struct{}) []Witness {
	c.in, c.out = c.in[:0], c.out[:0]
	e := g.Graph().GetEdgeEnumerator()
	if !e.MoveTo(vertex) {
		return nil
	}
	for e.MoveNext() {
		n := e.Neighbour()
		if c.isContracted(n) {
			continue
		}
		w, dir := c.h.EdgeWeight(e.FixedData())
		m := c.h.GetMetric(w)
		if dir.Backward() {
			c.in = upsertMin(c.in, n, m)
		}
		if dir.Forward() {
			c.out = upsertMin(c.out, n, m)
		}
	}
	if len(c.in) == 0 || len(c.out) == 0 {
		return nil
	}

	var witnesses []Witness
	for _, a := range c.in {
		if affected != nil {
			if _, ok := affected[a.vertex]; !ok {
				continue
			}
		}
		// Upper bound for this batch: the heaviest shortcut starting at a.
		maxOut := float32(-1)
		for _, b := range c.out {
			if b.vertex != a.vertex && b.metric > maxOut {
				maxOut = b.metric
			}
		}
		if maxOut < 0 {
			continue // every outgoing edge leads back to a
		}

		// One search from a, then check all outgoing targets.
		c.search(e, g.VertexCount(), a.vertex, vertex, a.metric+maxOut)
		for _, b := range c.out {
			if b.vertex == a.vertex {
				continue
			}
			witnesses = append(witnesses, Witness{From: a.vertex, To: b.vertex, Metric: c.distance(b.vertex)})
		}
	}
	return witnesses
}

func (c *WitnessCalculator[T]) distance(v uint32) float32 {
	if int(v) >= len(c.dist) {
		return infinity
	}
	return c.dist[v]
}

func (c *WitnessCalculator[T]) reset(vertexCount uint32) {
	for _, v := range c.touched {
		c.dist[v] = infinity
	}
	c.touched = c.touched[:0]
	c.heap.Reset()
	for uint32(len(c.dist)) < vertexCount {
		c.dist = append(c.dist, infinity)
	}
}

// search runs a forward Dijkstra from source that skips excluded and every
// contracted vertex, bounded by maxWeight, maxSettled and maxHops.
func (c *WitnessCalculator[T]) search(e *graph.EdgeEnumerator, vertexCount, source, excluded uint32, maxWeight float32) {
	c.reset(vertexCount)

	c.dist[source] = 0
	c.touched = append(c.touched, source)
	c.heap.Push(source, 0, 0)

	settled := 0
	for c.heap.Len() > 0 {
		cur := c.heap.Pop()

		// Skip stale entries.
		if cur.dist > c.dist[cur.vertex] {
			continue
		}

		settled++
		if settled >= c.maxSettled {
			break
		}
		if cur.dist > maxWeight || cur.hops >= c.maxHops {
			continue
		}

		if !e.MoveTo(cur.vertex) {
			continue
		}
		for e.MoveNext() {
			to := e.Neighbour()
			if to == excluded || c.isContracted(to) {
				continue
			}
			w, dir := c.h.EdgeWeight(e.FixedData())
			if !dir.Forward() {
				continue
			}
			nd := cur.dist + c.h.GetMetric(w)
			if nd > maxWeight {
				continue
			}
			if nd < c.dist[to] {
				if c.dist[to] == infinity {
					c.touched = append(c.touched, to)
				}
				c.dist[to] = nd
				c.heap.Push(to, nd, cur.hops+1)
			}
		}
	}
}

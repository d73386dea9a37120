package ch

import (
	"math"

	"github.com/pkg/errors"

	"github.com/azybler/road_router/pkg/graph"
)

// WitnessGraph records, per ordered vertex pair, the weight of the best known
// path that avoids the vertex the pair was examined for. It is a packed graph
// with one fixed field holding the metric in tenths, rounded up so a stored
// witness is never better than the real path by more than float noise.
type WitnessGraph struct {
	g *graph.Directed
	e *graph.EdgeEnumerator
}

// NewWitnessGraph creates an empty witness graph sized for vertexCount.
func NewWitnessGraph(vertexCount uint32) (*WitnessGraph, error) {
	g, err := graph.NewDirected(1,
		graph.WithVertexCapacity(max(int(vertexCount), 1)),
		graph.WithEdgeCapacity(max(int(vertexCount)*8, 64)))
	if err != nil {
		return nil, errors.Wrap(err, "witness graph")
	}
	return &WitnessGraph{g: g, e: g.GetEdgeEnumerator()}, nil
}

// Graph returns the underlying store.
func (w *WitnessGraph) Graph() *graph.Directed { return w.g }

// Get returns the witness metric from -> to, if any.
func (w *WitnessGraph) Get(from, to uint32) (float32, bool) {
	if !w.e.MoveTo(from) {
		return 0, false
	}
	for w.e.MoveNext() {
		if w.e.Neighbour() == to {
			return float32(w.e.Data(0)) / 10, true
		}
	}
	return 0, false
}

// Apply replaces the entry of every pair in ws. Pairs without a witness
// lose their entry.
func (w *WitnessGraph) Apply(ws []Witness) error {
	for _, wit := range ws {
		if err := w.clear(wit.From, wit.To); err != nil {
			return err
		}
		if math.IsInf(float64(wit.Metric), 1) {
			continue
		}
		scaled := math.Ceil(float64(wit.Metric)*10 - 1e-3)
		if scaled > float64(graph.MaxDynamicPayload) {
			continue
		}
		if _, err := w.g.AddEdge(wit.From, wit.To, uint32(scaled)); err != nil {
			return errors.Wrapf(err, "witness %d->%d", wit.From, wit.To)
		}
	}
	return nil
}

func (w *WitnessGraph) clear(from, to uint32) error {
	for {
		n, err := w.g.RemoveEdge(from, to)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

// RemoveVertex drops every witness starting at vertex.
func (w *WitnessGraph) RemoveVertex(vertex uint32) error {
	_, err := w.g.RemoveEdges(vertex)
	return err
}

// MaybeCompress compresses the store when its allocated space exceeds factor
// times the live edge count. It reports whether it compressed.
func (w *WitnessGraph) MaybeCompress(factor int) (bool, error) {
	live := w.g.EdgeCount() * 2 // words per witness
	if w.g.EdgeSpace() <= uint32(factor)*max(live, 1) {
		return false, nil
	}
	return true, w.g.Compress(false)
}

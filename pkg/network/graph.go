package network

import (
	"github.com/pkg/errors"

	"github.com/azybler/road_router/pkg/graph"
	"github.com/azybler/road_router/pkg/weight"
)

// BuildGraph creates the uncontracted meta-graph of n for the profile behind
// h. Every usable road is stored at both ends, with the direction mirrored
// at To, and carries NoVertex as its via vertex. Roads the profile cannot
// use and loops are left out.
func BuildGraph[T any](n *Network, h weight.Handler[T]) (*graph.DirectedMeta, error) {
	fixed := h.FixedSize()
	g, err := graph.NewDirectedMeta(fixed, 1,
		graph.WithVertexCapacity(max(int(n.VertexCount()), 1)),
		graph.WithEdgeCapacity(max(2*len(n.Roads)*(1+fixed), 1)))
	if err != nil {
		return nil, err
	}

	meta := []uint32{graph.NoVertex}
	var data []uint32
	for i, r := range n.Roads {
		if r.From == r.To {
			continue
		}
		w, dir := h.Calculate(r.Profile, r.Meters)
		if dir == weight.None {
			continue
		}
		if data, err = h.AppendEdge(data[:0], w, dir); err != nil {
			return nil, errors.Wrapf(err, "road %d", i)
		}
		if _, err := g.AddEdge(r.From, r.To, data, meta); err != nil {
			return nil, errors.Wrapf(err, "road %d", i)
		}
		if data, err = h.AppendEdge(data[:0], w, dir.Reverse()); err != nil {
			return nil, errors.Wrapf(err, "road %d", i)
		}
		if _, err := g.AddEdge(r.To, r.From, data, meta); err != nil {
			return nil, errors.Wrapf(err, "road %d", i)
		}
	}
	return g, nil
}

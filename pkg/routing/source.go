package routing

import (
	"github.com/azybler/road_router/pkg/graph"
	"github.com/azybler/road_router/pkg/network"
	"github.com/azybler/road_router/pkg/search"
	"github.com/azybler/road_router/pkg/weight"
)

// partial returns the weight of travelling the given fraction of road r.
func partial[T any](h weight.Handler[T], r network.Road, fraction float64) T {
	w, _ := h.Calculate(r.Profile, float32(float64(r.Meters)*fraction))
	return w
}

// SourceFor seeds a forward search at rp: the road's To vertex when the road
// can be driven forward, its From vertex when it can be driven backward.
func SourceFor[T any](h weight.Handler[T], n *network.Network, rp RouterPoint) (search.Source[T], bool) {
	r := n.Roads[rp.Road]
	_, dir := h.Calculate(r.Profile, r.Meters)
	return seeds(
		dir.Forward(), r.To, partial(h, r, 1-rp.Ratio),
		dir.Backward(), r.From, partial(h, r, rp.Ratio),
	)
}

// TargetFor seeds a backward search at rp. It is the mirror of SourceFor.
func TargetFor[T any](h weight.Handler[T], n *network.Network, rp RouterPoint) (search.Source[T], bool) {
	r := n.Roads[rp.Road]
	_, dir := h.Calculate(r.Profile, r.Meters)
	return seeds(
		dir.Forward(), r.From, partial(h, r, rp.Ratio),
		dir.Backward(), r.To, partial(h, r, 1-rp.Ratio),
	)
}

func seeds[T any](ok1 bool, v1 uint32, w1 T, ok2 bool, v2 uint32, w2 T) (search.Source[T], bool) {
	switch {
	case ok1 && ok2:
		return search.NewSource2(v1, w1, v2, w2), true
	case ok1:
		return search.NewSource(v1, w1), true
	case ok2:
		return search.NewSource(v2, w2), true
	}
	return search.Source[T]{Vertex1: graph.NoVertex, Vertex2: graph.NoVertex}, false
}

// leg is the part of one road a route travels, between two ratios. From >
// To means the road is travelled against its geometry.
type leg struct {
	Road     uint32
	From, To float64
}

// direct returns the route between two points on the same road without
// leaving it.
func direct[T any](h weight.Handler[T], n *network.Network, s, t RouterPoint) (T, leg, bool) {
	var zero T
	if s.Road != t.Road {
		return zero, leg{}, false
	}
	r := n.Roads[s.Road]
	_, dir := h.Calculate(r.Profile, r.Meters)
	switch {
	case t.Ratio >= s.Ratio && dir.Forward():
		return partial(h, r, t.Ratio-s.Ratio), leg{s.Road, s.Ratio, t.Ratio}, true
	case t.Ratio <= s.Ratio && dir.Backward():
		return partial(h, r, s.Ratio-t.Ratio), leg{s.Road, s.Ratio, t.Ratio}, true
	}
	return zero, leg{}, false
}

// endRatio is the ratio of vertex v on road r: 0 at From, 1 at To.
func endRatio(r network.Road, v uint32) float64 {
	if r.From == v {
		return 0
	}
	return 1
}

// legs turns an unpacked vertex path between two router points into the
// roads it travels. The first and last legs are partial.
func legs[T any](h weight.Handler[T], n *network.Network, s, t RouterPoint, vertices []uint32) ([]leg, error) {
	if len(vertices) == 0 {
		return nil, ErrBrokenPath
	}
	first, last := vertices[0], vertices[len(vertices)-1]
	out := []leg{{s.Road, s.Ratio, endRatio(n.Roads[s.Road], first)}}
	for i := 0; i < len(vertices)-1; i++ {
		l, ok := connecting(h, n, vertices[i], vertices[i+1])
		if !ok {
			return nil, ErrBrokenPath
		}
		out = append(out, l)
	}
	return append(out, leg{t.Road, endRatio(n.Roads[t.Road], last), t.Ratio}), nil
}

// connecting returns the cheapest road usable from u to v.
func connecting[T any](h weight.Handler[T], n *network.Network, u, v uint32) (leg, bool) {
	var (
		best  T
		found leg
		ok    bool
	)
	for _, ri := range n.RoadsAt(u) {
		r := n.Roads[ri]
		w, dir := h.Calculate(r.Profile, r.Meters)
		var l leg
		switch {
		case r.From == u && r.To == v && dir.Forward():
			l = leg{ri, 0, 1}
		case r.From == v && r.To == u && dir.Backward():
			l = leg{ri, 1, 0}
		default:
			continue
		}
		if !ok || h.IsSmallerThan(w, best) {
			best, found, ok = w, l, true
		}
	}
	return found, ok
}

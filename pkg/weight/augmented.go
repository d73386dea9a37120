package weight

import (
	"math"

	"github.com/azybler/road_router/pkg/graph"
	"github.com/azybler/road_router/pkg/pathtree"
)

// Augmented carries the routing weight together with the distance and time
// accumulated along the path, so limits on either can be checked after a
// search without a second pass.
type Augmented struct {
	Weight   float32
	Distance float32 // metres
	Time     float32 // seconds
}

// AugmentedHandler orders augmented weights by Weight only.
type AugmentedHandler struct {
	source Source
}

// NewAugmented returns a handler for Augmented weights backed by source.
func NewAugmented(source Source) *AugmentedHandler {
	return &AugmentedHandler{source: source}
}

// Zero is the weight of an empty path.
func (*AugmentedHandler) Zero() Augmented { return Augmented{} }

// Infinite is larger than every reachable weight in all components.
func (*AugmentedHandler) Infinite() Augmented {
	return Augmented{Weight: math.MaxFloat32, Distance: math.MaxFloat32, Time: math.MaxFloat32}
}

// Add sums each component.
func (*AugmentedHandler) Add(a, b Augmented) Augmented {
	return Augmented{Weight: a.Weight + b.Weight, Distance: a.Distance + b.Distance, Time: a.Time + b.Time}
}

// IsSmallerThan compares by Weight only.
func (*AugmentedHandler) IsSmallerThan(a, b Augmented) bool { return a.Weight < b.Weight }

// IsLargerThan compares by Weight only.
func (*AugmentedHandler) IsLargerThan(a, b Augmented) bool { return a.Weight > b.Weight }

// Equal compares Weight within Tolerance.
func (*AugmentedHandler) Equal(a, b Augmented) bool { return equal32(a.Weight, b.Weight) }

// GetMetric returns the Weight component.
func (*AugmentedHandler) GetMetric(w Augmented) float32 { return w.Weight }

// FixedSize is three fields: weight with direction, distance and time.
func (*AugmentedHandler) FixedSize() int { return 3 }

// Calculate fills every component from the profile's factors.
func (h *AugmentedHandler) Calculate(profile uint16, distance float32) (Augmented, Direction) {
	f := h.source(profile)
	if f.Value <= 0 {
		return Augmented{}, None
	}
	return Augmented{Weight: distance * f.Value, Distance: distance, Time: distance * f.Time}, f.Direction
}

// EdgeWeight decodes the three fixed fields.
func (*AugmentedHandler) EdgeWeight(fixed []uint32) (Augmented, Direction) {
	w, dir := decodeWeight(fixed[0])
	return Augmented{Weight: w, Distance: decodeScaled(fixed[1]), Time: decodeScaled(fixed[2])}, dir
}

// AppendEdge encodes each component in tenths.
func (*AugmentedHandler) AppendEdge(dst []uint32, w Augmented, dir Direction) ([]uint32, error) {
	f, err := encodeWeight(w.Weight, dir)
	if err != nil {
		return dst, err
	}
	d, err := encodeScaled(w.Distance, graph.MaxDynamicPayload)
	if err != nil {
		return dst, err
	}
	t, err := encodeScaled(w.Time, graph.MaxDynamicPayload)
	if err != nil {
		return dst, err
	}
	return append(dst, f, d, t), nil
}

// AddPathTree stores (vertex, weight, distance, time, previous).
func (*AugmentedHandler) AddPathTree(t *pathtree.Tree, vertex uint32, w Augmented, previous uint32) uint32 {
	return t.Add(vertex, math.Float32bits(w.Weight), math.Float32bits(w.Distance), math.Float32bits(w.Time), previous)
}

// GetPathTree reads a record written by AddPathTree.
func (*AugmentedHandler) GetPathTree(t *pathtree.Tree, pointer uint32) (uint32, Augmented, uint32) {
	w := Augmented{
		Weight:   math.Float32frombits(t.Get(pointer, 1)),
		Distance: math.Float32frombits(t.Get(pointer, 2)),
		Time:     math.Float32frombits(t.Get(pointer, 3)),
	}
	return t.Get(pointer, 0), w, t.Get(pointer, 4)
}

package weight

import (
	"math"

	"github.com/azybler/road_router/pkg/pathtree"
)

// Default is the scalar handler: a weight is a single float32.
type Default struct {
	source Source
}

// NewDefault returns a scalar handler backed by source.
func NewDefault(source Source) *Default {
	return &Default{source: source}
}

// Zero is the weight of an empty path.
func (*Default) Zero() float32 { return 0 }

// Infinite is larger than every reachable weight.
func (*Default) Infinite() float32 { return math.MaxFloat32 }

// Add sums two weights.
func (*Default) Add(a, b float32) float32 { return a + b }

// IsSmallerThan reports a < b.
func (*Default) IsSmallerThan(a, b float32) bool { return a < b }

// IsLargerThan reports a > b.
func (*Default) IsLargerThan(a, b float32) bool { return a > b }

// Equal compares within Tolerance.
func (*Default) Equal(a, b float32) bool { return equal32(a, b) }

// GetMetric returns w itself.
func (*Default) GetMetric(w float32) float32 { return w }

// FixedSize is one field: the encoded weight and direction.
func (*Default) FixedSize() int { return 1 }

// Calculate returns distance times the profile's factor. Profiles with a
// non-positive factor are unusable.
func (h *Default) Calculate(profile uint16, distance float32) (float32, Direction) {
	f := h.source(profile)
	if f.Value <= 0 {
		return 0, None
	}
	return distance * f.Value, f.Direction
}

// EdgeWeight decodes the single fixed field.
func (*Default) EdgeWeight(fixed []uint32) (float32, Direction) {
	return decodeWeight(fixed[0])
}

// AppendEdge encodes w in tenths with dir in the low bits.
func (*Default) AppendEdge(dst []uint32, w float32, dir Direction) ([]uint32, error) {
	f, err := encodeWeight(w, dir)
	if err != nil {
		return dst, err
	}
	return append(dst, f), nil
}

// AddPathTree stores (vertex, weight bits, previous).
func (*Default) AddPathTree(t *pathtree.Tree, vertex uint32, w float32, previous uint32) uint32 {
	return t.Add3(vertex, math.Float32bits(w), previous)
}

// GetPathTree reads a record written by AddPathTree.
func (*Default) GetPathTree(t *pathtree.Tree, pointer uint32) (uint32, float32, uint32) {
	return t.Get(pointer, 0), math.Float32frombits(t.Get(pointer, 1)), t.Get(pointer, 2)
}

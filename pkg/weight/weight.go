// Package weight converts packed edge data into typed weights and back.
//
// Graph, contraction and search code is generic over the weight type T and
// talks to it only through a Handler[T].
package weight

import (
	"math"

	"github.com/pkg/errors"

	"github.com/azybler/road_router/pkg/graph"
	"github.com/azybler/road_router/pkg/pathtree"
)

// Tolerance is the precision of stored weights. Forward and backward weights
// closer than this are merged into one bidirectional edge.
const Tolerance = 0.1

// precision is the fixed-point scale of stored weights.
const precision = 10

// maxEncoded is the largest scaled weight that still fits next to the two
// direction bits in one edge field.
const maxEncoded = graph.MaxDynamicPayload >> 2

// ErrWeightTooLarge is returned when a weight does not fit the edge encoding.
var ErrWeightTooLarge = errors.New("weight: value does not fit the edge encoding")

// Direction tells which traversal directions an edge may be used in.
type Direction uint8

const (
	None     Direction = 0
	Forward  Direction = 1
	Backward Direction = 2
	Both               = Forward | Backward
)

// Forward reports whether a forward search may use the edge.
func (d Direction) Forward() bool { return d&Forward != 0 }

// Backward reports whether a backward search may use the edge.
func (d Direction) Backward() bool { return d&Backward != 0 }

// Reverse swaps the forward and backward bits, as seen from the other end.
func (d Direction) Reverse() Direction {
	return (d&Forward)<<1 | (d&Backward)>>1
}

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	case Both:
		return "both"
	}
	return "none"
}

// Factor is the per-metre cost of an edge profile.
type Factor struct {
	Value     float32 // weight per metre, zero when the profile cannot use the edge
	Time      float32 // seconds per metre
	Direction Direction
}

// Source resolves an edge profile id to its factor.
type Source func(profile uint16) Factor

// Handler is the strategy every weight type implements.
type Handler[T any] interface {
	Zero() T
	Infinite() T
	Add(a, b T) T
	IsSmallerThan(a, b T) bool
	IsLargerThan(a, b T) bool
	// Equal reports whether two weights are the same within Tolerance.
	Equal(a, b T) bool
	// GetMetric projects a weight onto the scalar used for heap ordering.
	GetMetric(w T) float32

	// Calculate returns the weight and usable direction of an edge with the
	// given profile and length in metres.
	Calculate(profile uint16, distance float32) (T, Direction)
	// EdgeWeight decodes the fixed fields of a stored edge.
	EdgeWeight(fixed []uint32) (T, Direction)
	// AppendEdge encodes w and dir as FixedSize fields appended to dst.
	AppendEdge(dst []uint32, w T, dir Direction) ([]uint32, error)
	FixedSize() int

	AddPathTree(t *pathtree.Tree, vertex uint32, w T, previous uint32) uint32
	GetPathTree(t *pathtree.Tree, pointer uint32) (vertex uint32, w T, previous uint32)
}

// encodeScaled packs a non-negative value with the fixed-point precision.
func encodeScaled(v float32, limit uint32) (uint32, error) {
	if v < 0 || math.IsNaN(float64(v)) {
		return 0, errors.Wrapf(ErrWeightTooLarge, "negative or invalid value %v", v)
	}
	s := math.Round(float64(v) * precision)
	if s > float64(limit) {
		return 0, errors.Wrapf(ErrWeightTooLarge, "value %v", v)
	}
	return uint32(s), nil
}

func decodeScaled(s uint32) float32 {
	return float32(s) / precision
}

// encodeWeight packs the main weight and the direction bits into one field.
func encodeWeight(w float32, dir Direction) (uint32, error) {
	s, err := encodeScaled(w, maxEncoded)
	if err != nil {
		return 0, err
	}
	return s<<2 | uint32(dir&Both), nil
}

func decodeWeight(f uint32) (float32, Direction) {
	return decodeScaled(f >> 2), Direction(f & 3)
}

func equal32(a, b float32) bool {
	return math.Abs(float64(a)-float64(b)) < Tolerance
}

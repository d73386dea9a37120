package graph

import (
	"math"

	"github.com/pkg/errors"
)

const (
	lastFieldFlag uint32 = 1 << 30
	lastEdgeFlag  uint32 = 1 << 31

	// MaxDynamicPayload is the largest value a single edge word can carry.
	MaxDynamicPayload uint32 = lastFieldFlag - 1

	// NoEdge marks an empty vertex pointer or an unused edge word.
	NoEdge uint32 = math.MaxUint32

	// NoVertex marks an absent vertex.
	NoVertex uint32 = math.MaxUint32
)

// checkPayload rejects values that would collide with the flag bits.
func checkPayload(v uint32) error {
	if v > MaxDynamicPayload {
		return errors.Wrapf(ErrPayloadTooLarge, "value %d", v)
	}
	return nil
}

func isLastField(w uint32) bool { return w&lastFieldFlag != 0 }
func isLastEdge(w uint32) bool  { return w&lastEdgeFlag != 0 }
func payload(w uint32) uint32    { return w & MaxDynamicPayload }

// nextPow2 returns the smallest power of two >= n (n > 0).
func nextPow2(n uint32) uint32 {
	p := uint32(1)
	for p < n {
		p <<= 1
	}
	return p
}

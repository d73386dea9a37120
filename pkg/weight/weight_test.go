package weight

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azybler/road_router/pkg/pathtree"
)

func uniform(profile uint16) Factor {
	switch profile {
	case 0:
		return Factor{Value: 0.1, Time: 0.1, Direction: Both}
	case 1:
		return Factor{Value: 0.1, Time: 0.1, Direction: Forward}
	}
	return Factor{}
}

func TestDirection(t *testing.T) {
	assert.Equal(t, Backward, Forward.Reverse())
	assert.Equal(t, Forward, Backward.Reverse())
	assert.Equal(t, Both, Both.Reverse())
	assert.Equal(t, None, None.Reverse())
	assert.True(t, Both.Forward())
	assert.False(t, Backward.Forward())
	assert.Equal(t, "both", Both.String())
}

func TestDefaultCalculate(t *testing.T) {
	h := NewDefault(uniform)
	w, dir := h.Calculate(0, 100)
	assert.InDelta(t, 10, w, 1e-5)
	assert.Equal(t, Both, dir)

	_, dir = h.Calculate(1, 100)
	assert.Equal(t, Forward, dir)

	_, dir = h.Calculate(7, 100)
	assert.Equal(t, None, dir)
}

func TestDefaultEdgeEncoding(t *testing.T) {
	h := NewDefault(uniform)
	data, err := h.AppendEdge(nil, 12.34, Backward)
	require.NoError(t, err)
	require.Len(t, data, h.FixedSize())

	w, dir := h.EdgeWeight(data)
	assert.InDelta(t, 12.3, w, 1e-4)
	assert.Equal(t, Backward, dir)

	_, err = h.AppendEdge(nil, 1e9, Forward)
	assert.True(t, errors.Is(err, ErrWeightTooLarge))
	_, err = h.AppendEdge(nil, -1, Forward)
	assert.True(t, errors.Is(err, ErrWeightTooLarge))
}

func TestDefaultOrdering(t *testing.T) {
	h := NewDefault(uniform)
	assert.True(t, h.IsSmallerThan(h.Zero(), h.Infinite()))
	assert.True(t, h.IsLargerThan(h.Add(1, 2), 2.5))
	assert.True(t, h.Equal(10, 10.05))
	assert.False(t, h.Equal(10, 10.2))
}

func TestAugmented(t *testing.T) {
	h := NewAugmented(uniform)
	w, dir := h.Calculate(0, 250)
	assert.Equal(t, Both, dir)
	assert.InDelta(t, 25, w.Weight, 1e-4)
	assert.InDelta(t, 250, w.Distance, 1e-4)
	assert.InDelta(t, 25, w.Time, 1e-4)

	data, err := h.AppendEdge(nil, w, Forward)
	require.NoError(t, err)
	require.Len(t, data, 3)
	got, dir := h.EdgeWeight(data)
	assert.Equal(t, Forward, dir)
	assert.InDelta(t, w.Distance, got.Distance, 0.05)

	sum := h.Add(w, w)
	assert.InDelta(t, 500, sum.Distance, 1e-3)
	assert.Equal(t, float32(50), h.GetMetric(sum))
}

func TestPathTree(t *testing.T) {
	tree := pathtree.New(0)

	d := NewDefault(uniform)
	root := d.AddPathTree(tree, 3, 1.5, pathtree.NoPointer)
	p := d.AddPathTree(tree, 4, 2.5, root)
	v, w, prev := d.GetPathTree(tree, p)
	assert.Equal(t, uint32(4), v)
	assert.Equal(t, float32(2.5), w)
	assert.Equal(t, root, prev)

	a := NewAugmented(uniform)
	p = a.AddPathTree(tree, 9, Augmented{1, 2, 3}, p)
	v, aw, _ := a.GetPathTree(tree, p)
	assert.Equal(t, uint32(9), v)
	assert.Equal(t, Augmented{1, 2, 3}, aw)
}

package ch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azybler/road_router/pkg/graph"
	"github.com/azybler/road_router/pkg/weight"
)

// Profile 0 is usable both ways, 1 only forward. Weight is metres / 10.
func testSource(profile uint16) weight.Factor {
	switch profile {
	case 0:
		return weight.Factor{Value: 0.1, Time: 0.1, Direction: weight.Both}
	case 1:
		return weight.Factor{Value: 0.1, Time: 0.1, Direction: weight.Forward}
	}
	return weight.Factor{}
}

type road struct {
	from, to uint32
	metres   float32
	profile  uint16
}

// buildGraph stores each road at both ends, mirroring the direction.
func buildGraph(t *testing.T, h weight.Handler[float32], roads []road) *graph.DirectedMeta {
	t.Helper()
	g, err := graph.NewDirectedMeta(h.FixedSize(), 1)
	require.NoError(t, err)
	for _, r := range roads {
		w, dir := h.Calculate(r.profile, r.metres)
		require.NotEqual(t, weight.None, dir)
		data, err := h.AppendEdge(nil, w, dir)
		require.NoError(t, err)
		_, err = g.AddEdge(r.from, r.to, data, []uint32{graph.NoVertex})
		require.NoError(t, err)
		data, err = h.AppendEdge(nil, w, dir.Reverse())
		require.NoError(t, err)
		_, err = g.AddEdge(r.to, r.from, data, []uint32{graph.NoVertex})
		require.NoError(t, err)
	}
	return g
}

// buildGrid creates:
//
//	0 ---100--- 1 ---200--- 2
//	|                       |
//	300                    400
//	|                       |
//	3 ---500--- 4 ---600--- 5
func buildGrid(t *testing.T, h weight.Handler[float32]) *graph.DirectedMeta {
	return buildGraph(t, h, []road{
		{0, 1, 1000, 0}, {1, 2, 2000, 0},
		{0, 3, 3000, 0}, {2, 5, 4000, 0},
		{3, 4, 5000, 0}, {4, 5, 6000, 0},
	})
}

type edgeView struct {
	to  uint32
	w   float32
	dir weight.Direction
	via uint32
}

func edgesOf(g *graph.DirectedMeta, h weight.Handler[float32], v uint32) []edgeView {
	var out []edgeView
	e := g.GetEdgeEnumerator()
	if !e.MoveTo(v) {
		return nil
	}
	for e.MoveNext() {
		w, dir := h.EdgeWeight(e.FixedData())
		out = append(out, edgeView{e.Neighbour(), w, dir, e.Meta(0)})
	}
	return out
}

func TestContractVisitsEveryVertex(t *testing.T) {
	h := weight.NewDefault(testSource)
	g := buildGrid(t, h)

	b, err := NewBuilder[float32](g, h, WithConfig(Config{
		DifferenceFactor: 4, ContractedFactor: 1, DepthFactor: 14,
		MissWindow: 20, WitnessQueueLimit: 1, Workers: 2,
	}))
	require.NoError(t, err)
	require.NoError(t, b.Run(context.Background()))

	order := b.Order()
	require.Len(t, order, 6)
	rank := make([]int, 6)
	seen := map[uint32]bool{}
	for i, v := range order {
		assert.False(t, seen[v])
		seen[v] = true
		rank[v] = i
	}

	// Only upward edges remain.
	for v := uint32(0); v < 6; v++ {
		for _, e := range edgesOf(g, h, v) {
			assert.Greater(t, rank[e.to], rank[v], "edge %d->%d points down", v, e.to)
		}
	}
	assert.Equal(t, 6, b.Stats().Contracted)
	assert.GreaterOrEqual(t, b.Stats().WitnessPasses, 1)
}

func TestContractMiddleOfOneWayChain(t *testing.T) {
	h := weight.NewDefault(testSource)
	g := buildGraph(t, h, []road{{0, 1, 1000, 1}, {1, 2, 1000, 1}})

	var vi VertexInfo[float32]
	vi.Load(g, h, 1, nil)
	vi.BuildShortcuts(h)
	require.Len(t, vi.Shortcuts, 1)
	s := vi.Shortcuts[0]
	assert.Equal(t, uint32(0), s.A)
	assert.Equal(t, uint32(2), s.B)
	assert.True(t, s.ForwardValid)
	assert.False(t, s.BackwardValid)
	assert.InDelta(t, 200, s.Forward, 1e-3)
	assert.Equal(t, 2, vi.Added(h))

	b, err := NewBuilder[float32](g, h)
	require.NoError(t, err)
	b.contracted = make([]bool, 3)
	b.contractedNeighbours = make([]int, 3)
	b.depth = make([]int, 3)
	b.witnessQueue = map[uint32]map[uint32]struct{}{}
	b.wg, err = NewWitnessGraph(3)
	require.NoError(t, err)
	b.calc = NewWitnessCalculator(h, b.contracted, 0, 0)
	require.NoError(t, b.contract(context.Background(), 1))

	// 0 keeps a forward shortcut to 2, 2 the mirrored backward one.
	var short []edgeView
	for _, e := range edgesOf(g, h, 0) {
		if e.to == 2 {
			short = append(short, e)
		}
	}
	require.Len(t, short, 1)
	assert.Equal(t, weight.Forward, short[0].dir)
	assert.Equal(t, uint32(1), short[0].via)

	short = short[:0]
	for _, e := range edgesOf(g, h, 2) {
		if e.to == 0 {
			short = append(short, e)
		}
		assert.NotEqual(t, uint32(1), e.to, "downward edge to the contracted vertex")
	}
	require.Len(t, short, 1)
	assert.Equal(t, weight.Backward, short[0].dir)
	assert.Equal(t, 1, b.contractedNeighbours[0])
	assert.Equal(t, 1, b.depth[2])
}

func TestWitnessQueueTracksChangedSources(t *testing.T) {
	h := weight.NewDefault(testSource)
	// 1 is the centre of a star with leaves 0, 2 and 3.
	g := buildGraph(t, h, []road{{0, 1, 1000, 0}, {1, 2, 1000, 0}, {1, 3, 1000, 0}})

	b, err := NewBuilder[float32](g, h, WithConfig(Config{WitnessQueueLimit: 100}))
	require.NoError(t, err)
	b.contracted = make([]bool, 4)
	b.contractedNeighbours = make([]int, 4)
	b.depth = make([]int, 4)
	b.witnessQueue = map[uint32]map[uint32]struct{}{}
	b.wg, err = NewWitnessGraph(4)
	require.NoError(t, err)
	b.calc = NewWitnessCalculator(h, b.contracted, 0, 0)
	require.NoError(t, b.contract(context.Background(), 1))

	require.Len(t, b.witnessQueue, 3)
	assert.Equal(t, map[uint32]struct{}{2: {}, 3: {}}, b.witnessQueue[0])
	assert.Equal(t, map[uint32]struct{}{0: {}, 3: {}}, b.witnessQueue[2])

	require.NoError(t, b.flushWitnessQueue(context.Background()))
	assert.Empty(t, b.witnessQueue)
	// Around 0, the 2->3 witness is the new direct shortcut.
	m, ok := b.wg.Get(2, 3)
	require.True(t, ok)
	assert.InDelta(t, 200, m, 0.11)
}

func TestWitnessPrunesShortcut(t *testing.T) {
	h := weight.NewDefault(testSource)
	// 0-1-2 via 1 costs 200, the direct 0-2 road only 150.
	g := buildGraph(t, h, []road{{0, 1, 1000, 0}, {1, 2, 1000, 0}, {0, 2, 1500, 0}})

	wg, err := NewWitnessGraph(3)
	require.NoError(t, err)
	calc := NewWitnessCalculator(h, make([]bool, 3), 0, 0)
	require.NoError(t, calc.Run(g, wg, 1, nil))

	m, ok := wg.Get(0, 2)
	require.True(t, ok)
	assert.InDelta(t, 150, m, 0.11)
	m, ok = wg.Get(2, 0)
	require.True(t, ok)
	assert.InDelta(t, 150, m, 0.11)

	var vi VertexInfo[float32]
	vi.Load(g, h, 1, nil)
	vi.BuildShortcuts(h)
	require.Len(t, vi.Shortcuts, 1)
	vi.RemoveWitnessed(h, wg)
	assert.Empty(t, vi.Shortcuts)
}

func TestWitnessKeepsNeededShortcut(t *testing.T) {
	h := weight.NewDefault(testSource)
	// The detour 0-3-2 costs 400, more than 0-1-2.
	g := buildGraph(t, h, []road{{0, 1, 1000, 0}, {1, 2, 1000, 0}, {0, 3, 2000, 0}, {3, 2, 2000, 0}})

	wg, err := NewWitnessGraph(4)
	require.NoError(t, err)
	calc := NewWitnessCalculator(h, make([]bool, 4), 0, 0)
	require.NoError(t, calc.Run(g, wg, 1, nil))

	var vi VertexInfo[float32]
	vi.Load(g, h, 1, nil)
	vi.BuildShortcuts(h)
	vi.RemoveWitnessed(h, wg)
	require.Len(t, vi.Shortcuts, 1)
	assert.True(t, vi.Shortcuts[0].ForwardValid)
	assert.True(t, vi.Shortcuts[0].BackwardValid)
	assert.Equal(t, 2, vi.Added(h), "equal weights merge into one edge per end")

	// Absent witnesses are cleared on recomputation.
	require.NoError(t, wg.Apply([]Witness{{From: 0, To: 2, Metric: 1}}))
	require.NoError(t, calc.Run(g, wg, 3, nil))
	m, ok := wg.Get(0, 2)
	require.True(t, ok)
	assert.InDelta(t, 200, m, 0.11)
}

func TestWitnessAffectedSources(t *testing.T) {
	h := weight.NewDefault(testSource)
	g := buildGraph(t, h, []road{{0, 1, 1000, 0}, {1, 2, 1000, 0}, {0, 2, 1500, 0}, {1, 3, 1000, 0}, {3, 2, 1000, 0}})
	calc := NewWitnessCalculator(h, make([]bool, 4), 0, 0)

	all := calc.Calculate(g, 1, nil)
	some := calc.Calculate(g, 1, map[uint32]struct{}{0: {}})
	require.NotEmpty(t, some)
	assert.Less(t, len(some), len(all))
	for _, w := range some {
		assert.Equal(t, uint32(0), w.From)
	}
	assert.Empty(t, calc.Calculate(g, 1, map[uint32]struct{}{}))
}

func TestWitnessGraphCompress(t *testing.T) {
	wg, err := NewWitnessGraph(4)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		require.NoError(t, wg.Apply([]Witness{{From: 0, To: uint32(1 + i%3), Metric: float32(i)}}))
	}
	require.NoError(t, wg.RemoveVertex(0))
	require.NoError(t, wg.Apply([]Witness{{From: 2, To: 3, Metric: 5}}))
	compressed, err := wg.MaybeCompress(1)
	require.NoError(t, err)
	assert.True(t, compressed)
	m, ok := wg.Get(2, 3)
	assert.True(t, ok)
	assert.Equal(t, float32(5), m)
	_, ok = wg.Get(0, 1)
	assert.False(t, ok)
}

func TestPriority(t *testing.T) {
	h := weight.NewDefault(testSource)
	g := buildGrid(t, h)

	var vi VertexInfo[float32]
	vi.Load(g, h, 0, nil)
	vi.BuildShortcuts(h)
	vi.ContractedNeighbours = 1
	vi.Depth = 2
	// One bidirectional shortcut 1-3 (2 edges) replaces 2 edges.
	assert.Equal(t, float32(0*4+1*1+2*14), vi.Priority(h, DefaultConfig()))
	assert.ElementsMatch(t, []uint32{1, 3}, vi.Neighbours())
}

func TestMissWindow(t *testing.T) {
	h := weight.NewDefault(testSource)
	b, err := NewBuilder[float32](buildGrid(t, h), h, WithConfig(Config{MissWindow: 3}))
	require.NoError(t, err)
	b.window = make([]bool, 3)

	assert.False(t, b.recordSelection(true))
	assert.False(t, b.recordSelection(true))
	assert.False(t, b.recordSelection(false))
	assert.False(t, b.recordSelection(true))
	assert.False(t, b.recordSelection(true))
	assert.True(t, b.recordSelection(true))
	assert.Equal(t, 0, b.windowMisses)
}

func TestBuilderRejectsMismatchedGraph(t *testing.T) {
	h := weight.NewDefault(testSource)
	g, err := graph.NewDirectedMeta(3, 1)
	require.NoError(t, err)
	_, err = NewBuilder[float32](g, h)
	assert.ErrorIs(t, err, graph.ErrFixedArity)

	g, err = graph.NewDirectedMeta(1, 1)
	require.NoError(t, err)
	g.Freeze()
	_, err = NewBuilder[float32](g, h)
	assert.ErrorIs(t, err, graph.ErrReadOnly)
}

func TestContractCancelled(t *testing.T) {
	h := weight.NewDefault(testSource)
	g := buildGrid(t, h)
	b, err := NewBuilder[float32](g, h)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.Run(ctx), context.Canceled)

	// The half-built graph is frozen.
	assert.True(t, g.ReadOnly())
	_, err = g.AddEdge(0, 4, []uint32{0}, []uint32{graph.NoVertex})
	assert.ErrorIs(t, err, graph.ErrReadOnly)
	_, err = NewBuilder[float32](g, h)
	assert.ErrorIs(t, err, graph.ErrReadOnly)
}

func TestContractEmpty(t *testing.T) {
	h := weight.NewDefault(testSource)
	g, err := graph.NewDirectedMeta(1, 1)
	require.NoError(t, err)
	b, err := NewBuilder[float32](g, h)
	require.NoError(t, err)
	require.NoError(t, b.Run(context.Background()))
	assert.Empty(t, b.Order())
}

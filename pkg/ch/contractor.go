// Package ch builds contraction hierarchies in place on a meta-graph.
//
// Every road edge is stored at both of its ends, with the direction bits
// mirrored at the far end. Contracting a vertex removes the edges pointing
// down to it from its neighbours and inserts shortcuts between them tagged
// with the vertex as their via metadata. What remains in a contracted
// vertex's block are its upward edges, which is all a query needs.
package ch

import (
	"container/heap"
	"context"
	"io"
	"runtime"
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/azybler/road_router/pkg/graph"
	"github.com/azybler/road_router/pkg/weight"
)

// Config holds the tuning knobs of the builder. The priority factors and the
// miss window trade build time against query-time hierarchy quality.
type Config struct {
	DifferenceFactor      float32 `yaml:"difference_factor"`
	ContractedFactor      float32 `yaml:"contracted_factor"`
	DepthFactor           float32 `yaml:"depth_factor"`
	MissWindow            int     `yaml:"miss_window"`
	WitnessQueueLimit     int     `yaml:"witness_queue_limit"`
	WitnessCompressFactor int     `yaml:"witness_compress_factor"`
	MaxSettled            int     `yaml:"max_settled"`
	MaxHops               int     `yaml:"max_hops"`
	Workers               int     `yaml:"workers"`
}

// DefaultConfig returns the default tuning.
func DefaultConfig() Config {
	return Config{
		DifferenceFactor:      4,
		ContractedFactor:      1,
		DepthFactor:           14,
		MissWindow:            20,
		WitnessQueueLimit:     1024,
		WitnessCompressFactor: 8,
		MaxSettled:            defaultMaxSettled,
		MaxHops:               defaultMaxHops,
		Workers:               runtime.GOMAXPROCS(0),
	}
}

// Stats counts what a build did.
type Stats struct {
	Contracted          int
	Shortcuts           int
	Misses              int
	Rebuilds            int
	WitnessPasses       int
	WitnessCompressions int
}

// Option configures a Builder.
type Option func(*options)

type options struct {
	cfg    Config
	logger logrus.FieldLogger
}

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger sets the logger used for progress output.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.logger = l }
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

// Builder contracts a meta-graph in place. A Builder runs once.
type Builder[T any] struct {
	g   *graph.DirectedMeta
	h   weight.Handler[T]
	cfg Config
	log logrus.FieldLogger

	wg   *WitnessGraph
	calc *WitnessCalculator[T]
	info VertexInfo[T]
	buf  []uint32

	contracted           []bool
	contractedNeighbours []int
	depth                []int
	order                []uint32

	pq           priorityQueue
	window       []bool
	windowPos    int
	windowMisses int
	// witnessQueue maps a vertex awaiting witness recomputation to the
	// neighbours whose edges changed since its last pass.
	witnessQueue map[uint32]map[uint32]struct{}

	stats Stats
}

// NewBuilder prepares a builder for g, whose fixed fields must follow the
// encoding of h and whose first meta word receives the via vertex.
func NewBuilder[T any](g *graph.DirectedMeta, h weight.Handler[T], opts ...Option) (*Builder[T], error) {
	o := options{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = discardLogger()
	}
	if g.ReadOnly() {
		return nil, errors.Wrap(graph.ErrReadOnly, "contract")
	}
	if g.FixedSize() != h.FixedSize() {
		return nil, errors.Wrapf(graph.ErrFixedArity, "graph has %d fixed fields, weight needs %d", g.FixedSize(), h.FixedSize())
	}
	if o.cfg.Workers <= 0 {
		o.cfg.Workers = 1
	}
	if o.cfg.WitnessCompressFactor <= 0 {
		o.cfg.WitnessCompressFactor = 8
	}
	return &Builder[T]{
		g:   g,
		h:   h,
		cfg: o.cfg,
		log: o.logger.WithField("module", "ch"),
	}, nil
}

// Order returns the vertices in contraction order.
func (b *Builder[T]) Order() []uint32 { return b.order }

// Stats returns the build counters.
func (b *Builder[T]) Stats() Stats { return b.stats }

// Run contracts every vertex. On error the graph is left half-contracted
// and frozen so it cannot be contracted further; it must be discarded.
func (b *Builder[T]) Run(ctx context.Context) error {
	if err := b.run(ctx); err != nil {
		b.g.Freeze()
		return err
	}
	return nil
}

func (b *Builder[T]) run(ctx context.Context) error {
	n := b.g.VertexCount()
	if n == 0 {
		return nil
	}
	b.contracted = make([]bool, n)
	b.contractedNeighbours = make([]int, n)
	b.depth = make([]int, n)
	b.order = make([]uint32, 0, n)
	b.window = make([]bool, max(b.cfg.MissWindow, 0))
	b.witnessQueue = make(map[uint32]map[uint32]struct{})

	wg, err := NewWitnessGraph(n)
	if err != nil {
		return err
	}
	b.wg = wg
	b.calc = NewWitnessCalculator(b.h, b.contracted, b.cfg.MaxSettled, b.cfg.MaxHops)

	b.log.WithField("vertices", n).Info("starting contraction")

	all := make([]uint32, n)
	for i := range all {
		all[i] = uint32(i)
	}
	if err := b.computeWitnesses(ctx, all, nil); err != nil {
		return err
	}
	b.buildQueue()

	logInterval := 50000
	for b.pq.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "contraction cancelled")
		}
		v, ok := b.selectNext()
		if !ok {
			continue
		}
		if err := b.contract(ctx, v); err != nil {
			return errors.Wrapf(err, "contract vertex %d", v)
		}

		// Log more often as we approach the end.
		remaining := int(n) - len(b.order)
		switch {
		case remaining < 1000:
			logInterval = 100
		case remaining < 10000:
			logInterval = 1000
		case remaining < 100000:
			logInterval = 10000
		}
		if len(b.order)%logInterval == 0 {
			b.log.WithFields(logrus.Fields{
				"contracted": len(b.order),
				"shortcuts":  b.stats.Shortcuts,
			}).Debug("contraction progress")
		}
	}

	b.log.WithFields(logrus.Fields{
		"contracted": b.stats.Contracted,
		"shortcuts":  b.stats.Shortcuts,
		"misses":     b.stats.Misses,
		"rebuilds":   b.stats.Rebuilds,
	}).Info("contraction complete")
	return nil
}

// evaluate loads v into b.info and returns its current priority.
func (b *Builder[T]) evaluate(v uint32) float32 {
	b.info.Load(b.g, b.h, v, b.contracted)
	b.info.ContractedNeighbours = b.contractedNeighbours[v]
	b.info.Depth = b.depth[v]
	b.info.BuildShortcuts(b.h)
	b.info.RemoveWitnessed(b.h, b.wg)
	return b.info.Priority(b.h, b.cfg)
}

func (b *Builder[T]) buildQueue() {
	b.pq = b.pq[:0]
	for v := range b.contracted {
		if b.contracted[v] {
			continue
		}
		b.pq = append(b.pq, &pqEntry{
			vertex:   uint32(v),
			priority: b.evaluate(uint32(v)),
			index:    len(b.pq),
		})
	}
	heap.Init(&b.pq)
}

// selectNext pops the queue head and accepts it if its recomputed priority
// still makes it the minimum. Rejected vertices are requeued.
func (b *Builder[T]) selectNext() (uint32, bool) {
	entry := heap.Pop(&b.pq).(*pqEntry)
	v := entry.vertex
	if b.contracted[v] {
		return 0, false
	}

	p := b.evaluate(v)
	if p == entry.priority || b.pq.Len() == 0 || p <= b.pq[0].priority {
		b.recordSelection(false)
		return v, true
	}

	entry.priority = p
	heap.Push(&b.pq, entry)
	b.stats.Misses++
	if b.recordSelection(true) {
		b.log.WithField("remaining", b.pq.Len()).Debug("too many stale priorities, rebuilding queue")
		b.buildQueue()
		b.stats.Rebuilds++
	}
	return 0, false
}

// recordSelection pushes one outcome into the miss window and reports
// whether the whole window is misses.
func (b *Builder[T]) recordSelection(miss bool) bool {
	k := len(b.window)
	if k == 0 {
		return false
	}
	if b.window[b.windowPos] {
		b.windowMisses--
	}
	b.window[b.windowPos] = miss
	if miss {
		b.windowMisses++
	}
	b.windowPos = (b.windowPos + 1) % k
	if b.windowMisses < k {
		return false
	}
	clear(b.window)
	b.windowMisses = 0
	return true
}

func (b *Builder[T]) contract(ctx context.Context, v uint32) error {
	// Witnesses in the graph may have been computed around another vertex
	// and route through v; only fresh ones may prune v's shortcuts.
	if err := b.calc.Run(b.g, b.wg, v, nil); err != nil {
		return err
	}
	b.evaluate(v)
	neighbours := b.info.Neighbours()

	// Remove the downward edges.
	for _, n := range neighbours {
		if err := b.removeAll(n, v); err != nil {
			return err
		}
	}

	for _, s := range b.info.Shortcuts {
		if err := b.addOrUpdateEdge(s.A, s.B, s.Forward, s.ForwardValid, s.Backward, s.BackwardValid, v); err != nil {
			return err
		}
		if err := b.addOrUpdateEdge(s.B, s.A, s.Backward, s.BackwardValid, s.Forward, s.ForwardValid, v); err != nil {
			return err
		}
		b.stats.Shortcuts++
	}

	b.contracted[v] = true
	b.order = append(b.order, v)
	b.stats.Contracted++

	for _, n := range neighbours {
		b.contractedNeighbours[n]++
		b.depth[n] = max(b.depth[n], b.depth[v]+1)
		b.queueWitnesses(n, neighbours)
	}
	delete(b.witnessQueue, v)
	if err := b.wg.RemoveVertex(v); err != nil {
		return err
	}

	if len(b.witnessQueue) > b.cfg.WitnessQueueLimit {
		if err := b.flushWitnessQueue(ctx); err != nil {
			return err
		}
	}
	compressed, err := b.wg.MaybeCompress(b.cfg.WitnessCompressFactor)
	if err != nil {
		return err
	}
	if compressed {
		b.stats.WitnessCompressions++
	}
	return nil
}

func (b *Builder[T]) removeAll(from, to uint32) error {
	for {
		n, err := b.g.RemoveEdge(from, to)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

// addOrUpdateEdge merges a shortcut into the edges from x to y. fwd is the
// weight from x to y, bwd from y to x. Existing edges win ties so original
// edges are kept over shortcuts.
func (b *Builder[T]) addOrUpdateEdge(x, y uint32, fwd T, fwdOK bool, bwd T, bwdOK bool, via uint32) error {
	fwdVia, bwdVia := via, via

	e := b.g.GetEdgeEnumerator()
	if e.MoveTo(x) {
		for e.MoveNext() {
			if e.Neighbour() != y {
				continue
			}
			w, dir := b.h.EdgeWeight(e.FixedData())
			if dir.Forward() && (!fwdOK || !b.h.IsLargerThan(w, fwd)) {
				fwd, fwdOK, fwdVia = w, true, e.Meta(0)
			}
			if dir.Backward() && (!bwdOK || !b.h.IsLargerThan(w, bwd)) {
				bwd, bwdOK, bwdVia = w, true, e.Meta(0)
			}
		}
	}
	if err := b.removeAll(x, y); err != nil {
		return err
	}

	if fwdOK && bwdOK && fwdVia == bwdVia && b.h.Equal(fwd, bwd) {
		return b.addEdge(x, y, fwd, weight.Both, fwdVia)
	}
	if fwdOK {
		if err := b.addEdge(x, y, fwd, weight.Forward, fwdVia); err != nil {
			return err
		}
	}
	if bwdOK {
		if err := b.addEdge(x, y, bwd, weight.Backward, bwdVia); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder[T]) addEdge(x, y uint32, w T, dir weight.Direction, via uint32) error {
	var err error
	b.buf, err = b.h.AppendEdge(b.buf[:0], w, dir)
	if err != nil {
		return errors.Wrapf(err, "shortcut %d->%d", x, y)
	}
	meta := make([]uint32, b.g.MetaWidth())
	meta[0] = via
	_, err = b.g.AddEdge(x, y, b.buf, meta)
	return err
}

// queueWitnesses marks the witnesses around n starting at the other
// vertices of changed as stale. The shortcuts of a contraction connect
// exactly those vertices.
func (b *Builder[T]) queueWitnesses(n uint32, changed []uint32) {
	set := b.witnessQueue[n]
	if set == nil {
		set = make(map[uint32]struct{}, len(changed))
		b.witnessQueue[n] = set
	}
	for _, m := range changed {
		if m != n {
			set[m] = struct{}{}
		}
	}
}

func (b *Builder[T]) flushWitnessQueue(ctx context.Context) error {
	vertices := make([]uint32, 0, len(b.witnessQueue))
	for v := range b.witnessQueue {
		vertices = append(vertices, v)
	}
	sort.Slice(vertices, func(i, j int) bool { return vertices[i] < vertices[j] })
	affected := b.witnessQueue
	b.witnessQueue = make(map[uint32]map[uint32]struct{})
	return b.computeWitnesses(ctx, vertices, affected)
}

// computeWitnesses recomputes the witnesses around vertices in parallel.
// Workers only read the graph; results are applied here, sequentially. With
// a non-nil affected, only the sources listed for a vertex are searched.
func (b *Builder[T]) computeWitnesses(ctx context.Context, vertices []uint32, affected map[uint32]map[uint32]struct{}) error {
	workers := b.cfg.Workers
	chunk := (len(vertices) + workers - 1) / workers
	results := make([][]Witness, len(vertices))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for start := 0; start < len(vertices); start += chunk {
		end := min(start+chunk, len(vertices))
		part, out := vertices[start:end], results[start:end]
		eg.Go(func() error {
			calc := NewWitnessCalculator(b.h, b.contracted, b.cfg.MaxSettled, b.cfg.MaxHops)
			for i, v := range part {
				if err := egCtx.Err(); err != nil {
					return err
				}
				var sources map[uint32]struct{}
				if affected != nil {
					sources = affected[v]
					if len(sources) == 0 {
						continue
					}
				}
				out[i] = calc.Calculate(b.g, v, sources)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return errors.Wrap(err, "witness pass")
	}

	for _, ws := range results {
		if err := b.wg.Apply(ws); err != nil {
			return err
		}
	}
	b.stats.WitnessPasses++
	return nil
}

// Priority queue implementation for contraction ordering.

type pqEntry struct {
	vertex   uint32
	priority float32
	index    int
}

type priorityQueue []*pqEntry

func (pq priorityQueue) Len() int           { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool { return pq[i].priority < pq[j].priority }
func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	entry := x.(*pqEntry)
	entry.index = len(*pq)
	*pq = append(*pq, entry)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	entry.index = -1
	*pq = old[:n-1]
	return entry
}

package graph

import (
	"sort"

	"github.com/pkg/errors"
)

const (
	defaultVertexCapacity = 1024
	defaultEdgeCapacity   = 4096
)

// Directed is an appendable adjacency store. Each vertex owns a contiguous
// block of packed words in one flat edge array:
//
//	[neighbour, fixed fields..., dynamic fields...] [neighbour, ...] ...
//
// The last word of every edge carries the last-field flag and the last word
// of the block also carries the last-edge flag. Blocks are allocated with a
// power-of-two capacity and relocated to the end of the array when they
// outgrow it.
type Directed struct {
	fixedSize int
	edgeSize  uint32 // minimum words per edge

	vertices words // block start per vertex, NoEdge when empty
	edges    words

	nextEdge    uint32 // write cursor into edges
	vertexCount uint32
	edgeCount   uint32

	readonly bool
	listener EdgeListener
}

// Option configures a new Directed graph.
type Option func(*options)

type options struct {
	vertexCapacity int
	edgeCapacity   int
}

// WithVertexCapacity sets the initial vertex array size estimate.
func WithVertexCapacity(n int) Option {
	return func(o *options) { o.vertexCapacity = n }
}

// WithEdgeCapacity sets the initial edge array size estimate, in words.
func WithEdgeCapacity(n int) Option {
	return func(o *options) { o.edgeCapacity = n }
}

// NewDirected creates an empty graph whose edges carry fixedSize fixed fields.
func NewDirected(fixedSize int, opts ...Option) (*Directed, error) {
	o := options{vertexCapacity: defaultVertexCapacity, edgeCapacity: defaultEdgeCapacity}
	for _, opt := range opts {
		opt(&o)
	}
	if fixedSize < 0 {
		return nil, errors.Wrapf(ErrInvalidSize, "fixed size %d", fixedSize)
	}
	if o.vertexCapacity <= 0 || o.edgeCapacity <= 0 {
		return nil, errors.Wrapf(ErrInvalidSize, "capacity estimates %d/%d", o.vertexCapacity, o.edgeCapacity)
	}
	return &Directed{
		fixedSize: fixedSize,
		edgeSize:  uint32(fixedSize + 1),
		vertices:  newMemWords(o.vertexCapacity),
		edges:     newMemWords(o.edgeCapacity),
	}, nil
}

// SetListener registers the structure that follows edge relocations.
func (g *Directed) SetListener(l EdgeListener) {
	g.listener = l
	if l != nil {
		l.ResizeEdges(g.slots(uint32(g.edges.Len())))
	}
}

// FixedSize returns the number of fixed fields per edge.
func (g *Directed) FixedSize() int { return g.fixedSize }

// VertexCount returns one more than the highest vertex id referenced.
func (g *Directed) VertexCount() uint32 { return g.vertexCount }

// EdgeCount returns the number of live edges.
func (g *Directed) EdgeCount() uint32 { return g.edgeCount }

// EdgeSpace returns the number of words in use up to the write cursor,
// including padding and holes.
func (g *Directed) EdgeSpace() uint32 { return g.nextEdge }

// EdgeSlots returns the number of edge ids the edge array can address.
func (g *Directed) EdgeSlots() uint32 { return g.slots(uint32(g.edges.Len())) }

// ReadOnly reports whether the graph rejects mutation.
func (g *Directed) ReadOnly() bool { return g.readonly }

// Freeze makes the graph read-only.
func (g *Directed) Freeze() { g.readonly = true }

func (g *Directed) slots(words uint32) uint32 {
	return (words + g.edgeSize - 1) / g.edgeSize
}

func (g *Directed) edgeID(start uint32) uint32 { return start / g.edgeSize }

func (g *Directed) head(vertex uint32) uint32 {
	if int(vertex) >= g.vertices.Len() {
		return NoEdge
	}
	return g.vertices.Get(int(vertex))
}

// edgeEnd returns the index just past the edge starting at start.
func (g *Directed) edgeEnd(start uint32) uint32 {
	p := start
	for !isLastField(g.edges.Get(int(p))) {
		p++
	}
	return p + 1
}

// blockLen returns the number of words in the block starting at head.
func (g *Directed) blockLen(head uint32) uint32 {
	p := head
	for !isLastEdge(g.edges.Get(int(p))) {
		p++
	}
	return p - head + 1
}

func (g *Directed) ensureVertex(vertex uint32) {
	if vertex >= g.vertexCount {
		g.vertexCount = vertex + 1
	}
	if int(vertex) < g.vertices.Len() {
		return
	}
	size := g.vertices.Len() * 2
	for size <= int(vertex) {
		size *= 2
	}
	g.vertices.Resize(size)
}

// allocate reserves size words at the write cursor.
func (g *Directed) allocate(size uint32) uint32 {
	p := g.nextEdge
	if need := int(p + size); need > g.edges.Len() {
		grown := max(g.edges.Len()*2, need)
		if g.listener != nil {
			g.listener.ResizeEdges(g.slots(uint32(grown)))
		}
		g.edges.Resize(grown)
	}
	g.nextEdge += size
	return p
}

// moveBlock copies n words from src to dst and switches every edge id.
func (g *Directed) moveBlock(src, dst, n uint32) {
	if src == dst {
		return
	}
	if g.listener != nil {
		for s := src; s < src+n; s = g.edgeEnd(s) {
			g.listener.SwitchEdge(g.edgeID(s), g.edgeID(dst+(s-src)))
		}
	}
	move(g.edges, int(dst), int(src), int(n))
}

func (g *Directed) validate(from, to uint32, data []uint32) error {
	if g.readonly {
		return ErrReadOnly
	}
	if from == to {
		return errors.Wrapf(ErrSelfLoop, "vertex %d", from)
	}
	if len(data) < g.fixedSize {
		return errors.Wrapf(ErrFixedArity, "got %d fields, want at least %d", len(data), g.fixedSize)
	}
	// A vertex word equal to NoEdge would read as a hole.
	if v := max(from, to); v >= MaxDynamicPayload {
		return errors.Wrapf(ErrPayloadTooLarge, "vertex %d", v)
	}
	for i, d := range data {
		if err := checkPayload(d); err != nil {
			return errors.Wrapf(err, "field %d", i)
		}
	}
	return nil
}

// AddEdge appends an edge from -> to. The first FixedSize values of data are
// the fixed fields, any remaining values are dynamic fields. It returns the
// id of the new edge.
func (g *Directed) AddEdge(from, to uint32, data ...uint32) (uint32, error) {
	if err := g.validate(from, to, data); err != nil {
		return NoEdge, err
	}
	g.ensureVertex(max(from, to))

	size := uint32(len(data) + 1)
	head := g.head(from)
	var start uint32
	if head == NoEdge {
		head = g.allocate(nextPow2(size))
		g.vertices.Set(int(from), head)
		start = head
	} else {
		n := g.blockLen(head)
		if n+size > nextPow2(n) {
			// Relocate the block to a larger slot at the end of the array.
			moved := g.allocate(nextPow2(n + size))
			g.moveBlock(head, moved, n)
			clearWords(g.edges, int(head), int(head+n))
			g.vertices.Set(int(from), moved)
			head = moved
		}
		last := head + n - 1
		g.edges.Set(int(last), g.edges.Get(int(last))&^lastEdgeFlag)
		start = head + n
	}

	g.edges.Set(int(start), to)
	for i, d := range data {
		g.edges.Set(int(start)+1+i, d)
	}
	end := int(start + size - 1)
	g.edges.Set(end, g.edges.Get(end)|lastFieldFlag|lastEdgeFlag)

	g.edgeCount++
	return g.edgeID(start), nil
}

// UpdateEdge is not supported on packed edges.
func (g *Directed) UpdateEdge(from, to uint32, data ...uint32) error {
	return errors.Wrapf(ErrNotSupported, "edge %d->%d", from, to)
}

// RemoveEdge removes the first edge from -> to and returns the number of
// removed edges. The reverse direction is untouched.
func (g *Directed) RemoveEdge(from, to uint32) (int, error) {
	if g.readonly {
		return 0, ErrReadOnly
	}
	head := g.head(from)
	if head == NoEdge {
		return 0, nil
	}
	n := g.blockLen(head)
	blockEnd := head + n

	start := head
	for start < blockEnd {
		end := g.edgeEnd(start)
		if payload(g.edges.Get(int(start))) != to {
			start = end
			continue
		}

		size := end - start
		if size == n {
			clearWords(g.edges, int(head), int(blockEnd))
			g.vertices.Set(int(from), NoEdge)
		} else {
			g.moveBlock(end, start, blockEnd-end)
			clearWords(g.edges, int(blockEnd-size), int(blockEnd))
			last := int(blockEnd - size - 1)
			g.edges.Set(last, g.edges.Get(last)|lastEdgeFlag)
		}
		g.edgeCount--
		return 1, nil
	}
	return 0, nil
}

// RemoveEdges removes all edges starting at vertex and returns their count.
func (g *Directed) RemoveEdges(vertex uint32) (int, error) {
	if g.readonly {
		return 0, ErrReadOnly
	}
	head := g.head(vertex)
	if head == NoEdge {
		return 0, nil
	}
	n := g.blockLen(head)
	count := 0
	for s := head; s < head+n; s = g.edgeEnd(s) {
		count++
	}
	clearWords(g.edges, int(head), int(head+n))
	g.vertices.Set(int(vertex), NoEdge)
	g.edgeCount -= uint32(count)
	return count, nil
}

// Compress moves all blocks down into one contiguous run ordered by their
// current offset. Unless the graph becomes read-only, every block is padded
// to a power of two so it can grow in place.
func (g *Directed) Compress(toReadonly bool) error {
	if g.readonly {
		return ErrReadOnly
	}

	type block struct{ vertex, head uint32 }
	blocks := make([]block, 0, g.vertexCount)
	for v := uint32(0); v < g.vertexCount; v++ {
		if h := g.head(v); h != NoEdge {
			blocks = append(blocks, block{v, h})
		}
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].head < blocks[j].head })

	cursor := uint32(0)
	for _, b := range blocks {
		n := g.blockLen(b.head)
		g.moveBlock(b.head, cursor, n)
		g.vertices.Set(int(b.vertex), cursor)

		size := n
		if !toReadonly {
			size = nextPow2(n)
		}
		clearWords(g.edges, int(cursor+n), int(cursor+size))
		cursor += size
	}
	clearWords(g.edges, int(cursor), int(g.nextEdge))
	g.nextEdge = cursor
	g.readonly = toReadonly
	return nil
}

// Trim compresses the graph and shrinks the vertex and edge arrays to the
// smallest size holding every referenced vertex and edge.
func (g *Directed) Trim() error {
	if err := g.Compress(false); err != nil {
		return err
	}
	vertices := max(int(g.vertexCount), 1)
	g.vertices.Resize(vertices)
	edges := max(int(g.nextEdge), 1)
	if g.listener != nil {
		g.listener.ResizeEdges(g.slots(uint32(edges)))
	}
	g.edges.Resize(edges)
	return nil
}

// GetEdgeEnumerator returns a new enumerator over this graph.
func (g *Directed) GetEdgeEnumerator() *EdgeEnumerator {
	return &EdgeEnumerator{
		g:     g,
		next:  NoEdge,
		fixed: make([]uint32, g.fixedSize),
	}
}

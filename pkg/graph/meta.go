package graph

import "github.com/pkg/errors"

// DirectedMeta is a Directed graph with a fixed-width row of metadata per
// edge id. The contraction hierarchy keeps the contracted-via vertex there.
type DirectedMeta struct {
	graph *Directed
	width int
	meta  words
}

// NewDirectedMeta creates an empty meta-graph.
func NewDirectedMeta(fixedSize, metaWidth int, opts ...Option) (*DirectedMeta, error) {
	if metaWidth <= 0 {
		return nil, errors.Wrapf(ErrInvalidSize, "meta width %d", metaWidth)
	}
	g, err := NewDirected(fixedSize, opts...)
	if err != nil {
		return nil, err
	}
	m := &DirectedMeta{graph: g, width: metaWidth, meta: newMemWords(0)}
	g.SetListener(m)
	return m, nil
}

// SwitchEdge copies the metadata row of oldID to newID.
func (m *DirectedMeta) SwitchEdge(oldID, newID uint32) {
	move(m.meta, int(newID)*m.width, int(oldID)*m.width, m.width)
}

// ResizeEdges keeps the metadata array aligned with the edge slots.
func (m *DirectedMeta) ResizeEdges(slots uint32) {
	m.meta.Resize(int(slots) * m.width)
}

// Graph returns the underlying store.
func (m *DirectedMeta) Graph() *Directed { return m.graph }

// MetaWidth returns the number of metadata words per edge.
func (m *DirectedMeta) MetaWidth() int { return m.width }

// FixedSize returns the number of fixed fields per edge.
func (m *DirectedMeta) FixedSize() int { return m.graph.FixedSize() }

// VertexCount returns the number of vertices.
func (m *DirectedMeta) VertexCount() uint32 { return m.graph.VertexCount() }

// EdgeCount returns the number of live edges.
func (m *DirectedMeta) EdgeCount() uint32 { return m.graph.EdgeCount() }

// ReadOnly reports whether the graph rejects mutation.
func (m *DirectedMeta) ReadOnly() bool { return m.graph.ReadOnly() }

// Freeze makes the graph read-only.
func (m *DirectedMeta) Freeze() { m.graph.Freeze() }

// AddEdge adds an edge with its metadata row and returns its id.
func (m *DirectedMeta) AddEdge(from, to uint32, data []uint32, meta []uint32) (uint32, error) {
	if len(meta) != m.width {
		return NoEdge, errors.Wrapf(ErrMetaArity, "got %d, want %d", len(meta), m.width)
	}
	id, err := m.graph.AddEdge(from, to, data...)
	if err != nil {
		return NoEdge, err
	}
	base := int(id) * m.width
	for i, v := range meta {
		m.meta.Set(base+i, v)
	}
	return id, nil
}

// MetaData returns a copy of the metadata row of edge id.
func (m *DirectedMeta) MetaData(id uint32) ([]uint32, error) {
	base := int(id) * m.width
	if id == NoEdge || base+m.width > m.meta.Len() {
		return nil, errors.Wrapf(ErrOutOfRange, "edge %d", id)
	}
	row := make([]uint32, m.width)
	for i := range row {
		row[i] = m.meta.Get(base + i)
	}
	return row, nil
}

// RemoveEdge removes the first edge from -> to. Its metadata row is left
// for the slot's next owner to overwrite.
func (m *DirectedMeta) RemoveEdge(from, to uint32) (int, error) { return m.graph.RemoveEdge(from, to) }

// RemoveEdges removes every edge stored at vertex.
func (m *DirectedMeta) RemoveEdges(vertex uint32) (int, error) { return m.graph.RemoveEdges(vertex) }

// Compress compresses the base graph; metadata rows follow through the
// listener and the array is resized to the new slot count.
func (m *DirectedMeta) Compress(toReadonly bool) error {
	if err := m.graph.Compress(toReadonly); err != nil {
		return err
	}
	m.ResizeEdges(m.graph.EdgeSlots())
	return nil
}

// Trim compresses and shrinks both arrays.
func (m *DirectedMeta) Trim() error {
	if err := m.graph.Trim(); err != nil {
		return err
	}
	m.ResizeEdges(m.graph.EdgeSlots())
	return nil
}

// GetEdgeEnumerator returns an enumerator exposing metadata as well.
func (m *DirectedMeta) GetEdgeEnumerator() *MetaEnumerator {
	return &MetaEnumerator{EdgeEnumerator: m.graph.GetEdgeEnumerator(), m: m}
}

// MetaEnumerator is an EdgeEnumerator over a DirectedMeta.
type MetaEnumerator struct {
	*EdgeEnumerator
	m *DirectedMeta
}

// Meta returns metadata word i of the current edge.
func (e *MetaEnumerator) Meta(i int) uint32 {
	return e.m.meta.Get(int(e.ID())*e.m.width + i)
}

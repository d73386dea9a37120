package graph

// EdgeEnumerator walks the edges of one vertex at a time. It is not safe for
// concurrent use; create one per goroutine.
type EdgeEnumerator struct {
	g      *Directed
	vertex uint32

	next  uint32 // start of the next edge, NoEdge when exhausted
	start uint32 // start of the current edge

	neighbour uint32
	fixed     []uint32
	dynamic   []uint32
}

// MoveTo resets the enumerator to the block of vertex. It reports whether
// the vertex has any edges.
func (e *EdgeEnumerator) MoveTo(vertex uint32) bool {
	e.vertex = vertex
	e.start = NoEdge
	e.next = e.g.head(vertex)
	return e.next != NoEdge
}

// Reset restarts enumeration of the current vertex.
func (e *EdgeEnumerator) Reset() bool { return e.MoveTo(e.vertex) }

// MoveNext advances to the next edge.
func (e *EdgeEnumerator) MoveNext() bool {
	if e.next == NoEdge {
		return false
	}
	edges := e.g.edges
	p := int(e.next)
	for p < edges.Len() && edges.Get(p) == NoEdge {
		p++
	}
	if p >= edges.Len() {
		e.next = NoEdge
		return false
	}

	e.start = uint32(p)
	w := edges.Get(p)
	e.neighbour = payload(w)
	p++
	for i := range e.fixed {
		w = edges.Get(p)
		e.fixed[i] = payload(w)
		p++
	}
	e.dynamic = e.dynamic[:0]
	if !isLastField(w) {
		for {
			w = edges.Get(p)
			e.dynamic = append(e.dynamic, payload(w))
			p++
			if isLastField(w) {
				break
			}
		}
	}

	if isLastEdge(w) {
		e.next = NoEdge
	} else {
		e.next = uint32(p)
	}
	return true
}

// Vertex returns the vertex being enumerated.
func (e *EdgeEnumerator) Vertex() uint32 { return e.vertex }

// Neighbour returns the target of the current edge.
func (e *EdgeEnumerator) Neighbour() uint32 { return e.neighbour }

// ID returns the id of the current edge.
func (e *EdgeEnumerator) ID() uint32 { return e.g.edgeID(e.start) }

// Data returns fixed field i of the current edge.
func (e *EdgeEnumerator) Data(i int) uint32 { return e.fixed[i] }

// FixedData returns the fixed fields of the current edge. The slice is
// reused by the next call to MoveNext.
func (e *EdgeEnumerator) FixedData() []uint32 { return e.fixed }

// DynamicData returns the dynamic fields of the current edge, nil when the
// fixed part terminates the edge. The slice is reused by MoveNext.
func (e *EdgeEnumerator) DynamicData() []uint32 {
	if len(e.dynamic) == 0 {
		return nil
	}
	return e.dynamic
}

// Count returns the number of edges of the current vertex without moving
// the enumerator.
func (e *EdgeEnumerator) Count() int {
	head := e.g.head(e.vertex)
	if head == NoEdge {
		return 0
	}
	n := e.g.blockLen(head)
	count := 0
	for s := head; s < head+n; s = e.g.edgeEnd(s) {
		count++
	}
	return count
}

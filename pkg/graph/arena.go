package graph

import (
	"encoding/binary"
	"io"
	"sync"

	"github.com/pkg/errors"
)

// EdgeListener is notified whenever the store moves an edge to a new home
// slot or resizes its edge array. Structures that keep per-edge data next to
// a Directed graph (the meta-graph) implement it to stay aligned.
type EdgeListener interface {
	// SwitchEdge is called before a reader can observe the edge at newID.
	SwitchEdge(oldID, newID uint32)
	// ResizeEdges is called with the number of edge id slots the store can address.
	ResizeEdges(slots uint32)
}

// words is a growable arena of uint32 values.
type words interface {
	Len() int
	Get(i int) uint32
	Set(i int, v uint32)
	// Resize grows or shrinks to n words; new words hold NoEdge.
	Resize(n int)
}

// memWords is a fully materialized arena.
type memWords []uint32

func newMemWords(n int) *memWords {
	w := make(memWords, n)
	for i := range w {
		w[i] = NoEdge
	}
	return &w
}

func (w *memWords) Len() int            { return len(*w) }
func (w *memWords) Get(i int) uint32    { return (*w)[i] }
func (w *memWords) Set(i int, v uint32) { (*w)[i] = v }

func (w *memWords) Resize(n int) {
	old := len(*w)
	if n <= cap(*w) {
		*w = (*w)[:n]
	} else {
		grown := make(memWords, n)
		copy(grown, *w)
		*w = grown
	}
	for i := old; i < n; i++ {
		(*w)[i] = NoEdge
	}
}

// move copies n words from src to dst; the ranges may overlap.
func move(w words, dst, src, n int) {
	if m, ok := w.(*memWords); ok {
		copy((*m)[dst:dst+n], (*m)[src:src+n])
		return
	}
	if dst < src {
		for i := 0; i < n; i++ {
			w.Set(dst+i, w.Get(src+i))
		}
		return
	}
	for i := n - 1; i >= 0; i-- {
		w.Set(dst+i, w.Get(src+i))
	}
}

func clearWords(w words, from, to int) {
	for i := from; i < to; i++ {
		w.Set(i, NoEdge)
	}
}

// MappedOptions configures the lazily paged read-only arenas used by
// DeserializeMapped.
type MappedOptions struct {
	PageWords int // words per page
	MaxPages  int // pages kept in memory per array
}

// DefaultMappedOptions keeps at most 64 pages of 16K words per array.
func DefaultMappedOptions() MappedOptions {
	return MappedOptions{PageWords: 16 * 1024, MaxPages: 64}
}

// pagedWords is a read-only view over a region of an io.ReaderAt. Pages are
// decoded on first access and evicted first-in first-out.
type pagedWords struct {
	ra        io.ReaderAt
	off       int64
	n         int
	pageWords int
	maxPages  int

	mu    sync.Mutex
	pages map[int][]uint32
	fifo  []int
}

func newPagedWords(ra io.ReaderAt, off int64, n int, opts MappedOptions) *pagedWords {
	if opts.PageWords <= 0 || opts.MaxPages <= 0 {
		opts = DefaultMappedOptions()
	}
	return &pagedWords{
		ra:        ra,
		off:       off,
		n:         n,
		pageWords: opts.PageWords,
		maxPages:  opts.MaxPages,
		pages:     make(map[int][]uint32),
	}
}

func (p *pagedWords) Len() int { return p.n }

func (p *pagedWords) Get(i int) uint32 {
	if i < 0 || i >= p.n {
		panic(errors.Wrapf(ErrOutOfRange, "word %d of %d", i, p.n))
	}
	page := i / p.pageWords

	p.mu.Lock()
	defer p.mu.Unlock()

	buf, ok := p.pages[page]
	if !ok {
		buf = p.load(page)
	}
	return buf[i%p.pageWords]
}

func (p *pagedWords) load(page int) []uint32 {
	start := page * p.pageWords
	size := min(p.pageWords, p.n-start)
	raw := make([]byte, size*4)
	if _, err := p.ra.ReadAt(raw, p.off+int64(start)*4); err != nil && !errors.Is(err, io.EOF) {
		// The region was validated when the graph was opened.
		panic(errors.Wrapf(err, "read page %d", page))
	}
	buf := make([]uint32, size)
	for i := range buf {
		buf[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}

	if len(p.fifo) >= p.maxPages {
		delete(p.pages, p.fifo[0])
		p.fifo = p.fifo[1:]
	}
	p.pages[page] = buf
	p.fifo = append(p.fifo, page)
	return buf
}

func (p *pagedWords) Set(int, uint32) { panic(ErrReadOnly) }
func (p *pagedWords) Resize(int)      { panic(ErrReadOnly) }

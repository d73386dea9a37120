package graph

import (
	"encoding/binary"
	"io"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/exp/mmap"
)

const (
	graphVersion = uint8(1)
	metaVersion  = uint8(1)

	maxFixedSize = 1024
	maxWords     = 1 << 34
)

// fileHeader precedes the vertex and edge arrays of a serialized graph.
type fileHeader struct {
	Version         uint8
	VertexCount     uint64
	EdgeCount       uint64
	EdgeArrayLength uint64
	FixedSize       uint32
}

// metaHeader precedes the metadata array of a serialized meta-graph.
type metaHeader struct {
	Version uint8
	Width   uint32
	Length  uint64
}

var (
	fileHeaderSize = int64(binary.Size(fileHeader{}))
	metaHeaderSize = int64(binary.Size(metaHeader{}))
)

// Serialize writes the graph and returns the number of bytes written.
func (g *Directed) Serialize(w io.Writer) (int64, error) {
	hdr := fileHeader{
		Version:         graphVersion,
		VertexCount:     uint64(g.vertexCount),
		EdgeCount:       uint64(g.edgeCount),
		EdgeArrayLength: uint64(g.nextEdge),
		FixedSize:       uint32(g.fixedSize),
	}
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return 0, errors.Wrap(err, "write header")
	}
	if err := writeWords(w, g.vertices, int(g.vertexCount)); err != nil {
		return 0, errors.Wrap(err, "write vertices")
	}
	if err := writeWords(w, g.edges, int(g.nextEdge)); err != nil {
		return 0, errors.Wrap(err, "write edges")
	}
	return fileHeaderSize + 4*int64(g.vertexCount) + 4*int64(g.nextEdge), nil
}

func readHeader(r io.Reader) (fileHeader, error) {
	var hdr fileHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return hdr, errors.Wrap(err, "read header")
	}
	if hdr.Version != graphVersion {
		return hdr, errors.Wrapf(ErrUnknownVersion, "version %d", hdr.Version)
	}
	if hdr.FixedSize > maxFixedSize {
		return hdr, errors.Wrapf(ErrCorrupt, "fixed size %d", hdr.FixedSize)
	}
	if hdr.VertexCount > maxWords || hdr.EdgeArrayLength > maxWords {
		return hdr, errors.Wrapf(ErrCorrupt, "array sizes %d/%d", hdr.VertexCount, hdr.EdgeArrayLength)
	}
	return hdr, nil
}

func graphFromHeader(hdr fileHeader, vertices, edges words) (*Directed, error) {
	g := &Directed{
		fixedSize:   int(hdr.FixedSize),
		edgeSize:    hdr.FixedSize + 1,
		vertices:    vertices,
		edges:       edges,
		nextEdge:    uint32(hdr.EdgeArrayLength),
		vertexCount: uint32(hdr.VertexCount),
		edgeCount:   uint32(hdr.EdgeCount),
		// Padding of a serialized graph is unknown, so growing blocks in
		// place could overwrite a neighbouring block.
		readonly: true,
	}
	for v := 0; v < int(hdr.VertexCount); v++ {
		if h := vertices.Get(v); h != NoEdge && uint64(h) >= hdr.EdgeArrayLength {
			return nil, errors.Wrapf(ErrCorrupt, "vertex %d points at %d beyond %d", v, h, hdr.EdgeArrayLength)
		}
	}
	return g, nil
}

// Deserialize reads a graph written by Serialize into memory. The result is
// read-only.
func Deserialize(r io.Reader) (*Directed, error) {
	hdr, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	vertices, err := readWords(r, int(hdr.VertexCount))
	if err != nil {
		return nil, errors.Wrap(err, "read vertices")
	}
	edges, err := readWords(r, int(hdr.EdgeArrayLength))
	if err != nil {
		return nil, errors.Wrap(err, "read edges")
	}
	return graphFromHeader(hdr, vertices, edges)
}

// DeserializeMapped opens a read-only graph over ra at off without
// materializing its arrays. It returns the graph and its serialized size.
func DeserializeMapped(ra io.ReaderAt, off int64, opts MappedOptions) (*Directed, int64, error) {
	hdr, err := readHeader(io.NewSectionReader(ra, off, fileHeaderSize))
	if err != nil {
		return nil, 0, err
	}
	vertexOff := off + fileHeaderSize
	edgeOff := vertexOff + 4*int64(hdr.VertexCount)
	end := edgeOff + 4*int64(hdr.EdgeArrayLength)
	if err := checkRegion(ra, end); err != nil {
		return nil, 0, err
	}
	g, err := graphFromHeader(hdr,
		newPagedWords(ra, vertexOff, int(hdr.VertexCount), opts),
		newPagedWords(ra, edgeOff, int(hdr.EdgeArrayLength), opts))
	if err != nil {
		return nil, 0, err
	}
	return g, end - off, nil
}

// Serialize writes the base graph followed by the metadata array.
func (m *DirectedMeta) Serialize(w io.Writer) (int64, error) {
	n, err := m.graph.Serialize(w)
	if err != nil {
		return 0, err
	}
	length := int(m.graph.slots(m.graph.nextEdge)) * m.width
	hdr := metaHeader{Version: metaVersion, Width: uint32(m.width), Length: uint64(length)}
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return 0, errors.Wrap(err, "write meta header")
	}
	if err := writeWords(w, m.meta, length); err != nil {
		return 0, errors.Wrap(err, "write meta")
	}
	return n + metaHeaderSize + 4*int64(length), nil
}

func readMetaHeader(r io.Reader, g *Directed) (metaHeader, error) {
	var hdr metaHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return hdr, errors.Wrap(err, "read meta header")
	}
	if hdr.Version != metaVersion {
		return hdr, errors.Wrapf(ErrUnknownVersion, "meta version %d", hdr.Version)
	}
	if hdr.Width == 0 || hdr.Length != uint64(g.slots(g.nextEdge))*uint64(hdr.Width) {
		return hdr, errors.Wrapf(ErrCorrupt, "meta length %d for width %d", hdr.Length, hdr.Width)
	}
	return hdr, nil
}

// DeserializeMeta reads a meta-graph written by DirectedMeta.Serialize.
func DeserializeMeta(r io.Reader) (*DirectedMeta, error) {
	g, err := Deserialize(r)
	if err != nil {
		return nil, err
	}
	hdr, err := readMetaHeader(r, g)
	if err != nil {
		return nil, err
	}
	meta, err := readWords(r, int(hdr.Length))
	if err != nil {
		return nil, errors.Wrap(err, "read meta")
	}
	m := &DirectedMeta{graph: g, width: int(hdr.Width), meta: meta}
	g.listener = m
	return m, nil
}

// DeserializeMetaMapped is the paged counterpart of DeserializeMeta.
func DeserializeMetaMapped(ra io.ReaderAt, off int64, opts MappedOptions) (*DirectedMeta, int64, error) {
	g, n, err := DeserializeMapped(ra, off, opts)
	if err != nil {
		return nil, 0, err
	}
	hdr, err := readMetaHeader(io.NewSectionReader(ra, off+n, metaHeaderSize), g)
	if err != nil {
		return nil, 0, err
	}
	metaOff := off + n + metaHeaderSize
	end := metaOff + 4*int64(hdr.Length)
	if err := checkRegion(ra, end); err != nil {
		return nil, 0, err
	}
	m := &DirectedMeta{graph: g, width: int(hdr.Width), meta: newPagedWords(ra, metaOff, int(hdr.Length), opts)}
	g.listener = m
	return m, end - off, nil
}

// MappedMeta is a meta-graph backed by a memory-mapped file.
type MappedMeta struct {
	*DirectedMeta
	file *mmap.ReaderAt
}

// Close unmaps the file; the graph must not be used afterwards.
func (m *MappedMeta) Close() error { return m.file.Close() }

// OpenMapped memory-maps a file written by DirectedMeta.Serialize.
func OpenMapped(path string, opts MappedOptions) (*MappedMeta, error) {
	f, err := mmap.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "mmap %s", path)
	}
	m, _, err := DeserializeMetaMapped(f, 0, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &MappedMeta{DirectedMeta: m, file: f}, nil
}

// checkRegion verifies that ra holds at least end bytes.
func checkRegion(ra io.ReaderAt, end int64) error {
	if end == 0 {
		return nil
	}
	var b [1]byte
	if _, err := ra.ReadAt(b[:], end-1); err != nil {
		return errors.Wrapf(ErrCorrupt, "truncated at %d bytes: %v", end, err)
	}
	return nil
}

// Zero-copy I/O helpers using unsafe.Slice.

func writeWords(w io.Writer, s words, n int) error {
	if n == 0 {
		return nil
	}
	if m, ok := s.(*memWords); ok {
		b := unsafe.Slice((*byte)(unsafe.Pointer(&(*m)[0])), n*4)
		_, err := w.Write(b)
		return err
	}
	buf := make([]byte, 0, 32*1024)
	for i := 0; i < n; i++ {
		buf = binary.LittleEndian.AppendUint32(buf, s.Get(i))
		if len(buf) == cap(buf) {
			if _, err := w.Write(buf); err != nil {
				return err
			}
			buf = buf[:0]
		}
	}
	_, err := w.Write(buf)
	return err
}

func readWords(r io.Reader, n int) (*memWords, error) {
	s := make(memWords, n)
	if n == 0 {
		return &s, nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*4)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return &s, nil
}

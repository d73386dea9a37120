package network

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/pkg/errors"
)

const (
	formatVersion = uint8(1)
	maxCount      = 1 << 31
	maxTagBytes   = 1 << 16
)

// ErrUnknownVersion is returned when the data was written by a newer format.
var ErrUnknownVersion = errors.New("network: unknown format version")

// ErrCorrupt is returned when the data is truncated or inconsistent.
var ErrCorrupt = errors.New("network: corrupt data")

type header struct {
	Version      uint8
	VertexCount  uint64
	RoadCount    uint64
	ShapeCount   uint64
	ProfileCount uint32
}

type roadRecord struct {
	From, To   uint32
	Meters     float32
	Profile    uint16
	_          uint16
	ShapeCount uint32
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Serialize writes the network and returns the number of bytes written.
func (n *Network) Serialize(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)

	records := make([]roadRecord, len(n.Roads))
	var shape []orb.Point
	for i, r := range n.Roads {
		records[i] = roadRecord{From: r.From, To: r.To, Meters: r.Meters, Profile: r.Profile, ShapeCount: uint32(len(r.Shape))}
		shape = append(shape, r.Shape...)
	}

	hdr := header{
		Version:      formatVersion,
		VertexCount:  uint64(len(n.Coords)),
		RoadCount:    uint64(len(n.Roads)),
		ShapeCount:   uint64(len(shape)),
		ProfileCount: uint32(len(n.Profiles)),
	}
	for _, v := range []any{&hdr, n.Coords, records, shape} {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return cw.n, errors.Wrap(err, "write network")
		}
	}
	for _, tags := range n.Profiles {
		if err := writeTags(bw, tags); err != nil {
			return cw.n, errors.Wrap(err, "write profiles")
		}
	}
	if err := bw.Flush(); err != nil {
		return cw.n, errors.Wrap(err, "flush")
	}
	return cw.n, nil
}

// Deserialize reads a network written by Serialize.
func Deserialize(r io.Reader) (*Network, error) {
	br := bufio.NewReader(r)

	var hdr header
	if err := binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	if hdr.Version != formatVersion {
		return nil, errors.Wrapf(ErrUnknownVersion, "version %d", hdr.Version)
	}
	if hdr.VertexCount >= maxCount || hdr.RoadCount >= maxCount || hdr.ShapeCount >= maxCount {
		return nil, errors.Wrap(ErrCorrupt, "counts out of range")
	}

	coords := make([]orb.Point, hdr.VertexCount)
	records := make([]roadRecord, hdr.RoadCount)
	shape := make([]orb.Point, hdr.ShapeCount)
	for _, v := range []any{coords, records, shape} {
		if err := binary.Read(br, binary.LittleEndian, v); err != nil {
			return nil, errors.Wrap(ErrCorrupt, err.Error())
		}
	}

	roads := make([]Road, len(records))
	var next uint64
	for i, rec := range records {
		if uint64(rec.From) >= hdr.VertexCount || uint64(rec.To) >= hdr.VertexCount {
			return nil, errors.Wrapf(ErrCorrupt, "road %d references a missing vertex", i)
		}
		end := next + uint64(rec.ShapeCount)
		if end > hdr.ShapeCount {
			return nil, errors.Wrapf(ErrCorrupt, "road %d shape out of range", i)
		}
		roads[i] = Road{From: rec.From, To: rec.To, Meters: rec.Meters, Profile: rec.Profile}
		if rec.ShapeCount > 0 {
			roads[i].Shape = orb.LineString(shape[next:end:end])
		}
		next = end
	}

	profiles := make([]osm.Tags, hdr.ProfileCount)
	for i := range profiles {
		tags, err := readTags(br)
		if err != nil {
			return nil, errors.Wrapf(err, "profile %d", i)
		}
		profiles[i] = tags
	}
	return New(coords, roads, profiles), nil
}

func writeString(w io.Writer, s string) error {
	if len(s) >= maxTagBytes {
		return errors.Errorf("tag %q too long", s[:32])
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var l uint16
	if err := binary.Read(r, binary.LittleEndian, &l); err != nil {
		return "", err
	}
	buf := make([]byte, l)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeTags(w io.Writer, tags osm.Tags) error {
	if len(tags) >= maxTagBytes {
		return errors.Errorf("%d tags", len(tags))
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(tags))); err != nil {
		return err
	}
	for _, t := range tags {
		if err := writeString(w, t.Key); err != nil {
			return err
		}
		if err := writeString(w, t.Value); err != nil {
			return err
		}
	}
	return nil
}

func readTags(r io.Reader) (osm.Tags, error) {
	var count uint16
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, errors.Wrap(ErrCorrupt, err.Error())
	}
	tags := make(osm.Tags, count)
	for i := range tags {
		k, err := readString(r)
		if err != nil {
			return nil, errors.Wrap(ErrCorrupt, err.Error())
		}
		v, err := readString(r)
		if err != nil {
			return nil, errors.Wrap(ErrCorrupt, err.Error())
		}
		tags[i] = osm.Tag{Key: k, Value: v}
	}
	return tags, nil
}

// Package network holds the uncontracted road network: vertex coordinates,
// roads with their geometry and the edge profiles their costs derive from.
package network

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"

	osmparser "github.com/azybler/road_router/pkg/osm"
)

// Road connects two vertices. Shape holds the intermediate points from From
// to To.
type Road struct {
	From, To uint32
	Meters   float32
	Profile  uint16
	Shape    orb.LineString
}

// Network is an immutable road network. Build it with Build, New or
// Deserialize.
type Network struct {
	Coords   []orb.Point
	Roads    []Road
	Profiles []osm.Tags

	// CSR index of roads by vertex, both ends.
	firstOut []uint32
	roadIdx  []uint32
}

// New creates a network from its parts and indexes it.
func New(coords []orb.Point, roads []Road, profiles []osm.Tags) *Network {
	n := &Network{Coords: coords, Roads: roads, Profiles: profiles}
	n.reindex()
	return n
}

// Build creates a network from parsed OSM segments, assigning dense vertex
// ids in order of first use.
func Build(result *osmparser.ParseResult) *Network {
	ids := make(map[osm.NodeID]uint32)
	var coords []orb.Point

	vertex := func(id osm.NodeID) uint32 {
		if v, ok := ids[id]; ok {
			return v
		}
		v := uint32(len(coords))
		ids[id] = v
		coords = append(coords, result.Coords[id])
		return v
	}

	roads := make([]Road, 0, len(result.Segments))
	for _, s := range result.Segments {
		roads = append(roads, Road{
			From:    vertex(s.From),
			To:      vertex(s.To),
			Meters:  s.Meters,
			Profile: s.Profile,
			Shape:   s.Shape,
		})
	}
	return New(coords, roads, result.Profiles)
}

func (n *Network) reindex() {
	vertexCount := uint32(len(n.Coords))
	n.firstOut = make([]uint32, vertexCount+1)
	for _, r := range n.Roads {
		n.firstOut[r.From+1]++
		if r.To != r.From {
			n.firstOut[r.To+1]++
		}
	}
	for i := uint32(1); i <= vertexCount; i++ {
		n.firstOut[i] += n.firstOut[i-1]
	}

	n.roadIdx = make([]uint32, n.firstOut[vertexCount])
	pos := make([]uint32, vertexCount)
	copy(pos, n.firstOut[:vertexCount])
	for i, r := range n.Roads {
		n.roadIdx[pos[r.From]] = uint32(i)
		pos[r.From]++
		if r.To != r.From {
			n.roadIdx[pos[r.To]] = uint32(i)
			pos[r.To]++
		}
	}
}

// VertexCount returns the number of vertices.
func (n *Network) VertexCount() uint32 { return uint32(len(n.Coords)) }

// RoadsAt returns the indices of the roads touching vertex.
func (n *Network) RoadsAt(vertex uint32) []uint32 {
	if vertex >= n.VertexCount() {
		return nil
	}
	return n.roadIdx[n.firstOut[vertex]:n.firstOut[vertex+1]]
}

// Geometry returns the full line of road r from From to To.
func (n *Network) Geometry(r uint32) orb.LineString {
	road := n.Roads[r]
	ls := make(orb.LineString, 0, len(road.Shape)+2)
	ls = append(ls, n.Coords[road.From])
	ls = append(ls, road.Shape...)
	return append(ls, n.Coords[road.To])
}

// Bound returns the bounding box of all vertices.
func (n *Network) Bound() orb.Bound {
	if len(n.Coords) == 0 {
		return orb.Bound{}
	}
	return orb.MultiPoint(n.Coords).Bound()
}

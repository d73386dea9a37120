package osm

import (
	"io"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

func TestIsRoutable(t *testing.T) {
	tests := []struct {
		name string
		tags osm.Tags
		want bool
	}{
		{"residential", osm.Tags{{Key: "highway", Value: "residential"}}, true},
		{"footway", osm.Tags{{Key: "highway", Value: "footway"}}, true},
		{"cycleway", osm.Tags{{Key: "highway", Value: "cycleway"}}, true},
		{"private access is decided by the profile", osm.Tags{
			{Key: "highway", Value: "residential"},
			{Key: "access", Value: "private"},
		}, true},
		{"pedestrian area", osm.Tags{
			{Key: "highway", Value: "pedestrian"},
			{Key: "area", Value: "yes"},
		}, false},
		{"proposed", osm.Tags{{Key: "highway", Value: "proposed"}}, false},
		{"no highway tag", osm.Tags{{Key: "name", Value: "Some Street"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRoutable(tt.tags))
		})
	}
}

func TestProfileIndex(t *testing.T) {
	p := newProfileIndex()
	a, err := p.id(osm.Tags{
		{Key: "name", Value: "High Street"},
		{Key: "oneway", Value: "yes"},
		{Key: "highway", Value: "primary"},
	})
	require.NoError(t, err)
	b, err := p.id(osm.Tags{
		{Key: "highway", Value: "primary"},
		{Key: "oneway", Value: "yes"},
		{Key: "name", Value: "Low Street"},
	})
	require.NoError(t, err)
	assert.Equal(t, a, b, "names do not split profiles")

	c, err := p.id(osm.Tags{{Key: "highway", Value: "primary"}})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	require.Len(t, p.tags, 2)
	assert.Equal(t, osm.Tags{{Key: "highway", Value: "primary"}, {Key: "oneway", Value: "yes"}}, p.tags[a])
}

func TestBuildSegmentsSplitsAtJunctions(t *testing.T) {
	// Way A: 1-2-3-4, way B: 3-5. Node 3 is a junction, 2 is a shape point.
	coords := map[osm.NodeID]orb.Point{
		1: {103.800, 1.300}, 2: {103.801, 1.300}, 3: {103.802, 1.300},
		4: {103.803, 1.300}, 5: {103.802, 1.301},
	}
	ways := []wayInfo{
		{NodeIDs: []osm.NodeID{1, 2, 3, 4}, Profile: 0},
		{NodeIDs: []osm.NodeID{3, 5}, Profile: 1},
	}
	uses := map[osm.NodeID]uint8{}
	for _, w := range ways {
		markUses(uses, w.NodeIDs)
	}

	res := buildSegments(ways, uses, coords, BBox{}, quietLogger())
	require.Len(t, res.Segments, 3)

	s := res.Segments[0]
	assert.Equal(t, osm.NodeID(1), s.From)
	assert.Equal(t, osm.NodeID(3), s.To)
	assert.Equal(t, orb.LineString{coords[2]}, s.Shape)
	assert.InDelta(t, 222, s.Meters, 2)

	assert.Equal(t, osm.NodeID(3), res.Segments[1].From)
	assert.Equal(t, osm.NodeID(4), res.Segments[1].To)
	assert.Equal(t, uint16(1), res.Segments[2].Profile)

	assert.Len(t, res.Coords, 4, "shape point 2 is not a vertex")
	_, ok := res.Coords[2]
	assert.False(t, ok)
}

func TestBuildSegmentsClosedWay(t *testing.T) {
	coords := map[osm.NodeID]orb.Point{
		1: {103.800, 1.300}, 2: {103.801, 1.300}, 3: {103.801, 1.301}, 4: {103.800, 1.301},
	}
	ways := []wayInfo{{NodeIDs: []osm.NodeID{1, 2, 3, 4, 1}}}
	uses := map[osm.NodeID]uint8{}
	markUses(uses, ways[0].NodeIDs)

	res := buildSegments(ways, uses, coords, BBox{}, quietLogger())
	require.Len(t, res.Segments, 2)
	assert.Equal(t, osm.NodeID(1), res.Segments[0].From)
	assert.Equal(t, osm.NodeID(3), res.Segments[0].To)
	assert.Equal(t, osm.NodeID(3), res.Segments[1].From)
	assert.Equal(t, osm.NodeID(1), res.Segments[1].To)
}

func TestBuildSegmentsBBoxAndMissingNodes(t *testing.T) {
	coords := map[osm.NodeID]orb.Point{
		1: {103.800, 1.300}, 2: {103.801, 1.300}, 4: {103.803, 1.300}, 5: {110.0, 1.300}, 6: {103.804, 1.300},
	}
	ways := []wayInfo{{NodeIDs: []osm.NodeID{1, 2, 3, 4, 6, 5}}}
	uses := map[osm.NodeID]uint8{}
	markUses(uses, ways[0].NodeIDs)

	res := buildSegments(ways, uses, coords, BBox{MinLat: 1, MaxLat: 2, MinLng: 103, MaxLng: 104}, quietLogger())
	// 3 is missing and 5 is outside, so the way breaks into 1-2 and 4-6.
	require.Len(t, res.Segments, 2)
	assert.Equal(t, osm.NodeID(1), res.Segments[0].From)
	assert.Equal(t, osm.NodeID(2), res.Segments[0].To)
	assert.Empty(t, res.Segments[0].Shape)
	assert.Equal(t, osm.NodeID(4), res.Segments[1].From)
	assert.Equal(t, osm.NodeID(6), res.Segments[1].To)
}

func TestBBox(t *testing.T) {
	b := BBox{MinLat: 1.15, MaxLat: 1.48, MinLng: 103.6, MaxLng: 104.1}
	assert.False(t, b.IsZero())
	assert.True(t, BBox{}.IsZero())
	assert.True(t, b.Contains(orb.Point{103.8, 1.3}))
	assert.False(t, b.Contains(orb.Point{101.7, 3.1}))
}

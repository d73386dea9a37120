package routing

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"github.com/tidwall/rtree"

	"github.com/azybler/road_router/pkg/geo"
	"github.com/azybler/road_router/pkg/network"
)

// DefaultMaxSnapDistance is the snapping radius in meters.
const DefaultMaxSnapDistance = 500.0

// ErrPointTooFar is returned when the query point is too far from any road.
var ErrPointTooFar = errors.New("point too far from road")

// RouterPoint is a location snapped onto a road.
type RouterPoint struct {
	Road     uint32
	Ratio    float64   // 0 at the road's From vertex, 1 at its To vertex
	Location orb.Point // snapped location
	Distance float64   // meters from the query point
}

// Snapper finds the nearest road to a point using an R-tree over road
// bounding boxes.
type Snapper struct {
	net         *network.Network
	tree        rtree.RTreeG[uint32]
	maxDistance float64
}

// NewSnapper indexes every road of n. maxDistance <= 0 selects
// DefaultMaxSnapDistance.
func NewSnapper(n *network.Network, maxDistance float64) *Snapper {
	if maxDistance <= 0 {
		maxDistance = DefaultMaxSnapDistance
	}
	s := &Snapper{net: n, maxDistance: maxDistance}
	for i := range n.Roads {
		b := n.Geometry(uint32(i)).Bound()
		s.tree.Insert(b.Min, b.Max, uint32(i))
	}
	return s
}

// Len returns the number of indexed roads.
func (s *Snapper) Len() int { return s.tree.Len() }

// Snap returns the closest point on a road accepted by accept, which may be
// nil to accept every road.
func (s *Snapper) Snap(p orb.Point, accept func(road uint32) bool) (RouterPoint, error) {
	dLat := geo.MetersToDegrees(s.maxDistance)
	dLon := dLat / math.Max(math.Cos(p.Lat()*math.Pi/180), 0.01)
	min := [2]float64{p.Lon() - dLon, p.Lat() - dLat}
	max := [2]float64{p.Lon() + dLon, p.Lat() + dLat}

	best := RouterPoint{Distance: math.Inf(1)}
	s.tree.Search(min, max, func(_, _ [2]float64, road uint32) bool {
		if accept != nil && !accept(road) {
			return true
		}
		line := s.net.Geometry(road)
		proj := geo.ProjectLine(p, line)
		if proj.Distance >= best.Distance {
			return true
		}
		ratio := 0.0
		if length := geo.Length(line); length > 0 {
			ratio = math.Max(0, math.Min(1, proj.Offset/length))
		}
		best = RouterPoint{Road: road, Ratio: ratio, Location: proj.Point, Distance: proj.Distance}
		return true
	})

	if best.Distance > s.maxDistance {
		return RouterPoint{}, errors.Wrapf(ErrPointTooFar, "(%f, %f)", p.Lat(), p.Lon())
	}
	return best, nil
}

// Package osm imports routable ways from OpenStreetMap PBF extracts.
package osm

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/azybler/road_router/pkg/geo"
)

// minSegmentMeters keeps duplicated nodes from producing zero length roads.
const minSegmentMeters = 0.1

// Segment is a piece of a way between two junctions. Profile indexes
// ParseResult.Profiles.
type Segment struct {
	From, To osm.NodeID
	Shape    orb.LineString // intermediate points, excluding From and To
	Meters   float32
	Profile  uint16
}

// ParseResult holds the output of parsing an OSM PBF file.
type ParseResult struct {
	Segments []Segment
	Coords   map[osm.NodeID]orb.Point // segment end points only
	Profiles []osm.Tags
}

// routableHighways lists the highway values any profile may use. Whether a
// profile actually accepts them is decided later from the tags.
var routableHighways = map[string]bool{
	"motorway": true, "motorway_link": true,
	"trunk": true, "trunk_link": true,
	"primary": true, "primary_link": true,
	"secondary": true, "secondary_link": true,
	"tertiary": true, "tertiary_link": true,
	"unclassified": true, "residential": true, "living_street": true,
	"service": true, "road": true, "track": true,
	"cycleway": true, "footway": true, "path": true, "pedestrian": true,
	"steps": true, "bridleway": true,
}

// profileKeys are the tags kept per edge profile.
var profileKeys = map[string]bool{
	"highway": true, "oneway": true, "oneway:bicycle": true, "junction": true,
	"access": true, "vehicle": true, "motor_vehicle": true, "motorcar": true,
	"bicycle": true, "foot": true, "maxspeed": true,
}

// isRoutable reports whether the way can carry any profile.
func isRoutable(tags osm.Tags) bool {
	if !routableHighways[tags.Find("highway")] {
		return false
	}
	return tags.Find("area") != "yes"
}

// profileIndex assigns dense ids to distinct sets of routing tags.
type profileIndex struct {
	ids  map[string]uint16
	tags []osm.Tags
}

func newProfileIndex() *profileIndex {
	return &profileIndex{ids: make(map[string]uint16)}
}

func (p *profileIndex) id(tags osm.Tags) (uint16, error) {
	var kept osm.Tags
	for _, t := range tags {
		if profileKeys[t.Key] {
			kept = append(kept, t)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Key < kept[j].Key })

	var sb strings.Builder
	for _, t := range kept {
		sb.WriteString(t.Key)
		sb.WriteByte('=')
		sb.WriteString(t.Value)
		sb.WriteByte(';')
	}
	key := sb.String()
	if id, ok := p.ids[key]; ok {
		return id, nil
	}
	if len(p.tags) > 0xFFFF {
		return 0, errors.Errorf("more than %d distinct edge profiles", 0xFFFF+1)
	}
	id := uint16(len(p.tags))
	p.ids[key] = id
	p.tags = append(p.tags, kept)
	return id, nil
}

// wayInfo holds parsed way data collected during the first pass.
type wayInfo struct {
	NodeIDs []osm.NodeID
	Profile uint16
}

// BBox defines a geographic bounding box for filtering.
// If non-zero, only segments with every point inside the box are kept.
type BBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// IsZero returns true if the bbox is unset.
func (b BBox) IsZero() bool {
	return b.MinLat == 0 && b.MaxLat == 0 && b.MinLng == 0 && b.MaxLng == 0
}

// Contains returns true if the point is inside the bounding box.
func (b BBox) Contains(p orb.Point) bool {
	return p.Lat() >= b.MinLat && p.Lat() <= b.MaxLat && p.Lon() >= b.MinLng && p.Lon() <= b.MaxLng
}

// ParseOptions configures the OSM parser.
type ParseOptions struct {
	BBox   BBox               // if non-zero, filter segments to this bounding box
	Logger logrus.FieldLogger // defaults to a discarding logger
}

// Parse reads an OSM PBF file and returns its routable segments. The reader
// is consumed twice, so it must implement io.ReadSeeker.
func Parse(ctx context.Context, rs io.ReadSeeker, opts ...ParseOptions) (*ParseResult, error) {
	var opt ParseOptions
	if len(opts) > 0 {
		opt = opts[0]
	}
	logger := opt.Logger
	if logger == nil {
		l := logrus.New()
		l.Out = io.Discard
		logger = l
	}
	logger = logger.WithField("module", "osm")

	// Pass 1: ways, node use counts and edge profiles.
	profiles := newProfileIndex()
	uses := make(map[osm.NodeID]uint8)
	var ways []wayInfo

	scanner := osmpbf.New(ctx, rs, 1)
	scanner.SkipNodes = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		w, ok := scanner.Object().(*osm.Way)
		if !ok || len(w.Nodes) < 2 || !isRoutable(w.Tags) {
			continue
		}
		id, err := profiles.id(w.Tags)
		if err != nil {
			scanner.Close()
			return nil, err
		}
		nodeIDs := make([]osm.NodeID, len(w.Nodes))
		for i, wn := range w.Nodes {
			nodeIDs[i] = wn.ID
		}
		markUses(uses, nodeIDs)
		ways = append(ways, wayInfo{NodeIDs: nodeIDs, Profile: id})
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, errors.Wrap(err, "pass 1 (ways)")
	}
	scanner.Close()

	logger.Infof("pass 1 complete: %d ways, %d referenced nodes, %d edge profiles",
		len(ways), len(uses), len(profiles.tags))

	// Pass 2: coordinates of referenced nodes.
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "seek for pass 2")
	}

	coords := make(map[osm.NodeID]orb.Point, len(uses))
	scanner = osmpbf.New(ctx, rs, 1)
	scanner.SkipWays = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, needed := uses[n.ID]; needed {
			coords[n.ID] = orb.Point{n.Lon, n.Lat}
		}
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, errors.Wrap(err, "pass 2 (nodes)")
	}
	scanner.Close()

	logger.Infof("pass 2 complete: %d node coordinates collected", len(coords))

	result := buildSegments(ways, uses, coords, opt.BBox, logger)
	result.Profiles = profiles.tags
	return result, nil
}

// markUses counts how often each node is used. Way ends count twice so they
// always split, and a closed way is also split halfway round.
func markUses(uses map[osm.NodeID]uint8, nodeIDs []osm.NodeID) {
	bump := func(id osm.NodeID, n uint8) {
		if uses[id] < 255-n {
			uses[id] += n
		} else {
			uses[id] = 255
		}
	}
	for _, id := range nodeIDs {
		bump(id, 1)
	}
	last := len(nodeIDs) - 1
	bump(nodeIDs[0], 1)
	bump(nodeIDs[last], 1)
	if nodeIDs[0] == nodeIDs[last] && last >= 2 {
		bump(nodeIDs[last/2], 1)
	}
}

// buildSegments splits ways at junctions. A node without coordinates or
// outside the bounding box ends the current segment at the node before it.
func buildSegments(ways []wayInfo, uses map[osm.NodeID]uint8, coords map[osm.NodeID]orb.Point, bbox BBox, logger logrus.FieldLogger) *ParseResult {
	useBBox := !bbox.IsZero()
	result := &ParseResult{Coords: make(map[osm.NodeID]orb.Point)}
	var dropped, filtered int

	for _, w := range ways {
		var (
			started      bool
			from, prevID osm.NodeID
			prev         orb.Point
			shape        orb.LineString
			meters       float64
		)
		emit := func(to osm.NodeID, shape orb.LineString) {
			if to == from {
				return
			}
			m := meters
			if m < minSegmentMeters {
				m = minSegmentMeters
			}
			result.Segments = append(result.Segments, Segment{
				From: from, To: to, Shape: shape, Meters: float32(m), Profile: w.Profile,
			})
			result.Coords[from] = coords[from]
			result.Coords[to] = coords[to]
		}

		for i, id := range w.NodeIDs {
			p, ok := coords[id]
			if !ok || (useBBox && !bbox.Contains(p)) {
				if ok {
					filtered++
				} else {
					dropped++
				}
				if started && prevID != from {
					emit(prevID, shape[:len(shape)-1])
				}
				started = false
				continue
			}
			if !started {
				started, from, prevID, prev, shape, meters = true, id, id, p, nil, 0
				continue
			}
			meters += geo.Haversine(prev, p)
			prev, prevID = p, id
			if i < len(w.NodeIDs)-1 && uses[id] < 2 {
				shape = append(shape, p)
				continue
			}
			emit(id, shape)
			from, shape, meters = id, nil, 0
		}
	}

	if dropped > 0 {
		logger.Warnf("skipped %d nodes without coordinates", dropped)
	}
	if filtered > 0 {
		logger.Infof("filtered %d nodes outside bounding box", filtered)
	}
	logger.Infof("built %d segments", len(result.Segments))
	return result
}

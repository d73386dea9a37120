package routing

import (
	"context"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"github.com/azybler/road_router/pkg/geo"
	"github.com/azybler/road_router/pkg/graph"
	"github.com/azybler/road_router/pkg/network"
	"github.com/azybler/road_router/pkg/search"
	"github.com/azybler/road_router/pkg/weight"
)

var (
	// ErrNoRoute is returned when no route exists between the two points.
	ErrNoRoute = errors.New("no route found")
	// ErrUnknownProfile is returned for a profile that is not loaded.
	ErrUnknownProfile = errors.New("unknown profile")
)

// LatLng represents a geographic coordinate.
type LatLng struct {
	Lat float64
	Lng float64
}

func (l LatLng) point() orb.Point { return orb.Point{l.Lng, l.Lat} }

// Segment is one road travelled by a route.
type Segment struct {
	DistanceMeters float64
	TimeSeconds    float64
	Geometry       []LatLng
}

// RouteResult is the output of a route query.
type RouteResult struct {
	TotalDistanceMeters float64
	TotalTimeSeconds    float64
	Weight              float64 // in the profile's metric
	Segments            []Segment
}

// ProfileRouter answers queries for a single profile.
type ProfileRouter interface {
	Route(ctx context.Context, start, end LatLng) (*RouteResult, error)
	// RouteMany routes from start to every end. An entry is nil when that
	// end cannot be reached.
	RouteMany(ctx context.Context, start LatLng, ends []LatLng) ([]*RouteResult, error)
	// EdgeCount is the number of edges of the contracted graph.
	EdgeCount() uint32
}

// Router is the interface for route queries.
type Router interface {
	Route(ctx context.Context, profile string, start, end LatLng) (*RouteResult, error)
	RouteMany(ctx context.Context, profile string, start LatLng, ends []LatLng) ([]*RouteResult, error)
	Profiles() []string
}

// Engine routes over one contracted graph with weights of type T.
type Engine[T any] struct {
	net     *network.Network
	g       *graph.DirectedMeta
	h       weight.Handler[T]
	src     weight.Source
	snapper *Snapper
}

// NewEngine creates an engine. g must be contracted from n with a handler
// over src.
func NewEngine[T any](n *network.Network, snapper *Snapper, g *graph.DirectedMeta, h weight.Handler[T], src weight.Source) *Engine[T] {
	return &Engine[T]{net: n, g: g, h: h, src: src, snapper: snapper}
}

// EdgeCount returns the number of edges of the contracted graph.
func (e *Engine[T]) EdgeCount() uint32 { return e.g.EdgeCount() }

// usable reports whether a point may be snapped onto road r.
func (e *Engine[T]) usable(r uint32) bool {
	road := e.net.Roads[r]
	return road.From != road.To && e.src(road.Profile).Direction != weight.None
}

func (e *Engine[T]) snap(l LatLng) (RouterPoint, error) {
	return e.snapper.Snap(l.point(), e.usable)
}

// Route computes the best route between two points.
func (e *Engine[T]) Route(ctx context.Context, start, end LatLng) (*RouteResult, error) {
	s, err := e.snap(start)
	if err != nil {
		return nil, err
	}
	t, err := e.snap(end)
	if err != nil {
		return nil, err
	}

	w, ls, found := e.directCandidate(s, t)
	source, okS := SourceFor(e.h, e.net, s)
	target, okT := TargetFor(e.h, e.net, t)
	if okS && okT {
		b := search.NewBidirectional(e.g, e.h, source, target)
		if err := b.Run(ctx); err != nil {
			return nil, err
		}
		if _, best := b.Best(); b.HasSucceeded() && (!found || e.h.IsSmallerThan(best, w)) {
			p, err := b.Path()
			if err != nil {
				return nil, err
			}
			if ls, err = e.expand(s, t, p.Vertices); err != nil {
				return nil, err
			}
			w, found = best, true
		}
	}
	if !found {
		return nil, ErrNoRoute
	}
	return e.result(w, ls), nil
}

// RouteMany computes routes from start to each of ends. The forward search
// space of start is computed once.
func (e *Engine[T]) RouteMany(ctx context.Context, start LatLng, ends []LatLng) ([]*RouteResult, error) {
	s, err := e.snap(start)
	if err != nil {
		return nil, err
	}
	points := make([]RouterPoint, len(ends))
	targets := make([]search.Source[T], len(ends))
	for i, end := range ends {
		if points[i], err = e.snap(end); err != nil {
			return nil, errors.Wrapf(err, "end %d", i)
		}
		targets[i], _ = TargetFor(e.h, e.net, points[i])
	}

	out := make([]*RouteResult, len(ends))
	var paths []search.Path[T]
	if source, ok := SourceFor(e.h, e.net, s); ok {
		if paths, err = search.OneToMany(ctx, e.g, e.h, source, targets, search.NewCache[T]()); err != nil {
			return nil, err
		}
	}
	for i, t := range points {
		w, ls, found := e.directCandidate(s, t)
		if paths != nil && paths[i].Vertices != nil && (!found || e.h.IsSmallerThan(paths[i].Weight, w)) {
			if ls, err = e.expand(s, t, paths[i].Vertices); err != nil {
				return nil, err
			}
			w, found = paths[i].Weight, true
		}
		if found {
			out[i] = e.result(w, ls)
		}
	}
	return out, nil
}

func (e *Engine[T]) directCandidate(s, t RouterPoint) (T, []leg, bool) {
	w, l, ok := direct(e.h, e.net, s, t)
	if !ok {
		return w, nil, false
	}
	return w, []leg{l}, true
}

// expand unpacks a hierarchy path into the legs it travels.
func (e *Engine[T]) expand(s, t RouterPoint, path []uint32) ([]leg, error) {
	vertices, err := unpackPath(e.g, e.h, path)
	if err != nil {
		return nil, err
	}
	return legs(e.h, e.net, s, t, vertices)
}

func (e *Engine[T]) result(w T, ls []leg) *RouteResult {
	res := &RouteResult{Weight: float64(e.h.GetMetric(w))}
	for _, l := range ls {
		if l.From == l.To && len(ls) > 1 {
			continue
		}
		road := e.net.Roads[l.Road]
		line := e.net.Geometry(l.Road)
		length := geo.Length(line)
		meters := float64(road.Meters) * math.Abs(l.To-l.From)
		seg := Segment{
			DistanceMeters: meters,
			TimeSeconds:    meters * float64(e.src(road.Profile).Time),
		}
		for _, p := range geo.SubLine(line, l.From*length, l.To*length) {
			seg.Geometry = append(seg.Geometry, LatLng{Lat: p.Lat(), Lng: p.Lon()})
		}
		res.TotalDistanceMeters += seg.DistanceMeters
		res.TotalTimeSeconds += seg.TimeSeconds
		res.Segments = append(res.Segments, seg)
	}
	return res
}

// Service dispatches queries to the engine of the requested profile.
type Service struct {
	engines map[string]ProfileRouter
	def     string
}

// NewService creates an empty service.
func NewService() *Service {
	return &Service{engines: make(map[string]ProfileRouter)}
}

// Add registers r under name. The first profile added is the default.
func (s *Service) Add(name string, r ProfileRouter) {
	if len(s.engines) == 0 {
		s.def = name
	}
	s.engines[name] = r
}

// SetDefault selects the profile used when a query names none.
func (s *Service) SetDefault(name string) error {
	if _, ok := s.engines[name]; !ok {
		return errors.Wrap(ErrUnknownProfile, name)
	}
	s.def = name
	return nil
}

// Get returns the router registered under name.
func (s *Service) Get(name string) (ProfileRouter, bool) {
	r, ok := s.engines[name]
	return r, ok
}

func (s *Service) engine(profile string) (ProfileRouter, error) {
	if profile == "" {
		profile = s.def
	}
	r, ok := s.engines[profile]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownProfile, "%q", profile)
	}
	return r, nil
}

// Route routes with the named profile, or the default when empty.
func (s *Service) Route(ctx context.Context, profile string, start, end LatLng) (*RouteResult, error) {
	r, err := s.engine(profile)
	if err != nil {
		return nil, err
	}
	return r.Route(ctx, start, end)
}

// RouteMany is the one-to-many counterpart of Route.
func (s *Service) RouteMany(ctx context.Context, profile string, start LatLng, ends []LatLng) ([]*RouteResult, error) {
	r, err := s.engine(profile)
	if err != nil {
		return nil, err
	}
	return r.RouteMany(ctx, start, ends)
}

// Profiles returns the loaded profile names, sorted.
func (s *Service) Profiles() []string {
	names := make([]string, 0, len(s.engines))
	for name := range s.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
